package repository

import (
	"context"
	"database/sql"
)

const accountColumns = `id, user_id, name, official_name, mask, subtype, type, institution_id, institution_name, institution_logo`

// AccountRepo handles accounts.
type AccountRepo struct {
	db *sql.DB
}

func NewAccountRepo(db *sql.DB) *AccountRepo { return &AccountRepo{db: db} }

// Get returns one account, or nil if absent.
func (r *AccountRepo) Get(ctx context.Context, userID, id string) (*Account, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE user_id = ? AND id = ?`, userID, id)
	a, err := scanAccount(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &a, nil
}

// List returns the user's accounts ordered by institution then name.
func (r *AccountRepo) List(ctx context.Context, userID string) ([]Account, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE user_id = ? ORDER BY institution_name, name`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Upsert writes the provider's current view of an account. Institution logo
// is only overwritten when the refresh actually resolved one, so a transient
// lookup failure does not wipe a previously stored logo.
func (r *AccountRepo) Upsert(ctx context.Context, a Account) error {
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO accounts(id, user_id, name, official_name, mask, subtype, type, institution_id, institution_name, institution_logo)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
	 name=excluded.name,
	 official_name=excluded.official_name,
	 mask=excluded.mask,
	 subtype=excluded.subtype,
	 type=excluded.type,
	 institution_id=excluded.institution_id,
	 institution_name=excluded.institution_name,
	 institution_logo=COALESCE(excluded.institution_logo, accounts.institution_logo);
	`, a.ID, a.UserID, a.Name, a.OfficialName, a.Mask, a.Subtype, a.Type,
		a.InstitutionID, a.InstitutionName, a.InstitutionLogo)
	return err
}

// DeleteTx removes an account inside its (optionally cascading) delete
// transaction. Returns false if no row matched.
func (r *AccountRepo) DeleteTx(ctx context.Context, tx *sql.Tx, userID, id string) (bool, error) {
	res, err := tx.ExecContext(ctx, `DELETE FROM accounts WHERE user_id = ? AND id = ?`, userID, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func scanAccount(row scanner) (Account, error) {
	var a Account
	var official, mask, subtype, typ, logo sql.NullString
	if err := row.Scan(&a.ID, &a.UserID, &a.Name, &official, &mask, &subtype, &typ,
		&a.InstitutionID, &a.InstitutionName, &logo); err != nil {
		return Account{}, err
	}
	if official.Valid {
		a.OfficialName = &official.String
	}
	if mask.Valid {
		a.Mask = &mask.String
	}
	if subtype.Valid {
		a.Subtype = &subtype.String
	}
	if typ.Valid {
		a.Type = &typ.String
	}
	if logo.Valid {
		a.InstitutionLogo = &logo.String
	}
	return a, nil
}
