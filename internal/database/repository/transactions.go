package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"
)

const transactionColumns = `id, user_id, account_id, date, name, merchant_name, amount_cents, currency, pending, provider_category, category_id, category_name, removed, updated_at`

// TransactionRepo handles transactions.
type TransactionRepo struct {
	db *sql.DB
}

func NewTransactionRepo(db *sql.DB) *TransactionRepo { return &TransactionRepo{db: db} }

// Get returns a transaction by id, or nil if absent. Soft-removed rows are
// still returned here; listings filter them out.
func (r *TransactionRepo) Get(ctx context.Context, userID, id string) (*Transaction, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE user_id = ? AND id = ?`, userID, id)
	t, err := scanTransaction(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

// List returns non-removed transactions, newest date first, paginated.
func (r *TransactionRepo) List(ctx context.Context, userID string, limit, offset int) ([]Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `
	SELECT `+transactionColumns+` FROM transactions
	WHERE user_id = ? AND removed = 0
	ORDER BY date DESC, id
	LIMIT ? OFFSET ?`, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTransactions(rows)
}

// ListAll returns every transaction for the user, removed ones included.
// Reconciliation walks this set.
func (r *TransactionRepo) ListAll(ctx context.Context, userID string) ([]Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE user_id = ? ORDER BY date DESC, id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTransactions(rows)
}

// SearchByNamePrefix returns non-removed transactions whose name starts with
// the given prefix, case-insensitively.
func (r *TransactionRepo) SearchByNamePrefix(ctx context.Context, userID, prefix string, limit int) ([]Transaction, error) {
	pattern := escapeLike(strings.ToLower(prefix)) + "%"
	rows, err := r.db.QueryContext(ctx, `
	SELECT `+transactionColumns+` FROM transactions
	WHERE user_id = ? AND removed = 0 AND lower(name) LIKE ? ESCAPE '\'
	ORDER BY date DESC, id
	LIMIT ?`, userID, pattern, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTransactions(rows)
}

// UpsertFromSyncTx applies one provider delta row. Merge semantics: only
// provider-owned columns are written on conflict, so a locally assigned
// category survives a modify delta. A transaction that reappears upstream
// clears its removed marker.
func (r *TransactionRepo) UpsertFromSyncTx(ctx context.Context, tx *sql.Tx, t Transaction) error {
	_, err := tx.ExecContext(ctx, `
	INSERT INTO transactions(
	 id, user_id, account_id, date, name, merchant_name, amount_cents, currency,
	 pending, provider_category, removed, updated_at)
	VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?)
	ON CONFLICT(id) DO UPDATE SET
	 account_id=excluded.account_id,
	 date=excluded.date,
	 name=excluded.name,
	 merchant_name=excluded.merchant_name,
	 amount_cents=excluded.amount_cents,
	 currency=excluded.currency,
	 pending=excluded.pending,
	 provider_category=excluded.provider_category,
	 removed=0,
	 updated_at=excluded.updated_at;
	`, t.ID, t.UserID, t.AccountID, t.Date, t.Name, t.MerchantName, t.AmountCents,
		t.Currency, t.Pending, t.ProviderCategory, t.UpdatedAt)
	return err
}

// MarkRemovedTx soft-deletes a transaction the provider no longer reports.
func (r *TransactionRepo) MarkRemovedTx(ctx context.Context, tx *sql.Tx, userID, id string, at time.Time) error {
	_, err := tx.ExecContext(ctx, `UPDATE transactions SET removed = 1, updated_at = ? WHERE user_id = ? AND id = ?`, at, userID, id)
	return err
}

// UpdateCategory writes the category assignment plus its denormalized name.
// Both nil clears the assignment.
func (r *TransactionRepo) UpdateCategory(ctx context.Context, userID, id string, categoryID, categoryName *string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE transactions SET category_id = ?, category_name = ?, updated_at = ? WHERE user_id = ? AND id = ?`,
		categoryID, categoryName, time.Now().UTC().Truncate(time.Second), userID, id)
	return err
}

// TransactionUpdate carries the editable fields of a user edit; nil means
// leave the stored value alone.
type TransactionUpdate struct {
	Name         *string
	MerchantName *string
	Date         *string
	AmountCents  *int64
	Pending      *bool
}

// UpdateFields applies a partial user edit. Returns false if no row matched.
func (r *TransactionRepo) UpdateFields(ctx context.Context, userID, id string, u TransactionUpdate) (bool, error) {
	var set []string
	var args []interface{}
	if u.Name != nil {
		set = append(set, "name = ?")
		args = append(args, *u.Name)
	}
	if u.MerchantName != nil {
		set = append(set, "merchant_name = ?")
		args = append(args, *u.MerchantName)
	}
	if u.Date != nil {
		set = append(set, "date = ?")
		args = append(args, *u.Date)
	}
	if u.AmountCents != nil {
		set = append(set, "amount_cents = ?")
		args = append(args, *u.AmountCents)
	}
	if u.Pending != nil {
		set = append(set, "pending = ?")
		args = append(args, *u.Pending)
	}
	if len(set) == 0 {
		// nothing to change; report whether the row exists
		t, err := r.Get(ctx, userID, id)
		return t != nil, err
	}
	set = append(set, "updated_at = ?")
	args = append(args, time.Now().UTC().Truncate(time.Second), userID, id)
	res, err := r.db.ExecContext(ctx, `UPDATE transactions SET `+strings.Join(set, ", ")+` WHERE user_id = ? AND id = ?`, args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// Delete hard-deletes one transaction. Returns false if no row matched.
func (r *TransactionRepo) Delete(ctx context.Context, userID, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE user_id = ? AND id = ?`, userID, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// DeleteByAccountTx hard-deletes every transaction of one account as part of
// an account delete cascade.
func (r *TransactionRepo) DeleteByAccountTx(ctx context.Context, tx *sql.Tx, userID, accountID string) (int64, error) {
	res, err := tx.ExecContext(ctx, `DELETE FROM transactions WHERE user_id = ? AND account_id = ?`, userID, accountID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func collectTransactions(rows *sql.Rows) ([]Transaction, error) {
	var out []Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// scanner covers both sql.Row and sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanTransaction(row scanner) (Transaction, error) {
	var t Transaction
	var merchant, provCat, catID, catName sql.NullString
	if err := row.Scan(&t.ID, &t.UserID, &t.AccountID, &t.Date, &t.Name, &merchant,
		&t.AmountCents, &t.Currency, &t.Pending, &provCat, &catID, &catName,
		&t.Removed, &t.UpdatedAt); err != nil {
		return Transaction{}, err
	}
	if merchant.Valid {
		t.MerchantName = &merchant.String
	}
	if provCat.Valid {
		t.ProviderCategory = &provCat.String
	}
	if catID.Valid {
		t.CategoryID = &catID.String
	}
	if catName.Valid {
		t.CategoryName = &catName.String
	}
	return t, nil
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "%", `\%`)
	s = strings.ReplaceAll(s, "_", `\_`)
	return s
}
