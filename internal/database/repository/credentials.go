package repository

import (
	"context"
	"database/sql"
	"time"
)

// CredentialRepo handles provider access credentials.
type CredentialRepo struct {
	db *sql.DB
}

func NewCredentialRepo(db *sql.DB) *CredentialRepo { return &CredentialRepo{db: db} }

// Get returns the credential for a user, or nil if the bank is not linked.
func (r *CredentialRepo) Get(ctx context.Context, userID string) (*Credential, error) {
	row := r.db.QueryRowContext(ctx, `SELECT user_id, access_token, item_id, cursor, last_sync_at FROM credentials WHERE user_id = ?`, userID)
	var c Credential
	var cursor sql.NullString
	var lastSync sql.NullTime
	if err := row.Scan(&c.UserID, &c.AccessToken, &c.ItemID, &cursor, &lastSync); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	if cursor.Valid {
		c.Cursor = &cursor.String
	}
	if lastSync.Valid {
		c.LastSyncAt = &lastSync.Time
	}
	return &c, nil
}

// Upsert stores the credential produced by a public-token exchange. The
// cursor is left untouched on conflict so a re-link does not rewind sync.
func (r *CredentialRepo) Upsert(ctx context.Context, c Credential) error {
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO credentials(user_id, access_token, item_id, cursor, last_sync_at)
	VALUES (?, ?, ?, NULL, NULL)
	ON CONFLICT(user_id) DO UPDATE SET
	 access_token=excluded.access_token,
	 item_id=excluded.item_id;
	`, c.UserID, c.AccessToken, c.ItemID)
	return err
}

// AdvanceCursorTx moves the cursor from `from` to `to` inside a sync commit
// transaction. The WHERE clause is a compare-and-swap: if another sync
// advanced the cursor since `from` was read, zero rows match and the caller
// must roll back the whole batch.
func (r *CredentialRepo) AdvanceCursorTx(ctx context.Context, tx *sql.Tx, userID string, from *string, to string, at time.Time) (int64, error) {
	res, err := tx.ExecContext(ctx,
		`UPDATE credentials SET cursor = ?, last_sync_at = ? WHERE user_id = ? AND cursor IS ?`,
		to, at, userID, from)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
