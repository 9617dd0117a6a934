package service

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mbell/centsible/internal/database"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	migrations, err := filepath.Abs("../database/migrations")
	require.NoError(t, err)
	require.NoError(t, database.RunMigrations(dbPath, migrations))

	db, err := database.Open(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func strPtr(s string) *string { return &s }

func seedTransaction(t *testing.T, db *sql.DB, id, userID, name string) {
	t.Helper()
	_, err := db.Exec(`
	INSERT INTO transactions(id, user_id, account_id, date, name, amount_cents, currency, pending, removed, updated_at)
	VALUES (?, ?, 'acct-1', '2026-08-01', ?, 1000, 'USD', 0, 0, ?)`,
		id, userID, name, database.Now())
	require.NoError(t, err)
}

func seedTransactionForAccount(t *testing.T, db *sql.DB, id, userID, accountID string) {
	t.Helper()
	_, err := db.Exec(`
	INSERT INTO transactions(id, user_id, account_id, date, name, amount_cents, currency, pending, removed, updated_at)
	VALUES (?, ?, ?, '2026-08-01', 'SEED', 1000, 'USD', 0, 0, ?)`,
		id, userID, accountID, database.Now())
	require.NoError(t, err)
}

func seedTransactionWithMerchant(t *testing.T, db *sql.DB, id, userID, name, merchant string) {
	t.Helper()
	_, err := db.Exec(`
	INSERT INTO transactions(id, user_id, account_id, date, name, merchant_name, amount_cents, currency, pending, removed, updated_at)
	VALUES (?, ?, 'acct-1', '2026-08-01', ?, ?, 1000, 'USD', 0, 0, ?)`,
		id, userID, name, merchant, database.Now())
	require.NoError(t, err)
}
