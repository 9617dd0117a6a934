package repository

import (
	"context"
	"database/sql"
)

// BudgetRepo handles budgets.
type BudgetRepo struct {
	db *sql.DB
}

func NewBudgetRepo(db *sql.DB) *BudgetRepo { return &BudgetRepo{db: db} }

// GetByUser returns the user's budget, or nil if none exists yet.
func (r *BudgetRepo) GetByUser(ctx context.Context, userID string) (*Budget, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, user_id, name FROM budgets WHERE user_id = ?`, userID)
	var b Budget
	if err := row.Scan(&b.ID, &b.UserID, &b.Name); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &b, nil
}

func (r *BudgetRepo) Insert(ctx context.Context, b Budget) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO budgets(id, user_id, name) VALUES (?, ?, ?)`, b.ID, b.UserID, b.Name)
	return err
}

// UpdateName renames a budget. Returns false if no row matched.
func (r *BudgetRepo) UpdateName(ctx context.Context, userID, id, name string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE budgets SET name = ? WHERE user_id = ? AND id = ?`, name, userID, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// DeleteTx removes a budget inside its cascade transaction.
func (r *BudgetRepo) DeleteTx(ctx context.Context, tx *sql.Tx, userID, id string) (bool, error) {
	res, err := tx.ExecContext(ctx, `DELETE FROM budgets WHERE user_id = ? AND id = ?`, userID, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}
