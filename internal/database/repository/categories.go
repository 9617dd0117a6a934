package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// CategoryRepo handles categories.
type CategoryRepo struct {
	db *sql.DB
}

func NewCategoryRepo(db *sql.DB) *CategoryRepo { return &CategoryRepo{db: db} }

// List returns the user's categories in enumeration order (sort_order, then
// name). This order is what makes first-match-wins categorization stable.
func (r *CategoryRepo) List(ctx context.Context, userID string) ([]Category, error) {
	rows, err := r.db.QueryContext(ctx, `
	SELECT id, user_id, budget_id, name, amount_cents, keywords, color, sort_order
	FROM categories WHERE user_id = ? ORDER BY sort_order, name`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Get returns one category, or nil if absent.
func (r *CategoryRepo) Get(ctx context.Context, userID, id string) (*Category, error) {
	row := r.db.QueryRowContext(ctx, `
	SELECT id, user_id, budget_id, name, amount_cents, keywords, color, sort_order
	FROM categories WHERE user_id = ? AND id = ?`, userID, id)
	c, err := scanCategory(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

func (r *CategoryRepo) Insert(ctx context.Context, c Category) error {
	kw, err := marshalKeywords(c.Keywords)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
	INSERT INTO categories(id, user_id, budget_id, name, amount_cents, keywords, color, sort_order)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.UserID, c.BudgetID, c.Name, c.AmountCents, kw, c.Color, c.SortOrder)
	return err
}

// Update rewrites the mutable fields of a category. Returns false if no row
// matched.
func (r *CategoryRepo) Update(ctx context.Context, c Category) (bool, error) {
	kw, err := marshalKeywords(c.Keywords)
	if err != nil {
		return false, err
	}
	res, err := r.db.ExecContext(ctx, `
	UPDATE categories SET name = ?, amount_cents = ?, keywords = ?, color = ?, sort_order = ?
	WHERE user_id = ? AND id = ?`,
		c.Name, c.AmountCents, kw, c.Color, c.SortOrder, c.UserID, c.ID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// UpdateKeywords replaces just the keyword list ("apply to similar" growth).
func (r *CategoryRepo) UpdateKeywords(ctx context.Context, userID, id string, keywords []string) error {
	kw, err := marshalKeywords(keywords)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `UPDATE categories SET keywords = ? WHERE user_id = ? AND id = ?`, kw, userID, id)
	return err
}

// Delete removes one category. Returns false if no row matched.
func (r *CategoryRepo) Delete(ctx context.Context, userID, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM categories WHERE user_id = ? AND id = ?`, userID, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// DeleteByBudgetTx removes every category of a budget inside its delete
// cascade transaction.
func (r *CategoryRepo) DeleteByBudgetTx(ctx context.Context, tx *sql.Tx, userID, budgetID string) (int64, error) {
	res, err := tx.ExecContext(ctx, `DELETE FROM categories WHERE user_id = ? AND budget_id = ?`, userID, budgetID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func scanCategory(row scanner) (Category, error) {
	var c Category
	var budgetID, color sql.NullString
	var kw string
	if err := row.Scan(&c.ID, &c.UserID, &budgetID, &c.Name, &c.AmountCents, &kw, &color, &c.SortOrder); err != nil {
		return Category{}, err
	}
	if budgetID.Valid {
		c.BudgetID = &budgetID.String
	}
	if color.Valid {
		c.Color = &color.String
	}
	if err := json.Unmarshal([]byte(kw), &c.Keywords); err != nil {
		return Category{}, fmt.Errorf("category %s keywords: %w", c.ID, err)
	}
	return c, nil
}

func marshalKeywords(keywords []string) (string, error) {
	if keywords == nil {
		keywords = []string{}
	}
	b, err := json.Marshal(keywords)
	if err != nil {
		return "", fmt.Errorf("marshal keywords: %w", err)
	}
	return string(b), nil
}
