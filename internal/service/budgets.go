package service

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/mbell/centsible/internal/database"
	"github.com/mbell/centsible/internal/database/repository"
)

// BudgetService owns the one-budget-per-user lifecycle and the category CRUD
// hanging off it. It shares UserLocks with SyncService so a category edit
// never races a sync's reconciliation pass.
type BudgetService struct {
	DB          *sql.DB
	Budgets     *repository.BudgetRepo
	Categories  *repository.CategoryRepo
	Categorizer *CategorizerService
	Locks       *UserLocks
}

// starterCategories seeds a fresh budget. Ids are derived deterministically
// from the user id so re-running initialization against a half-created state
// cannot duplicate rows.
var starterCategories = []struct {
	Name        string
	AmountCents int64
	Keywords    []string
	Color       string
}{
	{"Groceries", 50000, []string{"grocery", "supermarket", "market"}, "#4caf50"},
	{"Dining Out", 20000, []string{"restaurant", "coffee", "bar"}, "#ff9800"},
	{"Transport", 15000, []string{"gas", "fuel", "uber", "transit", "parking"}, "#2196f3"},
	{"Rent & Utilities", 150000, []string{"rent", "electric", "water", "internet"}, "#9c27b0"},
	{"Entertainment", 10000, []string{"movie", "music", "game"}, "#e91e63"},
	{"Health", 10000, []string{"pharmacy", "gym", "doctor"}, "#00bcd4"},
}

// BudgetDetail is a budget with its categories and the derived total. The
// total is never stored; it is the sum of the category amounts at read time.
type BudgetDetail struct {
	Budget     repository.Budget
	TotalCents int64
	Categories []repository.Category
}

// Create makes the user's budget. At most one budget exists per user, so a
// second create is a conflict regardless of name.
func (s *BudgetService) Create(ctx context.Context, userID, name string) (repository.Budget, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return repository.Budget{}, Errorf(KindValidation, "budget name must not be empty")
	}

	unlock := s.Locks.Lock(userID)
	defer unlock()

	existing, err := s.Budgets.GetByUser(ctx, userID)
	if err != nil {
		return repository.Budget{}, fmt.Errorf("create budget: %w", err)
	}
	if existing != nil {
		return repository.Budget{}, Errorf(KindConflict, "user already has a budget")
	}

	b := repository.Budget{ID: uuid.NewString(), UserID: userID, Name: name}
	if err := s.Budgets.Insert(ctx, b); err != nil {
		return repository.Budget{}, fmt.Errorf("create budget: %w", err)
	}
	return b, nil
}

// Initialize creates the user's budget pre-populated with the starter
// categories. Conflicts like Create when a budget already exists.
func (s *BudgetService) Initialize(ctx context.Context, userID string) (BudgetDetail, error) {
	unlock := s.Locks.Lock(userID)
	defer unlock()

	existing, err := s.Budgets.GetByUser(ctx, userID)
	if err != nil {
		return BudgetDetail{}, fmt.Errorf("initialize budget: %w", err)
	}
	if existing != nil {
		return BudgetDetail{}, Errorf(KindConflict, "user already has a budget")
	}

	b := repository.Budget{
		ID:     seedID(userID, "budget"),
		UserID: userID,
		Name:   "My Budget",
	}
	if err := s.Budgets.Insert(ctx, b); err != nil {
		return BudgetDetail{}, fmt.Errorf("initialize budget: %w", err)
	}
	for i, sc := range starterCategories {
		color := sc.Color
		c := repository.Category{
			ID:          seedID(userID, "category:"+sc.Name),
			UserID:      userID,
			BudgetID:    &b.ID,
			Name:        sc.Name,
			AmountCents: sc.AmountCents,
			Keywords:    sc.Keywords,
			Color:       &color,
			SortOrder:   i,
		}
		if err := s.Categories.Insert(ctx, c); err != nil {
			return BudgetDetail{}, fmt.Errorf("initialize budget: seed %s: %w", sc.Name, err)
		}
	}
	return s.detail(ctx, userID, b)
}

// Get returns the user's budget with categories and derived total, or
// NOT_FOUND when none exists.
func (s *BudgetService) Get(ctx context.Context, userID string) (BudgetDetail, error) {
	b, err := s.Budgets.GetByUser(ctx, userID)
	if err != nil {
		return BudgetDetail{}, fmt.Errorf("get budget: %w", err)
	}
	if b == nil {
		return BudgetDetail{}, Errorf(KindNotFound, "no budget exists")
	}
	return s.detail(ctx, userID, *b)
}

// Rename changes the budget's name.
func (s *BudgetService) Rename(ctx context.Context, userID, budgetID, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return Errorf(KindValidation, "budget name must not be empty")
	}
	ok, err := s.Budgets.UpdateName(ctx, userID, budgetID, name)
	if err != nil {
		return fmt.Errorf("rename budget: %w", err)
	}
	if !ok {
		return Errorf(KindNotFound, "budget %s not found", budgetID)
	}
	return nil
}

// Delete removes the budget and all of its categories in one transaction,
// then reconciles so transactions pointing at the deleted categories revert
// to uncategorized. Returns how many transactions were recategorized.
func (s *BudgetService) Delete(ctx context.Context, userID, budgetID string) (int, error) {
	unlock := s.Locks.Lock(userID)
	defer unlock()

	err := database.WithTx(ctx, s.DB, func(tx *sql.Tx) error {
		ok, err := s.Budgets.DeleteTx(ctx, tx, userID, budgetID)
		if err != nil {
			return fmt.Errorf("delete budget: %w", err)
		}
		if !ok {
			return Errorf(KindNotFound, "budget %s not found", budgetID)
		}
		if _, err := s.Categories.DeleteByBudgetTx(ctx, tx, userID, budgetID); err != nil {
			return fmt.Errorf("delete budget categories: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	rec, err := s.Categorizer.ReconcileAll(ctx, userID)
	if err != nil {
		return 0, err
	}
	return rec.Updated, nil
}

// CategoryInput carries the caller-editable fields of a category.
type CategoryInput struct {
	Name        string
	AmountCents int64
	Keywords    []string
	Color       *string
	SortOrder   int
}

// CreateCategory adds a category to the user's budget and reconciles, since
// its keywords may capture existing transactions. Returns the category and
// the recategorized count.
func (s *BudgetService) CreateCategory(ctx context.Context, userID string, in CategoryInput) (repository.Category, int, error) {
	if err := validateCategoryInput(in); err != nil {
		return repository.Category{}, 0, err
	}

	unlock := s.Locks.Lock(userID)
	defer unlock()

	b, err := s.Budgets.GetByUser(ctx, userID)
	if err != nil {
		return repository.Category{}, 0, fmt.Errorf("create category: %w", err)
	}
	if b == nil {
		return repository.Category{}, 0, Errorf(KindPreconditionFailed, "no budget exists")
	}

	c := repository.Category{
		ID:          uuid.NewString(),
		UserID:      userID,
		BudgetID:    &b.ID,
		Name:        strings.TrimSpace(in.Name),
		AmountCents: in.AmountCents,
		Keywords:    in.Keywords,
		Color:       in.Color,
		SortOrder:   in.SortOrder,
	}
	if err := s.Categories.Insert(ctx, c); err != nil {
		return repository.Category{}, 0, fmt.Errorf("create category: %w", err)
	}

	rec, err := s.Categorizer.ReconcileAll(ctx, userID)
	if err != nil {
		return repository.Category{}, 0, err
	}
	return c, rec.Updated, nil
}

// UpdateCategory rewrites a category's editable fields and reconciles:
// keyword edits can both capture and release transactions, and a rename must
// heal every denormalized category name.
func (s *BudgetService) UpdateCategory(ctx context.Context, userID, categoryID string, in CategoryInput) (repository.Category, int, error) {
	if err := validateCategoryInput(in); err != nil {
		return repository.Category{}, 0, err
	}

	unlock := s.Locks.Lock(userID)
	defer unlock()

	existing, err := s.Categories.Get(ctx, userID, categoryID)
	if err != nil {
		return repository.Category{}, 0, fmt.Errorf("update category: %w", err)
	}
	if existing == nil {
		return repository.Category{}, 0, Errorf(KindNotFound, "category %s not found", categoryID)
	}

	c := *existing
	c.Name = strings.TrimSpace(in.Name)
	c.AmountCents = in.AmountCents
	c.Keywords = in.Keywords
	c.Color = in.Color
	c.SortOrder = in.SortOrder
	if _, err := s.Categories.Update(ctx, c); err != nil {
		return repository.Category{}, 0, fmt.Errorf("update category: %w", err)
	}

	rec, err := s.Categorizer.ReconcileAll(ctx, userID)
	if err != nil {
		return repository.Category{}, 0, err
	}
	return c, rec.Updated, nil
}

// DeleteCategory removes a category and reconciles so its transactions
// either fall to another matching category or become uncategorized.
func (s *BudgetService) DeleteCategory(ctx context.Context, userID, categoryID string) (int, error) {
	unlock := s.Locks.Lock(userID)
	defer unlock()

	ok, err := s.Categories.Delete(ctx, userID, categoryID)
	if err != nil {
		return 0, fmt.Errorf("delete category: %w", err)
	}
	if !ok {
		return 0, Errorf(KindNotFound, "category %s not found", categoryID)
	}

	rec, err := s.Categorizer.ReconcileAll(ctx, userID)
	if err != nil {
		return 0, err
	}
	return rec.Updated, nil
}

func (s *BudgetService) detail(ctx context.Context, userID string, b repository.Budget) (BudgetDetail, error) {
	cats, err := s.Categories.List(ctx, userID)
	if err != nil {
		return BudgetDetail{}, fmt.Errorf("budget categories: %w", err)
	}
	d := BudgetDetail{Budget: b, Categories: cats}
	for _, c := range cats {
		d.TotalCents += c.AmountCents
	}
	return d, nil
}

func validateCategoryInput(in CategoryInput) error {
	if strings.TrimSpace(in.Name) == "" {
		return Errorf(KindValidation, "category name must not be empty")
	}
	if in.AmountCents < 0 {
		return Errorf(KindValidation, "category amount must not be negative")
	}
	return nil
}

var seedNamespace = uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")

// seedID derives a stable uuid for seeded rows.
func seedID(userID, kind string) string {
	return uuid.NewSHA1(seedNamespace, []byte(userID+":"+kind)).String()
}
