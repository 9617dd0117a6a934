package repository

import "time"

// Credential is the per-user provider access record. Singleton under user
// scope; cursor only ever advances, and only inside a sync commit.
type Credential struct {
	UserID      string
	AccessToken string
	ItemID      string
	Cursor      *string
	LastSyncAt  *time.Time
}

// Budget represents a budget row. At most one exists per user.
type Budget struct {
	ID     string
	UserID string
	Name   string
}

// Category represents a category row. Keywords are an ordered list; their
// stored order together with (sort_order, name) enumeration order defines
// first-match-wins categorization.
type Category struct {
	ID          string
	UserID      string
	BudgetID    *string
	Name        string
	AmountCents int64
	Keywords    []string
	Color       *string
	SortOrder   int
}

// Transaction represents a transaction row. ID is the provider transaction
// id and acts as the idempotent upsert key. AmountCents is minor units,
// positive = money leaving the account. CategoryName is a denormalized copy
// of the assigned category's name, recomputed by reconciliation.
type Transaction struct {
	ID               string
	UserID           string
	AccountID        string
	Date             string
	Name             string
	MerchantName     *string
	AmountCents      int64
	Currency         string
	Pending          bool
	ProviderCategory *string
	CategoryID       *string
	CategoryName     *string
	Removed          bool
	UpdatedAt        time.Time
}

// Account represents a provider bank account mirrored locally.
type Account struct {
	ID              string
	UserID          string
	Name            string
	OfficialName    *string
	Mask            *string
	Subtype         *string
	Type            *string
	InstitutionID   string
	InstitutionName string
	InstitutionLogo *string
}
