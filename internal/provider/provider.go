// Package provider talks to the external transaction aggregator. The engine
// only depends on the Client interface; the HTTP implementation lives in
// client.go and tests substitute a fake.
package provider

import "context"

// Transaction is one transaction as the provider reports it. Amount is in
// major currency units with the provider's native sign: positive = money
// leaving the account.
type Transaction struct {
	ID           string  `json:"transaction_id"`
	AccountID    string  `json:"account_id"`
	Date         string  `json:"date"`
	Name         string  `json:"name"`
	MerchantName string  `json:"merchant_name"`
	Amount       float64 `json:"amount"`
	Currency     string  `json:"iso_currency_code"`
	Pending      bool    `json:"pending"`
	Category     string  `json:"personal_finance_category"`
}

// SyncPage is one page of the incremental sync protocol. Removed lists
// transaction ids no longer present upstream.
type SyncPage struct {
	Added      []Transaction `json:"added"`
	Modified   []Transaction `json:"modified"`
	Removed    []string      `json:"removed"`
	NextCursor string        `json:"next_cursor"`
	HasMore    bool          `json:"has_more"`
}

// Account is a bank account as the provider reports it.
type Account struct {
	ID            string `json:"account_id"`
	Name          string `json:"name"`
	OfficialName  string `json:"official_name"`
	Mask          string `json:"mask"`
	Subtype       string `json:"subtype"`
	Type          string `json:"type"`
	InstitutionID string `json:"institution_id"`
}

// Institution is provider institution metadata.
type Institution struct {
	ID   string `json:"institution_id"`
	Name string `json:"name"`
	Logo string `json:"logo"`
}

// ExchangeResult is the outcome of a public-token exchange.
type ExchangeResult struct {
	AccessToken string `json:"access_token"`
	ItemID      string `json:"item_id"`
}

// Client defines the provider operations the engine needs.
type Client interface {
	CreateLinkToken(ctx context.Context, userID string) (string, error)
	ExchangePublicToken(ctx context.Context, publicToken string) (ExchangeResult, error)
	ListAccounts(ctx context.Context, accessToken string) ([]Account, error)
	GetInstitution(ctx context.Context, institutionID string) (Institution, error)
	// SyncTransactions fetches one page of deltas after cursor. An empty
	// cursor means "from the beginning".
	SyncTransactions(ctx context.Context, accessToken, cursor string) (SyncPage, error)
}
