package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/mbell/centsible/internal/database/repository"
)

// CategorizerService assigns transactions to user categories and keeps the
// whole collection consistent through full reconciliation.
type CategorizerService struct {
	Categories   *repository.CategoryRepo
	Transactions *repository.TransactionRepo
}

// providerBuckets maps provider category labels to generic sub-keywords. The
// fallback fires when no user keyword matched directly: a user keyword that
// contains one of the bucket's sub-keywords selects that category. Coarser
// than direct keyword matching on purpose.
var providerBuckets = map[string][]string{
	"FOOD_AND_DRINK":      {"food", "restaurant", "grocery", "coffee", "dining"},
	"GENERAL_MERCHANDISE": {"shopping", "clothing", "merchandise"},
	"TRANSPORTATION":      {"transport", "gas", "fuel", "car", "transit", "parking"},
	"TRAVEL":              {"travel", "hotel", "flight"},
	"RENT_AND_UTILITIES":  {"rent", "utilities", "electric", "water", "internet", "phone"},
	"ENTERTAINMENT":       {"entertainment", "movie", "music", "game"},
	"MEDICAL":             {"health", "medical", "pharmacy", "doctor"},
	"PERSONAL_CARE":       {"personal", "gym", "fitness", "beauty"},
	"GENERAL_SERVICES":    {"service", "subscription", "insurance"},
	"LOAN_PAYMENTS":       {"loan", "mortgage", "debt"},
	"BANK_FEES":           {"fee", "bank"},
	"INCOME":              {"income", "salary", "payroll", "deposit"},
	"TRANSFER_IN":         {"transfer", "deposit"},
	"TRANSFER_OUT":        {"transfer", "savings"},
}

// Categorize returns the category a transaction belongs to, or nil for
// uncategorized. Deterministic and pure: keyword substring match over
// lowercased name + merchant name, first match in category enumeration
// order wins; then the provider-category bucket fallback; then nil.
func Categorize(t repository.Transaction, categories []repository.Category) *repository.Category {
	search := strings.ToLower(t.Name)
	if t.MerchantName != nil {
		search += " " + strings.ToLower(*t.MerchantName)
	}

	for i := range categories {
		for _, kw := range categories[i].Keywords {
			kw = strings.ToLower(kw)
			if kw != "" && strings.Contains(search, kw) {
				return &categories[i]
			}
		}
	}

	if t.ProviderCategory == nil {
		return nil
	}
	subs, ok := providerBuckets[strings.ToUpper(*t.ProviderCategory)]
	if !ok {
		return nil
	}
	for i := range categories {
		for _, kw := range categories[i].Keywords {
			kw = strings.ToLower(kw)
			for _, sub := range subs {
				if strings.Contains(kw, sub) {
					return &categories[i]
				}
			}
		}
	}
	return nil
}

// ReconcileResult reports a full reconciliation pass.
type ReconcileResult struct {
	Updated int `json:"updated"`
	Total   int `json:"total"`
}

// ReconcileAll recomputes the category of every transaction and writes only
// the rows whose assignment (id or denormalized name) actually changed.
// Idempotent: a second pass with no intervening writes updates nothing.
func (s *CategorizerService) ReconcileAll(ctx context.Context, userID string) (ReconcileResult, error) {
	cats, err := s.Categories.List(ctx, userID)
	if err != nil {
		return ReconcileResult{}, fmt.Errorf("reconcile: list categories: %w", err)
	}
	txs, err := s.Transactions.ListAll(ctx, userID)
	if err != nil {
		return ReconcileResult{}, fmt.Errorf("reconcile: list transactions: %w", err)
	}

	res := ReconcileResult{Total: len(txs)}
	for _, t := range txs {
		var wantID, wantName *string
		if match := Categorize(t, cats); match != nil {
			wantID, wantName = &match.ID, &match.Name
		}
		if strPtrEqual(t.CategoryID, wantID) && strPtrEqual(t.CategoryName, wantName) {
			continue
		}
		if err := s.Transactions.UpdateCategory(ctx, userID, t.ID, wantID, wantName); err != nil {
			return ReconcileResult{}, fmt.Errorf("reconcile: update %s: %w", t.ID, err)
		}
		res.Updated++
	}
	return res, nil
}

// Assign sets a transaction's category by direct user action, bypassing
// matching. With applyToSimilar the transaction's own lowercased name and
// merchant name are appended to the category's keywords (deduplicated) so
// future automatic matches widen. Growth is unbounded and unnormalized; a
// known quality limitation of the heuristic.
func (s *CategorizerService) Assign(ctx context.Context, userID, transactionID, categoryID string, applyToSimilar bool) error {
	t, err := s.Transactions.Get(ctx, userID, transactionID)
	if err != nil {
		return fmt.Errorf("assign: get transaction: %w", err)
	}
	if t == nil {
		return Errorf(KindNotFound, "transaction %s not found", transactionID)
	}
	cat, err := s.Categories.Get(ctx, userID, categoryID)
	if err != nil {
		return fmt.Errorf("assign: get category: %w", err)
	}
	if cat == nil {
		return Errorf(KindNotFound, "category %s not found", categoryID)
	}

	if err := s.Transactions.UpdateCategory(ctx, userID, t.ID, &cat.ID, &cat.Name); err != nil {
		return fmt.Errorf("assign: update transaction: %w", err)
	}

	if !applyToSimilar {
		return nil
	}
	keywords := cat.Keywords
	keywords = appendKeyword(keywords, strings.ToLower(t.Name))
	if t.MerchantName != nil {
		keywords = appendKeyword(keywords, strings.ToLower(*t.MerchantName))
	}
	if len(keywords) == len(cat.Keywords) {
		return nil
	}
	if err := s.Categories.UpdateKeywords(ctx, userID, cat.ID, keywords); err != nil {
		return fmt.Errorf("assign: grow keywords: %w", err)
	}
	return nil
}

func appendKeyword(keywords []string, kw string) []string {
	kw = strings.TrimSpace(kw)
	if kw == "" {
		return keywords
	}
	for _, existing := range keywords {
		if strings.EqualFold(existing, kw) {
			return keywords
		}
	}
	return append(keywords, kw)
}

func strPtrEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
