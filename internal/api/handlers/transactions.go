package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/mbell/centsible/internal/api/middleware"
	"github.com/mbell/centsible/internal/database/repository"
	"github.com/mbell/centsible/internal/service"
)

const (
	defaultListLimit   = 50
	maxListLimit       = 500
	defaultSearchLimit = 20
)

type transactionDTO struct {
	ID               string  `json:"id"`
	AccountID        string  `json:"account_id"`
	Date             string  `json:"date"`
	Name             string  `json:"name"`
	MerchantName     *string `json:"merchant_name,omitempty"`
	Amount           int64   `json:"amount"`
	Currency         string  `json:"currency"`
	Pending          bool    `json:"pending"`
	ProviderCategory *string `json:"providerCategory,omitempty"`
	Category         *string `json:"category,omitempty"`
	CategoryName     *string `json:"categoryName,omitempty"`
	Removed          bool    `json:"removed"`
}

func toTransactionDTO(t repository.Transaction) transactionDTO {
	return transactionDTO{
		ID:               t.ID,
		AccountID:        t.AccountID,
		Date:             t.Date,
		Name:             t.Name,
		MerchantName:     t.MerchantName,
		Amount:           t.AmountCents,
		Currency:         t.Currency,
		Pending:          t.Pending,
		ProviderCategory: t.ProviderCategory,
		Category:         t.CategoryID,
		CategoryName:     t.CategoryName,
		Removed:          t.Removed,
	}
}

// ListTransactions handles GET /transactions.
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", defaultListLimit)
	if limit < 1 || limit > maxListLimit {
		limit = defaultListLimit
	}
	offset := queryInt(r, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	userID := middleware.UserID(r.Context())
	txs, err := h.Transactions.List(r.Context(), userID, limit, offset)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	out := make([]transactionDTO, 0, len(txs))
	for _, t := range txs {
		out = append(out, toTransactionDTO(t))
	}
	middleware.WriteJSON(w, http.StatusOK, out)
}

// SearchTransactions handles GET /transactions/search. Each hit carries
// suggested keywords for the manual-assign flow: its own lowercased name and
// merchant name, with near-duplicates of earlier suggestions suppressed.
func (h *Handler) SearchTransactions(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("query"))
	if query == "" {
		h.writeValidationError(w, "query must not be empty")
		return
	}
	limit := queryInt(r, "limit", defaultSearchLimit)
	if limit < 1 || limit > maxListLimit {
		limit = defaultSearchLimit
	}

	userID := middleware.UserID(r.Context())
	txs, err := h.Transactions.SearchByNamePrefix(r.Context(), userID, query, limit)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	type hitDTO struct {
		transactionDTO
		SuggestedKeywords []string `json:"suggestedKeywords"`
	}
	var seen []string
	out := make([]hitDTO, 0, len(txs))
	for _, t := range txs {
		hit := hitDTO{transactionDTO: toTransactionDTO(t), SuggestedKeywords: []string{}}
		for _, kw := range suggestKeywords(t) {
			if nearDuplicate(seen, kw) {
				continue
			}
			seen = append(seen, kw)
			hit.SuggestedKeywords = append(hit.SuggestedKeywords, kw)
		}
		out = append(out, hit)
	}
	middleware.WriteJSON(w, http.StatusOK, out)
}

// CategorizeTransaction handles POST /transactions/{id}/categorize.
func (h *Handler) CategorizeTransaction(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CategoryID     string `json:"categoryId"`
		ApplyToSimilar bool   `json:"applyToSimilar"`
	}
	if err := decode(r, &req); err != nil {
		h.writeValidationError(w, "malformed JSON body")
		return
	}
	if req.CategoryID == "" {
		h.writeValidationError(w, "categoryId is required")
		return
	}

	userID := middleware.UserID(r.Context())
	if err := h.Categorizer.Assign(r.Context(), userID, r.PathValue("id"), req.CategoryID, req.ApplyToSimilar); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// UpdateTransaction handles PUT /transactions/{id}. Absent fields keep their
// stored values.
func (h *Handler) UpdateTransaction(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name         *string `json:"name"`
		MerchantName *string `json:"merchant_name"`
		Date         *string `json:"date"`
		Amount       *int64  `json:"amount"`
		Pending      *bool   `json:"pending"`
	}
	if err := decode(r, &req); err != nil {
		h.writeValidationError(w, "malformed JSON body")
		return
	}
	if req.Name != nil && strings.TrimSpace(*req.Name) == "" {
		h.writeValidationError(w, "name must not be empty")
		return
	}

	userID := middleware.UserID(r.Context())
	id := r.PathValue("id")
	ok, err := h.Transactions.UpdateFields(r.Context(), userID, id, repository.TransactionUpdate{
		Name:         req.Name,
		MerchantName: req.MerchantName,
		Date:         req.Date,
		AmountCents:  req.Amount,
		Pending:      req.Pending,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if !ok {
		h.writeServiceError(w, r, service.Errorf(service.KindNotFound, "transaction %s not found", id))
		return
	}

	t, err := h.Transactions.Get(r.Context(), userID, id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if t == nil {
		h.writeServiceError(w, r, service.Errorf(service.KindNotFound, "transaction %s not found", id))
		return
	}
	middleware.WriteJSON(w, http.StatusOK, toTransactionDTO(*t))
}

// DeleteTransaction handles DELETE /transactions/{id}.
func (h *Handler) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())
	id := r.PathValue("id")
	ok, err := h.Transactions.Delete(r.Context(), userID, id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if !ok {
		h.writeServiceError(w, r, service.Errorf(service.KindNotFound, "transaction %s not found", id))
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"message": "transaction deleted"})
}

func suggestKeywords(t repository.Transaction) []string {
	out := []string{strings.ToLower(t.Name)}
	if t.MerchantName != nil {
		m := strings.ToLower(*t.MerchantName)
		if m != out[0] {
			out = append(out, m)
		}
	}
	return out
}

// nearDuplicate reports whether a candidate is within edit distance 2 of an
// already suggested keyword, so "starbucks #1912" and "starbucks #1913" do
// not both get offered.
func nearDuplicate(seen []string, candidate string) bool {
	for _, s := range seen {
		if levenshtein.ComputeDistance(s, candidate) <= 2 {
			return true
		}
	}
	return false
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
