// Package api assembles the HTTP surface: routes plus the middleware chain.
package api

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/mbell/centsible/internal/api/handlers"
	"github.com/mbell/centsible/internal/api/middleware"
)

// Routes builds the full handler: every endpoint behind bearer auth except
// /health, wrapped in recovery, logging, request id, and CORS.
func Routes(h *handlers.Handler, log zerolog.Logger, jwtSecret string) http.Handler {
	authed := http.NewServeMux()
	authed.HandleFunc("POST /create-link-token", h.CreateLinkToken)
	authed.HandleFunc("POST /exchange-public-token", h.ExchangePublicToken)
	authed.HandleFunc("POST /sync-transactions", h.SyncTransactions)
	authed.HandleFunc("POST /recategorize", h.Recategorize)
	authed.HandleFunc("POST /initialize-account", h.InitializeAccount)

	authed.HandleFunc("POST /get-accounts", h.RefreshAccounts)
	authed.HandleFunc("GET /accounts", h.ListAccounts)
	authed.HandleFunc("DELETE /accounts/{id}", h.DeleteAccount)

	authed.HandleFunc("GET /budgets", h.GetBudget)
	authed.HandleFunc("POST /budgets", h.CreateBudget)
	authed.HandleFunc("PUT /budgets/{id}", h.RenameBudget)
	authed.HandleFunc("DELETE /budgets/{id}", h.DeleteBudget)

	authed.HandleFunc("GET /categories", h.ListCategories)
	authed.HandleFunc("POST /categories", h.CreateCategory)
	authed.HandleFunc("PUT /categories/{id}", h.UpdateCategory)
	authed.HandleFunc("DELETE /categories/{id}", h.DeleteCategory)

	authed.HandleFunc("GET /transactions", h.ListTransactions)
	authed.HandleFunc("GET /transactions/search", h.SearchTransactions)
	authed.HandleFunc("POST /transactions/{id}/categorize", h.CategorizeTransaction)
	authed.HandleFunc("PUT /transactions/{id}", h.UpdateTransaction)
	authed.HandleFunc("DELETE /transactions/{id}", h.DeleteTransaction)

	root := http.NewServeMux()
	root.HandleFunc("GET /health", h.Health)
	root.Handle("/", middleware.Auth(jwtSecret)(authed))

	var handler http.Handler = root
	handler = middleware.CORS(handler)
	handler = middleware.RequestID(handler)
	handler = middleware.Logger(log)(handler)
	handler = middleware.Recovery(log)(handler)
	return handler
}
