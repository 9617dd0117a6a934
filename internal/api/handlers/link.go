package handlers

import (
	"net/http"

	"github.com/mbell/centsible/internal/api/middleware"
)

// CreateLinkToken handles POST /create-link-token.
func (h *Handler) CreateLinkToken(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())
	token, err := h.Link.CreateLinkToken(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"link_token": token})
}

// ExchangePublicToken handles POST /exchange-public-token.
func (h *Handler) ExchangePublicToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PublicToken string `json:"public_token"`
	}
	if err := decode(r, &req); err != nil {
		h.writeValidationError(w, "malformed JSON body")
		return
	}
	userID := middleware.UserID(r.Context())
	if err := h.Link.ExchangePublicToken(r.Context(), userID, req.PublicToken); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// SyncTransactions handles POST /sync-transactions.
func (h *Handler) SyncTransactions(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())
	res, err := h.Sync.Sync(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, res)
}

// Recategorize handles POST /recategorize.
func (h *Handler) Recategorize(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())
	res, err := h.Categorizer.ReconcileAll(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, res)
}
