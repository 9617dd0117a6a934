// Package handlers implements the HTTP surface. Handlers stay thin: decode,
// call a service, translate the result or the classified error.
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/mbell/centsible/internal/api/middleware"
	"github.com/mbell/centsible/internal/database/repository"
	"github.com/mbell/centsible/internal/service"
)

// Handler carries the services behind the HTTP surface.
type Handler struct {
	Link         *service.LinkService
	Sync         *service.SyncService
	Accounts     *service.AccountService
	Budgets      *service.BudgetService
	Categorizer  *service.CategorizerService
	Transactions *repository.TransactionRepo
	Log          zerolog.Logger
}

// Health reports liveness. Mounted outside auth.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// decode parses a JSON body into dst. An empty body is allowed so endpoints
// with optional bodies can use zero-value inputs.
func decode(r *http.Request, dst interface{}) error {
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// writeServiceError maps the error taxonomy onto HTTP statuses. Unclassified
// errors are logged and surfaced as an opaque 500.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	kind := service.KindOf(err)
	var status int
	switch kind {
	case service.KindUnauthenticated:
		status = http.StatusUnauthorized
	case service.KindNotFound:
		status = http.StatusNotFound
	case service.KindConflict:
		status = http.StatusConflict
	case service.KindPreconditionFailed, service.KindValidation:
		status = http.StatusBadRequest
	case service.KindUpstream:
		status = http.StatusInternalServerError
	default:
		h.Log.Error().Err(err).Str("path", r.URL.Path).Msg("unhandled error")
		middleware.WriteError(w, http.StatusInternalServerError, "INTERNAL", "internal server error")
		return
	}

	var se *service.Error
	errors.As(err, &se)
	middleware.WriteError(w, status, string(kind), se.Message)
}

func (h *Handler) writeValidationError(w http.ResponseWriter, message string) {
	middleware.WriteError(w, http.StatusBadRequest, string(service.KindValidation), message)
}
