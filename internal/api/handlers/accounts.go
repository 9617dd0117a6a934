package handlers

import (
	"fmt"
	"net/http"

	"github.com/mbell/centsible/internal/api/middleware"
	"github.com/mbell/centsible/internal/database/repository"
)

type accountDTO struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	OfficialName    *string `json:"officialName,omitempty"`
	Mask            *string `json:"mask,omitempty"`
	Subtype         *string `json:"subtype,omitempty"`
	Type            *string `json:"type,omitempty"`
	InstitutionID   string  `json:"institutionId"`
	InstitutionName string  `json:"institutionName"`
	InstitutionLogo *string `json:"institutionLogo,omitempty"`
}

func toAccountDTO(a repository.Account) accountDTO {
	return accountDTO{
		ID:              a.ID,
		Name:            a.Name,
		OfficialName:    a.OfficialName,
		Mask:            a.Mask,
		Subtype:         a.Subtype,
		Type:            a.Type,
		InstitutionID:   a.InstitutionID,
		InstitutionName: a.InstitutionName,
		InstitutionLogo: a.InstitutionLogo,
	}
}

// RefreshAccounts handles POST /get-accounts.
func (h *Handler) RefreshAccounts(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())
	res, err := h.Accounts.Refresh(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, res)
}

// ListAccounts handles GET /accounts: the grouped view plus the flat list.
func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())
	groups, err := h.Accounts.ListGrouped(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	type groupDTO struct {
		InstitutionID   string       `json:"institutionId"`
		InstitutionName string       `json:"institutionName"`
		InstitutionLogo *string      `json:"institutionLogo,omitempty"`
		Accounts        []accountDTO `json:"accounts"`
	}
	institutions := make([]groupDTO, 0, len(groups))
	flat := make([]accountDTO, 0)
	for _, g := range groups {
		dto := groupDTO{
			InstitutionID:   g.InstitutionID,
			InstitutionName: g.InstitutionName,
			InstitutionLogo: g.InstitutionLogo,
			Accounts:        make([]accountDTO, 0, len(g.Accounts)),
		}
		for _, a := range g.Accounts {
			ad := toAccountDTO(a)
			dto.Accounts = append(dto.Accounts, ad)
			flat = append(flat, ad)
		}
		institutions = append(institutions, dto)
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"institutions": institutions,
		"accounts":     flat,
	})
}

// DeleteAccount handles DELETE /accounts/{id}. The optional body selects the
// transaction cascade.
func (h *Handler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DeleteTransactions bool `json:"deleteTransactions"`
	}
	if err := decode(r, &req); err != nil {
		h.writeValidationError(w, "malformed JSON body")
		return
	}
	userID := middleware.UserID(r.Context())
	accountID := r.PathValue("id")

	deleted, err := h.Accounts.Delete(r.Context(), userID, accountID, req.DeleteTransactions)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"message":             fmt.Sprintf("account %s deleted", accountID),
		"transactionsDeleted": deleted,
	})
}
