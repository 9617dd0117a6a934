package handlers

import (
	"net/http"

	"github.com/mbell/centsible/internal/api/middleware"
	"github.com/mbell/centsible/internal/database/repository"
	"github.com/mbell/centsible/internal/service"
)

type categoryDTO struct {
	ID        string   `json:"id"`
	BudgetID  *string  `json:"budgetId,omitempty"`
	Name      string   `json:"name"`
	Amount    int64    `json:"amount"`
	Keywords  []string `json:"keywords"`
	Color     *string  `json:"color,omitempty"`
	SortOrder int      `json:"sortOrder"`
}

func toCategoryDTO(c repository.Category) categoryDTO {
	kw := c.Keywords
	if kw == nil {
		kw = []string{}
	}
	return categoryDTO{
		ID:        c.ID,
		BudgetID:  c.BudgetID,
		Name:      c.Name,
		Amount:    c.AmountCents,
		Keywords:  kw,
		Color:     c.Color,
		SortOrder: c.SortOrder,
	}
}

type budgetDTO struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	TotalBudget int64         `json:"totalBudget"`
	Categories  []categoryDTO `json:"categories"`
}

func toBudgetDTO(d service.BudgetDetail) budgetDTO {
	dto := budgetDTO{
		ID:          d.Budget.ID,
		Name:        d.Budget.Name,
		TotalBudget: d.TotalCents,
		Categories:  make([]categoryDTO, 0, len(d.Categories)),
	}
	for _, c := range d.Categories {
		dto.Categories = append(dto.Categories, toCategoryDTO(c))
	}
	return dto
}

type categoryRequest struct {
	Name      string   `json:"name"`
	Amount    int64    `json:"amount"`
	Keywords  []string `json:"keywords"`
	Color     *string  `json:"color"`
	SortOrder int      `json:"sortOrder"`
}

func (req categoryRequest) input() service.CategoryInput {
	return service.CategoryInput{
		Name:        req.Name,
		AmountCents: req.Amount,
		Keywords:    req.Keywords,
		Color:       req.Color,
		SortOrder:   req.SortOrder,
	}
}

// GetBudget handles GET /budgets.
func (h *Handler) GetBudget(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())
	d, err := h.Budgets.Get(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, toBudgetDTO(d))
}

// CreateBudget handles POST /budgets.
func (h *Handler) CreateBudget(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := decode(r, &req); err != nil {
		h.writeValidationError(w, "malformed JSON body")
		return
	}
	userID := middleware.UserID(r.Context())
	b, err := h.Budgets.Create(r.Context(), userID, req.Name)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, budgetDTO{
		ID:         b.ID,
		Name:       b.Name,
		Categories: []categoryDTO{},
	})
}

// RenameBudget handles PUT /budgets/{id}.
func (h *Handler) RenameBudget(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := decode(r, &req); err != nil {
		h.writeValidationError(w, "malformed JSON body")
		return
	}
	userID := middleware.UserID(r.Context())
	if err := h.Budgets.Rename(r.Context(), userID, r.PathValue("id"), req.Name); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	d, err := h.Budgets.Get(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, toBudgetDTO(d))
}

// DeleteBudget handles DELETE /budgets/{id}.
func (h *Handler) DeleteBudget(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())
	recategorized, err := h.Budgets.Delete(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"message":       "budget deleted",
		"recategorized": recategorized,
	})
}

// InitializeAccount handles POST /initialize-account.
func (h *Handler) InitializeAccount(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())
	d, err := h.Budgets.Initialize(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, toBudgetDTO(d))
}

// ListCategories handles GET /categories.
func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())
	d, err := h.Budgets.Get(r.Context(), userID)
	if err != nil {
		if service.KindOf(err) == service.KindNotFound {
			middleware.WriteJSON(w, http.StatusOK, []categoryDTO{})
			return
		}
		h.writeServiceError(w, r, err)
		return
	}
	out := make([]categoryDTO, 0, len(d.Categories))
	for _, c := range d.Categories {
		out = append(out, toCategoryDTO(c))
	}
	middleware.WriteJSON(w, http.StatusOK, out)
}

// CreateCategory handles POST /categories.
func (h *Handler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := decode(r, &req); err != nil {
		h.writeValidationError(w, "malformed JSON body")
		return
	}
	userID := middleware.UserID(r.Context())
	c, recategorized, err := h.Budgets.CreateCategory(r.Context(), userID, req.input())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"category":      toCategoryDTO(c),
		"recategorized": recategorized,
	})
}

// UpdateCategory handles PUT /categories/{id}.
func (h *Handler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := decode(r, &req); err != nil {
		h.writeValidationError(w, "malformed JSON body")
		return
	}
	userID := middleware.UserID(r.Context())
	c, recategorized, err := h.Budgets.UpdateCategory(r.Context(), userID, r.PathValue("id"), req.input())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"category":      toCategoryDTO(c),
		"recategorized": recategorized,
	})
}

// DeleteCategory handles DELETE /categories/{id}.
func (h *Handler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())
	recategorized, err := h.Budgets.DeleteCategory(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"message":       "category deleted",
		"recategorized": recategorized,
	})
}
