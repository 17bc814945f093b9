package http

import (
	"net/http"

	"gastos/internal/core"
)

type budgetRequest struct {
	Category string `json:"category"`
	Amount   string `json:"amount"`
}

func (s *Server) handleListBudgets(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFrom(r.Context())
	budgets, err := s.tracker.ListBudgets(r.Context(), identity.FamilyCode)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if budgets == nil {
		budgets = []core.Budget{}
	}
	writeJSON(w, http.StatusOK, budgets)
}

// handleSetBudget creates or replaces the budget of one category. A
// category holds at most one budget per family, so PUT is the natural
// verb: submitting twice converges on a single row.
func (s *Server) handleSetBudget(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFrom(r.Context())

	var req budgetRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	amount, err := core.ParseBudgetAmount(req.Amount)
	if err != nil {
		writeError(w, r, err)
		return
	}

	saved, err := s.tracker.SetBudget(r.Context(), core.Budget{
		Category:   sanitizeInput(req.Category),
		Amount:     amount,
		FamilyCode: identity.FamilyCode,
		CreatedBy:  identity.UserID,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	s.invalidateReports()
	writeJSON(w, http.StatusOK, saved)
}

func (s *Server) handleDeleteBudget(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFrom(r.Context())

	if err := s.tracker.DeleteBudget(r.Context(), r.PathValue("id"), identity.FamilyCode); err != nil {
		writeError(w, r, err)
		return
	}

	s.invalidateReports()
	writeJSON(w, http.StatusNoContent, nil)
}
