package http

import (
	"net/http"

	"gastos/internal/core"
)

type categoryRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleListCategories(kind core.TransactionKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, _ := identityFrom(r.Context())
		cats, err := s.tracker.ListCategories(r.Context(), kind, identity.FamilyCode)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if cats == nil {
			cats = []core.Category{}
		}
		writeJSON(w, http.StatusOK, cats)
	}
}

func (s *Server) handleCreateCategory(kind core.TransactionKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, _ := identityFrom(r.Context())

		var req categoryRequest
		if err := decodeBody(r, &req); err != nil {
			writeError(w, r, err)
			return
		}

		saved, err := s.tracker.AddCategory(r.Context(), kind, core.Category{
			Name:       sanitizeInput(req.Name),
			FamilyCode: identity.FamilyCode,
		})
		if err != nil {
			writeError(w, r, err)
			return
		}

		writeJSON(w, http.StatusCreated, saved)
	}
}

// handleDeleteCategory removes a category. Existing transactions keep
// the category name as plain text.
func (s *Server) handleDeleteCategory(kind core.TransactionKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, _ := identityFrom(r.Context())

		if err := s.tracker.DeleteCategory(r.Context(), kind, r.PathValue("id"), identity.FamilyCode); err != nil {
			writeError(w, r, err)
			return
		}

		writeJSON(w, http.StatusNoContent, nil)
	}
}
