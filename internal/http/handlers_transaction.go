package http

import (
	"net/http"

	"gastos/internal/auth"
	"gastos/internal/core"
)

type transactionRequest struct {
	Amount      string `json:"amount"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Date        string `json:"date"`
}

func (req transactionRequest) toTransaction(identity auth.Identity) (core.Transaction, error) {
	amount, err := core.ParseAmount(req.Amount)
	if err != nil {
		return core.Transaction{}, err
	}
	date, err := core.ParseDate(req.Date)
	if err != nil {
		return core.Transaction{}, err
	}
	return core.Transaction{
		Amount:      amount,
		Description: sanitizeInput(req.Description),
		Category:    sanitizeInput(req.Category),
		Date:        date,
		FamilyCode:  identity.FamilyCode,
		CreatedBy:   identity.UserID,
	}, nil
}

// handleSnapshot loads the family's five collections in one response,
// the first call a client makes after signing in.
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFrom(r.Context())
	snap, err := s.tracker.LoadAll(r.Context(), identity.FamilyCode)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// handleListTransactions returns the family's transactions, optionally
// narrowed by start, end (YYYY-MM-DD, inclusive) and category query
// parameters.
func (s *Server) handleListTransactions(kind core.TransactionKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, _ := identityFrom(r.Context())

		start, err := parseDateParam(r, "start")
		if err != nil {
			writeError(w, r, err)
			return
		}
		end, err := parseDateParam(r, "end")
		if err != nil {
			writeError(w, r, err)
			return
		}

		txs, err := s.tracker.ListTransactions(r.Context(), kind, identity.FamilyCode)
		if err != nil {
			writeError(w, r, err)
			return
		}

		txs = core.FilterByDateRange(txs, start, end)
		if category := r.URL.Query().Get("category"); category != "" {
			txs = core.FilterByCategory(txs, category)
		}
		if txs == nil {
			txs = []core.Transaction{}
		}
		writeJSON(w, http.StatusOK, txs)
	}
}

func (s *Server) handleCreateTransaction(kind core.TransactionKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, _ := identityFrom(r.Context())

		// Retried submissions with the same key replay the original
		// response instead of inserting twice.
		if key := r.Header.Get("Idempotency-Key"); key != "" {
			cacheKey := identity.FamilyCode + "|" + r.URL.Path + "|" + key
			if prev, found := s.idempotencyCache.Get(cacheKey); found {
				w.Header().Set("X-Idempotent-Replay", "true")
				w.Header().Set("Content-Type", "application/json; charset=utf-8")
				w.WriteHeader(prev.Status)
				_, _ = w.Write(prev.Body)
				return
			}
		}

		var req transactionRequest
		if err := decodeBody(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		tx, err := req.toTransaction(identity)
		if err != nil {
			writeError(w, r, err)
			return
		}

		saved, err := s.tracker.AddTransaction(r.Context(), kind, tx)
		if err != nil {
			writeError(w, r, err)
			return
		}

		s.invalidateReports()

		if key := r.Header.Get("Idempotency-Key"); key != "" {
			body, merr := marshalForReplay(saved)
			if merr == nil {
				cacheKey := identity.FamilyCode + "|" + r.URL.Path + "|" + key
				s.idempotencyCache.Set(cacheKey, idempotentResponse{Status: http.StatusCreated, Body: body})
			}
		}

		writeJSON(w, http.StatusCreated, saved)
	}
}

func (s *Server) handleUpdateTransaction(kind core.TransactionKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, _ := identityFrom(r.Context())

		var req transactionRequest
		if err := decodeBody(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		tx, err := req.toTransaction(identity)
		if err != nil {
			writeError(w, r, err)
			return
		}
		tx.ID = r.PathValue("id")

		if err := s.tracker.UpdateTransaction(r.Context(), kind, tx); err != nil {
			writeError(w, r, err)
			return
		}

		s.invalidateReports()
		writeJSON(w, http.StatusOK, tx)
	}
}

func (s *Server) handleDeleteTransaction(kind core.TransactionKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, _ := identityFrom(r.Context())

		if err := s.tracker.DeleteTransaction(r.Context(), kind, r.PathValue("id"), identity.FamilyCode); err != nil {
			writeError(w, r, err)
			return
		}

		s.invalidateReports()
		writeJSON(w, http.StatusNoContent, nil)
	}
}
