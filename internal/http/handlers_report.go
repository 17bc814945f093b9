package http

import (
	"net/http"
	"time"

	"gastos/internal/core"
	"gastos/internal/log"
)

// serveCachedReport returns a cached body when present, otherwise calls
// build, caches its result and writes it. Reports are read-heavy and
// tolerate five minutes of staleness; mutations clear the cache anyway.
func (s *Server) serveCachedReport(w http.ResponseWriter, r *http.Request, familyCode string, build func() (any, error)) {
	key := familyCode + "|" + r.URL.Path + "?" + r.URL.RawQuery

	if entry, found := s.reportCache.Get(key); found && entry.FamilyCode == familyCode {
		s.logger.DebugContext(r.Context(), "Report cache hit", log.FieldPath, r.URL.Path)
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(entry.Body)
		return
	}

	result, err := build()
	if err != nil {
		writeError(w, r, err)
		return
	}

	body, err := marshalForReplay(result)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.reportCache.Set(key, cachedReport{FamilyCode: familyCode, Body: body})

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// handleSummaryReport returns current-month totals and balance.
func (s *Server) handleSummaryReport(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFrom(r.Context())
	s.serveCachedReport(w, r, identity.FamilyCode, func() (any, error) {
		return s.tracker.Summary(r.Context(), identity.FamilyCode, time.Now())
	})
}

// handleCategoryReport groups one kind's transactions by category.
// Query parameters: kind (expense|income, default expense), start, end
// (YYYY-MM-DD, both optional and inclusive).
func (s *Server) handleCategoryReport(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFrom(r.Context())

	kind := core.Expense
	if v := r.URL.Query().Get("kind"); v != "" {
		kind = core.TransactionKind(v)
		if err := kind.Validate(); err != nil {
			writeError(w, r, err)
			return
		}
	}

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

	s.serveCachedReport(w, r, identity.FamilyCode, func() (any, error) {
		groups, err := s.tracker.CategoryReport(r.Context(), kind, identity.FamilyCode, start, end)
		if err != nil {
			return nil, err
		}
		if groups == nil {
			groups = []core.CategoryTotal{}
		}
		return groups, nil
	})
}

// handleBudgetReport compares current-month spending against budgets.
func (s *Server) handleBudgetReport(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFrom(r.Context())
	s.serveCachedReport(w, r, identity.FamilyCode, func() (any, error) {
		report, err := s.tracker.BudgetReport(r.Context(), identity.FamilyCode, time.Now())
		if err != nil {
			return nil, err
		}
		if report == nil {
			report = []core.BudgetComparison{}
		}
		return report, nil
	})
}
