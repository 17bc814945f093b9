package http

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"gastos/internal/backup"
)

// handleBackupExport streams the family's full data set as a
// downloadable JSON document.
func (s *Server) handleBackupExport(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFrom(r.Context())

	doc, err := s.backups.Export(r.Context(), identity.FamilyCode)
	if err != nil {
		writeError(w, r, err)
		return
	}

	body, err := backup.Encode(doc)
	if err != nil {
		writeError(w, r, err)
		return
	}

	filename := fmt.Sprintf("gastos-backup-%s-%s.json",
		identity.FamilyCode, time.Now().UTC().Format("2006-01-02"))
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

type restoreResponse struct {
	Restored bool `json:"restored"`
}

// handleBackupRestore replaces the family's data with an uploaded
// document. The document body is the raw backup JSON; the confirm=true
// query parameter acknowledges that current data will be wiped.
func (s *Server) handleBackupRestore(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFrom(r.Context())

	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, r, fmt.Errorf("%w: %s", errInvalidBody, err))
		return
	}

	confirmed := r.URL.Query().Get("confirm") == "true"
	if err := s.backups.Restore(r.Context(), identity.FamilyCode, identity.UserID, raw, confirmed); err != nil {
		writeError(w, r, err)
		return
	}

	s.invalidateReports()
	writeJSON(w, http.StatusOK, restoreResponse{Restored: true})
}
