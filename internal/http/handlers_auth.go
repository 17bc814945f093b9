package http

import (
	"net/http"

	"gastos/internal/auth"
)

type credentialsRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	FullName   string `json:"full_name,omitempty"`
	FamilyCode string `json:"family_code,omitempty"`
}

type sessionResponse struct {
	Token    string        `json:"token"`
	Identity auth.Identity `json:"identity"`
}

// handleSignUp registers a profile. An empty family code starts a new
// household with seeded default categories; a provided one joins an
// existing household.
func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	identity, token, err := s.auth.SignUp(r.Context(),
		sanitizeInput(req.Email), req.Password,
		sanitizeInput(req.FullName), sanitizeInput(req.FamilyCode))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, sessionResponse{Token: token, Identity: identity})
}

func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	identity, token, err := s.auth.SignIn(r.Context(), sanitizeInput(req.Email), req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, sessionResponse{Token: token, Identity: identity})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFrom(r.Context())
	if !ok {
		writeError(w, r, auth.ErrAuthRequired)
		return
	}
	writeJSON(w, http.StatusOK, identity)
}
