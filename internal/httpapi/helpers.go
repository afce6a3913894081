package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"incidentdesk.org/internal/audit"
	"incidentdesk.org/internal/directory"
	"incidentdesk.org/internal/incident"
	"incidentdesk.org/internal/rbac"
	"incidentdesk.org/internal/session"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	body := map[string]any{"error": msg}
	if id := audit.RequestIDFromContext(r.Context()); id != "" {
		body["request_id"] = id
	}
	writeJSON(w, code, body)
}

// decodeJSON rejects unknown fields and trailing content so malformed
// payloads fail loudly instead of being half-applied.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid json: %w", err)
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errors.New("invalid json: trailing content")
	}
	return nil
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	for _, m := range allowed {
		w.Header().Add("Allow", m)
	}
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
}

// handleServiceError maps service-layer errors onto HTTP status codes.
// Authorization denials and authentication failures stay distinct.
func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, rbac.ErrUnauthorized):
		writeError(w, r, http.StatusForbidden, "access denied")
	case errors.Is(err, rbac.ErrUnauthenticated), errors.Is(err, session.ErrInvalidToken):
		writeError(w, r, http.StatusUnauthorized, "authentication required")
	case errors.Is(err, session.ErrInvalidCredentials):
		writeError(w, r, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, incident.ErrInvalidInput),
		errors.Is(err, directory.ErrInvalidInput),
		errors.Is(err, rbac.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, incident.ErrNotFound), errors.Is(err, directory.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "not found")
	case errors.Is(err, directory.ErrConflict):
		writeError(w, r, http.StatusConflict, "already exists")
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}

func principalOr401(w http.ResponseWriter, r *http.Request) (rbac.Principal, bool) {
	p, ok := rbac.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return rbac.Principal{}, false
	}
	return p, true
}
