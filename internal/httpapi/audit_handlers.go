package httpapi

import (
	"net/http"
	"strings"

	"incidentdesk.org/internal/audit"
)

func (a *API) handleAuditLog(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	p, ok := principalOr401(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	entries, err := a.auditlog.List(r.Context(), p, audit.Filter{
		ActorID: strings.TrimSpace(q.Get("actor_id")),
		Action:  strings.TrimSpace(q.Get("action")),
		Limit:   queryInt(q.Get("limit")),
		Offset:  queryInt(q.Get("offset")),
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if entries == nil {
		entries = []audit.Entry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}
