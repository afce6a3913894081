package httpapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"incidentdesk.org/internal/incident"
)

type createIncidentRequest struct {
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	Category      string    `json:"category"`
	OccurredAt    time.Time `json:"occurred_at"`
	AttachmentRef string    `json:"attachment_ref"`
}

type patchIncidentRequest struct {
	Status            *string `json:"status"`
	AssigneeID        *string `json:"assignee_id"`
	ResolutionComment *string `json:"resolution_comment"`
}

func (a *API) handleIncidentsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.createIncident(w, r)
	case http.MethodGet:
		a.listIncidents(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) createIncident(w http.ResponseWriter, r *http.Request) {
	p, ok := principalOr401(w, r)
	if !ok {
		return
	}
	var req createIncidentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	inc, err := a.incidents.Create(r.Context(), p, incident.CreateInput{
		Title:         req.Title,
		Description:   req.Description,
		Category:      req.Category,
		OccurredAt:    req.OccurredAt,
		AttachmentRef: req.AttachmentRef,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, inc)
}

func (a *API) listIncidents(w http.ResponseWriter, r *http.Request) {
	p, ok := principalOr401(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	f := incident.Filter{
		CreatedBy: strings.TrimSpace(q.Get("created_by")),
		Limit:     queryInt(q.Get("limit")),
		Offset:    queryInt(q.Get("offset")),
	}
	if raw := strings.TrimSpace(q.Get("status")); raw != "" {
		status, err := incident.ParseStatus(raw)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		f.Status = status
	}
	if raw := strings.TrimSpace(q.Get("category")); raw != "" {
		category, err := incident.ParseCategory(raw)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		f.Category = category
	}
	incidents, err := a.incidents.List(r.Context(), p, f)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if incidents == nil {
		incidents = []incident.Incident{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"incidents": incidents})
}

func (a *API) handleIncidentResource(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/v1/incidents/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, r, http.StatusNotFound, "not found")
		return
	}
	switch r.Method {
	case http.MethodGet:
		a.getIncident(w, r, id)
	case http.MethodPatch:
		a.updateIncident(w, r, id)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPatch)
	}
}

func (a *API) getIncident(w http.ResponseWriter, r *http.Request, id string) {
	p, ok := principalOr401(w, r)
	if !ok {
		return
	}
	inc, err := a.incidents.Get(r.Context(), p, id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, inc)
}

func (a *API) updateIncident(w http.ResponseWriter, r *http.Request, id string) {
	p, ok := principalOr401(w, r)
	if !ok {
		return
	}
	var req patchIncidentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	patch := incident.Patch{
		AssigneeID:        req.AssigneeID,
		ResolutionComment: req.ResolutionComment,
	}
	if req.Status != nil {
		status := incident.Status(*req.Status)
		patch.Status = &status
	}
	inc, err := a.incidents.Update(r.Context(), p, id, patch)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, inc)
}

func queryInt(raw string) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
