package incident

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"incidentdesk.org/internal/audit"
	"incidentdesk.org/internal/ids"
	"incidentdesk.org/internal/obs"
	"incidentdesk.org/internal/rbac"
)

// CreateInput carries the fields a reporter submits. Any client-supplied
// creator value is ignored: created_by is always the acting principal.
type CreateInput struct {
	Title         string
	Description   string
	Category      string
	OccurredAt    time.Time
	AttachmentRef string
}

// Service applies the access policy, validates input and records audit
// entries around the store.
type Service struct {
	store    Store
	recorder *audit.Recorder
	now      func() time.Time
}

// NewService constructs the incident service.
func NewService(store Store, recorder *audit.Recorder) (*Service, error) {
	if store == nil {
		return nil, errors.New("incident store is required")
	}
	return &Service{store: store, recorder: recorder, now: time.Now}, nil
}

// Create files a new incident attributed to the acting principal.
func (s *Service) Create(ctx context.Context, p rbac.Principal, in CreateInput) (Incident, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return Incident{}, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	category, err := ParseCategory(in.Category)
	if err != nil {
		return Incident{}, err
	}
	occurredAt := in.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = s.now().UTC()
	}

	inc := Incident{
		ID:            ids.New(),
		Title:         title,
		Description:   strings.TrimSpace(in.Description),
		Category:      category,
		Status:        StatusNew,
		OccurredAt:    occurredAt.UTC(),
		CreatedBy:     p.ID,
		AttachmentRef: strings.TrimSpace(in.AttachmentRef),
		CreatedAt:     s.now().UTC(),
		UpdatedAt:     s.now().UTC(),
	}
	if !rbac.CanCreateIncident(p, inc.CreatedBy) {
		obs.CountAuthzDenial("incident", "create")
		return Incident{}, rbac.ErrUnauthorized
	}
	if err := s.store.Insert(ctx, &inc); err != nil {
		return Incident{}, err
	}
	s.recorder.Record(ctx, audit.Entry{
		ActorID:    p.ID,
		Action:     "incident.create",
		TargetType: "incident",
		TargetID:   inc.ID,
		Details: map[string]any{
			"title":    inc.Title,
			"category": string(inc.Category),
		},
	})
	return inc, nil
}

// Get returns one incident if the principal owns it or holds it-or-higher.
// A denial surfaces as an explicit unauthorized error, not a not-found.
func (s *Service) Get(ctx context.Context, p rbac.Principal, id string) (Incident, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Incident{}, fmt.Errorf("%w: incident id is required", ErrInvalidInput)
	}
	inc, err := s.store.Get(ctx, id)
	if err != nil {
		return Incident{}, err
	}
	if !rbac.CanReadIncident(p, inc.CreatedBy) {
		obs.CountAuthzDenial("incident", "read")
		return Incident{}, rbac.ErrUnauthorized
	}
	return inc, nil
}

// List returns incidents visible to the principal. The row-level scope is
// applied before the query reaches the store: employee-only principals are
// pinned to their own submissions regardless of any requested filter.
func (s *Service) List(ctx context.Context, p rbac.Principal, f Filter) ([]Incident, error) {
	scope := rbac.IncidentListScope(p)
	if scope.CreatedBy != "" {
		f.CreatedBy = scope.CreatedBy
	}
	if f.Limit <= 0 || f.Limit > 1000 {
		f.Limit = 100
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return s.store.List(ctx, f)
}

// Update applies a triage patch (status, assignee, resolution comment).
// Ownership is immutable and only it-role principals may mutate; the audit
// entry is appended after the update is durable and never blocks it.
func (s *Service) Update(ctx context.Context, p rbac.Principal, id string, patch Patch) (Incident, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Incident{}, fmt.Errorf("%w: incident id is required", ErrInvalidInput)
	}
	if !rbac.CanUpdateIncident(p) {
		obs.CountAuthzDenial("incident", "update")
		return Incident{}, rbac.ErrUnauthorized
	}
	if patch.isEmpty() {
		return Incident{}, fmt.Errorf("%w: nothing to update", ErrInvalidInput)
	}
	if patch.Status != nil {
		status, err := ParseStatus(string(*patch.Status))
		if err != nil {
			return Incident{}, err
		}
		patch.Status = &status
	}
	if patch.ResolutionComment != nil {
		comment := strings.TrimSpace(*patch.ResolutionComment)
		patch.ResolutionComment = &comment
	}
	if patch.AssigneeID != nil {
		assignee := strings.TrimSpace(*patch.AssigneeID)
		patch.AssigneeID = &assignee
	}

	inc, err := s.store.Update(ctx, id, patch)
	if err != nil {
		return Incident{}, err
	}

	details := map[string]any{}
	if patch.Status != nil {
		details["status"] = string(*patch.Status)
	}
	if patch.AssigneeID != nil {
		details["assignee_id"] = *patch.AssigneeID
	}
	if patch.ResolutionComment != nil {
		details["resolution_comment"] = *patch.ResolutionComment
	}
	s.recorder.Record(ctx, audit.Entry{
		ActorID:    p.ID,
		Action:     "incident.update",
		TargetType: "incident",
		TargetID:   inc.ID,
		Details:    details,
	})
	return inc, nil
}
