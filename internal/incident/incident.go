package incident

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidInput = errors.New("incident: invalid input")
	ErrNotFound     = errors.New("incident: not found")
)

// Category classifies a report.
type Category string

const (
	CategoryPhishing           Category = "phishing"
	CategoryMalware            Category = "malware"
	CategoryUnauthorizedAccess Category = "unauthorized-access"
	CategoryDataLoss           Category = "data-loss"
	CategoryOther              Category = "other"
)

var categories = map[Category]struct{}{
	CategoryPhishing:           {},
	CategoryMalware:            {},
	CategoryUnauthorizedAccess: {},
	CategoryDataLoss:           {},
	CategoryOther:              {},
}

// ParseCategory validates a raw category value at the boundary.
func ParseCategory(raw string) (Category, error) {
	c := Category(strings.TrimSpace(strings.ToLower(raw)))
	if _, ok := categories[c]; !ok {
		return "", fmt.Errorf("%w: unknown category %q", ErrInvalidInput, raw)
	}
	return c, nil
}

// Status is the triage lifecycle state: new -> in-progress -> resolved.
type Status string

const (
	StatusNew        Status = "new"
	StatusInProgress Status = "in-progress"
	StatusResolved   Status = "resolved"
)

var statuses = map[Status]struct{}{
	StatusNew:        {},
	StatusInProgress: {},
	StatusResolved:   {},
}

// ParseStatus validates a raw status value at the boundary.
func ParseStatus(raw string) (Status, error) {
	s := Status(strings.TrimSpace(strings.ToLower(raw)))
	if _, ok := statuses[s]; !ok {
		return "", fmt.Errorf("%w: unknown status %q", ErrInvalidInput, raw)
	}
	return s, nil
}

// Incident is a filed security-incident report. CreatedBy is stamped at
// creation and immutable afterwards.
type Incident struct {
	ID                string    `json:"id"`
	Title             string    `json:"title"`
	Description       string    `json:"description,omitempty"`
	Category          Category  `json:"category"`
	Status            Status    `json:"status"`
	OccurredAt        time.Time `json:"occurred_at"`
	CreatedBy         string    `json:"created_by"`
	AssigneeID        string    `json:"assignee_id,omitempty"`
	ResolutionComment string    `json:"resolution_comment,omitempty"`
	AttachmentRef     string    `json:"attachment_ref,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Filter narrows incident list queries. CreatedBy carries the row-level
// scope derived from the requesting principal's roles.
type Filter struct {
	CreatedBy string
	Status    Status
	Category  Category
	Limit     int
	Offset    int
}

// Patch updates the mutable triage fields. Nil members are left unchanged.
type Patch struct {
	Status            *Status
	AssigneeID        *string
	ResolutionComment *string
}

func (p Patch) isEmpty() bool {
	return p.Status == nil && p.AssigneeID == nil && p.ResolutionComment == nil
}

// Store describes the persistence operations the incident service requires.
type Store interface {
	Insert(ctx context.Context, inc *Incident) error
	Get(ctx context.Context, id string) (Incident, error)
	List(ctx context.Context, f Filter) ([]Incident, error)
	Update(ctx context.Context, id string, patch Patch) (Incident, error)
}
