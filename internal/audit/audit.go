package audit

import (
	"context"
	"time"

	"incidentdesk.org/internal/ids"
	"incidentdesk.org/internal/obs"
	"incidentdesk.org/internal/rbac"
)

// Entry is one append-only record of a permission-relevant action. Entries
// are never updated or deleted.
type Entry struct {
	ID         string         `json:"id"`
	ActorID    string         `json:"actor_id,omitempty"`
	Action     string         `json:"action"`
	TargetType string         `json:"target_type,omitempty"`
	TargetID   string         `json:"target_id,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
	RequestID  string         `json:"request_id,omitempty"`
	ClientIP   string         `json:"client_ip,omitempty"`
	UserAgent  string         `json:"user_agent,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Filter narrows audit log reads.
type Filter struct {
	ActorID string
	Action  string
	Limit   int
	Offset  int
}

// Store persists entries. Append is write-open; reads happen through Service.
type Store interface {
	Append(ctx context.Context, entry *Entry) error
	ListEntries(ctx context.Context, f Filter) ([]Entry, error)
}

// Recorder appends one entry per permission-relevant event after the primary
// operation has durably succeeded. The append is best-effort: a failed write
// is logged and counted, never surfaced, so an audit outage cannot block
// functional operations.
type Recorder struct {
	store Store
}

// NewRecorder constructs a Recorder. A nil store degrades to log-only output.
func NewRecorder(store Store) *Recorder {
	return &Recorder{store: store}
}

// Record appends one entry, enriching it with request and client metadata
// from the context. Call it only after the primary operation succeeded.
func (r *Recorder) Record(ctx context.Context, entry Entry) {
	if entry.Action == "" {
		return
	}
	if entry.ID == "" {
		entry.ID = ids.New()
	}
	if entry.OccurredAt.IsZero() {
		entry.OccurredAt = time.Now().UTC()
	}
	if entry.RequestID == "" {
		entry.RequestID = RequestIDFromContext(ctx)
	}
	if entry.ClientIP == "" || entry.UserAgent == "" {
		ip, ua := clientInfoFromContext(ctx)
		if entry.ClientIP == "" {
			entry.ClientIP = ip
		}
		if entry.UserAgent == "" {
			entry.UserAgent = ua
		}
	}

	if r == nil || r.store == nil {
		logEntry(entry)
		return
	}
	if err := r.store.Append(ctx, &entry); err != nil {
		obs.CountAuditAppendFailure()
		obs.Log(map[string]any{
			"ts":     time.Now().UTC().Format(time.RFC3339Nano),
			"level":  "error",
			"msg":    "audit_append_failed",
			"action": entry.Action,
			"actor":  entry.ActorID,
			"error":  err.Error(),
		})
	}
}

func logEntry(entry Entry) {
	obs.Log(map[string]any{
		"ts":     entry.OccurredAt.Format(time.RFC3339Nano),
		"type":   "audit",
		"event":  entry.Action,
		"actor":  entry.ActorID,
		"target": entry.TargetType + "/" + entry.TargetID,
	})
}

// Service answers read queries over the log. Reading is admin-only; the
// append path stays write-open through Recorder.
type Service struct {
	store Store
}

// NewService constructs the read side of the audit log.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// List returns entries visible to the principal, newest first.
func (s *Service) List(ctx context.Context, p rbac.Principal, f Filter) ([]Entry, error) {
	if !rbac.CanReadAudit(p) {
		obs.CountAuthzDenial("audit", "read")
		return nil, rbac.ErrUnauthorized
	}
	if f.Limit <= 0 || f.Limit > 1000 {
		f.Limit = 100
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return s.store.ListEntries(ctx, f)
}
