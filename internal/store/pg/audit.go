package pg

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"incidentdesk.org/internal/audit"
)

var _ audit.Store = (*Store)(nil)

// Append inserts one entry. The table is append-only: nothing in the service
// updates or deletes audit rows.
func (s *Store) Append(ctx context.Context, entry *audit.Entry) error {
	details := []byte("{}")
	if len(entry.Details) > 0 {
		raw, err := json.Marshal(entry.Details)
		if err != nil {
			return fmt.Errorf("marshal details: %w", err)
		}
		details = raw
	}
	_, err := s.db.ExecContext(ctx, `
		insert into audit_entries (id, actor_id, action, target_type, target_id,
			details, request_id, client_ip, user_agent, occurred_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, entry.ID, entry.ActorID, entry.Action, entry.TargetType, entry.TargetID,
		details, entry.RequestID, entry.ClientIP, entry.UserAgent, entry.OccurredAt)
	return err
}

func (s *Store) ListEntries(ctx context.Context, f audit.Filter) ([]audit.Entry, error) {
	var (
		where []string
		args  []any
		idx   = 1
	)
	if f.ActorID != "" {
		where = append(where, fmt.Sprintf("actor_id = $%d", idx))
		args = append(args, f.ActorID)
		idx++
	}
	if f.Action != "" {
		where = append(where, fmt.Sprintf("action = $%d", idx))
		args = append(args, f.Action)
		idx++
	}
	query := `
		select id, actor_id, action, target_type, target_id, details,
			request_id, client_ip, user_agent, occurred_at
		from audit_entries`
	if len(where) > 0 {
		query += " where " + strings.Join(where, " and ")
	}
	query += fmt.Sprintf(" order by occurred_at desc limit $%d offset $%d", idx, idx+1)
	args = append(args, f.Limit, f.Offset)

	var entries []audit.Entry
	err := s.withReadRetry(ctx, func() error {
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		var result []audit.Entry
		for rows.Next() {
			var (
				entry      audit.Entry
				rawDetails []byte
			)
			if err := rows.Scan(&entry.ID, &entry.ActorID, &entry.Action, &entry.TargetType,
				&entry.TargetID, &rawDetails, &entry.RequestID, &entry.ClientIP,
				&entry.UserAgent, &entry.OccurredAt); err != nil {
				return err
			}
			if len(rawDetails) > 0 {
				if err := json.Unmarshal(rawDetails, &entry.Details); err != nil {
					return fmt.Errorf("decode details for %s: %w", entry.ID, err)
				}
			}
			result = append(result, entry)
		}
		if err := rows.Err(); err != nil {
			return err
		}
		entries = result
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}
