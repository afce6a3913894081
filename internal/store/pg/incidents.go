package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"incidentdesk.org/internal/incident"
)

var _ incident.Store = (*Store)(nil)

const incidentColumns = `id, title, description, category, status, occurred_at, created_by,
	coalesce(assignee_id, ''), resolution_comment, attachment_ref, created_at, updated_at`

func scanIncident(row interface{ Scan(...any) error }) (incident.Incident, error) {
	var (
		inc      incident.Incident
		category string
		status   string
	)
	if err := row.Scan(&inc.ID, &inc.Title, &inc.Description, &category, &status,
		&inc.OccurredAt, &inc.CreatedBy, &inc.AssigneeID, &inc.ResolutionComment,
		&inc.AttachmentRef, &inc.CreatedAt, &inc.UpdatedAt); err != nil {
		return incident.Incident{}, err
	}
	c, err := incident.ParseCategory(category)
	if err != nil {
		return incident.Incident{}, fmt.Errorf("incident %s: %w", inc.ID, err)
	}
	st, err := incident.ParseStatus(status)
	if err != nil {
		return incident.Incident{}, fmt.Errorf("incident %s: %w", inc.ID, err)
	}
	inc.Category = c
	inc.Status = st
	return inc, nil
}

func (s *Store) Insert(ctx context.Context, inc *incident.Incident) error {
	_, err := s.db.ExecContext(ctx, `
		insert into incidents (id, title, description, category, status, occurred_at,
			created_by, assignee_id, resolution_comment, attachment_ref, created_at, updated_at)
		values ($1, $2, $3, $4, $5, $6, $7, nullif($8, ''), $9, $10, $11, $12)
	`, inc.ID, inc.Title, inc.Description, string(inc.Category), string(inc.Status),
		inc.OccurredAt, inc.CreatedBy, inc.AssigneeID, inc.ResolutionComment,
		inc.AttachmentRef, inc.CreatedAt, inc.UpdatedAt)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return fmt.Errorf("%w: duplicate incident id", incident.ErrInvalidInput)
		}
		return err
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (incident.Incident, error) {
	var inc incident.Incident
	err := s.withReadRetry(ctx, func() error {
		row := s.db.QueryRowContext(ctx, `select `+incidentColumns+` from incidents where id = $1`, id)
		got, err := scanIncident(row)
		if err != nil {
			return err
		}
		inc = got
		return nil
	})
	if errors.Is(err, sql.ErrNoRows) {
		return incident.Incident{}, incident.ErrNotFound
	}
	if err != nil {
		return incident.Incident{}, err
	}
	return inc, nil
}

func (s *Store) List(ctx context.Context, f incident.Filter) ([]incident.Incident, error) {
	var (
		where []string
		args  []any
		idx   = 1
	)
	if f.CreatedBy != "" {
		where = append(where, fmt.Sprintf("created_by = $%d", idx))
		args = append(args, f.CreatedBy)
		idx++
	}
	if f.Status != "" {
		where = append(where, fmt.Sprintf("status = $%d", idx))
		args = append(args, string(f.Status))
		idx++
	}
	if f.Category != "" {
		where = append(where, fmt.Sprintf("category = $%d", idx))
		args = append(args, string(f.Category))
		idx++
	}
	query := `select ` + incidentColumns + ` from incidents`
	if len(where) > 0 {
		query += " where " + strings.Join(where, " and ")
	}
	query += fmt.Sprintf(" order by created_at desc limit $%d offset $%d", idx, idx+1)
	args = append(args, f.Limit, f.Offset)

	var incidents []incident.Incident
	err := s.withReadRetry(ctx, func() error {
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		var result []incident.Incident
		for rows.Next() {
			inc, err := scanIncident(rows)
			if err != nil {
				return err
			}
			result = append(result, inc)
		}
		if err := rows.Err(); err != nil {
			return err
		}
		incidents = result
		return nil
	})
	if err != nil {
		return nil, err
	}
	return incidents, nil
}

func (s *Store) Update(ctx context.Context, id string, patch incident.Patch) (incident.Incident, error) {
	var (
		setClauses []string
		args       []any
		idx        = 1
	)
	if patch.Status != nil {
		setClauses = append(setClauses, fmt.Sprintf("status = $%d", idx))
		args = append(args, string(*patch.Status))
		idx++
	}
	if patch.AssigneeID != nil {
		setClauses = append(setClauses, fmt.Sprintf("assignee_id = nullif($%d, '')", idx))
		args = append(args, *patch.AssigneeID)
		idx++
	}
	if patch.ResolutionComment != nil {
		setClauses = append(setClauses, fmt.Sprintf("resolution_comment = $%d", idx))
		args = append(args, *patch.ResolutionComment)
		idx++
	}
	if len(setClauses) == 0 {
		return s.Get(ctx, id)
	}
	setClauses = append(setClauses, "updated_at = now()")
	query := fmt.Sprintf(`update incidents set %s where id = $%d`, strings.Join(setClauses, ", "), idx)
	args = append(args, id)

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return incident.Incident{}, err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return incident.Incident{}, err
	}
	if aff == 0 {
		return incident.Incident{}, incident.ErrNotFound
	}
	return s.Get(ctx, id)
}
