package pg

import (
	"context"
	"time"

	"incidentdesk.org/internal/session"
)

var _ session.TokenStore = (*Store)(nil)

// Revoke records a signed-out token id until its natural expiry. Expired
// rows are reaped opportunistically on each revocation.
func (s *Store) Revoke(ctx context.Context, tokenID, userID string, expiresAt time.Time) error {
	if _, err := s.db.ExecContext(ctx, `
		delete from revoked_tokens where expires_at < now()
	`); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		insert into revoked_tokens (token_id, user_id, expires_at)
		values ($1, $2, $3)
		on conflict (token_id) do nothing
	`, tokenID, userID, expiresAt)
	return err
}

func (s *Store) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	var revoked bool
	err := s.withReadRetry(ctx, func() error {
		return s.db.QueryRowContext(ctx, `
			select exists(select 1 from revoked_tokens where token_id = $1 and expires_at >= now())
		`, tokenID).Scan(&revoked)
	})
	if err != nil {
		return false, err
	}
	return revoked, nil
}
