package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"incidentdesk.org/internal/audit"
	"incidentdesk.org/internal/directory"
	"incidentdesk.org/internal/rbac"
)

const defaultTokenTTL = 8 * time.Hour

// ErrInvalidCredentials indicates a failed email/password sign-in. The same
// error covers unknown email, wrong password and disabled accounts so the
// response does not leak which one it was.
var ErrInvalidCredentials = errors.New("session: invalid credentials")

// Directory resolves principals for authentication. Implemented by the
// directory service.
type Directory interface {
	UserByEmail(ctx context.Context, email string) (directory.User, error)
	PrincipalByID(ctx context.Context, id string) (rbac.Principal, error)
}

// TokenStore persists revoked session-token ids until their natural expiry.
type TokenStore interface {
	Revoke(ctx context.Context, tokenID, userID string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// Token is an issued session credential.
type Token struct {
	Value     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type cachedPrincipal struct {
	principal rbac.Principal
	cachedAt  time.Time
}

// Service signs principals in and out and resolves the authenticated
// principal for each request. Resolved principals are cached per session
// token for a short window; the cache is dropped on sign-out and on role
// changes so stale role sets never outlive a mutation for long.
type Service struct {
	dir      Directory
	tokens   TokenStore
	recorder *audit.Recorder
	ttl      time.Duration
	now      func() time.Time

	cacheTTL time.Duration
	cacheMu  sync.Mutex
	cache    map[string]cachedPrincipal
}

// Option configures Service behavior.
type Option func(*Service)

// WithTokenTTL overrides the session token lifetime.
func WithTokenTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService constructs the session service.
func NewService(dir Directory, tokens TokenStore, recorder *audit.Recorder, opts ...Option) (*Service, error) {
	if dir == nil {
		return nil, errors.New("directory is required")
	}
	if tokens == nil {
		return nil, errors.New("token store is required")
	}
	s := &Service{
		dir:      dir,
		tokens:   tokens,
		recorder: recorder,
		ttl:      defaultTokenTTL,
		now:      time.Now,
		cacheTTL: 30 * time.Second,
		cache:    make(map[string]cachedPrincipal),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// SignIn verifies credentials and issues a session token.
func (s *Service) SignIn(ctx context.Context, email, password string) (Token, rbac.Principal, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return Token{}, rbac.Principal{}, ErrInvalidCredentials
	}
	user, err := s.dir.UserByEmail(ctx, email)
	if err != nil {
		return Token{}, rbac.Principal{}, ErrInvalidCredentials
	}
	if user.Status != directory.UserStatusActive {
		return Token{}, rbac.Principal{}, ErrInvalidCredentials
	}
	if err := directory.VerifyPassword(user.PasswordHash, password); err != nil {
		return Token{}, rbac.Principal{}, ErrInvalidCredentials
	}
	principal, err := s.dir.PrincipalByID(ctx, user.ID)
	if err != nil {
		return Token{}, rbac.Principal{}, err
	}

	roles := make([]string, 0, len(principal.EffectiveRoles()))
	for _, role := range principal.EffectiveRoles() {
		roles = append(roles, string(role))
	}
	value, err := GenerateToken(principal.ID, roles, s.ttl)
	if err != nil {
		return Token{}, rbac.Principal{}, err
	}
	token := Token{Value: value, ExpiresAt: s.now().UTC().Add(s.ttl)}

	s.recorder.Record(ctx, audit.Entry{
		ActorID:    principal.ID,
		Action:     "auth.signin",
		TargetType: "session",
		Details:    map[string]any{"email": principal.Email},
	})
	return token, principal, nil
}

// SignOut revokes the token and drops the cached principal. The revocation
// row lives until the token would have expired anyway.
func (s *Service) SignOut(ctx context.Context, token string) error {
	claims, err := ParseAndValidate(token)
	if err != nil {
		return ErrInvalidToken
	}
	if err := s.tokens.Revoke(ctx, claims.ID, claims.Subject, claims.ExpiresAt.Time); err != nil {
		return err
	}
	s.cacheMu.Lock()
	delete(s.cache, claims.ID)
	s.cacheMu.Unlock()

	s.recorder.Record(ctx, audit.Entry{
		ActorID:    claims.Subject,
		Action:     "auth.signout",
		TargetType: "session",
	})
	return nil
}

// Authenticate resolves the principal behind a bearer token. Role
// assignments are loaded fresh from the directory (modulo the short cache),
// not trusted from the token's claims.
func (s *Service) Authenticate(ctx context.Context, token string) (rbac.Principal, error) {
	claims, err := ParseAndValidate(token)
	if err != nil {
		return rbac.Principal{}, ErrInvalidToken
	}
	revoked, err := s.tokens.IsRevoked(ctx, claims.ID)
	if err != nil {
		return rbac.Principal{}, err
	}
	if revoked {
		return rbac.Principal{}, ErrInvalidToken
	}

	now := s.now()
	s.cacheMu.Lock()
	if entry, ok := s.cache[claims.ID]; ok && now.Sub(entry.cachedAt) < s.cacheTTL {
		s.cacheMu.Unlock()
		return entry.principal, nil
	}
	s.cacheMu.Unlock()

	principal, err := s.dir.PrincipalByID(ctx, claims.Subject)
	if err != nil {
		// Only a missing subject invalidates the token; store failures
		// stay distinct so an outage never reads as a bad credential.
		if errors.Is(err, directory.ErrNotFound) {
			return rbac.Principal{}, ErrInvalidToken
		}
		return rbac.Principal{}, err
	}
	s.cacheMu.Lock()
	s.cache[claims.ID] = cachedPrincipal{principal: principal, cachedAt: now}
	s.cacheMu.Unlock()
	return principal, nil
}

// InvalidateUser drops every cached principal for the user. Called after
// role-assignment changes so the next request re-resolves roles.
func (s *Service) InvalidateUser(userID string) {
	if userID == "" {
		return
	}
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	for key, entry := range s.cache {
		if entry.principal.ID == userID {
			delete(s.cache, key)
		}
	}
}
