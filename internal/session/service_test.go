package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"incidentdesk.org/internal/audit"
	"incidentdesk.org/internal/directory"
	"incidentdesk.org/internal/rbac"
)

type fakeDirectory struct {
	users map[string]directory.User
	roles map[string][]rbac.Role

	principalCalls int
	principalErr   error
}

func (d *fakeDirectory) UserByEmail(ctx context.Context, email string) (directory.User, error) {
	for _, u := range d.users {
		if u.Email == email {
			return u, nil
		}
	}
	return directory.User{}, directory.ErrNotFound
}

func (d *fakeDirectory) PrincipalByID(ctx context.Context, id string) (rbac.Principal, error) {
	d.principalCalls++
	if d.principalErr != nil {
		return rbac.Principal{}, d.principalErr
	}
	u, ok := d.users[id]
	if !ok {
		return rbac.Principal{}, directory.ErrNotFound
	}
	return rbac.Principal{
		ID:          u.ID,
		Email:       u.Email,
		PrimaryRole: u.PrimaryRole,
		Roles:       d.roles[id],
	}, nil
}

type fakeTokenStore struct {
	revoked map[string]time.Time
}

func newFakeTokenStore() *fakeTokenStore {
	return &fakeTokenStore{revoked: make(map[string]time.Time)}
}

func (s *fakeTokenStore) Revoke(ctx context.Context, tokenID, userID string, expiresAt time.Time) error {
	s.revoked[tokenID] = expiresAt
	return nil
}

func (s *fakeTokenStore) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	_, ok := s.revoked[tokenID]
	return ok, nil
}

func mustHash(t *testing.T, password string) string {
	t.Helper()
	hash, err := directory.HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	return hash
}

func newTestSessionService(t *testing.T) (*Service, *fakeDirectory, *fakeTokenStore) {
	t.Helper()
	setTestSecret(t)

	dir := &fakeDirectory{
		users: map[string]directory.User{
			"u1": {
				ID:           "u1",
				Email:        "user@example.com",
				PrimaryRole:  rbac.RoleEmployee,
				PasswordHash: mustHash(t, "secret"),
				Status:       directory.UserStatusActive,
			},
			"disabled": {
				ID:           "disabled",
				Email:        "gone@example.com",
				PrimaryRole:  rbac.RoleEmployee,
				PasswordHash: mustHash(t, "secret"),
				Status:       directory.UserStatusDisabled,
			},
		},
		roles: map[string][]rbac.Role{
			"u1": {rbac.RoleEmployee, rbac.RoleIT},
		},
	}
	tokens := newFakeTokenStore()
	svc, err := NewService(dir, tokens, audit.NewRecorder(nil))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc, dir, tokens
}

func TestSignInIssuesToken(t *testing.T) {
	svc, _, _ := newTestSessionService(t)

	token, principal, err := svc.SignIn(context.Background(), "User@Example.com ", "secret")
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if token.Value == "" || token.ExpiresAt.IsZero() {
		t.Error("token must carry a value and an expiry")
	}
	if principal.ID != "u1" {
		t.Errorf("principal = %+v", principal)
	}
	if !principal.HasRoleOrHigher(rbac.RoleIT) {
		t.Error("multi-role assignments must be resolved at sign-in")
	}
}

func TestSignInUniformFailure(t *testing.T) {
	svc, _, _ := newTestSessionService(t)

	cases := []struct {
		name            string
		email, password string
	}{
		{"unknown email", "nobody@example.com", "secret"},
		{"wrong password", "user@example.com", "nope"},
		{"disabled account", "gone@example.com", "secret"},
		{"empty credentials", "", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := svc.SignIn(context.Background(), tc.email, tc.password)
			if !errors.Is(err, ErrInvalidCredentials) {
				t.Errorf("got %v, want ErrInvalidCredentials", err)
			}
		})
	}
}

func TestAuthenticateResolvesFreshRoles(t *testing.T) {
	svc, dir, _ := newTestSessionService(t)

	token, _, err := svc.SignIn(context.Background(), "user@example.com", "secret")
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}

	principal, err := svc.Authenticate(context.Background(), token.Value)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if principal.ID != "u1" || !principal.HasRole(rbac.RoleIT) {
		t.Errorf("principal = %+v", principal)
	}

	// Second call within the cache window does not hit the directory again.
	calls := dir.principalCalls
	if _, err := svc.Authenticate(context.Background(), token.Value); err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if dir.principalCalls != calls {
		t.Error("cached principal expected on the second authenticate")
	}

	// Invalidation forces a fresh resolve, so a role revocation is seen.
	dir.roles["u1"] = []rbac.Role{rbac.RoleEmployee}
	svc.InvalidateUser("u1")
	principal, err = svc.Authenticate(context.Background(), token.Value)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if principal.HasRole(rbac.RoleIT) {
		t.Error("revoked role must not survive cache invalidation")
	}
}

func TestSignOutRevokesToken(t *testing.T) {
	svc, _, tokens := newTestSessionService(t)

	token, _, err := svc.SignIn(context.Background(), "user@example.com", "secret")
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if err := svc.SignOut(context.Background(), token.Value); err != nil {
		t.Fatalf("SignOut: %v", err)
	}
	if len(tokens.revoked) != 1 {
		t.Fatalf("expected one revocation row, got %d", len(tokens.revoked))
	}
	if _, err := svc.Authenticate(context.Background(), token.Value); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("revoked token: got %v, want ErrInvalidToken", err)
	}
}

func TestAuthenticateKeepsStoreFailuresDistinct(t *testing.T) {
	svc, dir, _ := newTestSessionService(t)

	token, _, err := svc.SignIn(context.Background(), "user@example.com", "secret")
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}

	// A directory outage on a valid token must not read as a bad credential.
	outage := errors.New("connection refused")
	dir.principalErr = outage
	_, err = svc.Authenticate(context.Background(), token.Value)
	if errors.Is(err, ErrInvalidToken) {
		t.Fatal("store failure must not surface as ErrInvalidToken")
	}
	if !errors.Is(err, outage) {
		t.Fatalf("got %v, want the store error", err)
	}

	// A missing subject is a credential problem.
	dir.principalErr = nil
	delete(dir.users, "u1")
	_, err = svc.Authenticate(context.Background(), token.Value)
	if !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("deleted subject: got %v, want ErrInvalidToken", err)
	}
}

func TestAuthenticateRejectsGarbage(t *testing.T) {
	svc, _, _ := newTestSessionService(t)
	if _, err := svc.Authenticate(context.Background(), "not-a-token"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("got %v, want ErrInvalidToken", err)
	}
}

func TestTokenContextRoundTrip(t *testing.T) {
	ctx := ContextWithToken(context.Background(), "tok")
	got, ok := TokenFromContext(ctx)
	if !ok || got != "tok" {
		t.Errorf("round trip failed: %q ok=%v", got, ok)
	}
	if _, ok := TokenFromContext(context.Background()); ok {
		t.Error("empty context must not yield a token")
	}
}
