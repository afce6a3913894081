package directory

import (
	"context"
	"errors"
	"testing"

	"incidentdesk.org/internal/audit"
	"incidentdesk.org/internal/rbac"
)

type stubStore struct {
	users map[string]User
	roles map[string]map[rbac.Role]struct{}
}

func newStubStore() *stubStore {
	return &stubStore{
		users: make(map[string]User),
		roles: make(map[string]map[rbac.Role]struct{}),
	}
}

func (s *stubStore) CreateUser(ctx context.Context, u *User, roles []rbac.Role) error {
	for _, existing := range s.users {
		if existing.Email == u.Email {
			return ErrConflict
		}
	}
	s.users[u.ID] = *u
	if len(roles) > 0 {
		set := make(map[rbac.Role]struct{}, len(roles))
		for _, role := range roles {
			set[role] = struct{}{}
		}
		s.roles[u.ID] = set
	}
	return nil
}

func (s *stubStore) GetUser(ctx context.Context, id string) (User, error) {
	u, ok := s.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (s *stubStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return User{}, ErrNotFound
}

func (s *stubStore) ListUsers(ctx context.Context) ([]User, error) {
	out := make([]User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	return out, nil
}

func (s *stubStore) UpdateUser(ctx context.Context, id string, upd Update) (User, error) {
	u, ok := s.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	if upd.Email != nil {
		u.Email = *upd.Email
	}
	if upd.DisplayName != nil {
		u.DisplayName = *upd.DisplayName
	}
	if upd.Password != nil {
		u.PasswordHash = *upd.Password
	}
	if upd.PrimaryRole != nil {
		u.PrimaryRole = *upd.PrimaryRole
	}
	if upd.Status != nil {
		u.Status = *upd.Status
	}
	s.users[id] = u
	return u, nil
}

func (s *stubStore) DeleteUser(ctx context.Context, id string) error {
	if _, ok := s.users[id]; !ok {
		return ErrNotFound
	}
	delete(s.users, id)
	delete(s.roles, id)
	return nil
}

func (s *stubStore) AssignRole(ctx context.Context, userID string, role rbac.Role) error {
	if _, ok := s.users[userID]; !ok {
		return ErrNotFound
	}
	set, ok := s.roles[userID]
	if !ok {
		set = make(map[rbac.Role]struct{})
		s.roles[userID] = set
	}
	if _, ok := set[role]; ok {
		return ErrConflict
	}
	set[role] = struct{}{}
	return nil
}

func (s *stubStore) RemoveRole(ctx context.Context, userID string, role rbac.Role) error {
	set := s.roles[userID]
	if _, ok := set[role]; !ok {
		return ErrNotFound
	}
	delete(set, role)
	return nil
}

func (s *stubStore) RolesForUser(ctx context.Context, userID string) ([]rbac.Role, error) {
	var out []rbac.Role
	for role := range s.roles[userID] {
		out = append(out, role)
	}
	return out, nil
}

func admin() rbac.Principal {
	return rbac.Principal{ID: "root", PrimaryRole: rbac.RoleAdmin}
}

func employee(id string) rbac.Principal {
	return rbac.Principal{ID: id, PrimaryRole: rbac.RoleEmployee}
}

func newTestService(t *testing.T) (*Service, *stubStore) {
	t.Helper()
	store := newStubStore()
	svc, err := NewService(store, audit.NewRecorder(nil))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc, store
}

func TestCreateUserIsAdminOnly(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.CreateUser(context.Background(), employee("u1"), CreateInput{
		Email:    "a@example.com",
		Password: "secret",
	})
	if !errors.Is(err, rbac.ErrUnauthorized) {
		t.Errorf("got %v, want ErrUnauthorized", err)
	}
}

func TestCreateUserAssignsRoles(t *testing.T) {
	svc, store := newTestService(t)

	user, err := svc.CreateUser(context.Background(), admin(), CreateInput{
		Email:       "Staff@Example.com",
		DisplayName: "Staff Member",
		Password:    "secret",
		PrimaryRole: "employee",
		Roles:       []string{"it", "employee"},
	})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if user.Email != "staff@example.com" {
		t.Errorf("email must be normalized, got %q", user.Email)
	}
	if user.PrimaryRole != rbac.RoleEmployee {
		t.Errorf("primary role = %q", user.PrimaryRole)
	}
	if user.PasswordHash == "" || user.PasswordHash == "secret" {
		t.Error("password must be stored hashed")
	}

	roles, _ := store.RolesForUser(context.Background(), user.ID)
	if len(roles) != 2 {
		t.Errorf("expected employee+it assignment rows, got %v", roles)
	}
}

func TestCreateUserValidation(t *testing.T) {
	svc, _ := newTestService(t)
	cases := []CreateInput{
		{Email: "", Password: "x"},
		{Email: "not-an-email", Password: "x"},
		{Email: "a@b.c", Password: ""},
		{Email: "a@b.c", Password: "x", PrimaryRole: "superuser"},
		{Email: "a@b.c", Password: "x", Roles: []string{"root"}},
	}
	for i, in := range cases {
		if _, err := svc.CreateUser(context.Background(), admin(), in); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("case %d: got %v, want ErrInvalidInput", i, err)
		}
	}
}

func TestGetUserOwnershipAndAdmin(t *testing.T) {
	svc, store := newTestService(t)
	store.users["u1"] = User{ID: "u1", Email: "a@b.c"}
	store.users["u2"] = User{ID: "u2", Email: "d@e.f"}

	if _, err := svc.GetUser(context.Background(), employee("u1"), "u1"); err != nil {
		t.Errorf("own record read: %v", err)
	}
	if _, err := svc.GetUser(context.Background(), employee("u1"), "u2"); !errors.Is(err, rbac.ErrUnauthorized) {
		t.Errorf("foreign record read: got %v, want ErrUnauthorized", err)
	}
	if _, err := svc.GetUser(context.Background(), admin(), "u2"); err != nil {
		t.Errorf("admin read: %v", err)
	}
}

func TestDeleteUserRemovesRoleRows(t *testing.T) {
	svc, store := newTestService(t)
	store.users["u1"] = User{ID: "u1", Email: "a@b.c"}
	store.roles["u1"] = map[rbac.Role]struct{}{rbac.RoleIT: {}}

	if err := svc.DeleteUser(context.Background(), admin(), "u1"); err != nil {
		t.Fatalf("DeleteUser: %v", err)
	}
	if _, ok := store.roles["u1"]; ok {
		t.Error("role assignment rows must be deleted with the user")
	}
}

func TestDeleteUserSelfRejected(t *testing.T) {
	svc, store := newTestService(t)
	store.users["root"] = User{ID: "root", Email: "root@b.c"}
	if err := svc.DeleteUser(context.Background(), admin(), "root"); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("self delete: got %v, want ErrInvalidInput", err)
	}
}

func TestAssignRemoveRole(t *testing.T) {
	svc, store := newTestService(t)
	store.users["u1"] = User{ID: "u1", Email: "a@b.c"}

	if err := svc.AssignRole(context.Background(), employee("u2"), "u1", "it"); !errors.Is(err, rbac.ErrUnauthorized) {
		t.Errorf("non-admin assign: got %v", err)
	}
	if err := svc.AssignRole(context.Background(), admin(), "u1", "it"); err != nil {
		t.Fatalf("AssignRole: %v", err)
	}
	if err := svc.AssignRole(context.Background(), admin(), "u1", "it"); !errors.Is(err, ErrConflict) {
		t.Errorf("duplicate assign: got %v, want ErrConflict", err)
	}
	if err := svc.AssignRole(context.Background(), admin(), "u1", "root"); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("unknown role: got %v, want ErrInvalidInput", err)
	}
	if err := svc.RemoveRole(context.Background(), admin(), "u1", "it"); err != nil {
		t.Fatalf("RemoveRole: %v", err)
	}
	if err := svc.RemoveRole(context.Background(), admin(), "u1", "it"); !errors.Is(err, ErrNotFound) {
		t.Errorf("remove absent role: got %v, want ErrNotFound", err)
	}
}

func TestPrincipalByIDFallsBackToPrimaryRole(t *testing.T) {
	svc, store := newTestService(t)
	store.users["legacy"] = User{ID: "legacy", Email: "old@b.c", PrimaryRole: rbac.RoleIT}

	p, err := svc.PrincipalByID(context.Background(), "legacy")
	if err != nil {
		t.Fatalf("PrincipalByID: %v", err)
	}
	if len(p.Roles) != 0 {
		t.Errorf("legacy record has no assignment rows, got %v", p.Roles)
	}
	if !p.HasRoleOrHigher(rbac.RoleIT) {
		t.Error("primary-role fallback must make the it floor pass")
	}
}

func TestPasswordHashRoundTrip(t *testing.T) {
	hash, err := HashPassword("hunter2")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if err := VerifyPassword(hash, "hunter2"); err != nil {
		t.Errorf("verify correct password: %v", err)
	}
	if err := VerifyPassword(hash, "wrong"); err == nil {
		t.Error("wrong password must not verify")
	}
	if _, err := HashPassword(""); err == nil {
		t.Error("empty password must be rejected")
	}
}
