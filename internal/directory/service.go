package directory

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

// CreateInput carries the fields an admin submits when provisioning a user.
type CreateInput struct {
	Email       string
	DisplayName string
	Password    string
	PrimaryRole string
	Roles       []string
}

// Service gates principal management behind the admin role and keeps the
// legacy primary-role column consistent with the assignment relation.
type Service struct {
	store    Store
	recorder *audit.Recorder
	now      func() time.Time
}

// NewService constructs the directory service.
func NewService(store Store, recorder *audit.Recorder) (*Service, error) {
	if store == nil {
		return nil, errors.New("directory store is required")
	}
	return &Service{store: store, recorder: recorder, now: time.Now}, nil
}

// CreateUser provisions a principal record with at least one role.
func (s *Service) CreateUser(ctx context.Context, p rbac.Principal, in CreateInput) (User, error) {
	if !rbac.CanManageProfiles(p) {
		obs.CountAuthzDenial("profile", "create")
		return User{}, rbac.ErrUnauthorized
	}
	email := strings.TrimSpace(strings.ToLower(in.Email))
	if email == "" || !strings.Contains(email, "@") {
		return User{}, fmt.Errorf("%w: valid email is required", ErrInvalidInput)
	}
	if strings.TrimSpace(in.Password) == "" {
		return User{}, fmt.Errorf("%w: password is required", ErrInvalidInput)
	}
	primary := in.PrimaryRole
	if strings.TrimSpace(primary) == "" {
		primary = string(rbac.RoleEmployee)
	}
	primaryRole, err := rbac.ParseRole(primary)
	if err != nil {
		return User{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	roles := make([]rbac.Role, 0, len(in.Roles)+1)
	seen := map[rbac.Role]struct{}{}
	for _, raw := range append([]string{primary}, in.Roles...) {
		role, err := rbac.ParseRole(raw)
		if err != nil {
			return User{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		if _, ok := seen[role]; ok {
			continue
		}
		seen[role] = struct{}{}
		roles = append(roles, role)
	}

	hash, err := HashPassword(strings.TrimSpace(in.Password))
	if err != nil {
		return User{}, err
	}
	user := User{
		ID:           ids.New(),
		Email:        email,
		DisplayName:  strings.TrimSpace(in.DisplayName),
		PrimaryRole:  primaryRole,
		PasswordHash: hash,
		Status:       UserStatusActive,
		CreatedAt:    s.now().UTC(),
		UpdatedAt:    s.now().UTC(),
	}
	// One store operation: a failure leaves neither the user row nor a
	// partial assignment set behind.
	if err := s.store.CreateUser(ctx, &user, roles); err != nil {
		return User{}, err
	}
	s.recorder.Record(ctx, audit.Entry{
		ActorID:    p.ID,
		Action:     "user.create",
		TargetType: "user",
		TargetID:   user.ID,
		Details:    map[string]any{"email": user.Email, "primary_role": string(user.PrimaryRole)},
	})
	return user, nil
}

// GetUser returns a principal record: own record for anyone, any record for
// admins.
func (s *Service) GetUser(ctx context.Context, p rbac.Principal, id string) (User, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return User{}, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	if !rbac.CanReadProfile(p, id) {
		obs.CountAuthzDenial("profile", "read")
		return User{}, rbac.ErrUnauthorized
	}
	return s.store.GetUser(ctx, id)
}

// ListUsers is admin-only.
func (s *Service) ListUsers(ctx context.Context, p rbac.Principal) ([]User, error) {
	if !rbac.CanManageProfiles(p) {
		obs.CountAuthzDenial("profile", "list")
		return nil, rbac.ErrUnauthorized
	}
	return s.store.ListUsers(ctx)
}

// UpdateUser patches a principal record. Admin-only.
func (s *Service) UpdateUser(ctx context.Context, p rbac.Principal, id string, upd Update) (User, error) {
	if !rbac.CanManageProfiles(p) {
		obs.CountAuthzDenial("profile", "update")
		return User{}, rbac.ErrUnauthorized
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return User{}, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	if upd.Email != nil {
		email := strings.TrimSpace(strings.ToLower(*upd.Email))
		if email == "" || !strings.Contains(email, "@") {
			return User{}, fmt.Errorf("%w: valid email is required", ErrInvalidInput)
		}
		upd.Email = &email
	}
	if upd.Status != nil {
		status := strings.TrimSpace(strings.ToLower(*upd.Status))
		if status != UserStatusActive && status != UserStatusDisabled {
			return User{}, fmt.Errorf("%w: unsupported status %s", ErrInvalidInput, status)
		}
		upd.Status = &status
	}
	if upd.PrimaryRole != nil {
		role, err := rbac.ParseRole(string(*upd.PrimaryRole))
		if err != nil {
			return User{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		upd.PrimaryRole = &role
	}
	if upd.Password != nil {
		pw := strings.TrimSpace(*upd.Password)
		if pw == "" {
			return User{}, fmt.Errorf("%w: password is required", ErrInvalidInput)
		}
		hash, err := HashPassword(pw)
		if err != nil {
			return User{}, err
		}
		upd.Password = &hash
	}
	user, err := s.store.UpdateUser(ctx, id, upd)
	if err != nil {
		return User{}, err
	}
	s.recorder.Record(ctx, audit.Entry{
		ActorID:    p.ID,
		Action:     "user.update",
		TargetType: "user",
		TargetID:   user.ID,
	})
	return user, nil
}

// DeleteUser removes a principal record along with its role-assignment rows.
// Admin-only; a principal cannot delete itself.
func (s *Service) DeleteUser(ctx context.Context, p rbac.Principal, id string) error {
	if !rbac.CanManageProfiles(p) {
		obs.CountAuthzDenial("profile", "delete")
		return rbac.ErrUnauthorized
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	if id == p.ID {
		return fmt.Errorf("%w: cannot delete own account", ErrInvalidInput)
	}
	if err := s.store.DeleteUser(ctx, id); err != nil {
		return err
	}
	s.recorder.Record(ctx, audit.Entry{
		ActorID:    p.ID,
		Action:     "user.delete",
		TargetType: "user",
		TargetID:   id,
	})
	return nil
}

// AssignRole adds a (user, role) assignment row. Admin-only; duplicate
// assignments are rejected by the store's uniqueness constraint.
func (s *Service) AssignRole(ctx context.Context, p rbac.Principal, userID, rawRole string) error {
	if !rbac.CanManageProfiles(p) {
		obs.CountAuthzDenial("profile", "assign_role")
		return rbac.ErrUnauthorized
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	role, err := rbac.ParseRole(rawRole)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if err := s.store.AssignRole(ctx, userID, role); err != nil {
		return err
	}
	s.recorder.Record(ctx, audit.Entry{
		ActorID:    p.ID,
		Action:     "user.assign_role",
		TargetType: "user",
		TargetID:   userID,
		Details:    map[string]any{"role": string(role)},
	})
	return nil
}

// RemoveRole drops a (user, role) assignment row. Admin-only.
func (s *Service) RemoveRole(ctx context.Context, p rbac.Principal, userID, rawRole string) error {
	if !rbac.CanManageProfiles(p) {
		obs.CountAuthzDenial("profile", "remove_role")
		return rbac.ErrUnauthorized
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	role, err := rbac.ParseRole(rawRole)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if err := s.store.RemoveRole(ctx, userID, role); err != nil {
		return err
	}
	s.recorder.Record(ctx, audit.Entry{
		ActorID:    p.ID,
		Action:     "user.remove_role",
		TargetType: "user",
		TargetID:   userID,
		Details:    map[string]any{"role": string(role)},
	})
	return nil
}

// UserByEmail resolves a record for credential verification. Internal use
// by the session layer; not exposed through the API surface.
func (s *Service) UserByEmail(ctx context.Context, email string) (User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return User{}, fmt.Errorf("%w: email is required", ErrInvalidInput)
	}
	return s.store.GetUserByEmail(ctx, email)
}

// PrincipalByID loads a user with its resolved role assignments. The
// multi-role set is used when assignment rows exist; otherwise the legacy
// primary-role column stands in, which keeps pre-migration records working.
func (s *Service) PrincipalByID(ctx context.Context, id string) (rbac.Principal, error) {
	user, err := s.store.GetUser(ctx, id)
	if err != nil {
		return rbac.Principal{}, err
	}
	roles, err := s.store.RolesForUser(ctx, id)
	if err != nil {
		return rbac.Principal{}, err
	}
	return rbac.Principal{
		ID:          user.ID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		PrimaryRole: user.PrimaryRole,
		Roles:       roles,
	}, nil
}
