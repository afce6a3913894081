package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"incidentdesk.org/internal/audit"
	"incidentdesk.org/internal/directory"
	"incidentdesk.org/internal/incident"
	"incidentdesk.org/internal/rbac"
	"incidentdesk.org/internal/session"
)

// Store implements every persistence interface in process. Used when the
// service runs without a DSN and by handler tests.
type Store struct {
	mu        sync.RWMutex
	users     map[string]directory.User
	roles     map[string]map[rbac.Role]struct{}
	incidents map[string]incident.Incident
	entries   []audit.Entry
	revoked   map[string]time.Time
}

var (
	_ directory.Store    = (*Store)(nil)
	_ incident.Store     = (*Store)(nil)
	_ audit.Store        = (*Store)(nil)
	_ session.TokenStore = (*Store)(nil)
)

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		users:     make(map[string]directory.User),
		roles:     make(map[string]map[rbac.Role]struct{}),
		incidents: make(map[string]incident.Incident),
		revoked:   make(map[string]time.Time),
	}
}

// --- directory.Store ---

func (s *Store) CreateUser(ctx context.Context, u *directory.User, roles []rbac.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Email == u.Email {
			return directory.ErrConflict
		}
	}
	if _, ok := s.users[u.ID]; ok {
		return directory.ErrConflict
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

func (s *Store) GetUser(ctx context.Context, id string) (directory.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return directory.User{}, directory.ErrNotFound
	}
	return u, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (directory.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return directory.User{}, directory.ErrNotFound
}

func (s *Store) ListUsers(ctx context.Context) ([]directory.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]directory.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

func (s *Store) UpdateUser(ctx context.Context, id string, upd directory.Update) (directory.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return directory.User{}, directory.ErrNotFound
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
	u.UpdatedAt = time.Now().UTC()
	s.users[id] = u
	return u, nil
}

func (s *Store) DeleteUser(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return directory.ErrNotFound
	}
	delete(s.users, id)
	// Role-assignment rows go with the user; nothing orphaned stays queryable.
	delete(s.roles, id)
	return nil
}

func (s *Store) AssignRole(ctx context.Context, userID string, role rbac.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[userID]; !ok {
		return directory.ErrNotFound
	}
	set, ok := s.roles[userID]
	if !ok {
		set = make(map[rbac.Role]struct{})
		s.roles[userID] = set
	}
	if _, ok := set[role]; ok {
		return directory.ErrConflict
	}
	set[role] = struct{}{}
	return nil
}

func (s *Store) RemoveRole(ctx context.Context, userID string, role rbac.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.roles[userID]
	if !ok {
		return directory.ErrNotFound
	}
	if _, ok := set[role]; !ok {
		return directory.ErrNotFound
	}
	delete(set, role)
	return nil
}

func (s *Store) RolesForUser(ctx context.Context, userID string) ([]rbac.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	set := s.roles[userID]
	out := make([]rbac.Role, 0, len(set))
	for role := range set {
		out = append(out, role)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// --- incident.Store ---

func (s *Store) Insert(ctx context.Context, inc *incident.Incident) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.incidents[inc.ID]; ok {
		return incident.ErrInvalidInput
	}
	s.incidents[inc.ID] = *inc
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (incident.Incident, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inc, ok := s.incidents[id]
	if !ok {
		return incident.Incident{}, incident.ErrNotFound
	}
	return inc, nil
}

func (s *Store) List(ctx context.Context, f incident.Filter) ([]incident.Incident, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []incident.Incident
	for _, inc := range s.incidents {
		if f.CreatedBy != "" && inc.CreatedBy != f.CreatedBy {
			continue
		}
		if f.Status != "" && inc.Status != f.Status {
			continue
		}
		if f.Category != "" && inc.Category != f.Category {
			continue
		}
		out = append(out, inc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if f.Offset > 0 {
		if f.Offset >= len(out) {
			return nil, nil
		}
		out = out[f.Offset:]
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *Store) Update(ctx context.Context, id string, patch incident.Patch) (incident.Incident, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inc, ok := s.incidents[id]
	if !ok {
		return incident.Incident{}, incident.ErrNotFound
	}
	if patch.Status != nil {
		inc.Status = *patch.Status
	}
	if patch.AssigneeID != nil {
		inc.AssigneeID = strings.TrimSpace(*patch.AssigneeID)
	}
	if patch.ResolutionComment != nil {
		inc.ResolutionComment = *patch.ResolutionComment
	}
	inc.UpdatedAt = time.Now().UTC()
	s.incidents[id] = inc
	return inc, nil
}

// --- audit.Store ---

func (s *Store) Append(ctx context.Context, entry *audit.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, *entry)
	return nil
}

func (s *Store) ListEntries(ctx context.Context, f audit.Filter) ([]audit.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []audit.Entry
	for i := len(s.entries) - 1; i >= 0; i-- {
		entry := s.entries[i]
		if f.ActorID != "" && entry.ActorID != f.ActorID {
			continue
		}
		if f.Action != "" && entry.Action != f.Action {
			continue
		}
		out = append(out, entry)
	}
	if f.Offset > 0 {
		if f.Offset >= len(out) {
			return nil, nil
		}
		out = out[f.Offset:]
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

// --- session.TokenStore ---

func (s *Store) Revoke(ctx context.Context, tokenID, userID string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, exp := range s.revoked {
		if exp.Before(now) {
			delete(s.revoked, id)
		}
	}
	s.revoked[tokenID] = expiresAt
	return nil
}

func (s *Store) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	exp, ok := s.revoked[tokenID]
	return ok && exp.After(time.Now()), nil
}
