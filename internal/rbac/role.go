package rbac

import (
	"fmt"
	"strings"
)

// Role is one of three fixed privilege levels with a strict total order:
// employee < it < admin. The set is closed; adding a role is a code change.
type Role string

const (
	RoleEmployee Role = "employee"
	RoleIT       Role = "it"
	RoleAdmin    Role = "admin"
)

var roleRanks = map[Role]int{
	RoleEmployee: 0,
	RoleIT:       1,
	RoleAdmin:    2,
}

// AllRoles returns the fixed role set ordered by increasing privilege.
func AllRoles() []Role {
	return []Role{RoleEmployee, RoleIT, RoleAdmin}
}

// ParseRole validates a raw role value at the deserialization boundary.
// Unknown values are rejected here so the evaluator never sees one.
func ParseRole(raw string) (Role, error) {
	role := Role(strings.TrimSpace(strings.ToLower(raw)))
	if !role.Valid() {
		return "", fmt.Errorf("%w: unknown role %q", ErrInvalidInput, raw)
	}
	return role, nil
}

// Valid reports whether the role belongs to the fixed set.
func (r Role) Valid() bool {
	_, ok := roleRanks[r]
	return ok
}

// Rank returns the position in the privilege order: employee=0, it=1, admin=2.
func (r Role) Rank() int {
	return roleRanks[r]
}

// AtLeast reports whether the role carries at least the privilege of min.
func (r Role) AtLeast(min Role) bool {
	return r.Valid() && min.Valid() && r.Rank() >= min.Rank()
}
