package rbac

// Principal is the authenticated identity every authorization check runs
// against. Roles carries the multi-role assignment rows; PrimaryRole is the
// legacy single-valued column retained for records that predate multi-role
// support.
type Principal struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	PrimaryRole Role   `json:"primary_role"`
	Roles       []Role `json:"roles,omitempty"`
}

// EffectiveRoles resolves the assignment set used by every role check: the
// multi-role set when present, otherwise a singleton of the legacy primary
// role. A principal with neither gets an empty set and is treated as
// least-privileged.
func (p Principal) EffectiveRoles() []Role {
	if len(p.Roles) > 0 {
		out := make([]Role, 0, len(p.Roles))
		for _, r := range p.Roles {
			if r.Valid() {
				out = append(out, r)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	if p.PrimaryRole.Valid() {
		return []Role{p.PrimaryRole}
	}
	return nil
}

// HasRole reports whether role is a member of the effective assignment set.
func (p Principal) HasRole(role Role) bool {
	for _, r := range p.EffectiveRoles() {
		if r == role {
			return true
		}
	}
	return false
}

// HasRoleOrHigher reports whether any assigned role satisfies min. The check
// is existential over the set, not over a single field: a principal holding
// both employee and it passes HasRoleOrHigher(RoleIT) even while the legacy
// primary-role column still says employee.
func (p Principal) HasRoleOrHigher(min Role) bool {
	for _, r := range p.EffectiveRoles() {
		if r.AtLeast(min) {
			return true
		}
	}
	return false
}
