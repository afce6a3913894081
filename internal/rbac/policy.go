package rbac

// Policy predicates for every protected resource. Each maps (principal,
// operation, target) to an allow decision; everything not allowed here is
// denied. There is no rule composition beyond "ownership OR sufficient role".

// CanReadProfile allows a principal to read its own record; reading anyone
// else's requires the admin role.
func CanReadProfile(p Principal, targetID string) bool {
	if p.ID != "" && p.ID == targetID {
		return true
	}
	return p.HasRole(RoleAdmin)
}

// CanManageProfiles covers creating, updating and deleting principal records
// and listing arbitrary ones.
func CanManageProfiles(p Principal) bool {
	return p.HasRole(RoleAdmin)
}

// CanCreateIncident allows creation only when the incident is attributed to
// the acting principal itself.
func CanCreateIncident(p Principal, createdBy string) bool {
	return p.ID != "" && p.ID == createdBy
}

// CanReadIncident allows the owner, or anyone holding it or higher.
func CanReadIncident(p Principal, createdBy string) bool {
	if p.ID != "" && p.ID == createdBy {
		return true
	}
	return p.HasRoleOrHigher(RoleIT)
}

// CanUpdateIncident gates status transitions, resolution comments and
// assignment. Exactly the it role: admins without an it assignment are
// deliberately excluded from direct incident mutation. Several policy
// revisions kept this narrowing, so it is preserved as-is.
func CanUpdateIncident(p Principal) bool {
	return p.HasRole(RoleIT)
}

// CanReadAudit restricts the audit trail to admins.
func CanReadAudit(p Principal) bool {
	return p.HasRole(RoleAdmin)
}

// CanAppendAudit is unconditional: the log is write-open, read-restricted.
// System actions with no resolved principal may append too.
func CanAppendAudit(Principal) bool {
	return true
}

// IncidentScope is the row-level filter applied to incident list queries
// before they reach the store.
type IncidentScope struct {
	// CreatedBy restricts visible rows to a single owner when non-empty.
	CreatedBy string
}

// IncidentListScope returns the filter for the requesting principal:
// an effective set holding only employee sees its own submissions, anyone
// holding it or admin sees every row.
func IncidentListScope(p Principal) IncidentScope {
	if p.HasRoleOrHigher(RoleIT) {
		return IncidentScope{}
	}
	return IncidentScope{CreatedBy: p.ID}
}
