package rbac

import (
	"context"
	"testing"
)

func employee(id string) Principal { return Principal{ID: id, PrimaryRole: RoleEmployee} }
func itStaff(id string) Principal  { return Principal{ID: id, PrimaryRole: RoleIT} }
func admin(id string) Principal    { return Principal{ID: id, PrimaryRole: RoleAdmin} }

func TestCanReadProfile(t *testing.T) {
	if !CanReadProfile(employee("u1"), "u1") {
		t.Error("a principal may read its own profile")
	}
	if CanReadProfile(employee("u1"), "u2") {
		t.Error("an employee may not read another profile")
	}
	if CanReadProfile(itStaff("u1"), "u2") {
		t.Error("it staff may not read another profile")
	}
	if !CanReadProfile(admin("u1"), "u2") {
		t.Error("an admin may read any profile")
	}
	if CanReadProfile(Principal{}, "") {
		t.Error("an anonymous principal never matches ownership")
	}
}

func TestCanManageProfiles(t *testing.T) {
	if CanManageProfiles(employee("u1")) || CanManageProfiles(itStaff("u2")) {
		t.Error("profile management is admin-only")
	}
	if !CanManageProfiles(admin("u3")) {
		t.Error("admin must be able to manage profiles")
	}
}

func TestCanCreateIncident(t *testing.T) {
	if !CanCreateIncident(employee("u1"), "u1") {
		t.Error("any authenticated principal may file an incident for itself")
	}
	if CanCreateIncident(employee("u1"), "u2") {
		t.Error("incidents cannot be filed on someone else's behalf")
	}
	if CanCreateIncident(Principal{}, "") {
		t.Error("empty principal id must not pass the ownership check")
	}
}

func TestCanReadIncident(t *testing.T) {
	if !CanReadIncident(employee("u1"), "u1") {
		t.Error("the reporter may read its own incident")
	}
	if CanReadIncident(employee("u1"), "u2") {
		t.Error("an employee may not read someone else's incident")
	}
	if !CanReadIncident(itStaff("staff"), "u2") {
		t.Error("it staff may read any incident")
	}
	if !CanReadIncident(admin("root"), "u2") {
		t.Error("admin satisfies the it-or-higher floor for reads")
	}
	// Existential check over a multi-role set.
	both := Principal{ID: "u9", PrimaryRole: RoleEmployee, Roles: []Role{RoleEmployee, RoleIT}}
	if !CanReadIncident(both, "other") {
		t.Error("an employee holding an extra it assignment may read any incident")
	}
}

func TestCanUpdateIncidentExcludesAdmin(t *testing.T) {
	if CanUpdateIncident(employee("u1")) {
		t.Error("employees may not update incidents")
	}
	if !CanUpdateIncident(itStaff("staff")) {
		t.Error("it staff may update incidents")
	}
	// Updates require holding it exactly; a pure admin does not qualify.
	if CanUpdateIncident(admin("root")) {
		t.Error("an admin without an it assignment may not update incidents")
	}
	adminWithIT := Principal{ID: "root", PrimaryRole: RoleAdmin, Roles: []Role{RoleAdmin, RoleIT}}
	if !CanUpdateIncident(adminWithIT) {
		t.Error("an admin who also holds it may update incidents")
	}
}

func TestCanReadAudit(t *testing.T) {
	if CanReadAudit(employee("u1")) || CanReadAudit(itStaff("u2")) {
		t.Error("the audit trail is admin-only")
	}
	if !CanReadAudit(admin("u3")) {
		t.Error("admin must be able to read the audit trail")
	}
}

func TestCanAppendAudit(t *testing.T) {
	for _, p := range []Principal{{}, employee("u1"), itStaff("u2"), admin("u3")} {
		if !CanAppendAudit(p) {
			t.Errorf("audit append is write-open, denied for %+v", p)
		}
	}
}

func TestIncidentListScope(t *testing.T) {
	if got := IncidentListScope(employee("u1")); got.CreatedBy != "u1" {
		t.Errorf("employee scope pinned to own id, got %q", got.CreatedBy)
	}
	if got := IncidentListScope(itStaff("staff")); got.CreatedBy != "" {
		t.Errorf("it staff sees every row, got scope %q", got.CreatedBy)
	}
	if got := IncidentListScope(admin("root")); got.CreatedBy != "" {
		t.Errorf("admin sees every row, got scope %q", got.CreatedBy)
	}
	both := Principal{ID: "u9", PrimaryRole: RoleEmployee, Roles: []Role{RoleEmployee, RoleIT}}
	if got := IncidentListScope(both); got.CreatedBy != "" {
		t.Errorf("employee+it sees every row, got scope %q", got.CreatedBy)
	}
}

func TestPrincipalContextRoundTrip(t *testing.T) {
	p := admin("root")
	ctx := ContextWithPrincipal(context.Background(), p)
	got, ok := PrincipalFromContext(ctx)
	if !ok || got.ID != "root" {
		t.Fatalf("principal lost in context round trip: %+v ok=%v", got, ok)
	}
	if _, ok := PrincipalFromContext(context.Background()); ok {
		t.Error("empty context must not yield a principal")
	}
}
