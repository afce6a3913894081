package rbac

import (
	"errors"
	"testing"
)

func TestParseRole(t *testing.T) {
	cases := []struct {
		raw     string
		want    Role
		wantErr bool
	}{
		{"employee", RoleEmployee, false},
		{"it", RoleIT, false},
		{"admin", RoleAdmin, false},
		{"  Admin  ", RoleAdmin, false},
		{"IT", RoleIT, false},
		{"", "", true},
		{"superuser", "", true},
		{"administrator", "", true},
	}
	for _, tc := range cases {
		got, err := ParseRole(tc.raw)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseRole(%q): expected error", tc.raw)
			}
			if !errors.Is(err, ErrInvalidInput) {
				t.Errorf("ParseRole(%q): error should wrap ErrInvalidInput, got %v", tc.raw, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseRole(%q): unexpected error %v", tc.raw, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseRole(%q) = %q, want %q", tc.raw, got, tc.want)
		}
	}
}

func TestRoleOrder(t *testing.T) {
	if !(RoleEmployee.Rank() < RoleIT.Rank() && RoleIT.Rank() < RoleAdmin.Rank()) {
		t.Fatal("role ranks must be strictly ordered employee < it < admin")
	}

	// AtLeast is reflexive and monotone over the order.
	all := AllRoles()
	for i, r := range all {
		for j, min := range all {
			got := r.AtLeast(min)
			want := i >= j
			if got != want {
				t.Errorf("%s.AtLeast(%s) = %v, want %v", r, min, got, want)
			}
		}
	}
}

func TestRoleAtLeastInvalid(t *testing.T) {
	if Role("superuser").AtLeast(RoleEmployee) {
		t.Error("invalid role must never satisfy AtLeast")
	}
	if RoleAdmin.AtLeast(Role("superuser")) {
		t.Error("AtLeast against an invalid minimum must be false")
	}
}
