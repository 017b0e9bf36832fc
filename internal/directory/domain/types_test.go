package domain

import "testing"

func TestParseRole(t *testing.T) {
	for _, r := range AllRoles {
		got, ok := ParseRole(r.String())
		if !ok || got != r {
			t.Errorf("ParseRole(%q) = %v, %v", r, got, ok)
		}
	}
	if _, ok := ParseRole("janitor"); ok {
		t.Error("ParseRole accepted an unknown role")
	}
	if _, ok := ParseRole(""); ok {
		t.Error("ParseRole accepted the empty string")
	}
}

func TestStaffRolesExcludesPatients(t *testing.T) {
	if len(StaffRoles) != len(AllRoles)-1 {
		t.Fatalf("staff roles = %v", StaffRoles)
	}
	for _, r := range StaffRoles {
		if r == RolePatient {
			t.Fatal("patient listed as staff")
		}
	}
}
