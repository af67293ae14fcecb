package domain

import "testing"

func TestIdentityRole(t *testing.T) {
	cases := []struct {
		identity Identity
		want     Role
	}{
		{Identity{}, RoleLearner},
		{Identity{IsTeacher: true}, RoleTeacher},
		{Identity{IsAdmin: true}, RoleAdmin},
		{Identity{IsAdmin: true, IsTeacher: true}, RoleAdmin},
	}
	for _, tc := range cases {
		if got := tc.identity.Role(); got != tc.want {
			t.Fatalf("role for %+v: expected %s, got %s", tc.identity, tc.want, got)
		}
	}
}
