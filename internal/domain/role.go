package domain

// Role is the closed set of navigation profiles derived from an Identity.
type Role int

const (
	RoleLearner Role = iota
	RoleTeacher
	RoleAdmin
)

func (r Role) String() string {
	switch r {
	case RoleAdmin:
		return "admin"
	case RoleTeacher:
		return "teacher"
	default:
		return "learner"
	}
}

// Role derives the navigation profile. Admin takes precedence over teacher.
func (i Identity) Role() Role {
	switch {
	case i.IsAdmin:
		return RoleAdmin
	case i.IsTeacher:
		return RoleTeacher
	default:
		return RoleLearner
	}
}
