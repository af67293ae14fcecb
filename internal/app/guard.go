package app

import "quiz-portal/internal/domain"

const (
	LoginPath       = "/login"
	AdminHomePath   = "/admin"
	LearnerHomePath = "/dashboard"
)

// Policy selects which capability check a route applies.
type Policy int

const (
	// PolicyAuthenticated admits signed-in learners and teachers.
	PolicyAuthenticated Policy = iota
	// PolicyAdmin admits administrators only.
	PolicyAdmin
)

// Decision is the outcome of a guard check.
type Decision struct {
	Allow    bool
	Redirect string
}

// Authorize applies policy to the current identity (nil when signed out).
func Authorize(identity *domain.Identity, policy Policy) Decision {
	if identity == nil {
		return Decision{Redirect: LoginPath}
	}
	switch policy {
	case PolicyAdmin:
		if !identity.IsAdmin {
			return Decision{Redirect: LearnerHomePath}
		}
	default:
		// Admins do not use learner or teacher routes.
		if identity.IsAdmin {
			return Decision{Redirect: AdminHomePath}
		}
	}
	return Decision{Allow: true}
}
