package http

import (
	"net/http"

	"quiz-portal/internal/domain"
	"github.com/gin-gonic/gin"
)

type adminAttemptsData struct {
	Attempts []domain.Attempt
}

func (h *Handler) adminAttempts(c *gin.Context) {
	attempts, err := h.apiFor(c).AdminAttempts(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	h.render(c, http.StatusOK, "admin_attempts", "Admin dashboard", adminAttemptsData{Attempts: attempts})
}

type adminUsersData struct {
	Users []domain.Identity
}

func (h *Handler) adminUsers(c *gin.Context) {
	users, err := h.apiFor(c).AdminUsers(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	h.render(c, http.StatusOK, "admin_users", "Users", adminUsersData{Users: users})
}

func (h *Handler) setRole(c *gin.Context) {
	userID, ok := h.idParam(c, "id")
	if !ok {
		return
	}
	isTeacher := c.PostForm("is_teacher") == "true"
	if err := h.apiFor(c).SetTeacherRole(c.Request.Context(), userID, isTeacher); err != nil {
		h.fail(c, err)
		return
	}
	c.Redirect(http.StatusSeeOther, "/admin/users")
}
