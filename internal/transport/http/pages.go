package http

import (
	"errors"
	"log"
	"net/http"
	"net/url"
	"strings"

	"quiz-portal/internal/app"
	"quiz-portal/internal/domain"
	"github.com/gin-gonic/gin"
)

type homeData struct {
	Quizzes []domain.Quiz
}

func (h *Handler) home(c *gin.Context) {
	quizzes, err := h.apiFor(c).ListQuizzes(c.Request.Context())
	if err != nil {
		if errors.Is(err, domain.ErrUnauthorized) {
			h.fail(c, err)
			return
		}
		log.Printf("load catalog: %v", err)
		h.renderView(c, http.StatusOK, "home", view{
			Title: "Quizzes",
			Error: "Could not load quizzes. Please try again later.",
			Data:  homeData{},
		})
		return
	}
	h.render(c, http.StatusOK, "home", "Quizzes", homeData{Quizzes: quizzes})
}

type loginData struct {
	Email string
}

func (h *Handler) loginForm(c *gin.Context) {
	h.render(c, http.StatusOK, "login", "Log in", loginData{})
}

func (h *Handler) login(c *gin.Context) {
	email := strings.TrimSpace(c.PostForm("email"))
	password := c.PostForm("password")

	sid, err := h.ensureSessionID(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	identity, err := h.auth.Login(c.Request.Context(), sid, email, password)
	if err != nil {
		if !errors.Is(err, domain.ErrInvalidCredentials) {
			log.Printf("login: %v", err)
		}
		h.renderView(c, http.StatusUnprocessableEntity, "login", view{
			Title: "Log in",
			Error: "Invalid credentials.",
			Data:  loginData{Email: email},
		})
		return
	}
	if identity.IsAdmin {
		c.Redirect(http.StatusSeeOther, app.AdminHomePath)
		return
	}
	c.Redirect(http.StatusSeeOther, "/")
}

type registerData struct {
	Name  string
	Email string
}

func (h *Handler) registerForm(c *gin.Context) {
	h.render(c, http.StatusOK, "register", "Register", registerData{})
}

func (h *Handler) register(c *gin.Context) {
	reg := domain.Registration{
		Name:                 strings.TrimSpace(c.PostForm("name")),
		Email:                strings.TrimSpace(c.PostForm("email")),
		Password:             c.PostForm("password"),
		PasswordConfirmation: c.PostForm("password_confirmation"),
	}

	sid, err := h.ensureSessionID(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	if _, err := h.auth.Register(c.Request.Context(), sid, reg); err != nil {
		if !errors.Is(err, domain.ErrInvalidCredentials) {
			log.Printf("register: %v", err)
		}
		h.renderView(c, http.StatusUnprocessableEntity, "register", view{
			Title: "Register",
			Error: "Registration failed. Please check your details.",
			Data:  registerData{Name: reg.Name, Email: reg.Email},
		})
		return
	}
	c.Redirect(http.StatusSeeOther, "/")
}

func (h *Handler) logout(c *gin.Context) {
	if sid := c.GetString(ctxSessionID); sid != "" {
		if err := h.auth.Logout(c.Request.Context(), sid); err != nil {
			log.Printf("logout: %v", err)
		}
	}
	c.Redirect(http.StatusSeeOther, app.LoginPath)
}

func (h *Handler) firstQuiz(c *gin.Context) {
	slug, err := app.ResolveSlug(c.Request.Context(), h.apiFor(c))
	if err != nil {
		if errors.Is(err, domain.ErrNoQuizAvailable) {
			h.renderMessage(c, http.StatusOK, "Quiz", "No quiz available.")
			return
		}
		h.fail(c, err)
		return
	}
	c.Redirect(http.StatusSeeOther, "/quiz/"+url.PathEscape(slug))
}

type quizData struct {
	Slug string
}

func (h *Handler) quizPage(c *gin.Context) {
	h.render(c, http.StatusOK, "quiz", "Quiz", quizData{Slug: c.Param("slug")})
}

type resultData struct {
	Slug    string
	Attempt domain.Attempt
}

func (h *Handler) resultPage(c *gin.Context) {
	slug := c.Param("slug")
	attempt, err := h.apiFor(c).MyAttempt(c.Request.Context(), slug)
	if err != nil {
		h.fail(c, err)
		return
	}
	if !attempt.IsFinished {
		c.Redirect(http.StatusSeeOther, "/quiz/"+url.PathEscape(slug))
		return
	}
	h.render(c, http.StatusOK, "result", "Result", resultData{Slug: slug, Attempt: attempt})
}

type dashboardData struct {
	Entries []app.DashboardEntry
}

func (h *Handler) dashboard(c *gin.Context) {
	entries, err := app.LoadDashboard(c.Request.Context(), h.apiFor(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	h.render(c, http.StatusOK, "dashboard", "Dashboard", dashboardData{Entries: entries})
}
