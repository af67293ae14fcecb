package http

import (
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"log"
	"net/http"
	"strings"

	"quiz-portal/internal/api"
	"quiz-portal/internal/app"
	"quiz-portal/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/render"
	"github.com/google/uuid"
	"github.com/gorilla/sessions"
	"github.com/gorilla/websocket"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

const (
	cookieName = "quiz-portal"
	sessionKey = "sid"

	ctxSessionID   = "sessionID"
	ctxIdentity    = "identity"
	ctxIdentityErr = "identityErr"
)

// Options configures the web handler.
type Options struct {
	Auth          *app.Auth
	Client        *api.Client
	SessionSecret string
	SecureCookies bool
	// DefaultSeconds pre-fills the time limit of the create-quiz form.
	DefaultSeconds    int
	ControllerOptions []app.ControllerOption
}

// Handler serves the portal pages and the live quiz channel.
type Handler struct {
	auth           *app.Auth
	client         *api.Client
	cookies        sessions.Store
	pages          map[string]*template.Template
	upgrader       websocket.Upgrader
	defaultSeconds int
	controllerOpts []app.ControllerOption
}

func NewHandler(opts Options) (*Handler, error) {
	if opts.SessionSecret == "" {
		return nil, errors.New("session secret not configured")
	}
	pages, err := parsePages()
	if err != nil {
		return nil, err
	}

	store := sessions.NewCookieStore([]byte(opts.SessionSecret))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   7 * 24 * 60 * 60,
		HttpOnly: true,
		Secure:   opts.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	}

	seconds := opts.DefaultSeconds
	if seconds <= 0 {
		seconds = 20
	}
	return &Handler{
		auth:    opts.Auth,
		client:  opts.Client,
		cookies: store,
		pages:   pages,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     sameOrigin,
		},
		defaultSeconds: seconds,
		controllerOpts: opts.ControllerOptions,
	}, nil
}

func parsePages() (map[string]*template.Template, error) {
	names, err := fs.Glob(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	funcs := template.FuncMap{
		"inc": func(i int) int { return i + 1 },
		"contains": func(ids []int64, id int64) bool {
			for _, v := range ids {
				if v == id {
					return true
				}
			}
			return false
		},
	}
	pages := make(map[string]*template.Template)
	for _, name := range names {
		page := strings.TrimSuffix(strings.TrimPrefix(name, "templates/"), ".html")
		if page == "layout" {
			continue
		}
		t, err := template.New(page).Funcs(funcs).ParseFS(templateFS, "templates/layout.html", name)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		pages[page] = t
	}
	return pages, nil
}

// Router wires every route with its guard.
func (h *Handler) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	static, _ := fs.Sub(staticFS, "static")
	r.StaticFS("/static", http.FS(static))
	r.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	site := r.Group("/", h.identify)
	site.GET("/", h.home)
	site.GET("/login", h.loginForm)
	site.POST("/login", h.login)
	site.GET("/register", h.registerForm)
	site.POST("/register", h.register)
	site.POST("/logout", h.logout)

	member := site.Group("/", h.require(app.PolicyAuthenticated))
	member.GET("/quiz", h.firstQuiz)
	member.GET("/quiz/:slug", h.quizPage)
	member.GET("/quiz/:slug/live", h.serveLive)
	member.GET("/quiz/:slug/result", h.resultPage)
	member.GET("/dashboard", h.dashboard)

	teacher := member.Group("/teacher/quizzes")
	teacher.GET("", h.teacherQuizzes)
	teacher.POST("", h.createQuiz)
	teacher.GET("/:id/questions", h.questions)
	teacher.POST("/:id/questions", h.createQuestion)
	teacher.POST("/:id/questions/:qid", h.updateQuestion)
	teacher.POST("/:id/questions/:qid/delete", h.deleteQuestion)
	teacher.GET("/:id/results", h.quizResults)

	admin := site.Group("/admin", h.require(app.PolicyAdmin))
	admin.GET("", h.adminAttempts)
	admin.GET("/users", h.adminUsers)
	admin.POST("/users/:id/role", h.setRole)

	r.NoRoute(func(c *gin.Context) {
		c.Redirect(http.StatusSeeOther, app.LoginPath)
	})
	return r
}

// identify resolves the browser session's identity before any handler runs.
func (h *Handler) identify(c *gin.Context) {
	sid := h.sessionID(c)
	c.Set(ctxSessionID, sid)
	if sid == "" {
		c.Next()
		return
	}
	identity, err := h.auth.Resolve(c.Request.Context(), sid)
	if err != nil {
		log.Printf("resolve identity: %v", err)
		c.Set(ctxIdentityErr, err)
	}
	if identity != nil {
		c.Set(ctxIdentity, identity)
	}
	c.Next()
}

func (h *Handler) require(policy app.Policy) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err, ok := c.Get(ctxIdentityErr); ok {
			h.fail(c, err.(error))
			c.Abort()
			return
		}
		decision := app.Authorize(identityOf(c), policy)
		if !decision.Allow {
			c.Redirect(http.StatusSeeOther, decision.Redirect)
			c.Abort()
			return
		}
		c.Next()
	}
}

func identityOf(c *gin.Context) *domain.Identity {
	v, ok := c.Get(ctxIdentity)
	if !ok {
		return nil
	}
	return v.(*domain.Identity)
}

// sessionID returns the id stored in the cookie, "" when there is none.
func (h *Handler) sessionID(c *gin.Context) string {
	sess, err := h.cookies.Get(c.Request, cookieName)
	if err != nil {
		return ""
	}
	id, _ := sess.Values[sessionKey].(string)
	return id
}

// ensureSessionID returns the browser's session id, issuing a cookie first
// if needed.
func (h *Handler) ensureSessionID(c *gin.Context) (string, error) {
	if sid := c.GetString(ctxSessionID); sid != "" {
		return sid, nil
	}
	sess, _ := h.cookies.Get(c.Request, cookieName)
	sid := uuid.NewString()
	sess.Values[sessionKey] = sid
	if err := sess.Save(c.Request, c.Writer); err != nil {
		return "", fmt.Errorf("save session cookie: %w", err)
	}
	c.Set(ctxSessionID, sid)
	return sid, nil
}

// apiFor returns a client bound to the session's credential.
func (h *Handler) apiFor(c *gin.Context) *api.Client {
	sid := c.GetString(ctxSessionID)
	if sid == "" {
		return h.client
	}
	token, err := h.auth.Token(c.Request.Context(), sid)
	if err != nil {
		log.Printf("load credential: %v", err)
	}
	return h.client.WithToken(token)
}

// signOut drops the session's credential after the API rejected it.
func (h *Handler) signOut(c *gin.Context) {
	sid := c.GetString(ctxSessionID)
	if sid == "" {
		return
	}
	if err := h.auth.Invalidate(c.Request.Context(), sid); err != nil {
		log.Printf("invalidate credential: %v", err)
	}
}

type navLink struct {
	Label string
	Href  string
}

func navLinks(role domain.Role) []navLink {
	switch role {
	case domain.RoleAdmin:
		return []navLink{{"Admin dashboard", "/admin"}, {"Users", "/admin/users"}}
	case domain.RoleTeacher:
		return []navLink{{"Home", "/"}, {"My quizzes", "/teacher/quizzes"}}
	default:
		return []navLink{{"Home", "/"}, {"Quiz", "/quiz"}, {"Dashboard", "/dashboard"}}
	}
}

var guestLinks = []navLink{{"Home", "/"}, {"Log in", "/login"}, {"Register", "/register"}}

type view struct {
	Title    string
	Identity *domain.Identity
	Nav      []navLink
	Error    string
	Data     any
}

func (h *Handler) render(c *gin.Context, status int, page, title string, data any) {
	h.renderView(c, status, page, view{Title: title, Data: data})
}

func (h *Handler) renderView(c *gin.Context, status int, page string, v view) {
	t, ok := h.pages[page]
	if !ok {
		log.Printf("unknown page %q", page)
		c.String(http.StatusInternalServerError, "internal error")
		return
	}
	v.Identity = identityOf(c)
	if v.Identity != nil {
		v.Nav = navLinks(v.Identity.Role())
	} else {
		v.Nav = guestLinks
	}
	c.Render(status, render.HTML{Template: t, Name: "layout", Data: v})
}

type messageData struct {
	Message string
}

func (h *Handler) renderMessage(c *gin.Context, status int, title, message string) {
	h.render(c, status, "message", title, messageData{Message: message})
}

// fail reports err on a page request. A rejected credential signs the
// browser session out and sends it to the login page.
func (h *Handler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		h.signOut(c)
		c.Redirect(http.StatusSeeOther, app.LoginPath)
	case errors.Is(err, domain.ErrNotFound):
		h.renderMessage(c, http.StatusNotFound, "Not found", "This page does not exist.")
	default:
		log.Printf("%s %s: %v", c.Request.Method, c.Request.URL.Path, err)
		h.renderMessage(c, http.StatusBadGateway, "Error", "The quiz service is unavailable. Please try again later.")
	}
}

// formMessage extracts what a 422 response said about the submitted form.
func formMessage(err error) string {
	var statusErr *api.StatusError
	if errors.As(err, &statusErr) {
		if fields := statusErr.FieldMessages(); len(fields) > 0 {
			return strings.Join(fields, " ")
		}
		if statusErr.Message != "" {
			return statusErr.Message
		}
	}
	if errors.Is(err, domain.ErrValidation) {
		if _, detail, ok := strings.Cut(err.Error(), ": "); ok {
			return detail
		}
	}
	return "Please check the form and try again."
}

func sameOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	return strings.TrimPrefix(strings.TrimPrefix(origin, "https://"), "http://") == r.Host
}
