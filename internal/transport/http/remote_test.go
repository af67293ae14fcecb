package http

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"quiz-portal/internal/api"
	"quiz-portal/internal/app"
	"quiz-portal/internal/domain"
	"quiz-portal/internal/infra/memory"
	"github.com/gin-gonic/gin"
)

const testPassword = "secret"

// fakeRemote is an in-process stand-in for the quiz API.
type fakeRemote struct {
	mu        sync.Mutex
	users     []domain.Identity
	tokens    map[string]int64
	quizzes   []domain.Quiz
	questions map[int64][]domain.Question
	attempts  map[string]*domain.Attempt // token|slug
	results   map[int64][]domain.Attempt
	hits      map[string]int
	nextID    int64

	// privateCatalog makes the catalog reject anonymous requests.
	privateCatalog bool
}

func newFakeRemote() *fakeRemote {
	f := &fakeRemote{
		users: []domain.Identity{
			{ID: 1, Name: "Ann Learner", Email: "ann@example.com"},
			{ID: 2, Name: "Tom Teacher", Email: "tom@example.com", IsTeacher: true},
			{ID: 3, Name: "Ada Admin", Email: "ada@example.com", IsAdmin: true},
			{ID: 4, Name: "Bob Learner", Email: "bob@example.com"},
		},
		tokens:    make(map[string]int64),
		questions: make(map[int64][]domain.Question),
		attempts:  make(map[string]*domain.Attempt),
		results:   make(map[int64][]domain.Attempt),
		hits:      make(map[string]int),
		nextID:    100,
	}
	owner := f.users[1]
	f.quizzes = []domain.Quiz{{
		ID: 1, Slug: "web", Title: "Web basics", QuestionCount: 2,
		TimePerQuestionSeconds: 20, IsActive: true, Owner: &owner,
	}}
	f.questions[1] = []domain.Question{
		{ID: 11, Position: 1, Text: "Which tag links a page?", Options: []domain.Option{
			{ID: 111, Text: "<a>", IsCorrect: true},
			{ID: 112, Text: "<p>"},
		}},
		{ID: 12, Position: 2, Text: "Which status means unauthorized?", Options: []domain.Option{
			{ID: 121, Text: "401", IsCorrect: true},
			{ID: 122, Text: "404"},
		}},
	}
	f.results[1] = []domain.Attempt{
		{ID: 1, User: &f.users[0], Score: 2, Total: 2, IsFinished: true},
		{ID: 2, User: &f.users[3], Score: 0, Total: 2},
	}
	return f
}

func (f *fakeRemote) revokeAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens = make(map[string]int64)
}

func (f *fakeRemote) hitCount(route string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hits[route]
}

func (f *fakeRemote) totalHits() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, v := range f.hits {
		n += v
	}
	return n
}

func (f *fakeRemote) handler() http.Handler {
	mux := http.NewServeMux()
	handle := func(pattern string, fn func(w http.ResponseWriter, r *http.Request)) {
		mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
			f.mu.Lock()
			f.hits[pattern]++
			f.mu.Unlock()
			fn(w, r)
		})
	}

	handle("POST /api/login", f.login)
	handle("POST /api/logout", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		delete(f.tokens, bearer(r))
		f.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})
	handle("GET /api/user", func(w http.ResponseWriter, r *http.Request) {
		if user, ok := f.authorize(w, r); ok {
			writeJSON(w, http.StatusOK, user)
		}
	})
	handle("GET /api/quizzes", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if r.Header.Get("Authorization") != "" || f.privateCatalog {
			if _, ok := f.tokens[bearer(r)]; !ok {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Unauthenticated."})
				return
			}
		}
		writeJSON(w, http.StatusOK, f.quizzes)
	})
	handle("POST /api/quizzes/{slug}/start", func(w http.ResponseWriter, r *http.Request) {
		user, ok := f.authorize(w, r)
		if !ok {
			return
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		quiz := f.quizBySlug(r.PathValue("slug"))
		if quiz == nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not found."})
			return
		}
		key := bearer(r) + "|" + quiz.Slug
		if _, ok := f.attempts[key]; !ok {
			f.attempts[key] = &domain.Attempt{ID: f.next(), User: &user, Quiz: quiz, Total: len(f.questions[quiz.ID])}
		}
		writeJSON(w, http.StatusOK, f.attempts[key])
	})
	handle("GET /api/quizzes/{slug}/current", func(w http.ResponseWriter, r *http.Request) {
		if _, ok := f.authorize(w, r); !ok {
			return
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		attempt, quiz := f.attemptFor(r)
		if attempt == nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not found."})
			return
		}
		writeJSON(w, http.StatusOK, f.currentLocked(attempt, quiz))
	})
	handle("POST /api/quizzes/{slug}/answer", f.answer)
	handle("GET /api/quizzes/{slug}/attempt", func(w http.ResponseWriter, r *http.Request) {
		if _, ok := f.authorize(w, r); !ok {
			return
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		attempt, _ := f.attemptFor(r)
		if attempt == nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not found."})
			return
		}
		writeJSON(w, http.StatusOK, attempt)
	})

	handle("GET /api/teacher/quizzes", func(w http.ResponseWriter, r *http.Request) {
		user, ok := f.authorize(w, r)
		if !ok {
			return
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		var own []domain.Quiz
		for _, q := range f.quizzes {
			if q.Owner != nil && q.Owner.ID == user.ID {
				own = append(own, q)
			}
		}
		writeJSON(w, http.StatusOK, own)
	})
	handle("POST /api/teacher/quizzes", f.createQuiz)
	handle("GET /api/teacher/quizzes/{id}/questions", func(w http.ResponseWriter, r *http.Request) {
		if _, ok := f.authorize(w, r); !ok {
			return
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		id, _ := strconv.ParseInt(r.PathValue("id"), 10, 64)
		for _, q := range f.quizzes {
			if q.ID == id {
				writeJSON(w, http.StatusOK, domain.QuizDetail{Quiz: q, Questions: f.questions[id]})
				return
			}
		}
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not found."})
	})
	handle("POST /api/teacher/quizzes/{id}/questions", func(w http.ResponseWriter, r *http.Request) {
		if _, ok := f.authorize(w, r); !ok {
			return
		}
		var q domain.Question
		if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
			writeJSON(w, http.StatusBadRequest, nil)
			return
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		id, _ := strconv.ParseInt(r.PathValue("id"), 10, 64)
		q.ID = f.next()
		q.Position = len(f.questions[id]) + 1
		f.questions[id] = append(f.questions[id], q)
		writeJSON(w, http.StatusCreated, q)
	})
	handle("GET /api/teacher/quizzes/{id}/attempts", func(w http.ResponseWriter, r *http.Request) {
		if _, ok := f.authorize(w, r); !ok {
			return
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		id, _ := strconv.ParseInt(r.PathValue("id"), 10, 64)
		writeJSON(w, http.StatusOK, domain.QuizAttempts{Quiz: f.quizzes[0], Attempts: f.results[id]})
	})

	handle("GET /api/admin/attempts", func(w http.ResponseWriter, r *http.Request) {
		if _, ok := f.authorize(w, r); !ok {
			return
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		writeJSON(w, http.StatusOK, f.results[1])
	})
	handle("GET /api/admin/users", func(w http.ResponseWriter, r *http.Request) {
		if _, ok := f.authorize(w, r); !ok {
			return
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		writeJSON(w, http.StatusOK, f.users)
	})
	handle("PATCH /api/admin/users/{id}/role", func(w http.ResponseWriter, r *http.Request) {
		if _, ok := f.authorize(w, r); !ok {
			return
		}
		var body struct {
			IsTeacher bool `json:"is_teacher"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		defer f.mu.Unlock()
		id, _ := strconv.ParseInt(r.PathValue("id"), 10, 64)
		for i := range f.users {
			if f.users[i].ID == id {
				f.users[i].IsTeacher = body.IsTeacher
				writeJSON(w, http.StatusOK, f.users[i])
				return
			}
		}
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not found."})
	})
	return mux
}

func (f *fakeRemote) login(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	f.mu.Lock()
	defer f.mu.Unlock()
	for _, user := range f.users {
		if user.Email == body.Email && body.Password == testPassword {
			token := "tok-" + strconv.FormatInt(f.next(), 10)
			f.tokens[token] = user.ID
			writeJSON(w, http.StatusOK, domain.AuthResult{Token: token, User: user})
			return
		}
	}
	writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "These credentials do not match our records."})
}

func (f *fakeRemote) createQuiz(w http.ResponseWriter, r *http.Request) {
	user, ok := f.authorize(w, r)
	if !ok {
		return
	}
	var in domain.NewQuiz
	_ = json.NewDecoder(r.Body).Decode(&in)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.quizBySlug(in.Slug) != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"message": "The given data was invalid.",
			"errors":  map[string][]string{"slug": {"The slug has already been taken."}},
		})
		return
	}
	quiz := domain.Quiz{
		ID: f.next(), Slug: in.Slug, Title: in.Title,
		TimePerQuestionSeconds: in.TimePerQuestionSeconds, IsActive: in.IsActive, Owner: &user,
	}
	f.quizzes = append(f.quizzes, quiz)
	writeJSON(w, http.StatusCreated, quiz)
}

func (f *fakeRemote) answer(w http.ResponseWriter, r *http.Request) {
	if _, ok := f.authorize(w, r); !ok {
		return
	}
	var sub domain.AnswerSubmission
	_ = json.NewDecoder(r.Body).Decode(&sub)

	f.mu.Lock()
	defer f.mu.Unlock()
	attempt, quiz := f.attemptFor(r)
	if attempt == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not found."})
		return
	}
	questions := f.questions[quiz.ID]
	if attempt.IsFinished {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"message": "Attempt already finished."})
		return
	}

	q := questions[len(attempt.Answers)]
	answer := domain.Answer{Position: q.Position, Question: &q, IsForfeit: sub.Forfeit}
	if !sub.Forfeit {
		answer.SelectedOptionIDs = sub.OptionIDs
		for _, opt := range q.Options {
			if opt.IsCorrect && len(sub.OptionIDs) == 1 && sub.OptionIDs[0] == opt.ID {
				answer.IsCorrect = true
				answer.Points = 1
			}
		}
	}
	attempt.Answers = append(attempt.Answers, answer)
	attempt.Score += answer.Points
	if len(attempt.Answers) == len(questions) {
		attempt.IsFinished = true
		now := time.Now()
		attempt.FinishedAt = &now
	}
	writeJSON(w, http.StatusOK, f.currentLocked(attempt, quiz))
}

func (f *fakeRemote) authorize(w http.ResponseWriter, r *http.Request) (domain.Identity, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.tokens[bearer(r)]
	if ok {
		for _, user := range f.users {
			if user.ID == id {
				return user, true
			}
		}
	}
	writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Unauthenticated."})
	return domain.Identity{}, false
}

func (f *fakeRemote) quizBySlug(slug string) *domain.Quiz {
	for i := range f.quizzes {
		if f.quizzes[i].Slug == slug {
			q := f.quizzes[i]
			return &q
		}
	}
	return nil
}

func (f *fakeRemote) attemptFor(r *http.Request) (*domain.Attempt, *domain.Quiz) {
	quiz := f.quizBySlug(r.PathValue("slug"))
	if quiz == nil {
		return nil, nil
	}
	return f.attempts[bearer(r)+"|"+quiz.Slug], quiz
}

func (f *fakeRemote) currentLocked(attempt *domain.Attempt, quiz *domain.Quiz) domain.CurrentState {
	questions := f.questions[quiz.ID]
	if attempt.IsFinished || len(attempt.Answers) >= len(questions) {
		return domain.CurrentState{Finished: true}
	}
	q := questions[len(attempt.Answers)]
	return domain.CurrentState{
		Position: q.Position,
		Total:    len(questions),
		TimeLeft: quiz.TimePerQuestionSeconds,
		Question: &q,
	}
}

func (f *fakeRemote) next() int64 {
	f.nextID++
	return f.nextID
}

func bearer(r *http.Request) string {
	return strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// portal is a running web portal in front of a fakeRemote.
type portal struct {
	remote *fakeRemote
	server *httptest.Server
}

func newPortal(t *testing.T, remote *fakeRemote) *portal {
	t.Helper()
	gin.SetMode(gin.TestMode)

	upstream := httptest.NewServer(remote.handler())
	t.Cleanup(upstream.Close)

	client := api.New(upstream.URL+"/api", 5*time.Second)
	handler, err := NewHandler(Options{
		Auth:          app.NewAuth(client, memory.NewCredentialStore()),
		Client:        client,
		SessionSecret: "test-secret",
	})
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}
	server := httptest.NewServer(handler.Router())
	t.Cleanup(server.Close)
	return &portal{remote: remote, server: server}
}

// browser returns a cookie-keeping client that does not follow redirects.
func (p *portal) browser(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookie jar: %v", err)
	}
	return &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
		Timeout: 5 * time.Second,
	}
}

func (p *portal) signedIn(t *testing.T, email string) *http.Client {
	t.Helper()
	b := p.browser(t)
	resp := p.post(t, b, "/login", url.Values{"email": {email}, "password": {testPassword}})
	if resp.Status != http.StatusSeeOther {
		t.Fatalf("login %s: expected redirect, got %d", email, resp.Status)
	}
	return b
}

type page struct {
	Status   int
	Location string
	Body     string
}

func (p *portal) get(t *testing.T, b *http.Client, path string) page {
	t.Helper()
	resp, err := b.Get(p.server.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	return readPage(t, resp)
}

func (p *portal) post(t *testing.T, b *http.Client, path string, form url.Values) page {
	t.Helper()
	resp, err := b.PostForm(p.server.URL+path, form)
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	return readPage(t, resp)
}

func readPage(t *testing.T, resp *http.Response) page {
	t.Helper()
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return page{Status: resp.StatusCode, Location: resp.Header.Get("Location"), Body: string(body)}
}
