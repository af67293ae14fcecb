package http

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"quiz-portal/internal/app"
	"quiz-portal/internal/domain"
	"github.com/gin-gonic/gin"
)

// blankOptionRows is how many empty option inputs a question form offers.
const blankOptionRows = 4

type teacherQuizzesData struct {
	Quizzes []domain.Quiz
	Form    domain.NewQuiz
}

func (h *Handler) teacherQuizzes(c *gin.Context) {
	form := domain.NewQuiz{TimePerQuestionSeconds: h.defaultSeconds, IsActive: true}
	h.showTeacherQuizzes(c, http.StatusOK, form, "")
}

func (h *Handler) showTeacherQuizzes(c *gin.Context, status int, form domain.NewQuiz, message string) {
	quizzes, err := h.apiFor(c).TeacherQuizzes(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	h.renderView(c, status, "teacher_quizzes", view{
		Title: "My quizzes",
		Error: message,
		Data:  teacherQuizzesData{Quizzes: quizzes, Form: form},
	})
}

func (h *Handler) createQuiz(c *gin.Context) {
	form := domain.NewQuiz{
		Title:                  strings.TrimSpace(c.PostForm("title")),
		Slug:                   strings.TrimSpace(c.PostForm("slug")),
		TimePerQuestionSeconds: h.defaultSeconds,
		IsActive:               c.PostForm("is_active") != "",
	}
	if raw := c.PostForm("time_per_question_seconds"); raw != "" {
		seconds, err := strconv.Atoi(raw)
		if err != nil || seconds <= 0 {
			h.showTeacherQuizzes(c, http.StatusUnprocessableEntity, form, "Time per question must be a positive number of seconds.")
			return
		}
		form.TimePerQuestionSeconds = seconds
	}

	if _, err := h.apiFor(c).CreateQuiz(c.Request.Context(), form); err != nil {
		if errors.Is(err, domain.ErrValidation) {
			h.showTeacherQuizzes(c, http.StatusUnprocessableEntity, form, formMessage(err))
			return
		}
		h.fail(c, err)
		return
	}
	c.Redirect(http.StatusSeeOther, "/teacher/quizzes")
}

type questionsData struct {
	Quiz    domain.QuizDetail
	Form    questionForm
	Editing int64
}

// questionForm is the add/edit form. Options include blank rows to fill.
type questionForm struct {
	Text          string
	AllowMultiple bool
	Options       []domain.Option
}

func newQuestionForm(q *domain.Question) questionForm {
	form := questionForm{}
	if q != nil {
		form.Text = q.Text
		form.AllowMultiple = q.AllowMultiple
		form.Options = append(form.Options, q.Options...)
	}
	for i := 0; i < blankOptionRows; i++ {
		form.Options = append(form.Options, domain.Option{})
	}
	return form
}

func (h *Handler) questions(c *gin.Context) {
	quizID, ok := h.idParam(c, "id")
	if !ok {
		return
	}
	editing, _ := strconv.ParseInt(c.Query("edit"), 10, 64)
	h.showQuestions(c, http.StatusOK, quizID, editing, nil, "")
}

// showQuestions renders the question list. A nil form means a fresh one,
// pre-filled from the question being edited if any.
func (h *Handler) showQuestions(c *gin.Context, status int, quizID, editing int64, form *questionForm, message string) {
	detail, err := h.apiFor(c).QuizQuestions(c.Request.Context(), quizID)
	if err != nil {
		h.fail(c, err)
		return
	}
	if form == nil {
		var current *domain.Question
		for i := range detail.Questions {
			if detail.Questions[i].ID == editing {
				current = &detail.Questions[i]
			}
		}
		if current == nil {
			editing = 0
		}
		fresh := newQuestionForm(current)
		form = &fresh
	}
	h.renderView(c, status, "teacher_questions", view{
		Title: detail.Title,
		Error: message,
		Data:  questionsData{Quiz: detail, Form: *form, Editing: editing},
	})
}

// parseQuestion reads the question form. Correct options are submitted as
// the indexes of their rows.
func parseQuestion(c *gin.Context) (domain.Question, questionForm) {
	texts := c.PostFormArray("option_text")
	correct := make(map[int]bool)
	for _, raw := range c.PostFormArray("correct") {
		if i, err := strconv.Atoi(raw); err == nil {
			correct[i] = true
		}
	}
	q := domain.Question{
		Text:          strings.TrimSpace(c.PostForm("text")),
		AllowMultiple: c.PostForm("allow_multiple") != "",
	}
	for i, text := range texts {
		q.Options = append(q.Options, domain.Option{Text: text, IsCorrect: correct[i]})
	}
	form := questionForm{Text: q.Text, AllowMultiple: q.AllowMultiple, Options: q.Options}
	return q, form
}

func (h *Handler) createQuestion(c *gin.Context) {
	h.saveQuestion(c, false)
}

func (h *Handler) updateQuestion(c *gin.Context) {
	h.saveQuestion(c, true)
}

func (h *Handler) saveQuestion(c *gin.Context, update bool) {
	quizID, ok := h.idParam(c, "id")
	if !ok {
		return
	}
	var questionID int64
	if update {
		if questionID, ok = h.idParam(c, "qid"); !ok {
			return
		}
	}

	q, form := parseQuestion(c)
	options, err := app.NormalizeOptions(q.Options, q.AllowMultiple)
	if err == nil && q.Text == "" {
		err = fmt.Errorf("%w: question text is required", domain.ErrValidation)
	}
	if err != nil {
		h.showQuestions(c, http.StatusUnprocessableEntity, quizID, questionID, &form, formMessage(err))
		return
	}
	q.Options = options

	client := h.apiFor(c)
	if update {
		_, err = client.UpdateQuestion(c.Request.Context(), quizID, questionID, q)
	} else {
		_, err = client.CreateQuestion(c.Request.Context(), quizID, q)
	}
	if err != nil {
		if errors.Is(err, domain.ErrValidation) {
			h.showQuestions(c, http.StatusUnprocessableEntity, quizID, questionID, &form, formMessage(err))
			return
		}
		h.fail(c, err)
		return
	}
	c.Redirect(http.StatusSeeOther, questionsURL(quizID))
}

func (h *Handler) deleteQuestion(c *gin.Context) {
	quizID, ok := h.idParam(c, "id")
	if !ok {
		return
	}
	questionID, ok := h.idParam(c, "qid")
	if !ok {
		return
	}
	if err := h.apiFor(c).DeleteQuestion(c.Request.Context(), quizID, questionID); err != nil && !errors.Is(err, domain.ErrNotFound) {
		h.fail(c, err)
		return
	}
	c.Redirect(http.StatusSeeOther, questionsURL(quizID))
}

type resultsData struct {
	Quiz     domain.Quiz
	Attempts []domain.Attempt
	Filter   app.AttemptFilter
	Statuses []string
}

func (h *Handler) quizResults(c *gin.Context) {
	quizID, ok := h.idParam(c, "id")
	if !ok {
		return
	}
	results, err := h.apiFor(c).QuizResults(c.Request.Context(), quizID)
	if err != nil {
		h.fail(c, err)
		return
	}
	filter := app.AttemptFilter{Status: c.DefaultQuery("status", app.StatusAll), Query: c.Query("q")}
	h.render(c, http.StatusOK, "teacher_results", "Results", resultsData{
		Quiz:     results.Quiz,
		Attempts: app.FilterAttempts(results.Attempts, filter),
		Filter:   filter,
		Statuses: []string{app.StatusAll, app.StatusFinished, app.StatusRunning},
	})
}

func (h *Handler) idParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		h.renderMessage(c, http.StatusNotFound, "Not found", "This page does not exist.")
		return 0, false
	}
	return id, true
}

func questionsURL(quizID int64) string {
	return "/teacher/quizzes/" + strconv.FormatInt(quizID, 10) + "/questions"
}
