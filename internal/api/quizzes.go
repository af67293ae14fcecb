package api

import (
	"context"
	"net/http"
	"net/url"

	"quiz-portal/internal/domain"
)

// ListQuizzes returns the catalog of available quizzes.
func (c *Client) ListQuizzes(ctx context.Context) ([]domain.Quiz, error) {
	var out []domain.Quiz
	if err := c.do(ctx, http.MethodGet, "/quizzes", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// StartAttempt starts or resumes the caller's attempt for slug.
func (c *Client) StartAttempt(ctx context.Context, slug string) error {
	return c.do(ctx, http.MethodPost, quizPath(slug, "start"), nil, nil)
}

// CurrentQuestion returns the attempt's current question state.
func (c *Client) CurrentQuestion(ctx context.Context, slug string) (domain.CurrentState, error) {
	var out domain.CurrentState
	err := c.do(ctx, http.MethodGet, quizPath(slug, "current"), nil, &out)
	return out, err
}

// SubmitAnswer records a selection or a forfeit for the current question.
func (c *Client) SubmitAnswer(ctx context.Context, slug string, submission domain.AnswerSubmission) (domain.CurrentState, error) {
	var out domain.CurrentState
	err := c.do(ctx, http.MethodPost, quizPath(slug, "answer"), submission, &out)
	return out, err
}

// MyAttempt returns the caller's attempt for slug.
func (c *Client) MyAttempt(ctx context.Context, slug string) (domain.Attempt, error) {
	var out domain.Attempt
	err := c.do(ctx, http.MethodGet, quizPath(slug, "attempt"), nil, &out)
	return out, err
}

func quizPath(slug, action string) string {
	return "/quizzes/" + url.PathEscape(slug) + "/" + action
}
