package api

import (
	"context"
	"net/http"
	"strconv"

	"quiz-portal/internal/domain"
)

// TeacherQuizzes lists the quizzes owned by the caller.
func (c *Client) TeacherQuizzes(ctx context.Context) ([]domain.Quiz, error) {
	var out []domain.Quiz
	if err := c.do(ctx, http.MethodGet, "/teacher/quizzes", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateQuiz creates a quiz owned by the caller.
func (c *Client) CreateQuiz(ctx context.Context, quiz domain.NewQuiz) (domain.Quiz, error) {
	var out domain.Quiz
	err := c.do(ctx, http.MethodPost, "/teacher/quizzes", quiz, &out)
	return out, err
}

// QuizQuestions returns a quiz with its questions, correctness included.
func (c *Client) QuizQuestions(ctx context.Context, quizID int64) (domain.QuizDetail, error) {
	var out domain.QuizDetail
	err := c.do(ctx, http.MethodGet, questionsPath(quizID), nil, &out)
	return out, err
}

// CreateQuestion appends a question to a quiz.
func (c *Client) CreateQuestion(ctx context.Context, quizID int64, q domain.Question) (domain.Question, error) {
	var out domain.Question
	err := c.do(ctx, http.MethodPost, questionsPath(quizID), q, &out)
	return out, err
}

// UpdateQuestion replaces a question's text and options.
func (c *Client) UpdateQuestion(ctx context.Context, quizID, questionID int64, q domain.Question) (domain.Question, error) {
	var out domain.Question
	err := c.do(ctx, http.MethodPut, questionsPath(quizID)+"/"+strconv.FormatInt(questionID, 10), q, &out)
	return out, err
}

// DeleteQuestion removes a question.
func (c *Client) DeleteQuestion(ctx context.Context, quizID, questionID int64) error {
	return c.do(ctx, http.MethodDelete, questionsPath(quizID)+"/"+strconv.FormatInt(questionID, 10), nil, nil)
}

// QuizResults returns every attempt recorded against a quiz.
func (c *Client) QuizResults(ctx context.Context, quizID int64) (domain.QuizAttempts, error) {
	var out domain.QuizAttempts
	err := c.do(ctx, http.MethodGet, "/teacher/quizzes/"+strconv.FormatInt(quizID, 10)+"/attempts", nil, &out)
	return out, err
}

func questionsPath(quizID int64) string {
	return "/teacher/quizzes/" + strconv.FormatInt(quizID, 10) + "/questions"
}
