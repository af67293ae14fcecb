package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"quiz-portal/internal/domain"
	"golang.org/x/sync/errgroup"
)

// QuizLister fetches the learner's quiz catalog.
type QuizLister interface {
	ListQuizzes(ctx context.Context) ([]domain.Quiz, error)
}

// ResolveSlug picks the first quiz of the catalog.
func ResolveSlug(ctx context.Context, lister QuizLister) (string, error) {
	quizzes, err := lister.ListQuizzes(ctx)
	if err != nil {
		return "", fmt.Errorf("load quizzes: %w", err)
	}
	if len(quizzes) == 0 {
		return "", domain.ErrNoQuizAvailable
	}
	return quizzes[0].Slug, nil
}

// DashboardAPI is what the learner dashboard reads.
type DashboardAPI interface {
	QuizLister
	MyAttempt(ctx context.Context, slug string) (domain.Attempt, error)
}

// DashboardEntry pairs a quiz with the learner's attempt, nil if not started.
type DashboardEntry struct {
	Quiz    domain.Quiz
	Attempt *domain.Attempt
}

const dashboardFetchLimit = 4

// LoadDashboard fetches the catalog then every attempt concurrently. A quiz
// whose attempt cannot be fetched shows as not started; only an expired
// credential aborts the whole page.
func LoadDashboard(ctx context.Context, api DashboardAPI) ([]DashboardEntry, error) {
	quizzes, err := api.ListQuizzes(ctx)
	if err != nil {
		return nil, err
	}

	entries := make([]DashboardEntry, len(quizzes))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(dashboardFetchLimit)
	for i, quiz := range quizzes {
		i, quiz := i, quiz
		entries[i].Quiz = quiz
		g.Go(func() error {
			attempt, err := api.MyAttempt(gctx, quiz.Slug)
			if err != nil {
				if errors.Is(err, domain.ErrUnauthorized) {
					return err
				}
				return nil
			}
			entries[i].Attempt = &attempt
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return entries, nil
}

// Attempt status filters used by the teacher results view.
const (
	StatusAll      = "all"
	StatusFinished = "finished"
	StatusRunning  = "running"
)

// AttemptFilter is the local filter state of the results view.
type AttemptFilter struct {
	Status string
	Query  string
}

// FilterAttempts keeps attempts matching the status and whose user name or
// email contains the query, case-insensitively.
func FilterAttempts(attempts []domain.Attempt, filter AttemptFilter) []domain.Attempt {
	query := strings.ToLower(strings.TrimSpace(filter.Query))
	out := make([]domain.Attempt, 0, len(attempts))
	for _, a := range attempts {
		switch filter.Status {
		case StatusFinished:
			if !a.IsFinished {
				continue
			}
		case StatusRunning:
			if a.IsFinished {
				continue
			}
		}
		if query != "" {
			if a.User == nil {
				continue
			}
			if !strings.Contains(strings.ToLower(a.User.Name), query) &&
				!strings.Contains(strings.ToLower(a.User.Email), query) {
				continue
			}
		}
		out = append(out, a)
	}
	return out
}

// MinOptions is the smallest number of options a question may have.
const MinOptions = 2

// NormalizeOptions cleans a submitted question form: blank rows are dropped,
// a single-answer question keeps only its first correct option, and the
// first option becomes correct when none is.
func NormalizeOptions(options []domain.Option, allowMultiple bool) ([]domain.Option, error) {
	out := make([]domain.Option, 0, len(options))
	for _, opt := range options {
		opt.Text = strings.TrimSpace(opt.Text)
		if opt.Text == "" {
			continue
		}
		out = append(out, opt)
	}
	if len(out) < MinOptions {
		return nil, fmt.Errorf("%w: at least %d options are required", domain.ErrValidation, MinOptions)
	}

	seen := false
	for i := range out {
		if !out[i].IsCorrect {
			continue
		}
		if seen && !allowMultiple {
			out[i].IsCorrect = false
		}
		seen = true
	}
	if !seen {
		out[0].IsCorrect = true
	}
	return out, nil
}
