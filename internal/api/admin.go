package api

import (
	"context"
	"net/http"
	"strconv"

	"quiz-portal/internal/domain"
)

// AdminAttempts lists every attempt on the platform.
func (c *Client) AdminAttempts(ctx context.Context) ([]domain.Attempt, error) {
	var out []domain.Attempt
	if err := c.do(ctx, http.MethodGet, "/admin/attempts", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// AdminUsers lists every user.
func (c *Client) AdminUsers(ctx context.Context) ([]domain.Identity, error) {
	var out []domain.Identity
	if err := c.do(ctx, http.MethodGet, "/admin/users", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SetTeacherRole grants or revokes the teacher flag.
func (c *Client) SetTeacherRole(ctx context.Context, userID int64, isTeacher bool) error {
	return c.do(ctx, http.MethodPatch, "/admin/users/"+strconv.FormatInt(userID, 10)+"/role", map[string]bool{
		"is_teacher": isTeacher,
	}, nil)
}
