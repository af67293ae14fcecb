package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"quiz-portal/internal/domain"
)

// Login exchanges email and password for a token. Refusals are reported as
// domain.ErrInvalidCredentials without the server's detail.
func (c *Client) Login(ctx context.Context, email, password string) (domain.AuthResult, error) {
	var out domain.AuthResult
	err := c.do(ctx, http.MethodPost, "/login", map[string]string{
		"email":    email,
		"password": password,
	}, &out)
	return out, credentialsError(err)
}

// Register creates an account and signs it in.
func (c *Client) Register(ctx context.Context, reg domain.Registration) (domain.AuthResult, error) {
	var out domain.AuthResult
	err := c.do(ctx, http.MethodPost, "/register", reg, &out)
	return out, credentialsError(err)
}

// Logout revokes token on the server.
func (c *Client) Logout(ctx context.Context, token string) error {
	return c.WithToken(token).do(ctx, http.MethodPost, "/logout", nil, nil)
}

// CurrentUser returns the identity behind token.
func (c *Client) CurrentUser(ctx context.Context, token string) (domain.Identity, error) {
	var out domain.Identity
	err := c.WithToken(token).do(ctx, http.MethodGet, "/user", nil, &out)
	return out, err
}

func credentialsError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrUnauthorized) || errors.Is(err, domain.ErrValidation) {
		return fmt.Errorf("%w: %w", domain.ErrInvalidCredentials, err)
	}
	return err
}
