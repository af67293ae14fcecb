package app

import (
	"context"
	"errors"
	"fmt"

	"quiz-portal/internal/domain"
	"golang.org/x/sync/singleflight"
)

// Credential is what a browser session holds: the bearer token and the last
// identity resolved for it. Both are invalidated together.
type Credential struct {
	Token    string           `json:"token"`
	Identity *domain.Identity `json:"identity,omitempty"`
}

// CredentialStore abstracts where credentials live (in-memory, Redis, Postgres).
type CredentialStore interface {
	Load(ctx context.Context, sessionID string) (Credential, bool, error)
	Save(ctx context.Context, sessionID string, cred Credential) error
	Delete(ctx context.Context, sessionID string) error
}

// AuthAPI is the part of the quiz API that deals with identities.
type AuthAPI interface {
	Login(ctx context.Context, email, password string) (domain.AuthResult, error)
	Register(ctx context.Context, reg domain.Registration) (domain.AuthResult, error)
	Logout(ctx context.Context, token string) error
	CurrentUser(ctx context.Context, token string) (domain.Identity, error)
}

// Auth owns the process-wide authentication state. It is mutated only by
// Login, Register, Logout and Invalidate; everything else reads it.
type Auth struct {
	api   AuthAPI
	store CredentialStore
	sf    singleflight.Group
}

func NewAuth(api AuthAPI, store CredentialStore) *Auth {
	return &Auth{api: api, store: store}
}

// Login signs the browser session in and returns the identity.
func (a *Auth) Login(ctx context.Context, sessionID, email, password string) (domain.Identity, error) {
	res, err := a.api.Login(ctx, email, password)
	if err != nil {
		return domain.Identity{}, err
	}
	return a.remember(ctx, sessionID, res)
}

// Register creates an account and signs the browser session in.
func (a *Auth) Register(ctx context.Context, sessionID string, reg domain.Registration) (domain.Identity, error) {
	res, err := a.api.Register(ctx, reg)
	if err != nil {
		return domain.Identity{}, err
	}
	return a.remember(ctx, sessionID, res)
}

func (a *Auth) remember(ctx context.Context, sessionID string, res domain.AuthResult) (domain.Identity, error) {
	user := res.User
	if err := a.store.Save(ctx, sessionID, Credential{Token: res.Token, Identity: &user}); err != nil {
		return domain.Identity{}, fmt.Errorf("save credential: %w", err)
	}
	return user, nil
}

// Logout revokes the token upstream (best effort) and always wipes the
// local credential.
func (a *Auth) Logout(ctx context.Context, sessionID string) error {
	cred, ok, err := a.store.Load(ctx, sessionID)
	if err != nil {
		return err
	}
	var upstream error
	if ok && cred.Token != "" {
		upstream = a.api.Logout(ctx, cred.Token)
	}
	if err := a.store.Delete(ctx, sessionID); err != nil {
		return err
	}
	if upstream != nil && !errors.Is(upstream, domain.ErrUnauthorized) {
		return fmt.Errorf("logout: %w", upstream)
	}
	return nil
}

// Invalidate drops the credential and identity after a 401.
func (a *Auth) Invalidate(ctx context.Context, sessionID string) error {
	return a.store.Delete(ctx, sessionID)
}

// Token returns the session's bearer credential, or "" when signed out.
func (a *Auth) Token(ctx context.Context, sessionID string) (string, error) {
	cred, ok, err := a.store.Load(ctx, sessionID)
	if err != nil || !ok {
		return "", err
	}
	return cred.Token, nil
}

// Resolve returns the identity for a browser session, nil when signed out.
// Concurrent lookups for the same credential share one API call.
func (a *Auth) Resolve(ctx context.Context, sessionID string) (*domain.Identity, error) {
	cred, ok, err := a.store.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !ok || cred.Token == "" {
		return nil, nil
	}
	if cred.Identity != nil {
		return cred.Identity, nil
	}

	// The lookup is shared, so one caller going away must not cancel it.
	shared := context.WithoutCancel(ctx)
	result, err, _ := a.sf.Do(cred.Token, func() (interface{}, error) {
		return a.api.CurrentUser(shared, cred.Token)
	})
	if err != nil {
		if errors.Is(err, domain.ErrUnauthorized) {
			return nil, a.store.Delete(ctx, sessionID)
		}
		return nil, err
	}
	user := result.(domain.Identity)

	// Only cache against the credential we resolved for; a concurrent logout
	// or login must not be overwritten.
	latest, ok, err := a.store.Load(ctx, sessionID)
	if err == nil && ok && latest.Token == cred.Token {
		if err := a.store.Save(ctx, sessionID, Credential{Token: cred.Token, Identity: &user}); err != nil {
			return nil, fmt.Errorf("save credential: %w", err)
		}
	}
	return &user, nil
}
