package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"quiz-portal/internal/app"
	"quiz-portal/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// CredentialStore persists browser-session credentials in the web_sessions
// table created by the migrate command.
type CredentialStore struct {
	pool *pgxpool.Pool
}

func NewCredentialStore(pool *pgxpool.Pool) *CredentialStore {
	return &CredentialStore{pool: pool}
}

func (s *CredentialStore) Load(ctx context.Context, sessionID string) (app.Credential, bool, error) {
	var (
		token string
		raw   []byte
	)
	err := s.pool.QueryRow(ctx, `SELECT token, identity FROM web_sessions WHERE id=$1`, sessionID).Scan(&token, &raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return app.Credential{}, false, nil
	}
	if err != nil {
		return app.Credential{}, false, fmt.Errorf("load credential: %w", err)
	}

	cred := app.Credential{Token: token}
	if len(raw) > 0 {
		var identity domain.Identity
		if err := json.Unmarshal(raw, &identity); err != nil {
			return app.Credential{}, false, fmt.Errorf("unmarshal identity: %w", err)
		}
		cred.Identity = &identity
	}
	return cred, true, nil
}

func (s *CredentialStore) Save(ctx context.Context, sessionID string, cred app.Credential) error {
	var identity []byte
	if cred.Identity != nil {
		raw, err := json.Marshal(cred.Identity)
		if err != nil {
			return fmt.Errorf("marshal identity: %w", err)
		}
		identity = raw
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO web_sessions (id, token, identity, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (id) DO UPDATE SET token=EXCLUDED.token, identity=EXCLUDED.identity, updated_at=now()`,
		sessionID, cred.Token, identity)
	if err != nil {
		return fmt.Errorf("save credential: %w", err)
	}
	return nil
}

func (s *CredentialStore) Delete(ctx context.Context, sessionID string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM web_sessions WHERE id=$1`, sessionID); err != nil {
		return fmt.Errorf("delete credential: %w", err)
	}
	return nil
}
