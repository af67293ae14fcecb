package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"quiz-portal/internal/app"
	"quiz-portal/internal/domain"
	"github.com/redis/go-redis/v9"
)

// CredentialStore keeps browser-session credentials in Redis so several
// portal instances can share them.
// Layout: HSET web:session:{id} token {token} identity {json}, expiring after
// ttl of inactivity.
type CredentialStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewCredentialStore(client *redis.Client, ttl time.Duration) *CredentialStore {
	return &CredentialStore{client: client, ttl: ttl}
}

func (s *CredentialStore) Load(ctx context.Context, sessionID string) (app.Credential, bool, error) {
	fields, err := s.client.HGetAll(ctx, s.key(sessionID)).Result()
	if err != nil {
		return app.Credential{}, false, fmt.Errorf("load credential: %w", err)
	}
	token, ok := fields["token"]
	if !ok {
		return app.Credential{}, false, nil
	}

	cred := app.Credential{Token: token}
	if raw := fields["identity"]; raw != "" {
		var identity domain.Identity
		if err := json.Unmarshal([]byte(raw), &identity); err != nil {
			return app.Credential{}, false, fmt.Errorf("unmarshal identity: %w", err)
		}
		cred.Identity = &identity
	}
	if s.ttl > 0 {
		// sliding expiry
		_ = s.client.Expire(ctx, s.key(sessionID), s.ttl).Err()
	}
	return cred, true, nil
}

func (s *CredentialStore) Save(ctx context.Context, sessionID string, cred app.Credential) error {
	identity := ""
	if cred.Identity != nil {
		raw, err := json.Marshal(cred.Identity)
		if err != nil {
			return fmt.Errorf("marshal identity: %w", err)
		}
		identity = string(raw)
	}

	key := s.key(sessionID)
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key, "token", cred.Token, "identity", identity)
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save credential: %w", err)
	}
	return nil
}

func (s *CredentialStore) Delete(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, s.key(sessionID)).Err(); err != nil {
		return fmt.Errorf("delete credential: %w", err)
	}
	return nil
}

func (s *CredentialStore) key(sessionID string) string {
	return "web:session:" + sessionID
}
