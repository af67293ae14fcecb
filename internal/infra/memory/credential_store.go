package memory

import (
	"context"
	"sync"

	"quiz-portal/internal/app"
)

// CredentialStore is an in-memory implementation of app.CredentialStore.
// Credentials do not survive a restart.
type CredentialStore struct {
	mu          sync.RWMutex
	credentials map[string]app.Credential
}

func NewCredentialStore() *CredentialStore {
	return &CredentialStore{
		credentials: make(map[string]app.Credential),
	}
}

func (s *CredentialStore) Load(_ context.Context, sessionID string) (app.Credential, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cred, ok := s.credentials[sessionID]
	if ok && cred.Identity != nil {
		identity := *cred.Identity
		cred.Identity = &identity
	}
	return cred, ok, nil
}

func (s *CredentialStore) Save(_ context.Context, sessionID string, cred app.Credential) error {
	if cred.Identity != nil {
		identity := *cred.Identity
		cred.Identity = &identity
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.credentials[sessionID] = cred
	return nil
}

func (s *CredentialStore) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.credentials, sessionID)
	return nil
}
