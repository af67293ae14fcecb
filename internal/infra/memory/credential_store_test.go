package memory

import (
	"context"
	"testing"

	"quiz-portal/internal/app"
	"quiz-portal/internal/domain"
)

func TestCredentialStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewCredentialStore()

	if _, ok, _ := store.Load(ctx, "s1"); ok {
		t.Fatalf("expected empty store")
	}

	identity := &domain.Identity{ID: 1, Name: "Ana"}
	if err := store.Save(ctx, "s1", app.Credential{Token: "tok", Identity: identity}); err != nil {
		t.Fatalf("save: %v", err)
	}
	identity.Name = "mutated"

	cred, ok, err := store.Load(ctx, "s1")
	if err != nil || !ok {
		t.Fatalf("expected credential, ok=%v err=%v", ok, err)
	}
	if cred.Token != "tok" || cred.Identity == nil || cred.Identity.Name != "Ana" {
		t.Fatalf("unexpected credential %+v", cred)
	}

	if err := store.Delete(ctx, "s1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := store.Load(ctx, "s1"); ok {
		t.Fatalf("expected credential removed")
	}
}
