package core

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryLoginStateStore_ConsumeIsSingleUse(t *testing.T) {
	store := NewMemoryLoginStateStore(time.Minute)
	state, err := GenerateLoginState()
	if err != nil {
		t.Fatalf("generate state: %v", err)
	}
	if err := store.Save(context.Background(), LoginState{
		State:      state,
		Flow:       LoginFlowCLI,
		ProviderID: "github",
	}); err != nil {
		t.Fatalf("save state: %v", err)
	}

	record, err := store.Consume(context.Background(), state)
	if err != nil {
		t.Fatalf("first consume: %v", err)
	}
	if record.ProviderID != "github" || record.Flow != LoginFlowCLI {
		t.Fatalf("unexpected record: %+v", record)
	}

	if _, err := store.Consume(context.Background(), state); !errors.Is(err, ErrLoginStateNotFound) {
		t.Fatalf("second consume should fail with ErrLoginStateNotFound, got %v", err)
	}
}

func TestMemoryLoginStateStore_ExpiredStateIsGone(t *testing.T) {
	store := NewMemoryLoginStateStore(time.Minute)
	now := time.Now().UTC()
	if err := store.Save(context.Background(), LoginState{
		State:     "stale",
		Flow:      LoginFlowPlatform,
		CreatedAt: now.Add(-2 * time.Minute),
		ExpiresAt: now.Add(-time.Minute),
	}); err != nil {
		t.Fatalf("save stale state: %v", err)
	}

	if _, err := store.Consume(context.Background(), "stale"); !errors.Is(err, ErrLoginStateNotFound) {
		t.Fatalf("expired consume should be indistinguishable from missing, got %v", err)
	}
	// The first consume already removed the record.
	if _, err := store.Consume(context.Background(), "stale"); !errors.Is(err, ErrLoginStateNotFound) {
		t.Fatalf("expected state to stay gone, got %v", err)
	}
}

func TestMemoryLoginStateStore_DeleteExpired(t *testing.T) {
	store := NewMemoryLoginStateStore(time.Minute)
	now := time.Now().UTC()
	for _, record := range []LoginState{
		{State: "old_a", Flow: LoginFlowCLI, ExpiresAt: now.Add(-time.Hour)},
		{State: "old_b", Flow: LoginFlowCLI, ExpiresAt: now.Add(-time.Minute)},
		{State: "fresh", Flow: LoginFlowCLI, ExpiresAt: now.Add(time.Hour)},
	} {
		if err := store.Save(context.Background(), record); err != nil {
			t.Fatalf("save %q: %v", record.State, err)
		}
	}

	removed, err := store.DeleteExpired(context.Background(), now)
	if err != nil {
		t.Fatalf("delete expired: %v", err)
	}
	if removed != 2 {
		t.Fatalf("expected 2 removed, got %d", removed)
	}
	if _, err := store.Consume(context.Background(), "fresh"); err != nil {
		t.Fatalf("fresh state should survive the sweep, got %v", err)
	}
}

func TestMemoryLoginStateStore_RequiresState(t *testing.T) {
	store := NewMemoryLoginStateStore(time.Minute)
	if err := store.Save(context.Background(), LoginState{Flow: LoginFlowCLI}); err == nil {
		t.Fatalf("expected save without state to fail")
	}
	if err := store.Save(context.Background(), LoginState{State: "s", Flow: LoginFlow("bogus")}); err == nil {
		t.Fatalf("expected save with invalid flow to fail")
	}
}

func TestGenerateLoginState_Unique(t *testing.T) {
	first, err := GenerateLoginState()
	if err != nil {
		t.Fatalf("generate first: %v", err)
	}
	second, err := GenerateLoginState()
	if err != nil {
		t.Fatalf("generate second: %v", err)
	}
	if first == "" || first == second {
		t.Fatalf("expected distinct non-empty states, got %q and %q", first, second)
	}
}
