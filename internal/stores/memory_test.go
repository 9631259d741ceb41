package stores

import (
	"context"
	"testing"
	"time"
)

func newClockedMemoryStore() (*MemoryStore, *time.Time) {
	store := NewMemoryStore()
	current := time.Now()
	store.now = func() time.Time { return current }
	return store, &current
}

func TestMemoryStoreSaveGetRoundtrip(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	want := sampleRecord("f1")
	if err := store.Save(ctx, want, time.Minute); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	got, err := store.Get(ctx, "f1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got == nil || *got != *want {
		t.Fatalf("roundtrip mismatch: %+v", got)
	}

	// The returned record is a copy; mutating it must not touch the store.
	got.UserID = "mutated"
	again, _ := store.Get(ctx, "f1")
	if again.UserID != "u1" {
		t.Fatal("expected stored record to be isolated from caller mutation")
	}
}

func TestMemoryStoreLazyExpiry(t *testing.T) {
	store, clock := newClockedMemoryStore()
	ctx := context.Background()

	if err := store.Save(ctx, sampleRecord("f1"), time.Minute); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	*clock = clock.Add(2 * time.Minute)

	got, err := store.Get(ctx, "f1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got != nil {
		t.Fatalf("expected expired record to read as absent, got %+v", got)
	}
}

func TestMemoryStoreLockLifecycle(t *testing.T) {
	store, clock := newClockedMemoryStore()
	ctx := context.Background()

	token, err := store.AcquireLock(ctx, "f1", time.Minute)
	if err != nil || token == "" {
		t.Fatalf("expected first acquire to succeed, token=%q err=%v", token, err)
	}

	denied, err := store.AcquireLock(ctx, "f1", time.Minute)
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	if denied != "" {
		t.Fatal("expected acquire to be denied while held")
	}

	// Release with the wrong token is a no-op.
	if err := store.ReleaseLock(ctx, "f1", "not-the-owner"); err != nil {
		t.Fatalf("release errored: %v", err)
	}
	if denied, _ := store.AcquireLock(ctx, "f1", time.Minute); denied != "" {
		t.Fatal("expected lock to survive a non-owner release")
	}

	if err := store.ReleaseLock(ctx, "f1", token); err != nil {
		t.Fatalf("release failed: %v", err)
	}
	if token, _ := store.AcquireLock(ctx, "f1", time.Minute); token == "" {
		t.Fatal("expected acquire to succeed after owner release")
	}

	*clock = clock.Add(2 * time.Minute)
	if token, _ := store.AcquireLock(ctx, "f1", time.Minute); token == "" {
		t.Fatal("expected acquire to succeed after lock expiry")
	}
}

func TestMemoryStoreCloseDropsState(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_ = store.Save(ctx, sampleRecord("f1"), time.Minute)
	if err := store.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	got, err := store.Get(ctx, "f1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got != nil {
		t.Fatal("expected store to be empty after close")
	}
}
