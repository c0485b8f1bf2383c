package cache

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestMemoryStore_GetSetDelete(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if _, ok, _ := store.Get(ctx, "missing"); ok {
		t.Fatal("expected miss for unknown key")
	}

	if err := store.Set(ctx, "k", "v", time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	val, ok, err := store.Get(ctx, "k")
	if err != nil || !ok || val != "v" {
		t.Fatalf("Get = (%q, %v, %v), want (v, true, nil)", val, ok, err)
	}

	if err := store.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, ok, _ := store.Get(ctx, "k"); ok {
		t.Fatal("expected miss after delete")
	}
}

func TestMemoryStore_Expiry(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	now := time.Now()
	store.now = func() time.Time { return now }

	if err := store.Set(ctx, "k", "v", 30*time.Second); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	now = now.Add(31 * time.Second)
	if _, ok, _ := store.Get(ctx, "k"); ok {
		t.Fatal("expected entry to expire")
	}
}

func TestMemoryStore_DeleteByPrefix(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_ = store.Set(ctx, "slots:2025-11-15", "a", 0)
	_ = store.Set(ctx, "slots:2025-11-15:FITTING", "b", 0)
	_ = store.Set(ctx, "slots:2025-11-16", "c", 0)

	if err := store.DeleteByPrefix(ctx, "slots:2025-11-15"); err != nil {
		t.Fatalf("DeleteByPrefix failed: %v", err)
	}
	if _, ok, _ := store.Get(ctx, "slots:2025-11-15:FITTING"); ok {
		t.Fatal("typed key should be invalidated with its date")
	}
	if _, ok, _ := store.Get(ctx, "slots:2025-11-16"); !ok {
		t.Fatal("other dates must survive")
	}
}

func TestMemoryStore_LockContention(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	const attempts = 32
	var wg sync.WaitGroup
	acquired := make(chan struct{}, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := store.Lock(ctx, "slot:lock:2025-11-15:14:00", time.Minute)
			if err != nil {
				t.Errorf("Lock failed: %v", err)
				return
			}
			if ok {
				acquired <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(acquired)

	var wins int
	for range acquired {
		wins++
	}
	if wins != 1 {
		t.Fatalf("expected exactly one lock winner, got %d", wins)
	}
}

func TestMemoryStore_LockExpiry(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	now := time.Now()
	store.now = func() time.Time { return now }

	ok, _ := store.Lock(ctx, "l", time.Minute)
	if !ok {
		t.Fatal("first lock should succeed")
	}
	if ok, _ := store.Lock(ctx, "l", time.Minute); ok {
		t.Fatal("held lock should not be re-acquirable")
	}

	now = now.Add(61 * time.Second)
	if ok, _ := store.Lock(ctx, "l", time.Minute); !ok {
		t.Fatal("expired lease should be re-acquirable")
	}
}
