package redis

import (
	"context"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestClient(t *testing.T) *redis.Client {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func TestScoreStoreGuardsDuplicates(t *testing.T) {
	ctx := context.Background()
	store := NewScoreStore(newTestClient(t), time.Minute)

	applied, total, err := store.ApplyDelta(ctx, "GAME1", "alice", "live", "q1", 1.5)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if !applied || total != 1.5 {
		t.Fatalf("expected first apply to land, got applied=%v total=%v", applied, total)
	}

	applied, total, err = store.ApplyDelta(ctx, "GAME1", "alice", "live", "q1", 1.5)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if applied {
		t.Fatalf("expected duplicate to be refused")
	}
	if total != 1.5 {
		t.Fatalf("duplicate must report the standing total, got %v", total)
	}

	got, err := store.Total(ctx, "GAME1", "alice", "live")
	if err != nil {
		t.Fatalf("total: %v", err)
	}
	if got != 1.5 {
		t.Fatalf("expected total 1.5, got %v", got)
	}
}

func TestScoreStoreConcurrentDuplicatesApplyOnce(t *testing.T) {
	ctx := context.Background()
	store := NewScoreStore(newTestClient(t), time.Minute)

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			applied, _, err := store.ApplyDelta(ctx, "GAME1", "alice", "live", "q1", 1)
			if err != nil {
				t.Errorf("apply: %v", err)
				return
			}
			if applied {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if wins != 1 {
		t.Fatalf("expected exactly one winner, got %d", wins)
	}
	total, _ := store.Total(ctx, "GAME1", "alice", "live")
	if total != 1 {
		t.Fatalf("expected total 1, got %v", total)
	}
}

func TestScoreStoreBucketsAreIndependent(t *testing.T) {
	ctx := context.Background()
	store := NewScoreStore(newTestClient(t), time.Minute)

	store.ApplyDelta(ctx, "GAME1", "alice", "live", "q1", 2)
	applied, _, err := store.ApplyDelta(ctx, "GAME1", "alice", "deferred:1", "q1", 1)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if !applied {
		t.Fatalf("same question in another bucket must land")
	}

	live, _ := store.Total(ctx, "GAME1", "alice", "live")
	deferred, _ := store.Total(ctx, "GAME1", "alice", "deferred:1")
	if live != 2 || deferred != 1 {
		t.Fatalf("expected live=2 deferred=1, got %v and %v", live, deferred)
	}
}
