package memory

import (
	"context"
	"testing"
)

func TestScoreStoreGuardsDuplicates(t *testing.T) {
	ctx := context.Background()
	store := NewScoreStore()

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
	if applied || total != 1.5 {
		t.Fatalf("expected duplicate to be refused, got applied=%v total=%v", applied, total)
	}

	// A different question still lands.
	applied, total, _ = store.ApplyDelta(ctx, "GAME1", "alice", "live", "q2", 1)
	if !applied || total != 2.5 {
		t.Fatalf("expected q2 to land, got applied=%v total=%v", applied, total)
	}
}

func TestScoreStoreBucketsAreIndependent(t *testing.T) {
	ctx := context.Background()
	store := NewScoreStore()

	store.ApplyDelta(ctx, "GAME1", "alice", "live", "q1", 2)
	applied, _, _ := store.ApplyDelta(ctx, "GAME1", "alice", "deferred:1", "q1", 1)
	if !applied {
		t.Fatalf("same question in another bucket must land")
	}

	live, _ := store.Total(ctx, "GAME1", "alice", "live")
	deferred, _ := store.Total(ctx, "GAME1", "alice", "deferred:1")
	if live != 2 || deferred != 1 {
		t.Fatalf("expected live=2 deferred=1, got %v and %v", live, deferred)
	}
}
