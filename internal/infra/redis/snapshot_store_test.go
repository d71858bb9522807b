package redis

import (
	"context"
	"testing"
	"time"

	"mathquest-game-service/internal/domain"
)

func TestSnapshotRoundTripKeepsOrdering(t *testing.T) {
	ctx := context.Background()
	store := NewSnapshotStore(newTestClient(t), time.Minute)

	_, ok, err := store.Get(ctx, "GAME1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if ok {
		t.Fatalf("expected no snapshot yet")
	}

	saved := domain.Leaderboard{
		AccessCode: "GAME1",
		Entries: []domain.LeaderboardEntry{
			{UserID: "bob", Score: 3, Rank: 1},
			{UserID: "alice", Score: 3, Rank: 2}, // tie broken by join order
		},
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}
	if err := store.Save(ctx, "GAME1", saved); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, ok, err := store.Get(ctx, "GAME1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !ok {
		t.Fatalf("expected a snapshot")
	}
	if len(got.Entries) != 2 || got.Entries[0].UserID != "bob" || got.Entries[1].Rank != 2 {
		t.Fatalf("snapshot must keep its exact ordering, got %+v", got.Entries)
	}
}
