package memory

import (
	"context"
	"testing"

	"mathquest-game-service/internal/app"
)

func TestPresenceCountsUsersNotConnections(t *testing.T) {
	ctx := context.Background()
	store := NewPresenceStore()

	store.Connect(ctx, "GAME1", app.RoomClassGame, "alice", "tab-1")
	store.Connect(ctx, "GAME1", app.RoomClassGame, "alice", "tab-2")
	store.Connect(ctx, "GAME1", app.RoomClassLobby, "bob", "conn-b")

	count, err := store.CountOnline(ctx, "GAME1")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 distinct users, got %d", count)
	}

	remaining, _ := store.Disconnect(ctx, "GAME1", app.RoomClassGame, "alice", "tab-1")
	if remaining != 1 {
		t.Fatalf("expected one connection left for alice, got %d", remaining)
	}
	remaining, _ = store.Disconnect(ctx, "GAME1", app.RoomClassGame, "alice", "tab-2")
	if remaining != 0 {
		t.Fatalf("expected no connections left, got %d", remaining)
	}
	count, _ = store.CountOnline(ctx, "GAME1")
	if count != 1 {
		t.Fatalf("expected bob only, got %d", count)
	}
}
