package redis

import (
	"context"
	"testing"
	"time"

	"mathquest-game-service/internal/app"
)

func TestPresenceCountsDistinctUsers(t *testing.T) {
	ctx := context.Background()
	store := NewPresenceStore(newTestClient(t), time.Minute)

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

	remaining, err := store.Disconnect(ctx, "GAME1", app.RoomClassGame, "alice", "tab-1")
	if err != nil {
		t.Fatalf("disconnect: %v", err)
	}
	if remaining != 1 {
		t.Fatalf("expected one connection left, got %d", remaining)
	}
	count, _ = store.CountOnline(ctx, "GAME1")
	if count != 2 {
		t.Fatalf("user with another tab stays online, got %d", count)
	}

	store.Disconnect(ctx, "GAME1", app.RoomClassGame, "alice", "tab-2")
	count, _ = store.CountOnline(ctx, "GAME1")
	if count != 1 {
		t.Fatalf("expected bob only, got %d", count)
	}
}

func TestDisconnectCountsAcrossRoomClasses(t *testing.T) {
	ctx := context.Background()
	store := NewPresenceStore(newTestClient(t), time.Minute)

	store.Connect(ctx, "GAME1", app.RoomClassLobby, "alice", "conn-1")
	store.Connect(ctx, "GAME1", app.RoomClassGame, "alice", "conn-2")

	remaining, err := store.Disconnect(ctx, "GAME1", app.RoomClassLobby, "alice", "conn-1")
	if err != nil {
		t.Fatalf("disconnect: %v", err)
	}
	if remaining != 1 {
		t.Fatalf("the game-class connection still counts, got %d", remaining)
	}
}
