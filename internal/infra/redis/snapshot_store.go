package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"mathquest-game-service/internal/domain"
)

// SnapshotStore keeps the projection snapshot in Redis, separate from any
// live state, so the display view survives process restarts and never sees
// a score the teacher has not released.
//
// The snapshot is one JSON value per game: the board must round-trip with
// its exact ordering and tie-breaks intact, which a bare sorted set of
// floats cannot guarantee.
type SnapshotStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSnapshotStore(client *redis.Client, ttl time.Duration) *SnapshotStore {
	return &SnapshotStore{client: client, ttl: ttl}
}

func (s *SnapshotStore) Save(ctx context.Context, accessCode string, lb domain.Leaderboard) error {
	data, err := json.Marshal(lb)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := s.client.Set(ctx, s.key(accessCode), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

func (s *SnapshotStore) Get(ctx context.Context, accessCode string) (domain.Leaderboard, bool, error) {
	raw, err := s.client.Get(ctx, s.key(accessCode)).Bytes()
	if err == redis.Nil {
		return domain.Leaderboard{}, false, nil
	}
	if err != nil {
		return domain.Leaderboard{}, false, fmt.Errorf("load snapshot: %w", err)
	}
	var lb domain.Leaderboard
	if err := json.Unmarshal(raw, &lb); err != nil {
		return domain.Leaderboard{}, false, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return lb, true, nil
}

func (s *SnapshotStore) key(accessCode string) string {
	return "game:" + accessCode + ":snapshot"
}
