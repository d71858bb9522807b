package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"mathquest-game-service/internal/app"
)

// PresenceStore is a Redis implementation of app.PresenceStore. Per-user
// connection sets keep multi-tab users counted once; per-class online sets
// answer the distinct-user count with a single SUNION.
//
// Keys:
//
//	game:{code}:conns:{class}:{user}  SADD connID
//	game:{code}:online:{class}       SADD userID
type PresenceStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewPresenceStore(client *redis.Client, ttl time.Duration) *PresenceStore {
	return &PresenceStore{client: client, ttl: ttl}
}

func (s *PresenceStore) Connect(ctx context.Context, accessCode, roomClass, userID, connID string) error {
	connsKey := s.connsKey(accessCode, roomClass, userID)
	onlineKey := s.onlineKey(accessCode, roomClass)

	pipe := s.client.Pipeline()
	pipe.SAdd(ctx, connsKey, connID)
	pipe.SAdd(ctx, onlineKey, userID)
	if s.ttl > 0 {
		pipe.Expire(ctx, connsKey, s.ttl)
		pipe.Expire(ctx, onlineKey, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("record connection: %w", err)
	}
	return nil
}

func (s *PresenceStore) Disconnect(ctx context.Context, accessCode, roomClass, userID, connID string) (int, error) {
	connsKey := s.connsKey(accessCode, roomClass, userID)
	if err := s.client.SRem(ctx, connsKey, connID).Err(); err != nil {
		return 0, fmt.Errorf("drop connection: %w", err)
	}
	left, err := s.client.SCard(ctx, connsKey).Result()
	if err != nil {
		return 0, fmt.Errorf("count connections: %w", err)
	}
	if left == 0 {
		if err := s.client.SRem(ctx, s.onlineKey(accessCode, roomClass), userID).Err(); err != nil {
			return 0, fmt.Errorf("drop online flag: %w", err)
		}
	}

	remaining := int(left)
	for _, class := range []string{app.RoomClassLobby, app.RoomClassGame} {
		if class == roomClass {
			continue
		}
		n, err := s.client.SCard(ctx, s.connsKey(accessCode, class, userID)).Result()
		if err != nil {
			return 0, fmt.Errorf("count connections: %w", err)
		}
		remaining += int(n)
	}
	return remaining, nil
}

func (s *PresenceStore) CountOnline(ctx context.Context, accessCode string) (int, error) {
	users, err := s.client.SUnion(ctx,
		s.onlineKey(accessCode, app.RoomClassLobby),
		s.onlineKey(accessCode, app.RoomClassGame),
	).Result()
	if err != nil {
		return 0, fmt.Errorf("count online: %w", err)
	}
	return len(users), nil
}

func (s *PresenceStore) connsKey(accessCode, roomClass, userID string) string {
	return "game:" + accessCode + ":conns:" + roomClass + ":" + userID
}

func (s *PresenceStore) onlineKey(accessCode, roomClass string) string {
	return "game:" + accessCode + ":online:" + roomClass
}
