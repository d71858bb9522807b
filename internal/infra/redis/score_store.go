package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// ScoreStore is a Redis implementation of app.ScoreStore. The answered
// guard is an HSETNX on a per-bucket hash; only a winning guard runs the
// score increment, so concurrent duplicates apply at most once without an
// application-level lock.
//
// Keys:
//
//	game:{code}:answered:{user}:{bucket}  HSETNX {questionUID} 1
//	game:{code}:scores:{bucket}           HINCRBYFLOAT {user} delta
type ScoreStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewScoreStore(client *redis.Client, ttl time.Duration) *ScoreStore {
	return &ScoreStore{client: client, ttl: ttl}
}

func (s *ScoreStore) ApplyDelta(ctx context.Context, accessCode, userID, bucket, questionUID string, delta float64) (bool, float64, error) {
	answeredKey := s.answeredKey(accessCode, userID, bucket)
	scoresKey := s.scoresKey(accessCode, bucket)

	won, err := s.client.HSetNX(ctx, answeredKey, questionUID, 1).Result()
	if err != nil {
		return false, 0, fmt.Errorf("answered guard: %w", err)
	}
	if !won {
		total, err := s.total(ctx, scoresKey, userID)
		if err != nil {
			return false, 0, err
		}
		return false, total, nil
	}

	pipe := s.client.Pipeline()
	incr := pipe.HIncrByFloat(ctx, scoresKey, userID, delta)
	if s.ttl > 0 {
		pipe.Expire(ctx, answeredKey, s.ttl)
		pipe.Expire(ctx, scoresKey, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, fmt.Errorf("apply delta: %w", err)
	}
	return true, incr.Val(), nil
}

func (s *ScoreStore) Total(ctx context.Context, accessCode, userID, bucket string) (float64, error) {
	return s.total(ctx, s.scoresKey(accessCode, bucket), userID)
}

func (s *ScoreStore) total(ctx context.Context, scoresKey, userID string) (float64, error) {
	raw, err := s.client.HGet(ctx, scoresKey, userID).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read total: %w", err)
	}
	total, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("parse total: %w", err)
	}
	return total, nil
}

func (s *ScoreStore) answeredKey(accessCode, userID, bucket string) string {
	return "game:" + accessCode + ":answered:" + userID + ":" + bucket
}

func (s *ScoreStore) scoresKey(accessCode, bucket string) string {
	return "game:" + accessCode + ":scores:" + bucket
}
