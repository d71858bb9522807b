package memory

import (
	"context"
	"sync"
)

type bucketKey struct {
	accessCode string
	userID     string
	bucket     string
}

// ScoreStore is an in-memory implementation of app.ScoreStore. The
// answered-guard and the increment happen under one lock so a duplicate
// submission can never double-apply.
type ScoreStore struct {
	mu       sync.Mutex
	totals   map[bucketKey]float64
	answered map[bucketKey]map[string]struct{} // -> set of question UIDs
}

func NewScoreStore() *ScoreStore {
	return &ScoreStore{
		totals:   make(map[bucketKey]float64),
		answered: make(map[bucketKey]map[string]struct{}),
	}
}

func (s *ScoreStore) ApplyDelta(_ context.Context, accessCode, userID, bucket, questionUID string, delta float64) (bool, float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := bucketKey{accessCode, userID, bucket}
	if _, ok := s.answered[key][questionUID]; ok {
		return false, s.totals[key], nil
	}
	if s.answered[key] == nil {
		s.answered[key] = make(map[string]struct{})
	}
	s.answered[key][questionUID] = struct{}{}
	s.totals[key] += delta
	return true, s.totals[key], nil
}

func (s *ScoreStore) Total(_ context.Context, accessCode, userID, bucket string) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totals[bucketKey{accessCode, userID, bucket}], nil
}
