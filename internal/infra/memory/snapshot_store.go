package memory

import (
	"context"
	"sync"

	"mathquest-game-service/internal/domain"
)

// SnapshotStore is an in-memory implementation of app.SnapshotStore.
type SnapshotStore struct {
	mu        sync.RWMutex
	snapshots map[string]domain.Leaderboard
}

func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{snapshots: make(map[string]domain.Leaderboard)}
}

func (s *SnapshotStore) Save(_ context.Context, accessCode string, lb domain.Leaderboard) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[accessCode] = lb
	return nil
}

func (s *SnapshotStore) Get(_ context.Context, accessCode string) (domain.Leaderboard, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	lb, ok := s.snapshots[accessCode]
	return lb, ok, nil
}
