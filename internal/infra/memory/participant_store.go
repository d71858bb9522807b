package memory

import (
	"context"
	"sync"

	"mathquest-game-service/internal/domain"
)

// ParticipantStore is an in-memory implementation of app.ParticipantStore.
// Every mutation is a single keyed write under one lock, matching the
// atomic-keyed-store assumption of the scoring path.
type ParticipantStore struct {
	mu        sync.RWMutex
	games     map[string]map[string]domain.Participant // accessCode -> userID -> participant
	joinRanks map[string]int                           // accessCode -> next rank
}

func NewParticipantStore() *ParticipantStore {
	return &ParticipantStore{
		games:     make(map[string]map[string]domain.Participant),
		joinRanks: make(map[string]int),
	}
}

func (s *ParticipantStore) Get(_ context.Context, accessCode, userID string) (domain.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.games[accessCode][userID]
	if !ok {
		return domain.Participant{}, domain.ErrParticipantNotFound
	}
	return p, nil
}

func (s *ParticipantStore) Save(_ context.Context, accessCode string, p domain.Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.games[accessCode] == nil {
		s.games[accessCode] = make(map[string]domain.Participant)
	}
	s.games[accessCode][p.UserID] = p
	return nil
}

func (s *ParticipantStore) Delete(_ context.Context, accessCode, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.games[accessCode], userID)
	return nil
}

func (s *ParticipantStore) List(_ context.Context, accessCode string) ([]domain.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	participants := make([]domain.Participant, 0, len(s.games[accessCode]))
	for _, p := range s.games[accessCode] {
		participants = append(participants, p)
	}
	return participants, nil
}

func (s *ParticipantStore) NextJoinRank(_ context.Context, accessCode string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rank := s.joinRanks[accessCode]
	s.joinRanks[accessCode] = rank + 1
	return rank, nil
}
