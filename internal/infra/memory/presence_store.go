package memory

import (
	"context"
	"sync"

	"mathquest-game-service/internal/app"
)

// PresenceStore is an in-memory implementation of app.PresenceStore. It
// counts users, not connections: one user with three tabs is one presence.
type PresenceStore struct {
	mu sync.RWMutex
	// accessCode -> roomClass -> userID -> set of connIDs
	rooms map[string]map[string]map[string]map[string]struct{}
}

func NewPresenceStore() *PresenceStore {
	return &PresenceStore{rooms: make(map[string]map[string]map[string]map[string]struct{})}
}

func (s *PresenceStore) Connect(_ context.Context, accessCode, roomClass, userID, connID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rooms[accessCode] == nil {
		s.rooms[accessCode] = make(map[string]map[string]map[string]struct{})
	}
	if s.rooms[accessCode][roomClass] == nil {
		s.rooms[accessCode][roomClass] = make(map[string]map[string]struct{})
	}
	if s.rooms[accessCode][roomClass][userID] == nil {
		s.rooms[accessCode][roomClass][userID] = make(map[string]struct{})
	}
	s.rooms[accessCode][roomClass][userID][connID] = struct{}{}
	return nil
}

func (s *PresenceStore) Disconnect(_ context.Context, accessCode, roomClass, userID, connID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if conns := s.rooms[accessCode][roomClass][userID]; conns != nil {
		delete(conns, connID)
		if len(conns) == 0 {
			delete(s.rooms[accessCode][roomClass], userID)
		}
	}
	remaining := 0
	for _, class := range s.rooms[accessCode] {
		remaining += len(class[userID])
	}
	return remaining, nil
}

func (s *PresenceStore) CountOnline(_ context.Context, accessCode string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	distinct := make(map[string]struct{})
	for _, class := range []string{app.RoomClassLobby, app.RoomClassGame} {
		for userID := range s.rooms[accessCode][class] {
			distinct[userID] = struct{}{}
		}
	}
	return len(distinct), nil
}
