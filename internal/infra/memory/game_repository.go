package memory

import (
	"context"
	"sync"

	"mathquest-game-service/internal/domain"
)

// GameRepository is an in-memory implementation of app.GameRepository,
// used in tests and in single-node deployments without Postgres.
type GameRepository struct {
	mu    sync.RWMutex
	games map[string]domain.GameInstance // accessCode -> instance
}

func NewGameRepository() *GameRepository {
	return &GameRepository{games: make(map[string]domain.GameInstance)}
}

func (r *GameRepository) GetByCode(_ context.Context, accessCode string) (domain.GameInstance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	game, ok := r.games[accessCode]
	if !ok {
		return domain.GameInstance{}, domain.ErrGameNotFound
	}
	return game, nil
}

func (r *GameRepository) Save(_ context.Context, game domain.GameInstance) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.games[game.AccessCode] = game
	return nil
}
