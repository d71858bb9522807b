package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"

	"mathquest-game-service/internal/domain"
)

// GameRepository is a bun-backed implementation of app.GameRepository.
type GameRepository struct {
	db *bun.DB
}

func NewGameRepository(db *bun.DB) *GameRepository {
	return &GameRepository{db: db}
}

func (r *GameRepository) GetByCode(ctx context.Context, accessCode string) (domain.GameInstance, error) {
	row := new(gameInstanceRow)
	err := r.db.NewSelect().Model(row).Where("access_code = ?", accessCode).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.GameInstance{}, domain.ErrGameNotFound
	}
	if err != nil {
		return domain.GameInstance{}, fmt.Errorf("select game: %w", err)
	}
	return row.toDomain(), nil
}

func (r *GameRepository) Save(ctx context.Context, game domain.GameInstance) error {
	row := gameRowFrom(game)
	_, err := r.db.NewInsert().
		Model(row).
		On("CONFLICT (access_code) DO UPDATE").
		Set("status = EXCLUDED.status").
		Set("current_question = EXCLUDED.current_question").
		Set("deferred_from = EXCLUDED.deferred_from").
		Set("deferred_to = EXCLUDED.deferred_to").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("upsert game: %w", err)
	}
	return nil
}
