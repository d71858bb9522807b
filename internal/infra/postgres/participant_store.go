package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"

	"mathquest-game-service/internal/domain"
)

// ParticipantStore is a bun-backed implementation of app.ParticipantStore.
// Each Save is a single keyed upsert, so the recorded standings survive a
// process restart and deferred joins see the attempt history.
type ParticipantStore struct {
	db *bun.DB
}

func NewParticipantStore(db *bun.DB) *ParticipantStore {
	return &ParticipantStore{db: db}
}

func (s *ParticipantStore) Get(ctx context.Context, accessCode, userID string) (domain.Participant, error) {
	row := new(participantRow)
	err := s.db.NewSelect().Model(row).
		Where("access_code = ?", accessCode).
		Where("user_id = ?", userID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Participant{}, domain.ErrParticipantNotFound
	}
	if err != nil {
		return domain.Participant{}, fmt.Errorf("select participant: %w", err)
	}
	return row.toDomain(), nil
}

func (s *ParticipantStore) Save(ctx context.Context, accessCode string, p domain.Participant) error {
	row := participantRowFrom(accessCode, p)
	_, err := s.db.NewInsert().
		Model(row).
		On("CONFLICT (access_code, user_id) DO UPDATE").
		Set("username = EXCLUDED.username").
		Set("avatar = EXCLUDED.avatar").
		Set("online = EXCLUDED.online").
		Set("play_mode = EXCLUDED.play_mode").
		Set("live_score = EXCLUDED.live_score").
		Set("deferred_score = EXCLUDED.deferred_score").
		Set("attempt_count = EXCLUDED.attempt_count").
		Set("completed_at = EXCLUDED.completed_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("upsert participant: %w", err)
	}
	return nil
}

func (s *ParticipantStore) Delete(ctx context.Context, accessCode, userID string) error {
	_, err := s.db.NewDelete().
		Model((*participantRow)(nil)).
		Where("access_code = ?", accessCode).
		Where("user_id = ?", userID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete participant: %w", err)
	}
	return nil
}

func (s *ParticipantStore) List(ctx context.Context, accessCode string) ([]domain.Participant, error) {
	var rows []participantRow
	err := s.db.NewSelect().Model(&rows).
		Where("access_code = ?", accessCode).
		Order("join_rank ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	participants := make([]domain.Participant, 0, len(rows))
	for i := range rows {
		participants = append(participants, rows[i].toDomain())
	}
	return participants, nil
}

// NextJoinRank claims the next join ordinal through an atomic counter
// bump on the game row; concurrent joiners can never share a rank.
func (s *ParticipantStore) NextJoinRank(ctx context.Context, accessCode string) (int, error) {
	var seq int
	err := s.db.QueryRowContext(ctx,
		`UPDATE game_instances SET join_rank_seq = join_rank_seq + 1 WHERE access_code = ? RETURNING join_rank_seq`,
		accessCode,
	).Scan(&seq)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, domain.ErrGameNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("claim join rank: %w", err)
	}
	return seq - 1, nil
}
