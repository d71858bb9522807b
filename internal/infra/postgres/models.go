package postgres

import (
	"time"

	"github.com/uptrace/bun"

	"mathquest-game-service/internal/domain"
)

type gameInstanceRow struct {
	bun.BaseModel `bun:"table:game_instances"`

	ID              string     `bun:"id,pk"`
	AccessCode      string     `bun:"access_code,unique,notnull"`
	QuestionSetID   string     `bun:"question_set_id,notnull"`
	Mode            string     `bun:"mode,notnull"`
	Status          string     `bun:"status,notnull"`
	CurrentQuestion int        `bun:"current_question"`
	DeferredFrom    *time.Time `bun:"deferred_from"`
	DeferredTo      *time.Time `bun:"deferred_to"`
	JoinRankSeq     int        `bun:"join_rank_seq"`
	CreatedAt       time.Time  `bun:"created_at"`
}

func (r *gameInstanceRow) toDomain() domain.GameInstance {
	return domain.GameInstance{
		ID:              r.ID,
		AccessCode:      r.AccessCode,
		QuestionSetID:   r.QuestionSetID,
		Mode:            domain.GameMode(r.Mode),
		Status:          domain.GameStatus(r.Status),
		CurrentQuestion: r.CurrentQuestion,
		DeferredFrom:    r.DeferredFrom,
		DeferredTo:      r.DeferredTo,
		CreatedAt:       r.CreatedAt,
	}
}

func gameRowFrom(g domain.GameInstance) *gameInstanceRow {
	return &gameInstanceRow{
		ID:              g.ID,
		AccessCode:      g.AccessCode,
		QuestionSetID:   g.QuestionSetID,
		Mode:            string(g.Mode),
		Status:          string(g.Status),
		CurrentQuestion: g.CurrentQuestion,
		DeferredFrom:    g.DeferredFrom,
		DeferredTo:      g.DeferredTo,
		CreatedAt:       g.CreatedAt,
	}
}

type participantRow struct {
	bun.BaseModel `bun:"table:game_participants"`

	AccessCode    string     `bun:"access_code,pk"`
	UserID        string     `bun:"user_id,pk"`
	Username      string     `bun:"username"`
	Avatar        string     `bun:"avatar"`
	JoinRank      int        `bun:"join_rank"`
	Online        bool       `bun:"online"`
	PlayMode      string     `bun:"play_mode"`
	LiveScore     float64    `bun:"live_score"`
	DeferredScore float64    `bun:"deferred_score"`
	AttemptCount  int        `bun:"attempt_count"`
	CompletedAt   *time.Time `bun:"completed_at"`
	JoinedAt      time.Time  `bun:"joined_at"`
}

func (r *participantRow) toDomain() domain.Participant {
	return domain.Participant{
		UserID:        r.UserID,
		Username:      r.Username,
		Avatar:        r.Avatar,
		JoinRank:      r.JoinRank,
		Online:        r.Online,
		PlayMode:      domain.PlayMode(r.PlayMode),
		LiveScore:     r.LiveScore,
		DeferredScore: r.DeferredScore,
		AttemptCount:  r.AttemptCount,
		CompletedAt:   r.CompletedAt,
		JoinedAt:      r.JoinedAt,
	}
}

func participantRowFrom(accessCode string, p domain.Participant) *participantRow {
	return &participantRow{
		AccessCode:    accessCode,
		UserID:        p.UserID,
		Username:      p.Username,
		Avatar:        p.Avatar,
		JoinRank:      p.JoinRank,
		Online:        p.Online,
		PlayMode:      string(p.PlayMode),
		LiveScore:     p.LiveScore,
		DeferredScore: p.DeferredScore,
		AttemptCount:  p.AttemptCount,
		CompletedAt:   p.CompletedAt,
		JoinedAt:      p.JoinedAt,
	}
}
