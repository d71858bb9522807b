package app

import (
	"context"
	"fmt"
	"time"

	"mathquest-game-service/internal/domain"
)

// Registry tracks who is present in which game, their join rank, online
// flag, and deferred attempt bookkeeping.
type Registry struct {
	games               GameRepository
	participants        ParticipantStore
	presence            PresenceStore
	now                 func() time.Time
	maxDeferredAttempts int // 0 = unlimited
}

func NewRegistry(games GameRepository, participants ParticipantStore, presence PresenceStore, maxDeferredAttempts int) *Registry {
	return NewRegistryWithClock(games, participants, presence, maxDeferredAttempts, time.Now)
}

// NewRegistryWithClock allows deterministic timestamps in tests.
func NewRegistryWithClock(games GameRepository, participants ParticipantStore, presence PresenceStore, maxDeferredAttempts int, now func() time.Time) *Registry {
	return &Registry{
		games:               games,
		participants:        participants,
		presence:            presence,
		now:                 now,
		maxDeferredAttempts: maxDeferredAttempts,
	}
}

// JoinRequest is the inbound join_game/join_tournament payload.
type JoinRequest struct {
	AccessCode string `json:"accessCode"`
	UserID     string `json:"userId"`
	Username   string `json:"username"`
	Avatar     string `json:"avatar"`
	Deferred   bool   `json:"deferred"`
}

// JoinOutcome reports what a join did.
type JoinOutcome struct {
	Game        domain.GameInstance
	Participant domain.Participant
	Rejoined    bool
	NewAttempt  bool // a fresh deferred cycle began
}

// Join registers or refreshes a participant. It is idempotent: a second
// live join returns the existing record without touching join rank or
// attempt count. A deferred join increments the attempt counter only when
// it opens a new cycle, never on a re-join of an uncompleted attempt.
func (r *Registry) Join(ctx context.Context, req JoinRequest) (JoinOutcome, error) {
	game, err := r.games.GetByCode(ctx, req.AccessCode)
	if err != nil {
		return JoinOutcome{}, err
	}

	// Practice games are always self-paced private runs.
	deferred := req.Deferred || game.Mode == domain.ModePractice
	if deferred && game.Mode != domain.ModePractice {
		if !game.DeferredOpenAt(r.now()) {
			return JoinOutcome{}, domain.ErrGameNotAvailable
		}
	}

	existing, err := r.participants.Get(ctx, req.AccessCode, req.UserID)
	switch {
	case err == domain.ErrParticipantNotFound:
		return r.firstJoin(ctx, game, req, deferred)
	case err != nil:
		return JoinOutcome{}, fmt.Errorf("load participant: %w", err)
	}
	return r.rejoin(ctx, game, req, existing, deferred)
}

func (r *Registry) firstJoin(ctx context.Context, game domain.GameInstance, req JoinRequest, deferred bool) (JoinOutcome, error) {
	rank, err := r.participants.NextJoinRank(ctx, req.AccessCode)
	if err != nil {
		return JoinOutcome{}, fmt.Errorf("assign join rank: %w", err)
	}
	p := domain.Participant{
		UserID:   req.UserID,
		Username: req.Username,
		Avatar:   req.Avatar,
		JoinRank: rank,
		Online:   true,
		PlayMode: domain.PlayLive,
		JoinedAt: r.now(),
	}
	newAttempt := false
	if deferred {
		p.PlayMode = domain.PlayDeferred
		p.AttemptCount = 1
		newAttempt = true
	}
	if err := r.participants.Save(ctx, req.AccessCode, p); err != nil {
		return JoinOutcome{}, fmt.Errorf("save participant: %w", err)
	}
	return JoinOutcome{Game: game, Participant: p, NewAttempt: newAttempt}, nil
}

func (r *Registry) rejoin(ctx context.Context, game domain.GameInstance, req JoinRequest, p domain.Participant, deferred bool) (JoinOutcome, error) {
	p.Online = true
	if req.Username != "" {
		p.Username = req.Username
	}
	if req.Avatar != "" {
		p.Avatar = req.Avatar
	}

	newAttempt := false
	if deferred {
		p.PlayMode = domain.PlayDeferred
		switch {
		case p.AttemptCount == 0:
			// First deferred cycle; prior live play does not count.
			p.AttemptCount = 1
			p.CompletedAt = nil
			p.DeferredScore = 0
			newAttempt = true
		case p.CompletedAt != nil:
			if r.maxDeferredAttempts > 0 && p.AttemptCount >= r.maxDeferredAttempts && game.Mode != domain.ModePractice {
				return JoinOutcome{}, domain.ErrAlreadyPlayed
			}
			p.AttemptCount++
			p.CompletedAt = nil
			p.DeferredScore = 0
			newAttempt = true
		default:
			// Re-join of an uncompleted attempt: resume, no increment.
		}
	} else {
		p.PlayMode = domain.PlayLive
	}

	if err := r.participants.Save(ctx, req.AccessCode, p); err != nil {
		return JoinOutcome{}, fmt.Errorf("save participant: %w", err)
	}
	return JoinOutcome{Game: game, Participant: p, Rejoined: true, NewAttempt: newAttempt}, nil
}

// Connect records one socket connection for a user.
func (r *Registry) Connect(ctx context.Context, accessCode, roomClass, userID, connID string) error {
	if err := r.presence.Connect(ctx, accessCode, roomClass, userID, connID); err != nil {
		return fmt.Errorf("record presence: %w", err)
	}
	return nil
}

// Disconnect drops one connection. Once the user's last connection is gone,
// a participant with a recorded score is preserved offline so they do not
// vanish from rankings; one who never scored is removed outright.
func (r *Registry) Disconnect(ctx context.Context, accessCode, roomClass, userID, connID string) (purged bool, err error) {
	remaining, err := r.presence.Disconnect(ctx, accessCode, roomClass, userID, connID)
	if err != nil {
		return false, fmt.Errorf("drop presence: %w", err)
	}
	if remaining > 0 {
		return false, nil
	}

	p, err := r.participants.Get(ctx, accessCode, userID)
	if err == domain.ErrParticipantNotFound {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load participant: %w", err)
	}
	if !p.HasScored() {
		if err := r.participants.Delete(ctx, accessCode, userID); err != nil {
			return false, fmt.Errorf("purge participant: %w", err)
		}
		return true, nil
	}
	p.Online = false
	if err := r.participants.Save(ctx, accessCode, p); err != nil {
		return false, fmt.Errorf("save participant: %w", err)
	}
	return false, nil
}

// CountOnline counts distinct online users across lobby and game rooms.
func (r *Registry) CountOnline(ctx context.Context, accessCode string) (int, error) {
	return r.presence.CountOnline(ctx, accessCode)
}

// Get returns one participant record.
func (r *Registry) Get(ctx context.Context, accessCode, userID string) (domain.Participant, error) {
	return r.participants.Get(ctx, accessCode, userID)
}

// List returns all participant records for a game.
func (r *Registry) List(ctx context.Context, accessCode string) ([]domain.Participant, error) {
	return r.participants.List(ctx, accessCode)
}

// CompleteAttempt marks the participant's current cycle finished. For a
// deferred run this closes the attempt; the next deferred join opens a new
// one. Live completion never touches the attempt counter.
func (r *Registry) CompleteAttempt(ctx context.Context, accessCode, userID string) (domain.Participant, error) {
	p, err := r.participants.Get(ctx, accessCode, userID)
	if err != nil {
		return domain.Participant{}, err
	}
	now := r.now()
	p.CompletedAt = &now
	if err := r.participants.Save(ctx, accessCode, p); err != nil {
		return domain.Participant{}, fmt.Errorf("save participant: %w", err)
	}
	return p, nil
}
