package app

import (
	"context"
	"fmt"
	"sort"
	"time"

	"mathquest-game-service/internal/domain"
)

// tieBreakEpsilon is the join-order bonus used to break score ties. Earlier
// joiners carry the larger bonus. It must stay smaller than the minimum
// real score increment (half a point).
const tieBreakEpsilon = 0.001

// LeaderboardPublisher recomputes rankings from participant state and pushes
// two distinct views: the always-current live view to player rooms, and an
// explicitly captured snapshot to the projection channel. The projection
// never sees a score more current than its last snapshot.
type LeaderboardPublisher struct {
	participants ParticipantStore
	snapshots    SnapshotStore
	emitter      Emitter
	now          func() time.Time
}

func NewLeaderboardPublisher(participants ParticipantStore, snapshots SnapshotStore, emitter Emitter) *LeaderboardPublisher {
	return NewLeaderboardPublisherWithClock(participants, snapshots, emitter, time.Now)
}

// NewLeaderboardPublisherWithClock allows deterministic timestamps in tests.
func NewLeaderboardPublisherWithClock(participants ParticipantStore, snapshots SnapshotStore, emitter Emitter, now func() time.Time) *LeaderboardPublisher {
	return &LeaderboardPublisher{participants: participants, snapshots: snapshots, emitter: emitter, now: now}
}

// ComputeLive builds the current ranking: combined score descending, ties
// by earlier join rank, user ID as the final total-order fallback. Ranks
// are dense, with equal rank only for exactly equal combined scores.
func (l *LeaderboardPublisher) ComputeLive(ctx context.Context, accessCode string) (domain.Leaderboard, error) {
	participants, err := l.participants.List(ctx, accessCode)
	if err != nil {
		return domain.Leaderboard{}, fmt.Errorf("list participants: %w", err)
	}

	type ranked struct {
		entry    domain.LeaderboardEntry
		combined float64
		joinRank int
	}
	rows := make([]ranked, 0, len(participants))
	for _, p := range participants {
		rows = append(rows, ranked{
			entry: domain.LeaderboardEntry{
				UserID:       p.UserID,
				Username:     p.Username,
				Avatar:       p.Avatar,
				Score:        p.Score(),
				AttemptCount: p.AttemptCount,
				PlayMode:     p.PlayMode,
			},
			combined: CombinedScore(p.Score(), p.JoinRank),
			joinRank: p.JoinRank,
		})
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].combined != rows[j].combined {
			return rows[i].combined > rows[j].combined
		}
		if rows[i].joinRank != rows[j].joinRank {
			return rows[i].joinRank < rows[j].joinRank
		}
		return rows[i].entry.UserID < rows[j].entry.UserID
	})

	entries := make([]domain.LeaderboardEntry, 0, len(rows))
	rank := 0
	var prev float64
	for i, row := range rows {
		if i == 0 || row.combined != prev {
			rank++
		}
		prev = row.combined
		row.entry.Rank = rank
		entries = append(entries, row.entry)
	}

	return domain.Leaderboard{AccessCode: accessCode, Entries: entries, CreatedAt: l.now()}, nil
}

// Snapshot captures the current live ranking for the projection channel.
// Capture is explicit, driven by orchestrator events (a lobby join, a
// question closing), never implicit on every score change.
func (l *LeaderboardPublisher) Snapshot(ctx context.Context, accessCode string) (domain.Leaderboard, error) {
	lb, err := l.ComputeLive(ctx, accessCode)
	if err != nil {
		return domain.Leaderboard{}, err
	}
	if err := l.snapshots.Save(ctx, accessCode, lb); err != nil {
		return domain.Leaderboard{}, fmt.Errorf("save snapshot: %w", err)
	}
	return lb, nil
}

// PublishLive pushes the current ranking to one room.
func (l *LeaderboardPublisher) PublishLive(ctx context.Context, accessCode, room string) error {
	lb, err := l.ComputeLive(ctx, accessCode)
	if err != nil {
		return err
	}
	l.emitter.ToRoom(room, EventLeaderboardUpdate, lb)
	return nil
}

// PublishProjection pushes the last snapshot, never the live state, to the
// projection room. With no snapshot yet it publishes an empty board rather
// than leaking live scores.
func (l *LeaderboardPublisher) PublishProjection(ctx context.Context, accessCode, gameID string) error {
	lb, ok, err := l.snapshots.Get(ctx, accessCode)
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	if !ok {
		lb = domain.Leaderboard{AccessCode: accessCode, Entries: []domain.LeaderboardEntry{}, CreatedAt: l.now()}
	}
	l.emitter.ToRoom(ProjectionRoom(gameID), EventProjectionLeaderboard, lb)
	return nil
}

// CombinedScore is the sortable score with the join-order tie-break bonus
// folded in.
func CombinedScore(score float64, joinRank int) float64 {
	return score + tieBreakEpsilon/float64(1+joinRank)
}
