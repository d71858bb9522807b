package app

import (
	"context"
	"fmt"

	"mathquest-game-service/internal/domain"
)

// GameRepository abstracts how game instances are stored (in-memory, Postgres).
type GameRepository interface {
	GetByCode(ctx context.Context, accessCode string) (domain.GameInstance, error)
	Save(ctx context.Context, game domain.GameInstance) error
}

// QuestionRepository loads question content (from cache/backing store).
type QuestionRepository interface {
	GetQuestionSet(ctx context.Context, setID string) (domain.QuestionSet, error)
}

// ParticipantStore holds the per-game participant records. Each Save is a
// single keyed write; callers never read-modify-write across participants.
type ParticipantStore interface {
	Get(ctx context.Context, accessCode, userID string) (domain.Participant, error)
	Save(ctx context.Context, accessCode string, p domain.Participant) error
	Delete(ctx context.Context, accessCode, userID string) error
	List(ctx context.Context, accessCode string) ([]domain.Participant, error)
	// NextJoinRank atomically returns the next join ordinal for the game,
	// starting at 0 for the first joiner.
	NextJoinRank(ctx context.Context, accessCode string) (int, error)
}

// Room classes used for presence tracking.
const (
	RoomClassLobby = "lobby"
	RoomClassGame  = "game"
)

// PresenceStore tracks which connections hold which user in which room
// class. One user may hold several simultaneous connections (multiple tabs).
type PresenceStore interface {
	Connect(ctx context.Context, accessCode, roomClass, userID, connID string) error
	// Disconnect drops one connection and reports how many connections the
	// user still holds for this game across all room classes.
	Disconnect(ctx context.Context, accessCode, roomClass, userID, connID string) (remaining int, err error)
	// CountOnline counts distinct online users across lobby and game sets.
	CountOnline(ctx context.Context, accessCode string) (int, error)
}

// ScoreStore keeps the answered-guard and score buckets. ApplyDelta is the
// idempotency boundary: the guard and the increment apply together per key.
type ScoreStore interface {
	// ApplyDelta marks (user, bucket, question) answered and adds delta to the
	// bucket total. Returns applied=false without touching the total when the
	// question was already answered in this bucket.
	ApplyDelta(ctx context.Context, accessCode, userID, bucket, questionUID string, delta float64) (applied bool, total float64, err error)
	Total(ctx context.Context, accessCode, userID, bucket string) (float64, error)
}

// SnapshotStore holds the explicitly captured leaderboard served to the
// projection channel. Written only on demand, never on every score change.
type SnapshotStore interface {
	Save(ctx context.Context, accessCode string, lb domain.Leaderboard) error
	// Get returns the last snapshot, or ok=false when none was captured yet.
	Get(ctx context.Context, accessCode string) (lb domain.Leaderboard, ok bool, err error)
}

// LiveBucket addresses the shared synchronous score bucket.
const LiveBucket = "live"

// DeferredBucket addresses the score bucket of one deferred attempt.
func DeferredBucket(attempt int) string {
	return fmt.Sprintf("deferred:%d", attempt)
}

// Emitter is the outbound half of the transport: room-addressed publish
// plus direct replies to a single connection. The websocket hub implements
// it; tests use an in-memory fake.
type Emitter interface {
	JoinRoom(connID, room string)
	LeaveRoom(connID, room string)
	// MoveRoom reseats every member of one room into another.
	MoveRoom(from, to string)
	ToRoom(room, event string, payload any)
	ToConn(connID, event string, payload any)
}
