package domain

import (
	"fmt"
	"time"
)

// GameMode distinguishes how a game instance is played.
type GameMode string

const (
	ModeQuiz       GameMode = "quiz"
	ModeTournament GameMode = "tournament"
	ModePractice   GameMode = "practice"
)

// GameStatus is the lifecycle state of a game instance.
type GameStatus string

const (
	StatusPending   GameStatus = "pending"
	StatusActive    GameStatus = "active"
	StatusPaused    GameStatus = "paused"
	StatusCompleted GameStatus = "completed"
)

// PlayMode distinguishes synchronous play from an asynchronous replay.
type PlayMode string

const (
	PlayLive     PlayMode = "live"
	PlayDeferred PlayMode = "deferred"
)

// GameInstance is one play of a question set, addressed by its access code.
type GameInstance struct {
	ID              string     `json:"id"`
	AccessCode      string     `json:"accessCode"`
	QuestionSetID   string     `json:"questionSetId"`
	Mode            GameMode   `json:"mode"`
	Status          GameStatus `json:"status"`
	CurrentQuestion int        `json:"currentQuestion"` // index into the question set, -1 before the first question
	DeferredFrom    *time.Time `json:"deferredFrom,omitempty"`
	DeferredTo      *time.Time `json:"deferredTo,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
}

// DeferredOpenAt reports whether the deferred-availability window
// contains the given instant. A nil bound is unbounded on that side.
func (g *GameInstance) DeferredOpenAt(now time.Time) bool {
	if g.DeferredFrom != nil && now.Before(*g.DeferredFrom) {
		return false
	}
	if g.DeferredTo != nil && now.After(*g.DeferredTo) {
		return false
	}
	return true
}

// Participant is a (user, game) pair with its score buckets.
// Live and deferred scores are never merged.
type Participant struct {
	UserID        string     `json:"userId"`
	Username      string     `json:"username"`
	Avatar        string     `json:"avatar"`
	JoinRank      int        `json:"joinRank"`
	Online        bool       `json:"online"`
	PlayMode      PlayMode   `json:"playMode"`
	LiveScore     float64    `json:"liveScore"`
	DeferredScore float64    `json:"deferredScore"` // score of the current deferred attempt
	AttemptCount  int        `json:"attemptCount"`  // deferred cycles only; live play never counts
	CompletedAt   *time.Time `json:"completedAt,omitempty"`
	JoinedAt      time.Time  `json:"joinedAt"`
}

// Score returns the bucket matching the participant's play mode.
func (p *Participant) Score() float64 {
	if p.PlayMode == PlayDeferred {
		return p.DeferredScore
	}
	return p.LiveScore
}

// HasScored reports whether the participant ever contributed to a leaderboard.
func (p *Participant) HasScored() bool {
	return p.LiveScore > 0 || p.DeferredScore > 0
}

// TimerStatus is the state of a question countdown.
type TimerStatus string

const (
	TimerStop  TimerStatus = "stop"
	TimerPlay  TimerStatus = "play"
	TimerPause TimerStatus = "pause"
)

// TimerKey addresses one countdown. Live play uses a zero UserID/Attempt;
// each deferred replay gets its own key so attempts never share a timer.
type TimerKey struct {
	AccessCode  string
	QuestionUID string
	Mode        PlayMode
	UserID      string // deferred only
	Attempt     int    // deferred only
}

func (k TimerKey) String() string {
	if k.Mode == PlayDeferred {
		return fmt.Sprintf("%s:%s:%s:%s:%d", k.AccessCode, k.QuestionUID, k.Mode, k.UserID, k.Attempt)
	}
	return fmt.Sprintf("%s:%s:%s", k.AccessCode, k.QuestionUID, k.Mode)
}

// TimerState is the canonical countdown state for one timer key.
type TimerState struct {
	Status      TimerStatus   `json:"status"`
	Duration    time.Duration `json:"durationMs"`
	Remaining   time.Duration `json:"remainingMs"` // remaining at LastChange
	LastChange  time.Time     `json:"lastChange"`
	QuestionUID string        `json:"questionUid"`
}

// AnswerOption is one choice of a multiple-choice question.
type AnswerOption struct {
	ID      string `json:"id"`
	Text    string `json:"text"`
	Correct bool   `json:"correct"`
}

// Question models an MCQ question with its canonical answer rule.
type Question struct {
	UID      string         `json:"uid"`
	Text     string         `json:"text"`
	Options  []AnswerOption `json:"options"`
	Points   float64        `json:"points"`     // defaults to 1 if zero
	Duration time.Duration  `json:"durationMs"` // nominal answer window
}

// CorrectOption returns the ID of the first option flagged correct.
func (q *Question) CorrectOption() string {
	for _, opt := range q.Options {
		if opt.Correct {
			return opt.ID
		}
	}
	return ""
}

// QuestionSet is the ordered content a game instance plays through.
type QuestionSet struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Questions []Question `json:"questions"`
}

// QuestionAt returns the question at index, or false when out of range.
func (s *QuestionSet) QuestionAt(i int) (Question, bool) {
	if i < 0 || i >= len(s.Questions) {
		return Question{}, false
	}
	return s.Questions[i], true
}

// AnswerSubmission is the ephemeral scoring input from a client. Elapsed
// time is never taken from the client; scoring reads the canonical timer.
type AnswerSubmission struct {
	UserID      string `json:"userId"`
	QuestionUID string `json:"questionUid"`
	OptionID    string `json:"optionId"`
}

// AnswerResult summarizes a submission outcome for the submitting user.
type AnswerResult struct {
	QuestionUID string  `json:"questionUid"`
	Accepted    bool    `json:"accepted"` // false for stale/duplicate/completed submissions
	Reason      string  `json:"reason,omitempty"`
	Correct     bool    `json:"correct"`
	Awarded     float64 `json:"awarded"`
	TotalScore  float64 `json:"totalScore"`
}

// LeaderboardEntry is a derived ranking row, never stored as an entity.
type LeaderboardEntry struct {
	UserID       string   `json:"userId"`
	Username     string   `json:"username"`
	Avatar       string   `json:"avatar,omitempty"`
	Score        float64  `json:"score"`
	Rank         int      `json:"rank"`
	AttemptCount int      `json:"attemptCount"`
	PlayMode     PlayMode `json:"participation"`
}

// Leaderboard is an ordered ranking for one game.
type Leaderboard struct {
	AccessCode string             `json:"accessCode"`
	Entries    []LeaderboardEntry `json:"entries"`
	CreatedAt  time.Time          `json:"createdAt"`
}
