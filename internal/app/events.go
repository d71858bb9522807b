package app

import (
	"time"

	"mathquest-game-service/internal/domain"
)

// Outbound event names.
const (
	EventGameJoined            = "game_joined"
	EventGameError             = "game_error"
	EventPlayerJoined          = "player_joined_game"
	EventGameStarted           = "game_started"
	EventGameQuestion          = "game_question"
	EventAnswerReceived        = "answer_received"
	EventLeaderboardUpdate     = "leaderboard_update"
	EventProjectionLeaderboard = "projection_leaderboard_update"
	EventConnectedCount        = "quiz_connected_count"
	EventTimerUpdate           = "timer_update"
	EventFeedback              = "feedback"
	EventGameEnd               = "game_end"
	EventParticipantList       = "game_participants"
)

// ErrorPayload is the body of a game_error event.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// JoinedPayload confirms a join to the requesting connection.
type JoinedPayload struct {
	AccessCode  string             `json:"accessCode"`
	GameStatus  domain.GameStatus  `json:"gameStatus"`
	Mode        domain.GameMode    `json:"mode"`
	Participant domain.Participant `json:"participant"`
}

// QuestionPayload is the client-facing view of a question: option
// correctness is stripped, remaining time reflects the canonical timer so
// late joiners see the same countdown as everyone else.
type QuestionPayload struct {
	UID       string           `json:"uid"`
	Text      string           `json:"text"`
	Options   []QuestionOption `json:"options"`
	Index     int              `json:"index"`
	Total     int              `json:"total"`
	Duration  time.Duration    `json:"durationMs"`
	Remaining time.Duration    `json:"remainingMs"`
}

type QuestionOption struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// FeedbackPayload reveals the canonical answer after a window closes.
type FeedbackPayload struct {
	QuestionUID   string        `json:"questionUid"`
	CorrectOption string        `json:"correctOption"`
	FeedbackWait  time.Duration `json:"feedbackWaitMs"`
}

// TimerPayload broadcasts a timer transition to players and the dashboard.
type TimerPayload struct {
	QuestionUID string             `json:"questionUid"`
	Status      domain.TimerStatus `json:"status"`
	Remaining   time.Duration      `json:"remainingMs"`
	Duration    time.Duration      `json:"durationMs"`
}

// CountPayload carries the deduplicated online participant count.
type CountPayload struct {
	AccessCode string `json:"accessCode"`
	Count      int    `json:"count"`
}

// ParticipantListPayload answers a request_participants event.
type ParticipantListPayload struct {
	AccessCode   string               `json:"accessCode"`
	Participants []domain.Participant `json:"participants"`
	OnlineCount  int                  `json:"onlineCount"`
}

// GameEndPayload carries the final standings.
type GameEndPayload struct {
	AccessCode  string             `json:"accessCode"`
	Leaderboard domain.Leaderboard `json:"leaderboard"`
}

// PublicQuestion strips answer correctness from a question for broadcast.
func PublicQuestion(q domain.Question, index, total int, remaining time.Duration) QuestionPayload {
	opts := make([]QuestionOption, 0, len(q.Options))
	for _, o := range q.Options {
		opts = append(opts, QuestionOption{ID: o.ID, Text: o.Text})
	}
	return QuestionPayload{
		UID:       q.UID,
		Text:      q.Text,
		Options:   opts,
		Index:     index,
		Total:     total,
		Duration:  q.Duration,
		Remaining: remaining,
	}
}
