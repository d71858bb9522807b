package app

import (
	"context"
	"fmt"
	"time"

	"mathquest-game-service/internal/domain"
)

// Rejection reasons carried on an unscored AnswerResult.
const (
	ReasonStale            = "stale"
	ReasonDuplicate        = "duplicate"
	ReasonAlreadyCompleted = "already_completed"
)

// ScoringEngine turns answer submissions into score deltas. The answered
// guard and the increment are applied together per key by the ScoreStore,
// so duplicate submissions change the score at most once.
type ScoringEngine struct {
	participants ParticipantStore
	scores       ScoreStore
	timers       *TimerService
}

func NewScoringEngine(participants ParticipantStore, scores ScoreStore, timers *TimerService) *ScoringEngine {
	return &ScoringEngine{participants: participants, scores: scores, timers: timers}
}

// Submit scores one answer against the currently open question. Policy
// rejections (stale, duplicate, completed attempt) come back as an
// acknowledged-but-unscored result, not an error; errors are reserved for
// unknown participants/options and infrastructure faults.
func (e *ScoringEngine) Submit(ctx context.Context, game domain.GameInstance, open domain.Question, sub domain.AnswerSubmission, mode domain.PlayMode) (domain.AnswerResult, domain.Participant, error) {
	p, err := e.participants.Get(ctx, game.AccessCode, sub.UserID)
	if err != nil {
		return domain.AnswerResult{}, domain.Participant{}, err
	}

	result := domain.AnswerResult{QuestionUID: sub.QuestionUID, TotalScore: p.Score()}

	if p.CompletedAt != nil {
		result.Reason = ReasonAlreadyCompleted
		return result, p, nil
	}
	if sub.QuestionUID != open.UID {
		result.Reason = ReasonStale
		return result, p, nil
	}

	key := timerKeyFor(game.AccessCode, open.UID, mode, p)
	remaining, window := e.openWindow(key)
	if !window {
		result.Reason = ReasonStale
		return result, p, nil
	}

	correct, delta, err := scoreAnswer(open, sub.OptionID, remaining)
	if err != nil {
		return domain.AnswerResult{}, p, err
	}

	bucket := LiveBucket
	if mode == domain.PlayDeferred {
		bucket = DeferredBucket(p.AttemptCount)
	}
	applied, total, err := e.scores.ApplyDelta(ctx, game.AccessCode, sub.UserID, bucket, sub.QuestionUID, delta)
	if err != nil {
		return domain.AnswerResult{}, p, fmt.Errorf("apply score: %w", err)
	}
	if !applied {
		result.Reason = ReasonDuplicate
		return result, p, nil
	}

	if mode == domain.PlayDeferred {
		p.DeferredScore = total
	} else {
		p.LiveScore = total
	}
	if err := e.participants.Save(ctx, game.AccessCode, p); err != nil {
		return domain.AnswerResult{}, p, fmt.Errorf("save participant: %w", err)
	}

	result.Accepted = true
	result.Correct = correct
	result.Awarded = delta
	result.TotalScore = total
	return result, p, nil
}

// openWindow reports whether the answer-collection window for the timer key
// is still open, and how much time remains.
func (e *ScoringEngine) openWindow(key domain.TimerKey) (time.Duration, bool) {
	state, ok := e.timers.Get(key)
	if !ok || state.Status != domain.TimerPlay {
		return 0, false
	}
	remaining, err := e.timers.Remaining(key)
	if err != nil || remaining <= 0 {
		return 0, false
	}
	return remaining, true
}

// scoreAnswer computes the point delta: zero for an incorrect answer, and
// for a correct one a time-decayed share of the question's points. The
// curve is monotonic non-increasing in elapsed time: half the points are
// guaranteed, the other half shrinks linearly with the countdown.
func scoreAnswer(q domain.Question, optionID string, remaining time.Duration) (bool, float64, error) {
	var selected *domain.AnswerOption
	for i := range q.Options {
		if q.Options[i].ID == optionID {
			selected = &q.Options[i]
			break
		}
	}
	if selected == nil {
		return false, 0, domain.ErrOptionNotFound
	}
	if !selected.Correct {
		return false, 0, nil
	}

	points := q.Points
	if points == 0 {
		points = 1
	}
	ratio := 1.0
	if q.Duration > 0 {
		ratio = float64(remaining) / float64(q.Duration)
		if ratio > 1 {
			ratio = 1
		}
		if ratio < 0 {
			ratio = 0
		}
	}
	return true, points * (0.5 + 0.5*ratio), nil
}

// timerKeyFor resolves the timer key an answer is scored against: the
// shared live key, or the participant's private per-attempt key.
func timerKeyFor(accessCode, questionUID string, mode domain.PlayMode, p domain.Participant) domain.TimerKey {
	key := domain.TimerKey{AccessCode: accessCode, QuestionUID: questionUID, Mode: mode}
	if mode == domain.PlayDeferred {
		key.UserID = p.UserID
		key.Attempt = p.AttemptCount
	}
	return key
}
