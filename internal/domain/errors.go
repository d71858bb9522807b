package domain

import "errors"

var (
	// ErrGameNotFound is returned when no game instance matches an access code.
	ErrGameNotFound = errors.New("game not found")
	// ErrQuestionSetNotFound indicates the game's question content could not be loaded.
	ErrQuestionSetNotFound = errors.New("question set not found")
	// ErrQuestionNotFound indicates a submitted question UID is unknown.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrOptionNotFound indicates a submitted option ID is invalid for the question.
	ErrOptionNotFound = errors.New("option not found")
	// ErrTimerNotFound is returned for operations on a timer key that was never started.
	ErrTimerNotFound = errors.New("timer not found")
	// ErrParticipantNotFound is returned when a user acts before joining.
	ErrParticipantNotFound = errors.New("participant not found in game")

	// ErrGameNotAvailable rejects a deferred join outside the availability window.
	ErrGameNotAvailable = errors.New("game not available")
	// ErrAlreadyPlayed rejects a deferred join with no attempts remaining.
	ErrAlreadyPlayed = errors.New("already played")
	// ErrAlreadyCompleted rejects a submission for an attempt that has finished.
	ErrAlreadyCompleted = errors.New("attempt already completed")
	// ErrInvalidTransition rejects a timer or game transition from the wrong state.
	ErrInvalidTransition = errors.New("invalid state transition")
)

// IsRejection reports whether err is an expected policy rejection rather
// than an infrastructure fault. The orchestrator turns rejections into
// named client-facing error events without tearing down the connection.
// Stale and duplicate submissions are not errors at all: they come back
// as acknowledged-but-unscored results.
func IsRejection(err error) bool {
	for _, r := range []error{
		ErrGameNotAvailable, ErrAlreadyPlayed, ErrAlreadyCompleted,
		ErrInvalidTransition,
	} {
		if errors.Is(err, r) {
			return true
		}
	}
	return false
}
