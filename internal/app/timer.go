package app

import (
	"sync"
	"time"

	"mathquest-game-service/internal/domain"
)

// TimerService owns the canonical countdown state per timer key. All
// transitions go through it; Remaining is the only clock arithmetic in the
// system, so every client sees the same countdown.
type TimerService struct {
	mu     sync.Mutex
	now    func() time.Time
	timers map[string]*domain.TimerState
}

func NewTimerService() *TimerService {
	return NewTimerServiceWithClock(time.Now)
}

// NewTimerServiceWithClock allows deterministic timestamps in tests.
func NewTimerServiceWithClock(now func() time.Time) *TimerService {
	return &TimerService{now: now, timers: make(map[string]*domain.TimerState)}
}

// Start transitions the timer to play from any prior state, creating it if
// needed. Starting an already-playing timer resets its full duration; a
// restart is an explicit teacher action, not a no-op.
func (s *TimerService) Start(key domain.TimerKey, duration time.Duration) domain.TimerState {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := &domain.TimerState{
		Status:      domain.TimerPlay,
		Duration:    duration,
		Remaining:   duration,
		LastChange:  s.now(),
		QuestionUID: key.QuestionUID,
	}
	s.timers[key.String()] = state
	return *state
}

// Pause freezes the remaining time. Valid only from play.
func (s *TimerService) Pause(key domain.TimerKey) (domain.TimerState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.timers[key.String()]
	if !ok {
		return domain.TimerState{}, domain.ErrTimerNotFound
	}
	if state.Status != domain.TimerPlay {
		return *state, domain.ErrInvalidTransition
	}
	now := s.now()
	state.Remaining = clampRemaining(state.Remaining-now.Sub(state.LastChange), state.Duration)
	state.Status = domain.TimerPause
	state.LastChange = now
	return *state, nil
}

// Resume continues from the paused remaining value. Valid only from pause.
func (s *TimerService) Resume(key domain.TimerKey) (domain.TimerState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.timers[key.String()]
	if !ok {
		return domain.TimerState{}, domain.ErrTimerNotFound
	}
	if state.Status != domain.TimerPause {
		return *state, domain.ErrInvalidTransition
	}
	state.Status = domain.TimerPlay
	state.LastChange = s.now()
	return *state, nil
}

// Stop forces the terminal state for this attempt with zero remaining.
func (s *TimerService) Stop(key domain.TimerKey) (domain.TimerState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.timers[key.String()]
	if !ok {
		return domain.TimerState{}, domain.ErrTimerNotFound
	}
	state.Status = domain.TimerStop
	state.Remaining = 0
	state.LastChange = s.now()
	return *state, nil
}

// Remaining is a pure query, clamped to [0, duration].
func (s *TimerService) Remaining(key domain.TimerKey) (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.timers[key.String()]
	if !ok {
		return 0, domain.ErrTimerNotFound
	}
	if state.Status != domain.TimerPlay {
		return state.Remaining, nil
	}
	return clampRemaining(state.Remaining-s.now().Sub(state.LastChange), state.Duration), nil
}

// Get returns the raw state for a key, if known.
func (s *TimerService) Get(key domain.TimerKey) (domain.TimerState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.timers[key.String()]
	if !ok {
		return domain.TimerState{}, false
	}
	return *state, true
}

// Discard drops a timer once its question window is gone for good.
func (s *TimerService) Discard(key domain.TimerKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.timers, key.String())
}

func clampRemaining(d, max time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	if d > max {
		return max
	}
	return d
}
