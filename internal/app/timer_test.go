package app_test

import (
	"sync"
	"testing"
	"time"

	"mathquest-game-service/internal/app"
	"mathquest-game-service/internal/domain"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func liveKey(code, uid string) domain.TimerKey {
	return domain.TimerKey{AccessCode: code, QuestionUID: uid, Mode: domain.PlayLive}
}

func TestTimerCountsDown(t *testing.T) {
	clock := newFakeClock()
	timers := app.NewTimerServiceWithClock(clock.Now)
	key := liveKey("GAME1", "q1")

	state := timers.Start(key, 30*time.Second)
	if state.Status != domain.TimerPlay || state.Remaining != 30*time.Second {
		t.Fatalf("unexpected state after start: %+v", state)
	}

	clock.Advance(10 * time.Second)
	remaining, err := timers.Remaining(key)
	if err != nil {
		t.Fatalf("remaining: %v", err)
	}
	if remaining != 20*time.Second {
		t.Fatalf("expected 20s remaining, got %v", remaining)
	}

	// Past the end the countdown clamps at zero.
	clock.Advance(time.Minute)
	remaining, _ = timers.Remaining(key)
	if remaining != 0 {
		t.Fatalf("expected clamp to 0, got %v", remaining)
	}
}

func TestTimerPauseFreezesRemaining(t *testing.T) {
	clock := newFakeClock()
	timers := app.NewTimerServiceWithClock(clock.Now)
	key := liveKey("GAME1", "q1")

	timers.Start(key, 30*time.Second)
	clock.Advance(12 * time.Second)

	state, err := timers.Pause(key)
	if err != nil {
		t.Fatalf("pause: %v", err)
	}
	if state.Status != domain.TimerPause || state.Remaining != 18*time.Second {
		t.Fatalf("unexpected paused state: %+v", state)
	}

	// Time passing while paused changes nothing.
	clock.Advance(time.Hour)
	remaining, _ := timers.Remaining(key)
	if remaining != 18*time.Second {
		t.Fatalf("expected frozen 18s, got %v", remaining)
	}

	state, err = timers.Resume(key)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if state.Status != domain.TimerPlay {
		t.Fatalf("expected play after resume, got %s", state.Status)
	}
	clock.Advance(8 * time.Second)
	remaining, _ = timers.Remaining(key)
	if remaining != 10*time.Second {
		t.Fatalf("expected 10s after resume, got %v", remaining)
	}
}

func TestTimerStopZeroesRemaining(t *testing.T) {
	clock := newFakeClock()
	timers := app.NewTimerServiceWithClock(clock.Now)
	key := liveKey("GAME1", "q1")

	timers.Start(key, 30*time.Second)
	state, err := timers.Stop(key)
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	if state.Status != domain.TimerStop || state.Remaining != 0 {
		t.Fatalf("unexpected stopped state: %+v", state)
	}
}

func TestTimerStartRestartsPlayingTimer(t *testing.T) {
	clock := newFakeClock()
	timers := app.NewTimerServiceWithClock(clock.Now)
	key := liveKey("GAME1", "q1")

	timers.Start(key, 30*time.Second)
	clock.Advance(25 * time.Second)
	state := timers.Start(key, 30*time.Second)
	if state.Remaining != 30*time.Second || state.Status != domain.TimerPlay {
		t.Fatalf("expected full reset, got %+v", state)
	}
}

func TestTimerInvalidTransitions(t *testing.T) {
	clock := newFakeClock()
	timers := app.NewTimerServiceWithClock(clock.Now)
	key := liveKey("GAME1", "q1")

	if _, err := timers.Pause(key); err != domain.ErrTimerNotFound {
		t.Fatalf("expected timer not found, got %v", err)
	}
	if _, err := timers.Remaining(key); err != domain.ErrTimerNotFound {
		t.Fatalf("expected timer not found, got %v", err)
	}

	timers.Start(key, 30*time.Second)
	if _, err := timers.Resume(key); err != domain.ErrInvalidTransition {
		t.Fatalf("expected invalid transition on resume from play, got %v", err)
	}
	timers.Pause(key)
	if _, err := timers.Pause(key); err != domain.ErrInvalidTransition {
		t.Fatalf("expected invalid transition on double pause, got %v", err)
	}
}

func TestTimerDeferredKeysAreIsolated(t *testing.T) {
	clock := newFakeClock()
	timers := app.NewTimerServiceWithClock(clock.Now)

	keyFor := func(user string, attempt int) domain.TimerKey {
		return domain.TimerKey{
			AccessCode:  "GAME1",
			QuestionUID: "q1",
			Mode:        domain.PlayDeferred,
			UserID:      user,
			Attempt:     attempt,
		}
	}

	timers.Start(keyFor("alice", 1), 30*time.Second)
	clock.Advance(10 * time.Second)
	timers.Start(keyFor("bob", 1), 30*time.Second)

	aliceRemaining, _ := timers.Remaining(keyFor("alice", 1))
	bobRemaining, _ := timers.Remaining(keyFor("bob", 1))
	if aliceRemaining != 20*time.Second || bobRemaining != 30*time.Second {
		t.Fatalf("expected independent countdowns, got alice=%v bob=%v", aliceRemaining, bobRemaining)
	}

	// A second attempt is a distinct timer from the first.
	if _, err := timers.Remaining(keyFor("alice", 2)); err != domain.ErrTimerNotFound {
		t.Fatalf("expected attempt 2 timer to be unknown, got %v", err)
	}
}
