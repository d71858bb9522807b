package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"mathquest-game-service/internal/domain"
)

// OrchestratorConfig tunes per-question lifecycle behavior.
type OrchestratorConfig struct {
	// FeedbackWait is how long clients should display feedback before the
	// next question is announced.
	FeedbackWait time.Duration
}

// Orchestrator drives the per-question lifecycle and coordinates the timer
// service, participant registry, scoring engine and leaderboard publisher.
// All services are injected; none are process-global singletons.
type Orchestrator struct {
	games       GameRepository
	questions   QuestionRepository
	registry    *Registry
	timers      *TimerService
	scoring     *ScoringEngine
	leaderboard *LeaderboardPublisher
	emitter     Emitter
	log         zerolog.Logger
	cfg         OrchestratorConfig

	mu          sync.Mutex
	deferredIdx map[string]int // accessCode:userID -> current question index of the private run
}

func NewOrchestrator(
	games GameRepository,
	questions QuestionRepository,
	registry *Registry,
	timers *TimerService,
	scoring *ScoringEngine,
	leaderboard *LeaderboardPublisher,
	emitter Emitter,
	log zerolog.Logger,
	cfg OrchestratorConfig,
) *Orchestrator {
	return &Orchestrator{
		games:       games,
		questions:   questions,
		registry:    registry,
		timers:      timers,
		scoring:     scoring,
		leaderboard: leaderboard,
		emitter:     emitter,
		log:         log,
		cfg:         cfg,
		deferredIdx: make(map[string]int),
	}
}

// HandleJoin seats a connection in its room, registers the participant and
// replies with game_joined. Live joiners are announced to the room and
// trigger a projection snapshot refresh; a late live joiner additionally
// receives the currently open question with the canonical remaining time.
// The returned room class is what the transport must hand back on
// disconnect; it is empty when the join was rejected.
func (o *Orchestrator) HandleJoin(ctx context.Context, connID string, req JoinRequest) (string, error) {
	out, err := o.registry.Join(ctx, req)
	if err != nil {
		return "", o.emitError(connID, err)
	}
	game, p := out.Game, out.Participant

	roomClass := RoomClassGame
	var room string
	switch {
	case p.PlayMode == domain.PlayDeferred:
		// A socket reused from an earlier live session must not keep
		// receiving lobby or live-room traffic during a private run.
		o.emitter.LeaveRoom(connID, LobbyRoom(game.AccessCode))
		o.emitter.LeaveRoom(connID, LiveRoom(game.AccessCode))
		room = DeferredRoom(game.AccessCode, p.UserID)
	case game.Status == domain.StatusPending:
		room = LobbyRoom(game.AccessCode)
		roomClass = RoomClassLobby
	default:
		room = LiveRoom(game.AccessCode)
	}
	if err := o.registry.Connect(ctx, game.AccessCode, roomClass, p.UserID, connID); err != nil {
		return "", o.emitError(connID, err)
	}
	o.emitter.JoinRoom(connID, room)

	o.emitter.ToConn(connID, EventGameJoined, JoinedPayload{
		AccessCode:  game.AccessCode,
		GameStatus:  game.Status,
		Mode:        game.Mode,
		Participant: p,
	})
	o.broadcastCount(ctx, game)

	if p.PlayMode == domain.PlayDeferred {
		return roomClass, o.advanceDeferredRun(ctx, game, p, out.NewAttempt)
	}

	o.emitter.ToRoom(room, EventPlayerJoined, p)
	// New lobby/live joins refresh the projection snapshot.
	if _, err := o.leaderboard.Snapshot(ctx, game.AccessCode); err != nil {
		o.log.Error().Err(err).Str("accessCode", game.AccessCode).Msg("snapshot on join failed")
	} else if err := o.leaderboard.PublishProjection(ctx, game.AccessCode, game.ID); err != nil {
		o.log.Error().Err(err).Str("accessCode", game.AccessCode).Msg("projection publish failed")
	}

	if game.Status == domain.StatusActive && game.CurrentQuestion >= 0 {
		return roomClass, o.sendCurrentQuestion(ctx, connID, game)
	}
	return roomClass, nil
}

// HandleAnswer scores a submission and republishes the live leaderboard to
// the answering participant's room. The projection is never pushed here.
func (o *Orchestrator) HandleAnswer(ctx context.Context, connID, accessCode string, sub domain.AnswerSubmission) error {
	game, err := o.games.GetByCode(ctx, accessCode)
	if err != nil {
		return o.emitError(connID, err)
	}
	p, err := o.registry.Get(ctx, accessCode, sub.UserID)
	if err != nil {
		return o.emitError(connID, err)
	}

	open, ok, err := o.openQuestion(ctx, game, p)
	if err != nil {
		return o.emitError(connID, err)
	}
	if !ok {
		o.emitter.ToConn(connID, EventAnswerReceived, domain.AnswerResult{
			QuestionUID: sub.QuestionUID,
			Reason:      ReasonStale,
		})
		return nil
	}

	result, p, err := o.scoring.Submit(ctx, game, open, sub, p.PlayMode)
	if err != nil {
		return o.emitError(connID, err)
	}
	o.emitter.ToConn(connID, EventAnswerReceived, result)
	if !result.Accepted {
		// An expired private window still advances the run, unscored, so
		// the player is not stuck on a question they can no longer answer.
		if p.PlayMode == domain.PlayDeferred && result.Reason == ReasonStale && sub.QuestionUID == open.UID {
			return o.advanceAfterDeferredAnswer(ctx, game, p, open)
		}
		return nil
	}

	if p.PlayMode == domain.PlayDeferred {
		room := DeferredRoom(accessCode, p.UserID)
		if err := o.leaderboard.PublishLive(ctx, accessCode, room); err != nil {
			o.log.Error().Err(err).Str("accessCode", accessCode).Msg("leaderboard publish failed")
		}
		return o.advanceAfterDeferredAnswer(ctx, game, p, open)
	}

	if err := o.leaderboard.PublishLive(ctx, accessCode, LiveRoom(accessCode)); err != nil {
		o.log.Error().Err(err).Str("accessCode", accessCode).Msg("leaderboard publish failed")
	}
	return nil
}

// HandleDisconnect updates presence. The game goes on; a scored participant
// keeps their standing, marked offline.
func (o *Orchestrator) HandleDisconnect(ctx context.Context, accessCode, roomClass, userID, connID string) error {
	if _, err := o.registry.Disconnect(ctx, accessCode, roomClass, userID, connID); err != nil {
		o.log.Error().Err(err).Str("accessCode", accessCode).Str("userId", userID).Msg("disconnect failed")
		return err
	}
	game, err := o.games.GetByCode(ctx, accessCode)
	if err == nil {
		o.broadcastCount(ctx, game)
	}
	return nil
}

// HandleRequestParticipants replies with the participant list and the
// distinct online count.
func (o *Orchestrator) HandleRequestParticipants(ctx context.Context, connID, accessCode string) error {
	participants, err := o.registry.List(ctx, accessCode)
	if err != nil {
		return o.emitError(connID, err)
	}
	count, err := o.registry.CountOnline(ctx, accessCode)
	if err != nil {
		return o.emitError(connID, err)
	}
	o.emitter.ToConn(connID, EventParticipantList, ParticipantListPayload{
		AccessCode:   accessCode,
		Participants: participants,
		OnlineCount:  count,
	})
	return nil
}

// HandleJoinDashboard seats a teacher connection in the dashboard room.
func (o *Orchestrator) HandleJoinDashboard(ctx context.Context, connID, accessCode string) error {
	game, err := o.games.GetByCode(ctx, accessCode)
	if err != nil {
		return o.emitError(connID, err)
	}
	o.emitter.JoinRoom(connID, DashboardRoom(game.ID))
	o.broadcastCount(ctx, game)
	return nil
}

// HandleJoinProjection seats a display connection and immediately serves
// the last snapshot.
func (o *Orchestrator) HandleJoinProjection(ctx context.Context, connID, accessCode string) error {
	game, err := o.games.GetByCode(ctx, accessCode)
	if err != nil {
		return o.emitError(connID, err)
	}
	o.emitter.JoinRoom(connID, ProjectionRoom(game.ID))
	if err := o.leaderboard.PublishProjection(ctx, accessCode, game.ID); err != nil {
		return o.emitError(connID, err)
	}
	return nil
}

// HandleStartGame moves a pending game to active and reseats the lobby.
func (o *Orchestrator) HandleStartGame(ctx context.Context, connID, accessCode string) error {
	game, err := o.games.GetByCode(ctx, accessCode)
	if err != nil {
		return o.emitError(connID, err)
	}
	if game.Status != domain.StatusPending {
		return o.emitError(connID, domain.ErrInvalidTransition)
	}
	game.Status = domain.StatusActive
	game.CurrentQuestion = -1
	if err := o.games.Save(ctx, game); err != nil {
		return o.emitError(connID, err)
	}
	o.emitter.MoveRoom(LobbyRoom(accessCode), LiveRoom(accessCode))
	o.emitter.ToRoom(LiveRoom(accessCode), EventGameStarted, JoinedPayload{AccessCode: accessCode, GameStatus: game.Status, Mode: game.Mode})
	return nil
}

// HandlePauseGame and HandleResumeGame flip the game between active and
// paused, pausing or resuming the current question's timer with it.
func (o *Orchestrator) HandlePauseGame(ctx context.Context, connID, accessCode string) error {
	return o.setStatus(ctx, connID, accessCode, domain.StatusActive, domain.StatusPaused)
}

func (o *Orchestrator) HandleResumeGame(ctx context.Context, connID, accessCode string) error {
	return o.setStatus(ctx, connID, accessCode, domain.StatusPaused, domain.StatusActive)
}

func (o *Orchestrator) setStatus(ctx context.Context, connID, accessCode string, from, to domain.GameStatus) error {
	game, err := o.games.GetByCode(ctx, accessCode)
	if err != nil {
		return o.emitError(connID, err)
	}
	if game.Status != from {
		return o.emitError(connID, domain.ErrInvalidTransition)
	}
	game.Status = to
	if err := o.games.Save(ctx, game); err != nil {
		return o.emitError(connID, err)
	}

	if game.CurrentQuestion >= 0 {
		if q, ok, qerr := o.liveQuestion(ctx, game); qerr == nil && ok {
			key := domain.TimerKey{AccessCode: accessCode, QuestionUID: q.UID, Mode: domain.PlayLive}
			var state domain.TimerState
			var terr error
			if to == domain.StatusPaused {
				state, terr = o.timers.Pause(key)
			} else {
				state, terr = o.timers.Resume(key)
			}
			if terr == nil {
				o.broadcastTimer(accessCode, game.ID, q.UID, state)
			}
		}
	}
	return nil
}

// HandleSetQuestion announces a question to the live room and starts its
// timer. Setting the question that is already playing restarts the timer.
func (o *Orchestrator) HandleSetQuestion(ctx context.Context, connID, accessCode string, index int) error {
	game, err := o.games.GetByCode(ctx, accessCode)
	if err != nil {
		return o.emitError(connID, err)
	}
	if game.Status != domain.StatusActive {
		return o.emitError(connID, domain.ErrInvalidTransition)
	}
	set, err := o.questions.GetQuestionSet(ctx, game.QuestionSetID)
	if err != nil {
		return o.emitError(connID, err)
	}
	q, ok := set.QuestionAt(index)
	if !ok {
		return o.emitError(connID, domain.ErrQuestionNotFound)
	}

	// The previous question's window closes for good.
	if prev, okPrev := set.QuestionAt(game.CurrentQuestion); okPrev && prev.UID != q.UID {
		prevKey := domain.TimerKey{AccessCode: accessCode, QuestionUID: prev.UID, Mode: domain.PlayLive}
		if _, err := o.timers.Stop(prevKey); err == nil {
			o.timers.Discard(prevKey)
		}
	}

	game.CurrentQuestion = index
	if err := o.games.Save(ctx, game); err != nil {
		return o.emitError(connID, err)
	}

	key := domain.TimerKey{AccessCode: accessCode, QuestionUID: q.UID, Mode: domain.PlayLive}
	state := o.timers.Start(key, q.Duration)
	o.emitter.ToRoom(LiveRoom(accessCode), EventGameQuestion, PublicQuestion(q, index, len(set.Questions), state.Remaining))
	o.broadcastTimer(accessCode, game.ID, q.UID, state)
	return nil
}

// HandleTimerAction applies a teacher timer command (start, pause, resume,
// stop) to the current question.
func (o *Orchestrator) HandleTimerAction(ctx context.Context, connID, accessCode, action string) error {
	game, err := o.games.GetByCode(ctx, accessCode)
	if err != nil {
		return o.emitError(connID, err)
	}
	q, ok, err := o.liveQuestion(ctx, game)
	if err != nil {
		return o.emitError(connID, err)
	}
	if !ok {
		return o.emitError(connID, domain.ErrQuestionNotFound)
	}
	key := domain.TimerKey{AccessCode: accessCode, QuestionUID: q.UID, Mode: domain.PlayLive}

	var state domain.TimerState
	switch action {
	case "start":
		state = o.timers.Start(key, q.Duration)
	case "pause":
		state, err = o.timers.Pause(key)
	case "resume":
		state, err = o.timers.Resume(key)
	case "stop":
		state, err = o.timers.Stop(key)
	default:
		return o.emitError(connID, domain.ErrInvalidTransition)
	}
	if err != nil {
		return o.emitError(connID, err)
	}
	o.broadcastTimer(accessCode, game.ID, q.UID, state)
	return nil
}

// HandleCloseQuestion ends the answer-collection window: the timer stops,
// the snapshot advances, the projection is refreshed and feedback with the
// canonical answer goes to the live room.
func (o *Orchestrator) HandleCloseQuestion(ctx context.Context, connID, accessCode string) error {
	game, err := o.games.GetByCode(ctx, accessCode)
	if err != nil {
		return o.emitError(connID, err)
	}
	q, ok, err := o.liveQuestion(ctx, game)
	if err != nil {
		return o.emitError(connID, err)
	}
	if !ok {
		return o.emitError(connID, domain.ErrQuestionNotFound)
	}

	key := domain.TimerKey{AccessCode: accessCode, QuestionUID: q.UID, Mode: domain.PlayLive}
	if state, terr := o.timers.Stop(key); terr == nil {
		o.broadcastTimer(accessCode, game.ID, q.UID, state)
	}

	if _, err := o.leaderboard.Snapshot(ctx, accessCode); err != nil {
		o.log.Error().Err(err).Str("accessCode", accessCode).Msg("snapshot on close failed")
	} else if err := o.leaderboard.PublishProjection(ctx, accessCode, game.ID); err != nil {
		o.log.Error().Err(err).Str("accessCode", accessCode).Msg("projection publish failed")
	}

	o.emitter.ToRoom(LiveRoom(accessCode), EventFeedback, FeedbackPayload{
		QuestionUID:   q.UID,
		CorrectOption: q.CorrectOption(),
		FeedbackWait:  o.cfg.FeedbackWait,
	})
	return nil
}

// HandleEndGame completes the game, closes every live participant's cycle
// and broadcasts the final standings.
func (o *Orchestrator) HandleEndGame(ctx context.Context, connID, accessCode string) error {
	game, err := o.games.GetByCode(ctx, accessCode)
	if err != nil {
		return o.emitError(connID, err)
	}
	if game.Status == domain.StatusCompleted {
		return o.emitError(connID, domain.ErrInvalidTransition)
	}

	if q, ok, qerr := o.liveQuestion(ctx, game); qerr == nil && ok {
		key := domain.TimerKey{AccessCode: accessCode, QuestionUID: q.UID, Mode: domain.PlayLive}
		if _, terr := o.timers.Stop(key); terr == nil {
			o.timers.Discard(key)
		}
	}

	game.Status = domain.StatusCompleted
	if err := o.games.Save(ctx, game); err != nil {
		return o.emitError(connID, err)
	}

	participants, err := o.registry.List(ctx, accessCode)
	if err != nil {
		return o.emitError(connID, err)
	}
	for _, p := range participants {
		if p.PlayMode != domain.PlayLive || p.CompletedAt != nil {
			continue
		}
		if _, err := o.registry.CompleteAttempt(ctx, accessCode, p.UserID); err != nil {
			o.log.Error().Err(err).Str("userId", p.UserID).Msg("complete attempt failed")
		}
	}

	final, err := o.leaderboard.Snapshot(ctx, accessCode)
	if err != nil {
		return o.emitError(connID, err)
	}
	if err := o.leaderboard.PublishProjection(ctx, accessCode, game.ID); err != nil {
		o.log.Error().Err(err).Str("accessCode", accessCode).Msg("projection publish failed")
	}
	o.emitter.ToRoom(LiveRoom(accessCode), EventGameEnd, GameEndPayload{AccessCode: accessCode, Leaderboard: final})
	return nil
}

// sendCurrentQuestion delivers the open question to a late joiner with the
// canonical remaining time, so their countdown matches everyone else's.
func (o *Orchestrator) sendCurrentQuestion(ctx context.Context, connID string, game domain.GameInstance) error {
	set, err := o.questions.GetQuestionSet(ctx, game.QuestionSetID)
	if err != nil {
		return o.emitError(connID, err)
	}
	q, ok := set.QuestionAt(game.CurrentQuestion)
	if !ok {
		return nil
	}
	key := domain.TimerKey{AccessCode: game.AccessCode, QuestionUID: q.UID, Mode: domain.PlayLive}
	remaining, err := o.timers.Remaining(key)
	if err != nil {
		remaining = 0
	}
	o.emitter.ToConn(connID, EventGameQuestion, PublicQuestion(q, game.CurrentQuestion, len(set.Questions), remaining))
	return nil
}

// advanceDeferredRun starts or resumes a private self-paced run.
func (o *Orchestrator) advanceDeferredRun(ctx context.Context, game domain.GameInstance, p domain.Participant, newAttempt bool) error {
	o.mu.Lock()
	idx, known := o.deferredIdx[runKey(game.AccessCode, p.UserID)]
	if newAttempt || !known {
		idx = 0
		o.deferredIdx[runKey(game.AccessCode, p.UserID)] = 0
	}
	o.mu.Unlock()
	return o.sendDeferredQuestion(ctx, game, p, idx)
}

// advanceAfterDeferredAnswer closes the answered question's private timer
// and either presents the next question or completes the attempt.
func (o *Orchestrator) advanceAfterDeferredAnswer(ctx context.Context, game domain.GameInstance, p domain.Participant, answered domain.Question) error {
	key := domain.TimerKey{
		AccessCode:  game.AccessCode,
		QuestionUID: answered.UID,
		Mode:        domain.PlayDeferred,
		UserID:      p.UserID,
		Attempt:     p.AttemptCount,
	}
	if _, err := o.timers.Stop(key); err == nil {
		o.timers.Discard(key)
	}

	o.mu.Lock()
	idx := o.deferredIdx[runKey(game.AccessCode, p.UserID)] + 1
	o.deferredIdx[runKey(game.AccessCode, p.UserID)] = idx
	o.mu.Unlock()

	return o.sendDeferredQuestion(ctx, game, p, idx)
}

func (o *Orchestrator) sendDeferredQuestion(ctx context.Context, game domain.GameInstance, p domain.Participant, idx int) error {
	set, err := o.questions.GetQuestionSet(ctx, game.QuestionSetID)
	if err != nil {
		o.log.Error().Err(err).Str("accessCode", game.AccessCode).Msg("load question set failed")
		return err
	}
	room := DeferredRoom(game.AccessCode, p.UserID)

	q, ok := set.QuestionAt(idx)
	if !ok {
		return o.finishDeferredRun(ctx, game, p, room)
	}

	key := domain.TimerKey{
		AccessCode:  game.AccessCode,
		QuestionUID: q.UID,
		Mode:        domain.PlayDeferred,
		UserID:      p.UserID,
		Attempt:     p.AttemptCount,
	}
	state := o.timers.Start(key, q.Duration)
	o.emitter.ToRoom(room, EventGameQuestion, PublicQuestion(q, idx, len(set.Questions), state.Remaining))
	return nil
}

func (o *Orchestrator) finishDeferredRun(ctx context.Context, game domain.GameInstance, p domain.Participant, room string) error {
	if _, err := o.registry.CompleteAttempt(ctx, game.AccessCode, p.UserID); err != nil {
		o.log.Error().Err(err).Str("userId", p.UserID).Msg("complete attempt failed")
		return err
	}
	o.mu.Lock()
	delete(o.deferredIdx, runKey(game.AccessCode, p.UserID))
	o.mu.Unlock()

	final, err := o.leaderboard.ComputeLive(ctx, game.AccessCode)
	if err != nil {
		return err
	}
	o.emitter.ToRoom(room, EventGameEnd, GameEndPayload{AccessCode: game.AccessCode, Leaderboard: final})
	return nil
}

func (o *Orchestrator) liveQuestion(ctx context.Context, game domain.GameInstance) (domain.Question, bool, error) {
	set, err := o.questions.GetQuestionSet(ctx, game.QuestionSetID)
	if err != nil {
		return domain.Question{}, false, err
	}
	q, ok := set.QuestionAt(game.CurrentQuestion)
	return q, ok, nil
}

// openQuestion resolves the question a participant is allowed to answer
// right now: the game's current question for live play, the private run's
// position for deferred play.
func (o *Orchestrator) openQuestion(ctx context.Context, game domain.GameInstance, p domain.Participant) (domain.Question, bool, error) {
	set, err := o.questions.GetQuestionSet(ctx, game.QuestionSetID)
	if err != nil {
		return domain.Question{}, false, err
	}
	idx := game.CurrentQuestion
	if p.PlayMode == domain.PlayDeferred {
		o.mu.Lock()
		idx = o.deferredIdx[runKey(game.AccessCode, p.UserID)]
		o.mu.Unlock()
	}
	q, ok := set.QuestionAt(idx)
	return q, ok, nil
}

func (o *Orchestrator) broadcastCount(ctx context.Context, game domain.GameInstance) {
	count, err := o.registry.CountOnline(ctx, game.AccessCode)
	if err != nil {
		o.log.Error().Err(err).Str("accessCode", game.AccessCode).Msg("count online failed")
		return
	}
	o.emitter.ToRoom(DashboardRoom(game.ID), EventConnectedCount, CountPayload{AccessCode: game.AccessCode, Count: count})
}

func (o *Orchestrator) broadcastTimer(accessCode, gameID, questionUID string, state domain.TimerState) {
	payload := TimerPayload{
		QuestionUID: questionUID,
		Status:      state.Status,
		Remaining:   state.Remaining,
		Duration:    state.Duration,
	}
	o.emitter.ToRoom(LiveRoom(accessCode), EventTimerUpdate, payload)
	o.emitter.ToRoom(DashboardRoom(gameID), EventTimerUpdate, payload)
}

// emitError maps policy rejections and not-found conditions to named
// game_error events; anything else is logged and reported generically.
func (o *Orchestrator) emitError(connID string, err error) error {
	code := "internal_error"
	message := "internal error"
	switch {
	case errors.Is(err, domain.ErrGameNotFound):
		code, message = "game_not_found", err.Error()
	case errors.Is(err, domain.ErrQuestionNotFound), errors.Is(err, domain.ErrQuestionSetNotFound):
		code, message = "question_not_found", err.Error()
	case errors.Is(err, domain.ErrOptionNotFound):
		code, message = "option_not_found", err.Error()
	case errors.Is(err, domain.ErrTimerNotFound):
		code, message = "timer_not_found", err.Error()
	case errors.Is(err, domain.ErrParticipantNotFound):
		code, message = "participant_not_found", err.Error()
	case errors.Is(err, domain.ErrGameNotAvailable):
		code, message = "not_available", err.Error()
	case errors.Is(err, domain.ErrAlreadyPlayed):
		code, message = "already_played", err.Error()
	case errors.Is(err, domain.ErrAlreadyCompleted):
		code, message = "already_completed", err.Error()
	case errors.Is(err, domain.ErrInvalidTransition):
		code, message = "invalid_transition", err.Error()
	default:
		o.log.Error().Err(err).Msg("unexpected orchestrator error")
	}
	o.emitter.ToConn(connID, EventGameError, ErrorPayload{Code: code, Message: message})
	if code == "internal_error" {
		return err
	}
	return nil
}

func runKey(accessCode, userID string) string {
	return accessCode + ":" + userID
}
