package ws

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"mathquest-game-service/internal/app"
	"mathquest-game-service/internal/domain"
)

// Inbound event names.
const (
	eventJoinGame            = "join_game"
	eventJoinTournament      = "join_tournament"
	eventGameAnswer          = "game_answer"
	eventTournamentAnswer    = "tournament_answer"
	eventRequestParticipants = "request_participants"
	eventJoinDashboard       = "join_dashboard"
	eventJoinProjection      = "join_projection"
	eventStartGame           = "start_game"
	eventPauseGame           = "pause_game"
	eventResumeGame          = "resume_game"
	eventSetQuestion         = "set_question"
	eventTimerAction         = "quiz_timer_action"
	eventCloseQuestion       = "close_question"
	eventEndGame             = "end_game"
)

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type answerPayload struct {
	AccessCode  string `json:"accessCode"`
	UserID      string `json:"userId"`
	QuestionUID string `json:"questionUid"`
	OptionID    string `json:"optionId"`
}

type codePayload struct {
	AccessCode string `json:"accessCode"`
}

type setQuestionPayload struct {
	AccessCode string `json:"accessCode"`
	Index      int    `json:"index"`
}

type timerActionPayload struct {
	AccessCode string `json:"accessCode"`
	Action     string `json:"action"`
}

// Handler upgrades HTTP requests to websockets and dispatches inbound
// events to the orchestrator.
type Handler struct {
	hub      *Hub
	orch     *app.Orchestrator
	upgrader websocket.Upgrader
	log      zerolog.Logger
}

func NewHandler(hub *Hub, orch *app.Orchestrator, log zerolog.Logger) *Handler {
	return &Handler{
		hub:  hub,
		orch: orch,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		log: log,
	}
}

// ServeWS upgrades the connection and starts the client pumps.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("ws upgrade failed")
		return
	}

	client := newClient(h.hub, conn, h.log)
	h.hub.Register(client)

	go client.writePump()
	go client.readPump(h)

	h.log.Debug().Str("connId", client.id).Msg("new websocket connection")
}

// dispatch routes one inbound event. Unknown events and malformed
// payloads are answered with game_error without dropping the connection.
func (h *Handler) dispatch(c *Client, raw []byte) {
	ctx := context.Background()

	var msg inboundMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		h.hub.ToConn(c.id, app.EventGameError, app.ErrorPayload{Code: "bad_payload", Message: "invalid message format"})
		return
	}

	var err error
	switch msg.Type {
	case eventJoinGame, eventJoinTournament:
		err = h.handleJoin(ctx, c, msg.Payload)
	case eventGameAnswer, eventTournamentAnswer:
		err = h.handleAnswer(ctx, c, msg.Payload)
	case eventRequestParticipants:
		var p codePayload
		if err = json.Unmarshal(msg.Payload, &p); err == nil {
			err = h.orch.HandleRequestParticipants(ctx, c.id, p.AccessCode)
		}
	case eventJoinDashboard:
		var p codePayload
		if err = json.Unmarshal(msg.Payload, &p); err == nil {
			err = h.orch.HandleJoinDashboard(ctx, c.id, p.AccessCode)
		}
	case eventJoinProjection:
		var p codePayload
		if err = json.Unmarshal(msg.Payload, &p); err == nil {
			err = h.orch.HandleJoinProjection(ctx, c.id, p.AccessCode)
		}
	case eventStartGame:
		var p codePayload
		if err = json.Unmarshal(msg.Payload, &p); err == nil {
			err = h.orch.HandleStartGame(ctx, c.id, p.AccessCode)
		}
	case eventPauseGame:
		var p codePayload
		if err = json.Unmarshal(msg.Payload, &p); err == nil {
			err = h.orch.HandlePauseGame(ctx, c.id, p.AccessCode)
		}
	case eventResumeGame:
		var p codePayload
		if err = json.Unmarshal(msg.Payload, &p); err == nil {
			err = h.orch.HandleResumeGame(ctx, c.id, p.AccessCode)
		}
	case eventSetQuestion:
		var p setQuestionPayload
		if err = json.Unmarshal(msg.Payload, &p); err == nil {
			err = h.orch.HandleSetQuestion(ctx, c.id, p.AccessCode, p.Index)
		}
	case eventTimerAction:
		var p timerActionPayload
		if err = json.Unmarshal(msg.Payload, &p); err == nil {
			err = h.orch.HandleTimerAction(ctx, c.id, p.AccessCode, p.Action)
		}
	case eventCloseQuestion:
		var p codePayload
		if err = json.Unmarshal(msg.Payload, &p); err == nil {
			err = h.orch.HandleCloseQuestion(ctx, c.id, p.AccessCode)
		}
	case eventEndGame:
		var p codePayload
		if err = json.Unmarshal(msg.Payload, &p); err == nil {
			err = h.orch.HandleEndGame(ctx, c.id, p.AccessCode)
		}
	default:
		h.hub.ToConn(c.id, app.EventGameError, app.ErrorPayload{Code: "unsupported_event", Message: "unsupported message type"})
		return
	}

	if err != nil && !domain.IsRejection(err) {
		h.log.Error().Err(err).Str("connId", c.id).Str("event", msg.Type).Msg("event handling failed")
	}
}

func (h *Handler) handleJoin(ctx context.Context, c *Client, raw json.RawMessage) error {
	var req app.JoinRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		h.hub.ToConn(c.id, app.EventGameError, app.ErrorPayload{Code: "bad_payload", Message: "invalid join payload"})
		return nil
	}
	roomClass, err := h.orch.HandleJoin(ctx, c.id, req)
	if err != nil {
		return err
	}
	if roomClass != "" {
		c.setIdentity(req.AccessCode, req.UserID, roomClass)
	}
	return nil
}

func (h *Handler) handleAnswer(ctx context.Context, c *Client, raw json.RawMessage) error {
	var p answerPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		h.hub.ToConn(c.id, app.EventGameError, app.ErrorPayload{Code: "bad_payload", Message: "invalid answer payload"})
		return nil
	}
	return h.orch.HandleAnswer(ctx, c.id, p.AccessCode, domain.AnswerSubmission{
		UserID:      p.UserID,
		QuestionUID: p.QuestionUID,
		OptionID:    p.OptionID,
	})
}

// onDisconnect hands the presence update to the orchestrator. A connection
// that never joined has nothing to clean up.
func (h *Handler) onDisconnect(c *Client) {
	identity, ok := c.getIdentity()
	if !ok {
		return
	}
	if err := h.orch.HandleDisconnect(context.Background(), identity.accessCode, identity.roomClass, identity.userID, c.id); err != nil {
		h.log.Error().Err(err).Str("connId", c.id).Msg("disconnect handling failed")
	}
}
