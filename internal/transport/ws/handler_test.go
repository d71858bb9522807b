package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"mathquest-game-service/internal/app"
	"mathquest-game-service/internal/domain"
	"mathquest-game-service/internal/infra/memory"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	ctx := context.Background()

	games := memory.NewGameRepository()
	games.Save(ctx, domain.GameInstance{
		ID:              "game-1",
		AccessCode:      "GAME1",
		QuestionSetID:   "set-1",
		Mode:            domain.ModeQuiz,
		Status:          domain.StatusActive,
		CurrentQuestion: -1,
	})
	questions := memory.NewQuestionRepository(memory.NewStaticQuestionLoader(map[string]domain.QuestionSet{
		"set-1": {
			ID: "set-1",
			Questions: []domain.Question{
				{
					UID:  "q1",
					Text: "What is 2 + 2?",
					Options: []domain.AnswerOption{
						{ID: "o1", Text: "3"},
						{ID: "o2", Text: "4", Correct: true},
					},
					Points:   1,
					Duration: 30 * time.Second,
				},
			},
		},
	}), time.Minute)

	participants := memory.NewParticipantStore()
	timers := app.NewTimerService()
	hub := NewHub(zerolog.Nop())
	registry := app.NewRegistry(games, participants, memory.NewPresenceStore(), 0)
	scoring := app.NewScoringEngine(participants, memory.NewScoreStore(), timers)
	leaderboard := app.NewLeaderboardPublisher(participants, memory.NewSnapshotStore(), hub)
	orch := app.NewOrchestrator(games, questions, registry, timers, scoring, leaderboard, hub, zerolog.Nop(), app.OrchestratorConfig{})
	handler := NewHandler(hub, orch, zerolog.Nop())

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", handler.ServeWS)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func dial(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	u := "ws" + server.URL[len("http"):] + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, msgType string, payload any) {
	t.Helper()
	if err := conn.WriteJSON(map[string]any{"type": msgType, "payload": payload}); err != nil {
		t.Fatalf("write %s: %v", msgType, err)
	}
}

// readUntil drains messages until one with the wanted type arrives.
func readUntil(t *testing.T, conn *websocket.Conn, want string) json.RawMessage {
	t.Helper()
	for i := 0; i < 10; i++ {
		var msg struct {
			Type    string          `json:"type"`
			Payload json.RawMessage `json:"payload"`
		}
		conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read waiting for %s: %v", want, err)
		}
		if msg.Type == want {
			return msg.Payload
		}
	}
	t.Fatalf("never received %s", want)
	return nil
}

func TestWebSocketGameFlow(t *testing.T) {
	server := newTestServer(t)
	conn := dial(t, server)

	send(t, conn, "join_game", map[string]any{
		"accessCode": "GAME1",
		"userId":     "alice",
		"username":   "Alice",
	})
	joined := readUntil(t, conn, "game_joined")
	var joinedPayload struct {
		AccessCode string `json:"accessCode"`
		GameStatus string `json:"gameStatus"`
	}
	if err := json.Unmarshal(joined, &joinedPayload); err != nil {
		t.Fatalf("decode game_joined: %v", err)
	}
	if joinedPayload.AccessCode != "GAME1" || joinedPayload.GameStatus != "active" {
		t.Fatalf("unexpected game_joined payload: %+v", joinedPayload)
	}

	send(t, conn, "set_question", map[string]any{"accessCode": "GAME1", "index": 0})
	question := readUntil(t, conn, "game_question")
	var questionPayload struct {
		UID     string `json:"uid"`
		Options []struct {
			ID      string `json:"id"`
			Text    string `json:"text"`
			Correct *bool  `json:"correct"`
		} `json:"options"`
	}
	if err := json.Unmarshal(question, &questionPayload); err != nil {
		t.Fatalf("decode game_question: %v", err)
	}
	if questionPayload.UID != "q1" {
		t.Fatalf("expected q1, got %q", questionPayload.UID)
	}
	for _, opt := range questionPayload.Options {
		if opt.Correct != nil {
			t.Fatalf("broadcast question must not leak correctness: %+v", opt)
		}
	}

	// Clients report their own elapsed time; the server ignores it and
	// scores against the canonical timer.
	send(t, conn, "game_answer", map[string]any{
		"accessCode":  "GAME1",
		"userId":      "alice",
		"questionUid": "q1",
		"optionId":    "o2",
		"timeSpentMs": 1200,
	})
	ack := readUntil(t, conn, "answer_received")
	var result domain.AnswerResult
	if err := json.Unmarshal(ack, &result); err != nil {
		t.Fatalf("decode answer_received: %v", err)
	}
	if !result.Accepted || !result.Correct {
		t.Fatalf("expected accepted correct answer, got %+v", result)
	}

	lb := readUntil(t, conn, "leaderboard_update")
	var board domain.Leaderboard
	if err := json.Unmarshal(lb, &board); err != nil {
		t.Fatalf("decode leaderboard: %v", err)
	}
	if len(board.Entries) != 1 || board.Entries[0].UserID != "alice" {
		t.Fatalf("unexpected leaderboard: %+v", board.Entries)
	}
}

func TestWebSocketRejectsMalformedAndUnknown(t *testing.T) {
	server := newTestServer(t)
	conn := dial(t, server)

	if err := conn.WriteMessage(websocket.TextMessage, []byte("not json")); err != nil {
		t.Fatalf("write: %v", err)
	}
	payload := readUntil(t, conn, "game_error")
	var errPayload app.ErrorPayload
	if err := json.Unmarshal(payload, &errPayload); err != nil {
		t.Fatalf("decode game_error: %v", err)
	}
	if errPayload.Code != "bad_payload" {
		t.Fatalf("expected bad_payload, got %+v", errPayload)
	}

	send(t, conn, "no_such_event", map[string]any{})
	payload = readUntil(t, conn, "game_error")
	if err := json.Unmarshal(payload, &errPayload); err != nil {
		t.Fatalf("decode game_error: %v", err)
	}
	if errPayload.Code != "unsupported_event" {
		t.Fatalf("expected unsupported_event, got %+v", errPayload)
	}

	// The connection survives both; a valid join still works.
	send(t, conn, "join_game", map[string]any{"accessCode": "GAME1", "userId": "alice"})
	readUntil(t, conn, "game_joined")
}
