package cli

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"mathquest-game-service/internal/app"
	"mathquest-game-service/internal/config"
	"mathquest-game-service/internal/domain"
	"mathquest-game-service/internal/infra/memory"
	pginfra "mathquest-game-service/internal/infra/postgres"
	redisinfra "mathquest-game-service/internal/infra/redis"
	"mathquest-game-service/internal/transport/ws"
)

// NewStartCmd builds the CLI subcommand to start the game server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the game server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := newLogger(cfg)

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)

	var pool *pgxpool.Pool
	var bunDB *bun.DB
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
		sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Postgres.URL)))
		bunDB = bun.NewDB(sqldb, pgdialect.New())
		defer bunDB.Close()
	}

	var loader memory.QuestionLoader = memory.NewStaticQuestionLoader(sampleQuestionSets())
	if pool != nil {
		loader = pginfra.NewQuestionLoader(pool)
	}

	questionTTL := config.TTLDuration(cfg.Question.TTL, 10*time.Minute)
	var questions app.QuestionRepository
	if redisClient != nil {
		questions = redisinfra.NewQuestionRepository(redisClient, loader, questionTTL)
	} else {
		questions = memory.NewQuestionRepository(loader, questionTTL)
	}

	var games app.GameRepository
	var participants app.ParticipantStore
	if bunDB != nil {
		games = pginfra.NewGameRepository(bunDB)
		participants = pginfra.NewParticipantStore(bunDB)
	} else {
		memGames := memory.NewGameRepository()
		seedDemoGame(ctx, memGames)
		games = memGames
		participants = memory.NewParticipantStore()
	}

	var presence app.PresenceStore
	var scores app.ScoreStore
	var snapshots app.SnapshotStore
	if redisClient != nil {
		presence = redisinfra.NewPresenceStore(redisClient, redisTTL)
		scores = redisinfra.NewScoreStore(redisClient, redisTTL)
		snapshots = redisinfra.NewSnapshotStore(redisClient, redisTTL)
	} else {
		presence = memory.NewPresenceStore()
		scores = memory.NewScoreStore()
		snapshots = memory.NewSnapshotStore()
	}

	hub := ws.NewHub(logger)
	timers := app.NewTimerService()
	registry := app.NewRegistry(games, participants, presence, cfg.Game.MaxDeferredAttempts)
	scoring := app.NewScoringEngine(participants, scores, timers)
	leaderboard := app.NewLeaderboardPublisher(participants, snapshots, hub)
	orch := app.NewOrchestrator(games, questions, registry, timers, scoring, leaderboard, hub, logger, app.OrchestratorConfig{
		FeedbackWait: config.TTLDuration(cfg.Game.FeedbackWait, 3*time.Second),
	})
	wsHandler := ws.NewHandler(hub, orch, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		logger.Info().Str("port", finalPort).Msg("starting game service")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("failed to start server")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		logger.Info().Msg("shutting down server")
	case <-ctx.Done():
		logger.Info().Msg("context canceled, shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func newLogger(cfg config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil || cfg.Log.Level == "" {
		level = zerolog.InfoLevel
	}
	logger := zerolog.New(os.Stderr)
	if cfg.Log.Pretty {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	return logger.Level(level).With().Timestamp().Logger()
}

// seedDemoGame registers a joinable game for the in-memory deployment so
// the server is playable without any database rows.
func seedDemoGame(ctx context.Context, games *memory.GameRepository) {
	games.Save(ctx, domain.GameInstance{
		ID:              "demo-game",
		AccessCode:      "DEMO1",
		QuestionSetID:   "set-1",
		Mode:            domain.ModeQuiz,
		Status:          domain.StatusPending,
		CurrentQuestion: -1,
		CreatedAt:       time.Now(),
	})
	games.Save(ctx, domain.GameInstance{
		ID:              "demo-practice",
		AccessCode:      "PRAC1",
		QuestionSetID:   "set-1",
		Mode:            domain.ModePractice,
		Status:          domain.StatusActive,
		CurrentQuestion: -1,
		CreatedAt:       time.Now(),
	})
}

// sampleQuestionSets provides minimal question data; the postgres loader
// replaces this in production.
func sampleQuestionSets() map[string]domain.QuestionSet {
	return map[string]domain.QuestionSet{
		"set-1": {
			ID:   "set-1",
			Name: "Arithmetic warm-up",
			Questions: []domain.Question{
				{
					UID:  "q1",
					Text: "What is 2 + 2?",
					Options: []domain.AnswerOption{
						{ID: "o1", Text: "3"},
						{ID: "o2", Text: "4", Correct: true},
						{ID: "o3", Text: "5"},
					},
					Points:   1,
					Duration: 30 * time.Second,
				},
				{
					UID:  "q2",
					Text: "What is 7 × 8?",
					Options: []domain.AnswerOption{
						{ID: "o1", Text: "54"},
						{ID: "o2", Text: "56", Correct: true},
						{ID: "o3", Text: "64"},
					},
					Points:   1,
					Duration: 30 * time.Second,
				},
			},
		},
	}
}
