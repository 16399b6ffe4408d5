package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"quizlive/internal/config"
	"quizlive/internal/domain"
	"quizlive/internal/game"
	"quizlive/internal/infra/memory"
	pginfra "quizlive/internal/infra/postgres"
	redisinfra "quizlive/internal/infra/redis"
	"quizlive/internal/lib/logging"
	transport "quizlive/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz orchestration server",
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
	log := logging.New(os.Stderr, cfg.Log.Level)

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, log); err != nil {
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
	redisTTL := config.TTLDuration(cfg.Redis.TTL, time.Hour)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	var loader memory.QuizLoader = memory.NewStaticQuizLoader(sampleQuizzes())
	var archiver game.Archiver
	if pool != nil {
		loader = pginfra.NewQuizLoader(pool)
		archiver = pginfra.NewSessionArchive(pool)
	}

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	var quizRepo game.QuizRepository
	if redisClient != nil {
		quizRepo = redisinfra.NewQuizRepository(redisClient, loader, quizTTL)
	} else {
		quizRepo = memory.NewQuizRepository(loader, quizTTL)
	}

	lockTTL := config.TTLDuration(cfg.Game.LockTTL, 5*time.Second)
	lockWait := config.TTLDuration(cfg.Game.LockWait, 2*time.Second)
	var (
		store  game.SessionStore
		locker game.SessionLocker
		buffer game.AnswerBuffer
	)
	if redisClient != nil {
		store = redisinfra.NewSessionStore(redisClient, redisTTL)
		locker = redisinfra.NewLocker(redisClient, lockTTL)
		buffer = redisinfra.NewAnswerBuffer(redisClient, redisTTL)
	} else {
		store = memory.NewSessionStore()
		locker = memory.NewLocker(lockWait)
		buffer = memory.NewAnswerBuffer()
	}

	service := game.NewService(store, quizRepo, locker, buffer, archiver, log)

	reaperInterval := config.TTLDuration(cfg.Game.ReaperInterval, time.Minute)
	idleWindow := config.TTLDuration(cfg.Game.IdleWindow, time.Hour)
	reaper := game.NewReaper(store, service, reaperInterval, idleWindow, log)

	reaperCtx, stopReaper := context.WithCancel(ctx)
	defer stopReaper()
	go reaper.Run(reaperCtx)

	heartbeat := config.TTLDuration(cfg.Game.HeartbeatInterval, 25*time.Second)
	wsHandler := transport.NewWSHandler(service, heartbeat, log)
	apiHandler := transport.NewAPIHandler(service, log)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)
	mux.HandleFunc("/sessions", apiHandler.CreateSession)
	mux.HandleFunc("/sessions/rebuild", apiHandler.Rebuild)
	mux.HandleFunc("/sessions/remap", apiHandler.RemapParticipant)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info("starting quiz orchestration service", "port", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("failed to start server", "err", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info("shutting down server")
	case <-ctx.Done():
		log.Info("context canceled, shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// sampleQuizzes seeds a demo quiz when no Postgres content store is
// configured.
func sampleQuizzes() map[string]domain.Quiz {
	return map[string]domain.Quiz{
		"demo": {
			ID:    "demo",
			Title: "Demo quiz",
			Questions: []domain.Question{
				{
					ID:              "q1",
					Type:            domain.QuestionMultiChoice,
					Prompt:          "What is 2 + 2?",
					Options:         []string{"3", "4", "5"},
					Correct:         domain.Answers{domain.MultiChoiceAnswer{OptionIndex: 1}},
					DurationSeconds: 20,
					MaxPoints:       1000,
				},
				{
					ID:              "q2",
					Type:            domain.QuestionTrueFalse,
					Prompt:          "The Go gopher is blue.",
					Correct:         domain.Answers{domain.TrueFalseAnswer{Value: true}},
					DurationSeconds: 10,
					MaxPoints:       500,
				},
			},
		},
	}
}
