package integration

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"

	"quizlive/internal/domain"
	"quizlive/internal/game"
	pginfra "quizlive/internal/infra/postgres"
	pgmigrations "quizlive/internal/infra/postgres/migrations"
	redisinfra "quizlive/internal/infra/redis"
)

func TestGameEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	seedQuiz(t, ctx, pgURL, sampleQuiz())

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}

	loader := pginfra.NewQuizLoader(pool)
	archive := pginfra.NewSessionArchive(pool)
	quizRepo := redisinfra.NewQuizRepository(redisClient, loader, 5*time.Minute)
	store := redisinfra.NewSessionStore(redisClient, 5*time.Minute)
	locker := redisinfra.NewLocker(redisClient, 5*time.Second)
	buffer := redisinfra.NewAnswerBuffer(redisClient, 5*time.Minute)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	service := game.NewService(store, quizRepo, locker, buffer, archive, log)

	session, err := service.CreateSession(ctx, "quiz-1", "host-1", domain.ModeClassic)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if _, err := service.Join(ctx, session.JoinCode, "p1", "alice"); err != nil {
		t.Fatalf("join alice: %v", err)
	}
	if _, err := service.Join(ctx, session.JoinCode, "p2", "bob"); err != nil {
		t.Fatalf("join bob: %v", err)
	}

	// Open the question; answers flow through the Redis buffer.
	if _, err := service.RequestTransition(ctx, session.ID); err != nil {
		t.Fatalf("to question: %v", err)
	}
	if err := service.SubmitAnswer(ctx, session.ID, "p1", domain.MultiChoiceAnswer{OptionIndex: 1}); err != nil {
		t.Fatalf("submit alice: %v", err)
	}
	if err := service.SubmitAnswer(ctx, session.ID, "p2", domain.MultiChoiceAnswer{OptionIndex: 0}); err != nil {
		t.Fatalf("submit bob: %v", err)
	}

	// Close the question and check the scored results.
	current, err := service.RequestTransition(ctx, session.ID)
	if err != nil {
		t.Fatalf("to results: %v", err)
	}
	result, ok := current.CurrentTask.(*domain.QuestionResultTask)
	if !ok {
		t.Fatalf("expected result task, got %T", current.CurrentTask)
	}
	if len(result.Results) != 2 {
		t.Fatalf("expected 2 result rows, got %d", len(result.Results))
	}
	if result.Results[0].ParticipantID != "p1" || !result.Results[0].Correct {
		t.Fatalf("expected alice first and correct, got %+v", result.Results[0])
	}

	// Finish the game: podium, then quit.
	for _, want := range []domain.TaskType{domain.TaskPodium, domain.TaskQuit} {
		current, err = service.RequestTransition(ctx, session.ID)
		if err != nil {
			t.Fatalf("advance to %s: %v", want, err)
		}
		if current.CurrentTask.Phase() != want {
			t.Fatalf("expected %s, got %s", want, current.CurrentTask.Phase())
		}
	}
	if current.Status != domain.StatusCompleted {
		t.Fatalf("expected completed, got %s", current.Status)
	}

	// The finished session was archived in Postgres with full history.
	archived, err := archive.Load(ctx, session.ID)
	if err != nil {
		t.Fatalf("load archive: %v", err)
	}
	if archived.Status != domain.StatusCompleted {
		t.Fatalf("expected archived completed, got %s", archived.Status)
	}
	if archived.CurrentTask.Phase() != domain.TaskQuit {
		t.Fatalf("expected archived quit phase, got %s", archived.CurrentTask.Phase())
	}
	if len(archived.TaskHistory) == 0 {
		t.Fatalf("expected archived task history")
	}

	// Post-game maintenance: rewrite alice's identity in the archive.
	if err := archive.RemapParticipant(ctx, session.ID, "p1", "user-42"); err != nil {
		t.Fatalf("remap archived: %v", err)
	}
	remapped, err := archive.Load(ctx, session.ID)
	if err != nil {
		t.Fatalf("reload archive: %v", err)
	}
	if _, ok := remapped.Participant("user-42"); !ok {
		t.Fatalf("expected remapped id in archive")
	}
	if _, ok := remapped.Participant("p1"); ok {
		t.Fatalf("old id still present in archive")
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "quiz", "POSTGRES_PASSWORD": "quizpass", "POSTGRES_DB": "quizdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://quiz:quizpass@%s:%s/quizdb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func seedQuiz(t *testing.T, ctx context.Context, dsn string, quiz domain.Quiz) {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	data, err := json.Marshal(quiz)
	if err != nil {
		t.Fatalf("marshal quiz: %v", err)
	}
	if _, err := db.ExecContext(ctx, `INSERT INTO quizzes (id, data) VALUES (? , ?::jsonb) ON CONFLICT (id) DO UPDATE SET data=EXCLUDED.data`, quiz.ID, string(data)); err != nil {
		t.Fatalf("insert quiz: %v", err)
	}
}

func sampleQuiz() domain.Quiz {
	return domain.Quiz{
		ID:    "quiz-1",
		Title: "Integration",
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
		},
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
