package integration

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
	"trivia-room-service/internal/app"
	"trivia-room-service/internal/domain"
	"trivia-room-service/internal/infra/postgres"
	pgmigrations "trivia-room-service/internal/infra/postgres/migrations"
	infraredis "trivia-room-service/internal/infra/redis"
	transport "trivia-room-service/internal/transport/http"
)

func TestGameEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	db := migrateDB(t, ctx, pgURL)
	defer db.Close()
	if err := postgres.UpsertBank(ctx, db, "science", sampleQuestions()); err != nil {
		t.Fatalf("seed: %v", err)
	}

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	defer redisClient.Close()

	bank := infraredis.NewQuestionRepository(redisClient, postgres.NewQuestionLoader(pool), "science", 5*time.Minute)
	rooms := infraredis.NewRoomRegistry(redisClient, 5*time.Minute)
	defer rooms.Close()
	hub := transport.NewHub()
	clock := clockwork.NewFakeClock()
	coordinator := app.NewCoordinator(rooms, bank, hub, app.WithClock(clock))

	alice := transport.NewClient("alice", 64)
	bob := transport.NewClient("bob", 64)
	hub.Register(alice)
	hub.Register(bob)

	for _, id := range []string{"alice", "bob"} {
		if err := coordinator.Join(ctx, id, "lab"); err != nil {
			t.Fatalf("join %s: %v", id, err)
		}
	}
	eventually(t, "bank cache and room key in redis", func() bool {
		n, err := redisClient.Exists(ctx, "trivia:bank:science", "trivia:room:lab").Result()
		return err == nil && n == 2
	})
	eventually(t, "bob indexed to lab", func() bool {
		room, err := redisClient.HGet(ctx, "trivia:connections", "bob").Result()
		return err == nil && room == "lab"
	})

	for _, id := range []string{"alice", "bob"} {
		if err := coordinator.Ready(ctx, id, "lab"); err != nil {
			t.Fatalf("ready %s: %v", id, err)
		}
	}
	var start domain.StartGamePayload
	next(t, alice, domain.EventStartGame, &start)
	if len(start.Questions) != 2 || start.Questions[1].Text != "Chemical symbol for gold?" {
		t.Fatalf("expected the seeded bank, got %+v", start.Questions)
	}

	answer := func(id string, round, option int, elapsed int64) {
		t.Helper()
		err := coordinator.SubmitAnswer(ctx, id, domain.AnswerSubmission{
			RoomID: "lab", QuestionIndex: round, AnswerIndex: option, ElapsedMs: elapsed,
		})
		if err != nil {
			t.Fatalf("answer %s round %d: %v", id, round, err)
		}
	}

	answer("alice", 0, 1, 2500)
	answer("bob", 0, 0, 100)
	if err := clock.BlockUntilContext(ctx, 1); err != nil {
		t.Fatalf("wait for timer: %v", err)
	}
	clock.Advance(2 * time.Second)
	var nq domain.NextQuestionPayload
	next(t, bob, domain.EventNextQuestion, &nq)
	if nq.CurrentQuestion != 1 {
		t.Fatalf("expected round 1, got %d", nq.CurrentQuestion)
	}

	answer("bob", 1, 2, 9000)
	answer("alice", 1, 2, 12000)
	var over domain.GameOverPayload
	next(t, alice, domain.EventGameOver, &over)
	if over.Scores["alice"] != 9 || over.Scores["bob"] != 1 {
		t.Fatalf("unexpected final scores %+v", over.Scores)
	}

	_ = coordinator.Disconnect(ctx, "alice")
	_ = coordinator.Disconnect(ctx, "bob")
	eventually(t, "room key removed after the last member left", func() bool {
		n, err := redisClient.Exists(ctx, "trivia:room:lab").Result()
		return err == nil && n == 0
	})
	eventually(t, "empty connection index", func() bool {
		n, err := redisClient.HLen(ctx, "trivia:connections").Result()
		return err == nil && n == 0
	})
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestSeedOverwritesBank(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()

	db := migrateDB(t, ctx, pgURL)
	defer db.Close()

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()
	loader := postgres.NewQuestionLoader(pool)

	if _, err := loader.LoadQuestions(ctx, "science"); !errors.Is(err, domain.ErrQuestionBankNotFound) {
		t.Fatalf("expected ErrQuestionBankNotFound, got %v", err)
	}

	if err := postgres.UpsertBank(ctx, db, "science", sampleQuestions()); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := postgres.UpsertBank(ctx, db, "science", sampleQuestions()[:1]); err != nil {
		t.Fatalf("reseed: %v", err)
	}
	questions, err := loader.LoadQuestions(ctx, "science")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(questions) != 1 || questions[0].Options[1] != "4" {
		t.Fatalf("expected the reseeded bank, got %+v", questions)
	}
}

// next drains c until an event named name arrives and decodes its payload.
func next(t *testing.T, c *transport.Client, name domain.EventName, out any) {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case data, ok := <-c.Send():
			if !ok {
				t.Fatalf("%s queue closed waiting for %s", c.ID, name)
			}
			var msg struct {
				Type    domain.EventName `json:"type"`
				Payload json.RawMessage  `json:"payload"`
			}
			if err := json.Unmarshal(data, &msg); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if msg.Type != name {
				continue
			}
			if err := json.Unmarshal(msg.Payload, out); err != nil {
				t.Fatalf("decode %s: %v", name, err)
			}
			return
		case <-timeout:
			t.Fatalf("%s never received %s", c.ID, name)
		}
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "trivia", "POSTGRES_PASSWORD": "triviapass", "POSTGRES_DB": "triviadb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForLog("database system is ready to accept connections").WithOccurrence(2).WithStartupTimeout(60 * time.Second),
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
	dsn := fmt.Sprintf("postgres://trivia:triviapass@%s:%s/triviadb?sslmode=disable", host, port.Port())
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

func migrateDB(t *testing.T, ctx context.Context, dsn string) *bun.DB {
	t.Helper()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func sampleQuestions() []domain.QuestionRecord {
	return []domain.QuestionRecord{
		{Text: "What is 2 + 2?", Options: [4]string{"3", "4", "5", "22"}, CorrectOption: 1},
		{Text: "Chemical symbol for gold?", Options: [4]string{"Ag", "Gd", "Au", "Go"}, CorrectOption: 2},
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
