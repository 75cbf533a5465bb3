package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"trivia-room-service/internal/app"
	"trivia-room-service/internal/config"
	"trivia-room-service/internal/infra/memory"
	"trivia-room-service/internal/infra/postgres"
	redisstore "trivia-room-service/internal/infra/redis"
	transport "trivia-room-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the trivia server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

type registry interface {
	app.RoomRegistry
	transport.Counter
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rules, err := cfg.Rules()
	if err != nil {
		return err
	}

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
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return err
		}
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 6*time.Hour)

	var loader memory.QuestionLoader = memory.DefaultQuestionLoader()
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
		loader = postgres.NewQuestionLoader(pool)
	}

	bankID := bankIDOf(cfg)
	questionTTL := config.TTLDuration(cfg.Questions.TTL, 10*time.Minute)
	var bank app.QuestionBank
	var rooms registry
	if redisClient != nil {
		bank = redisstore.NewQuestionRepository(redisClient, loader, bankID, questionTTL)
		redisRooms := redisstore.NewRoomRegistry(redisClient, redisTTL)
		defer redisRooms.Close()
		if err := redisRooms.Reset(ctx); err != nil {
			return err
		}
		rooms = redisRooms
	} else {
		bank = memory.NewQuestionRepository(loader, bankID, questionTTL)
		rooms = memory.NewRoomRegistry()
	}

	// Fail fast on a missing or malformed bank instead of on the first join.
	if _, err := bank.Questions(ctx); err != nil {
		return err
	}

	hub := transport.NewHub()
	coordinator := app.NewCoordinator(rooms, bank, hub, app.WithRules(rules))
	wsHandler := transport.NewWSHandler(coordinator, hub, transport.DefaultConnectionConfig())

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/stats", transport.StatsHandler(rooms, hub))
	mux.HandleFunc("/ws", wsHandler.ServeWS)

	c := cors.New(cors.Options{
		AllowedMethods: []string{http.MethodGet, http.MethodHead, http.MethodOptions},
		AllowedOrigins: []string{"*"},
		AllowedHeaders: []string{"*"},
	})

	server := &http.Server{
		Addr:        ":" + finalPort,
		Handler:     c.Handler(mux),
		ReadTimeout: 15 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().
			Str("port", finalPort).
			Str("bank_id", bankID).
			Int("capacity", rules.Capacity).
			Int("rounds", rules.Rounds).
			Bool("auto_start", rules.AutoStart).
			Msg("starting trivia room service")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func bankIDOf(cfg config.Config) string {
	if cfg.Questions.Bank != "" {
		return cfg.Questions.Bank
	}
	return memory.DefaultBankID
}
