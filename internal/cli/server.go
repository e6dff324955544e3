package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"battle-arena/internal/app"
	"battle-arena/internal/config"
	"battle-arena/internal/domain"
	"battle-arena/internal/infra/memory"
	"battle-arena/internal/infra/postgres"
	arenaredis "battle-arena/internal/infra/redis"
	transport "battle-arena/internal/transport/http"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the duel server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Log.Level)

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	checks := map[string]transport.Checker{}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("pinging redis: %w", err)
		}
		checks["redis"] = transport.CheckerFunc(func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
		logger.Info("connected to redis", "addr", cfg.Redis.Addr)
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, logger); err != nil {
			return err
		}
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return fmt.Errorf("connecting to postgres: %w", err)
		}
		defer pool.Close()
		checks["postgres"] = transport.CheckerFunc(pool.Ping)
		logger.Info("connected to postgres")
	}

	var (
		store    app.DuelStore
		bank     app.QuestionBank
		accounts app.AccountDirectory
		feed     app.ChangeFeed
	)
	switch {
	case pool != nil:
		store = postgres.NewDuelStore(pool)
		bank = postgres.NewQuestionBank(pool)
		accounts = postgres.NewAccountDirectory(pool)
	default:
		fx, err := loadFixtures(cfg)
		if err != nil {
			return err
		}
		bank = fx.Bank()
		accounts = fx.Directory()
		if redisClient != nil {
			store = arenaredis.NewDuelStore(redisClient)
		} else {
			store = memory.NewDuelStore()
		}
	}
	if redisClient != nil {
		bank = arenaredis.NewAnswerCache(redisClient, bank, config.TTLDuration(cfg.Redis.TTL, 10*time.Minute))
		feed = arenaredis.NewChangeFeed(redisClient)
	} else {
		feed = memory.NewChangeFeed()
	}

	service := app.NewDuelService(store, bank, accounts, feed, app.Options{
		SampleSize: cfg.Duel.SampleSize,
		Logger:     logger,
	})

	server := &http.Server{
		Addr:              ":" + finalPort,
		Handler:           transport.NewRouter(service, logger, checks),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting duel service", "port", finalPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func loadFixtures(cfg config.Config) (memory.Fixtures, error) {
	if cfg.Bank.Fixtures == "" {
		return sampleFixtures(), nil
	}
	return memory.LoadFixtures(cfg.Bank.Fixtures)
}

// sampleFixtures provides a minimal bank so the service runs without any
// backing store; point bank.fixtures at a YAML file for real content.
func sampleFixtures() memory.Fixtures {
	abc := func(a, b, c string) []domain.Option {
		return []domain.Option{{ID: "A", Text: a}, {ID: "B", Text: b}, {ID: "C", Text: c}}
	}
	return memory.Fixtures{
		Subjects: []domain.Subject{{ID: "math", Name: "Mathematics"}},
		Accounts: []domain.Account{
			{ID: "student-1", FullName: "Student One", Grade: "7"},
			{ID: "student-2", FullName: "Student Two", Grade: "7"},
		},
		Questions: []domain.Question{
			{ID: "math-1", SubjectID: "math", Prompt: "What is 2 + 2?", Options: abc("4", "3", "5"), Correct: "A"},
			{ID: "math-2", SubjectID: "math", Prompt: "What is 3 x 3?", Options: abc("6", "9", "12"), Correct: "B"},
			{ID: "math-3", SubjectID: "math", Prompt: "What is 10 - 7?", Options: abc("2", "4", "3"), Correct: "C"},
			{ID: "math-4", SubjectID: "math", Prompt: "What is 12 / 4?", Options: abc("3", "4", "6"), Correct: "A"},
			{ID: "math-5", SubjectID: "math", Prompt: "What is 5 + 8?", Options: abc("12", "13", "14"), Correct: "B"},
			{ID: "math-6", SubjectID: "math", Prompt: "What is 7 x 6?", Options: abc("36", "48", "42"), Correct: "C"},
		},
	}
}
