package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"livequiz-service/internal/config"
	"livequiz-service/internal/domain"
	"livequiz-service/internal/engine"
	"livequiz-service/internal/fanout"
	"livequiz-service/internal/identity"
	"livequiz-service/internal/infra/blob"
	"livequiz-service/internal/infra/memory"
	pgloader "livequiz-service/internal/infra/postgres"
	redisinfra "livequiz-service/internal/infra/redis"
	storememory "livequiz-service/internal/store/memory"
	transport "livequiz-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the live quiz server",
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

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	var loader memory.QuizLoader = memory.NewStaticQuizLoader(sampleQuizzes())
	if pool != nil {
		loader = pgloader.NewQuizLoader(pool)
	}

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	var quizRepo engine.QuizRepository
	if redisClient != nil {
		quizRepo = redisinfra.NewQuizRepository(redisClient, loader, quizTTL)
	} else {
		quizRepo = memory.NewQuizRepository(loader, quizTTL)
	}

	sessions := storememory.New()

	var codes engine.CodeIndex
	if redisClient != nil {
		codeTTL := config.TTLDuration(cfg.Redis.CodeTTL, 4*time.Hour)
		codes = redisinfra.NewCodeIndex(redisClient, codeTTL)
	}

	eng := engine.New(sessions, quizRepo, codes)

	janitorCtx, stopJanitor := context.WithCancel(ctx)
	defer stopJanitor()
	maxIdle := config.TTLDuration(cfg.Session.MaxIdle, 30*time.Minute)
	sweepEvery := config.TTLDuration(cfg.Session.JanitorInterval, time.Minute)
	go engine.NewJanitor(eng, maxIdle, sweepEvery).Run(janitorCtx)

	baseURL := cfg.Images.BaseURL
	if baseURL == "" {
		baseURL = "http://localhost:" + finalPort + "/images"
	}

	handler := transport.NewHandler(
		eng,
		fanout.New(sessions),
		identity.NewStaticProvider(),
		blob.NewMemoryStore(baseURL),
		config.TTLDuration(cfg.Session.HostPoll, 2*time.Second),
		config.TTLDuration(cfg.Session.PlayPoll, 5*time.Second),
	)

	mux := http.NewServeMux()
	handler.Register(mux)

	server := &http.Server{
		Addr:    ":" + finalPort,
		Handler: mux,
	}

	go func() {
		log.Printf("starting live quiz service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}
	stopJanitor()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// sampleQuizzes provides demo content for running without Postgres.
func sampleQuizzes() map[string]domain.Quiz {
	return map[string]domain.Quiz{
		"quiz-1": {
			ID:      "quiz-1",
			Title:   "General knowledge warm-up",
			OwnerID: "demo",
			Questions: []domain.Question{
				{
					ID: "q1", QuizID: "quiz-1", Text: "What is 2 + 2?",
					Type: domain.MultipleChoice, TimeLimitSeconds: 20, OrderIndex: 0,
					Answers: []domain.Answer{
						{ID: "q1a1", QuestionID: "q1", Text: "3"},
						{ID: "q1a2", QuestionID: "q1", Text: "4", IsCorrect: true},
						{ID: "q1a3", QuestionID: "q1", Text: "5"},
					},
				},
				{
					ID: "q2", QuizID: "quiz-1", Text: "The Pacific is the largest ocean.",
					Type: domain.TrueFalse, TimeLimitSeconds: 15, OrderIndex: 1,
					Answers: []domain.Answer{
						{ID: "q2a1", QuestionID: "q2", Text: "True", IsCorrect: true},
						{ID: "q2a2", QuestionID: "q2", Text: "False"},
					},
				},
				{
					ID: "q3", QuizID: "quiz-1", Text: "What is the capital of France?",
					Type: domain.ShortAnswer, TimeLimitSeconds: 30, OrderIndex: 2,
					Answers: []domain.Answer{
						{ID: "q3a1", QuestionID: "q3", Text: "Paris", IsCorrect: true},
					},
				},
			},
		},
	}
}
