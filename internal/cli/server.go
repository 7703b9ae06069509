package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/itsrohit2904/Quiz-App/internal/app"
	"github.com/itsrohit2904/Quiz-App/internal/config"
	"github.com/itsrohit2904/Quiz-App/internal/domain"
	"github.com/itsrohit2904/Quiz-App/internal/infra/memory"
	"github.com/itsrohit2904/Quiz-App/internal/infra/postgres"
	infraredis "github.com/itsrohit2904/Quiz-App/internal/infra/redis"
	transport "github.com/itsrohit2904/Quiz-App/internal/transport/http"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

type stores struct {
	loader    memory.QuizLoader
	attempts  app.AttemptStore
	authoring app.AuthoringStore
	results   app.ResultStore
	closers   []func()
}

func (s stores) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log := newLogger(cfg)

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}
	if cfg.Auth.JWTSecret == "" {
		log.Warn("auth.jwt_secret is empty; author routes will reject every token")
	}

	st, err := openStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer st.close()

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)
	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	idempotencyTTL := config.TTLDuration(cfg.Idempotency.TTL, 24*time.Hour)

	var (
		quizRepo    app.QuizRepository
		sessions    app.SessionRegistry
		idempotency app.IdempotencyStore
	)
	if redisClient != nil {
		quizRepo = infraredis.NewQuizRepository(redisClient, st.loader, quizTTL, log)
		sessions = infraredis.NewSessionStore(redisClient, redisTTL)
		idempotency = infraredis.NewIdempotencyStore(redisClient, idempotencyTTL)
	} else {
		quizRepo = memory.NewQuizRepository(st.loader, quizTTL)
		sessions = memory.NewSessionStore()
		idempotency = memory.NewIdempotencyStore(idempotencyTTL)
	}

	service := app.NewQuizService(quizRepo, st.authoring, st.results, sessions, log)
	recorder := app.NewAttemptRecorder(st.attempts, idempotency, log)
	router := transport.NewRouter(transport.RouterConfig{
		Service:  service,
		Recorder: recorder,
		Auth:     transport.NewAuthenticator(cfg.Auth.JWTSecret),
		Attempts: transport.NewWSHandler(service, recorder, log, config.TTLDuration(cfg.Session.Tick, time.Second)),
		Log:      log,
	})

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.WithField("port", finalPort).Info("starting quiz service")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("failed to start server")
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

// openStores connects Postgres when configured: reads go through one pool,
// attempt and deletion transactions through a separate write pool. Without
// Postgres everything lives in memory with a sample quiz.
func openStores(ctx context.Context, cfg config.Config, log logrus.FieldLogger) (stores, error) {
	if cfg.Postgres.URL == "" {
		store := memory.NewStore()
		id, err := store.CreateQuiz(ctx, 1, sampleQuiz())
		if err != nil {
			return stores{}, err
		}
		log.WithField("quiz_id", id).Info("postgres not configured; serving in-memory sample quiz")
		return stores{loader: store, attempts: store, authoring: store, results: store}, nil
	}

	if err := runMigrationsWithConfig(ctx, cfg, log); err != nil {
		return stores{}, err
	}
	var st stores
	readPool, err := postgres.ConnectPool(ctx, cfg.Postgres.URL, cfg.Postgres.ReadMaxConns)
	if err != nil {
		return stores{}, err
	}
	st.closers = append(st.closers, readPool.Close)

	writePool, err := postgres.ConnectPool(ctx, cfg.Postgres.URL, cfg.Postgres.WriteMaxConns)
	if err != nil {
		st.close()
		return stores{}, err
	}
	st.closers = append(st.closers, writePool.Close)

	db := postgres.NewBunDB(cfg.Postgres.URL)
	st.closers = append(st.closers, func() { _ = db.Close() })

	st.loader = postgres.NewQuizLoader(readPool)
	st.attempts = postgres.NewAttemptStore(writePool)
	st.authoring = postgres.NewAuthoringStore(db)
	st.results = postgres.NewResultStore(readPool, writePool)
	return st, nil
}

func sampleQuiz() domain.QuizDraft {
	limit := 5
	return domain.QuizDraft{
		Title:       "Warm-up",
		Description: "A short sample quiz.",
		Settings:    domain.Settings{AllowRetake: true, TimeLimit: &limit},
		Questions: []domain.Question{
			{Type: domain.QuestionMultipleChoice, Text: "What is 2 + 2?", Options: []string{"3", "4", "5"}, CorrectAnswer: "4"},
			{Type: domain.QuestionTrueFalse, Text: "Go has goroutines.", Options: domain.TrueFalseOptions, CorrectAnswer: "True"},
			{Type: domain.QuestionShortAnswer, Text: "Name the Go mascot.", CorrectAnswer: "Gopher"},
		},
		ParticipantFields: []domain.ParticipantField{
			{Label: "Name", Type: domain.FieldText, Required: true},
			{Label: "Email", Type: domain.FieldEmail, Required: true},
		},
	}
}
