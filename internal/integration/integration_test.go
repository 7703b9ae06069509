package integration

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/itsrohit2904/Quiz-App/internal/app"
	"github.com/itsrohit2904/Quiz-App/internal/domain"
	"github.com/itsrohit2904/Quiz-App/internal/infra/postgres"
	pgmigrations "github.com/itsrohit2904/Quiz-App/internal/infra/postgres/migrations"
	infraredis "github.com/itsrohit2904/Quiz-App/internal/infra/redis"
	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun/migrate"
)

type stack struct {
	service  *app.QuizService
	recorder *app.AttemptRecorder
	read     *pgxpool.Pool
	redis    *goredis.Client
}

func newStack(t *testing.T, ctx context.Context) *stack {
	t.Helper()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	t.Cleanup(pgCleanup)
	redisURL, redisCleanup := startRedis(t, ctx)
	t.Cleanup(redisCleanup)

	db := postgres.NewBunDB(pgURL)
	t.Cleanup(func() { _ = db.Close() })
	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	read, err := postgres.ConnectPool(ctx, pgURL, 4)
	if err != nil {
		t.Fatalf("connect read pool: %v", err)
	}
	t.Cleanup(read.Close)
	write, err := postgres.ConnectPool(ctx, pgURL, 2)
	if err != nil {
		t.Fatalf("connect write pool: %v", err)
	}
	t.Cleanup(write.Close)

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	t.Cleanup(func() { _ = redisClient.Close() })

	log := logrus.New()
	log.SetOutput(io.Discard)
	quizRepo := infraredis.NewQuizRepository(redisClient, postgres.NewQuizLoader(read), 5*time.Minute, log)
	service := app.NewQuizService(
		quizRepo,
		postgres.NewAuthoringStore(db),
		postgres.NewResultStore(read, write),
		infraredis.NewSessionStore(redisClient, 5*time.Minute),
		log,
	)
	recorder := app.NewAttemptRecorder(postgres.NewAttemptStore(write), infraredis.NewIdempotencyStore(redisClient, time.Hour), log)
	return &stack{service: service, recorder: recorder, read: read, redis: redisClient}
}

func (s *stack) rowCount(t *testing.T, ctx context.Context) (attempts, answers int) {
	t.Helper()
	if err := s.read.QueryRow(ctx, `SELECT (SELECT count(*) FROM quiz_results), (SELECT count(*) FROM participant_answers)`).
		Scan(&attempts, &answers); err != nil {
		t.Fatalf("count rows: %v", err)
	}
	return attempts, answers
}

func sampleDraft() domain.QuizDraft {
	limit := 10
	return domain.QuizDraft{
		Title:    "Basics",
		Settings: domain.Settings{AllowRetake: true, TimeLimit: &limit},
		Questions: []domain.Question{
			{Type: domain.QuestionMultipleChoice, Text: "What is 2 + 2?", Options: []string{"3", "4", "5"}, CorrectAnswer: "4"},
			{Type: domain.QuestionTrueFalse, Text: "Water is wet.", CorrectAnswer: "True"},
			{Type: domain.QuestionShortAnswer, Text: "Go mascot?", CorrectAnswer: "Gopher"},
		},
		ParticipantFields: []domain.ParticipantField{
			{Label: "Name", Type: domain.FieldText, Required: true},
			{Label: "Email", Type: domain.FieldEmail, Required: true},
		},
	}
}

func answersFor(quiz domain.Quiz, values ...string) []domain.AnswerSubmission {
	out := make([]domain.AnswerSubmission, len(values))
	for i := range values {
		v := values[i]
		out[i] = domain.AnswerSubmission{QuestionID: quiz.Questions[i].ID, Value: &v}
	}
	return out
}

func TestRecordAttemptEndToEnd(t *testing.T) {
	ctx := context.Background()
	s := newStack(t, ctx)

	quizID, err := s.service.CreateQuiz(ctx, 1, sampleDraft())
	if err != nil {
		t.Fatalf("create quiz: %v", err)
	}
	quiz, err := s.service.GetQuizDefinition(ctx, quizID)
	if err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	if len(quiz.Questions) != 3 || len(quiz.Questions[1].Options) != 2 || quiz.Settings.TimeLimitSeconds() != 600 {
		t.Fatalf("unexpected definition %+v", quiz)
	}
	if n, _ := s.redis.Exists(ctx, fmt.Sprintf("quiz:%d:definition", quizID)).Result(); n != 1 {
		t.Fatalf("expected cached definition")
	}

	participant := domain.ParticipantInfo{Name: "Ada", Email: "ada@example.com", Fields: map[string]string{"name": "Ada", "email": "ada@example.com"}}
	res, err := s.recorder.RecordAttempt(ctx, app.Submission{
		QuizID:      quizID,
		Participant: participant,
		Answers:     answersFor(quiz, "4", "False", "Gopher"),
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if res.AnswersStored != 3 || res.Score != 67 {
		t.Fatalf("unexpected result %+v", res)
	}
	if attempts, answers := s.rowCount(t, ctx); attempts != 1 || answers != 3 {
		t.Fatalf("expected 1+3 rows, got %d+%d", attempts, answers)
	}

	otherID, _ := s.service.CreateQuiz(ctx, 1, sampleDraft())
	other, _ := s.service.GetQuizDefinition(ctx, otherID)
	foreign := answersFor(quiz, "4", "True")
	foreign = append(foreign, answersFor(other, "4", "True", "Gopher")[2])
	_, err = s.recorder.RecordAttempt(ctx, app.Submission{QuizID: quizID, Participant: participant, Answers: foreign})
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	duplicate := append(answersFor(quiz, "4", "True"), answersFor(quiz, "3")...)
	_, err = s.recorder.RecordAttempt(ctx, app.Submission{QuizID: quizID, Participant: participant, Answers: duplicate})
	if !errors.Is(err, domain.ErrPersistence) {
		t.Fatalf("expected persistence failure, got %v", err)
	}
	if attempts, answers := s.rowCount(t, ctx); attempts != 1 || answers != 3 {
		t.Fatalf("failed submissions must not write rows, got %d+%d", attempts, answers)
	}

	reviews, err := s.service.ResultAnswers(ctx, 1, res.AttemptID)
	if err != nil {
		t.Fatalf("result answers: %v", err)
	}
	if len(reviews) != 3 || !reviews[0].Correct || reviews[1].Correct {
		t.Fatalf("unexpected review %+v", reviews)
	}
	results, _ := s.service.ListResults(ctx, 1)
	if len(results) != 1 || results[0].ParticipantName != "Ada" {
		t.Fatalf("unexpected results %+v", results)
	}

	if err := s.service.DeleteResult(ctx, 1, res.AttemptID); err != nil {
		t.Fatalf("delete result: %v", err)
	}
	if attempts, answers := s.rowCount(t, ctx); attempts != 0 || answers != 0 {
		t.Fatalf("expected no orphans, got %d+%d", attempts, answers)
	}
	if err := s.service.DeleteResult(ctx, 1, res.AttemptID); !errors.Is(err, domain.ErrResultNotFound) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
}

func TestIdempotentSubmissionAndQuizDeletion(t *testing.T) {
	ctx := context.Background()
	s := newStack(t, ctx)

	quizID, err := s.service.CreateQuiz(ctx, 1, sampleDraft())
	if err != nil {
		t.Fatalf("create quiz: %v", err)
	}
	quiz, _ := s.service.GetQuizDefinition(ctx, quizID)
	sub := app.Submission{
		QuizID:         quizID,
		Participant:    domain.ParticipantInfo{Name: "Ada", Email: "ada@example.com"},
		Answers:        answersFor(quiz, "4", "True", "Gopher"),
		IdempotencyKey: "session-1/1",
	}
	first, err := s.recorder.RecordAttempt(ctx, sub)
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	replay, err := s.recorder.RecordAttempt(ctx, sub)
	if err != nil || !replay.Replayed || replay.AttemptID != first.AttemptID || replay.Score != first.Score {
		t.Fatalf("expected replay, got %+v (%v)", replay, err)
	}
	sub.IdempotencyKey = ""
	if _, err := s.recorder.RecordAttempt(ctx, sub); err != nil {
		t.Fatalf("record without key: %v", err)
	}
	if attempts, _ := s.rowCount(t, ctx); attempts != 2 {
		t.Fatalf("expected 2 attempts, got %d", attempts)
	}

	if err := s.service.DeleteQuiz(ctx, 2, quizID); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if err := s.service.DeleteQuiz(ctx, 1, quizID); err != nil {
		t.Fatalf("delete quiz: %v", err)
	}
	if attempts, answers := s.rowCount(t, ctx); attempts != 0 || answers != 0 {
		t.Fatalf("expected cascade, got %d+%d", attempts, answers)
	}
	if _, err := s.service.GetQuizDefinition(ctx, quizID); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}

func TestUpdateQuizReconcilesQuestions(t *testing.T) {
	ctx := context.Background()
	s := newStack(t, ctx)

	quizID, err := s.service.CreateQuiz(ctx, 1, sampleDraft())
	if err != nil {
		t.Fatalf("create quiz: %v", err)
	}
	quiz, _ := s.service.GetQuizDefinition(ctx, quizID)
	res, err := s.recorder.RecordAttempt(ctx, app.Submission{
		QuizID:      quizID,
		Participant: domain.ParticipantInfo{Name: "Ada", Email: "ada@example.com"},
		Answers:     answersFor(quiz, "4", "True"),
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}

	draft := sampleDraft()
	draft.Title = "Basics v2"
	draft.Questions = []domain.Question{quiz.Questions[0], quiz.Questions[2]}
	if err := s.service.UpdateQuiz(ctx, 1, quizID, draft); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected answered question to block removal, got %v", err)
	}

	reworded := quiz.Questions[1]
	reworded.Text = "Water is still wet."
	added := domain.Question{Type: domain.QuestionShortAnswer, Text: "Capital of Peru?", CorrectAnswer: "Lima"}
	draft.Questions = []domain.Question{quiz.Questions[0], reworded, added}
	if err := s.service.UpdateQuiz(ctx, 1, quizID, draft); err != nil {
		t.Fatalf("update: %v", err)
	}

	updated, err := s.service.GetQuizDefinition(ctx, quizID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if updated.Title != "Basics v2" || len(updated.Questions) != 3 {
		t.Fatalf("unexpected definition %+v", updated)
	}
	if updated.Questions[1].ID != reworded.ID || updated.Questions[1].Text != reworded.Text {
		t.Fatalf("expected question updated in place, got %+v", updated.Questions[1])
	}
	if updated.Questions[2].ID == quiz.Questions[2].ID || updated.Questions[2].Text != "Capital of Peru?" {
		t.Fatalf("expected unanswered question replaced, got %+v", updated.Questions[2])
	}

	reviews, err := s.service.ResultAnswers(ctx, 1, res.AttemptID)
	if err != nil || len(reviews) != 2 {
		t.Fatalf("expected stored answers to survive, got %+v %v", reviews, err)
	}
}

func TestLoaderNormalizesStoredShapes(t *testing.T) {
	ctx := context.Background()
	s := newStack(t, ctx)

	quizID, err := s.service.CreateQuiz(ctx, 1, sampleDraft())
	if err != nil {
		t.Fatalf("create quiz: %v", err)
	}
	if _, err := s.read.Exec(ctx, `
UPDATE questions SET options = '[{"id":1,"text":"3"},{"id":2,"text":"4"}]', correct_answer = '{"text":"4"}'
WHERE quiz_id = $1 AND position = 0`, quizID); err != nil {
		t.Fatalf("rewrite options: %v", err)
	}
	if _, err := s.read.Exec(ctx, `UPDATE quizzes SET settings = '{"timeLimit":"0","startDate":"2024-01-01T09:00"}' WHERE id = $1`, quizID); err != nil {
		t.Fatalf("rewrite settings: %v", err)
	}

	quiz, err := postgres.NewQuizLoader(s.read).LoadQuiz(ctx, quizID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	q := quiz.Questions[0]
	if len(q.Options) != 2 || q.Options[1] != "4" || q.CorrectAnswer != "4" {
		t.Fatalf("expected plain text options, got %+v", q)
	}
	if quiz.Settings.TimeLimit != nil || quiz.Settings.StartDate == nil || quiz.Settings.StartDate.Hour() != 9 {
		t.Fatalf("unexpected settings %+v", quiz.Settings)
	}
	if quiz.OwnerID != 1 || len(quiz.ParticipantFields) != 2 || quiz.ParticipantFields[0].Key() != "name" {
		t.Fatalf("unexpected quiz %+v", quiz)
	}
	if _, err := postgres.NewQuizLoader(s.read).LoadQuiz(ctx, 9999); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected not found, got %v", err)
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
