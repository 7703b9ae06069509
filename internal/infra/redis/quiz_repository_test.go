package redis

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/itsrohit2904/Quiz-App/internal/domain"
	"github.com/itsrohit2904/Quiz-App/internal/infra/memory"
	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

func TestQuizRepositoryCachesInRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := newClient(mr)
	store, quizID := seededStore(t)
	loader := &countingLoader{QuizLoader: store}
	repo := NewQuizRepository(client, loader, time.Minute, quietLogger())

	_, err = repo.GetQuiz(context.Background(), quizID)
	if err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader called once, got %d", loader.calls)
	}
	if !mr.Exists("quiz:1:definition") {
		t.Fatalf("expected definition key to be set")
	}

	// Second call should hit cache, loader not incremented.
	quiz, err := repo.GetQuiz(context.Background(), quizID)
	if err != nil {
		t.Fatalf("get cached quiz: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls=%d", loader.calls)
	}
	if quiz.Title != "Capitals" || len(quiz.Questions) != 1 || quiz.Questions[0].CorrectAnswer != "Paris" {
		t.Fatalf("unexpected cached quiz %+v", quiz)
	}
	if quiz.Settings.TimeLimitSeconds() != 120 {
		t.Fatalf("expected settings to survive the cache, got %+v", quiz.Settings)
	}
}

func TestQuizRepositoryInvalidate(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	store, quizID := seededStore(t)
	loader := &countingLoader{QuizLoader: store}
	repo := NewQuizRepository(newClient(mr), loader, time.Minute, quietLogger())

	_, _ = repo.GetQuiz(context.Background(), quizID)
	if err := repo.Invalidate(context.Background(), quizID); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if mr.Exists("quiz:1:definition") {
		t.Fatalf("expected definition key removed")
	}
	_, _ = repo.GetQuiz(context.Background(), quizID)
	if loader.calls != 2 {
		t.Fatalf("expected reload after invalidate, calls=%d", loader.calls)
	}
}

type countingLoader struct {
	memory.QuizLoader
	calls int
}

func (l *countingLoader) LoadQuiz(ctx context.Context, quizID int64) (domain.Quiz, error) {
	l.calls++
	return l.QuizLoader.LoadQuiz(ctx, quizID)
}

func seededStore(t *testing.T) (*memory.Store, int64) {
	t.Helper()
	limit := 2
	store := memory.NewStore()
	id, err := store.CreateQuiz(context.Background(), 1, domain.QuizDraft{
		Title:    "Capitals",
		Settings: domain.Settings{TimeLimit: &limit},
		Questions: []domain.Question{
			{Type: domain.QuestionMultipleChoice, Text: "Capital of France?", Options: []string{"Paris", "Lyon"}, CorrectAnswer: "Paris"},
		},
	})
	if err != nil {
		t.Fatalf("seed quiz: %v", err)
	}
	return store, id
}

func newClient(mr *miniredis.Miniredis) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}
