package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/itsrohit2904/Quiz-App/internal/app"
	"github.com/itsrohit2904/Quiz-App/internal/domain"
	"github.com/itsrohit2904/Quiz-App/internal/infra/memory"
)

func newTestService() (*app.QuizService, *memory.Store) {
	store := memory.NewStore()
	service := app.NewQuizService(
		memory.NewQuizRepository(store, time.Minute),
		store, store,
		memory.NewSessionStore(),
		quietLogger(),
	)
	return service, store
}

func TestCreateQuizNormalizesDraft(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService()

	draft := domain.QuizDraft{
		Title: "  Facts ",
		Questions: []domain.Question{
			{Type: domain.QuestionTrueFalse, Text: "Go is compiled.", CorrectAnswer: "True"},
			{Type: domain.QuestionShortAnswer, Text: "Mascot?", Options: []string{"ignored"}, CorrectAnswer: "Gopher"},
		},
		ParticipantFields: []domain.ParticipantField{{Label: "Name", Required: true}},
	}
	id, err := service.CreateQuiz(ctx, 1, draft)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if draft.ParticipantFields[0].Type != "" {
		t.Fatalf("caller's draft must not be modified")
	}

	quiz, err := service.GetQuizDefinition(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if quiz.Title != "Facts" {
		t.Fatalf("expected trimmed title, got %q", quiz.Title)
	}
	if len(quiz.Questions[0].Options) != 2 || len(quiz.Questions[1].Options) != 0 {
		t.Fatalf("unexpected options %v / %v", quiz.Questions[0].Options, quiz.Questions[1].Options)
	}
	if quiz.ParticipantFields[0].Type != domain.FieldText {
		t.Fatalf("expected default field type, got %q", quiz.ParticipantFields[0].Type)
	}
}

func TestCreateQuizRejectsInvalidDrafts(t *testing.T) {
	service, _ := newTestService()
	start := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		name  string
		draft domain.QuizDraft
	}{
		{"no title", domain.QuizDraft{}},
		{"answer not an option", domain.QuizDraft{Title: "x", Questions: []domain.Question{
			{Type: domain.QuestionMultipleChoice, Text: "q", Options: []string{"a", "b"}, CorrectAnswer: "c"}}}},
		{"unknown type", domain.QuizDraft{Title: "x", Questions: []domain.Question{{Type: "essay", Text: "q", CorrectAnswer: "a"}}}},
		{"no question text", domain.QuizDraft{Title: "x", Questions: []domain.Question{{Type: domain.QuestionShortAnswer, CorrectAnswer: "a"}}}},
		{"bad field type", domain.QuizDraft{Title: "x", ParticipantFields: []domain.ParticipantField{{Label: "Age", Type: "number"}}}},
		{"window reversed", domain.QuizDraft{Title: "x", Settings: domain.Settings{StartDate: &start, EndDate: &end}}},
	}
	for _, tc := range cases {
		if _, err := service.CreateQuiz(context.Background(), 1, tc.draft); !errors.Is(err, domain.ErrInvalidInput) {
			t.Fatalf("%s: expected invalid input, got %v", tc.name, err)
		}
	}
}

func TestTakeQuizEvaluatesWindow(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService()
	start := time.Date(2099, 1, 1, 0, 0, 0, 0, time.UTC)
	id, _ := service.CreateQuiz(ctx, 1, domain.QuizDraft{Title: "Later", Settings: domain.Settings{StartDate: &start}})

	view, err := service.TakeQuiz(ctx, id, time.Now())
	if err != nil {
		t.Fatalf("take: %v", err)
	}
	if view.Availability.Available || view.Availability.Reason != app.ReasonNotStarted {
		t.Fatalf("expected not-started, got %+v", view.Availability)
	}
	if _, err := service.TakeQuiz(ctx, 0, time.Now()); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected not found for id 0, got %v", err)
	}
}

func TestOwnershipChecks(t *testing.T) {
	ctx := context.Background()
	service, store := newTestService()
	id, _ := service.CreateQuiz(ctx, 1, threeQuestionDraft())
	if _, err := service.GetQuizDefinition(ctx, id); err != nil {
		t.Fatalf("warm cache: %v", err)
	}

	if err := service.DeleteQuiz(ctx, 2, id); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected unauthorized delete, got %v", err)
	}
	if _, err := service.ActiveSessions(ctx, 2, id); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected unauthorized session count, got %v", err)
	}
	if quizzes, _ := service.ListQuizzes(ctx, 2); len(quizzes) != 0 {
		t.Fatalf("other authors must not see the quiz")
	}

	recorder := app.NewAttemptRecorder(store, nil, quietLogger())
	quiz, _ := store.LoadQuiz(ctx, id)
	res, err := recorder.RecordAttempt(ctx, app.Submission{
		QuizID:      id,
		Participant: domain.ParticipantInfo{Name: "Ada", Email: "ada@example.com"},
		Answers:     []domain.AnswerSubmission{{QuestionID: quiz.Questions[0].ID, Value: strptr("4")}},
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}

	if _, err := service.ResultAnswers(ctx, 2, res.AttemptID); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected unauthorized answers, got %v", err)
	}
	if err := service.DeleteResult(ctx, 2, res.AttemptID); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected unauthorized result delete, got %v", err)
	}
	results, _ := service.ListResults(ctx, 1)
	if len(results) != 1 || results[0].Title != "Basics" || results[0].Score != 33 {
		t.Fatalf("unexpected results %+v", results)
	}

	if err := service.DeleteQuiz(ctx, 1, id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if attempts, answers := store.Counts(); attempts != 0 || answers != 0 {
		t.Fatalf("expected cascade, got %d+%d", attempts, answers)
	}
	if _, err := service.GetQuizDefinition(ctx, id); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected cache invalidated, got %v", err)
	}
	if err := service.DeleteResult(ctx, 1, res.AttemptID); !errors.Is(err, domain.ErrResultNotFound) {
		t.Fatalf("expected result not found, got %v", err)
	}
}

func TestActiveSessionsCountsRegistry(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService()
	id, _ := service.CreateQuiz(ctx, 1, threeQuestionDraft())

	_ = service.Sessions().Register(ctx, id, "a")
	_ = service.Sessions().Register(ctx, id, "b")
	service.Sessions().Unregister(ctx, id, "a")

	n, err := service.ActiveSessions(ctx, 1, id)
	if err != nil || n != 1 {
		t.Fatalf("expected 1 live session, got %d (%v)", n, err)
	}
}

func TestUpdateQuizInvalidatesCachedDefinition(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService()
	id, err := service.CreateQuiz(ctx, 1, threeQuestionDraft())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	before, _ := service.GetQuizDefinition(ctx, id)

	draft := threeQuestionDraft()
	draft.Title = "Basics v2"
	draft.Questions = []domain.Question{before.Questions[0], before.Questions[0]}
	if err := service.UpdateQuiz(ctx, 1, id, draft); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected repeated question ids to be rejected, got %v", err)
	}

	draft.Questions = before.Questions[:2]
	if err := service.UpdateQuiz(ctx, 2, id, draft); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if err := service.UpdateQuiz(ctx, 1, id, draft); err != nil {
		t.Fatalf("update: %v", err)
	}

	after, err := service.GetQuizDefinition(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if after.Title != "Basics v2" || len(after.Questions) != 2 || after.Questions[1].ID != before.Questions[1].ID {
		t.Fatalf("expected fresh definition with stable question ids, got %+v", after)
	}

	view, err := service.PreviewQuiz(ctx, 1, id, time.Now())
	if err != nil || view.Title != "Basics v2" {
		t.Fatalf("preview: %+v %v", view, err)
	}
	if _, err := service.PreviewQuiz(ctx, 2, id, time.Now()); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected unauthorized preview, got %v", err)
	}
}
