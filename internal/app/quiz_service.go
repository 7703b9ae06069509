package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/itsrohit2904/Quiz-App/internal/domain"
	"github.com/sirupsen/logrus"
)

// QuizRepository loads quiz definitions (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID int64) (domain.Quiz, error)
	Invalidate(ctx context.Context, quizID int64) error
}

// AuthoringStore persists quiz definitions written by authors.
type AuthoringStore interface {
	CreateQuiz(ctx context.Context, ownerID int64, draft domain.QuizDraft) (int64, error)
	// UpdateQuiz rewrites the quiz and reconciles its questions and fields.
	// Questions named by ID keep their recorded answers.
	UpdateQuiz(ctx context.Context, quizID int64, draft domain.QuizDraft) error
	ListQuizzes(ctx context.Context, ownerID int64) ([]domain.QuizSummary, error)
	// QuizOwner returns domain.ErrQuizNotFound when the quiz does not exist.
	QuizOwner(ctx context.Context, quizID int64) (int64, error)
	// DeleteQuiz removes the quiz with its questions, fields, attempts and answers.
	DeleteQuiz(ctx context.Context, quizID int64) error
}

// ResultStore reads and deletes stored attempts.
type ResultStore interface {
	ListResults(ctx context.Context, ownerID int64) ([]domain.ResultSummary, error)
	// ResultOwner returns the owner of the result's quiz, or domain.ErrResultNotFound.
	ResultOwner(ctx context.Context, resultID int64) (int64, error)
	ResultAnswers(ctx context.Context, resultID int64) ([]domain.AnswerReview, error)
	// DeleteResult removes the answers and then the attempt in one transaction.
	DeleteResult(ctx context.Context, resultID int64) error
}

// SessionRegistry tracks live attempt sessions (in-memory, Redis, etc).
type SessionRegistry interface {
	Register(ctx context.Context, quizID int64, sessionID string) error
	Unregister(ctx context.Context, quizID int64, sessionID string)
	Count(ctx context.Context, quizID int64) (int, error)
}

// QuizService contains the quiz read, authoring and result use cases.
type QuizService struct {
	quizzes   QuizRepository
	authoring AuthoringStore
	results   ResultStore
	sessions  SessionRegistry
	log       logrus.FieldLogger
}

func NewQuizService(quizzes QuizRepository, authoring AuthoringStore, results ResultStore, sessions SessionRegistry, log logrus.FieldLogger) *QuizService {
	return &QuizService{quizzes: quizzes, authoring: authoring, results: results, sessions: sessions, log: log}
}

// GetQuizDefinition returns the normalized definition a participant takes.
func (s *QuizService) GetQuizDefinition(ctx context.Context, quizID int64) (domain.Quiz, error) {
	if quizID <= 0 {
		return domain.Quiz{}, fmt.Errorf("%w: %d", domain.ErrQuizNotFound, quizID)
	}
	return s.quizzes.GetQuiz(ctx, quizID)
}

// TakeView is a definition together with the gate verdict at fetch time.
type TakeView struct {
	domain.Quiz
	Availability Availability `json:"availability"`
}

// TakeQuiz fetches a definition and evaluates its availability window.
func (s *QuizService) TakeQuiz(ctx context.Context, quizID int64, now time.Time) (TakeView, error) {
	quiz, err := s.GetQuizDefinition(ctx, quizID)
	if err != nil {
		return TakeView{}, err
	}
	return TakeView{Quiz: quiz, Availability: CheckAvailability(quiz.Settings, now)}, nil
}

// CreateQuiz validates and stores a new quiz owned by ownerID.
func (s *QuizService) CreateQuiz(ctx context.Context, ownerID int64, draft domain.QuizDraft) (int64, error) {
	draft, err := normalizeDraft(draft)
	if err != nil {
		return 0, err
	}
	id, err := s.authoring.CreateQuiz(ctx, ownerID, draft)
	if err != nil {
		return 0, err
	}
	s.log.WithFields(logrus.Fields{"quiz_id": id, "owner_id": ownerID, "questions": len(draft.Questions)}).Info("quiz created")
	return id, nil
}

// UpdateQuiz validates and stores a new version of an owned quiz. Sessions
// already running keep the definition they loaded.
func (s *QuizService) UpdateQuiz(ctx context.Context, ownerID, quizID int64, draft domain.QuizDraft) error {
	draft, err := normalizeDraft(draft)
	if err != nil {
		return err
	}
	if err := s.requireQuizOwner(ctx, ownerID, quizID); err != nil {
		return err
	}
	if err := s.authoring.UpdateQuiz(ctx, quizID, draft); err != nil {
		return err
	}
	if err := s.quizzes.Invalidate(ctx, quizID); err != nil {
		s.log.WithError(err).WithField("quiz_id", quizID).Warn("invalidate cached quiz")
	}
	s.log.WithFields(logrus.Fields{"quiz_id": quizID, "questions": len(draft.Questions)}).Info("quiz updated")
	return nil
}

// PreviewQuiz shows an owned quiz to its author whatever its window says.
func (s *QuizService) PreviewQuiz(ctx context.Context, ownerID, quizID int64, now time.Time) (TakeView, error) {
	if err := s.requireQuizOwner(ctx, ownerID, quizID); err != nil {
		return TakeView{}, err
	}
	return s.TakeQuiz(ctx, quizID, now)
}

func (s *QuizService) ListQuizzes(ctx context.Context, ownerID int64) ([]domain.QuizSummary, error) {
	return s.authoring.ListQuizzes(ctx, ownerID)
}

// DeleteQuiz removes an owned quiz and drops its cached definition.
func (s *QuizService) DeleteQuiz(ctx context.Context, ownerID, quizID int64) error {
	if err := s.requireQuizOwner(ctx, ownerID, quizID); err != nil {
		return err
	}
	if err := s.authoring.DeleteQuiz(ctx, quizID); err != nil {
		return err
	}
	if err := s.quizzes.Invalidate(ctx, quizID); err != nil {
		s.log.WithError(err).WithField("quiz_id", quizID).Warn("invalidate cached quiz")
	}
	s.log.WithField("quiz_id", quizID).Info("quiz deleted")
	return nil
}

func (s *QuizService) ListResults(ctx context.Context, ownerID int64) ([]domain.ResultSummary, error) {
	return s.results.ListResults(ctx, ownerID)
}

// ResultAnswers returns the per-question review of an owned result.
func (s *QuizService) ResultAnswers(ctx context.Context, ownerID, resultID int64) ([]domain.AnswerReview, error) {
	if err := s.requireResultOwner(ctx, ownerID, resultID); err != nil {
		return nil, err
	}
	reviews, err := s.results.ResultAnswers(ctx, resultID)
	if err != nil {
		return nil, err
	}
	for i := range reviews {
		reviews[i].Correct = reviews[i].ParticipantAnswer == reviews[i].CorrectAnswer
	}
	return reviews, nil
}

// DeleteResult removes an owned attempt together with its answers.
func (s *QuizService) DeleteResult(ctx context.Context, ownerID, resultID int64) error {
	if err := s.requireResultOwner(ctx, ownerID, resultID); err != nil {
		return err
	}
	if err := s.results.DeleteResult(ctx, resultID); err != nil {
		return err
	}
	s.log.WithField("result_id", resultID).Info("quiz result deleted")
	return nil
}

// ActiveSessions counts live attempt sessions of an owned quiz.
func (s *QuizService) ActiveSessions(ctx context.Context, ownerID, quizID int64) (int, error) {
	if err := s.requireQuizOwner(ctx, ownerID, quizID); err != nil {
		return 0, err
	}
	return s.sessions.Count(ctx, quizID)
}

// Sessions exposes the registry to transports hosting attempt sessions.
func (s *QuizService) Sessions() SessionRegistry {
	return s.sessions
}

func (s *QuizService) requireQuizOwner(ctx context.Context, ownerID, quizID int64) error {
	owner, err := s.authoring.QuizOwner(ctx, quizID)
	if err != nil {
		return err
	}
	if owner != ownerID {
		return fmt.Errorf("%w: quiz %d", domain.ErrUnauthorized, quizID)
	}
	return nil
}

func (s *QuizService) requireResultOwner(ctx context.Context, ownerID, resultID int64) error {
	owner, err := s.results.ResultOwner(ctx, resultID)
	if err != nil {
		return err
	}
	if owner != ownerID {
		return fmt.Errorf("%w: result %d", domain.ErrUnauthorized, resultID)
	}
	return nil
}

func normalizeDraft(draft domain.QuizDraft) (domain.QuizDraft, error) {
	draft.Title = strings.TrimSpace(draft.Title)
	if draft.Title == "" {
		return draft, fmt.Errorf("%w: title is required", domain.ErrInvalidInput)
	}

	questions := make([]domain.Question, len(draft.Questions))
	seen := make(map[int64]bool, len(draft.Questions))
	for i, q := range draft.Questions {
		if q.ID != 0 {
			if seen[q.ID] {
				return draft, fmt.Errorf("%w: question %d repeats id %d", domain.ErrInvalidInput, i, q.ID)
			}
			seen[q.ID] = true
		}
		q = domain.NormalizeQuestion(q)
		if strings.TrimSpace(q.Text) == "" {
			return draft, fmt.Errorf("%w: question %d has no text", domain.ErrInvalidInput, i)
		}
		switch q.Type {
		case domain.QuestionMultipleChoice, domain.QuestionTrueFalse:
			if !contains(q.Options, q.CorrectAnswer) {
				return draft, fmt.Errorf("%w: question %d correct answer must match an option", domain.ErrInvalidInput, i)
			}
		case domain.QuestionShortAnswer:
			if q.CorrectAnswer == "" {
				return draft, fmt.Errorf("%w: question %d needs a correct answer", domain.ErrInvalidInput, i)
			}
		default:
			return draft, fmt.Errorf("%w: question %d has unknown type %q", domain.ErrInvalidInput, i, q.Type)
		}
		questions[i] = q
	}
	draft.Questions = questions

	draft.ParticipantFields = append([]domain.ParticipantField(nil), draft.ParticipantFields...)
	for i, f := range draft.ParticipantFields {
		if f.Key() == "" {
			return draft, fmt.Errorf("%w: participant field %d has no label", domain.ErrInvalidInput, i)
		}
		switch f.Type {
		case domain.FieldText, domain.FieldEmail:
		case "":
			draft.ParticipantFields[i].Type = domain.FieldText
		default:
			return draft, fmt.Errorf("%w: participant field %d has unknown type %q", domain.ErrInvalidInput, i, f.Type)
		}
	}

	s := draft.Settings
	if s.StartDate != nil && s.EndDate != nil && s.EndDate.Before(*s.StartDate) {
		return draft, fmt.Errorf("%w: end date precedes start date", domain.ErrInvalidInput)
	}
	return draft, nil
}

func contains(options []string, value string) bool {
	for _, o := range options {
		if o == value {
			return true
		}
	}
	return false
}
