package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/itsrohit2904/Quiz-App/internal/domain"
	"github.com/sirupsen/logrus"
)

// AttemptStore opens units of work for persisting attempts.
type AttemptStore interface {
	Begin(ctx context.Context) (AttemptTx, error)
}

// AttemptTx is a transactional handle bound to one dedicated connection.
// Close must be called on every path; it rolls back unless Commit succeeded
// and releases the connection.
type AttemptTx interface {
	// LockQuiz returns the quiz settings and holds the quiz row for the rest
	// of the transaction. It returns domain.ErrQuizNotFound when absent.
	LockQuiz(ctx context.Context, quizID int64) (domain.Settings, error)
	Questions(ctx context.Context, quizID int64) ([]domain.Question, error)
	InsertAttempt(ctx context.Context, attempt domain.Attempt) (int64, error)
	// InsertAnswers returns how many answer rows were actually stored.
	InsertAnswers(ctx context.Context, answers []domain.Answer) (int, error)
	Commit(ctx context.Context) error
	Close(ctx context.Context)
}

// IdempotencyStore tracks client-supplied submission tokens.
type IdempotencyStore interface {
	// Claim reserves key. When it is already taken, claimed is false and
	// receipt is the committed attempt, or zero while the owner is in flight.
	Claim(ctx context.Context, key string) (receipt domain.AttemptReceipt, claimed bool, err error)
	Complete(ctx context.Context, key string, receipt domain.AttemptReceipt) error
	Release(ctx context.Context, key string) error
}

// Submission is one attempt as sent by a participant.
type Submission struct {
	QuizID      int64
	Participant domain.ParticipantInfo
	// ClientScore is informational; the stored score is recomputed.
	ClientScore    *int
	Answers        []domain.AnswerSubmission
	IdempotencyKey string
}

// RecordResult describes a stored attempt.
type RecordResult struct {
	AttemptID     int64 `json:"quizResultId"`
	AnswersStored int   `json:"answersStored"`
	Score         int   `json:"score"`
	Replayed      bool  `json:"replayed"`
}

func (r RecordResult) receipt() domain.AttemptReceipt {
	return domain.AttemptReceipt{AttemptID: r.AttemptID, AnswersStored: r.AnswersStored, Score: r.Score}
}

// AttemptRecorder validates and persists one attempt as a single unit of work.
type AttemptRecorder struct {
	store       AttemptStore
	idempotency IdempotencyStore
	log         logrus.FieldLogger
	now         func() time.Time
}

func NewAttemptRecorder(store AttemptStore, idempotency IdempotencyStore, log logrus.FieldLogger) *AttemptRecorder {
	return NewAttemptRecorderWithClock(store, idempotency, log, time.Now)
}

// NewAttemptRecorderWithClock allows deterministic window checks in tests.
func NewAttemptRecorderWithClock(store AttemptStore, idempotency IdempotencyStore, log logrus.FieldLogger, now func() time.Time) *AttemptRecorder {
	return &AttemptRecorder{store: store, idempotency: idempotency, log: log, now: now}
}

// RecordAttempt stores one attempt row and its answer rows, or nothing.
// Identical submissions without an idempotency key produce independent attempts.
func (r *AttemptRecorder) RecordAttempt(ctx context.Context, sub Submission) (RecordResult, error) {
	if err := validateSubmission(sub); err != nil {
		return RecordResult{}, err
	}

	key := strings.TrimSpace(sub.IdempotencyKey)
	if key != "" && r.idempotency != nil {
		existing, claimed, err := r.idempotency.Claim(ctx, key)
		if err != nil {
			return RecordResult{}, r.persistenceFailure(sub, "claim idempotency key", err)
		}
		if !claimed {
			if existing.AttemptID == 0 {
				return RecordResult{}, domain.ErrDuplicateSubmission
			}
			r.log.WithFields(logrus.Fields{"quiz_id": sub.QuizID, "attempt_id": existing.AttemptID}).Info("replayed idempotent submission")
			return RecordResult{
				AttemptID:     existing.AttemptID,
				AnswersStored: existing.AnswersStored,
				Score:         existing.Score,
				Replayed:      true,
			}, nil
		}
	}

	result, err := r.record(ctx, sub)
	if key != "" && r.idempotency != nil {
		if err != nil {
			if relErr := r.idempotency.Release(ctx, key); relErr != nil {
				r.log.WithError(relErr).Warn("release idempotency key")
			}
		} else if compErr := r.idempotency.Complete(ctx, key, result.receipt()); compErr != nil {
			r.log.WithError(compErr).Warn("complete idempotency key")
		}
	}
	return result, err
}

func (r *AttemptRecorder) record(ctx context.Context, sub Submission) (RecordResult, error) {
	tx, err := r.store.Begin(ctx)
	if err != nil {
		return RecordResult{}, r.persistenceFailure(sub, "begin", err)
	}
	defer tx.Close(ctx)

	settings, err := tx.LockQuiz(ctx, sub.QuizID)
	if err != nil {
		if errors.Is(err, domain.ErrQuizNotFound) {
			return RecordResult{}, fmt.Errorf("%w: %d", domain.ErrQuizNotFound, sub.QuizID)
		}
		return RecordResult{}, r.persistenceFailure(sub, "lock quiz", err)
	}

	now := r.now()
	switch gate := CheckAvailability(settings, now); gate.Reason {
	case ReasonNotStarted:
		return RecordResult{}, fmt.Errorf("%w: %s", domain.ErrNotAvailable, gate.Reason)
	case ReasonEnded:
		// Attempts that began inside the window may finish after it closes.
		r.log.WithFields(logrus.Fields{
			"quiz_id":      sub.QuizID,
			"submitted_at": now.Format(time.RFC3339),
			"end_date":     settings.EndDate.Format(time.RFC3339),
		}).Warn("accepting submission after quiz window closed")
	}

	questions, err := tx.Questions(ctx, sub.QuizID)
	if err != nil {
		return RecordResult{}, r.persistenceFailure(sub, "load questions", err)
	}
	known := make(map[int64]struct{}, len(questions))
	for _, q := range questions {
		known[q.ID] = struct{}{}
	}
	for i, a := range sub.Answers {
		if _, ok := known[a.QuestionID]; !ok {
			return RecordResult{}, fmt.Errorf("%w: answer %d: %w %d in quiz %d",
				domain.ErrInvalidInput, i, domain.ErrQuestionNotFound, a.QuestionID, sub.QuizID)
		}
	}

	score := Score(questions, answerMap(sub.Answers))
	if sub.ClientScore != nil && *sub.ClientScore != score.Percentage {
		r.log.WithFields(logrus.Fields{
			"quiz_id":      sub.QuizID,
			"client_score": *sub.ClientScore,
			"score":        score.Percentage,
		}).Warn("client score differs from recomputed score")
	}

	attemptID, err := tx.InsertAttempt(ctx, domain.Attempt{
		QuizID:      sub.QuizID,
		Participant: sub.Participant,
		Score:       score.Percentage,
		ClientScore: sub.ClientScore,
		SubmittedAt: now,
	})
	if err != nil {
		return RecordResult{}, r.persistenceFailure(sub, "insert attempt", err)
	}

	rows := make([]domain.Answer, len(sub.Answers))
	for i, a := range sub.Answers {
		rows[i] = domain.Answer{AttemptID: attemptID, QuestionID: a.QuestionID, ParticipantAnswer: *a.Value}
	}
	stored, err := tx.InsertAnswers(ctx, rows)
	if err != nil {
		return RecordResult{}, r.persistenceFailure(sub, "insert answers", err)
	}
	if stored != len(rows) {
		return RecordResult{}, r.persistenceFailure(sub, "insert answers",
			fmt.Errorf("stored %d of %d answers", stored, len(rows)))
	}

	if err := tx.Commit(ctx); err != nil {
		return RecordResult{}, r.persistenceFailure(sub, "commit", err)
	}

	r.log.WithFields(logrus.Fields{
		"quiz_id":    sub.QuizID,
		"attempt_id": attemptID,
		"answers":    stored,
		"score":      score.Percentage,
	}).Info("quiz attempt recorded")
	return RecordResult{AttemptID: attemptID, AnswersStored: stored, Score: score.Percentage}, nil
}

func (r *AttemptRecorder) persistenceFailure(sub Submission, step string, cause error) error {
	r.log.WithError(cause).WithFields(logrus.Fields{"quiz_id": sub.QuizID, "step": step}).Error("attempt rolled back")
	return fmt.Errorf("%w: %s: %v", domain.ErrPersistence, step, cause)
}

func validateSubmission(sub Submission) error {
	if sub.QuizID <= 0 {
		return fmt.Errorf("%w: quiz id is required", domain.ErrInvalidInput)
	}
	if strings.TrimSpace(sub.Participant.Name) == "" || strings.TrimSpace(sub.Participant.Email) == "" {
		return fmt.Errorf("%w: participant name and email are required", domain.ErrInvalidInput)
	}
	if len(sub.Answers) == 0 {
		return fmt.Errorf("%w: answers must not be empty", domain.ErrInvalidInput)
	}
	for i, a := range sub.Answers {
		if a.QuestionID <= 0 || a.Value == nil {
			return fmt.Errorf("%w: invalid answer data at index %d", domain.ErrInvalidInput, i)
		}
	}
	return nil
}
