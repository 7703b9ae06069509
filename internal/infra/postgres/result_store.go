package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/itsrohit2904/Quiz-App/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// ResultStore reads attempts from the read pool and deletes them on the
// write pool.
type ResultStore struct {
	read  *pgxpool.Pool
	write *pgxpool.Pool
}

func NewResultStore(read, write *pgxpool.Pool) *ResultStore {
	return &ResultStore{read: read, write: write}
}

func (s *ResultStore) ListResults(ctx context.Context, ownerID int64) ([]domain.ResultSummary, error) {
	rows, err := s.read.Query(ctx, `
SELECT r.id, r.quiz_id, q.title, r.participant_name, r.participant_email, r.score, r.date
FROM quiz_results r
JOIN quizzes q ON q.id = r.quiz_id
WHERE q.user_id = $1
ORDER BY r.date DESC, r.id DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	defer rows.Close()

	out := []domain.ResultSummary{}
	for rows.Next() {
		var r domain.ResultSummary
		if err := rows.Scan(&r.ID, &r.QuizID, &r.Title, &r.ParticipantName, &r.ParticipantEmail, &r.Score, &r.Date); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	return out, nil
}

func (s *ResultStore) ResultOwner(ctx context.Context, resultID int64) (int64, error) {
	var owner int64
	err := s.read.QueryRow(ctx, `
SELECT q.user_id FROM quiz_results r JOIN quizzes q ON q.id = r.quiz_id WHERE r.id = $1`, resultID).Scan(&owner)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("%w: %d", domain.ErrResultNotFound, resultID)
	}
	if err != nil {
		return 0, fmt.Errorf("result owner: %w", err)
	}
	return owner, nil
}

func (s *ResultStore) ResultAnswers(ctx context.Context, resultID int64) ([]domain.AnswerReview, error) {
	var exists bool
	if err := s.read.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM quiz_results WHERE id = $1)`, resultID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("result answers: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: %d", domain.ErrResultNotFound, resultID)
	}

	rows, err := s.read.Query(ctx, `
SELECT pa.question_id, q.question_text, pa.participant_answer, q.correct_answer
FROM participant_answers pa
JOIN questions q ON q.id = pa.question_id
WHERE pa.quiz_result_id = $1
ORDER BY pa.id`, resultID)
	if err != nil {
		return nil, fmt.Errorf("result answers: %w", err)
	}
	defer rows.Close()

	out := []domain.AnswerReview{}
	for rows.Next() {
		var r domain.AnswerReview
		if err := rows.Scan(&r.QuestionID, &r.Question, &r.ParticipantAnswer, &r.CorrectAnswer); err != nil {
			return nil, fmt.Errorf("scan answer: %w", err)
		}
		r.CorrectAnswer = domain.NormalizeAnswer(r.CorrectAnswer)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("result answers: %w", err)
	}
	return out, nil
}

// DeleteResult removes the answers first and then the attempt, in one
// transaction on a connection held for its duration.
func (s *ResultStore) DeleteResult(ctx context.Context, resultID int64) error {
	return s.write.BeginFunc(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM participant_answers WHERE quiz_result_id = $1`, resultID); err != nil {
			return fmt.Errorf("delete answers: %w", err)
		}
		tag, err := tx.Exec(ctx, `DELETE FROM quiz_results WHERE id = $1`, resultID)
		if err != nil {
			return fmt.Errorf("delete result: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("%w: %d", domain.ErrResultNotFound, resultID)
		}
		return nil
	})
}
