package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/itsrohit2904/Quiz-App/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// QuizLoader reads quiz definitions from the relational tables and
// normalizes them on the way out.
type QuizLoader struct {
	pool *pgxpool.Pool
}

func NewQuizLoader(pool *pgxpool.Pool) *QuizLoader {
	return &QuizLoader{pool: pool}
}

func (l *QuizLoader) LoadQuiz(ctx context.Context, quizID int64) (domain.Quiz, error) {
	var (
		quiz     domain.Quiz
		settings []byte
	)
	err := l.pool.QueryRow(ctx,
		`SELECT id, user_id, title, description, settings, created_at FROM quizzes WHERE id=$1`, quizID).
		Scan(&quiz.ID, &quiz.OwnerID, &quiz.Title, &quiz.Description, &settings, &quiz.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Quiz{}, fmt.Errorf("%w: %d", domain.ErrQuizNotFound, quizID)
	}
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("load quiz: %w", err)
	}
	if quiz.Settings, err = decodeSettings(settings); err != nil {
		return domain.Quiz{}, fmt.Errorf("load quiz %d: %w", quizID, err)
	}

	if quiz.Questions, err = loadQuestions(ctx, l.pool, quizID); err != nil {
		return domain.Quiz{}, err
	}
	if quiz.ParticipantFields, err = loadFields(ctx, l.pool, quizID); err != nil {
		return domain.Quiz{}, err
	}
	return quiz, nil
}

func loadQuestions(ctx context.Context, q querier, quizID int64) ([]domain.Question, error) {
	rows, err := q.Query(ctx,
		`SELECT id, type, question_text, options, correct_answer FROM questions WHERE quiz_id=$1 ORDER BY position, id`, quizID)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	defer rows.Close()

	questions := []domain.Question{}
	for rows.Next() {
		var (
			question domain.Question
			kind     string
			options  []byte
		)
		if err := rows.Scan(&question.ID, &kind, &question.Text, &options, &question.CorrectAnswer); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		question.Type = domain.QuestionType(kind)
		if question.Options, err = domain.DecodeOptions(options); err != nil {
			return nil, fmt.Errorf("question %d options: %w", question.ID, err)
		}
		questions = append(questions, domain.NormalizeQuestion(question))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	return questions, nil
}

func loadFields(ctx context.Context, q querier, quizID int64) ([]domain.ParticipantField, error) {
	rows, err := q.Query(ctx,
		`SELECT id, label, type, required FROM participant_fields WHERE quiz_id=$1 ORDER BY position, id`, quizID)
	if err != nil {
		return nil, fmt.Errorf("load participant fields: %w", err)
	}
	defer rows.Close()

	fields := []domain.ParticipantField{}
	for rows.Next() {
		var (
			field domain.ParticipantField
			kind  string
		)
		if err := rows.Scan(&field.ID, &field.Label, &kind, &field.Required); err != nil {
			return nil, fmt.Errorf("scan participant field: %w", err)
		}
		field.Type = domain.FieldType(kind)
		fields = append(fields, field)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load participant fields: %w", err)
	}
	return fields, nil
}

func decodeSettings(raw []byte) (domain.Settings, error) {
	var settings domain.Settings
	if len(raw) == 0 {
		return settings, nil
	}
	if err := json.Unmarshal(raw, &settings); err != nil {
		return settings, fmt.Errorf("decode settings: %w", err)
	}
	return settings, nil
}
