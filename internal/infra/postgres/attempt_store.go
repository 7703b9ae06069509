package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/itsrohit2904/Quiz-App/internal/app"
	"github.com/itsrohit2904/Quiz-App/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// AttemptStore opens attempt transactions on a dedicated connection taken
// from the write pool.
type AttemptStore struct {
	pool *pgxpool.Pool
}

func NewAttemptStore(pool *pgxpool.Pool) *AttemptStore {
	return &AttemptStore{pool: pool}
}

func (s *AttemptStore) Begin(ctx context.Context) (app.AttemptTx, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	tx, err := conn.Begin(ctx)
	if err != nil {
		conn.Release()
		return nil, fmt.Errorf("begin: %w", err)
	}
	return &attemptTx{conn: conn, tx: tx}, nil
}

type attemptTx struct {
	conn      *pgxpool.Conn
	tx        pgx.Tx
	committed bool
	released  bool
}

func (t *attemptTx) LockQuiz(ctx context.Context, quizID int64) (domain.Settings, error) {
	var raw []byte
	err := t.tx.QueryRow(ctx, `SELECT settings FROM quizzes WHERE id=$1 FOR SHARE`, quizID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Settings{}, fmt.Errorf("%w: %d", domain.ErrQuizNotFound, quizID)
	}
	if err != nil {
		return domain.Settings{}, fmt.Errorf("lock quiz: %w", err)
	}
	return decodeSettings(raw)
}

func (t *attemptTx) Questions(ctx context.Context, quizID int64) ([]domain.Question, error) {
	return loadQuestions(ctx, t.tx, quizID)
}

func (t *attemptTx) InsertAttempt(ctx context.Context, attempt domain.Attempt) (int64, error) {
	fields := attempt.Participant.Fields
	if fields == nil {
		fields = map[string]string{}
	}
	info, err := json.Marshal(fields)
	if err != nil {
		return 0, fmt.Errorf("encode participant info: %w", err)
	}
	var id int64
	err = t.tx.QueryRow(ctx, `
INSERT INTO quiz_results (quiz_id, participant_name, participant_email, participant_info, score, client_score, date)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id`,
		attempt.QuizID, attempt.Participant.Name, attempt.Participant.Email, string(info),
		attempt.Score, attempt.ClientScore, attempt.SubmittedAt).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert quiz result: %w", err)
	}
	return id, nil
}

// InsertAnswers writes all rows in one statement and counts the rows the
// unique (quiz_result_id, question_id) constraint let through.
func (t *attemptTx) InsertAnswers(ctx context.Context, answers []domain.Answer) (int, error) {
	if len(answers) == 0 {
		return 0, nil
	}
	var (
		sb   strings.Builder
		args = make([]interface{}, 0, len(answers)*3)
	)
	sb.WriteString(`INSERT INTO participant_answers (quiz_result_id, question_id, participant_answer) VALUES `)
	for i, a := range answers {
		if i > 0 {
			sb.WriteString(", ")
		}
		n := i * 3
		fmt.Fprintf(&sb, "($%d, $%d, $%d)", n+1, n+2, n+3)
		args = append(args, a.AttemptID, a.QuestionID, a.ParticipantAnswer)
	}
	sb.WriteString(` ON CONFLICT (quiz_result_id, question_id) DO NOTHING RETURNING id`)

	rows, err := t.tx.Query(ctx, sb.String(), args...)
	if err != nil {
		return 0, fmt.Errorf("insert answers: %w", err)
	}
	defer rows.Close()
	stored := 0
	for rows.Next() {
		stored++
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("insert answers: %w", err)
	}
	return stored, nil
}

func (t *attemptTx) Commit(ctx context.Context) error {
	if err := t.tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	t.committed = true
	return nil
}

// Close rolls back unless committed and returns the connection to the pool.
func (t *attemptTx) Close(ctx context.Context) {
	if t.released {
		return
	}
	if !t.committed {
		_ = t.tx.Rollback(context.WithoutCancel(ctx))
	}
	t.conn.Release()
	t.released = true
}
