package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/itsrohit2904/Quiz-App/internal/domain"
	"github.com/uptrace/bun"
)

type quizModel struct {
	bun.BaseModel `bun:"table:quizzes"`

	ID          int64           `bun:"id,pk,autoincrement"`
	UserID      int64           `bun:"user_id,notnull"`
	Title       string          `bun:"title,notnull"`
	Description string          `bun:"description,notnull"`
	Settings    domain.Settings `bun:"settings,type:jsonb,notnull"`
	CreatedAt   time.Time       `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

type questionModel struct {
	bun.BaseModel `bun:"table:questions"`

	ID            int64    `bun:"id,pk,autoincrement"`
	QuizID        int64    `bun:"quiz_id,notnull"`
	Position      int      `bun:"position,notnull"`
	Type          string   `bun:"type,notnull"`
	QuestionText  string   `bun:"question_text,notnull"`
	Options       []string `bun:"options,type:jsonb,notnull"`
	CorrectAnswer string   `bun:"correct_answer,notnull"`
}

type fieldModel struct {
	bun.BaseModel `bun:"table:participant_fields"`

	ID       int64  `bun:"id,pk,autoincrement"`
	QuizID   int64  `bun:"quiz_id,notnull"`
	Position int    `bun:"position,notnull"`
	Label    string `bun:"label,notnull"`
	Type     string `bun:"type,notnull"`
	Required bool   `bun:"required,notnull"`
}

type resultModel struct {
	bun.BaseModel `bun:"table:quiz_results"`

	ID     int64 `bun:"id,pk,autoincrement"`
	QuizID int64 `bun:"quiz_id,notnull"`
}

type answerModel struct {
	bun.BaseModel `bun:"table:participant_answers"`

	ID           int64 `bun:"id,pk,autoincrement"`
	QuizResultID int64 `bun:"quiz_result_id,notnull"`
}

// AuthoringStore writes and lists quiz definitions through bun.
type AuthoringStore struct {
	db *bun.DB
}

func NewAuthoringStore(db *bun.DB) *AuthoringStore {
	return &AuthoringStore{db: db}
}

// CreateQuiz stores the quiz, its questions and its fields in one transaction.
func (s *AuthoringStore) CreateQuiz(ctx context.Context, ownerID int64, draft domain.QuizDraft) (int64, error) {
	quiz := &quizModel{
		UserID:      ownerID,
		Title:       draft.Title,
		Description: draft.Description,
		Settings:    draft.Settings,
	}
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(quiz).Returning("id").Exec(ctx); err != nil {
			return fmt.Errorf("insert quiz: %w", err)
		}

		if len(draft.Questions) > 0 {
			questions := make([]questionModel, len(draft.Questions))
			for i, q := range draft.Questions {
				questions[i] = questionModel{
					QuizID:        quiz.ID,
					Position:      i,
					Type:          string(q.Type),
					QuestionText:  q.Text,
					Options:       q.Options,
					CorrectAnswer: q.CorrectAnswer,
				}
			}
			if _, err := tx.NewInsert().Model(&questions).Exec(ctx); err != nil {
				return fmt.Errorf("insert questions: %w", err)
			}
		}

		if len(draft.ParticipantFields) > 0 {
			fields := make([]fieldModel, len(draft.ParticipantFields))
			for i, f := range draft.ParticipantFields {
				fields[i] = fieldModel{
					QuizID:   quiz.ID,
					Position: i,
					Label:    f.Label,
					Type:     string(f.Type),
					Required: f.Required,
				}
			}
			if _, err := tx.NewInsert().Model(&fields).Exec(ctx); err != nil {
				return fmt.Errorf("insert participant fields: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return quiz.ID, nil
}

// UpdateQuiz rewrites the quiz row and reconciles its questions and fields in
// one transaction. Draft questions carrying the ID of one of the quiz's
// questions are updated in place and keep their recorded answers; the others
// are inserted. Stored questions missing from the draft are deleted, unless a
// recorded answer references them.
func (s *AuthoringStore) UpdateQuiz(ctx context.Context, quizID int64, draft domain.QuizDraft) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		quiz := &quizModel{ID: quizID, Title: draft.Title, Description: draft.Description, Settings: draft.Settings}
		res, err := tx.NewUpdate().Model(quiz).Column("title", "description", "settings").WherePK().Exec(ctx)
		if err != nil {
			return fmt.Errorf("update quiz: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("%w: %d", domain.ErrQuizNotFound, quizID)
		}

		if err := replaceQuestions(ctx, tx, quizID, draft.Questions); err != nil {
			return err
		}

		if _, err := tx.NewDelete().Model((*fieldModel)(nil)).Where("quiz_id = ?", quizID).Exec(ctx); err != nil {
			return fmt.Errorf("delete participant fields: %w", err)
		}
		if len(draft.ParticipantFields) > 0 {
			fields := make([]fieldModel, len(draft.ParticipantFields))
			for i, f := range draft.ParticipantFields {
				fields[i] = fieldModel{QuizID: quizID, Position: i, Label: f.Label, Type: string(f.Type), Required: f.Required}
			}
			if _, err := tx.NewInsert().Model(&fields).Exec(ctx); err != nil {
				return fmt.Errorf("insert participant fields: %w", err)
			}
		}
		return nil
	})
}

func replaceQuestions(ctx context.Context, tx bun.Tx, quizID int64, questions []domain.Question) error {
	var existing []int64
	if err := tx.NewSelect().Model((*questionModel)(nil)).Column("id").Where("quiz_id = ?", quizID).Scan(ctx, &existing); err != nil {
		return fmt.Errorf("select questions: %w", err)
	}
	kept := make(map[int64]bool, len(questions))
	for _, q := range questions {
		kept[q.ID] = true
	}
	var removed []int64
	owned := make(map[int64]bool, len(existing))
	for _, id := range existing {
		owned[id] = true
		if !kept[id] {
			removed = append(removed, id)
		}
	}

	if len(removed) > 0 {
		var answered []int64
		err := tx.NewSelect().
			TableExpr("participant_answers").
			ColumnExpr("DISTINCT question_id").
			Where("question_id IN (?)", bun.In(removed)).
			Scan(ctx, &answered)
		if err != nil {
			return fmt.Errorf("select answered questions: %w", err)
		}
		if len(answered) > 0 {
			return fmt.Errorf("%w: question %d has recorded answers and cannot be removed", domain.ErrInvalidInput, answered[0])
		}
		if _, err := tx.NewDelete().Model((*questionModel)(nil)).Where("id IN (?)", bun.In(removed)).Exec(ctx); err != nil {
			return fmt.Errorf("delete questions: %w", err)
		}
	}

	var inserts []questionModel
	for i, q := range questions {
		row := questionModel{
			QuizID:        quizID,
			Position:      i,
			Type:          string(q.Type),
			QuestionText:  q.Text,
			Options:       q.Options,
			CorrectAnswer: q.CorrectAnswer,
		}
		if !owned[q.ID] {
			inserts = append(inserts, row)
			continue
		}
		row.ID = q.ID
		_, err := tx.NewUpdate().
			Model(&row).
			Column("position", "type", "question_text", "options", "correct_answer").
			WherePK().
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("update question %d: %w", q.ID, err)
		}
	}
	if len(inserts) > 0 {
		if _, err := tx.NewInsert().Model(&inserts).Exec(ctx); err != nil {
			return fmt.Errorf("insert questions: %w", err)
		}
	}
	return nil
}

func (s *AuthoringStore) ListQuizzes(ctx context.Context, ownerID int64) ([]domain.QuizSummary, error) {
	var rows []quizModel
	err := s.db.NewSelect().
		Model(&rows).
		Where("user_id = ?", ownerID).
		Order("created_at DESC", "id DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list quizzes: %w", err)
	}
	out := make([]domain.QuizSummary, len(rows))
	for i, r := range rows {
		out[i] = domain.QuizSummary{
			ID:          r.ID,
			Title:       r.Title,
			Description: r.Description,
			Settings:    r.Settings,
			CreatedAt:   r.CreatedAt,
		}
	}
	return out, nil
}

func (s *AuthoringStore) QuizOwner(ctx context.Context, quizID int64) (int64, error) {
	var owner int64
	err := s.db.NewSelect().
		Model((*quizModel)(nil)).
		Column("user_id").
		Where("id = ?", quizID).
		Scan(ctx, &owner)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: %d", domain.ErrQuizNotFound, quizID)
	}
	if err != nil {
		return 0, fmt.Errorf("quiz owner: %w", err)
	}
	return owner, nil
}

// DeleteQuiz removes answers, results, fields, questions and the quiz, in
// that order, in one transaction.
func (s *AuthoringStore) DeleteQuiz(ctx context.Context, quizID int64) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		results := tx.NewSelect().Model((*resultModel)(nil)).Column("id").Where("quiz_id = ?", quizID)
		if _, err := tx.NewDelete().Model((*answerModel)(nil)).Where("quiz_result_id IN (?)", results).Exec(ctx); err != nil {
			return fmt.Errorf("delete answers: %w", err)
		}
		if _, err := tx.NewDelete().Model((*resultModel)(nil)).Where("quiz_id = ?", quizID).Exec(ctx); err != nil {
			return fmt.Errorf("delete results: %w", err)
		}
		if _, err := tx.NewDelete().Model((*fieldModel)(nil)).Where("quiz_id = ?", quizID).Exec(ctx); err != nil {
			return fmt.Errorf("delete participant fields: %w", err)
		}
		if _, err := tx.NewDelete().Model((*questionModel)(nil)).Where("quiz_id = ?", quizID).Exec(ctx); err != nil {
			return fmt.Errorf("delete questions: %w", err)
		}
		res, err := tx.NewDelete().Model((*quizModel)(nil)).Where("id = ?", quizID).Exec(ctx)
		if err != nil {
			return fmt.Errorf("delete quiz: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("%w: %d", domain.ErrQuizNotFound, quizID)
		}
		return nil
	})
}
