package migrations

import (
	"context"

	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.ExecContext(ctx, `
CREATE INDEX IF NOT EXISTS quizzes_user_id_idx ON quizzes (user_id);
CREATE INDEX IF NOT EXISTS questions_quiz_id_idx ON questions (quiz_id, position);
CREATE INDEX IF NOT EXISTS participant_fields_quiz_id_idx ON participant_fields (quiz_id, position);
CREATE INDEX IF NOT EXISTS quiz_results_quiz_id_idx ON quiz_results (quiz_id, date DESC)`)
			return err
		},
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.ExecContext(ctx, `
DROP INDEX IF EXISTS quiz_results_quiz_id_idx;
DROP INDEX IF EXISTS participant_fields_quiz_id_idx;
DROP INDEX IF EXISTS questions_quiz_id_idx;
DROP INDEX IF EXISTS quizzes_user_id_idx`)
			return err
		},
	)
}
