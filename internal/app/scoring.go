package app

import "github.com/itsrohit2904/Quiz-App/internal/domain"

// Score grades answers against the questions by exact, case-sensitive string
// match. Missing answers count as incorrect. An empty quiz scores 0.
func Score(questions []domain.Question, answers map[int64]string) domain.ScoreResult {
	result := domain.ScoreResult{Total: len(questions)}
	for _, q := range questions {
		if value, ok := answers[q.ID]; ok && value == q.CorrectAnswer {
			result.CorrectCount++
		}
	}
	result.Percentage = percentage(result.CorrectCount, result.Total)
	return result
}

// percentage rounds half up, matching Math.round on non-negative values.
func percentage(correct, total int) int {
	if total <= 0 {
		return 0
	}
	return (200*correct + total) / (2 * total)
}

// answerMap indexes well-formed submissions by question ID. Later duplicates win.
func answerMap(answers []domain.AnswerSubmission) map[int64]string {
	m := make(map[int64]string, len(answers))
	for _, a := range answers {
		if a.Value != nil {
			m[a.QuestionID] = *a.Value
		}
	}
	return m
}
