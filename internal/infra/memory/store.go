package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/itsrohit2904/Quiz-App/internal/app"
	"github.com/itsrohit2904/Quiz-App/internal/domain"
)

// Store is an in-process relational store: quizzes, attempts and answers.
// It backs the service when Postgres is not configured and the unit tests.
type Store struct {
	// writer serializes units of work, like a dedicated transactional connection.
	writer sync.Mutex

	mu       sync.RWMutex
	clock    func() time.Time
	quizzes  map[int64]storedQuiz
	attempts map[int64]domain.Attempt
	answers  map[int64]domain.Answer
	nextID   struct{ quiz, question, field, attempt, answer int64 }
}

type storedQuiz struct {
	quiz  domain.Quiz
	owner int64
}

func NewStore() *Store {
	return &Store{
		clock:    time.Now,
		quizzes:  make(map[int64]storedQuiz),
		attempts: make(map[int64]domain.Attempt),
		answers:  make(map[int64]domain.Answer),
	}
}

// Counts reports the number of stored attempts and answers.
func (s *Store) Counts() (attempts, answers int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.attempts), len(s.answers)
}

// AnswersFor returns the stored answers of one attempt in insertion order.
func (s *Store) AnswersFor(attemptID int64) []domain.Answer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Answer
	for _, a := range s.answers {
		if a.AttemptID == attemptID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) LoadQuiz(_ context.Context, quizID int64) (domain.Quiz, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored, ok := s.quizzes[quizID]
	if !ok {
		return domain.Quiz{}, fmt.Errorf("%w: %d", domain.ErrQuizNotFound, quizID)
	}
	return cloneQuiz(stored.quiz), nil
}

func (s *Store) CreateQuiz(_ context.Context, ownerID int64, draft domain.QuizDraft) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID.quiz++
	quiz := domain.Quiz{
		ID:          s.nextID.quiz,
		OwnerID:     ownerID,
		Title:       draft.Title,
		Description: draft.Description,
		CreatedAt:   s.clock(),
		Settings:    draft.Settings,
	}
	for _, q := range draft.Questions {
		s.nextID.question++
		q.ID = s.nextID.question
		q.Options = append([]string{}, q.Options...)
		quiz.Questions = append(quiz.Questions, q)
	}
	for _, f := range draft.ParticipantFields {
		s.nextID.field++
		f.ID = s.nextID.field
		quiz.ParticipantFields = append(quiz.ParticipantFields, f)
	}
	s.quizzes[quiz.ID] = storedQuiz{quiz: quiz, owner: ownerID}
	return quiz.ID, nil
}

// UpdateQuiz mirrors the Postgres reconciliation: questions keep their IDs
// when the draft names them, new ones are appended, and a removed question
// must not have recorded answers.
func (s *Store) UpdateQuiz(_ context.Context, quizID int64, draft domain.QuizDraft) error {
	s.writer.Lock()
	defer s.writer.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.quizzes[quizID]
	if !ok {
		return fmt.Errorf("%w: %d", domain.ErrQuizNotFound, quizID)
	}
	owned := make(map[int64]bool, len(stored.quiz.Questions))
	for _, q := range stored.quiz.Questions {
		owned[q.ID] = true
	}
	kept := make(map[int64]bool, len(draft.Questions))
	for _, q := range draft.Questions {
		kept[q.ID] = true
	}
	for _, a := range s.answers {
		if owned[a.QuestionID] && !kept[a.QuestionID] {
			return fmt.Errorf("%w: question %d has recorded answers and cannot be removed", domain.ErrInvalidInput, a.QuestionID)
		}
	}

	quiz := stored.quiz
	quiz.Title = draft.Title
	quiz.Description = draft.Description
	quiz.Settings = draft.Settings
	quiz.Questions = make([]domain.Question, 0, len(draft.Questions))
	for _, q := range draft.Questions {
		if !owned[q.ID] {
			s.nextID.question++
			q.ID = s.nextID.question
		}
		q.Options = append([]string{}, q.Options...)
		quiz.Questions = append(quiz.Questions, q)
	}
	quiz.ParticipantFields = make([]domain.ParticipantField, 0, len(draft.ParticipantFields))
	for _, f := range draft.ParticipantFields {
		s.nextID.field++
		f.ID = s.nextID.field
		quiz.ParticipantFields = append(quiz.ParticipantFields, f)
	}
	s.quizzes[quizID] = storedQuiz{quiz: quiz, owner: stored.owner}
	return nil
}

func (s *Store) ListQuizzes(_ context.Context, ownerID int64) ([]domain.QuizSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []domain.QuizSummary{}
	for _, stored := range s.quizzes {
		if stored.owner != ownerID {
			continue
		}
		q := stored.quiz
		out = append(out, domain.QuizSummary{ID: q.ID, Title: q.Title, Description: q.Description, Settings: q.Settings, CreatedAt: q.CreatedAt})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (s *Store) QuizOwner(_ context.Context, quizID int64) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored, ok := s.quizzes[quizID]
	if !ok {
		return 0, fmt.Errorf("%w: %d", domain.ErrQuizNotFound, quizID)
	}
	return stored.owner, nil
}

func (s *Store) DeleteQuiz(_ context.Context, quizID int64) error {
	s.writer.Lock()
	defer s.writer.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.quizzes[quizID]; !ok {
		return fmt.Errorf("%w: %d", domain.ErrQuizNotFound, quizID)
	}
	for id, attempt := range s.attempts {
		if attempt.QuizID != quizID {
			continue
		}
		s.deleteAnswersLocked(id)
		delete(s.attempts, id)
	}
	delete(s.quizzes, quizID)
	return nil
}

func (s *Store) ListResults(_ context.Context, ownerID int64) ([]domain.ResultSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []domain.ResultSummary{}
	for _, a := range s.attempts {
		stored, ok := s.quizzes[a.QuizID]
		if !ok || stored.owner != ownerID {
			continue
		}
		out = append(out, domain.ResultSummary{
			ID:               a.ID,
			QuizID:           a.QuizID,
			Title:            stored.quiz.Title,
			ParticipantName:  a.Participant.Name,
			ParticipantEmail: a.Participant.Email,
			Score:            a.Score,
			Date:             a.SubmittedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.After(out[j].Date)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (s *Store) ResultOwner(_ context.Context, resultID int64) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	attempt, ok := s.attempts[resultID]
	if !ok {
		return 0, fmt.Errorf("%w: %d", domain.ErrResultNotFound, resultID)
	}
	return s.quizzes[attempt.QuizID].owner, nil
}

func (s *Store) ResultAnswers(_ context.Context, resultID int64) ([]domain.AnswerReview, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	attempt, ok := s.attempts[resultID]
	if !ok {
		return nil, fmt.Errorf("%w: %d", domain.ErrResultNotFound, resultID)
	}
	quiz := s.quizzes[attempt.QuizID].quiz
	var stored []domain.Answer
	for _, a := range s.answers {
		if a.AttemptID == resultID {
			stored = append(stored, a)
		}
	}
	sort.Slice(stored, func(i, j int) bool { return stored[i].ID < stored[j].ID })

	out := make([]domain.AnswerReview, 0, len(stored))
	for _, a := range stored {
		q, _ := quiz.Question(a.QuestionID)
		out = append(out, domain.AnswerReview{
			QuestionID:        a.QuestionID,
			Question:          q.Text,
			ParticipantAnswer: a.ParticipantAnswer,
			CorrectAnswer:     q.CorrectAnswer,
		})
	}
	return out, nil
}

func (s *Store) DeleteResult(_ context.Context, resultID int64) error {
	s.writer.Lock()
	defer s.writer.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.attempts[resultID]; !ok {
		return fmt.Errorf("%w: %d", domain.ErrResultNotFound, resultID)
	}
	s.deleteAnswersLocked(resultID)
	delete(s.attempts, resultID)
	return nil
}

func (s *Store) deleteAnswersLocked(attemptID int64) {
	for id, a := range s.answers {
		if a.AttemptID == attemptID {
			delete(s.answers, id)
		}
	}
}

// Begin holds the store's writer lock until the returned tx is closed.
func (s *Store) Begin(ctx context.Context) (app.AttemptTx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.writer.Lock()
	return &attemptTx{store: s}, nil
}

type attemptTx struct {
	store    *Store
	attempts []domain.Attempt
	answers  []domain.Answer
	done     bool
}

func (tx *attemptTx) LockQuiz(ctx context.Context, quizID int64) (domain.Settings, error) {
	quiz, err := tx.store.LoadQuiz(ctx, quizID)
	if err != nil {
		return domain.Settings{}, err
	}
	return quiz.Settings, nil
}

func (tx *attemptTx) Questions(ctx context.Context, quizID int64) ([]domain.Question, error) {
	quiz, err := tx.store.LoadQuiz(ctx, quizID)
	if err != nil {
		return nil, err
	}
	return quiz.Questions, nil
}

func (tx *attemptTx) InsertAttempt(_ context.Context, attempt domain.Attempt) (int64, error) {
	if tx.done {
		return 0, fmt.Errorf("transaction closed")
	}
	tx.store.mu.Lock()
	tx.store.nextID.attempt++
	attempt.ID = tx.store.nextID.attempt
	tx.store.mu.Unlock()
	tx.attempts = append(tx.attempts, attempt)
	return attempt.ID, nil
}

// InsertAnswers skips rows that repeat an (attempt, question) pair, like the
// unique constraint with ON CONFLICT DO NOTHING in Postgres.
func (tx *attemptTx) InsertAnswers(_ context.Context, answers []domain.Answer) (int, error) {
	if tx.done {
		return 0, fmt.Errorf("transaction closed")
	}
	type pair struct{ attempt, question int64 }
	seen := make(map[pair]struct{}, len(tx.answers)+len(answers))
	for _, a := range tx.answers {
		seen[pair{a.AttemptID, a.QuestionID}] = struct{}{}
	}
	stored := 0
	for _, a := range answers {
		k := pair{a.AttemptID, a.QuestionID}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		tx.store.mu.Lock()
		tx.store.nextID.answer++
		a.ID = tx.store.nextID.answer
		tx.store.mu.Unlock()
		tx.answers = append(tx.answers, a)
		stored++
	}
	return stored, nil
}

func (tx *attemptTx) Commit(_ context.Context) error {
	if tx.done {
		return fmt.Errorf("transaction closed")
	}
	tx.store.mu.Lock()
	for _, a := range tx.attempts {
		tx.store.attempts[a.ID] = a
	}
	for _, a := range tx.answers {
		tx.store.answers[a.ID] = a
	}
	tx.store.mu.Unlock()
	tx.done = true
	tx.store.writer.Unlock()
	return nil
}

// Close discards uncommitted rows and releases the writer lock.
func (tx *attemptTx) Close(_ context.Context) {
	if tx.done {
		return
	}
	tx.done = true
	tx.attempts = nil
	tx.answers = nil
	tx.store.writer.Unlock()
}

func cloneQuiz(q domain.Quiz) domain.Quiz {
	out := q
	out.Questions = make([]domain.Question, len(q.Questions))
	for i, question := range q.Questions {
		question.Options = append([]string{}, question.Options...)
		out.Questions[i] = question
	}
	out.ParticipantFields = append([]domain.ParticipantField{}, q.ParticipantFields...)
	return out
}
