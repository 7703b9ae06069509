package domain

import (
	"strings"
	"time"
)

// QuestionType enumerates the supported question kinds.
type QuestionType string

const (
	QuestionMultipleChoice QuestionType = "multiple-choice"
	QuestionTrueFalse      QuestionType = "true-false"
	QuestionShortAnswer    QuestionType = "short-answer"
)

// FieldType enumerates participant field input kinds.
type FieldType string

const (
	FieldText  FieldType = "text"
	FieldEmail FieldType = "email"
)

// TrueFalseOptions are the implicit options of a true/false question.
var TrueFalseOptions = []string{"True", "False"}

// Question is a single quiz item. Options and CorrectAnswer are always plain text.
type Question struct {
	ID            int64        `json:"id"`
	Type          QuestionType `json:"type"`
	Text          string       `json:"questionText"`
	Options       []string     `json:"options"`
	CorrectAnswer string       `json:"correctAnswer"`
}

// ParticipantField describes identity data collected before answering.
type ParticipantField struct {
	ID       int64     `json:"id"`
	Label    string    `json:"label"`
	Type     FieldType `json:"type"`
	Required bool      `json:"required"`
}

// Key is the participant info key the field is collected under.
func (f ParticipantField) Key() string {
	return strings.ToLower(strings.TrimSpace(f.Label))
}

// Settings holds the availability window and retake policy.
// TimeLimit is in minutes; nil means untimed.
type Settings struct {
	AllowRetake bool       `json:"allowRetake"`
	TimeLimit   *int       `json:"timeLimit,omitempty"`
	StartDate   *time.Time `json:"startDate,omitempty"`
	EndDate     *time.Time `json:"endDate,omitempty"`
}

// TimeLimitSeconds returns the countdown length, or 0 when untimed.
func (s Settings) TimeLimitSeconds() int {
	if s.TimeLimit == nil || *s.TimeLimit <= 0 {
		return 0
	}
	return *s.TimeLimit * 60
}

// Quiz is the read-only quiz definition consumed by an attempt.
type Quiz struct {
	ID                int64              `json:"id"`
	OwnerID           int64              `json:"-"`
	Title             string             `json:"title"`
	Description       string             `json:"description"`
	CreatedAt         time.Time          `json:"createdAt"`
	Settings          Settings           `json:"settings"`
	Questions         []Question         `json:"questions"`
	ParticipantFields []ParticipantField `json:"participantFields"`
}

// Question returns the question with the given ID.
func (q Quiz) Question(id int64) (Question, bool) {
	for _, question := range q.Questions {
		if question.ID == id {
			return question, true
		}
	}
	return Question{}, false
}

// ParticipantInfo carries the identity values entered by a participant.
type ParticipantInfo struct {
	Name   string            `json:"name"`
	Email  string            `json:"email"`
	Fields map[string]string `json:"fields,omitempty"`
}

// AnswerSubmission is one raw answer as sent by a client.
// A nil Value marks a malformed entry.
type AnswerSubmission struct {
	QuestionID int64
	Value      *string
}

// Attempt is a persisted quiz result row.
type Attempt struct {
	ID          int64           `json:"id"`
	QuizID      int64           `json:"quizId"`
	Participant ParticipantInfo `json:"participant"`
	Score       int             `json:"score"`
	ClientScore *int            `json:"clientScore,omitempty"`
	SubmittedAt time.Time       `json:"submittedAt"`
}

// AttemptReceipt is what a committed attempt reports back, kept with its
// idempotency key so replays answer with the stored values.
type AttemptReceipt struct {
	AttemptID     int64 `json:"attemptId"`
	AnswersStored int   `json:"answersStored"`
	Score         int   `json:"score"`
}

// Answer is a persisted participant answer row.
type Answer struct {
	ID                int64  `json:"id"`
	AttemptID         int64  `json:"attemptId"`
	QuestionID        int64  `json:"questionId"`
	ParticipantAnswer string `json:"participantAnswer"`
}

// ScoreResult is the outcome of scoring an answer set.
type ScoreResult struct {
	Percentage   int `json:"percentage"`
	CorrectCount int `json:"correctCount"`
	Total        int `json:"total"`
}

// ResultSummary is one row of an author's result listing.
type ResultSummary struct {
	ID               int64     `json:"id"`
	QuizID           int64     `json:"quizId"`
	Title            string    `json:"title"`
	ParticipantName  string    `json:"participantName"`
	ParticipantEmail string    `json:"participantEmail"`
	Score            int       `json:"score"`
	Date             time.Time `json:"date"`
}

// AnswerReview pairs a stored answer with the question it was scored against.
type AnswerReview struct {
	QuestionID        int64  `json:"questionId"`
	Question          string `json:"question"`
	ParticipantAnswer string `json:"participantAnswer"`
	CorrectAnswer     string `json:"correctAnswer"`
	Correct           bool   `json:"correct"`
}

// QuizSummary is one row of an author's quiz listing.
type QuizSummary struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Settings    Settings  `json:"settings"`
	CreatedAt   time.Time `json:"createdAt"`
}

// QuizDraft is an author's input for creating a quiz.
type QuizDraft struct {
	Title             string             `json:"title"`
	Description       string             `json:"description"`
	Settings          Settings           `json:"settings"`
	Questions         []Question         `json:"questions"`
	ParticipantFields []ParticipantField `json:"participantFields"`
}
