package domain

import "errors"

var (
	// ErrQuizNotFound indicates the quiz definition could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrQuestionNotFound indicates a submitted question ID does not belong to the quiz.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrResultNotFound indicates a quiz result (attempt) does not exist.
	ErrResultNotFound = errors.New("quiz result not found")
	// ErrInvalidInput covers missing fields, empty or malformed answers.
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnauthorized is returned when the caller does not own the resource.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrPersistence means the unit of work was rolled back.
	ErrPersistence = errors.New("failed to store quiz result")
	// ErrNotAvailable indicates the quiz window rejects the request.
	ErrNotAvailable = errors.New("quiz not available")
	// ErrDuplicateSubmission is returned while an identical idempotent submission is in flight.
	ErrDuplicateSubmission = errors.New("submission already in progress")
	// ErrSubmitNotReady rejects a manual submit before every question and required field is filled.
	ErrSubmitNotReady = errors.New("quiz is not ready to submit")
	// ErrInvalidTransition rejects session events that do not apply to the current state.
	ErrInvalidTransition = errors.New("invalid session transition")
)

// IsNotFound reports whether err belongs to the not-found family.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrQuizNotFound) ||
		errors.Is(err, ErrQuestionNotFound) ||
		errors.Is(err, ErrResultNotFound)
}
