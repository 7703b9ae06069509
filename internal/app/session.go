package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/itsrohit2904/Quiz-App/internal/domain"
)

// SessionStatus is the lifecycle position of an attempt session.
type SessionStatus string

const (
	StatusNotStarted     SessionStatus = "not-started"
	StatusCollectingInfo SessionStatus = "collecting-info"
	StatusAnswering      SessionStatus = "answering"
	StatusSubmitting     SessionStatus = "submitting"
	StatusCompleted      SessionStatus = "completed"
	StatusUnavailable    SessionStatus = "unavailable"
	// StatusExpired is entered when the countdown reaches zero and is left
	// for StatusSubmitting within the same event.
	StatusExpired SessionStatus = "expired"
)

// SubmitTrigger records what moved the session into StatusSubmitting.
type SubmitTrigger string

const (
	TriggerManual  SubmitTrigger = "manual"
	TriggerTimeout SubmitTrigger = "timeout"
)

// Event is an input to the session state machine.
type Event interface{ sessionEvent() }

type (
	// EventLoaded delivers the fetched quiz definition.
	EventLoaded struct {
		Quiz domain.Quiz
		At   time.Time
	}
	// EventLoadFailed reports that the definition could not be fetched.
	EventLoadFailed struct{ Err error }
	// EventParticipantField sets one participant info value.
	EventParticipantField struct{ Key, Value string }
	// EventAnswer records the answer to one question.
	EventAnswer struct {
		QuestionID int64
		Value      string
	}
	// EventTick is one second of the countdown.
	EventTick struct{ At time.Time }
	// EventSubmit is an explicit participant submission.
	EventSubmit struct{ At time.Time }
	// EventPersisted acknowledges a stored attempt.
	EventPersisted struct {
		AttemptID int64
		Score     int
	}
	// EventPersistFailed reports that the attempt could not be stored.
	EventPersistFailed struct{ Err error }
	// EventRetake starts over from a completed session.
	EventRetake struct{}
)

func (EventLoaded) sessionEvent()           {}
func (EventLoadFailed) sessionEvent()       {}
func (EventParticipantField) sessionEvent() {}
func (EventAnswer) sessionEvent()           {}
func (EventTick) sessionEvent()             {}
func (EventSubmit) sessionEvent()           {}
func (EventPersisted) sessionEvent()        {}
func (EventPersistFailed) sessionEvent()    {}
func (EventRetake) sessionEvent()           {}

// Effect is work the session asks its driver to perform.
type Effect interface{ sessionEffect() }

type (
	// EffectStartTimer starts the one-second countdown tick.
	EffectStartTimer struct{ Seconds int }
	// EffectStopTimer stops the countdown tick.
	EffectStopTimer struct{}
	// EffectPersist sends the collected answers to the recorder.
	EffectPersist struct{ Submission Submission }
	// EffectReload fetches a fresh definition for a retake.
	EffectReload struct{}
)

func (EffectStartTimer) sessionEffect() {}
func (EffectStopTimer) sessionEffect()  {}
func (EffectPersist) sessionEffect()    {}
func (EffectReload) sessionEffect()     {}

// SessionState is the complete, explicit state of one attempt session.
// Transition never mutates its input.
type SessionState struct {
	Status       SessionStatus
	Reason       UnavailableReason
	Quiz         *domain.Quiz
	Participant  map[string]string
	Answers      map[int64]string
	Timed        bool
	Remaining    int
	Submitted    bool
	Trigger      SubmitTrigger
	WindowClosed bool
	Result       *domain.ScoreResult
	AttemptID    int64
	StoredScore  *int
	PersistErr   string
	History      []SessionStatus
}

// NewSessionState returns a session waiting for its quiz definition.
func NewSessionState() SessionState {
	return SessionState{Status: StatusNotStarted, History: []SessionStatus{StatusNotStarted}}
}

// Transition is the single reducer for user input, timer ticks and
// persistence outcomes.
func Transition(state SessionState, ev Event) (SessionState, []Effect, error) {
	if state.Status == StatusUnavailable {
		return state, nil, fmt.Errorf("%w: session is unavailable", domain.ErrInvalidTransition)
	}

	switch e := ev.(type) {
	case EventLoaded:
		return onLoaded(state, e)
	case EventLoadFailed:
		if state.Status != StatusNotStarted {
			return state, nil, invalid(state, "load failure")
		}
		next := state.clone()
		next.Reason = ReasonLoadFailed
		next.enter(StatusUnavailable)
		return next, nil, nil
	case EventParticipantField:
		return onParticipantField(state, e)
	case EventAnswer:
		return onAnswer(state, e)
	case EventTick:
		return onTick(state, e)
	case EventSubmit:
		return onSubmit(state, e)
	case EventPersisted:
		if state.Status != StatusSubmitting {
			return state, nil, invalid(state, "persisted")
		}
		next := state.clone()
		next.AttemptID = e.AttemptID
		score := e.Score
		next.StoredScore = &score
		next.enter(StatusCompleted)
		return next, nil, nil
	case EventPersistFailed:
		if state.Status != StatusSubmitting {
			return state, nil, invalid(state, "persist failure")
		}
		next := state.clone()
		next.PersistErr = persistMessage(e.Err)
		next.enter(StatusCompleted)
		return next, nil, nil
	case EventRetake:
		if state.Status != StatusCompleted || state.Quiz == nil || !state.Quiz.Settings.AllowRetake {
			return state, nil, invalid(state, "retake")
		}
		return NewSessionState(), []Effect{EffectReload{}}, nil
	default:
		return state, nil, fmt.Errorf("%w: unknown event %T", domain.ErrInvalidTransition, ev)
	}
}

// persistMessage is the participant-facing text of a failed submission.
// The cause is logged by the runner and never shown.
func persistMessage(err error) string {
	for _, known := range []error{
		domain.ErrInvalidInput,
		domain.ErrQuizNotFound,
		domain.ErrNotAvailable,
		domain.ErrDuplicateSubmission,
	} {
		if errors.Is(err, known) {
			return known.Error()
		}
	}
	return domain.ErrPersistence.Error()
}

func onLoaded(state SessionState, e EventLoaded) (SessionState, []Effect, error) {
	if state.Status != StatusNotStarted {
		return state, nil, invalid(state, "load")
	}
	next := state.clone()
	quiz := e.Quiz
	next.Quiz = &quiz

	gate := CheckAvailability(quiz.Settings, e.At)
	if !gate.Available {
		next.Reason = gate.Reason
		next.enter(StatusUnavailable)
		return next, nil, nil
	}

	next.Participant = make(map[string]string, len(quiz.ParticipantFields))
	next.Answers = make(map[int64]string, len(quiz.Questions))
	next.enter(StatusCollectingInfo)
	next, effects := next.advanceIfInfoComplete()
	return next, effects, nil
}

func onParticipantField(state SessionState, e EventParticipantField) (SessionState, []Effect, error) {
	if state.Status != StatusCollectingInfo && state.Status != StatusAnswering {
		return state, nil, invalid(state, "participant field")
	}
	key := strings.ToLower(strings.TrimSpace(e.Key))
	if key == "" {
		return state, nil, fmt.Errorf("%w: participant field key is required", domain.ErrInvalidInput)
	}
	next := state.clone()
	next.Participant[key] = e.Value
	next, effects := next.advanceIfInfoComplete()
	return next, effects, nil
}

func onAnswer(state SessionState, e EventAnswer) (SessionState, []Effect, error) {
	if state.Status != StatusAnswering {
		return state, nil, invalid(state, "answer")
	}
	if _, ok := state.Quiz.Question(e.QuestionID); !ok {
		return state, nil, fmt.Errorf("%w: %d", domain.ErrQuestionNotFound, e.QuestionID)
	}
	next := state.clone()
	next.Answers[e.QuestionID] = e.Value
	return next, nil, nil
}

func onTick(state SessionState, e EventTick) (SessionState, []Effect, error) {
	// Late ticks after a submission are expected and ignored.
	if state.Submitted || state.Status != StatusAnswering || !state.Timed {
		return state, nil, nil
	}
	next := state.clone()
	next.Remaining--
	if next.Remaining > 0 {
		return next, nil, nil
	}
	next.Remaining = 0
	next.enter(StatusExpired)
	next, effects := next.beginSubmit(TriggerTimeout, e.At)
	return next, effects, nil
}

func onSubmit(state SessionState, e EventSubmit) (SessionState, []Effect, error) {
	// The first trigger wins; a racing manual submit is a no-op.
	if state.Submitted {
		return state, nil, nil
	}
	if state.Status != StatusAnswering {
		return state, nil, invalid(state, "submit")
	}
	if missing := state.missingForSubmit(); missing != "" {
		return state, nil, fmt.Errorf("%w: %s", domain.ErrSubmitNotReady, missing)
	}
	next := state.clone()
	next, effects := next.beginSubmit(TriggerManual, e.At)
	return next, effects, nil
}

// beginSubmit moves to Submitting, scores locally and asks for persistence.
// Callers must have checked the Submitted guard.
func (s SessionState) beginSubmit(trigger SubmitTrigger, at time.Time) (SessionState, []Effect) {
	s.Submitted = true
	s.Trigger = trigger
	s.WindowClosed = !CheckAvailability(s.Quiz.Settings, at).Available

	result := Score(s.Quiz.Questions, s.Answers)
	s.Result = &result
	s.enter(StatusSubmitting)

	var effects []Effect
	if s.Timed {
		effects = append(effects, EffectStopTimer{})
	}
	effects = append(effects, EffectPersist{Submission: s.submission()})
	return s, effects
}

func (s SessionState) submission() Submission {
	answers := make([]domain.AnswerSubmission, 0, len(s.Answers))
	for _, q := range s.Quiz.Questions {
		if value, ok := s.Answers[q.ID]; ok {
			v := value
			answers = append(answers, domain.AnswerSubmission{QuestionID: q.ID, Value: &v})
		}
	}
	fields := make(map[string]string, len(s.Participant))
	for k, v := range s.Participant {
		fields[k] = v
	}
	clientScore := s.Result.Percentage
	return Submission{
		QuizID: s.Quiz.ID,
		Participant: domain.ParticipantInfo{
			Name:   s.Participant["name"],
			Email:  s.Participant["email"],
			Fields: fields,
		},
		ClientScore: &clientScore,
		Answers:     answers,
	}
}

func (s SessionState) advanceIfInfoComplete() (SessionState, []Effect) {
	if s.Status != StatusCollectingInfo || !s.requiredInfoComplete() {
		return s, nil
	}
	s.enter(StatusAnswering)
	if seconds := s.Quiz.Settings.TimeLimitSeconds(); seconds > 0 {
		s.Timed = true
		s.Remaining = seconds
		return s, []Effect{EffectStartTimer{Seconds: seconds}}
	}
	return s, nil
}

func (s SessionState) requiredInfoComplete() bool {
	for _, f := range s.Quiz.ParticipantFields {
		if f.Required && strings.TrimSpace(s.Participant[f.Key()]) == "" {
			return false
		}
	}
	return true
}

func (s SessionState) missingForSubmit() string {
	for _, f := range s.Quiz.ParticipantFields {
		if f.Required && strings.TrimSpace(s.Participant[f.Key()]) == "" {
			return "participant field " + f.Key() + " is required"
		}
	}
	for _, q := range s.Quiz.Questions {
		if _, ok := s.Answers[q.ID]; !ok {
			return fmt.Sprintf("question %d is unanswered", q.ID)
		}
	}
	return ""
}

func (s *SessionState) enter(status SessionStatus) {
	s.Status = status
	s.History = append(s.History, status)
}

func (s SessionState) clone() SessionState {
	out := s
	out.History = append([]SessionStatus(nil), s.History...)
	if s.Participant != nil {
		out.Participant = make(map[string]string, len(s.Participant))
		for k, v := range s.Participant {
			out.Participant[k] = v
		}
	}
	if s.Answers != nil {
		out.Answers = make(map[int64]string, len(s.Answers))
		for k, v := range s.Answers {
			out.Answers[k] = v
		}
	}
	return out
}

func invalid(state SessionState, what string) error {
	return fmt.Errorf("%w: %s while %s", domain.ErrInvalidTransition, what, state.Status)
}

// AttemptSession owns one SessionState and applies events to it one at a
// time. It is not safe for concurrent use; SessionRunner serializes access.
type AttemptSession struct {
	state SessionState
}

func NewAttemptSession() *AttemptSession {
	return &AttemptSession{state: NewSessionState()}
}

// Dispatch applies ev and returns the effects the caller must run.
// On error the state is left unchanged.
func (s *AttemptSession) Dispatch(ev Event) ([]Effect, error) {
	next, effects, err := Transition(s.state, ev)
	if err != nil {
		return nil, err
	}
	s.state = next
	return effects, nil
}

// State returns a copy of the current state.
func (s *AttemptSession) State() SessionState {
	return s.state.clone()
}

// SessionSnapshot is the participant-facing view of a session.
type SessionSnapshot struct {
	Status       SessionStatus       `json:"status"`
	Reason       UnavailableReason   `json:"reason,omitempty"`
	Timed        bool                `json:"timed"`
	Remaining    int                 `json:"remaining"`
	Answered     int                 `json:"answered"`
	Total        int                 `json:"total"`
	Participant  map[string]string   `json:"participant,omitempty"`
	Trigger      SubmitTrigger       `json:"trigger,omitempty"`
	WindowClosed bool                `json:"windowClosed,omitempty"`
	Result       *domain.ScoreResult `json:"result,omitempty"`
	AttemptID    int64               `json:"attemptId,omitempty"`
	StoredScore  *int                `json:"storedScore,omitempty"`
	PersistError string              `json:"persistError,omitempty"`
	AllowRetake  bool                `json:"allowRetake"`
}

// Snapshot renders the state for clients.
func (s SessionState) Snapshot() SessionSnapshot {
	snap := SessionSnapshot{
		Status:       s.Status,
		Reason:       s.Reason,
		Timed:        s.Timed,
		Remaining:    s.Remaining,
		Answered:     len(s.Answers),
		Trigger:      s.Trigger,
		WindowClosed: s.WindowClosed,
		AttemptID:    s.AttemptID,
		StoredScore:  s.StoredScore,
		PersistError: s.PersistErr,
	}
	if s.Quiz != nil {
		snap.Total = len(s.Quiz.Questions)
		snap.AllowRetake = s.Quiz.Settings.AllowRetake
	}
	if len(s.Participant) > 0 {
		snap.Participant = make(map[string]string, len(s.Participant))
		for k, v := range s.Participant {
			snap.Participant[k] = v
		}
	}
	if s.Result != nil {
		r := *s.Result
		snap.Result = &r
	}
	return snap
}
