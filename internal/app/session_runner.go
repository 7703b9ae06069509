package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/itsrohit2904/Quiz-App/internal/domain"
	"github.com/sirupsen/logrus"
)

// QuizFetcher supplies the quiz definition snapshot for a session.
type QuizFetcher interface {
	GetQuizDefinition(ctx context.Context, quizID int64) (domain.Quiz, error)
}

// AttemptSubmitter persists a finished attempt.
type AttemptSubmitter interface {
	RecordAttempt(ctx context.Context, sub Submission) (RecordResult, error)
}

// Ticker delivers countdown ticks.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFunc creates a Ticker firing every d.
type TickerFunc func(d time.Duration) Ticker

type timeTicker struct{ t *time.Ticker }

func (t timeTicker) C() <-chan time.Time { return t.t.C }
func (t timeTicker) Stop()               { t.t.Stop() }

// NewTimeTicker is the production TickerFunc.
func NewTimeTicker(d time.Duration) Ticker {
	return timeTicker{t: time.NewTicker(d)}
}

// persistTimeout bounds a recorder call that outlives the participant's connection.
const persistTimeout = 30 * time.Second

// RunnerConfig wires a SessionRunner.
type RunnerConfig struct {
	SessionID string
	QuizID    int64
	Fetcher   QuizFetcher
	Submitter AttemptSubmitter
	Log       logrus.FieldLogger
	// Tick is the countdown interval; one tick is one second of quiz time.
	Tick      time.Duration
	NewTicker TickerFunc
	Now       func() time.Time
	// OnChange receives a snapshot after every applied event.
	OnChange func(SessionSnapshot)
}

type envelope struct {
	event Event
	reply chan error
}

// SessionRunner drives one AttemptSession from a single goroutine: timer
// ticks, participant input and persistence outcomes are all applied through
// the same event loop, one at a time.
type SessionRunner struct {
	cfg      RunnerConfig
	session  *AttemptSession
	inbox    chan envelope
	done     chan struct{}
	ticker   Ticker
	attempts int
}

func NewSessionRunner(cfg RunnerConfig) *SessionRunner {
	if cfg.Tick <= 0 {
		cfg.Tick = time.Second
	}
	if cfg.NewTicker == nil {
		cfg.NewTicker = NewTimeTicker
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Log == nil {
		cfg.Log = logrus.StandardLogger()
	}
	if cfg.OnChange == nil {
		cfg.OnChange = func(SessionSnapshot) {}
	}
	return &SessionRunner{
		cfg:     cfg,
		session: NewAttemptSession(),
		inbox:   make(chan envelope),
		done:    make(chan struct{}),
	}
}

// Run loads the definition and processes events until ctx is canceled.
func (r *SessionRunner) Run(ctx context.Context) error {
	defer close(r.done)
	defer r.stopTimer()

	r.load(ctx)
	for {
		var ticks <-chan time.Time
		if r.ticker != nil {
			ticks = r.ticker.C()
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticks:
			_ = r.apply(ctx, EventTick{At: r.cfg.Now()})
		case env := <-r.inbox:
			err := r.apply(ctx, env.event)
			if env.reply != nil {
				env.reply <- err
			}
		}
	}
}

// Send applies ev on the runner's loop and waits for the outcome.
func (r *SessionRunner) Send(ctx context.Context, ev Event) error {
	reply := make(chan error, 1)
	select {
	case r.inbox <- envelope{event: ev, reply: reply}:
	case <-r.done:
		return errors.New("session closed")
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Snapshot is only safe to call from OnChange or after Run returned.
func (r *SessionRunner) Snapshot() SessionSnapshot {
	return r.session.State().Snapshot()
}

// Quiz returns the definition snapshot the session runs on, if loaded.
// Same calling rules as Snapshot.
func (r *SessionRunner) Quiz() (domain.Quiz, bool) {
	state := r.session.State()
	if state.Quiz == nil {
		return domain.Quiz{}, false
	}
	return *state.Quiz, true
}

func (r *SessionRunner) load(ctx context.Context) {
	quiz, err := r.cfg.Fetcher.GetQuizDefinition(ctx, r.cfg.QuizID)
	if err != nil {
		r.cfg.Log.WithError(err).WithField("quiz_id", r.cfg.QuizID).Warn("session could not load quiz")
		_ = r.apply(ctx, EventLoadFailed{Err: err})
		return
	}
	_ = r.apply(ctx, EventLoaded{Quiz: quiz, At: r.cfg.Now()})
}

func (r *SessionRunner) apply(ctx context.Context, ev Event) error {
	effects, err := r.session.Dispatch(ev)
	if err != nil {
		return err
	}
	reload := false
	for _, effect := range effects {
		switch e := effect.(type) {
		case EffectStartTimer:
			r.stopTimer()
			r.ticker = r.cfg.NewTicker(r.cfg.Tick)
		case EffectStopTimer:
			r.stopTimer()
		case EffectPersist:
			r.attempts++
			sub := e.Submission
			sub.IdempotencyKey = fmt.Sprintf("%s/%d", r.cfg.SessionID, r.attempts)
			go r.persist(ctx, sub)
		case EffectReload:
			reload = true
		}
	}
	r.cfg.OnChange(r.session.State().Snapshot())
	if reload {
		r.load(ctx)
	}
	return nil
}

func (r *SessionRunner) persist(ctx context.Context, sub Submission) {
	// The participant may disconnect right after submitting; the write still completes.
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	var ev Event
	result, err := r.cfg.Submitter.RecordAttempt(pctx, sub)
	if err != nil {
		r.cfg.Log.WithError(err).WithFields(logrus.Fields{
			"session_id": r.cfg.SessionID,
			"quiz_id":    sub.QuizID,
		}).Error("session submission failed")
		ev = EventPersistFailed{Err: err}
	} else {
		ev = EventPersisted{AttemptID: result.AttemptID, Score: result.Score}
	}

	select {
	case r.inbox <- envelope{event: ev}:
	case <-r.done:
	}
}

func (r *SessionRunner) stopTimer() {
	if r.ticker != nil {
		r.ticker.Stop()
		r.ticker = nil
	}
}
