package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/itsrohit2904/Quiz-App/internal/app"
	"github.com/itsrohit2904/Quiz-App/internal/domain"
	"github.com/sirupsen/logrus"
)

// WSHandler hosts one AttemptSession per websocket connection.
type WSHandler struct {
	service   *app.QuizService
	submitter app.AttemptSubmitter
	log       logrus.FieldLogger
	tick      time.Duration
	upgrader  websocket.Upgrader
}

func NewWSHandler(service *app.QuizService, submitter app.AttemptSubmitter, log logrus.FieldLogger, tick time.Duration) *WSHandler {
	return &WSHandler{
		service:   service,
		submitter: submitter,
		log:       log,
		tick:      tick,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type participantPayload struct {
	Key   string           `json:"key"`
	Value domain.TextValue `json:"value"`
}

type answerPayload struct {
	QuestionID int64            `json:"questionId"`
	Value      domain.TextValue `json:"value"`
}

type tickPayload struct {
	Remaining int `json:"remaining"`
}

type outboundMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades the request and runs an attempt session until the
// participant disconnects.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	quizID, ok := pathID(w, r, "quizId")
	if !ok {
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("ws upgrade failed")
		return
	}
	defer conn.Close()

	sessionID := uuid.NewString()
	log := h.log.WithFields(logrus.Fields{"quiz_id": quizID, "session_id": sessionID})
	sessions := h.service.Sessions()
	if err := sessions.Register(r.Context(), quizID, sessionID); err != nil {
		log.WithError(err).Warn("register session")
	}
	defer sessions.Unregister(context.Background(), quizID, sessionID)

	send := make(chan outboundMessage, 16)
	writerDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.WithError(err).Debug("ws write error")
				return
			}
		}
	}()

	push := func(msg outboundMessage) {
		select {
		case send <- msg:
		case <-writerDone:
		}
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	var (
		runner *app.SessionRunner
		prev   app.SessionSnapshot
		seen   bool
	)
	// onChange runs on the runner's goroutine only.
	onChange := func(snap app.SessionSnapshot) {
		if seen && isTick(prev, snap) {
			push(outboundMessage{Type: "tick", Payload: tickPayload{Remaining: snap.Remaining}})
			prev = snap
			return
		}
		if (!seen || prev.Status == app.StatusNotStarted) && snap.Status != app.StatusNotStarted {
			if quiz, ok := runner.Quiz(); ok {
				push(outboundMessage{Type: "quiz", Payload: quiz})
			}
		}
		push(outboundMessage{Type: "state", Payload: snap})
		prev, seen = snap, true
	}
	runner = app.NewSessionRunner(app.RunnerConfig{
		SessionID: sessionID,
		QuizID:    quizID,
		Fetcher:   h.service,
		Submitter: h.submitter,
		Log:       log,
		Tick:      h.tick,
		OnChange:  onChange,
	})

	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		_ = runner.Run(ctx)
	}()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		ev, err := decodeEvent(inbound)
		if err == nil {
			err = runner.Send(ctx, ev)
		}
		if err != nil {
			push(outboundMessage{Type: "error", Payload: errorPayload{Message: err.Error()}})
		}
	}

	cancel()
	<-runDone
	close(send)
	<-writerDone
}

func decodeEvent(msg inboundMessage) (app.Event, error) {
	switch msg.Type {
	case "participant":
		var p participantPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return nil, domain.ErrInvalidInput
		}
		return app.EventParticipantField{Key: p.Key, Value: string(p.Value)}, nil
	case "answer":
		var p answerPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil || p.QuestionID <= 0 {
			return nil, domain.ErrInvalidInput
		}
		return app.EventAnswer{QuestionID: p.QuestionID, Value: string(p.Value)}, nil
	case "submit":
		return app.EventSubmit{At: time.Now()}, nil
	case "retake":
		return app.EventRetake{}, nil
	default:
		return nil, errUnsupportedMessage
	}
}

var errUnsupportedMessage = errors.New("unsupported message type")

// isTick reports whether next differs from prev only by one countdown step.
func isTick(prev, next app.SessionSnapshot) bool {
	return prev.Status == app.StatusAnswering &&
		next.Status == app.StatusAnswering &&
		next.Remaining != prev.Remaining &&
		next.Answered == prev.Answered &&
		len(next.Participant) == len(prev.Participant)
}
