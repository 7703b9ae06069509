package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/itsrohit2904/Quiz-App/internal/app"
	"github.com/itsrohit2904/Quiz-App/internal/domain"
	"github.com/itsrohit2904/Quiz-App/internal/infra/memory"
	"github.com/sirupsen/logrus"
)

const (
	testSecret = "test-secret"
	ownerID    = 7
)

type testEnv struct {
	server  *httptest.Server
	store   *memory.Store
	service *app.QuizService
	auth    *Authenticator
	quizID  int64
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)

	store := memory.NewStore()
	service := app.NewQuizService(
		memory.NewQuizRepository(store, time.Minute),
		store, store,
		memory.NewSessionStore(),
		log,
	)
	recorder := app.NewAttemptRecorder(store, memory.NewIdempotencyStore(time.Hour), log)
	auth := NewAuthenticator(testSecret)

	quizID, err := service.CreateQuiz(context.Background(), ownerID, sampleDraft())
	if err != nil {
		t.Fatalf("seed quiz: %v", err)
	}

	router := NewRouter(RouterConfig{
		Service:  service,
		Recorder: recorder,
		Auth:     auth,
		Attempts: NewWSHandler(service, recorder, log, 5*time.Millisecond),
		Log:      log,
	})
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return &testEnv{server: server, store: store, service: service, auth: auth, quizID: quizID}
}

func sampleDraft() domain.QuizDraft {
	return domain.QuizDraft{
		Title:    "Capitals",
		Settings: domain.Settings{AllowRetake: true},
		Questions: []domain.Question{
			{Type: domain.QuestionMultipleChoice, Text: "Capital of France?", Options: []string{"Paris", "Lyon"}, CorrectAnswer: "Paris"},
			{Type: domain.QuestionTrueFalse, Text: "The sky is blue.", CorrectAnswer: "True"},
		},
		ParticipantFields: []domain.ParticipantField{
			{Label: "Name", Type: domain.FieldText, Required: true},
			{Label: "Email", Type: domain.FieldEmail, Required: true},
		},
	}
}

func (e *testEnv) token(t *testing.T, userID int64) string {
	t.Helper()
	token, err := e.auth.Sign(userID, time.Hour)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, e.server.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	return resp, raw
}
