package http

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/itsrohit2904/Quiz-App/internal/app"
	"github.com/sirupsen/logrus"
)

// RouterConfig wires the HTTP surface.
type RouterConfig struct {
	Service  *app.QuizService
	Recorder *app.AttemptRecorder
	Auth     *Authenticator
	Attempts *WSHandler
	Log      logrus.FieldLogger
}

// NewRouter registers the participant routes (public) and the author
// routes (token protected).
func NewRouter(cfg RouterConfig) *mux.Router {
	h := &QuizHandler{service: cfg.Service, recorder: cfg.Recorder, log: cfg.Log}

	r := mux.NewRouter()
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)

	r.HandleFunc("/quizzes/{quizId:[0-9]+}", h.TakeQuiz).Methods(http.MethodGet)
	r.HandleFunc("/quizzes/{quizId:[0-9]+}/submit", h.Submit).Methods(http.MethodPost)
	r.HandleFunc("/quizzes/{quizId:[0-9]+}/attempt", cfg.Attempts.ServeWS).Methods(http.MethodGet)

	authed := r.NewRoute().Subrouter()
	authed.Use(cfg.Auth.Middleware)
	authed.HandleFunc("/quizzes", h.CreateQuiz).Methods(http.MethodPost)
	authed.HandleFunc("/quizzes", h.ListQuizzes).Methods(http.MethodGet)
	authed.HandleFunc("/quizzes/{quizId:[0-9]+}", h.UpdateQuiz).Methods(http.MethodPut)
	authed.HandleFunc("/quizzes/{quizId:[0-9]+}", h.DeleteQuiz).Methods(http.MethodDelete)
	authed.HandleFunc("/preview/{quizId:[0-9]+}", h.PreviewQuiz).Methods(http.MethodGet)
	authed.HandleFunc("/quizzes/{quizId:[0-9]+}/sessions", h.ActiveSessions).Methods(http.MethodGet)
	authed.HandleFunc("/quiz-results", h.ListResults).Methods(http.MethodGet)
	authed.HandleFunc("/quiz-results/{resultId:[0-9]+}/answers", h.ResultAnswers).Methods(http.MethodGet)
	authed.HandleFunc("/quiz-results/{resultId:[0-9]+}", h.DeleteResult).Methods(http.MethodDelete)
	return r
}
