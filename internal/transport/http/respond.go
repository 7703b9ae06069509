package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/itsrohit2904/Quiz-App/internal/domain"
	"github.com/sirupsen/logrus"
)

type errorBody struct {
	Error string `json:"error"`
}

type messageBody struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps the domain error taxonomy onto HTTP status codes.
// InvalidInput is checked first: a foreign question id is both invalid
// input and a missing question.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrSubmitNotReady),
		errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusBadRequest
	case domain.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrUnauthorized), errors.Is(err, domain.ErrNotAvailable):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrDuplicateSubmission):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, log logrus.FieldLogger, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.WithError(err).Error("request failed")
		msg := "internal server error"
		if errors.Is(err, domain.ErrPersistence) {
			msg = domain.ErrPersistence.Error()
		}
		writeJSON(w, status, errorBody{Error: msg})
		return
	}
	writeJSON(w, status, errorBody{Error: err.Error()})
}
