package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/itsrohit2904/Quiz-App/internal/app"
	"github.com/itsrohit2904/Quiz-App/internal/domain"
	"github.com/sirupsen/logrus"
)

const maxBodyBytes = 1 << 20

// QuizHandler serves the REST routes.
type QuizHandler struct {
	service  *app.QuizService
	recorder *app.AttemptRecorder
	log      logrus.FieldLogger
}

func (h *QuizHandler) TakeQuiz(w http.ResponseWriter, r *http.Request) {
	quizID, ok := pathID(w, r, "quizId")
	if !ok {
		return
	}
	view, err := h.service.TakeQuiz(r.Context(), quizID, time.Now())
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type submitRequest struct {
	ParticipantName  string                      `json:"participantName"`
	ParticipantEmail string                      `json:"participantEmail"`
	ParticipantInfo  map[string]domain.TextValue `json:"participantInfo"`
	Score            *int                        `json:"score"`
	Answers          json.RawMessage             `json:"answers"`
	IdempotencyKey   string                      `json:"idempotencyKey"`
}

type answerEntry struct {
	QuestionID        domain.TextValue  `json:"questionId"`
	ParticipantAnswer *domain.TextValue `json:"participantAnswer"`
}

func (h *QuizHandler) Submit(w http.ResponseWriter, r *http.Request) {
	quizID, ok := pathID(w, r, "quizId")
	if !ok {
		return
	}
	var req submitRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, h.log, fmt.Errorf("%w: malformed request body", domain.ErrInvalidInput))
		return
	}
	sub, err := req.submission(quizID)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	result, err := h.recorder.RecordAttempt(r.Context(), sub)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	status := http.StatusCreated
	if result.Replayed {
		status = http.StatusOK
	}
	writeJSON(w, status, result)
}

// submission converts the wire shape. Malformed answer entries are kept as
// invalid submissions so the recorder rejects them by index.
func (req submitRequest) submission(quizID int64) (app.Submission, error) {
	var raw []json.RawMessage
	if len(req.Answers) == 0 || json.Unmarshal(req.Answers, &raw) != nil {
		return app.Submission{}, fmt.Errorf("%w: answers must be an array", domain.ErrInvalidInput)
	}

	answers := make([]domain.AnswerSubmission, len(raw))
	for i, item := range raw {
		var entry answerEntry
		if err := json.Unmarshal(item, &entry); err != nil {
			continue
		}
		id, err := strconv.ParseInt(strings.TrimSpace(string(entry.QuestionID)), 10, 64)
		if err != nil {
			continue
		}
		answers[i].QuestionID = id
		if entry.ParticipantAnswer != nil {
			v := string(*entry.ParticipantAnswer)
			answers[i].Value = &v
		}
	}

	info := domain.ParticipantInfo{Name: req.ParticipantName, Email: req.ParticipantEmail}
	if len(req.ParticipantInfo) > 0 {
		info.Fields = make(map[string]string, len(req.ParticipantInfo))
		for k, v := range req.ParticipantInfo {
			info.Fields[strings.ToLower(strings.TrimSpace(k))] = string(v)
		}
		if info.Name == "" {
			info.Name = info.Fields["name"]
		}
		if info.Email == "" {
			info.Email = info.Fields["email"]
		}
	}

	return app.Submission{
		QuizID:         quizID,
		Participant:    info,
		ClientScore:    req.Score,
		Answers:        answers,
		IdempotencyKey: req.IdempotencyKey,
	}, nil
}

type createdBody struct {
	ID int64 `json:"id"`
}

func (h *QuizHandler) CreateQuiz(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserID(r.Context())
	var draft domain.QuizDraft
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&draft); err != nil {
		writeError(w, h.log, fmt.Errorf("%w: malformed quiz", domain.ErrInvalidInput))
		return
	}
	id, err := h.service.CreateQuiz(r.Context(), userID, draft)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, createdBody{ID: id})
}

func (h *QuizHandler) UpdateQuiz(w http.ResponseWriter, r *http.Request) {
	quizID, ok := pathID(w, r, "quizId")
	if !ok {
		return
	}
	userID, _ := UserID(r.Context())
	var draft domain.QuizDraft
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&draft); err != nil {
		writeError(w, h.log, fmt.Errorf("%w: malformed quiz", domain.ErrInvalidInput))
		return
	}
	if err := h.service.UpdateQuiz(r.Context(), userID, quizID, draft); err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, messageBody{Message: "quiz updated"})
}

// PreviewQuiz serves the author's view of a quiz, ignoring its window.
func (h *QuizHandler) PreviewQuiz(w http.ResponseWriter, r *http.Request) {
	quizID, ok := pathID(w, r, "quizId")
	if !ok {
		return
	}
	userID, _ := UserID(r.Context())
	view, err := h.service.PreviewQuiz(r.Context(), userID, quizID, time.Now())
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *QuizHandler) ListQuizzes(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserID(r.Context())
	quizzes, err := h.service.ListQuizzes(r.Context(), userID)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, quizzes)
}

func (h *QuizHandler) DeleteQuiz(w http.ResponseWriter, r *http.Request) {
	quizID, ok := pathID(w, r, "quizId")
	if !ok {
		return
	}
	userID, _ := UserID(r.Context())
	if err := h.service.DeleteQuiz(r.Context(), userID, quizID); err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, messageBody{Message: "quiz deleted"})
}

type sessionsBody struct {
	QuizID         int64 `json:"quizId"`
	ActiveSessions int   `json:"activeSessions"`
}

func (h *QuizHandler) ActiveSessions(w http.ResponseWriter, r *http.Request) {
	quizID, ok := pathID(w, r, "quizId")
	if !ok {
		return
	}
	userID, _ := UserID(r.Context())
	n, err := h.service.ActiveSessions(r.Context(), userID, quizID)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionsBody{QuizID: quizID, ActiveSessions: n})
}

func (h *QuizHandler) ListResults(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserID(r.Context())
	results, err := h.service.ListResults(r.Context(), userID)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (h *QuizHandler) ResultAnswers(w http.ResponseWriter, r *http.Request) {
	resultID, ok := pathID(w, r, "resultId")
	if !ok {
		return
	}
	userID, _ := UserID(r.Context())
	answers, err := h.service.ResultAnswers(r.Context(), userID, resultID)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, answers)
}

func (h *QuizHandler) DeleteResult(w http.ResponseWriter, r *http.Request) {
	resultID, ok := pathID(w, r, "resultId")
	if !ok {
		return
	}
	userID, _ := UserID(r.Context())
	if err := h.service.DeleteResult(r.Context(), userID, resultID); err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, messageBody{Message: "quiz result deleted"})
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusNotFound, errorBody{Error: name + " not found"})
		return 0, false
	}
	return id, true
}
