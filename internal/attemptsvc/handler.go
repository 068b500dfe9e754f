package attemptsvc

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/verte-zerg/tuiexam/internal/model"
	"github.com/verte-zerg/tuiexam/internal/response"
	"github.com/verte-zerg/tuiexam/internal/validator"
)

// Handler serves the attempt endpoints.
type Handler struct {
	svc *Service
	log zerolog.Logger
}

// NewHandler creates a Handler.
func NewHandler(svc *Service, log zerolog.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

// Health godoc
// GET /health
func (h *Handler) Health(c *gin.Context) {
	response.Success(c, http.StatusOK, gin.H{"status": "ok", "attempts": h.svc.Len()})
}

// StartAttempt godoc
// POST /api/attempts
// Starts, or resumes, the caller's attempt for an exam year and shift.
func (h *Handler) StartAttempt(c *gin.Context) {
	var req model.StartAttemptRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	paper, created := h.svc.Start(ownerOf(c), req.ExamYear, req.ExamShift)
	status := http.StatusOK
	if created {
		status = http.StatusCreated
		h.log.Info().
			Str("attempt_id", paper.Attempt.ID).
			Int("exam_year", req.ExamYear).
			Str("exam_shift", req.ExamShift).
			Msg("attempt started")
	}
	response.Success(c, status, paper)
}

// GetAttempt godoc
// GET /api/attempts/:id
func (h *Handler) GetAttempt(c *gin.Context) {
	id, ok := attemptID(c)
	if !ok {
		return
	}
	paper, err := h.svc.Get(ownerOf(c), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, paper)
}

// CheckpointAttempt godoc
// PATCH /api/attempts/:id
// Replaces the stored responses with the full map sent by the client.
func (h *Handler) CheckpointAttempt(c *gin.Context) {
	id, ok := attemptID(c)
	if !ok {
		return
	}
	var req model.CheckpointRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	saved, err := h.svc.Checkpoint(ownerOf(c), id, model.Responses(req.Responses))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"attemptId": id, "saved": saved})
}

// SubmitAttempt godoc
// POST /api/attempts/:id/submit
// Idempotent: a repeated submit returns the first result.
func (h *Handler) SubmitAttempt(c *gin.Context) {
	id, ok := attemptID(c)
	if !ok {
		return
	}
	var req model.SubmitRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	entries := make([]model.ResponseEntry, 0, len(req.Responses))
	for _, e := range req.Responses {
		entries = append(entries, model.ResponseEntry{QuestionID: e.QuestionID, Answer: e.Answer})
	}
	result, err := h.svc.Submit(ownerOf(c), id, entries)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.log.Info().
		Str("attempt_id", id).
		Int("answered", result.Answered).
		Int("total", result.Total).
		Msg("attempt submitted")
	response.Success(c, http.StatusOK, result)
}

func (h *Handler) fail(c *gin.Context, err error) {
	var uerr *UnknownQuestionError
	switch {
	case errors.Is(err, ErrNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	case errors.Is(err, ErrSubmitted):
		response.Fail(c, http.StatusConflict, response.ErrAttemptSubmitted)
	case errors.As(err, &uerr):
		response.FailWithFields(c, http.StatusUnprocessableEntity, response.ErrUnknownQuestion,
			map[string]string{"questionId": uerr.QuestionID})
	default:
		h.log.Error().Err(err).Msg("attempt request failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}

func attemptID(c *gin.Context) (string, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return "", false
	}
	return id.String(), true
}
