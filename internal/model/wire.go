package model

import "encoding/json"

// StartAttemptRequest starts, or resumes, the caller's attempt for an exam.
type StartAttemptRequest struct {
	ExamYear  int    `json:"examYear" binding:"required,gte=1900,lte=2999"`
	ExamShift string `json:"examShift" binding:"required,max=64"`
}

// CheckpointRequest carries the full current response map.
type CheckpointRequest struct {
	Responses map[string]json.RawMessage `json:"responses" binding:"required"`
}

// SubmitEntry is a submission pair as validated by the server.
type SubmitEntry struct {
	QuestionID string          `json:"questionId" binding:"required"`
	Answer     json.RawMessage `json:"answer"`
}

// SubmitRequest is the final submission payload.
type SubmitRequest struct {
	Responses []SubmitEntry `json:"responses" binding:"dive"`
}
