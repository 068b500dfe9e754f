// Package remote talks to the authoritative attempt service.
package remote

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/verte-zerg/tuiexam/internal/model"
	"github.com/verte-zerg/tuiexam/internal/response"
)

// ErrNotFound is matched by APIError values with a 404 status.
var ErrNotFound = errors.New("attempt not found")

// AttemptRequest selects the attempt to load. A non-empty AttemptID fetches
// that attempt; otherwise the service starts or resumes the caller's attempt
// for Year and Shift.
type AttemptRequest struct {
	AttemptID string
	Year      int
	Shift     string
}

// Service is the remote attempt collaborator. SubmitAttempt must be safe to
// call more than once for the same attempt.
type Service interface {
	FetchAttempt(ctx context.Context, req AttemptRequest) (model.Paper, error)
	CheckpointAttempt(ctx context.Context, attemptID string, responses model.Responses) error
	SubmitAttempt(ctx context.Context, attemptID string, entries []model.ResponseEntry) (model.SubmitResult, error)
}

// APIError is a non-2xx reply from the service.
type APIError struct {
	Status  int
	Code    response.ErrCode
	Message string
	Fields  map[string]string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("attempt service returned %d", e.Status)
	}
	return fmt.Sprintf("attempt service returned %d %s: %s", e.Status, e.Code, e.Message)
}

// Is lets errors.Is(err, ErrNotFound) match 404 replies.
func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.Status == http.StatusNotFound
}
