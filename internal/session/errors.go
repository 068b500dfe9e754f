package session

import (
	"errors"
	"fmt"
)

var (
	// ErrNotActive is returned for operations that need a loaded, active
	// session.
	ErrNotActive = errors.New("session is not active")
	// ErrSubmitInFlight is returned when Submit is called while another
	// submission for the same session has not finished.
	ErrSubmitInFlight = errors.New("submission already in flight")
	// ErrClosed is returned once the session has been torn down.
	ErrClosed = errors.New("session closed")
	// ErrAlreadyLoaded is returned by a second Load call.
	ErrAlreadyLoaded = errors.New("session already loaded")
	// ErrInvalidAnswer is returned when an answer cannot be serialized.
	ErrInvalidAnswer = errors.New("answer is not serializable")
)

// SessionLoadError means the paper or prior responses could not be loaded.
// The session is unusable; the caller should offer a retry via a new
// session.
type SessionLoadError struct {
	Reason string
	Err    error
}

func (e *SessionLoadError) Error() string {
	if e.Err == nil {
		return "failed to load session: " + e.Reason
	}
	if e.Reason == "" {
		return fmt.Sprintf("failed to load session: %v", e.Err)
	}
	return fmt.Sprintf("failed to load session: %s: %v", e.Reason, e.Err)
}

func (e *SessionLoadError) Unwrap() error { return e.Err }

// UnknownQuestionError is returned when an answer names a question that is
// not part of the loaded paper. The response map is left untouched.
type UnknownQuestionError struct {
	QuestionID string
}

func (e *UnknownQuestionError) Error() string {
	return fmt.Sprintf("unknown question %q", e.QuestionID)
}

// CheckpointError wraps a failed periodic push. It is transient.
type CheckpointError struct {
	Err error
}

func (e *CheckpointError) Error() string {
	return fmt.Sprintf("checkpoint failed: %v", e.Err)
}

func (e *CheckpointError) Unwrap() error { return e.Err }

// SubmissionError wraps a failed submission. The session stays resumable
// and the local snapshot is kept.
type SubmissionError struct {
	Err error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("submission failed: %v", e.Err)
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// StorageError wraps a local snapshot failure. It is logged, never returned
// from RecordAnswer.
type StorageError struct {
	Op  string
	Key string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("snapshot %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }
