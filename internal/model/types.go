// Package model defines shared data structures.
package model

import (
	"encoding/json"
	"sort"
	"time"
)

// Attempt identifies one timed instance of an exam.
type Attempt struct {
	ID        string        `json:"attemptId" validate:"required"`
	Year      int           `json:"examYear"`
	Shift     string        `json:"examShift"`
	StartedAt time.Time     `json:"startedAt"`
	Duration  time.Duration `json:"-"`
}

// Question is immutable once loaded. Its position in the paper defines the
// navigation index.
type Question struct {
	ID      string   `json:"id" validate:"required"`
	Subject string   `json:"subject" validate:"required"`
	Prompt  string   `json:"prompt"`
	Options []string `json:"options,omitempty"`
}

// ResponseEntry is a single (question, answer) pair as sent on the wire.
type ResponseEntry struct {
	QuestionID string          `json:"questionId" validate:"required"`
	Answer     json.RawMessage `json:"answer"`
}

// Responses maps question id to the current answer. Unanswered questions are
// absent.
type Responses map[string]json.RawMessage

// Clone returns a copy that shares no map storage with r.
func (r Responses) Clone() Responses {
	out := make(Responses, len(r))
	for k, v := range r {
		out[k] = append(json.RawMessage(nil), v...)
	}
	return out
}

// Entries returns the responses as pairs ordered by question id.
func (r Responses) Entries() []ResponseEntry {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]ResponseEntry, 0, len(keys))
	for _, k := range keys {
		out = append(out, ResponseEntry{QuestionID: k, Answer: r[k]})
	}
	return out
}

// ResponsesFromEntries folds pairs into a map; later entries win.
func ResponsesFromEntries(entries []ResponseEntry) Responses {
	out := make(Responses, len(entries))
	for _, e := range entries {
		out[e.QuestionID] = e.Answer
	}
	return out
}

// Paper is what the remote service returns when an attempt is started or
// fetched.
type Paper struct {
	Attempt         Attempt         `json:"attempt"`
	DurationSeconds int             `json:"durationSeconds"`
	Questions       []Question      `json:"questions" validate:"dive"`
	Responses       []ResponseEntry `json:"responses" validate:"dive"`
}

// OptionLetters labels multiple-choice options in order. A choice answer is
// recorded as its letter.
const OptionLetters = "ABCDE"

// SubjectRange is an inclusive index range of one subject block.
type SubjectRange struct {
	Subject string
	Start   int
	End     int
}

// Len returns the number of questions in the range.
func (r SubjectRange) Len() int {
	return r.End - r.Start + 1
}

// SubmitStatus reports the server-side state of a submission.
type SubmitStatus string

const (
	SubmitStatusSubmitted SubmitStatus = "SUBMITTED"
)

// SubmitResult is returned by the submission endpoint.
type SubmitResult struct {
	AttemptID   string       `json:"attemptId" validate:"required"`
	Status      SubmitStatus `json:"status"`
	Answered    int          `json:"answered"`
	Total       int          `json:"total"`
	SubmittedAt time.Time    `json:"submittedAt"`
}

// Submission is a locally recorded finished attempt.
type Submission struct {
	AttemptID   string
	Year        int
	Shift       string
	StartedAt   time.Time
	SubmittedAt time.Time
	Answered    int
	Total       int
	TimedOut    bool
}
