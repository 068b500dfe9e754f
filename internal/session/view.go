package session

import (
	"encoding/json"
	"time"

	"github.com/verte-zerg/tuiexam/internal/model"
	"github.com/verte-zerg/tuiexam/internal/navigation"
)

// Position is a read-only view of the navigation cursor.
type Position struct {
	Index    int
	Count    int
	Subject  string
	Question model.Question
}

// NavigationView is the cursor position together with the subject table.
type NavigationView struct {
	Position
	Ranges []model.SubjectRange
}

// GoTo moves to index, clamped to the paper.
func (s *Session) GoTo(index int) Position {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cursor.GoTo(index)
	return s.positionLocked()
}

// Step moves one question forward or backward. At either end it is a no-op.
func (s *Session) Step(dir navigation.Direction) Position {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cursor.Step(dir)
	return s.positionLocked()
}

// JumpToSubject moves to the first question of subject.
func (s *Session) JumpToSubject(subject string) (Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.cursor.JumpToSubject(subject)
	return s.positionLocked(), err
}

// NextSubject jumps to the block after the current one, wrapping around.
func (s *Session) NextSubject() Position {
	s.mu.Lock()
	defer s.mu.Unlock()
	if subject, ok := s.cursor.NextSubject(); ok {
		if _, err := s.cursor.JumpToSubject(subject); err != nil {
			s.log.Debug().Err(err).Str("subject", subject).Msg("subject jump ignored")
		}
	}
	return s.positionLocked()
}

// Current returns the cursor position.
func (s *Session) Current() Position {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.positionLocked()
}

func (s *Session) positionLocked() Position {
	p := Position{Index: s.cursor.Index(), Count: s.cursor.Count()}
	if p.Index < len(s.questions) {
		p.Question = s.questions[p.Index]
	}
	p.Subject, _ = s.cursor.SubjectAt(p.Index)
	return p
}

// Navigation returns the cursor position and subject table in one read.
func (s *Session) Navigation() NavigationView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return NavigationView{Position: s.positionLocked(), Ranges: s.cursor.Ranges()}
}

// Ranges returns the subject table of the loaded paper.
func (s *Session) Ranges() []model.SubjectRange {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor.Ranges()
}

// Questions returns the loaded paper.
func (s *Session) Questions() []model.Question {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Question(nil), s.questions...)
}

// Attempt returns the loaded attempt.
func (s *Session) Attempt() model.Attempt {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempt
}

// Responses returns a copy of the current answers.
func (s *Session) Responses() model.Responses {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.responses.Clone()
}

// Answer returns the recorded answer for questionID.
func (s *Session) Answer(questionID string) (json.RawMessage, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, ok := s.responses[questionID]
	if !ok {
		return nil, false
	}
	return append(json.RawMessage(nil), raw...), true
}

// State returns the lifecycle phase.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Result returns the accepted submission, if any.
func (s *Session) Result() (model.SubmitResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result == nil {
		return model.SubmitResult{}, false
	}
	return *s.result, true
}

// Remaining returns the time left on the deadline timer, zero before load.
func (s *Session) Remaining() time.Duration {
	s.mu.Lock()
	timer := s.timer
	s.mu.Unlock()
	if timer == nil {
		return 0
	}
	return timer.Remaining()
}

// Expired reports whether the deadline has passed.
func (s *Session) Expired() bool {
	s.mu.Lock()
	timer := s.timer
	s.mu.Unlock()
	return timer != nil && timer.Expired()
}
