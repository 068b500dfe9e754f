// Package attemptsvc is a small in-memory attempt service used for practice
// runs and tests. It speaks the same JSON API the remote client expects.
package attemptsvc

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/verte-zerg/tuiexam/internal/clock"
	"github.com/verte-zerg/tuiexam/internal/generator"
	"github.com/verte-zerg/tuiexam/internal/model"
)

var (
	ErrNotFound  = errors.New("attempt not found")
	ErrSubmitted = errors.New("attempt already submitted")
)

// UnknownQuestionError names a response key that is not in the paper.
type UnknownQuestionError struct {
	QuestionID string
}

func (e *UnknownQuestionError) Error() string {
	return fmt.Sprintf("unknown question %q", e.QuestionID)
}

// PaperConfig shapes generated papers.
type PaperConfig struct {
	Subjects    []string
	PerSubject  int
	OptionCount int
	Duration    time.Duration
}

// DefaultPaperConfig is three 30-question blocks, four options, three hours.
var DefaultPaperConfig = PaperConfig{
	Subjects:    []string{"Mathematics", "Physics", "Chemistry"},
	PerSubject:  30,
	OptionCount: 4,
	Duration:    10800 * time.Second,
}

type attempt struct {
	owner     string
	meta      model.Attempt
	questions []model.Question
	known     map[string]struct{}
	responses model.Responses
	result    *model.SubmitResult
}

// Service holds attempts in memory.
type Service struct {
	cfg   PaperConfig
	gen   *generator.Generator
	clock clock.Clock

	mu       sync.RWMutex
	attempts map[string]*attempt
	open     map[string]string
}

// NewService returns an empty service. Zero config fields use
// DefaultPaperConfig; a nil generator or clock uses the defaults.
func NewService(cfg PaperConfig, gen *generator.Generator, clk clock.Clock) *Service {
	if len(cfg.Subjects) == 0 {
		cfg.Subjects = DefaultPaperConfig.Subjects
	}
	if cfg.PerSubject <= 0 {
		cfg.PerSubject = DefaultPaperConfig.PerSubject
	}
	if cfg.OptionCount <= 0 {
		cfg.OptionCount = DefaultPaperConfig.OptionCount
	}
	if cfg.Duration <= 0 {
		cfg.Duration = DefaultPaperConfig.Duration
	}
	if gen == nil {
		gen = generator.New()
	}
	if clk == nil {
		clk = clock.System{}
	}
	return &Service{
		cfg:      cfg,
		gen:      gen,
		clock:    clk,
		attempts: make(map[string]*attempt),
		open:     make(map[string]string),
	}
}

func openKey(owner string, year int, shift string) string {
	return fmt.Sprintf("%s|%d|%s", owner, year, shift)
}

// Start returns the owner's unsubmitted attempt for year and shift, creating
// one if needed. The bool reports whether a new attempt was created.
func (s *Service) Start(owner string, year int, shift string) (model.Paper, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := openKey(owner, year, shift)
	if id, ok := s.open[key]; ok {
		if a := s.attempts[id]; a != nil && a.result == nil {
			return s.paperLocked(a), false
		}
	}

	questions := s.gen.Paper(s.cfg.Subjects, s.cfg.PerSubject, s.cfg.OptionCount)
	a := &attempt{
		owner: owner,
		meta: model.Attempt{
			ID:        uuid.New().String(),
			Year:      year,
			Shift:     shift,
			StartedAt: s.clock.Now().UTC(),
			Duration:  s.cfg.Duration,
		},
		questions: questions,
		known:     make(map[string]struct{}, len(questions)),
		responses: model.Responses{},
	}
	for _, q := range questions {
		a.known[q.ID] = struct{}{}
	}
	s.attempts[a.meta.ID] = a
	s.open[key] = a.meta.ID
	return s.paperLocked(a), true
}

// Get returns an attempt with its last checkpointed responses.
func (s *Service) Get(owner, id string) (model.Paper, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, err := s.lookupLocked(owner, id)
	if err != nil {
		return model.Paper{}, err
	}
	return s.paperLocked(a), nil
}

// Checkpoint replaces the stored response map.
func (s *Service) Checkpoint(owner, id string, responses model.Responses) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, err := s.lookupLocked(owner, id)
	if err != nil {
		return 0, err
	}
	if a.result != nil {
		return 0, ErrSubmitted
	}
	for qid := range responses {
		if _, ok := a.known[qid]; !ok {
			return 0, &UnknownQuestionError{QuestionID: qid}
		}
	}
	a.responses = responses.Clone()
	return len(a.responses), nil
}

// Submit finalizes the attempt. Repeating it returns the first result.
func (s *Service) Submit(owner, id string, entries []model.ResponseEntry) (model.SubmitResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, err := s.lookupLocked(owner, id)
	if err != nil {
		return model.SubmitResult{}, err
	}
	if a.result != nil {
		return *a.result, nil
	}
	for _, e := range entries {
		if _, ok := a.known[e.QuestionID]; !ok {
			return model.SubmitResult{}, &UnknownQuestionError{QuestionID: e.QuestionID}
		}
	}
	a.responses = model.ResponsesFromEntries(entries)
	a.result = &model.SubmitResult{
		AttemptID:   id,
		Status:      model.SubmitStatusSubmitted,
		Answered:    len(a.responses),
		Total:       len(a.questions),
		SubmittedAt: s.clock.Now().UTC(),
	}
	delete(s.open, openKey(a.owner, a.meta.Year, a.meta.Shift))
	return *a.result, nil
}

// Len returns the number of attempts held.
func (s *Service) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.attempts)
}

// lookupLocked hides other owners' attempts behind ErrNotFound.
func (s *Service) lookupLocked(owner, id string) (*attempt, error) {
	a, ok := s.attempts[id]
	if !ok || a.owner != owner {
		return nil, ErrNotFound
	}
	return a, nil
}

func (s *Service) paperLocked(a *attempt) model.Paper {
	return model.Paper{
		Attempt:         a.meta,
		DurationSeconds: int(a.meta.Duration / time.Second),
		Questions:       append([]model.Question(nil), a.questions...),
		Responses:       a.responses.Entries(),
	}
}
