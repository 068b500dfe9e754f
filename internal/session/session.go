// Package session reconciles an exam attempt between the remote attempt
// service and a local snapshot store.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/verte-zerg/tuiexam/internal/clock"
	"github.com/verte-zerg/tuiexam/internal/deadline"
	"github.com/verte-zerg/tuiexam/internal/model"
	"github.com/verte-zerg/tuiexam/internal/navigation"
	"github.com/verte-zerg/tuiexam/internal/remote"
	"github.com/verte-zerg/tuiexam/internal/snapshot"
)

const (
	// DefaultDuration is the exam length when neither the options nor the
	// service supply one.
	DefaultDuration = 10800 * time.Second
	// DefaultCheckpointInterval is the period of background pushes.
	DefaultCheckpointInterval = 30 * time.Second
)

// State is the lifecycle phase of a session.
type State int

const (
	StateLoading State = iota
	StateActive
	StateSubmitting
	StateSubmitted
	StateError
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateActive:
		return "active"
	case StateSubmitting:
		return "submitting"
	case StateSubmitted:
		return "submitted"
	case StateError:
		return "error"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Outcome is delivered to Options.OnSubmitted after a successful submission.
type Outcome struct {
	Attempt  model.Attempt
	Result   model.SubmitResult
	TimedOut bool
}

// Options configure a Session. Zero values fall back to defaults.
type Options struct {
	AttemptID   string
	Year        int
	Shift       string
	Credentials remote.Credentials

	// Duration overrides the duration reported by the service.
	Duration           time.Duration
	CheckpointInterval time.Duration
	TimerRefresh       time.Duration

	Scheme navigation.Scheme
	Clock  clock.Clock
	Logger zerolog.Logger

	// OnSubmitted runs once, outside any lock, after the service accepts
	// the submission.
	OnSubmitted func(Outcome)
	// OnAutoSubmitError runs when the submission triggered by the deadline
	// fails.
	OnAutoSubmitError func(error)
}

// LoadResult describes the state reconstructed by Load.
type LoadResult struct {
	Attempt   model.Attempt
	Questions []model.Question
	Responses model.Responses
	// Dropped lists answer keys that matched no question in the paper.
	Dropped []string
	// Restored counts answers taken from the local snapshot.
	Restored int
}

// Session owns one attempt. All methods are safe for concurrent use.
type Session struct {
	remote    remote.Service
	snapshots snapshot.Store
	opts      Options
	clock     clock.Clock
	log       zerolog.Logger

	life       context.Context
	lifeCancel context.CancelFunc
	wg         sync.WaitGroup

	mu         sync.Mutex
	state      State
	loading    bool
	closed     bool
	loadCancel context.CancelFunc
	attempt    model.Attempt
	questions  []model.Question
	known      map[string]struct{}
	responses  model.Responses
	cursor     *navigation.Cursor
	timer      *deadline.Timer
	stopTicker chan struct{}
	submitting bool
	timedOut   bool
	result     *model.SubmitResult

	// timeoutPending records a deadline that fired during a manual submit.
	timeoutPending bool
}

// New returns a session in the loading state. Nothing is fetched until Load.
func New(svc remote.Service, snapshots snapshot.Store, opts Options) *Session {
	if opts.CheckpointInterval <= 0 {
		opts.CheckpointInterval = DefaultCheckpointInterval
	}
	if opts.Scheme == nil {
		opts.Scheme = navigation.DefaultScheme
	}
	if opts.Clock == nil {
		opts.Clock = clock.System{}
	}
	life, cancel := context.WithCancel(context.Background())
	return &Session{
		remote:     svc,
		snapshots:  snapshots,
		opts:       opts,
		clock:      opts.Clock,
		log:        opts.Logger.With().Str("component", "session").Logger(),
		life:       life,
		lifeCancel: cancel,
		state:      StateLoading,
		responses:  model.Responses{},
		cursor:     navigation.NewCursor(0, nil),
	}
}

// Load fetches the paper and server-side responses, merges the local
// snapshot over them, and starts the deadline timer and checkpoint loop.
// Local answers win per question: they are never older than what the
// service last acknowledged.
func (s *Session) Load(ctx context.Context) (LoadResult, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return LoadResult{}, ErrClosed
	}
	if s.loading || s.state != StateLoading {
		s.mu.Unlock()
		return LoadResult{}, ErrAlreadyLoaded
	}
	s.loading = true
	ctx, cancel := context.WithCancel(ctx)
	s.loadCancel = cancel
	s.mu.Unlock()
	defer cancel()

	var paper model.Paper
	err := s.opts.Credentials.Check(s.clock.Now())
	if err == nil {
		paper, err = s.remote.FetchAttempt(ctx, remote.AttemptRequest{
			AttemptID: s.opts.AttemptID,
			Year:      s.opts.Year,
			Shift:     s.opts.Shift,
		})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	s.loadCancel = nil
	if s.closed {
		return LoadResult{}, ErrClosed
	}
	if err != nil {
		return s.failLoadLocked(&SessionLoadError{Err: err})
	}
	if lerr := s.checkPaper(paper); lerr != nil {
		return s.failLoadLocked(lerr)
	}

	s.attempt = paper.Attempt
	s.questions = append([]model.Question(nil), paper.Questions...)
	s.known = make(map[string]struct{}, len(s.questions))
	for _, q := range s.questions {
		s.known[q.ID] = struct{}{}
	}

	local := s.readSnapshotLocked()
	merged, dropped := mergeResponses(paper.Responses, local, s.known)
	restored := 0
	for k := range local {
		if _, ok := s.known[k]; ok {
			restored++
		}
	}
	s.responses = merged
	if len(dropped) > 0 {
		s.log.Warn().
			Str("attempt_id", s.attempt.ID).
			Strs("question_ids", dropped).
			Msg("dropping answers for unknown questions")
	}

	s.cursor = navigation.NewCursor(len(s.questions), s.opts.Scheme.Ranges(s.questions))
	s.state = StateActive
	s.startTimersLocked()

	s.log.Info().
		Str("attempt_id", s.attempt.ID).
		Int("questions", len(s.questions)).
		Int("answered", len(s.responses)).
		Int("restored", restored).
		Dur("remaining", s.timer.Remaining()).
		Msg("session loaded")

	return LoadResult{
		Attempt:   s.attempt,
		Questions: append([]model.Question(nil), s.questions...),
		Responses: s.responses.Clone(),
		Dropped:   dropped,
		Restored:  restored,
	}, nil
}

func (s *Session) failLoadLocked(err *SessionLoadError) (LoadResult, error) {
	s.state = StateError
	s.log.Error().Err(err).Msg("session load failed")
	return LoadResult{}, err
}

func (s *Session) checkPaper(paper model.Paper) *SessionLoadError {
	if paper.Attempt.ID == "" {
		return &SessionLoadError{Reason: "attempt has no id"}
	}
	if s.opts.AttemptID != "" && paper.Attempt.ID != s.opts.AttemptID {
		return &SessionLoadError{Reason: fmt.Sprintf("service returned attempt %q, want %q", paper.Attempt.ID, s.opts.AttemptID)}
	}
	if len(paper.Questions) == 0 {
		return &SessionLoadError{Reason: "paper has no questions"}
	}
	seen := make(map[string]struct{}, len(paper.Questions))
	for _, q := range paper.Questions {
		if q.ID == "" {
			return &SessionLoadError{Reason: "question without id"}
		}
		if _, ok := seen[q.ID]; ok {
			return &SessionLoadError{Reason: fmt.Sprintf("duplicate question %q", q.ID)}
		}
		seen[q.ID] = struct{}{}
	}
	return nil
}

// readSnapshotLocked returns the local answers for the loaded attempt. A
// missing, unreadable or corrupt snapshot yields nil.
func (s *Session) readSnapshotLocked() model.Responses {
	key := snapshot.Key(s.attempt.ID)
	raw, ok, err := s.snapshots.Get(key)
	if err != nil {
		s.log.Warn().Err(&StorageError{Op: "get", Key: key, Err: err}).Msg("ignoring local snapshot")
		return nil
	}
	if !ok {
		return nil
	}
	var local model.Responses
	if err := json.Unmarshal(raw, &local); err != nil {
		s.log.Warn().Err(&StorageError{Op: "decode", Key: key, Err: err}).Msg("ignoring corrupt local snapshot")
		return nil
	}
	return local
}

// mergeResponses overlays local on server, keeping only known questions.
func mergeResponses(server []model.ResponseEntry, local model.Responses, known map[string]struct{}) (model.Responses, []string) {
	merged := make(model.Responses, len(server)+len(local))
	droppedSet := map[string]struct{}{}
	keep := func(id string, answer json.RawMessage) {
		if _, ok := known[id]; !ok {
			droppedSet[id] = struct{}{}
			return
		}
		merged[id] = append(json.RawMessage(nil), answer...)
	}
	for _, e := range server {
		keep(e.QuestionID, e.Answer)
	}
	for id, answer := range local {
		keep(id, answer)
	}
	dropped := make([]string, 0, len(droppedSet))
	for id := range droppedSet {
		dropped = append(dropped, id)
	}
	sort.Strings(dropped)
	return merged, dropped
}

func (s *Session) startTimersLocked() {
	d := s.opts.Duration
	if d <= 0 {
		d = s.attempt.Duration
	}
	if d <= 0 {
		d = DefaultDuration
	}
	s.attempt.Duration = d
	start := s.attempt.StartedAt
	if start.IsZero() {
		start = s.clock.Now()
		s.attempt.StartedAt = start
	}

	s.timer = deadline.New(s.clock, s.opts.TimerRefresh)
	if err := s.timer.StartAt(start, d, s.handleTimeout); err != nil {
		s.log.Error().Err(err).Msg("failed to start deadline timer")
	}

	s.stopTicker = make(chan struct{})
	s.wg.Add(1)
	go s.checkpointLoop(s.stopTicker)
}

func (s *Session) stopTickerLocked() {
	if s.stopTicker != nil {
		close(s.stopTicker)
		s.stopTicker = nil
	}
}

func (s *Session) stopTimersLocked() {
	s.stopTickerLocked()
	if s.timer != nil {
		s.timer.Cancel()
	}
}

func (s *Session) checkpointLoop(stop <-chan struct{}) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.opts.CheckpointInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}
		select {
		case <-stop:
			return
		default:
		}
		ctx, cancel := context.WithTimeout(s.life, s.opts.CheckpointInterval)
		err := s.Checkpoint(ctx)
		cancel()
		if err != nil && !errors.Is(err, ErrNotActive) {
			s.log.Warn().Err(err).Msg("background checkpoint failed")
		}
	}
}

// handleTimeout runs on the deadline timer goroutine.
func (s *Session) handleTimeout() {
	s.mu.Lock()
	s.stopTickerLocked()
	due := !s.closed && (s.state == StateActive || s.state == StateSubmitting)
	id := s.attempt.ID
	s.mu.Unlock()
	if !due {
		return
	}
	s.log.Info().Str("attempt_id", id).Msg("deadline reached, submitting")
	s.autoSubmit()
}

// autoSubmit submits on behalf of the deadline. When a manual submission is
// already in flight the deadline is parked and replayed if that one fails.
func (s *Session) autoSubmit() {
	_, err := s.submit(s.life, true)
	if err == nil || errors.Is(err, ErrSubmitInFlight) || errors.Is(err, ErrClosed) {
		return
	}
	s.log.Error().Err(err).Msg("automatic submission failed")
	if s.opts.OnAutoSubmitError != nil {
		s.opts.OnAutoSubmitError(err)
	}
}

// RecordAnswer stores answer for questionID and persists the full response
// map to the local snapshot before returning. Snapshot failures are logged,
// not returned. The last call for a question wins.
func (s *Session) RecordAnswer(questionID string, answer interface{}) error {
	raw, err := encodeAnswer(answer)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.mutableLocked(questionID); err != nil {
		return err
	}
	s.responses[questionID] = raw
	s.persistLocked()
	return nil
}

// ClearAnswer removes the answer for questionID.
func (s *Session) ClearAnswer(questionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.mutableLocked(questionID); err != nil {
		return err
	}
	if _, ok := s.responses[questionID]; !ok {
		return nil
	}
	delete(s.responses, questionID)
	s.persistLocked()
	return nil
}

func (s *Session) mutableLocked(questionID string) error {
	if s.closed {
		return ErrClosed
	}
	if s.state == StateLoading || s.state == StateError {
		return ErrNotActive
	}
	if _, ok := s.known[questionID]; !ok {
		return &UnknownQuestionError{QuestionID: questionID}
	}
	return nil
}

// persistLocked writes the response map to the snapshot store. Once
// submitted the snapshot is gone and stays gone.
func (s *Session) persistLocked() {
	if s.state == StateSubmitted {
		return
	}
	key := snapshot.Key(s.attempt.ID)
	payload, err := json.Marshal(s.responses)
	if err == nil {
		err = s.snapshots.Set(key, payload)
	}
	if err != nil {
		s.log.Warn().Err(&StorageError{Op: "set", Key: key, Err: err}).Msg("failed to persist answers")
	}
}

func encodeAnswer(answer interface{}) (json.RawMessage, error) {
	if raw, ok := answer.(json.RawMessage); ok {
		if !json.Valid(raw) {
			return nil, fmt.Errorf("%w: invalid JSON", ErrInvalidAnswer)
		}
		return append(json.RawMessage(nil), raw...), nil
	}
	payload, err := json.Marshal(answer)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAnswer, err)
	}
	return payload, nil
}

// Checkpoint pushes the current responses to the service. Failures are
// returned as *CheckpointError and leave the session unchanged.
func (s *Session) Checkpoint(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.state != StateActive {
		s.mu.Unlock()
		return ErrNotActive
	}
	id := s.attempt.ID
	responses := s.responses.Clone()
	s.mu.Unlock()

	if err := s.remote.CheckpointAttempt(ctx, id, responses); err != nil {
		return &CheckpointError{Err: err}
	}
	s.log.Debug().Str("attempt_id", id).Int("answered", len(responses)).Msg("checkpoint sent")
	return nil
}

// Submit finalizes the attempt. At most one submission is in flight; a
// concurrent call gets ErrSubmitInFlight and a call after success returns
// the recorded result without contacting the service. On failure the
// session returns to active and the local snapshot is kept.
func (s *Session) Submit(ctx context.Context) (model.SubmitResult, error) {
	return s.submit(ctx, false)
}

func (s *Session) submit(ctx context.Context, auto bool) (model.SubmitResult, error) {
	s.mu.Lock()
	switch {
	case s.closed:
		s.mu.Unlock()
		return model.SubmitResult{}, ErrClosed
	case s.state == StateSubmitted && s.result != nil:
		result := *s.result
		s.mu.Unlock()
		return result, nil
	case s.submitting:
		if auto {
			s.timeoutPending = true
		}
		s.mu.Unlock()
		return model.SubmitResult{}, ErrSubmitInFlight
	case s.state != StateActive:
		s.mu.Unlock()
		return model.SubmitResult{}, ErrNotActive
	}
	s.submitting = true
	s.state = StateSubmitting
	if auto {
		s.timedOut = true
	}
	id := s.attempt.ID
	entries := s.responses.Entries()
	s.mu.Unlock()

	result, err := s.remote.SubmitAttempt(ctx, id, entries)

	s.mu.Lock()
	s.submitting = false
	replay := s.timeoutPending && !s.closed
	s.timeoutPending = false
	if err != nil {
		s.state = StateActive
		if replay {
			s.wg.Add(1)
		}
		s.mu.Unlock()
		serr := &SubmissionError{Err: err}
		s.log.Warn().Err(serr).Str("attempt_id", id).Msg("submission rejected")
		if replay {
			go func() {
				defer s.wg.Done()
				s.autoSubmit()
			}()
		}
		return model.SubmitResult{}, serr
	}
	if result.AttemptID == "" {
		result.AttemptID = id
	}
	if result.SubmittedAt.IsZero() {
		result.SubmittedAt = s.clock.Now()
	}
	s.state = StateSubmitted
	s.result = &result
	s.stopTimersLocked()
	key := snapshot.Key(id)
	if rerr := s.snapshots.Remove(key); rerr != nil {
		s.log.Warn().Err(&StorageError{Op: "remove", Key: key, Err: rerr}).Msg("failed to clear local snapshot")
	}
	outcome := Outcome{Attempt: s.attempt, Result: result, TimedOut: s.timedOut}
	cb := s.opts.OnSubmitted
	s.mu.Unlock()

	s.log.Info().
		Str("attempt_id", id).
		Int("answered", result.Answered).
		Int("total", result.Total).
		Bool("timed_out", outcome.TimedOut).
		Msg("attempt submitted")
	if cb != nil {
		cb(outcome)
	}
	return result, nil
}

// Close tears the session down: an in-flight Load is canceled and its
// result discarded, and both timers stop. Close waits for a deadline callback
// already running, so it must not be called from OnSubmitted or
// OnAutoSubmitError. Close is idempotent.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	if s.loadCancel != nil {
		s.loadCancel()
	}
	s.stopTimersLocked()
	timer := s.timer
	s.mu.Unlock()

	s.lifeCancel()
	if timer != nil {
		timer.Stop()
	}
	s.wg.Wait()
}
