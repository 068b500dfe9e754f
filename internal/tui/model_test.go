package tui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/verte-zerg/tuiexam/internal/clock"
	"github.com/verte-zerg/tuiexam/internal/generator"
	"github.com/verte-zerg/tuiexam/internal/model"
	"github.com/verte-zerg/tuiexam/internal/remote"
	"github.com/verte-zerg/tuiexam/internal/session"
	"github.com/verte-zerg/tuiexam/internal/snapshot"
)

type stubRemote struct {
	paper     model.Paper
	fetchErr  error
	submitErr error
}

func (s *stubRemote) FetchAttempt(context.Context, remote.AttemptRequest) (model.Paper, error) {
	return s.paper, s.fetchErr
}

func (s *stubRemote) CheckpointAttempt(context.Context, string, model.Responses) error {
	return nil
}

func (s *stubRemote) SubmitAttempt(_ context.Context, id string, entries []model.ResponseEntry) (model.SubmitResult, error) {
	if s.submitErr != nil {
		return model.SubmitResult{}, s.submitErr
	}
	return model.SubmitResult{AttemptID: id, Status: model.SubmitStatusSubmitted, Answered: len(entries), Total: len(s.paper.Questions)}, nil
}

func newLoadedModel(t *testing.T, stub *stubRemote) *Model {
	t.Helper()
	start := time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC)
	stub.paper = model.Paper{
		Attempt:   model.Attempt{ID: "att-1", StartedAt: start},
		Questions: generator.NewSeeded(5).Paper([]string{"Mathematics", "Physics", "Chemistry"}, 30, 4),
	}
	sess := session.New(stub, snapshot.NewMemory(), session.Options{
		AttemptID:          "att-1",
		Clock:              clock.NewManual(start),
		CheckpointInterval: time.Hour,
		Logger:             zerolog.Nop(),
	})
	t.Cleanup(sess.Close)
	m := NewModel(context.Background(), sess, zerolog.Nop())
	res, err := sess.Load(context.Background())
	m.Update(loadedMsg{res: res, err: err})
	if m.phase != phaseActive {
		t.Fatalf("expected active phase, got %d (%v)", m.phase, m.err)
	}
	return m
}

func keyRunes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestChoiceKeysRecordLetter(t *testing.T) {
	m := newLoadedModel(t, &stubRemote{})
	m.Update(keyRunes("b"))
	raw, ok := m.sess.Answer("q001")
	if !ok || string(raw) != `"B"` {
		t.Fatalf("expected B, got %s", raw)
	}
	m.Update(keyRunes("z"))
	raw, _ = m.sess.Answer("q001")
	if string(raw) != `"B"` {
		t.Fatalf("letters outside the options should be ignored, got %s", raw)
	}
	m.Update(tea.KeyMsg{Type: tea.KeyBackspace})
	if _, ok := m.sess.Answer("q001"); ok {
		t.Fatalf("backspace should clear the answer")
	}
}

func TestNumericEntry(t *testing.T) {
	m := newLoadedModel(t, &stubRemote{})
	m.sess.GoTo(4)
	m.Update(keyRunes("4x2.50"))
	if string(m.entry) != "42.50" {
		t.Fatalf("unexpected entry buffer %q", string(m.entry))
	}
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	raw, ok := m.sess.Answer("q005")
	if !ok || string(raw) != "42.5" {
		t.Fatalf("expected 42.5, got %s", raw)
	}
	if len(m.entry) != 0 {
		t.Fatalf("entry should reset after commit")
	}
}

func TestNavigationKeys(t *testing.T) {
	m := newLoadedModel(t, &stubRemote{})
	m.Update(tea.KeyMsg{Type: tea.KeyLeft})
	if m.sess.Current().Index != 0 {
		t.Fatalf("left at start should stay put")
	}
	m.Update(tea.KeyMsg{Type: tea.KeyRight})
	if m.sess.Current().Index != 1 {
		t.Fatalf("right should advance")
	}
	m.Update(tea.KeyMsg{Type: tea.KeyTab})
	if pos := m.sess.Current(); pos.Index != 30 || pos.Subject != "Physics" {
		t.Fatalf("tab should jump to Physics, got %+v", pos)
	}
	m.Update(tea.KeyMsg{Type: tea.KeyEnd})
	if m.sess.Current().Index != 89 {
		t.Fatalf("end should jump to the last question")
	}
}

func TestSubmitFlow(t *testing.T) {
	m := newLoadedModel(t, &stubRemote{})
	m.Update(keyRunes("a"))
	m.Update(tea.KeyMsg{Type: tea.KeyCtrlS})
	if m.phase != phaseConfirm || !strings.Contains(m.View(), "Submit 1/90") {
		t.Fatalf("expected confirmation prompt, got %q", m.View())
	}
	_, cmd := m.Update(keyRunes("y"))
	if cmd == nil || m.phase != phaseSubmitting {
		t.Fatalf("expected submit command")
	}
	m.Update(cmd())
	if m.phase != phaseSubmitted {
		t.Fatalf("expected submitted phase, got %d", m.phase)
	}
	view := m.View()
	for _, want := range []string{"Attempt submitted", "Answered 1 of 90", "Mathematics", "Total"} {
		if !strings.Contains(view, want) {
			t.Fatalf("summary missing %q: %s", want, view)
		}
	}
}

func TestSubmitFailureReturnsToExam(t *testing.T) {
	m := newLoadedModel(t, &stubRemote{submitErr: errors.New("503")})
	m.Update(tea.KeyMsg{Type: tea.KeyCtrlS})
	_, cmd := m.Update(keyRunes("y"))
	m.Update(cmd())
	if m.phase != phaseActive || !strings.Contains(m.notice, "submission failed") {
		t.Fatalf("expected notice after failure, got phase %d notice %q", m.phase, m.notice)
	}
}

func TestLoadFailureView(t *testing.T) {
	stub := &stubRemote{fetchErr: errors.New("offline")}
	sess := session.New(stub, snapshot.NewMemory(), session.Options{AttemptID: "att-1", Logger: zerolog.Nop()})
	defer sess.Close()
	m := NewModel(context.Background(), sess, zerolog.Nop())
	_, err := sess.Load(context.Background())
	m.Update(loadedMsg{err: err})
	if m.phase != phaseFailed || !strings.Contains(m.View(), "tuiexam recover") {
		t.Fatalf("unexpected failure view %q", m.View())
	}
	if _, cmd := m.Update(keyRunes("q")); cmd == nil {
		t.Fatalf("q should quit")
	}
}

func TestHeaderAndFooter(t *testing.T) {
	m := newLoadedModel(t, &stubRemote{})
	m.Update(keyRunes("c"))
	view := m.View()
	for _, want := range []string{"Mathematics  Q 1/90", "03:00:00", "Mathematics 1/30", "Physics 0/30"} {
		if !strings.Contains(view, want) {
			t.Fatalf("view missing %q: %s", want, view)
		}
	}
}

func TestFormatRemaining(t *testing.T) {
	if got := formatRemaining(2*time.Hour + 5*time.Minute + 9*time.Second); got != "02:05:09" {
		t.Fatalf("unexpected %s", got)
	}
	if got := formatRemaining(-time.Second); got != "00:00:00" {
		t.Fatalf("negative should clamp, got %s", got)
	}
}

func TestSpinnerStopsAfterSubmit(t *testing.T) {
	m := newLoadedModel(t, &stubRemote{})
	if _, cmd := m.Update(m.spinner.Tick()); cmd == nil {
		t.Fatalf("spinner should keep ticking during the exam")
	}
	m.Update(tea.KeyMsg{Type: tea.KeyCtrlS})
	_, cmd := m.Update(keyRunes("y"))
	m.Update(cmd())
	if _, cmd := m.Update(m.spinner.Tick()); cmd != nil {
		t.Fatalf("spinner should stop once submitted")
	}
}

func TestSubmitErrorsVisibleAfterDeadline(t *testing.T) {
	start := time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC)
	clk := clock.NewManual(start)
	stub := &stubRemote{submitErr: errors.New("503")}
	stub.paper = model.Paper{
		Attempt:   model.Attempt{ID: "att-1", StartedAt: start},
		Questions: generator.NewSeeded(5).Paper([]string{"Mathematics", "Physics", "Chemistry"}, 30, 4),
	}
	autoErrs := make(chan error, 1)
	sess := session.New(stub, snapshot.NewMemory(), session.Options{
		AttemptID:          "att-1",
		Clock:              clk,
		Duration:           time.Minute,
		CheckpointInterval: time.Hour,
		TimerRefresh:       2 * time.Millisecond,
		Logger:             zerolog.Nop(),
		OnAutoSubmitError:  func(err error) { autoErrs <- err },
	})
	t.Cleanup(sess.Close)
	m := NewModel(context.Background(), sess, zerolog.Nop())
	res, err := sess.Load(context.Background())
	m.Update(loadedMsg{res: res, err: err})

	clk.Advance(2 * time.Minute)
	var autoErr error
	select {
	case autoErr = <-autoErrs:
	case <-time.After(2 * time.Second):
		t.Fatalf("deadline submission did not fail")
	}
	m.Update(AutoSubmitErrorMsg{Err: autoErr})
	view := m.View()
	if !strings.Contains(view, "automatic submission failed") || strings.Contains(view, "Submitting your answers") {
		t.Fatalf("auto submit error hidden after the deadline: %s", view)
	}

	m.Update(tea.KeyMsg{Type: tea.KeyCtrlS})
	_, cmd := m.Update(keyRunes("y"))
	m.Update(cmd())
	view = m.View()
	if !strings.Contains(view, "submission failed") || strings.Contains(view, "Submitting your answers") {
		t.Fatalf("manual retry error hidden after the deadline: %s", view)
	}
}
