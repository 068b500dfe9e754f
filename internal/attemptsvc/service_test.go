package attemptsvc

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/verte-zerg/tuiexam/internal/clock"
	"github.com/verte-zerg/tuiexam/internal/generator"
	"github.com/verte-zerg/tuiexam/internal/model"
)

func newTestService() *Service {
	clk := clock.NewManual(time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC))
	return NewService(PaperConfig{PerSubject: 5}, generator.NewSeeded(3), clk)
}

func TestStartResumesOpenAttempt(t *testing.T) {
	svc := newTestService()
	first, created := svc.Start("alice", 2026, "morning")
	if !created {
		t.Fatalf("expected a new attempt")
	}
	if len(first.Questions) != 15 || first.DurationSeconds != 10800 {
		t.Fatalf("unexpected paper: %d questions, %ds", len(first.Questions), first.DurationSeconds)
	}
	again, created := svc.Start("alice", 2026, "morning")
	if created || again.Attempt.ID != first.Attempt.ID {
		t.Fatalf("expected the open attempt to be resumed")
	}
	other, _ := svc.Start("alice", 2026, "evening")
	if other.Attempt.ID == first.Attempt.ID {
		t.Fatalf("different shift should get a different attempt")
	}
	bob, _ := svc.Start("bob", 2026, "morning")
	if bob.Attempt.ID == first.Attempt.ID {
		t.Fatalf("owners must not share attempts")
	}
}

func TestCheckpointAndGet(t *testing.T) {
	svc := newTestService()
	paper, _ := svc.Start("alice", 2026, "morning")
	id := paper.Attempt.ID

	n, err := svc.Checkpoint("alice", id, model.Responses{"q001": json.RawMessage(`"A"`)})
	if err != nil || n != 1 {
		t.Fatalf("Checkpoint: %d %v", n, err)
	}
	got, err := svc.Get("alice", id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(got.Responses) != 1 || got.Responses[0].QuestionID != "q001" {
		t.Fatalf("unexpected responses %+v", got.Responses)
	}
	if _, err := svc.Get("bob", id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for another owner, got %v", err)
	}
	_, err = svc.Checkpoint("alice", id, model.Responses{"q999": json.RawMessage(`"A"`)})
	var uerr *UnknownQuestionError
	if !errors.As(err, &uerr) || uerr.QuestionID != "q999" {
		t.Fatalf("expected UnknownQuestionError, got %v", err)
	}
}

func TestSubmitIsIdempotent(t *testing.T) {
	svc := newTestService()
	paper, _ := svc.Start("alice", 2026, "morning")
	id := paper.Attempt.ID
	entries := []model.ResponseEntry{{QuestionID: "q002", Answer: json.RawMessage(`"B"`)}}

	first, err := svc.Submit("alice", id, entries)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if first.Answered != 1 || first.Total != 15 || first.Status != model.SubmitStatusSubmitted {
		t.Fatalf("unexpected result %+v", first)
	}
	second, err := svc.Submit("alice", id, nil)
	if err != nil || second != first {
		t.Fatalf("repeat submit: %+v %v", second, err)
	}
	if _, err := svc.Checkpoint("alice", id, model.Responses{}); !errors.Is(err, ErrSubmitted) {
		t.Fatalf("expected ErrSubmitted, got %v", err)
	}
	next, created := svc.Start("alice", 2026, "morning")
	if !created || next.Attempt.ID == id {
		t.Fatalf("a submitted attempt should not be resumed")
	}
}
