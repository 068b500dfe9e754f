package navigation

import (
	"fmt"
	"testing"

	"github.com/verte-zerg/tuiexam/internal/model"
)

func paper(subjects ...string) []model.Question {
	out := make([]model.Question, 0, len(subjects))
	for i, s := range subjects {
		out = append(out, model.Question{ID: fmt.Sprintf("q%d", i), Subject: s})
	}
	return out
}

func uniformPaper(n int) []model.Question {
	subjects := make([]string, n)
	for i := range subjects {
		subjects[i] = "X"
	}
	return paper(subjects...)
}

func TestDefaultSchemeRanges(t *testing.T) {
	ranges := DefaultScheme.Ranges(uniformPaper(90))
	want := []model.SubjectRange{
		{Subject: "Mathematics", Start: 0, End: 29},
		{Subject: "Physics", Start: 30, End: 59},
		{Subject: "Chemistry", Start: 60, End: 89},
	}
	if len(ranges) != len(want) {
		t.Fatalf("expected %d ranges, got %+v", len(want), ranges)
	}
	for i := range want {
		if ranges[i] != want[i] {
			t.Fatalf("range %d: expected %+v, got %+v", i, want[i], ranges[i])
		}
	}
}

func TestFixedBlocksClipToShortPaper(t *testing.T) {
	ranges := DefaultScheme.Ranges(uniformPaper(45))
	if len(ranges) != 2 {
		t.Fatalf("expected chemistry to be dropped, got %+v", ranges)
	}
	if ranges[1].End != 44 {
		t.Fatalf("expected physics clipped to 44, got %+v", ranges[1])
	}
	c := NewCursor(45, ranges)
	if _, err := c.JumpToSubject("Chemistry"); err != ErrUnknownSubject {
		t.Fatalf("expected ErrUnknownSubject for dropped range, got %v", err)
	}
	if idx, err := c.JumpToSubject("Physics"); err != nil || idx != 30 {
		t.Fatalf("expected physics at 30, got %d %v", idx, err)
	}
}

func TestBySubjectTag(t *testing.T) {
	ranges := BySubjectTag{}.Ranges(paper("M", "M", "P", "P", "P", "C", "M"))
	want := []model.SubjectRange{
		{Subject: "M", Start: 0, End: 1},
		{Subject: "P", Start: 2, End: 4},
		{Subject: "C", Start: 5, End: 5},
	}
	if len(ranges) != len(want) {
		t.Fatalf("unexpected ranges %+v", ranges)
	}
	for i := range want {
		if ranges[i] != want[i] {
			t.Fatalf("range %d: expected %+v, got %+v", i, want[i], ranges[i])
		}
	}
}

func TestStepClampsAtBoundaries(t *testing.T) {
	c := NewCursor(3, nil)
	if got := c.Step(Backward); got != 0 {
		t.Fatalf("backward at 0 must stay at 0, got %d", got)
	}
	c.GoTo(2)
	if got := c.Step(Forward); got != 2 {
		t.Fatalf("forward at N-1 must stay at N-1, got %d", got)
	}
	if got := c.Step(Backward); got != 1 {
		t.Fatalf("expected 1, got %d", got)
	}
}

func TestGoToClamps(t *testing.T) {
	c := NewCursor(10, nil)
	if got := c.GoTo(-5); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
	if got := c.GoTo(99); got != 9 {
		t.Fatalf("expected 9, got %d", got)
	}
}

func TestEmptyCursorStaysAtZero(t *testing.T) {
	c := NewCursor(0, DefaultScheme.Ranges(nil))
	if c.Step(Forward) != 0 || c.GoTo(5) != 0 {
		t.Fatalf("empty cursor must stay at 0")
	}
	if _, ok := c.NextSubject(); ok {
		t.Fatalf("empty cursor has no subjects")
	}
}

func TestSubjectLookup(t *testing.T) {
	c := NewCursor(90, DefaultScheme.Ranges(uniformPaper(90)))
	if idx, err := c.JumpToSubject("Physics"); err != nil || idx != 30 {
		t.Fatalf("expected 30, got %d %v", idx, err)
	}
	if s, ok := c.SubjectAt(30); !ok || s != "Physics" {
		t.Fatalf("expected Physics at 30, got %q", s)
	}
	if s, ok := c.NextSubject(); !ok || s != "Chemistry" {
		t.Fatalf("expected Chemistry after Physics, got %q", s)
	}
	c.GoTo(89)
	if s, _ := c.NextSubject(); s != "Mathematics" {
		t.Fatalf("expected wrap to Mathematics, got %q", s)
	}
}
