package stats

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/verte-zerg/tuiexam/internal/model"
)

func paper() ([]model.Question, []model.SubjectRange) {
	qs := []model.Question{
		{ID: "m1", Subject: "Mathematics"},
		{ID: "m2", Subject: "Mathematics"},
		{ID: "p1", Subject: "Physics"},
		{ID: "p2", Subject: "Physics"},
		{ID: "p3", Subject: "Physics"},
	}
	ranges := []model.SubjectRange{
		{Subject: "Mathematics", Start: 0, End: 1},
		{Subject: "Physics", Start: 2, End: 4},
	}
	return qs, ranges
}

func TestSubjectProgress(t *testing.T) {
	qs, ranges := paper()
	responses := model.Responses{"m1": json.RawMessage(`"A"`), "p3": json.RawMessage(`"B"`), "x": json.RawMessage(`"C"`)}
	rows := SubjectProgress(qs, ranges, responses)
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].Answered != 1 || rows[0].Total != 2 || rows[1].Answered != 1 || rows[1].Total != 3 {
		t.Fatalf("unexpected rows %+v", rows)
	}
	total := Overall(rows)
	if total.Answered != 2 || total.Total != 5 {
		t.Fatalf("unexpected total %+v", total)
	}
	if got := Strip(qs, 2, 4, responses); got != "..#" {
		t.Fatalf("unexpected strip %q", got)
	}
}

func TestBar(t *testing.T) {
	if got := Bar(0.5, 10); got != "#####....." {
		t.Fatalf("unexpected bar %q", got)
	}
	if got := Bar(2, 4); got != "####" {
		t.Fatalf("ratio should clamp, got %q", got)
	}
	if Bar(0.5, 0) != "" {
		t.Fatalf("zero width should be empty")
	}
}

func TestRenderProgressTable(t *testing.T) {
	qs, ranges := paper()
	var buf bytes.Buffer
	if err := RenderProgressTable(&buf, SubjectProgress(qs, ranges, model.Responses{"m2": json.RawMessage(`1`)})); err != nil {
		t.Fatalf("render: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"Mathematics", "1/2", "50%", "Total", "1/5"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in %s", want, out)
		}
	}
}

func TestSummarizeHistory(t *testing.T) {
	subs := []model.Submission{
		{Answered: 45, Total: 90},
		{Answered: 90, Total: 90, TimedOut: true},
		{Answered: 0, Total: 0},
	}
	s := SummarizeHistory(subs)
	if s.Attempts != 3 || s.TimedOut != 1 || s.Best != 1 {
		t.Fatalf("unexpected summary %+v", s)
	}
	if s.AvgCompletion != 0.5 {
		t.Fatalf("expected 0.5 average, got %f", s.AvgCompletion)
	}
	var buf bytes.Buffer
	if err := RenderHistorySummary(&buf, nil); err != nil || !strings.Contains(buf.String(), "No submissions") {
		t.Fatalf("empty history: %q %v", buf.String(), err)
	}
}
