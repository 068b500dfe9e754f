// Package stats contains progress calculations and reporting.
package stats

import (
	"fmt"
	"io"
	"strings"

	"github.com/verte-zerg/tuiexam/internal/model"
)

const (
	answeredMark   = '#'
	unansweredMark = '.'
)

// Progress counts answered questions in one subject block.
type Progress struct {
	Subject  string
	Answered int
	Total    int
}

// Ratio returns Answered/Total, zero for an empty block.
func (p Progress) Ratio() float64 {
	if p.Total <= 0 {
		return 0
	}
	return float64(p.Answered) / float64(p.Total)
}

// SubjectProgress counts answers per subject range. Questions outside every
// range are not counted.
func SubjectProgress(questions []model.Question, ranges []model.SubjectRange, responses model.Responses) []Progress {
	out := make([]Progress, 0, len(ranges))
	for _, r := range ranges {
		p := Progress{Subject: r.Subject}
		for i := r.Start; i <= r.End && i < len(questions); i++ {
			p.Total++
			if _, ok := responses[questions[i].ID]; ok {
				p.Answered++
			}
		}
		out = append(out, p)
	}
	return out
}

// Overall sums a progress table.
func Overall(rows []Progress) Progress {
	total := Progress{Subject: "Total"}
	for _, p := range rows {
		total.Answered += p.Answered
		total.Total += p.Total
	}
	return total
}

// Strip renders one mark per question in [start, end], answered or not.
func Strip(questions []model.Question, start, end int, responses model.Responses) string {
	if start < 0 {
		start = 0
	}
	var b strings.Builder
	for i := start; i <= end && i < len(questions); i++ {
		if _, ok := responses[questions[i].ID]; ok {
			b.WriteRune(answeredMark)
		} else {
			b.WriteRune(unansweredMark)
		}
	}
	return b.String()
}

// Bar renders a fixed-width progress bar for ratio in [0, 1].
func Bar(ratio float64, width int) string {
	if width <= 0 {
		return ""
	}
	if ratio < 0 {
		ratio = 0
	}
	if ratio > 1 {
		ratio = 1
	}
	filled := int(ratio*float64(width) + 0.5)
	return strings.Repeat(string(answeredMark), filled) + strings.Repeat(string(unansweredMark), width-filled)
}

// RenderProgressTable prints the per-subject table with a total row.
func RenderProgressTable(w io.Writer, rows []Progress) error {
	if len(rows) == 0 {
		_, err := fmt.Fprintln(w, "No questions.")
		return err
	}
	table := make([][]string, 0, len(rows)+1)
	for _, p := range append(append([]Progress(nil), rows...), Overall(rows)) {
		table = append(table, []string{
			p.Subject,
			fmt.Sprintf("%d/%d", p.Answered, p.Total),
			fmt.Sprintf("%.0f%%", p.Ratio()*100),
			Bar(p.Ratio(), 20),
		})
	}
	lines := formatTable([]string{"Subject", "Answered", "Done", ""}, table, map[int]bool{1: true, 2: true})
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, strings.TrimRight(line, " ")); err != nil {
			return err
		}
	}
	return nil
}

// HistorySummary aggregates recorded submissions.
type HistorySummary struct {
	Attempts      int
	TimedOut      int
	AvgCompletion float64
	Best          float64
}

// SummarizeHistory computes completion averages over subs.
func SummarizeHistory(subs []model.Submission) HistorySummary {
	var s HistorySummary
	var sum float64
	for _, sub := range subs {
		s.Attempts++
		if sub.TimedOut {
			s.TimedOut++
		}
		c := completion(sub)
		sum += c
		if c > s.Best {
			s.Best = c
		}
	}
	if s.Attempts > 0 {
		s.AvgCompletion = sum / float64(s.Attempts)
	}
	return s
}

// RenderHistorySummary prints a short summary block.
func RenderHistorySummary(w io.Writer, subs []model.Submission) error {
	if len(subs) == 0 {
		_, err := fmt.Fprintln(w, "No submissions found.")
		return err
	}
	s := SummarizeHistory(subs)
	if _, err := fmt.Fprintf(w, "Attempts: %d (timed out: %d)\n", s.Attempts, s.TimedOut); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "Avg completion: %.1f%%\n", s.AvgCompletion*100); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "Best completion: %.1f%%\n", s.Best*100); err != nil {
		return err
	}
	return nil
}

func completion(sub model.Submission) float64 {
	if sub.Total <= 0 {
		return 0
	}
	return float64(sub.Answered) / float64(sub.Total)
}
