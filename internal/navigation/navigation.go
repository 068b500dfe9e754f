// Package navigation tracks the displayed question and the subject blocks of
// a paper.
package navigation

import (
	"errors"

	"github.com/verte-zerg/tuiexam/internal/model"
)

// ErrUnknownSubject is returned when a subject has no questions in the paper.
var ErrUnknownSubject = errors.New("unknown subject")

// Direction is a single step through the paper.
type Direction int

const (
	Forward Direction = iota
	Backward
)

// Scheme turns an ordered question list into subject ranges.
type Scheme interface {
	Ranges(questions []model.Question) []model.SubjectRange
}

// FixedBlocks assigns blockSize consecutive questions to each subject in
// order, regardless of the questions' own subject tags.
type FixedBlocks struct {
	Subjects  []string
	BlockSize int
}

// DefaultScheme is three 30-question blocks.
var DefaultScheme = FixedBlocks{
	Subjects:  []string{"Mathematics", "Physics", "Chemistry"},
	BlockSize: 30,
}

// Ranges implements Scheme.
func (f FixedBlocks) Ranges(questions []model.Question) []model.SubjectRange {
	if f.BlockSize <= 0 {
		return nil
	}
	ranges := make([]model.SubjectRange, 0, len(f.Subjects))
	for i, subject := range f.Subjects {
		start := i * f.BlockSize
		ranges = append(ranges, model.SubjectRange{
			Subject: subject,
			Start:   start,
			End:     start + f.BlockSize - 1,
		})
	}
	return Clip(ranges, len(questions))
}

// BySubjectTag groups contiguous runs of questions sharing a subject tag.
// A subject that appears in two separate runs keeps its first run.
type BySubjectTag struct{}

// Ranges implements Scheme.
func (BySubjectTag) Ranges(questions []model.Question) []model.SubjectRange {
	var ranges []model.SubjectRange
	seen := map[string]bool{}
	for i, q := range questions {
		if n := len(ranges); n > 0 && ranges[n-1].Subject == q.Subject {
			ranges[n-1].End = i
			continue
		}
		if seen[q.Subject] {
			continue
		}
		seen[q.Subject] = true
		ranges = append(ranges, model.SubjectRange{Subject: q.Subject, Start: i, End: i})
	}
	return ranges
}

// Clip bounds ranges to count questions. Ranges starting past the end are
// dropped and ranges running past it are shortened.
func Clip(ranges []model.SubjectRange, count int) []model.SubjectRange {
	out := make([]model.SubjectRange, 0, len(ranges))
	for _, r := range ranges {
		if r.Start < 0 {
			r.Start = 0
		}
		if r.Start >= count || r.End < r.Start {
			continue
		}
		if r.End > count-1 {
			r.End = count - 1
		}
		out = append(out, r)
	}
	return out
}

// Cursor holds the current question index. The zero value is an empty
// paper.
type Cursor struct {
	index  int
	count  int
	ranges []model.SubjectRange
}

// NewCursor returns a cursor at index 0 over count questions.
func NewCursor(count int, ranges []model.SubjectRange) *Cursor {
	if count < 0 {
		count = 0
	}
	return &Cursor{count: count, ranges: Clip(ranges, count)}
}

// Index returns the current question index.
func (c *Cursor) Index() int {
	return c.index
}

// Count returns the number of questions.
func (c *Cursor) Count() int {
	return c.count
}

// Ranges returns a copy of the subject table.
func (c *Cursor) Ranges() []model.SubjectRange {
	return append([]model.SubjectRange(nil), c.ranges...)
}

// GoTo moves to index, clamped to the paper.
func (c *Cursor) GoTo(index int) int {
	c.index = c.clamp(index)
	return c.index
}

// Step moves one question in dir. Stepping past either end is a no-op.
func (c *Cursor) Step(dir Direction) int {
	switch dir {
	case Forward:
		return c.GoTo(c.index + 1)
	case Backward:
		return c.GoTo(c.index - 1)
	default:
		return c.index
	}
}

// JumpToSubject moves to the first question of subject.
func (c *Cursor) JumpToSubject(subject string) (int, error) {
	for _, r := range c.ranges {
		if r.Subject == subject {
			return c.GoTo(r.Start), nil
		}
	}
	return c.index, ErrUnknownSubject
}

// SubjectAt returns the subject whose range contains index.
func (c *Cursor) SubjectAt(index int) (string, bool) {
	for _, r := range c.ranges {
		if index >= r.Start && index <= r.End {
			return r.Subject, true
		}
	}
	return "", false
}

// NextSubject returns the subject after the current one, wrapping around.
func (c *Cursor) NextSubject() (string, bool) {
	if len(c.ranges) == 0 {
		return "", false
	}
	for i, r := range c.ranges {
		if c.index >= r.Start && c.index <= r.End {
			return c.ranges[(i+1)%len(c.ranges)].Subject, true
		}
	}
	return c.ranges[0].Subject, true
}

func (c *Cursor) clamp(index int) int {
	if c.count == 0 || index < 0 {
		return 0
	}
	if index > c.count-1 {
		return c.count - 1
	}
	return index
}
