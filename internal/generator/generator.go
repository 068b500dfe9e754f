// Package generator builds practice question papers.
package generator

import (
	"fmt"
	"math/rand"
	"strconv"
	"time"

	"github.com/verte-zerg/tuiexam/internal/model"
)

// OptionLetters labels multiple-choice options in order.
const OptionLetters = model.OptionLetters

// Generator produces randomized practice papers.
type Generator struct {
	rnd *rand.Rand
}

// New returns a Generator seeded with the current time.
func New() *Generator {
	return NewSeeded(time.Now().UnixNano())
}

// NewSeeded returns a deterministic Generator.
func NewSeeded(seed int64) *Generator {
	return &Generator{rnd: rand.New(rand.NewSource(seed))}
}

// Paper builds perSubject questions for each subject, in subject order.
// Every fifth question is a numeric-entry question with no options; the
// rest carry optionCount choices.
func (g *Generator) Paper(subjects []string, perSubject, optionCount int) []model.Question {
	if optionCount < 2 {
		optionCount = 2
	}
	if optionCount > len(OptionLetters) {
		optionCount = len(OptionLetters)
	}
	questions := make([]model.Question, 0, len(subjects)*perSubject)
	for _, subject := range subjects {
		for i := 0; i < perSubject; i++ {
			n := len(questions) + 1
			q := model.Question{
				ID:      fmt.Sprintf("q%03d", n),
				Subject: subject,
			}
			a, b := g.rnd.Intn(90)+10, g.rnd.Intn(90)+10
			if (i+1)%5 == 0 {
				q.Prompt = fmt.Sprintf("%s %d. Enter the value of %d x %d.", subject, i+1, a, b)
			} else {
				q.Prompt = fmt.Sprintf("%s %d. What is %d + %d?", subject, i+1, a, b)
				q.Options = g.options(a+b, optionCount)
			}
			questions = append(questions, q)
		}
	}
	return questions
}

// options returns optionCount distinct numeric choices, one of which is
// answer, in random order.
func (g *Generator) options(answer, optionCount int) []string {
	values := []int{answer}
	seen := map[int]bool{answer: true}
	for len(values) < optionCount {
		delta := g.rnd.Intn(19) - 9
		v := answer + delta
		if seen[v] || v < 0 {
			continue
		}
		seen[v] = true
		values = append(values, v)
	}
	g.rnd.Shuffle(len(values), func(i, j int) { values[i], values[j] = values[j], values[i] })
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strconv.Itoa(v)
	}
	return out
}
