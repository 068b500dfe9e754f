// Package tui provides the Bubble Tea exam interface.
package tui

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"

	"github.com/verte-zerg/tuiexam/internal/model"
	"github.com/verte-zerg/tuiexam/internal/navigation"
	"github.com/verte-zerg/tuiexam/internal/session"
	"github.com/verte-zerg/tuiexam/internal/stats"
)

type phase int

const (
	phaseLoading phase = iota
	phaseActive
	phaseConfirm
	phaseSubmitting
	phaseSubmitted
	phaseFailed
)

const lowTime = 5 * time.Minute

// SubmittedMsg is sent by the session's OnSubmitted callback.
type SubmittedMsg struct {
	Outcome session.Outcome
}

// AutoSubmitErrorMsg is sent when the deadline submission fails.
type AutoSubmitErrorMsg struct {
	Err error
}

type loadedMsg struct {
	res session.LoadResult
	err error
}

type submitDoneMsg struct {
	result model.SubmitResult
	err    error
}

type tickMsg time.Time

// Model implements the Bubble Tea exam UI.
type Model struct {
	ctx  context.Context
	sess *session.Session
	log  zerolog.Logger

	width   int
	height  int
	spinner spinner.Model

	phase     phase
	questions []model.Question
	entry     []rune
	notice    string
	err       error
	result    model.SubmitResult
	timedOut  bool
}

var (
	promptStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0"))
	optionStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A")).Bold(true)
	headerStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A"))
	lowTimeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F")).Bold(true)
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	footerStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
)

// NewModel constructs an exam TUI over an unloaded session. The model loads
// it on Init.
func NewModel(ctx context.Context, sess *session.Session, log zerolog.Logger) *Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = headerStyle
	return &Model{
		ctx:     ctx,
		sess:    sess,
		log:     log.With().Str("component", "tui").Logger(),
		spinner: sp,
	}
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.loadCmd(), tickCmd(), m.spinner.Tick)
}

func (m *Model) loadCmd() tea.Cmd {
	return func() tea.Msg {
		res, err := m.sess.Load(m.ctx)
		return loadedMsg{res: res, err: err}
	}
}

func (m *Model) submitCmd() tea.Cmd {
	return func() tea.Msg {
		result, err := m.sess.Submit(m.ctx)
		return submitDoneMsg{result: result, err: err}
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case spinner.TickMsg:
		if m.phase == phaseSubmitted || m.phase == phaseFailed {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tickMsg:
		if m.phase == phaseSubmitted || m.phase == phaseFailed {
			return m, nil
		}
		return m, tickCmd()
	case loadedMsg:
		return m.handleLoaded(msg)
	case submitDoneMsg:
		return m.handleSubmitDone(msg)
	case SubmittedMsg:
		m.finish(msg.Outcome.Result, msg.Outcome.TimedOut)
		return m, nil
	case AutoSubmitErrorMsg:
		m.phase = phaseActive
		m.notice = fmt.Sprintf("automatic submission failed: %v (ctrl+s to retry)", msg.Err)
		return m, nil
	case tea.KeyMsg:
		return m.handleKey(msg)
	default:
		return m, nil
	}
}

func (m *Model) handleLoaded(msg loadedMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		if errors.Is(msg.err, session.ErrClosed) {
			return m, tea.Quit
		}
		m.phase = phaseFailed
		m.err = msg.err
		return m, nil
	}
	m.phase = phaseActive
	m.questions = msg.res.Questions
	if msg.res.Restored > 0 {
		m.notice = fmt.Sprintf("restored %d saved answers", msg.res.Restored)
	}
	return m, nil
}

func (m *Model) handleSubmitDone(msg submitDoneMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.err == nil:
		m.finish(msg.result, m.timedOut)
	case errors.Is(msg.err, session.ErrSubmitInFlight):
		// The deadline submission is running; its outcome arrives as SubmittedMsg.
	default:
		m.phase = phaseActive
		m.notice = fmt.Sprintf("submission failed: %v (answers are saved, ctrl+s to retry)", msg.err)
		m.log.Warn().Err(msg.err).Msg("manual submission failed")
	}
	return m, nil
}

func (m *Model) finish(result model.SubmitResult, timedOut bool) {
	m.phase = phaseSubmitted
	m.result = result
	m.timedOut = m.timedOut || timedOut
	m.entry = nil
	m.notice = ""
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		return m, tea.Quit
	}
	switch m.phase {
	case phaseFailed, phaseSubmitted:
		switch msg.String() {
		case "q", "esc", "enter":
			return m, tea.Quit
		}
		return m, nil
	case phaseConfirm:
		switch msg.String() {
		case "y", "Y":
			m.phase = phaseSubmitting
			m.notice = ""
			return m, m.submitCmd()
		case "n", "N", "esc":
			m.phase = phaseActive
		}
		return m, nil
	case phaseActive:
		return m.handleActiveKey(msg)
	default:
		return m, nil
	}
}

func (m *Model) handleActiveKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.notice = ""
	switch msg.String() {
	case "right", "n":
		m.move(func() { m.sess.Step(navigation.Forward) })
		return m, nil
	case "left", "p":
		m.move(func() { m.sess.Step(navigation.Backward) })
		return m, nil
	case "home":
		m.move(func() { m.sess.GoTo(0) })
		return m, nil
	case "end":
		m.move(func() { m.sess.GoTo(len(m.questions) - 1) })
		return m, nil
	case "tab":
		m.move(func() { m.sess.NextSubject() })
		return m, nil
	case "ctrl+s":
		m.phase = phaseConfirm
		return m, nil
	case "enter":
		m.commitEntry()
		return m, nil
	case "backspace", "delete":
		m.handleBackspace()
		return m, nil
	}
	if msg.Type == tea.KeyRunes {
		m.handleRunes(msg.Runes)
	}
	return m, nil
}

func (m *Model) move(step func()) {
	m.entry = nil
	step()
}

func (m *Model) current() (model.Question, bool) {
	pos := m.sess.Current()
	if pos.Count == 0 {
		return model.Question{}, false
	}
	return pos.Question, true
}

func (m *Model) handleRunes(runes []rune) {
	q, ok := m.current()
	if !ok {
		return
	}
	for _, r := range runes {
		if len(q.Options) > 0 {
			idx := strings.IndexRune(model.OptionLetters, unicode.ToUpper(r))
			if idx < 0 || idx >= len(q.Options) {
				continue
			}
			m.record(q.ID, string(model.OptionLetters[idx]))
			continue
		}
		if unicode.IsDigit(r) || r == '.' || r == '-' {
			m.entry = append(m.entry, r)
		}
	}
}

func (m *Model) commitEntry() {
	q, ok := m.current()
	if !ok || len(q.Options) > 0 || len(m.entry) == 0 {
		return
	}
	text := string(m.entry)
	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		m.notice = fmt.Sprintf("%q is not a number", text)
		return
	}
	if m.record(q.ID, json.Number(strconv.FormatFloat(v, 'f', -1, 64))) {
		m.entry = nil
	}
}

func (m *Model) handleBackspace() {
	if len(m.entry) > 0 {
		m.entry = m.entry[:len(m.entry)-1]
		return
	}
	q, ok := m.current()
	if !ok {
		return
	}
	if err := m.sess.ClearAnswer(q.ID); err != nil {
		m.notice = err.Error()
	}
}

func (m *Model) record(questionID string, answer interface{}) bool {
	if err := m.sess.RecordAnswer(questionID, answer); err != nil {
		m.notice = err.Error()
		m.log.Warn().Err(err).Str("question_id", questionID).Msg("answer rejected")
		return false
	}
	return true
}

// View implements tea.Model.
func (m *Model) View() string {
	var content string
	switch m.phase {
	case phaseLoading:
		content = m.spinner.View() + " Loading attempt..."
	case phaseFailed:
		content = errorStyle.Render(fmt.Sprintf("Could not load the attempt: %v", m.err)) +
			"\n\nYour saved answers are kept locally. Run `tuiexam recover` to inspect them.\nPress q to exit."
	case phaseSubmitted:
		content = m.renderSummary()
	default:
		return m.renderExam()
	}
	if m.width == 0 || m.height == 0 {
		return content
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
}

func (m *Model) renderExam() string {
	nav := m.sess.Navigation()
	pos := nav.Position
	contentWidth := int(float64(m.width) * 0.70)
	if m.width == 0 {
		contentWidth = 0
	} else if contentWidth < 1 {
		contentWidth = 1
	}

	sections := []string{m.renderHeader(pos), "", m.renderQuestion(pos, contentWidth)}
	if line := m.renderStatus(); line != "" {
		sections = append(sections, "", line)
	}
	content := strings.Join(sections, "\n")
	footer := m.renderFooter(nav.Ranges)
	if m.width == 0 || m.height == 0 {
		return content + "\n\n" + footer
	}
	content = lipgloss.NewStyle().Width(contentWidth).Render(content)
	if m.height < 3 {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
	}
	body := lipgloss.Place(m.width, m.height-1, lipgloss.Center, lipgloss.Center, content)
	footerLine := lipgloss.Place(m.width, 1, lipgloss.Center, lipgloss.Center, footer)
	return body + "\n" + footerLine
}

func (m *Model) renderHeader(pos session.Position) string {
	remaining := m.sess.Remaining()
	clock := formatRemaining(remaining)
	if remaining < lowTime {
		clock = lowTimeStyle.Render(clock)
	}
	subject := pos.Subject
	if subject == "" {
		subject = pos.Question.Subject
	}
	return headerStyle.Render(fmt.Sprintf("%s  Q %d/%d  ", subject, pos.Index+1, pos.Count)) + clock
}

func (m *Model) renderQuestion(pos session.Position, width int) string {
	q := pos.Question
	lines := []string{wrapText(q.Prompt, promptStyle, width), ""}
	current, answered := m.sess.Answer(q.ID)
	if len(q.Options) > 0 {
		var chosen string
		if answered {
			_ = json.Unmarshal(current, &chosen)
		}
		for i, opt := range q.Options {
			if i >= len(model.OptionLetters) {
				break
			}
			letter := string(model.OptionLetters[i])
			if letter == chosen {
				lines = append(lines, selectedStyle.Render(fmt.Sprintf("> %s) %s", letter, opt)))
				continue
			}
			lines = append(lines, optionStyle.Render(fmt.Sprintf("  %s) %s", letter, opt)))
		}
		return strings.Join(lines, "\n")
	}
	saved := "-"
	if answered {
		saved = string(current)
	}
	lines = append(lines, optionStyle.Render("Answer: ")+selectedStyle.Render(saved))
	lines = append(lines, optionStyle.Render("Entry:  ")+promptStyle.Render(string(m.entry)+"_"))
	return strings.Join(lines, "\n")
}

func (m *Model) renderStatus() string {
	switch {
	case m.phase == phaseConfirm:
		return selectedStyle.Render(fmt.Sprintf("Submit %d/%d answers now? (y/n)", len(m.sess.Responses()), len(m.questions)))
	case m.phase == phaseSubmitting:
		return m.spinner.View() + selectedStyle.Render(" Submitting...")
	case m.sess.State() == session.StateSubmitting:
		return m.spinner.View() + lowTimeStyle.Render(" Time is up. Submitting your answers...")
	case m.notice != "":
		return errorStyle.Render(m.notice)
	case m.sess.Expired():
		return lowTimeStyle.Render("Time is up. Press ctrl+s to submit.")
	default:
		return ""
	}
}

func (m *Model) renderFooter(ranges []model.SubjectRange) string {
	rows := stats.SubjectProgress(m.questions, ranges, m.sess.Responses())
	segments := make([]string, 0, len(rows)+1)
	for _, p := range rows {
		segments = append(segments, fmt.Sprintf("%s %d/%d", p.Subject, p.Answered, p.Total))
	}
	segments = append(segments, "←/→ move  tab subject  ctrl+s submit")
	return footerStyle.Render(strings.Join(segments, "  "))
}

func (m *Model) renderSummary() string {
	var b strings.Builder
	title := "Attempt submitted"
	if m.timedOut {
		title = "Time is up. Attempt submitted"
	}
	b.WriteString(headerStyle.Render(title))
	b.WriteString("\n\n")
	b.WriteString(fmt.Sprintf("Answered %d of %d\n\n", m.result.Answered, m.result.Total))
	rows := stats.SubjectProgress(m.questions, m.sess.Ranges(), m.sess.Responses())
	if err := stats.RenderProgressTable(&b, rows); err != nil {
		m.log.Warn().Err(err).Msg("failed to render summary")
	}
	b.WriteString("\nPress q to exit.")
	return b.String()
}

func formatRemaining(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d.Round(time.Second) / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, (total%3600)/60, total%60)
}
