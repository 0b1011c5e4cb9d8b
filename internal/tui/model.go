// Package tui provides the Bubble Tea screens for picking and taking tests.
package tui

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/typekaro/internal/engine"
	"github.com/verte-zerg/typekaro/internal/model"
	"github.com/verte-zerg/typekaro/internal/stats"
)

const (
	defaultTickInterval = 200 * time.Millisecond
	storeTimeout        = 5 * time.Second
	lowTimeFraction     = 0.2

	pasteWarning    = "Pasting is not allowed. Please type the text."
	overflowWarning = "Input is limited to the length of the text."
)

// Store is the persistence used by the screens.
type Store interface {
	ListTests(ctx context.Context) ([]model.Test, error)
	BestAttempts(ctx context.Context, userID string) (map[string]model.Attempt, error)
	BestAttempt(ctx context.Context, userID, testID string) (*model.Attempt, error)
	SaveAttempt(ctx context.Context, creds model.Credentials, testID string, res model.ResultMetrics) (model.Attempt, error)
}

type saveState int

const (
	saveIdle saveState = iota
	saveRunning
	saveDone
	saveFailed
)

// attemptSeq hands each attempt screen its own tick generation.
var attemptSeq atomic.Uint64

// tickMsg carries the generation of the attempt that armed it so ticks
// left over from a previous attempt are dropped.
type tickMsg struct {
	gen uint64
	at  time.Time
}

type savedMsg struct {
	attempt model.Attempt
	err     error
}

type bestLoadedMsg struct {
	best *model.Attempt
	err  error
}

// Model is the attempt screen: it owns one engine session and feeds it
// keystrokes and timer ticks.
type Model struct {
	test  model.Test
	cfg   model.TakeConfig
	store Store
	creds model.Credentials
	now   func() time.Time
	gen   uint64

	session     *engine.Session
	snap        engine.Snapshot
	targetRunes []rune

	width  int
	height int
	bar    progress.Model
	help   help.Model
	keys   keyMap

	warning string
	notice  string
	save    saveState
	saveErr error
	best    *model.Attempt

	// back is shown again when the user leaves the screen.
	back tea.Model
}

// NewModel prepares an attempt of test. The session does not start until
// the first keystroke.
func NewModel(test model.Test, cfg model.TakeConfig, st Store, creds model.Credentials) (*Model, error) {
	m := &Model{
		test:        test,
		cfg:         cfg,
		store:       st,
		creds:       creds,
		now:         time.Now,
		gen:         attemptSeq.Add(1),
		targetRunes: []rune(test.Content),
		bar:         progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage()),
		help:        help.New(),
		keys:        defaultKeymap,
	}
	session, err := engine.NewSession(test, engine.Options{
		BurstLimit: cfg.BurstLimit,
		OnComplete: m.onComplete,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to prepare test %s: %w", test.ID, err)
	}
	m.session = session
	m.snap = session.Snapshot(m.now())
	return m, nil
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return m.loadBest()
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil
	case tickMsg:
		if msg.gen != m.gen {
			return m, nil
		}
		m.snap = m.session.OnTimerTick(m.now())
		if m.snap.State == engine.InProgress {
			return m, m.tick()
		}
		return m, nil
	case bestLoadedMsg:
		if msg.err == nil {
			m.best = msg.best
		}
		return m, nil
	case savedMsg:
		m.handleSaved(msg)
		return m, nil
	case tea.KeyMsg:
		return m.handleKey(msg)
	default:
		return m, nil
	}
}

// View implements tea.Model.
func (m *Model) View() string {
	done := m.snap.State == engine.Completed
	typed := []rune(m.snap.Typed)
	cursorIndex := -1
	if !done && len(typed) < len(m.targetRunes) {
		cursorIndex = len(typed)
	}
	styledRunes := buildStyledRunes(m.targetRunes, typed, cursorIndex, done)

	var status string
	if done {
		status = m.renderResult()
	} else {
		status = m.renderTimer()
	}

	if m.width == 0 || m.height == 0 {
		return strings.Join([]string{m.renderHeader(), status, renderStyledRunes(styledRunes), m.renderFooter()}, "\n")
	}
	contentWidth := m.contentWidth()
	passage := lipgloss.NewStyle().Width(contentWidth).Render(wrapStyledRunes(styledRunes, contentWidth))
	content := lipgloss.JoinVertical(lipgloss.Left, m.renderHeader(), "", status, "", passage)
	if m.height < 3 {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
	}
	body := lipgloss.Place(m.width, m.height-1, lipgloss.Center, lipgloss.Center, content)
	footerLine := lipgloss.Place(m.width, 1, lipgloss.Center, lipgloss.Center, m.renderFooter())
	return body + "\n" + footerLine
}

func (m *Model) onComplete(_ model.ResultMetrics, reason engine.CompletionReason) {
	if reason == engine.ReasonTimeout {
		m.notice = "Time is up!"
		return
	}
	m.notice = "Test completed!"
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		m.session.Abandon()
		return m, tea.Quit
	case key.Matches(msg, m.keys.back):
		m.session.Abandon()
		if m.back != nil {
			return m.back, reload
		}
		return m, tea.Quit
	}
	if m.snap.State == engine.Completed {
		return m.handleResultKey(msg)
	}
	return m.handleTypingKey(msg)
}

func (m *Model) handleResultKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.save):
		if m.save == saveRunning || m.save == saveDone {
			return m, nil
		}
		cmd := m.saveCmd()
		if cmd != nil {
			m.save = saveRunning
			m.saveErr = nil
		}
		return m, cmd
	case key.Matches(msg, m.keys.retry):
		next, err := NewModel(m.test, m.cfg, m.store, m.creds)
		if err != nil {
			m.warning = err.Error()
			return m, nil
		}
		next.now = m.now
		next.back = m.back
		next.best = m.best
		next.resize(m.width, m.height)
		return next, nil
	case key.Matches(msg, m.keys.exit):
		return m, tea.Quit
	default:
		return m, nil
	}
}

func (m *Model) handleTypingKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var in engine.Input
	switch msg.Type {
	case tea.KeyBackspace, tea.KeyDelete:
		in = engine.Input{Kind: engine.InputDelete}
	case tea.KeySpace:
		in = engine.Input{Kind: engine.InputInsert, Text: " "}
	case tea.KeyEnter:
		in = engine.Input{Kind: engine.InputInsert, Text: "\n"}
	case tea.KeyTab:
		in = engine.Input{Kind: engine.InputInsert, Text: "\t"}
	case tea.KeyRunes:
		in = engine.Input{Kind: engine.InputInsert, Text: string(msg.Runes), Paste: msg.Paste}
	default:
		return m, nil
	}

	wasIdle := m.session.State() == engine.NotStarted
	snap, err := m.session.ApplyInput(m.now(), in)
	m.snap = snap
	switch {
	case errors.Is(err, engine.ErrBulkInput):
		m.warning = pasteWarning
	case err != nil:
		m.warning = err.Error()
	case snap.Truncated:
		m.warning = overflowWarning
	default:
		m.warning = ""
	}
	if wasIdle && snap.State == engine.InProgress {
		return m, m.tick()
	}
	return m, nil
}

func (m *Model) handleSaved(msg savedMsg) {
	if msg.err != nil {
		m.save = saveFailed
		m.saveErr = msg.err
		return
	}
	m.save = saveDone
	attempt := msg.attempt
	if m.best == nil || attempt.WPM > m.best.WPM {
		m.best = &attempt
	}
}

func (m *Model) tick() tea.Cmd {
	interval := m.cfg.TickInterval
	if interval <= 0 {
		interval = defaultTickInterval
	}
	gen := m.gen
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return tickMsg{gen: gen, at: t}
	})
}

func (m *Model) saveCmd() tea.Cmd {
	res, ok := m.session.Result()
	if !ok || m.store == nil {
		return nil
	}
	st, creds, testID := m.store, m.creds, m.test.ID
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		attempt, err := st.SaveAttempt(ctx, creds, testID, res)
		return savedMsg{attempt: attempt, err: err}
	}
}

func (m *Model) loadBest() tea.Cmd {
	if m.store == nil || !m.creds.Authenticated() {
		return nil
	}
	st, userID, testID := m.store, m.creds.UserID, m.test.ID
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		best, err := st.BestAttempt(ctx, userID, testID)
		return bestLoadedMsg{best: best, err: err}
	}
}

func (m *Model) resize(width, height int) {
	m.width = width
	m.height = height
	m.bar.Width = m.contentWidth()
	m.help.Width = width
}

func (m *Model) contentWidth() int {
	width := int(float64(m.width) * 0.70)
	if width < 1 {
		width = 1
	}
	return width
}

func (m *Model) renderHeader() string {
	parts := []string{titleStyle.Render(m.test.Title)}
	if m.test.Category != "" {
		parts = append(parts, badgeStyle.Render(m.test.Category))
	}
	if m.test.Difficulty != "" {
		parts = append(parts, badgeStyle.Render(string(m.test.Difficulty)))
	}
	return strings.Join(parts, " ")
}

func (m *Model) renderTimer() string {
	total := m.test.Duration()
	remaining := m.snap.Remaining
	fraction := 0.0
	if total > 0 {
		fraction = float64(remaining) / float64(total)
	}
	style := timerStyle
	if fraction < lowTimeFraction {
		style = warnStyle
	}
	label := style.Render("Time Remaining " + formatClock(remaining))
	return lipgloss.JoinVertical(lipgloss.Left, label, m.bar.ViewAs(fraction))
}

func (m *Model) renderResult() string {
	res, ok := m.session.Result()
	if !ok {
		return ""
	}
	rows := [][2]string{
		{"WPM", strconv.Itoa(res.WPM)},
		{"Accuracy", fmt.Sprintf("%.1f%%", res.AccuracyPercent)},
		{"CPM", strconv.Itoa(res.CPM)},
		{"Mistyped words", strconv.Itoa(res.MistypedWordsApprox)},
		{"Time", stats.FormatSeconds(res.DurationSeconds)},
	}
	if m.best != nil {
		rows = append(rows, [2]string{"Best WPM", strconv.Itoa(m.best.WPM)})
	}
	lines := make([]string, 0, len(rows)+2)
	lines = append(lines, titleStyle.Render(m.notice))
	for _, row := range rows {
		lines = append(lines, cardLabelStyle.Render(fmt.Sprintf("%-15s", row[0]))+cardValueStyle.Render(row[1]))
	}
	if line := m.renderSaveStatus(); line != "" {
		lines = append(lines, "", line)
	}
	return cardStyle.Render(strings.Join(lines, "\n"))
}

func (m *Model) renderSaveStatus() string {
	switch m.save {
	case saveRunning:
		return footerStyle.Render("Saving...")
	case saveDone:
		return successStyle.Render("Results saved.")
	case saveFailed:
		return errorStyle.Render(fmt.Sprintf("Could not save results: %v. Press s to try again.", m.saveErr))
	default:
		return ""
	}
}

func (m *Model) renderFooter() string {
	parts := []string{}
	switch m.snap.State {
	case engine.NotStarted:
		parts = append(parts, "Start typing to begin")
	case engine.InProgress:
		parts = append(parts, fmt.Sprintf("%d%% complete", int(math.Round(m.snap.Progress*100))))
	}
	if m.warning != "" {
		parts = append(parts, warnStyle.Render(m.warning))
	}
	parts = append(parts, m.help.ShortHelpView(m.helpKeys()))
	return footerStyle.Render(strings.Join(parts, " • "))
}

func (m *Model) helpKeys() []key.Binding {
	if m.snap.State != engine.Completed {
		return []key.Binding{m.keys.back, m.keys.quit}
	}
	keys := []key.Binding{}
	if m.save != saveDone {
		keys = append(keys, m.keys.save)
	}
	return append(keys, m.keys.retry, m.keys.back, m.keys.exit)
}

func formatClock(d time.Duration) string {
	return stats.FormatSeconds(int(math.Ceil(d.Seconds())))
}
