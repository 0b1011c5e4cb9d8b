package tui

import (
	"context"
	"strconv"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/typekaro/internal/model"
	"github.com/verte-zerg/typekaro/internal/stats"
)

const maxPickerRows = 15

type testsLoadedMsg struct {
	tests []model.Test
	best  map[string]model.Attempt
	err   error
}

type reloadMsg struct{}

func reload() tea.Msg {
	return reloadMsg{}
}

// Picker lists the available tests with the user's best WPM and opens the
// attempt screen for the selected one.
type Picker struct {
	store Store
	creds model.Credentials
	cfg   model.TakeConfig

	tests []model.Test
	best  map[string]model.Attempt
	err   error

	table  table.Model
	help   help.Model
	keys   keyMap
	width  int
	height int
}

// NewPicker constructs the test picker.
func NewPicker(st Store, creds model.Credentials, cfg model.TakeConfig) *Picker {
	t := table.New(
		table.WithColumns(pickerColumns()),
		table.WithFocused(true),
		table.WithHeight(maxPickerRows),
	)
	return &Picker{
		store: st,
		creds: creds,
		cfg:   cfg,
		best:  map[string]model.Attempt{},
		table: t,
		help:  help.New(),
		keys:  defaultKeymap,
	}
}

// Init implements tea.Model.
func (p *Picker) Init() tea.Cmd {
	return p.load()
}

// Update implements tea.Model.
func (p *Picker) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		p.width = msg.Width
		p.height = msg.Height
		p.help.Width = msg.Width
		p.fitTable()
		return p, nil
	case testsLoadedMsg:
		p.err = msg.err
		if msg.err == nil {
			p.tests = msg.tests
			p.best = msg.best
			p.table.SetRows(pickerRows(p.tests, p.best))
			p.fitTable()
		}
		return p, nil
	case reloadMsg:
		return p, p.load()
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, p.keys.quit), key.Matches(msg, p.keys.exit):
			return p, tea.Quit
		case key.Matches(msg, p.keys.reload):
			return p, p.load()
		case key.Matches(msg, p.keys.start):
			return p.open()
		}
	}
	var cmd tea.Cmd
	p.table, cmd = p.table.Update(msg)
	return p, cmd
}

// View implements tea.Model.
func (p *Picker) View() string {
	lines := []string{titleStyle.Render("Typing Tests"), ""}
	if len(p.tests) == 0 && p.err == nil {
		lines = append(lines, footerStyle.Render("No tests available."))
	} else {
		lines = append(lines, p.table.View())
	}
	if p.err != nil {
		lines = append(lines, "", errorStyle.Render(p.err.Error()))
	}
	lines = append(lines, "", p.help.ShortHelpView([]key.Binding{p.keys.up, p.keys.down, p.keys.start, p.keys.reload, p.keys.exit}))
	content := lipgloss.JoinVertical(lipgloss.Left, lines...)
	if p.width == 0 || p.height == 0 {
		return content
	}
	return lipgloss.Place(p.width, p.height, lipgloss.Center, lipgloss.Center, content)
}

func (p *Picker) open() (tea.Model, tea.Cmd) {
	idx := p.table.Cursor()
	if idx < 0 || idx >= len(p.tests) {
		return p, nil
	}
	next, err := NewModel(p.tests[idx], p.cfg, p.store, p.creds)
	if err != nil {
		p.err = err
		return p, nil
	}
	next.back = p
	if p.width > 0 {
		next.resize(p.width, p.height)
	}
	return next, next.Init()
}

func (p *Picker) load() tea.Cmd {
	st, creds := p.store, p.creds
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		tests, err := st.ListTests(ctx)
		if err != nil {
			return testsLoadedMsg{err: err}
		}
		best := map[string]model.Attempt{}
		if creds.Authenticated() {
			best, err = st.BestAttempts(ctx, creds.UserID)
			if err != nil {
				return testsLoadedMsg{err: err}
			}
		}
		return testsLoadedMsg{tests: tests, best: best}
	}
}

func (p *Picker) fitTable() {
	height := len(p.tests) + 2
	if height > maxPickerRows {
		height = maxPickerRows
	}
	if p.height > 0 && height > p.height-6 {
		height = p.height - 6
	}
	if height < 2 {
		height = 2
	}
	p.table.SetHeight(height)
}

func pickerColumns() []table.Column {
	return []table.Column{
		{Title: "Title", Width: 36},
		{Title: "Category", Width: 14},
		{Title: "Difficulty", Width: 10},
		{Title: "Time", Width: 6},
		{Title: "Best WPM", Width: 8},
	}
}

func pickerRows(tests []model.Test, best map[string]model.Attempt) []table.Row {
	rows := make([]table.Row, 0, len(tests))
	for _, t := range tests {
		bestWPM := "-"
		if a, ok := best[t.ID]; ok {
			bestWPM = strconv.Itoa(a.WPM)
		}
		rows = append(rows, table.Row{
			t.Title,
			t.Category,
			string(t.Difficulty),
			stats.FormatSeconds(t.DurationSeconds),
			bestWPM,
		})
	}
	return rows
}
