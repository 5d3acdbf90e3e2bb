package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/neu-lab/meg2bids/internal/emptyroom"
)

// catalogBrowserModel lets the operator pick a different empty-room archive
type catalogBrowserModel struct {
	title      string
	table      table.Model
	candidates []emptyroom.Candidate
	chosen     *emptyroom.Candidate
	done       bool
}

func newCatalogBrowser(title string, candidates []emptyroom.Candidate) catalogBrowserModel {
	rows := make([]table.Row, len(candidates))
	cursor := 0
	for i, c := range candidates {
		date := fmt.Sprintf("%08d", c.Entry.Date)
		if c.Matched {
			date = "*" + date
			cursor = i
		}
		listing := c.Listing
		if listing == "" {
			listing = "root"
		}
		rows[i] = table.Row{date, fmt.Sprintf("%d", c.Days), listing, c.Entry.Locator}
	}

	height := TableHeight
	if len(rows) < height {
		height = len(rows) + 1
	}

	t := table.New(
		table.WithColumns(BuildCatalogColumns()),
		table.WithRows(rows),
		table.WithFocused(true),
		table.WithHeight(height),
	)
	t.SetStyles(NewCatalogTableStyles())
	t.SetCursor(cursor)

	return catalogBrowserModel{
		title:      title,
		table:      t,
		candidates: candidates,
	}
}

// RunCatalogBrowser shows the candidates and returns the operator's pick,
// or nil when they cancel.
func RunCatalogBrowser(title string, candidates []emptyroom.Candidate) (*emptyroom.Candidate, error) {
	if len(candidates) == 0 {
		return nil, fmt.Errorf("no catalog entries to browse")
	}

	p := tea.NewProgram(newCatalogBrowser(title, candidates))
	finalModel, err := p.Run()
	if err != nil {
		return nil, fmt.Errorf("catalog browser error: %w", err)
	}
	return finalModel.(catalogBrowserModel).chosen, nil
}

func (m catalogBrowserModel) Init() tea.Cmd {
	return nil
}

func (m catalogBrowserModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "enter":
			idx := m.table.Cursor()
			if idx >= 0 && idx < len(m.candidates) {
				c := m.candidates[idx]
				m.chosen = &c
			}
			m.done = true
			return m, tea.Quit
		case "q", "esc", "ctrl+c":
			m.done = true
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m catalogBrowserModel) View() string {
	if m.done {
		return ""
	}
	var b strings.Builder
	b.WriteString(TitleStyle.Render(m.title))
	b.WriteString("\n")
	b.WriteString(BorderStyle.Render(m.table.View()))
	b.WriteString("\n")
	b.WriteString(HintStyle.Render("↑/↓ move • enter select • q cancel • * automatic match"))
	return b.String()
}
