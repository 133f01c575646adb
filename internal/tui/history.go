package tui

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/naveenspark/arcana/pkg/domain"
)

type historyLoadedMsg struct {
	entries []domain.HistoryEntry
	err     error
}

type historyDeletedMsg struct {
	id  string
	err error
}

// loadEntryMsg asks the app to put a saved reading back on the board.
type loadEntryMsg struct {
	entry domain.HistoryEntry
}

type historyModel struct {
	deps    *Deps
	entries []domain.HistoryEntry
	cursor  int
	loading bool
	err     string
	width   int
	height  int
}

func newHistoryModel(d *Deps) historyModel {
	return historyModel{deps: d}
}

// Init opens the view, which back-fills missing timestamps.
func (m *historyModel) Init() tea.Cmd {
	m.loading = true
	h, now := m.deps.History, m.deps.Clock.Now()
	return func() tea.Msg {
		entries, err := h.OpenView(context.Background(), now)
		return historyLoadedMsg{entries: entries, err: err}
	}
}

func (m historyModel) deleteCmd(id string) tea.Cmd {
	h := m.deps.History
	return func() tea.Msg {
		return historyDeletedMsg{id: id, err: h.Delete(context.Background(), id)}
	}
}

func (m historyModel) Update(msg tea.Msg) (historyModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case historyLoadedMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err.Error()
			return m, nil
		}
		m.err = ""
		m.entries = msg.entries
		m.cursor = min(m.cursor, max(len(m.entries)-1, 0))

	case historyDeletedMsg:
		if msg.err != nil {
			m.err = msg.err.Error()
			return m, nil
		}
		for i, e := range m.entries {
			if e.ID == msg.id {
				m.entries = append(m.entries[:i], m.entries[i+1:]...)
				break
			}
		}
		m.cursor = min(m.cursor, max(len(m.entries)-1, 0))

	case tea.KeyMsg:
		switch msg.String() {
		case "j", "down":
			if m.cursor < len(m.entries)-1 {
				m.cursor++
			}
		case "k", "up":
			if m.cursor > 0 {
				m.cursor--
			}
		case "enter":
			if m.cursor < len(m.entries) {
				e := m.entries[m.cursor].Clone()
				return m, func() tea.Msg { return loadEntryMsg{entry: e} }
			}
		case "x":
			if m.cursor < len(m.entries) {
				return m, m.deleteCmd(m.entries[m.cursor].ID)
			}
		case "r":
			return m, m.Init()
		}
	}
	return m, nil
}

func (m historyModel) View() string {
	if m.loading && len(m.entries) == 0 {
		return "\n" + dimStyle.Render("  opening history...")
	}
	if m.err != "" {
		return "\n" + errorStyle.Render("  "+m.err)
	}
	if len(m.entries) == 0 {
		return "\n" + dimStyle.Render("  no readings yet. deal one with d on the board")
	}

	now := m.deps.Clock.Now()
	var b strings.Builder
	b.WriteString("\n")
	for i, e := range m.entries {
		when := ""
		if e.Timestamp != nil {
			when = formatTime(*e.Timestamp, now)
		}
		label := truncStr(e.Label, max(m.width-30, 12))
		line := fmt.Sprintf("%-*s %2d cards  %s", max(m.width-30, 12), label, len(e.Cards), when)
		if i == m.cursor {
			b.WriteString(accentStyle.Render("  > ") + selectedStyle.Render(line) + "\n")
		} else {
			b.WriteString("    " + normalStyle.Render(line) + "\n")
		}
	}
	return b.String()
}
