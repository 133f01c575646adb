package tui

import (
	"context"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/naveenspark/arcana/internal/browser"
)

// TermsVisibilityMsg tells the app the terms modal visibility changed.
// Send it from a terms.Coordinator subscription.
type TermsVisibilityMsg struct {
	Show bool
}

type termsConfirmedMsg struct {
	accepted bool
}

type termsModel struct {
	deps       *Deps
	confirming bool
	failed     bool
}

func (m termsModel) confirmCmd() tea.Cmd {
	coord := m.deps.Terms
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return termsConfirmedMsg{accepted: coord.Confirm(ctx)}
	}
}

func (m termsModel) Update(msg tea.Msg) (termsModel, tea.Cmd) {
	switch msg := msg.(type) {
	case termsConfirmedMsg:
		m.confirming = false
		m.failed = !msg.accepted
	case tea.KeyMsg:
		switch msg.String() {
		case "y", "enter":
			if m.confirming {
				return m, nil
			}
			m.confirming = true
			m.failed = false
			return m, m.confirmCmd()
		case "o":
			browser.Open(m.deps.SiteURL + "/terms") //nolint:errcheck // best-effort browser open
		case "esc", "n":
			m.failed = false
			m.deps.Terms.Close()
		}
	}
	return m, nil
}

func (m termsModel) View(width int) string {
	var b strings.Builder
	b.WriteString(goldStyle.Bold(true).Render("Terms of Service") + "\n\n")
	b.WriteString(normalStyle.Render("Our terms have changed. Please review and") + "\n")
	b.WriteString(normalStyle.Render("accept them to keep drawing readings.") + "\n\n")
	b.WriteString(metaStyle.Render(m.deps.SiteURL+"/terms") + "\n\n")
	switch {
	case m.confirming:
		b.WriteString(accentStyle.Render("recording acceptance..."))
	case m.failed:
		b.WriteString(errorStyle.Render("could not record acceptance, try again"))
	default:
		b.WriteString(helpEntry("y", "accept") + "  " + helpEntry("o", "read") + "  " + helpEntry("esc", "later"))
	}
	box := modalStyle.Render(b.String())
	return lipgloss.PlaceHorizontal(width, lipgloss.Center, box)
}
