package main

import (
	"fmt"
	"io"
	"math/rand/v2"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/naveenspark/arcana/pkg/domain"
)

var greetings = [...]string{
	"The deck is shuffled. Nobody has cut it.",
	"Seventy-eight cards and not one of them knows your name yet.",
	"The Fool steps off the cliff. You are still reading the sign at the top.",
	"The Hermit lit the lantern for you. It is getting expensive.",
	"The Wheel turns whether you sign in or not.",
	"Three cards are face down on the table. Past, present, and a login prompt.",
	"The High Priestess knows what you came to ask. She prefers you ask it inside.",
	"The Tower fell again this morning. Someone should really be watching.",
	"Every reading starts with a question. Yours starts with a token.",
	"The cards do not lie. They do, however, wait.",
	"The Star is patient. The Moon less so.",
	"Death means change. The change you need is arcana login.",
	"Reversed or upright, a card you never draw tells you nothing.",
	"Ten cards in the cross. Zero of them dealt for you.",
	"The Magician has every tool on the table. You have a terminal. Close enough.",
}

func printGreeting(w io.Writer) {
	msg := greetings[rand.IntN(len(greetings))]

	title := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#f2d48a")).
		Bold(true).
		Render("ARCANA")

	quote := lipgloss.NewStyle().
		Foreground(lipgloss.Color("245")).
		Italic(true).
		Render(msg)

	hint := lipgloss.NewStyle().
		Foreground(lipgloss.Color("245")).
		Render("To sit down at the table: arcana login")

	fmt.Fprintf(w, "\n%s\n\n%s\n\n%s\n\n", title, quote, hint) //nolint:errcheck
}

// printHistory lists saved readings newest first.
func printHistory(w io.Writer, entries []domain.HistoryEntry, now time.Time) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No readings yet.") //nolint:errcheck
		return
	}
	labelStyle := lipgloss.NewStyle().Bold(true)
	metaStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	for _, e := range entries {
		when := "unseen"
		if e.Timestamp != nil {
			when = e.Timestamp.Format("2006-01-02 15:04")
			if now.Sub(*e.Timestamp) < 24*time.Hour {
				when = e.Timestamp.Format("15:04")
			}
		}
		fmt.Fprintf(w, "  %s  %s\n", labelStyle.Render(fmt.Sprintf("%-24s", e.Label)), //nolint:errcheck
			metaStyle.Render(fmt.Sprintf("%2d cards  %s", len(e.Cards), when)))
	}
}
