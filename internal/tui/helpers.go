package tui

import (
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/naveenspark/arcana/pkg/domain"
)

// formatTime renders a relative timestamp for the history list.
func formatTime(t time.Time, now time.Time) string {
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}

// truncStr truncates a string to maxLen runes, appending an ellipsis if needed.
func truncStr(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxLen-1]) + "…"
}

// truncateToHeight limits output to maxLines newline-delimited lines.
// Returns the original string if it fits or maxLines is <= 0.
func truncateToHeight(s string, maxLines int) string {
	if maxLines <= 0 {
		return s
	}
	n := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			n++
			if n >= maxLines {
				return s[:i+1]
			}
		}
	}
	return s
}

// center pads s with spaces to width runes, truncating when longer.
func center(s string, width int) string {
	s = truncStr(s, width)
	gap := width - utf8.RuneCountInString(s)
	left := gap / 2
	return strings.Repeat(" ", left) + s + strings.Repeat(" ", gap-left)
}

// wrapName splits a card name over two lines of at most width runes.
// "The High Priestess" at 7 becomes "The", "High P…".
func wrapName(name string, width int) (string, string) {
	words := strings.Fields(name)
	var first string
	i := 0
	for ; i < len(words); i++ {
		next := words[i]
		if first != "" {
			next = first + " " + words[i]
		}
		if utf8.RuneCountInString(next) > width {
			break
		}
		first = next
	}
	if first == "" && len(words) > 0 {
		return truncStr(words[0], width), truncStr(strings.Join(words[1:], " "), width)
	}
	return first, truncStr(strings.Join(words[i:], " "), width)
}

// cardLookup resolves a card id to its catalog entry.
type cardLookup func(id string) (domain.CardMeta, bool)

// readingText formats the visible cards as plain text for the clipboard.
func readingText(label string, def domain.SpreadDef, cards []domain.PlacedCard, lookup cardLookup) string {
	var b strings.Builder
	if label == "" {
		label = "Reading"
	}
	b.WriteString(label + "\n")
	for i, c := range cards {
		b.WriteString(cardLine(i, def, c, lookup) + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func cardLine(i int, def domain.SpreadDef, c domain.PlacedCard, lookup cardLookup) string {
	pos := c.Position
	if pos == 0 {
		pos = i + 1
	}
	line := fmt.Sprintf("%d. ", pos)
	if name := def.PositionName(pos); name != "" {
		line += name + ": "
	}
	if !c.FaceUp {
		return line + "face down"
	}
	name := c.CardID
	if meta, ok := lookup(c.CardID); ok {
		name = meta.Name
	}
	if c.Reversed {
		name += " (reversed)"
	}
	return line + name
}

// resolveURL makes ref absolute against base; absolute refs pass through.
func resolveURL(base, ref string) string {
	r, err := url.Parse(ref)
	if err != nil || r.IsAbs() {
		return ref
	}
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}
