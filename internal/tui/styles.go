package tui

import (
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/naveenspark/arcana/pkg/domain"
)

// Shimmer animation for the ARCANA logo.
type shimmerTickMsg time.Time

func shimmerTickCmd() tea.Cmd {
	return tea.Tick(80*time.Millisecond, func(t time.Time) tea.Msg {
		return shimmerTickMsg(t)
	})
}

// renderShimmerLogo renders "A R C A N A" as a slow wave of candlelight,
// deep violet (#2e1a47) rising to pale gold (#f2d48a).
func renderShimmerLogo(frame int) string {
	const text = "ARCANA"
	n := len(text)
	t := float64(frame)

	var out strings.Builder
	for i := 0; i < n; i++ {
		x := float64(i) / float64(n-1)

		phase := t*0.08 - x*2.6
		phase += math.Sin(t*0.019) * 1.5

		b := math.Sin(phase)*0.5 + 0.5
		b = math.Pow(b, 1.4)

		// Flicker
		b = b*0.8 + math.Sin(t*0.041+x)*0.08 + 0.12
		b = min(max(b, 0.05), 1.0)

		r := clampByte(46 + b*(242-46))
		g := clampByte(26 + b*(212-26))
		bl := clampByte(71 + b*(138-71))

		s := lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(fmt.Sprintf("#%02X%02X%02X", r, g, bl)))
		out.WriteString(s.Render(string(text[i])))
		if i < n-1 {
			out.WriteString("  ")
		}
	}
	return out.String()
}

func clampByte(v float64) int {
	if v > 255 {
		return 255
	}
	if v < 0 {
		return 0
	}
	return int(v)
}

var (
	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#8a84a0"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#ece6f6")).
			Bold(true)

	normalStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#c6c0d6"))

	metaStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#5a5270"))

	helpKeyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#8a84a0"))

	helpLabelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#5a5270"))

	accentStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#b48cf0"))

	goldStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#e0b85c"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#c46a6a"))

	// Card faces
	cardBackStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#4b3a6e"))

	cardFocusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#f2d48a")).
			Bold(true)

	reversedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#c46a6a")).
			Italic(true)

	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#b48cf0")).
			Padding(1, 3)

	suitColors = map[domain.Suit]lipgloss.Color{
		domain.SuitMajor:     lipgloss.Color("#f2d48a"),
		domain.SuitWands:     lipgloss.Color("#f0944a"),
		domain.SuitCups:      lipgloss.Color("#60a0e0"),
		domain.SuitSwords:    lipgloss.Color("#b8ccdf"),
		domain.SuitPentacles: lipgloss.Color("#6cc08a"),
	}
)

// SuitStyle returns the face color for a suit.
func SuitStyle(s domain.Suit) lipgloss.Style {
	if c, ok := suitColors[s]; ok {
		return lipgloss.NewStyle().Foreground(c)
	}
	return normalStyle
}

// helpEntry renders a single "key label" pair for help bars.
func helpEntry(key, label string) string {
	return helpKeyStyle.Render(key) + " " + helpLabelStyle.Render(label)
}

func helpBar(pairs ...string) string {
	parts := make([]string, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		parts = append(parts, helpEntry(pairs[i], pairs[i+1]))
	}
	return " " + strings.Join(parts, "  ")
}

// helpItem is a selectable link in the help overlay.
type helpItem struct {
	label string
	path  string
}

var helpItems = []helpItem{
	{"Terms of Service", "/terms"},
	{"Privacy Policy", "/privacy"},
	{"Website", "/"},
}

// helpView renders the help overlay. siteURL prefixes the link paths.
func helpView(cursor int, siteURL string) string {
	title := goldStyle.Bold(true).Render("A R C A N A")
	quote := lipgloss.NewStyle().
		Foreground(lipgloss.Color("245")).
		Italic(true).
		Render(`"Shuffle, cut, and ask plainly."`)

	cmdStyle := lipgloss.NewStyle().Bold(true)
	descStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	sectionStyle := descStyle.Bold(true)
	pickStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#b48cf0"))

	keys := []struct{ key, desc string }{
		{"d", "deal the selected spread"},
		{"s / n", "step deal, then next card"},
		{"[ / ]", "choose spread"},
		{"f / F", "add one / five free cards"},
		{"p / l", "cycle placement / layer"},
		{"tab", "focus next card"},
		{"space", "flip focused card"},
		{"arrows", "move focused card"},
		{"c", "copy reading"},
		{"t", "review terms"},
		{"1 / 2", "board / history"},
	}

	var b strings.Builder
	fmt.Fprintf(&b, "\n  %s\n\n  %s\n\n", title, quote)
	fmt.Fprintf(&b, "  %s\n", sectionStyle.Render("Keys"))
	for _, k := range keys {
		fmt.Fprintf(&b, "    %s  %s\n", cmdStyle.Render(fmt.Sprintf("%-8s", k.key)), descStyle.Render(k.desc))
	}

	fmt.Fprintf(&b, "\n  %s\n", sectionStyle.Render("Links (enter to open)"))
	for i, item := range helpItems {
		label := cmdStyle.Render(fmt.Sprintf("%-18s", item.label))
		prefix := "    "
		if i == cursor {
			label = pickStyle.Render(fmt.Sprintf("%-18s", item.label))
			prefix = "  > "
		}
		fmt.Fprintf(&b, "%s%s  %s\n", prefix, label, descStyle.Italic(true).Render(siteURL+item.path))
	}
	return b.String()
}
