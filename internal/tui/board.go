package tui

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/naveenspark/arcana/internal/engine"
	"github.com/naveenspark/arcana/internal/layout"
	"github.com/naveenspark/arcana/pkg/domain"
)

// Card boxes in terminal cells. A crossing card lies on its side.
const (
	cardW     = 9
	cardH     = 5
	crossingW = 11
	crossingH = 3
)

// animInterval paces engine.Advance while transitions are pending.
const animInterval = 30 * time.Millisecond

// dragStep is how far an arrow key moves the focused card, in percent.
const dragStep = 2.0

type animTickMsg time.Time

func animTickCmd() tea.Cmd {
	return tea.Tick(animInterval, func(t time.Time) tea.Msg { return animTickMsg(t) })
}

// dealtMsg reports the end of the network part of a deal.
type dealtMsg struct {
	step bool
	err  error
}

type copiedMsg struct{ err error }

type boardModel struct {
	deps      *Deps
	spreads   []domain.SpreadDef
	spreadIdx int
	placement layout.Placement
	board     engine.Board
	animating bool
	dragging  int // index of the card under the mouse, -1 when idle
	moved     bool
	status    string
	width     int
	height    int
}

func newBoardModel(d *Deps) boardModel {
	return boardModel{deps: d, placement: layout.PlaceGrid, dragging: -1}
}

// setSpreads installs the catalog spreads, keeping the current selection by id.
func (m *boardModel) setSpreads(spreads []domain.SpreadDef) {
	cur := m.spreadID()
	m.spreads = spreads
	m.spreadIdx = 0
	for i, s := range spreads {
		if s.ID == cur {
			m.spreadIdx = i
		}
	}
}

func (m boardModel) spreadID() string {
	if len(m.spreads) == 0 {
		return ""
	}
	return m.spreads[m.spreadIdx].ID
}

func (m boardModel) spreadDef() domain.SpreadDef {
	if m.board.SpreadID == "" || m.board.SpreadID == domain.SpreadFree {
		return domain.SpreadDef{ID: m.board.SpreadID}
	}
	if m.deps.Catalog != nil {
		if def, ok := m.deps.Catalog.Spread(m.board.SpreadID); ok {
			return def
		}
	}
	return domain.SpreadDef{ID: m.board.SpreadID}
}

func (m *boardModel) refresh() {
	m.board = m.deps.Engine.Board()
}

// animate starts the tick loop unless one is already running.
func (m *boardModel) animate() tea.Cmd {
	m.refresh()
	if m.animating {
		return nil
	}
	if _, ok := m.deps.Engine.NextDue(); !ok {
		return nil
	}
	m.animating = true
	return animTickCmd()
}

func (m boardModel) dealCmd(spreadID string, step bool) tea.Cmd {
	e := m.deps.Engine
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		var err error
		if step {
			err = e.StartStepDeal(ctx, spreadID)
		} else {
			err = e.Deal(ctx, spreadID)
		}
		return dealtMsg{step: step, err: err}
	}
}

func (m boardModel) copyCmd() tea.Cmd {
	text := readingText(m.board.Label, m.spreadDef(), m.board.Cards, m.lookup)
	return func() tea.Msg {
		return copiedMsg{err: clipboard.WriteAll(text)}
	}
}

func (m boardModel) lookup(id string) (domain.CardMeta, bool) {
	if m.deps.Catalog == nil {
		return domain.CardMeta{}, false
	}
	return m.deps.Catalog.Card(id)
}

func (m boardModel) Update(msg tea.Msg) (boardModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case dealtMsg:
		if msg.err != nil {
			m.status = errText(msg.err)
			m.refresh()
			return m, nil
		}
		m.status = ""
		if msg.step {
			m.status = "press n to deal the next card"
		}
		return m, m.animate()

	case animTickMsg:
		tick := m.deps.Engine.Advance(m.deps.Clock.Now())
		m.refresh()
		if tick.Err != nil {
			m.status = "could not save reading: " + tick.Err.Error()
		} else if len(tick.Saved) > 0 {
			m.status = "reading saved to history"
		}
		if tick.Pending {
			return m, animTickCmd()
		}
		m.animating = false
		return m, nil

	case copiedMsg:
		if msg.err != nil {
			m.status = "copy failed: " + msg.err.Error()
		} else {
			m.status = "reading copied"
		}
		return m, nil

	case tea.MouseMsg:
		return m.handleMouse(msg), nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m boardModel) handleKey(msg tea.KeyMsg) (boardModel, tea.Cmd) {
	e := m.deps.Engine
	switch msg.String() {
	case "d":
		if !e.CanDeal() {
			m.status = m.blockedReason()
			return m, nil
		}
		m.status = "drawing…"
		return m, m.dealCmd(m.spreadID(), false)
	case "s":
		if !e.CanDeal() {
			m.status = m.blockedReason()
			return m, nil
		}
		m.status = "drawing…"
		return m, m.dealCmd(domain.SpreadCross, true)
	case "n":
		left, err := e.DealNext()
		if err != nil {
			m.status = errText(err)
			return m, nil
		}
		m.status = fmt.Sprintf("%d left", left)
		if left == 0 {
			m.status = ""
		}
		return m, m.animate()
	case "f", "F":
		n := 1
		if msg.String() == "F" {
			n = 5
		}
		if err := e.AddFree(n, m.placement); err != nil {
			m.status = errText(err)
			return m, nil
		}
		m.status = ""
		return m, m.animate()
	case "p":
		m.placement = m.placement.Next()
		m.status = "placement: " + string(m.placement)
	case "l":
		e.NextLayer()
		m.refresh()
	case "[", "]":
		if len(m.spreads) > 0 {
			step := 1
			if msg.String() == "[" {
				step = len(m.spreads) - 1
			}
			m.spreadIdx = (m.spreadIdx + step) % len(m.spreads)
			m.status = "spread: " + m.spreads[m.spreadIdx].Name
		}
	case "tab":
		e.FocusNext()
		m.refresh()
	case "shift+tab":
		e.FocusPrev()
		m.refresh()
	case " ":
		if err := e.Toggle(m.board.Focus); err != nil {
			m.status = errText(err)
			return m, nil
		}
		m.refresh()
	case "left", "right", "up", "down":
		m.nudge(msg.String())
	case "c":
		if len(m.board.Cards) == 0 {
			m.status = "nothing to copy"
			return m, nil
		}
		return m, m.copyCmd()
	}
	return m, nil
}

// nudge moves the focused card by dragStep percent.
func (m *boardModel) nudge(dir string) {
	i := m.board.Focus
	if i < 0 || i >= len(m.board.Cards) {
		return
	}
	c := m.board.Cards[i]
	x, y := c.X, c.Y
	switch dir {
	case "left":
		x -= dragStep
	case "right":
		x += dragStep
	case "up":
		y -= dragStep
	case "down":
		y += dragStep
	}
	b := engine.Bounds{W: 100, H: 100}
	if err := m.deps.Engine.Drag(i, engine.Point{X: x, Y: y}, b); err != nil {
		m.status = errText(err)
		return
	}
	m.refresh()
}

// handleMouse drags the topmost card under the pointer, or flips it when
// released without moving. Coordinates are relative to the board canvas.
func (m boardModel) handleMouse(msg tea.MouseMsg) boardModel {
	w, h := m.canvasSize()
	switch msg.Action {
	case tea.MouseActionPress:
		if msg.Button != tea.MouseButtonLeft {
			return m
		}
		m.dragging = hitTest(m.board.Cards, msg.X, msg.Y, w, h)
		m.moved = false
	case tea.MouseActionMotion:
		if m.dragging < 0 {
			return m
		}
		m.moved = true
		pt := engine.Point{X: float64(msg.X), Y: float64(msg.Y)}
		b := engine.Bounds{W: float64(w), H: float64(h)}
		if err := m.deps.Engine.Drag(m.dragging, pt, b); err != nil {
			m.status = errText(err)
			m.dragging = -1
		}
	case tea.MouseActionRelease:
		if m.dragging >= 0 && !m.moved {
			if err := m.deps.Engine.Toggle(m.dragging); err != nil {
				m.status = errText(err)
			}
		}
		m.dragging = -1
	}
	m.refresh()
	return m
}

func (m boardModel) blockedReason() string {
	if m.deps.Catalog == nil || !m.deps.Catalog.Loaded() {
		return "deck not loaded yet"
	}
	return "wait for the cards to settle"
}

// canvasSize is the card area: the body minus the legend.
func (m boardModel) canvasSize() (int, int) {
	legend := len(m.board.Cards) + 1
	return max(m.width, crossingW), max(m.height-legend-1, cardH)
}

func (m boardModel) View() string {
	var b strings.Builder
	b.WriteString(m.titleLine() + "\n")
	if len(m.board.Cards) == 0 {
		b.WriteString("\n" + dimStyle.Render("  the table is empty") + "\n\n")
		b.WriteString(metaStyle.Render("  d deal · s step cross · f free card · [ ] choose spread") + "\n")
		return b.String()
	}
	w, h := m.canvasSize()
	b.WriteString(renderCanvas(m.board.Cards, m.board.Focus, w, h, m.lookup))
	b.WriteString("\n")
	def := m.spreadDef()
	for i, c := range m.board.Cards {
		line := "  " + cardLine(i, def, c, m.lookup)
		if i == m.board.Focus {
			line = selectedStyle.Render(line)
		} else {
			line = metaStyle.Render(line)
		}
		b.WriteString(line + "\n")
	}
	if m.status != "" {
		b.WriteString(" " + accentStyle.Render(m.status))
	}
	return b.String()
}

func (m boardModel) titleLine() string {
	spread := "no spreads"
	if len(m.spreads) > 0 {
		spread = m.spreads[m.spreadIdx].Name
	}
	parts := []string{" " + goldStyle.Render(spread)}
	if m.board.Label != "" && m.board.SpreadID != m.spreadID() {
		parts = append(parts, metaStyle.Render("showing "+m.board.Label))
	}
	if m.board.Layers > 0 {
		parts = append(parts, metaStyle.Render(fmt.Sprintf("layer %d/%d", m.board.ActiveLayer+1, m.board.Layers)))
	}
	parts = append(parts, metaStyle.Render("placement "+string(m.placement)))
	if m.board.StepRemaining > 0 {
		parts = append(parts, accentStyle.Render(fmt.Sprintf("%d to deal", m.board.StepRemaining)))
	}
	if m.board.Dealing {
		parts = append(parts, dimStyle.Render("dealing"))
	}
	return strings.Join(parts, "  ")
}

func errText(err error) string {
	switch {
	case errors.Is(err, engine.ErrDealing):
		return "wait for the cards to settle"
	case errors.Is(err, engine.ErrDeckNotLoaded):
		return "deck not loaded yet"
	case errors.Is(err, engine.ErrNoStepDeal):
		return "press s to start a step deal"
	case errors.Is(err, engine.ErrDeckExhausted):
		return "the deck is exhausted"
	case errors.Is(err, engine.ErrNoCard):
		return "no card focused (tab)"
	}
	return err.Error()
}

// --- canvas ---

type cell struct {
	r  rune
	st int
}

func crossing(r float64) bool {
	a := math.Mod(math.Abs(r), 180)
	return a >= 45 && a <= 135
}

func boxSize(c domain.PlacedCard) (int, int) {
	if crossing(c.R) {
		return crossingW, crossingH
	}
	return cardW, cardH
}

// cardRect maps a card's percentage position to its top-left cell, clamped
// so the box stays on the canvas.
func cardRect(c domain.PlacedCard, w, h int) (left, top, bw, bh int) {
	bw, bh = boxSize(c)
	cx := int(math.Round(c.X / 100 * float64(w)))
	cy := int(math.Round(c.Y / 100 * float64(h)))
	left = min(max(cx-bw/2, 0), max(w-bw, 0))
	top = min(max(cy-bh/2, 0), max(h-bh, 0))
	return left, top, bw, bh
}

// hitTest returns the index of the topmost dealt card covering (x, y), or -1.
func hitTest(cards []domain.PlacedCard, x, y, w, h int) int {
	hit, z := -1, math.MinInt
	for i, c := range cards {
		if !c.Dealt {
			continue
		}
		l, t, bw, bh := cardRect(c, w, h)
		if x >= l && x < l+bw && y >= t && y < t+bh && c.Z > z {
			hit, z = i, c.Z
		}
	}
	return hit
}

// renderCanvas draws dealt cards in ascending z so higher cards cover lower ones.
func renderCanvas(cards []domain.PlacedCard, focus, w, h int, lookup cardLookup) string {
	grid := make([][]cell, h)
	for y := range grid {
		grid[y] = make([]cell, w)
		for x := range grid[y] {
			grid[y][x] = cell{r: ' '}
		}
	}
	styles := []lipgloss.Style{lipgloss.NewStyle()}

	order := make([]int, 0, len(cards))
	for i, c := range cards {
		if c.Dealt {
			order = append(order, i)
		}
	}
	sort.SliceStable(order, func(a, b int) bool { return cards[order[a]].Z < cards[order[b]].Z })

	for _, i := range order {
		c := cards[i]
		border := cardBackStyle
		fill := cardBackStyle
		if c.FaceUp {
			meta, _ := lookup(c.CardID)
			border = SuitStyle(meta.Suit)
			fill = normalStyle
			if c.Reversed {
				fill = reversedStyle
			}
		}
		if i == focus {
			border = cardFocusStyle
		}
		styles = append(styles, border, fill)
		bst, fst := len(styles)-2, len(styles)-1

		left, top, bw, bh := cardRect(c, w, h)
		lines := cardFace(c, bw, bh, lookup)
		for dy, line := range lines {
			y := top + dy
			if y < 0 || y >= h {
				continue
			}
			for dx, r := range []rune(line) {
				x := left + dx
				if x < 0 || x >= w {
					continue
				}
				st := fst
				if dy == 0 || dy == bh-1 || dx == 0 || dx == bw-1 {
					st = bst
				}
				grid[y][x] = cell{r: r, st: st}
			}
		}
	}

	var b strings.Builder
	for y, row := range grid {
		if y > 0 {
			b.WriteByte('\n')
		}
		writeRow(&b, row, styles)
	}
	return b.String()
}

// writeRow renders runs of same-styled cells with one Render call each.
func writeRow(b *strings.Builder, row []cell, styles []lipgloss.Style) {
	var run []rune
	cur := 0
	flush := func() {
		if len(run) == 0 {
			return
		}
		if cur == 0 {
			b.WriteString(string(run))
		} else {
			b.WriteString(styles[cur].Render(string(run)))
		}
		run = run[:0]
	}
	for _, c := range row {
		if c.st != cur {
			flush()
			cur = c.st
		}
		run = append(run, c.r)
	}
	flush()
}

// cardFace returns the bw x bh box for a card, each line exactly bw runes.
func cardFace(c domain.PlacedCard, bw, bh int, lookup cardLookup) []string {
	inner := bw - 2
	lines := make([]string, 0, bh)
	lines = append(lines, "┌"+strings.Repeat("─", inner)+"┐")
	body := make([]string, bh-2)
	switch {
	case !c.FaceUp:
		for i := range body {
			body[i] = strings.Repeat("░", inner)
		}
	default:
		name := c.CardID
		if meta, ok := lookup(c.CardID); ok {
			name = meta.Name
		}
		mark := "▲"
		if c.Reversed {
			mark = "▼"
		}
		if len(body) == 1 {
			body[0] = center(truncStr(name, inner-2)+" "+mark, inner)
		} else {
			first, second := wrapName(name, inner)
			body[0] = center(first, inner)
			body[1] = center(second, inner)
			for i := 2; i < len(body); i++ {
				body[i] = center("", inner)
			}
			body[len(body)-1] = center(mark, inner)
		}
	}
	for _, l := range body {
		lines = append(lines, "│"+l+"│")
	}
	lines = append(lines, "└"+strings.Repeat("─", inner)+"┘")
	return lines
}
