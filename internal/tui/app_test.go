package tui

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/naveenspark/arcana/internal/catalog"
	"github.com/naveenspark/arcana/internal/clock"
	"github.com/naveenspark/arcana/internal/engine"
	"github.com/naveenspark/arcana/internal/history"
	"github.com/naveenspark/arcana/internal/session"
	"github.com/naveenspark/arcana/internal/storage"
	"github.com/naveenspark/arcana/internal/terms"
	"github.com/naveenspark/arcana/pkg/domain"
)

var testCards = []domain.CardMeta{
	{ID: "m00", Name: "The Fool", Suit: domain.SuitMajor},
	{ID: "m01", Name: "The Magician", Suit: domain.SuitMajor},
	{ID: "m02", Name: "The High Priestess", Suit: domain.SuitMajor},
	{ID: "w01", Name: "Ace of Wands", Suit: domain.SuitWands},
	{ID: "w02", Name: "Two of Wands", Suit: domain.SuitWands},
	{ID: "c01", Name: "Ace of Cups", Suit: domain.SuitCups},
	{ID: "c02", Name: "Two of Cups", Suit: domain.SuitCups},
	{ID: "s01", Name: "Ace of Swords", Suit: domain.SuitSwords},
	{ID: "s02", Name: "Two of Swords", Suit: domain.SuitSwords},
	{ID: "p01", Name: "Ace of Pentacles", Suit: domain.SuitPentacles},
	{ID: "p02", Name: "Two of Pentacles", Suit: domain.SuitPentacles},
	{ID: "p03", Name: "Three of Pentacles", Suit: domain.SuitPentacles},
}

var testSpreads = []domain.SpreadDef{
	{ID: domain.SpreadPPF, Name: "Past, Present, Future", Positions: []string{"Past", "Present", "Future"}},
	{ID: domain.SpreadCross, Name: "Celtic Cross", Count: 10},
}

type stubSource struct{}

func (stubSource) ListSpreads(context.Context) ([]domain.SpreadDef, error) { return testSpreads, nil }
func (stubSource) ListDecks(context.Context) ([]domain.CardMeta, error)    { return testCards, nil }

// stubDrawer deals the deck in order, the first card reversed.
type stubDrawer struct{}

func (stubDrawer) Draw(_ context.Context, spreadID string) (*domain.DrawResult, error) {
	n := 3
	if spreadID == domain.SpreadCross {
		n = 10
	}
	res := &domain.DrawResult{SpreadID: spreadID}
	for i := range n {
		res.Cards = append(res.Cards, domain.DrawnCard{Position: i + 1, CardID: testCards[i].ID, Reversed: i == 0})
	}
	return res, nil
}

type stubAcceptor struct{ err error }

func (s stubAcceptor) AcceptTerms(context.Context, string) error { return s.err }

type stubValidator struct{}

func (stubValidator) Validate(context.Context, bool) session.State { return session.StateOK }

type testEnv struct {
	app   App
	clock *clock.Fake
	hist  *history.Store
	coord *terms.Coordinator
}

func newTestEnv(t *testing.T, acceptErr error) *testEnv {
	t.Helper()
	cat := catalog.New(stubSource{})
	if err := cat.Load(context.Background()); err != nil {
		t.Fatalf("catalog.Load: %v", err)
	}
	clk := clock.NewFake(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
	hist := history.New(storage.NewMemory(), zap.NewNop())
	eng := engine.New(cat, stubDrawer{}, hist, engine.WithClock(clk))
	coord := terms.New(stubAcceptor{err: acceptErr}, stubValidator{}, "2024-06-01", zap.NewNop())

	a := NewApp(Deps{
		Catalog: cat,
		Engine:  eng,
		History: hist,
		Terms:   coord,
		Clock:   clk,
		SiteURL: "https://arcana.cards",
	})
	env := &testEnv{app: a, clock: clk, hist: hist, coord: coord}
	env.send(tea.WindowSizeMsg{Width: 100, Height: 40})
	env.send(catalogLoadedMsg{})
	return env
}

func (e *testEnv) send(msg tea.Msg) tea.Cmd {
	model, cmd := e.app.Update(msg)
	e.app = model.(App)
	return cmd
}

func (e *testEnv) press(key string) tea.Cmd {
	switch key {
	case "tab":
		return e.send(tea.KeyMsg{Type: tea.KeyTab})
	case "enter":
		return e.send(tea.KeyMsg{Type: tea.KeyEnter})
	case "esc":
		return e.send(tea.KeyMsg{Type: tea.KeyEsc})
	case "space":
		return e.send(tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}})
	}
	return e.send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)})
}

// run executes cmd and feeds its message back into the app.
func (e *testEnv) run(t *testing.T, cmd tea.Cmd) tea.Cmd {
	t.Helper()
	if cmd == nil {
		t.Fatal("expected a command, got nil")
	}
	return e.send(cmd())
}

// settle jumps the clock past every reveal and delivers one animation tick.
func (e *testEnv) settle() {
	e.send(animTickMsg(e.clock.Advance(10 * time.Second)))
}

func TestAppTabSwitching(t *testing.T) {
	env := newTestEnv(t, nil)
	cmd := env.press("2")
	if env.app.view != viewHistory {
		t.Fatalf("after 2: view = %d, want %d", env.app.view, viewHistory)
	}
	if cmd == nil {
		t.Error("opening history should load entries")
	}
	env.press("1")
	if env.app.view != viewBoard {
		t.Errorf("after 1: view = %d, want %d", env.app.view, viewBoard)
	}
}

func TestAppGlobalQuitOnQ(t *testing.T) {
	env := newTestEnv(t, nil)
	cmd := env.press("q")
	if cmd == nil {
		t.Fatal("expected quit command on 'q', got nil")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("expected tea.QuitMsg")
	}
}

func TestAppCatalogLoadInstallsSpreads(t *testing.T) {
	env := newTestEnv(t, nil)
	if got := env.app.board.spreadID(); got != domain.SpreadPPF {
		t.Fatalf("spreadID = %q, want %q", got, domain.SpreadPPF)
	}
	env.press("]")
	if got := env.app.board.spreadID(); got != domain.SpreadCross {
		t.Errorf("after ]: spreadID = %q, want %q", got, domain.SpreadCross)
	}
	env.press("]")
	env.press("[")
	if got := env.app.board.spreadID(); got != domain.SpreadCross {
		t.Errorf("after ] [: spreadID = %q, want %q", got, domain.SpreadCross)
	}
}

func TestAppCatalogLoadFailureShowsNotice(t *testing.T) {
	env := newTestEnv(t, nil)
	env.send(catalogLoadedMsg{err: errors.New("offline")})
	if !strings.Contains(stripANSI(env.app.View()), "could not load the deck") {
		t.Error("expected deck notice in header")
	}
}

func TestAppDealRevealsAndSaves(t *testing.T) {
	env := newTestEnv(t, nil)
	cmd := env.press("d")
	tick := env.run(t, cmd)
	if tick == nil {
		t.Fatal("expected animation tick after deal")
	}
	if !env.app.board.board.Dealing {
		t.Error("board should be dealing before the reveal finishes")
	}

	env.settle()
	b := env.app.board.board
	if b.Dealing {
		t.Error("board still dealing after settle")
	}
	if len(b.Cards) != 3 {
		t.Fatalf("cards = %d, want 3", len(b.Cards))
	}
	for i, c := range b.Cards {
		if !c.Dealt || !c.FaceUp {
			t.Errorf("card %d not revealed: %+v", i, c)
		}
	}
	if env.app.board.status != "reading saved to history" {
		t.Errorf("status = %q", env.app.board.status)
	}
	entries, err := env.hist.List(context.Background())
	if err != nil || len(entries) != 1 {
		t.Fatalf("history = %d entries, err %v; want 1", len(entries), err)
	}

	view := stripANSI(env.app.View())
	for _, want := range []string{"1. Past: The Fool (reversed)", "3. Future: The High Priestess"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestAppDealRejectedWhileDealing(t *testing.T) {
	env := newTestEnv(t, nil)
	env.run(t, env.press("d"))
	if cmd := env.press("d"); cmd != nil {
		t.Error("second deal should not start while dealing")
	}
	if env.app.board.status != "wait for the cards to settle" {
		t.Errorf("status = %q", env.app.board.status)
	}
}

func TestAppStepDeal(t *testing.T) {
	env := newTestEnv(t, nil)
	env.run(t, env.press("s"))
	if got := env.app.board.board.StepRemaining; got != 10 {
		t.Fatalf("StepRemaining = %d, want 10", got)
	}
	for range 10 {
		env.press("n")
	}
	env.settle()
	b := env.app.board.board
	if len(b.Cards) != 10 || b.Dealing {
		t.Fatalf("cards = %d dealing = %v, want 10 settled", len(b.Cards), b.Dealing)
	}
	if b.Cards[1].R != 90 {
		t.Errorf("crossing card rotation = %v, want 90", b.Cards[1].R)
	}
	env.press("n")
	if env.app.board.status != "press s to start a step deal" {
		t.Errorf("status = %q", env.app.board.status)
	}
}

func TestAppFreeCardsAndPlacement(t *testing.T) {
	env := newTestEnv(t, nil)
	env.press("p")
	if env.app.board.placement != "fan" {
		t.Errorf("placement = %q, want fan", env.app.board.placement)
	}
	env.press("F")
	env.settle()
	env.press("f")
	env.settle()
	b := env.app.board.board
	if b.SpreadID != domain.SpreadFree || len(b.Cards) != 6 {
		t.Fatalf("free board = %q with %d cards, want 6", b.SpreadID, len(b.Cards))
	}
	if b.Layers != 1 {
		t.Errorf("layers = %d, want 1", b.Layers)
	}
}

func TestAppFocusToggleAndNudge(t *testing.T) {
	env := newTestEnv(t, nil)
	env.run(t, env.press("d"))
	env.settle()

	env.press("space")
	if env.app.board.status != "no card focused (tab)" {
		t.Errorf("status = %q", env.app.board.status)
	}

	env.press("tab")
	env.press("tab")
	if got := env.app.board.board.Focus; got != 1 {
		t.Fatalf("focus = %d, want 1", got)
	}
	env.press("space")
	c := env.app.board.board.Cards[1]
	if c.FaceUp {
		t.Error("toggle should flip the focused card face down")
	}
	// Focus raised cards 0 and 1 to 13 and 14; the flip goes above both.
	if c.Z != 15 {
		t.Errorf("toggled z = %d, want 15", c.Z)
	}

	x := c.X
	env.send(tea.KeyMsg{Type: tea.KeyRight})
	if got := env.app.board.board.Cards[1].X; math.Abs(got-(x+dragStep)) > 1e-9 {
		t.Errorf("x after right = %v, want %v", got, x+dragStep)
	}
}

func TestAppHistoryLoadAndDelete(t *testing.T) {
	env := newTestEnv(t, nil)
	env.run(t, env.press("d"))
	env.settle()

	env.run(t, env.press("2"))
	if len(env.app.history.entries) != 1 {
		t.Fatalf("history entries = %d, want 1", len(env.app.history.entries))
	}
	if ts := env.app.history.entries[0].Timestamp; ts == nil {
		t.Error("opening the view should back-fill the timestamp")
	}
	if !strings.Contains(stripANSI(env.app.View()), "Past, Present, Future") {
		t.Error("history view should list the reading")
	}

	env.run(t, env.press("enter"))
	if env.app.view != viewBoard {
		t.Errorf("view = %d, want board after load", env.app.view)
	}
	if len(env.app.board.board.Cards) != 3 {
		t.Errorf("loaded cards = %d, want 3", len(env.app.board.board.Cards))
	}

	env.run(t, env.press("2"))
	env.run(t, env.press("x"))
	if len(env.app.history.entries) != 0 {
		t.Errorf("entries after delete = %d, want 0", len(env.app.history.entries))
	}
	entries, _ := env.hist.List(context.Background())
	if len(entries) != 0 {
		t.Errorf("stored entries after delete = %d, want 0", len(entries))
	}
}

func TestAppTermsModalConfirm(t *testing.T) {
	env := newTestEnv(t, nil)
	env.press("t")
	if !env.app.termsOpen || !env.coord.ShowModal() {
		t.Fatal("t should open the terms modal")
	}
	if !strings.Contains(stripANSI(env.app.View()), "Terms of Service") {
		t.Error("modal not rendered")
	}
	// Keys go to the modal, not the board.
	if cmd := env.press("d"); cmd != nil {
		t.Error("d should be swallowed by the modal")
	}

	env.run(t, env.press("y"))
	if env.app.termsOpen {
		t.Error("modal should close after acceptance")
	}
}

func TestAppTermsModalFailureStaysOpen(t *testing.T) {
	env := newTestEnv(t, errors.New("boom"))
	env.coord.Open()
	env.send(TermsVisibilityMsg{Show: true})
	env.run(t, env.press("y"))
	if !env.app.termsOpen {
		t.Fatal("modal should stay open after a failed acceptance")
	}
	if !strings.Contains(stripANSI(env.app.View()), "could not record acceptance") {
		t.Error("expected failure text")
	}
	env.press("esc")
	if env.app.termsOpen {
		t.Error("esc should dismiss the modal")
	}
}

func TestAppHelpOverlay(t *testing.T) {
	env := newTestEnv(t, nil)
	env.press("h")
	if !env.app.helpOpen {
		t.Fatal("h should open help")
	}
	env.press("j")
	if env.app.helpCursor != 1 {
		t.Errorf("helpCursor = %d, want 1", env.app.helpCursor)
	}
	if !strings.Contains(stripANSI(env.app.View()), "https://arcana.cards/privacy") {
		t.Error("help should list links")
	}
	env.press("esc")
	if env.app.helpOpen {
		t.Error("esc should close help")
	}
}

func TestAppTermsVisibilityFollowsCoordinator(t *testing.T) {
	env := newTestEnv(t, nil)
	env.send(TermsVisibilityMsg{Show: true})
	if env.app.termsOpen {
		t.Error("stale show notification should not open the modal")
	}
	env.coord.SetNeedsTerms(true)
	env.send(TermsVisibilityMsg{Show: true})
	if !env.app.termsOpen {
		t.Error("needsTerms should open the modal")
	}
}

func TestAppSessionChangedUpdatesHeader(t *testing.T) {
	env := newTestEnv(t, nil)
	env.send(SessionChangedMsg{Snapshot: domain.SessionSnapshot{UID: "u1", Email: "seer@example.com", Drucoins: 7}})
	view := stripANSI(env.app.View())
	if !strings.Contains(view, "seer@example.com") || !strings.Contains(view, "7 drucoins") {
		t.Errorf("header missing session info:\n%s", view)
	}
}

func TestAppMouseDragMovesCard(t *testing.T) {
	env := newTestEnv(t, nil)
	env.run(t, env.press("d"))
	env.settle()

	b := env.app.board
	w, h := b.canvasSize()
	l, top, _, _ := cardRect(b.board.Cards[0], w, h)
	env.send(tea.MouseMsg{X: l + 1, Y: top + 1 + boardTop, Action: tea.MouseActionPress, Button: tea.MouseButtonLeft})
	if env.app.board.dragging != 0 {
		t.Fatalf("dragging = %d, want 0", env.app.board.dragging)
	}
	env.send(tea.MouseMsg{X: w / 2, Y: h/2 + boardTop, Action: tea.MouseActionMotion})
	env.send(tea.MouseMsg{X: w / 2, Y: h/2 + boardTop, Action: tea.MouseActionRelease})
	c := env.app.board.board.Cards[0]
	if c.X != float64(w/2)/float64(w)*100 {
		t.Errorf("dragged X = %v", c.X)
	}
	if env.app.board.dragging != -1 {
		t.Error("release should end the drag")
	}
	if !c.FaceUp {
		t.Error("a drag should not flip the card")
	}
}

func TestAppMouseClickFlipsCard(t *testing.T) {
	env := newTestEnv(t, nil)
	env.run(t, env.press("d"))
	env.settle()

	b := env.app.board
	w, h := b.canvasSize()
	l, top, _, _ := cardRect(b.board.Cards[2], w, h)
	x, y := l+2, top+2+boardTop
	env.send(tea.MouseMsg{X: x, Y: y, Action: tea.MouseActionPress, Button: tea.MouseButtonLeft})
	env.send(tea.MouseMsg{X: x, Y: y, Action: tea.MouseActionRelease})
	c := env.app.board.board.Cards[2]
	if c.FaceUp {
		t.Error("click should flip the card face down")
	}
	if c.Z != 13 {
		t.Errorf("clicked z = %d, want 13", c.Z)
	}
}
