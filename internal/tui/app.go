package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/naveenspark/arcana/internal/browser"
	"github.com/naveenspark/arcana/internal/catalog"
	"github.com/naveenspark/arcana/internal/clock"
	"github.com/naveenspark/arcana/internal/engine"
	"github.com/naveenspark/arcana/internal/history"
	"github.com/naveenspark/arcana/internal/preload"
	"github.com/naveenspark/arcana/internal/session"
	"github.com/naveenspark/arcana/internal/terms"
	"github.com/naveenspark/arcana/pkg/domain"
)

// Deps are the collaborators the TUI drives. Session and Preloader may be nil.
type Deps struct {
	Catalog   *catalog.Catalog
	Engine    *engine.Engine
	History   *history.Store
	Session   *session.Validator
	Terms     *terms.Coordinator
	Preloader *preload.Preloader
	Clock     clock.Clock
	Log       *zap.Logger
	APIURL    string
	SiteURL   string
}

type view int

const (
	viewBoard view = iota
	viewHistory
)

// Chrome: header(2) + tabs(1) + help(1).
const chromeLines = 4

// boardTop is the first terminal row of the card canvas: chrome above the
// body plus the board title line.
const boardTop = 4

type catalogLoadedMsg struct{ err error }

type preloadedMsg struct {
	failed int
	total  int
}

type sessionCheckedMsg struct{ state session.State }

// SessionChangedMsg carries a new session snapshot. Send it from a
// session.Validator subscription.
type SessionChangedMsg struct {
	Snapshot domain.SessionSnapshot
}

// App is the root Bubbletea model.
type App struct {
	deps       *Deps
	view       view
	board      boardModel
	history    historyModel
	terms      termsModel
	termsOpen  bool
	helpOpen   bool
	helpCursor int
	snap       domain.SessionSnapshot
	notice     string
	width      int
	height     int
	frame      int // logo shimmer animation frame
}

// NewApp creates the TUI. d.Catalog, d.Engine, d.History and d.Terms are required.
func NewApp(d Deps) App {
	if d.Clock == nil {
		d.Clock = clock.Real{}
	}
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	deps := &d
	return App{
		deps:    deps,
		board:   newBoardModel(deps),
		history: newHistoryModel(deps),
		terms:   termsModel{deps: deps},
	}
}

func (a App) Init() tea.Cmd {
	return tea.Batch(shimmerTickCmd(), a.loadCatalog(), a.validateSession())
}

func (a App) loadCatalog() tea.Cmd {
	c := a.deps.Catalog
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return catalogLoadedMsg{err: c.Load(ctx)}
	}
}

func (a App) validateSession() tea.Cmd {
	v := a.deps.Session
	if v == nil {
		return nil
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return sessionCheckedMsg{state: v.Validate(ctx, false)}
	}
}

// preloadImages warms the card images. Failures only get counted.
func (a App) preloadImages() tea.Cmd {
	p := a.deps.Preloader
	if p == nil {
		return nil
	}
	urls := a.deps.Catalog.ImageURLs()
	for i, u := range urls {
		urls[i] = resolveURL(a.deps.APIURL, u)
	}
	log := a.deps.Log
	return func() tea.Msg {
		results, err := p.Preload(context.Background(), urls)
		if err != nil {
			log.Warn("preload images", zap.Error(err))
		}
		failed := 0
		for _, r := range results {
			if !r.OK() {
				failed++
			}
		}
		return preloadedMsg{failed: failed, total: len(results)}
	}
}

func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		bodyMsg := tea.WindowSizeMsg{Width: msg.Width, Height: msg.Height - chromeLines}
		a.board, _ = a.board.Update(bodyMsg)
		a.history, _ = a.history.Update(bodyMsg)
		return a, nil

	case shimmerTickMsg:
		a.frame++
		return a, shimmerTickCmd()

	case catalogLoadedMsg:
		if msg.err != nil {
			a.deps.Log.Warn("load catalog", zap.Error(msg.err))
			a.notice = "could not load the deck"
			return a, nil
		}
		a.notice = ""
		a.board.setSpreads(a.deps.Catalog.Spreads())
		return a, a.preloadImages()

	case preloadedMsg:
		if msg.failed > 0 {
			a.deps.Log.Info("images unavailable", zap.Int("failed", msg.failed), zap.Int("total", msg.total))
		}
		return a, nil

	case sessionCheckedMsg:
		a.snap = a.deps.Session.Snapshot()
		a.termsOpen = a.deps.Terms.ShowModal()
		if msg.state == session.StateInvalid {
			a.notice = "signed out · run arcana login"
		}
		return a, nil

	case SessionChangedMsg:
		a.snap = msg.Snapshot
		return a, nil

	case TermsVisibilityMsg:
		// Notifications can arrive out of order; the coordinator is authoritative.
		a.termsOpen = a.deps.Terms.ShowModal()
		return a, nil

	case termsConfirmedMsg:
		a.terms, _ = a.terms.Update(msg)
		a.termsOpen = a.deps.Terms.ShowModal()
		if a.deps.Session != nil {
			a.snap = a.deps.Session.Snapshot()
		}
		if msg.accepted {
			a.notice = ""
		}
		return a, nil

	case loadEntryMsg:
		a.view = viewBoard
		if err := a.deps.Engine.LoadHistory(msg.entry); err != nil {
			a.board.status = errText(err)
		} else {
			a.board.status = "loaded " + msg.entry.Label
		}
		a.board.refresh()
		return a, nil

	case animTickMsg, dealtMsg, copiedMsg:
		var cmd tea.Cmd
		a.board, cmd = a.board.Update(msg)
		return a, cmd

	case historyLoadedMsg, historyDeletedMsg:
		var cmd tea.Cmd
		a.history, cmd = a.history.Update(msg)
		return a, cmd

	case tea.MouseMsg:
		if a.view != viewBoard || a.termsOpen || a.helpOpen {
			return a, nil
		}
		msg.Y -= boardTop
		var cmd tea.Cmd
		a.board, cmd = a.board.Update(msg)
		return a, cmd

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return a, tea.Quit
		}

		// Terms modal captures all keys when open
		if a.termsOpen {
			var cmd tea.Cmd
			a.terms, cmd = a.terms.Update(msg)
			a.termsOpen = a.deps.Terms.ShowModal()
			return a, cmd
		}

		// Help overlay captures all keys when open
		if a.helpOpen {
			switch msg.String() {
			case "h", "esc":
				a.helpOpen = false
			case "q":
				return a, tea.Quit
			case "j", "down":
				if a.helpCursor < len(helpItems)-1 {
					a.helpCursor++
				}
			case "k", "up":
				if a.helpCursor > 0 {
					a.helpCursor--
				}
			case "enter":
				browser.Open(a.deps.SiteURL + helpItems[a.helpCursor].path) //nolint:errcheck // best-effort browser open
			}
			return a, nil
		}

		switch msg.String() {
		case "h", "?":
			a.helpOpen = true
			a.helpCursor = 0
			return a, nil
		case "q":
			return a, tea.Quit
		case "t":
			a.deps.Terms.Open()
			a.termsOpen = true
			return a, nil
		case "1":
			a.view = viewBoard
			a.board.refresh()
			return a, nil
		case "2":
			if a.view != viewHistory {
				a.view = viewHistory
				return a, a.history.Init()
			}
			return a, nil
		}
	}

	var cmd tea.Cmd
	switch a.view {
	case viewBoard:
		a.board, cmd = a.board.Update(msg)
	case viewHistory:
		a.history, cmd = a.history.Update(msg)
	}
	return a, cmd
}

func (a App) View() string {
	logo := renderShimmerLogo(a.frame)
	header := centerLine(logo, a.width) + "\n" + centerLine(a.statsLine(), a.width)

	tabs := []struct {
		key  string
		name string
		v    view
	}{
		{"1", "Board", viewBoard},
		{"2", "History", viewHistory},
	}
	colWidth := a.width / len(tabs)
	var tabBar strings.Builder
	for _, t := range tabs {
		var label string
		if t.v == a.view {
			label = accentStyle.Render(t.key) + " " + selectedStyle.Underline(true).Render(t.name)
		} else {
			label = metaStyle.Render(t.key) + " " + dimStyle.Render(t.name)
		}
		tabBar.WriteString(lipgloss.PlaceHorizontal(colWidth, lipgloss.Center, label))
	}

	var body, help string
	switch a.view {
	case viewBoard:
		body = a.board.View()
		help = helpBar("d", "deal", "s/n", "step", "f", "free", "tab", "focus", "space", "flip", "c", "copy", "h", "help", "q", "quit")
	case viewHistory:
		body = a.history.View()
		help = helpBar("1-2", "tabs", "j/k", "nav", "enter", "load", "x", "delete", "h", "help", "q", "quit")
	}

	if a.helpOpen {
		body = helpView(a.helpCursor, a.deps.SiteURL)
		help = helpBar("j/k", "nav", "enter", "open", "esc", "close")
	}
	if a.termsOpen {
		body = "\n" + a.terms.View(a.width)
		help = helpBar("y", "accept", "o", "read", "esc", "later")
	}

	body = strings.TrimRight(truncateToHeight(body, a.height-chromeLines), "\n")
	return fmt.Sprintf("%s\n%s\n%s\n%s", header, tabBar.String(), body, help)
}

func (a App) statsLine() string {
	var parts []string
	if a.snap.SignedIn() {
		if a.snap.Email != "" {
			parts = append(parts, a.snap.Email)
		}
		parts = append(parts, goldStyle.Render(fmt.Sprintf("%d drucoins", a.snap.Drucoins)))
	}
	if a.notice != "" {
		parts = append(parts, errorStyle.Render(a.notice))
	}
	return metaStyle.Render(strings.Join(parts, " · "))
}

func centerLine(s string, width int) string {
	pad := max((width-lipgloss.Width(s))/2, 0)
	return strings.Repeat(" ", pad) + s
}
