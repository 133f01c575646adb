// Package engine is the board state machine: fixed-spread deals, step-by-step
// deals, free-form layers, card interaction and history saves. Reveal timing
// runs on an anim.Schedule advanced by the caller's clock ticks.
package engine

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/naveenspark/arcana/internal/anim"
	"github.com/naveenspark/arcana/internal/clock"
	"github.com/naveenspark/arcana/internal/layout"
	"github.com/naveenspark/arcana/pkg/domain"
)

var (
	ErrDealing       = errors.New("engine: a deal is in progress")
	ErrDeckNotLoaded = errors.New("engine: deck not loaded")
	ErrUnknownSpread = errors.New("engine: unknown spread")
	ErrNoStepDeal    = errors.New("engine: no step deal in progress")
	ErrNoCard        = errors.New("engine: no card at index")
	ErrInvalidCount  = errors.New("engine: card count must be positive")
	ErrDeckExhausted = errors.New("engine: not enough cards left in the deck")
)

// Deck is the loaded catalog.
type Deck interface {
	Loaded() bool
	Cards() []domain.CardMeta
	Spread(id string) (domain.SpreadDef, bool)
}

// Drawer requests a randomized draw for a spread.
type Drawer interface {
	Draw(ctx context.Context, spreadID string) (*domain.DrawResult, error)
}

// Saver persists completed readings.
type Saver interface {
	Prepend(ctx context.Context, e domain.HistoryEntry) (domain.HistoryEntry, error)
}

// RNG drives free-form draws and pile jitter. *rand.Rand satisfies it.
type RNG interface {
	IntN(n int) int
	Float64() float64
}

type globalRNG struct{}

func (globalRNG) IntN(n int) int   { return rand.IntN(n) }
func (globalRNG) Float64() float64 { return rand.Float64() }

// FreeLabel is the history label of free-form readings.
const FreeLabel = "Free draw"

// Engine is safe for concurrent use. The network draw runs outside the lock;
// every other operation, including scheduled transitions, runs under it.
type Engine struct {
	deck   Deck
	drawer Drawer
	saver  Saver
	clock  clock.Clock
	timing anim.Timing
	rng    RNG
	log    *zap.Logger

	mu       sync.Mutex
	sched    anim.Schedule
	gen      uint64 // bumped whenever the board is replaced
	dealing  bool
	spreadID string
	label    string
	cards    []domain.PlacedCard // fixed-spread board
	layers   []domain.Layer      // free-form board
	active   int
	focus    int
	step     *stepDeal
	saved    []domain.HistoryEntry
	errs     []error
}

type stepDeal struct {
	buffer []domain.PlacedCard
	next   int
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock replaces the wall clock.
func WithClock(c clock.Clock) Option { return func(e *Engine) { e.clock = c } }

// WithTiming replaces anim.DefaultTiming.
func WithTiming(t anim.Timing) Option { return func(e *Engine) { e.timing = t } }

// WithRNG replaces the process-wide random source.
func WithRNG(r RNG) Option { return func(e *Engine) { e.rng = r } }

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option { return func(e *Engine) { e.log = l } }

// New returns an idle engine with an empty board.
func New(deck Deck, drawer Drawer, saver Saver, opts ...Option) *Engine {
	e := &Engine{
		deck:   deck,
		drawer: drawer,
		saver:  saver,
		clock:  clock.Real{},
		timing: anim.DefaultTiming,
		rng:    globalRNG{},
		log:    zap.NewNop(),
		focus:  -1,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CanDeal reports whether a new deal may start: the deck is loaded and no
// deal is animating.
func (e *Engine) CanDeal() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.gateLocked() == nil
}

func (e *Engine) gateLocked() error {
	if !e.deck.Loaded() {
		return ErrDeckNotLoaded
	}
	if e.dealing {
		return ErrDealing
	}
	return nil
}

// Deal draws spreadID from the backend and stages its reveal. The reading is
// saved once the slowest card has finished flipping.
func (e *Engine) Deal(ctx context.Context, spreadID string) error {
	slots, def, err := e.begin(spreadID)
	if err != nil {
		return fmt.Errorf("engine.Deal: %w", err)
	}
	placed, err := e.draw(ctx, spreadID, slots)

	e.mu.Lock()
	defer e.mu.Unlock()
	if err != nil {
		e.dealing = false
		return fmt.Errorf("engine.Deal: %w", err)
	}

	e.resetLocked(def.ID, def.Name)
	e.cards = placed
	gen := e.gen
	start := e.clock.Now()
	for i := range placed {
		e.planLocked(gen, start, i, e.timing.Plan(i))
	}
	e.sched.At(start.Add(e.timing.Total(len(placed))), func() { e.completeLocked(gen) })
	e.log.Debug("deal staged", zap.String("spread", def.ID), zap.Int("cards", len(placed)))
	return nil
}

// StartStepDeal draws spreadID up front and buffers it; cards then enter one
// at a time through DealNext. The engine stays in the dealing state until the
// buffer is exhausted and the last card has flipped, so an abandoned step
// deal is never saved.
func (e *Engine) StartStepDeal(ctx context.Context, spreadID string) error {
	slots, def, err := e.begin(spreadID)
	if err != nil {
		return fmt.Errorf("engine.StartStepDeal: %w", err)
	}
	placed, err := e.draw(ctx, spreadID, slots)

	e.mu.Lock()
	defer e.mu.Unlock()
	if err != nil {
		e.dealing = false
		return fmt.Errorf("engine.StartStepDeal: %w", err)
	}
	e.resetLocked(def.ID, def.Name)
	e.cards = []domain.PlacedCard{}
	e.step = &stepDeal{buffer: placed}
	return nil
}

// DealNext moves the next buffered card onto the board and returns how many
// remain.
func (e *Engine) DealNext() (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.step == nil || e.step.next >= len(e.step.buffer) {
		return 0, ErrNoStepDeal
	}
	card := e.step.buffer[e.step.next]
	card.Delay = 0
	e.step.next++
	e.cards = append(e.cards, card)

	gen := e.gen
	now := e.clock.Now()
	e.planLocked(gen, now, len(e.cards)-1, e.timing.Plan(0))

	remaining := len(e.step.buffer) - e.step.next
	if remaining == 0 {
		e.sched.At(now.Add(e.timing.Total(1)), func() { e.completeLocked(gen) })
	}
	return remaining, nil
}

// begin claims the dealing state for a fixed spread.
func (e *Engine) begin(spreadID string) ([]domain.Slot, domain.SpreadDef, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.gateLocked(); err != nil {
		return nil, domain.SpreadDef{}, err
	}
	def, ok := e.deck.Spread(spreadID)
	if !ok || spreadID == domain.SpreadFree {
		return nil, domain.SpreadDef{}, fmt.Errorf("%w: %q", ErrUnknownSpread, spreadID)
	}
	slots := layout.SlotsFor(def)
	if len(slots) == 0 {
		return nil, domain.SpreadDef{}, fmt.Errorf("%w: %q has no slots", ErrUnknownSpread, spreadID)
	}
	e.dealing = true
	return slots, def, nil
}

// draw calls the backend without holding the lock and zips the result
// against slots by index.
func (e *Engine) draw(ctx context.Context, spreadID string, slots []domain.Slot) ([]domain.PlacedCard, error) {
	res, err := e.drawer.Draw(ctx, spreadID)
	if err != nil {
		return nil, err
	}
	n := min(len(res.Cards), len(slots))
	if n == 0 {
		return nil, fmt.Errorf("empty draw for %q", spreadID)
	}
	if len(res.Cards) != len(slots) {
		e.log.Warn("draw size does not match spread",
			zap.String("spread", spreadID), zap.Int("drawn", len(res.Cards)), zap.Int("slots", len(slots)))
	}
	placed := make([]domain.PlacedCard, n)
	for i := range placed {
		s, d := slots[i], res.Cards[i]
		placed[i] = domain.PlacedCard{
			CardID:   d.CardID,
			Reversed: d.Reversed,
			X:        s.X,
			Y:        s.Y,
			R:        s.R,
			Z:        s.Z,
			Delay:    (time.Duration(i) * e.timing.Stagger).Milliseconds(),
			Position: s.Position,
		}
	}
	return placed, nil
}

// Toggle flips the visible card at index i and raises it above every other
// visible card.
func (e *Engine) Toggle(i int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	c, err := e.cardLocked(i)
	if err != nil {
		return fmt.Errorf("engine.Toggle: %w", err)
	}
	c.FaceUp = !c.FaceUp
	c.Z = e.topZLocked() + 1
	return nil
}

// Point is a pointer position in board coordinates.
type Point struct{ X, Y float64 }

// Bounds is the size of the board in the same units as Point.
type Bounds struct{ W, H float64 }

// Drag moves the visible card at index i to pt, converted to percentages of
// bounds and clamped to the board. Rotation and stacking order are kept.
func (e *Engine) Drag(i int, pt Point, b Bounds) error {
	if b.W <= 0 || b.H <= 0 {
		return fmt.Errorf("engine.Drag: empty bounds %vx%v", b.W, b.H)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	c, err := e.cardLocked(i)
	if err != nil {
		return fmt.Errorf("engine.Drag: %w", err)
	}
	c.X = clampPct(pt.X / b.W * 100)
	c.Y = clampPct(pt.Y / b.H * 100)
	return nil
}

func clampPct(v float64) float64 {
	return min(max(v, 0), 100)
}

// FocusNext moves keyboard focus to the next visible card, wrapping around,
// and raises it above the others. It returns -1 when nothing is visible.
func (e *Engine) FocusNext() int { return e.moveFocus(1) }

// FocusPrev moves keyboard focus to the previous visible card, wrapping around.
func (e *Engine) FocusPrev() int { return e.moveFocus(-1) }

func (e *Engine) moveFocus(delta int) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := len(e.visibleLocked())
	switch {
	case n == 0:
		e.focus = -1
	case e.focus < 0 && delta < 0:
		e.focus = n - 1
	case e.focus < 0:
		e.focus = 0
	default:
		e.focus = ((e.focus+delta)%n + n) % n
	}
	if e.focus >= 0 {
		top := e.topZLocked()
		e.visibleLocked()[e.focus].Z = top + 1
	}
	return e.focus
}

// LoadHistory replaces the board with a deep copy of entry. Free-form entries
// come back as a single layer.
func (e *Engine) LoadHistory(entry domain.HistoryEntry) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.dealing {
		return fmt.Errorf("engine.LoadHistory: %w", ErrDealing)
	}
	entry = entry.Clone()
	e.resetLocked(entry.SpreadID, entry.Label)
	if entry.SpreadID == domain.SpreadFree {
		layer := make(domain.Layer, len(entry.Cards))
		for i, c := range entry.Cards {
			c.Layer = 0
			layer[i] = c
		}
		e.layers = []domain.Layer{layer}
		return nil
	}
	e.cards = entry.Cards
	return nil
}

// Tick reports what an Advance call did.
type Tick struct {
	Fired   int
	Pending bool
	Saved   []domain.HistoryEntry
	Err     error
}

// Advance fires every transition due at now.
func (e *Engine) Advance(now time.Time) Tick {
	e.mu.Lock()
	defer e.mu.Unlock()
	fired := e.sched.Run(now)
	return e.drainLocked(fired)
}

// Close fires every pending transition immediately, so a deal interrupted by
// shutdown is still saved, and leaves the engine idle.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	fired := e.sched.Flush()
	t := e.drainLocked(fired)
	if fired > 0 {
		e.log.Debug("flushed pending transitions", zap.Int("fired", fired))
	}
	return t.Err
}

func (e *Engine) drainLocked(fired int) Tick {
	t := Tick{
		Fired:   fired,
		Pending: e.sched.Pending() > 0,
		Saved:   e.saved,
		Err:     errors.Join(e.errs...),
	}
	e.saved, e.errs = nil, nil
	return t
}

// Board is a point-in-time copy of the engine state.
type Board struct {
	SpreadID      string
	Label         string
	Cards         []domain.PlacedCard // visible cards
	Layers        int
	ActiveLayer   int
	Focus         int
	Dealing       bool
	StepRemaining int
}

// Board returns a snapshot of the visible board.
func (e *Engine) Board() Board {
	e.mu.Lock()
	defer e.mu.Unlock()
	b := Board{
		SpreadID:    e.spreadID,
		Label:       e.label,
		Cards:       domain.CloneCards(e.visibleLocked()),
		Layers:      len(e.layers),
		ActiveLayer: e.active,
		Focus:       e.focus,
		Dealing:     e.dealing,
	}
	if e.step != nil {
		b.StepRemaining = len(e.step.buffer) - e.step.next
	}
	return b
}

// NextDue returns the time of the earliest pending transition.
func (e *Engine) NextDue() (time.Time, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sched.Next()
}

func (e *Engine) resetLocked(spreadID, label string) {
	e.gen++
	e.sched.Cancel()
	e.spreadID, e.label = spreadID, label
	e.cards, e.layers, e.active = nil, nil, 0
	e.focus = -1
	e.step = nil
}

// visibleLocked returns the backing slice of the cards on screen: the fixed
// spread, or the active layer in free-form mode.
func (e *Engine) visibleLocked() []domain.PlacedCard {
	if e.spreadID == domain.SpreadFree {
		if e.active < len(e.layers) {
			return e.layers[e.active]
		}
		return nil
	}
	return e.cards
}

func (e *Engine) cardLocked(i int) (*domain.PlacedCard, error) {
	vis := e.visibleLocked()
	if i < 0 || i >= len(vis) {
		return nil, fmt.Errorf("%w %d", ErrNoCard, i)
	}
	return &vis[i], nil
}

func (e *Engine) topZLocked() int {
	top := 0
	for _, c := range e.visibleLocked() {
		top = max(top, c.Z)
	}
	return top
}

func (e *Engine) planLocked(gen uint64, start time.Time, i int, steps []anim.Step) {
	for _, st := range steps {
		phase := st.Phase
		e.sched.At(start.Add(st.Offset), func() {
			if gen != e.gen || i >= len(e.cards) {
				return
			}
			apply(&e.cards[i], phase)
		})
	}
}

func apply(c *domain.PlacedCard, p anim.Phase) {
	switch p {
	case anim.PhaseDealt:
		c.Dealt = true
	case anim.PhaseFaceUp:
		c.Dealt = true
		c.FaceUp = true
	}
}

// completeLocked ends the deal of generation gen and saves the visible set.
func (e *Engine) completeLocked(gen uint64) {
	if gen != e.gen {
		return
	}
	e.dealing = false
	e.step = nil
	vis := e.visibleLocked()
	if len(vis) == 0 {
		return
	}
	entry := domain.HistoryEntry{
		SpreadID: e.spreadID,
		Label:    e.label,
		Cards:    domain.CloneCards(vis),
	}
	saved, err := e.saver.Prepend(context.Background(), entry)
	if err != nil {
		e.log.Error("save reading", zap.String("spread", e.spreadID), zap.Error(err))
		e.errs = append(e.errs, fmt.Errorf("save reading: %w", err))
		return
	}
	e.saved = append(e.saved, saved)
}
