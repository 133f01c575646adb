package engine

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/naveenspark/arcana/internal/anim"
	"github.com/naveenspark/arcana/internal/clock"
	"github.com/naveenspark/arcana/internal/deck"
	"github.com/naveenspark/arcana/internal/history"
	"github.com/naveenspark/arcana/internal/layout"
	"github.com/naveenspark/arcana/internal/storage"
	"github.com/naveenspark/arcana/pkg/domain"
)

type fakeDeck struct {
	loaded bool
	cards  []domain.CardMeta
}

func (d *fakeDeck) Loaded() bool             { return d.loaded }
func (d *fakeDeck) Cards() []domain.CardMeta { return d.cards }
func (d *fakeDeck) Spread(id string) (domain.SpreadDef, bool) {
	s, err := deck.FindSpread(id)
	return s, err == nil
}

type fakeDrawer struct {
	calls   atomic.Int32
	err     error
	entered chan struct{}
	release chan struct{}

	mu  sync.Mutex
	rng *rand.Rand
}

func (d *fakeDrawer) Draw(ctx context.Context, spreadID string) (*domain.DrawResult, error) {
	d.calls.Add(1)
	if d.entered != nil {
		d.entered <- struct{}{}
		<-d.release
	}
	if d.err != nil {
		return nil, d.err
	}
	s, err := deck.FindSpread(spreadID)
	if err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	cards, err := deck.Draw(deck.Standard(""), s.Size(), nil, d.rng)
	if err != nil {
		return nil, err
	}
	return &domain.DrawResult{SpreadID: spreadID, Cards: cards}, nil
}

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type harness struct {
	engine *Engine
	clock  *clock.Fake
	drawer *fakeDrawer
	deck   *fakeDeck
	hist   *history.Store
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		clock:  clock.NewFake(epoch),
		drawer: &fakeDrawer{rng: rand.New(rand.NewPCG(7, 11))},
		deck:   &fakeDeck{loaded: true, cards: deck.Standard("")},
		hist:   history.New(storage.NewMemory(), nil),
	}
	h.engine = New(h.deck, h.drawer, h.hist,
		WithClock(h.clock),
		WithRNG(rand.New(rand.NewPCG(3, 5))),
	)
	return h
}

func (h *harness) advance(d time.Duration) Tick {
	return h.engine.Advance(h.clock.Advance(d))
}

func (h *harness) historyLen(t *testing.T) int {
	t.Helper()
	list, err := h.hist.List(context.Background())
	require.NoError(t, err)
	return len(list)
}

func TestDealPPF(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.True(t, h.engine.CanDeal())

	require.NoError(t, h.engine.Deal(ctx, domain.SpreadPPF))
	assert.False(t, h.engine.CanDeal())

	b := h.engine.Board()
	require.Len(t, b.Cards, 3)
	assert.Equal(t, domain.SpreadPPF, b.SpreadID)
	want := []struct{ x, y float64 }{{35, 52}, {50, 52}, {65, 52}}
	for i, c := range b.Cards {
		assert.Equal(t, want[i].x, c.X)
		assert.Equal(t, want[i].y, c.Y)
		assert.Equal(t, 10+i, c.Z)
		assert.False(t, c.Dealt, "card %d enters only on schedule", i)
	}

	tick := h.advance(0)
	assert.Equal(t, 1, tick.Fired)
	b = h.engine.Board()
	assert.True(t, b.Cards[0].Dealt)
	assert.False(t, b.Cards[0].FaceUp)
	assert.False(t, b.Cards[1].Dealt)

	tick = h.advance(anim.DefaultTiming.Total(3))
	assert.False(t, tick.Pending)
	require.Len(t, tick.Saved, 1)
	assert.NoError(t, tick.Err)
	for _, c := range h.engine.Board().Cards {
		assert.True(t, c.Dealt)
		assert.True(t, c.FaceUp)
	}
	assert.True(t, h.engine.CanDeal())
	assert.Equal(t, 1, h.historyLen(t))
	assert.Equal(t, "Past, Present, Future", tick.Saved[0].Label)
}

func TestDealSavesOnlyAfterSlowestReveal(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.engine.Deal(context.Background(), domain.SpreadCross))

	total := anim.DefaultTiming.Total(10)
	tick := h.advance(total - time.Millisecond)
	assert.Empty(t, tick.Saved)
	assert.True(t, tick.Pending)
	assert.Equal(t, 0, h.historyLen(t))

	tick = h.advance(time.Millisecond)
	assert.Len(t, tick.Saved, 1)
}

func TestDealRejectedWhileDealing(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.engine.Deal(ctx, domain.SpreadPPF))

	err := h.engine.Deal(ctx, domain.SpreadCross)
	assert.ErrorIs(t, err, ErrDealing)
	assert.Equal(t, int32(1), h.drawer.calls.Load())
	assert.ErrorIs(t, h.engine.AddFree(1, layout.PlaceGrid), ErrDealing)
	assert.ErrorIs(t, h.engine.LoadHistory(domain.HistoryEntry{}), ErrDealing)
}

func TestDealRejectedDuringDraw(t *testing.T) {
	h := newHarness(t)
	h.drawer.entered = make(chan struct{})
	h.drawer.release = make(chan struct{})

	done := make(chan error, 1)
	go func() { done <- h.engine.Deal(context.Background(), domain.SpreadPPF) }()
	<-h.drawer.entered

	assert.False(t, h.engine.CanDeal())
	assert.ErrorIs(t, h.engine.Deal(context.Background(), domain.SpreadPPF), ErrDealing)

	close(h.drawer.release)
	require.NoError(t, <-done)
	assert.Equal(t, int32(1), h.drawer.calls.Load())
}

func TestDealDeckNotLoaded(t *testing.T) {
	h := newHarness(t)
	h.deck.loaded = false
	assert.False(t, h.engine.CanDeal())
	assert.ErrorIs(t, h.engine.Deal(context.Background(), domain.SpreadPPF), ErrDeckNotLoaded)
	assert.Zero(t, h.drawer.calls.Load())
}

func TestDealUnknownSpread(t *testing.T) {
	h := newHarness(t)
	assert.ErrorIs(t, h.engine.Deal(context.Background(), "horseshoe-7"), ErrUnknownSpread)
	assert.True(t, h.engine.CanDeal())
}

func TestDealDrawErrorReleasesGate(t *testing.T) {
	h := newHarness(t)
	h.drawer.err = errors.New("backend down")

	err := h.engine.Deal(context.Background(), domain.SpreadPPF)
	require.Error(t, err)
	assert.True(t, h.engine.CanDeal())
	assert.Empty(t, h.engine.Board().Cards)
}

func TestStepDeal(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.engine.StartStepDeal(context.Background(), domain.SpreadCross))

	b := h.engine.Board()
	assert.Empty(t, b.Cards)
	assert.Equal(t, 10, b.StepRemaining)
	assert.True(t, b.Dealing)

	for i := 0; i < 9; i++ {
		left, err := h.engine.DealNext()
		require.NoError(t, err)
		assert.Equal(t, 9-i, left)
		tick := h.advance(time.Minute)
		assert.Empty(t, tick.Saved, "no save before the buffer is exhausted")
	}
	assert.Equal(t, 0, h.historyLen(t))
	assert.False(t, h.engine.CanDeal())

	left, err := h.engine.DealNext()
	require.NoError(t, err)
	assert.Zero(t, left)

	cards := h.engine.Board().Cards
	require.Len(t, cards, 10)
	assert.Equal(t, 90.0, cards[1].R)
	assert.False(t, cards[9].FaceUp)

	tick := h.advance(anim.DefaultTiming.Total(1))
	require.Len(t, tick.Saved, 1)
	assert.Len(t, tick.Saved[0].Cards, 10)
	assert.True(t, h.engine.CanDeal())

	_, err = h.engine.DealNext()
	assert.ErrorIs(t, err, ErrNoStepDeal)
}

func TestDealNextWithoutStepDeal(t *testing.T) {
	h := newHarness(t)
	_, err := h.engine.DealNext()
	assert.ErrorIs(t, err, ErrNoStepDeal)
}

func TestAddFreeLayerFill(t *testing.T) {
	h := newHarness(t)

	steps := []struct {
		add        int
		wantLayers []int
	}{
		{add: 3, wantLayers: []int{3}},
		{add: 12, wantLayers: []int{10, 5}},
		{add: 25, wantLayers: []int{10, 10, 10, 10}},
		{add: 1, wantLayers: []int{10, 10, 10, 10, 1}},
	}
	for _, st := range steps {
		require.NoError(t, h.engine.AddFree(st.add, layout.PlaceGrid))
		h.advance(time.Minute)

		h.engine.mu.Lock()
		var sizes []int
		seen := make(map[string]bool)
		for li, l := range h.engine.layers {
			sizes = append(sizes, len(l))
			for _, c := range l {
				assert.False(t, seen[c.CardID], "card %s drawn twice", c.CardID)
				seen[c.CardID] = true
				assert.Equal(t, li, c.Layer)
			}
		}
		h.engine.mu.Unlock()
		assert.Equal(t, st.wantLayers, sizes, "after adding %d", st.add)
	}

	b := h.engine.Board()
	assert.Equal(t, domain.SpreadFree, b.SpreadID)
	assert.Equal(t, 5, b.Layers)
	assert.Equal(t, 4, b.ActiveLayer)
	assert.Len(t, b.Cards, 1, "only the active layer is visible")
	assert.Equal(t, 4, h.historyLen(t))
}

func TestAddFreeSavesActiveLayer(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.engine.AddFree(13, layout.PlaceFan))
	tick := h.advance(time.Minute)
	require.Len(t, tick.Saved, 1)
	assert.Len(t, tick.Saved[0].Cards, 3)
	assert.Equal(t, FreeLabel, tick.Saved[0].Label)

	assert.Equal(t, 0, h.engine.NextLayer())
	assert.Len(t, h.engine.Board().Cards, 10)
}

func TestAddFreeExhaustsDeck(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.engine.AddFree(78, layout.PlacePile))
	h.advance(time.Minute)

	err := h.engine.AddFree(1, layout.PlacePile)
	assert.ErrorIs(t, err, ErrDeckExhausted)
	assert.ErrorIs(t, h.engine.AddFree(0, layout.PlacePile), ErrInvalidCount)
}

func dealt(t *testing.T, h *harness, spreadID string) {
	t.Helper()
	require.NoError(t, h.engine.Deal(context.Background(), spreadID))
	h.advance(time.Minute)
}

func TestToggleRaisesCard(t *testing.T) {
	h := newHarness(t)
	dealt(t, h, domain.SpreadPPF)

	require.NoError(t, h.engine.Toggle(0))
	c := h.engine.Board().Cards[0]
	assert.False(t, c.FaceUp)
	assert.Equal(t, 13, c.Z)

	require.NoError(t, h.engine.Toggle(1))
	assert.Equal(t, 14, h.engine.Board().Cards[1].Z)

	assert.ErrorIs(t, h.engine.Toggle(3), ErrNoCard)
	assert.ErrorIs(t, h.engine.Toggle(-1), ErrNoCard)
}

func TestDrag(t *testing.T) {
	h := newHarness(t)
	dealt(t, h, domain.SpreadPPF)

	require.NoError(t, h.engine.Drag(2, Point{X: 40, Y: 10}, Bounds{W: 80, H: 40}))
	c := h.engine.Board().Cards[2]
	assert.Equal(t, 50.0, c.X)
	assert.Equal(t, 25.0, c.Y)
	assert.Equal(t, 12, c.Z, "drag keeps stacking order")
	assert.Zero(t, c.R)

	require.NoError(t, h.engine.Drag(2, Point{X: -5, Y: 90}, Bounds{W: 80, H: 40}))
	c = h.engine.Board().Cards[2]
	assert.Equal(t, 0.0, c.X)
	assert.Equal(t, 100.0, c.Y)

	assert.Error(t, h.engine.Drag(0, Point{}, Bounds{}))
}

func TestFocusWraps(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, -1, h.engine.FocusNext(), "empty board")

	dealt(t, h, domain.SpreadPPF)
	assert.Equal(t, 0, h.engine.FocusNext())
	assert.Equal(t, 13, h.engine.Board().Cards[0].Z, "focus raises the card")
	assert.Equal(t, 1, h.engine.FocusNext())
	assert.Equal(t, 14, h.engine.Board().Cards[1].Z)
	assert.Equal(t, 2, h.engine.FocusNext())
	assert.Equal(t, 0, h.engine.FocusNext())
	assert.Equal(t, 2, h.engine.FocusPrev())
}

func TestFocusPrevFromNothing(t *testing.T) {
	h := newHarness(t)
	dealt(t, h, domain.SpreadPPF)
	assert.Equal(t, 2, h.engine.FocusPrev())
}

func TestLoadHistoryLeavesEntryUnchanged(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	dealt(t, h, domain.SpreadPPF)

	list, err := h.hist.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	stored := list[0]

	require.NoError(t, h.engine.LoadHistory(stored))
	require.NoError(t, h.engine.Toggle(0))
	require.NoError(t, h.engine.Drag(1, Point{X: 1, Y: 1}, Bounds{W: 10, H: 10}))

	again, err := h.hist.Get(ctx, stored.ID)
	require.NoError(t, err)
	assert.Equal(t, stored, again)
	assert.NotEqual(t, stored.Cards[0].FaceUp, h.engine.Board().Cards[0].FaceUp)
}

func TestLoadHistoryFreeBecomesSingleLayer(t *testing.T) {
	h := newHarness(t)
	entry := domain.HistoryEntry{
		ID:       "e1",
		SpreadID: domain.SpreadFree,
		Label:    FreeLabel,
		Cards: []domain.PlacedCard{
			{CardID: "m00", Layer: 2, FaceUp: true},
			{CardID: "m01", Layer: 2},
		},
	}
	require.NoError(t, h.engine.LoadHistory(entry))

	b := h.engine.Board()
	assert.Equal(t, 1, b.Layers)
	assert.Equal(t, 0, b.ActiveLayer)
	require.Len(t, b.Cards, 2)
	assert.Equal(t, 0, b.Cards[0].Layer)
	assert.Equal(t, 2, entry.Cards[0].Layer, "caller's entry untouched")

	require.NoError(t, h.engine.AddFree(1, layout.PlaceGrid))
	h.advance(time.Minute)
	assert.Len(t, h.engine.Board().Cards, 3, "free adds top up the loaded layer")
}

func TestCloseFlushesPendingDeal(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.engine.Deal(context.Background(), domain.SpreadPPF))

	require.NoError(t, h.engine.Close())
	assert.Equal(t, 1, h.historyLen(t))
	assert.True(t, h.engine.CanDeal())
	_, pending := h.engine.NextDue()
	assert.False(t, pending)
}

type failingSaver struct{}

func (failingSaver) Prepend(context.Context, domain.HistoryEntry) (domain.HistoryEntry, error) {
	return domain.HistoryEntry{}, errors.New("disk full")
}

func TestSaveErrorSurfacesInTick(t *testing.T) {
	e := New(&fakeDeck{loaded: true, cards: deck.Standard("")},
		&fakeDrawer{rng: rand.New(rand.NewPCG(1, 1))},
		failingSaver{},
		WithClock(clock.NewFake(epoch)),
	)
	require.NoError(t, e.Deal(context.Background(), domain.SpreadPPF))
	tick := e.Advance(epoch.Add(time.Minute))
	assert.ErrorContains(t, tick.Err, "disk full")
	assert.True(t, e.CanDeal(), "a failed save still ends the deal")
}
