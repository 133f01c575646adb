package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/naveenspark/arcana/internal/anim"
	"github.com/naveenspark/arcana/internal/deck"
	"github.com/naveenspark/arcana/internal/layout"
	"github.com/naveenspark/arcana/pkg/domain"
)

// AddFree draws n cards without replacement across every layer and places
// them with policy p. The last layer is topped up first, then new layers of
// at most domain.MaxLayerSize are opened. The newest layer becomes active.
func (e *Engine) AddFree(n int, p layout.Placement) error {
	if n <= 0 {
		return fmt.Errorf("engine.AddFree: %w", ErrInvalidCount)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.gateLocked(); err != nil {
		return fmt.Errorf("engine.AddFree: %w", err)
	}
	if e.spreadID != domain.SpreadFree {
		e.resetLocked(domain.SpreadFree, FreeLabel)
	}

	exclude := make(map[string]bool)
	for _, l := range e.layers {
		for _, c := range l {
			exclude[c.CardID] = true
		}
	}
	drawn, err := drawFree(e.deck.Cards(), n, exclude, e.rng)
	if err != nil {
		return fmt.Errorf("engine.AddFree: %w", err)
	}

	e.gen++
	gen := e.gen
	start := e.clock.Now()
	for i, d := range drawn {
		if len(e.layers) == 0 || e.layers[len(e.layers)-1].Room() == 0 {
			e.layers = append(e.layers, domain.Layer{})
		}
		li := len(e.layers) - 1
		k := len(e.layers[li])
		x, y, r := layout.Place(p, k, e.rng)
		e.layers[li] = append(e.layers[li], domain.PlacedCard{
			CardID:   d.CardID,
			Reversed: d.Reversed,
			X:        x,
			Y:        y,
			R:        r,
			Z:        layout.BaseZ + k,
			Delay:    (time.Duration(i) * e.timing.Stagger).Milliseconds(),
			Layer:    li,
			Position: k + 1,
		})
		e.planFreeLocked(gen, start, li, k, e.timing.Plan(i))
	}
	e.active = len(e.layers) - 1
	e.focus = -1
	e.dealing = true
	e.sched.At(start.Add(e.timing.Total(len(drawn))), func() { e.completeLocked(gen) })
	return nil
}

// NextLayer activates the following free-form layer, wrapping around, and
// returns its index.
func (e *Engine) NextLayer() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.layers) > 0 {
		e.active = (e.active + 1) % len(e.layers)
		e.focus = -1
	}
	return e.active
}

func (e *Engine) planFreeLocked(gen uint64, start time.Time, layer, k int, steps []anim.Step) {
	for _, st := range steps {
		phase := st.Phase
		e.sched.At(start.Add(st.Offset), func() {
			if gen != e.gen || layer >= len(e.layers) || k >= len(e.layers[layer]) {
				return
			}
			apply(&e.layers[layer][k], phase)
		})
	}
}

// drawFree picks n cards not in exclude with a fair reversal coin each.
func drawFree(cards []domain.CardMeta, n int, exclude map[string]bool, rng RNG) ([]domain.DrawnCard, error) {
	drawn, err := deck.Draw(cards, n, exclude, rng)
	if errors.Is(err, deck.ErrNExceedsDeck) {
		return nil, fmt.Errorf("%w: want %d, %d in play", ErrDeckExhausted, n, len(exclude))
	}
	return drawn, err
}
