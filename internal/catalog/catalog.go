// Package catalog holds the card and spread lookup tables fetched from the
// backend. Tables are replaced wholesale by Load and read-only otherwise.
package catalog

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/naveenspark/arcana/pkg/domain"
)

// Source fetches the catalog.
type Source interface {
	ListSpreads(ctx context.Context) ([]domain.SpreadDef, error)
	ListDecks(ctx context.Context) ([]domain.CardMeta, error)
}

// Catalog is safe for concurrent use.
type Catalog struct {
	src Source

	mu      sync.RWMutex
	cards   []domain.CardMeta
	byCard  map[string]domain.CardMeta
	spreads []domain.SpreadDef
	bySprd  map[string]domain.SpreadDef
}

// New returns an empty catalog backed by src.
func New(src Source) *Catalog {
	return &Catalog{src: src}
}

// Load fetches spreads and cards concurrently and swaps them in together.
// On error the previous tables are kept.
func (c *Catalog) Load(ctx context.Context) error {
	var (
		spreads []domain.SpreadDef
		cards   []domain.CardMeta
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		spreads, err = c.src.ListSpreads(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		cards, err = c.src.ListDecks(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("catalog.Load: %w", err)
	}

	byCard := make(map[string]domain.CardMeta, len(cards))
	for _, card := range cards {
		byCard[card.ID] = card
	}
	bySprd := make(map[string]domain.SpreadDef, len(spreads))
	for _, s := range spreads {
		bySprd[s.ID] = s
	}

	c.mu.Lock()
	c.cards, c.byCard = cards, byCard
	c.spreads, c.bySprd = spreads, bySprd
	c.mu.Unlock()
	return nil
}

// Loaded reports whether a non-empty deck is present.
func (c *Catalog) Loaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.cards) > 0
}

// Card looks up a card by id.
func (c *Catalog) Card(id string) (domain.CardMeta, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	card, ok := c.byCard[id]
	return card, ok
}

// Cards returns the deck in backend order.
func (c *Catalog) Cards() []domain.CardMeta {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]domain.CardMeta(nil), c.cards...)
}

// Spread looks up a spread by id.
func (c *Catalog) Spread(id string) (domain.SpreadDef, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.bySprd[id]
	return s, ok
}

// Spreads returns every spread in backend order.
func (c *Catalog) Spreads() []domain.SpreadDef {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]domain.SpreadDef(nil), c.spreads...)
}

// ImageURLs returns the image of every card that has one.
func (c *Catalog) ImageURLs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	urls := make([]string, 0, len(c.cards))
	for _, card := range c.cards {
		if card.Image != "" {
			urls = append(urls, card.Image)
		}
	}
	return urls
}

// Name returns the display name of a card, or its id when unknown.
func (c *Catalog) Name(id string) string {
	if card, ok := c.Card(id); ok {
		return card.Name
	}
	return id
}
