// Package deck holds the standard tarot deck, the built-in spreads and the
// randomized draw shared by the backend and the free-form board.
package deck

import (
	"errors"
	"fmt"
	"strings"

	"github.com/naveenspark/arcana/pkg/domain"
)

var (
	ErrInvalidN      = errors.New("n must be at least 1")
	ErrNExceedsDeck  = errors.New("n exceeds number of cards left in deck")
	ErrUnknownSpread = errors.New("unknown spread")
)

// RNG abstracts random number generation for deterministic testing.
type RNG interface {
	// IntN returns a non-negative random int in [0, n).
	IntN(n int) int
}

var majorNames = [...]string{
	"The Fool", "The Magician", "The High Priestess", "The Empress", "The Emperor",
	"The Hierophant", "The Lovers", "The Chariot", "Strength", "The Hermit",
	"Wheel of Fortune", "Justice", "The Hanged Man", "Death", "Temperance",
	"The Devil", "The Tower", "The Star", "The Moon", "The Sun",
	"Judgement", "The World",
}

var rankNames = [...]string{
	"Ace", "Two", "Three", "Four", "Five", "Six", "Seven",
	"Eight", "Nine", "Ten", "Page", "Knight", "Queen", "King",
}

// Standard returns the 78-card deck. Image URLs are imageBase + "/" + id + ".jpg";
// an empty imageBase leaves Image empty.
func Standard(imageBase string) []domain.CardMeta {
	imageBase = strings.TrimRight(imageBase, "/")
	image := func(id string) string {
		if imageBase == "" {
			return ""
		}
		return imageBase + "/" + id + ".jpg"
	}

	cards := make([]domain.CardMeta, 0, 78)
	for i, name := range majorNames {
		id := fmt.Sprintf("m%02d", i)
		cards = append(cards, domain.CardMeta{ID: id, Name: name, Suit: domain.SuitMajor, Image: image(id)})
	}
	for _, suit := range domain.Suits[1:] {
		title := strings.ToUpper(string(suit[:1])) + string(suit[1:])
		for i, rank := range rankNames {
			id := fmt.Sprintf("%s-%02d", suit, i+1)
			cards = append(cards, domain.CardMeta{
				ID:    id,
				Name:  rank + " of " + title,
				Suit:  suit,
				Image: image(id),
			})
		}
	}
	return cards
}

// Spreads returns the built-in spread definitions.
func Spreads() []domain.SpreadDef {
	return []domain.SpreadDef{
		{
			ID:   domain.SpreadCross,
			Name: "Celtic Cross",
			Positions: []string{
				"Present", "Challenge", "Foundation", "Recent Past", "Crown",
				"Near Future", "Self", "Environment", "Hopes and Fears", "Outcome",
			},
		},
		{
			ID:        domain.SpreadPPF,
			Name:      "Past, Present, Future",
			Positions: []string{"Past", "Present", "Future"},
		},
	}
}

// FindSpread looks up a built-in spread by id.
func FindSpread(id string) (domain.SpreadDef, error) {
	for _, s := range Spreads() {
		if s.ID == id {
			return s, nil
		}
	}
	return domain.SpreadDef{}, fmt.Errorf("%w: %q", ErrUnknownSpread, id)
}

// Draw picks n distinct cards from cards, skipping any id in exclude.
// Positions are 1-based; each card is reversed on an independent fair coin.
func Draw(cards []domain.CardMeta, n int, exclude map[string]bool, rng RNG) ([]domain.DrawnCard, error) {
	if n < 1 {
		return nil, ErrInvalidN
	}
	pool := make([]string, 0, len(cards))
	for _, c := range cards {
		if !exclude[c.ID] {
			pool = append(pool, c.ID)
		}
	}
	if n > len(pool) {
		return nil, ErrNExceedsDeck
	}

	// Partial Fisher-Yates: only the first n slots are needed.
	for i := 0; i < n; i++ {
		j := i + rng.IntN(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
	}

	drawn := make([]domain.DrawnCard, n)
	for i := range n {
		drawn[i] = domain.DrawnCard{
			Position: i + 1,
			CardID:   pool[i],
			Reversed: rng.IntN(2) == 1,
		}
	}
	return drawn, nil
}
