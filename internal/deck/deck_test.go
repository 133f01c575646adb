package deck_test

import (
	"errors"
	"testing"

	"github.com/naveenspark/arcana/internal/deck"
	"github.com/naveenspark/arcana/pkg/domain"
)

// deterministicRNG returns values from a pre-set sequence.
type deterministicRNG struct {
	values []int
	idx    int
}

func (r *deterministicRNG) IntN(n int) int {
	v := r.values[r.idx%len(r.values)] % n
	r.idx++
	return v
}

func TestStandardDeck(t *testing.T) {
	cards := deck.Standard("https://cdn.example.com/cards/")
	if len(cards) != 78 {
		t.Fatalf("len(Standard()) = %d, want 78", len(cards))
	}
	seen := make(map[string]bool)
	majors := 0
	for _, c := range cards {
		if seen[c.ID] {
			t.Errorf("duplicate card id %q", c.ID)
		}
		seen[c.ID] = true
		if !c.Suit.Valid() {
			t.Errorf("card %q has invalid suit %q", c.ID, c.Suit)
		}
		if c.Suit == domain.SuitMajor {
			majors++
		}
	}
	if majors != 22 {
		t.Errorf("majors = %d, want 22", majors)
	}
	if cards[0].Image != "https://cdn.example.com/cards/m00.jpg" {
		t.Errorf("cards[0].Image = %q", cards[0].Image)
	}
	if got := cards[22].Name; got != "Ace of Wands" {
		t.Errorf("cards[22].Name = %q, want %q", got, "Ace of Wands")
	}
}

func TestFindSpread(t *testing.T) {
	s, err := deck.FindSpread(domain.SpreadCross)
	if err != nil {
		t.Fatalf("FindSpread() error: %v", err)
	}
	if s.Size() != 10 {
		t.Errorf("cross Size() = %d, want 10", s.Size())
	}
	if _, err := deck.FindSpread("nope"); !errors.Is(err, deck.ErrUnknownSpread) {
		t.Errorf("err = %v, want ErrUnknownSpread", err)
	}
}

func TestDrawUniqueAndPositioned(t *testing.T) {
	cards := deck.Standard("")
	rng := &deterministicRNG{values: []int{5, 0, 11, 1, 3, 0, 7, 1, 2, 0}}

	drawn, err := deck.Draw(cards, 10, nil, rng)
	if err != nil {
		t.Fatalf("Draw() error: %v", err)
	}
	seen := make(map[string]bool)
	for i, d := range drawn {
		if d.Position != i+1 {
			t.Errorf("card %d: position = %d, want %d", i, d.Position, i+1)
		}
		if seen[d.CardID] {
			t.Errorf("duplicate card %q", d.CardID)
		}
		seen[d.CardID] = true
	}
}

func TestDrawExcludes(t *testing.T) {
	cards := deck.Standard("")[:5]
	exclude := map[string]bool{"m00": true, "m01": true, "m02": true}
	drawn, err := deck.Draw(cards, 2, exclude, &deterministicRNG{values: []int{0}})
	if err != nil {
		t.Fatalf("Draw() error: %v", err)
	}
	for _, d := range drawn {
		if exclude[d.CardID] {
			t.Errorf("drew excluded card %q", d.CardID)
		}
	}

	if _, err := deck.Draw(cards, 3, exclude, &deterministicRNG{values: []int{0}}); !errors.Is(err, deck.ErrNExceedsDeck) {
		t.Errorf("err = %v, want ErrNExceedsDeck", err)
	}
}

func TestDrawInvalidN(t *testing.T) {
	for _, n := range []int{0, -1} {
		if _, err := deck.Draw(deck.Standard(""), n, nil, &deterministicRNG{values: []int{0}}); !errors.Is(err, deck.ErrInvalidN) {
			t.Errorf("n=%d: err = %v, want ErrInvalidN", n, err)
		}
	}
}
