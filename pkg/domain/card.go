package domain

// Suit is the arcana/suit a card belongs to.
type Suit string

const (
	SuitMajor     Suit = "major"
	SuitWands     Suit = "wands"
	SuitCups      Suit = "cups"
	SuitSwords    Suit = "swords"
	SuitPentacles Suit = "pentacles"
)

// Suits lists every valid suit, majors first.
var Suits = []Suit{SuitMajor, SuitWands, SuitCups, SuitSwords, SuitPentacles}

// Valid returns true if s is a known suit.
func (s Suit) Valid() bool {
	switch s {
	case SuitMajor, SuitWands, SuitCups, SuitSwords, SuitPentacles:
		return true
	}
	return false
}

// CardMeta describes one card of the deck. Immutable once fetched.
type CardMeta struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Suit  Suit   `json:"suit"`
	Image string `json:"image,omitempty"`
}

// DrawnCard is one card of a randomized draw returned by the backend.
type DrawnCard struct {
	Position int    `json:"position"` // 1-based
	CardID   string `json:"cardId"`
	Reversed bool   `json:"reversed"`
}

// DrawResult is the response of POST /api/draw.
type DrawResult struct {
	SpreadID string      `json:"spreadId"`
	Cards    []DrawnCard `json:"cards"`
}
