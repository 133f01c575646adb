package domain

// Slot is a computed board position. X and Y are percentages of the board area,
// R is the rotation in degrees and Position is 1-based.
type Slot struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	R        float64 `json:"r"`
	Z        int     `json:"z"`
	Position int     `json:"position"`
}

// PlacedCard is a card instance bound to a board position.
type PlacedCard struct {
	CardID   string  `json:"cardId"`
	Reversed bool    `json:"reversed"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	R        float64 `json:"r"`
	Z        int     `json:"z"`
	Delay    int64   `json:"delayMs"` // reveal delay, milliseconds
	Dealt    bool    `json:"dealt"`
	FaceUp   bool    `json:"faceUp"`
	Layer    int     `json:"layer"`
	Position int     `json:"position,omitempty"`
}

// MaxLayerSize is the most cards a free-form layer can hold.
const MaxLayerSize = 10

// Layer is an ordered group of free-form cards.
type Layer []PlacedCard

// Room returns how many more cards fit in the layer.
func (l Layer) Room() int {
	return max(MaxLayerSize-len(l), 0)
}

// CloneCards returns a deep copy of cards. A nil slice stays nil.
func CloneCards(cards []PlacedCard) []PlacedCard {
	if cards == nil {
		return nil
	}
	out := make([]PlacedCard, len(cards))
	copy(out, cards)
	return out
}
