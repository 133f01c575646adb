package domain

// Built-in spread identifiers.
const (
	SpreadCross = "cross-10"
	SpreadPPF   = "ppf-3"
	// SpreadFree is the free-form board; it has no fixed slots.
	SpreadFree = "free"
)

// SpreadDef is a named layout template. Either Positions or Count is set.
type SpreadDef struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Positions []string `json:"positions,omitempty"`
	Count     int      `json:"count,omitempty"`
}

// Size returns the number of cards the spread holds.
func (s SpreadDef) Size() int {
	if len(s.Positions) > 0 {
		return len(s.Positions)
	}
	return s.Count
}

// PositionName returns the label of the 1-based position, or "" if unnamed.
func (s SpreadDef) PositionName(position int) string {
	if position < 1 || position > len(s.Positions) {
		return ""
	}
	return s.Positions[position-1]
}
