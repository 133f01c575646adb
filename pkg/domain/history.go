package domain

import "time"

// HistoryEntry is one saved reading.
//
// Timestamp is nil until the history view is first opened after the save.
type HistoryEntry struct {
	ID        string       `json:"id"`
	SpreadID  string       `json:"spreadType"`
	Label     string       `json:"label"`
	Cards     []PlacedCard `json:"cards"`
	Timestamp *time.Time   `json:"timestamp,omitempty"`
}

// Clone returns a deep copy of the entry.
func (e HistoryEntry) Clone() HistoryEntry {
	out := e
	out.Cards = CloneCards(e.Cards)
	if e.Timestamp != nil {
		ts := *e.Timestamp
		out.Timestamp = &ts
	}
	return out
}
