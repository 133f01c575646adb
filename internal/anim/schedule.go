// Package anim runs ordered, time-stamped state transitions from a single
// clock instead of independent timers.
package anim

import (
	"sort"
	"time"
)

// Phase is a reveal stage of a placed card.
type Phase int

const (
	// PhaseDealt marks the card as entered onto the board.
	PhaseDealt Phase = iota + 1
	// PhaseFaceUp flips the card.
	PhaseFaceUp
)

func (p Phase) String() string {
	switch p {
	case PhaseDealt:
		return "dealt"
	case PhaseFaceUp:
		return "face-up"
	}
	return "unknown"
}

// Step is one (offset, phase) pair of a card's reveal plan.
type Step struct {
	Offset time.Duration
	Phase  Phase
}

// Timing holds the reveal constants for a deal.
type Timing struct {
	Stagger  time.Duration // delay between consecutive cards entering
	FlipLag  time.Duration // delay between entering and flipping
	FlipTime time.Duration // duration of the flip itself
}

// DefaultTiming matches the board's CSS-era cadence.
var DefaultTiming = Timing{
	Stagger:  180 * time.Millisecond,
	FlipLag:  450 * time.Millisecond,
	FlipTime: 500 * time.Millisecond,
}

// Plan returns the reveal steps of the card at index i.
func (t Timing) Plan(i int) []Step {
	enter := time.Duration(i) * t.Stagger
	return []Step{
		{Offset: enter, Phase: PhaseDealt},
		{Offset: enter + t.FlipLag, Phase: PhaseFaceUp},
	}
}

// Total is the time until the slowest of n cards has finished flipping.
func (t Timing) Total(n int) time.Duration {
	if n <= 0 {
		return 0
	}
	return time.Duration(n-1)*t.Stagger + t.FlipLag + t.FlipTime
}

type event struct {
	at  time.Time
	seq uint64
	run func()
}

// Schedule is an ordered queue of transitions. It is not safe for concurrent
// use; the owner serializes access.
type Schedule struct {
	events []event
	seq    uint64
}

// At queues run to fire once the clock reaches at. Events with equal times
// fire in insertion order.
func (s *Schedule) At(at time.Time, run func()) {
	s.seq++
	ev := event{at: at, seq: s.seq, run: run}
	i := sort.Search(len(s.events), func(i int) bool {
		return s.events[i].at.After(at)
	})
	s.events = append(s.events, event{})
	copy(s.events[i+1:], s.events[i:])
	s.events[i] = ev
}

// Run fires every event due at now, including events queued by the
// transitions themselves, and returns how many fired.
func (s *Schedule) Run(now time.Time) int {
	fired := 0
	for len(s.events) > 0 && !s.events[0].at.After(now) {
		ev := s.events[0]
		s.events = s.events[1:]
		ev.run()
		fired++
	}
	return fired
}

// Flush fires every pending event in order regardless of time.
func (s *Schedule) Flush() int {
	fired := 0
	for len(s.events) > 0 {
		ev := s.events[0]
		s.events = s.events[1:]
		ev.run()
		fired++
	}
	return fired
}

// Cancel drops every pending event and returns how many were dropped.
func (s *Schedule) Cancel() int {
	n := len(s.events)
	s.events = nil
	return n
}

// Pending returns the number of queued events.
func (s *Schedule) Pending() int {
	return len(s.events)
}

// Next returns the time of the earliest pending event.
func (s *Schedule) Next() (time.Time, bool) {
	if len(s.events) == 0 {
		return time.Time{}, false
	}
	return s.events[0].at, true
}
