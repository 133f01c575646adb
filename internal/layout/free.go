package layout

import (
	"math"
)

// Placement is a free-form positioning policy.
type Placement string

const (
	PlaceGrid Placement = "grid"
	PlaceFan  Placement = "fan"
	PlacePile Placement = "pile"
)

var placementOrder = []Placement{PlaceGrid, PlaceFan, PlacePile}

// Next returns the policy after p, wrapping around.
func (p Placement) Next() Placement {
	for i, q := range placementOrder {
		if q == p {
			return placementOrder[(i+1)%len(placementOrder)]
		}
	}
	return PlaceGrid
}

// Jitter is the randomness source for the pile policy.
type Jitter interface {
	// Float64 returns a number in [0.0, 1.0).
	Float64() float64
}

const (
	gridCols    = 5
	gridStartX  = 18.0
	gridStartY  = 30.0
	gridSpacing = 16.0
	gridRowGap  = 40.0

	fanPivotX = 50.0
	fanPivotY = 120.0
	fanRadius = 75.0
	fanStart  = -36.0 // degrees
	fanStep   = 8.0

	pileJitterX = 12.0
	pileJitterY = 10.0
	pileJitterR = 15.0
)

// Place returns the position of the card at index i (0-based, within its layer).
func Place(p Placement, i int, j Jitter) (x, y, r float64) {
	switch p {
	case PlaceFan:
		deg := fanStart + float64(i)*fanStep
		rad := deg * math.Pi / 180
		return fanPivotX + fanRadius*math.Sin(rad), fanPivotY - fanRadius*math.Cos(rad), deg
	case PlacePile:
		return 50 + spread(j, pileJitterX), 50 + spread(j, pileJitterY), spread(j, pileJitterR)
	default:
		col := i % gridCols
		row := i / gridCols
		return gridStartX + float64(col)*gridSpacing, gridStartY + float64(row)*gridRowGap, 0
	}
}

// spread maps a [0,1) sample onto [-limit, limit).
func spread(j Jitter, limit float64) float64 {
	return (j.Float64()*2 - 1) * limit
}
