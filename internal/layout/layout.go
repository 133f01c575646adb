// Package layout computes board geometry. Coordinates are percentages of the
// board area, rotations are degrees.
package layout

import (
	"github.com/naveenspark/arcana/pkg/domain"
)

// BaseZ is the stacking order of the first slot of every spread.
const BaseZ = 10

type point struct{ x, y, r float64 }

// cross: six-card cross (present, crossing, below, left, above, right) plus a
// four-card column on the right, bottom to top.
var crossTemplate = []point{
	{35, 50, 0},
	{35, 50, 90},
	{35, 80, 0},
	{20, 50, 0},
	{35, 20, 0},
	{50, 50, 0},
	{72, 86, 0},
	{72, 62, 0},
	{72, 38, 0},
	{72, 14, 0},
}

var ppfTemplate = []point{
	{35, 52, 0},
	{50, 52, 0},
	{65, 52, 0},
}

func template(spreadID string) []point {
	switch spreadID {
	case domain.SpreadCross:
		return crossTemplate
	case domain.SpreadPPF:
		return ppfTemplate
	}
	return nil
}

// Slots returns the slot sequence of a built-in spread, or nil when the
// spread has no fixed template.
func Slots(spreadID string) []domain.Slot {
	return fromPoints(template(spreadID))
}

// SlotsFor returns the template slots for def, falling back to a centred row
// of def.Size() cards for spreads without a template.
func SlotsFor(def domain.SpreadDef) []domain.Slot {
	if pts := template(def.ID); pts != nil {
		return fromPoints(pts)
	}
	return Row(def.Size())
}

// Row lays n cards on a centred horizontal line.
func Row(n int) []domain.Slot {
	if n <= 0 {
		return nil
	}
	spacing := min(15.0, 80.0/float64(n))
	start := 50 - spacing*float64(n-1)/2
	pts := make([]point, n)
	for i := range pts {
		pts[i] = point{x: start + spacing*float64(i), y: 52}
	}
	return fromPoints(pts)
}

func fromPoints(pts []point) []domain.Slot {
	if pts == nil {
		return nil
	}
	slots := make([]domain.Slot, len(pts))
	for i, p := range pts {
		slots[i] = domain.Slot{X: p.x, Y: p.y, R: p.r, Z: BaseZ + i, Position: i + 1}
	}
	return slots
}
