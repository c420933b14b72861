package render

import (
	"strings"

	"gpxmapper/internal/mercator"
)

// Align values for label anchoring relative to the marker.
type Align int

const (
	AlignCenter Align = iota
	AlignLeft
	AlignRight
	AlignTop
	AlignBottom
)

// Placement positions a city label around its marker: alignment plus the
// sign of the offset in each axis (map coordinates, y up).
type Placement struct {
	HAlign  Align // AlignLeft, AlignRight or AlignCenter
	VAlign  Align // AlignBottom, AlignTop or AlignCenter
	OffsetX int   // -1, 0 or 1
	OffsetY int   // -1, 0 or 1
}

// ParsePlacement decodes a compass position code (N, S, E, O and pairs
// like NE or SO; O is French for west). An empty code returns nil,
// meaning automatic placement.
func ParsePlacement(code string) *Placement {
	if code == "" {
		return nil
	}
	code = strings.ToUpper(code)

	p := &Placement{HAlign: AlignCenter, VAlign: AlignCenter}
	if strings.Contains(code, "N") {
		p.VAlign = AlignBottom
		p.OffsetY = 1
	} else if strings.Contains(code, "S") {
		p.VAlign = AlignTop
		p.OffsetY = -1
	}
	if strings.Contains(code, "E") {
		p.HAlign = AlignLeft
		p.OffsetX = 1
	} else if strings.Contains(code, "O") {
		p.HAlign = AlignRight
		p.OffsetX = -1
	}
	return p
}

// AutoPlacement derives a placement from the marker's quadrant relative
// to the extent midpoint, pushing the label toward the map interior.
func AutoPlacement(pt mercator.Point, extent mercator.Rect) Placement {
	mid := extent.Center()

	p := Placement{}
	if pt.X < mid.X {
		p.HAlign = AlignLeft
		p.OffsetX = 1
	} else {
		p.HAlign = AlignRight
		p.OffsetX = -1
	}
	if pt.Y < mid.Y {
		p.VAlign = AlignBottom
		p.OffsetY = 1
	} else {
		p.VAlign = AlignTop
		p.OffsetY = -1
	}
	return p
}
