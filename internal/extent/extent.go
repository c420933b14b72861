// Package extent decides how much of the world the map shows: the render
// zoom level, the buffer margin around the track, and the final 4:3 box.
package extent

import (
	"math"

	"gpxmapper/internal/mercator"
)

// metersPerPixelZ0 is the spherical-mercator ground resolution at the
// equator for zoom 0 with 256px tiles.
const metersPerPixelZ0 = 156543.03

const (
	MinZoom = 0
	MaxZoom = 18

	// provisionalBuffer is the fixed buffer used only to size the box
	// that the zoom computation sees.
	provisionalBuffer = 1000.0

	// TargetRatio is the output width:height ratio.
	TargetRatio = 4.0 / 3.0
)

// Plan is the planned render extent: the final 4:3 box in projected
// meters, the tile zoom and the margin that produced it.
type Plan struct {
	Rect   mercator.Rect
	Zoom   int
	Margin float64
}

// zoomForExtent picks the highest zoom that still fits the extent into
// the canvas, clamped to the slippy-map range.
func zoomForExtent(r mercator.Rect, widthPx, heightPx int) int {
	zoomLon := math.Log2(metersPerPixelZ0 * float64(widthPx) / r.Width())
	zoomLat := math.Log2(metersPerPixelZ0 * float64(heightPx) / r.Height())
	zoom := int(math.Floor(math.Min(zoomLon, zoomLat)))
	if zoom < MinZoom {
		zoom = MinZoom
	}
	if zoom > MaxZoom {
		zoom = MaxZoom
	}
	return zoom
}

// MarginForZoom is the default buffer around the track. 3000m at zoom 12,
// halving for each zoom step in. Empirically tuned, keep as is.
func MarginForZoom(zoom int) float64 {
	return 3000 * math.Pow(2, float64(12-zoom))
}

// adjustToRatio grows r about its center until width:height equals the
// target ratio. The box only ever grows.
func adjustToRatio(r mercator.Rect, ratio float64) mercator.Rect {
	w := r.Width()
	h := r.Height()
	c := r.Center()

	switch current := w / h; {
	case current > ratio:
		nh := w / ratio
		r.YMin = c.Y - nh/2
		r.YMax = c.Y + nh/2
	case current < ratio:
		nw := h * ratio
		r.XMin = c.X - nw/2
		r.XMax = c.X + nw/2
	}
	return r
}

// Compute plans the extent for a projected track line. marginOverride,
// when non-nil, replaces the zoom-derived margin. widthPx/heightPx is
// the render canvas size the zoom computation targets.
func Compute(line []mercator.Point, marginOverride *float64, widthPx, heightPx int) Plan {
	bounds := mercator.Bounds(line)

	zoom := zoomForExtent(bounds.Buffer(provisionalBuffer), widthPx, heightPx)

	margin := MarginForZoom(zoom)
	if marginOverride != nil {
		margin = *marginOverride
	}

	rect := adjustToRatio(bounds.Buffer(margin), TargetRatio)
	return Plan{Rect: rect, Zoom: zoom, Margin: margin}
}
