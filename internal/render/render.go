// Package render composes the final map raster: basemap, track with
// directional arrows, start/end flags, city markers and labels, title.
package render

import (
	"image"
	"image/color"
	"math"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font/gofont/goregular"

	"gpxmapper/internal/extent"
	"gpxmapper/internal/mercator"
)

// Canvas geometry: 12x9 inches at 300 DPI.
const (
	DefaultWidth  = 3600
	DefaultHeight = 2700
	DefaultDPI    = 300.0
)

// Config carries the canvas geometry and the label font. The font is an
// explicit value so rendering needs no filesystem font state.
type Config struct {
	Width  int
	Height int
	DPI    float64
	Font   *truetype.Font
}

// DefaultConfig returns the standard 3600x2700 canvas with the built-in
// Go Regular face.
func DefaultConfig() Config {
	font, err := truetype.Parse(goregular.TTF)
	if err != nil {
		// goregular is embedded and always parses.
		panic(err)
	}
	return Config{Width: DefaultWidth, Height: DefaultHeight, DPI: DefaultDPI, Font: font}
}

// CityMarker is a resolved place to draw. A nil Placement selects
// automatic quadrant placement.
type CityMarker struct {
	Name      string
	Point     mercator.Point
	Placement *Placement
}

var (
	trackColor     = color.RGBA{0, 255, 255, 255} // cyan, matching the arrows
	arrowEdgeColor = color.RGBA{0, 0, 0, 255}

	startFlagFill = color.RGBA{0x27, 0xae, 0x60, 255}
	startFlagEdge = color.RGBA{0x1e, 0x84, 0x49, 255}
	endFlagFill   = color.RGBA{0xc0, 0x39, 0x2b, 255}
	endFlagEdge   = color.RGBA{0xa9, 0x32, 0x26, 255}
	flagPoleColor = color.RGBA{0x2c, 0x3e, 0x50, 255}

	markerRingColor = color.White
	markerEdgeColor = color.Black
	markerDotColor  = color.RGBA{0x90, 0xee, 0x90, 255} // light green

	labelColor   = color.Black
	labelBgColor = color.RGBA{255, 255, 255, 76}
	titleBgColor = color.RGBA{255, 255, 255, 51}
)

// ArrowSpacing is the minimum distance in meters between directional
// arrows along the track. 1000m at zoom 12, halving as zoom steps in.
// Empirically tuned, keep as is.
func ArrowSpacing(zoom int) float64 {
	return 1000 / math.Pow(2, float64(zoom-12))
}

// arrowIndices walks cumulative distance along the line and returns the
// vertex indices where arrows start. The first and last vertex are
// always included.
func arrowIndices(line []mercator.Point, minSpacing float64) []int {
	indices := []int{0}
	var cum, last float64
	for i := 1; i < len(line); i++ {
		cum += math.Hypot(line[i].X-line[i-1].X, line[i].Y-line[i-1].Y)
		if cum-last >= minSpacing {
			indices = append(indices, i)
			last = cum
		}
	}
	return append(indices, len(line)-1)
}

// Compose renders the map for the planned extent. The basemap raster is
// positioned by its own geo-referenced bounds, which may extend past the
// extent on every side.
func (cfg Config) Compose(plan extent.Plan, line []mercator.Point, basemap image.Image, basemapBounds mercator.Rect, cities []CityMarker, title string) image.Image {
	dc := gg.NewContext(cfg.Width, cfg.Height)

	r := plan.Rect
	sx := float64(cfg.Width) / r.Width()
	sy := float64(cfg.Height) / r.Height()
	toScreen := func(p mercator.Point) (float64, float64) {
		return (p.X - r.XMin) * sx, (r.YMax - p.Y) * sy
	}

	// Point sizes from the 12x9in layout scale with DPI.
	pt := cfg.DPI / 72

	cfg.drawBasemap(dc, basemap, basemapBounds, r, sx, sy)
	cfg.drawTrack(dc, line, plan.Zoom, pt, toScreen)
	cfg.drawFlags(dc, line, r, pt, toScreen)
	cfg.drawCities(dc, cities, r, sx, sy, pt, toScreen)
	if title != "" {
		cfg.drawTitle(dc, title, pt)
	}

	return dc.Image()
}

func (cfg Config) drawBasemap(dc *gg.Context, img image.Image, bounds, ext mercator.Rect, sx, sy float64) {
	if img == nil {
		return
	}
	x0 := (bounds.XMin - ext.XMin) * sx
	y0 := (ext.YMax - bounds.YMax) * sy
	scaleX := bounds.Width() * sx / float64(img.Bounds().Dx())
	scaleY := bounds.Height() * sy / float64(img.Bounds().Dy())

	dc.Push()
	dc.Translate(x0, y0)
	dc.Scale(scaleX, scaleY)
	dc.DrawImage(img, 0, 0)
	dc.Pop()
}

func (cfg Config) drawTrack(dc *gg.Context, line []mercator.Point, zoom int, pt float64, toScreen func(mercator.Point) (float64, float64)) {
	if len(line) < 2 {
		return
	}

	// Polyline under the arrows.
	for i, p := range line {
		x, y := toScreen(p)
		if i == 0 {
			dc.MoveTo(x, y)
		} else {
			dc.LineTo(x, y)
		}
	}
	dc.SetColor(trackColor)
	dc.SetLineWidth(2 * pt)
	dc.Stroke()

	// Chained arrows between emission points.
	indices := arrowIndices(line, ArrowSpacing(zoom))
	for i := 0; i+1 < len(indices); i++ {
		x0, y0 := toScreen(line[indices[i]])
		x1, y1 := toScreen(line[indices[i+1]])
		drawArrow(dc, x0, y0, x1, y1, 2*pt, 4*pt, 2*pt, 0.5*pt)
	}
}

// drawArrow fills a simple arrow from (x0,y0) to (x1,y1): a tail of
// width tailW ending in a triangular head headW wide and headL long.
func drawArrow(dc *gg.Context, x0, y0, x1, y1, tailW, headW, headL, edgeW float64) {
	dx := x1 - x0
	dy := y1 - y0
	length := math.Hypot(dx, dy)
	if length == 0 {
		return
	}
	ux, uy := dx/length, dy/length
	px, py := -uy, ux

	if headL > length {
		headL = length
	}
	bx := x1 - headL*ux
	by := y1 - headL*uy

	dc.NewSubPath()
	dc.MoveTo(x0+px*tailW/2, y0+py*tailW/2)
	dc.LineTo(bx+px*tailW/2, by+py*tailW/2)
	dc.LineTo(bx+px*headW/2, by+py*headW/2)
	dc.LineTo(x1, y1)
	dc.LineTo(bx-px*headW/2, by-py*headW/2)
	dc.LineTo(bx-px*tailW/2, by-py*tailW/2)
	dc.LineTo(x0-px*tailW/2, y0-py*tailW/2)
	dc.ClosePath()

	dc.SetColor(trackColor)
	dc.FillPreserve()
	dc.SetColor(arrowEdgeColor)
	dc.SetLineWidth(edgeW)
	dc.Stroke()
}

func (cfg Config) drawFlags(dc *gg.Context, line []mercator.Point, ext mercator.Rect, pt float64, toScreen func(mercator.Point) (float64, float64)) {
	if len(line) == 0 {
		return
	}
	drawFlag(dc, line[0], ext, startFlagFill, startFlagEdge, pt, toScreen)
	drawFlag(dc, line[len(line)-1], ext, endFlagFill, endFlagEdge, pt, toScreen)
}

// drawFlag draws a pole with a rectangular flag at p, sized relative to
// the extent width (3%).
func drawFlag(dc *gg.Context, p mercator.Point, ext mercator.Rect, fill, edge color.Color, pt float64, toScreen func(mercator.Point) (float64, float64)) {
	size := ext.Width() * 0.03
	flagW := size * 0.5
	flagH := size * 0.4

	baseX, baseY := toScreen(p)
	topX, topY := toScreen(mercator.Point{X: p.X, Y: p.Y + size})
	// Flag extends east from the pole top, hanging down flagH.
	cornerX, _ := toScreen(mercator.Point{X: p.X + flagW, Y: p.Y})
	_, bottomY := toScreen(mercator.Point{X: p.X, Y: p.Y + size - flagH})

	dc.SetColor(flagPoleColor)
	dc.SetLineWidth(3 * pt)
	dc.SetLineCapRound()
	dc.DrawLine(baseX, baseY, topX, topY)
	dc.Stroke()
	dc.SetLineCapButt()

	dc.DrawRectangle(topX, topY, cornerX-topX, bottomY-topY)
	dc.SetColor(fill)
	dc.FillPreserve()
	dc.SetColor(edge)
	dc.SetLineWidth(1.5 * pt)
	dc.Stroke()
}

func (cfg Config) drawCities(dc *gg.Context, cities []CityMarker, ext mercator.Rect, sx, sy, pt float64, toScreen func(mercator.Point) (float64, float64)) {
	labelFace := truetype.NewFace(cfg.Font, &truetype.Options{Size: 14 * pt})

	for _, city := range cities {
		x, y := toScreen(city.Point)

		// Two concentric dots: white ring with black edge, light green center.
		dc.DrawCircle(x, y, 4.9*pt)
		dc.SetColor(markerRingColor)
		dc.FillPreserve()
		dc.SetColor(markerEdgeColor)
		dc.SetLineWidth(0.7 * pt)
		dc.Stroke()
		dc.DrawCircle(x, y, 4*pt)
		dc.SetColor(markerDotColor)
		dc.Fill()

		placement := city.Placement
		if placement == nil {
			auto := AutoPlacement(city.Point, ext)
			placement = &auto
		}

		// Offsets are 1% of the extent in the placement direction. Map y
		// is up, screen y is down.
		lx := x + ext.Width()*0.01*float64(placement.OffsetX)*sx
		ly := y - ext.Height()*0.01*float64(placement.OffsetY)*sy

		dc.SetFontFace(labelFace)
		drawAnchoredLabel(dc, city.Name, lx, ly, placement, labelBgColor, 2*pt)
	}
}

// drawAnchoredLabel draws text anchored per the placement with a
// semi-transparent background box to keep it legible over the basemap.
func drawAnchoredLabel(dc *gg.Context, text string, x, y float64, p *Placement, bg color.Color, pad float64) {
	var ax, ay float64
	switch p.HAlign {
	case AlignLeft:
		ax = 0
	case AlignRight:
		ax = 1
	default:
		ax = 0.5
	}
	switch p.VAlign {
	case AlignBottom:
		ay = 0 // text ends above the anchor
	case AlignTop:
		ay = 1 // text hangs below the anchor
	default:
		ay = 0.5
	}

	w, h := dc.MeasureString(text)
	boxX := x - ax*w
	boxY := y + ay*h - h

	dc.SetColor(bg)
	dc.DrawRectangle(boxX-pad, boxY-pad, w+2*pad, h+2*pad)
	dc.Fill()

	dc.SetColor(labelColor)
	dc.DrawStringAnchored(text, x, y, ax, ay)
}

func (cfg Config) drawTitle(dc *gg.Context, title string, pt float64) {
	titleFace := truetype.NewFace(cfg.Font, &truetype.Options{Size: 18 * pt})
	dc.SetFontFace(titleFace)

	x := float64(cfg.Width) * 0.02
	y := float64(cfg.Height) * 0.02
	p := &Placement{HAlign: AlignLeft, VAlign: AlignTop}
	drawAnchoredLabel(dc, title, x, y, p, titleBgColor, 5*cfg.DPI/72)
}
