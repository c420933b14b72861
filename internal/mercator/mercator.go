// Package mercator converts between WGS84 degrees and spherical-mercator
// meters (EPSG:3857), the projection every downstream stage works in.
package mercator

import "math"

// EarthRadius is the spherical-mercator earth radius in meters.
const EarthRadius = 6378137.0

// Point is a position in projected meters.
type Point struct {
	X, Y float64
}

// Project converts a lon/lat pair in degrees to projected meters.
func Project(lon, lat float64) Point {
	x := EarthRadius * lon * math.Pi / 180
	y := EarthRadius * math.Log(math.Tan(math.Pi/4+lat*math.Pi/360))
	return Point{X: x, Y: y}
}

// Unproject converts projected meters back to lon/lat degrees.
func Unproject(p Point) (lon, lat float64) {
	lon = p.X / EarthRadius * 180 / math.Pi
	lat = (2*math.Atan(math.Exp(p.Y/EarthRadius)) - math.Pi/2) * 180 / math.Pi
	return lon, lat
}

// ProjectLine projects a sequence of lon/lat pairs.
func ProjectLine(lonlat [][2]float64) []Point {
	out := make([]Point, len(lonlat))
	for i, ll := range lonlat {
		out[i] = Project(ll[0], ll[1])
	}
	return out
}

// Rect is an axis-aligned bounding box in projected meters.
type Rect struct {
	XMin, YMin, XMax, YMax float64
}

func (r Rect) Width() float64  { return r.XMax - r.XMin }
func (r Rect) Height() float64 { return r.YMax - r.YMin }

func (r Rect) Center() Point {
	return Point{X: (r.XMin + r.XMax) / 2, Y: (r.YMin + r.YMax) / 2}
}

// Contains reports whether p lies inside r, bounds inclusive.
func (r Rect) Contains(p Point) bool {
	return r.XMin <= p.X && p.X <= r.XMax && r.YMin <= p.Y && p.Y <= r.YMax
}

// Buffer grows the rect by d meters on every side.
func (r Rect) Buffer(d float64) Rect {
	return Rect{XMin: r.XMin - d, YMin: r.YMin - d, XMax: r.XMax + d, YMax: r.YMax + d}
}

// Degrees converts the rect corners back to geographic degrees,
// returned as (lonMin, latMin, lonMax, latMax).
func (r Rect) Degrees() (lonMin, latMin, lonMax, latMax float64) {
	lonMin, latMin = Unproject(Point{X: r.XMin, Y: r.YMin})
	lonMax, latMax = Unproject(Point{X: r.XMax, Y: r.YMax})
	return
}

// Bounds returns the bounding box of a projected line.
func Bounds(line []Point) Rect {
	if len(line) == 0 {
		return Rect{}
	}
	r := Rect{XMin: line[0].X, YMin: line[0].Y, XMax: line[0].X, YMax: line[0].Y}
	for _, p := range line[1:] {
		if p.X < r.XMin {
			r.XMin = p.X
		}
		if p.X > r.XMax {
			r.XMax = p.X
		}
		if p.Y < r.YMin {
			r.YMin = p.Y
		}
		if p.Y > r.YMax {
			r.YMax = p.Y
		}
	}
	return r
}
