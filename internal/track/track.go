// Package track loads GPX track logs and applies the optional civil-time
// window filter that decides which points make it onto the map.
package track

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang/geo/s2"
	"github.com/tkrajina/gpxgo/gpx"
)

// ErrInsufficientPoints is returned when fewer than two points survive
// filtering. The pipeline cannot draw a track from less than a segment.
var ErrInsufficientPoints = errors.New("not enough track points to draw a trace")

const earthRadiusMeters = 6371000.0

// Point is a single recorded position. Time is zero when the source
// point carried no timestamp.
type Point struct {
	Lon, Lat float64
	Time     time.Time
}

// Window is an inclusive civil-time filter. Both bounds are compared as
// zone-naive values in the pipeline's civil zone.
type Window struct {
	Start, End time.Time
}

// Load parses a GPX file and flattens all tracks and segments into one
// ordered point sequence.
func Load(path string) ([]Point, error) {
	g, err := gpx.ParseFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to parse GPX file: %w", err)
	}

	var points []Point
	for _, trk := range g.Tracks {
		for _, seg := range trk.Segments {
			for _, p := range seg.Points {
				points = append(points, Point{Lon: p.Longitude, Lat: p.Latitude, Time: p.Timestamp})
			}
		}
	}
	return points, nil
}

// civil strips zone information: the instant is rebuilt as a wall-clock
// value in loc so that aware and naive timestamps compare consistently.
func civil(t time.Time, loc *time.Location) time.Time {
	lt := t.In(loc)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), lt.Hour(), lt.Minute(), lt.Second(), 0, time.UTC)
}

// Filter keeps the points whose timestamp falls in w, inclusive. A nil
// window keeps every point, timestamped or not. Points without a
// timestamp never match a window. Returns ErrInsufficientPoints when
// fewer than two points remain.
func Filter(points []Point, w *Window, loc *time.Location) ([]Point, error) {
	var kept []Point
	if w == nil {
		kept = points
	} else {
		start := civil(w.Start, loc)
		end := civil(w.End, loc)
		for _, p := range points {
			if p.Time.IsZero() {
				continue
			}
			t := civil(p.Time, loc)
			if !t.Before(start) && !t.After(end) {
				kept = append(kept, p)
			}
		}
	}

	if len(kept) < 2 {
		return nil, fmt.Errorf("%w (kept %d)", ErrInsufficientPoints, len(kept))
	}
	return kept, nil
}

// Length returns the total great-circle length of the track in meters.
func Length(points []Point) float64 {
	var total float64
	for i := 1; i < len(points); i++ {
		a := s2.LatLngFromDegrees(points[i-1].Lat, points[i-1].Lon)
		b := s2.LatLngFromDegrees(points[i].Lat, points[i].Lon)
		total += a.Distance(b).Radians() * earthRadiusMeters
	}
	return total
}

// Coords returns the points as (lon, lat) pairs for projection.
func Coords(points []Point) [][2]float64 {
	out := make([][2]float64, len(points))
	for i, p := range points {
		out[i] = [2]float64{p.Lon, p.Lat}
	}
	return out
}

// StartTime returns the first non-zero timestamp, or the zero time when
// no point carries one.
func StartTime(points []Point) time.Time {
	for _, p := range points {
		if !p.Time.IsZero() {
			return p.Time
		}
	}
	return time.Time{}
}
