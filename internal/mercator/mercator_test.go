package mercator

import (
	"math"
	"testing"
)

func TestProjectKnownValues(t *testing.T) {
	cases := []struct {
		name     string
		lon, lat float64
		x, y     float64
	}{
		{"origin", 0, 0, 0, 0},
		{"antimeridian", 180, 0, 20037508.34, 0},
		// The web-mercator world is square: the y at the clipping
		// latitude equals the x at the antimeridian.
		{"top of square world", 0, 85.05112878, 0, 20037508.34},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := Project(tc.lon, tc.lat)
			if math.Abs(p.X-tc.x) > 1 || math.Abs(p.Y-tc.y) > 1 {
				t.Fatalf("Project(%v, %v) = (%.2f, %.2f); want (%.2f, %.2f)", tc.lon, tc.lat, p.X, p.Y, tc.x, tc.y)
			}
		})
	}
}

func TestProjectRoundtrip(t *testing.T) {
	for _, ll := range [][2]float64{{2.3522, 48.8566}, {-73.9857, 40.7484}, {139.6917, 35.6895}} {
		lon, lat := Unproject(Project(ll[0], ll[1]))
		if math.Abs(lon-ll[0]) > 1e-9 || math.Abs(lat-ll[1]) > 1e-9 {
			t.Fatalf("roundtrip of (%v, %v) = (%v, %v)", ll[0], ll[1], lon, lat)
		}
	}
}

func TestRectContains(t *testing.T) {
	r := Rect{XMin: 0, YMin: 0, XMax: 10, YMax: 10}

	cases := []struct {
		name string
		p    Point
		want bool
	}{
		{"inside", Point{5, 5}, true},
		{"on edge", Point{0, 10}, true},
		{"outside x", Point{11, 5}, false},
		{"outside y", Point{5, -1}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := r.Contains(tc.p); got != tc.want {
				t.Fatalf("Contains(%v) = %v; want %v", tc.p, got, tc.want)
			}
		})
	}
}

func TestRectBuffer(t *testing.T) {
	r := Rect{XMin: -5, YMin: -5, XMax: 5, YMax: 5}.Buffer(100)
	want := Rect{XMin: -105, YMin: -105, XMax: 105, YMax: 105}
	if r != want {
		t.Fatalf("Buffer = %+v; want %+v", r, want)
	}
}

func TestBounds(t *testing.T) {
	line := []Point{{1, 7}, {-3, 2}, {4, -1}}
	got := Bounds(line)
	want := Rect{XMin: -3, YMin: -1, XMax: 4, YMax: 7}
	if got != want {
		t.Fatalf("Bounds = %+v; want %+v", got, want)
	}
}
