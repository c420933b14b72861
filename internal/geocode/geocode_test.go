package geocode

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"gpxmapper/internal/mercator"
)

// testExtent is a box over central Paris in projected meters.
func testExtent() mercator.Rect {
	min := mercator.Project(2.2, 48.8)
	max := mercator.Project(2.5, 48.9)
	return mercator.Rect{XMin: min.X, YMin: min.Y, XMax: max.X, YMax: max.Y}
}

func TestSearchBounded(t *testing.T) {
	var boundedSeen bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("q") != "Paris" {
			t.Errorf("unexpected query %q", q.Get("q"))
		}
		if q.Get("bounded") == "1" && q.Get("viewbox") != "" {
			boundedSeen = true
		}
		fmt.Fprint(w, `[{"lon":"2.3522","lat":"48.8566"}]`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, slog.Default())
	lon, lat, ok, err := c.Search("Paris", testExtent())
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected a result")
	}
	if !boundedSeen {
		t.Fatal("first attempt must be viewbox-bounded")
	}
	if lon != 2.3522 || lat != 48.8566 {
		t.Fatalf("got (%v, %v)", lon, lat)
	}
}

func TestSearchFallsBackUnbounded(t *testing.T) {
	var requests []bool // bounded flag per request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		bounded := r.URL.Query().Get("bounded") == "1"
		requests = append(requests, bounded)
		if bounded {
			fmt.Fprint(w, `[]`)
			return
		}
		fmt.Fprint(w, `[{"lon":"-0.5792","lat":"44.8378"}]`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, slog.Default())
	lon, lat, ok, err := c.Search("Bordeaux", testExtent())
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("fallback result expected")
	}
	if len(requests) != 2 || !requests[0] || requests[1] {
		t.Fatalf("expected bounded then unbounded, got %v", requests)
	}
	if lon != -0.5792 || lat != 44.8378 {
		t.Fatalf("got (%v, %v)", lon, lat)
	}
}

func TestSearchNoResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[]`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, slog.Default())
	_, _, ok, err := c.Search("Atlantis", testExtent())
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("no result expected")
	}
}

func TestResolve(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("q") {
		case "Paris":
			fmt.Fprint(w, `[{"lon":"2.3522","lat":"48.8566"}]`)
		case "Marseille":
			// Resolves fine but far outside the extent.
			fmt.Fprint(w, `[{"lon":"5.3698","lat":"43.2965"}]`)
		case "Atlantis":
			fmt.Fprint(w, `[]`)
		default:
			http.Error(w, "boom", http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, slog.Default())
	cities := []City{
		{Query: "Paris", Display: "Paris"},
		{Query: "Marseille", Display: "Marseille"},
		{Query: "Atlantis", Display: "Atlantis"},
		{Query: "Broken", Display: "Broken"},
	}
	results := c.Resolve(cities, testExtent())
	if len(results) != 4 {
		t.Fatalf("got %d resolutions; want 4", len(results))
	}

	if results[0].Skipped {
		t.Fatalf("Paris should resolve, skipped with %q", results[0].Reason)
	}
	if !testExtent().Contains(results[0].Point) {
		t.Fatal("resolved point should lie in the extent")
	}

	if !results[1].Skipped || results[1].Reason != "outside map extent" {
		t.Fatalf("Marseille should be dropped for containment, got %+v", results[1])
	}
	if !results[2].Skipped || results[2].Reason != "no geocoding result" {
		t.Fatalf("Atlantis should be dropped for no result, got %+v", results[2])
	}
	if !results[3].Skipped {
		t.Fatal("server errors must degrade to a skipped city")
	}
}

func TestSearchServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, slog.Default())
	if _, _, _, err := c.Search("Paris", testExtent()); err == nil {
		t.Fatal("expected error on server failure")
	}
}
