// Package geocode resolves place names against a Nominatim-style search
// API, constrained to the planned map extent with a single unconstrained
// fallback.
package geocode

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"gpxmapper/internal/mercator"
)

// DefaultBaseURL is the public Nominatim search endpoint.
const DefaultBaseURL = "https://nominatim.openstreetmap.org/search"

const userAgent = "gpx_mapper"

// City is a place the caller wants labeled on the map. Position is an
// optional compass code (N, S, E, O and pairs) forcing label placement;
// empty means automatic placement.
type City struct {
	Query    string
	Display  string
	Position string
}

// Resolution is the per-city outcome: either a projected coordinate or
// a skip reason. Cities are dropped, never fatal.
type Resolution struct {
	City    City
	Point   mercator.Point
	Skipped bool
	Reason  string
}

// Client queries the place-search API.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// NewClient returns a client for the given endpoint with the fixed
// request timeout the pipeline uses for all geocoding calls.
func NewClient(baseURL string, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
		Logger:     logger,
	}
}

type searchResult struct {
	Lon string `json:"lon"`
	Lat string `json:"lat"`
}

func (c *Client) search(params url.Values) ([]searchResult, error) {
	req, err := http.NewRequest(http.MethodGet, c.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("geocoder returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	var results []searchResult
	if err := json.Unmarshal(body, &results); err != nil {
		return nil, fmt.Errorf("failed to decode geocoder response: %w", err)
	}
	return results, nil
}

// Search resolves a free-text query, preferring matches inside viewbox
// (geographic degrees). An empty bounded result triggers one retry
// without the viewbox. Returns ok=false when both passes come up empty.
func (c *Client) Search(query string, viewbox mercator.Rect) (lon, lat float64, ok bool, err error) {
	lonMin, latMin, lonMax, latMax := viewbox.Degrees()
	viewboxStr := fmt.Sprintf("%.6f,%.6f,%.6f,%.6f", lonMin, latMin, lonMax, latMax)

	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("viewbox", viewboxStr)
	params.Set("bounded", "1")

	c.Logger.Info("geocoding", "query", query, "viewbox", viewboxStr)
	results, err := c.search(params)
	if err != nil {
		return 0, 0, false, err
	}

	if len(results) == 0 {
		c.Logger.Warn("no bounded result, retrying without viewbox", "query", query)
		params = url.Values{}
		params.Set("q", query)
		params.Set("format", "json")
		results, err = c.search(params)
		if err != nil {
			return 0, 0, false, err
		}
	}

	if len(results) == 0 {
		return 0, 0, false, nil
	}

	lon, err = strconv.ParseFloat(results[0].Lon, 64)
	if err != nil {
		return 0, 0, false, fmt.Errorf("bad lon in geocoder response: %w", err)
	}
	lat, err = strconv.ParseFloat(results[0].Lat, 64)
	if err != nil {
		return 0, 0, false, fmt.Errorf("bad lat in geocoder response: %w", err)
	}
	return lon, lat, true, nil
}

// Resolve geocodes every requested city against the planned extent and
// validates containment. A coordinate outside the extent, an empty
// result, or a network error all degrade to a skipped resolution.
func (c *Client) Resolve(cities []City, plan mercator.Rect) []Resolution {
	out := make([]Resolution, 0, len(cities))
	for _, city := range cities {
		res := Resolution{City: city}

		lon, lat, ok, err := c.Search(city.Query, plan)
		switch {
		case err != nil:
			res.Skipped = true
			res.Reason = err.Error()
			c.Logger.Warn("geocoding failed, city dropped", "query", city.Query, "error", err)
		case !ok:
			res.Skipped = true
			res.Reason = "no geocoding result"
			c.Logger.Warn("no geocoding result, city dropped", "query", city.Query)
		default:
			pt := mercator.Project(lon, lat)
			if !plan.Contains(pt) {
				res.Skipped = true
				res.Reason = "outside map extent"
				c.Logger.Warn("city outside map extent, dropped", "query", city.Query, "lon", lon, "lat", lat)
			} else {
				res.Point = pt
			}
		}
		out = append(out, res)
	}
	return out
}
