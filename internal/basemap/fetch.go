package basemap

import (
	"fmt"
	"image"
	"image/draw"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/schollz/progressbar/v3"

	"gpxmapper/internal/mercator"
)

const (
	tileSize         = 256
	fetchConcurrency = 8
	tileLRUSize      = 512
)

// Provider is a raster tile source. The URL template uses {z}/{x}/{y}
// placeholders.
type Provider struct {
	Name    string
	URL     string
	Headers map[string]string
}

// Providers are the known tile sources. osmfr matches the style the maps
// were originally produced with.
var Providers = map[string]Provider{
	"osmfr":    {Name: "osmfr", URL: "https://a.tile.openstreetmap.fr/osmfr/{z}/{x}/{y}.png"},
	"osm":      {Name: "osm", URL: "https://tile.openstreetmap.org/{z}/{x}/{y}.png"},
	"positron": {Name: "positron", URL: "https://d.basemaps.cartocdn.com/light_all/{z}/{x}/{y}.png"},
}

// Fetcher downloads and mosaics basemap tiles for a projected extent.
type Fetcher struct {
	Provider Provider
	Client   *http.Client
	Logger   *slog.Logger
	Progress bool

	tiles *lru.Cache[string, image.Image]
}

// NewFetcher builds a fetcher for the given provider with an in-memory
// tile cache in front of the network.
func NewFetcher(provider Provider, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	tiles, _ := lru.New[string, image.Image](tileLRUSize)
	return &Fetcher{
		Provider: provider,
		Client:   &http.Client{Timeout: 10 * time.Second},
		Logger:   logger,
		Progress: true,
		tiles:    tiles,
	}
}

func (f *Fetcher) tileURL(z, x, y int) string {
	url := strings.Replace(f.Provider.URL, "{z}", strconv.Itoa(z), 1)
	url = strings.Replace(url, "{x}", strconv.Itoa(x), 1)
	return strings.Replace(url, "{y}", strconv.Itoa(y), 1)
}

func (f *Fetcher) fetchTile(z, x, y int) (image.Image, error) {
	url := f.tileURL(z, x, y)
	if img, ok := f.tiles.Get(url); ok {
		return img, nil
	}

	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "gpxmapper/0.1")
	for k, v := range f.Provider.Headers {
		req.Header.Set(k, v)
	}

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download tile %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download tile %s: status %d", url, resp.StatusCode)
	}

	img, _, err := image.Decode(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode tile %s: %w", url, err)
	}

	f.tiles.Add(url, img)
	return img, nil
}

// deg2num converts a geographic position to fractional slippy-map tile
// coordinates at the given zoom.
func deg2num(lat, lon float64, zoom int) (float64, float64) {
	latRad := lat * math.Pi / 180
	n := math.Pow(2, float64(zoom))
	xtile := (lon + 180) / 360 * n
	ytile := (1 - math.Asinh(math.Tan(latRad))/math.Pi) / 2 * n
	return xtile, ytile
}

// tileBounds returns the projected bounds of the tile range
// [txMin,txMax]x[tyMin,tyMax] at zoom.
func tileBounds(txMin, tyMin, txMax, tyMax, zoom int) mercator.Rect {
	world := 2 * math.Pi * mercator.EarthRadius
	n := math.Pow(2, float64(zoom))
	return mercator.Rect{
		XMin: float64(txMin)/n*world - world/2,
		XMax: float64(txMax+1)/n*world - world/2,
		YMax: world/2 - float64(tyMin)/n*world,
		YMin: world/2 - float64(tyMax+1)/n*world,
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Fetch downloads the tiles covering extent at zoom and composes them
// into a single raster. The returned bounds are tile-aligned and always
// a superset of the requested extent.
func (f *Fetcher) Fetch(extent mercator.Rect, zoom int) (image.Image, mercator.Rect, error) {
	lonMin, latMin, lonMax, latMax := extent.Degrees()

	// Tile y grows southward, so the top row comes from latMax.
	txMinF, tyMinF := deg2num(latMax, lonMin, zoom)
	txMaxF, tyMaxF := deg2num(latMin, lonMax, zoom)

	max := int(math.Pow(2, float64(zoom))) - 1
	txMin := clamp(int(math.Floor(txMinF)), 0, max)
	tyMin := clamp(int(math.Floor(tyMinF)), 0, max)
	txMax := clamp(int(math.Floor(txMaxF)), 0, max)
	tyMax := clamp(int(math.Floor(tyMaxF)), 0, max)

	cols := txMax - txMin + 1
	rows := tyMax - tyMin + 1
	f.Logger.Info("downloading basemap", "zoom", zoom, "tiles", cols*rows)

	var bar *progressbar.ProgressBar
	if f.Progress {
		bar = progressbar.Default(int64(cols*rows), "Downloading tiles")
	}

	mosaic := image.NewRGBA(image.Rect(0, 0, cols*tileSize, rows*tileSize))

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	limit := make(chan struct{}, fetchConcurrency)

	for x := txMin; x <= txMax; x++ {
		for y := tyMin; y <= tyMax; y++ {
			wg.Add(1)
			limit <- struct{}{}
			go func(x, y int) {
				defer wg.Done()
				defer func() { <-limit }()

				img, err := f.fetchTile(zoom, x, y)

				mu.Lock()
				defer mu.Unlock()
				if bar != nil {
					bar.Add(1)
				}
				if err != nil {
					if firstErr == nil {
						firstErr = err
					}
					return
				}
				dst := image.Rect((x-txMin)*tileSize, (y-tyMin)*tileSize, (x-txMin+1)*tileSize, (y-tyMin+1)*tileSize)
				draw.Draw(mosaic, dst, img, img.Bounds().Min, draw.Src)
			}(x, y)
		}
	}
	wg.Wait()

	if firstErr != nil {
		return nil, mercator.Rect{}, firstErr
	}
	return mosaic, tileBounds(txMin, tyMin, txMax, tyMax, zoom), nil
}

// GetOrFetch returns the basemap for (extent, zoom) from the disk cache,
// fetching and persisting it on a miss.
func (f *Fetcher) GetOrFetch(cache *Cache, extent mercator.Rect, zoom int) (image.Image, mercator.Rect, error) {
	key := Key(extent, zoom)
	if img, bounds, ok := cache.Load(key); ok {
		f.Logger.Info("basemap loaded from cache", "key", key)
		return img, bounds, nil
	}

	img, bounds, err := f.Fetch(extent, zoom)
	if err != nil {
		return nil, mercator.Rect{}, err
	}
	if err := cache.Store(key, img, bounds); err != nil {
		return nil, mercator.Rect{}, fmt.Errorf("failed to persist basemap: %w", err)
	}
	return img, bounds, nil
}
