package basemap

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"

	"gpxmapper/internal/mercator"
)

// boundsVersion tags the serialized bounds record so a cache written by
// one version is never misread by another.
const boundsVersion = 1

// Cache is a content-addressed disk cache for fetched basemaps. Entries
// are written once and never evicted: identical (extent, zoom) requests
// must always yield identical artifacts.
type Cache struct {
	Dir string
}

// Key derives the cache key from the six-decimal-rounded extent and the
// zoom level.
func Key(r mercator.Rect, zoom int) string {
	s := fmt.Sprintf("%.6f_%.6f_%.6f_%.6f_z%d", r.XMin, r.YMin, r.XMax, r.YMax, zoom)
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

type boundsRecord struct {
	Version int     `json:"version"`
	XMin    float64 `json:"xmin"`
	YMin    float64 `json:"ymin"`
	XMax    float64 `json:"xmax"`
	YMax    float64 `json:"ymax"`
}

func (c *Cache) imagePath(key string) string  { return filepath.Join(c.Dir, key+".png") }
func (c *Cache) boundsPath(key string) string { return filepath.Join(c.Dir, key+".json") }

// Load returns the cached raster and its geo-referenced bounds, or
// ok=false when either artifact is missing or unreadable.
func (c *Cache) Load(key string) (image.Image, mercator.Rect, bool) {
	data, err := os.ReadFile(c.boundsPath(key))
	if err != nil {
		return nil, mercator.Rect{}, false
	}
	var rec boundsRecord
	if err := json.Unmarshal(data, &rec); err != nil || rec.Version != boundsVersion {
		return nil, mercator.Rect{}, false
	}

	f, err := os.Open(c.imagePath(key))
	if err != nil {
		return nil, mercator.Rect{}, false
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, mercator.Rect{}, false
	}

	return img, mercator.Rect{XMin: rec.XMin, YMin: rec.YMin, XMax: rec.XMax, YMax: rec.YMax}, true
}

// Store persists the raster and bounds under key. The write is
// idempotent: concurrent invocations racing on the same key produce the
// same content.
func (c *Cache) Store(key string, img image.Image, bounds mercator.Rect) error {
	if err := os.MkdirAll(c.Dir, 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	f, err := os.Create(c.imagePath(key))
	if err != nil {
		return err
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		return err
	}

	rec := boundsRecord{Version: boundsVersion, XMin: bounds.XMin, YMin: bounds.YMin, XMax: bounds.XMax, YMax: bounds.YMax}
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return os.WriteFile(c.boundsPath(key), data, 0644)
}
