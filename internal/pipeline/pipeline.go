// Package pipeline runs the map generation batch job end to end: load,
// filter, project, plan, geocode, fetch, render, write.
package pipeline

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/sunshineplan/imgconv"

	"gpxmapper/internal/basemap"
	"gpxmapper/internal/exifmeta"
	"gpxmapper/internal/extent"
	"gpxmapper/internal/geocode"
	"gpxmapper/internal/mercator"
	"gpxmapper/internal/render"
	"gpxmapper/internal/track"
)

// DefaultZoneName is the civil timezone used for time-window comparisons
// and the embedded capture timestamp.
const DefaultZoneName = "Europe/Paris"

const jpegQuality = 95

// Options is the pipeline entry contract. All paths are explicit; the
// pipeline never depends on the working directory.
type Options struct {
	GPXPath    string
	Window     *track.Window
	Cities     []geocode.City
	OutputBase string // output path without extension, ".jpg" is appended

	RefImage string   // reference image for the capture timestamp
	Margin   *float64 // override for the computed margin, meters
	Title    string

	CacheDir    string
	Provider    basemap.Provider
	GeocoderURL string
	Zone        *time.Location
	Render      render.Config

	Logger *slog.Logger

	// Fetcher overrides the default tile fetcher, for tests.
	Fetcher *basemap.Fetcher
}

func (o *Options) setDefaults() {
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Zone == nil {
		zone, err := time.LoadLocation(DefaultZoneName)
		if err != nil {
			o.Logger.Warn("civil timezone unavailable, using UTC", "zone", DefaultZoneName, "error", err)
			zone = time.UTC
		}
		o.Zone = zone
	}
	if o.Render.Width == 0 {
		o.Render = render.DefaultConfig()
	}
	if o.Provider.URL == "" {
		o.Provider = basemap.Providers["osmfr"]
	}
	if o.CacheDir == "" {
		o.CacheDir = "cache"
	}
	if o.Fetcher == nil {
		o.Fetcher = basemap.NewFetcher(o.Provider, o.Logger)
	}
}

// Generate runs the full pipeline and writes <OutputBase>.jpg. It fails
// only on an unreadable track, an insufficient point count, or a basemap
// or output write failure; cities and metadata degrade per item.
func Generate(opts Options) error {
	opts.setDefaults()
	log := opts.Logger

	log.Info("reading GPX file", "path", opts.GPXPath)
	points, err := track.Load(opts.GPXPath)
	if err != nil {
		return err
	}

	filtered, err := track.Filter(points, opts.Window, opts.Zone)
	if err != nil {
		return err
	}
	log.Info("track points selected", "count", len(filtered), "length_km", track.Length(filtered)/1000)

	line := mercator.ProjectLine(track.Coords(filtered))

	plan := extent.Compute(line, opts.Margin, opts.Render.Width, opts.Render.Height)
	log.Info("extent planned", "zoom", plan.Zoom, "margin_m", plan.Margin)

	geocoder := geocode.NewClient(opts.GeocoderURL, log)
	resolutions := geocoder.Resolve(opts.Cities, plan.Rect)

	var markers []render.CityMarker
	for _, res := range resolutions {
		if res.Skipped {
			continue
		}
		markers = append(markers, render.CityMarker{
			Name:      res.City.Display,
			Point:     res.Point,
			Placement: render.ParsePlacement(res.City.Position),
		})
	}

	cache := &basemap.Cache{Dir: opts.CacheDir}
	basemapImg, basemapBounds, err := opts.Fetcher.GetOrFetch(cache, plan.Rect, plan.Zoom)
	if err != nil {
		return fmt.Errorf("basemap fetch failed: %w", err)
	}

	img := opts.Render.Compose(plan, line, basemapImg, basemapBounds, markers, opts.Title)

	outputPath := opts.OutputBase + ".jpg"
	err = imgconv.Save(outputPath, img, &imgconv.FormatOption{
		Format:       imgconv.JPEG,
		EncodeOption: []imgconv.EncodeOption{imgconv.Quality(jpegQuality)},
	})
	if err != nil {
		return fmt.Errorf("failed to write output image: %w", err)
	}
	log.Info("map written", "path", outputPath)

	ts, ok := exifmeta.DeriveTimestamp(opts.RefImage, track.StartTime(filtered), opts.Zone)
	if !ok {
		log.Warn("no capture timestamp source available, metadata skipped")
		return nil
	}
	if err := exifmeta.Apply(outputPath, ts.In(opts.Zone)); err != nil {
		log.Warn("failed to embed metadata", "error", err)
		return nil
	}
	log.Info("capture timestamp embedded", "timestamp", ts.In(opts.Zone).Format("2006-01-02 15:04:05"))

	return nil
}
