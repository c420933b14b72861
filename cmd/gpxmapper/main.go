// Command gpxmapper renders an annotated map image from a GPX track log.
//
// Usage:
//
//	gpxmapper [flags] track.gpx output-name
//
// The output is written as output-name.jpg with an embedded capture
// timestamp and rating.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/golang/freetype/truetype"

	"gpxmapper/internal/basemap"
	"gpxmapper/internal/geocode"
	"gpxmapper/internal/pipeline"
	"gpxmapper/internal/render"
	"gpxmapper/internal/track"
)

type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

type arguments struct {
	GPXFile    string
	OutputBase string
	Date       string
	From       string
	To         string
	Cities     stringList
	RefImage   string
	Margin     string
	Title      string
	CacheDir   string
	Style      string
	FontPath   string
	Verbose    bool
}

func parseArguments() *arguments {
	args := &arguments{}

	flag.StringVar(&args.Date, "date", "", "Keep only points of this day, format YYYY-MM-DD.")
	flag.StringVar(&args.From, "from", "", "Window start, format YYYY-MM-DD HH:MM:SS (requires -to).")
	flag.StringVar(&args.To, "to", "", "Window end, format YYYY-MM-DD HH:MM:SS (requires -from).")
	flag.Var(&args.Cities, "city", "City to label, format query[:display[:position]]. Position: N, S, E, O or pairs (NE, SO, ...). Repeatable.")
	flag.StringVar(&args.RefImage, "image", "", "Reference image for the capture timestamp (optional).")
	flag.StringVar(&args.Margin, "margin", "", "Margin around the track in meters (optional, computed from zoom by default).")
	flag.StringVar(&args.Title, "title", "", "Title drawn top-left on the map (optional).")
	flag.StringVar(&args.CacheDir, "cache-dir", "cache", "Basemap cache directory.")
	flag.StringVar(&args.Style, "style", "osmfr", "Tile provider (osmfr, osm, positron).")
	flag.StringVar(&args.FontPath, "font", "", "TTF font file for labels (built-in default when absent).")
	flag.BoolVar(&args.Verbose, "v", false, "Debug logging.")
	flag.Parse()

	if flag.NArg() != 2 {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] track.gpx output-name\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(2)
	}
	args.GPXFile = flag.Arg(0)
	args.OutputBase = flag.Arg(1)

	return args
}

func setupLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

// parseWindow builds the inclusive time window from -date or -from/-to.
// Bounds are civil times in zone; start must not be after end.
func parseWindow(args *arguments, zone *time.Location) (*track.Window, error) {
	switch {
	case args.Date != "":
		day, err := time.ParseInLocation("2006-01-02", args.Date, zone)
		if err != nil {
			return nil, fmt.Errorf("invalid -date value: %w", err)
		}
		// Pin the literal civil end of day; instant arithmetic would
		// spill over on DST-transition days.
		return &track.Window{
			Start: day,
			End:   time.Date(day.Year(), day.Month(), day.Day(), 23, 59, 59, 0, zone),
		}, nil
	case args.From != "" || args.To != "":
		if args.From == "" || args.To == "" {
			return nil, fmt.Errorf("-from and -to must be used together")
		}
		start, err := time.ParseInLocation("2006-01-02 15:04:05", args.From, zone)
		if err != nil {
			return nil, fmt.Errorf("invalid -from value: %w", err)
		}
		end, err := time.ParseInLocation("2006-01-02 15:04:05", args.To, zone)
		if err != nil {
			return nil, fmt.Errorf("invalid -to value: %w", err)
		}
		if start.After(end) {
			return nil, fmt.Errorf("window start must not be after window end")
		}
		return &track.Window{Start: start, End: end}, nil
	}
	return nil, nil
}

// parseCity splits query[:display[:position]] into a city request.
func parseCity(s string) geocode.City {
	parts := strings.SplitN(s, ":", 3)
	city := geocode.City{Query: parts[0], Display: parts[0]}
	if len(parts) > 1 && parts[1] != "" {
		city.Display = parts[1]
	}
	if len(parts) > 2 {
		city.Position = parts[2]
	}
	return city
}

func main() {
	args := parseArguments()
	logger := setupLogger(args.Verbose)

	zone, err := time.LoadLocation(pipeline.DefaultZoneName)
	if err != nil {
		logger.Warn("civil timezone unavailable, using UTC", "error", err)
		zone = time.UTC
	}

	window, err := parseWindow(args, zone)
	if err != nil {
		logger.Error(err.Error())
		os.Exit(2)
	}

	var margin *float64
	if args.Margin != "" {
		v, err := strconv.ParseFloat(args.Margin, 64)
		if err != nil {
			logger.Warn("invalid margin, falling back to computed default", "margin", args.Margin)
		} else {
			margin = &v
		}
	}

	provider, ok := basemap.Providers[args.Style]
	if !ok {
		logger.Error("unknown tile provider", "style", args.Style)
		os.Exit(2)
	}

	cities := make([]geocode.City, 0, len(args.Cities))
	for _, c := range args.Cities {
		cities = append(cities, parseCity(c))
	}

	cfg := render.DefaultConfig()
	if args.FontPath != "" {
		data, err := os.ReadFile(args.FontPath)
		if err == nil {
			font, perr := truetype.Parse(data)
			if perr == nil {
				cfg.Font = font
			} else {
				logger.Warn("unusable font file, using built-in default", "path", args.FontPath, "error", perr)
			}
		} else {
			logger.Warn("cannot read font file, using built-in default", "path", args.FontPath, "error", err)
		}
	}

	err = pipeline.Generate(pipeline.Options{
		GPXPath:    args.GPXFile,
		Window:     window,
		Cities:     cities,
		OutputBase: args.OutputBase,
		RefImage:   args.RefImage,
		Margin:     margin,
		Title:      args.Title,
		CacheDir:   args.CacheDir,
		Provider:   provider,
		Zone:       zone,
		Render:     cfg,
		Logger:     logger,
	})
	if err != nil {
		logger.Error("map generation failed", "error", err)
		os.Exit(1)
	}
}
