// Package exifmeta derives a capture timestamp for the generated map and
// embeds it, together with a maximum quality rating, into the output JPEG.
package exifmeta

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	exif "github.com/dsoprea/go-exif/v3"
	exifcommon "github.com/dsoprea/go-exif/v3/common"
	jpegstructure "github.com/dsoprea/go-jpeg-image-structure/v2"
)

const exifTimeLayout = "2006:01:02 15:04:05"

// referenceOffset orders the generated map just before the reference
// photo in chronologically sorted sets.
const referenceOffset = 10 * time.Second

// ratingValue is the fixed quality rating embedded in every output.
const ratingValue = 5

// ReadTimestamp extracts DateTimeOriginal from an image's EXIF block.
// The EXIF value is a zone-less wall clock; it is interpreted in loc.
func ReadTimestamp(path string, loc *time.Location) (time.Time, error) {
	rawExif, err := exif.SearchFileAndExtractExif(path)
	if err != nil {
		return time.Time{}, err
	}
	entries, _, err := exif.GetFlatExifData(rawExif, nil)
	if err != nil {
		return time.Time{}, err
	}
	for _, e := range entries {
		if e.TagName == "DateTimeOriginal" {
			value := strings.Trim(e.FormattedFirst, "\x00 ")
			return time.ParseInLocation(exifTimeLayout, value, loc)
		}
	}
	return time.Time{}, fmt.Errorf("no DateTimeOriginal tag in %s", path)
}

func isJPEG(path string) bool {
	lower := strings.ToLower(path)
	return strings.HasSuffix(lower, ".jpg") || strings.HasSuffix(lower, ".jpeg")
}

// DeriveTimestamp picks the capture timestamp to embed: the reference
// image's EXIF date (or its file time when it carries none) minus a
// fixed offset, or the track's start time when there is no reference
// image. The reference's EXIF wall clock is read in loc so the embedded
// value stays 10s before it regardless of the host zone. ok is false
// when neither source is available.
func DeriveTimestamp(refImage string, trackStart time.Time, loc *time.Location) (ts time.Time, ok bool) {
	if refImage != "" && isJPEG(refImage) {
		if info, err := os.Stat(refImage); err == nil {
			dt, err := ReadTimestamp(refImage, loc)
			if err != nil {
				dt = info.ModTime()
			}
			return dt.Add(-referenceOffset), true
		}
	}
	if !trackStart.IsZero() {
		return trackStart, true
	}
	return time.Time{}, false
}

// Apply rewrites the JPEG at path with DateTimeOriginal, DateTime and a
// five-star rating. The raster itself is already complete, so callers
// treat any error here as cosmetic.
func Apply(path string, ts time.Time) error {
	jmp := jpegstructure.NewJpegMediaParser()
	intfc, err := jmp.ParseFile(path)
	if err != nil {
		return fmt.Errorf("failed to parse output JPEG: %w", err)
	}
	sl := intfc.(*jpegstructure.SegmentList)

	rootIb, err := sl.ConstructExifBuilder()
	if err != nil {
		// Freshly encoded output has no EXIF block yet.
		im, err := exifcommon.NewIfdMappingWithStandard()
		if err != nil {
			return err
		}
		rootIb = exif.NewIfdBuilder(im, exif.NewTagIndex(), exifcommon.IfdStandardIfdIdentity, exifcommon.EncodeDefaultByteOrder)
	}

	dtStr := ts.Format(exifTimeLayout)

	ifd0Ib, err := exif.GetOrCreateIbFromRootIb(rootIb, "IFD0")
	if err != nil {
		return err
	}
	if err := ifd0Ib.SetStandardWithName("DateTime", dtStr); err != nil {
		return err
	}
	// The rating tag is a TIFF extension; a tag catalog without it must
	// not cost us the timestamps.
	ratingErr := ifd0Ib.SetStandardWithName("Rating", []uint16{ratingValue})

	exifIb, err := exif.GetOrCreateIbFromRootIb(rootIb, "IFD/Exif")
	if err != nil {
		return err
	}
	if err := exifIb.SetStandardWithName("DateTimeOriginal", dtStr); err != nil {
		return err
	}

	if err := sl.SetExif(rootIb); err != nil {
		return err
	}

	// Write to a sibling temp file and rename so a mid-write failure
	// never destroys the finished raster.
	f, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp")
	if err != nil {
		return err
	}
	tmp := f.Name()
	if err := sl.Write(f); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	if ratingErr != nil {
		return fmt.Errorf("timestamps written but rating not supported: %w", ratingErr)
	}
	return nil
}
