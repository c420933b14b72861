package exifmeta

import (
	"bytes"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// writeJPEG encodes a tiny plain JPEG with no EXIF block.
func writeJPEG(t *testing.T, path string) {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 8, 8))
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := jpeg.Encode(f, img, nil); err != nil {
		t.Fatal(err)
	}
}

func TestDeriveTimestampNoReference(t *testing.T) {
	start := time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC)
	ts, ok := DeriveTimestamp("", start, time.UTC)
	if !ok {
		t.Fatal("track start should be usable")
	}
	if !ts.Equal(start) {
		t.Fatalf("got %v; want %v", ts, start)
	}
}

func TestDeriveTimestampMissingReference(t *testing.T) {
	start := time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC)
	ts, ok := DeriveTimestamp(filepath.Join(t.TempDir(), "nope.jpg"), start, time.UTC)
	if !ok {
		t.Fatal("expected fallback to track start")
	}
	if !ts.Equal(start) {
		t.Fatalf("got %v; want %v", ts, start)
	}
}

func TestDeriveTimestampNothing(t *testing.T) {
	if _, ok := DeriveTimestamp("", time.Time{}, time.UTC); ok {
		t.Fatal("no source should yield ok=false")
	}
}

func TestDeriveTimestampFileTimeFallback(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ref.jpg")
	writeJPEG(t, path)
	mod := time.Date(2024, 6, 1, 12, 0, 0, 0, time.Local)
	if err := os.Chtimes(path, mod, mod); err != nil {
		t.Fatal(err)
	}

	ts, ok := DeriveTimestamp(path, time.Time{}, time.UTC)
	if !ok {
		t.Fatal("reference image present, expected ok")
	}
	want := mod.Add(-10 * time.Second)
	if !ts.Equal(want) {
		t.Fatalf("got %v; want %v", ts, want)
	}
}

func TestDeriveTimestampNonJPEGReference(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ref.png")
	if err := os.WriteFile(path, []byte("not a jpeg"), 0o644); err != nil {
		t.Fatal(err)
	}
	start := time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC)
	ts, ok := DeriveTimestamp(path, start, time.UTC)
	if !ok || !ts.Equal(start) {
		t.Fatalf("non-JPEG reference should fall back to track start, got %v ok=%v", ts, ok)
	}
}

// The EXIF wall clock is zone-less: the derived timestamp must stay 10s
// before the reference image's wall clock in the civil zone, whatever
// the host's local zone is.
func TestDeriveTimestampCivilZone(t *testing.T) {
	zone := time.FixedZone("civil", 5*3600)
	path := filepath.Join(t.TempDir(), "ref.jpg")
	writeJPEG(t, path)

	wall := time.Date(2024, 6, 1, 10, 0, 0, 0, zone)
	if err := Apply(path, wall); err != nil && !strings.Contains(err.Error(), "rating") {
		t.Fatalf("Apply: %v", err)
	}

	ts, ok := DeriveTimestamp(path, time.Time{}, zone)
	if !ok {
		t.Fatal("reference image present, expected ok")
	}
	want := wall.Add(-10 * time.Second)
	if !ts.Equal(want) {
		t.Fatalf("got %v; want %v", ts, want)
	}
	if got := ts.In(zone).Format("2006-01-02 15:04:05"); got != "2024-06-01 09:59:50" {
		t.Fatalf("civil wall clock %s; want 2024-06-01 09:59:50", got)
	}
}

func TestApplyAndReadBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.jpg")
	writeJPEG(t, path)

	ts := time.Date(2024, 6, 1, 14, 22, 33, 0, time.Local)
	if err := Apply(path, ts); err != nil && !strings.Contains(err.Error(), "rating") {
		t.Fatalf("Apply: %v", err)
	}

	got, err := ReadTimestamp(path, time.Local)
	if err != nil {
		t.Fatalf("ReadTimestamp: %v", err)
	}
	if !got.Equal(ts) {
		t.Fatalf("got %v; want %v", got, ts)
	}
}

func TestApplyFailureKeepsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.jpg")
	original := []byte("not a jpeg at all")
	if err := os.WriteFile(path, original, 0o644); err != nil {
		t.Fatal(err)
	}

	if err := Apply(path, time.Now()); err == nil {
		t.Fatal("expected Apply to fail on a non-JPEG")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, original) {
		t.Fatal("a failed Apply must leave the file untouched")
	}
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("temp files left behind: %d entries", len(entries))
	}
}

func TestReadTimestampNoExif(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plain.jpg")
	writeJPEG(t, path)
	if _, err := ReadTimestamp(path, time.UTC); err == nil {
		t.Fatal("plain JPEG has no EXIF, expected error")
	}
}
