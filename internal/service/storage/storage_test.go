package storage

import (
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Techsolutions2024/strawberry/internal/config"
	"github.com/Techsolutions2024/strawberry/internal/model"
	"github.com/Techsolutions2024/strawberry/internal/repository/sqlite"
)

func ripeRecord(id string) model.DetectionRecord {
	return model.DetectionRecord{
		ID:         id,
		Class:      "ripe",
		Confidence: 0.9,
		Box:        model.Box{X1: 10, Y1: 10, X2: 50, Y2: 50},
		Center:     &model.Point{X: 30, Y: 30},
		CapturedAt: time.Now(),
	}
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read %s: %v", path, err)
	}
	return strings.Split(strings.TrimRight(string(data), "\n"), "\n")
}

func TestDetectionLog_HeaderWrittenOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "coords", "detections.csv")

	for i := 0; i < 2; i++ {
		l, err := OpenLog(path, config.PolicyAppend, true)
		if err != nil {
			t.Fatalf("OpenLog #%d failed: %v", i, err)
		}
		if err := l.Append("ripe_a.jpg", ripeRecord("ripe_a")); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
		l.Close()
	}

	lines := readLines(t, path)
	if len(lines) != 3 {
		t.Fatalf("Expected header + 2 rows, got %d lines: %v", len(lines), lines)
	}
	if lines[0] != "filename,class,confidence,x1,y1,x2,y2,center_x,center_y" {
		t.Errorf("Unexpected header %q", lines[0])
	}
	if lines[1] != "ripe_a.jpg,ripe,0.90,10,10,50,50,30,30" {
		t.Errorf("Unexpected row %q", lines[1])
	}
}

func TestDetectionLog_Recreate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "detections.csv")

	l, err := OpenLog(path, config.PolicyAppend, false)
	if err != nil {
		t.Fatalf("OpenLog failed: %v", err)
	}
	l.Append("ripe_a.jpg", ripeRecord("ripe_a"))
	l.Close()

	l, err = OpenLog(path, config.PolicyRecreate, false)
	if err != nil {
		t.Fatalf("OpenLog recreate failed: %v", err)
	}
	l.Close()

	lines := readLines(t, path)
	if len(lines) != 1 || lines[0] != "filename,class,confidence,x1,y1,x2,y2" {
		t.Errorf("Expected only header after recreate, got %v", lines)
	}
}

func TestDetectionLog_EmptyExistingFileGetsHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "detections.csv")
	if err := os.WriteFile(path, nil, 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	l, err := OpenLog(path, config.PolicyAppend, false)
	if err != nil {
		t.Fatalf("OpenLog failed: %v", err)
	}
	l.Close()

	if lines := readLines(t, path); len(lines) != 1 {
		t.Errorf("Expected header line, got %v", lines)
	}
}

func TestDetectionLog_SchemaMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "detections.csv")

	l, err := OpenLog(path, config.PolicyAppend, false)
	if err != nil {
		t.Fatalf("OpenLog failed: %v", err)
	}
	l.Close()

	if _, err := OpenLog(path, config.PolicyAppend, true); !errors.Is(err, ErrSchemaMismatch) {
		t.Errorf("Expected ErrSchemaMismatch, got %v", err)
	}

	// recreate replaces the old schema
	l, err = OpenLog(path, config.PolicyRecreate, true)
	if err != nil {
		t.Fatalf("OpenLog recreate failed: %v", err)
	}
	l.Close()
}

func TestDetectionLog_UnknownPolicy(t *testing.T) {
	if _, err := OpenLog(filepath.Join(t.TempDir(), "d.csv"), "", false); err == nil {
		t.Error("Expected error for empty policy")
	}
}

func TestDetectionLog_AppendAfterClose(t *testing.T) {
	l, err := OpenLog(filepath.Join(t.TempDir(), "d.csv"), config.PolicyAppend, false)
	if err != nil {
		t.Fatalf("OpenLog failed: %v", err)
	}
	l.Close()

	if err := l.Append("x.jpg", ripeRecord("x")); !errors.Is(err, ErrWrite) {
		t.Errorf("Expected ErrWrite, got %v", err)
	}
}

// shortFile writes half of the first buffer it gets and then fails, like a full disk.
type shortFile struct {
	logFile
}

func (f shortFile) Write(p []byte) (int, error) {
	n, _ := f.logFile.Write(p[:len(p)/2])
	return n, errors.New("no space left on device")
}

func TestDetectionLog_FailedWriteLeavesNoPartialRow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "detections.csv")
	l, err := OpenLog(path, config.PolicyRecreate, false)
	if err != nil {
		t.Fatalf("OpenLog failed: %v", err)
	}
	defer l.Close()

	if err := l.Append("ripe_a.jpg", ripeRecord("ripe_a")); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	orig := l.file
	l.file = shortFile{orig}
	if err := l.Append("ripe_b.jpg", ripeRecord("ripe_b")); !errors.Is(err, ErrWrite) {
		t.Fatalf("Expected ErrWrite, got %v", err)
	}
	l.file = orig

	if err := l.Append("ripe_c.jpg", ripeRecord("ripe_c")); err != nil {
		t.Fatalf("Append after failure failed: %v", err)
	}

	entries, err := ReadLog(path)
	if err != nil {
		t.Fatalf("ReadLog failed: %v", err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Filename)
	}
	if strings.Join(names, ",") != "ripe_a.jpg,ripe_c.jpg" {
		t.Errorf("Expected rows ripe_a.jpg,ripe_c.jpg, got %v", names)
	}
}

func TestReadLog_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "detections.csv")
	l, err := OpenLog(path, config.PolicyRecreate, true)
	if err != nil {
		t.Fatalf("OpenLog failed: %v", err)
	}
	rec := ripeRecord("ripe_20240501_120000_000001")
	rec.Confidence = 0.876
	rec.Box = model.Box{X1: 1, Y1: 2, X2: 4, Y2: 7}
	rec.Center = nil
	if err := l.Append("ripe_20240501_120000_000001.jpg", rec); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	l.Close()

	entries, err := ReadLog(path)
	if err != nil {
		t.Fatalf("ReadLog failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("Expected 1 entry, got %d", len(entries))
	}
	e := entries[0]
	if e.Filename != "ripe_20240501_120000_000001.jpg" || e.Class != "ripe" {
		t.Errorf("Unexpected entry %+v", e)
	}
	if e.Confidence != 0.88 {
		t.Errorf("Expected confidence rounded to 0.88, got %v", e.Confidence)
	}
	if e.Box != rec.Box {
		t.Errorf("Expected box %v, got %v", rec.Box, e.Box)
	}
	if e.Center == nil || *e.Center != (model.Point{X: 2, Y: 4}) {
		t.Errorf("Expected derived center (2,4), got %v", e.Center)
	}
}

func testImage(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 80, A: 255})
		}
	}
	return img
}

func TestCropStore_Formats(t *testing.T) {
	for _, format := range []string{"jpg", "png", "webp"} {
		t.Run(format, func(t *testing.T) {
			store, err := NewCropStore(t.TempDir(), format, 80)
			if err != nil {
				t.Fatalf("NewCropStore failed: %v", err)
			}
			path, size, err := store.Save("ripe_a", testImage(160, 120))
			if err != nil {
				t.Fatalf("Save failed: %v", err)
			}
			if filepath.Base(path) != "ripe_a."+format {
				t.Errorf("Unexpected crop name %s", path)
			}
			if size <= 0 {
				t.Errorf("Expected non-empty crop, got %d bytes", size)
			}
		})
	}
}

func TestCropStore_UnsupportedFormat(t *testing.T) {
	if _, err := NewCropStore(t.TempDir(), "gif", 80); err == nil {
		t.Error("Expected error for gif")
	}
}

func TestSink_AppendAndCropIndependent(t *testing.T) {
	dir := t.TempDir()
	cropDir := filepath.Join(dir, "images")

	sink, err := Open(Options{
		LogPath:    filepath.Join(dir, "coords", "detections.csv"),
		Policy:     config.PolicyRecreate,
		Center:     true,
		SaveCrops:  true,
		CropDir:    cropDir,
		CropFormat: "jpg",
	})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer sink.Close()

	rec := ripeRecord("ripe_a")
	path, err := sink.WriteCrop(rec, testImage(160, 120))
	if err != nil {
		t.Fatalf("WriteCrop failed: %v", err)
	}
	if path != filepath.Join(cropDir, "ripe_a.jpg") {
		t.Errorf("Unexpected crop path %s", path)
	}

	// a crop directory that disappeared must not stop the log row
	os.RemoveAll(cropDir)
	if _, err := sink.WriteCrop(ripeRecord("ripe_b"), testImage(160, 120)); !errors.Is(err, ErrWrite) {
		t.Errorf("Expected ErrWrite for missing crop dir, got %v", err)
	}
	if err := sink.Append(ripeRecord("ripe_b")); err != nil {
		t.Errorf("Append should succeed after crop failure: %v", err)
	}

	lines := readLines(t, sink.LogPath())
	if len(lines) != 2 || !strings.HasPrefix(lines[1], "ripe_b.jpg,ripe,0.90") {
		t.Errorf("Unexpected log contents %v", lines)
	}
}

func TestSink_NoCrops(t *testing.T) {
	dir := t.TempDir()
	sink, err := Open(Options{
		LogPath:    filepath.Join(dir, "detections.csv"),
		Policy:     config.PolicyAppend,
		CropFormat: "png",
	})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer sink.Close()

	if sink.SavesCrops() {
		t.Error("Expected crops disabled")
	}
	path, err := sink.WriteCrop(ripeRecord("ripe_a"), testImage(10, 10))
	if err != nil || path != "" {
		t.Errorf("Expected no-op crop, got %q, %v", path, err)
	}
	if got := sink.Filename("ripe_a"); got != "ripe_a.png" {
		t.Errorf("Expected png filename, got %s", got)
	}
}

func TestSink_DatabaseMirror(t *testing.T) {
	dir := t.TempDir()
	db, err := sqlite.New(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	detRepo := sqlite.NewDetectionRepository(db)
	cropRepo := sqlite.NewCropRepository(db)
	sink, err := Open(Options{
		LogPath:    filepath.Join(dir, "detections.csv"),
		Policy:     config.PolicyAppend,
		Center:     true,
		SaveCrops:  true,
		CropDir:    filepath.Join(dir, "images"),
		CropFormat: "jpg",
		Detections: detRepo,
		Crops:      cropRepo,
	})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer sink.Close()

	rec := ripeRecord("ripe_a")
	rec.CropPath, err = sink.WriteCrop(rec, testImage(160, 120))
	if err != nil {
		t.Fatalf("WriteCrop failed: %v", err)
	}
	if err := sink.Append(rec); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	got, err := detRepo.GetByIdentity("ripe_a")
	if err != nil || got == nil {
		t.Fatalf("Expected mirrored record, got %v, %v", got, err)
	}
	if got.CropPath != rec.CropPath {
		t.Errorf("Expected crop path %s, got %s", rec.CropPath, got.CropPath)
	}
	crop, err := cropRepo.GetByFilename("ripe_a.jpg")
	if err != nil || crop == nil {
		t.Fatalf("Expected mirrored crop, got %v, %v", crop, err)
	}

	// duplicate identity surfaces as a write error after the CSV row
	err = sink.Append(rec)
	if !errors.Is(err, ErrWrite) || !errors.Is(err, ErrMirror) {
		t.Errorf("Expected ErrWrite wrapping ErrMirror for duplicate mirror row, got %v", err)
	}
	if lines := readLines(t, sink.LogPath()); len(lines) != 3 {
		t.Errorf("Expected both rows in the log despite the mirror failure, got %v", lines)
	}
}
