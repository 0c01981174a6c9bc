// Package record turns detections into persisted records: identity, center point and crop.
package record

import (
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/Techsolutions2024/strawberry/internal/model"
	"github.com/disintegration/imaging"
)

// ErrCropSkipped is returned for boxes that cannot yield a crop. It never aborts a tick.
var ErrCropSkipped = errors.New("crop skipped")

// DefaultThumbSize is the size crops are scaled to.
var DefaultThumbSize = image.Pt(160, 120)

const stampLayout = "20060102_150405"

// Builder derives records from detections. One Builder lives as long as the controller
// so identities stay unique across sessions that share a log.
type Builder struct {
	mu     sync.Mutex
	now    func() time.Time
	last   time.Time
	stamp  string
	seen   map[string]int // class -> records issued under the current stamp
	center bool
}

// NewBuilder returns a builder. When center is false records carry no center point.
func NewBuilder(center bool) *Builder {
	return NewBuilderWithClock(center, time.Now)
}

// NewBuilderWithClock is NewBuilder with an injected clock.
func NewBuilderWithClock(center bool, now func() time.Time) *Builder {
	return &Builder{
		now:    now,
		seen:   make(map[string]int),
		center: center,
	}
}

// Build creates the record for one detection.
func (b *Builder) Build(det model.Detection) model.DetectionRecord {
	at, id := b.nextIdentity(det.Class)

	rec := model.DetectionRecord{
		ID:         id,
		Class:      det.Class,
		Confidence: model.RoundConfidence(det.Confidence),
		Box:        det.Box,
		CapturedAt: at,
	}
	if b.center {
		c := Center(det.Box)
		rec.Center = &c
	}
	return rec
}

// nextIdentity returns "{class}_{YYYYMMDD_HHMMSS_micro}", suffixed with "_n" when the
// same class already used that stamp. Stamps are UTC so a daylight saving change cannot
// repeat one, and the clock is clamped so they never go backwards.
func (b *Builder) nextIdentity(class string) (time.Time, string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	if now.Before(b.last) {
		now = b.last
	}
	b.last = now

	utc := now.UTC()
	stamp := fmt.Sprintf("%s_%06d", utc.Format(stampLayout), utc.Nanosecond()/int(time.Microsecond))
	if stamp != b.stamp {
		b.stamp = stamp
		clear(b.seen)
	}

	n := b.seen[class]
	b.seen[class] = n + 1

	id := class + "_" + stamp
	if n > 0 {
		id = fmt.Sprintf("%s_%d", id, n)
	}
	return now, id
}

// Center is the integer midpoint of the box.
func Center(b model.Box) model.Point {
	return model.Point{X: (b.X1 + b.X2) / 2, Y: (b.Y1 + b.Y2) / 2}
}

// Crop cuts the box out of img and scales it to size. Boxes with no area or lying
// outside the image return ErrCropSkipped.
func Crop(img image.Image, box model.Box, size image.Point) (image.Image, error) {
	if img == nil {
		return nil, fmt.Errorf("%w: no image", ErrCropSkipped)
	}
	if box.Empty() {
		return nil, fmt.Errorf("%w: degenerate box %v", ErrCropSkipped, box)
	}
	bounds := img.Bounds()
	r := box.Rect().Add(bounds.Min)
	if !r.In(bounds) {
		return nil, fmt.Errorf("%w: box %v outside %v", ErrCropSkipped, box, bounds.Size())
	}
	if size.X <= 0 || size.Y <= 0 {
		size = DefaultThumbSize
	}
	cropped := imaging.Crop(img, r)
	return imaging.Resize(cropped, size.X, size.Y, imaging.Linear), nil
}

// ToNative maps a working-resolution box back to the source's native resolution.
func ToNative(b model.Box, working, native image.Point) model.Box {
	if working.X <= 0 || working.Y <= 0 || native == working || native.X <= 0 || native.Y <= 0 {
		return b
	}
	sx := float64(native.X) / float64(working.X)
	sy := float64(native.Y) / float64(working.Y)
	return model.Box{
		X1: int(float64(b.X1) * sx),
		Y1: int(float64(b.Y1) * sy),
		X2: int(float64(b.X2) * sx),
		Y2: int(float64(b.Y2) * sy),
	}
}
