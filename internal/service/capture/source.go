// Package capture opens frame sources: cameras, video files and still images.
package capture

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Techsolutions2024/strawberry/internal/model"
)

var (
	ErrSourceUnavailable = errors.New("source unavailable")
	ErrReadError         = errors.New("frame read failed")
	ErrEndOfStream       = errors.New("end of stream")
)

// Kind identifies what a descriptor points at.
type Kind string

const (
	KindCamera Kind = "camera"
	KindVideo  Kind = "video"
	KindImage  Kind = "image"
)

// Descriptor names a source. Index is used for cameras, Path for files.
type Descriptor struct {
	Kind  Kind   `json:"kind"`
	Index int    `json:"index,omitempty"`
	Path  string `json:"path,omitempty"`
}

func (d Descriptor) String() string {
	if d.Kind == KindCamera {
		return fmt.Sprintf("camera:%d", d.Index)
	}
	return fmt.Sprintf("%s:%s", d.Kind, d.Path)
}

var imageExts = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".bmp": true, ".webp": true, ".gif": true, ".tif": true, ".tiff": true,
}

// ParseDescriptor turns "0" into camera 0, an image path into an image source and
// anything else into a video file. "camera:1", "video:x" and "image:x" force the kind.
func ParseDescriptor(s string) (Descriptor, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Descriptor{}, fmt.Errorf("%w: empty source", ErrSourceUnavailable)
	}

	if kind, rest, ok := strings.Cut(s, ":"); ok {
		switch Kind(kind) {
		case KindCamera:
			idx, err := strconv.Atoi(rest)
			if err != nil || idx < 0 {
				return Descriptor{}, fmt.Errorf("%w: bad camera index %q", ErrSourceUnavailable, rest)
			}
			return Descriptor{Kind: KindCamera, Index: idx}, nil
		case KindVideo, KindImage:
			if rest == "" {
				return Descriptor{}, fmt.Errorf("%w: empty path", ErrSourceUnavailable)
			}
			return Descriptor{Kind: Kind(kind), Path: rest}, nil
		}
	}

	if idx, err := strconv.Atoi(s); err == nil && idx >= 0 {
		return Descriptor{Kind: KindCamera, Index: idx}, nil
	}
	if imageExts[strings.ToLower(filepath.Ext(s))] {
		return Descriptor{Kind: KindImage, Path: s}, nil
	}
	return Descriptor{Kind: KindVideo, Path: s}, nil
}

// Source yields frames until it is exhausted or closed.
type Source interface {
	// Next returns the next frame, ErrEndOfStream, or an error wrapping ErrReadError.
	Next(ctx context.Context) (model.Frame, error)
	// Close releases the device or file. Calling it more than once is safe.
	Close() error
}

// Finite is implemented by sources that know they are used up without another
// read, such as a still image.
type Finite interface {
	Exhausted() bool
}

// Exhausted reports whether src is Finite and has no frames left.
func Exhausted(src Source) bool {
	f, ok := src.(Finite)
	return ok && f.Exhausted()
}

// Opener opens sources from descriptors. Failures wrap ErrSourceUnavailable.
type Opener interface {
	Open(d Descriptor) (Source, error)
}
