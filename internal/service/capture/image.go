package capture

import (
	"context"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/Techsolutions2024/strawberry/internal/model"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// imageSource yields a single still image, then end-of-stream.
type imageSource struct {
	mu    sync.Mutex
	frame model.Frame
	done  bool
}

// OpenImage decodes the file at path. EXIF orientation is applied.
func OpenImage(path string) (Source, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSourceUnavailable, path, err)
	}
	return NewStill(img), nil
}

// NewStill wraps an already decoded image as a one-frame source.
func NewStill(img image.Image) Source {
	return &imageSource{frame: model.Frame{
		Image:      img,
		Seq:        1,
		CapturedAt: time.Now(),
		Native:     img.Bounds().Size(),
	}}
}

func (s *imageSource) Next(ctx context.Context) (model.Frame, error) {
	if err := ctx.Err(); err != nil {
		return model.Frame{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return model.Frame{}, ErrEndOfStream
	}
	s.done = true
	return s.frame, nil
}

// Exhausted is true once the image has been handed out.
func (s *imageSource) Exhausted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

func (s *imageSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.done = true
	s.frame = model.Frame{}
	return nil
}
