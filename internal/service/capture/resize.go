package capture

import (
	"context"
	"image"

	"github.com/Techsolutions2024/strawberry/internal/model"
	"github.com/disintegration/imaging"
)

// resized scales every frame of the wrapped source to a fixed working size.
type resized struct {
	src  Source
	size image.Point
}

// Resize wraps src so every frame is w x h. Frame.Native keeps the source size.
// A non-positive size returns src unchanged.
func Resize(src Source, w, h int) Source {
	if w <= 0 || h <= 0 {
		return src
	}
	return &resized{src: src, size: image.Pt(w, h)}
}

func (r *resized) Next(ctx context.Context) (model.Frame, error) {
	f, err := r.src.Next(ctx)
	if err != nil {
		return f, err
	}
	if f.Native == (image.Point{}) {
		f.Native = f.Size()
	}
	if f.Size() != r.size {
		f.Image = imaging.Resize(f.Image, r.size.X, r.size.Y, imaging.Linear)
	}
	return f, nil
}

func (r *resized) Exhausted() bool {
	return Exhausted(r.src)
}

func (r *resized) Close() error {
	return r.src.Close()
}
