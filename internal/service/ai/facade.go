// Package ai wraps the object-detection model behind a small facade that can be
// reloaded at any time and filters results by confidence.
package ai

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/Techsolutions2024/strawberry/internal/model"
)

var (
	ErrModelLoad     = errors.New("model load failed")
	ErrNoModelLoaded = errors.New("no model loaded")
)

// Descriptor points at model weights and an optional class names file.
type Descriptor struct {
	WeightsPath string `json:"weights"`
	ClassesPath string `json:"classes,omitempty"`
}

// Model is a loaded detection model. Infer returns detections in the model's own
// order with boxes in the coordinates of img.
type Model interface {
	Infer(ctx context.Context, img image.Image) ([]model.Detection, error)
	Classes() []string
	Close() error
}

// Loader builds a Model from a descriptor.
type Loader func(d Descriptor) (Model, error)

// Facade holds the current model. A failed Load keeps the previous model in place.
type Facade struct {
	mu     sync.RWMutex
	loader Loader
	model  Model
	desc   Descriptor
}

func NewFacade(loader Loader) *Facade {
	return &Facade{loader: loader}
}

// Load replaces the current model. On failure the previous model stays usable.
func (f *Facade) Load(d Descriptor) error {
	if d.WeightsPath == "" {
		return fmt.Errorf("%w: empty weights path", ErrModelLoad)
	}
	m, err := f.loader(d)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrModelLoad, d.WeightsPath, err)
	}

	f.mu.Lock()
	old := f.model
	f.model = m
	f.desc = d
	f.mu.Unlock()

	if old != nil {
		old.Close()
	}
	return nil
}

// Loaded reports whether a model is available.
func (f *Facade) Loaded() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.model != nil
}

// Descriptor returns the descriptor of the loaded model.
func (f *Facade) Descriptor() Descriptor {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.desc
}

// Classes returns the class names of the loaded model.
func (f *Facade) Classes() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.model == nil {
		return nil
	}
	return f.model.Classes()
}

// Detect runs the model on the frame. Detections below threshold are dropped, the
// rest keep the model's order and have their boxes clamped into the frame.
func (f *Facade) Detect(ctx context.Context, frame model.Frame, threshold float64) ([]model.Detection, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.model == nil {
		return nil, ErrNoModelLoaded
	}
	raw, err := f.model.Infer(ctx, frame.Image)
	if err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	size := frame.Size()
	out := make([]model.Detection, 0, len(raw))
	for _, d := range raw {
		if d.Confidence < threshold {
			continue
		}
		d.Box = d.Box.Clamp(size.X, size.Y)
		out = append(out, d)
	}
	return out, nil
}

// Close releases the loaded model.
func (f *Facade) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.model == nil {
		return nil
	}
	err := f.model.Close()
	f.model = nil
	f.desc = Descriptor{}
	return err
}
