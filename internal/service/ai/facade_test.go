package ai

import (
	"context"
	"errors"
	"image"
	"testing"

	"github.com/Techsolutions2024/strawberry/internal/model"
)

type fakeModel struct {
	name       string
	detections []model.Detection
	closed     bool
}

func (m *fakeModel) Infer(ctx context.Context, img image.Image) ([]model.Detection, error) {
	return m.detections, nil
}

func (m *fakeModel) Classes() []string { return []string{m.name} }

func (m *fakeModel) Close() error {
	m.closed = true
	return nil
}

func frame(w, h int) model.Frame {
	return model.Frame{Image: image.NewRGBA(image.Rect(0, 0, w, h))}
}

func TestDetect_NoModel(t *testing.T) {
	f := NewFacade(func(d Descriptor) (Model, error) { return nil, errors.New("unused") })

	_, err := f.Detect(context.Background(), frame(10, 10), 0.25)
	if !errors.Is(err, ErrNoModelLoaded) {
		t.Errorf("Expected ErrNoModelLoaded, got %v", err)
	}
	if f.Loaded() {
		t.Error("Expected no model loaded")
	}
}

func TestDetect_ThresholdOrderAndClamp(t *testing.T) {
	m := &fakeModel{detections: []model.Detection{
		{Class: "ripe", Confidence: 0.9, Box: model.Box{X1: 10, Y1: 10, X2: 50, Y2: 50}},
		{Class: "unripe", Confidence: 0.1, Box: model.Box{X1: 0, Y1: 0, X2: 5, Y2: 5}},
		{Class: "unripe", Confidence: 0.25, Box: model.Box{X1: -20, Y1: 600, X2: 700, Y2: 900}},
		{Class: "ripe", Confidence: 0.6, Box: model.Box{X1: 100, Y1: 100, X2: 120, Y2: 130}},
	}}
	f := NewFacade(func(d Descriptor) (Model, error) { return m, nil })
	if err := f.Load(Descriptor{WeightsPath: "best.onnx"}); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	dets, err := f.Detect(context.Background(), frame(640, 640), 0.25)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if len(dets) != 3 {
		t.Fatalf("Expected 3 detections, got %d", len(dets))
	}
	for _, d := range dets {
		if d.Confidence < 0.25 {
			t.Errorf("Detection below threshold returned: %+v", d)
		}
	}
	if dets[0].Confidence != 0.9 || dets[1].Confidence != 0.25 || dets[2].Confidence != 0.6 {
		t.Errorf("Model order not preserved: %+v", dets)
	}
	want := model.Box{X1: 0, Y1: 600, X2: 639, Y2: 639}
	if dets[1].Box != want {
		t.Errorf("Expected clamped box %v, got %v", want, dets[1].Box)
	}
}

func TestLoad_FailureKeepsPrevious(t *testing.T) {
	first := &fakeModel{name: "first"}
	calls := 0
	f := NewFacade(func(d Descriptor) (Model, error) {
		calls++
		if calls == 1 {
			return first, nil
		}
		return nil, errors.New("corrupt weights")
	})

	if err := f.Load(Descriptor{WeightsPath: "a.onnx"}); err != nil {
		t.Fatalf("First load failed: %v", err)
	}
	err := f.Load(Descriptor{WeightsPath: "b.onnx"})
	if !errors.Is(err, ErrModelLoad) {
		t.Fatalf("Expected ErrModelLoad, got %v", err)
	}

	if !f.Loaded() || f.Descriptor().WeightsPath != "a.onnx" {
		t.Errorf("Expected previous model to stay loaded, got %+v", f.Descriptor())
	}
	if first.closed {
		t.Error("Previous model should not be closed on failed load")
	}
	if classes := f.Classes(); len(classes) != 1 || classes[0] != "first" {
		t.Errorf("Unexpected classes %v", classes)
	}
}

func TestLoad_ReplacesAndClosesOld(t *testing.T) {
	models := []*fakeModel{{name: "a"}, {name: "b"}}
	i := 0
	f := NewFacade(func(d Descriptor) (Model, error) {
		m := models[i]
		i++
		return m, nil
	})

	f.Load(Descriptor{WeightsPath: "a.onnx"})
	f.Load(Descriptor{WeightsPath: "b.onnx"})

	if !models[0].closed {
		t.Error("Expected replaced model to be closed")
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if !models[1].closed || f.Loaded() {
		t.Error("Expected Close to release the current model")
	}
}

func TestLoad_EmptyPath(t *testing.T) {
	f := NewFacade(func(d Descriptor) (Model, error) { return &fakeModel{}, nil })
	if err := f.Load(Descriptor{}); !errors.Is(err, ErrModelLoad) {
		t.Errorf("Expected ErrModelLoad, got %v", err)
	}
}
