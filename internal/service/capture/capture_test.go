package capture

import (
	"context"
	"errors"
	"image"
	"image/color"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
)

func TestParseDescriptor(t *testing.T) {
	tests := []struct {
		input string
		want  Descriptor
	}{
		{"0", Descriptor{Kind: KindCamera, Index: 0}},
		{"2", Descriptor{Kind: KindCamera, Index: 2}},
		{"camera:1", Descriptor{Kind: KindCamera, Index: 1}},
		{"field.jpg", Descriptor{Kind: KindImage, Path: "field.jpg"}},
		{"dir/Field.PNG", Descriptor{Kind: KindImage, Path: "dir/Field.PNG"}},
		{"row3.mp4", Descriptor{Kind: KindVideo, Path: "row3.mp4"}},
		{"video:1", Descriptor{Kind: KindVideo, Path: "1"}},
		{"image:frame.raw", Descriptor{Kind: KindImage, Path: "frame.raw"}},
		{"rtsp://cam/stream", Descriptor{Kind: KindVideo, Path: "rtsp://cam/stream"}},
	}

	for _, tt := range tests {
		got, err := ParseDescriptor(tt.input)
		if err != nil {
			t.Errorf("ParseDescriptor(%q) failed: %v", tt.input, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseDescriptor(%q) = %+v, expected %+v", tt.input, got, tt.want)
		}
	}
}

func TestParseDescriptor_Invalid(t *testing.T) {
	for _, input := range []string{"", "  ", "camera:x", "camera:-1", "video:"} {
		if _, err := ParseDescriptor(input); !errors.Is(err, ErrSourceUnavailable) {
			t.Errorf("ParseDescriptor(%q) expected ErrSourceUnavailable, got %v", input, err)
		}
	}
}

func writeTestImage(t *testing.T, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 220, G: 30, B: 40, A: 255})
		}
	}
	path := filepath.Join(t.TempDir(), "strawberry.png")
	if err := imaging.Save(img, path); err != nil {
		t.Fatalf("Failed to save test image: %v", err)
	}
	return path
}

func TestOpenImage_SingleFrameThenEOF(t *testing.T) {
	src, err := OpenImage(writeTestImage(t, 320, 240))
	if err != nil {
		t.Fatalf("OpenImage failed: %v", err)
	}
	defer src.Close()

	ctx := context.Background()
	frame, err := src.Next(ctx)
	if err != nil {
		t.Fatalf("First Next failed: %v", err)
	}
	if frame.Size() != image.Pt(320, 240) {
		t.Errorf("Unexpected frame size %v", frame.Size())
	}
	if _, err := src.Next(ctx); !errors.Is(err, ErrEndOfStream) {
		t.Errorf("Expected ErrEndOfStream, got %v", err)
	}
}

func TestOpenImage_Missing(t *testing.T) {
	_, err := OpenImage(filepath.Join(t.TempDir(), "missing.jpg"))
	if !errors.Is(err, ErrSourceUnavailable) {
		t.Errorf("Expected ErrSourceUnavailable, got %v", err)
	}
}

func TestStill_CloseIdempotent(t *testing.T) {
	src := NewStill(image.NewRGBA(image.Rect(0, 0, 4, 4)))
	if err := src.Close(); err != nil {
		t.Fatalf("First Close failed: %v", err)
	}
	if err := src.Close(); err != nil {
		t.Fatalf("Second Close failed: %v", err)
	}
	if _, err := src.Next(context.Background()); !errors.Is(err, ErrEndOfStream) {
		t.Errorf("Expected ErrEndOfStream after close, got %v", err)
	}
}

func TestResize_KeepsNativeSize(t *testing.T) {
	src := Resize(NewStill(image.NewRGBA(image.Rect(0, 0, 1280, 720))), 640, 640)

	frame, err := src.Next(context.Background())
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if frame.Size() != image.Pt(640, 640) {
		t.Errorf("Expected 640x640, got %v", frame.Size())
	}
	if frame.Native != image.Pt(1280, 720) {
		t.Errorf("Expected native 1280x720, got %v", frame.Native)
	}
}

func TestDispatcher(t *testing.T) {
	d := NewDispatcher(640)

	src, err := d.Open(Descriptor{Kind: KindImage, Path: writeTestImage(t, 100, 50)})
	if err != nil {
		t.Fatalf("Open image failed: %v", err)
	}
	frame, err := src.Next(context.Background())
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if frame.Size() != image.Pt(640, 640) {
		t.Errorf("Expected working size frame, got %v", frame.Size())
	}

	if _, err := d.Open(Descriptor{Kind: KindCamera}); !errors.Is(err, ErrSourceUnavailable) {
		t.Errorf("Expected ErrSourceUnavailable without camera opener, got %v", err)
	}

	called := false
	d.Handle(KindVideo, func(desc Descriptor) (Source, error) {
		called = true
		return NewStill(image.NewRGBA(image.Rect(0, 0, 8, 8))), nil
	})
	if _, err := d.Open(Descriptor{Kind: KindVideo, Path: "x.mp4"}); err != nil || !called {
		t.Errorf("Expected registered video opener to be used, err=%v", err)
	}
}

func TestExhausted_StillAndResized(t *testing.T) {
	still := NewStill(image.NewRGBA(image.Rect(0, 0, 8, 8)))
	src := Resize(still, 4, 4)
	if Exhausted(src) {
		t.Fatal("Expected fresh still image not to be exhausted")
	}
	if _, err := src.Next(context.Background()); err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if !Exhausted(src) || !Exhausted(still) {
		t.Error("Expected still image exhausted after its frame")
	}
}
