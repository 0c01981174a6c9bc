package model

import (
	"image"
	"math"
	"time"
)

// Box is an axis-aligned bounding box in working-resolution pixels.
type Box struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

// Point is an integer pixel position.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Rect converts the box to an image.Rectangle.
func (b Box) Rect() image.Rectangle {
	return image.Rect(b.X1, b.Y1, b.X2, b.Y2)
}

// Empty reports whether the box has no area.
func (b Box) Empty() bool {
	return b.X2 <= b.X1 || b.Y2 <= b.Y1
}

// Clamp limits the box to [0,w)x[0,h) and orders its corners.
func (b Box) Clamp(w, h int) Box {
	if b.X1 > b.X2 {
		b.X1, b.X2 = b.X2, b.X1
	}
	if b.Y1 > b.Y2 {
		b.Y1, b.Y2 = b.Y2, b.Y1
	}
	b.X1 = clamp(b.X1, 0, w-1)
	b.X2 = clamp(b.X2, 0, w-1)
	b.Y1 = clamp(b.Y1, 0, h-1)
	b.Y2 = clamp(b.Y2, 0, h-1)
	return b
}

func clamp(v, lo, hi int) int {
	if hi < lo {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Detection is a single model output after threshold filtering.
type Detection struct {
	ClassID    int     `json:"classId"`
	Class      string  `json:"class"`
	Confidence float64 `json:"confidence"`
	Box        Box     `json:"box"`
}

// DetectionRecord is what gets persisted for one detection. Records are immutable once written.
type DetectionRecord struct {
	ID         string    `json:"id"`
	Class      string    `json:"class"`
	Confidence float64   `json:"confidence"`
	Box        Box       `json:"box"`
	Center     *Point    `json:"center,omitempty"`
	CropPath   string    `json:"cropPath,omitempty"`
	CapturedAt time.Time `json:"capturedAt"`
}

// RoundConfidence rounds to two decimals, the precision the log keeps.
func RoundConfidence(c float64) float64 {
	return math.Round(c*100) / 100
}
