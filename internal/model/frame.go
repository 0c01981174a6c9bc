package model

import (
	"image"
	"time"
)

// Frame is one decoded image pulled from a source. The image is never modified after capture.
type Frame struct {
	Image      image.Image
	Seq        uint64
	CapturedAt time.Time
	// Native is the size of the frame as delivered by the device, before any working-size resize.
	Native image.Point
}

// Size returns the frame's pixel dimensions.
func (f Frame) Size() image.Point {
	if f.Image == nil {
		return image.Point{}
	}
	return f.Image.Bounds().Size()
}
