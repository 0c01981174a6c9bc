// Package render draws detection overlays and builds the payload handed to viewers.
package render

import (
	"fmt"
	"image"
	"image/color"

	"github.com/Techsolutions2024/strawberry/internal/model"
	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
)

var labelFont *truetype.Font

func init() {
	var err error
	labelFont, err = truetype.Parse(goregular.TTF)
	if err != nil {
		panic(err)
	}
}

var (
	ColorRipe    = color.RGBA{R: 230, G: 40, B: 40, A: 255}
	ColorUnripe  = color.RGBA{R: 40, G: 200, B: 60, A: 255}
	ColorOther   = color.RGBA{R: 250, G: 200, B: 20, A: 255}
	ColorCenter  = color.RGBA{R: 255, G: 0, B: 0, A: 255}
	colorLabelBg = color.RGBA{A: 160}
)

// ClassColor picks the box color for a class.
func ClassColor(class string) color.Color {
	switch class {
	case "ripe":
		return ColorRipe
	case "unripe":
		return ColorUnripe
	default:
		return ColorOther
	}
}

// Label is the text drawn above a box, e.g. "ripe (0.90)".
func Label(rec model.DetectionRecord) string {
	return fmt.Sprintf("%s (%.2f)", rec.Class, rec.Confidence)
}

// Overlay draws boxes, labels and center dots on a copy of a frame.
type Overlay struct {
	dc   *gg.Context
	face font.Face
}

// NewOverlay copies base; the original frame is left untouched.
func NewOverlay(base image.Image) *Overlay {
	dc := gg.NewContextForImage(base)
	return &Overlay{
		dc:   dc,
		face: truetype.NewFace(labelFont, &truetype.Options{Size: 14}),
	}
}

// Add draws one record.
func (o *Overlay) Add(rec model.DetectionRecord) {
	c := ClassColor(rec.Class)
	b := rec.Box

	o.dc.SetColor(c)
	o.dc.SetLineWidth(2)
	o.dc.DrawRectangle(float64(b.X1), float64(b.Y1), float64(b.X2-b.X1), float64(b.Y2-b.Y1))
	o.dc.Stroke()

	o.dc.SetFontFace(o.face)
	label := Label(rec)
	w, h := o.dc.MeasureString(label)
	x, y := float64(b.X1), float64(b.Y1)-4
	if y-h < 0 {
		y = float64(b.Y1) + h + 4
	}
	o.dc.SetColor(colorLabelBg)
	o.dc.DrawRectangle(x, y-h-2, w+4, h+4)
	o.dc.Fill()
	o.dc.SetColor(c)
	o.dc.DrawString(label, x+2, y)

	if rec.Center != nil {
		o.dc.SetColor(ColorCenter)
		o.dc.DrawCircle(float64(rec.Center.X), float64(rec.Center.Y), 4)
		o.dc.Fill()
	}
}

// Image returns the annotated frame.
func (o *Overlay) Image() image.Image {
	return o.dc.Image()
}
