package render

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"time"

	"github.com/Techsolutions2024/strawberry/internal/model"
	"github.com/Techsolutions2024/strawberry/internal/service/record"
	"github.com/disintegration/imaging"
)

// Thumbnail is a crop shown next to the frame.
type Thumbnail struct {
	ID    string
	Label string
	Image image.Image
}

// Payload is everything a viewer needs to show one tick. When Annotated is false
// Frame is the raw frame and Records is empty.
type Payload struct {
	Seq        uint64
	Source     string
	At         time.Time
	Frame      image.Image
	Native     image.Point // source size before the working-size resize
	Annotated  bool
	Records    []model.DetectionRecord
	Thumbnails []Thumbnail
}

// EncodeJPEG encodes an image for transport.
func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}
	return buf.Bytes(), nil
}

type thumbnailMessage struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Image string `json:"image"`
}

type payloadMessage struct {
	Seq       uint64                  `json:"seq"`
	Source    string                  `json:"source"`
	At        time.Time               `json:"at"`
	Annotated bool                    `json:"annotated"`
	Image     string                  `json:"image"`
	Records   []model.DetectionRecord `json:"records"`

	// NativeBoxes are the record boxes in source coordinates, present when the frame was resized.
	NativeBoxes []model.Box        `json:"nativeBoxes,omitempty"`
	Thumbnails  []thumbnailMessage `json:"thumbnails"`
}

// MarshalMessage builds the JSON viewers receive, with images as base64 JPEG.
func MarshalMessage(p Payload, quality int) ([]byte, error) {
	msg := payloadMessage{
		Seq:        p.Seq,
		Source:     p.Source,
		At:         p.At,
		Annotated:  p.Annotated,
		Records:    p.Records,
		Thumbnails: make([]thumbnailMessage, 0, len(p.Thumbnails)),
	}
	if msg.Records == nil {
		msg.Records = []model.DetectionRecord{}
	}
	if p.Frame != nil {
		working := p.Frame.Bounds().Size()
		if p.Native != (image.Point{}) && p.Native != working {
			for _, rec := range p.Records {
				msg.NativeBoxes = append(msg.NativeBoxes, record.ToNative(rec.Box, working, p.Native))
			}
		}

		data, err := EncodeJPEG(p.Frame, quality)
		if err != nil {
			return nil, err
		}
		msg.Image = base64.StdEncoding.EncodeToString(data)
	}
	for _, th := range p.Thumbnails {
		data, err := EncodeJPEG(th.Image, quality)
		if err != nil {
			return nil, err
		}
		msg.Thumbnails = append(msg.Thumbnails, thumbnailMessage{
			ID:    th.ID,
			Label: th.Label,
			Image: base64.StdEncoding.EncodeToString(data),
		})
	}
	return json.Marshal(msg)
}
