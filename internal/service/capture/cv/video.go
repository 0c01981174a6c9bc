// Package cv reads frames from cameras and video files with OpenCV.
package cv

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Techsolutions2024/strawberry/internal/model"
	"github.com/Techsolutions2024/strawberry/internal/service/capture"
	"gocv.io/x/gocv"
)

// videoSource wraps a gocv.VideoCapture. Cameras report read failures as
// ErrReadError, files report them as end of stream.
type videoSource struct {
	mu      sync.Mutex
	capture *gocv.VideoCapture
	mat     gocv.Mat
	live    bool
	seq     uint64
	closed  bool
}

// Open opens a camera or video file descriptor.
func Open(d capture.Descriptor) (capture.Source, error) {
	var (
		vc  *gocv.VideoCapture
		err error
	)
	switch d.Kind {
	case capture.KindCamera:
		vc, err = gocv.VideoCaptureDevice(d.Index)
	case capture.KindVideo:
		vc, err = gocv.VideoCaptureFile(d.Path)
	default:
		return nil, fmt.Errorf("%w: %s is not a video source", capture.ErrSourceUnavailable, d)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", capture.ErrSourceUnavailable, d, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("%w: %s could not be opened", capture.ErrSourceUnavailable, d)
	}

	return &videoSource{
		capture: vc,
		mat:     gocv.NewMat(),
		live:    d.Kind == capture.KindCamera,
	}, nil
}

// Register installs the camera and video openers on a dispatcher.
func Register(d *capture.Dispatcher) {
	d.Handle(capture.KindCamera, Open)
	d.Handle(capture.KindVideo, Open)
}

func (s *videoSource) Next(ctx context.Context) (model.Frame, error) {
	if err := ctx.Err(); err != nil {
		return model.Frame{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return model.Frame{}, capture.ErrEndOfStream
	}
	if ok := s.capture.Read(&s.mat); !ok || s.mat.Empty() {
		if s.live {
			return model.Frame{}, fmt.Errorf("%w: camera returned no frame", capture.ErrReadError)
		}
		return model.Frame{}, capture.ErrEndOfStream
	}

	// ToImage converts OpenCV's BGR layout into an RGBA image
	img, err := s.mat.ToImage()
	if err != nil {
		return model.Frame{}, fmt.Errorf("%w: %v", capture.ErrReadError, err)
	}

	s.seq++
	return model.Frame{
		Image:      img,
		Seq:        s.seq,
		CapturedAt: time.Now(),
		Native:     img.Bounds().Size(),
	}, nil
}

func (s *videoSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.mat.Close()
	return s.capture.Close()
}
