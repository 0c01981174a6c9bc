// Package pipeline runs the frame cycle: pull a frame, detect, build records,
// persist them and hand the rendered result to a presenter.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Techsolutions2024/strawberry/internal/logger"
	"github.com/Techsolutions2024/strawberry/internal/metrics"
	"github.com/Techsolutions2024/strawberry/internal/model"
	"github.com/Techsolutions2024/strawberry/internal/service/ai"
	"github.com/Techsolutions2024/strawberry/internal/service/capture"
	"github.com/Techsolutions2024/strawberry/internal/service/record"
	"github.com/Techsolutions2024/strawberry/internal/service/render"
	"github.com/Techsolutions2024/strawberry/internal/service/storage"
	"go.uber.org/multierr"
)

var (
	ErrNotRunning       = errors.New("no source running")
	ErrInvalidThreshold = errors.New("threshold must be within [0,1]")
)

// Detector is the part of ai.Facade the controller needs.
type Detector interface {
	Load(d ai.Descriptor) error
	Detect(ctx context.Context, frame model.Frame, threshold float64) ([]model.Detection, error)
	Loaded() bool
}

// Sink is the part of storage.Sink the controller needs.
type Sink interface {
	Append(rec model.DetectionRecord) error
	WriteCrop(rec model.DetectionRecord, img image.Image) (string, error)
}

type Options struct {
	Threshold float64
	ThumbSize image.Point
	// TickInterval > 0 makes OpenSource start a Ticker; 0 leaves ticking to the caller.
	TickInterval time.Duration
}

// Session is one open source. At most one exists at a time.
type Session struct {
	Descriptor capture.Descriptor
	StartedAt  time.Time

	source  capture.Source
	frames  uint64
	records uint64
}

// Status is a snapshot for the control surface.
type Status struct {
	State     State
	Source    string
	StartedAt time.Time
	Frames    uint64
	Records   uint64
	Threshold float64
	LastError string
}

// TickResult summarizes one tick. Err combines every non-fatal error of the tick.
type TickResult struct {
	Seq        uint64
	Detections int
	Written    int  // log rows written, including rows whose database mirror failed
	Skipped    bool // frame shown raw because no model is loaded
	Exhausted  bool // the source ended or failed and the session was closed
	Err        error
}

type Controller struct {
	ctrlMu sync.Mutex // serializes OpenSource and Stop
	tickMu sync.Mutex // one tick at a time
	mu     sync.Mutex // guards session and source reads

	state   atomic.Int32
	session *Session
	lastErr string

	opener    capture.Opener
	detector  Detector
	sink      Sink
	builder   *record.Builder
	presenter Presenter
	ticker    *Ticker
	logger    *logger.Logger
	metrics   *metrics.Metrics

	threshold atomic.Uint64 // float64 bits
	thumbSize image.Point
}

// NewController wires the cycle. presenter, log and m may be nil.
func NewController(opener capture.Opener, detector Detector, sink Sink, builder *record.Builder,
	presenter Presenter, opts Options, log *logger.Logger, m *metrics.Metrics) *Controller {
	if presenter == nil {
		presenter = discardPresenter{}
	}
	if log == nil {
		log = logger.Discard()
	}
	if m == nil {
		m = metrics.New()
	}
	if opts.ThumbSize.X <= 0 || opts.ThumbSize.Y <= 0 {
		opts.ThumbSize = record.DefaultThumbSize
	}

	c := &Controller{
		opener:    opener,
		detector:  detector,
		sink:      sink,
		builder:   builder,
		presenter: presenter,
		logger:    log,
		metrics:   m,
		thumbSize: opts.ThumbSize,
	}
	if opts.TickInterval > 0 {
		c.ticker = NewTicker(opts.TickInterval)
	}
	c.setThreshold(opts.Threshold)
	return c
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	return State(c.state.Load())
}

// Threshold returns the confidence threshold used by Detect.
func (c *Controller) Threshold() float64 {
	return math.Float64frombits(c.threshold.Load())
}

// SetThreshold changes the confidence threshold for subsequent ticks.
func (c *Controller) SetThreshold(t float64) error {
	if t < 0 || t > 1 {
		return fmt.Errorf("%w: %v", ErrInvalidThreshold, t)
	}
	c.setThreshold(t)
	return nil
}

func (c *Controller) setThreshold(t float64) {
	c.threshold.Store(math.Float64bits(t))
}

// LoadModel swaps the detector model. Allowed in any state.
func (c *Controller) LoadModel(d ai.Descriptor) error {
	if err := c.detector.Load(d); err != nil {
		c.logger.Error("Model load failed: %v", err)
		c.setLastError(err)
		return err
	}
	c.logger.Info("Model loaded: %s", d.WeightsPath)
	return nil
}

// OpenSource stops any running session, then opens d. On failure the controller stays Idle.
func (c *Controller) OpenSource(d capture.Descriptor) error {
	c.ctrlMu.Lock()
	defer c.ctrlMu.Unlock()

	c.stop()

	src, err := c.opener.Open(d)
	if err != nil {
		if !errors.Is(err, capture.ErrSourceUnavailable) {
			err = fmt.Errorf("%w: %v", capture.ErrSourceUnavailable, err)
		}
		c.logger.Error("Failed to open %s: %v", d, err)
		c.setLastError(err)
		return err
	}

	c.mu.Lock()
	c.session = &Session{Descriptor: d, StartedAt: time.Now(), source: src}
	c.lastErr = ""
	c.state.Store(int32(StateRunning))
	c.mu.Unlock()

	c.metrics.SourcesOpened.Add(1)
	c.metrics.SetRunning(true)
	c.logger.Info("Source opened: %s", d)

	if c.ticker != nil {
		c.ticker.Start(c.tickLoop)
	}
	return nil
}

// Stop ends the running session: the timer is halted and the source released
// before it returns. Stopping an idle controller is a no-op.
func (c *Controller) Stop() {
	c.ctrlMu.Lock()
	defer c.ctrlMu.Unlock()
	c.stop()
}

func (c *Controller) stop() {
	if c.ticker != nil {
		c.ticker.Stop()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	sess := c.session
	if sess == nil {
		c.state.Store(int32(StateIdle))
		return
	}
	c.state.Store(int32(StateStopping))
	if err := sess.source.Close(); err != nil {
		c.logger.Warning("Closing %s: %v", sess.Descriptor, err)
	}
	c.session = nil
	c.state.Store(int32(StateIdle))

	c.metrics.SourcesStopped.Add(1)
	c.metrics.SetRunning(false)
	c.logger.Info("Source stopped: %s (%d frames, %d records)", sess.Descriptor, sess.frames, sess.records)
}

func (c *Controller) tickLoop(ctx context.Context) {
	if _, err := c.Tick(ctx); errors.Is(err, ErrNotRunning) {
		c.ticker.Halt()
	}
}

// Tick runs one frame cycle. It returns ErrNotRunning when no session is open.
// Errors that only affect this tick are collected in TickResult.Err.
func (c *Controller) Tick(ctx context.Context) (TickResult, error) {
	c.tickMu.Lock()
	defer c.tickMu.Unlock()

	if err := ctx.Err(); err != nil {
		return TickResult{}, err
	}

	start := time.Now()
	defer func() { c.metrics.ObserveTick(time.Since(start)) }()

	c.mu.Lock()
	sess := c.session
	if sess == nil || c.State() != StateRunning {
		c.mu.Unlock()
		return TickResult{}, ErrNotRunning
	}
	frame, err := sess.source.Next(ctx)
	if err == nil {
		sess.frames++
	}
	c.mu.Unlock()

	if err != nil {
		if ctx.Err() != nil {
			return TickResult{}, ctx.Err()
		}
		c.exhaust(sess, err)
		return TickResult{Exhausted: true}, nil
	}
	c.metrics.FramesRead.Add(1)

	res := c.process(ctx, sess, frame)

	// a still image ends with the tick that showed it
	if capture.Exhausted(sess.source) {
		res.Exhausted = c.exhaust(sess, capture.ErrEndOfStream)
	}
	return res, nil
}

// process detects, records and presents one frame.
func (c *Controller) process(ctx context.Context, sess *Session, frame model.Frame) TickResult {
	res := TickResult{Seq: frame.Seq}
	payload := render.Payload{
		Seq:    frame.Seq,
		Source: sess.Descriptor.String(),
		At:     frame.CapturedAt,
		Frame:  frame.Image,
		Native: frame.Native,
	}

	detections, err := c.detector.Detect(ctx, frame, c.Threshold())
	switch {
	case errors.Is(err, ai.ErrNoModelLoaded):
		res.Skipped = true
		c.metrics.FramesSkipped.Add(1)
		c.presenter.Present(payload)
		return res
	case err != nil:
		c.metrics.DetectErrors.Add(1)
		c.logger.Error("Detection failed on frame %d: %v", frame.Seq, err)
		c.setLastError(err)
		res.Err = err
		c.presenter.Present(payload)
		return res
	}

	res.Detections = len(detections)
	c.metrics.Detections.Add(uint64(len(detections)))

	overlay := render.NewOverlay(frame.Image)
	for _, det := range detections {
		rec := c.builder.Build(det)

		crop, err := record.Crop(frame.Image, det.Box, c.thumbSize)
		switch {
		case errors.Is(err, record.ErrCropSkipped):
			c.metrics.CropsSkipped.Add(1)
		case err != nil:
			res.Err = multierr.Append(res.Err, err)
		default:
			path, err := c.sink.WriteCrop(rec, crop)
			if err != nil {
				c.reportWrite(&res, rec, err)
			}
			// a crop whose mirror row failed is still on disk
			if path != "" {
				rec.CropPath = path
				c.metrics.CropsSaved.Add(1)
			}
			payload.Thumbnails = append(payload.Thumbnails, render.Thumbnail{ID: rec.ID, Label: render.Label(rec), Image: crop})
		}

		err = c.sink.Append(rec)
		if err != nil {
			c.reportWrite(&res, rec, err)
		}
		if err == nil || errors.Is(err, storage.ErrMirror) {
			res.Written++
			c.metrics.RecordsSaved.Add(1)
		}

		overlay.Add(rec)
		payload.Records = append(payload.Records, rec)
	}

	c.mu.Lock()
	sess.records += uint64(res.Written)
	c.mu.Unlock()

	payload.Frame = overlay.Image()
	payload.Annotated = true
	c.presenter.Present(payload)
	return res
}

func (c *Controller) reportWrite(res *TickResult, rec model.DetectionRecord, err error) {
	c.metrics.WriteErrors.Add(1)
	c.logger.Error("Write failed for %s: %v", rec.ID, err)
	c.setLastError(err)
	res.Err = multierr.Append(res.Err, err)
}

// exhaust closes a session whose source ended or failed and returns to Idle.
// It reports false when sess is no longer the current session.
func (c *Controller) exhaust(sess *Session, cause error) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session != sess {
		return false
	}
	// Halt only cancels the loop, so it is safe under mu and from inside a tick
	if c.ticker != nil {
		c.ticker.Halt()
	}
	if errors.Is(cause, capture.ErrReadError) {
		c.metrics.ReadErrors.Add(1)
		c.logger.Error("Source %s failed: %v", sess.Descriptor, cause)
		c.lastErr = cause.Error()
	} else {
		c.logger.Info("Source %s exhausted", sess.Descriptor)
	}
	c.state.Store(int32(StateStopping))
	if err := sess.source.Close(); err != nil {
		c.logger.Warning("Closing %s: %v", sess.Descriptor, err)
	}
	c.session = nil
	c.state.Store(int32(StateIdle))
	c.metrics.SourcesStopped.Add(1)
	c.metrics.SetRunning(false)
	return true
}

// Status returns a snapshot of the controller.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := Status{
		State:     c.State(),
		Threshold: c.Threshold(),
		LastError: c.lastErr,
	}
	if c.session != nil {
		st.Source = c.session.Descriptor.String()
		st.StartedAt = c.session.StartedAt
		st.Frames = c.session.frames
		st.Records = c.session.records
	}
	return st
}

// ModelLoaded reports whether the detector has a model.
func (c *Controller) ModelLoaded() bool {
	return c.detector.Loaded()
}

func (c *Controller) setLastError(err error) {
	c.mu.Lock()
	c.lastErr = err.Error()
	c.mu.Unlock()
}
