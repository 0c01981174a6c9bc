// Package storage persists detection records: the CSV detection log, crop
// thumbnails, and an optional SQLite mirror of both.
package storage

import (
	"fmt"
	"image"

	"github.com/Techsolutions2024/strawberry/internal/model"
	"github.com/Techsolutions2024/strawberry/internal/repository"
)

type Options struct {
	LogPath string
	Policy  string // config.PolicyAppend or config.PolicyRecreate
	Center  bool

	SaveCrops   bool
	CropDir     string
	CropFormat  string
	CropQuality int

	// Optional mirrors. Nil repositories are skipped.
	Detections repository.DetectionRepository
	Crops      repository.CropRepository
}

// Sink is the single persistence point shared by every session. Append and
// WriteCrop are independent: a failed crop never prevents the log row.
type Sink struct {
	log       *DetectionLog
	crops     *CropStore
	detRepo   repository.DetectionRepository
	cropRepo  repository.CropRepository
	extension string
}

// Open opens the detection log with the configured policy and prepares the crop store.
func Open(opts Options) (*Sink, error) {
	log, err := OpenLog(opts.LogPath, opts.Policy, opts.Center)
	if err != nil {
		return nil, err
	}

	s := &Sink{
		log:       log,
		detRepo:   opts.Detections,
		cropRepo:  opts.Crops,
		extension: "jpg",
	}
	if opts.CropFormat != "" {
		s.extension = opts.CropFormat
	}

	if opts.SaveCrops {
		store, err := NewCropStore(opts.CropDir, opts.CropFormat, opts.CropQuality)
		if err != nil {
			log.Close()
			return nil, err
		}
		s.crops = store
		s.extension = store.Ext()
	}
	return s, nil
}

// Filename is the name recorded in the log for a record: its identity plus the crop extension.
func (s *Sink) Filename(identity string) string {
	return identity + "." + s.extension
}

// SavesCrops reports whether crops are written.
func (s *Sink) SavesCrops() bool {
	return s.crops != nil
}

// LogPath returns the detection log path.
func (s *Sink) LogPath() string {
	return s.log.Path()
}

// Append writes the record to the log and, when configured, to the database mirror.
// An error wrapping ErrMirror means the log row was written and only the mirror failed.
func (s *Sink) Append(rec model.DetectionRecord) error {
	if err := s.log.Append(s.Filename(rec.ID), rec); err != nil {
		return err
	}
	if s.detRepo != nil {
		if _, err := s.detRepo.Insert(&rec); err != nil {
			return fmt.Errorf("%w: %w: %s: %v", ErrWrite, ErrMirror, rec.ID, err)
		}
	}
	return nil
}

// WriteCrop stores the crop for rec and returns its path. Without a crop store it is a no-op.
// On an ErrMirror failure the crop is on disk and its path is still returned.
func (s *Sink) WriteCrop(rec model.DetectionRecord, img image.Image) (string, error) {
	if s.crops == nil {
		return "", nil
	}
	path, size, err := s.crops.Save(rec.ID, img)
	if err != nil {
		return "", err
	}
	if s.cropRepo != nil {
		crop := &model.Crop{
			Filename: s.crops.Filename(rec.ID),
			Identity: rec.ID,
			FilePath: path,
			FileSize: size,
		}
		if _, err := s.cropRepo.Insert(crop); err != nil {
			return path, fmt.Errorf("%w: %w: crop %s: %v", ErrWrite, ErrMirror, rec.ID, err)
		}
	}
	return path, nil
}

// Close releases the log file.
func (s *Sink) Close() error {
	return s.log.Close()
}
