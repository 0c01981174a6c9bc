package app

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/Techsolutions2024/strawberry/internal/config"
	"github.com/Techsolutions2024/strawberry/internal/logger"
	"github.com/Techsolutions2024/strawberry/internal/metrics"
	"github.com/Techsolutions2024/strawberry/internal/repository"
	"github.com/Techsolutions2024/strawberry/internal/repository/sqlite"
	"github.com/Techsolutions2024/strawberry/internal/service/ai"
	"github.com/Techsolutions2024/strawberry/internal/service/ai/dnn"
	"github.com/Techsolutions2024/strawberry/internal/service/capture"
	"github.com/Techsolutions2024/strawberry/internal/service/capture/cv"
	"github.com/Techsolutions2024/strawberry/internal/service/pipeline"
	"github.com/Techsolutions2024/strawberry/internal/service/record"
	"github.com/Techsolutions2024/strawberry/internal/service/storage"
	"go.uber.org/multierr"
)

// Pipeline holds everything a controller needs, built from configuration.
type Pipeline struct {
	Config     *config.Config
	Detector   *ai.Facade
	Opener     *capture.Dispatcher
	Sink       *storage.Sink
	Builder    *record.Builder
	Detections repository.DetectionRepository
	Crops      repository.CropRepository

	db      *sqlite.DB
	logger  *logger.Logger
	metrics *metrics.Metrics
}

// NewPipeline opens the stores named by cfg. The SQLite mirror is only opened when DBPath is set.
func NewPipeline(cfg *config.Config, log *logger.Logger, m *metrics.Metrics) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	p := &Pipeline{
		Config:   cfg,
		Detector: ai.NewFacade(dnn.Load),
		Opener:   capture.NewDispatcher(cfg.WorkingSize),
		Builder:  record.NewBuilder(cfg.CenterPoints),
		logger:   log,
		metrics:  m,
	}
	cv.Register(p.Opener)

	if cfg.DBPath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		db, err := sqlite.New(cfg.DBPath)
		if err != nil {
			return nil, err
		}
		p.db = db
		p.Detections = sqlite.NewDetectionRepository(db)
		p.Crops = sqlite.NewCropRepository(db)
		log.Info("Detection mirror: %s", cfg.DBPath)
	}

	sink, err := storage.Open(storage.Options{
		LogPath:     cfg.LogFile,
		Policy:      cfg.LogPolicy,
		Center:      cfg.CenterPoints,
		SaveCrops:   cfg.SaveCrops,
		CropDir:     cfg.CropDir,
		CropFormat:  cfg.CropFormat,
		CropQuality: cfg.CropQuality,
		Detections:  p.Detections,
		Crops:       p.Crops,
	})
	if err != nil {
		if p.db != nil {
			err = multierr.Append(err, p.db.Close())
		}
		return nil, err
	}
	p.Sink = sink
	log.Info("Detection log: %s (%s)", sink.LogPath(), cfg.LogPolicy)
	return p, nil
}

// Controller builds the controller around the pipeline's stores.
func (p *Pipeline) Controller(presenter pipeline.Presenter) *pipeline.Controller {
	return pipeline.NewController(p.Opener, p.Detector, p.Sink, p.Builder, presenter, pipeline.Options{
		Threshold:    p.Config.ConfidenceThreshold,
		ThumbSize:    image.Pt(p.Config.ThumbWidth, p.Config.ThumbHeight),
		TickInterval: p.Config.TickInterval,
	}, p.logger, p.metrics)
}

// LoadConfiguredModel loads cfg.ModelPath when the file exists. Without a model
// frames are still shown, undetected.
func (p *Pipeline) LoadConfiguredModel(c *pipeline.Controller) {
	if _, err := os.Stat(p.Config.ModelPath); errors.Is(err, os.ErrNotExist) {
		p.logger.Warning("Model %s not found, frames will be shown without detection", p.Config.ModelPath)
		return
	}
	// LoadModel logs the failure itself
	_ = c.LoadModel(ai.Descriptor{WeightsPath: p.Config.ModelPath, ClassesPath: p.Config.ClassesPath})
}

// Close releases the model, the detection log and the database.
func (p *Pipeline) Close() error {
	err := multierr.Combine(p.Detector.Close(), p.Sink.Close())
	if p.db != nil {
		err = multierr.Append(err, p.db.Close())
	}
	return err
}
