package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Techsolutions2024/strawberry/internal/config"
	"github.com/Techsolutions2024/strawberry/internal/logger"
	"github.com/Techsolutions2024/strawberry/internal/metrics"
	"github.com/Techsolutions2024/strawberry/internal/route"
	"github.com/Techsolutions2024/strawberry/internal/service"
	"github.com/Techsolutions2024/strawberry/internal/service/capture"
	"github.com/Techsolutions2024/strawberry/internal/service/pipeline"
	"github.com/Techsolutions2024/strawberry/internal/service/websocket"
	"go.uber.org/multierr"
)

type App struct {
	config     *config.Config
	logger     *logger.Logger
	metrics    *metrics.Metrics
	pipeline   *Pipeline
	controller *pipeline.Controller
	hubService *websocket.HubService
	manager    *service.Manager
}

func NewApp(cfg *config.Config) (*App, error) {
	log := logger.NewLogger(cfg)
	m := metrics.New()

	p, err := NewPipeline(cfg, log, m)
	if err != nil {
		return nil, multierr.Append(err, log.Close())
	}

	hub := websocket.NewHubService(log)
	mng := service.NewManager(p.Detector, hub, service.Options{
		Workers:    cfg.ViewerWorkers,
		Quality:    cfg.ViewerQuality,
		CropDir:    cfg.CropDir,
		Detections: p.Detections,
		Crops:      p.Crops,
	}, log, m)
	controller := p.Controller(mng)
	mng.AttachController(controller)

	return &App{
		config:     cfg,
		logger:     log,
		metrics:    m,
		pipeline:   p,
		controller: controller,
		hubService: hub,
		manager:    mng,
	}, nil
}

// Run serves HTTP until ctx is cancelled, then shuts everything down.
func (a *App) Run(ctx context.Context) error {
	go a.hubService.Run()

	a.pipeline.LoadConfiguredModel(a.controller)
	if a.config.AutoStart {
		if d, err := capture.ParseDescriptor(a.config.Source); err != nil {
			a.logger.Error("Invalid SOURCE %q: %v", a.config.Source, err)
		} else {
			// OpenSource logs the failure and leaves the controller idle
			_ = a.controller.OpenSource(d)
		}
	}

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", a.config.Port),
		Handler: route.SetupRoutes(a.manager, a.config, a.logger, a.metrics),
	}

	a.logger.Info("Strawberry ripeness server on http://localhost:%d", a.config.Port)
	a.logger.Info("Model: %s", a.config.ModelPath)
	a.logger.Info("Results: %s", a.config.OutputDir)

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var err error
	select {
	case <-ctx.Done():
	case err = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err = multierr.Append(err, server.Shutdown(shutdownCtx))
	return multierr.Append(err, a.Close())
}

// Close stops the pipeline and releases its resources.
func (a *App) Close() error {
	a.controller.Stop()
	a.manager.Stop()
	a.hubService.Stop()
	err := a.pipeline.Close()
	a.logger.Info("Server stopped")
	return multierr.Append(err, a.logger.Close())
}
