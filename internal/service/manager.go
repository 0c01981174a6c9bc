// Package service ties the pipeline controller to the viewers and the stores the
// HTTP handlers read from.
package service

import (
	"sync"

	"github.com/Techsolutions2024/strawberry/internal/logger"
	"github.com/Techsolutions2024/strawberry/internal/metrics"
	"github.com/Techsolutions2024/strawberry/internal/repository"
	"github.com/Techsolutions2024/strawberry/internal/service/ai"
	"github.com/Techsolutions2024/strawberry/internal/service/pipeline"
	"github.com/Techsolutions2024/strawberry/internal/service/render"
	"github.com/Techsolutions2024/strawberry/internal/service/websocket"
)

const queueSize = 8

type Manager struct {
	controller       *pipeline.Controller
	detector         *ai.Facade
	websocketService *websocket.HubService
	detections       repository.DetectionRepository
	crops            repository.CropRepository
	cropDir          string
	logger           *logger.Logger
	metrics          *metrics.Metrics

	presentQueue chan render.Payload
	numWorkers   int
	quality      int

	mu     sync.RWMutex // guards closed against sends on presentQueue
	closed bool
	wg     sync.WaitGroup
}

type Options struct {
	Workers int
	Quality int
	CropDir string
	// Optional. Without them the detection listing is unavailable.
	Detections repository.DetectionRepository
	Crops      repository.CropRepository
}

func NewManager(detector *ai.Facade, websocketService *websocket.HubService, opts Options, logger *logger.Logger, m *metrics.Metrics) *Manager {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Quality <= 0 || opts.Quality > 100 {
		opts.Quality = 75
	}
	manager := &Manager{
		detector:         detector,
		websocketService: websocketService,
		detections:       opts.Detections,
		crops:            opts.Crops,
		cropDir:          opts.CropDir,
		logger:           logger,
		metrics:          m,
		presentQueue:     make(chan render.Payload, queueSize),
		numWorkers:       opts.Workers,
		quality:          opts.Quality,
	}

	for i := 0; i < manager.numWorkers; i++ {
		manager.wg.Add(1)
		go manager.presentWorker(i)
	}

	manager.logger.Info("Manager started with %d viewer worker(s)", manager.numWorkers)
	return manager
}

// AttachController sets the controller the handlers drive. The controller is
// built with the manager as its presenter, so it is attached afterwards.
func (m *Manager) AttachController(c *pipeline.Controller) {
	m.controller = c
}

// Present queues a payload for the viewers. It never blocks the tick: when the
// queue is full the payload is dropped.
func (m *Manager) Present(p render.Payload) {
	if m.websocketService.GetClientCount() == 0 {
		return
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return
	}
	select {
	case m.presentQueue <- p:
	default:
		m.metrics.PresenterDrops.Add(1)
	}
}

func (m *Manager) presentWorker(workerID int) {
	defer m.wg.Done()

	for p := range m.presentQueue {
		msg, err := render.MarshalMessage(p, m.quality)
		if err != nil {
			m.logger.Error("Worker %d failed to encode frame %d: %v", workerID, p.Seq, err)
			continue
		}
		m.websocketService.Broadcast(msg)
	}
}

func (m *Manager) GetController() *pipeline.Controller {
	return m.controller
}
func (m *Manager) GetDetector() *ai.Facade {
	return m.detector
}
func (m *Manager) GetWebsocketService() *websocket.HubService {
	return m.websocketService
}
func (m *Manager) GetDetectionRepository() repository.DetectionRepository {
	return m.detections
}
func (m *Manager) GetCropRepository() repository.CropRepository {
	return m.crops
}
func (m *Manager) GetCropDir() string {
	return m.cropDir
}

// Stop drains the viewer queue and waits for the workers.
func (m *Manager) Stop() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	close(m.presentQueue)
	m.mu.Unlock()

	m.wg.Wait()
	m.logger.Info("All viewer workers stopped")
}
