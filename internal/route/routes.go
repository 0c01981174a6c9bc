package route

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/Techsolutions2024/strawberry/internal/config"
	"github.com/Techsolutions2024/strawberry/internal/handler"
	"github.com/Techsolutions2024/strawberry/internal/logger"
	"github.com/Techsolutions2024/strawberry/internal/metrics"
	"github.com/Techsolutions2024/strawberry/internal/middleware"
	"github.com/Techsolutions2024/strawberry/internal/service"
)

// StaticDir holds the viewer pages.
const StaticDir = "static"

// dynamicHTMLHandler serves /path as /static/path.html if the file exists; otherwise 404.
func dynamicHTMLHandler(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	if path == "/" {
		path = "/index"
	}

	filePath := filepath.Join(StaticDir, filepath.Clean(path)+".html")
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, filePath)
}

// SetupRoutes registers the control API, the viewer websocket, the detection
// browser, log endpoints and metrics, wrapped with the authentication middleware.
func SetupRoutes(manager *service.Manager, cfg *config.Config, log *logger.Logger, m *metrics.Metrics) http.Handler {
	mux := http.NewServeMux()

	mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.Dir(StaticDir))))
	if cfg.MetricsEnabled {
		mux.Handle("/metrics", m.Handler())
	}

	// Pipeline control
	mux.HandleFunc("/api/status", handler.StatusHandler(manager, log))
	mux.HandleFunc("/api/model", handler.LoadModelHandler(manager, log))
	mux.HandleFunc("/api/source", handler.OpenSourceHandler(manager, log))
	mux.HandleFunc("/api/stop", handler.StopHandler(manager, log))
	mux.HandleFunc("/api/threshold", handler.ThresholdHandler(manager, log))
	mux.HandleFunc("/api/view", handler.ViewWebsocketHandler(manager, log))

	// Stored detections
	mux.HandleFunc("/api/detections", handler.GetDetectionsHandler(manager, log))
	mux.HandleFunc("/api/detections/filters", handler.GetFiltersHandler(manager, log))
	mux.HandleFunc("/api/detections/crop", handler.ViewCropHandler(manager))
	mux.HandleFunc("/api/detections/clear", handler.ClearDetectionsHandler(manager, log))

	// Log endpoints
	for level, file := range map[string]string{
		"info":    logger.InfoFile,
		"warning": logger.WarningFile,
		"error":   logger.ErrorFile,
	} {
		mux.HandleFunc("/logs/"+level, handler.ShowLogHandler(log, file))
		mux.HandleFunc("/logs/"+level+"/clear", handler.ClearLogHandler(log, file))
	}

	// Auth endpoints
	mux.HandleFunc("/auth/login", handler.LoginHandler(cfg, log))
	mux.HandleFunc("/auth/logout", handler.LogoutHandler)

	// /settings -> static/settings.html
	mux.HandleFunc("/", dynamicHTMLHandler)

	return middleware.AuthMiddleware(mux)
}
