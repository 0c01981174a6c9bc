package handler

import (
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/Techsolutions2024/strawberry/internal/dto"
	"github.com/Techsolutions2024/strawberry/internal/logger"
	"github.com/Techsolutions2024/strawberry/internal/service"
)

// GetDetectionsHandler returns a filtered page of stored detections.
func GetDetectionsHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		detectionRepo := manager.GetDetectionRepository()
		if detectionRepo == nil {
			http.Error(w, "Detection database not configured", http.StatusServiceUnavailable)
			return
		}

		q := r.URL.Query()
		page := atoiDefault(q.Get("page"), 1)
		limit := atoiDefault(q.Get("limit"), 24)
		minConfidence, _ := strconv.ParseFloat(q.Get("minConfidence"), 64)

		filter := &dto.DetectionFilters{
			Class:         q.Get("class"),
			MinConfidence: minConfidence,
			DateAfter:     parseDate(q.Get("dateAfter")),
			DateBefore:    parseDate(q.Get("dateBefore")),
			Limit:         limit,
			Offset:        (page - 1) * limit,
		}

		records, err := detectionRepo.GetAll(filter)
		if err != nil {
			logger.Error("Error querying detections from database: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		totalCount, err := detectionRepo.GetTotalCount(filter)
		if err != nil {
			logger.Error("Error counting detections: %v", err)
			totalCount = len(records)
		}

		var totalSize int64
		if cropRepo := manager.GetCropRepository(); cropRepo != nil {
			if totalSize, err = cropRepo.GetDirectorySize(); err != nil {
				logger.Error("Error getting crop directory size: %v", err)
				totalSize = 0
			}
		}

		detections := make([]dto.DetectionInfo, 0, len(records))
		for _, rec := range records {
			info := dto.DetectionInfo{
				Identity:   rec.ID,
				Class:      rec.Class,
				Confidence: rec.Confidence,
				Box:        rec.Box,
				Center:     rec.Center,
				CapturedAt: rec.CapturedAt,
			}
			if rec.CropPath != "" {
				info.Crop = filepath.Base(rec.CropPath)
			}
			detections = append(detections, info)
		}

		writeJSON(w, logger, http.StatusOK, dto.DetectionsData{
			Detections:  detections,
			Size:        totalSize,
			Length:      totalCount,
			TotalPages:  (totalCount + limit - 1) / limit,
			CurrentPage: page,
			Limit:       limit,
		})
	}
}

// GetFiltersHandler lists the stored classes and how many detections each has.
func GetFiltersHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		detectionRepo := manager.GetDetectionRepository()
		if detectionRepo == nil {
			http.Error(w, "Detection database not configured", http.StatusServiceUnavailable)
			return
		}
		classes, err := detectionRepo.GetAllClasses()
		if err != nil {
			logger.Error("Error listing classes: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		counts, err := detectionRepo.CountByClass()
		if err != nil {
			logger.Error("Error counting classes: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, logger, http.StatusOK, dto.FiltersData{Classes: classes, Counts: counts})
	}
}

// ViewCropHandler serves one crop file named by the "crop" query parameter.
func ViewCropHandler(manager *service.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := r.URL.Query().Get("crop")
		if !isValidFilename(name) {
			http.Error(w, "Invalid crop name", http.StatusBadRequest)
			return
		}
		filePath := filepath.Join(manager.GetCropDir(), name)
		if _, err := os.Stat(filePath); err != nil {
			http.NotFound(w, r)
			return
		}
		http.ServeFile(w, r, filePath)
	}
}

// ClearDetectionsHandler deletes every crop file and empties the database mirror.
// The CSV detection log is left alone; its lifetime is governed by the log policy.
func ClearDetectionsHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requirePost(w, r) {
			return
		}

		cropDir := manager.GetCropDir()
		files, err := os.ReadDir(cropDir)
		if err != nil && !os.IsNotExist(err) {
			logger.Error("Error reading crop directory: %v", err)
			http.Error(w, "Unable to read crop directory", http.StatusInternalServerError)
			return
		}
		for _, file := range files {
			if file.IsDir() {
				continue
			}
			if err := os.Remove(filepath.Join(cropDir, file.Name())); err != nil {
				logger.Error("Error deleting crop %s: %v", file.Name(), err)
			}
		}

		if cropRepo := manager.GetCropRepository(); cropRepo != nil {
			if err := cropRepo.DeleteAll(); err != nil {
				logger.Error("Error clearing crops table: %v", err)
			}
		}
		if detectionRepo := manager.GetDetectionRepository(); detectionRepo != nil {
			if err := detectionRepo.DeleteAll(); err != nil {
				logger.Error("Error clearing detections table: %v", err)
			}
		}

		logger.Info("Detections cleared from %s", cropDir)
		w.WriteHeader(http.StatusNoContent)
	}
}
