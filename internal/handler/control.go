package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/Techsolutions2024/strawberry/internal/dto"
	"github.com/Techsolutions2024/strawberry/internal/logger"
	"github.com/Techsolutions2024/strawberry/internal/service"
	"github.com/Techsolutions2024/strawberry/internal/service/ai"
	"github.com/Techsolutions2024/strawberry/internal/service/capture"
	"github.com/Techsolutions2024/strawberry/internal/service/pipeline"
)

func statusData(manager *service.Manager) dto.StatusData {
	st := manager.GetController().Status()
	detector := manager.GetDetector()
	return dto.StatusData{
		State:       st.State.String(),
		Source:      st.Source,
		ModelLoaded: detector.Loaded(),
		Model:       detector.Descriptor().WeightsPath,
		Threshold:   st.Threshold,
		Ticks:       st.Frames,
		Records:     st.Records,
		LastError:   st.LastError,
	}
}

// StatusHandler handles GET /api/status.
func StatusHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, logger, http.StatusOK, statusData(manager))
	}
}

// LoadModelHandler handles POST /api/model with form fields "weights" and optional "classes".
// A failed load keeps the previous model.
func LoadModelHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requirePost(w, r) {
			return
		}
		d := ai.Descriptor{
			WeightsPath: r.FormValue("weights"),
			ClassesPath: r.FormValue("classes"),
		}
		if d.WeightsPath == "" {
			http.Error(w, "weights parameter is required", http.StatusBadRequest)
			return
		}
		if err := manager.GetController().LoadModel(d); err != nil {
			writeError(w, logger, http.StatusUnprocessableEntity, err)
			return
		}
		writeJSON(w, logger, http.StatusOK, statusData(manager))
	}
}

// OpenSourceHandler handles POST /api/source with form field "source": a camera
// index, a video path or an image path. Any running source is stopped first.
func OpenSourceHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requirePost(w, r) {
			return
		}
		d, err := capture.ParseDescriptor(r.FormValue("source"))
		if err != nil {
			writeError(w, logger, http.StatusBadRequest, err)
			return
		}
		if err := manager.GetController().OpenSource(d); err != nil {
			writeError(w, logger, http.StatusUnprocessableEntity, err)
			return
		}
		writeJSON(w, logger, http.StatusOK, statusData(manager))
	}
}

// StopHandler handles POST /api/stop. Stopping an idle pipeline succeeds.
func StopHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requirePost(w, r) {
			return
		}
		manager.GetController().Stop()
		writeJSON(w, logger, http.StatusOK, statusData(manager))
	}
}

// ThresholdHandler handles POST /api/threshold with form field "value" in [0,1].
func ThresholdHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requirePost(w, r) {
			return
		}
		v, err := strconv.ParseFloat(r.FormValue("value"), 64)
		if err != nil {
			http.Error(w, "value must be a number", http.StatusBadRequest)
			return
		}
		if err := manager.GetController().SetThreshold(v); err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, pipeline.ErrInvalidThreshold) {
				status = http.StatusBadRequest
			}
			writeError(w, logger, status, err)
			return
		}
		logger.Info("Confidence threshold set to %.2f", v)
		writeJSON(w, logger, http.StatusOK, statusData(manager))
	}
}
