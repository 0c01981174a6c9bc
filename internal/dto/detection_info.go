package dto

import (
	"encoding/json"
	"time"

	"github.com/Techsolutions2024/strawberry/internal/model"
)

// DetectionInfo is one row of the detection listing.
type DetectionInfo struct {
	Identity   string       `json:"identity"`
	Class      string       `json:"class"`
	Confidence float64      `json:"confidence"`
	Box        model.Box    `json:"box"`
	Center     *model.Point `json:"center,omitempty"`
	Crop       string       `json:"crop,omitempty"`
	CapturedAt time.Time    `json:"capturedAt"`
}

// MarshalJSON formats the capture time the way the viewer displays it.
func (d DetectionInfo) MarshalJSON() ([]byte, error) {
	type Alias DetectionInfo
	return json.Marshal(&struct {
		Date      string `json:"date"`
		TimeOfDay string `json:"timeOfDay"`
		Alias
	}{
		Date:      d.CapturedAt.Format("02-01-2006"),
		TimeOfDay: d.CapturedAt.Format("15:04:05"),
		Alias:     (Alias)(d),
	})
}

// DetectionsData is a page of detections.
type DetectionsData struct {
	Detections  []DetectionInfo `json:"detections"`
	Size        int64           `json:"size"`
	Length      int             `json:"length"`
	TotalPages  int             `json:"totalPages"`
	CurrentPage int             `json:"currentPage"`
	Limit       int             `json:"pageSize"`
}

// FiltersData lists the values the viewer can filter on.
type FiltersData struct {
	Classes []string       `json:"classes"`
	Counts  map[string]int `json:"counts"`
}
