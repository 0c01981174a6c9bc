package dto

import "time"

// DetectionFilters narrow the stored detection list.
type DetectionFilters struct {
	Class         string
	MinConfidence float64
	DateAfter     time.Time
	DateBefore    time.Time
	Limit         int
	Offset        int
}
