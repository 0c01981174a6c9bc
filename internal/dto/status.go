package dto

// StatusData reports the controller state to the control surface.
type StatusData struct {
	State       string  `json:"state"`
	Source      string  `json:"source,omitempty"`
	ModelLoaded bool    `json:"modelLoaded"`
	Model       string  `json:"model,omitempty"`
	Threshold   float64 `json:"threshold"`
	Ticks       uint64  `json:"ticks"`
	Records     uint64  `json:"records"`
	LastError   string  `json:"lastError,omitempty"`
}
