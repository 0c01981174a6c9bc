package model

import "time"

// Crop describes a stored thumbnail of one detection.
type Crop struct {
	ID        int64     `json:"id"`
	Filename  string    `json:"filename"`
	Identity  string    `json:"identity"`
	FilePath  string    `json:"filepath"`
	FileSize  int64     `json:"filesize"`
	CreatedAt time.Time `json:"createdAt"`
}
