package repository

import (
	"github.com/Techsolutions2024/strawberry/internal/dto"
	"github.com/Techsolutions2024/strawberry/internal/model"
)

// DetectionRepository defines the interface for detection record operations.
type DetectionRepository interface {
	// Create operations
	Insert(rec *model.DetectionRecord) (int64, error)
	InsertBatch(records []model.DetectionRecord) (int, error)

	// Read operations
	GetByIdentity(identity string) (*model.DetectionRecord, error)
	GetAll(filter *dto.DetectionFilters) ([]model.DetectionRecord, error)
	GetTotalCount(filter *dto.DetectionFilters) (int, error)
	GetAllClasses() ([]string, error)
	CountByClass() (map[string]int, error)

	// Delete operations
	DeleteAll() error
}

// CropRepository defines the interface for stored crop operations.
type CropRepository interface {
	// Create operations
	Insert(crop *model.Crop) (int64, error)

	// Read operations
	GetByFilename(filename string) (*model.Crop, error)
	GetDirectorySize() (int64, error)

	// Delete operations
	DeleteByFilename(filename string) error
	DeleteAll() error
}
