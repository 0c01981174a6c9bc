package sqlite

import (
	"database/sql"
	"fmt"

	"github.com/Techsolutions2024/strawberry/internal/model"
)

// CropRepository implements repository.CropRepository for SQLite.
type CropRepository struct {
	db *DB
}

// NewCropRepository creates a new SQLite crop repository.
func NewCropRepository(db *DB) *CropRepository {
	return &CropRepository{db: db}
}

// Insert adds a crop row.
func (r *CropRepository) Insert(crop *model.Crop) (int64, error) {
	r.db.Lock()
	defer r.db.Unlock()

	result, err := r.db.Conn().Exec(`
		INSERT INTO crops (filename, identity, filepath, filesize)
		VALUES (?, ?, ?, ?)
	`, crop.Filename, crop.Identity, crop.FilePath, crop.FileSize)
	if err != nil {
		return 0, fmt.Errorf("failed to insert crop: %w", err)
	}

	return result.LastInsertId()
}

// GetByFilename retrieves a crop by its filename. A missing crop returns nil, nil.
func (r *CropRepository) GetByFilename(filename string) (*model.Crop, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	var crop model.Crop
	err := r.db.Conn().QueryRow(`
		SELECT id, filename, identity, filepath, filesize, created_at
		FROM crops WHERE filename = ?
	`, filename).Scan(&crop.ID, &crop.Filename, &crop.Identity, &crop.FilePath, &crop.FileSize, &crop.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get crop: %w", err)
	}
	return &crop, nil
}

// GetDirectorySize returns the total size in bytes of all stored crops.
func (r *CropRepository) GetDirectorySize() (int64, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	var size sql.NullInt64
	if err := r.db.Conn().QueryRow(`SELECT SUM(filesize) FROM crops`).Scan(&size); err != nil {
		return 0, fmt.Errorf("failed to get crop size: %w", err)
	}
	return size.Int64, nil
}

// DeleteByFilename removes one crop row.
func (r *CropRepository) DeleteByFilename(filename string) error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().Exec(`DELETE FROM crops WHERE filename = ?`, filename); err != nil {
		return fmt.Errorf("failed to delete crop: %w", err)
	}
	return nil
}

// DeleteAll removes every crop row.
func (r *CropRepository) DeleteAll() error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().Exec(`DELETE FROM crops`); err != nil {
		return fmt.Errorf("failed to delete crops: %w", err)
	}
	return nil
}
