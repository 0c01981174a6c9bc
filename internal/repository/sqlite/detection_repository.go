package sqlite

import (
	"database/sql"
	"fmt"

	"github.com/Techsolutions2024/strawberry/internal/dto"
	"github.com/Techsolutions2024/strawberry/internal/model"
)

const detectionColumns = `id, identity, class, confidence, x1, y1, x2, y2, center_x, center_y, crop_path, captured_at`

// DetectionRepository implements repository.DetectionRepository for SQLite.
type DetectionRepository struct {
	db *DB
}

// NewDetectionRepository creates a new SQLite detection repository.
func NewDetectionRepository(db *DB) *DetectionRepository {
	return &DetectionRepository{db: db}
}

// Insert adds a new detection record to the database.
func (r *DetectionRepository) Insert(rec *model.DetectionRecord) (int64, error) {
	r.db.Lock()
	defer r.db.Unlock()

	cx, cy := centerArgs(rec.Center)
	result, err := r.db.Conn().Exec(`
		INSERT INTO detections (identity, class, confidence, x1, y1, x2, y2, center_x, center_y, crop_path, captured_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.Class, rec.Confidence, rec.Box.X1, rec.Box.Y1, rec.Box.X2, rec.Box.Y2, cx, cy, rec.CropPath, rec.CapturedAt)
	if err != nil {
		return 0, fmt.Errorf("failed to insert detection: %w", err)
	}

	return result.LastInsertId()
}

// InsertBatch adds multiple records in a single transaction. Identities already
// present are skipped; the number of inserted rows is returned.
func (r *DetectionRepository) InsertBatch(records []model.DetectionRecord) (int, error) {
	r.db.Lock()
	defer r.db.Unlock()

	tx, err := r.db.Conn().Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT OR IGNORE INTO detections (identity, class, confidence, x1, y1, x2, y2, center_x, center_y, crop_path, captured_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, rec := range records {
		cx, cy := centerArgs(rec.Center)
		res, err := stmt.Exec(rec.ID, rec.Class, rec.Confidence, rec.Box.X1, rec.Box.Y1, rec.Box.X2, rec.Box.Y2, cx, cy, rec.CropPath, rec.CapturedAt)
		if err != nil {
			return 0, fmt.Errorf("failed to insert detection %s: %w", rec.ID, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			inserted += int(n)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit detections: %w", err)
	}
	return inserted, nil
}

// GetByIdentity retrieves a record by its identity. A missing record returns nil, nil.
func (r *DetectionRepository) GetByIdentity(identity string) (*model.DetectionRecord, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	row := r.db.Conn().QueryRow(`SELECT `+detectionColumns+` FROM detections WHERE identity = ?`, identity)
	rec, err := scanDetection(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get detection: %w", err)
	}
	return rec, nil
}

// GetAll retrieves records matching the filter, newest first.
func (r *DetectionRepository) GetAll(filter *dto.DetectionFilters) ([]model.DetectionRecord, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	where, args := buildWhere(filter)
	query := `SELECT ` + detectionColumns + ` FROM detections WHERE 1=1` + where + ` ORDER BY captured_at DESC, id DESC`

	if filter != nil && filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filter.Offset)
		}
	}

	rows, err := r.db.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query detections: %w", err)
	}
	defer rows.Close()

	var records []model.DetectionRecord
	for rows.Next() {
		rec, err := scanDetection(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan detection: %w", err)
		}
		records = append(records, *rec)
	}

	return records, rows.Err()
}

// GetTotalCount returns the number of records matching the filter.
func (r *DetectionRepository) GetTotalCount(filter *dto.DetectionFilters) (int, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	where, args := buildWhere(filter)
	var count int
	if err := r.db.Conn().QueryRow(`SELECT COUNT(*) FROM detections WHERE 1=1`+where, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count detections: %w", err)
	}
	return count, nil
}

// GetAllClasses returns a list of all unique detected classes.
func (r *DetectionRepository) GetAllClasses() ([]string, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().Query(`SELECT DISTINCT class FROM detections ORDER BY class`)
	if err != nil {
		return nil, fmt.Errorf("failed to query classes: %w", err)
	}
	defer rows.Close()

	var classes []string
	for rows.Next() {
		var class string
		if err := rows.Scan(&class); err != nil {
			return nil, fmt.Errorf("failed to scan class: %w", err)
		}
		classes = append(classes, class)
	}

	return classes, rows.Err()
}

// CountByClass returns the number of records per class.
func (r *DetectionRepository) CountByClass() (map[string]int, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().Query(`SELECT class, COUNT(*) FROM detections GROUP BY class`)
	if err != nil {
		return nil, fmt.Errorf("failed to count classes: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var class string
		var n int
		if err := rows.Scan(&class, &n); err != nil {
			return nil, fmt.Errorf("failed to scan class count: %w", err)
		}
		counts[class] = n
	}
	return counts, rows.Err()
}

// DeleteAll removes all detection records.
func (r *DetectionRepository) DeleteAll() error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().Exec(`DELETE FROM detections`); err != nil {
		return fmt.Errorf("failed to delete detections: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDetection(row rowScanner) (*model.DetectionRecord, error) {
	var (
		rec    model.DetectionRecord
		id     int64
		cx, cy sql.NullInt64
	)
	if err := row.Scan(&id, &rec.ID, &rec.Class, &rec.Confidence,
		&rec.Box.X1, &rec.Box.Y1, &rec.Box.X2, &rec.Box.Y2,
		&cx, &cy, &rec.CropPath, &rec.CapturedAt); err != nil {
		return nil, err
	}
	if cx.Valid && cy.Valid {
		rec.Center = &model.Point{X: int(cx.Int64), Y: int(cy.Int64)}
	}
	return &rec, nil
}

func centerArgs(c *model.Point) (interface{}, interface{}) {
	if c == nil {
		return nil, nil
	}
	return c.X, c.Y
}

func buildWhere(filter *dto.DetectionFilters) (string, []interface{}) {
	if filter == nil {
		return "", nil
	}
	where := ""
	args := []interface{}{}

	if filter.Class != "" {
		where += " AND class = ?"
		args = append(args, filter.Class)
	}

	if filter.MinConfidence > 0 {
		where += " AND confidence >= ?"
		args = append(args, filter.MinConfidence)
	}

	if !filter.DateAfter.IsZero() {
		where += " AND DATE(captured_at) >= DATE(?)"
		args = append(args, filter.DateAfter.Format("2006-01-02"))
	}

	if !filter.DateBefore.IsZero() {
		where += " AND DATE(captured_at) <= DATE(?)"
		args = append(args, filter.DateBefore.Format("2006-01-02"))
	}

	return where, args
}
