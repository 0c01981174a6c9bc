// Command migrate imports an existing CSV detection log, and the crops it refers
// to, into the SQLite mirror used by the detection browser.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/Techsolutions2024/strawberry/internal/model"
	"github.com/Techsolutions2024/strawberry/internal/repository/sqlite"
	"github.com/Techsolutions2024/strawberry/internal/service/record"
	"github.com/Techsolutions2024/strawberry/internal/service/storage"
)

func main() {
	logPath := flag.String("log", filepath.Join("results", "coords", "detections.csv"), "Detection log to import")
	cropDir := flag.String("crops", filepath.Join("results", "images"), "Directory containing crops")
	dbPath := flag.String("db", filepath.Join("data", "detections.db"), "Database path")
	flag.Parse()

	fmt.Printf("Migrating detections from %s to database %s\n", *logPath, *dbPath)

	if err := os.MkdirAll(filepath.Dir(*dbPath), 0755); err != nil {
		log.Fatalf("Failed to create database directory: %v", err)
	}

	db, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	entries, err := storage.ReadLog(*logPath)
	if err != nil {
		log.Fatalf("Failed to read detection log: %v", err)
	}

	records, crops, skipped := convert(entries, *cropDir)
	if len(records) == 0 {
		fmt.Println("No detections found to migrate")
		return
	}

	detectionRepo := sqlite.NewDetectionRepository(db)
	inserted, err := detectionRepo.InsertBatch(records)
	if err != nil {
		log.Fatalf("Failed to insert detections: %v", err)
	}

	cropRepo := sqlite.NewCropRepository(db)
	for i := range crops {
		if existing, err := cropRepo.GetByFilename(crops[i].Filename); err == nil && existing != nil {
			continue
		}
		if _, err := cropRepo.Insert(&crops[i]); err != nil {
			log.Printf("Failed to insert crop %s: %v", crops[i].Filename, err)
		}
	}

	fmt.Printf("Migrated %d detections (%d already present)\n", inserted, len(records)-inserted)
	if skipped > 0 {
		fmt.Printf("Skipped %d rows with unrecognised filenames\n", skipped)
	}

	if counts, err := detectionRepo.CountByClass(); err == nil {
		fmt.Printf("\nDetections per class:\n")
		for class, n := range counts {
			fmt.Printf("   - %s: %d\n", class, n)
		}
	}
}

// convert turns log rows into records. Rows whose filename does not carry an
// identity are skipped; crops are attached when the file exists in cropDir.
func convert(entries []storage.LogEntry, cropDir string) ([]model.DetectionRecord, []model.Crop, int) {
	var (
		records []model.DetectionRecord
		crops   []model.Crop
		skipped int
	)
	for _, e := range entries {
		_, at, err := record.ParseIdentity(e.Filename)
		if err != nil {
			log.Printf("Skipping %s: %v", e.Filename, err)
			skipped++
			continue
		}
		identity := strings.TrimSuffix(e.Filename, filepath.Ext(e.Filename))

		rec := model.DetectionRecord{
			ID:         identity,
			Class:      e.Class,
			Confidence: e.Confidence,
			Box:        e.Box,
			Center:     e.Center,
			CapturedAt: at,
		}

		cropPath := filepath.Join(cropDir, e.Filename)
		if info, err := os.Stat(cropPath); err == nil && !info.IsDir() {
			rec.CropPath = cropPath
			crops = append(crops, model.Crop{
				Filename:  e.Filename,
				Identity:  identity,
				FilePath:  cropPath,
				FileSize:  info.Size(),
				CreatedAt: at,
			})
		}
		records = append(records, rec)
	}
	return records, crops, skipped
}
