package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Techsolutions2024/strawberry/internal/model"
	"github.com/Techsolutions2024/strawberry/internal/service/storage"
)

func TestConvert(t *testing.T) {
	cropDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(cropDir, "ripe_20240501_120000_000001.jpg"), []byte("jpeg"), 0644); err != nil {
		t.Fatal(err)
	}

	entries := []storage.LogEntry{
		{Filename: "ripe_20240501_120000_000001.jpg", Class: "ripe", Confidence: 0.9, Box: model.Box{X2: 10, Y2: 10}},
		{Filename: "unripe_20240501_120000_000002.jpg", Class: "unripe", Confidence: 0.4},
		{Filename: "legacy.jpg", Class: "ripe"},
	}

	records, crops, skipped := convert(entries, cropDir)
	if skipped != 1 {
		t.Errorf("Expected 1 skipped row, got %d", skipped)
	}
	if len(records) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(records))
	}
	if records[0].ID != "ripe_20240501_120000_000001" || records[0].CapturedAt.Year() != 2024 {
		t.Errorf("Unexpected record %+v", records[0])
	}
	if records[0].CropPath == "" || records[1].CropPath != "" {
		t.Errorf("Expected crop only for the first record, got %q and %q", records[0].CropPath, records[1].CropPath)
	}
	if len(crops) != 1 || crops[0].FileSize != 4 {
		t.Errorf("Unexpected crops %+v", crops)
	}
}
