package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Techsolutions2024/strawberry/internal/model"
	"github.com/Techsolutions2024/strawberry/internal/service/render"
)

func TestSummary(t *testing.T) {
	tests := []struct {
		name    string
		payload render.Payload
		want    string
	}{
		{"raw", render.Payload{Seq: 1}, "frame 1: no model"},
		{"empty", render.Payload{Seq: 2, Annotated: true}, "frame 2: nothing detected"},
		{"counts", render.Payload{Seq: 3, Annotated: true, Records: []model.DetectionRecord{
			{Class: "unripe"}, {Class: "ripe"}, {Class: "ripe"},
		}}, "frame 3: 2 ripe, 1 unripe"},
	}
	for _, tt := range tests {
		if got := summary(tt.payload); got != tt.want {
			t.Errorf("%s: got %q, expected %q", tt.name, got, tt.want)
		}
	}
}

func TestRun_OpenFailureClosesStores(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "detections.db")
	t.Setenv("OUTPUT_DIR", dir)
	t.Setenv("LOG_DIR", filepath.Join(dir, "logs"))
	t.Setenv("LOG_POLICY", "recreate")
	t.Setenv("MODEL_PATH", filepath.Join(dir, "missing.onnx"))
	t.Setenv("DB_PATH", db)

	if code := run([]string{"-source", filepath.Join(dir, "missing.jpg")}); code != 1 {
		t.Fatalf("Expected exit code 1, got %d", code)
	}

	if _, err := os.Stat(db); err != nil {
		t.Fatalf("Expected the mirror database to exist: %v", err)
	}
	// the last connection to a WAL database removes the -wal file on close
	if _, err := os.Stat(db + "-wal"); !os.IsNotExist(err) {
		t.Errorf("Expected the database to be closed, -wal file still present: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "coords", "detections.csv")); err != nil {
		t.Errorf("Expected the detection log to be created: %v", err)
	}
}

func TestRun_BadFlag(t *testing.T) {
	if code := run([]string{"-nope"}); code != 2 {
		t.Errorf("Expected exit code 2, got %d", code)
	}
}
