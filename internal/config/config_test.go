package config

import (
	"errors"
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		ConfidenceThreshold: 0.25,
		WorkingSize:         640,
		TickInterval:        30 * time.Millisecond,
		LogFile:             "results/coords/detections.csv",
		LogPolicy:           PolicyAppend,
		CropFormat:          "jpg",
		ThumbWidth:          160,
		ThumbHeight:         120,
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("OUTPUT_DIR", "out")
	t.Setenv("LOG_POLICY", "Recreate")

	cfg := Load()

	if cfg.ConfidenceThreshold != 0.25 {
		t.Errorf("Expected threshold 0.25, got %v", cfg.ConfidenceThreshold)
	}
	if cfg.TickInterval != 30*time.Millisecond {
		t.Errorf("Expected 30ms tick, got %v", cfg.TickInterval)
	}
	if cfg.LogFile != "out/coords/detections.csv" {
		t.Errorf("Expected log file under output dir, got %s", cfg.LogFile)
	}
	if cfg.CropDir != "out/images" {
		t.Errorf("Expected crop dir under output dir, got %s", cfg.CropDir)
	}
	if cfg.LogPolicy != PolicyRecreate {
		t.Errorf("Expected policy to be lowercased, got %s", cfg.LogPolicy)
	}
	if cfg.ThumbWidth != 160 || cfg.ThumbHeight != 120 {
		t.Errorf("Expected 160x120 thumbnails, got %dx%d", cfg.ThumbWidth, cfg.ThumbHeight)
	}
}

func TestLoad_InvalidNumbersFallBack(t *testing.T) {
	t.Setenv("CONFIDENCE_THRESHOLD", "high")
	t.Setenv("SAVE_CROPS", "maybe")

	cfg := Load()

	if cfg.ConfidenceThreshold != 0.25 {
		t.Errorf("Expected default threshold, got %v", cfg.ConfidenceThreshold)
	}
	if !cfg.SaveCrops {
		t.Error("Expected SaveCrops default true")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"missing policy", func(c *Config) { c.LogPolicy = "" }, true},
		{"unknown policy", func(c *Config) { c.LogPolicy = "overwrite" }, true},
		{"threshold above one", func(c *Config) { c.ConfidenceThreshold = 1.5 }, true},
		{"negative threshold", func(c *Config) { c.ConfidenceThreshold = -0.1 }, true},
		{"bad crop format", func(c *Config) { c.CropFormat = "gif" }, true},
		{"webp crops", func(c *Config) { c.CropFormat = "webp" }, false},
		{"zero working size", func(c *Config) { c.WorkingSize = 0 }, true},
		{"zero thumb", func(c *Config) { c.ThumbHeight = 0 }, true},
		{"zero tick", func(c *Config) { c.TickInterval = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidConfig) {
					t.Errorf("Expected ErrInvalidConfig, got %v", err)
				}
			} else if err != nil {
				t.Errorf("Unexpected error: %v", err)
			}
		})
	}
}
