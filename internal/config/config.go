package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Log policies decide what happens to an existing detection log when a run starts.
const (
	PolicyAppend   = "append"
	PolicyRecreate = "recreate"
)

var ErrInvalidConfig = errors.New("invalid configuration")

type Config struct {
	Port     int
	Password string

	ModelPath   string
	ClassesPath string
	Source      string // camera index, video path or image path
	AutoStart   bool   // open Source when the server starts

	ConfidenceThreshold float64
	WorkingSize         int // frames are resized to WorkingSize x WorkingSize before detection
	TickInterval        time.Duration

	OutputDir    string
	LogFile      string // CSV detection log
	CropDir      string
	LogPolicy    string // append | recreate, required
	CenterPoints bool
	SaveCrops    bool
	CropFormat   string // jpg | png | webp
	CropQuality  int
	ThumbWidth   int
	ThumbHeight  int

	DBPath string // optional sqlite mirror of the detection log

	ViewerWorkers int // goroutines encoding payloads for websocket viewers
	ViewerQuality int // JPEG quality of frames sent to viewers

	LogDirectory   string
	LogMaxSizeMB   int
	MetricsEnabled bool
}

// Load reads configuration from the environment, after loading an optional .env file.
func Load() *Config {
	// a missing .env is fine, plain environment variables still apply
	_ = godotenv.Load()

	outputDir := getEnv("OUTPUT_DIR", "results")
	return &Config{
		Port:                getEnvAsInt("PORT", 8080),
		Password:            getEnv("PASSWORD", "strawberry"),
		ModelPath:           getEnv("MODEL_PATH", filepath.Join(".", "models", "best.onnx")),
		ClassesPath:         getEnv("CLASSES_PATH", ""),
		Source:              getEnv("SOURCE", "0"),
		AutoStart:           getEnvAsBool("AUTO_START", false),
		ConfidenceThreshold: getEnvAsFloat("CONFIDENCE_THRESHOLD", 0.25),
		WorkingSize:         getEnvAsInt("WORKING_SIZE", 640),
		TickInterval:        time.Duration(getEnvAsInt("TICK_INTERVAL_MS", 30)) * time.Millisecond,
		OutputDir:           outputDir,
		LogFile:             getEnv("LOG_FILE", filepath.Join(outputDir, "coords", "detections.csv")),
		CropDir:             getEnv("CROP_DIR", filepath.Join(outputDir, "images")),
		LogPolicy:           strings.ToLower(getEnv("LOG_POLICY", "")),
		CenterPoints:        getEnvAsBool("CENTER_POINTS", true),
		SaveCrops:           getEnvAsBool("SAVE_CROPS", true),
		CropFormat:          strings.ToLower(getEnv("CROP_FORMAT", "jpg")),
		CropQuality:         getEnvAsInt("CROP_QUALITY", 90),
		ThumbWidth:          getEnvAsInt("THUMB_WIDTH", 160),
		ThumbHeight:         getEnvAsInt("THUMB_HEIGHT", 120),
		DBPath:              getEnv("DB_PATH", ""),
		ViewerWorkers:       getEnvAsInt("VIEWER_WORKERS", 2),
		ViewerQuality:       getEnvAsInt("VIEWER_QUALITY", 75),
		LogDirectory:        getEnv("LOG_DIR", filepath.Join(".", "logs")),
		LogMaxSizeMB:        getEnvAsInt("LOG_MAX_SIZE_MB", 10),
		MetricsEnabled:      getEnvAsBool("METRICS_ENABLED", true),
	}
}

// Validate checks the values a run depends on. The log policy has no default and must be set.
func (c *Config) Validate() error {
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		return fmt.Errorf("%w: confidence threshold %v outside [0,1]", ErrInvalidConfig, c.ConfidenceThreshold)
	}
	if c.LogPolicy != PolicyAppend && c.LogPolicy != PolicyRecreate {
		return fmt.Errorf("%w: LOG_POLICY must be %q or %q, got %q", ErrInvalidConfig, PolicyAppend, PolicyRecreate, c.LogPolicy)
	}
	switch c.CropFormat {
	case "jpg", "png", "webp":
	default:
		return fmt.Errorf("%w: unsupported crop format %q", ErrInvalidConfig, c.CropFormat)
	}
	if c.WorkingSize <= 0 {
		return fmt.Errorf("%w: working size must be positive", ErrInvalidConfig)
	}
	if c.ThumbWidth <= 0 || c.ThumbHeight <= 0 {
		return fmt.Errorf("%w: thumbnail size must be positive", ErrInvalidConfig)
	}
	if c.TickInterval <= 0 {
		return fmt.Errorf("%w: tick interval must be positive", ErrInvalidConfig)
	}
	if c.LogFile == "" {
		return fmt.Errorf("%w: LOG_FILE is empty", ErrInvalidConfig)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
