// Command detect runs the ripeness pipeline without the web viewer: it opens one
// source, processes it until the source ends or the process is interrupted, and
// writes the detection log and crops.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/Techsolutions2024/strawberry/internal/app"
	"github.com/Techsolutions2024/strawberry/internal/config"
	"github.com/Techsolutions2024/strawberry/internal/logger"
	"github.com/Techsolutions2024/strawberry/internal/metrics"
	"github.com/Techsolutions2024/strawberry/internal/service/capture"
	"github.com/Techsolutions2024/strawberry/internal/service/pipeline"
	"github.com/Techsolutions2024/strawberry/internal/service/render"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// run returns the exit code, so deferred cleanup has run before the process exits.
func run(args []string) int {
	cfg := config.Load()

	flags := flag.NewFlagSet("detect", flag.ContinueOnError)
	source := flags.String("source", cfg.Source, "Camera index, video file or image file")
	flags.StringVar(&cfg.ModelPath, "model", cfg.ModelPath, "ONNX model weights")
	flags.StringVar(&cfg.ClassesPath, "classes", cfg.ClassesPath, "Class names file, one per line")
	flags.Float64Var(&cfg.ConfidenceThreshold, "threshold", cfg.ConfidenceThreshold, "Confidence threshold in [0,1]")
	flags.StringVar(&cfg.LogPolicy, "policy", cfg.LogPolicy, "Existing detection log: append or recreate")
	flags.BoolVar(&cfg.SaveCrops, "crops", cfg.SaveCrops, "Save crop thumbnails")
	flags.StringVar(&cfg.DBPath, "db", cfg.DBPath, "Optional SQLite mirror of the detection log")
	if err := flags.Parse(args); err != nil {
		return 2
	}
	cfg.LogPolicy = strings.ToLower(cfg.LogPolicy)

	d, err := capture.ParseDescriptor(*source)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid source: %v\n", err)
		return 2
	}

	lg := logger.NewLogger(cfg)
	defer lg.Close()

	p, err := app.NewPipeline(cfg, lg, metrics.New())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to set up pipeline: %v\n", err)
		return 1
	}
	defer func() {
		if err := p.Close(); err != nil {
			lg.Error("Closing pipeline: %v", err)
		}
	}()

	c := p.Controller(pipeline.PresenterFunc(func(pl render.Payload) {
		fmt.Println(summary(pl))
	}))
	p.LoadConfiguredModel(c)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := c.OpenSource(d); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open %s: %v\n", d, err)
		return 1
	}

	poll := time.NewTicker(100 * time.Millisecond)
	defer poll.Stop()
	for c.State() != pipeline.StateIdle {
		select {
		case <-ctx.Done():
			c.Stop()
		case <-poll.C:
		}
	}

	st := c.Status()
	if st.LastError != "" {
		fmt.Fprintf(os.Stderr, "Last error: %s\n", st.LastError)
	}
	fmt.Printf("Detections written to %s\n", p.Sink.LogPath())
	return 0
}

// summary renders one tick as "frame 12: 2 ripe, 1 unripe".
func summary(pl render.Payload) string {
	if !pl.Annotated {
		return fmt.Sprintf("frame %d: no model", pl.Seq)
	}
	if len(pl.Records) == 0 {
		return fmt.Sprintf("frame %d: nothing detected", pl.Seq)
	}
	counts := make(map[string]int)
	for _, rec := range pl.Records {
		counts[rec.Class]++
	}
	classes := make([]string, 0, len(counts))
	for class := range counts {
		classes = append(classes, class)
	}
	sort.Strings(classes)

	parts := make([]string, 0, len(classes))
	for _, class := range classes {
		parts = append(parts, fmt.Sprintf("%d %s", counts[class], class))
	}
	return fmt.Sprintf("frame %d: %s", pl.Seq, strings.Join(parts, ", "))
}
