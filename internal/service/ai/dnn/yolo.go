// Package dnn runs YOLOv8 ONNX models through OpenCV's DNN module.
package dnn

import (
	"bufio"
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Techsolutions2024/strawberry/internal/model"
	"github.com/Techsolutions2024/strawberry/internal/service/ai"
	"gocv.io/x/gocv"
)

const (
	// InputSize is the square input YOLOv8 exports use.
	InputSize = 640
	// ScoreFloor drops anchors before NMS; the facade applies the user threshold afterwards.
	ScoreFloor = 0.05
	// NMSThreshold is the IoU above which overlapping boxes are suppressed.
	NMSThreshold = 0.45
)

// Net is a loaded YOLOv8 network. gocv.Net is not safe for concurrent use, so
// inference is serialized.
type Net struct {
	mu      sync.Mutex
	net     gocv.Net
	classes []string
}

// Load reads the ONNX weights and class names. It satisfies ai.Loader.
func Load(d ai.Descriptor) (ai.Model, error) {
	if _, err := os.Stat(d.WeightsPath); err != nil {
		return nil, fmt.Errorf("model file not found: %w", err)
	}

	classes, err := loadClasses(d)
	if err != nil {
		return nil, err
	}

	net := gocv.ReadNetFromONNX(d.WeightsPath)
	if net.Empty() {
		return nil, fmt.Errorf("failed to load network from %s", d.WeightsPath)
	}
	errBackend := net.SetPreferableBackend(gocv.NetBackendDefault)
	errTarget := net.SetPreferableTarget(gocv.NetTargetCPU)
	if errBackend != nil || errTarget != nil {
		net.Close()
		return nil, fmt.Errorf("failed to set preferable backend or target")
	}

	return &Net{net: net, classes: classes}, nil
}

// Classes returns the class names in id order.
func (n *Net) Classes() []string {
	return n.classes
}

// Infer runs one forward pass. Boxes are returned in img coordinates, ordered by
// NMS (highest score first).
func (n *Net) Infer(ctx context.Context, img image.Image) ([]model.Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, fmt.Errorf("failed to convert image: %w", err)
	}
	defer mat.Close()

	square := padSquare(mat)
	defer square.Close()

	scale := float32(square.Rows()) / InputSize
	blob := gocv.BlobFromImage(square, 1.0/255.0, image.Pt(InputSize, InputSize), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	n.mu.Lock()
	n.net.SetInput(blob, "")
	output := n.net.Forward("")
	n.mu.Unlock()
	defer output.Close()

	return n.decode(&output, scale)
}

// padColor is the letterbox gray the YOLO models were trained with.
var padColor = gocv.NewScalar(114, 114, 114, 0)

// padSquare copies mat into the top-left corner of a gray square so the
// 640x640 blob keeps the aspect ratio. The caller closes the result.
func padSquare(mat gocv.Mat) gocv.Mat {
	rows, cols := mat.Rows(), mat.Cols()
	side := max(rows, cols)
	square := gocv.NewMatWithSizeFromScalar(padColor, side, side, gocv.MatTypeCV8UC3)
	roi := square.Region(image.Rect(0, 0, cols, rows))
	mat.CopyTo(&roi)
	roi.Close()
	return square
}

// decode reads a [1, 4+classes, anchors] tensor: cx, cy, w, h then one score per class.
func (n *Net) decode(output *gocv.Mat, scale float32) ([]model.Detection, error) {
	dims := output.Size()
	if len(dims) != 3 || dims[1] < 5 {
		return nil, fmt.Errorf("unexpected output shape %v", dims)
	}
	numClasses := dims[1] - 4
	anchors := dims[2]

	var (
		boxes  []image.Rectangle
		scores []float32
		ids    []int
	)
	for a := 0; a < anchors; a++ {
		best, bestID := float32(0), -1
		for c := 0; c < numClasses; c++ {
			if s := output.GetFloatAt3(0, 4+c, a); s > best {
				best, bestID = s, c
			}
		}
		if bestID < 0 || best < ScoreFloor {
			continue
		}

		cx := output.GetFloatAt3(0, 0, a)
		cy := output.GetFloatAt3(0, 1, a)
		w := output.GetFloatAt3(0, 2, a)
		h := output.GetFloatAt3(0, 3, a)

		boxes = append(boxes, image.Rect(
			int((cx-w/2)*scale),
			int((cy-h/2)*scale),
			int((cx+w/2)*scale),
			int((cy+h/2)*scale),
		))
		scores = append(scores, best)
		ids = append(ids, bestID)
	}

	if len(boxes) == 0 {
		return nil, nil
	}

	indices := gocv.NMSBoxes(boxes, scores, ScoreFloor, NMSThreshold)
	detections := make([]model.Detection, 0, len(indices))
	for _, i := range indices {
		r := boxes[i]
		detections = append(detections, model.Detection{
			ClassID:    ids[i],
			Class:      n.className(ids[i]),
			Confidence: float64(scores[i]),
			Box:        model.Box{X1: r.Min.X, Y1: r.Min.Y, X2: r.Max.X, Y2: r.Max.Y},
		})
	}
	return detections, nil
}

func (n *Net) className(id int) string {
	if id >= 0 && id < len(n.classes) && n.classes[id] != "" {
		return n.classes[id]
	}
	return fmt.Sprintf("class_%d", id)
}

// Close releases the network.
func (n *Net) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.net.Close()
}

// loadClasses reads one class name per line. Without an explicit path it looks for
// "<weights>.names" or "classes.txt" next to the weights and falls back to no names.
func loadClasses(d ai.Descriptor) ([]string, error) {
	path := d.ClassesPath
	if path == "" {
		base := strings.TrimSuffix(d.WeightsPath, filepath.Ext(d.WeightsPath))
		for _, candidate := range []string{base + ".names", filepath.Join(filepath.Dir(d.WeightsPath), "classes.txt")} {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
		if path == "" {
			return nil, nil
		}
	}
	return ReadClassNames(path)
}

// ReadClassNames parses a names file, one class per line. Blank lines are skipped.
func ReadClassNames(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open class names: %w", err)
	}
	defer f.Close()

	var names []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if name := strings.TrimSpace(scanner.Text()); name != "" {
			names = append(names, name)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read class names: %w", err)
	}
	return names, nil
}
