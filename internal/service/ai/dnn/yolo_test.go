package dnn

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Techsolutions2024/strawberry/internal/service/ai"
	"gocv.io/x/gocv"
)

func TestReadClassNames(t *testing.T) {
	path := filepath.Join(t.TempDir(), "classes.txt")
	if err := os.WriteFile(path, []byte("ripe\n\n unripe \nflower\n"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	names, err := ReadClassNames(path)
	if err != nil {
		t.Fatalf("ReadClassNames failed: %v", err)
	}
	want := []string{"ripe", "unripe", "flower"}
	if len(names) != len(want) {
		t.Fatalf("Expected %v, got %v", want, names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("names[%d] = %q, expected %q", i, names[i], want[i])
		}
	}
}

func TestLoadClasses_SiblingNamesFile(t *testing.T) {
	dir := t.TempDir()
	weights := filepath.Join(dir, "best.onnx")
	if err := os.WriteFile(filepath.Join(dir, "best.names"), []byte("ripe\nunripe\n"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	names, err := loadClasses(ai.Descriptor{WeightsPath: weights})
	if err != nil {
		t.Fatalf("loadClasses failed: %v", err)
	}
	if len(names) != 2 || names[1] != "unripe" {
		t.Errorf("Unexpected names %v", names)
	}
}

func TestLoadClasses_NoFile(t *testing.T) {
	names, err := loadClasses(ai.Descriptor{WeightsPath: filepath.Join(t.TempDir(), "best.onnx")})
	if err != nil || names != nil {
		t.Errorf("Expected no names and no error, got %v, %v", names, err)
	}
}

func TestLoad_MissingWeights(t *testing.T) {
	if _, err := Load(ai.Descriptor{WeightsPath: filepath.Join(t.TempDir(), "none.onnx")}); err == nil {
		t.Error("Expected error for missing weights")
	}
}

func TestClassName_Fallback(t *testing.T) {
	n := &Net{classes: []string{"ripe"}}
	if got := n.className(0); got != "ripe" {
		t.Errorf("Expected ripe, got %s", got)
	}
	if got := n.className(3); got != "class_3" {
		t.Errorf("Expected class_3, got %s", got)
	}
}

func TestPadSquare_FillsWithGray(t *testing.T) {
	mat := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(255, 0, 0, 0), 2, 4, gocv.MatTypeCV8UC3)
	defer mat.Close()

	square := padSquare(mat)
	defer square.Close()

	if square.Rows() != 4 || square.Cols() != 4 {
		t.Fatalf("Expected 4x4, got %dx%d", square.Rows(), square.Cols())
	}
	tests := []struct {
		row, col int
		want     []uint8
	}{
		{0, 0, []uint8{255, 0, 0}},
		{1, 3, []uint8{255, 0, 0}},
		{2, 0, []uint8{114, 114, 114}},
		{3, 3, []uint8{114, 114, 114}},
	}
	for _, tt := range tests {
		got := square.GetVecbAt(tt.row, tt.col)
		if len(got) != 3 || got[0] != tt.want[0] || got[1] != tt.want[1] || got[2] != tt.want[2] {
			t.Errorf("Pixel (%d,%d): got %v, expected %v", tt.row, tt.col, got, tt.want)
		}
	}
}
