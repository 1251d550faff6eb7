package training

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func assertFile(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("expected %s to exist: %v", path, err)
	}
	if info.Size() == 0 {
		t.Errorf("expected %s to be non-empty", path)
	}
}

func TestSaveTrainingCurves(t *testing.T) {
	h := &History{
		TrainLoss:     []float64{1.1, 0.9, 0.7},
		TrainAccuracy: []float64{0.4, 0.55, 0.7},
		ValLoss:       []float64{1.2, 1.0, 0.9},
		ValAccuracy:   []float64{0.35, 0.5, 0.6},
		EpochTimes:    []time.Duration{time.Second, time.Second, time.Second},
		TotalTime:     3 * time.Second,
	}
	dir := filepath.Join(t.TempDir(), "plots")
	if err := SaveTrainingCurves(h, dir); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	assertFile(t, filepath.Join(dir, "loss.png"))
	assertFile(t, filepath.Join(dir, "accuracy.png"))
}

func TestSaveTrainingCurvesWithoutValidation(t *testing.T) {
	h := &History{
		TrainLoss:     []float64{1.0, 0.8},
		TrainAccuracy: []float64{0.5, 0.6},
	}
	dir := t.TempDir()
	if err := SaveTrainingCurves(h, dir); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	assertFile(t, filepath.Join(dir, "loss.png"))
}

func TestSaveConfusionHeatmap(t *testing.T) {
	cm := filledMatrix(t)
	path := filepath.Join(t.TempDir(), "confusion.png")
	if err := SaveConfusionHeatmap(cm, []string{"benign", "malignant", "precancerous"}, path); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	assertFile(t, path)
}

func TestSaveClassDistribution(t *testing.T) {
	dist := map[string]int{"benign": 10, "malignant": 7, "precancerous": 3}
	path := filepath.Join(t.TempDir(), "distribution.png")
	classes := []string{"benign", "malignant", "precancerous"}
	if err := SaveClassDistribution(dist, classes, path); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	assertFile(t, path)
}
