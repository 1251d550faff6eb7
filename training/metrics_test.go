package training

import (
	"math"
	"strings"
	"testing"
)

func filledMatrix(t *testing.T) *ConfusionMatrix {
	t.Helper()
	cm := NewConfusionMatrix(3)
	// class 0: 4 correct, 1 predicted as 1
	// class 1: 3 correct, 2 predicted as 2
	// class 2: 5 correct
	preds := []int32{0, 0, 0, 0, 1, 1, 1, 1, 2, 2, 2, 2, 2, 2, 2}
	labels := []int32{0, 0, 0, 0, 0, 1, 1, 1, 1, 1, 2, 2, 2, 2, 2}
	if err := cm.Update(preds, labels); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	return cm
}

func TestConfusionMatrixCounts(t *testing.T) {
	cm := filledMatrix(t)
	if cm.TotalSamples != 15 {
		t.Errorf("expected 15 samples, got %d", cm.TotalSamples)
	}
	if cm.Matrix[0][0] != 4 || cm.Matrix[0][1] != 1 {
		t.Errorf("unexpected class 0 row: %v", cm.Matrix[0])
	}
	if cm.Matrix[1][1] != 3 || cm.Matrix[1][2] != 2 {
		t.Errorf("unexpected class 1 row: %v", cm.Matrix[1])
	}
	if cm.Matrix[2][2] != 5 {
		t.Errorf("unexpected class 2 row: %v", cm.Matrix[2])
	}

	// row sums equal per-class support
	for c := 0; c < 3; c++ {
		if cm.Support(c) != 5 {
			t.Errorf("class %d: expected support 5, got %d", c, cm.Support(c))
		}
	}
}

func TestConfusionMatrixAccuracy(t *testing.T) {
	cm := filledMatrix(t)
	want := 12.0 / 15.0
	if math.Abs(cm.Accuracy()-want) > 1e-9 {
		t.Errorf("expected accuracy %f, got %f", want, cm.Accuracy())
	}
}

func TestPrecisionRecallF1(t *testing.T) {
	cm := filledMatrix(t)

	// class 2: 5 true positives, 2 false positives from class 1
	if p := cm.Precision(2); math.Abs(p-5.0/7.0) > 1e-9 {
		t.Errorf("expected precision 5/7, got %f", p)
	}
	if r := cm.Recall(2); math.Abs(r-1.0) > 1e-9 {
		t.Errorf("expected recall 1, got %f", r)
	}
	p, r := 5.0/7.0, 1.0
	wantF1 := 2 * p * r / (p + r)
	if f := cm.F1(2); math.Abs(f-wantF1) > 1e-9 {
		t.Errorf("expected f1 %f, got %f", wantF1, f)
	}
}

func TestConfusionMatrixValidation(t *testing.T) {
	cm := NewConfusionMatrix(3)
	if err := cm.Update([]int32{0, 1}, []int32{0}); err == nil {
		t.Error("expected error for length mismatch, got nil")
	}
	if err := cm.Update([]int32{3}, []int32{0}); err == nil {
		t.Error("expected error for out-of-range prediction, got nil")
	}
	if err := cm.Update([]int32{0}, []int32{-1}); err == nil {
		t.Error("expected error for out-of-range label, got nil")
	}
}

func TestConfusionMatrixReset(t *testing.T) {
	cm := filledMatrix(t)
	cm.Reset()
	if cm.TotalSamples != 0 {
		t.Errorf("expected 0 samples after reset, got %d", cm.TotalSamples)
	}
	if cm.Accuracy() != 0 {
		t.Errorf("expected accuracy 0 after reset, got %f", cm.Accuracy())
	}
}

func TestClassificationReport(t *testing.T) {
	cm := filledMatrix(t)
	report := ClassificationReport(cm, []string{"benign", "malignant", "precancerous"})

	for _, want := range []string{"benign", "malignant", "precancerous", "accuracy", "macro avg", "weighted avg", "support"} {
		if !strings.Contains(report, want) {
			t.Errorf("expected report to contain %q:\n%s", want, report)
		}
	}
	if !strings.Contains(report, "0.8000") {
		t.Errorf("expected report to contain accuracy 0.8000:\n%s", report)
	}
}

func TestClassificationReportNameFallback(t *testing.T) {
	cm := filledMatrix(t)
	report := ClassificationReport(cm, nil)
	if !strings.Contains(report, "class 0") {
		t.Errorf("expected generated class names:\n%s", report)
	}
}
