package augment

import (
	"math"
	"math/rand"
	"testing"

	"github.com/sudiptamani12/skin-cancer-project/tensor"
)

func randomImages(t *testing.T, n, size int, seed int64) *tensor.Tensor {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	data := make([]float32, n*size*size*3)
	for i := range data {
		data[i] = rng.Float32()
	}
	images, err := tensor.NewTensor([]int{n, size, size, 3}, tensor.Float32, data)
	if err != nil {
		t.Fatalf("failed to create tensor: %v", err)
	}
	return images
}

func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy()
	if p.RotationRange != 20 {
		t.Errorf("expected rotation range 20, got %f", p.RotationRange)
	}
	if p.WidthShiftRange != 0.2 || p.HeightShiftRange != 0.2 {
		t.Errorf("expected shift ranges 0.2, got %f/%f", p.WidthShiftRange, p.HeightShiftRange)
	}
	if p.ShearRange != 0.2 || p.ZoomRange != 0.2 {
		t.Errorf("expected shear and zoom 0.2, got %f/%f", p.ShearRange, p.ZoomRange)
	}
	if !p.HorizontalFlip {
		t.Error("expected horizontal flip enabled")
	}
	if p.FillMode != "nearest" {
		t.Errorf("expected fill mode nearest, got %q", p.FillMode)
	}
}

func TestNewValidation(t *testing.T) {
	if _, err := New(Policy{FillMode: "reflect"}, 1); err == nil {
		t.Error("expected error for unsupported fill mode, got nil")
	}
	if _, err := New(Policy{ZoomRange: 1.5}, 1); err == nil {
		t.Error("expected error for zoom range >= 1, got nil")
	}
}

func TestFitComputesChannelStats(t *testing.T) {
	// two 1x1 images: channel values {0, 1}, {0.5, 0.5}, {1, 0}
	data := []float32{0, 0.5, 1, 1, 0.5, 0}
	images, err := tensor.NewTensor([]int{2, 1, 1, 3}, tensor.Float32, data)
	if err != nil {
		t.Fatalf("failed to create tensor: %v", err)
	}

	a, err := New(DefaultPolicy(), 1)
	if err != nil {
		t.Fatalf("failed to create augmenter: %v", err)
	}
	if a.Fitted() {
		t.Error("expected augmenter to start unfitted")
	}
	if err := a.Fit(images); err != nil {
		t.Fatalf("fit failed: %v", err)
	}

	mean, stddev, err := a.ChannelStats()
	if err != nil {
		t.Fatalf("channel stats failed: %v", err)
	}
	wantMean := []float64{0.5, 0.5, 0.5}
	wantSD := []float64{0.5, 0, 0.5}
	for c := range wantMean {
		if math.Abs(mean[c]-wantMean[c]) > 1e-9 {
			t.Errorf("channel %d: expected mean %f, got %f", c, wantMean[c], mean[c])
		}
		if math.Abs(stddev[c]-wantSD[c]) > 1e-9 {
			t.Errorf("channel %d: expected stddev %f, got %f", c, wantSD[c], stddev[c])
		}
	}
}

func TestChannelStatsBeforeFit(t *testing.T) {
	a, err := New(DefaultPolicy(), 1)
	if err != nil {
		t.Fatalf("failed to create augmenter: %v", err)
	}
	if _, _, err := a.ChannelStats(); err == nil {
		t.Error("expected error before fit, got nil")
	}
}

func TestApplyPreservesShapeAndRange(t *testing.T) {
	a, err := New(DefaultPolicy(), 7)
	if err != nil {
		t.Fatalf("failed to create augmenter: %v", err)
	}
	images := randomImages(t, 1, 16, 3)
	sample := images.Float32Data()

	out, err := a.Apply(sample, 16, 16)
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	if len(out) != len(sample) {
		t.Fatalf("expected %d values, got %d", len(sample), len(out))
	}
	for i, v := range out {
		if v < 0 || v > 1 {
			t.Fatalf("value %d outside [0,1]: %f", i, v)
		}
	}
}

func TestApplySizeMismatch(t *testing.T) {
	a, err := New(DefaultPolicy(), 1)
	if err != nil {
		t.Fatalf("failed to create augmenter: %v", err)
	}
	if _, err := a.Apply(make([]float32, 10), 16, 16); err == nil {
		t.Error("expected error for size mismatch, got nil")
	}
}

func TestApplyIdentityPolicy(t *testing.T) {
	// with all ranges disabled the sample passes through unchanged up to
	// 8-bit quantization
	a, err := New(Policy{}, 1)
	if err != nil {
		t.Fatalf("failed to create augmenter: %v", err)
	}
	images := randomImages(t, 1, 8, 9)
	sample := images.Float32Data()

	out, err := a.Apply(sample, 8, 8)
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	for i := range sample {
		if math.Abs(float64(out[i]-sample[i])) > 1.0/255+1e-6 {
			t.Errorf("value %d changed beyond quantization: %f vs %f", i, sample[i], out[i])
		}
	}
}

func TestApplyBatch(t *testing.T) {
	a, err := New(DefaultPolicy(), 11)
	if err != nil {
		t.Fatalf("failed to create augmenter: %v", err)
	}
	images := randomImages(t, 3, 12, 5)

	out, err := a.ApplyBatch(images)
	if err != nil {
		t.Fatalf("apply batch failed: %v", err)
	}
	for i, dim := range images.Shape {
		if out.Shape[i] != dim {
			t.Fatalf("expected shape %v, got %v", images.Shape, out.Shape)
		}
	}
}

func TestStandardize(t *testing.T) {
	data := []float32{0, 0.5, 1, 1, 0.5, 0}
	images, err := tensor.NewTensor([]int{2, 1, 1, 3}, tensor.Float32, data)
	if err != nil {
		t.Fatalf("failed to create tensor: %v", err)
	}

	a, err := New(DefaultPolicy(), 1)
	if err != nil {
		t.Fatalf("failed to create augmenter: %v", err)
	}
	if err := a.Standardize(images); err == nil {
		t.Error("expected error before fit, got nil")
	}
	if err := a.Fit(images); err != nil {
		t.Fatalf("fit failed: %v", err)
	}
	if err := a.Standardize(images); err != nil {
		t.Fatalf("standardize failed: %v", err)
	}

	// red channel had values {0, 1}, mean 0.5, sd 0.5
	got := images.Float32Data()
	if math.Abs(float64(got[0])+1) > 1e-6 || math.Abs(float64(got[3])-1) > 1e-6 {
		t.Errorf("expected red channel {-1, 1}, got {%f, %f}", got[0], got[3])
	}
	// green channel was constant, sd 0 falls back to divide by 1
	if got[1] != 0 || got[4] != 0 {
		t.Errorf("expected green channel {0, 0}, got {%f, %f}", got[1], got[4])
	}
}
