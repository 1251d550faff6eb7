package boost

import (
	"math"
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/sudiptamani12/skin-cancer-project/tensor"
)

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name   string
		config Config
	}{
		{"zero rounds", Config{Rounds: 0, MaxDepth: 3, LearningRate: 0.3, MinSamplesLeaf: 1}},
		{"zero depth", Config{Rounds: 10, MaxDepth: 0, LearningRate: 0.3, MinSamplesLeaf: 1}},
		{"bad learning rate", Config{Rounds: 10, MaxDepth: 3, LearningRate: 1.5, MinSamplesLeaf: 1}},
		{"zero leaf size", Config{Rounds: 10, MaxDepth: 3, LearningRate: 0.3, MinSamplesLeaf: 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewClassifier(tt.config); err == nil {
				t.Error("expected config validation error, got nil")
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	c := DefaultConfig()
	if c.Rounds != 100 {
		t.Errorf("expected 100 rounds, got %d", c.Rounds)
	}
	if c.MaxDepth != 6 {
		t.Errorf("expected max depth 6, got %d", c.MaxDepth)
	}
	if c.LearningRate != 0.3 {
		t.Errorf("expected learning rate 0.3, got %f", c.LearningRate)
	}
}

// separableData builds three well-separated clusters in two features.
func separableData(n int, seed int64) (*mat.Dense, []int32) {
	rng := rand.New(rand.NewSource(seed))
	centers := [][2]float64{{0, 0}, {5, 0}, {0, 5}}
	data := make([]float64, n*2)
	labels := make([]int32, n)
	for i := 0; i < n; i++ {
		k := i % 3
		labels[i] = int32(k)
		data[i*2] = centers[k][0] + rng.NormFloat64()*0.3
		data[i*2+1] = centers[k][1] + rng.NormFloat64()*0.3
	}
	return mat.NewDense(n, 2, data), labels
}

func TestFitAndPredictSeparable(t *testing.T) {
	x, labels := separableData(60, 1)
	c, err := NewClassifier(Config{Rounds: 20, MaxDepth: 3, LearningRate: 0.3, MinSamplesLeaf: 1})
	if err != nil {
		t.Fatalf("failed to create classifier: %v", err)
	}
	if err := c.Fit(x, labels, 3); err != nil {
		t.Fatalf("fit failed: %v", err)
	}

	preds, err := c.Predict(x)
	if err != nil {
		t.Fatalf("predict failed: %v", err)
	}
	correct := 0
	for i, p := range preds {
		if p == labels[i] {
			correct++
		}
	}
	accuracy := float64(correct) / float64(len(labels))
	if accuracy < 0.9 {
		t.Errorf("expected training accuracy above 0.9 on separable data, got %f", accuracy)
	}
	if c.NumTrees() != 20*3 {
		t.Errorf("expected 60 trees, got %d", c.NumTrees())
	}
}

func TestPredictProbaRowsSumToOne(t *testing.T) {
	x, labels := separableData(30, 2)
	c, err := NewClassifier(Config{Rounds: 5, MaxDepth: 2, LearningRate: 0.3, MinSamplesLeaf: 1})
	if err != nil {
		t.Fatalf("failed to create classifier: %v", err)
	}
	if err := c.Fit(x, labels, 3); err != nil {
		t.Fatalf("fit failed: %v", err)
	}

	probs, err := c.PredictProba(x)
	if err != nil {
		t.Fatalf("predict proba failed: %v", err)
	}
	n, k := probs.Dims()
	if k != 3 {
		t.Fatalf("expected 3 columns, got %d", k)
	}
	for i := 0; i < n; i++ {
		var sum float64
		for j := 0; j < k; j++ {
			p := probs.At(i, j)
			if p < 0 || p > 1 {
				t.Errorf("row %d: probability %f outside [0,1]", i, p)
			}
			sum += p
		}
		if math.Abs(sum-1) > 1e-9 {
			t.Errorf("row %d: expected probabilities to sum to 1, got %f", i, sum)
		}
	}
}

func TestFitValidation(t *testing.T) {
	c, err := NewClassifier(DefaultConfig())
	if err != nil {
		t.Fatalf("failed to create classifier: %v", err)
	}
	x := mat.NewDense(2, 2, []float64{1, 2, 3, 4})

	if err := c.Fit(x, []int32{0}, 3); err == nil {
		t.Error("expected error for label count mismatch, got nil")
	}
	if err := c.Fit(x, []int32{0, 3}, 3); err == nil {
		t.Error("expected error for out-of-range label, got nil")
	}
	if err := c.Fit(x, []int32{0, 1}, 1); err == nil {
		t.Error("expected error for single class, got nil")
	}
}

func TestPredictBeforeFit(t *testing.T) {
	c, err := NewClassifier(DefaultConfig())
	if err != nil {
		t.Fatalf("failed to create classifier: %v", err)
	}
	x := mat.NewDense(1, 2, []float64{0, 0})
	if _, err := c.Predict(x); err == nil {
		t.Error("expected error before fit, got nil")
	}
}

func TestFlatten(t *testing.T) {
	data := make([]float32, 2*4*4*3)
	for i := range data {
		data[i] = float32(i)
	}
	images, err := tensor.NewTensor([]int{2, 4, 4, 3}, tensor.Float32, data)
	if err != nil {
		t.Fatalf("failed to create tensor: %v", err)
	}

	m, err := Flatten(images)
	if err != nil {
		t.Fatalf("flatten failed: %v", err)
	}
	rows, cols := m.Dims()
	if rows != 2 || cols != 48 {
		t.Fatalf("expected 2x48 matrix, got %dx%d", rows, cols)
	}
	if m.At(0, 0) != 0 || m.At(1, 0) != 48 {
		t.Errorf("expected row-major flattening, got %f/%f", m.At(0, 0), m.At(1, 0))
	}

	flat, err := tensor.NewTensor([]int{4}, tensor.Float32, []float32{1, 2, 3, 4})
	if err != nil {
		t.Fatalf("failed to create tensor: %v", err)
	}
	if _, err := Flatten(flat); err == nil {
		t.Error("expected error for non-4D tensor, got nil")
	}
}

func TestDecisionStumpSplitsOnBestFeature(t *testing.T) {
	// feature 1 perfectly separates the target, feature 0 is constant
	x := mat.NewDense(4, 2, []float64{
		1, 0,
		1, 0,
		1, 10,
		1, 10,
	})
	target := []float64{-1, -1, 1, 1}
	tr := fitTree(x, target, []int{0, 1, 2, 3}, treeParams{maxDepth: 1, minSamplesLeaf: 1})

	if tr.root.leaf {
		t.Fatal("expected a split at the root")
	}
	if tr.root.feature != 1 {
		t.Errorf("expected split on feature 1, got %d", tr.root.feature)
	}
	if tr.predict(x, 0) != -1 || tr.predict(x, 2) != 1 {
		t.Errorf("expected leaf values -1/1, got %f/%f", tr.predict(x, 0), tr.predict(x, 2))
	}
}
