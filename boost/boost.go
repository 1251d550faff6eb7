// Package boost implements a gradient boosted tree classifier over
// flattened pixel features. It complements the neural classifier with a
// model trained on the same train/test arrays.
package boost

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/sudiptamani12/skin-cancer-project/tensor"
)

// Config holds the boosting hyperparameters.
type Config struct {
	// Rounds is the number of boosting iterations. Each round fits one
	// tree per class.
	Rounds int
	// MaxDepth limits the depth of every tree.
	MaxDepth int
	// LearningRate shrinks each tree's contribution.
	LearningRate float64
	// MinSamplesLeaf is the minimum sample count in a leaf.
	MinSamplesLeaf int
	// MaxFeatures caps the features scanned per split, 0 scans all.
	MaxFeatures int
	// Seed drives feature subsampling.
	Seed int64
}

// DefaultConfig returns the standard boosting settings.
func DefaultConfig() Config {
	return Config{
		Rounds:         100,
		MaxDepth:       6,
		LearningRate:   0.3,
		MinSamplesLeaf: 1,
	}
}

// Classifier is a softmax-objective gradient boosted tree ensemble.
type Classifier struct {
	config     Config
	numClasses int
	// trees[round][class]
	trees [][]*tree
}

// NewClassifier validates the config and returns an untrained classifier.
func NewClassifier(config Config) (*Classifier, error) {
	if config.Rounds <= 0 {
		return nil, fmt.Errorf("rounds must be positive, got %d", config.Rounds)
	}
	if config.MaxDepth <= 0 {
		return nil, fmt.Errorf("max depth must be positive, got %d", config.MaxDepth)
	}
	if config.LearningRate <= 0 || config.LearningRate > 1 {
		return nil, fmt.Errorf("learning rate must be in (0,1], got %f", config.LearningRate)
	}
	if config.MinSamplesLeaf <= 0 {
		return nil, fmt.Errorf("min samples per leaf must be positive, got %d", config.MinSamplesLeaf)
	}
	return &Classifier{config: config}, nil
}

// Flatten converts a (N, H, W, C) image tensor into a (N, H*W*C) feature
// matrix.
func Flatten(images *tensor.Tensor) (*mat.Dense, error) {
	if len(images.Shape) != 4 {
		return nil, fmt.Errorf("expected (N,H,W,C) tensor, got shape %v", images.Shape)
	}
	n := images.Shape[0]
	features := images.Shape[1] * images.Shape[2] * images.Shape[3]
	src := images.Float32Data()

	data := make([]float64, n*features)
	for i, v := range src {
		data[i] = float64(v)
	}
	return mat.NewDense(n, features, data), nil
}

// Fit trains the ensemble on the feature matrix against integer labels.
func (c *Classifier) Fit(x *mat.Dense, labels []int32, numClasses int) error {
	n, _ := x.Dims()
	if n == 0 {
		return fmt.Errorf("cannot fit on an empty matrix")
	}
	if len(labels) != n {
		return fmt.Errorf("labels length %d does not match %d rows", len(labels), n)
	}
	if numClasses < 2 {
		return fmt.Errorf("need at least 2 classes, got %d", numClasses)
	}
	for i, y := range labels {
		if y < 0 || int(y) >= numClasses {
			return fmt.Errorf("label %d at row %d out of range [0,%d)", y, i, numClasses)
		}
	}
	c.numClasses = numClasses
	c.trees = nil

	params := treeParams{
		maxDepth:       c.config.MaxDepth,
		minSamplesLeaf: c.config.MinSamplesLeaf,
		maxFeatures:    c.config.MaxFeatures,
		rng:            rand.New(rand.NewSource(c.config.Seed)),
	}
	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}

	// raw scores per sample and class, updated additively each round
	scores := make([]float64, n*numClasses)
	probs := make([]float64, n*numClasses)
	residual := make([]float64, n)
	for round := 0; round < c.config.Rounds; round++ {
		softmaxScores(scores, probs, n, numClasses)

		roundTrees := make([]*tree, numClasses)
		for k := 0; k < numClasses; k++ {
			for i := 0; i < n; i++ {
				target := 0.0
				if int(labels[i]) == k {
					target = 1.0
				}
				residual[i] = target - probs[i*numClasses+k]
			}
			tr := fitTree(x, residual, indices, params)
			roundTrees[k] = tr
			for i := 0; i < n; i++ {
				scores[i*numClasses+k] += c.config.LearningRate * tr.predict(x, i)
			}
		}
		c.trees = append(c.trees, roundTrees)
	}
	return nil
}

func softmaxScores(scores, probs []float64, n, k int) {
	for i := 0; i < n; i++ {
		row := scores[i*k : (i+1)*k]
		max := row[0]
		for _, v := range row[1:] {
			if v > max {
				max = v
			}
		}
		var sum float64
		for j, v := range row {
			e := math.Exp(v - max)
			probs[i*k+j] = e
			sum += e
		}
		for j := range row {
			probs[i*k+j] /= sum
		}
	}
}

// PredictProba returns the (N, numClasses) class probability matrix.
func (c *Classifier) PredictProba(x *mat.Dense) (*mat.Dense, error) {
	if c.trees == nil {
		return nil, fmt.Errorf("classifier has not been fitted")
	}
	n, _ := x.Dims()
	scores := make([]float64, n*c.numClasses)
	for _, roundTrees := range c.trees {
		for k, tr := range roundTrees {
			for i := 0; i < n; i++ {
				scores[i*c.numClasses+k] += c.config.LearningRate * tr.predict(x, i)
			}
		}
	}
	probs := make([]float64, len(scores))
	softmaxScores(scores, probs, n, c.numClasses)
	return mat.NewDense(n, c.numClasses, probs), nil
}

// Predict returns the most probable class per row.
func (c *Classifier) Predict(x *mat.Dense) ([]int32, error) {
	probs, err := c.PredictProba(x)
	if err != nil {
		return nil, err
	}
	n, k := probs.Dims()
	out := make([]int32, n)
	for i := 0; i < n; i++ {
		best := 0
		for j := 1; j < k; j++ {
			if probs.At(i, j) > probs.At(i, best) {
				best = j
			}
		}
		out[i] = int32(best)
	}
	return out, nil
}

// NumTrees returns the total number of fitted trees.
func (c *Classifier) NumTrees() int {
	total := 0
	for _, roundTrees := range c.trees {
		total += len(roundTrees)
	}
	return total
}
