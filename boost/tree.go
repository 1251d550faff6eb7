package boost

import (
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// node is one split or leaf of a regression tree.
type node struct {
	feature   int
	threshold float64
	left      *node
	right     *node
	value     float64
	leaf      bool
}

// tree is a depth-limited least-squares regression tree fit to gradients.
type tree struct {
	root *node
}

type treeParams struct {
	maxDepth       int
	minSamplesLeaf int
	maxFeatures    int
	rng            *rand.Rand
}

func fitTree(x *mat.Dense, target []float64, indices []int, p treeParams) *tree {
	return &tree{root: buildNode(x, target, indices, p, 0)}
}

func mean(target []float64, indices []int) float64 {
	var sum float64
	for _, i := range indices {
		sum += target[i]
	}
	return sum / float64(len(indices))
}

func buildNode(x *mat.Dense, target []float64, indices []int, p treeParams, depth int) *node {
	if depth >= p.maxDepth || len(indices) < 2*p.minSamplesLeaf {
		return &node{leaf: true, value: mean(target, indices)}
	}

	feature, threshold, ok := bestSplit(x, target, indices, p)
	if !ok {
		return &node{leaf: true, value: mean(target, indices)}
	}

	var left, right []int
	for _, i := range indices {
		if x.At(i, feature) <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	return &node{
		feature:   feature,
		threshold: threshold,
		left:      buildNode(x, target, left, p, depth+1),
		right:     buildNode(x, target, right, p, depth+1),
	}
}

// bestSplit scans candidate features for the threshold with the lowest
// residual sum of squares. Sorting each feature once lets every threshold
// be evaluated with prefix sums.
func bestSplit(x *mat.Dense, target []float64, indices []int, p treeParams) (feature int, threshold float64, ok bool) {
	_, cols := x.Dims()
	candidates := featureCandidates(cols, p)

	n := len(indices)
	var totalSum, totalSq float64
	for _, i := range indices {
		totalSum += target[i]
		totalSq += target[i] * target[i]
	}
	bestGain := 0.0
	baseRSS := totalSq - totalSum*totalSum/float64(n)

	type pair struct {
		value  float64
		target float64
	}
	pairs := make([]pair, n)
	for _, f := range candidates {
		for j, i := range indices {
			pairs[j] = pair{value: x.At(i, f), target: target[i]}
		}
		sort.Slice(pairs, func(a, b int) bool { return pairs[a].value < pairs[b].value })

		var leftSum, leftSq float64
		for j := 0; j < n-1; j++ {
			leftSum += pairs[j].target
			leftSq += pairs[j].target * pairs[j].target
			if pairs[j].value == pairs[j+1].value {
				continue
			}
			nl := j + 1
			nr := n - nl
			if nl < p.minSamplesLeaf || nr < p.minSamplesLeaf {
				continue
			}
			rightSum := totalSum - leftSum
			rightSq := totalSq - leftSq
			rss := (leftSq - leftSum*leftSum/float64(nl)) +
				(rightSq - rightSum*rightSum/float64(nr))
			gain := baseRSS - rss
			if gain > bestGain {
				bestGain = gain
				feature = f
				threshold = (pairs[j].value + pairs[j+1].value) / 2
				ok = true
			}
		}
	}
	return feature, threshold, ok
}

func featureCandidates(cols int, p treeParams) []int {
	if p.maxFeatures <= 0 || p.maxFeatures >= cols {
		all := make([]int, cols)
		for i := range all {
			all[i] = i
		}
		return all
	}
	return p.rng.Perm(cols)[:p.maxFeatures]
}

func (t *tree) predict(x *mat.Dense, row int) float64 {
	n := t.root
	for !n.leaf {
		if x.At(row, n.feature) <= n.threshold {
			n = n.left
		} else {
			n = n.right
		}
	}
	return n.value
}
