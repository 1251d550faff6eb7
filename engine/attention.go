package engine

import (
	"fmt"
	"math"

	"github.com/sudiptamani12/skin-cancer-project/layers"
	"github.com/sudiptamani12/skin-cancer-project/tensor"
)

// attnCache holds the per-batch intermediates of the attention branch.
// Projections are repacked per head so backprop can use contiguous matmuls.
type attnCache struct {
	x       []float32 // (n, s, d) branch input, rows of the image
	qh      []float32 // (n, heads, s, dk)
	kh      []float32 // (n, heads, s, dk)
	vh      []float32 // (n, heads, s, dk)
	attn    []float32 // (n, heads, s, s) softmaxed scores
	heads   []float32 // (n, s, p) concatenated head outputs
	name    string
	seqLen  int
	dim     int
	numHead int
	keyDim  int
}

// forwardAttention runs the attention branch over the batch input (N,H,W,C)
// and returns the pooled branch output (N, D). The branch must be the
// reshape / multi-head attention / average pool chain produced by
// NewHybridClassifier.
func (m *Model) forwardAttention(x *tensor.Tensor, cache *batchCache) ([]float32, error) {
	branch := &m.Spec.Attention
	var mha *layers.LayerSpec
	for i := range branch.Layers {
		if branch.Layers[i].Type == layers.MultiHeadAttention {
			mha = &branch.Layers[i]
		}
	}
	if mha == nil {
		return nil, fmt.Errorf("attention branch has no multi-head attention layer")
	}
	heads, err := mha.IntParam("num_heads")
	if err != nil {
		return nil, err
	}
	keyDim, err := mha.IntParam("key_dim")
	if err != nil {
		return nil, err
	}

	n := x.Shape[0]
	s := mha.InputShape[0]
	d := mha.InputShape[1]
	p := heads * keyDim
	scale := float32(1 / math.Sqrt(float64(keyDim)))

	// the reshape to (s, d) is a view: HWC row-major data is already laid
	// out as rows of width*channels values
	in := x.Float32Data()

	wq := m.param(mha.Name + "/wq").Value.Float32Data()
	bq := m.param(mha.Name + "/bq").Value.Float32Data()
	wk := m.param(mha.Name + "/wk").Value.Float32Data()
	bk := m.param(mha.Name + "/bk").Value.Float32Data()
	wv := m.param(mha.Name + "/wv").Value.Float32Data()
	bv := m.param(mha.Name + "/bv").Value.Float32Data()
	wo := m.param(mha.Name + "/wo").Value.Float32Data()
	bo := m.param(mha.Name + "/bo").Value.Float32Data()

	ac := attnCache{
		x:       in,
		qh:      make([]float32, n*heads*s*keyDim),
		kh:      make([]float32, n*heads*s*keyDim),
		vh:      make([]float32, n*heads*s*keyDim),
		attn:    make([]float32, n*heads*s*s),
		heads:   make([]float32, n*s*p),
		name:    mha.Name,
		seqLen:  s,
		dim:     d,
		numHead: heads,
		keyDim:  keyDim,
	}

	pooled := make([]float32, n*d)
	q := make([]float32, s*p)
	k := make([]float32, s*p)
	v := make([]float32, s*p)
	y := make([]float32, s*d)
	for smp := 0; smp < n; smp++ {
		xs := in[smp*s*d : (smp+1)*s*d]
		tensor.MatMulRaw(xs, wq, q, s, d, p)
		tensor.MatMulRaw(xs, wk, k, s, d, p)
		tensor.MatMulRaw(xs, wv, v, s, d, p)
		addRowBias(q, bq, s, p)
		addRowBias(k, bk, s, p)
		addRowBias(v, bv, s, p)

		out := ac.heads[smp*s*p : (smp+1)*s*p]
		for h := 0; h < heads; h++ {
			qh := ac.headSlice(ac.qh, smp, h)
			kh := ac.headSlice(ac.kh, smp, h)
			vh := ac.headSlice(ac.vh, smp, h)
			packHead(q, qh, s, p, h*keyDim, keyDim)
			packHead(k, kh, s, p, h*keyDim, keyDim)
			packHead(v, vh, s, p, h*keyDim, keyDim)

			a := ac.attn[(smp*heads+h)*s*s : (smp*heads+h+1)*s*s]
			tensor.MatMulTransBRaw(qh, kh, a, s, keyDim, s)
			for i := range a {
				a[i] *= scale
			}
			tensor.SoftmaxRows(a, s, s)

			ho := make([]float32, s*keyDim)
			tensor.MatMulRaw(a, vh, ho, s, s, keyDim)
			unpackHead(ho, out, s, p, h*keyDim, keyDim)
		}

		tensor.MatMulRaw(out, wo, y, s, p, d)
		addRowBias(y, bo, s, d)

		// global average pool over the sequence axis
		dst := pooled[smp*d : (smp+1)*d]
		for i := range dst {
			dst[i] = 0
		}
		for row := 0; row < s; row++ {
			for j := 0; j < d; j++ {
				dst[j] += y[row*d+j]
			}
		}
		inv := 1 / float32(s)
		for j := range dst {
			dst[j] *= inv
		}
	}
	cache.attn = ac
	return pooled, nil
}

// backwardAttention propagates the pooled branch gradient (N, D) back
// through the attention branch, accumulating projection gradients. The
// gradient w.r.t. the image input is not needed and not computed.
func (m *Model) backwardAttention(grad []float32) error {
	ac := &m.cache.attn
	n := m.cache.batch
	s, d := ac.seqLen, ac.dim
	heads, keyDim := ac.numHead, ac.keyDim
	p := heads * keyDim
	scale := float32(1 / math.Sqrt(float64(keyDim)))

	wo := m.param(ac.name + "/wo").Value.Float32Data()
	dWq := m.param(ac.name + "/wq").Grad.Float32Data()
	dBq := m.param(ac.name + "/bq").Grad.Float32Data()
	dWk := m.param(ac.name + "/wk").Grad.Float32Data()
	dBk := m.param(ac.name + "/bk").Grad.Float32Data()
	dWv := m.param(ac.name + "/wv").Grad.Float32Data()
	dBv := m.param(ac.name + "/bv").Grad.Float32Data()
	dWo := m.param(ac.name + "/wo").Grad.Float32Data()
	dBo := m.param(ac.name + "/bo").Grad.Float32Data()

	dY := make([]float32, s*d)
	dOut := make([]float32, s*p)
	dQ := make([]float32, s*p)
	dK := make([]float32, s*p)
	dV := make([]float32, s*p)
	dOh := make([]float32, s*keyDim)
	dA := make([]float32, s*s)
	dQh := make([]float32, s*keyDim)
	dKh := make([]float32, s*keyDim)
	dVh := make([]float32, s*keyDim)
	tmpW := make([]float32, p*d)
	tmpP := make([]float32, d*p)
	for smp := 0; smp < n; smp++ {
		// average pool backward: every sequence row shares the pooled
		// gradient scaled by 1/s
		g := grad[smp*d : (smp+1)*d]
		inv := 1 / float32(s)
		for row := 0; row < s; row++ {
			for j := 0; j < d; j++ {
				dY[row*d+j] = g[j] * inv
			}
		}
		for j := 0; j < d; j++ {
			dBo[j] += g[j] // rows sum to the pooled gradient
		}

		out := ac.heads[smp*s*p : (smp+1)*s*p]
		tensor.MatMulTransARaw(out, dY, tmpW, p, s, d)
		for i, v := range tmpW {
			dWo[i] += v
		}
		tensor.MatMulTransBRaw(dY, wo, dOut, s, d, p)

		for h := 0; h < heads; h++ {
			qh := ac.headSlice(ac.qh, smp, h)
			kh := ac.headSlice(ac.kh, smp, h)
			vh := ac.headSlice(ac.vh, smp, h)
			a := ac.attn[(smp*heads+h)*s*s : (smp*heads+h+1)*s*s]

			packHead(dOut, dOh, s, p, h*keyDim, keyDim)

			tensor.MatMulTransBRaw(dOh, vh, dA, s, keyDim, s)
			tensor.MatMulTransARaw(a, dOh, dVh, s, s, keyDim)

			// softmax backward per attention row
			for i := 0; i < s; i++ {
				row := a[i*s : (i+1)*s]
				dRow := dA[i*s : (i+1)*s]
				var dot float32
				for j, av := range row {
					dot += dRow[j] * av
				}
				for j, av := range row {
					dRow[j] = av * (dRow[j] - dot)
				}
			}

			tensor.MatMulRaw(dA, kh, dQh, s, s, keyDim)
			tensor.MatMulTransARaw(dA, qh, dKh, s, s, keyDim)
			for i := range dQh {
				dQh[i] *= scale
				dKh[i] *= scale
			}
			unpackHead(dQh, dQ, s, p, h*keyDim, keyDim)
			unpackHead(dKh, dK, s, p, h*keyDim, keyDim)
			unpackHead(dVh, dV, s, p, h*keyDim, keyDim)
		}

		xs := ac.x[smp*s*d : (smp+1)*s*d]
		accumulateProjGrads(xs, dQ, dWq, dBq, tmpP, s, d, p)
		accumulateProjGrads(xs, dK, dWk, dBk, tmpP, s, d, p)
		accumulateProjGrads(xs, dV, dWv, dBv, tmpP, s, d, p)
	}
	return nil
}

func (c *attnCache) headSlice(buf []float32, sample, head int) []float32 {
	sz := c.seqLen * c.keyDim
	base := (sample*c.numHead + head) * sz
	return buf[base : base+sz]
}

// packHead copies the column block [col, col+width) of a row-major (rows, stride)
// matrix into a contiguous (rows, width) matrix.
func packHead(src, dst []float32, rows, stride, col, width int) {
	for r := 0; r < rows; r++ {
		copy(dst[r*width:(r+1)*width], src[r*stride+col:r*stride+col+width])
	}
}

// unpackHead writes a contiguous (rows, width) matrix into the column block
// [col, col+width) of a row-major (rows, stride) matrix.
func unpackHead(src, dst []float32, rows, stride, col, width int) {
	for r := 0; r < rows; r++ {
		copy(dst[r*stride+col:r*stride+col+width], src[r*width:(r+1)*width])
	}
}

func addRowBias(m, bias []float32, rows, cols int) {
	for r := 0; r < rows; r++ {
		row := m[r*cols : (r+1)*cols]
		for j, b := range bias {
			row[j] += b
		}
	}
}

// accumulateProjGrads adds X^T*dP into dW and the column sums of dP into dB.
func accumulateProjGrads(x, dP, dW, dB, tmp []float32, s, d, p int) {
	tensor.MatMulTransARaw(x, dP, tmp, d, s, p)
	for i, v := range tmp {
		dW[i] += v
	}
	for r := 0; r < s; r++ {
		for j := 0; j < p; j++ {
			dB[j] += dP[r*p+j]
		}
	}
}
