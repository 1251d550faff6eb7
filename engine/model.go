// Package engine executes compiled layer specifications on the CPU.
// It owns the parameter tensors of a hybrid model and implements the
// forward pass, the backward pass and the sparse categorical
// cross-entropy loss used during training.
package engine

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/sudiptamani12/skin-cancer-project/layers"
	"github.com/sudiptamani12/skin-cancer-project/tensor"
)

// Param is one learnable tensor with its gradient accumulator.
type Param struct {
	Name  string
	Value *tensor.Tensor
	Grad  *tensor.Tensor
}

// Model holds the parameters of a compiled HybridSpec and the scratch
// buffers of the most recent forward pass.
type Model struct {
	Spec *layers.HybridSpec

	params []*Param
	byName map[string]*Param

	cache *batchCache
}

// batchCache keeps the activations of the last forward pass for backprop.
type batchCache struct {
	batch int
	input *tensor.Tensor

	conv convCache
	attn attnCache

	merged []float32 // (N, F1+F2) concatenated branch outputs
	logits []float32 // (N, K) pre-softmax
	probs  []float32 // (N, K)
}

// NewModel allocates and initialises parameters for the given spec.
// Weights use Glorot uniform initialisation, biases start at zero.
func NewModel(spec *layers.HybridSpec, seed int64) (*Model, error) {
	if spec == nil || !spec.Compiled {
		return nil, fmt.Errorf("model spec must be compiled")
	}
	m := &Model{Spec: spec, byName: make(map[string]*Param)}
	rng := rand.New(rand.NewSource(seed))

	for _, branch := range []*layers.BranchSpec{&spec.Conv, &spec.Attention, &spec.Head} {
		for i := range branch.Layers {
			l := &branch.Layers[i]
			if err := m.initLayerParams(l, rng); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

func (m *Model) initLayerParams(l *layers.LayerSpec, rng *rand.Rand) error {
	switch l.Type {
	case layers.Conv2D:
		k := l.ParameterShapes[0]
		fanIn := k[0] * k[1] * k[2]
		fanOut := k[0] * k[1] * k[3]
		if err := m.addWeight(l.Name+"/kernel", k, fanIn, fanOut, rng); err != nil {
			return err
		}
		return m.addBias(l.Name+"/bias", l.ParameterShapes[1])
	case layers.Dense:
		k := l.ParameterShapes[0]
		if err := m.addWeight(l.Name+"/kernel", k, k[0], k[1], rng); err != nil {
			return err
		}
		return m.addBias(l.Name+"/bias", l.ParameterShapes[1])
	case layers.MultiHeadAttention:
		names := []string{"wq", "bq", "wk", "bk", "wv", "bv", "wo", "bo"}
		for i, name := range names {
			shape := l.ParameterShapes[i]
			full := l.Name + "/" + name
			if len(shape) == 2 {
				if err := m.addWeight(full, shape, shape[0], shape[1], rng); err != nil {
					return err
				}
			} else if err := m.addBias(full, shape); err != nil {
				return err
			}
		}
		return nil
	default:
		return nil
	}
}

func (m *Model) addWeight(name string, shape []int, fanIn, fanOut int, rng *rand.Rand) error {
	value, err := tensor.GlorotUniform(shape, fanIn, fanOut, rng)
	if err != nil {
		return fmt.Errorf("init %s: %w", name, err)
	}
	grad, err := tensor.Zeros(shape, tensor.Float32)
	if err != nil {
		return err
	}
	p := &Param{Name: name, Value: value, Grad: grad}
	m.params = append(m.params, p)
	m.byName[name] = p
	return nil
}

func (m *Model) addBias(name string, shape []int) error {
	value, err := tensor.Zeros(shape, tensor.Float32)
	if err != nil {
		return fmt.Errorf("init %s: %w", name, err)
	}
	grad, err := tensor.Zeros(shape, tensor.Float32)
	if err != nil {
		return err
	}
	p := &Param{Name: name, Value: value, Grad: grad}
	m.params = append(m.params, p)
	m.byName[name] = p
	return nil
}

// Parameters returns all learnable parameters in a stable order.
func (m *Model) Parameters() []*Param {
	return m.params
}

// NumParameters returns the total learnable parameter count.
func (m *Model) NumParameters() int64 {
	var n int64
	for _, p := range m.params {
		n += int64(p.Value.NumElems)
	}
	return n
}

func (m *Model) param(name string) *Param {
	p, ok := m.byName[name]
	if !ok {
		panic("engine: unknown parameter " + name)
	}
	return p
}

// ZeroGrads clears all gradient accumulators.
func (m *Model) ZeroGrads() {
	for _, p := range m.params {
		p.Grad.Fill(0)
	}
}

// Forward runs the full model over a batch shaped (N, H, W, C) and returns
// class probabilities shaped (N, numClasses). Each output row sums to 1.
func (m *Model) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	if len(x.Shape) != 4 {
		return nil, fmt.Errorf("forward expects (N,H,W,C) input, got shape %v", x.Shape)
	}
	in := m.Spec.InputShape
	if x.Shape[1] != in[0] || x.Shape[2] != in[1] || x.Shape[3] != in[2] {
		return nil, fmt.Errorf("input shape %v does not match model input %v", x.Shape[1:], in)
	}
	n := x.Shape[0]
	cache := &batchCache{batch: n, input: x}

	convOut, err := m.forwardConv(x, cache)
	if err != nil {
		return nil, err
	}
	attnOut, err := m.forwardAttention(x, cache)
	if err != nil {
		return nil, err
	}

	f1 := m.Spec.Conv.OutputShape[0]
	f2 := m.Spec.Attention.OutputShape[0]
	merged := make([]float32, n*(f1+f2))
	for i := 0; i < n; i++ {
		copy(merged[i*(f1+f2):], convOut[i*f1:(i+1)*f1])
		copy(merged[i*(f1+f2)+f1:], attnOut[i*f2:(i+1)*f2])
	}
	cache.merged = merged

	k := m.Spec.NumClasses()
	w := m.param("output/kernel").Value.Float32Data()
	b := m.param("output/bias").Value.Float32Data()
	logits := make([]float32, n*k)
	tensor.MatMulRaw(merged, w, logits, n, f1+f2, k)
	for i := 0; i < n; i++ {
		for j := 0; j < k; j++ {
			logits[i*k+j] += b[j]
		}
	}
	cache.logits = append([]float32{}, logits...)

	probs := logits
	tensor.SoftmaxRows(probs, n, k)
	cache.probs = probs
	m.cache = cache

	out := make([]float32, len(probs))
	copy(out, probs)
	return tensor.NewTensor([]int{n, k}, tensor.Float32, out)
}

// Loss computes the mean sparse categorical cross-entropy of the given
// probabilities against integer labels.
func (m *Model) Loss(probs *tensor.Tensor, labels []int32) (float64, error) {
	if len(probs.Shape) != 2 {
		return 0, fmt.Errorf("loss expects (N,K) probabilities, got %v", probs.Shape)
	}
	n, k := probs.Shape[0], probs.Shape[1]
	if len(labels) != n {
		return 0, fmt.Errorf("labels length %d does not match batch size %d", len(labels), n)
	}
	data := probs.Float32Data()
	var total float64
	for i, y := range labels {
		if y < 0 || int(y) >= k {
			return 0, fmt.Errorf("label %d out of range [0,%d)", y, k)
		}
		p := float64(data[i*k+int(y)])
		if p < 1e-12 {
			p = 1e-12
		}
		total -= math.Log(p)
	}
	return total / float64(n), nil
}

// TrainStep runs forward and backward over one batch, leaving gradients in
// the parameter accumulators. It returns the batch loss along with the class
// probabilities from the forward pass so callers can derive training metrics
// without a second forward.
func (m *Model) TrainStep(x *tensor.Tensor, labels []int32) (float64, *tensor.Tensor, error) {
	m.ZeroGrads()
	probs, err := m.Forward(x)
	if err != nil {
		return 0, nil, err
	}
	loss, err := m.Loss(probs, labels)
	if err != nil {
		return 0, nil, err
	}
	if err := m.backward(labels); err != nil {
		return 0, nil, err
	}
	return loss, probs, nil
}

// Predict returns the argmax class for each sample in the batch.
func (m *Model) Predict(x *tensor.Tensor) ([]int32, error) {
	probs, err := m.Forward(x)
	if err != nil {
		return nil, err
	}
	n, k := probs.Shape[0], probs.Shape[1]
	return tensor.ArgMaxRows(probs.Float32Data(), n, k), nil
}

// backward propagates the fused softmax + cross-entropy gradient through the
// head and both branches, accumulating parameter gradients.
func (m *Model) backward(labels []int32) error {
	c := m.cache
	if c == nil {
		return fmt.Errorf("backward called before forward")
	}
	n := c.batch
	k := m.Spec.NumClasses()
	f1 := m.Spec.Conv.OutputShape[0]
	f2 := m.Spec.Attention.OutputShape[0]

	// gradient at the dense pre-activation: (probs - onehot) / N
	dLogits := make([]float32, n*k)
	invN := float32(1.0 / float64(n))
	for i := 0; i < n; i++ {
		for j := 0; j < k; j++ {
			g := c.probs[i*k+j]
			if int(labels[i]) == j {
				g -= 1
			}
			dLogits[i*k+j] = g * invN
		}
	}

	// head: dW = merged^T * dLogits, db = column sums, dMerged = dLogits * W^T
	wOut := m.param("output/kernel")
	bOut := m.param("output/bias")
	dW := make([]float32, (f1+f2)*k)
	tensor.MatMulTransARaw(c.merged, dLogits, dW, f1+f2, n, k)
	accumulate(wOut.Grad.Float32Data(), dW)
	dbData := bOut.Grad.Float32Data()
	for i := 0; i < n; i++ {
		for j := 0; j < k; j++ {
			dbData[j] += dLogits[i*k+j]
		}
	}
	dMerged := make([]float32, n*(f1+f2))
	tensor.MatMulTransBRaw(dLogits, wOut.Value.Float32Data(), dMerged, n, k, f1+f2)

	// split the concatenated gradient back into the branches
	dConv := make([]float32, n*f1)
	dAttn := make([]float32, n*f2)
	for i := 0; i < n; i++ {
		copy(dConv[i*f1:], dMerged[i*(f1+f2):i*(f1+f2)+f1])
		copy(dAttn[i*f2:], dMerged[i*(f1+f2)+f1:(i+1)*(f1+f2)])
	}

	if err := m.backwardConv(dConv); err != nil {
		return err
	}
	return m.backwardAttention(dAttn)
}

func accumulate(dst, src []float32) {
	for i, v := range src {
		dst[i] += v
	}
}
