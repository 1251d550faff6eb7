// Package layers defines neural network models as pure configuration.
// A LayerSpec carries no execution logic; the engine package compiles a
// spec into runnable parameter tensors and forward/backward passes.
package layers

import (
	"fmt"
)

// LayerType represents the type of neural network layer
type LayerType int

const (
	Dense LayerType = iota
	Conv2D
	ReLU
	Softmax
	MaxPool2D
	Flatten
	Reshape
	MultiHeadAttention
	GlobalAvgPool1D
)

func (lt LayerType) String() string {
	switch lt {
	case Dense:
		return "Dense"
	case Conv2D:
		return "Conv2D"
	case ReLU:
		return "ReLU"
	case Softmax:
		return "Softmax"
	case MaxPool2D:
		return "MaxPool2D"
	case Flatten:
		return "Flatten"
	case Reshape:
		return "Reshape"
	case MultiHeadAttention:
		return "MultiHeadAttention"
	case GlobalAvgPool1D:
		return "GlobalAvgPool1D"
	default:
		return "Unknown"
	}
}

// LayerSpec defines layer configuration for the compute engine.
// This is pure configuration - no execution logic.
type LayerSpec struct {
	Type       LayerType              `json:"type"`
	Name       string                 `json:"name"`
	Parameters map[string]interface{} `json:"parameters"`

	// Shape information (computed during compilation, excludes batch dim)
	InputShape  []int `json:"input_shape,omitempty"`
	OutputShape []int `json:"output_shape,omitempty"`

	// Parameter metadata (computed during compilation)
	ParameterShapes [][]int `json:"parameter_shapes,omitempty"`
	ParameterCount  int64   `json:"parameter_count,omitempty"`
}

// IntParam reads an integer value from the layer's parameter map.
func (l *LayerSpec) IntParam(key string) (int, error) {
	v, ok := l.Parameters[key]
	if !ok {
		return 0, fmt.Errorf("layer %s: missing parameter %q", l.Name, key)
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case float64: // JSON round trip
		return int(n), nil
	default:
		return 0, fmt.Errorf("layer %s: parameter %q has type %T, expected int", l.Name, key, v)
	}
}

// IntsParam reads an integer slice from the layer's parameter map.
func (l *LayerSpec) IntsParam(key string) ([]int, error) {
	v, ok := l.Parameters[key]
	if !ok {
		return nil, fmt.Errorf("layer %s: missing parameter %q", l.Name, key)
	}
	switch n := v.(type) {
	case []int:
		return n, nil
	case []interface{}:
		out := make([]int, len(n))
		for i, e := range n {
			f, ok := e.(float64)
			if !ok {
				return nil, fmt.Errorf("layer %s: parameter %q element %d has type %T", l.Name, key, i, e)
			}
			out[i] = int(f)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("layer %s: parameter %q has type %T, expected []int", l.Name, key, v)
	}
}

// BranchSpec defines a linear chain of layers with shape inference.
type BranchSpec struct {
	Layers      []LayerSpec `json:"layers"`
	InputShape  []int       `json:"input_shape"`
	OutputShape []int       `json:"output_shape"`

	TotalParameters int64 `json:"total_parameters"`
	Compiled        bool  `json:"compiled"`
}

// Compile runs shape inference through the chain, filling in per-layer input
// and output shapes and parameter metadata. Shapes exclude the batch
// dimension, e.g. an image input is [height, width, channels].
func (b *BranchSpec) Compile(inputShape []int) error {
	if len(b.Layers) == 0 {
		return fmt.Errorf("branch has no layers")
	}
	if len(inputShape) == 0 {
		return fmt.Errorf("branch input shape cannot be empty")
	}
	b.InputShape = append([]int{}, inputShape...)
	b.TotalParameters = 0
	shape := b.InputShape
	for i := range b.Layers {
		layer := &b.Layers[i]
		layer.InputShape = append([]int{}, shape...)
		out, paramShapes, err := inferLayer(layer, shape)
		if err != nil {
			return fmt.Errorf("layer %d (%s): %w", i, layer.Name, err)
		}
		layer.OutputShape = append([]int{}, out...)
		layer.ParameterShapes = paramShapes
		layer.ParameterCount = 0
		for _, ps := range paramShapes {
			n := int64(1)
			for _, d := range ps {
				n *= int64(d)
			}
			layer.ParameterCount += n
		}
		b.TotalParameters += layer.ParameterCount
		shape = out
	}
	b.OutputShape = append([]int{}, shape...)
	b.Compiled = true
	return nil
}

func inferLayer(l *LayerSpec, in []int) (out []int, params [][]int, err error) {
	switch l.Type {
	case Conv2D:
		if len(in) != 3 {
			return nil, nil, fmt.Errorf("Conv2D expects [h w c] input, got %v", in)
		}
		filters, err := l.IntParam("filters")
		if err != nil {
			return nil, nil, err
		}
		kernel, err := l.IntParam("kernel_size")
		if err != nil {
			return nil, nil, err
		}
		stride := 1
		if _, ok := l.Parameters["stride"]; ok {
			if stride, err = l.IntParam("stride"); err != nil {
				return nil, nil, err
			}
		}
		h, w, c := in[0], in[1], in[2]
		oh := (h-kernel)/stride + 1
		ow := (w-kernel)/stride + 1
		if oh <= 0 || ow <= 0 {
			return nil, nil, fmt.Errorf("kernel %d does not fit input %v", kernel, in)
		}
		return []int{oh, ow, filters},
			[][]int{{kernel, kernel, c, filters}, {filters}}, nil

	case MaxPool2D:
		if len(in) != 3 {
			return nil, nil, fmt.Errorf("MaxPool2D expects [h w c] input, got %v", in)
		}
		size, err := l.IntParam("pool_size")
		if err != nil {
			return nil, nil, err
		}
		h, w, c := in[0], in[1], in[2]
		if h < size || w < size {
			return nil, nil, fmt.Errorf("pool size %d does not fit input %v", size, in)
		}
		return []int{h / size, w / size, c}, nil, nil

	case Flatten:
		n := 1
		for _, d := range in {
			n *= d
		}
		return []int{n}, nil, nil

	case Reshape:
		target, err := l.IntsParam("target_shape")
		if err != nil {
			return nil, nil, err
		}
		nin, nout := 1, 1
		for _, d := range in {
			nin *= d
		}
		for _, d := range target {
			nout *= d
		}
		if nin != nout {
			return nil, nil, fmt.Errorf("cannot reshape %v to %v", in, target)
		}
		return append([]int{}, target...), nil, nil

	case MultiHeadAttention:
		if len(in) != 2 {
			return nil, nil, fmt.Errorf("MultiHeadAttention expects [seq dim] input, got %v", in)
		}
		heads, err := l.IntParam("num_heads")
		if err != nil {
			return nil, nil, err
		}
		keyDim, err := l.IntParam("key_dim")
		if err != nil {
			return nil, nil, err
		}
		d := in[1]
		proj := heads * keyDim
		// query, key, value projections plus output projection, each with bias
		return append([]int{}, in...), [][]int{
			{d, proj}, {proj}, // Wq, bq
			{d, proj}, {proj}, // Wk, bk
			{d, proj}, {proj}, // Wv, bv
			{proj, d}, {d}, // Wo, bo
		}, nil

	case GlobalAvgPool1D:
		if len(in) != 2 {
			return nil, nil, fmt.Errorf("GlobalAvgPool1D expects [seq dim] input, got %v", in)
		}
		return []int{in[1]}, nil, nil

	case Dense:
		if len(in) != 1 {
			return nil, nil, fmt.Errorf("Dense expects flat input, got %v", in)
		}
		units, err := l.IntParam("units")
		if err != nil {
			return nil, nil, err
		}
		return []int{units}, [][]int{{in[0], units}, {units}}, nil

	case ReLU, Softmax:
		return append([]int{}, in...), nil, nil

	default:
		return nil, nil, fmt.Errorf("unsupported layer type %s", l.Type)
	}
}

// ModelBuilder helps construct layer chains
type ModelBuilder struct {
	layers []LayerSpec
}

// NewModelBuilder creates a new model builder
func NewModelBuilder() *ModelBuilder {
	return &ModelBuilder{layers: make([]LayerSpec, 0)}
}

// AddLayer adds a layer to the chain
func (mb *ModelBuilder) AddLayer(layer LayerSpec) *ModelBuilder {
	mb.layers = append(mb.layers, layer)
	return mb
}

// AddConv2D adds a valid-padded convolution layer
func (mb *ModelBuilder) AddConv2D(filters, kernelSize int, name string) *ModelBuilder {
	return mb.AddLayer(LayerSpec{
		Type: Conv2D,
		Name: name,
		Parameters: map[string]interface{}{
			"filters":     filters,
			"kernel_size": kernelSize,
			"stride":      1,
		},
	})
}

// AddMaxPool2D adds a max pooling layer with stride equal to pool size
func (mb *ModelBuilder) AddMaxPool2D(poolSize int, name string) *ModelBuilder {
	return mb.AddLayer(LayerSpec{
		Type: MaxPool2D,
		Name: name,
		Parameters: map[string]interface{}{
			"pool_size": poolSize,
		},
	})
}

// AddReLU adds a ReLU activation
func (mb *ModelBuilder) AddReLU(name string) *ModelBuilder {
	return mb.AddLayer(LayerSpec{Type: ReLU, Name: name, Parameters: map[string]interface{}{}})
}

// AddSoftmax adds a softmax activation over the feature axis
func (mb *ModelBuilder) AddSoftmax(name string) *ModelBuilder {
	return mb.AddLayer(LayerSpec{Type: Softmax, Name: name, Parameters: map[string]interface{}{}})
}

// AddFlatten collapses all feature dimensions into one
func (mb *ModelBuilder) AddFlatten(name string) *ModelBuilder {
	return mb.AddLayer(LayerSpec{Type: Flatten, Name: name, Parameters: map[string]interface{}{}})
}

// AddReshape reshapes the feature dimensions to the target shape
func (mb *ModelBuilder) AddReshape(target []int, name string) *ModelBuilder {
	return mb.AddLayer(LayerSpec{
		Type: Reshape,
		Name: name,
		Parameters: map[string]interface{}{
			"target_shape": target,
		},
	})
}

// AddMultiHeadAttention adds multi-head self-attention over a sequence input
func (mb *ModelBuilder) AddMultiHeadAttention(numHeads, keyDim int, name string) *ModelBuilder {
	return mb.AddLayer(LayerSpec{
		Type: MultiHeadAttention,
		Name: name,
		Parameters: map[string]interface{}{
			"num_heads": numHeads,
			"key_dim":   keyDim,
		},
	})
}

// AddGlobalAvgPool1D averages over the sequence axis
func (mb *ModelBuilder) AddGlobalAvgPool1D(name string) *ModelBuilder {
	return mb.AddLayer(LayerSpec{Type: GlobalAvgPool1D, Name: name, Parameters: map[string]interface{}{}})
}

// AddDense adds a fully connected layer
func (mb *ModelBuilder) AddDense(units int, name string) *ModelBuilder {
	return mb.AddLayer(LayerSpec{
		Type: Dense,
		Name: name,
		Parameters: map[string]interface{}{
			"units": units,
		},
	})
}

// Compile builds a BranchSpec from the accumulated layers and runs shape
// inference against the given input shape.
func (mb *ModelBuilder) Compile(inputShape []int) (*BranchSpec, error) {
	b := &BranchSpec{Layers: append([]LayerSpec{}, mb.layers...)}
	if err := b.Compile(inputShape); err != nil {
		return nil, err
	}
	return b, nil
}
