// Package tensor provides CPU-resident dense tensors used throughout the
// training pipeline. Tensors hold float32 activations and weights or int32
// class labels in row-major order.
package tensor

import (
	"fmt"
)

type DType int

const (
	Float32 DType = iota
	Int32
)

func (d DType) String() string {
	switch d {
	case Float32:
		return "Float32"
	case Int32:
		return "Int32"
	default:
		return "Unknown"
	}
}

// Tensor is a dense n-dimensional array. Data is either []float32 or []int32
// depending on DType, laid out with row-major strides.
type Tensor struct {
	Shape    []int
	Strides  []int
	DType    DType
	Data     interface{}
	NumElems int
}

func (t *Tensor) String() string {
	return fmt.Sprintf("Tensor(shape=%v, dtype=%s, elements=%d)", t.Shape, t.DType, t.NumElems)
}

// Float32Data returns the underlying float32 storage.
// Panics if the tensor does not hold float32 data.
func (t *Tensor) Float32Data() []float32 {
	return t.Data.([]float32)
}

// Int32Data returns the underlying int32 storage.
// Panics if the tensor does not hold int32 data.
func (t *Tensor) Int32Data() []int32 {
	return t.Data.([]int32)
}

// Dim returns the size of dimension i.
func (t *Tensor) Dim(i int) int {
	return t.Shape[i]
}

// Clone returns a deep copy of the tensor.
func (t *Tensor) Clone() *Tensor {
	out := &Tensor{
		Shape:    append([]int{}, t.Shape...),
		Strides:  append([]int{}, t.Strides...),
		DType:    t.DType,
		NumElems: t.NumElems,
	}
	switch t.DType {
	case Float32:
		data := make([]float32, t.NumElems)
		copy(data, t.Float32Data())
		out.Data = data
	case Int32:
		data := make([]int32, t.NumElems)
		copy(data, t.Int32Data())
		out.Data = data
	}
	return out
}

// Reshape returns a view of the tensor with a new shape. The total number of
// elements must be unchanged; the underlying storage is shared.
func (t *Tensor) Reshape(shape []int) (*Tensor, error) {
	if err := validateShape(shape); err != nil {
		return nil, err
	}
	n := calculateNumElements(shape)
	if n != t.NumElems {
		return nil, fmt.Errorf("cannot reshape %v to %v: element count %d != %d", t.Shape, shape, t.NumElems, n)
	}
	return &Tensor{
		Shape:    append([]int{}, shape...),
		Strides:  calculateStrides(shape),
		DType:    t.DType,
		Data:     t.Data,
		NumElems: n,
	}, nil
}

// Flatten returns a 2D view with the leading dimension kept and all trailing
// dimensions collapsed, e.g. (N,H,W,C) -> (N, H*W*C).
func (t *Tensor) Flatten() (*Tensor, error) {
	if len(t.Shape) < 2 {
		return nil, fmt.Errorf("flatten requires at least 2 dimensions, got shape %v", t.Shape)
	}
	rest := 1
	for _, d := range t.Shape[1:] {
		rest *= d
	}
	return t.Reshape([]int{t.Shape[0], rest})
}

func calculateStrides(shape []int) []int {
	if len(shape) == 0 {
		return []int{}
	}
	strides := make([]int, len(shape))
	stride := 1
	for i := len(shape) - 1; i >= 0; i-- {
		strides[i] = stride
		stride *= shape[i]
	}
	return strides
}

func calculateNumElements(shape []int) int {
	if len(shape) == 0 {
		return 0
	}
	elements := 1
	for _, dim := range shape {
		elements *= dim
	}
	return elements
}

func validateShape(shape []int) error {
	if len(shape) == 0 {
		return fmt.Errorf("shape cannot be empty")
	}
	for i, dim := range shape {
		if dim <= 0 {
			return fmt.Errorf("invalid shape: dimension %d has size %d, must be positive", i, dim)
		}
	}
	return nil
}
