package tensor

import (
	"fmt"
	"math"
	"math/rand"
)

// NewTensor creates a tensor with the given shape and data. Passing a slice
// adopts it as storage; passing a scalar broadcasts it to every element.
func NewTensor(shape []int, dtype DType, data interface{}) (*Tensor, error) {
	if err := validateShape(shape); err != nil {
		return nil, err
	}
	t := &Tensor{
		Shape:    append([]int{}, shape...),
		Strides:  calculateStrides(shape),
		DType:    dtype,
		NumElems: calculateNumElements(shape),
	}
	if data == nil {
		return nil, fmt.Errorf("data cannot be nil, use Zeros for an empty tensor")
	}
	if err := t.setData(data); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Tensor) setData(data interface{}) error {
	switch t.DType {
	case Float32:
		switch d := data.(type) {
		case []float32:
			if len(d) != t.NumElems {
				return fmt.Errorf("data length %d does not match tensor size %d", len(d), t.NumElems)
			}
			t.Data = d
		case float32:
			slice := make([]float32, t.NumElems)
			for i := range slice {
				slice[i] = d
			}
			t.Data = slice
		default:
			return fmt.Errorf("unsupported data type for Float32 tensor: %T", data)
		}
	case Int32:
		switch d := data.(type) {
		case []int32:
			if len(d) != t.NumElems {
				return fmt.Errorf("data length %d does not match tensor size %d", len(d), t.NumElems)
			}
			t.Data = d
		case int32:
			slice := make([]int32, t.NumElems)
			for i := range slice {
				slice[i] = d
			}
			t.Data = slice
		default:
			return fmt.Errorf("unsupported data type for Int32 tensor: %T", data)
		}
	default:
		return fmt.Errorf("unsupported dtype: %s", t.DType)
	}
	return nil
}

// Zeros creates a zero-filled tensor.
func Zeros(shape []int, dtype DType) (*Tensor, error) {
	if err := validateShape(shape); err != nil {
		return nil, err
	}
	n := calculateNumElements(shape)
	var data interface{}
	switch dtype {
	case Float32:
		data = make([]float32, n)
	case Int32:
		data = make([]int32, n)
	default:
		return nil, fmt.Errorf("unsupported dtype for Zeros: %s", dtype)
	}
	return NewTensor(shape, dtype, data)
}

// Ones creates a one-filled tensor.
func Ones(shape []int, dtype DType) (*Tensor, error) {
	switch dtype {
	case Float32:
		return NewTensor(shape, dtype, float32(1))
	case Int32:
		return NewTensor(shape, dtype, int32(1))
	default:
		return nil, fmt.Errorf("unsupported dtype for Ones: %s", dtype)
	}
}

// GlorotUniform creates a float32 tensor initialised from the Glorot uniform
// distribution with limit sqrt(6/(fanIn+fanOut)). This matches the default
// weight initialiser of the layers in this pipeline.
func GlorotUniform(shape []int, fanIn, fanOut int, rng *rand.Rand) (*Tensor, error) {
	if err := validateShape(shape); err != nil {
		return nil, err
	}
	if fanIn <= 0 || fanOut <= 0 {
		return nil, fmt.Errorf("invalid fan sizes %d, %d", fanIn, fanOut)
	}
	limit := float32(math.Sqrt(6.0 / float64(fanIn+fanOut)))
	n := calculateNumElements(shape)
	data := make([]float32, n)
	for i := range data {
		data[i] = (rng.Float32()*2 - 1) * limit
	}
	return NewTensor(shape, Float32, data)
}

// RandomUniform creates a float32 tensor with values drawn from [lo, hi).
func RandomUniform(shape []int, lo, hi float32, rng *rand.Rand) (*Tensor, error) {
	if err := validateShape(shape); err != nil {
		return nil, err
	}
	n := calculateNumElements(shape)
	data := make([]float32, n)
	for i := range data {
		data[i] = lo + rng.Float32()*(hi-lo)
	}
	return NewTensor(shape, Float32, data)
}
