package tensor

import (
	"fmt"
	"math"
)

func checkCompatibility(t1, t2 *Tensor) error {
	if t1 == nil || t2 == nil {
		return fmt.Errorf("tensors cannot be nil")
	}
	if t1.DType != t2.DType {
		return fmt.Errorf("dtype mismatch: %s vs %s", t1.DType, t2.DType)
	}
	return nil
}

func checkSameShape(t1, t2 *Tensor) error {
	if len(t1.Shape) != len(t2.Shape) {
		return fmt.Errorf("shape mismatch: %v vs %v", t1.Shape, t2.Shape)
	}
	for i := range t1.Shape {
		if t1.Shape[i] != t2.Shape[i] {
			return fmt.Errorf("shape mismatch: %v vs %v", t1.Shape, t2.Shape)
		}
	}
	return nil
}

// Add returns t1 + t2 elementwise.
func Add(t1, t2 *Tensor) (*Tensor, error) {
	if err := checkCompatibility(t1, t2); err != nil {
		return nil, err
	}
	if err := checkSameShape(t1, t2); err != nil {
		return nil, err
	}
	if t1.DType != Float32 {
		return nil, fmt.Errorf("add requires float32 tensors, got %s", t1.DType)
	}
	out, err := Zeros(t1.Shape, Float32)
	if err != nil {
		return nil, err
	}
	a, b, dst := t1.Float32Data(), t2.Float32Data(), out.Float32Data()
	for i := range dst {
		dst[i] = a[i] + b[i]
	}
	return out, nil
}

// Sub returns t1 - t2 elementwise.
func Sub(t1, t2 *Tensor) (*Tensor, error) {
	if err := checkCompatibility(t1, t2); err != nil {
		return nil, err
	}
	if err := checkSameShape(t1, t2); err != nil {
		return nil, err
	}
	if t1.DType != Float32 {
		return nil, fmt.Errorf("sub requires float32 tensors, got %s", t1.DType)
	}
	out, err := Zeros(t1.Shape, Float32)
	if err != nil {
		return nil, err
	}
	a, b, dst := t1.Float32Data(), t2.Float32Data(), out.Float32Data()
	for i := range dst {
		dst[i] = a[i] - b[i]
	}
	return out, nil
}

// Mul returns t1 * t2 elementwise (Hadamard product).
func Mul(t1, t2 *Tensor) (*Tensor, error) {
	if err := checkCompatibility(t1, t2); err != nil {
		return nil, err
	}
	if err := checkSameShape(t1, t2); err != nil {
		return nil, err
	}
	if t1.DType != Float32 {
		return nil, fmt.Errorf("mul requires float32 tensors, got %s", t1.DType)
	}
	out, err := Zeros(t1.Shape, Float32)
	if err != nil {
		return nil, err
	}
	a, b, dst := t1.Float32Data(), t2.Float32Data(), out.Float32Data()
	for i := range dst {
		dst[i] = a[i] * b[i]
	}
	return out, nil
}

// Scale multiplies each element by s in place.
func (t *Tensor) Scale(s float32) {
	data := t.Float32Data()
	for i := range data {
		data[i] *= s
	}
}

// Fill sets every element to v in place.
func (t *Tensor) Fill(v float32) {
	data := t.Float32Data()
	for i := range data {
		data[i] = v
	}
}

// ReLU returns max(0, x) elementwise.
func ReLU(t *Tensor) (*Tensor, error) {
	if t.DType != Float32 {
		return nil, fmt.Errorf("relu requires a float32 tensor, got %s", t.DType)
	}
	out, err := Zeros(t.Shape, Float32)
	if err != nil {
		return nil, err
	}
	src, dst := t.Float32Data(), out.Float32Data()
	for i, v := range src {
		if v > 0 {
			dst[i] = v
		}
	}
	return out, nil
}

// Softmax applies a numerically stable softmax along the last dimension of a
// 2D tensor. Each output row sums to 1.
func Softmax(t *Tensor) (*Tensor, error) {
	if t.DType != Float32 {
		return nil, fmt.Errorf("softmax requires a float32 tensor, got %s", t.DType)
	}
	if len(t.Shape) != 2 {
		return nil, fmt.Errorf("softmax requires a 2D tensor, got shape %v", t.Shape)
	}
	rows, cols := t.Shape[0], t.Shape[1]
	out, err := Zeros(t.Shape, Float32)
	if err != nil {
		return nil, err
	}
	src, dst := t.Float32Data(), out.Float32Data()
	for i := 0; i < rows; i++ {
		row := src[i*cols : (i+1)*cols]
		maxVal := row[0]
		for _, v := range row[1:] {
			if v > maxVal {
				maxVal = v
			}
		}
		var sum float64
		for j, v := range row {
			e := math.Exp(float64(v - maxVal))
			dst[i*cols+j] = float32(e)
			sum += e
		}
		inv := float32(1.0 / sum)
		for j := 0; j < cols; j++ {
			dst[i*cols+j] *= inv
		}
	}
	return out, nil
}

// SoftmaxRows applies the same softmax to a raw row-major matrix in place.
func SoftmaxRows(data []float32, rows, cols int) {
	for i := 0; i < rows; i++ {
		row := data[i*cols : (i+1)*cols]
		maxVal := row[0]
		for _, v := range row[1:] {
			if v > maxVal {
				maxVal = v
			}
		}
		var sum float64
		for j, v := range row {
			e := math.Exp(float64(v - maxVal))
			row[j] = float32(e)
			sum += e
		}
		inv := float32(1.0 / sum)
		for j := range row {
			row[j] *= inv
		}
	}
}

// ArgMaxRows returns the index of the largest value in each row of a
// row-major matrix.
func ArgMaxRows(data []float32, rows, cols int) []int32 {
	out := make([]int32, rows)
	for i := 0; i < rows; i++ {
		best := 0
		bestVal := data[i*cols]
		for j := 1; j < cols; j++ {
			if data[i*cols+j] > bestVal {
				bestVal = data[i*cols+j]
				best = j
			}
		}
		out[i] = int32(best)
	}
	return out
}
