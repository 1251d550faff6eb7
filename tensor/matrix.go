package tensor

import (
	"fmt"
)

// MatMul computes the matrix product of two 2D float32 tensors.
func MatMul(t1, t2 *Tensor) (*Tensor, error) {
	if err := checkCompatibility(t1, t2); err != nil {
		return nil, err
	}
	if len(t1.Shape) != 2 || len(t2.Shape) != 2 {
		return nil, fmt.Errorf("matmul requires 2D tensors, got %v and %v", t1.Shape, t2.Shape)
	}
	if t1.DType != Float32 {
		return nil, fmt.Errorf("matmul requires float32 tensors, got %s", t1.DType)
	}
	rows1, cols1 := t1.Shape[0], t1.Shape[1]
	rows2, cols2 := t2.Shape[0], t2.Shape[1]
	if cols1 != rows2 {
		return nil, fmt.Errorf("incompatible dimensions for matmul: (%d, %d) x (%d, %d)", rows1, cols1, rows2, cols2)
	}
	result, err := Zeros([]int{rows1, cols2}, Float32)
	if err != nil {
		return nil, err
	}
	MatMulRaw(t1.Float32Data(), t2.Float32Data(), result.Float32Data(), rows1, cols1, cols2)
	return result, nil
}

// MatMulRaw computes dst = a (m x k) * b (k x n) over raw row-major slices.
// dst must have m*n elements and is overwritten.
func MatMulRaw(a, b, dst []float32, m, k, n int) {
	for i := 0; i < m; i++ {
		di := dst[i*n : (i+1)*n]
		for x := range di {
			di[x] = 0
		}
		ai := a[i*k : (i+1)*k]
		for p, av := range ai {
			if av == 0 {
				continue
			}
			bp := b[p*n : (p+1)*n]
			for j, bv := range bp {
				di[j] += av * bv
			}
		}
	}
}

// MatMulTransARaw computes dst = aᵀ (k x m -> m x k transposed) * b, i.e.
// dst(m x n) = transpose(a)(m x k) * b(k x n) where a is stored as k x m.
func MatMulTransARaw(a, b, dst []float32, m, k, n int) {
	for x := range dst[:m*n] {
		dst[x] = 0
	}
	for p := 0; p < k; p++ {
		ap := a[p*m : (p+1)*m]
		bp := b[p*n : (p+1)*n]
		for i, av := range ap {
			if av == 0 {
				continue
			}
			di := dst[i*n : (i+1)*n]
			for j, bv := range bp {
				di[j] += av * bv
			}
		}
	}
}

// MatMulTransBRaw computes dst(m x n) = a(m x k) * transpose(b) where b is
// stored as n x k.
func MatMulTransBRaw(a, b, dst []float32, m, k, n int) {
	for i := 0; i < m; i++ {
		ai := a[i*k : (i+1)*k]
		di := dst[i*n : (i+1)*n]
		for j := 0; j < n; j++ {
			bj := b[j*k : (j+1)*k]
			var sum float32
			for p := range ai {
				sum += ai[p] * bj[p]
			}
			di[j] = sum
		}
	}
}

// Transpose returns the transpose of a 2D tensor.
func Transpose(t *Tensor) (*Tensor, error) {
	if len(t.Shape) != 2 {
		return nil, fmt.Errorf("transpose requires a 2D tensor, got shape %v", t.Shape)
	}
	if t.DType != Float32 {
		return nil, fmt.Errorf("transpose requires a float32 tensor, got %s", t.DType)
	}
	rows, cols := t.Shape[0], t.Shape[1]
	out, err := Zeros([]int{cols, rows}, Float32)
	if err != nil {
		return nil, err
	}
	src, dst := t.Float32Data(), out.Float32Data()
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			dst[j*rows+i] = src[i*cols+j]
		}
	}
	return out, nil
}
