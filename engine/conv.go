package engine

import (
	"fmt"

	"github.com/sudiptamani12/skin-cancer-project/layers"
	"github.com/sudiptamani12/skin-cancer-project/tensor"
)

// convCache stores, for every layer in the convolutional branch, the
// activation entering it plus the pooling argmax indices needed by backprop.
type convCache struct {
	acts   [][]float32 // acts[i] = batch activation entering layer i
	argmax [][]int32   // per layer, non-nil for MaxPool2D
}

// forwardConv walks the convolutional branch layer by layer over the batch
// input shaped (N,H,W,C) and returns the flattened branch output (N, F1).
func (m *Model) forwardConv(x *tensor.Tensor, cache *batchCache) ([]float32, error) {
	branch := &m.Spec.Conv
	n := x.Shape[0]
	cur := x.Float32Data()
	cc := convCache{
		acts:   make([][]float32, len(branch.Layers)),
		argmax: make([][]int32, len(branch.Layers)),
	}

	for i := range branch.Layers {
		l := &branch.Layers[i]
		cc.acts[i] = cur
		switch l.Type {
		case layers.Conv2D:
			w := m.param(l.Name + "/kernel").Value.Float32Data()
			b := m.param(l.Name + "/bias").Value.Float32Data()
			cur = conv2dForward(cur, w, b, n, l.InputShape, l.OutputShape)
		case layers.ReLU:
			out := make([]float32, len(cur))
			for j, v := range cur {
				if v > 0 {
					out[j] = v
				}
			}
			cur = out
		case layers.MaxPool2D:
			size, err := l.IntParam("pool_size")
			if err != nil {
				return nil, err
			}
			var idx []int32
			cur, idx = maxPoolForward(cur, n, l.InputShape, l.OutputShape, size)
			cc.argmax[i] = idx
		case layers.Flatten:
			// row-major activations are already flat per sample
		default:
			return nil, fmt.Errorf("conv branch: unsupported layer type %s", l.Type)
		}
	}
	cache.conv = cc
	return cur, nil
}

// backwardConv propagates the flattened branch gradient (N, F1) back through
// the convolutional branch, accumulating kernel and bias gradients.
func (m *Model) backwardConv(grad []float32) error {
	branch := &m.Spec.Conv
	c := &m.cache.conv
	n := m.cache.batch

	for i := len(branch.Layers) - 1; i >= 0; i-- {
		l := &branch.Layers[i]
		switch l.Type {
		case layers.Conv2D:
			w := m.param(l.Name + "/kernel")
			b := m.param(l.Name + "/bias")
			// the gradient w.r.t. the first layer's input is never used
			needInput := i > 0
			dIn := conv2dBackward(c.acts[i], grad,
				w.Value.Float32Data(), w.Grad.Float32Data(), b.Grad.Float32Data(),
				n, l.InputShape, l.OutputShape, needInput)
			grad = dIn
		case layers.ReLU:
			in := c.acts[i]
			out := make([]float32, len(grad))
			for j, v := range grad {
				if in[j] > 0 {
					out[j] = v
				}
			}
			grad = out
		case layers.MaxPool2D:
			inSize := n * prod(l.InputShape)
			dIn := make([]float32, inSize)
			for j, src := range c.argmax[i] {
				dIn[src] += grad[j]
			}
			grad = dIn
		case layers.Flatten:
			// gradient layout is unchanged
		}
	}
	return nil
}

// conv2dForward computes a valid-padded stride-1 convolution over a batch in
// HWC layout. Weights are shaped (k, k, cin, cout).
func conv2dForward(in, w, bias []float32, n int, inShape, outShape []int) []float32 {
	h, wd, cin := inShape[0], inShape[1], inShape[2]
	oh, ow, cout := outShape[0], outShape[1], outShape[2]
	kernel := h - oh + 1

	out := make([]float32, n*oh*ow*cout)
	for s := 0; s < n; s++ {
		inBase := s * h * wd * cin
		outBase := s * oh * ow * cout
		for oy := 0; oy < oh; oy++ {
			for ox := 0; ox < ow; ox++ {
				dst := out[outBase+(oy*ow+ox)*cout : outBase+(oy*ow+ox)*cout+cout]
				copy(dst, bias)
				for ky := 0; ky < kernel; ky++ {
					rowBase := inBase + ((oy+ky)*wd+ox)*cin
					wBase := ky * kernel * cin * cout
					for kx := 0; kx < kernel; kx++ {
						pix := in[rowBase+kx*cin : rowBase+kx*cin+cin]
						wRow := w[wBase+kx*cin*cout:]
						for ci, pv := range pix {
							if pv == 0 {
								continue
							}
							wc := wRow[ci*cout : ci*cout+cout]
							for f, wv := range wc {
								dst[f] += pv * wv
							}
						}
					}
				}
			}
		}
	}
	return out
}

// conv2dBackward accumulates kernel/bias gradients and, when needInput is
// set, returns the gradient w.r.t. the layer input.
func conv2dBackward(in, dOut, w, dW, dB []float32, n int, inShape, outShape []int, needInput bool) []float32 {
	h, wd, cin := inShape[0], inShape[1], inShape[2]
	oh, ow, cout := outShape[0], outShape[1], outShape[2]
	kernel := h - oh + 1

	var dIn []float32
	if needInput {
		dIn = make([]float32, n*h*wd*cin)
	}
	for s := 0; s < n; s++ {
		inBase := s * h * wd * cin
		outBase := s * oh * ow * cout
		for oy := 0; oy < oh; oy++ {
			for ox := 0; ox < ow; ox++ {
				g := dOut[outBase+(oy*ow+ox)*cout : outBase+(oy*ow+ox)*cout+cout]
				for f, gv := range g {
					dB[f] += gv
				}
				for ky := 0; ky < kernel; ky++ {
					rowBase := inBase + ((oy+ky)*wd+ox)*cin
					wBase := ky * kernel * cin * cout
					for kx := 0; kx < kernel; kx++ {
						pixBase := rowBase + kx*cin
						wRow := wBase + kx*cin*cout
						for ci := 0; ci < cin; ci++ {
							pv := in[pixBase+ci]
							wc := wRow + ci*cout
							var acc float32
							for f, gv := range g {
								dW[wc+f] += pv * gv
								acc += w[wc+f] * gv
							}
							if needInput {
								dIn[pixBase+ci] += acc
							}
						}
					}
				}
			}
		}
	}
	return dIn
}

// maxPoolForward applies non-overlapping max pooling and records, for each
// output element, the flat index of the winning input element.
func maxPoolForward(in []float32, n int, inShape, outShape []int, size int) ([]float32, []int32) {
	h, wd, c := inShape[0], inShape[1], inShape[2]
	oh, ow := outShape[0], outShape[1]

	out := make([]float32, n*oh*ow*c)
	argmax := make([]int32, len(out))
	for s := 0; s < n; s++ {
		inBase := s * h * wd * c
		outBase := s * oh * ow * c
		for oy := 0; oy < oh; oy++ {
			for ox := 0; ox < ow; ox++ {
				for ch := 0; ch < c; ch++ {
					best := float32(0)
					bestIdx := -1
					for ky := 0; ky < size; ky++ {
						for kx := 0; kx < size; kx++ {
							idx := inBase + ((oy*size+ky)*wd+(ox*size+kx))*c + ch
							if bestIdx < 0 || in[idx] > best {
								best = in[idx]
								bestIdx = idx
							}
						}
					}
					dst := outBase + (oy*ow+ox)*c + ch
					out[dst] = best
					argmax[dst] = int32(bestIdx)
				}
			}
		}
	}
	return out, argmax
}

func prod(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}
