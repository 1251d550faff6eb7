// Package augment applies randomized geometric transforms to training
// images: rotation, shifts, shear, zoom and horizontal flips.
package augment

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"math/rand"

	"github.com/disintegration/imaging"
	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	"github.com/sudiptamani12/skin-cancer-project/tensor"
)

// Policy describes the augmentation ranges. Zero ranges disable the
// corresponding transform.
type Policy struct {
	// RotationRange is the maximum rotation in degrees, sampled uniformly
	// from [-RotationRange, RotationRange].
	RotationRange float64
	// WidthShiftRange and HeightShiftRange are maximum shifts as a
	// fraction of the image size.
	WidthShiftRange  float64
	HeightShiftRange float64
	// ShearRange is the maximum shear angle in degrees.
	ShearRange float64
	// ZoomRange scales the image by a factor in [1-ZoomRange, 1+ZoomRange].
	ZoomRange float64
	// HorizontalFlip mirrors the image with probability 0.5.
	HorizontalFlip bool
	// FillMode controls how exposed border pixels are filled. Only
	// "nearest" is supported.
	FillMode string
}

// DefaultPolicy returns the augmentation ranges used for lesion training.
func DefaultPolicy() Policy {
	return Policy{
		RotationRange:    20,
		WidthShiftRange:  0.2,
		HeightShiftRange: 0.2,
		ShearRange:       0.2,
		ZoomRange:        0.2,
		HorizontalFlip:   true,
		FillMode:         "nearest",
	}
}

// Augmenter samples random transforms according to a policy. It must be
// fitted to the training images before use so channel statistics are
// available for standardization.
type Augmenter struct {
	policy Policy
	rng    *rand.Rand

	mean   []float64
	stddev []float64
	fitted bool
}

// New creates an augmenter with a seeded random source.
func New(policy Policy, seed int64) (*Augmenter, error) {
	if policy.FillMode != "" && policy.FillMode != "nearest" {
		return nil, fmt.Errorf("unsupported fill mode %q", policy.FillMode)
	}
	if policy.ZoomRange < 0 || policy.ZoomRange >= 1 {
		return nil, fmt.Errorf("zoom range must be in [0,1), got %f", policy.ZoomRange)
	}
	return &Augmenter{
		policy: policy,
		rng:    rand.New(rand.NewSource(seed)),
	}, nil
}

// Policy returns the configured augmentation ranges.
func (a *Augmenter) Policy() Policy {
	return a.policy
}

// Fitted reports whether Fit has been called.
func (a *Augmenter) Fitted() bool {
	return a.fitted
}

// ChannelStats returns the fitted per-channel mean and standard deviation.
func (a *Augmenter) ChannelStats() (mean, stddev []float64, err error) {
	if !a.fitted {
		return nil, nil, fmt.Errorf("augmenter has not been fitted")
	}
	return a.mean, a.stddev, nil
}

func (a *Augmenter) uniform(max float64) float64 {
	if max == 0 {
		return 0
	}
	return (a.rng.Float64()*2 - 1) * max
}

// Apply transforms one HWC sample in [0,1] and returns a new sample of the
// same shape.
func (a *Augmenter) Apply(sample []float32, height, width int) ([]float32, error) {
	if len(sample) != height*width*3 {
		return nil, fmt.Errorf("sample size %d does not match %dx%dx3", len(sample), height, width)
	}
	img := toNRGBA(sample, height, width)

	angle := a.uniform(a.policy.RotationRange) * math.Pi / 180
	shear := a.uniform(a.policy.ShearRange) * math.Pi / 180
	tx := a.uniform(a.policy.WidthShiftRange) * float64(width)
	ty := a.uniform(a.policy.HeightShiftRange) * float64(height)
	img = warp(img, angle, shear, tx, ty)

	if a.policy.ZoomRange > 0 {
		img = zoom(img, 1+a.uniform(a.policy.ZoomRange))
	}
	if a.policy.HorizontalFlip && a.rng.Intn(2) == 1 {
		img = imaging.FlipH(img)
	}
	return fromNRGBA(img), nil
}

// warp applies rotation, shear and translation about the image center.
// Exposed border pixels keep the original image content, approximating
// nearest fill.
func warp(src *image.NRGBA, angle, shear, tx, ty float64) *image.NRGBA {
	b := src.Bounds()
	cx := float64(b.Dx()) / 2
	cy := float64(b.Dy()) / 2

	cos, sin := math.Cos(angle), math.Sin(angle)
	tan := math.Tan(shear)
	// rotate then shear, both about the center, plus the shift
	m := f64.Aff3{
		cos, -sin + tan*cos, cx - cos*cx - (-sin+tan*cos)*cy + tx,
		sin, cos + tan*sin, cy - sin*cx - (cos+tan*sin)*cy + ty,
	}

	dst := imaging.Clone(src)
	draw.NearestNeighbor.Transform(dst, m, src, b, draw.Src, nil)
	return dst
}

// zoom scales the image about its center, cropping on zoom in and padding
// with the original content on zoom out.
func zoom(src *image.NRGBA, factor float64) *image.NRGBA {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if factor >= 1 {
		cw := int(math.Round(float64(w) / factor))
		ch := int(math.Round(float64(h) / factor))
		if cw < 1 {
			cw = 1
		}
		if ch < 1 {
			ch = 1
		}
		cropped := imaging.CropCenter(src, cw, ch)
		return imaging.Resize(cropped, w, h, imaging.NearestNeighbor)
	}
	sw := int(math.Round(float64(w) * factor))
	sh := int(math.Round(float64(h) * factor))
	if sw < 1 {
		sw = 1
	}
	if sh < 1 {
		sh = 1
	}
	small := imaging.Resize(src, sw, sh, imaging.NearestNeighbor)
	return imaging.PasteCenter(imaging.Clone(src), small)
}

func toNRGBA(sample []float32, height, width int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	i := 0
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetNRGBA(x, y, color.NRGBA{
				R: quantize(sample[i]),
				G: quantize(sample[i+1]),
				B: quantize(sample[i+2]),
				A: 255,
			})
			i += 3
		}
	}
	return img
}

func fromNRGBA(img *image.NRGBA) []float32 {
	b := img.Bounds()
	out := make([]float32, b.Dx()*b.Dy()*3)
	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := img.NRGBAAt(x, y)
			out[i] = float32(c.R) / 255
			out[i+1] = float32(c.G) / 255
			out[i+2] = float32(c.B) / 255
			i += 3
		}
	}
	return out
}

func quantize(v float32) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return uint8(v*255 + 0.5)
}

// ApplyBatch augments every sample of a (N, H, W, C) tensor into a new
// tensor of the same shape.
func (a *Augmenter) ApplyBatch(images *tensor.Tensor) (*tensor.Tensor, error) {
	if len(images.Shape) != 4 || images.Shape[3] != 3 {
		return nil, fmt.Errorf("expected (N,H,W,3) tensor, got shape %v", images.Shape)
	}
	n, h, w := images.Shape[0], images.Shape[1], images.Shape[2]
	stride := h * w * 3
	src := images.Float32Data()

	out := make([]float32, len(src))
	for i := 0; i < n; i++ {
		augmented, err := a.Apply(src[i*stride:(i+1)*stride], h, w)
		if err != nil {
			return nil, err
		}
		copy(out[i*stride:(i+1)*stride], augmented)
	}
	return tensor.NewTensor([]int{n, h, w, 3}, tensor.Float32, out)
}
