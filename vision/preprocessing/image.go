// Package preprocessing converts image files into normalized float32
// arrays ready for model input.
package preprocessing

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"sync"

	"github.com/nfnt/resize"
	_ "golang.org/x/image/bmp"
)

// ImageProcessor decodes and resizes images to a fixed square size.
type ImageProcessor struct {
	targetSize int
}

// NewImageProcessor creates an image processor with the specified target size.
func NewImageProcessor(targetSize int) *ImageProcessor {
	return &ImageProcessor{targetSize: targetSize}
}

// ProcessedImage is a decoded image in HWC layout with values in [0, 1].
type ProcessedImage struct {
	Data     []float32
	Width    int
	Height   int
	Channels int
}

// DecodeAndPreprocess decodes an image (JPEG, PNG, GIF or BMP), resizes it
// to targetSize x targetSize with bilinear interpolation and returns RGB
// data in HWC layout normalized to [0, 1].
func (p *ImageProcessor) DecodeAndPreprocess(reader io.Reader) (*ProcessedImage, error) {
	img, _, err := image.Decode(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return p.FromImage(img), nil
}

// FromImage resizes an already decoded image and converts it to HWC float32.
func (p *ImageProcessor) FromImage(img image.Image) *ProcessedImage {
	size := p.targetSize
	b := img.Bounds()
	if b.Dx() != size || b.Dy() != size {
		img = resize.Resize(uint(size), uint(size), img, resize.Bilinear)
		b = img.Bounds()
	}

	data := make([]float32, size*size*3)
	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			data[i] = float32(r) / 65535.0
			data[i+1] = float32(g) / 65535.0
			data[i+2] = float32(bl) / 65535.0
			i += 3
		}
	}
	return &ProcessedImage{
		Data:     data,
		Width:    size,
		Height:   size,
		Channels: 3,
	}
}

// PreprocessFile opens and preprocesses a single image file.
func (p *ImageProcessor) PreprocessFile(path string) (*ProcessedImage, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	img, err := p.DecodeAndPreprocess(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return img, nil
}

// PreprocessBatch preprocesses multiple images concurrently with a worker
// pool. Any decode failure fails the whole batch.
func PreprocessBatch(imagePaths []string, targetSize int, maxWorkers int) ([]*ProcessedImage, error) {
	if maxWorkers <= 0 {
		maxWorkers = 1
	}

	results := make([]*ProcessedImage, len(imagePaths))
	errs := make([]error, len(imagePaths))

	jobs := make(chan int, len(imagePaths))
	var wg sync.WaitGroup
	for w := 0; w < maxWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			processor := NewImageProcessor(targetSize)
			for i := range jobs {
				results[i], errs[i] = processor.PreprocessFile(imagePaths[i])
			}
		}()
	}
	for i := range imagePaths {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("failed to process image %d: %w", i, err)
		}
	}
	return results, nil
}
