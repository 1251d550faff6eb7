// Package dataset loads labeled skin lesion images from a class-per-folder
// directory layout into tensors.
package dataset

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/sudiptamani12/skin-cancer-project/tensor"
	"github.com/sudiptamani12/skin-cancer-project/vision/preprocessing"
)

// DefaultClasses is the lesion taxonomy in label order: label 0 is benign,
// 1 is malignant, 2 is precancerous.
func DefaultClasses() []string {
	return []string{"benign", "malignant", "precancerous"}
}

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".bmp":  true,
}

// Config controls how a dataset directory is loaded.
type Config struct {
	// Root contains one subdirectory per class.
	Root string
	// Classes fixes the label order. Defaults to DefaultClasses.
	Classes []string
	// TargetSize is the square side length images are resized to.
	// Defaults to 224.
	TargetSize int
	// Workers is the decode worker count. Defaults to GOMAXPROCS.
	Workers int
}

func (c *Config) applyDefaults() {
	if len(c.Classes) == 0 {
		c.Classes = DefaultClasses()
	}
	if c.TargetSize <= 0 {
		c.TargetSize = 224
	}
	if c.Workers <= 0 {
		c.Workers = runtime.GOMAXPROCS(0)
	}
}

// Dataset holds decoded images as one (N, H, W, C) tensor plus per-sample
// labels and source paths.
type Dataset struct {
	Images  *tensor.Tensor
	Labels  []int32
	Classes []string
	Paths   []string
}

// listClassImages returns the sorted image paths for one class directory.
func listClassImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read class directory %s", dir)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if imageExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)
	return paths, nil
}

// CountImages counts the image files per class under root without decoding
// them, and returns the per-class counts plus the total.
func CountImages(root string, classes []string) (map[string]int, int, error) {
	if len(classes) == 0 {
		classes = DefaultClasses()
	}
	counts := make(map[string]int, len(classes))
	total := 0
	for _, class := range classes {
		paths, err := listClassImages(filepath.Join(root, class))
		if err != nil {
			return nil, 0, err
		}
		counts[class] = len(paths)
		total += len(paths)
	}
	return counts, total, nil
}

// Load reads every image under root into memory. Any unreadable or
// undecodable file fails the whole load.
func Load(cfg Config) (*Dataset, error) {
	cfg.applyDefaults()

	var allPaths []string
	var labels []int32
	for idx, class := range cfg.Classes {
		paths, err := listClassImages(filepath.Join(cfg.Root, class))
		if err != nil {
			return nil, err
		}
		for _, p := range paths {
			allPaths = append(allPaths, p)
			labels = append(labels, int32(idx))
		}
	}
	if len(allPaths) == 0 {
		return nil, errors.Errorf("no images found under %s", cfg.Root)
	}

	images, err := preprocessing.PreprocessBatch(allPaths, cfg.TargetSize, cfg.Workers)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load dataset")
	}

	size := cfg.TargetSize
	data := make([]float32, len(images)*size*size*3)
	stride := size * size * 3
	for i, img := range images {
		copy(data[i*stride:(i+1)*stride], img.Data)
	}
	imgTensor, err := tensor.NewTensor([]int{len(images), size, size, 3}, tensor.Float32, data)
	if err != nil {
		return nil, err
	}
	return &Dataset{
		Images:  imgTensor,
		Labels:  labels,
		Classes: cfg.Classes,
		Paths:   allPaths,
	}, nil
}

// Len returns the number of samples.
func (d *Dataset) Len() int {
	return len(d.Labels)
}

// NumClasses returns the number of classes.
func (d *Dataset) NumClasses() int {
	return len(d.Classes)
}

// ClassDistribution returns the sample count per class name.
func (d *Dataset) ClassDistribution() map[string]int {
	dist := make(map[string]int, len(d.Classes))
	for _, label := range d.Labels {
		dist[d.Classes[label]]++
	}
	return dist
}

// Subset copies the samples at the given indices into a new dataset. An
// empty index list yields an empty dataset with no image tensor.
func (d *Dataset) Subset(indices []int) (*Dataset, error) {
	if len(indices) == 0 {
		return &Dataset{Labels: []int32{}, Classes: d.Classes, Paths: []string{}}, nil
	}
	shape := d.Images.Shape
	stride := shape[1] * shape[2] * shape[3]
	src := d.Images.Float32Data()

	data := make([]float32, len(indices)*stride)
	labels := make([]int32, len(indices))
	paths := make([]string, len(indices))
	for i, idx := range indices {
		if idx < 0 || idx >= d.Len() {
			return nil, fmt.Errorf("index %d out of range [0, %d)", idx, d.Len())
		}
		copy(data[i*stride:(i+1)*stride], src[idx*stride:(idx+1)*stride])
		labels[i] = d.Labels[idx]
		paths[i] = d.Paths[idx]
	}
	images, err := tensor.NewTensor([]int{len(indices), shape[1], shape[2], shape[3]}, tensor.Float32, data)
	if err != nil {
		return nil, err
	}
	return &Dataset{Images: images, Labels: labels, Classes: d.Classes, Paths: paths}, nil
}

// Split partitions the dataset into train and validation sets. The
// validation set holds round(n * valFraction) samples chosen by a seeded
// shuffle, so the same seed always yields the same split.
func (d *Dataset) Split(valFraction float64, seed int64) (*Dataset, *Dataset, error) {
	if valFraction < 0 || valFraction >= 1 {
		return nil, nil, fmt.Errorf("validation fraction must be in [0,1), got %f", valFraction)
	}
	n := d.Len()
	valSize := int(float64(n)*valFraction + 0.5)

	perm := rand.New(rand.NewSource(seed)).Perm(n)
	train, err := d.Subset(perm[:n-valSize])
	if err != nil {
		return nil, nil, err
	}
	val, err := d.Subset(perm[n-valSize:])
	if err != nil {
		return nil, nil, err
	}
	return train, val, nil
}

// String summarizes the dataset and its class distribution.
func (d *Dataset) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Dataset: %d samples, %d classes\n", d.Len(), d.NumClasses())
	dist := d.ClassDistribution()
	for _, class := range d.Classes {
		fmt.Fprintf(&sb, "  %s: %d samples\n", class, dist[class])
	}
	return sb.String()
}
