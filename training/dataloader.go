package training

import (
	"fmt"
	"math/rand"

	"github.com/sudiptamani12/skin-cancer-project/tensor"
	"github.com/sudiptamani12/skin-cancer-project/vision/dataset"
)

// Batch is one mini-batch of images and labels.
type Batch struct {
	Images *tensor.Tensor // (B, H, W, C)
	Labels []int32
}

// DataLoader iterates over a dataset in mini-batches, optionally
// reshuffling the sample order every epoch.
type DataLoader struct {
	dataset   *tensor.Tensor
	labels    []int32
	batchSize int
	shuffle   bool
	rng       *rand.Rand

	order  []int
	cursor int
	stride int
	shape  []int
}

// NewDataLoader creates a loader over the dataset. When shuffle is set the
// order is drawn from the seeded source at the start of every epoch.
func NewDataLoader(ds *dataset.Dataset, batchSize int, shuffle bool, seed int64) (*DataLoader, error) {
	if batchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", batchSize)
	}
	if ds.Len() == 0 {
		return nil, fmt.Errorf("dataset is empty")
	}
	shape := ds.Images.Shape
	dl := &DataLoader{
		dataset:   ds.Images,
		labels:    ds.Labels,
		batchSize: batchSize,
		shuffle:   shuffle,
		rng:       rand.New(rand.NewSource(seed)),
		stride:    shape[1] * shape[2] * shape[3],
		shape:     shape,
	}
	dl.Reset()
	return dl, nil
}

// NumBatches returns the number of batches per epoch. The final batch may
// be smaller than the configured batch size.
func (dl *DataLoader) NumBatches() int {
	n := len(dl.labels)
	return (n + dl.batchSize - 1) / dl.batchSize
}

// Reset starts a new epoch, reshuffling if configured.
func (dl *DataLoader) Reset() {
	if dl.shuffle {
		dl.order = dl.rng.Perm(len(dl.labels))
	} else if dl.order == nil {
		dl.order = make([]int, len(dl.labels))
		for i := range dl.order {
			dl.order[i] = i
		}
	}
	dl.cursor = 0
}

// Next returns the next batch, or nil when the epoch is exhausted.
func (dl *DataLoader) Next() (*Batch, error) {
	if dl.cursor >= len(dl.order) {
		return nil, nil
	}
	end := dl.cursor + dl.batchSize
	if end > len(dl.order) {
		end = len(dl.order)
	}
	indices := dl.order[dl.cursor:end]
	dl.cursor = end

	src := dl.dataset.Float32Data()
	data := make([]float32, len(indices)*dl.stride)
	labels := make([]int32, len(indices))
	for i, idx := range indices {
		copy(data[i*dl.stride:(i+1)*dl.stride], src[idx*dl.stride:(idx+1)*dl.stride])
		labels[i] = dl.labels[idx]
	}
	images, err := tensor.NewTensor(
		[]int{len(indices), dl.shape[1], dl.shape[2], dl.shape[3]},
		tensor.Float32, data)
	if err != nil {
		return nil, err
	}
	return &Batch{Images: images, Labels: labels}, nil
}
