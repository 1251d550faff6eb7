package training

import (
	"fmt"
	"testing"

	"github.com/sudiptamani12/skin-cancer-project/tensor"
	"github.com/sudiptamani12/skin-cancer-project/vision/dataset"
)

func syntheticDataset(t *testing.T, n, size int) *dataset.Dataset {
	t.Helper()
	stride := size * size * 3
	data := make([]float32, n*stride)
	for i := 0; i < n; i++ {
		// every pixel of sample i carries the sample index
		for j := 0; j < stride; j++ {
			data[i*stride+j] = float32(i)
		}
	}
	images, err := tensor.NewTensor([]int{n, size, size, 3}, tensor.Float32, data)
	if err != nil {
		t.Fatalf("failed to create tensor: %v", err)
	}
	labels := make([]int32, n)
	paths := make([]string, n)
	for i := range labels {
		labels[i] = int32(i % 3)
		paths[i] = fmt.Sprintf("img_%03d.png", i)
	}
	return &dataset.Dataset{
		Images:  images,
		Labels:  labels,
		Classes: dataset.DefaultClasses(),
		Paths:   paths,
	}
}

func TestDataLoaderBatchCount(t *testing.T) {
	ds := syntheticDataset(t, 10, 2)
	dl, err := NewDataLoader(ds, 4, false, 0)
	if err != nil {
		t.Fatalf("failed to create loader: %v", err)
	}
	if dl.NumBatches() != 3 {
		t.Errorf("expected 3 batches, got %d", dl.NumBatches())
	}

	sizes := []int{}
	for {
		b, err := dl.Next()
		if err != nil {
			t.Fatalf("next failed: %v", err)
		}
		if b == nil {
			break
		}
		sizes = append(sizes, len(b.Labels))
	}
	want := []int{4, 4, 2}
	if len(sizes) != len(want) {
		t.Fatalf("expected %d batches, got %d", len(want), len(sizes))
	}
	for i := range want {
		if sizes[i] != want[i] {
			t.Errorf("batch %d: expected size %d, got %d", i, want[i], sizes[i])
		}
	}
}

func TestDataLoaderPreservesOrderWithoutShuffle(t *testing.T) {
	ds := syntheticDataset(t, 6, 2)
	dl, err := NewDataLoader(ds, 4, false, 0)
	if err != nil {
		t.Fatalf("failed to create loader: %v", err)
	}
	b, err := dl.Next()
	if err != nil {
		t.Fatalf("next failed: %v", err)
	}
	data := b.Images.Float32Data()
	stride := 2 * 2 * 3
	for i := 0; i < 4; i++ {
		if data[i*stride] != float32(i) {
			t.Errorf("sample %d: expected marker %d, got %f", i, i, data[i*stride])
		}
	}
}

func TestDataLoaderShuffleDeterministic(t *testing.T) {
	ds := syntheticDataset(t, 12, 2)

	order := func(seed int64) []float32 {
		dl, err := NewDataLoader(ds, 12, true, seed)
		if err != nil {
			t.Fatalf("failed to create loader: %v", err)
		}
		b, err := dl.Next()
		if err != nil {
			t.Fatalf("next failed: %v", err)
		}
		stride := 2 * 2 * 3
		markers := make([]float32, 12)
		for i := range markers {
			markers[i] = b.Images.Float32Data()[i*stride]
		}
		return markers
	}

	a, b := order(42), order(42)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("same seed produced different order at %d", i)
		}
	}
}

func TestDataLoaderKeepsLabelsAligned(t *testing.T) {
	ds := syntheticDataset(t, 9, 2)
	dl, err := NewDataLoader(ds, 4, true, 7)
	if err != nil {
		t.Fatalf("failed to create loader: %v", err)
	}
	stride := 2 * 2 * 3
	for {
		b, err := dl.Next()
		if err != nil {
			t.Fatalf("next failed: %v", err)
		}
		if b == nil {
			break
		}
		for i, label := range b.Labels {
			marker := int32(b.Images.Float32Data()[i*stride])
			if label != marker%3 {
				t.Errorf("sample marker %d: expected label %d, got %d", marker, marker%3, label)
			}
		}
	}
}

func TestDataLoaderValidation(t *testing.T) {
	ds := syntheticDataset(t, 4, 2)
	if _, err := NewDataLoader(ds, 0, false, 0); err == nil {
		t.Error("expected error for batch size 0, got nil")
	}
}
