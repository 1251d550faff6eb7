package main

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/sudiptamani12/skin-cancer-project/vision/dataset"
)

// writeTree fills <root>/<split>/<class> with solid-color images so each
// class is trivially separable.
func writeTree(t *testing.T, root, split string, count int) {
	t.Helper()
	for i, class := range dataset.DefaultClasses() {
		dir := filepath.Join(root, split, class)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("failed to create %s: %v", dir, err)
		}
		c := color.RGBA{A: 255}
		switch i {
		case 0:
			c.R = 255
		case 1:
			c.G = 255
		case 2:
			c.B = 255
		}
		for j := 0; j < count; j++ {
			img := image.NewRGBA(image.Rect(0, 0, 12, 12))
			for y := 0; y < 12; y++ {
				for x := 0; x < 12; x++ {
					img.Set(x, y, c)
				}
			}
			var buf bytes.Buffer
			if err := png.Encode(&buf, img); err != nil {
				t.Fatalf("failed to encode png: %v", err)
			}
			name := filepath.Join(dir, fmt.Sprintf("img_%03d.png", j))
			if err := os.WriteFile(name, buf.Bytes(), 0o644); err != nil {
				t.Fatalf("failed to write %s: %v", name, err)
			}
		}
	}
}

func TestRunEvaluatesOnTestTree(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, "train", 4)
	writeTree(t, root, "test", 2)
	outDir := filepath.Join(root, "out")

	o := options{
		dataDir:     root,
		outDir:      outDir,
		imageSize:   16,
		epochs:      1,
		batchSize:   4,
		valSplit:    0.25,
		seed:        42,
		learnRate:   0.001,
		workers:     1,
		boostRounds: 2,
		boostDepth:  2,
	}
	if err := run(o, zap.NewNop().Sugar()); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	for _, name := range []string{"loss.png", "accuracy.png", "confusion.png", "distribution.png"} {
		if _, err := os.Stat(filepath.Join(outDir, name)); err != nil {
			t.Errorf("expected plot %s: %v", name, err)
		}
	}
}

func TestRunFailsOnMissingTestTree(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, "train", 2)

	o := options{
		dataDir:   root,
		outDir:    filepath.Join(root, "out"),
		imageSize: 16,
		epochs:    1,
		batchSize: 4,
		valSplit:  0.25,
		seed:      42,
		learnRate: 0.001,
		workers:   1,
	}
	if err := run(o, zap.NewNop().Sugar()); err == nil {
		t.Error("expected error for missing test tree, got nil")
	}
}
