package augment

import (
	"fmt"

	"github.com/montanaflynn/stats"

	"github.com/sudiptamani12/skin-cancer-project/tensor"
)

// Fit computes per-channel mean and standard deviation over a batch of
// training images shaped (N, H, W, C). The statistics are kept on the
// augmenter for standardization.
func (a *Augmenter) Fit(images *tensor.Tensor) error {
	if len(images.Shape) != 4 {
		return fmt.Errorf("expected (N,H,W,C) tensor, got shape %v", images.Shape)
	}
	channels := images.Shape[3]
	data := images.Float32Data()
	if len(data) == 0 {
		return fmt.Errorf("cannot fit on an empty batch")
	}

	perChannel := make([][]float64, channels)
	pixels := len(data) / channels
	for c := range perChannel {
		perChannel[c] = make([]float64, 0, pixels)
	}
	for i, v := range data {
		c := i % channels
		perChannel[c] = append(perChannel[c], float64(v))
	}

	a.mean = make([]float64, channels)
	a.stddev = make([]float64, channels)
	for c, values := range perChannel {
		mean, err := stats.Mean(values)
		if err != nil {
			return fmt.Errorf("channel %d mean: %w", c, err)
		}
		sd, err := stats.StandardDeviation(values)
		if err != nil {
			return fmt.Errorf("channel %d standard deviation: %w", c, err)
		}
		a.mean[c] = mean
		a.stddev[c] = sd
	}
	a.fitted = true
	return nil
}

// Standardize subtracts the fitted channel means and divides by the fitted
// standard deviations, in place.
func (a *Augmenter) Standardize(images *tensor.Tensor) error {
	if !a.fitted {
		return fmt.Errorf("augmenter has not been fitted")
	}
	channels := len(a.mean)
	data := images.Float32Data()
	for i := range data {
		c := i % channels
		sd := a.stddev[c]
		if sd == 0 {
			sd = 1
		}
		data[i] = float32((float64(data[i]) - a.mean[c]) / sd)
	}
	return nil
}
