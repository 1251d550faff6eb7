// Package training drives the epoch loop of the lesion classifier:
// mini-batching, optimization, per-epoch validation, evaluation metrics
// and training-curve plots.
package training

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sudiptamani12/skin-cancer-project/engine"
	"github.com/sudiptamani12/skin-cancer-project/optimizer"
	"github.com/sudiptamani12/skin-cancer-project/tensor"
	"github.com/sudiptamani12/skin-cancer-project/vision/augment"
	"github.com/sudiptamani12/skin-cancer-project/vision/dataset"
)

// TrainerConfig controls the training loop.
type TrainerConfig struct {
	Epochs          int
	BatchSize       int
	ValidationSplit float64
	Seed            int64
	// Augment applies the fitted augmentation policy to every training
	// batch. Off by default: the policy is configured and fitted but
	// images pass through unchanged.
	Augment bool
	Verbose bool
}

// DefaultTrainerConfig returns the standard lesion training settings.
func DefaultTrainerConfig() TrainerConfig {
	return TrainerConfig{
		Epochs:          10,
		BatchSize:       32,
		ValidationSplit: 0.2,
		Seed:            42,
		Augment:         false,
		Verbose:         true,
	}
}

// History records per-epoch training metrics.
type History struct {
	TrainLoss     []float64
	TrainAccuracy []float64
	ValLoss       []float64
	ValAccuracy   []float64
	EpochTimes    []time.Duration
	TotalTime     time.Duration
}

// Trainer runs the training loop for a model.
type Trainer struct {
	model     *engine.Model
	optimizer optimizer.Optimizer
	config    TrainerConfig
	augmenter *augment.Augmenter
	out       io.Writer
}

// NewTrainer validates the config and creates a trainer.
func NewTrainer(model *engine.Model, opt optimizer.Optimizer, config TrainerConfig) (*Trainer, error) {
	if config.Epochs <= 0 {
		return nil, fmt.Errorf("epochs must be positive, got %d", config.Epochs)
	}
	if config.BatchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", config.BatchSize)
	}
	if config.ValidationSplit < 0 || config.ValidationSplit >= 1 {
		return nil, fmt.Errorf("validation split must be in [0,1), got %f", config.ValidationSplit)
	}
	return &Trainer{
		model:     model,
		optimizer: opt,
		config:    config,
		out:       os.Stdout,
	}, nil
}

// SetAugmenter attaches a fitted augmenter. It is only consulted when the
// Augment config flag is set.
func (t *Trainer) SetAugmenter(a *augment.Augmenter) {
	t.augmenter = a
}

// SetOutput redirects progress output.
func (t *Trainer) SetOutput(w io.Writer) {
	t.out = w
}

// Fit splits the dataset into train and validation parts and runs the
// configured number of epochs, validating after each one.
func (t *Trainer) Fit(ds *dataset.Dataset) (*History, error) {
	train, val, err := ds.Split(t.config.ValidationSplit, t.config.Seed)
	if err != nil {
		return nil, err
	}
	return t.FitSplit(train, val)
}

// FitSplit trains on an already split dataset.
func (t *Trainer) FitSplit(train, val *dataset.Dataset) (*History, error) {
	loader, err := NewDataLoader(train, t.config.BatchSize, true, t.config.Seed)
	if err != nil {
		return nil, fmt.Errorf("training loader: %w", err)
	}

	history := &History{}
	start := time.Now()
	for epoch := 1; epoch <= t.config.Epochs; epoch++ {
		epochStart := time.Now()
		trainLoss, trainAcc, err := t.runEpoch(loader, epoch)
		if err != nil {
			return nil, fmt.Errorf("epoch %d: %w", epoch, err)
		}
		history.TrainLoss = append(history.TrainLoss, trainLoss)
		history.TrainAccuracy = append(history.TrainAccuracy, trainAcc)

		if val != nil && val.Len() > 0 {
			result, err := Evaluate(t.model, val, t.config.BatchSize)
			if err != nil {
				return nil, fmt.Errorf("epoch %d validation: %w", epoch, err)
			}
			history.ValLoss = append(history.ValLoss, result.Loss)
			history.ValAccuracy = append(history.ValAccuracy, result.Accuracy)
			if t.config.Verbose {
				fmt.Fprintf(t.out, "epoch %d/%d: loss=%.4f acc=%.2f%% val_loss=%.4f val_acc=%.2f%% (%s)\n",
					epoch, t.config.Epochs, trainLoss, trainAcc*100,
					result.Loss, result.Accuracy*100,
					time.Since(epochStart).Round(time.Millisecond))
			}
		} else if t.config.Verbose {
			fmt.Fprintf(t.out, "epoch %d/%d: loss=%.4f acc=%.2f%% (%s)\n",
				epoch, t.config.Epochs, trainLoss, trainAcc*100,
				time.Since(epochStart).Round(time.Millisecond))
		}
		history.EpochTimes = append(history.EpochTimes, time.Since(epochStart))
	}
	history.TotalTime = time.Since(start)
	if t.config.Verbose {
		fmt.Fprintf(t.out, "training finished in %s\n", history.TotalTime.Round(time.Millisecond))
	}
	return history, nil
}

func (t *Trainer) runEpoch(loader *DataLoader, epoch int) (loss, accuracy float64, err error) {
	loader.Reset()
	var bar *ProgressBar
	if t.config.Verbose {
		bar = NewProgressBar(t.out, fmt.Sprintf("epoch %d", epoch), loader.NumBatches())
	}

	var totalLoss float64
	var correct, seen, step int
	for {
		batch, err := loader.Next()
		if err != nil {
			return 0, 0, err
		}
		if batch == nil {
			break
		}
		images := batch.Images
		if t.config.Augment && t.augmenter != nil {
			images, err = t.augmenter.ApplyBatch(images)
			if err != nil {
				return 0, 0, err
			}
		}

		batchLoss, probs, err := t.model.TrainStep(images, batch.Labels)
		if err != nil {
			return 0, 0, err
		}
		if err := t.optimizer.Step(t.model.Parameters()); err != nil {
			return 0, 0, err
		}

		// training accuracy comes from the probabilities the step already
		// computed, before the optimizer update
		preds := tensor.ArgMaxRows(probs.Float32Data(), probs.Shape[0], probs.Shape[1])
		for i, p := range preds {
			if p == batch.Labels[i] {
				correct++
			}
		}
		n := len(batch.Labels)
		totalLoss += batchLoss * float64(n)
		seen += n
		step++
		if bar != nil {
			bar.Update(step, map[string]float64{
				"loss": totalLoss / float64(seen),
				"acc":  float64(correct) / float64(seen),
			})
		}
	}
	if bar != nil {
		bar.Finish()
	}
	if seen == 0 {
		return 0, 0, fmt.Errorf("no training samples")
	}
	return totalLoss / float64(seen), float64(correct) / float64(seen), nil
}
