// Command train runs the full skin lesion classification pipeline: dataset
// loading, augmentation fitting, hybrid model training with per-epoch
// validation, evaluation with a classification report, training plots and
// an auxiliary gradient boosted tree classifier on raw pixels.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/sudiptamani12/skin-cancer-project/boost"
	"github.com/sudiptamani12/skin-cancer-project/engine"
	"github.com/sudiptamani12/skin-cancer-project/layers"
	"github.com/sudiptamani12/skin-cancer-project/optimizer"
	"github.com/sudiptamani12/skin-cancer-project/training"
	"github.com/sudiptamani12/skin-cancer-project/vision/augment"
	"github.com/sudiptamani12/skin-cancer-project/vision/dataset"
)

type options struct {
	dataDir     string
	archivePath string
	outDir      string
	imageSize   int
	epochs      int
	batchSize   int
	valSplit    float64
	seed        int64
	learnRate   float64
	augmentData bool
	workers     int
	boostRounds int
	boostDepth  int
}

func parseFlags() options {
	var o options
	flag.StringVar(&o.dataDir, "data", "data", "dataset root containing train/ and test/ trees with one folder per class")
	flag.StringVar(&o.archivePath, "archive", "", "optional zip archive to extract into the dataset root first")
	flag.StringVar(&o.outDir, "out", "out", "output directory for plots")
	flag.IntVar(&o.imageSize, "size", 224, "square image size")
	flag.IntVar(&o.epochs, "epochs", 10, "training epochs")
	flag.IntVar(&o.batchSize, "batch", 32, "batch size")
	flag.Float64Var(&o.valSplit, "val-split", 0.2, "validation fraction")
	flag.Int64Var(&o.seed, "seed", 42, "random seed for the split and initialization")
	flag.Float64Var(&o.learnRate, "lr", 0.001, "Adam learning rate")
	flag.BoolVar(&o.augmentData, "augment", false, "apply the fitted augmentation policy during training")
	flag.IntVar(&o.workers, "workers", 0, "image decode workers, 0 uses all CPUs")
	flag.IntVar(&o.boostRounds, "boost-rounds", 100, "boosting rounds for the tree classifier, 0 disables it")
	flag.IntVar(&o.boostDepth, "boost-depth", 6, "maximum tree depth for the tree classifier")
	flag.Parse()
	return o
}

func main() {
	o := parseFlags()

	logger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(o, logger.Sugar()); err != nil {
		logger.Sugar().Fatalf("pipeline failed: %+v", err)
	}
}

func run(o options, log *zap.SugaredLogger) error {
	if o.archivePath != "" {
		log.Infow("extracting archive", "archive", o.archivePath, "dest", o.dataDir)
		if err := dataset.ExtractArchive(o.archivePath, o.dataDir); err != nil {
			return err
		}
	}

	trainRoot := filepath.Join(o.dataDir, "train")
	testRoot := filepath.Join(o.dataDir, "test")

	counts, total, err := dataset.CountImages(trainRoot, nil)
	if err != nil {
		return err
	}
	log.Infow("found training images", "total", total, "per_class", counts)

	log.Infow("loading datasets", "root", o.dataDir, "size", o.imageSize)
	ds, err := dataset.Load(dataset.Config{
		Root:       trainRoot,
		TargetSize: o.imageSize,
		Workers:    o.workers,
	})
	if err != nil {
		return errors.Wrap(err, "failed to load training tree")
	}
	log.Infof("training dataset loaded:\n%s", ds)

	testSet, err := dataset.Load(dataset.Config{
		Root:       testRoot,
		TargetSize: o.imageSize,
		Workers:    o.workers,
	})
	if err != nil {
		return errors.Wrap(err, "failed to load test tree")
	}
	log.Infof("test dataset loaded:\n%s", testSet)

	augmenter, err := augment.New(augment.DefaultPolicy(), o.seed)
	if err != nil {
		return err
	}
	if err := augmenter.Fit(ds.Images); err != nil {
		return errors.Wrap(err, "failed to fit augmentation statistics")
	}
	mean, stddev, err := augmenter.ChannelStats()
	if err != nil {
		return err
	}
	log.Infow("augmentation fitted", "mean", mean, "stddev", stddev, "applied", o.augmentData)

	// the validation part monitors training between epochs; the test tree
	// stays untouched until the final evaluation
	train, val, err := ds.Split(o.valSplit, o.seed)
	if err != nil {
		return err
	}
	log.Infow("dataset split", "train", train.Len(), "validation", val.Len())

	spec, err := layers.NewHybridClassifier([]int{o.imageSize, o.imageSize, 3}, ds.NumClasses())
	if err != nil {
		return err
	}
	log.Infof("model:\n%s", spec)

	model, err := engine.NewModel(spec, o.seed)
	if err != nil {
		return err
	}

	adamConfig := optimizer.DefaultAdamConfig()
	adamConfig.LearningRate = float32(o.learnRate)
	opt, err := optimizer.NewAdam(adamConfig)
	if err != nil {
		return err
	}

	trainer, err := training.NewTrainer(model, opt, training.TrainerConfig{
		Epochs:          o.epochs,
		BatchSize:       o.batchSize,
		ValidationSplit: o.valSplit,
		Seed:            o.seed,
		Augment:         o.augmentData,
		Verbose:         true,
	})
	if err != nil {
		return err
	}
	trainer.SetAugmenter(augmenter)

	history, err := trainer.FitSplit(train, val)
	if err != nil {
		return errors.Wrap(err, "training failed")
	}
	log.Infow("training complete", "wall_clock", history.TotalTime)

	result, err := training.Evaluate(model, testSet, o.batchSize)
	if err != nil {
		return errors.Wrap(err, "evaluation failed")
	}
	log.Infow("test evaluation", "loss", result.Loss, "accuracy", result.Accuracy)
	fmt.Println(result.Confusion)
	fmt.Println(result.Report(ds.Classes))

	if err := os.MkdirAll(o.outDir, 0o755); err != nil {
		return errors.Wrapf(err, "failed to create %s", o.outDir)
	}
	if err := training.SaveTrainingCurves(history, o.outDir); err != nil {
		return err
	}
	if err := training.SaveConfusionHeatmap(result.Confusion, ds.Classes,
		filepath.Join(o.outDir, "confusion.png")); err != nil {
		return err
	}
	if err := training.SaveClassDistribution(ds.ClassDistribution(), ds.Classes,
		filepath.Join(o.outDir, "distribution.png")); err != nil {
		return err
	}
	log.Infow("plots written", "dir", o.outDir)

	if o.boostRounds > 0 {
		if err := runBoost(o, log, train, testSet); err != nil {
			return errors.Wrap(err, "boosted classifier failed")
		}
	}
	return nil
}

// runBoost trains the auxiliary gradient boosted tree classifier on the
// flattened training pixels and scores it on the held-out test set.
func runBoost(o options, log *zap.SugaredLogger, train, test *dataset.Dataset) error {
	log.Infow("training boosted tree classifier", "rounds", o.boostRounds, "max_depth", o.boostDepth)

	trainX, err := boost.Flatten(train.Images)
	if err != nil {
		return err
	}
	testX, err := boost.Flatten(test.Images)
	if err != nil {
		return err
	}

	config := boost.DefaultConfig()
	config.Rounds = o.boostRounds
	config.MaxDepth = o.boostDepth
	config.Seed = o.seed
	clf, err := boost.NewClassifier(config)
	if err != nil {
		return err
	}
	if err := clf.Fit(trainX, train.Labels, train.NumClasses()); err != nil {
		return err
	}

	preds, err := clf.Predict(testX)
	if err != nil {
		return err
	}
	cm := training.NewConfusionMatrix(test.NumClasses())
	if err := cm.Update(preds, test.Labels); err != nil {
		return err
	}
	log.Infow("boosted tree evaluation", "accuracy", cm.Accuracy(), "trees", clf.NumTrees())
	fmt.Println(training.ClassificationReport(cm, test.Classes))
	return nil
}
