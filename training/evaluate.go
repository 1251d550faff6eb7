package training

import (
	"github.com/sudiptamani12/skin-cancer-project/engine"
	"github.com/sudiptamani12/skin-cancer-project/tensor"
	"github.com/sudiptamani12/skin-cancer-project/vision/dataset"
)

// EvaluationResult holds the metrics of one evaluation pass.
type EvaluationResult struct {
	Loss      float64
	Accuracy  float64
	Confusion *ConfusionMatrix
	// Predictions and Labels are aligned per sample in dataset order.
	Predictions []int32
	Labels      []int32
}

// Report renders the classification report for the evaluated dataset.
func (r *EvaluationResult) Report(classNames []string) string {
	return ClassificationReport(r.Confusion, classNames)
}

// Evaluate runs the model over the dataset without updating parameters and
// returns loss, accuracy and the confusion matrix.
func Evaluate(model *engine.Model, ds *dataset.Dataset, batchSize int) (*EvaluationResult, error) {
	loader, err := NewDataLoader(ds, batchSize, false, 0)
	if err != nil {
		return nil, err
	}

	result := &EvaluationResult{
		Confusion: NewConfusionMatrix(ds.NumClasses()),
	}
	var totalLoss float64
	var seen int
	for {
		batch, err := loader.Next()
		if err != nil {
			return nil, err
		}
		if batch == nil {
			break
		}
		probs, err := model.Forward(batch.Images)
		if err != nil {
			return nil, err
		}
		loss, err := model.Loss(probs, batch.Labels)
		if err != nil {
			return nil, err
		}

		n, k := probs.Shape[0], probs.Shape[1]
		preds := tensor.ArgMaxRows(probs.Float32Data(), n, k)
		if err := result.Confusion.Update(preds, batch.Labels); err != nil {
			return nil, err
		}
		result.Predictions = append(result.Predictions, preds...)
		result.Labels = append(result.Labels, batch.Labels...)
		totalLoss += loss * float64(n)
		seen += n
	}

	result.Loss = totalLoss / float64(seen)
	result.Accuracy = result.Confusion.Accuracy()
	return result, nil
}
