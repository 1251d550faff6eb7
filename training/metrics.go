package training

import (
	"fmt"
	"strings"
)

// ConfusionMatrix counts predictions per (true class, predicted class) pair.
type ConfusionMatrix struct {
	NumClasses   int
	Matrix       [][]int // [true class][predicted class]
	TotalSamples int
}

// NewConfusionMatrix creates an empty confusion matrix.
func NewConfusionMatrix(numClasses int) *ConfusionMatrix {
	matrix := make([][]int, numClasses)
	for i := range matrix {
		matrix[i] = make([]int, numClasses)
	}
	return &ConfusionMatrix{NumClasses: numClasses, Matrix: matrix}
}

// Reset clears all counts.
func (cm *ConfusionMatrix) Reset() {
	for i := range cm.Matrix {
		for j := range cm.Matrix[i] {
			cm.Matrix[i][j] = 0
		}
	}
	cm.TotalSamples = 0
}

// Update adds one batch of predictions.
func (cm *ConfusionMatrix) Update(predictions, trueLabels []int32) error {
	if len(predictions) != len(trueLabels) {
		return fmt.Errorf("predictions length %d does not match labels length %d",
			len(predictions), len(trueLabels))
	}
	for i, pred := range predictions {
		truth := trueLabels[i]
		if truth < 0 || int(truth) >= cm.NumClasses {
			return fmt.Errorf("label %d out of range [0,%d)", truth, cm.NumClasses)
		}
		if pred < 0 || int(pred) >= cm.NumClasses {
			return fmt.Errorf("prediction %d out of range [0,%d)", pred, cm.NumClasses)
		}
		cm.Matrix[truth][pred]++
		cm.TotalSamples++
	}
	return nil
}

// Accuracy returns the fraction of correctly classified samples.
func (cm *ConfusionMatrix) Accuracy() float64 {
	if cm.TotalSamples == 0 {
		return 0
	}
	correct := 0
	for i := 0; i < cm.NumClasses; i++ {
		correct += cm.Matrix[i][i]
	}
	return float64(correct) / float64(cm.TotalSamples)
}

// Support returns the number of true samples of a class.
func (cm *ConfusionMatrix) Support(class int) int {
	total := 0
	for _, count := range cm.Matrix[class] {
		total += count
	}
	return total
}

// Precision returns the precision of one class.
func (cm *ConfusionMatrix) Precision(class int) float64 {
	tp := cm.Matrix[class][class]
	predicted := 0
	for i := 0; i < cm.NumClasses; i++ {
		predicted += cm.Matrix[i][class]
	}
	if predicted == 0 {
		return 0
	}
	return float64(tp) / float64(predicted)
}

// Recall returns the recall of one class.
func (cm *ConfusionMatrix) Recall(class int) float64 {
	tp := cm.Matrix[class][class]
	support := cm.Support(class)
	if support == 0 {
		return 0
	}
	return float64(tp) / float64(support)
}

// F1 returns the harmonic mean of precision and recall for one class.
func (cm *ConfusionMatrix) F1(class int) float64 {
	p := cm.Precision(class)
	r := cm.Recall(class)
	if p+r == 0 {
		return 0
	}
	return 2 * p * r / (p + r)
}

// MacroF1 returns the unweighted mean F1 across classes.
func (cm *ConfusionMatrix) MacroF1() float64 {
	var sum float64
	for c := 0; c < cm.NumClasses; c++ {
		sum += cm.F1(c)
	}
	return sum / float64(cm.NumClasses)
}

// String renders the matrix with true classes as rows.
func (cm *ConfusionMatrix) String() string {
	var sb strings.Builder
	sb.WriteString("confusion matrix (rows: true, cols: predicted)\n")
	for i := 0; i < cm.NumClasses; i++ {
		for j := 0; j < cm.NumClasses; j++ {
			fmt.Fprintf(&sb, "%6d", cm.Matrix[i][j])
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

// ClassificationReport renders per-class precision, recall, F1 and support
// plus accuracy and macro/weighted averages.
func ClassificationReport(cm *ConfusionMatrix, classNames []string) string {
	if len(classNames) != cm.NumClasses {
		classNames = make([]string, cm.NumClasses)
		for i := range classNames {
			classNames[i] = fmt.Sprintf("class %d", i)
		}
	}
	nameWidth := 12
	for _, name := range classNames {
		if len(name) > nameWidth {
			nameWidth = len(name)
		}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%*s  precision  recall  f1-score  support\n\n", nameWidth, "")

	var macroP, macroR, macroF, weightedP, weightedR, weightedF float64
	for c := 0; c < cm.NumClasses; c++ {
		p, r, f := cm.Precision(c), cm.Recall(c), cm.F1(c)
		support := cm.Support(c)
		fmt.Fprintf(&sb, "%*s  %9.4f  %6.4f  %8.4f  %7d\n",
			nameWidth, classNames[c], p, r, f, support)
		macroP += p
		macroR += r
		macroF += f
		w := float64(support)
		weightedP += p * w
		weightedR += r * w
		weightedF += f * w
	}
	n := float64(cm.NumClasses)
	total := float64(cm.TotalSamples)
	if total == 0 {
		total = 1
	}
	fmt.Fprintf(&sb, "\n%*s  %9s  %6s  %8.4f  %7d\n",
		nameWidth, "accuracy", "", "", cm.Accuracy(), cm.TotalSamples)
	fmt.Fprintf(&sb, "%*s  %9.4f  %6.4f  %8.4f  %7d\n",
		nameWidth, "macro avg", macroP/n, macroR/n, macroF/n, cm.TotalSamples)
	fmt.Fprintf(&sb, "%*s  %9.4f  %6.4f  %8.4f  %7d\n",
		nameWidth, "weighted avg", weightedP/total, weightedR/total, weightedF/total, cm.TotalSamples)
	return sb.String()
}
