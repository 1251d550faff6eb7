package layers

import (
	"fmt"
	"strings"
)

// HybridSpec defines the two-branch lesion classifier: a convolutional
// feature extractor and an attention feature extractor over the same image,
// concatenated into a shared classification head.
type HybridSpec struct {
	Conv      BranchSpec `json:"conv_branch"`
	Attention BranchSpec `json:"attention_branch"`
	Head      BranchSpec `json:"head"`

	InputShape      []int `json:"input_shape"`
	OutputShape     []int `json:"output_shape"`
	TotalParameters int64 `json:"total_parameters"`
	Compiled        bool  `json:"compiled"`
}

// NewHybridClassifier builds the default hybrid topology for an image input
// of shape [height, width, channels]:
//
//	conv branch:      Conv2D(32,3x3)+ReLU -> MaxPool(2) -> Conv2D(64,3x3)+ReLU -> MaxPool(2) -> Flatten
//	attention branch: Reshape(height, width*channels) -> MultiHeadAttention(4 heads, key dim 64) -> GlobalAvgPool1D
//	head:             Dense(numClasses) -> Softmax
//
// The branch outputs are concatenated before the head.
func NewHybridClassifier(inputShape []int, numClasses int) (*HybridSpec, error) {
	if len(inputShape) != 3 {
		return nil, fmt.Errorf("hybrid classifier expects [h w c] input, got %v", inputShape)
	}
	if numClasses < 2 {
		return nil, fmt.Errorf("numClasses must be at least 2, got %d", numClasses)
	}
	h, w, c := inputShape[0], inputShape[1], inputShape[2]

	conv, err := NewModelBuilder().
		AddConv2D(32, 3, "conv1").
		AddReLU("relu1").
		AddMaxPool2D(2, "pool1").
		AddConv2D(64, 3, "conv2").
		AddReLU("relu2").
		AddMaxPool2D(2, "pool2").
		AddFlatten("flatten").
		Compile(inputShape)
	if err != nil {
		return nil, fmt.Errorf("conv branch: %w", err)
	}

	attn, err := NewModelBuilder().
		AddReshape([]int{h, w * c}, "rows").
		AddMultiHeadAttention(4, 64, "attention").
		AddGlobalAvgPool1D("avgpool").
		Compile(inputShape)
	if err != nil {
		return nil, fmt.Errorf("attention branch: %w", err)
	}

	merged := conv.OutputShape[0] + attn.OutputShape[0]
	head, err := NewModelBuilder().
		AddDense(numClasses, "output").
		AddSoftmax("softmax").
		Compile([]int{merged})
	if err != nil {
		return nil, fmt.Errorf("head: %w", err)
	}

	spec := &HybridSpec{
		Conv:            *conv,
		Attention:       *attn,
		Head:            *head,
		InputShape:      append([]int{}, inputShape...),
		OutputShape:     append([]int{}, head.OutputShape...),
		TotalParameters: conv.TotalParameters + attn.TotalParameters + head.TotalParameters,
		Compiled:        true,
	}
	return spec, nil
}

// NumClasses returns the width of the output layer.
func (s *HybridSpec) NumClasses() int {
	return s.OutputShape[0]
}

// String renders a layer-by-layer summary of the model.
func (s *HybridSpec) String() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("HybridClassifier: input=%v output=%v parameters=%d\n",
		s.InputShape, s.OutputShape, s.TotalParameters))
	for _, branch := range []struct {
		name string
		b    *BranchSpec
	}{{"conv", &s.Conv}, {"attention", &s.Attention}, {"head", &s.Head}} {
		sb.WriteString(fmt.Sprintf("[%s]\n", branch.name))
		for i, l := range branch.b.Layers {
			sb.WriteString(fmt.Sprintf("  %2d: %-20s %-12s %v -> %v", i, l.Name, l.Type, l.InputShape, l.OutputShape))
			if l.ParameterCount > 0 {
				sb.WriteString(fmt.Sprintf("  params=%d", l.ParameterCount))
			}
			sb.WriteString("\n")
		}
	}
	return sb.String()
}
