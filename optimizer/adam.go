package optimizer

import (
	"fmt"
	"math"

	"github.com/sudiptamani12/skin-cancer-project/engine"
)

// AdamConfig holds the hyperparameters of the Adam update rule.
type AdamConfig struct {
	LearningRate float32
	Beta1        float32
	Beta2        float32
	Epsilon      float32
	WeightDecay  float32
}

// DefaultAdamConfig returns the standard Adam hyperparameters.
func DefaultAdamConfig() AdamConfig {
	return AdamConfig{
		LearningRate: 0.001,
		Beta1:        0.9,
		Beta2:        0.999,
		Epsilon:      1e-8,
		WeightDecay:  0.0,
	}
}

// Adam implements the Adam update rule with bias-corrected first and
// second moment estimates. Moment buffers are allocated lazily on the
// first step and keyed by parameter name.
type Adam struct {
	config AdamConfig
	step   int

	m map[string][]float32
	v map[string][]float32
}

// NewAdam validates the config and returns an Adam optimizer.
func NewAdam(config AdamConfig) (*Adam, error) {
	if config.LearningRate <= 0 {
		return nil, fmt.Errorf("learning rate must be positive, got %f", config.LearningRate)
	}
	if config.Beta1 < 0 || config.Beta1 >= 1 {
		return nil, fmt.Errorf("beta1 must be in [0,1), got %f", config.Beta1)
	}
	if config.Beta2 < 0 || config.Beta2 >= 1 {
		return nil, fmt.Errorf("beta2 must be in [0,1), got %f", config.Beta2)
	}
	if config.Epsilon <= 0 {
		return nil, fmt.Errorf("epsilon must be positive, got %f", config.Epsilon)
	}
	return &Adam{
		config: config,
		m:      make(map[string][]float32),
		v:      make(map[string][]float32),
	}, nil
}

func (a *Adam) Name() string { return "adam" }

// CurrentStep returns the number of completed update steps.
func (a *Adam) CurrentStep() int { return a.step }

func (a *Adam) Step(params []*engine.Param) error {
	a.step++
	c1 := 1 - float32(math.Pow(float64(a.config.Beta1), float64(a.step)))
	c2 := 1 - float32(math.Pow(float64(a.config.Beta2), float64(a.step)))

	for _, p := range params {
		value := p.Value.Float32Data()
		grad := p.Grad.Float32Data()
		if len(value) != len(grad) {
			return fmt.Errorf("parameter %s: value size %d does not match gradient size %d",
				p.Name, len(value), len(grad))
		}

		m, ok := a.m[p.Name]
		if !ok {
			m = make([]float32, len(value))
			a.m[p.Name] = m
			a.v[p.Name] = make([]float32, len(value))
		}
		v := a.v[p.Name]

		for i := range value {
			g := grad[i]
			if a.config.WeightDecay > 0 {
				g += a.config.WeightDecay * value[i]
			}
			m[i] = a.config.Beta1*m[i] + (1-a.config.Beta1)*g
			v[i] = a.config.Beta2*v[i] + (1-a.config.Beta2)*g*g
			mHat := m[i] / c1
			vHat := v[i] / c2
			value[i] -= a.config.LearningRate * mHat / (float32(math.Sqrt(float64(vHat))) + a.config.Epsilon)
		}
	}
	return nil
}
