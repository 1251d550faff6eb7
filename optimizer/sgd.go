package optimizer

import (
	"fmt"

	"github.com/sudiptamani12/skin-cancer-project/engine"
)

// SGDConfig holds the hyperparameters of stochastic gradient descent.
type SGDConfig struct {
	LearningRate float32
	Momentum     float32
	WeightDecay  float32
}

// DefaultSGDConfig returns SGD with momentum 0.9.
func DefaultSGDConfig() SGDConfig {
	return SGDConfig{
		LearningRate: 0.01,
		Momentum:     0.9,
		WeightDecay:  0.0,
	}
}

// SGD implements stochastic gradient descent with optional momentum.
type SGD struct {
	config   SGDConfig
	velocity map[string][]float32
}

// NewSGD validates the config and returns an SGD optimizer.
func NewSGD(config SGDConfig) (*SGD, error) {
	if config.LearningRate <= 0 {
		return nil, fmt.Errorf("learning rate must be positive, got %f", config.LearningRate)
	}
	if config.Momentum < 0 || config.Momentum >= 1 {
		return nil, fmt.Errorf("momentum must be in [0,1), got %f", config.Momentum)
	}
	return &SGD{
		config:   config,
		velocity: make(map[string][]float32),
	}, nil
}

func (s *SGD) Name() string { return "sgd" }

func (s *SGD) Step(params []*engine.Param) error {
	for _, p := range params {
		value := p.Value.Float32Data()
		grad := p.Grad.Float32Data()
		if len(value) != len(grad) {
			return fmt.Errorf("parameter %s: value size %d does not match gradient size %d",
				p.Name, len(value), len(grad))
		}

		if s.config.Momentum == 0 {
			for i := range value {
				g := grad[i]
				if s.config.WeightDecay > 0 {
					g += s.config.WeightDecay * value[i]
				}
				value[i] -= s.config.LearningRate * g
			}
			continue
		}

		vel, ok := s.velocity[p.Name]
		if !ok {
			vel = make([]float32, len(value))
			s.velocity[p.Name] = vel
		}
		for i := range value {
			g := grad[i]
			if s.config.WeightDecay > 0 {
				g += s.config.WeightDecay * value[i]
			}
			vel[i] = s.config.Momentum*vel[i] - s.config.LearningRate*g
			value[i] += vel[i]
		}
	}
	return nil
}
