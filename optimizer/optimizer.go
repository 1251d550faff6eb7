// Package optimizer provides gradient based parameter update rules for
// models built on the engine package.
package optimizer

import (
	"github.com/sudiptamani12/skin-cancer-project/engine"
)

// Optimizer applies one update step to a set of parameters using the
// gradients currently stored in their accumulators.
type Optimizer interface {
	// Step updates every parameter in place from its gradient.
	Step(params []*engine.Param) error
	// Name identifies the update rule, e.g. "adam".
	Name() string
}
