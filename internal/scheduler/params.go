package scheduler

import "fmt"

// Weights are the 21 parameters of the FSRS v6 memory model.
type Weights [21]float64

// DefaultWeights are the FSRS v6 default parameter values.
var DefaultWeights = Weights{
	0.212, 1.2931, 2.3065, 8.2956, // w[0..3]  initial stability S₀(G)
	6.4133, 0.8334, 3.0194, 0.001, // w[4..7]  difficulty params
	1.8722, 0.1666, 0.796, 1.4835, // w[8..11] recall stability params
	0.0614, 0.2629, 1.6483, 0.6014, // w[12..15] forget stability params
	1.8729, 0.5425, 0.0912, 0.0658, // w[16..19] easy/short-term params
	0.1542, // w[20] decay exponent
}

// weightLowerBounds and weightUpperBounds bracket the legal range of
// each parameter.
var (
	weightLowerBounds = Weights{
		0.001, 0.001, 0.001, 0.001,
		1.0, 0.001, 0.001, 0.001,
		0.0, 0.0, 0.001, 0.001,
		0.001, 0.001, 0.0, 0.0,
		1.0, 0.0, 0.0, 0.0,
		0.1,
	}
	weightUpperBounds = Weights{
		100.0, 100.0, 100.0, 100.0,
		10.0, 4.0, 4.0, 0.75,
		4.5, 0.8, 3.5, 5.0,
		0.25, 0.9, 4.0, 1.0,
		6.0, 2.0, 2.0, 0.8,
		0.8,
	}
)

// Validate checks that all parameters are within bounds.
func (w Weights) Validate() error {
	for i := range w {
		if w[i] < weightLowerBounds[i] || w[i] > weightUpperBounds[i] {
			return fmt.Errorf("%w: w[%d] = %f, bounds [%f, %f]",
				ErrInvalidParams, i, w[i], weightLowerBounds[i], weightUpperBounds[i])
		}
	}
	return nil
}

// Params configures an Engine. Zero values produce sensible defaults.
type Params struct {
	Weights          Weights // zero → DefaultWeights
	DesiredRetention float64 // zero → 0.9
	MaximumInterval  int     // zero → 36500 days
}
