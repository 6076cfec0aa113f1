package neuralnet

import (
	"math/rand"

	"github.com/pkg/errors"
)

const (
	// DefaultLearningRate is the η of the weight update.
	DefaultLearningRate = 0.15
	// DefaultMomentum is the α applied to the previous weight delta.
	DefaultMomentum = 0.5
)

// ErrParams is returned by Params.Validate.
var ErrParams = errors.New("invalid params")

// Momentum is online gradient ascent with a momentum term kept per connection.
type Momentum struct {
	LearningRate float64
	Alpha        float64
}

// Step applies one update to c. input is the activation of the source neuron,
// gradient the gradient of the target neuron. It returns the applied delta.
func (m Momentum) Step(c *Connection, input, gradient float64) float64 {
	delta := m.LearningRate*input*gradient + m.Alpha*c.Momentum
	c.Momentum = delta
	c.Weight += delta
	return delta
}

// Params holds everything about a Network that is not its topology.
type Params struct {
	Optimizer Momentum
	// Initial weights are drawn uniformly from [InitMin, InitMax).
	InitMin float64
	InitMax float64
}

// DefaultParams draws initial weights from [0,1), which saturates every output
// near 1.0 and leaves learning almost stalled; train with a small symmetric range.
func DefaultParams() Params {
	return Params{
		Optimizer: Momentum{LearningRate: DefaultLearningRate, Alpha: DefaultMomentum},
		InitMin:   0,
		InitMax:   1,
	}
}

func (p Params) Validate() error {
	if p.Optimizer.LearningRate <= 0 {
		return errors.Wrapf(ErrParams, "learning rate %v must be positive", p.Optimizer.LearningRate)
	}
	if p.Optimizer.Alpha < 0 || p.Optimizer.Alpha >= 1 {
		return errors.Wrapf(ErrParams, "momentum %v must be in [0,1)", p.Optimizer.Alpha)
	}
	if p.InitMax <= p.InitMin {
		return errors.Wrapf(ErrParams, "empty init range [%v,%v)", p.InitMin, p.InitMax)
	}
	return nil
}

func (p Params) initWeight(rng *rand.Rand) float64 {
	return p.InitMin + rng.Float64()*(p.InitMax-p.InitMin)
}
