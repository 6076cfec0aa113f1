package neuralnet

import "math"

// Sigmoid is the logistic activation used by every non-input neuron.
type Sigmoid struct{}

func (s Sigmoid) Activate(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// Derivative takes the already computed activation a = Activate(x), not x.
func (s Sigmoid) Derivative(a float64) float64 {
	return a * (1 - a)
}
