package neuralnet

import "math/rand"

// Connection is a weighted edge from a neuron to one neuron of the next layer.
type Connection struct {
	Weight float64
	// Momentum is the last delta applied to Weight.
	Momentum float64
}

type neuron struct {
	activation float64
	gradient   float64
	// outbound[i] feeds neuron i of the next layer.
	outbound []Connection
	index    int
	bias     bool
}

func newNeuron(outputs, index int, params Params, rng *rand.Rand) *neuron {
	n := &neuron{
		outbound: make([]Connection, outputs),
		index:    index,
	}
	for i := range n.outbound {
		n.outbound[i] = Connection{Weight: params.initWeight(rng)}
	}
	return n
}

func newBias(outputs, index int, params Params, rng *rand.Rand) *neuron {
	n := newNeuron(outputs, index, params, rng)
	n.bias = true
	n.activation = 1
	return n
}

func (n *neuron) setActivation(v float64) {
	n.activation = v
}

func (n *neuron) forward(prev []*neuron) {
	var sum float64
	for _, p := range prev {
		sum += p.activation * p.outbound[n.index].Weight
	}
	n.activation = Sigmoid{}.Activate(sum)
}

func (n *neuron) outputGradient(target float64) {
	n.gradient = (target - n.activation) * Sigmoid{}.Derivative(n.activation)
}

func (n *neuron) hiddenGradient(next []*neuron) {
	var sum float64
	for _, m := range next {
		if m.bias {
			continue
		}
		sum += n.outbound[m.index].Weight * m.gradient
	}
	n.gradient = sum * Sigmoid{}.Derivative(n.activation)
}

// updateWeights adjusts every connection from prev into n.
func (n *neuron) updateWeights(prev []*neuron, opt Momentum) {
	for _, p := range prev {
		opt.Step(&p.outbound[n.index], p.activation, n.gradient)
	}
}
