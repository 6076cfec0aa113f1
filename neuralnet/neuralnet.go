package neuralnet

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Fixed topology.
const (
	InputSize  = 28 * 28
	HiddenSize = 64
	OutputSize = 10
)

// MaxBrightness is the largest raw pixel value accepted by Predict and Train.
const MaxBrightness = 255.0

var (
	ErrInputSize     = errors.New("input size mismatch")
	ErrTargetSize    = errors.New("target size mismatch")
	ErrLabel         = errors.New("label out of range")
	ErrNoForwardPass = errors.New("backward called before forward")
	ErrLayer         = errors.New("no such layer")
)

type layer struct {
	neurons []*neuron
}

// units returns the neurons that compute a value, i.e. everything but the bias.
func (l *layer) units() []*neuron {
	if n := len(l.neurons); n > 0 && l.neurons[n-1].bias {
		return l.neurons[:n-1]
	}
	return l.neurons
}

// NeuralNetwork is a 784-64-10 sigmoid perceptron trained one example at a time.
// It is not safe for concurrent use.
type NeuralNetwork struct {
	layers    []*layer
	params    Params
	forwarded bool
	err       float64
	recentErr float64
}

// New builds the network, drawing every initial weight from rng.
func New(rng *rand.Rand, params Params) (*NeuralNetwork, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	topology := []int{InputSize, HiddenSize, OutputSize}
	nn := &NeuralNetwork{
		layers: make([]*layer, len(topology)),
		params: params,
	}
	for i, size := range topology {
		outputs := 0
		if i < len(topology)-1 {
			outputs = topology[i+1]
		}
		l := &layer{neurons: make([]*neuron, 0, size+1)}
		for j := 0; j < size; j++ {
			l.neurons = append(l.neurons, newNeuron(outputs, j, params, rng))
		}
		// the output layer feeds nothing, so it has no bias
		if outputs > 0 {
			l.neurons = append(l.neurons, newBias(outputs, size, params, rng))
		}
		nn.layers[i] = l
	}
	return nn, nil
}

// NewDefault builds a network with DefaultParams seeded with seed.
func NewDefault(seed int64) *NeuralNetwork {
	nn, err := New(rand.New(rand.NewSource(seed)), DefaultParams())
	if err != nil {
		panic(err)
	}
	return nn
}

func (nn *NeuralNetwork) Params() Params {
	return nn.params
}

// Forward sets the input activations and propagates them to the output layer.
// Values are used as given; callers scale them to [0,1].
func (nn *NeuralNetwork) Forward(input []float64) error {
	in := nn.layers[0].units()
	if len(input) != len(in) {
		return errors.Wrapf(ErrInputSize, "got %d values, want %d", len(input), len(in))
	}
	for i, v := range input {
		in[i].setActivation(v)
	}
	for i := 1; i < len(nn.layers); i++ {
		prev := nn.layers[i-1].neurons
		for _, n := range nn.layers[i].units() {
			n.forward(prev)
		}
	}
	nn.forwarded = true
	return nil
}

// Backward computes every gradient for target and then updates all weights.
// It has to follow a Forward of the same example.
func (nn *NeuralNetwork) Backward(target []float64) error {
	if !nn.forwarded {
		return ErrNoForwardPass
	}
	out := nn.layers[len(nn.layers)-1].units()
	if len(target) != len(out) {
		return errors.Wrapf(ErrTargetSize, "got %d values, want %d", len(target), len(out))
	}

	results := nn.Results()
	nn.err = rmsError(results, target)
	nn.recentErr = smooth(nn.recentErr, nn.err)

	for i, n := range out {
		n.outputGradient(target[i])
	}
	for i := len(nn.layers) - 2; i > 0; i-- {
		next := nn.layers[i+1].neurons
		for _, n := range nn.layers[i].units() {
			n.hiddenGradient(next)
		}
	}

	// gradients are final, weights may change now
	for i := len(nn.layers) - 1; i > 0; i-- {
		prev := nn.layers[i-1].neurons
		for _, n := range nn.layers[i].units() {
			n.updateWeights(prev, nn.params.Optimizer)
		}
	}
	return nil
}

// Results returns the output activations in index order.
func (nn *NeuralNetwork) Results() []float64 {
	out := nn.layers[len(nn.layers)-1].units()
	results := make([]float64, len(out))
	for i, n := range out {
		results[i] = n.activation
	}
	return results
}

// scale validates raw [0,255] pixels and returns a [0,1] copy.
func scale(pixels []float64) ([]float64, error) {
	if len(pixels) != InputSize {
		return nil, errors.Wrapf(ErrInputSize, "got %d values, want %d", len(pixels), InputSize)
	}
	input := make([]float64, len(pixels))
	copy(input, pixels)
	floats.Scale(1/MaxBrightness, input)
	return input, nil
}

// Predict classifies raw [0,255] pixels. Ties go to the lowest digit.
func (nn *NeuralNetwork) Predict(pixels []float64) (int, error) {
	input, err := scale(pixels)
	if err != nil {
		return 0, err
	}
	if err := nn.Forward(input); err != nil {
		return 0, err
	}
	return floats.MaxIdx(nn.Results()), nil
}

// Train runs one forward and backward pass of raw [0,255] pixels labelled label.
func (nn *NeuralNetwork) Train(pixels []float64, label int) error {
	target, err := OneHot(label)
	if err != nil {
		return err
	}
	input, err := scale(pixels)
	if err != nil {
		return err
	}
	if err := nn.Forward(input); err != nil {
		return err
	}
	return nn.Backward(target)
}

// OneHot returns the target vector for a digit.
func OneHot(label int) ([]float64, error) {
	if label < 0 || label >= OutputSize {
		return nil, errors.Wrapf(ErrLabel, "label %d not in [0,%d]", label, OutputSize-1)
	}
	target := make([]float64, OutputSize)
	target[label] = 1
	return target, nil
}

// Error is the RMS error of the last Backward call.
func (nn *NeuralNetwork) Error() float64 {
	return nn.err
}

// RecentAverageError is Error smoothed over roughly the last hundred examples.
func (nn *NeuralNetwork) RecentAverageError() float64 {
	return nn.recentErr
}

// Weights returns the weights feeding layer as an N×M matrix, N being the
// computing neurons of layer and M all neurons of the previous one, bias last.
func (nn *NeuralNetwork) Weights(layer int) (*mat.Dense, error) {
	if layer < 1 || layer >= len(nn.layers) {
		return nil, errors.Wrapf(ErrLayer, "layer %d", layer)
	}
	prev := nn.layers[layer-1].neurons
	units := nn.layers[layer].units()
	weights := mat.NewDense(len(units), len(prev), nil)
	for i, n := range units {
		for j, p := range prev {
			weights.Set(i, j, p.outbound[n.index].Weight)
		}
	}
	return weights, nil
}

// Debug
func (l *layer) String() string {
	var sb strings.Builder
	for i, n := range l.neurons {
		if n.bias {
			sb.WriteString(fmt.Sprintf("Neuron %d: bias\n", i))
			continue
		}
		sb.WriteString(fmt.Sprintf("Neuron %d: activation=%.4f gradient=%.4f\n", i, n.activation, n.gradient))
	}
	return sb.String()
}

func (nn *NeuralNetwork) String() string {
	var sb strings.Builder
	for i, l := range nn.layers {
		sb.WriteString(fmt.Sprintf("Layer %d:\n%s\n", i, l.String()))
	}
	return sb.String()
}
