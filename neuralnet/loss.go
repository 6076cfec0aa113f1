package neuralnet

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// averageSmoothing is the number of samples the running error is averaged over.
const averageSmoothing = 100.0

// rmsError returns sqrt(Σ(target-output)² / n).
func rmsError(output []float64, target []float64) float64 {
	if len(output) == 0 {
		return 0
	}
	d := floats.Distance(output, target, 2)
	return math.Sqrt(d * d / float64(len(output)))
}

// smooth folds the latest error into a running average.
func smooth(recent, latest float64) float64 {
	return (recent*averageSmoothing + latest) / (averageSmoothing + 1)
}
