package sml

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

//ExponentialLoss turns per-sample regression residuals into multiplicative
//sample weights for the next member of a boosting ensemble:
//
//	weight_i = 1 - exp(-|error_i| / max(errorVector))
//
//Every weight lies in [0, 1); larger residuals give larger weights.
type ExponentialLoss struct{}

//Calculate maps errorVector to a weight vector of the same length. When the
//maximum residual is exactly zero the divisor is replaced by one, so an
//all-zero residual vector maps to all-zero weights: every sample is
//perfectly fit and carries no weight into the next round. The input is
//assumed finite, NaN and Inf propagate.
func (ExponentialLoss) Calculate(errorVector []float64) []float64 {
	weights := make([]float64, len(errorVector))
	if len(errorVector) == 0 {
		return weights
	}
	maxError := floats.Max(errorVector)
	if maxError == 0 {
		maxError = 1
	}
	for i, e := range errorVector {
		weights[i] = 1 - math.Exp(-math.Abs(e)/maxError)
	}
	return weights
}
