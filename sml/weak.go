package sml

import (
	"github.com/cockroachdb/errors"
	"gonum.org/v1/gonum/mat"
)

//RidgeLearner is the weak regressor of a ResidualBooster: a linear model
//with intercept fit by weighted ridge regression. Weights holds the feature
//coefficients followed by the intercept.
type RidgeLearner struct {
	Weights []float64 `json:"weights"`
}

//FitRidgeLearner solves the weighted normal equations
//
//	(X W X^T + lambda I) beta = X W y
//
//over data (one column per sample) augmented with a constant-one feature.
//sampleWeights may be nil for a uniformly weighted fit. The intercept row of
//the system carries no ridge penalty.
func FitRidgeLearner(data *mat.Dense, target, sampleWeights []float64, regLambda float64) (*RidgeLearner, error) {
	d, n := data.Dims()
	if n != len(target) {
		return nil, errors.Newf("data has %d samples but %d targets were given", n, len(target))
	}
	if sampleWeights != nil && len(sampleWeights) != n {
		return nil, errors.Newf("data has %d samples but %d sample weights were given", n, len(sampleWeights))
	}

	dim := d + 1
	lhs := mat.NewDense(dim, dim, nil)
	rhs := mat.NewDense(dim, 1, nil)

	for j := 0; j < n; j++ {
		w := 1.0
		if sampleWeights != nil {
			w = sampleWeights[j]
		}
		for p := 0; p < dim; p++ {
			xp := 1.0
			if p < d {
				xp = data.At(p, j)
			}
			rhs.Set(p, 0, rhs.At(p, 0)+w*xp*target[j])
			for q := 0; q < dim; q++ {
				xq := 1.0
				if q < d {
					xq = data.At(q, j)
				}
				lhs.Set(p, q, lhs.At(p, q)+w*xp*xq)
			}
		}
	}
	for p := 0; p < d; p++ {
		lhs.Set(p, p, lhs.At(p, p)+regLambda)
	}

	var solution mat.Dense
	if err := solution.Solve(lhs, rhs); err != nil {
		return nil, errors.Wrap(err, "ridge system solve failed")
	}

	weights := make([]float64, dim)
	for p := 0; p < dim; p++ {
		weights[p] = solution.At(p, 0)
	}
	return &RidgeLearner{Weights: weights}, nil
}

//Predict evaluates the linear model on every column of data.
func (r *RidgeLearner) Predict(data *mat.Dense) []float64 {
	d, n := data.Dims()
	predictions := make([]float64, n)
	for j := 0; j < n; j++ {
		s := r.Weights[d]
		for p := 0; p < d; p++ {
			s += r.Weights[p] * data.At(p, j)
		}
		predictions[j] = s
	}
	return predictions
}
