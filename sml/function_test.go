package sml

import (
	"math"
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func randomDense(rows, cols int, scale float64, rng *rand.Rand) *mat.Dense {
	m := mat.NewDense(rows, cols, nil)
	for p := 0; p < rows; p++ {
		for q := 0; q < cols; q++ {
			m.Set(p, q, scale*rng.NormFloat64())
		}
	}
	return m
}

func TestProbabilityColumnsSumToOne(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	data := randomDense(4, 9, 1.0, rng)

	for _, fitIntercept := range []bool{false, true} {
		cols := 4
		if fitIntercept {
			cols = 5
		}
		params := randomDense(3, cols, 1.0, rng)
		probabilities := computeProbabilities(params, data, fitIntercept)

		for j := 0; j < 9; j++ {
			sum := 0.0
			for c := 0; c < 3; c++ {
				sum += probabilities.At(c, j)
			}
			if math.Abs(sum-1) > 1e-6 {
				t.Errorf("fitIntercept=%v: column %d sums to %v", fitIntercept, j, sum)
			}
		}
	}
}

func TestProbabilitiesStableUnderLargeLogits(t *testing.T) {
	// Without max-subtraction these logits overflow exp.
	params := mat.NewDense(2, 1, []float64{800, -800})
	data := mat.NewDense(1, 1, []float64{1})

	probabilities := computeProbabilities(params, data, false)
	for c := 0; c < 2; c++ {
		v := probabilities.At(c, 0)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Fatalf("probability[%d] = %v", c, v)
		}
	}
	if math.Abs(probabilities.At(0, 0)-1) > 1e-12 {
		t.Errorf("dominant class probability = %v, want 1", probabilities.At(0, 0))
	}
}

func TestGradientMatchesFiniteDifferences(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	data := randomDense(3, 7, 1.0, rng)
	labels := []int{0, 2, 1, 1, 0, 2, 0}

	for _, fitIntercept := range []bool{false, true} {
		cols := 3
		if fitIntercept {
			cols = 4
		}
		objective := NewSoftmaxFunction(data, labels, 3, 0.01, fitIntercept)
		params := randomDense(3, cols, 0.5, rng)

		grad := mat.NewDense(3, cols, nil)
		objective.Gradient(params, grad)

		const h = 1e-6
		for p := 0; p < 3; p++ {
			for q := 0; q < cols; q++ {
				orig := params.At(p, q)
				params.Set(p, q, orig+h)
				up := objective.Evaluate(params)
				params.Set(p, q, orig-h)
				down := objective.Evaluate(params)
				params.Set(p, q, orig)

				numeric := (up - down) / (2 * h)
				analytic := grad.At(p, q)
				if math.Abs(numeric-analytic) > 1e-5*math.Max(1, math.Abs(numeric)) {
					t.Errorf("fitIntercept=%v: gradient[%d,%d] = %v, finite differences give %v", fitIntercept, p, q, analytic, numeric)
				}
			}
		}
	}
}

func TestRegularizationExcludesBiasColumn(t *testing.T) {
	data := mat.NewDense(2, 3, []float64{
		1, 2, 3,
		-1, 0, 1,
	})
	labels := []int{0, 1, 0}

	// Parameters with only the bias column set: the penalty must not see them.
	params := mat.NewDense(2, 3, []float64{
		0, 0, 5,
		0, 0, -7,
	})

	plain := NewSoftmaxFunction(data, labels, 2, 0, true)
	penalized := NewSoftmaxFunction(data, labels, 2, 10, true)

	if diff := math.Abs(plain.Evaluate(params) - penalized.Evaluate(params)); diff > 1e-12 {
		t.Errorf("bias-only parameters changed the objective by %v under regularization", diff)
	}
}

func TestObjectiveDims(t *testing.T) {
	data := mat.NewDense(5, 2, nil)
	labels := []int{0, 1}

	objective := NewSoftmaxFunction(data, labels, 3, DefaultLambda, false)
	if rows, cols := objective.Dims(); rows != 3 || cols != 5 {
		t.Errorf("Dims() = %dx%d, want 3x5", rows, cols)
	}

	objective = NewSoftmaxFunction(data, labels, 3, DefaultLambda, true)
	if rows, cols := objective.Dims(); rows != 3 || cols != 6 {
		t.Errorf("Dims() with intercept = %dx%d, want 3x6", rows, cols)
	}
}
