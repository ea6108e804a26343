package sml

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

//quadraticBowl is a convex test objective with its minimum at center.
type quadraticBowl struct {
	center *mat.Dense
}

func (q *quadraticBowl) Dims() (int, int) { return q.center.Dims() }

func (q *quadraticBowl) Evaluate(params *mat.Dense) float64 {
	rows, cols := q.center.Dims()
	s := 0.0
	for p := 0; p < rows; p++ {
		for c := 0; c < cols; c++ {
			d := params.At(p, c) - q.center.At(p, c)
			s += d * d
		}
	}
	return s
}

func (q *quadraticBowl) Gradient(params, grad *mat.Dense) {
	rows, cols := q.center.Dims()
	for p := 0; p < rows; p++ {
		for c := 0; c < cols; c++ {
			grad.Set(p, c, 2*(params.At(p, c)-q.center.At(p, c)))
		}
	}
}

func TestOptimizersFindQuadraticMinimum(t *testing.T) {
	bowl := &quadraticBowl{center: mat.NewDense(2, 3, []float64{
		1, -2, 3,
		0.5, 4, -1,
	})}

	for name, optimizer := range map[string]Optimizer{
		"lbfgs":            LBFGS{MaxIterations: 100},
		"gradient descent": GradientDescent{MaxIterations: 500},
	} {
		params, value, err := optimizer.Minimize(bowl, mat.NewDense(2, 3, nil))
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if value > 1e-8 {
			t.Errorf("%s: final objective = %v, want ~0", name, value)
		}
		for p := 0; p < 2; p++ {
			for c := 0; c < 3; c++ {
				if math.Abs(params.At(p, c)-bowl.center.At(p, c)) > 1e-4 {
					t.Errorf("%s: params[%d,%d] = %v, want %v", name, p, c, params.At(p, c), bowl.center.At(p, c))
				}
			}
		}
	}
}

func TestMinimizeRejectsMismatchedInitial(t *testing.T) {
	bowl := &quadraticBowl{center: mat.NewDense(2, 2, nil)}
	if _, _, err := (LBFGS{}).Minimize(bowl, mat.NewDense(3, 1, nil)); err == nil {
		t.Error("mismatched initial shape accepted")
	}
}

func TestMinimizeNilInitialStartsAtZero(t *testing.T) {
	bowl := &quadraticBowl{center: mat.NewDense(1, 2, []float64{2, -2})}
	params, _, err := (LBFGS{MaxIterations: 100}).Minimize(bowl, nil)
	if err != nil {
		t.Fatalf("minimize: %v", err)
	}
	if rows, cols := params.Dims(); rows != 1 || cols != 2 {
		t.Fatalf("result shape = %dx%d, want 1x2", rows, cols)
	}
}
