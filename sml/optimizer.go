package sml

import (
	"github.com/cockroachdb/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
)

//ProgressCallback observes the optimizer between major iterations. Callbacks
//are forwarded by the classifier without inspecting them.
type ProgressCallback func(iteration int, objective float64)

//DifferentiableFunction is the objective contract consumed by an Optimizer.
type DifferentiableFunction interface {
	//Dims reports the shape of the parameter matrix.
	Dims() (rows, cols int)
	//Evaluate returns the objective value at params.
	Evaluate(params *mat.Dense) float64
	//Gradient writes the gradient at params into grad, overwriting every
	//entry. grad has the shape reported by Dims.
	Gradient(params, grad *mat.Dense)
}

//Optimizer iterates a differentiable objective to a local minimum starting
//from initial and returns the final parameters together with the final
//objective value. Convergence criteria belong to the optimizer, not to the
//objective.
type Optimizer interface {
	Minimize(f DifferentiableFunction, initial *mat.Dense, callbacks ...ProgressCallback) (*mat.Dense, float64, error)
}

//LBFGS minimizes with the limited-memory BFGS method. The zero value uses
//gonum's defaults for both limits.
type LBFGS struct {
	MaxIterations int
	Tolerance     float64 // gradient infinity-norm threshold
}

func (l LBFGS) Minimize(f DifferentiableFunction, initial *mat.Dense, callbacks ...ProgressCallback) (*mat.Dense, float64, error) {
	return minimizeWithMethod(&optimize.LBFGS{}, l.MaxIterations, l.Tolerance, f, initial, callbacks)
}

//GradientDescent minimizes with plain gradient descent and an adaptive line
//search. Mostly useful as a slow reference against LBFGS.
type GradientDescent struct {
	MaxIterations int
	Tolerance     float64
}

func (g GradientDescent) Minimize(f DifferentiableFunction, initial *mat.Dense, callbacks ...ProgressCallback) (*mat.Dense, float64, error) {
	return minimizeWithMethod(&optimize.GradientDescent{}, g.MaxIterations, g.Tolerance, f, initial, callbacks)
}

//minimizeWithMethod flattens the parameter matrix, drives gonum's Minimize
//over the objective and reshapes the result.
func minimizeWithMethod(
	method optimize.Method,
	maxIterations int,
	tolerance float64,
	f DifferentiableFunction,
	initial *mat.Dense,
	callbacks []ProgressCallback,
) (*mat.Dense, float64, error) {
	rows, cols := f.Dims()

	x0 := make([]float64, rows*cols)
	if initial != nil {
		ir, ic := initial.Dims()
		if ir != rows || ic != cols {
			return nil, 0, errors.Newf("initial parameters are %dx%d, objective expects %dx%d", ir, ic, rows, cols)
		}
		for p := 0; p < rows; p++ {
			for q := 0; q < cols; q++ {
				x0[p*cols+q] = initial.At(p, q)
			}
		}
	}

	problem := optimize.Problem{
		Func: func(theta []float64) float64 {
			return f.Evaluate(mat.NewDense(rows, cols, theta))
		},
		Grad: func(grad, theta []float64) {
			f.Gradient(mat.NewDense(rows, cols, theta), mat.NewDense(rows, cols, grad))
		},
	}

	settings := optimize.Settings{
		GradientThreshold: tolerance,
		MajorIterations:   maxIterations,
	}
	if len(callbacks) > 0 {
		settings.Recorder = &progressRecorder{callbacks: callbacks}
	}

	result, err := optimize.Minimize(problem, x0, &settings, method)
	if err != nil {
		return nil, 0, errors.Wrap(err, "minimization failed")
	}

	return mat.NewDense(rows, cols, result.X), result.F, nil
}

//progressRecorder adapts ProgressCallback observers to gonum's Recorder.
type progressRecorder struct {
	callbacks []ProgressCallback
}

func (r *progressRecorder) Init() error { return nil }

func (r *progressRecorder) Record(loc *optimize.Location, op optimize.Operation, stats *optimize.Stats) error {
	if op != optimize.MajorIteration {
		return nil
	}
	for _, callback := range r.callbacks {
		callback(stats.MajorIterations, loc.F)
	}
	return nil
}
