package sml

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Probabilities below this value are clamped before taking the logarithm.
const probabilityFloor = 1e-15

//SoftmaxFunction is the regularized negative log-likelihood objective of a
//softmax regression model. It captures the training data at construction and
//is handed to an Optimizer, which queries Evaluate and Gradient until its own
//convergence criterion is met.
type SoftmaxFunction struct {
	data         *mat.Dense // inputSize x numSamples, one column per sample
	labels       []int
	numClasses   int
	lambda       float64
	fitIntercept bool
}

//NewSoftmaxFunction binds an objective to the given training data and labels.
//Dimensions are assumed to be validated by the caller.
func NewSoftmaxFunction(data *mat.Dense, labels []int, numClasses int, lambda float64, fitIntercept bool) *SoftmaxFunction {
	return &SoftmaxFunction{
		data:         data,
		labels:       labels,
		numClasses:   numClasses,
		lambda:       lambda,
		fitIntercept: fitIntercept,
	}
}

//Dims reports the shape of the parameter matrix this objective is defined
//over: numClasses rows and one column per feature, plus a trailing bias
//column when the intercept is fitted.
func (f *SoftmaxFunction) Dims() (rows, cols int) {
	d, _ := f.data.Dims()
	if f.fitIntercept {
		d++
	}
	return f.numClasses, d
}

//computeProbabilities evaluates column-wise softmax probabilities for every
//sample of data under the given parameter matrix. When fitIntercept is set
//the trailing parameter column is treated as a per-class bias added to every
//logit. The max logit is subtracted per column before exponentiation, the
//exponent is unbounded otherwise.
func computeProbabilities(params, data *mat.Dense, fitIntercept bool) *mat.Dense {
	k, cols := params.Dims()
	_, n := data.Dims()

	var weights mat.Matrix = params
	if fitIntercept {
		weights = params.Slice(0, k, 0, cols-1)
	}

	probabilities := mat.NewDense(k, n, nil)
	probabilities.Mul(weights, data)

	if fitIntercept {
		for j := 0; j < n; j++ {
			for c := 0; c < k; c++ {
				probabilities.Set(c, j, probabilities.At(c, j)+params.At(c, cols-1))
			}
		}
	}

	for j := 0; j < n; j++ {
		maxLogit := probabilities.At(0, j)
		for c := 1; c < k; c++ {
			if v := probabilities.At(c, j); v > maxLogit {
				maxLogit = v
			}
		}
		sum := 0.0
		for c := 0; c < k; c++ {
			e := math.Exp(probabilities.At(c, j) - maxLogit)
			probabilities.Set(c, j, e)
			sum += e
		}
		for c := 0; c < k; c++ {
			probabilities.Set(c, j, probabilities.At(c, j)/sum)
		}
	}

	return probabilities
}

//Evaluate returns the negative mean log-likelihood of the true labels plus
//the L2 penalty lambda/2 * sum(w^2). The bias column never enters the
//penalty: regularizing the intercept would pull the decision boundary
//towards the origin regardless of the data.
func (f *SoftmaxFunction) Evaluate(params *mat.Dense) float64 {
	probabilities := computeProbabilities(params, f.data, f.fitIntercept)
	_, n := f.data.Dims()

	logLikelihood := 0.0
	for j, label := range f.labels {
		p := probabilities.At(label, j)
		if p < probabilityFloor {
			p = probabilityFloor
		}
		logLikelihood += math.Log(p)
	}
	loss := -logLikelihood / float64(n)

	k, cols := params.Dims()
	weightCols := cols
	if f.fitIntercept {
		weightCols--
	}
	penalty := 0.0
	for c := 0; c < k; c++ {
		for q := 0; q < weightCols; q++ {
			v := params.At(c, q)
			penalty += v * v
		}
	}

	return loss + 0.5*f.lambda*penalty
}

//Gradient writes the analytic gradient of Evaluate at params into grad,
//which must have the same shape as params. Every entry of grad is
//overwritten.
func (f *SoftmaxFunction) Gradient(params, grad *mat.Dense) {
	probabilities := computeProbabilities(params, f.data, f.fitIntercept)
	_, n := f.data.Dims()
	k, cols := params.Dims()
	weightCols := cols
	if f.fitIntercept {
		weightCols--
	}

	// probabilities minus the one-hot ground truth
	for j, label := range f.labels {
		probabilities.Set(label, j, probabilities.At(label, j)-1)
	}

	invN := 1.0 / float64(n)

	weightGrad := grad.Slice(0, k, 0, weightCols).(*mat.Dense)
	weightGrad.Mul(probabilities, f.data.T())
	weightGrad.Scale(invN, weightGrad)
	for c := 0; c < k; c++ {
		for q := 0; q < weightCols; q++ {
			grad.Set(c, q, grad.At(c, q)+f.lambda*params.At(c, q))
		}
	}

	if f.fitIntercept {
		for c := 0; c < k; c++ {
			s := 0.0
			for j := 0; j < n; j++ {
				s += probabilities.At(c, j)
			}
			grad.Set(c, cols-1, s*invN)
		}
	}
}
