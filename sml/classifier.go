package sml

import (
	"encoding/json"
	"math/rand"
	"os"

	"github.com/cockroachdb/errors"
	"gonum.org/v1/gonum/mat"
)

//DefaultLambda is the L2 regularization strength used when none is given.
const DefaultLambda = 1e-4

//ErrNotTrained is returned by the Classify family and ComputeAccuracy when
//the model holds no parameter matrix yet.
var ErrNotTrained = errors.New("softmax regression model is not trained")

//SoftmaxRegression is a multi-class linear classifier trained by minimizing
//a regularized negative log-likelihood with an injected Optimizer. The
//parameter matrix has one row per class and one column per feature, plus a
//trailing bias column when the intercept is fitted.
//
//Instances are safe for concurrent Classify calls; Train replaces the
//parameter matrix non-atomically and must not race with readers.
type SoftmaxRegression struct {
	parameters   *mat.Dense
	inputSize    int
	numClasses   int
	lambda       float64
	fitIntercept bool
}

//NewSoftmaxRegression creates an untrained model. inputSize and numClasses
//may be zero and are then determined at the first Train call.
func NewSoftmaxRegression(inputSize, numClasses int, fitIntercept bool) *SoftmaxRegression {
	return &SoftmaxRegression{
		inputSize:    inputSize,
		numClasses:   numClasses,
		lambda:       DefaultLambda,
		fitIntercept: fitIntercept,
	}
}

//TrainSoftmaxRegression constructs a model and immediately trains it on the
//given data, inferring the input size from the number of rows of data.
func TrainSoftmaxRegression(
	data *mat.Dense,
	labels []int,
	numClasses int,
	opt Optimizer,
	lambda float64,
	fitIntercept bool,
	callbacks ...ProgressCallback,
) (*SoftmaxRegression, error) {
	d, _ := data.Dims()
	model := NewSoftmaxRegression(d, numClasses, fitIntercept)
	model.lambda = lambda
	if _, err := model.Train(data, labels, numClasses, opt, callbacks...); err != nil {
		return nil, err
	}
	return model, nil
}

//Train fits the model on data (one column per sample) and labels. The
//optimizer receives a freshly bound objective together with any callbacks
//and iterates until its own convergence criterion; its failures propagate
//unretried, and no post-hoc convergence validation is performed here. Train
//warm-starts from the current parameters when their shape matches, so a
//caller may seed Parameters() before training. The final objective value is
//returned.
func (s *SoftmaxRegression) Train(data *mat.Dense, labels []int, numClasses int, opt Optimizer, callbacks ...ProgressCallback) (float64, error) {
	d, n := data.Dims()
	if n != len(labels) {
		return 0, errors.Newf("data has %d samples but %d labels were given", n, len(labels))
	}
	if numClasses < 2 {
		return 0, errors.Newf("classification needs at least 2 classes, got %d", numClasses)
	}
	for i, label := range labels {
		if label < 0 || label >= numClasses {
			return 0, errors.Newf("label %d at sample %d is outside [0, %d)", label, i, numClasses)
		}
	}

	cols := d
	if s.fitIntercept {
		cols++
	}

	initial := s.parameters
	if initial == nil {
		initial = initialParameters(numClasses, cols)
	} else if pr, pc := initial.Dims(); pr != numClasses || pc != cols {
		initial = initialParameters(numClasses, cols)
	}

	objective := NewSoftmaxFunction(data, labels, numClasses, s.lambda, s.fitIntercept)
	parameters, value, err := opt.Minimize(objective, initial, callbacks...)
	if err != nil {
		return 0, errors.Wrap(err, "softmax regression training failed")
	}

	s.parameters = parameters
	s.numClasses = numClasses
	s.inputSize = d
	return value, nil
}

//initialParameters draws a small random starting point, breaking the
//symmetry between classes.
func initialParameters(rows, cols int) *mat.Dense {
	parameters := mat.NewDense(rows, cols, nil)
	for p := 0; p < rows; p++ {
		for q := 0; q < cols; q++ {
			parameters.Set(p, q, 0.005*rand.NormFloat64())
		}
	}
	return parameters
}

//checkClassifyInput guards the Classify family: the model must be trained
//and the dataset must match the feature size the model was trained on.
func (s *SoftmaxRegression) checkClassifyInput(rows int) error {
	if s.parameters == nil {
		return ErrNotTrained
	}
	if rows != s.FeatureSize() {
		return errors.Newf("dataset has %d features, model was trained on %d", rows, s.FeatureSize())
	}
	return nil
}

//Probabilities returns the numClasses x numSamples matrix of class
//probabilities for every column of dataset.
func (s *SoftmaxRegression) Probabilities(dataset *mat.Dense) (*mat.Dense, error) {
	rows, _ := dataset.Dims()
	if err := s.checkClassifyInput(rows); err != nil {
		return nil, err
	}
	return computeProbabilities(s.parameters, dataset, s.fitIntercept), nil
}

//Classify predicts a class label for every column of dataset via the
//arg-max rule. Ties resolve to the lowest class index.
func (s *SoftmaxRegression) Classify(dataset *mat.Dense) ([]int, error) {
	probabilities, err := s.Probabilities(dataset)
	if err != nil {
		return nil, err
	}
	_, n := probabilities.Dims()
	labels := make([]int, n)
	for j := 0; j < n; j++ {
		labels[j] = argmaxColumn(probabilities, j)
	}
	return labels, nil
}

//ClassifyWithProbabilities predicts labels and additionally returns the full
//probability matrix the labels were derived from.
func (s *SoftmaxRegression) ClassifyWithProbabilities(dataset *mat.Dense) ([]int, *mat.Dense, error) {
	probabilities, err := s.Probabilities(dataset)
	if err != nil {
		return nil, nil, err
	}
	_, n := probabilities.Dims()
	labels := make([]int, n)
	for j := 0; j < n; j++ {
		labels[j] = argmaxColumn(probabilities, j)
	}
	return labels, probabilities, nil
}

//ClassifyPoint predicts the class label of a single feature vector.
func (s *SoftmaxRegression) ClassifyPoint(point mat.Vector) (int, error) {
	d := point.Len()
	if err := s.checkClassifyInput(d); err != nil {
		return 0, err
	}
	column := mat.NewDense(d, 1, nil)
	for p := 0; p < d; p++ {
		column.Set(p, 0, point.AtVec(p))
	}
	probabilities := computeProbabilities(s.parameters, column, s.fitIntercept)
	return argmaxColumn(probabilities, 0), nil
}

//ComputeAccuracy classifies testData and returns the fraction of predictions
//matching labels, in [0, 1].
func (s *SoftmaxRegression) ComputeAccuracy(testData *mat.Dense, labels []int) (float64, error) {
	_, n := testData.Dims()
	if n == 0 {
		return 0, errors.New("accuracy is undefined on an empty test set")
	}
	if n != len(labels) {
		return 0, errors.Newf("test data has %d samples but %d labels were given", n, len(labels))
	}
	predictions, err := s.Classify(testData)
	if err != nil {
		return 0, err
	}
	correct := 0
	for j, prediction := range predictions {
		if prediction == labels[j] {
			correct++
		}
	}
	return float64(correct) / float64(n), nil
}

//NumClasses returns the number of target classes.
func (s *SoftmaxRegression) NumClasses() int { return s.numClasses }

//SetNumClasses overrides the number of target classes. The next Train call
//revalidates it.
func (s *SoftmaxRegression) SetNumClasses(numClasses int) { s.numClasses = numClasses }

//Lambda returns the L2 regularization strength.
func (s *SoftmaxRegression) Lambda() float64 { return s.lambda }

//SetLambda overrides the L2 regularization strength for subsequent training.
func (s *SoftmaxRegression) SetLambda(lambda float64) { s.lambda = lambda }

//FitIntercept reports whether a bias column is fitted. The flag is fixed at
//construction: flipping it after training would invalidate the parameter
//shape.
func (s *SoftmaxRegression) FitIntercept() bool { return s.fitIntercept }

//Parameters returns the model parameter matrix, nil before the first
//successful Train. The matrix is not copied: a caller may mutate it in
//place, for example to warm-start the next Train call.
func (s *SoftmaxRegression) Parameters() *mat.Dense { return s.parameters }

//FeatureSize returns the dimensionality of feature vectors the model
//accepts, derived from the parameter width. This is the authoritative way to
//recover the input size, also after deserialization.
func (s *SoftmaxRegression) FeatureSize() int {
	if s.parameters == nil {
		return s.inputSize
	}
	_, cols := s.parameters.Dims()
	if s.fitIntercept {
		return cols - 1
	}
	return cols
}

//softmaxRegressionJSON is the persisted state. The input size is not stored,
//it is recovered from the parameter width on load.
type softmaxRegressionJSON struct {
	Parameters   [][]float64 `json:"parameters"`
	NumClasses   int         `json:"num_classes"`
	Lambda       float64     `json:"lambda"`
	FitIntercept bool        `json:"fit_intercept"`
}

func (s *SoftmaxRegression) MarshalJSON() ([]byte, error) {
	record := softmaxRegressionJSON{
		NumClasses:   s.numClasses,
		Lambda:       s.lambda,
		FitIntercept: s.fitIntercept,
	}
	if s.parameters != nil {
		rows, cols := s.parameters.Dims()
		record.Parameters = make([][]float64, rows)
		for p := 0; p < rows; p++ {
			row := make([]float64, cols)
			for q := 0; q < cols; q++ {
				row[q] = s.parameters.At(p, q)
			}
			record.Parameters[p] = row
		}
	}
	return json.Marshal(record)
}

func (s *SoftmaxRegression) UnmarshalJSON(data []byte) error {
	var record softmaxRegressionJSON
	if err := json.Unmarshal(data, &record); err != nil {
		return err
	}
	s.numClasses = record.NumClasses
	s.lambda = record.Lambda
	s.fitIntercept = record.FitIntercept
	s.parameters = nil
	s.inputSize = 0
	if len(record.Parameters) == 0 {
		return nil
	}
	rows := len(record.Parameters)
	cols := len(record.Parameters[0])
	parameters := mat.NewDense(rows, cols, nil)
	for p := 0; p < rows; p++ {
		if len(record.Parameters[p]) != cols {
			return errors.Newf("parameter row %d has %d entries, expected %d", p, len(record.Parameters[p]), cols)
		}
		for q := 0; q < cols; q++ {
			parameters.Set(p, q, record.Parameters[p][q])
		}
	}
	s.parameters = parameters
	s.inputSize = cols
	if s.fitIntercept {
		s.inputSize = cols - 1
	}
	return nil
}

//Save writes the model to filename as indented JSON.
func (s *SoftmaxRegression) Save(filename string) error {
	repr, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode softmax regression model")
	}
	if err := os.WriteFile(filename, repr, 0o644); err != nil {
		return errors.Wrapf(err, "write model to %s", filename)
	}
	return nil
}

//LoadSoftmaxRegression reads a model previously written by Save.
func LoadSoftmaxRegression(filename string) (*SoftmaxRegression, error) {
	source, err := os.Open(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "open model file %s", filename)
	}
	defer func() { HandleError(source.Close()) }()

	model := &SoftmaxRegression{}
	decoder := json.NewDecoder(source)
	if err := decoder.Decode(model); err != nil {
		return nil, errors.Wrapf(err, "decode model file %s", filename)
	}
	return model, nil
}
