package sml

import (
	"encoding/json"
	"fmt"
	"log"
	"math"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/goccy/go-graphviz"
	"github.com/goccy/go-graphviz/cgraph"
	"gonum.org/v1/gonum/mat"
	"gorgonia.org/tensor"
)

//betaFloor bounds the stage confidence away from zero on a perfect fit.
const betaFloor = 1e-10

//ResidualBoosterParams collect arguments required to build a booster.
type ResidualBoosterParams struct {
	Data      *mat.Dense // inputSize x numSamples, one column per sample
	Target    []float64
	NStages   int
	RegLambda float64
	Loss      ExponentialLoss
	//Optional held-out set for the learning curve; the training set is used
	//when absent.
	TestData   *mat.Dense
	TestTarget []float64
}

//ResidualBooster is an ensemble of ridge learners trained on progressively
//reweighted samples. Each stage fits a weak learner against the current
//sample weights, converts its residuals into losses through ExponentialLoss
//and shifts weight towards the samples the ensemble still predicts badly.
type ResidualBooster struct {
	Learners      []*RidgeLearner `json:"learners"`
	StageWeights  []float64       `json:"stage_weights"`
	AverageLosses []float64       `json:"average_losses"`
	LearningCurve []float64       `json:"learning_curve"`

	weightHistory *tensor.Dense
}

//NewResidualBooster trains a new ensemble. Boosting stops before NStages
//when a stage fits the weighted sample perfectly or when its average loss
//reaches 1/2, the point where reweighting stops being informative.
func NewResidualBooster(params ResidualBoosterParams) (*ResidualBooster, error) {
	if params.Data == nil {
		return nil, errors.New("nil data matrix")
	}
	_, n := params.Data.Dims()
	if n == 0 {
		return nil, errors.New("data matrix has no samples")
	}
	if n != len(params.Target) {
		return nil, errors.Newf("data has %d samples but %d targets were given", n, len(params.Target))
	}
	if params.NStages < 1 {
		return nil, errors.Newf("at least one boosting stage required, got %d", params.NStages)
	}
	if params.TestData != nil {
		_, testN := params.TestData.Dims()
		if testN != len(params.TestTarget) {
			return nil, errors.Newf("held-out set has %d samples but %d targets were given", testN, len(params.TestTarget))
		}
		if testN == 0 {
			return nil, errors.New("held-out set has no samples")
		}
	}

	monitorData, monitorTarget := params.Data, params.Target
	if params.TestData != nil {
		monitorData, monitorTarget = params.TestData, params.TestTarget
	}

	booster := &ResidualBooster{}

	weights := make([]float64, n)
	for i := range weights {
		weights[i] = 1.0 / float64(n)
	}
	var history []float64

	for stage := 0; stage < params.NStages; stage++ {
		learner, err := FitRidgeLearner(params.Data, params.Target, weights, params.RegLambda)
		if err != nil {
			return nil, errors.Wrapf(err, "boosting stage %d", stage+1)
		}

		predictions := learner.Predict(params.Data)
		residuals := make([]float64, n)
		for i := range residuals {
			residuals[i] = predictions[i] - params.Target[i]
		}
		losses := params.Loss.Calculate(residuals)

		averageLoss := 0.0
		for i := range losses {
			averageLoss += weights[i] * losses[i]
		}
		if averageLoss >= 0.5 {
			log.Printf("stage %d: average loss %.6f >= 0.5, stopping", stage+1, averageLoss)
			break
		}

		history = append(history, weights...)

		beta := averageLoss / (1 - averageLoss)
		if beta < betaFloor {
			beta = betaFloor
		}
		booster.Learners = append(booster.Learners, learner)
		booster.StageWeights = append(booster.StageWeights, math.Log(1/beta))
		booster.AverageLosses = append(booster.AverageLosses, averageLoss)

		monitorPredictions, err := booster.Predict(monitorData)
		if err != nil {
			return nil, err
		}
		curveValue := rmse(monitorPredictions, monitorTarget)
		booster.LearningCurve = append(booster.LearningCurve, curveValue)
		log.Printf("stage %d: average loss %.6f, monitor rmse %.6f", stage+1, averageLoss, curveValue)

		if averageLoss == 0 {
			log.Printf("stage %d: perfect fit, stopping", stage+1)
			break
		}

		sum := 0.0
		for i := range weights {
			weights[i] *= math.Pow(beta, 1-losses[i])
			sum += weights[i]
		}
		for i := range weights {
			weights[i] /= sum
		}
	}

	if len(booster.Learners) == 0 {
		return nil, errors.New("boosting produced no usable stage")
	}
	booster.weightHistory = tensor.New(
		tensor.WithShape(len(booster.Learners), n),
		tensor.WithBacking(history),
	)
	return booster, nil
}

//Predict combines the stage predictions for every column of data into a
//confidence-weighted mean.
func (b *ResidualBooster) Predict(data *mat.Dense) ([]float64, error) {
	if len(b.Learners) == 0 {
		return nil, errors.New("empty booster")
	}
	_, n := data.Dims()
	predictions := make([]float64, n)
	totalWeight := 0.0
	for ind, learner := range b.Learners {
		stagePredictions := learner.Predict(data)
		for j := range predictions {
			predictions[j] += b.StageWeights[ind] * stagePredictions[j]
		}
		totalWeight += b.StageWeights[ind]
	}
	for j := range predictions {
		predictions[j] /= totalWeight
	}
	return predictions, nil
}

//SampleWeightHistory returns the stages x samples tensor of the sample
//weights each stage was fit against. It is populated by NewResidualBooster
//and is nil on a loaded model.
func (b *ResidualBooster) SampleWeightHistory() *tensor.Dense {
	return b.weightHistory
}

//Save writes the ensemble to filename as indented JSON.
func (b *ResidualBooster) Save(filename string) error {
	repr, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode residual booster")
	}
	if err := os.WriteFile(filename, repr, 0o644); err != nil {
		return errors.Wrapf(err, "write booster to %s", filename)
	}
	return nil
}

//LoadResidualBooster reads an ensemble previously written by Save.
func LoadResidualBooster(filename string) (*ResidualBooster, error) {
	source, err := os.Open(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "open booster file %s", filename)
	}
	defer func() { HandleError(source.Close()) }()

	booster := &ResidualBooster{}
	decoder := json.NewDecoder(source)
	if err := decoder.Decode(booster); err != nil {
		return nil, errors.Wrapf(err, "decode booster file %s", filename)
	}
	return booster, nil
}

//RenderRounds draws the boosting rounds as a chain graph, one box per stage
//with its average loss and confidence. figureType is png, svg or jpg.
func (b *ResidualBooster) RenderRounds(filename, figureType string) error {
	graphvizType, ok := map[string]graphviz.Format{
		"png": graphviz.PNG,
		"svg": graphviz.SVG,
		"jpg": graphviz.JPG,
	}[figureType]
	if !ok {
		return errors.Newf("unsupported figure type %q", figureType)
	}

	graphViz := graphviz.New()
	graph, err := graphViz.Graph()
	if err != nil {
		return errors.Wrap(err, "create graph")
	}

	var previous *cgraph.Node
	for ind := range b.Learners {
		node, err := graph.CreateNode(fmt.Sprintf("stage_%04d", ind))
		if err != nil {
			return errors.Wrapf(err, "create node for stage %d", ind)
		}
		node.Set("shape", "box")
		node.Set("label", fmt.Sprintf("stage %d\navg loss: %.4f\nconfidence: %.4f", ind+1, b.AverageLosses[ind], b.StageWeights[ind]))
		if previous != nil {
			if _, err := graph.CreateEdge("", previous, node); err != nil {
				return errors.Wrapf(err, "create edge into stage %d", ind)
			}
		}
		previous = node
	}

	return errors.Wrapf(graphViz.RenderFilename(graph, graphvizType, filename), "render %s", filename)
}

//rmse is the root mean squared error between two equally long sequences.
func rmse(predictions, target []float64) float64 {
	s := 0.0
	for i := range predictions {
		d := predictions[i] - target[i]
		s += d * d
	}
	return math.Sqrt(s / float64(len(predictions)))
}
