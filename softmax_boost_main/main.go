package main

import (
	"encoding/json"
	"flag"
	"log"
	"os"
	"runtime"
	"runtime/pprof"

	"github.com/sbinet/npyio"
	"github.com/smxboost/softmax_boosting/sml"
	"gonum.org/v1/gonum/mat"
)

func decodeConfig(srcConfig string, out interface{}) {
	file, err := os.Open(srcConfig)
	sml.HandleError(err)
	defer func() { sml.HandleError(file.Close()) }()

	decoder := json.NewDecoder(file)
	sml.HandleError(decoder.Decode(out))
}

type TrainConfig struct {
	FileNameFeatures string  `json:"filename_features"`
	FileNameLabels   string  `json:"filename_labels"`
	NumClasses       int     `json:"num_classes"`
	Lambda           float64 `json:"lambda"`
	FitIntercept     bool    `json:"fit_intercept"`
	MaxIterations    int     `json:"max_iterations"`
	Tolerance        float64 `json:"tolerance"`
	FileNameModel    string  `json:"filename_model"`
}

func train(srcConfig string) {
	var trainConfig TrainConfig
	decodeConfig(srcConfig, &trainConfig)

	dataset, err := sml.ReadDataset(trainConfig.FileNameFeatures, trainConfig.FileNameLabels, trainConfig.NumClasses)
	sml.HandleError(err)

	lambda := trainConfig.Lambda
	if lambda == 0 {
		lambda = sml.DefaultLambda
	}

	optimizer := sml.LBFGS{
		MaxIterations: trainConfig.MaxIterations,
		Tolerance:     trainConfig.Tolerance,
	}

	model, err := sml.TrainSoftmaxRegression(
		dataset.Features,
		dataset.Labels,
		trainConfig.NumClasses,
		optimizer,
		lambda,
		trainConfig.FitIntercept,
		func(iteration int, objective float64) {
			log.Printf("iteration %d: objective %.6f", iteration, objective)
		},
	)
	sml.HandleError(err)

	sml.HandleError(model.Save(trainConfig.FileNameModel))
}

type PredictConfig struct {
	FileNameFeatures    string `json:"filename_features"`
	FileNameModel       string `json:"filename_model"`
	FileNamePredictions string `json:"filename_predictions"`
}

func predict(srcConfig string) {
	var predictConfig PredictConfig
	decodeConfig(srcConfig, &predictConfig)

	features, err := sml.ReadNpy(predictConfig.FileNameFeatures)
	sml.HandleError(err)

	model, err := sml.LoadSoftmaxRegression(predictConfig.FileNameModel)
	sml.HandleError(err)

	labels, err := model.Classify(features)
	sml.HandleError(err)

	prediction := mat.NewDense(len(labels), 1, nil)
	for ind, label := range labels {
		prediction.Set(ind, 0, float64(label))
	}

	dst, err := os.Create(predictConfig.FileNamePredictions)
	sml.HandleError(err)
	defer func() { sml.HandleError(dst.Close()) }()
	sml.HandleError(npyio.Write(dst, prediction))
}

type AccuracyConfig struct {
	FileNameFeatures string `json:"filename_features"`
	FileNameLabels   string `json:"filename_labels"`
	FileNameModel    string `json:"filename_model"`
}

func accuracy(srcConfig string) {
	var accuracyConfig AccuracyConfig
	decodeConfig(srcConfig, &accuracyConfig)

	model, err := sml.LoadSoftmaxRegression(accuracyConfig.FileNameModel)
	sml.HandleError(err)

	dataset, err := sml.ReadDataset(accuracyConfig.FileNameFeatures, accuracyConfig.FileNameLabels, model.NumClasses())
	sml.HandleError(err)

	fraction, err := model.ComputeAccuracy(dataset.Features, dataset.Labels)
	sml.HandleError(err)
	log.Printf("accuracy = %.4f", fraction)
}

type BoostConfig struct {
	FileNameFeatures      string  `json:"filename_features"`
	FileNameTarget        string  `json:"filename_target"`
	NStages               int     `json:"n_stages"`
	RegLambda             float64 `json:"reg_lambda"`
	FileNameModel         string  `json:"filename_model"`
	FigureType            string  `json:"figure_type"`
	FileNameFigure        string  `json:"filename_figure"`
	FileNameCurvePlot     string  `json:"filename_curve_plot"`
	FileNameLearningCurve string  `json:"filename_learning_curve"`
}

func boost(srcConfig string) {
	var boostConfig BoostConfig
	decodeConfig(srcConfig, &boostConfig)

	features, err := sml.ReadNpy(boostConfig.FileNameFeatures)
	sml.HandleError(err)
	rawTarget, err := sml.ReadNpy(boostConfig.FileNameTarget)
	sml.HandleError(err)

	target := make([]float64, sml.Height(rawTarget))
	for ind := range target {
		target[ind] = rawTarget.At(ind, 0)
	}

	booster, err := sml.NewResidualBooster(sml.ResidualBoosterParams{
		Data:      features,
		Target:    target,
		NStages:   boostConfig.NStages,
		RegLambda: boostConfig.RegLambda,
		Loss:      sml.ExponentialLoss{},
	})
	sml.HandleError(err)

	sml.HandleError(booster.Save(boostConfig.FileNameModel))

	if boostConfig.FileNameFigure != "" {
		sml.HandleError(booster.RenderRounds(boostConfig.FileNameFigure, boostConfig.FigureType))
	}
	if boostConfig.FileNameCurvePlot != "" {
		sml.HandleError(sml.PlotLearningCurve(booster.LearningCurve, "residual booster", boostConfig.FileNameCurvePlot))
	}
	if boostConfig.FileNameLearningCurve != "" {
		dump := sml.LearningCurvesDump{
			Titles: []string{"train rmse"},
			Values: [][]float64{booster.LearningCurve},
		}
		sml.HandleError(sml.DumpLearningCurves(dump, boostConfig.FileNameLearningCurve))
	}
}

type LearningCurvesConfig struct {
	FileNameModel          string `json:"filename_model"`
	FilenameLearningCurves string `json:"filename_learning_curves"`
	FileNameCurvePlot      string `json:"filename_curve_plot"`
}

func getLearningCurves(srcConfig string) {
	var curvesConfig LearningCurvesConfig
	decodeConfig(srcConfig, &curvesConfig)

	booster, err := sml.LoadResidualBooster(curvesConfig.FileNameModel)
	sml.HandleError(err)

	dump := sml.LearningCurvesDump{
		Titles: []string{"train rmse"},
		Values: [][]float64{booster.LearningCurve},
	}
	sml.HandleError(sml.DumpLearningCurves(dump, curvesConfig.FilenameLearningCurves))

	if curvesConfig.FileNameCurvePlot != "" {
		sml.HandleError(sml.PlotLearningCurve(booster.LearningCurve, "residual booster", curvesConfig.FileNameCurvePlot))
	}
}

func main() {
	runMode := flag.String("mode", "train", "you can select either 'train', 'predict', 'accuracy', 'boost' or 'get_learning_curves' modes")
	config := flag.String("config", "softmax_config.json", "a config file for the run of the program")
	memprofile := flag.String("memprofile", "", "write memory profile to `file`")

	flag.Parse()

	map[string]func(string){
		"train":               train,
		"predict":             predict,
		"accuracy":            accuracy,
		"boost":               boost,
		"get_learning_curves": getLearningCurves,
	}[*runMode](*config)

	if *memprofile != "" {
		f, err := os.Create(*memprofile)
		sml.HandleError(err)
		defer func() { sml.HandleError(f.Close()) }()
		runtime.GC()
		if err := pprof.WriteHeapProfile(f); err != nil {
			log.Fatal("could not write memory profile: ", err)
		}
	}
}
