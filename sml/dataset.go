package sml

import (
	"log"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/sbinet/npyio"
	"gonum.org/v1/gonum/mat"
)

//Dataset holds a labeled data set for classification: features with one
//column per sample and one integer class index per column.
type Dataset struct {
	Features    *mat.Dense // inputSize x numSamples
	Labels      []int
	Description *string
}

//SetDescription attaches a description used in reporting.
func (ds *Dataset) SetDescription(description string) {
	ds.Description = &description
}

//ReadNpy reads the content of an npy file into a dense matrix.
func ReadNpy(fileName string) (*mat.Dense, error) {
	f, err := os.Open(fileName)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", fileName)
	}
	defer func() { HandleError(f.Close()) }()

	r, err := npyio.NewReader(f)
	if err != nil {
		return nil, errors.Wrapf(err, "read npy header of %s", fileName)
	}

	denseMat := &mat.Dense{}
	if err := r.Read(denseMat); err != nil {
		return nil, errors.Wrapf(err, "read npy payload of %s", fileName)
	}
	return denseMat, nil
}

//ReadDataset loads a feature matrix and a label vector from two npy files
//and unites them into one Dataset. The features file must be laid out
//inputSize x numSamples, one column per sample; the labels file must hold
//one integral value per sample. Labels are range-checked against numClasses
//when it is positive.
func ReadDataset(fileNameFeatures, fileNameLabels string, numClasses int) (Dataset, error) {
	log.Print("\ttry to load features <", fileNameFeatures, ">")
	features, err := ReadNpy(fileNameFeatures)
	if err != nil {
		return Dataset{}, err
	}
	log.Print("\ttry to load labels <", fileNameLabels, ">")
	rawLabels, err := ReadNpy(fileNameLabels)
	if err != nil {
		return Dataset{}, err
	}

	labels, err := labelsFromMatrix(rawLabels, numClasses)
	if err != nil {
		return Dataset{}, err
	}

	ds := Dataset{Features: features, Labels: labels}
	if _, _, err := ds.validatedDimensions(); err != nil {
		return Dataset{}, err
	}
	return ds, nil
}

//labelsFromMatrix flattens a single-row or single-column matrix of class
//indices, rejecting fractional and out-of-range values.
func labelsFromMatrix(raw *mat.Dense, numClasses int) ([]int, error) {
	rows, cols := raw.Dims()
	if rows != 1 && cols != 1 {
		return nil, errors.Newf("labels must form a vector, got %dx%d", rows, cols)
	}
	n := rows * cols
	labels := make([]int, n)
	for i := 0; i < n; i++ {
		var v float64
		if rows == 1 {
			v = raw.At(0, i)
		} else {
			v = raw.At(i, 0)
		}
		label := int(v)
		if float64(label) != v {
			return nil, errors.Newf("label at position %d is not integral: %v", i, v)
		}
		if label < 0 || (numClasses > 0 && label >= numClasses) {
			return nil, errors.Newf("label %d at position %d is outside [0, %d)", label, i, numClasses)
		}
		labels[i] = label
	}
	return labels, nil
}

//validatedDimensions checks the consistency of the features and labels of
//the current data set and returns the number of features and the number of
//samples.
func (ds Dataset) validatedDimensions() (d, n int, err error) {
	if ds.Features == nil {
		return 0, 0, errors.New("nil feature matrix")
	}
	d, n = ds.Features.Dims()
	if n != len(ds.Labels) {
		return 0, 0, errors.Newf("feature matrix has %d columns but %d labels were given", n, len(ds.Labels))
	}
	return d, n, nil
}
