package sml

import (
	"math"
	"testing"
)

func TestCalculateKnownVector(t *testing.T) {
	loss := ExponentialLoss{}
	weights := loss.Calculate([]float64{-2, 4, 0})

	expected := []float64{1 - math.Exp(-0.5), 1 - math.Exp(-1), 0}
	if len(weights) != len(expected) {
		t.Fatalf("got %d weights, want %d", len(weights), len(expected))
	}
	for i := range expected {
		if math.Abs(weights[i]-expected[i]) > 1e-4 {
			t.Errorf("weight[%d] = %.6f, want %.6f", i, weights[i], expected[i])
		}
	}
}

func TestCalculateAllZeroResiduals(t *testing.T) {
	loss := ExponentialLoss{}
	weights := loss.Calculate([]float64{0, 0, 0})

	for i, w := range weights {
		if w != 0 {
			t.Errorf("weight[%d] = %v, want 0", i, w)
		}
	}
}

func TestCalculateEmptyInput(t *testing.T) {
	loss := ExponentialLoss{}
	if weights := loss.Calculate(nil); len(weights) != 0 {
		t.Fatalf("got %d weights for empty input", len(weights))
	}
}

func TestCalculateWeightsInUnitInterval(t *testing.T) {
	loss := ExponentialLoss{}
	weights := loss.Calculate([]float64{0.5, 3, -1.25, 0.01, 7.5})

	for i, w := range weights {
		if w < 0 || w >= 1 {
			t.Errorf("weight[%d] = %v, want a value in [0, 1)", i, w)
		}
	}
}
