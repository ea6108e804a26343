package sml

import (
	"log"

	"gonum.org/v1/gonum/mat"
)

//HandleError interrupts the execution if err is not nil.
func HandleError(err error) {
	if err != nil {
		log.Panic(err)
	}
}

//Height returns the number of rows of a dense matrix.
func Height(m *mat.Dense) int {
	h, _ := m.Dims()
	return h
}

//argmaxColumn returns the row index of the maximal entry in column j,
//breaking ties towards the lowest index.
func argmaxColumn(m *mat.Dense, j int) int {
	rows, _ := m.Dims()
	best := 0
	bestValue := m.At(0, j)
	for p := 1; p < rows; p++ {
		if v := m.At(p, j); v > bestValue {
			bestValue = v
			best = p
		}
	}
	return best
}
