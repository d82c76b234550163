package gbl

import (
	"log"
	"sort"

	"gonum.org/v1/gonum/mat"
)

//HandleError interrupts the program execution in case of error
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

//columnArgsort returns the permutation of row indices that sorts one matrix
//column in ascending order. Ties keep their original order.
func columnArgsort(column mat.Vector) []int {
	h := column.Len()
	indices := make([]int, h)
	for i := range indices {
		indices[i] = i
	}
	sort.SliceStable(indices, func(i, j int) bool {
		return column.AtVec(indices[i]) < column.AtVec(indices[j])
	})
	return indices
}
