package gbl

import "sort"

//Feature describes one binned input axis: how many dense bins its values were
//discretized into and the thresholds that produced them. Thresholds are kept
//so that unseen raw values can be mapped to bins at prediction time.
type Feature struct {
	BinCount   int
	Thresholds []float64
}

//Bin maps a raw feature value to its bin index: values below a threshold fall
//left of it, equal values go right.
func (feature *Feature) Bin(val float64) int {
	return sort.Search(len(feature.Thresholds), func(i int) bool { return val < feature.Thresholds[i] })
}

//Term is an ordered group of features whose joint score function is stored in
//one Tensor; the tensor's dimension order is the term's feature order.
type Term struct {
	Features []*Feature
}

//NewTerm groups features into a term.
func NewTerm(features ...*Feature) *Term {
	return &Term{Features: features}
}

//CountDimensions returns the number of features in the term.
func (term *Term) CountDimensions() int {
	return len(term.Features)
}

//TensorBinCount returns the dense cell count of the term, the product of all
//feature bin counts, with the multiplication overflow-checked before any
//allocation can be based on it.
func (term *Term) TensorBinCount() (int, error) {
	count := 1
	for _, feature := range term.Features {
		var ok bool
		count, ok = mulSize(count, feature.BinCount)
		if !ok {
			return 0, ErrOutOfMemory
		}
	}
	return count, nil
}
