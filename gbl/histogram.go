package gbl

import (
	"gonum.org/v1/gonum/mat"
	"gorgonia.org/tensor"
)

//Channels of the pair histogram bucket tensor.
const (
	bucketGrad = iota
	bucketHess
	bucketWeight
	bucketCount
	bucketChannels
)

//PairHistogram accumulates per-(bin, bin) statistics of one feature pair: the
//gradient sum, the hessian sum, the weight sum and the sample count of every
//cell of the dense bin grid.
type PairHistogram struct {
	Feature1, Feature2 int
	Buckets            *tensor.Dense
	TotalWeight        float64
}

//BinPairInteraction performs the histogram pass for one feature pair: every
//sample contributes its loss derivatives at the current bias to the bucket of
//its (bin1, bin2) cell. The bucket grid is allocated only after the
//overflow-checked cell count computation.
func BinPairInteraction(im *InteractionMatrix, bias *mat.Dense, currentLoss SplitLoss, q1, q2 int) (*PairHistogram, error) {
	h, _ := im.validatedDimensions()
	bins1 := im.Bins[q1].BinCount
	bins2 := im.Bins[q2].BinCount

	cells, ok := mulSize(bins1, bins2)
	if !ok {
		return nil, ErrOutOfMemory
	}
	if _, ok = mulSize(cells, bucketChannels); !ok {
		return nil, ErrOutOfMemory
	}

	hist := &PairHistogram{
		Feature1: q1,
		Feature2: q2,
		Buckets:  tensor.New(tensor.WithShape(bins1, bins2, bucketChannels), tensor.Of(tensor.Float64)),
	}

	binned1 := im.Binned[q1]
	binned2 := im.Binned[q2]
	for p := 0; p < h; p++ {
		targetVal := im.Target.At(p, 0)
		biasVal := bias.At(p, 0)
		weight := im.weightAt(p)
		der1 := currentLoss.lossDer1(targetVal, biasVal)
		der2 := currentLoss.lossDer2(targetVal, biasVal)

		b1 := binned1[p]
		b2 := binned2[p]
		hist.accumulate(b1, b2, bucketGrad, weight*der1)
		hist.accumulate(b1, b2, bucketHess, weight*der2)
		hist.accumulate(b1, b2, bucketWeight, weight)
		hist.accumulate(b1, b2, bucketCount, 1.0)
		hist.TotalWeight += weight
	}
	return hist, nil
}

func (hist *PairHistogram) accumulate(b1, b2, channel int, delta float64) {
	element, err := hist.Buckets.At(b1, b2, channel)
	HandleError(err)
	HandleError(hist.Buckets.SetAt(element.(float64)+delta, b1, b2, channel))
}

//cumulative returns the inclusive 2-D prefix sums of one bucket channel, so a
//later sweep can read any rectangle sum in constant time.
func (hist *PairHistogram) cumulative(channel int) [][]float64 {
	shape := hist.Buckets.Shape()
	bins1, bins2 := shape[0], shape[1]
	out := make([][]float64, bins1)
	for i := 0; i < bins1; i++ {
		out[i] = make([]float64, bins2)
		for j := 0; j < bins2; j++ {
			element, err := hist.Buckets.At(i, j, channel)
			HandleError(err)
			val := element.(float64)
			if i > 0 {
				val += out[i-1][j]
			}
			if j > 0 {
				val += out[i][j-1]
			}
			if i > 0 && j > 0 {
				val -= out[i-1][j-1]
			}
			out[i][j] = val
		}
	}
	return out
}
