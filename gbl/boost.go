package gbl

import (
	"log"

	"gonum.org/v1/gonum/mat"
)

//BoosterParams collect arguments required to construct a cyclic booster.
type BoosterParams struct {
	Matrix       *InteractionMatrix
	NStages      int
	RegLambda    float64
	LearningRate float64
	LossKind     SplitLoss
	//InnerBags is the number of sample bags whose per-bag update tensors are
	//merged each round; 1 disables bagging.
	InnerBags int
	//Bias is the starting prediction column; nil means zero.
	Bias *mat.Dense
}

//TermScores couples one single-feature term with its accumulated score tensor.
type TermScores struct {
	FeatureIndex int
	Term         *Term
	Scores       *Tensor
}

//CyclicBooster is an additive model over single-feature terms, trained by
//visiting every term in a round robin and folding a small gradient update into
//its score tensor.
type CyclicBooster struct {
	Matrix        *InteractionMatrix
	Bias          *mat.Dense
	Terms         []*TermScores
	LearningCurve []float64

	nStages      int
	regLambda    float64
	learningRate float64
	lossKind     SplitLoss
	innerBags    int
}

//NewCyclicBooster creates a booster over a binned dataset, one term with an
//all-zero single-slice tensor per feature.
func NewCyclicBooster(params BoosterParams) (*CyclicBooster, error) {
	h, w := params.Matrix.validatedDimensions()
	if params.Matrix.Bins == nil {
		log.Panic("gbl: boosting requires a binned dataset")
	}

	bias := params.Bias
	if bias == nil {
		bias = mat.NewDense(h, 1, nil)
	}
	lossKind := params.LossKind
	if lossKind == nil {
		lossKind = MseLoss{}
	}
	innerBags := params.InnerBags
	if innerBags < 1 {
		innerBags = 1
	}

	booster := &CyclicBooster{
		Matrix:       params.Matrix,
		Bias:         bias,
		nStages:      params.NStages,
		regLambda:    params.RegLambda,
		learningRate: params.LearningRate,
		lossKind:     lossKind,
		innerBags:    innerBags,
	}
	for q := 0; q < w; q++ {
		scores, err := NewTensor(1, 1)
		if err != nil {
			return nil, err
		}
		booster.Terms = append(booster.Terms, &TermScores{
			FeatureIndex: q,
			Term:         NewTerm(params.Matrix.Bins[q]),
			Scores:       scores,
		})
	}
	return booster, nil
}

//Boost runs the configured number of boosting stages. Boosting stops early,
//keeping the scores accumulated so far, when a term update turns non-finite.
func (booster *CyclicBooster) Boost() error {
	for stage := 0; stage < booster.nStages; stage++ {
		for _, term := range booster.Terms {
			stop, err := booster.boostTerm(term)
			if err != nil {
				return err
			}
			if stop {
				log.Printf("non-finite update for feature %d, stopping boosting", term.FeatureIndex)
				return nil
			}
		}
		metric := Rmse(booster.Matrix.Target, booster.Bias)
		if _, ok := booster.lossKind.(LogLoss); ok {
			metric = Logloss(booster.Matrix.Target, booster.Bias, true)
		}
		booster.LearningCurve = append(booster.LearningCurve, metric)
		log.Printf("stage %d metric = %v", stage+1, metric)
	}
	return nil
}

//boostTerm performs one boosting step on one term: merge the per-bag update
//tensors over their common refinement, scale by the learning rate with
//anomaly detection, densify, and fold the result into the term scores under
//bad-value protection.
func (booster *CyclicBooster) boostTerm(term *TermScores) (stop bool, err error) {
	update, err := booster.termUpdate(term.FeatureIndex)
	if err != nil {
		return false, err
	}

	if update.MultiplyAndCheckForIssues(-booster.learningRate / float64(booster.innerBags)) {
		return true, nil
	}

	if err = update.Expand(term.Term); err != nil {
		return false, err
	}
	if err = term.Scores.Expand(term.Term); err != nil {
		return false, err
	}
	term.Scores.AddExpandedWithBadValueProtection(update.Scores())

	denseUpdate := update.Scores()
	binned := booster.Matrix.Binned[term.FeatureIndex]
	for p := 0; p < booster.Matrix.CountSamples(); p++ {
		booster.Bias.Set(p, 0, booster.Bias.At(p, 0)+denseUpdate[binned[p]])
	}
	return false, nil
}

//termUpdate computes the Newton step of one term as a compressed tensor: each
//sample bag contributes a tensor whose slices cover its populated bins, and
//the bags are summed over their common refinement with Add.
func (booster *CyclicBooster) termUpdate(q int) (*Tensor, error) {
	bins := booster.Matrix.Bins[q].BinCount
	binned := booster.Matrix.Binned[q]
	h := booster.Matrix.CountSamples()

	var combined *Tensor
	for bag := 0; bag < booster.innerBags; bag++ {
		grad := make([]float64, bins)
		hess := make([]float64, bins)
		count := make([]int, bins)
		for p := bag; p < h; p += booster.innerBags {
			targetVal := booster.Matrix.Target.At(p, 0)
			biasVal := booster.Bias.At(p, 0)
			weight := booster.Matrix.weightAt(p)
			grad[binned[p]] += weight * booster.lossKind.lossDer1(targetVal, biasVal)
			hess[binned[p]] += weight * booster.lossKind.lossDer2(targetVal, biasVal)
			count[binned[p]]++
		}

		populated := make([]int, 0, bins)
		for b := 0; b < bins; b++ {
			if count[b] > 0 {
				populated = append(populated, b)
			}
		}
		if len(populated) == 0 {
			continue
		}

		bagTensor, err := NewTensor(1, 1)
		if err != nil {
			return nil, err
		}
		if err = bagTensor.SetSliceCount(0, len(populated)); err != nil {
			return nil, err
		}
		cuts := bagTensor.CutPoints(0)
		for i, b := range populated[1:] {
			cuts[i] = uint64(b)
		}
		if err = bagTensor.EnsureScoreCapacity(len(populated)); err != nil {
			return nil, err
		}
		scores := bagTensor.Scores()
		for i, b := range populated {
			scores[i] = grad[b] / (hess[b] + booster.regLambda)
		}

		if combined == nil {
			combined = bagTensor
		} else if err = combined.Add(bagTensor); err != nil {
			return nil, err
		}
	}

	if combined == nil {
		return NewTensor(1, 1)
	}
	return combined, nil
}

//PredictValue infers the model prediction for a raw feature matrix, binning
//each value through the thresholds recorded at training time.
func (booster *CyclicBooster) PredictValue(features *mat.Dense) *mat.Dense {
	h := Height(features)
	prediction := mat.NewDense(h, 1, nil)
	for _, term := range booster.Terms {
		feature := term.Term.Features[0]
		scores := term.Scores.Scores()
		cuts := term.Scores.CutPoints(0)
		for p := 0; p < h; p++ {
			bin := feature.Bin(features.At(p, term.FeatureIndex))
			slice := sliceOf(cuts, uint64(bin))
			prediction.Set(p, 0, prediction.At(p, 0)+scores[slice])
		}
	}
	return prediction
}

//sliceOf returns the index of the slice a bin falls into, the number of cut
//points at or below the bin.
func sliceOf(cuts []uint64, bin uint64) int {
	slice := 0
	for slice < len(cuts) && cuts[slice] <= bin {
		slice++
	}
	return slice
}
