package gbl

import (
	"errors"
	"log"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
)

//IllegalGain marks a pair whose interaction strength could not be computed.
//It sorts below every legal strength, so broken pairs rank last without the
//weirdness of NaNs.
const IllegalGain = -math.MaxFloat64

//ErrIllegalParam reports caller-supplied feature indexes that do not describe
//a valid interaction.
var ErrIllegalParam = errors.New("gbl: illegal parameter")

//logRateLimiter prints a message only while its budget lasts, so per-pair
//entry and exit messages cannot flood the log on large rankings. The state is
//owned by one calculator, never process-wide.
type logRateLimiter struct {
	remaining int
}

func newLogRateLimiter(budget int) *logRateLimiter {
	return &logRateLimiter{remaining: budget}
}

func (rl *logRateLimiter) printf(format string, v ...interface{}) {
	if rl.remaining > 0 {
		rl.remaining--
		log.Printf(format, v...)
	}
}

//InteractionOptions collects the tunables of the strength calculation.
type InteractionOptions struct {
	//MinSamplesLeaf is the smallest sample count a partition quadrant may
	//hold; partitions below it are not considered. Values below one are
	//adjusted to one.
	MinSamplesLeaf int
	//RegLambda is the L2 regularization added to every hessian denominator.
	RegLambda float64
	//Loss provides the derivatives binned by the histogram pass; nil selects
	//MseLoss.
	Loss SplitLoss
}

//InteractionCalculator computes pairwise interaction strengths over one
//dataset and one bias column. It owns its log rate limiter state, so a fresh
//calculator per worker keeps concurrent rankings race free.
type InteractionCalculator struct {
	matrix        *InteractionMatrix
	bias          *mat.Dense
	enterMessages *logRateLimiter
	exitMessages  *logRateLimiter
}

//NewInteractionCalculator creates a calculator for one dataset. A nil bias
//means boosting has not started and the current prediction is zero everywhere.
func NewInteractionCalculator(im *InteractionMatrix, bias *mat.Dense) *InteractionCalculator {
	if bias == nil {
		bias = mat.NewDense(im.CountSamples(), 1, nil)
	}
	return &InteractionCalculator{
		matrix:        im,
		bias:          bias,
		enterMessages: newLogRateLimiter(10),
		exitMessages:  newLogRateLimiter(10),
	}
}

//CalcInteractionStrength validates the caller-supplied feature indexes and
//dispatches into the strength pipeline: histogram pass, cumulative totals and
//a sweep over all cut pairs for the best 2x2 partition gain, normalized by the
//total sample weight. Degenerate inputs that carry no interaction evidence (an
//empty index list, a single-bin feature, an empty dataset) yield strength zero
//rather than an error; a non-finite gain yields IllegalGain.
func (calc *InteractionCalculator) CalcInteractionStrength(featureIndexes []int, opts InteractionOptions) (float64, error) {
	calc.enterMessages.printf("Entered CalcInteractionStrength: featureIndexes=%v", featureIndexes)

	if opts.MinSamplesLeaf < 1 {
		log.Print("CalcInteractionStrength MinSamplesLeaf can't be less than 1, adjusting to 1")
		opts.MinSamplesLeaf = 1
	}
	if opts.Loss == nil {
		opts.Loss = MseLoss{}
	}

	if len(featureIndexes) == 0 {
		log.Print("CalcInteractionStrength empty feature list")
		return 0, nil
	}
	if len(featureIndexes) > MaxTensorDimensions {
		log.Print("CalcInteractionStrength too many dimensions would cause an out of memory condition")
		return 0, ErrOutOfMemory
	}

	_, w := calc.matrix.validatedDimensions()
	if calc.matrix.Bins == nil {
		log.Panic("CalcInteractionStrength requires a binned dataset")
	}
	for _, q := range featureIndexes {
		if q < 0 {
			log.Print("CalcInteractionStrength feature index cannot be negative")
			return 0, ErrIllegalParam
		}
		if q >= w {
			log.Print("CalcInteractionStrength feature index must be less than the number of features")
			return 0, ErrIllegalParam
		}
		if calc.matrix.Bins[q].BinCount <= 1 {
			log.Print("CalcInteractionStrength feature group contains a feature with only 1 bin")
			return 0, nil
		}
	}

	if calc.matrix.CountSamples() == 0 {
		// with no samples there is no basis to claim an interaction
		log.Print("CalcInteractionStrength zero samples")
		return 0, nil
	}

	if len(featureIndexes) != 2 {
		// only pairs are supported; rank higher orders last instead of failing
		log.Print("CalcInteractionStrength only pairs of features are supported")
		return IllegalGain, nil
	}

	hist, err := BinPairInteraction(calc.matrix, calc.bias, opts.Loss, featureIndexes[0], featureIndexes[1])
	if err != nil {
		return 0, err
	}

	strength := partitionPairGain(hist, opts)
	if hist.TotalWeight > 0 {
		// gain could overflow to +inf for tiny weights, so divide first
		strength /= hist.TotalWeight
	}

	if !(strength <= math.MaxFloat64) {
		// NaN or +inf
		strength = IllegalGain
	} else if strength < 0 {
		// gain cannot mathematically be negative, but subtracting the parent
		// partial gain leaves floating point noise, and the no-legal-cut case
		// comes out substantially negative
		if -math.MaxFloat64 <= strength {
			strength = 0
		} else {
			strength = IllegalGain
		}
	}

	calc.exitMessages.printf("Exited CalcInteractionStrength: strength=%g", strength)
	return strength, nil
}

//partitionPairGain sweeps every (cut1, cut2) pair of the histogram's bin grid
//and returns the best 2x2 partition gain minus the unsplit parent gain.
//Rectangle statistics come from inclusive prefix sums, so each candidate is
//scored in constant time.
func partitionPairGain(hist *PairHistogram, opts InteractionOptions) float64 {
	shape := hist.Buckets.Shape()
	bins1, bins2 := shape[0], shape[1]

	cumGrad := hist.cumulative(bucketGrad)
	cumHess := hist.cumulative(bucketHess)
	cumCount := hist.cumulative(bucketCount)

	totalGrad := cumGrad[bins1-1][bins2-1]
	totalHess := cumHess[bins1-1][bins2-1]
	parentGain := gainTerm(totalGrad, totalHess, opts.RegLambda)

	quadrant := func(cum [][]float64, c1, c2, side int) float64 {
		switch side {
		case 0: // low1, low2
			return cum[c1][c2]
		case 1: // low1, high2
			return cum[c1][bins2-1] - cum[c1][c2]
		case 2: // high1, low2
			return cum[bins1-1][c2] - cum[c1][c2]
		default: // high1, high2
			return cum[bins1-1][bins2-1] - cum[c1][bins2-1] - cum[bins1-1][c2] + cum[c1][c2]
		}
	}

	bestGain := math.Inf(-1)
	for c1 := 0; c1 < bins1-1; c1++ {
		for c2 := 0; c2 < bins2-1; c2++ {
			legal := true
			gain := 0.0
			for side := 0; side < 4; side++ {
				if quadrant(cumCount, c1, c2, side) < float64(opts.MinSamplesLeaf) {
					legal = false
					break
				}
				gain += gainTerm(quadrant(cumGrad, c1, c2, side), quadrant(cumHess, c1, c2, side), opts.RegLambda)
			}
			if legal && gain > bestGain {
				bestGain = gain
			}
		}
	}
	return bestGain - parentGain
}

//gainTerm is the standard second order loss reduction of one region.
func gainTerm(grad, hess, regLambda float64) float64 {
	return grad * grad / (hess + regLambda)
}

//InteractionRank couples a feature pair with its calculated strength.
type InteractionRank struct {
	Feature1, Feature2 int
	Strength           float64
}

//AllFeaturePairs enumerates every unordered pair of w features.
func AllFeaturePairs(w int) [][2]int {
	pairs := make([][2]int, 0, w*(w-1)/2)
	for q1 := 0; q1 < w; q1++ {
		for q2 := q1 + 1; q2 < w; q2++ {
			pairs = append(pairs, [2]int{q1, q2})
		}
	}
	return pairs
}

//RankInteractions calculates the strength of every candidate pair and returns
//them sorted strongest first. This function performs multithreading iteration
//over the pairs: each worker ranks its own stripe with its own calculator, so
//no state is shared between threads while the per-calculator log message
//budget still bounds the output of a whole ranking.
func RankInteractions(im *InteractionMatrix, bias *mat.Dense, pairs [][2]int, opts InteractionOptions, threadsNum int) []InteractionRank {
	result := make([]InteractionRank, len(pairs))

	rankFunc := func(calc *InteractionCalculator, slot int) InteractionRank {
		strength, err := calc.CalcInteractionStrength([]int{pairs[slot][0], pairs[slot][1]}, opts)
		if err != nil {
			log.Print("interaction ranking failed for pair ", pairs[slot], ": ", err)
			strength = IllegalGain
		}
		return InteractionRank{Feature1: pairs[slot][0], Feature2: pairs[slot][1], Strength: strength}
	}

	if threadsNum == 1 {
		calc := NewInteractionCalculator(im, bias)
		for q := range pairs {
			result[q] = rankFunc(calc, q)
		}
	} else {
		taskPool := NewPool(threadsNum)
		for worker := 0; worker < threadsNum; worker++ {
			taskPool.AddTask(&TaskRankInteraction{
				result: result,
				calc:   NewInteractionCalculator(im, bias),
				first:  worker,
				stride: threadsNum,
				rank:   rankFunc,
			})
		}
		taskPool.Close()
		taskPool.WaitAll()
	}

	sort.SliceStable(result, func(i, j int) bool { return result[i].Strength > result[j].Strength })
	return result
}
