package gbl

import (
	"bytes"
	"log"
	"math"
	"math/rand"
	"os"
	"strings"
	"testing"

	"gonum.org/v1/gonum/mat"
)

//xorMatrix builds a dataset whose target is the exclusive or of the first two
//binary features. The third feature takes the next two bits of the sample
//index, so its joint distribution with the xor is exactly uniform and it
//carries no information at all, while its four equally sized value runs keep
//it genuinely multi-bin under the quantile binning.
func xorMatrix(t *testing.T) *InteractionMatrix {
	t.Helper()
	h := 256
	features := mat.NewDense(h, 3, nil)
	target := mat.NewDense(h, 1, nil)
	for p := 0; p < h; p++ {
		f0 := float64(p % 2)
		f1 := float64((p / 2) % 2)
		features.Set(p, 0, f0)
		features.Set(p, 1, f1)
		features.Set(p, 2, float64((p/4)%4))
		if f0 != f1 {
			target.Set(p, 0, 1)
		}
	}
	im := &InteractionMatrix{Features: features, Target: target}
	im.BinFeatures(4)
	for q := 0; q < 3; q++ {
		if im.Bins[q].BinCount < 2 {
			t.Fatalf("fixture feature %d collapsed to %d bins", q, im.Bins[q].BinCount)
		}
	}
	if im.Bins[2].BinCount != 4 {
		t.Fatalf("fixture feature 2 should keep 4 bins, got %d", im.Bins[2].BinCount)
	}
	return im
}

func TestPairHistogram(t *testing.T) {
	im := &InteractionMatrix{
		Features: mat.NewDense(4, 2, []float64{
			0, 0,
			0, 1,
			1, 0,
			1, 1,
		}),
		Target:  mat.NewDense(4, 1, []float64{0, 1, 1, 0}),
		Weights: []float64{1, 2, 3, 4},
	}
	im.BinFeatures(2)

	hist, err := BinPairInteraction(im, mat.NewDense(4, 1, nil), MseLoss{}, 0, 1)
	if err != nil {
		t.Fatal(err)
	}
	if hist.TotalWeight != 10 {
		t.Fatalf("expected a total weight of 10, got %v", hist.TotalWeight)
	}

	check := func(b1, b2, channel int, expected float64) {
		t.Helper()
		element, err := hist.Buckets.At(b1, b2, channel)
		if err != nil {
			t.Fatal(err)
		}
		if got := element.(float64); got != expected {
			t.Fatalf("bucket (%d,%d) channel %d holds %v, expected %v", b1, b2, channel, got, expected)
		}
	}
	// grad = weight * (bias - target), hess = weight with the squared loss
	check(0, 0, bucketGrad, 0)
	check(0, 1, bucketGrad, -2)
	check(1, 0, bucketGrad, -3)
	check(1, 1, bucketGrad, 0)
	check(0, 1, bucketHess, 2)
	check(1, 1, bucketWeight, 4)
	check(1, 0, bucketCount, 1)

	cumWeight := hist.cumulative(bucketWeight)
	if cumWeight[0][0] != 1 || cumWeight[0][1] != 3 || cumWeight[1][0] != 4 || cumWeight[1][1] != 10 {
		t.Fatalf("wrong cumulative weights: %v", cumWeight)
	}
}

func TestCalcInteractionStrengthValidation(t *testing.T) {
	im := xorMatrix(t)
	calc := NewInteractionCalculator(im, nil)
	opts := InteractionOptions{MinSamplesLeaf: 1, RegLambda: 1e-4}

	if strength, err := calc.CalcInteractionStrength(nil, opts); err != nil || strength != 0 {
		t.Fatalf("an empty feature list should yield (0, nil), got (%v, %v)", strength, err)
	}
	if _, err := calc.CalcInteractionStrength([]int{-1, 1}, opts); err != ErrIllegalParam {
		t.Fatalf("a negative index should yield ErrIllegalParam, got %v", err)
	}
	if _, err := calc.CalcInteractionStrength([]int{0, 3}, opts); err != ErrIllegalParam {
		t.Fatalf("an out of range index should yield ErrIllegalParam, got %v", err)
	}
	if strength, err := calc.CalcInteractionStrength([]int{0, 1, 2}, opts); err != nil || strength != IllegalGain {
		t.Fatalf("a triple should rank last with (IllegalGain, nil), got (%v, %v)", strength, err)
	}

	constant := &InteractionMatrix{
		Features: mat.NewDense(4, 2, []float64{1, 0, 1, 1, 1, 2, 1, 3}),
		Target:   mat.NewDense(4, 1, []float64{0, 1, 0, 1}),
	}
	constant.BinFeatures(2)
	constCalc := NewInteractionCalculator(constant, nil)
	if strength, err := constCalc.CalcInteractionStrength([]int{0, 1}, opts); err != nil || strength != 0 {
		t.Fatalf("a single-bin feature should yield (0, nil), got (%v, %v)", strength, err)
	}
	// the single-bin check runs per index, before the pairs-only check
	if strength, err := constCalc.CalcInteractionStrength([]int{0, 1, 1}, opts); err != nil || strength != 0 {
		t.Fatalf("a triple holding a single-bin feature should yield (0, nil), got (%v, %v)", strength, err)
	}
}

func TestCalcInteractionStrengthNoLegalPartition(t *testing.T) {
	im := xorMatrix(t)
	calc := NewInteractionCalculator(im, nil)
	opts := InteractionOptions{MinSamplesLeaf: 1000, RegLambda: 1e-4}

	strength, err := calc.CalcInteractionStrength([]int{0, 1}, opts)
	if err != nil {
		t.Fatal(err)
	}
	if strength != IllegalGain {
		t.Fatalf("an unsatisfiable leaf minimum should yield IllegalGain, got %v", strength)
	}
}

func TestRankInteractionsFindsXor(t *testing.T) {
	im := xorMatrix(t)
	opts := InteractionOptions{MinSamplesLeaf: 5, RegLambda: 1e-4}

	ranks := RankInteractions(im, nil, AllFeaturePairs(3), opts, 1)
	if len(ranks) != 3 {
		t.Fatalf("expected 3 ranked pairs, got %d", len(ranks))
	}
	if ranks[0].Feature1 != 0 || ranks[0].Feature2 != 1 {
		t.Fatalf("the xor pair should rank first, got (%d, %d)", ranks[0].Feature1, ranks[0].Feature2)
	}
	if ranks[0].Strength < 0.1 {
		t.Fatalf("the xor pair strength %v is implausibly small", ranks[0].Strength)
	}
	for _, rank := range ranks[1:] {
		if rank.Strength > 1e-3 {
			t.Fatalf("the uninformative pair (%d, %d) has strength %v", rank.Feature1, rank.Feature2, rank.Strength)
		}
		if math.IsNaN(rank.Strength) {
			t.Fatalf("pair (%d, %d) has a NaN strength", rank.Feature1, rank.Feature2)
		}
	}
}

func TestRankInteractionsThreadAgnostic(t *testing.T) {
	im := xorMatrix(t)
	opts := InteractionOptions{MinSamplesLeaf: 5, RegLambda: 1e-4}

	serial := RankInteractions(im, nil, AllFeaturePairs(3), opts, 1)
	parallel := RankInteractions(im, nil, AllFeaturePairs(3), opts, 4)

	if len(serial) != len(parallel) {
		t.Fatalf("rank lengths differ: %d and %d", len(serial), len(parallel))
	}
	for i := range serial {
		if serial[i] != parallel[i] {
			t.Fatalf("rank %d differs between thread counts: %+v and %+v", i, serial[i], parallel[i])
		}
	}
}

func TestRankInteractionsLogBudget(t *testing.T) {
	h := 64
	w := 6
	rng := rand.New(rand.NewSource(41))
	features := mat.NewDense(h, w, nil)
	target := mat.NewDense(h, 1, nil)
	for p := 0; p < h; p++ {
		for q := 0; q < w; q++ {
			features.Set(p, q, rng.Float64())
		}
		target.Set(p, 0, rng.Float64())
	}
	im := &InteractionMatrix{Features: features, Target: target}
	im.BinFeatures(4)

	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)

	pairs := AllFeaturePairs(w)
	if len(pairs) <= 10 {
		t.Fatalf("the fixture must exceed the message budget, got %d pairs", len(pairs))
	}
	RankInteractions(im, nil, pairs, InteractionOptions{MinSamplesLeaf: 1, RegLambda: 1e-4}, 1)

	if got := strings.Count(buf.String(), "Entered CalcInteractionStrength"); got != 10 {
		t.Fatalf("a serial ranking should log exactly 10 entry messages, got %d", got)
	}
}

func TestAllFeaturePairs(t *testing.T) {
	pairs := AllFeaturePairs(4)
	if len(pairs) != 6 {
		t.Fatalf("expected 6 pairs of 4 features, got %d", len(pairs))
	}
	seen := map[[2]int]bool{}
	for _, pair := range pairs {
		if pair[0] >= pair[1] {
			t.Fatalf("pair %v is not in canonical order", pair)
		}
		if seen[pair] {
			t.Fatalf("pair %v enumerated twice", pair)
		}
		seen[pair] = true
	}
}
