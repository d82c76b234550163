package gbl

import (
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestFeatureBin(t *testing.T) {
	feature := &Feature{BinCount: 3, Thresholds: []float64{1.5, 3.5}}
	cases := []struct {
		val float64
		bin int
	}{
		{0, 0},
		{1.4, 0},
		{1.5, 1},
		{3.4, 1},
		{3.5, 2},
		{100, 2},
	}
	for _, c := range cases {
		if got := feature.Bin(c.val); got != c.bin {
			t.Fatalf("value %v lands in bin %d, expected %d", c.val, got, c.bin)
		}
	}
}

func TestBinFeaturesQuantiles(t *testing.T) {
	im := InteractionMatrix{
		Features: mat.NewDense(8, 1, []float64{0, 1, 2, 3, 4, 5, 6, 7}),
		Target:   mat.NewDense(8, 1, nil),
	}
	im.BinFeatures(4)

	feature := im.Bins[0]
	if feature.BinCount != 4 {
		t.Fatalf("expected 4 bins, got %d", feature.BinCount)
	}
	expected := []float64{1.5, 3.5, 5.5}
	if len(feature.Thresholds) != len(expected) {
		t.Fatalf("expected thresholds %v, got %v", expected, feature.Thresholds)
	}
	for i, threshold := range feature.Thresholds {
		if threshold != expected[i] {
			t.Fatalf("expected thresholds %v, got %v", expected, feature.Thresholds)
		}
	}

	expectedBinned := []int{0, 0, 1, 1, 2, 2, 3, 3}
	for p, bin := range im.Binned[0] {
		if bin != expectedBinned[p] {
			t.Fatalf("sample %d lands in bin %d, expected %d", p, bin, expectedBinned[p])
		}
	}
}

func TestBinFeaturesConstantColumn(t *testing.T) {
	im := InteractionMatrix{
		Features: mat.NewDense(5, 2, []float64{
			3, 0,
			3, 1,
			3, 2,
			3, 3,
			3, 4,
		}),
		Target: mat.NewDense(5, 1, nil),
	}
	im.BinFeatures(8)

	if im.Bins[0].BinCount != 1 || len(im.Bins[0].Thresholds) != 0 {
		t.Fatalf("a constant column must produce one bin, got %d with thresholds %v",
			im.Bins[0].BinCount, im.Bins[0].Thresholds)
	}
	for p, bin := range im.Binned[0] {
		if bin != 0 {
			t.Fatalf("sample %d of a constant column lands in bin %d", p, bin)
		}
	}
	if im.Bins[1].BinCount < 2 {
		t.Fatalf("the varying column collapsed to %d bins", im.Bins[1].BinCount)
	}
}

func TestTotalWeight(t *testing.T) {
	im := InteractionMatrix{
		Features: mat.NewDense(3, 1, []float64{1, 2, 3}),
		Target:   mat.NewDense(3, 1, nil),
	}
	if got := im.TotalWeight(); got != 3 {
		t.Fatalf("unit weights should total the sample count, got %v", got)
	}

	im.Weights = []float64{0.5, 2, 4}
	if got := im.TotalWeight(); got != 6.5 {
		t.Fatalf("expected a total weight of 6.5, got %v", got)
	}
}
