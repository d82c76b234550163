package gbl

import (
	"errors"
	"log"
	"math"
)

const (
	//MaxTensorDimensions bounds the number of axes a score tensor can carry.
	MaxTensorDimensions = 64

	initialSliceCapacity = 2
	initialScoreCapacity = 8
)

//ErrOutOfMemory reports that a requested growth could not be performed because
//a size computation overflowed the addressable range. The Go runtime aborts on
//true allocation failure, so overflow is the only out-of-memory condition a
//caller can observe; both are one condition by contract. After receiving this
//error a tensor is not guaranteed consistent and must be discarded.
var ErrOutOfMemory = errors.New("gbl: out of memory")

//tensorDimension is the per-axis state of a Tensor: the cut points that
//partition the binned axis into slices and the logical slice count. The length
//of cuts is the allocated capacity; only the first sliceCount-1 entries are live.
type tensorDimension struct {
	cuts       []uint64
	sliceCount int
}

//Tensor is a piecewise-constant multi-dimensional score function, the leaf
//score structure of the booster. Each axis is partitioned into contiguous
//slices by strictly increasing cut points, and every cell of the resulting
//grid stores scoreWidth contiguous scores. Cells are laid out row-major with
//the first dimension innermost. A tensor is exclusively owned: no method may
//be called concurrently with another on the same instance, and any slice
//obtained from Scores or CutPoints is invalidated by a growth-capable call.
type Tensor struct {
	scoreWidth int
	dimensions []tensorDimension
	scores     []float64
	expanded   bool
}

//NewTensor allocates a tensor with a fixed number of dimensions and a fixed
//number of scores per cell. The single base cell is zeroed and every dimension
//starts with one slice and no cut points.
func NewTensor(dimensionCount, scoreWidth int) (*Tensor, error) {
	if dimensionCount < 0 || MaxTensorDimensions < dimensionCount {
		log.Panicf("gbl: dimension count %d is outside [0, %d]", dimensionCount, MaxTensorDimensions)
	}
	if scoreWidth < 1 {
		log.Panicf("gbl: score width %d must be at least 1", scoreWidth)
	}

	scoreCapacity, ok := mulSize(initialScoreCapacity, scoreWidth)
	if !ok {
		return nil, ErrOutOfMemory
	}

	t := &Tensor{
		scoreWidth: scoreWidth,
		dimensions: make([]tensorDimension, dimensionCount),
		scores:     make([]float64, scoreCapacity),
	}
	for i := range t.dimensions {
		t.dimensions[i] = tensorDimension{
			cuts:       make([]uint64, initialSliceCapacity-1),
			sliceCount: 1,
		}
	}
	return t, nil
}

//DimensionCount returns the number of axes, fixed at construction.
func (t *Tensor) DimensionCount() int {
	return len(t.dimensions)
}

//ScoreWidth returns the number of scores stored per cell.
func (t *Tensor) ScoreWidth() int {
	return t.scoreWidth
}

//SliceCount returns the logical number of slices on one axis.
func (t *Tensor) SliceCount(iDimension int) int {
	return t.dimensions[iDimension].sliceCount
}

//CutPoints returns the live cut points of one axis. The returned slice aliases
//the tensor's buffer and is invalidated by any growth-capable call.
func (t *Tensor) CutPoints(iDimension int) []uint64 {
	dim := &t.dimensions[iDimension]
	return dim.cuts[:dim.sliceCount-1]
}

//Scores returns the logical score region. The returned slice aliases the
//tensor's buffer and is invalidated by any growth-capable call.
func (t *Tensor) Scores() []float64 {
	return t.scores[:t.totalScoreCount()]
}

//Expanded reports whether every axis currently holds one slice per dense bin.
func (t *Tensor) Expanded() bool {
	return t.expanded
}

//totalScoreCount is the logical length of the score region. The product over
//slice counts indexes memory that is already allocated, so it cannot overflow.
func (t *Tensor) totalScoreCount() int {
	count := t.scoreWidth
	for i := range t.dimensions {
		count *= t.dimensions[i].sliceCount
	}
	return count
}

//Reset collapses every dimension back to a single slice and zeroes the base
//cell. Capacities are retained.
func (t *Tensor) Reset() {
	for i := range t.dimensions {
		t.dimensions[i].sliceCount = 1
	}
	for i := 0; i < t.scoreWidth; i++ {
		t.scores[i] = 0
	}
	t.expanded = false
}

//SetSliceCount sets the logical slice count of one axis, growing the cut point
//capacity by half again when exceeded so repeated growth amortizes. The cut
//point contents are preserved. Growing an expanded tensor is a caller bug:
//expanded is already the maximum size.
func (t *Tensor) SetSliceCount(iDimension, sliceCount int) error {
	dim := &t.dimensions[iDimension]
	if t.expanded && dim.sliceCount < sliceCount {
		log.Panicf("gbl: dimension %d of an expanded tensor cannot grow from %d to %d slices",
			iDimension, dim.sliceCount, sliceCount)
	}
	cuts := sliceCount - 1
	if len(dim.cuts) < cuts {
		newCapacity, ok := addSize(cuts, cuts>>1)
		if !ok {
			return ErrOutOfMemory
		}
		grown := make([]uint64, newCapacity)
		copy(grown, dim.cuts)
		dim.cuts = grown
	}
	dim.sliceCount = sliceCount
	return nil
}

//EnsureScoreCapacity grows the score buffer to hold at least scoreCount values,
//preserving existing content. The buffer never shrinks. Every algorithm that
//writes past the current logical length calls this first, before taking any
//reference into the buffer, because growth relocates it.
func (t *Tensor) EnsureScoreCapacity(scoreCount int) error {
	if len(t.scores) < scoreCount {
		newCapacity, ok := addSize(len(t.scores), len(t.scores)>>1)
		if !ok {
			return ErrOutOfMemory
		}
		if newCapacity < scoreCount {
			newCapacity = scoreCount
		}
		grown := make([]float64, newCapacity)
		copy(grown, t.scores)
		t.scores = grown
	}
	return nil
}

//Copy makes the receiver an exact logical duplicate of source: slice counts,
//cut points, scores and the expanded flag. Both tensors must have the same
//dimension count. On error the receiver state is unspecified and it must be
//discarded.
func (t *Tensor) Copy(source *Tensor) error {
	if len(t.dimensions) != len(source.dimensions) {
		log.Panicf("gbl: copy between tensors of %d and %d dimensions", len(t.dimensions), len(source.dimensions))
	}
	if t.scoreWidth != source.scoreWidth {
		log.Panicf("gbl: copy between tensors of score width %d and %d", t.scoreWidth, source.scoreWidth)
	}

	scoreCount := t.scoreWidth
	for i := range source.dimensions {
		srcDim := &source.dimensions[i]
		scoreCount *= srcDim.sliceCount
		if err := t.SetSliceCount(i, srcDim.sliceCount); err != nil {
			return err
		}
		copy(t.dimensions[i].cuts, srcDim.cuts[:srcDim.sliceCount-1])
	}
	if err := t.EnsureScoreCapacity(scoreCount); err != nil {
		return err
	}
	copy(t.scores, source.scores[:scoreCount])
	t.expanded = source.expanded
	return nil
}

//MultiplyAndCheckForIssues multiplies every score in the logical region by
//scalar, in place and unconditionally, and reports whether any product came
//out NaN or infinite. Anomalous values are detected, not repaired: the caller
//decides whether to halt boosting.
func (t *Tensor) MultiplyAndCheckForIssues(scalar float64) bool {
	bad := false
	region := t.scores[:t.totalScoreCount()]
	for i, score := range region {
		product := score * scalar
		if math.IsNaN(product) || math.IsInf(product, 0) {
			bad = true
		}
		region[i] = product
	}
	return bad
}

//AddExpandedWithBadValueProtection folds an externally computed dense update
//into an expanded tensor. A NaN contribution is treated as zero and a sum that
//leaves the finite range saturates at the most extreme finite value, so the
//tensor stays finite whatever the update contains. Saturation puts the scores
//out of sync with exact arithmetic, but only at the extremes, where boosting
//is about to be stopped anyway; a usable saturated model beats a poisoned one.
func (t *Tensor) AddExpandedWithBadValueProtection(update []float64) {
	if !t.expanded {
		log.Panic("gbl: protected accumulation requires an expanded tensor")
	}
	region := t.scores[:t.totalScoreCount()]
	if len(update) != len(region) {
		log.Panicf("gbl: update length %d does not match the tensor score length %d", len(update), len(region))
	}
	for i, from := range update {
		if math.IsNaN(from) {
			continue
		}
		score := region[i] + from
		if score <= -math.MaxFloat64 {
			score = -math.MaxFloat64
		}
		if math.MaxFloat64 <= score {
			score = math.MaxFloat64
		}
		region[i] = score
	}
}

//IsEqual reports structural equality: same dimension count, same slice counts
//and cut points per axis, and bit-exact scores over the logical region. It
//exists to verify the expand and merge algorithms in tests and is not part of
//the production contract.
func (t *Tensor) IsEqual(other *Tensor) bool {
	if len(t.dimensions) != len(other.dimensions) {
		return false
	}

	scoreCount := t.scoreWidth
	for i := range t.dimensions {
		dim1 := &t.dimensions[i]
		dim2 := &other.dimensions[i]
		if dim1.sliceCount != dim2.sliceCount {
			return false
		}
		scoreCount *= dim1.sliceCount
		for j := 0; j < dim1.sliceCount-1; j++ {
			if dim1.cuts[j] != dim2.cuts[j] {
				return false
			}
		}
	}

	for i := 0; i < scoreCount; i++ {
		if t.scores[i] != other.scores[i] {
			return false
		}
	}
	return true
}

//mulSize multiplies two non-negative sizes, reporting whether the product
//stayed inside the addressable range. Sizes used for allocation or indexing
//are never trusted without this check.
func mulSize(a, b int) (int, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	product := a * b
	if product/b != a || product < 0 {
		return 0, false
	}
	return product, true
}

//addSize adds two non-negative sizes with an overflow check.
func addSize(a, b int) (int, bool) {
	sum := a + b
	if sum < a {
		return 0, false
	}
	return sum, true
}
