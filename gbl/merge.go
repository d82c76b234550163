package gbl

import "log"

//mergeCursor tracks the backward walk through one dimension during Add: for
//each operand, the position just past the cut currently in effect, plus the
//slice count of the merged axis determined by the sizing pass.
type mergeCursor struct {
	cutPos1   int
	cutPos2   int
	newSlices int
}

//Add replaces the receiver, in place, with the elementwise sum of itself and
//other over their common refinement: per dimension the merged cut point set is
//the deduplicated union of both operands' cut points, and every merged cell
//holds the sum of the two source cells containing it. Both tensors must have
//the same dimension count and score width.
//
//Three passes. The sizing pass counts each merged axis with a forward
//two-pointer scan over both cut arrays, without materializing the union, and
//grows the score buffer before any index into it is taken. The score pass then
//walks the merged cells from the highest index down, maintaining per dimension
//a cursor into each operand's cut array and a running row-major stride per
//operand; at each cell it sums the two source vectors and retreats the cursor
//of whichever operand's trailing cut is not strictly the larger (equal cuts
//retreat both, collapsing into a single merged boundary). A dimension whose
//cuts are exhausted multiplies its strides by the operand slice counts and
//resets, carrying into the next dimension like a mixed-radix odometer run in
//reverse. Writing backward keeps the pass safe in a single buffer: a merged
//index is never below either source index. The final pass overwrites each
//dimension's cut points with the descending merge of both originals.
//
//On a growth failure the receiver may be partially updated and must be
//discarded.
func (t *Tensor) Add(other *Tensor) error {
	if len(t.dimensions) != len(other.dimensions) {
		log.Panicf("gbl: adding tensors of %d and %d dimensions", len(t.dimensions), len(other.dimensions))
	}
	if t.scoreWidth != other.scoreWidth {
		log.Panicf("gbl: adding tensors of score width %d and %d", t.scoreWidth, other.scoreWidth)
	}

	if len(t.dimensions) == 0 {
		for i := 0; i < t.scoreWidth; i++ {
			t.scores[i] += other.scores[i]
		}
		return nil
	}

	var cursorStorage [MaxTensorDimensions]mergeCursor
	cursors := cursorStorage[:len(t.dimensions)]

	sourceCount1 := t.scoreWidth
	sourceCount2 := t.scoreWidth
	mergedCount := t.scoreWidth
	for i := range t.dimensions {
		dim1 := &t.dimensions[i]
		dim2 := &other.dimensions[i]
		sourceCount1 *= dim1.sliceCount
		sourceCount2 *= dim2.sliceCount

		// count the union of the two cut sets; equal values collapse
		mergedSlices := 1
		p1, p2 := 0, 0
		end1, end2 := dim1.sliceCount-1, dim2.sliceCount-1
		for {
			// check the other operand first: its cut array is usually the
			// shorter one when a freshly partitioned update is folded into a
			// tensor that has been added to many times
			if p2 == end2 {
				mergedSlices += end1 - p1
				break
			}
			if p1 == end1 {
				mergedSlices += end2 - p2
				break
			}
			mergedSlices++
			cut1 := dim1.cuts[p1]
			cut2 := dim2.cuts[p2]
			if cut1 <= cut2 {
				p1++
			}
			if cut2 <= cut1 {
				p2++
			}
		}
		cursors[i] = mergeCursor{cutPos1: end1, cutPos2: end2, newSlices: mergedSlices}

		var ok bool
		mergedCount, ok = mulSize(mergedCount, mergedSlices)
		if !ok {
			return ErrOutOfMemory
		}
	}

	if err := t.EnsureScoreCapacity(mergedCount); err != nil {
		return err
	}

	scores := t.scores
	iSource1 := sourceCount1
	iSource2 := sourceCount2
	iTop := mergedCount
	for {
		for k := 1; k <= t.scoreWidth; k++ {
			scores[iTop-k] = scores[iSource1-k] + other.scores[iSource2-k]
		}
		iTop -= t.scoreWidth
		if iTop == 0 {
			break
		}

		stride1 := t.scoreWidth
		stride2 := t.scoreWidth
		for i := 0; ; i++ {
			cursor := &cursors[i]
			dim1 := &t.dimensions[i]
			dim2 := &other.dimensions[i]
			if cursor.cutPos1 > 0 {
				if cursor.cutPos2 > 0 {
					cut1 := dim1.cuts[cursor.cutPos1-1]
					cut2 := dim2.cuts[cursor.cutPos2-1]
					if cut2 <= cut1 {
						cursor.cutPos1--
						iSource1 -= stride1
					}
					if cut1 <= cut2 {
						cursor.cutPos2--
						iSource2 -= stride2
					}
					break
				}
				cursor.cutPos1--
				iSource1 -= stride1
				break
			}
			if cursor.cutPos2 > 0 {
				cursor.cutPos2--
				iSource2 -= stride2
				break
			}
			// both operands spent this axis: wrap it and carry, leaving each
			// source address at the last cell of its row
			iSource1 -= stride1
			iSource2 -= stride2
			stride1 *= dim1.sliceCount
			stride2 *= dim2.sliceCount
			iSource1 += stride1
			iSource2 += stride2
			cursor.cutPos1 = dim1.sliceCount - 1
			cursor.cutPos2 = dim2.sliceCount - 1
		}
	}

	// the walk above needed the original cut points; only now rewrite them to
	// the merged sets, again descending within one buffer
	for i := range t.dimensions {
		cursor := &cursors[i]
		dim2 := &other.dimensions[i]
		oldSlices1 := t.dimensions[i].sliceCount
		if err := t.SetSliceCount(i, cursor.newSlices); err != nil {
			return err
		}
		cuts1 := t.dimensions[i].cuts
		cuts2 := dim2.cuts
		p1 := oldSlices1 - 1
		p2 := dim2.sliceCount - 1
		top := cursor.newSlices - 1
		for {
			if top == p1 {
				// the receiver's remaining prefix is already in place
				break
			}
			if top == p2 {
				copy(cuts1[:top], cuts2[:top])
				break
			}
			cut1 := cuts1[p1-1]
			cut2 := cuts2[p2-1]
			if cut2 <= cut1 {
				p1--
			}
			if cut1 <= cut2 {
				p2--
			}
			top--
			if cut1 <= cut2 {
				cuts1[top] = cut2
			} else {
				cuts1[top] = cut1
			}
		}
	}
	return nil
}
