package gbl

import "log"

//expandCursor tracks the backward walk through one dimension during Expand:
//the position just past the compressed cut currently in effect, the number of
//dense bins not yet emitted on this axis, and the dense bin count it resets to
//when the axis wraps.
type expandCursor struct {
	cutPos    int
	edge      int
	newSlices int
}

//Expand converts the compressed cut point representation into the dense form
//with one slice per bin of the corresponding term feature, replicating each
//compressed slice's score vector into every dense cell it covers. Expanding an
//already expanded tensor is a no-op.
//
//The scores are placed by a single backward pass over one buffer: cells are
//written from the highest index down while the compressed cells are read from
//their own, smaller index range. The dense index of any compressed index is
//always at least the compressed index, so a destination write can never land
//on a source cell that still has to be read. Which compressed cell a dense
//cell replicates is decided per dimension by a cursor into the old cut point
//array together with a countdown of dense bins remaining on the current
//compressed slice; exhausted dimensions wrap like a mixed-radix odometer. The
//cut point arrays are rewritten to the trivial dense form only after all
//scores are in place, since the walk needs the old cuts.
//
//A score buffer growth failure aborts before any score is touched and leaves
//the tensor in its pre-call state; a failure while rewriting the cut points
//leaves it inconsistent and the caller must discard it.
func (t *Tensor) Expand(term *Term) error {
	if t.expanded {
		return nil
	}
	if term.CountDimensions() != len(t.dimensions) {
		log.Panicf("gbl: expanding a %d-dimensional tensor with a %d-feature term",
			len(t.dimensions), term.CountDimensions())
	}

	if len(t.dimensions) != 0 {
		var cursorStorage [MaxTensorDimensions]expandCursor
		cursors := cursorStorage[:len(t.dimensions)]

		sourceCount := t.scoreWidth
		for i := range t.dimensions {
			dim := &t.dimensions[i]
			bins := term.Features[i].BinCount
			if bins < dim.sliceCount {
				log.Panicf("gbl: dimension %d holds %d slices but its feature has only %d bins",
					i, dim.sliceCount, bins)
			}
			sourceCount *= dim.sliceCount
			cursors[i] = expandCursor{cutPos: dim.sliceCount - 1, edge: bins, newSlices: bins}
		}

		denseBins, err := term.TensorBinCount()
		if err != nil {
			return err
		}
		denseCount, ok := mulSize(t.scoreWidth, denseBins)
		if !ok {
			return ErrOutOfMemory
		}
		if err := t.EnsureScoreCapacity(denseCount); err != nil {
			return err
		}

		scores := t.scores
		iSource := sourceCount
		iTop := denseCount
		for {
			copy(scores[iTop-t.scoreWidth:iTop], scores[iSource-t.scoreWidth:iSource])
			iTop -= t.scoreWidth
			if iTop == 0 {
				break
			}

			stride := t.scoreWidth
			for i := 0; ; i++ {
				cursor := &cursors[i]
				dim := &t.dimensions[i]
				if cursor.cutPos > 0 {
					cut := int(dim.cuts[cursor.cutPos-1])
					cursor.edge--
					if cursor.edge <= cut {
						cursor.cutPos--
						iSource -= stride
					}
					break
				}
				if cursor.edge > 1 {
					cursor.edge--
					break
				}
				// this axis is spent: wrap it and carry into the next one,
				// leaving the source address at the last cell of its row
				iSource -= stride
				stride *= dim.sliceCount
				iSource += stride
				cursor.cutPos = dim.sliceCount - 1
				cursor.edge = cursor.newSlices
			}
		}

		for i := range t.dimensions {
			slices := term.Features[i].BinCount
			if slices != t.dimensions[i].sliceCount {
				if err := t.SetSliceCount(i, slices); err != nil {
					return err
				}
				cuts := t.dimensions[i].cuts
				for edge := 1; edge < slices; edge++ {
					cuts[edge-1] = uint64(edge)
				}
			}
		}
	}
	t.expanded = true
	return nil
}
