package gbl

import (
	"log"
	"os"

	"github.com/sbinet/npyio"
	"gonum.org/v1/gonum/mat"
)

//InteractionMatrix holds the raw feature matrix and the target column of a
//dataset, together with the discretized form the histogram and boosting
//passes consume once BinFeatures has run: per-feature bin metadata and per
//sample bin indexes. Weights is optional; nil means every sample weighs one.
type InteractionMatrix struct {
	Features    *mat.Dense
	Target      *mat.Dense
	Weights     []float64
	Bins        []*Feature
	Binned      [][]int
	Description *string
}

//SetDescription sets a description used in progress messages.
func (im *InteractionMatrix) SetDescription(description string) {
	im.Description = &description
}

//ReadInteractionMatrix reads the two components of a dataset and unites them
//into one InteractionMatrix object.
func ReadInteractionMatrix(fileNameFeatures, fileNameTarget string) (im InteractionMatrix) {
	log.Print("\ttry to load features <", fileNameFeatures, ">")
	im.Features = ReadNpy(fileNameFeatures)
	log.Print("\ttry to load target <", fileNameTarget, ">")
	im.Target = ReadNpy(fileNameTarget)
	return
}

//ReadNpy reads the content of npy file
func ReadNpy(fileName string) (denseMat *mat.Dense) {
	f, err := os.Open(fileName)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { HandleError(f.Close()) }()

	r, err := npyio.NewReader(f)
	if err != nil {
		log.Fatal(err)
	}

	denseMat = &mat.Dense{}
	HandleError(r.Read(denseMat))
	return
}

//validatedDimensions checks the consistency of dimensions in the dataset and
//returns the height (the number of samples) and the width (the number of
//features).
func (im InteractionMatrix) validatedDimensions() (h, w int) {
	h, w = im.Features.Dims()
	targetH, targetW := im.Target.Dims()
	if targetH != h {
		log.Panicf("the target height %d is not equal to the feature height %d", targetH, h)
	}
	if targetW != 1 {
		log.Panicf("the width of target should be 1 not %d", targetW)
	}
	if im.Weights != nil && len(im.Weights) != h {
		log.Panicf("the weights length %d is not equal to the feature height %d", len(im.Weights), h)
	}
	return h, w
}

//CountSamples returns the number of samples in the dataset.
func (im InteractionMatrix) CountSamples() int {
	return Height(im.Features)
}

//weightAt returns the weight of one sample, one when no weights were supplied.
func (im InteractionMatrix) weightAt(p int) float64 {
	if im.Weights == nil {
		return 1.0
	}
	return im.Weights[p]
}

//TotalWeight returns the sum of all sample weights.
func (im InteractionMatrix) TotalWeight() float64 {
	h := im.CountSamples()
	total := 0.0
	for p := 0; p < h; p++ {
		total += im.weightAt(p)
	}
	return total
}

//BinFeatures discretizes every feature column into at most maxBins bins with
//thresholds placed at equal-count positions between distinct values, and
//records the resulting bin index of every sample. A constant column produces a
//single bin and no thresholds.
func (im *InteractionMatrix) BinFeatures(maxBins int) {
	if maxBins < 2 {
		log.Panicf("maxBins should be at least 2 not %d", maxBins)
	}
	h, w := im.validatedDimensions()

	im.Bins = make([]*Feature, w)
	im.Binned = make([][]int, w)
	for q := 0; q < w; q++ {
		order := columnArgsort(im.Features.ColView(q))

		thresholds := make([]float64, 0, maxBins-1)
		for k := 1; k < maxBins; k++ {
			idx := k * h / maxBins
			if idx == 0 {
				continue
			}
			lo := im.Features.At(order[idx-1], q)
			hi := im.Features.At(order[idx], q)
			if lo == hi {
				continue
			}
			cand := (lo + hi) / 2.0
			if len(thresholds) == 0 || thresholds[len(thresholds)-1] < cand {
				thresholds = append(thresholds, cand)
			}
		}

		im.Bins[q] = &Feature{BinCount: len(thresholds) + 1, Thresholds: thresholds}
		binned := make([]int, h)
		for p := 0; p < h; p++ {
			binned[p] = im.Bins[q].Bin(im.Features.At(p, q))
		}
		im.Binned[q] = binned
	}
}
