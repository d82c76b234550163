package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"runtime/pprof"

	"github.com/goccy/go-graphviz"
	"github.com/tarstars/glassbox_boosting/gbl"
	"gonum.org/v1/gonum/mat"
)

func writeJSON(filename string, out interface{}) {
	dest, err := os.Create(filename)
	if err != nil {
		log.Print("can't open file ", filename, " to write")
	}
	gbl.HandleError(err)
	defer func() { gbl.HandleError(dest.Close()) }()

	bytesResult, err := json.MarshalIndent(out, "", "  ")
	gbl.HandleError(err)

	_, err = dest.Write(bytesResult)
	gbl.HandleError(err)
}

func renderInteractionGraph(ranks []gbl.InteractionRank, filename, figureType string) {
	graphvizType := map[string]graphviz.Format{
		"png": graphviz.PNG,
		"svg": graphviz.SVG,
		"jpg": graphviz.JPG,
	}[figureType]

	graphViz := graphviz.New()
	graph, err := graphViz.Graph()
	gbl.HandleError(err)

	nodes := make(map[int]bool)
	for _, rank := range ranks {
		nodes[rank.Feature1] = true
		nodes[rank.Feature2] = true
	}
	for q := range nodes {
		node, err := graph.CreateNode(fmt.Sprintf("f_%d", q))
		gbl.HandleError(err)
		node.Set("shape", "box")
	}
	for _, rank := range ranks {
		node1, err := graph.CreateNode(fmt.Sprintf("f_%d", rank.Feature1))
		gbl.HandleError(err)
		node2, err := graph.CreateNode(fmt.Sprintf("f_%d", rank.Feature2))
		gbl.HandleError(err)
		edge, err := graph.CreateEdge("", node1, node2)
		gbl.HandleError(err)
		edge.Set("label", fmt.Sprintf("%.4g", rank.Strength))
	}

	gbl.HandleError(graphViz.RenderFilename(graph, graphvizType, filename))
}

func main() {
	flnmFeatures := flag.String("features", "", "path to the features npy file")
	flnmTarget := flag.String("target", "", "path to the target npy file")
	maxBins := flag.Int("bins", 32, "maximal number of bins per feature")
	threadsNum := flag.Int("threads", 4, "number of worker threads for the pair ranking")
	topPairs := flag.Int("top", 20, "number of strongest pairs to render")
	flnmOut := flag.String("out", "interaction_ranks.json", "output file for the ranked pairs")
	flnmGraph := flag.String("graph", "", "render the interaction graph into this file")
	figureType := flag.String("figure-type", "svg", "interaction graph format: png, svg or jpg")
	nStages := flag.Int("stages", 0, "cyclic boosting stages to run before ranking")
	learningRate := flag.Float64("learning-rate", 0.3, "boosting learning rate")
	regLambda := flag.Float64("reg-lambda", 1e-4, "L2 regularization of the leaf updates")
	innerBags := flag.Int("inner-bags", 2, "sample bags merged per boosting update")
	minSamplesLeaf := flag.Int("min-samples-leaf", 5, "minimal samples per partition quadrant")
	useLogloss := flag.Bool("logloss", false, "use logloss instead of mse")
	flnmCPUProfile := flag.String("cpuprofile", "", "write a cpu profile to this file")
	flag.Parse()

	if *flnmFeatures == "" || *flnmTarget == "" {
		log.Fatal("both -features and -target are required")
	}

	if *flnmCPUProfile != "" {
		f, err := os.Create(*flnmCPUProfile)
		gbl.HandleError(err)
		gbl.HandleError(pprof.StartCPUProfile(f))
		defer pprof.StopCPUProfile()
	}

	var lossKind gbl.SplitLoss = gbl.MseLoss{}
	if *useLogloss {
		lossKind = gbl.LogLoss{}
	}

	matrix := gbl.ReadInteractionMatrix(*flnmFeatures, *flnmTarget)
	matrix.BinFeatures(*maxBins)
	_, w := matrix.Features.Dims()
	log.Print("loaded ", matrix.CountSamples(), " samples with ", w, " features")

	var bias *mat.Dense
	if *nStages > 0 {
		booster, err := gbl.NewCyclicBooster(gbl.BoosterParams{
			Matrix:       &matrix,
			NStages:      *nStages,
			RegLambda:    *regLambda,
			LearningRate: *learningRate,
			LossKind:     lossKind,
			InnerBags:    *innerBags,
		})
		gbl.HandleError(err)
		gbl.HandleError(booster.Boost())
		bias = booster.Bias
	}

	ranks := gbl.RankInteractions(&matrix, bias, gbl.AllFeaturePairs(w), gbl.InteractionOptions{
		MinSamplesLeaf: *minSamplesLeaf,
		RegLambda:      *regLambda,
		Loss:           lossKind,
	}, *threadsNum)

	writeJSON(*flnmOut, ranks)
	log.Print("ranked ", len(ranks), " pairs into ", *flnmOut)

	if *flnmGraph != "" {
		top := *topPairs
		if top > len(ranks) {
			top = len(ranks)
		}
		renderInteractionGraph(ranks[:top], *flnmGraph, *figureType)
	}
}
