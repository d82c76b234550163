package gbl

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

//SplitLoss provides the first and the second derivative of a pointwise loss
//with respect to the current prediction.
type SplitLoss interface {
	lossDer1(target, prediction float64) float64
	lossDer2(target, prediction float64) float64
}

//MseLoss is the mean squared error loss.
type MseLoss struct{}

func (MseLoss) lossDer1(target, prediction float64) float64 {
	return prediction - target
}

func (MseLoss) lossDer2(target, prediction float64) float64 {
	return 1.0
}

//LogLoss is the binary cross entropy loss over raw logits.
type LogLoss struct{}

func (LogLoss) lossDer1(target, prediction float64) float64 {
	return sigmoid(prediction) - target
}

func (LogLoss) lossDer2(target, prediction float64) float64 {
	s := sigmoid(prediction)
	return s * (1.0 - s)
}

func sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}

//Rmse calculates the root mean squared error between a target column and a
//prediction column.
func Rmse(target, prediction *mat.Dense) float64 {
	h := Height(target)
	sumSq := 0.0
	for p := 0; p < h; p++ {
		diff := target.At(p, 0) - prediction.At(p, 0)
		sumSq += diff * diff
	}
	return math.Sqrt(sumSq / float64(h))
}

//Logloss calculates the binary cross entropy between a target column and a
//prediction column. When fromLogits is true the predictions are raw logits and
//are passed through the sigmoid first.
func Logloss(target, prediction *mat.Dense, fromLogits bool) float64 {
	h := Height(target)
	sum := 0.0
	for p := 0; p < h; p++ {
		prob := prediction.At(p, 0)
		if fromLogits {
			prob = sigmoid(prob)
		}
		y := target.At(p, 0)
		sum -= y*math.Log(prob) + (1.0-y)*math.Log(1.0-prob)
	}
	return sum / float64(h)
}
