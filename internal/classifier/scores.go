package classifier

import (
	"fmt"
	"math"
	"strings"
)

// ToPrediction turns raw model outputs into a Prediction. A single output
// is a sigmoid score read as P(dog) whatever the class order; two or more
// outputs are either probabilities or logits (softmax is applied when they
// do not sum to 1).
func ToPrediction(outputs []float32, classes []string) (*Prediction, error) {
	if len(classes) < 2 {
		classes = DefaultClasses
	}
	catIdx, dogIdx := classIndex(classes, "cat", 0), classIndex(classes, "dog", 1)

	var cat, dog float64
	switch {
	case len(outputs) == 0:
		return nil, fmt.Errorf("model returned no outputs")
	case len(outputs) == 1:
		dog = clamp01(float64(outputs[0]))
		cat = 1 - dog
	default:
		if catIdx >= len(outputs) || dogIdx >= len(outputs) {
			return nil, fmt.Errorf("model returned %d outputs for %d classes", len(outputs), len(classes))
		}
		probs := asProbabilities(outputs)
		cat, dog = probs[catIdx], probs[dogIdx]
	}

	p := &Prediction{Probabilities: Probabilities{Cat: cat, Dog: dog}}
	if dog > cat {
		p.Label, p.Confidence = classes[dogIdx], dog
	} else {
		p.Label, p.Confidence = classes[catIdx], cat
	}
	return p, nil
}

func classIndex(classes []string, name string, fallback int) int {
	for i, c := range classes {
		if strings.EqualFold(c, name) {
			return i
		}
	}
	return fallback
}

func asProbabilities(outputs []float32) []float64 {
	probs := make([]float64, len(outputs))
	sum := 0.0
	inRange := true
	for i, v := range outputs {
		probs[i] = float64(v)
		sum += probs[i]
		if v < 0 || v > 1 {
			inRange = false
		}
	}
	if inRange && math.Abs(sum-1) < 1e-3 {
		return probs
	}

	maxV := probs[0]
	for _, v := range probs {
		maxV = math.Max(maxV, v)
	}
	sum = 0
	for i, v := range probs {
		probs[i] = math.Exp(v - maxV)
		sum += probs[i]
	}
	for i := range probs {
		probs[i] /= sum
	}
	return probs
}

func clamp01(v float64) float64 {
	return math.Min(1, math.Max(0, v))
}
