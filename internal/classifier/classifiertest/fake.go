// Package classifiertest provides a scriptable Classifier for tests.
package classifiertest

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/aigoflow/catdog-classifier/internal/classifier"
)

// Fake returns a fixed prediction or error, optionally after a delay.
type Fake struct {
	Loaded     bool
	Prediction classifier.Prediction
	Err        error
	Delay      time.Duration

	calls atomic.Int64
}

// Cat returns a loaded Fake that answers "Cat" with the given confidence.
func Cat(confidence float64) *Fake {
	return &Fake{
		Loaded: true,
		Prediction: classifier.Prediction{
			Label:         "Cat",
			Confidence:    confidence,
			Probabilities: classifier.Probabilities{Cat: confidence, Dog: 1 - confidence},
		},
	}
}

func (f *Fake) IsLoaded() bool { return f.Loaded }

func (f *Fake) Predict(ctx context.Context, image []byte) (*classifier.Prediction, error) {
	f.calls.Add(1)
	if !f.Loaded {
		return nil, classifier.ErrNotLoaded
	}
	if f.Delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(f.Delay):
		}
	}
	if f.Err != nil {
		return nil, f.Err
	}
	p := f.Prediction
	return &p, nil
}

func (f *Fake) Info() classifier.ModelInfo {
	return classifier.ModelInfo{
		Path:       "testdata/fake.onnx",
		Parameters: 1234,
		InputSize:  "128x128",
		Classes:    classifier.DefaultClasses,
		Loaded:     f.Loaded,
	}
}

// Calls reports how many times Predict was invoked.
func (f *Fake) Calls() int64 {
	return f.calls.Load()
}
