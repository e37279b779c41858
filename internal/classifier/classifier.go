// Package classifier wraps the pre-trained cat/dog model. The model is an
// opaque artifact: this package only feeds it pixels and reads its scores.
package classifier

import (
	"context"
	"errors"
	"sync/atomic"
)

// ErrNotLoaded is returned by Predict when no model is available.
var ErrNotLoaded = errors.New("model not loaded")

// Probabilities holds per-class scores in [0,1].
type Probabilities struct {
	Cat float64 `json:"cat"`
	Dog float64 `json:"dog"`
}

// Prediction is the outcome of one classification.
type Prediction struct {
	Label         string        `json:"prediction"`
	Confidence    float64       `json:"confidence"`
	Probabilities Probabilities `json:"probabilities"`
}

// ModelInfo describes the loaded model for info endpoints.
type ModelInfo struct {
	Path       string   `json:"model_path"`
	Parameters int64    `json:"parameters"`
	InputSize  string   `json:"input_size"`
	Classes    []string `json:"classes"`
	Loaded     bool     `json:"model_loaded"`
}

// Classifier is the contract request handlers depend on.
type Classifier interface {
	IsLoaded() bool
	Predict(ctx context.Context, image []byte) (*Prediction, error)
	Info() ModelInfo
}

// Unloaded stands in for a model that failed to load or was never loaded.
type Unloaded struct {
	Path string
}

func (u Unloaded) IsLoaded() bool { return false }

func (u Unloaded) Predict(ctx context.Context, image []byte) (*Prediction, error) {
	return nil, ErrNotLoaded
}

func (u Unloaded) Info() ModelInfo {
	return ModelInfo{Path: u.Path, Classes: DefaultClasses}
}

type slot struct {
	c Classifier
}

// Holder shares one Classifier across all requests and lets it be replaced
// at runtime without locking readers.
type Holder struct {
	current atomic.Pointer[slot]
}

func NewHolder(c Classifier) *Holder {
	h := &Holder{}
	h.Swap(c)
	return h
}

// Load returns the current classifier. It never returns nil.
func (h *Holder) Load() Classifier {
	if s := h.current.Load(); s != nil && s.c != nil {
		return s.c
	}
	return Unloaded{}
}

// Swap installs c and returns the previous classifier, if any.
func (h *Holder) Swap(c Classifier) Classifier {
	old := h.current.Swap(&slot{c: c})
	if old == nil {
		return nil
	}
	return old.c
}

func (h *Holder) IsLoaded() bool {
	return h.Load().IsLoaded()
}

func (h *Holder) Predict(ctx context.Context, image []byte) (*Prediction, error) {
	return h.Load().Predict(ctx, image)
}

func (h *Holder) Info() ModelInfo {
	return h.Load().Info()
}
