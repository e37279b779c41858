package services

import (
	"errors"
	"fmt"
)

var (
	// ErrModelUnavailable means the classifier is not loaded.
	ErrModelUnavailable = errors.New("model not available")
	// ErrInvalidImage means the upload does not declare an image content type.
	ErrInvalidImage = errors.New("invalid image format")
	// ErrInvalidFeedback means a feedback field is outside its allowed values.
	ErrInvalidFeedback = errors.New("invalid feedback")
)

// PredictionError is a classifier failure. The attempt has already been
// recorded as a failed metric when MetricID is non-zero.
type PredictionError struct {
	Err      error
	MetricID int64
}

func (e *PredictionError) Error() string {
	return e.Err.Error()
}

func (e *PredictionError) Unwrap() error {
	return e.Err
}

func invalidFeedback(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidFeedback, fmt.Sprintf(format, args...))
}
