package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aigoflow/catdog-classifier/internal/classifier"
	"github.com/aigoflow/catdog-classifier/internal/repository"
)

type PredictInput struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ProbabilityStrings are per-class percentages, e.g. "93.41%".
type ProbabilityStrings struct {
	Cat string `json:"cat"`
	Dog string `json:"dog"`
}

type PredictResult struct {
	Filename      string             `json:"filename"`
	Prediction    string             `json:"prediction"`
	Confidence    string             `json:"confidence"`
	Probabilities ProbabilityStrings `json:"probabilities"`
	TimeMetricID  int64              `json:"time_metric_id"`
}

// MetricRecordedEvent is published after each recorded attempt.
type MetricRecordedEvent struct {
	MetricID        int64   `json:"metric_id"`
	Filename        string  `json:"filename"`
	InferenceTimeMs float64 `json:"inference_time_ms"`
	Success         bool    `json:"success"`
	Prediction      string  `json:"prediction,omitempty"`
	Error           string  `json:"error,omitempty"`
}

type PredictionService struct {
	classifier classifier.Classifier
	repo       repository.Repository
	events     EventPublisher
	metrics    *Metrics
	timeout    time.Duration
}

func NewPredictionService(c classifier.Classifier, repo repository.Repository, events EventPublisher, metrics *Metrics, timeout time.Duration) *PredictionService {
	if events == nil {
		events = NopPublisher{}
	}
	return &PredictionService{
		classifier: c,
		repo:       repo,
		events:     events,
		metrics:    metrics,
		timeout:    timeout,
	}
}

func (s *PredictionService) ModelLoaded() bool {
	return s.classifier.IsLoaded()
}

// Predict classifies one upload and records exactly one metric row for every
// attempt that reaches the classifier, successful or not. Rejections before
// that point (model not loaded, non-image content type) record nothing.
func (s *PredictionService) Predict(ctx context.Context, in PredictInput) (*PredictResult, error) {
	if !s.classifier.IsLoaded() {
		return nil, ErrModelUnavailable
	}
	if !IsImageContentType(in.ContentType) {
		return nil, ErrInvalidImage
	}

	callCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	prediction, err := s.classifier.Predict(callCtx, in.Data)
	elapsed := time.Since(start)
	elapsedMs := float64(elapsed.Nanoseconds()) / 1e6

	s.metrics.ObserveInference(elapsed, err == nil)

	if err != nil {
		slog.Error("Inference failed",
			"filename", in.Filename,
			"inference_time_ms", elapsedMs,
			"success", false,
			"error", err)

		predErr := &PredictionError{Err: err}
		// The caller's context may be the one that expired; the failure row
		// is still written.
		metric, recErr := s.repo.Metric().CreateMetric(context.WithoutCancel(ctx), elapsedMs, false)
		if recErr != nil {
			slog.Error("Failed to record failed inference", "filename", in.Filename, "error", recErr)
			return nil, predErr
		}
		predErr.MetricID = metric.ID

		publish(ctx, s.events, EventMetricRecorded, MetricRecordedEvent{
			MetricID:        metric.ID,
			Filename:        in.Filename,
			InferenceTimeMs: elapsedMs,
			Success:         false,
			Error:           err.Error(),
		})
		return nil, predErr
	}

	metric, err := s.repo.Metric().CreateMetric(ctx, elapsedMs, true)
	if err != nil {
		return nil, fmt.Errorf("failed to record inference metric: %w", err)
	}

	slog.Info("Inference completed",
		"filename", in.Filename,
		"prediction", prediction.Label,
		"confidence", prediction.Confidence,
		"inference_time_ms", elapsedMs,
		"metric_id", metric.ID)

	publish(ctx, s.events, EventMetricRecorded, MetricRecordedEvent{
		MetricID:        metric.ID,
		Filename:        in.Filename,
		InferenceTimeMs: elapsedMs,
		Success:         true,
		Prediction:      prediction.Label,
	})

	return &PredictResult{
		Filename:   in.Filename,
		Prediction: prediction.Label,
		Confidence: FormatPercent(prediction.Confidence),
		Probabilities: ProbabilityStrings{
			Cat: FormatPercent(prediction.Probabilities.Cat),
			Dog: FormatPercent(prediction.Probabilities.Dog),
		},
		TimeMetricID: metric.ID,
	}, nil
}

// IsImageContentType reports whether a declared MIME type is image/*.
func IsImageContentType(contentType string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(contentType)), "image/")
}

// FormatPercent renders a [0,1] score as a percentage with two decimals.
func FormatPercent(v float64) string {
	return fmt.Sprintf("%.2f%%", v*100)
}
