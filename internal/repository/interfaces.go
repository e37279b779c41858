package repository

import (
	"context"
	"errors"

	"github.com/aigoflow/catdog-classifier/internal/models"
)

// ErrNotFound is returned by lookups for rows that do not exist.
var ErrNotFound = errors.New("not found")

// ErrMetricNotFound is returned when a feedback row links to a metric that
// no longer exists.
var ErrMetricNotFound = errors.New("linked metric not found")

// Repository aggregates all repository interfaces
type Repository interface {
	Metric() MetricRepositoryInterface
	Feedback() FeedbackRepositoryInterface
}

// MetricRepositoryInterface defines inference metric storage operations
type MetricRepositoryInterface interface {
	CreateMetric(ctx context.Context, inferenceTimeMs float64, success bool) (*models.InferenceMetric, error)
	GetMetric(ctx context.Context, id int64) (*models.InferenceMetric, error)
	MetricExists(ctx context.Context, id int64) (bool, error)
	DeleteMetric(ctx context.Context, id int64) error
	CountMetrics(ctx context.Context) (int, error)
	ListMetrics(ctx context.Context, limit int) ([]*models.InferenceMetric, error)
}

// FeedbackRepositoryInterface defines user feedback storage operations
type FeedbackRepositoryInterface interface {
	CreateFeedback(ctx context.Context, fb *models.FeedbackRecord) error
	GetFeedback(ctx context.Context, id int64) (*models.FeedbackRecord, error)
	FindByMetric(ctx context.Context, metricID int64) ([]*models.FeedbackRecord, error)
	DeleteFeedback(ctx context.Context, id int64) error
	CountFeedback(ctx context.Context) (int, error)
	Stats(ctx context.Context) (*models.FeedbackStats, error)
}
