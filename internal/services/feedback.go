package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/aigoflow/catdog-classifier/internal/blobstore"
	"github.com/aigoflow/catdog-classifier/internal/models"
	"github.com/aigoflow/catdog-classifier/internal/repository"
)

// FeedbackAcceptedDetail is the confirmation message returned to clients.
const FeedbackAcceptedDetail = "Feedback reçu et image sauvegardée"

type FeedbackInput struct {
	Data         []byte
	ContentType  string
	Feedback     int
	Prediction   string
	Proba        int
	TimeMetricID int64
}

type FeedbackResult struct {
	Detail     string `json:"detail"`
	FeedbackID int64  `json:"feedback_id"`
	Feedback   int    `json:"feedback"`
	Prediction string `json:"prediction"`
	ImagePath  string `json:"image_path"`
}

type FeedbackService struct {
	repo    repository.Repository
	blobs   blobstore.Store
	events  EventPublisher
	metrics *Metrics
	now     func() time.Time
}

func NewFeedbackService(repo repository.Repository, blobs blobstore.Store, events EventPublisher, metrics *Metrics) *FeedbackService {
	if events == nil {
		events = NopPublisher{}
	}
	return &FeedbackService{
		repo:    repo,
		blobs:   blobs,
		events:  events,
		metrics: metrics,
		now:     time.Now,
	}
}

// Submit stores the reviewed image, then the feedback row pointing at it.
// If the row cannot be written the image is removed again, so a failed
// request leaves neither.
func (s *FeedbackService) Submit(ctx context.Context, in FeedbackInput) (*FeedbackResult, error) {
	if !models.ValidFeedback(in.Feedback) {
		return nil, invalidFeedback("feedback must be 0 or 1, got %d", in.Feedback)
	}
	if !models.ValidLabel(in.Prediction) {
		return nil, invalidFeedback("prediction must be %q or %q, got %q", models.LabelCat, models.LabelDog, in.Prediction)
	}
	if len(in.Data) == 0 {
		return nil, invalidFeedback("image is empty")
	}

	now := s.now()
	key := FeedbackKey(now, in.Feedback, in.Prediction, in.Proba)

	location, err := s.blobs.Put(ctx, key, in.Data, in.ContentType)
	if err != nil {
		return nil, fmt.Errorf("failed to save feedback image: %w", err)
	}

	record := &models.FeedbackRecord{
		ImagePath:  location,
		Timestamp:  now.UTC(),
		Feedback:   in.Feedback,
		Prediction: in.Prediction,
	}

	link, err := s.resolveMetric(ctx, in.TimeMetricID)
	if err == nil {
		record.TimeMetricID = link
		err = s.repo.Feedback().CreateFeedback(ctx, record)
		if link != nil && errors.Is(err, repository.ErrMetricNotFound) {
			// The metric was deleted after resolveMetric saw it.
			slog.Warn("Linked metric vanished, storing feedback without link", "time_metric_id", *link)
			link, record.TimeMetricID = nil, nil
			err = s.repo.Feedback().CreateFeedback(ctx, record)
		}
	}
	if err != nil {
		if delErr := s.blobs.Delete(context.WithoutCancel(ctx), location); delErr != nil {
			slog.Error("Failed to remove orphan feedback image", "location", location, "error", delErr)
		}
		return nil, fmt.Errorf("failed to record feedback: %w", err)
	}

	s.metrics.ObserveFeedback(in.Feedback, in.Prediction)
	slog.Info("Feedback recorded",
		"feedback_id", record.ID,
		"feedback", in.Feedback,
		"prediction", in.Prediction,
		"proba", in.Proba,
		"time_metric_id", in.TimeMetricID,
		"linked", link != nil,
		"image_path", location)

	publish(ctx, s.events, EventFeedbackRecorded, record)

	return &FeedbackResult{
		Detail:     FeedbackAcceptedDetail,
		FeedbackID: record.ID,
		Feedback:   in.Feedback,
		Prediction: in.Prediction,
		ImagePath:  location,
	}, nil
}

// resolveMetric returns the link to store for a client-supplied metric id.
// Unknown ids are accepted but not linked.
func (s *FeedbackService) resolveMetric(ctx context.Context, id int64) (*int64, error) {
	if id <= 0 {
		return nil, nil
	}
	exists, err := s.repo.Metric().MetricExists(ctx, id)
	if err != nil {
		return nil, err
	}
	if !exists {
		slog.Warn("Feedback references unknown metric, storing without link", "time_metric_id", id)
		return nil, nil
	}
	return &id, nil
}

func (s *FeedbackService) Stats(ctx context.Context) (*models.FeedbackStats, error) {
	return s.repo.Feedback().Stats(ctx)
}

// FeedbackKey builds the blob key {positif|negatif}/{chat|chien}/<name>.jpg.
// The ULID suffix keeps names unique within the same second.
func FeedbackKey(at time.Time, feedback int, prediction string, proba int) string {
	name := fmt.Sprintf("%s_%d_%s_%d_%s.jpg",
		at.Format("20060102150405"), feedback, prediction, proba, ulid.Make().String())
	return path.Join(models.PolarityDir(feedback), models.LabelDir(prediction), name)
}
