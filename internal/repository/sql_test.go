package repository

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aigoflow/catdog-classifier/internal/models"
	"github.com/aigoflow/catdog-classifier/internal/store"
)

func newTestRepo(t *testing.T) Repository {
	t.Helper()
	db, err := store.Open("sqlite://" + filepath.Join(t.TempDir(), "repo.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewSQLRepository(db)
}

func TestCreateAndGetMetric(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	m, err := repo.Metric().CreateMetric(ctx, 12.5, true)
	require.NoError(t, err)
	assert.Positive(t, m.ID)

	got, err := repo.Metric().GetMetric(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, m.ID, got.ID)
	assert.True(t, got.Success)
	assert.InDelta(t, 12.5, got.InferenceTimeMs, 1e-9)
	assert.False(t, got.Timestamp.IsZero())
}

func TestMetricIDsIncrease(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	first, err := repo.Metric().CreateMetric(ctx, 1, true)
	require.NoError(t, err)
	second, err := repo.Metric().CreateMetric(ctx, 2, false)
	require.NoError(t, err)

	assert.Greater(t, second.ID, first.ID)

	list, err := repo.Metric().ListMetrics(ctx, 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.False(t, list[0].Success)
}

func TestNegativeDurationClampedToZero(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	m, err := repo.Metric().CreateMetric(ctx, -3, true)
	require.NoError(t, err)

	got, err := repo.Metric().GetMetric(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, 0.0, got.InferenceTimeMs)
}

func TestDeleteMetricIsHardDelete(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	m, err := repo.Metric().CreateMetric(ctx, 5, true)
	require.NoError(t, err)

	require.NoError(t, repo.Metric().DeleteMetric(ctx, m.ID))

	_, err = repo.Metric().GetMetric(ctx, m.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	exists, err := repo.Metric().MetricExists(ctx, m.ID)
	require.NoError(t, err)
	assert.False(t, exists)

	assert.ErrorIs(t, repo.Metric().DeleteMetric(ctx, m.ID), ErrNotFound)
}

func TestFeedbackLinkedToMetric(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	m, err := repo.Metric().CreateMetric(ctx, 7, true)
	require.NoError(t, err)

	fb := &models.FeedbackRecord{
		ImagePath:    "data/images/positif/chat/x.jpg",
		Feedback:     models.FeedbackPositive,
		Prediction:   models.LabelCat,
		TimeMetricID: &m.ID,
	}
	require.NoError(t, repo.Feedback().CreateFeedback(ctx, fb))
	assert.Positive(t, fb.ID)

	found, err := repo.Feedback().FindByMetric(ctx, m.ID)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, 1, found[0].Feedback)
	assert.Equal(t, "c", found[0].Prediction)
	require.NotNil(t, found[0].TimeMetricID)
	assert.Equal(t, m.ID, *found[0].TimeMetricID)
}

func TestDeletingMetricNullsFeedbackLink(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	m, err := repo.Metric().CreateMetric(ctx, 7, true)
	require.NoError(t, err)
	fb := &models.FeedbackRecord{ImagePath: "p.jpg", Feedback: 0, Prediction: "d", TimeMetricID: &m.ID}
	require.NoError(t, repo.Feedback().CreateFeedback(ctx, fb))

	require.NoError(t, repo.Metric().DeleteMetric(ctx, m.ID))

	got, err := repo.Feedback().GetFeedback(ctx, fb.ID)
	require.NoError(t, err)
	assert.Nil(t, got.TimeMetricID)
}

func TestFeedbackWithoutMetric(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	fb := &models.FeedbackRecord{ImagePath: "p.jpg", Feedback: 1, Prediction: "d"}
	require.NoError(t, repo.Feedback().CreateFeedback(ctx, fb))

	got, err := repo.Feedback().GetFeedback(ctx, fb.ID)
	require.NoError(t, err)
	assert.Nil(t, got.TimeMetricID)
	assert.Equal(t, "p.jpg", got.ImagePath)
}

func TestFeedbackWithMissingMetricReturnsErrMetricNotFound(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	missing := int64(9999)
	err := repo.Feedback().CreateFeedback(ctx, &models.FeedbackRecord{
		ImagePath: "p.jpg", Feedback: 1, Prediction: "c", TimeMetricID: &missing,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMetricNotFound)

	n, err := repo.Feedback().CountFeedback(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestFeedbackConstraints(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	err := repo.Feedback().CreateFeedback(ctx, &models.FeedbackRecord{ImagePath: "p.jpg", Feedback: 2, Prediction: "c"})
	assert.Error(t, err)

	err = repo.Feedback().CreateFeedback(ctx, &models.FeedbackRecord{ImagePath: "p.jpg", Feedback: 1, Prediction: "x"})
	assert.Error(t, err)

	n, err := repo.Feedback().CountFeedback(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestDeleteFeedbackAndStats(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	for _, v := range []int{1, 1, 0} {
		require.NoError(t, repo.Feedback().CreateFeedback(ctx, &models.FeedbackRecord{ImagePath: "p.jpg", Feedback: v, Prediction: "c"}))
	}

	stats, err := repo.Feedback().Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.FeedbackStats{Total: 3, Positive: 2, Negative: 1}, *stats)

	require.NoError(t, repo.Feedback().DeleteFeedback(ctx, 1))
	_, err = repo.Feedback().GetFeedback(ctx, 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEmptyStats(t *testing.T) {
	repo := newTestRepo(t)

	stats, err := repo.Feedback().Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.FeedbackStats{}, *stats)
}
