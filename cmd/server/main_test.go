package main

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aigoflow/catdog-classifier/internal/auth"
	"github.com/aigoflow/catdog-classifier/internal/models"
	"github.com/aigoflow/catdog-classifier/internal/repository"
	"github.com/aigoflow/catdog-classifier/internal/store"
)

func setupCLI(t *testing.T) (repository.Repository, string) {
	t.Helper()
	dbURL := "sqlite://" + filepath.Join(t.TempDir(), "cli.sqlite")
	t.Setenv("DATABASE_URL", dbURL)
	t.Setenv("FEEDBACK_TOKENS", "secret")
	t.Setenv("LOG_LEVEL", "error")

	db, err := store.Open(dbURL)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return repository.NewSQLRepository(db), dbURL
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestMigrateCommand(t *testing.T) {
	setupCLI(t)

	out, err := runCLI(t, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "schema up to date")
}

func TestMetricsGetAndDelete(t *testing.T) {
	repo, _ := setupCLI(t)
	ctx := context.Background()

	metric, err := repo.Metric().CreateMetric(ctx, 42.5, true)
	require.NoError(t, err)
	fb := &models.FeedbackRecord{ImagePath: "x.jpg", Feedback: 1, Prediction: models.LabelCat, TimeMetricID: &metric.ID}
	require.NoError(t, repo.Feedback().CreateFeedback(ctx, fb))

	id := strconv.FormatInt(metric.ID, 10)
	out, err := runCLI(t, "metrics", "get", id)
	require.NoError(t, err)

	var shown struct {
		Metric   models.InferenceMetric   `json:"metric"`
		Feedback []*models.FeedbackRecord `json:"feedback"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &shown))
	assert.Equal(t, 42.5, shown.Metric.InferenceTimeMs)
	assert.Len(t, shown.Feedback, 1)

	out, err = runCLI(t, "metrics", "delete", id)
	require.NoError(t, err)
	assert.Contains(t, out, "deleted metric "+id)

	_, err = runCLI(t, "metrics", "get", id)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	kept, err := repo.Feedback().GetFeedback(ctx, fb.ID)
	require.NoError(t, err)
	assert.Nil(t, kept.TimeMetricID)
}

func TestMetricsDeleteUnknown(t *testing.T) {
	setupCLI(t)

	_, err := runCLI(t, "metrics", "delete", "77")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	_, err = runCLI(t, "metrics", "delete", "abc")
	assert.Error(t, err)
}

func TestFeedbackStatsAndDelete(t *testing.T) {
	repo, _ := setupCLI(t)
	ctx := context.Background()

	first := &models.FeedbackRecord{ImagePath: "a.jpg", Feedback: 1, Prediction: models.LabelDog}
	second := &models.FeedbackRecord{ImagePath: "b.jpg", Feedback: 0, Prediction: models.LabelDog}
	require.NoError(t, repo.Feedback().CreateFeedback(ctx, first))
	require.NoError(t, repo.Feedback().CreateFeedback(ctx, second))

	out, err := runCLI(t, "feedback", "delete", strconv.FormatInt(second.ID, 10))
	require.NoError(t, err)
	assert.Contains(t, out, "deleted feedback")

	out, err = runCLI(t, "feedback", "stats")
	require.NoError(t, err)
	var stats models.FeedbackStats
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.Equal(t, models.FeedbackStats{Total: 1, Positive: 1, Negative: 0}, stats)
}

func TestTokenCommand(t *testing.T) {
	setupCLI(t)
	t.Setenv("AUTH_JWT_SECRET", "jwt-key")

	out, err := runCLI(t, "token", "--subject", "kiosk", "--scope", "feedback,predict")
	require.NoError(t, err)
	token := strings.TrimSpace(out)

	v := auth.NewVerifier("jwt-key")
	assert.NoError(t, v.Verify(auth.ScopeFeedback, token))
	assert.NoError(t, v.Verify(auth.ScopePredict, token))
}

func TestTokenCommandWithoutSecret(t *testing.T) {
	setupCLI(t)
	t.Setenv("AUTH_JWT_SECRET", "")

	_, err := runCLI(t, "token")
	assert.Error(t, err)
}
