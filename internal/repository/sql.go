package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/aigoflow/catdog-classifier/internal/models"
	"github.com/aigoflow/catdog-classifier/internal/store"
)

// SQLRepository implements Repository on top of store.DB (Postgres or SQLite).
type SQLRepository struct {
	db           *store.DB
	metricRepo   MetricRepositoryInterface
	feedbackRepo FeedbackRepositoryInterface
}

func NewSQLRepository(db *store.DB) Repository {
	return &SQLRepository{
		db:           db,
		metricRepo:   &SQLMetricRepository{db: db},
		feedbackRepo: &SQLFeedbackRepository{db: db},
	}
}

func (r *SQLRepository) Metric() MetricRepositoryInterface {
	return r.metricRepo
}

func (r *SQLRepository) Feedback() FeedbackRepositoryInterface {
	return r.feedbackRepo
}

// SQLMetricRepository handles inference metric rows
type SQLMetricRepository struct {
	db *store.DB
}

func (r *SQLMetricRepository) CreateMetric(ctx context.Context, inferenceTimeMs float64, success bool) (*models.InferenceMetric, error) {
	if inferenceTimeMs < 0 {
		inferenceTimeMs = 0
	}
	m := &models.InferenceMetric{
		Timestamp:       time.Now().UTC(),
		InferenceTimeMs: inferenceTimeMs,
		Success:         success,
	}

	query := r.db.Rebind(`INSERT INTO ` + r.db.Table(store.TableMetrics) +
		` (timestamp, inference_time_ms, success) VALUES (?, ?, ?) RETURNING id`)
	if err := r.db.QueryRowxContext(ctx, query, m.Timestamp, m.InferenceTimeMs, m.Success).Scan(&m.ID); err != nil {
		return nil, fmt.Errorf("failed to insert metric: %w", err)
	}
	return m, nil
}

func (r *SQLMetricRepository) GetMetric(ctx context.Context, id int64) (*models.InferenceMetric, error) {
	var m models.InferenceMetric
	query := r.db.Rebind(`SELECT id, timestamp, inference_time_ms, success FROM ` +
		r.db.Table(store.TableMetrics) + ` WHERE id = ?`)
	if err := r.db.GetContext(ctx, &m, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get metric %d: %w", id, err)
	}
	return &m, nil
}

func (r *SQLMetricRepository) MetricExists(ctx context.Context, id int64) (bool, error) {
	var n int
	query := r.db.Rebind(`SELECT COUNT(*) FROM ` + r.db.Table(store.TableMetrics) + ` WHERE id = ?`)
	if err := r.db.GetContext(ctx, &n, query, id); err != nil {
		return false, fmt.Errorf("failed to check metric %d: %w", id, err)
	}
	return n > 0, nil
}

// DeleteMetric removes the row. Feedback rows pointing at it keep existing
// with a NULL link.
func (r *SQLMetricRepository) DeleteMetric(ctx context.Context, id int64) error {
	query := r.db.Rebind(`DELETE FROM ` + r.db.Table(store.TableMetrics) + ` WHERE id = ?`)
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete metric %d: %w", id, err)
	}
	return requireAffected(res)
}

func (r *SQLMetricRepository) CountMetrics(ctx context.Context) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM `+r.db.Table(store.TableMetrics)); err != nil {
		return 0, fmt.Errorf("failed to count metrics: %w", err)
	}
	return n, nil
}

func (r *SQLMetricRepository) ListMetrics(ctx context.Context, limit int) ([]*models.InferenceMetric, error) {
	var metrics []*models.InferenceMetric
	query := r.db.Rebind(`SELECT id, timestamp, inference_time_ms, success FROM ` +
		r.db.Table(store.TableMetrics) + ` ORDER BY id DESC LIMIT ?`)
	if err := r.db.SelectContext(ctx, &metrics, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list metrics: %w", err)
	}
	return metrics, nil
}

// SQLFeedbackRepository handles user feedback rows
type SQLFeedbackRepository struct {
	db *store.DB
}

func (r *SQLFeedbackRepository) CreateFeedback(ctx context.Context, fb *models.FeedbackRecord) error {
	if fb.Timestamp.IsZero() {
		fb.Timestamp = time.Now().UTC()
	}

	query := r.db.Rebind(`INSERT INTO ` + r.db.Table(store.TableFeedback) +
		` (image_path, timestamp, feedback, prediction, time_metric_id) VALUES (?, ?, ?, ?, ?) RETURNING id`)
	err := r.db.QueryRowxContext(ctx, query,
		fb.ImagePath, fb.Timestamp, fb.Feedback, fb.Prediction, fb.TimeMetricID,
	).Scan(&fb.ID)
	if err != nil {
		if fb.TimeMetricID != nil && store.IsForeignKeyViolation(err) {
			return fmt.Errorf("failed to insert feedback: %w (time_metric_id %d)", ErrMetricNotFound, *fb.TimeMetricID)
		}
		return fmt.Errorf("failed to insert feedback: %w", err)
	}
	return nil
}

func (r *SQLFeedbackRepository) GetFeedback(ctx context.Context, id int64) (*models.FeedbackRecord, error) {
	var fb models.FeedbackRecord
	query := r.db.Rebind(`SELECT id, image_path, timestamp, feedback, prediction, time_metric_id FROM ` +
		r.db.Table(store.TableFeedback) + ` WHERE id = ?`)
	if err := r.db.GetContext(ctx, &fb, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get feedback %d: %w", id, err)
	}
	return &fb, nil
}

func (r *SQLFeedbackRepository) FindByMetric(ctx context.Context, metricID int64) ([]*models.FeedbackRecord, error) {
	var records []*models.FeedbackRecord
	query := r.db.Rebind(`SELECT id, image_path, timestamp, feedback, prediction, time_metric_id FROM ` +
		r.db.Table(store.TableFeedback) + ` WHERE time_metric_id = ? ORDER BY id`)
	if err := r.db.SelectContext(ctx, &records, query, metricID); err != nil {
		return nil, fmt.Errorf("failed to find feedback for metric %d: %w", metricID, err)
	}
	return records, nil
}

func (r *SQLFeedbackRepository) DeleteFeedback(ctx context.Context, id int64) error {
	query := r.db.Rebind(`DELETE FROM ` + r.db.Table(store.TableFeedback) + ` WHERE id = ?`)
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete feedback %d: %w", id, err)
	}
	return requireAffected(res)
}

func (r *SQLFeedbackRepository) CountFeedback(ctx context.Context) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM `+r.db.Table(store.TableFeedback)); err != nil {
		return 0, fmt.Errorf("failed to count feedback: %w", err)
	}
	return n, nil
}

func (r *SQLFeedbackRepository) Stats(ctx context.Context) (*models.FeedbackStats, error) {
	var stats models.FeedbackStats
	query := `SELECT
			COUNT(*) AS total,
			COALESCE(SUM(CASE WHEN feedback = 1 THEN 1 ELSE 0 END), 0) AS positive,
			COALESCE(SUM(CASE WHEN feedback = 0 THEN 1 ELSE 0 END), 0) AS negative
		FROM ` + r.db.Table(store.TableFeedback)
	if err := r.db.GetContext(ctx, &stats, query); err != nil {
		return nil, fmt.Errorf("failed to compute feedback stats: %w", err)
	}
	return &stats, nil
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
