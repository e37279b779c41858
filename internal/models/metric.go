package models

import "time"

// InferenceMetric is one classification attempt's timing and outcome.
// Rows are written once and never updated.
type InferenceMetric struct {
	ID              int64     `json:"id" db:"id"`
	Timestamp       time.Time `json:"timestamp" db:"timestamp"`
	InferenceTimeMs float64   `json:"inference_time_ms" db:"inference_time_ms"`
	Success         bool      `json:"success" db:"success"`
}
