package client

import (
	"fmt"
	"time"
)

// Probabilities are per-class percentages, e.g. "93.41%".
type Probabilities struct {
	Cat string `json:"cat"`
	Dog string `json:"dog"`
}

// PredictResponse is returned by POST /api/predict
type PredictResponse struct {
	Filename      string        `json:"filename"`
	Prediction    string        `json:"prediction"`
	Confidence    string        `json:"confidence"`
	Probabilities Probabilities `json:"probabilities"`
	TimeMetricID  int64         `json:"time_metric_id"`
}

// FeedbackRequest is the form sent to POST /api/feedback
type FeedbackRequest struct {
	Filename     string
	Image        []byte
	ContentType  string
	Feedback     int
	Prediction   string
	Proba        int
	TimeMetricID int64
}

// FeedbackResponse is returned by POST /api/feedback
type FeedbackResponse struct {
	Detail     string `json:"detail"`
	FeedbackID int64  `json:"feedback_id"`
	Feedback   int    `json:"feedback"`
	Prediction string `json:"prediction"`
	ImagePath  string `json:"image_path"`
}

// FeedbackStats is returned by GET /api/feedback/stats
type FeedbackStats struct {
	Total    int `json:"total"`
	Positive int `json:"positive"`
	Negative int `json:"negative"`
}

// HealthStatus is returned by /health and by the NATS health subject
type HealthStatus struct {
	Status      string    `json:"status"`
	ModelLoaded bool      `json:"model_loaded"`
	Version     string    `json:"version,omitempty"`
	Endpoint    string    `json:"endpoint,omitempty"`
	Timestamp   time.Time `json:"timestamp,omitempty"`
}

// ModelInfo is returned by GET /api/info
type ModelInfo struct {
	ModelLoaded bool     `json:"model_loaded"`
	ModelPath   string   `json:"model_path"`
	Version     string   `json:"version"`
	Parameters  int64    `json:"parameters"`
	InputSize   string   `json:"input_size"`
	Classes     []string `json:"classes"`
}

// APIError is a non-2xx reply carrying the server's detail message
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Detail)
}
