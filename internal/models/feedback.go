package models

import "time"

// Label codes as submitted by clients.
const (
	LabelCat = "c"
	LabelDog = "d"
)

// Feedback polarity values.
const (
	FeedbackNegative = 0
	FeedbackPositive = 1
)

// FeedbackRecord is a user's judgment of one prediction. The image itself
// lives in blob storage; only its location is stored here.
type FeedbackRecord struct {
	ID           int64     `json:"id" db:"id"`
	ImagePath    string    `json:"image_path" db:"image_path"`
	Timestamp    time.Time `json:"timestamp" db:"timestamp"`
	Feedback     int       `json:"feedback" db:"feedback"`
	Prediction   string    `json:"prediction" db:"prediction"`
	TimeMetricID *int64    `json:"time_metric_id,omitempty" db:"time_metric_id"`
}

// FeedbackStats summarises collected feedback.
type FeedbackStats struct {
	Total    int `json:"total" db:"total"`
	Positive int `json:"positive" db:"positive"`
	Negative int `json:"negative" db:"negative"`
}

func ValidFeedback(v int) bool {
	return v == FeedbackNegative || v == FeedbackPositive
}

func ValidLabel(code string) bool {
	return code == LabelCat || code == LabelDog
}

// PolarityDir is the storage directory for a feedback polarity.
func PolarityDir(feedback int) string {
	if feedback == FeedbackPositive {
		return "positif"
	}
	return "negatif"
}

// LabelDir is the storage directory for a label code.
func LabelDir(code string) string {
	if code == LabelCat {
		return "chat"
	}
	return "chien"
}
