package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/aigoflow/catdog-classifier/internal/auth"
	"github.com/aigoflow/catdog-classifier/internal/services"
)

const (
	detailInvalidToken   = "Token invalide"
	detailFeedbackFailed = "Erreur lors de l'enregistrement du feedback"
)

type FeedbackHandler struct {
	feedbackService *services.FeedbackService
	auth            *auth.Middleware
	maxUploadBytes  int64
}

func NewFeedbackHandler(feedbackService *services.FeedbackService, mw *auth.Middleware, maxUploadBytes int64) *FeedbackHandler {
	return &FeedbackHandler{
		feedbackService: feedbackService,
		auth:            mw,
		maxUploadBytes:  maxUploadBytes,
	}
}

func (h *FeedbackHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/feedback", h.auth.Require(auth.ScopeFeedback, http.StatusForbidden, detailInvalidToken, h.handleFeedback))
	mux.HandleFunc("/api/feedback/stats", h.handleStats)
}

func (h *FeedbackHandler) handleFeedback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST only")
		return
	}

	upload, status, detail := readUpload(w, r, h.maxUploadBytes)
	if upload == nil {
		writeError(w, status, detail)
		return
	}

	in := services.FeedbackInput{
		Data:        upload.data,
		ContentType: upload.contentType,
		Prediction:  strings.TrimSpace(upload.form("prediction")),
	}

	var err error
	if in.Feedback, err = formInt(upload.form, "feedback", true); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if in.Proba, err = formInt(upload.form, "proba", true); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	metricID, err := formInt(upload.form, "time_metric_id", false)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	in.TimeMetricID = int64(metricID)

	result, err := h.feedbackService.Submit(r.Context(), in)
	if err != nil {
		if errors.Is(err, services.ErrInvalidFeedback) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		slog.Error("Feedback request failed", "filename", upload.filename, "error", err)
		writeError(w, http.StatusInternalServerError, detailFeedbackFailed)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *FeedbackHandler) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "GET only")
		return
	}

	stats, err := h.feedbackService.Stats(r.Context())
	if err != nil {
		slog.Error("Failed to compute feedback stats", "error", err)
		writeError(w, http.StatusInternalServerError, "Statistiques indisponibles")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

type fieldError struct {
	field string
	msg   string
}

func (e *fieldError) Error() string {
	return "champ " + e.field + ": " + e.msg
}

func formInt(form func(string) string, field string, required bool) (int, error) {
	raw := strings.TrimSpace(form(field))
	if raw == "" {
		if required {
			return 0, &fieldError{field: field, msg: "obligatoire"}
		}
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &fieldError{field: field, msg: "entier attendu"}
	}
	return n, nil
}
