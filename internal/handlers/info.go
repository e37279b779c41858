package handlers

import (
	"net/http"

	"github.com/aigoflow/catdog-classifier/internal/classifier"
)

type InfoHandler struct {
	classifier classifier.Classifier
	version    string
	metrics    http.Handler
}

// NewInfoHandler serves model status. metrics may be nil to leave /metrics
// unregistered.
func NewInfoHandler(c classifier.Classifier, version string, metrics http.Handler) *InfoHandler {
	return &InfoHandler{
		classifier: c,
		version:    version,
		metrics:    metrics,
	}
}

func (h *InfoHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", h.handleHealth)
	mux.HandleFunc("/api/info", h.handleInfo)
	if h.metrics != nil {
		mux.Handle("/metrics", h.metrics)
	}
}

func (h *InfoHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":       "healthy",
		"model_loaded": h.classifier.IsLoaded(),
	})
}

func (h *InfoHandler) handleInfo(w http.ResponseWriter, r *http.Request) {
	info := h.classifier.Info()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"model_loaded": info.Loaded,
		"model_path":   info.Path,
		"version":      h.version,
		"parameters":   info.Parameters,
		"input_size":   info.InputSize,
		"classes":      info.Classes,
	})
}
