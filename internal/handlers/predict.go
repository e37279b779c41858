package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/aigoflow/catdog-classifier/internal/auth"
	"github.com/aigoflow/catdog-classifier/internal/services"
)

const (
	detailModelUnavailable = "Modèle non disponible"
	detailInvalidImage     = "Format d'image invalide"
	detailPredictionFailed = "Erreur de prédiction: "
	detailMissingFile      = "Aucun fichier fourni"
	detailTooLarge         = "Fichier trop volumineux"
	detailUnauthenticated  = "Non authentifié"
)

type PredictHandler struct {
	predictionService *services.PredictionService
	auth              *auth.Middleware
	maxUploadBytes    int64
}

func NewPredictHandler(predictionService *services.PredictionService, mw *auth.Middleware, maxUploadBytes int64) *PredictHandler {
	return &PredictHandler{
		predictionService: predictionService,
		auth:              mw,
		maxUploadBytes:    maxUploadBytes,
	}
}

func (h *PredictHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/predict", h.auth.Require(auth.ScopePredict, http.StatusUnauthorized, detailUnauthenticated, h.handlePredict))
}

func (h *PredictHandler) handlePredict(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST only")
		return
	}

	// Cheap check before reading the upload.
	if !h.predictionService.ModelLoaded() {
		writeError(w, http.StatusServiceUnavailable, detailModelUnavailable)
		return
	}

	upload, status, detail := readUpload(w, r, h.maxUploadBytes)
	if upload == nil {
		writeError(w, status, detail)
		return
	}

	result, err := h.predictionService.Predict(r.Context(), services.PredictInput{
		Filename:    upload.filename,
		ContentType: upload.contentType,
		Data:        upload.data,
	})
	if err != nil {
		var predErr *services.PredictionError
		switch {
		case errors.Is(err, services.ErrModelUnavailable):
			writeError(w, http.StatusServiceUnavailable, detailModelUnavailable)
		case errors.Is(err, services.ErrInvalidImage):
			writeError(w, http.StatusBadRequest, detailInvalidImage)
		case errors.As(err, &predErr):
			writeError(w, http.StatusInternalServerError, detailPredictionFailed+predErr.Error())
		default:
			slog.Error("Prediction request failed", "filename", upload.filename, "error", err)
			writeError(w, http.StatusInternalServerError, detailPredictionFailed+err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, result)
}

const defaultMultipartMemory = 32 << 20

type upload struct {
	filename    string
	contentType string
	data        []byte
	form        func(string) string
}

// readUpload parses a multipart body bounded by maxBytes and returns the
// "file" part. On failure it returns nil with the status and detail to send.
func readUpload(w http.ResponseWriter, r *http.Request, maxBytes int64) (*upload, int, string) {
	memory := int64(defaultMultipartMemory)
	if maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
		memory = maxBytes
	}
	if err := r.ParseMultipartForm(memory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, http.StatusRequestEntityTooLarge, detailTooLarge
		}
		return nil, http.StatusBadRequest, "Formulaire multipart invalide"
	}

	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, http.StatusBadRequest, detailMissingFile
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, http.StatusBadRequest, "Lecture du fichier impossible"
	}

	return &upload{
		filename:    header.Filename,
		contentType: header.Header.Get("Content-Type"),
		data:        data,
		form:        r.FormValue,
	}, 0, ""
}
