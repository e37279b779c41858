package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aigoflow/catdog-classifier/internal/auth"
	"github.com/aigoflow/catdog-classifier/internal/classifier"
	"github.com/aigoflow/catdog-classifier/internal/handlers"
	"github.com/aigoflow/catdog-classifier/internal/services"
)

// Deps are the collaborators the HTTP surface is built from.
type Deps struct {
	Classifier     classifier.Classifier
	Predictions    *services.PredictionService
	Feedback       *services.FeedbackService
	Verifier       *auth.Verifier
	Metrics        *services.Metrics
	Version        string
	MaxUploadBytes int64
}

type Server struct {
	httpAddr string
	handler  http.Handler
}

func NewServer(httpAddr string, deps Deps) (*Server, error) {
	mux := http.NewServeMux()
	mw := auth.NewMiddleware(deps.Verifier)

	handlers.NewPredictHandler(deps.Predictions, mw, deps.MaxUploadBytes).RegisterRoutes(mux)
	handlers.NewFeedbackHandler(deps.Feedback, mw, deps.MaxUploadBytes).RegisterRoutes(mux)

	var metricsHandler http.Handler
	if deps.Metrics != nil {
		metricsHandler = deps.Metrics.Handler()
	}
	handlers.NewInfoHandler(deps.Classifier, deps.Version, metricsHandler).RegisterRoutes(mux)

	pages, err := handlers.NewPageHandler(deps.Classifier, deps.Version)
	if err != nil {
		return nil, fmt.Errorf("failed to load page templates: %w", err)
	}
	pages.RegisterRoutes(mux)

	slog.Info("Registered endpoints",
		"api", []string{"/api/predict", "/api/feedback", "/api/feedback/stats", "/api/info"},
		"pages", []string{"/", "/info", "/inference"},
		"ops", []string{"/health", "/metrics"},
		"predict_auth", deps.Verifier.Enforced(auth.ScopePredict))

	return &Server{httpAddr: httpAddr, handler: mux}, nil
}

func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.httpAddr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server starting", "addr", s.httpAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	slog.Info("HTTP server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down HTTP server: %w", err)
	}
	return nil
}
