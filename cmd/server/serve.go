package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aigoflow/catdog-classifier/internal/auth"
	"github.com/aigoflow/catdog-classifier/internal/blobstore"
	"github.com/aigoflow/catdog-classifier/internal/classifier"
	"github.com/aigoflow/catdog-classifier/internal/config"
	"github.com/aigoflow/catdog-classifier/internal/repository"
	"github.com/aigoflow/catdog-classifier/internal/services"
	"github.com/aigoflow/catdog-classifier/internal/store"
	"github.com/aigoflow/catdog-classifier/pkg/server"
)

func newServeCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
}

func serve(parent context.Context, cfg *config.Config) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	db, err := store.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()
	repo := repository.NewSQLRepository(db)

	blobs, err := openBlobStore(ctx, cfg)
	if err != nil {
		return err
	}

	var events services.EventPublisher = services.NopPublisher{}
	var natsPublisher *services.NATSPublisher
	if cfg.NatsURL != "" {
		natsPublisher, err = services.NewNATSPublisher(cfg.NatsURL, cfg.EventPrefix)
		if err != nil {
			// Events are best effort; the API works without them.
			slog.Warn("Event publishing disabled", "nats_url", cfg.NatsURL, "error", err)
		} else {
			events = natsPublisher
		}
	}
	defer events.Close()

	if err := classifier.InitRuntime(cfg.ONNXLibraryPath); err != nil {
		slog.Error("Failed to initialise ONNX runtime", "error", err)
	} else {
		defer classifier.ShutdownRuntime()
	}

	holder := classifier.NewHolder(loadClassifier(cfg))
	defer func() { closeClassifier(holder.Swap(nil)) }()

	metrics := services.NewMetrics()
	predictions := services.NewPredictionService(holder, repo, events, metrics, cfg.PredictTimeout)
	feedback := services.NewFeedbackService(repo, blobs, events, metrics)

	verifier := auth.NewVerifier(cfg.JWTSecret).
		WithTokens(auth.ScopePredict, cfg.APITokens).
		WithTokens(auth.ScopeFeedback, cfg.FeedbackTokens).
		RequireSigned(auth.ScopeFeedback)

	httpServer, err := server.NewServer(cfg.HTTPAddr, server.Deps{
		Classifier:     holder,
		Predictions:    predictions,
		Feedback:       feedback,
		Verifier:       verifier,
		Metrics:        metrics,
		Version:        cfg.Version,
		MaxUploadBytes: cfg.MaxUploadBytes,
	})
	if err != nil {
		return err
	}

	if natsPublisher != nil {
		health := services.NewHealthService(natsPublisher.Conn(), holder, cfg.EventPrefix, cfg.Version, cfg.HTTPAddr, cfg.HeartbeatInterval)
		if err := health.Start(ctx); err != nil {
			slog.Error("Health service failed", "error", err)
		}
	}

	go reloadOnHangup(ctx, cfg, holder)

	slog.Info("Server ready",
		"http_addr", cfg.HTTPAddr,
		"database", db.Dialect(),
		"blob_backend", cfg.BlobBackend,
		"model_loaded", holder.IsLoaded(),
		"nats_enabled", natsPublisher != nil)

	err = httpServer.Start(ctx)
	slog.Info("Shutting down server")
	return err
}

func openBlobStore(ctx context.Context, cfg *config.Config) (blobstore.Store, error) {
	switch cfg.BlobBackend {
	case "minio":
		return blobstore.NewMinioStore(ctx, blobstore.MinioConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		})
	default:
		return blobstore.NewFSStore(cfg.FeedbackDir)
	}
}

// loadClassifier never fails: a model that cannot be loaded yields a
// placeholder so the service still starts and reports 503 on predict.
func loadClassifier(cfg *config.Config) classifier.Classifier {
	c, err := classifier.NewONNXClassifier(cfg.ModelPath, cfg.ModelMetadataPath)
	if err != nil {
		slog.Error("Failed to load model", "model_path", cfg.ModelPath, "error", err)
		return classifier.Unloaded{Path: cfg.ModelPath}
	}
	slog.Info("Model loaded", "model_path", cfg.ModelPath, "parameters", c.Info().Parameters)
	return c
}

func closeClassifier(c classifier.Classifier) {
	if closer, ok := c.(interface{ Close() }); ok {
		closer.Close()
	}
}

func reloadOnHangup(ctx context.Context, cfg *config.Config, holder *classifier.Holder) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			slog.Info("Reloading model", "model_path", cfg.ModelPath)
			reloadModel(holder, func() classifier.Classifier { return loadClassifier(cfg) })
		}
	}
}

// reloadModel installs a freshly loaded classifier and closes the previous
// one. A failed load keeps the current model when one is serving.
func reloadModel(holder *classifier.Holder, load func() classifier.Classifier) bool {
	next := load()
	if !next.IsLoaded() && holder.IsLoaded() {
		slog.Warn("Keeping current model after failed reload")
		return false
	}
	// Close waits for a run in progress on the old session.
	closeClassifier(holder.Swap(next))
	return true
}
