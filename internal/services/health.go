package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/aigoflow/catdog-classifier/internal/classifier"
)

// HealthStatus is returned by /health and broadcast as a heartbeat.
type HealthStatus struct {
	Status      string    `json:"status"`
	ModelLoaded bool      `json:"model_loaded"`
	Version     string    `json:"version,omitempty"`
	Endpoint    string    `json:"endpoint,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// HealthService answers health requests on <prefix>.health and publishes
// heartbeats on <prefix>.heartbeat.
type HealthService struct {
	nats       *nats.Conn
	classifier classifier.Classifier
	prefix     string
	version    string
	endpoint   string
	interval   time.Duration
}

func NewHealthService(conn *nats.Conn, c classifier.Classifier, prefix, version, endpoint string, interval time.Duration) *HealthService {
	return &HealthService{
		nats:       conn,
		classifier: c,
		prefix:     prefix,
		version:    version,
		endpoint:   endpoint,
		interval:   interval,
	}
}

func (h *HealthService) Start(ctx context.Context) error {
	healthTopic := h.prefix + ".health"

	sub, err := h.nats.Subscribe(healthTopic, func(msg *nats.Msg) {
		statusData, err := json.Marshal(h.Status())
		if err != nil {
			slog.Error("Failed to marshal health status", "error", err)
			return
		}

		if err := msg.Respond(statusData); err != nil {
			slog.Error("Failed to respond to health check", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to health topic: %w", err)
	}

	slog.Info("Health service started", "topic", healthTopic, "interval", h.interval)

	go func() {
		h.publishHeartbeats(ctx)
		_ = sub.Unsubscribe()
	}()

	return nil
}

func (h *HealthService) publishHeartbeats(ctx context.Context) {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	heartbeatTopic := h.prefix + ".heartbeat"

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			statusData, err := json.Marshal(h.Status())
			if err != nil {
				continue
			}

			if err := h.nats.Publish(heartbeatTopic, statusData); err != nil {
				slog.Warn("Failed to publish heartbeat", "error", err)
			}
		}
	}
}

func (h *HealthService) Status() HealthStatus {
	return HealthStatus{
		Status:      "healthy",
		ModelLoaded: h.classifier.IsLoaded(),
		Version:     h.version,
		Endpoint:    h.endpoint,
		Timestamp:   time.Now().UTC(),
	}
}
