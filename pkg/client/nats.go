package client

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// NATSHealthClient asks a running service for its status over NATS.
type NATSHealthClient struct {
	conn    *nats.Conn
	prefix  string
	timeout time.Duration
}

func NewNATSHealthClient(natsURL, prefix string) (*NATSHealthClient, error) {
	conn, err := nats.Connect(natsURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &NATSHealthClient{conn: conn, prefix: prefix, timeout: 5 * time.Second}, nil
}

// CheckHealth sends a request on <prefix>.health and waits for the reply
func (c *NATSHealthClient) CheckHealth(ctx context.Context) (*HealthStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	msg, err := c.conn.RequestWithContext(ctx, c.prefix+".health", nil)
	if err != nil {
		return nil, fmt.Errorf("health check failed: %w", err)
	}

	var health HealthStatus
	if err := json.Unmarshal(msg.Data, &health); err != nil {
		return nil, fmt.Errorf("failed to parse health response: %w", err)
	}
	return &health, nil
}

func (c *NATSHealthClient) Close() error {
	c.conn.Close()
	return nil
}
