package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// Instance is one classifier service seen through its heartbeats.
type Instance struct {
	Endpoint    string        `json:"endpoint"`
	Status      string        `json:"status"`
	ModelLoaded bool          `json:"model_loaded"`
	Version     string        `json:"version"`
	FirstSeen   time.Time     `json:"first_seen"`
	LastSeen    time.Time     `json:"last_seen"`
	Uptime      time.Duration `json:"uptime"`
}

// Counters aggregate events since the monitor started.
type Counters struct {
	Inferences       int64     `json:"inferences"`
	FailedInferences int64     `json:"failed_inferences"`
	AvgInferenceMs   float64   `json:"avg_inference_ms"`
	Feedback         int64     `json:"feedback"`
	PositiveFeedback int64     `json:"positive_feedback"`
	NegativeFeedback int64     `json:"negative_feedback"`
	LastEventAt      time.Time `json:"last_event_at,omitempty"`

	totalInferenceMs float64
}

type Snapshot struct {
	Instances []Instance `json:"instances"`
	Counters  Counters   `json:"counters"`
}

type heartbeat struct {
	Status      string `json:"status"`
	ModelLoaded bool   `json:"model_loaded"`
	Version     string `json:"version"`
	Endpoint    string `json:"endpoint"`
}

type event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type metricData struct {
	InferenceTimeMs float64 `json:"inference_time_ms"`
	Success         bool    `json:"success"`
}

type feedbackData struct {
	Feedback int `json:"feedback"`
}

// Monitor follows every subject under the service's event prefix.
type Monitor struct {
	nats   *nats.Conn
	prefix string

	mu        sync.RWMutex
	instances map[string]*Instance
	counters  Counters
	listeners []chan Snapshot
}

func NewMonitor(conn *nats.Conn, prefix string) *Monitor {
	return &Monitor{
		nats:      conn,
		prefix:    prefix,
		instances: make(map[string]*Instance),
	}
}

func (m *Monitor) Start(ctx context.Context) error {
	subject := m.prefix + ".>"
	sub, err := m.nats.Subscribe(subject, func(msg *nats.Msg) {
		m.handle(msg.Subject, msg.Data, time.Now())
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", subject, err)
	}
	slog.Info("Monitor started", "subject", subject)

	go func() {
		m.markStale(ctx)
		_ = sub.Unsubscribe()
	}()
	return nil
}

// QueryHealth asks any running instance for its status.
func (m *Monitor) QueryHealth() (*heartbeat, time.Duration, error) {
	start := time.Now()
	resp, err := m.nats.Request(m.prefix+".health", nil, 5*time.Second)
	if err != nil {
		return nil, 0, fmt.Errorf("health check failed: %w", err)
	}
	var hb heartbeat
	if err := json.Unmarshal(resp.Data, &hb); err != nil {
		return nil, 0, fmt.Errorf("failed to parse health response: %w", err)
	}
	m.recordHeartbeat(hb, time.Now())
	return &hb, time.Since(start), nil
}

func (m *Monitor) handle(subject string, data []byte, now time.Time) {
	kind := strings.TrimPrefix(subject, m.prefix+".")
	switch kind {
	case "heartbeat":
		var hb heartbeat
		if err := json.Unmarshal(data, &hb); err != nil {
			slog.Warn("Unparseable heartbeat", "subject", subject, "error", err)
			return
		}
		m.recordHeartbeat(hb, now)

	case "metric.recorded", "feedback.recorded":
		var evt event
		if err := json.Unmarshal(data, &evt); err != nil {
			slog.Warn("Unparseable event", "subject", subject, "error", err)
			return
		}
		m.recordEvent(kind, evt.Data, now)

	case "health":
		// Requests from other monitors.
		return

	default:
		slog.Debug("Ignoring subject", "subject", subject)
		return
	}
	m.notifyListeners()
}

func (m *Monitor) recordHeartbeat(hb heartbeat, now time.Time) {
	key := hb.Endpoint
	if key == "" {
		key = "unknown"
	}

	m.mu.Lock()
	inst, ok := m.instances[key]
	if !ok {
		inst = &Instance{Endpoint: key, FirstSeen: now}
		m.instances[key] = inst
		slog.Info("Discovered instance", "endpoint", key, "version", hb.Version)
	}
	inst.Status = hb.Status
	inst.ModelLoaded = hb.ModelLoaded
	inst.Version = hb.Version
	inst.LastSeen = now
	inst.Uptime = now.Sub(inst.FirstSeen)
	m.mu.Unlock()
}

func (m *Monitor) recordEvent(kind string, data json.RawMessage, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c := &m.counters
	c.LastEventAt = now

	switch kind {
	case "metric.recorded":
		var md metricData
		if err := json.Unmarshal(data, &md); err != nil {
			slog.Warn("Unparseable metric event", "error", err)
			return
		}
		c.Inferences++
		if !md.Success {
			c.FailedInferences++
		}
		c.totalInferenceMs += md.InferenceTimeMs
		c.AvgInferenceMs = c.totalInferenceMs / float64(c.Inferences)
		slog.Info("Inference recorded",
			"inference_time_ms", md.InferenceTimeMs,
			"success", md.Success,
			"total", c.Inferences,
			"failed", c.FailedInferences)

	case "feedback.recorded":
		var fd feedbackData
		if err := json.Unmarshal(data, &fd); err != nil {
			slog.Warn("Unparseable feedback event", "error", err)
			return
		}
		c.Feedback++
		if fd.Feedback == 1 {
			c.PositiveFeedback++
		} else {
			c.NegativeFeedback++
		}
		slog.Info("Feedback recorded",
			"feedback", fd.Feedback,
			"total", c.Feedback,
			"positive", c.PositiveFeedback)
	}
}

func (m *Monitor) markStale(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			m.expire(now, 2*time.Minute)
			m.notifyListeners()
		}
	}
}

// expire marks instances without a heartbeat for longer than maxAge offline.
func (m *Monitor) expire(now time.Time, maxAge time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, inst := range m.instances {
		if now.Sub(inst.LastSeen) > maxAge && inst.Status != "offline" {
			inst.Status = "offline"
			slog.Warn("Instance offline", "endpoint", key, "last_seen", inst.LastSeen)
		}
	}
}

func (m *Monitor) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	instances := make([]Instance, 0, len(m.instances))
	for _, inst := range m.instances {
		instances = append(instances, *inst)
	}
	sort.Slice(instances, func(i, j int) bool {
		return instances[i].Endpoint < instances[j].Endpoint
	})
	return Snapshot{Instances: instances, Counters: m.counters}
}

func (m *Monitor) AddListener() chan Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	ch := make(chan Snapshot, 10)
	m.listeners = append(m.listeners, ch)
	return ch
}

func (m *Monitor) RemoveListener(ch chan Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, l := range m.listeners {
		if l == ch {
			m.listeners = append(m.listeners[:i], m.listeners[i+1:]...)
			return
		}
	}
}

func (m *Monitor) notifyListeners() {
	snap := m.Snapshot()

	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, ch := range m.listeners {
		select {
		case ch <- snap:
		default:
			// Slow listener; it gets the next update.
		}
	}
}
