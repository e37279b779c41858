package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonitorCountsEvents(t *testing.T) {
	m := NewMonitor(nil, "catdog.events")
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	m.handle("catdog.events.metric.recorded", []byte(`{"type":"metric.recorded","data":{"inference_time_ms":10,"success":true}}`), now)
	m.handle("catdog.events.metric.recorded", []byte(`{"type":"metric.recorded","data":{"inference_time_ms":30,"success":false}}`), now)
	m.handle("catdog.events.feedback.recorded", []byte(`{"type":"feedback.recorded","data":{"feedback":1}}`), now)
	m.handle("catdog.events.feedback.recorded", []byte(`{"type":"feedback.recorded","data":{"feedback":0}}`), now)
	m.handle("catdog.events.metric.recorded", []byte(`not json`), now)

	c := m.Snapshot().Counters
	assert.Equal(t, int64(2), c.Inferences)
	assert.Equal(t, int64(1), c.FailedInferences)
	assert.Equal(t, 20.0, c.AvgInferenceMs)
	assert.Equal(t, int64(2), c.Feedback)
	assert.Equal(t, int64(1), c.PositiveFeedback)
	assert.Equal(t, int64(1), c.NegativeFeedback)
}

func TestMonitorTracksHeartbeats(t *testing.T) {
	m := NewMonitor(nil, "catdog.events")
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	m.handle("catdog.events.heartbeat", []byte(`{"status":"healthy","model_loaded":true,"version":"1.0.0","endpoint":":8000"}`), start)
	m.handle("catdog.events.heartbeat", []byte(`{"status":"healthy","model_loaded":false,"version":"1.0.1","endpoint":":8000"}`), start.Add(30*time.Second))

	snap := m.Snapshot()
	require.Len(t, snap.Instances, 1)
	inst := snap.Instances[0]
	assert.Equal(t, ":8000", inst.Endpoint)
	assert.False(t, inst.ModelLoaded)
	assert.Equal(t, "1.0.1", inst.Version)
	assert.Equal(t, 30*time.Second, inst.Uptime)

	m.expire(start.Add(5*time.Minute), 2*time.Minute)
	assert.Equal(t, "offline", m.Snapshot().Instances[0].Status)
}

func TestMonitorNotifiesListeners(t *testing.T) {
	m := NewMonitor(nil, "catdog.events")
	ch := m.AddListener()

	m.handle("catdog.events.heartbeat", []byte(`{"status":"healthy","endpoint":":8000"}`), time.Now())

	select {
	case snap := <-ch:
		assert.Len(t, snap.Instances, 1)
	default:
		t.Fatal("expected a snapshot")
	}

	m.RemoveListener(ch)
	m.handle("catdog.events.heartbeat", []byte(`{"status":"healthy","endpoint":":8001"}`), time.Now())
	assert.Len(t, ch, 0)
}

func TestRenderDashboard(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	out := renderDashboard(Snapshot{
		Instances: []Instance{{Endpoint: ":8000", Status: "healthy", ModelLoaded: true, Version: "1.0.0", LastSeen: now.Add(-5 * time.Second)}},
		Counters:  Counters{Inferences: 3},
	}, now)

	assert.Contains(t, out, "Inferences: 3")
	assert.Contains(t, out, ":8000")
	assert.Contains(t, out, "5s")
}
