package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coremetrics "github.com/kilianp07/retrieverd/core/metrics"
)

type captureServer struct {
	mu     sync.Mutex
	bodies []string
}

func (c *captureServer) handler(w http.ResponseWriter, r *http.Request) {
	data, _ := io.ReadAll(r.Body)
	c.mu.Lock()
	c.bodies = append(c.bodies, strings.TrimSpace(string(data)))
	c.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func TestInfluxSink_RecordDecision(t *testing.T) {
	capture := &captureServer{}
	srv := httptest.NewServer(http.HandlerFunc(capture.handler))
	defer srv.Close()

	sink := NewInfluxSink(InfluxConfig{URL: srv.URL, Token: "token", Org: "org", Bucket: "bucket"})
	defer sink.Close()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	rec := coremetrics.DecisionRecord{
		Time:      now,
		Ready:     true,
		FreeSlots: 2,
		Collected: 1,
		Hired:     "R-01",
		Priority:  1,
		Eligible:  2,
		Rejected:  map[string]int{"disabled": 1, "unaffordable": 2},
	}
	require.NoError(t, sink.RecordDecision(rec))

	p := write.NewPointWithMeasurement("dispatch_decision").
		AddTag("hired", "R-01").
		AddTag("component", "dispatch_manager").
		AddField("free_slots", 2).
		AddField("collected", 1).
		AddField("priority", 1).
		AddField("eligible", 2).
		AddField("rejected", 3).
		AddField("failures", 0).
		SetTime(now)
	expected := strings.TrimSpace(write.PointToLineProtocol(p, time.Nanosecond))
	require.Len(t, capture.bodies, 1)
	assert.Equal(t, expected, capture.bodies[0])
}

func TestInfluxSink_SkipsNotReady(t *testing.T) {
	capture := &captureServer{}
	srv := httptest.NewServer(http.HandlerFunc(capture.handler))
	defer srv.Close()

	sink := NewInfluxSink(InfluxConfig{URL: srv.URL, Org: "org", Bucket: "bucket"})
	defer sink.Close()
	require.NoError(t, sink.RecordDecision(coremetrics.DecisionRecord{Time: time.Now()}))
	assert.Empty(t, capture.bodies)
}

func TestInfluxSink_RecordCommand(t *testing.T) {
	capture := &captureServer{}
	srv := httptest.NewServer(http.HandlerFunc(capture.handler))
	defer srv.Close()

	sink := NewInfluxSink(InfluxConfig{URL: srv.URL + "/api/v2/write", Org: "org", Bucket: "bucket"})
	defer sink.Close()
	require.NoError(t, sink.RecordCommand(coremetrics.CommandRecord{
		Command:   "hire",
		Retriever: "R-02",
		Slot:      -1,
		Success:   false,
		Error:     "timeout",
		Latency:   1500 * time.Microsecond,
		Time:      time.Now(),
	}))
	require.Len(t, capture.bodies, 1)
	body := capture.bodies[0]
	assert.True(t, strings.HasPrefix(body, "dispatch_command,"))
	assert.Contains(t, body, "command=hire")
	assert.Contains(t, body, "success=false")
	assert.Contains(t, body, "latency_ms=1.5")
	assert.Contains(t, body, `errors="timeout"`)
}

func TestNewInfluxSinkWithFallback(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			called = true
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
	}))
	defer srv.Close()

	sink := NewInfluxSinkWithFallback(InfluxConfig{URL: srv.URL + "/api/v2/write", Token: "tok", Org: "org", Bucket: "bucket"})
	_, ok := sink.(*InfluxSink)
	assert.False(t, ok, "expected NopSink on failing health check")
	assert.True(t, called)
}
