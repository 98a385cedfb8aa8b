package metrics

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/retrieverd/core/metrics"
	"github.com/kilianp07/retrieverd/infra/logger"
)

// InfluxConfig holds the InfluxDB connection settings.
type InfluxConfig struct {
	URL    string `json:"url"`
	Token  string `json:"token"`
	Org    string `json:"org"`
	Bucket string `json:"bucket"`
}

// InfluxSink writes dispatch decisions and commands to InfluxDB using the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(cfg InfluxConfig) *InfluxSink {
	base := strings.TrimSuffix(cfg.URL, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, cfg.Token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(cfg InfluxConfig) coremetrics.MetricsSink {
	sink := NewInfluxSink(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordDecision writes one dispatch_decision point per ready tick.
func (s *InfluxSink) RecordDecision(rec coremetrics.DecisionRecord) error {
	if !rec.Ready {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	hired := rec.Hired
	if hired == "" {
		hired = "none"
	}
	rejected := 0
	for _, n := range rec.Rejected {
		rejected += n
	}
	p := write.NewPointWithMeasurement("dispatch_decision").
		AddTag("hired", hired).
		AddTag("component", "dispatch_manager").
		AddField("free_slots", rec.FreeSlots).
		AddField("collected", rec.Collected).
		AddField("priority", rec.Priority).
		AddField("eligible", rec.Eligible).
		AddField("rejected", rejected).
		AddField("failures", rec.Failures).
		SetTime(rec.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordCommand writes a dispatch_command point.
func (s *InfluxSink) RecordCommand(rec coremetrics.CommandRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("dispatch_command").
		AddTag("command", rec.Command).
		AddTag("retriever", rec.Retriever).
		AddTag("success", strconv.FormatBool(rec.Success)).
		AddTag("component", "dispatch_manager").
		AddField("slot", rec.Slot).
		AddField("latency_ms", round3(rec.Latency.Seconds()*1000)).
		AddField("errors", rec.Error).
		SetTime(rec.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// Close releases the underlying client.
func (s *InfluxSink) Close() {
	s.client.Close()
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
