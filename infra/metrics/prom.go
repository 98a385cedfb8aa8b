package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/retrieverd/core/metrics"
)

// PromSink records dispatch decisions and host commands in Prometheus metrics.
type PromSink struct {
	hires    *prometheus.CounterVec
	collects prometheus.Counter
	eligible prometheus.Gauge
	latency  *prometheus.HistogramVec
}

// NewPromSink registers metrics on the default Prometheus registerer.
// The HTTP endpoint is served separately with StartPromServer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	hires := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "retriever_hires_total",
		Help: "Retrievers hired by the dispatcher",
	}, []string{"retriever"})
	collects := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "retriever_collects_total",
		Help: "Finished retrievers collected by the dispatcher",
	})
	eligible := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "retriever_eligible_candidates",
		Help: "Candidates eligible for hire at the last tick",
	})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "retriever_command_latency_seconds",
		Help:    "Time taken by the host to handle a command",
		Buckets: prometheus.DefBuckets,
	}, []string{"command", "success"})

	var err error
	if hires, err = register(reg, hires); err != nil {
		return nil, err
	}
	if collects, err = register(reg, collects); err != nil {
		return nil, err
	}
	if eligible, err = register(reg, eligible); err != nil {
		return nil, err
	}
	if latency, err = register(reg, latency); err != nil {
		return nil, err
	}
	return &PromSink{hires: hires, collects: collects, eligible: eligible, latency: latency}, nil
}

// register reuses an already registered collector of the same shape.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		are, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			return c, err
		}
		existing, ok := are.ExistingCollector.(C)
		if !ok {
			return c, err
		}
		return existing, nil
	}
	return c, nil
}

// RecordDecision updates hire, collect and eligibility metrics.
func (s *PromSink) RecordDecision(rec coremetrics.DecisionRecord) error {
	if !rec.Ready {
		return nil
	}
	if rec.Hired != "" {
		s.hires.WithLabelValues(rec.Hired).Inc()
	}
	s.collects.Add(float64(rec.Collected))
	s.eligible.Set(float64(rec.Eligible))
	return nil
}

// RecordCommand observes the host command latency.
func (s *PromSink) RecordCommand(rec coremetrics.CommandRecord) error {
	s.latency.WithLabelValues(rec.Command, strconv.FormatBool(rec.Success)).Observe(rec.Latency.Seconds())
	return nil
}
