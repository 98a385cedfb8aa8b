// Package metrics defines the sinks that record dispatch decisions and host
// commands. Concrete sinks (Prometheus, InfluxDB) live in infra/metrics and
// register themselves with RegisterMetricsSink; NewMetricsSink builds a single
// sink or a MultiSink from configuration.
package metrics
