package metrics

import "time"

// DecisionRecord summarises one dispatch tick for observability.
type DecisionRecord struct {
	Time      time.Time
	Ready     bool
	FreeSlots int
	Collected int
	// Hired is the retriever name or empty when nothing was hired.
	Hired    string
	Priority int
	Eligible int
	// Rejected counts candidates per rejection reason.
	Rejected map[string]int
	Failures int
}

// MetricsSink records dispatch decisions.
type MetricsSink interface {
	RecordDecision(rec DecisionRecord) error
}

// CommandRecord is the outcome of a command sent to the host.
type CommandRecord struct {
	Command   string
	Retriever string
	Slot      int
	Success   bool
	Error     string
	Latency   time.Duration
	Time      time.Time
}

// CommandRecorder is implemented by sinks able to record host commands.
type CommandRecorder interface {
	RecordCommand(rec CommandRecord) error
}

// NopSink implements every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordDecision(DecisionRecord) error { return nil }
func (NopSink) RecordCommand(CommandRecord) error   { return nil }
