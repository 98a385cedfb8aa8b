package metrics

// MultiSink fans records out to several sinks.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordDecision forwards the record to all sinks and returns the first error.
// Every sink is called even when an earlier one fails.
func (m *MultiSink) RecordDecision(rec DecisionRecord) error {
	var first error
	for _, s := range m.Sinks {
		if err := s.RecordDecision(rec); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// RecordCommand forwards command records to sinks that support them.
func (m *MultiSink) RecordCommand(rec CommandRecord) error {
	var first error
	for _, s := range m.Sinks {
		if cr, ok := s.(CommandRecorder); ok {
			if err := cr.RecordCommand(rec); err != nil && first == nil {
				first = err
			}
		}
	}
	return first
}
