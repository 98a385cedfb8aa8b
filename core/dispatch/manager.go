package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kilianp07/retrieverd/core/dispatch/logging"
	"github.com/kilianp07/retrieverd/core/events"
	"github.com/kilianp07/retrieverd/core/logger"
	"github.com/kilianp07/retrieverd/core/metrics"
	"github.com/kilianp07/retrieverd/core/monitoring"
	"github.com/kilianp07/retrieverd/core/retrieverstatus"
	"github.com/kilianp07/retrieverd/internal/eventbus"
)

// Tick outcomes used as metric labels.
const (
	outcomeSkipped = "skipped"
	outcomeIdle    = "idle"
	outcomeHired   = "hired"
)

// CommandError describes a host command that failed during a tick.
type CommandError struct {
	Command   string
	Retriever string
	Slot      int
	Err       error
}

func (e *CommandError) Error() string {
	if e.Command == events.CommandCollect {
		return fmt.Sprintf("%s slot %d (%s): %v", e.Command, e.Slot, e.Retriever, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Command, e.Retriever, e.Err)
}

func (e *CommandError) Unwrap() error { return e.Err }

// TickResult reports what a tick decided and what the host accepted.
type TickResult struct {
	// Ready is false when the tick was skipped.
	Ready     bool
	Decision  Decision
	Collected []CollectCommand
	Hired     *HireCommand
	Errors    []*CommandError
}

// Manager drives the selector once per tick against a host.
type Manager struct {
	source      StateSource
	actuator    Actuator
	prefs       Preferences
	logger      logger.Logger
	metrics     metrics.MetricsSink
	bus         eventbus.EventBus
	store       logging.LogStore
	statusStore retrieverstatus.Store
	now         func() time.Time
	mu          sync.Mutex
	tickMu      sync.Mutex
}

// NewManager creates a manager. source and actuator may be nil until the host
// is available; ticks are skipped meanwhile. Preferences must be provided
// with SetPreferences before the first hire can happen.
func NewManager(source StateSource, actuator Actuator, sink metrics.MetricsSink, bus eventbus.EventBus, log logger.Logger) (*Manager, error) {
	if log == nil {
		return nil, fmt.Errorf("dispatch: nil logger provided to NewManager")
	}
	if sink == nil {
		sink = metrics.NopSink{}
	}
	return &Manager{
		source:   source,
		actuator: actuator,
		logger:   log,
		metrics:  sink,
		bus:      bus,
		now:      time.Now,
	}, nil
}

// SetPreferences swaps the user preferences. The map is copied.
func (m *Manager) SetPreferences(p Preferences) {
	m.mu.Lock()
	m.prefs = p.Clone()
	m.mu.Unlock()
}

// Preferences returns a copy of the current preferences.
func (m *Manager) Preferences() Preferences {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.prefs.Clone()
}

// SetHost swaps the host state source and actuator.
func (m *Manager) SetHost(source StateSource, actuator Actuator) {
	m.mu.Lock()
	m.source = source
	m.actuator = actuator
	m.mu.Unlock()
}

// SetLogStore configures the store used to persist decisions.
func (m *Manager) SetLogStore(store logging.LogStore) {
	m.mu.Lock()
	m.store = store
	m.mu.Unlock()
}

// SetStatusStore configures the store tracking hires and collections.
func (m *Manager) SetStatusStore(store retrieverstatus.Store) {
	m.mu.Lock()
	m.statusStore = store
	m.mu.Unlock()
}

// Run ticks once per value received on ticks until the context is canceled
// or the channel is closed.
func (m *Manager) Run(ctx context.Context, ticks <-chan time.Time) {
	for {
		select {
		case _, ok := <-ticks:
			if !ok {
				return
			}
			m.Tick(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// Tick collects every finished retriever and hires at most one candidate.
// It never fails: host errors are logged, reported and returned in the result.
func (m *Manager) Tick(ctx context.Context) TickResult {
	m.tickMu.Lock()
	defer m.tickMu.Unlock()

	m.mu.Lock()
	source, act, prefs := m.source, m.actuator, m.prefs
	m.mu.Unlock()

	now := m.now()
	if source == nil || act == nil || prefs == nil {
		m.logger.Debugf("tick skipped: dispatcher not configured")
		m.observe(now, TickResult{})
		return TickResult{}
	}
	snap, err := source.Snapshot(ctx)
	if err != nil {
		m.logger.Debugf("tick skipped: %v", err)
		m.observe(now, TickResult{})
		return TickResult{}
	}

	res := TickResult{Ready: true, Decision: Decide(snap, prefs)}
	for _, c := range res.Decision.Collect {
		m.collect(act, c, &res)
	}
	if h := res.Decision.Hire; h != nil {
		m.hire(act, *h, &res)
	}
	m.observe(now, res)
	return res
}

func (m *Manager) collect(act Actuator, c CollectCommand, res *TickResult) {
	start := time.Now()
	err := act.Collect(c.Slot)
	m.commandDone(events.CommandCollect, c.Name, c.Slot, err, time.Since(start), res)
	if err != nil {
		return
	}
	res.Collected = append(res.Collected, c)
	m.logger.Infof("collected %s from slot %d", c.Name, c.Slot)
	if st := m.status(); st != nil {
		st.RecordCollect(c.Name, m.now())
	}
}

// hire selects the candidate then presses hire. Hire is not attempted when
// the selection failed.
func (m *Manager) hire(act Actuator, h HireCommand, res *TickResult) {
	name := h.Candidate.Name
	start := time.Now()
	err := act.OverrideSelection(h.Candidate)
	m.commandDone(events.CommandSelect, name, -1, err, time.Since(start), res)
	if err != nil {
		return
	}
	start = time.Now()
	err = act.Hire()
	m.commandDone(events.CommandHire, name, -1, err, time.Since(start), res)
	if err != nil {
		return
	}
	res.Hired = &h
	m.logger.Infof("hired %s (priority %d)", name, h.Priority)
	if st := m.status(); st != nil {
		st.RecordHire(name, h.Priority, m.now())
	}
}

func (m *Manager) commandDone(cmd, name string, slot int, err error, latency time.Duration, res *TickResult) {
	if m.bus != nil {
		m.bus.Publish(events.CommandEvent{Command: cmd, Retriever: name, Slot: slot, Err: err, Latency: latency})
	}
	if err == nil {
		return
	}
	cerr := &CommandError{Command: cmd, Retriever: name, Slot: slot, Err: err}
	res.Errors = append(res.Errors, cerr)
	commandFailures.WithLabelValues(cmd).Inc()
	m.logger.Errorf("host command failed: %v", cerr)
	monitoring.CaptureException(err, map[string]string{
		"module":    "dispatch_manager",
		"command":   cmd,
		"retriever": name,
	})
}

func (m *Manager) status() retrieverstatus.Store {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statusStore
}

// observe emits the decision to logs, metrics, the event bus and the log
// store. It has no influence on the decision itself.
func (m *Manager) observe(now time.Time, res TickResult) {
	dec := res.Decision
	outcome := outcomeSkipped
	if res.Ready {
		outcome = outcomeIdle
		if res.Hired != nil {
			outcome = outcomeHired
		}
		freeSlots.Set(float64(dec.FreeSlots))
	}
	ticksTotal.WithLabelValues(outcome).Inc()

	rejected := make(map[string]int)
	eligible := 0
	for _, ev := range dec.Evaluations {
		if ev.Reason == ReasonEligible {
			eligible++
			continue
		}
		rejected[string(ev.Reason)]++
		rejectedTotal.WithLabelValues(string(ev.Reason)).Inc()
	}

	hired, priority := "", 0
	if res.Hired != nil {
		hired, priority = res.Hired.Candidate.Name, res.Hired.Priority
	}
	slots := make([]int, 0, len(res.Collected))
	for _, c := range res.Collected {
		slots = append(slots, c.Slot)
	}

	if res.Ready {
		m.logger.Debugw("dispatch decision", map[string]any{
			"free_slots": dec.FreeSlots,
			"collected":  slots,
			"hired":      hired,
			"priority":   priority,
			"eligible":   eligible,
			"rejected":   rejected,
			"failures":   len(res.Errors),
		})
	}
	if m.bus != nil {
		m.bus.Publish(events.TickEvent{
			Ready:     res.Ready,
			FreeSlots: dec.FreeSlots,
			Collected: slots,
			Hired:     hired,
			Priority:  priority,
			Time:      now,
		})
	}
	if err := m.metrics.RecordDecision(metrics.DecisionRecord{
		Time:      now,
		Ready:     res.Ready,
		FreeSlots: dec.FreeSlots,
		Collected: len(res.Collected),
		Hired:     hired,
		Priority:  priority,
		Eligible:  eligible,
		Rejected:  rejected,
		Failures:  len(res.Errors),
	}); err != nil {
		m.logger.Errorf("metrics error: %v", err)
	}

	m.mu.Lock()
	store := m.store
	m.mu.Unlock()
	if store == nil || !res.Ready {
		return
	}
	if err := store.Append(context.Background(), toLogRecord(now, res)); err != nil {
		m.logger.Errorf("decision log error: %v", err)
	}
}

func toLogRecord(now time.Time, res TickResult) logging.LogRecord {
	rec := logging.LogRecord{Timestamp: now, FreeSlots: res.Decision.FreeSlots}
	for _, c := range res.Collected {
		rec.Collected = append(rec.Collected, logging.Collect{Slot: c.Slot, Name: c.Name})
	}
	if res.Hired != nil {
		rec.Hired = res.Hired.Candidate.Name
		rec.Priority = res.Hired.Priority
	}
	for _, ev := range res.Decision.Evaluations {
		rec.Evaluations = append(rec.Evaluations, logging.Evaluation{
			Name:     ev.Name,
			Reason:   string(ev.Reason),
			Priority: ev.Priority,
		})
	}
	for _, e := range res.Errors {
		rec.Errors = append(rec.Errors, e.Error())
	}
	return rec
}

// Close releases resources held by the manager.
func (m *Manager) Close() error {
	if m.bus != nil {
		m.bus.Close()
	}
	m.mu.Lock()
	store := m.store
	m.store = nil
	m.mu.Unlock()
	if store != nil {
		return store.Close()
	}
	return nil
}
