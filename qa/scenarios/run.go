package scenarios

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kilianp07/retrieverd/core/dispatch"
	"github.com/kilianp07/retrieverd/core/model"
	"github.com/kilianp07/retrieverd/infra/logger"
	"github.com/kilianp07/retrieverd/infra/metrics"
	"github.com/kilianp07/retrieverd/internal/eventbus"
)

var errRejected = errors.New("rejected by scenario")

// host serves the snapshot of the current tick and records the commands.
type host struct {
	snap     model.Snapshot
	fail     map[string]bool
	commands []string
}

func (h *host) Snapshot(ctx context.Context) (model.Snapshot, error) {
	return h.snap, ctx.Err()
}

func (h *host) do(action, cmd string) error {
	h.commands = append(h.commands, cmd)
	if h.fail[action] {
		return errRejected
	}
	return nil
}

func (h *host) Collect(slot int) error { return h.do("collect", fmt.Sprintf("collect:%d", slot)) }
func (h *host) OverrideSelection(c model.Candidate) error {
	return h.do("select", "select:"+c.Name)
}
func (h *host) Hire() error { return h.do("hire", "hire") }

// RunScenario plays every tick of sc through a dispatch manager and checks
// the expected outcome of each.
func RunScenario(t *testing.T, sc *Scenario) {
	t.Helper()
	prefs, err := sc.Preferences()
	if err != nil {
		t.Fatalf("preferences: %v", err)
	}
	reg := prometheus.NewRegistry()
	sink, err := metrics.NewPromSinkWithRegistry(reg)
	if err != nil {
		t.Fatalf("prom sink: %v", err)
	}

	h := &host{fail: make(map[string]bool)}
	for _, a := range sc.FailCommands {
		h.fail[a] = true
	}
	bus := eventbus.New()
	mgr, err := dispatch.NewManager(h, h, sink, bus, logger.NopLogger{})
	if err != nil {
		t.Fatalf("manager: %v", err)
	}
	defer mgr.Close()
	mgr.SetPreferences(prefs)

	hires := 0
	for i, td := range sc.Ticks {
		h.snap = td.Snapshot
		res := mgr.Tick(context.Background())
		if !res.Ready {
			t.Fatalf("tick %d: manager not ready", i)
		}

		var slots []int
		for _, c := range res.Decision.Collect {
			slots = append(slots, c.Slot)
		}
		if fmt.Sprint(slots) != fmt.Sprint(td.Expected.Collect) {
			t.Errorf("tick %d: collected %v, want %v", i, slots, td.Expected.Collect)
		}

		hired := ""
		if res.Decision.Hire != nil {
			hired = res.Decision.Hire.Candidate.Name
		}
		if hired != td.Expected.Hire {
			t.Errorf("tick %d: hired %q, want %q", i, hired, td.Expected.Hire)
		}
		if res.Hired != nil {
			hires++
		}
		if len(res.Errors) != td.Expected.Errors {
			t.Errorf("tick %d: %d command errors, want %d", i, len(res.Errors), td.Expected.Errors)
		}
	}

	if got := countHires(t, reg); got != hires {
		t.Errorf("retriever_hires_total = %d, want %d", got, hires)
	}
}

func countHires(t *testing.T, g prometheus.Gatherer) int {
	t.Helper()
	families, err := g.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	total := 0.0
	for _, mf := range families {
		if mf.GetName() != "retriever_hires_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			total += m.GetCounter().GetValue()
		}
	}
	return int(total)
}
