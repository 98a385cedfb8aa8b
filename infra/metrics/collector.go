package metrics

import (
	"context"
	"time"

	"github.com/kilianp07/retrieverd/core/events"
	coremetrics "github.com/kilianp07/retrieverd/core/metrics"
	"github.com/kilianp07/retrieverd/internal/eventbus"
)

// StartEventCollector subscribes to the event bus and records host commands
// on sinks implementing CommandRecorder. It stops when the context is canceled.
func StartEventCollector(ctx context.Context, bus eventbus.EventBus, sink coremetrics.MetricsSink) {
	if bus == nil || sink == nil {
		return
	}
	rec, ok := sink.(coremetrics.CommandRecorder)
	if !ok {
		return
	}
	sub := bus.Subscribe()
	go func() {
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				e, ok := ev.(events.CommandEvent)
				if !ok {
					continue
				}
				errStr := ""
				if e.Err != nil {
					errStr = e.Err.Error()
				}
				_ = rec.RecordCommand(coremetrics.CommandRecord{
					Command:   e.Command,
					Retriever: e.Retriever,
					Slot:      e.Slot,
					Success:   e.Err == nil,
					Error:     errStr,
					Latency:   e.Latency,
					Time:      time.Now(),
				})
			}
		}
	}()
}
