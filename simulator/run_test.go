package simulator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/retrieverd/core/dispatch"
	"github.com/kilianp07/retrieverd/infra/logger"
)

func TestSimulateHiresByPriority(t *testing.T) {
	g, clock := newTestGame(t, Config{Slots: 2, Credits: 1000, Uridium: 100, TickMS: 1000})
	mgr, err := dispatch.NewManager(nil, nil, nil, nil, logger.NopLogger{})
	require.NoError(t, err)
	mgr.SetPreferences(dispatch.DefaultPreferences())

	res := Simulate(context.Background(), mgr, g, clock, 3)
	assert.Equal(t, 3, res.Ticks)
	assert.Equal(t, 2, res.Hired)
	assert.Zero(t, res.Failures)
	// R-01 twice fills both slots; disabled kinds never run
	assert.Equal(t, map[string]int{"R-01": 2}, res.Stats.Hires)
	assert.Equal(t, 800.0, res.Stats.Credits)
}

func TestSimulateCollectsFinished(t *testing.T) {
	g, clock := newTestGame(t, Config{Slots: 1, Credits: 100, TickMS: 60_000})
	mgr, err := dispatch.NewManager(nil, nil, nil, nil, logger.NopLogger{})
	require.NoError(t, err)
	mgr.SetPreferences(dispatch.DefaultPreferences())

	res := Simulate(context.Background(), mgr, g, clock, 3)
	// tick 1 hires, tick 2 collects (slot stays busy for the snapshot), tick 3 hires again
	assert.Equal(t, 2, res.Hired)
	assert.Equal(t, 1, res.Stats.Collects)
	assert.Equal(t, 1, res.Stats.Running)
}

func TestSimulateStopsOnCancel(t *testing.T) {
	g, clock := newTestGame(t, Config{})
	mgr, err := dispatch.NewManager(nil, nil, nil, nil, logger.NopLogger{})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := Simulate(ctx, mgr, g, clock, 10)
	assert.Zero(t, res.Ticks)
}
