package simulator

import (
	"context"

	"github.com/kilianp07/retrieverd/core/dispatch"
)

// Result summarizes a simulation run.
type Result struct {
	Ticks    int   `json:"ticks"`
	Hired    int   `json:"hired"`
	Failures int   `json:"failures"`
	Stats    Stats `json:"stats"`
}

// Simulate plugs game into mgr and runs n ticks, advancing clock by the
// configured tick interval after each one. It stops early when ctx is done.
func Simulate(ctx context.Context, mgr *dispatch.Manager, game *Game, clock *ManualClock, n int) Result {
	mgr.SetHost(dispatch.APISource{API: game}, game)
	var res Result
	for i := 0; i < n; i++ {
		if ctx.Err() != nil {
			break
		}
		tick := mgr.Tick(ctx)
		res.Ticks++
		if tick.Hired != nil {
			res.Hired++
		}
		res.Failures += len(tick.Errors)
		clock.Advance(game.cfg.TickInterval())
	}
	res.Stats = game.Stats()
	return res
}
