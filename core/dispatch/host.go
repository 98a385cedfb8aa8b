package dispatch

import (
	"context"
	"errors"
	"time"

	"github.com/kilianp07/retrieverd/core/model"
)

// ErrNotReady is returned by a StateSource that has no host state yet.
var ErrNotReady = errors.New("dispatch: host state not ready")

// DispatchAPI is the read side of the game host.
type DispatchAPI interface {
	AvailableSlots() int
	InProgressRetrievers() []model.InProgress
	AvailableRetrievers() []model.Candidate
	TotalCredits() float64
	TotalUridium() float64
}

// Actuator performs the UI actions on the host. OverrideSelection is always
// followed by Hire for the same decision.
type Actuator interface {
	Collect(slot int) error
	OverrideSelection(c model.Candidate) error
	Hire() error
}

// StateSource supplies the snapshot a tick decides on.
type StateSource interface {
	Snapshot(ctx context.Context) (model.Snapshot, error)
}

// APISource adapts a DispatchAPI to a StateSource.
type APISource struct {
	API DispatchAPI
}

// Snapshot samples the API. A nil API is not ready.
func (s APISource) Snapshot(ctx context.Context) (model.Snapshot, error) {
	if s.API == nil {
		return model.Snapshot{}, ErrNotReady
	}
	if err := ctx.Err(); err != nil {
		return model.Snapshot{}, err
	}
	return model.Snapshot{
		FreeSlots:  s.API.AvailableSlots(),
		InProgress: s.API.InProgressRetrievers(),
		Available:  s.API.AvailableRetrievers(),
		Balances: model.Balances{
			model.ResourceCredits: s.API.TotalCredits(),
			model.ResourceUridium: s.API.TotalUridium(),
		},
		TakenAt: time.Now(),
	}, nil
}
