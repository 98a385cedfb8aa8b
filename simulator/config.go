package simulator

import (
	"fmt"
	"time"

	"github.com/kilianp07/retrieverd/core/model"
)

// KindConfig describes a retriever kind offered by the simulated game.
type KindConfig struct {
	Name            string       `json:"name"`
	Costs           []model.Cost `json:"costs"`
	DurationSeconds float64      `json:"duration_seconds"`
	// Reward is credited when the retriever is collected.
	Reward []model.Cost `json:"reward"`
}

// Duration returns the run time of the kind.
func (k KindConfig) Duration() time.Duration {
	return time.Duration(k.DurationSeconds * float64(time.Second))
}

// Config holds parameters for the simulator.
type Config struct {
	Slots   int          `json:"slots"`
	Credits float64      `json:"credits"`
	Uridium float64      `json:"uridium"`
	Catalog []KindConfig `json:"catalog"`
	// TickMS is the simulated time elapsed between two dispatch ticks.
	TickMS int `json:"tick_ms"`
	// AckLatencyMS and DropRate shape the MQTT bridge acknowledgments.
	AckLatencyMS int     `json:"ack_latency_ms"`
	DropRate     float64 `json:"drop_rate"`
}

// DefaultCatalog is offered when no catalog is configured.
func DefaultCatalog() []KindConfig {
	return []KindConfig{
		{Name: "R-01", Costs: []model.Cost{{ResourceID: "credits", Amount: 100}}, DurationSeconds: 60, Reward: []model.Cost{{ResourceID: "credits", Amount: 180}}},
		{Name: "R-02", Costs: []model.Cost{{ResourceID: "credits", Amount: 250}}, DurationSeconds: 180, Reward: []model.Cost{{ResourceID: "credits", Amount: 500}}},
		{Name: "R-03", Costs: []model.Cost{{ResourceID: "credits", Amount: 600}}, DurationSeconds: 600, Reward: []model.Cost{{ResourceID: "credits", Amount: 1400}, {ResourceID: "uridium", Amount: 5}}},
		{Name: "ACE R-01", Costs: []model.Cost{{ResourceID: "uridium", Amount: 20}}, DurationSeconds: 300, Reward: []model.Cost{{ResourceID: "credits", Amount: 2500}}},
		{Name: "ACE R-02", Costs: []model.Cost{{ResourceID: "uridium", Amount: 50}}, DurationSeconds: 900, Reward: []model.Cost{{ResourceID: "credits", Amount: 8000}}},
	}
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.Slots == 0 {
		c.Slots = 3
	}
	if c.Credits == 0 && c.Uridium == 0 {
		c.Credits = 1000
		c.Uridium = 50
	}
	if len(c.Catalog) == 0 {
		c.Catalog = DefaultCatalog()
	}
	if c.TickMS == 0 {
		c.TickMS = 1000
	}
}

// Validate checks the simulated game is playable.
func (c Config) Validate() error {
	if c.Slots <= 0 {
		return fmt.Errorf("simulator slots must be positive")
	}
	if c.TickMS <= 0 {
		return fmt.Errorf("simulator tick_ms must be positive")
	}
	if c.DropRate < 0 || c.DropRate > 1 {
		return fmt.Errorf("simulator drop_rate must be within [0, 1]")
	}
	seen := make(map[string]bool, len(c.Catalog))
	for _, k := range c.Catalog {
		if k.Name == "" {
			return fmt.Errorf("simulator catalog entry without name")
		}
		if seen[k.Name] {
			return fmt.Errorf("simulator catalog has duplicate %s", k.Name)
		}
		seen[k.Name] = true
		if k.DurationSeconds <= 0 {
			return fmt.Errorf("simulator kind %s: duration must be positive", k.Name)
		}
		for _, cost := range append(append([]model.Cost(nil), k.Costs...), k.Reward...) {
			if _, ok := model.ParseResource(cost.ResourceID); !ok {
				return fmt.Errorf("simulator kind %s: unknown resource %q", k.Name, cost.ResourceID)
			}
		}
	}
	return nil
}

// TickInterval returns the simulated time between ticks.
func (c Config) TickInterval() time.Duration {
	return time.Duration(c.TickMS) * time.Millisecond
}
