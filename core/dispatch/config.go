package dispatch

import (
	"fmt"
	"sort"
	"time"
)

// Config defines dispatch-related settings.
type Config struct {
	TickIntervalMS int                         `json:"tick_interval_ms"`
	Retrievers     map[string]PreferenceConfig `json:"retrievers"`
}

// PreferenceConfig overrides the default preference of one retriever. Unset
// fields keep their default.
type PreferenceConfig struct {
	Enabled  *bool `json:"enabled"`
	Priority *int  `json:"priority"`
}

// TickInterval returns the configured interval, one second by default.
func (c Config) TickInterval() time.Duration {
	if c.TickIntervalMS <= 0 {
		return time.Second
	}
	return time.Duration(c.TickIntervalMS) * time.Millisecond
}

// Preferences merges the configured overrides into DefaultPreferences and
// validates the result.
func (c Config) Preferences() (Preferences, error) {
	prefs := DefaultPreferences()
	names := make([]string, 0, len(c.Retrievers))
	for name := range c.Retrievers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		id, ok := LookupRetriever(name)
		if !ok {
			return nil, fmt.Errorf("dispatch config: unknown retriever %q", name)
		}
		over := c.Retrievers[name]
		p := prefs[id]
		if over.Enabled != nil {
			p.Enabled = *over.Enabled
		}
		if over.Priority != nil {
			p.Priority = *over.Priority
		}
		prefs[id] = p
	}
	if err := prefs.Validate(); err != nil {
		return nil, fmt.Errorf("dispatch config: %w", err)
	}
	return prefs, nil
}

// Validate checks the configuration without building it.
func (c Config) Validate() error {
	_, err := c.Preferences()
	return err
}
