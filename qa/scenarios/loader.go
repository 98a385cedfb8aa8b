package scenarios

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/retrieverd/core/dispatch"
	"github.com/kilianp07/retrieverd/core/model"
)

// Expected is what one tick must produce.
type Expected struct {
	// Collect lists the slots collected, in order.
	Collect []int `yaml:"collect"`
	// Hire is the retriever hired, empty when none.
	Hire   string `yaml:"hire"`
	Errors int    `yaml:"errors"`
}

// TickDef is a host snapshot and the outcome expected for it.
type TickDef struct {
	Snapshot model.Snapshot `yaml:"snapshot"`
	Expected Expected       `yaml:"expected"`
}

type Scenario struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
	// Retrievers overrides the default preferences.
	Retrievers map[string]dispatch.PreferenceConfig `yaml:"retrievers,omitempty"`
	// FailCommands lists host actions ("collect", "select", "hire") that fail.
	FailCommands []string  `yaml:"fail_commands,omitempty"`
	Ticks        []TickDef `yaml:"ticks"`
}

// Preferences merges the overrides into the defaults.
func (s Scenario) Preferences() (dispatch.Preferences, error) {
	return dispatch.Config{Retrievers: s.Retrievers}.Preferences()
}

func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, err
	}
	if sc.Name == "" {
		return nil, fmt.Errorf("%s: scenario name is required", path)
	}
	if len(sc.Ticks) == 0 {
		return nil, fmt.Errorf("%s: scenario %s has no ticks", path, sc.Name)
	}
	return &sc, nil
}
