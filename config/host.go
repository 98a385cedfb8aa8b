package config

import "fmt"

const (
	HostModeMQTT = "mqtt"
	HostModeSim  = "sim"
)

// HostConfig selects how retrieverd reaches the game.
type HostConfig struct {
	// Mode is "mqtt" for a remote bridge or "sim" for the in-process simulator.
	Mode string `json:"mode"`
}

// SetDefaults applies sane defaults.
func (c *HostConfig) SetDefaults() {
	if c.Mode == "" {
		c.Mode = HostModeMQTT
	}
}

// Validate checks the mode is known.
func (c HostConfig) Validate() error {
	if c.Mode != HostModeMQTT && c.Mode != HostModeSim {
		return fmt.Errorf("unknown host mode %q", c.Mode)
	}
	return nil
}

// APIConfig defines the HTTP API settings.
type APIConfig struct {
	// Addr is the listen address. An empty address disables the API.
	Addr string `json:"addr"`
	// Token protects the API with a bearer token when set.
	Token string `json:"token"`
	// Enabled turns the API on with the default address.
	Enabled bool `json:"enabled"`
}

// SetDefaults applies sane defaults.
func (c *APIConfig) SetDefaults() {
	if c.Enabled && c.Addr == "" {
		c.Addr = ":8080"
	}
}

// Validate checks the API settings.
func (c APIConfig) Validate() error {
	if c.Token != "" && c.Addr == "" {
		return fmt.Errorf("api token set but api disabled")
	}
	return nil
}
