package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/retrieverd/core/dispatch"
	"github.com/kilianp07/retrieverd/core/metrics"
	"github.com/kilianp07/retrieverd/infra/mqtt"
	"github.com/kilianp07/retrieverd/simulator"
)

type Config struct {
	Host      HostConfig       `json:"host"`
	MQTT      mqtt.Config      `json:"mqtt"`
	Dispatch  dispatch.Config  `json:"dispatch"`
	Metrics   metrics.Config   `json:"metrics"`
	Logging   LoggingConfig    `json:"logging"`
	API       APIConfig        `json:"api"`
	Sentry    SentryConfig     `json:"sentry"`
	Simulator simulator.Config `json:"simulator"`
}

func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("K_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "k_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetDefaults applies the defaults of every section.
func (c *Config) SetDefaults() {
	c.Host.SetDefaults()
	c.Logging.SetDefaults()
	c.API.SetDefaults()
	c.Simulator.SetDefaults()
	if c.Host.Mode == HostModeMQTT {
		c.MQTT.SetDefaults()
	}
}

// Validate checks every section relevant to the selected host mode.
func (c Config) Validate() error {
	if err := c.Host.Validate(); err != nil {
		return err
	}
	switch c.Host.Mode {
	case HostModeMQTT:
		if err := c.MQTT.Validate(); err != nil {
			return err
		}
	case HostModeSim:
		if err := c.Simulator.Validate(); err != nil {
			return err
		}
	}
	if err := c.Dispatch.Validate(); err != nil {
		return err
	}
	if err := c.Logging.Validate(); err != nil {
		return err
	}
	return c.API.Validate()
}
