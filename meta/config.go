// CLAUDE:SUMMARY Configuration structs (registry, state, browser) and YAML loader for domscribe.
package meta

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all domscribe configuration.
type Config struct {
	TitleSeparator string            `yaml:"title_separator"`
	BatchSize      int               `yaml:"batch_size"`
	QueueSize      int               `yaml:"queue_size"`
	Defaults       map[string]string `yaml:"defaults"`
	State          StateConfig       `yaml:"state"`
	Browser        BrowserConfig     `yaml:"browser"`
	SnapshotDB     string            `yaml:"snapshot_db"`
}

// StateConfig selects and tunes the title-state store. An empty DBPath
// keeps state in process memory.
type StateConfig struct {
	DBPath       string        `yaml:"db_path"`
	PollInterval time.Duration `yaml:"poll_interval"`
	Debounce     time.Duration `yaml:"debounce"`
}

// BrowserConfig controls the live-document attach mode.
type BrowserConfig struct {
	RemoteURL       string        `yaml:"remote_url"`
	NavigateTimeout time.Duration `yaml:"navigate_timeout"`
}

func (c *Config) defaults() {
	if c.TitleSeparator == "" {
		c.TitleSeparator = " | "
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 5
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 256
	}
	if c.State.PollInterval <= 0 {
		c.State.PollInterval = 1 * time.Second
	}
	if c.Browser.NavigateTimeout <= 0 {
		c.Browser.NavigateTimeout = 30 * time.Second
	}
}

// LoadConfigFile reads a YAML config file.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	cfg.defaults()
	return cfg, nil
}

// RegistryOptions maps the config onto construction options. Document and
// State are wired by the caller; seeds convert to the any-typed defaults
// map the facade takes.
func (c *Config) RegistryOptions() Options {
	opts := Options{
		TitleSeparator: c.TitleSeparator,
		BatchSize:      c.BatchSize,
		QueueSize:      c.QueueSize,
	}
	if len(c.Defaults) > 0 {
		opts.Defaults = make(map[string]any, len(c.Defaults))
		for k, v := range c.Defaults {
			opts.Defaults[k] = v
		}
	}
	return opts
}
