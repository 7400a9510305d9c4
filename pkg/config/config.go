// Package config loads the optional YAML file describing what the pipeline watches.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/m-mizutani/gleaner/pkg/adapter"
	"github.com/m-mizutani/goerr/v2"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Config is the content of the YAML file. Zero values mean "not set" so that flags can fill them.
type Config struct {
	Queries     []string `yaml:"queries"`
	Limit       int      `yaml:"limit"`
	Sort        string   `yaml:"sort"`
	Concurrency int      `yaml:"concurrency"`
	Pacing      Duration `yaml:"pacing"`
	Schedule    string   `yaml:"schedule"`
}

// Duration accepts "1s", "500ms" and so on in YAML
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return goerr.Wrap(err, "duration must be a string", goerr.V("line", node.Line))
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return goerr.Wrap(err, "invalid duration", goerr.V("value", s), goerr.V("line", node.Line))
	}
	*d = Duration(v)
	return nil
}

func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Load reads and validates the YAML file at path
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read config file", goerr.V("path", path))
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, goerr.Wrap(err, "failed to parse config file", goerr.V("path", path))
	}

	if err := cfg.Validate(); err != nil {
		return nil, goerr.Wrap(err, "invalid config file", goerr.V("path", path))
	}

	return &cfg, nil
}

// Validate checks value ranges. Unset fields are valid. Sort depends on the source and is
// checked by ValidateFor.
func (c *Config) Validate() error {
	for i, q := range c.Queries {
		if strings.TrimSpace(q) == "" {
			return goerr.New("query must not be empty", goerr.V("index", i))
		}
	}
	if c.Limit < 0 || c.Limit > adapter.MaxLimit {
		return goerr.New("limit out of range", goerr.V("limit", c.Limit), goerr.V("max", adapter.MaxLimit))
	}
	if c.Concurrency < 0 {
		return goerr.New("concurrency must not be negative", goerr.V("concurrency", c.Concurrency))
	}
	if c.Pacing < 0 {
		return goerr.New("pacing must not be negative", goerr.V("pacing", c.Pacing.Duration()))
	}
	if c.Schedule != "" {
		if _, err := ParseSchedule(c.Schedule); err != nil {
			return err
		}
	}
	return nil
}

// ValidateFor runs Validate and checks Sort against the source that will use it
func (c *Config) ValidateFor(source adapter.SourceType) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Sort != "" {
		if err := adapter.ValidateSourceSort(source, c.Sort); err != nil {
			return err
		}
	}
	return nil
}

// ParseSchedule parses a standard 5-field cron expression or a descriptor such as "@every 15m"
func ParseSchedule(spec string) (cron.Schedule, error) {
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, goerr.Wrap(err, "invalid schedule", goerr.V("schedule", spec))
	}
	return schedule, nil
}

// Merge fills the unset fields of c with the values of base. Values already set in c win.
func (c *Config) Merge(base *Config) {
	if base == nil {
		return
	}
	if len(c.Queries) == 0 {
		c.Queries = base.Queries
	}
	if c.Limit == 0 {
		c.Limit = base.Limit
	}
	if c.Sort == "" {
		c.Sort = base.Sort
	}
	if c.Concurrency == 0 {
		c.Concurrency = base.Concurrency
	}
	if c.Pacing == 0 {
		c.Pacing = base.Pacing
	}
	if c.Schedule == "" {
		c.Schedule = base.Schedule
	}
}
