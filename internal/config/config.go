// Package config loads and validates warren.yml, the instance
// configuration: Redis connection, daemon knobs, and the subject bindings
// that map subject kinds to host tables and parent edges.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/mhollis/warren/internal/logging"
)

// Config represents the top-level warren.yml configuration.
type Config struct {
	Version  string                    `yaml:"version" validate:"required,eq=1.0"`
	Instance string                    `yaml:"instance" validate:"required"`
	Redis    RedisConfig               `yaml:"redis"`
	Engine   EngineConfig              `yaml:"engine"`
	Worker   WorkerConfig              `yaml:"worker"`
	Logging  logging.Config            `yaml:"logging"`
	Subjects map[string]SubjectBinding `yaml:"subjects" validate:"dive"`
}

// RedisConfig holds the Redis connection settings.
type RedisConfig struct {
	URL string `yaml:"url" validate:"required,uri"`
}

// EngineConfig holds engine daemon settings.
type EngineConfig struct {
	HealthAddr string `yaml:"health_addr"` // Default ":8080"
}

// WorkerConfig holds worker daemon settings.
type WorkerConfig struct {
	PollInterval string `yaml:"poll_interval"` // Go duration, default "1s"
	BatchSize    int64  `yaml:"batch_size" validate:"gte=0"`
}

// SubjectBinding maps a subject kind to a host table and its parent edges.
// Parent edges are processed in declared order during aggregation; later
// parents overwrite earlier ones.
type SubjectBinding struct {
	Table   string       `yaml:"table" validate:"required"`
	Parents []ParentEdge `yaml:"parents" validate:"dive"`
}

// ParentEdge names the subject-document field holding a parent's ID and
// the parent's subject kind.
type ParentEdge struct {
	Field string `yaml:"field" validate:"required"`
	Kind  string `yaml:"kind" validate:"required"`
}

// Load reads and validates warren.yml from the given path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", path, err)
	}

	return &cfg, nil
}

// Validate performs struct-tag validation plus cross-field checks the tags
// cannot express.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}

	// Parent edges must point at bound kinds, or aggregation would silently
	// drop whole ancestor branches.
	for kind, binding := range c.Subjects {
		for _, edge := range binding.Parents {
			if _, ok := c.Subjects[edge.Kind]; !ok {
				return fmt.Errorf("subject %q: parent kind %q is not bound", kind, edge.Kind)
			}
		}
	}

	if c.Worker.PollInterval != "" {
		if _, err := time.ParseDuration(c.Worker.PollInterval); err != nil {
			return fmt.Errorf("worker.poll_interval: %w", err)
		}
	}

	return nil
}

// Interval returns the parsed worker poll interval, defaulting to one
// second.
func (w *WorkerConfig) Interval() time.Duration {
	if w.PollInterval == "" {
		return time.Second
	}
	d, err := time.ParseDuration(w.PollInterval)
	if err != nil {
		return time.Second
	}
	return d
}

// HealthAddr returns the engine health listen address with its default.
func (e *EngineConfig) Addr() string {
	if e.HealthAddr == "" {
		return ":8080"
	}
	return e.HealthAddr
}
