// Package config loads engine settings from YAML.
//
// Example file:
//
//	backend: cpu
//	trace: true
//	parallel:
//	  enabled: true
//	  workers: 8
//	  min_chunk: 64
package config

import (
	"bytes"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/born-ml/dispatch/internal/parallel"
)

// Config holds engine settings.
type Config struct {
	// Backend is the name of the backend operations dispatch to.
	Backend string `yaml:"backend"`
	// Trace starts the engine with trace recording enabled.
	Trace bool `yaml:"trace"`
	// Parallel controls how the CPU backend splits kernel work.
	Parallel parallel.Config `yaml:"parallel"`
}

// Default returns the settings used when no file is given.
func Default() Config {
	return Config{
		Backend:  "cpu",
		Trace:    false,
		Parallel: parallel.DefaultConfig(),
	}
}

// Parse reads YAML on top of Default. Unknown keys are rejected.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if len(data) == 0 {
		return cfg, nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, errors.Wrap(err, "parsing config")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Load reads and parses the YAML file at path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "reading config %s", path)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, errors.WithMessage(err, path)
	}
	return cfg, nil
}

// Validate checks the settings.
func (c Config) Validate() error {
	if c.Backend == "" {
		return errors.New("config: backend must not be empty")
	}
	return errors.WithMessage(c.Parallel.Validate(), "config")
}
