package config

import (
	"bytes"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/accessful-ai/webrtc-audio-processing/errors"
)

// LookupFunc reads one environment variable, like os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// LoadOptions configures the behavior of configuration loading.
type LoadOptions struct {
	// Path is an optional TOML file layered over the defaults.
	Path string

	// Lookup reads the environment. Nil means no environment is consulted.
	Lookup LookupFunc

	// SkipValidation disables validation after loading, for callers that
	// apply further overrides (command line flags) and validate afterwards.
	SkipValidation bool
}

// Load builds a Config: defaults, then the file, then the environment.
func Load(opts LoadOptions) (*Config, error) {
	cfg := Defaults()

	if opts.Path != "" {
		if err := cfg.mergeFile(opts.Path); err != nil {
			return nil, err
		}
	}

	if opts.Lookup != nil {
		cfg.ApplyEnv(opts.Lookup)
	}

	if opts.SkipValidation {
		return cfg, nil
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// mergeFile decodes a TOML file over the current values. Keys absent from the
// file keep their current value; unknown keys are rejected.
func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.InvalidConfig(fmt.Sprintf("failed to read config file %s", path), err)
	}

	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(c); err != nil {
		return errors.InvalidConfig(fmt.Sprintf("failed to parse config file %s", path), err)
	}
	return nil
}

// ApplyEnv overlays the environment variables the pipeline recognizes.
func (c *Config) ApplyEnv(lookup LookupFunc) {
	if v, ok := lookup(EnvOutDir); ok && v != "" {
		c.OutDir = v
	}
	if v, ok := lookup(EnvDeploymentTarget); ok && v != "" {
		c.DeploymentTarget = v
	}
	if v, ok := lookup(EnvTargetOS); ok && v != "" {
		c.Target.OS = v
	}
	if v, ok := lookup(EnvTargetArch); ok && v != "" {
		c.Target.Arch = v
	}
	if _, ok := lookup(EnvDeriveSerde); ok {
		c.DeriveSerde = true
	}
	if v, ok := lookup(EnvCXX); ok && v != "" {
		c.Tools.CXX = v
	}
	if v, ok := lookup(EnvAR); ok && v != "" {
		c.Tools.AR = v
	}
}

// MapLookup adapts a map to a LookupFunc, for tests and embedding callers.
func MapLookup(env map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}
