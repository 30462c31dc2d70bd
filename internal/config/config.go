// Copyright (C) 2026 Michael J. Fromberger. All Rights Reserved.

// Package config loads the configuration of the kpal daemon.
//
// A configuration is a YAML document:
//
//	log_level: info
//	shutdown_timeout: 5s
//	peripherals:
//	  - name: d0
//	    type: dummy
//	    args:
//	      msg: hello
//	      capacity: 4096
//	    attributes:
//	      foo: 7
//	    produce_interval: 100ms
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// DefaultShutdownTimeout is the shutdown timeout used when none is set.
const DefaultShutdownTimeout = 5 * time.Second

// Config is the configuration of the daemon.
type Config struct {
	LogLevel        string        `yaml:"log_level"`        // debug, info, warn, error (default info)
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"` // default 5s
	Peripherals     []Peripheral  `yaml:"peripherals"`
}

// Peripheral describes a peripheral to build at startup.
type Peripheral struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`

	// Build arguments, parsed according to the parameters of the type.
	Args map[string]string `yaml:"args,omitempty"`

	// Initial attribute values, set in order by name after the build.
	Attributes map[string]string `yaml:"attributes,omitempty"`

	// If positive, the peripheral is asked to produce data at this interval.
	ProduceInterval time.Duration `yaml:"produce_interval,omitempty"`
}

// Load reads, parses, and validates the configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse parses and validates a configuration from data.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// Validate checks c for errors, and fills in defaults for unset fields.
func (c *Config) Validate() error {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	if c.ShutdownTimeout < 0 {
		return fmt.Errorf("shutdown_timeout: negative duration %v", c.ShutdownTimeout)
	} else if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = DefaultShutdownTimeout
	}

	var errs []error
	seen := make(map[string]bool)
	for i, p := range c.Peripherals {
		switch {
		case p.Name == "":
			errs = append(errs, fmt.Errorf("peripheral %d: missing name", i))
		case seen[p.Name]:
			errs = append(errs, fmt.Errorf("peripheral %d: duplicate name %q", i, p.Name))
		}
		seen[p.Name] = true
		if p.Type == "" {
			errs = append(errs, fmt.Errorf("peripheral %d (%s): missing type", i, p.Name))
		}
		if p.ProduceInterval < 0 {
			errs = append(errs, fmt.Errorf("peripheral %d (%s): negative produce_interval", i, p.Name))
		}
	}
	return errors.Join(errs...)
}

// Level reports the logging level of c. It is valid after Validate.
func (c *Config) Level() zapcore.Level {
	lvl, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return zapcore.InfoLevel
	}
	return lvl
}
