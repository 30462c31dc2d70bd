// Copyright (C) 2026 Michael J. Fromberger. All Rights Reserved.

package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/creachadair/kpal/internal/config"
	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap/zapcore"
)

const testConfig = `
log_level: debug
shutdown_timeout: 2s
peripherals:
  - name: d0
    type: dummy
    args:
      msg: hello
      capacity: 4096
    attributes:
      foo: 7
      bar: 1.5
    produce_interval: 100ms
  - name: inst
    type: linedev
    args:
      url: /dev/ttyUSB0
`

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kpal.yaml")
	if err := os.WriteFile(path, []byte(testConfig), 0600); err != nil {
		t.Fatalf("Write config: %v", err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: unexpected error: %v", err)
	}
	want := &config.Config{
		LogLevel:        "debug",
		ShutdownTimeout: 2 * time.Second,
		Peripherals: []config.Peripheral{{
			Name:            "d0",
			Type:            "dummy",
			Args:            map[string]string{"msg": "hello", "capacity": "4096"},
			Attributes:      map[string]string{"foo": "7", "bar": "1.5"},
			ProduceInterval: 100 * time.Millisecond,
		}, {
			Name: "inst",
			Type: "linedev",
			Args: map[string]string{"url": "/dev/ttyUSB0"},
		}},
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("Load (-want, +got):\n%s", diff)
	}
	if got := cfg.Level(); got != zapcore.DebugLevel {
		t.Errorf("Level: got %v, want debug", got)
	}

	if _, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load missing file: got nil, want error")
	}
}

func TestDefaults(t *testing.T) {
	cfg, err := config.Parse([]byte("peripherals: []\n"))
	if err != nil {
		t.Fatalf("Parse: unexpected error: %v", err)
	}
	if cfg.LogLevel != "info" || cfg.ShutdownTimeout != config.DefaultShutdownTimeout {
		t.Errorf("Defaults: got level %q timeout %v, want info %v",
			cfg.LogLevel, cfg.ShutdownTimeout, config.DefaultShutdownTimeout)
	}
}

func TestInvalid(t *testing.T) {
	tests := []struct {
		name, input, want string
	}{
		{"Syntax", "peripherals: [", "parse config"},
		{"Level", "log_level: loud\n", "log_level"},
		{"Timeout", "shutdown_timeout: -1s\n", "shutdown_timeout"},
		{"NoName", "peripherals:\n  - type: dummy\n", "missing name"},
		{"NoType", "peripherals:\n  - name: a\n", "missing type"},
		{"Duplicate", "peripherals:\n  - {name: a, type: x}\n  - {name: a, type: x}\n", `duplicate name "a"`},
		{"Interval", "peripherals:\n  - {name: a, type: x, produce_interval: -5ms}\n", "negative produce_interval"},
		{"Unknown", "bogus: 1\n", ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := config.Parse([]byte(tc.input))
			if tc.want == "" {
				if err != nil {
					t.Errorf("Parse: unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Errorf("Parse: got %v, want error containing %q", err, tc.want)
			}
		})
	}
}
