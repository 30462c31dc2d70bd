// Copyright (C) 2022 Michael J. Fromberger. All Rights Reserved.

// Program kpal runs and inspects kpal peripherals.
package main

import (
	"os"
	"path/filepath"

	"github.com/creachadair/command"
	"github.com/creachadair/flax"
	"github.com/creachadair/kpal"
	"github.com/creachadair/kpal/buffer"
	"github.com/creachadair/kpal/catalog"
	"github.com/creachadair/kpal/plugins/dummy"
	"github.com/creachadair/kpal/plugins/linedev"
	"github.com/creachadair/mds/value"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var rootFlags struct {
	LogLevel string `flag:"log-level,Log level (debug, info, warn, error); overrides the config"`
	Dev      bool   `flag:"dev,Use human-readable development logging"`
}

var runFlags struct {
	DryRun bool `flag:"dry-run,Build the peripherals, then shut down immediately"`
}

var readFlags struct {
	Slot int  `flag:"slot,default=-1,Slot to read (-1 for the most recent item)"`
	Meta bool `flag:"meta,Print only the buffer layout"`
}

// plugins is the catalog of peripheral types known to the program.
var plugins = catalog.New().Add(dummy.Type, linedev.Type)

func main() {
	root := &command.C{
		Name:     filepath.Base(os.Args[0]),
		Help:     "Run and inspect kpal peripherals.",
		SetFlags: command.Flags(flax.MustBind, &rootFlags),
		Commands: []*command.C{
			{
				Name:  "run",
				Usage: "<config.yaml>",
				Help: `Run the peripherals described by a configuration file.

The peripherals are built in order, their initial attributes are set,
and any with a produce interval are asked to produce data periodically.
The program runs until interrupted, then shuts down all peripherals
within the shutdown timeout of the configuration.`,
				SetFlags: command.Flags(flax.MustBind, &runFlags),
				Run:      command.Adapt(runCmd),
			},
			{
				Name: "types",
				Help: "Print the available peripheral types as JSON.",
				Run:  command.Adapt(typesCmd),
			},
			{
				Name:  "read",
				Usage: "<buffer-name>",
				Help: `Read an item from a shared buffer.

Attach to the named shared buffer of a running peripheral, and print
one item as JSON. By default the most recently written item is read.`,
				SetFlags: command.Flags(flax.MustBind, &readFlags),
				Run:      command.Adapt(readCmd),
			},
			{
				Name: "ports",
				Help: "List the serial ports of the system.",
				Run:  command.Adapt(portsCmd),
			},
			command.VersionCommand(),
			command.HelpCommand(nil),
		},
	}
	command.RunOrFail(root.NewEnv(nil).MergeFlags(true), os.Args[1:])
}

// newLogger constructs a logger at the given level, unless overridden by
// the --log-level flag. The logger is installed as the default for the kpal
// packages.
func newLogger(level zapcore.Level) (*zap.Logger, error) {
	if rootFlags.LogLevel != "" {
		lvl, err := zapcore.ParseLevel(rootFlags.LogLevel)
		if err != nil {
			return nil, err
		}
		level = lvl
	}
	cfg := value.Cond(rootFlags.Dev, zap.NewDevelopmentConfig(), zap.NewProductionConfig())
	cfg.Level = zap.NewAtomicLevelAt(level)
	log, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	kpal.SetLogger(log)
	buffer.SetLogger(log)
	return log, nil
}
