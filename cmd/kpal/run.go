// Copyright (C) 2026 Michael J. Fromberger. All Rights Reserved.

package main

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/creachadair/command"
	"github.com/creachadair/kpal"
	"github.com/creachadair/kpal/buffer"
	"github.com/creachadair/kpal/capability"
	"github.com/creachadair/kpal/catalog"
	"github.com/creachadair/kpal/internal/config"
	"github.com/creachadair/taskgroup"
	"go.uber.org/zap"
)

func runCmd(env *command.Env, path string) error {
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	log, err := newLogger(cfg.Level())
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	d := newDaemon(log, plugins)
	if err := d.setup(ctx, cfg); err != nil {
		return errors.Join(err, d.stop(cfg.ShutdownTimeout))
	}
	if runFlags.DryRun {
		log.Info("dry run complete", zap.Strings("peripherals", d.core.Names()))
		return d.stop(cfg.ShutdownTimeout)
	}
	d.startProducers(ctx, cfg)
	log.Info("running", zap.Strings("peripherals", d.core.Names()))

	<-ctx.Done()
	log.Info("received signal, shutting down")
	return d.stop(cfg.ShutdownTimeout)
}

// A daemon manages a core and the periodic producers for its peripherals.
type daemon struct {
	log   *zap.Logger
	cat   catalog.Catalog
	core  *kpal.Core
	loops *taskgroup.Group
}

func newDaemon(log *zap.Logger, cat catalog.Catalog) *daemon {
	d := &daemon{
		log:   log,
		cat:   cat,
		core:  kpal.New(&kpal.Options{Logger: log}),
		loops: taskgroup.New(nil),
	}
	d.core.HandleEvent(capability.EventProduced, func(_ context.Context, ev kpal.Event) error {
		p := ev.Payload.(capability.Produced)
		d.log.Debug("data produced", zap.String("peripheral", ev.Source),
			zap.String("buffer", p.Buffer), zap.Int("slot", p.Slot), zap.Int("items", p.Items))
		return nil
	})
	return d
}

// setup builds the peripherals of cfg in order and sets their initial
// attribute values. It stops at the first error.
func (d *daemon) setup(ctx context.Context, cfg *config.Config) error {
	for _, pc := range cfg.Peripherals {
		typ := d.cat.Lookup(pc.Type)
		if typ == nil {
			return fmt.Errorf("peripheral %q: %w: %q", pc.Name, catalog.ErrUnknownType, pc.Type)
		}
		args, err := kpal.ParseArgs(typ.Params(), pc.Args)
		if err != nil {
			return fmt.Errorf("peripheral %q: %w", pc.Name, err)
		}
		if _, err := d.cat.Build(ctx, d.core, pc.Type, pc.Name, args); err != nil {
			return err
		}
		for _, aname := range slices.Sorted(maps.Keys(pc.Attributes)) {
			if err := d.setAttr(ctx, typ, pc.Name, aname, pc.Attributes[aname]); err != nil {
				return fmt.Errorf("peripheral %q: %w", pc.Name, err)
			}
		}
	}
	return nil
}

func (d *daemon) setAttr(ctx context.Context, typ *kpal.Type, pname, aname, text string) error {
	a := typ.Attribute(aname)
	if a == nil {
		return fmt.Errorf("%w: %q", kpal.ErrUnknownAttribute, aname)
	}
	kind := a.Kind
	if kind == kpal.KindInvalid {
		kind = kpal.KindText
	}
	v, err := kpal.ParseValue(kind, text)
	if err != nil {
		return fmt.Errorf("attribute %q: %w", aname, err)
	}
	if err := d.core.Set(ctx, pname, aname, v); err != nil {
		return err
	}
	d.log.Info("attribute set", zap.String("peripheral", pname), zap.String("attribute", aname), zap.Stringer("value", v))
	return nil
}

// startProducers starts a loop for each peripheral of cfg with a produce
// interval, which runs until ctx ends or the peripheral is shut down.
func (d *daemon) startProducers(ctx context.Context, cfg *config.Config) {
	for _, pc := range cfg.Peripherals {
		if pc.ProduceInterval <= 0 {
			continue
		}
		d.loops.Go(func() error {
			d.produce(ctx, pc.Name, pc.ProduceInterval)
			return nil
		})
	}
}

func (d *daemon) produce(ctx context.Context, pname string, every time.Duration) {
	log := d.log.With(zap.String("peripheral", pname))
	log.Info("producer started", zap.Duration("interval", every))
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
		err := d.core.Produce(ctx, pname)
		switch {
		case err == nil:
		case errors.Is(err, kpal.ErrShutdown), errors.Is(err, kpal.ErrUnknownPeripheral), errors.Is(err, kpal.ErrNotSupported):
			log.Info("producer stopped", zap.Error(err))
			return
		case ctx.Err() != nil:
			return
		default:
			log.Warn("produce failed", zap.Error(err))
		}
	}
}

// stop shuts down the core within the given timeout and waits for the
// producer loops to exit. Any ring buffer still held by a peripheral that
// did not shut down in time is released, so no shared segment outlives the
// process.
func (d *daemon) stop(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	err := d.core.Shutdown(ctx)
	d.loops.Wait()
	if cerr := buffer.CloseAll(); cerr != nil {
		err = errors.Join(err, fmt.Errorf("release buffers: %w", cerr))
	}
	d.log.Info("shutdown complete", zap.Stringer("metrics", d.core.Metrics()), zap.Error(err))
	return err
}
