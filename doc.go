// Copyright (C) 2022 Michael J. Fromberger. All Rights Reserved.

// Package kpal implements a runtime for hardware peripherals.
//
// A peripheral is an instance of a device type, such as a camera, a sensor,
// or an instrument on a serial line. Every peripheral exposes a uniform
// control surface of named, typed attributes, and may stream bulk sample
// data through a shared memory ring buffer (see the buffer package).
//
// # Types
//
// A peripheral [Type] combines a [Driver] constructor with a set of
// attributes and build parameters. Drivers are composed of reusable
// capabilities, such as a serial connection or a sample buffer, listed in
// the order they must be built:
//
//	var Thermometer = kpal.MustDefine(kpal.TypeSpec{
//	   Name: "thermometer",
//	   New:  func() kpal.Driver { return new(thermo) },
//	   Attributes: []kpal.Attribute{{
//	      Name: "temperature",
//	      Kind: kpal.KindFloat,
//	      Get:  readTemperature,
//	   }},
//	})
//
// [Define] merges the parameters of the capabilities and of the driver, and
// reports [ErrComposition] if two declarations of the same parameter
// disagree.
//
// # Core
//
// A [Core] is a registry of named peripherals:
//
//	c := kpal.New(nil)
//	defer c.Shutdown(ctx)
//
//	p, err := c.Build(ctx, Thermometer, "t0", kpal.Args{"url": kpal.Text("/dev/ttyUSB0")})
//	...
//	v, err := c.Get(ctx, "t0", "temperature")
//
// Build runs each capability build step in order, then the driver's own
// build step if it has one. If any step fails, the peripheral enters the
// ERROR state, every capability already built is torn down in reverse order,
// and the error reported has concrete type [*BuildError].
//
// Attribute accessors for a single peripheral never run concurrently: the
// Core holds the lock of the peripheral for the duration of each call.
// Waiting for the lock honors the context of the caller.
//
// # Events
//
// Peripherals report asynchronous activity by sending events to the
// [EventChannel] of their Core, which a single background worker delivers in
// order to the handler registered for each event type:
//
//	c.HandleEvent("produced", func(ctx context.Context, ev kpal.Event) error {
//	   log.Printf("%s wrote slot %v", ev.Source, ev.Payload)
//	   return nil
//	})
//
// Events with no handler are logged and discarded.  [Core.Shutdown] tears
// down every peripheral, sends a final shutdown event, and waits (subject to
// its context) for the worker to drain the channel and exit.
//
// # Metrics
//
// Each Core maintains a collection of metrics. Use the [Core.Metrics] method
// to obtain an [expvar.Map] containing them:
//
//   - attribute_gets: counter of attribute reads
//   - attribute_sets: counter of attribute writes
//   - attribute_errors: counter of attribute accesses reporting an error
//   - produce_calls: counter of produce requests
//   - produce_failed: counter of produce requests reporting an error
//   - events_received: counter of events taken by the worker
//   - events_handled: counter of events delivered successfully
//   - events_failed: counter of events whose handler reported an error
//   - events_dropped: counter of events with no handler
//   - peripherals_active: gauge of registered peripherals
//   - builds_succeeded: counter of successful builds
//   - builds_failed: counter of failed builds
//
// It is safe for the caller to add entries to the metrics map.
package kpal
