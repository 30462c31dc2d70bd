// Copyright (C) 2022 Michael J. Fromberger. All Rights Reserved.

// Package kpaltest provides support code for testing cores and peripherals.
package kpaltest

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/creachadair/kpal"
	"go.uber.org/zap/zaptest"
)

// ShutdownTimeout bounds the shutdown of a Core constructed by NewCore.
const ShutdownTimeout = 5 * time.Second

// NewCore constructs a new Core that logs to t, and registers a cleanup that
// shuts it down and reports any error to t.
func NewCore(t testing.TB) *kpal.Core {
	t.Helper()
	c := kpal.New(&kpal.Options{Logger: zaptest.NewLogger(t)})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		if err := c.Shutdown(ctx); err != nil {
			t.Errorf("Core shutdown: %v", err)
		}
	})
	return c
}

// MustBuild builds a peripheral on c, and fails t if the build fails.
func MustBuild(t testing.TB, c *kpal.Core, typ *kpal.Type, name string, args kpal.Args) *kpal.Peripheral {
	t.Helper()
	p, err := c.Build(t.Context(), typ, name, args)
	if err != nil {
		t.Fatalf("Build %s %q: %v", typ.Name(), name, err)
	}
	return p
}

// Counter is the driver of the CounterType peripheral. Its "count" attribute
// is updated non-atomically, so concurrent updates that were not serialized
// lose increments and are recorded as overlaps.
type Counter struct {
	n        int64
	active   atomic.Int32
	overlaps atomic.Int32
}

// Capabilities implements a method of the [kpal.Driver] interface.
func (*Counter) Capabilities() []kpal.Capability { return nil }

// Overlaps reports the number of accessor calls that ran concurrently with
// another accessor call of the same counter.
func (c *Counter) Overlaps() int { return int(c.overlaps.Load()) }

func (c *Counter) enter() func() {
	if c.active.Add(1) > 1 {
		c.overlaps.Add(1)
	}
	return func() { c.active.Add(-1) }
}

func counter(p *kpal.Peripheral) *Counter { return p.Driver().(*Counter) }

// CounterType is a peripheral type with an integer "count" attribute that
// can be read and written, and a write-only "incr" attribute that adds its
// value to the count.
var CounterType = kpal.MustDefine(kpal.TypeSpec{
	Name: "counter",
	Help: "A counter for testing serialization of attribute access",
	New:  func() kpal.Driver { return new(Counter) },
	Attributes: []kpal.Attribute{{
		Name:        "count",
		Description: "The current count",
		Kind:        kpal.KindInt,
		Get: func(_ context.Context, p *kpal.Peripheral) (kpal.Value, error) {
			c := counter(p)
			defer c.enter()()
			return kpal.Int(c.n), nil
		},
		Set: func(_ context.Context, p *kpal.Peripheral, v kpal.Value) error {
			c := counter(p)
			defer c.enter()()
			c.n = v.Int()
			return nil
		},
	}, {
		Name:        "incr",
		Description: "Add the value to the count",
		Kind:        kpal.KindInt,
		Set: func(_ context.Context, p *kpal.Peripheral, v kpal.Value) error {
			c := counter(p)
			defer c.enter()()
			n := c.n
			runtime.Gosched()
			c.n = n + v.Int()
			return nil
		},
	}},
})

// Recorder is a capability that records its build and teardown steps in a
// shared log, for testing build ordering and failure handling.
type Recorder struct {
	Tag       string // label for log entries
	Log       *Log   // where to record entries
	FailBuild error  // if non-nil, Build reports this error
	FailClose error  // if non-nil, Teardown reports this error

	// Declared by Params.
	Declare []kpal.Param
}

// Params implements a method of the [kpal.Capability] interface.
func (r *Recorder) Params() []kpal.Param { return r.Declare }

// Build implements a method of the [kpal.Capability] interface.
func (r *Recorder) Build(ctx context.Context, p *kpal.Peripheral, args kpal.Args) error {
	r.Log.Add("build " + r.Tag)
	return r.FailBuild
}

// Teardown implements a method of the [kpal.Capability] interface.
func (r *Recorder) Teardown() error {
	r.Log.Add("teardown " + r.Tag)
	return r.FailClose
}

// A Log is a concurrency-safe list of strings.
type Log struct {
	μ       sync.Mutex
	entries []string
}

// Add appends entry to the log.
func (g *Log) Add(entry string) {
	g.μ.Lock()
	defer g.μ.Unlock()
	g.entries = append(g.entries, entry)
}

// Entries returns a copy of the entries in the log.
func (g *Log) Entries() []string {
	g.μ.Lock()
	defer g.μ.Unlock()
	return append([]string(nil), g.entries...)
}

// ErrInjected is a sentinel error for injected test failures.
var ErrInjected = errors.New("injected failure")
