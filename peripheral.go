// Copyright (C) 2026 Michael J. Fromberger. All Rights Reserved.

package kpal

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// A Peripheral is a named instance of a peripheral Type, constructed by
// Core.Build.
//
// Calls to the attribute accessors, Produce, and Shutdown of a peripheral
// are serialized by a per-peripheral lock. Different peripherals do not
// share a lock, and proceed concurrently.
type Peripheral struct {
	name   string
	typ    *Type
	events *EventChannel
	log    *zap.Logger
	lock   chan struct{} // 1-slot semaphore

	// Set by build, then fixed.
	driver Driver
	caps   []Capability

	μ     sync.Mutex
	state State
}

func newPeripheral(name string, typ *Type, events *EventChannel, log *zap.Logger) *Peripheral {
	return &Peripheral{
		name:   name,
		typ:    typ,
		events: events,
		log:    log.With(zap.String("peripheral", name), zap.String("type", typ.Name())),
		lock:   make(chan struct{}, 1),
		state:  StatePreInit,
	}
}

// Name reports the name of p.
func (p *Peripheral) Name() string { return p.name }

// Type reports the type of p.
func (p *Peripheral) Type() *Type { return p.typ }

// Driver returns the driver of p. It is nil until p begins to build.
func (p *Peripheral) Driver() Driver { return p.driver }

// Logger returns a logger annotated with the name and type of p.
func (p *Peripheral) Logger() *zap.Logger { return p.log }

// State reports the current state of p.
func (p *Peripheral) State() State {
	p.μ.Lock()
	defer p.μ.Unlock()
	return p.state
}

func (p *Peripheral) setState(next State) error {
	p.μ.Lock()
	defer p.μ.Unlock()
	if err := p.state.checkTransition(next); err != nil {
		return err
	}
	p.log.Debug("state change", zap.Stringer("from", p.state), zap.Stringer("to", next))
	p.state = next
	return nil
}

// Emit sends an event of the given type with p as its source to the event
// channel of the Core that built p.
func (p *Peripheral) Emit(etype EventType, payload any) error {
	if p.events == nil {
		return ErrChannelClosed
	}
	return p.events.Send(Event{Type: etype, Source: p.name, Payload: payload, Time: time.Now()})
}

// acquire obtains the lock of p, or reports an error if ctx ends first.
func (p *Peripheral) acquire(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case p.lock <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Peripheral) release() { <-p.lock }

// exec calls f with the lock of p held, provided p is running. The lock is
// released on every path, including a panic in f.
func (p *Peripheral) exec(ctx context.Context, what string, f func() error) error {
	if err := p.acquire(ctx); err != nil {
		return err
	}
	defer p.release()
	if s := p.State(); s != StateRunning {
		return fmt.Errorf("%w: peripheral %q is %v", ErrShutdown, p.name, s)
	}
	return recovered(what, f)
}

// Get reads the value of the named attribute of p.
func (p *Peripheral) Get(ctx context.Context, aname string) (Value, error) {
	a, err := p.attribute(aname)
	if err != nil {
		return Value{}, err
	} else if a.Get == nil {
		return Value{}, fmt.Errorf("%w: attribute %q of %q is write-only", ErrNotSupported, aname, p.name)
	}
	var v Value
	err = p.exec(ctx, "get "+aname, func() (err error) {
		v, err = a.Get(ctx, p)
		return
	})
	return v, err
}

// Set writes the value of the named attribute of p.
func (p *Peripheral) Set(ctx context.Context, aname string, v Value) error {
	a, err := p.attribute(aname)
	if err != nil {
		return err
	} else if a.Set == nil {
		return fmt.Errorf("%w: attribute %q of %q is read-only", ErrNotSupported, aname, p.name)
	}
	if a.Kind != KindInvalid {
		cv, err := v.Convert(a.Kind)
		if err != nil {
			return fmt.Errorf("attribute %q: %w", aname, err)
		}
		v = cv
	}
	return p.exec(ctx, "set "+aname, func() error { return a.Set(ctx, p, v) })
}

// Produce asks the driver of p to write a batch of sample data. It reports
// ErrNotSupported if the driver is not a Producer.
func (p *Peripheral) Produce(ctx context.Context) error {
	pd, ok := p.driver.(Producer)
	if !ok {
		return fmt.Errorf("%w: peripheral %q does not produce data", ErrNotSupported, p.name)
	}
	return p.exec(ctx, "produce", func() error { return pd.Produce(ctx, p) })
}

func (p *Peripheral) attribute(aname string) (*Attribute, error) {
	a := p.typ.Attribute(aname)
	if a == nil {
		return nil, fmt.Errorf("%w: %q has no attribute %q", ErrUnknownAttribute, p.name, aname)
	}
	return a, nil
}

// Shutdown tears down p. It waits for the lock of p, honoring ctx, then
// calls the teardown of the driver, if any, and tears down the capabilities
// of p in reverse build order. Errors from all teardown steps are combined.
//
// Shutdown reports an error wrapping ErrBadTransition if p is not running.
func (p *Peripheral) Shutdown(ctx context.Context) error {
	if err := p.acquire(ctx); err != nil {
		return err
	}
	defer p.release()
	if err := p.setState(StateShutdown); err != nil {
		return err
	}

	var errs []error
	if td, ok := p.driver.(Teardowner); ok {
		errs = append(errs, recovered("driver teardown", td.Teardown))
	}
	errs = append(errs, teardownAll(p.caps))
	p.caps = nil
	err := errors.Join(errs...)
	if err != nil {
		p.log.Warn("teardown reported errors", zap.Error(err))
	}
	return errors.Join(err, p.setState(StatePostShutdown))
}
