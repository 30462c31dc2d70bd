// Copyright (C) 2026 Michael J. Fromberger. All Rights Reserved.

package kpal

import (
	"context"
	"errors"
	"expvar"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/creachadair/mds/mapset"
	"github.com/creachadair/taskgroup"
	"go.uber.org/zap"
)

// Options are optional settings for a Core. A nil *Options is ready for use
// and provides default values.
type Options struct {
	// Logger is used for all log output of the Core and its peripherals.  If
	// nil, the package default returned by Logger is used.
	Logger *zap.Logger
}

func (o *Options) logger() *zap.Logger {
	if o == nil || o.Logger == nil {
		return Logger()
	}
	return o.Logger
}

// A Core is a registry of named peripherals, together with a background
// worker that delivers events sent by those peripherals.
//
// Construct a Core with New. The methods of a Core are safe for concurrent
// use by multiple goroutines. Call Shutdown to tear down all peripherals and
// stop the worker; once shut down, a Core cannot be restarted.
type Core struct {
	log     *zap.Logger
	events  *EventChannel
	tasks   *taskgroup.Group
	metrics *coreMetrics
	ctx     context.Context // for event handlers
	cancel  context.CancelFunc
	done    chan struct{} // closed when the worker exits

	μ        sync.Mutex
	periph   map[string]*Peripheral
	building mapset.Set[string]
	pending  []*Peripheral // not torn down by an earlier Shutdown
	emux     map[EventType]EventHandler
	stopping bool
}

// New constructs a new Core and starts its event worker.
func New(opts *Options) *Core {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Core{
		log:      opts.logger(),
		events:   newEventChannel(),
		tasks:    taskgroup.New(nil),
		metrics:  newCoreMetrics(),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
		periph:   make(map[string]*Peripheral),
		building: mapset.New[string](),
		emux:     make(map[EventType]EventHandler),
	}
	c.tasks.Go(c.run)
	return c
}

// run is the event worker. It delivers events in order until it receives the
// shutdown event.
func (c *Core) run() error {
	defer close(c.done)
	for {
		ev, ok := c.events.next()
		if !ok || ev.Type == EventShutdown {
			c.log.Debug("event worker exiting", zap.Int("pending", c.events.Len()))
			return nil
		}
		c.metrics.eventRecv.Add(1)

		c.μ.Lock()
		handler, ok := c.emux[ev.Type]
		c.μ.Unlock()
		if !ok {
			c.metrics.eventDropped.Add(1)
			c.log.Warn("dropped event with no handler",
				zap.String("event", string(ev.Type)), zap.String("source", ev.Source))
			continue
		}
		err := recovered("event handler", func() error { return handler(c.ctx, ev) })
		if err != nil {
			c.metrics.eventFailed.Add(1)
			c.log.Error("event handler failed",
				zap.String("event", string(ev.Type)), zap.String("source", ev.Source), zap.Error(err))
			continue
		}
		c.metrics.eventHandled.Add(1)
	}
}

// HandleEvent registers a handler for events of the given type. It is safe
// to call this while the Core is running. Passing a nil handler removes any
// handler for the type. HandleEvent returns c to permit chaining.
//
// HandleEvent panics if etype is EventShutdown.
func (c *Core) HandleEvent(etype EventType, handler EventHandler) *Core {
	if etype == EventShutdown {
		panic("cannot handle the reserved shutdown event")
	}
	c.μ.Lock()
	defer c.μ.Unlock()
	if handler == nil {
		delete(c.emux, etype)
	} else {
		c.emux[etype] = handler
	}
	return c
}

// Events returns the event channel of c.
func (c *Core) Events() *EventChannel { return c.events }

// Submit sends ev to the event worker of c.
func (c *Core) Submit(ev Event) error { return c.events.Send(ev) }

// Metrics returns a metrics map for c. It is safe for the caller to add
// additional metrics to the map while c is active.
func (c *Core) Metrics() *expvar.Map { return c.metrics.emap }

// Build constructs a new peripheral of type typ with the given name and
// build arguments, and registers it with c.
//
// Build reports ErrDuplicateName if name is already registered, or another
// peripheral with that name is being built; in that case c is not changed.
// If the build fails, the peripheral is not registered and the error has
// concrete type *BuildError. A failed build does not affect any other
// peripheral.
func (c *Core) Build(ctx context.Context, typ *Type, name string, args Args) (_ *Peripheral, err error) {
	if name == "" {
		return nil, fmt.Errorf("%w: empty peripheral name", ErrInvalidArgs)
	}
	c.μ.Lock()
	if c.stopping {
		c.μ.Unlock()
		return nil, ErrShutdown
	} else if _, ok := c.periph[name]; ok || c.building.Has(name) {
		c.μ.Unlock()
		return nil, fmt.Errorf("%w: %q", ErrDuplicateName, name)
	}
	c.building.Add(name)
	c.μ.Unlock()

	log := c.log.With(zap.String("peripheral", name), zap.String("type", typ.Name()))
	p := newPeripheral(name, typ, c.events, c.log)
	berr := typ.build(ctx, p, args)

	c.μ.Lock()
	c.building.Remove(name)
	stopped := c.stopping
	if berr == nil && !stopped {
		c.periph[name] = p
		c.metrics.periphActive.Add(1)
	}
	c.μ.Unlock()

	if berr != nil {
		c.metrics.buildFailed.Add(1)
		log.Error("build failed", zap.Error(berr))
		return nil, berr
	} else if stopped {
		// The core was shut down while p was being built.
		return nil, errors.Join(ErrShutdown, p.Shutdown(ctx))
	}
	c.metrics.buildSucceeded.Add(1)
	log.Info("peripheral running")
	return p, nil
}

// Resolve finds the peripheral with the given name and, if aname != "", its
// attribute with that name. It does not acquire the lock of the peripheral.
func (c *Core) Resolve(pname, aname string) (*Peripheral, *Attribute, error) {
	p := c.Peripheral(pname)
	if p == nil {
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownPeripheral, pname)
	} else if aname == "" {
		return p, nil, nil
	}
	a, err := p.attribute(aname)
	if err != nil {
		return nil, nil, err
	}
	return p, a, nil
}

// Peripheral returns the registered peripheral with the given name, or nil.
func (c *Core) Peripheral(name string) *Peripheral {
	c.μ.Lock()
	defer c.μ.Unlock()
	return c.periph[name]
}

// Names returns the names of the registered peripherals in sorted order.
func (c *Core) Names() []string {
	c.μ.Lock()
	defer c.μ.Unlock()
	return slices.Sorted(maps.Keys(c.periph))
}

// Get reads the value of attribute aname of peripheral pname.  It waits for
// the lock of the peripheral, honoring ctx. A panic in the getter is
// recovered and reported as an error.
func (c *Core) Get(ctx context.Context, pname, aname string) (_ Value, err error) {
	c.metrics.attrGet.Add(1)
	defer func() {
		if err != nil {
			c.metrics.attrErr.Add(1)
		}
	}()
	p, _, err := c.Resolve(pname, aname)
	if err != nil {
		return Value{}, err
	} else if aname == "" {
		return Value{}, fmt.Errorf("%w: empty attribute name", ErrUnknownAttribute)
	}
	return p.Get(ctx, aname)
}

// Set writes v to attribute aname of peripheral pname. It waits for the lock
// of the peripheral, honoring ctx. A panic in the setter is recovered and
// reported as an error.
func (c *Core) Set(ctx context.Context, pname, aname string, v Value) (err error) {
	c.metrics.attrSet.Add(1)
	defer func() {
		if err != nil {
			c.metrics.attrErr.Add(1)
		}
	}()
	p, _, err := c.Resolve(pname, aname)
	if err != nil {
		return err
	} else if aname == "" {
		return fmt.Errorf("%w: empty attribute name", ErrUnknownAttribute)
	}
	return p.Set(ctx, aname, v)
}

// Produce asks peripheral pname to write a batch of sample data.  It reports
// ErrNotSupported if the peripheral does not produce data.
func (c *Core) Produce(ctx context.Context, pname string) (err error) {
	c.metrics.produce.Add(1)
	defer func() {
		if err != nil {
			c.metrics.produceErr.Add(1)
		}
	}()
	p, _, err := c.Resolve(pname, "")
	if err != nil {
		return err
	}
	return p.Produce(ctx)
}

// Remove tears down the peripheral with the given name and removes it from
// c. Once teardown has begun, the name is unregistered even if teardown
// reports an error. If ctx ends before teardown begins, the peripheral stays
// registered and Remove may be retried.
func (c *Core) Remove(ctx context.Context, name string) error {
	c.μ.Lock()
	p, ok := c.periph[name]
	c.μ.Unlock()
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownPeripheral, name)
	}
	err := p.Shutdown(ctx)
	if p.State() == StateRunning {
		p.log.Warn("peripheral not removed", zap.Error(err))
		return err
	}

	c.μ.Lock()
	if c.periph[name] == p {
		delete(c.periph, name)
		c.metrics.periphActive.Add(-1)
	}
	c.μ.Unlock()
	p.log.Info("peripheral removed", zap.Error(err))
	return err
}

// Shutdown tears down all registered peripherals, then stops the event
// worker and waits for it to exit. Events sent before Shutdown are delivered
// before the worker exits; later sends report ErrChannelClosed.
//
// If ctx ends before the worker exits, Shutdown cancels the context passed
// to event handlers and returns the error from ctx.
//
// A peripheral whose lock could not be acquired before ctx ended is not torn
// down. Shutdown may be called again to retry those peripherals; once all
// are torn down, subsequent calls only wait for the worker to exit.
func (c *Core) Shutdown(ctx context.Context) error {
	c.μ.Lock()
	first := !c.stopping
	c.stopping = true
	ps := c.pending
	c.pending = nil
	for _, name := range slices.Sorted(maps.Keys(c.periph)) {
		ps = append(ps, c.periph[name])
	}
	clear(c.periph)
	c.μ.Unlock()

	if first || len(ps) != 0 {
		c.log.Info("shutting down", zap.Int("peripherals", len(ps)))
	}
	var errs []error
	var left []*Peripheral
	for _, p := range ps {
		if err := p.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("peripheral %q: %w", p.name, err))
		}
		if p.State() == StateRunning {
			left = append(left, p)
		}
	}

	c.μ.Lock()
	c.pending = append(c.pending, left...)
	c.metrics.periphActive.Set(int64(len(c.pending)))
	c.μ.Unlock()
	if len(left) != 0 {
		c.log.Warn("peripherals not torn down", zap.Int("count", len(left)))
	}

	if first {
		if err := c.events.close(); err != nil {
			errs = append(errs, err)
		}
	}
	errs = append(errs, c.wait(ctx))
	return errors.Join(errs...)
}

// wait blocks until the worker has exited or ctx ends.
func (c *Core) wait(ctx context.Context) error {
	select {
	case <-c.done:
		c.cancel()
		return c.tasks.Wait()
	case <-ctx.Done():
		c.cancel()
		c.log.Warn("event worker did not exit before deadline", zap.Int("pending", c.events.Len()))
		return ctx.Err()
	}
}
