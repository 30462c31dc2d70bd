// Copyright (C) 2026 Michael J. Fromberger. All Rights Reserved.

package kpal

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"go.uber.org/zap"
)

// A Capability is a reusable part of a peripheral driver, such as a serial
// connection or a sample buffer. A driver lists its capabilities in the order
// they must be built.
type Capability interface {
	// Params reports the build arguments used by the capability.
	Params() []Param

	// Build acquires the resources of the capability. The args contain the
	// validated arguments for the whole peripheral.
	Build(ctx context.Context, p *Peripheral, args Args) error

	// Teardown releases the resources acquired by Build.
	Teardown() error
}

// A Driver is the device-specific state of a peripheral.
//
// A driver may also implement any of the Builder, Producer, and Teardowner
// interfaces to participate in the corresponding operations.
type Driver interface {
	// Capabilities reports the capabilities of the driver in build order.
	// The result must not depend on whether the driver has been built.
	Capabilities() []Capability
}

// A Builder is a Driver with a build step that runs after all its
// capabilities have been built.
type Builder interface {
	Build(ctx context.Context, p *Peripheral, args Args) error
}

// A Producer is a Driver that can write a batch of sample data on demand.
type Producer interface {
	Produce(ctx context.Context, p *Peripheral) error
}

// A Teardowner is a Driver with a teardown step that runs before its
// capabilities are torn down.
type Teardowner interface {
	Teardown() error
}

// TypeSpec describes a peripheral type to Define.
type TypeSpec struct {
	Name string // required
	Help string

	// New returns a new, unbuilt driver. It must not acquire any resources,
	// and is called once by Define to inspect the capabilities of the type.
	New func() Driver

	Attributes []Attribute // the attributes of the type
	Params     []Param     // build arguments used by the driver itself
}

// A Type is a peripheral type: a driver constructor together with its
// merged build parameters and its attributes.
type Type struct {
	name      string
	help      string
	newDriver func() Driver
	params    []Param
	attrs     map[string]*Attribute
	attrNames []string // sorted
}

// Define constructs a Type from spec. It merges the parameters of the driver
// capabilities, in order, with those of the driver, and reports an error
// wrapping ErrComposition if they conflict.
//
// Define panics if spec declares two attributes with the same name.
func Define(spec TypeSpec) (*Type, error) {
	if spec.Name == "" {
		return nil, &CompositionError{Reason: "empty type name"}
	} else if spec.New == nil {
		return nil, &CompositionError{Type: spec.Name, Reason: "missing driver constructor"}
	}

	t := &Type{
		name:      spec.Name,
		help:      spec.Help,
		newDriver: spec.New,
		attrs:     make(map[string]*Attribute),
	}
	for _, a := range spec.Attributes {
		if a.Name == "" {
			panic(fmt.Sprintf("type %q: attribute with empty name", spec.Name))
		} else if _, ok := t.attrs[a.Name]; ok {
			panic(fmt.Sprintf("type %q: duplicate attribute %q", spec.Name, a.Name))
		}
		t.attrs[a.Name] = &a
		t.attrNames = append(t.attrNames, a.Name)
	}
	slices.Sort(t.attrNames)

	var groups [][]Param
	for _, c := range spec.New().Capabilities() {
		groups = append(groups, c.Params())
	}
	params, err := mergeParams(spec.Name, append(groups, spec.Params)...)
	if err != nil {
		return nil, err
	}
	t.params = params
	return t, nil
}

// MustDefine is as Define, but panics on error.
func MustDefine(spec TypeSpec) *Type {
	t, err := Define(spec)
	if err != nil {
		panic(err)
	}
	return t
}

// Name reports the name of t.
func (t *Type) Name() string { return t.name }

// Help reports the description of t.
func (t *Type) Help() string { return t.help }

// Params reports the merged build parameters of t.
func (t *Type) Params() []Param { return slices.Clone(t.params) }

// Attributes reports the names of the attributes of t in sorted order.
func (t *Type) Attributes() []string { return slices.Clone(t.attrNames) }

// Attribute returns the attribute of t with the given name, or nil.
func (t *Type) Attribute(name string) *Attribute { return t.attrs[name] }

func (t *Type) String() string { return t.name }

// build runs the build pipeline for p, which must be in StatePreInit.  On
// success p is running. Otherwise p is left in StateError, every capability
// that was built is torn down in reverse order, and the error is a
// *BuildError.
func (t *Type) build(ctx context.Context, p *Peripheral, args Args) error {
	fail := func(step string, err error) error {
		return &BuildError{Type: t.name, Name: p.name, Step: step, Err: err}
	}

	args, err := checkArgs(t.params, args)
	if err != nil {
		p.setState(StateError)
		return fail("arguments", err)
	}
	if err := p.setState(StateInit); err != nil {
		return fail("init", err)
	}
	drv := t.newDriver()
	p.driver = drv

	var built []Capability
	abort := func(step string, err error) error {
		p.setState(StateError)
		if terr := teardownAll(built); terr != nil {
			p.log.Warn("teardown after failed build", zap.Error(terr))
		}
		return fail(step, err)
	}
	for i, c := range drv.Capabilities() {
		step := capabilityStep(i, c)
		if err := recovered(step, func() error { return c.Build(ctx, p, args) }); err != nil {
			return abort(step, err)
		}
		built = append(built, c)
	}
	if b, ok := drv.(Builder); ok {
		if err := recovered("driver build", func() error { return b.Build(ctx, p, args) }); err != nil {
			return abort("driver", err)
		}
	}
	p.caps = built
	return p.setState(StateRunning)
}

func capabilityStep(i int, c Capability) string {
	name := fmt.Sprintf("%T", c)
	if j := strings.LastIndex(name, "."); j >= 0 {
		name = name[j+1:]
	}
	return fmt.Sprintf("capability %d (%s)", i, strings.ToLower(name))
}

// teardownAll tears down caps in reverse order, and reports the combined
// errors of all of them.
func teardownAll(caps []Capability) error {
	var errs []error
	for i := len(caps) - 1; i >= 0; i-- {
		errs = append(errs, recovered("teardown", caps[i].Teardown))
	}
	return errors.Join(errs...)
}
