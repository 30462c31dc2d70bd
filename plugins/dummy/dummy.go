// Copyright (C) 2026 Michael J. Fromberger. All Rights Reserved.

// Package dummy defines a peripheral type with no hardware, for exercising a
// kpal.Core end to end.
//
// A dummy peripheral has three read-write attributes of different kinds, and
// produces a fixed pattern of alternating 0 and 1 elements into its buffer.
package dummy

import (
	"context"

	"github.com/creachadair/kpal"
	"github.com/creachadair/kpal/accessor"
	"github.com/creachadair/kpal/buffer"
	"github.com/creachadair/kpal/capability"
	"go.uber.org/zap"
)

// Type is the dummy peripheral type.
var Type = kpal.MustDefine(kpal.TypeSpec{
	Name: "dummy",
	Help: "A peripheral with no hardware",
	New:  func() kpal.Driver { return New() },
	Attributes: []kpal.Attribute{
		accessor.Field("foo", "An integer", func(d *Driver) *int64 { return &d.Foo }),
		accessor.Field("bar", "A float", func(d *Driver) *float64 { return &d.Bar }),
		accessor.Field("baz", "A string", func(d *Driver) *string { return &d.Baz }),
	},
	Params: []kpal.Param{
		{Name: "msg", Kind: kpal.KindText, Help: "A message to log when built"},
	},
})

// Driver is the driver of a dummy peripheral.
type Driver struct {
	buf capability.Producer

	Foo int64
	Bar float64
	Baz string

	Message  string // the msg argument, set by Build
	Produced int    // the number of items written
}

// Ring returns the sample buffer of d, or nil if d is not built.
func (d *Driver) Ring() *buffer.Ring { return d.buf.Ring() }

// New returns an unbuilt driver with the default attribute values.
func New() *Driver { return &Driver{Foo: 42, Bar: 42, Baz: "42"} }

// Capabilities implements the [kpal.Driver] interface.
func (d *Driver) Capabilities() []kpal.Capability { return []kpal.Capability{&d.buf} }

// Build implements the [kpal.Builder] interface.
func (d *Driver) Build(_ context.Context, p *kpal.Peripheral, args kpal.Args) error {
	d.Message = args.Text("msg")
	p.Logger().Info("dummy built", zap.String("msg", d.Message), zap.Int("capacity", d.buf.Ring().Capacity()))
	return nil
}

// Produce implements the [kpal.Producer] interface. It writes the elements
// 0, 1, 0, 1, ... in the format of the buffer, enough to fill a whole number
// of items. For scalar items, that is exactly two items.
func (d *Driver) Produce(_ context.Context, p *kpal.Peripheral) error {
	r := d.buf.Ring()
	if r == nil {
		return capability.ErrNotBuilt
	}
	item := Pattern(r.Format(), r.Shape())
	if _, err := d.buf.Put(p, item); err != nil {
		return err
	}
	d.Produced += len(item.Data) / r.ItemBytes()
	return nil
}

// Pattern returns the alternating 0, 1 pattern as an item of format f with
// the given shape. It contains one item if the shape has an even number of
// elements, otherwise two, so that consecutive calls continue the
// alternation. The geometry should be one that a Ring accepts.
func Pattern(f buffer.Format, shape []int) buffer.Item {
	n := 1
	for _, d := range shape {
		n *= d
	}
	if n%2 != 0 {
		n *= 2
	}
	vs := make([]int, n)
	for i := range vs {
		vs[i] = i % 2
	}
	return encode(f, vs)
}

func encode(f buffer.Format, vs []int) buffer.Item {
	switch f {
	case buffer.Mono8:
		return buffer.Mono8Item(convert[uint8](vs)...)
	case buffer.Mono12p:
		return buffer.Mono12pItem(convert[uint16](vs)...)
	case buffer.Mono16:
		return buffer.Mono16Item(convert[uint16](vs)...)
	case buffer.Int16:
		return buffer.Int16Item(convert[int16](vs)...)
	case buffer.Float32:
		return buffer.Float32Item(convert[float32](vs)...)
	case buffer.Float64:
		return buffer.Float64Item(convert[float64](vs)...)
	}
	panic("unsupported format " + f.String())
}

func convert[T uint8 | uint16 | int16 | float32 | float64](vs []int) []T {
	out := make([]T, len(vs))
	for i, v := range vs {
		out[i] = T(v)
	}
	return out
}
