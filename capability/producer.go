// Copyright (C) 2026 Michael J. Fromberger. All Rights Reserved.

package capability

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/creachadair/kpal"
	"github.com/creachadair/kpal/buffer"
	"go.uber.org/zap"
)

// EventProduced is the type of the event sent by Producer.Put after data are
// written to the buffer. Its payload is a Produced value.
const EventProduced kpal.EventType = "produced"

// Produced is the payload of an EventProduced event.
type Produced struct {
	Buffer string // the name of the shared buffer
	Slot   int    // the slot of the first item written
	Items  int    // the number of items written
}

// Producer is a capability for a device that produces sample data into a
// shared ring buffer. The peripheral owns the buffer; other processes may
// attach to it by name with buffer.Attach.
//
// Build parameters:
//
//   - capacity: the buffer size in bytes (default 1024)
//   - format: the element format (default int16)
//   - shape: the item dimensions, comma-separated; empty for scalar items
//   - shm_name: the shared buffer name; empty to generate a unique name
type Producer struct {
	ring *buffer.Ring
	log  *zap.Logger
}

// Params implements a method of the [kpal.Capability] interface.
func (*Producer) Params() []kpal.Param {
	return []kpal.Param{
		{Name: "capacity", Kind: kpal.KindInt, Default: kpal.Int(1024), Help: "Buffer size in bytes"},
		{Name: "format", Kind: kpal.KindText, Default: kpal.Text(buffer.Int16.String()), Help: "Element format"},
		{Name: "shape", Kind: kpal.KindText, Help: "Item dimensions, comma-separated"},
		{Name: "shm_name", Kind: kpal.KindText, Help: "Shared buffer name"},
	}
}

// Build implements a method of the [kpal.Capability] interface.
func (c *Producer) Build(_ context.Context, p *kpal.Peripheral, args kpal.Args) error {
	format, err := buffer.ParseFormat(args.Text("format"))
	if err != nil {
		return err
	}
	shape, err := ParseShape(args.Text("shape"))
	if err != nil {
		return err
	}
	r, err := buffer.New(buffer.Config{
		Name:          args.Text("shm_name"),
		CapacityBytes: int(args.Int("capacity")),
		Shape:         shape,
		Format:        format,
	})
	if err != nil {
		return err
	}
	c.ring = r
	c.log = p.Logger()
	c.log.Info("created buffer",
		zap.String("buffer", r.Name()),
		zap.Int("capacity", r.Capacity()),
		zap.Stringer("format", format),
		zap.Ints("shape", shape))
	return nil
}

// Teardown implements a method of the [kpal.Capability] interface.
func (c *Producer) Teardown() error {
	if c.ring == nil {
		return nil
	}
	err := c.ring.Close()
	c.ring = nil
	return err
}

// Ring returns the buffer of c, or nil if c is not built.
func (c *Producer) Ring() *buffer.Ring { return c.ring }

// Put writes item to the buffer of c and notifies the event channel of p.
// It returns the slot of the first item written.
func (c *Producer) Put(p *kpal.Peripheral, item buffer.Item) (int, error) {
	if c.ring == nil {
		return 0, ErrNotBuilt
	}
	slot, err := c.ring.Put(item)
	if err != nil {
		return 0, err
	}
	ev := Produced{Buffer: c.ring.Name(), Slot: slot, Items: len(item.Data) / c.ring.ItemBytes()}
	if err := p.Emit(EventProduced, ev); err != nil && !errors.Is(err, kpal.ErrChannelClosed) {
		return slot, err
	} else if err != nil {
		c.log.Debug("produced event not sent", zap.Error(err))
	}
	return slot, nil
}

// ParseShape parses a comma-separated list of positive dimensions.  An empty
// string denotes a scalar shape.
func ParseShape(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	var shape []int
	for _, f := range strings.Split(s, ",") {
		d, err := strconv.Atoi(strings.TrimSpace(f))
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("%w: invalid dimension %q in shape %q", kpal.ErrInvalidArgs, f, s)
		}
		shape = append(shape, d)
	}
	return shape, nil
}
