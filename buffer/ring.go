// Copyright (C) 2026 Michael J. Fromberger. All Rights Reserved.

// Package buffer implements a fixed-capacity circular store for binary sample
// data, backed by a memory region that can be shared with other processes.
//
// A [Ring] holds a fixed number of items, each of the same shape and
// [Format]. The process that creates a ring with [New] owns it and is its
// only writer. Other processes (or other parts of the same process) attach
// to the region by name with [Attach] and get a read-only view:
//
//	w, err := buffer.New(buffer.Config{
//	   Name:          "cam0",
//	   CapacityBytes: 1 << 20,
//	   Shape:         []int{480, 640},
//	   Format:        buffer.Mono16,
//	})
//	...
//	slot, err := w.Put(buffer.Mono16Item(pixels...))
//
//	r, err := buffer.Attach("cam0")
//	item := r.Item(slot)
//
// Writes never block: when the ring is full the oldest items are silently
// overwritten.
//
// # Torn reads
//
// Readers are not synchronized with the writer. A reader that copies a slot
// while the writer is overwriting it may observe a mix of old and new data.
// Consumers that cannot tolerate this must arrange their own coordination
// with the producer.
package buffer

import (
	"errors"
	"fmt"
	"runtime"
	"slices"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrSizing is reported when the requested capacity and item geometry
	// cannot describe a buffer of whole-byte items.
	ErrSizing = errors.New("invalid buffer size")

	// ErrValidation is reported by Put for an item that does not fit the
	// buffer.
	ErrValidation = errors.New("invalid item")

	// ErrReadOnly is reported by Put on a handle obtained from Attach.
	ErrReadOnly = errors.New("buffer is read-only")

	// ErrClosed is reported by operations on a closed buffer.
	ErrClosed = errors.New("buffer is closed")

	// ErrUnsupportedFormat is reported for an unknown element format.
	ErrUnsupportedFormat = errors.New("unsupported format")

	// ErrNotSupported is reported by Attach on platforms without shared
	// memory support.
	ErrNotSupported = errors.New("shared memory not supported")
)

// Config carries the parameters to construct a new Ring.
type Config struct {
	// Name identifies the shared region to readers. If empty, a unique name
	// is generated.
	Name string

	// CapacityBytes is the maximum size of the region in bytes. The actual
	// region is the largest whole number of items that fits.
	CapacityBytes int

	// Shape gives the dimensions of one item. An empty shape denotes a
	// scalar item of one element.
	Shape []int

	// Format is the encoding of item elements. It must be set.
	Format Format
}

// Ring is a circular buffer of fixed-shape items over a byte region.
//
// A Ring returned by New is the owner of its region, and its Put method must
// be called by at most one goroutine at a time. A Ring returned by Attach is
// a read-only view. The accessors of both are safe for concurrent use, also
// with Close.
//
// The owner publishes its write cursor in a small header mapped next to the
// region, so a reader sees the same Cursor and Latest as the writer.
type Ring struct {
	name     string
	shape    []int
	format   Format
	itemLen  int // bytes per item
	capacity int // items

	rg      *region
	owner   bool
	closed  atomic.Bool
	cleanup runtime.Cleanup
}

// New constructs a new zero-filled Ring with the given configuration.  The
// caller owns the resulting ring and must Close it to release the region.
func New(cfg Config) (*Ring, error) {
	itemLen, err := ItemBytes(cfg.Shape, cfg.Format)
	if err != nil {
		return nil, err
	}
	if cfg.CapacityBytes < itemLen {
		return nil, fmt.Errorf("%w: capacity %d bytes is smaller than one item (%d bytes)",
			ErrSizing, cfg.CapacityBytes, itemLen)
	}
	name := cfg.Name
	if name == "" {
		name = "kpal-" + uuid.NewString()
	} else if err := checkName(name); err != nil {
		return nil, err
	}

	capacity := cfg.CapacityBytes / itemLen
	rg, err := createRegion(name, capacity*itemLen, segmentMeta{
		Version:   metaVersion,
		Format:    cfg.Format.String(),
		Shape:     cfg.Shape,
		Capacity:  capacity,
		ItemBytes: itemLen,
	})
	if err != nil {
		return nil, err
	}
	r := &Ring{
		name:     name,
		shape:    slices.Clone(cfg.Shape),
		format:   cfg.Format,
		itemLen:  itemLen,
		capacity: capacity,
		rg:       rg,
		owner:    true,
	}
	r.cleanup = runtime.AddCleanup(r, releaseLost, rg)
	Logger().Debug("created ring buffer",
		zap.String("name", name),
		zap.Int("capacity", capacity),
		zap.Int("item_bytes", itemLen),
		zap.Stringer("format", cfg.Format))
	return r, nil
}

// Attach opens a read-only view of the ring buffer with the given name,
// created by another handle with New.
func Attach(name string) (*Ring, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	rg, md, err := openRegion(name)
	if err != nil {
		return nil, err
	}
	f, err := ParseFormat(md.Format)
	if err != nil {
		rg.release()
		return nil, err
	}
	r := &Ring{
		name:     name,
		shape:    md.Shape,
		format:   f,
		itemLen:  md.ItemBytes,
		capacity: md.Capacity,
		rg:       rg,
	}
	r.cleanup = runtime.AddCleanup(r, releaseLost, rg)
	return r, nil
}

// releaseLost is the cleanup for a ring that became unreachable without
// being closed.
func releaseLost(rg *region) {
	if err := rg.release(); err != nil {
		Logger().Warn("releasing unclosed ring buffer", zap.String("path", rg.path), zap.Error(err))
	}
}

// ItemBytes reports the number of bytes occupied by one item of the given
// shape and format. It reports ErrSizing if the item does not occupy a whole
// number of bytes.
func ItemBytes(shape []int, f Format) (int, error) {
	if !f.Valid() {
		return 0, fmt.Errorf("%w: %w: %v", ErrSizing, ErrUnsupportedFormat, f)
	}
	elts := 1
	for _, d := range shape {
		if d <= 0 {
			return 0, fmt.Errorf("%w: invalid shape %v", ErrSizing, shape)
		}
		elts *= d
	}
	bits := elts * f.Bits()
	if bits%8 != 0 {
		return 0, fmt.Errorf("%w: %d elements of %v (%d bits) are not byte aligned",
			ErrSizing, elts, f, bits)
	}
	return bits / 8, nil
}

// SizeFor reports the size in bytes of a region holding exactly n items of
// the given shape and format.
func SizeFor(n int, shape []int, f Format) (int, error) {
	itemLen, err := ItemBytes(shape, f)
	if err != nil {
		return 0, err
	}
	return n * itemLen, nil
}

func checkName(name string) error {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return fmt.Errorf("invalid buffer name %q", name)
	}
	return nil
}

// Name reports the name by which readers attach to r.
func (r *Ring) Name() string { return r.name }

// Capacity reports the maximum number of items r holds.
func (r *Ring) Capacity() int { return r.capacity }

// ItemBytes reports the size of one item of r in bytes.
func (r *Ring) ItemBytes() int { return r.itemLen }

// Len reports the length of the region of r in bytes.
func (r *Ring) Len() int { return r.capacity * r.itemLen }

// Shape reports the shape of one item of r.
func (r *Ring) Shape() []int { return slices.Clone(r.shape) }

// Format reports the element format of r.
func (r *Ring) Format() Format { return r.format }

// Owner reports whether r is the writable owner of its region.
func (r *Ring) Owner() bool { return r.owner }

// Cursor reports the index of the next slot to be written by the owner of
// r. After r is closed, it reports the cursor at the time of closing.
func (r *Ring) Cursor() int {
	r.rg.μ.RLock()
	defer r.rg.μ.RUnlock()
	return int(r.rg.loadCursor())
}

// Put copies item into r starting at the current cursor, and reports the
// slot at which the first item was written.  The data of item must be a
// whole number of items in the format of r, and no longer than the region.
// When the write runs past the end of the region it wraps to the beginning,
// overwriting the oldest data. An empty item is a no-op.
//
// If Put reports an error, r is not modified.
func (r *Ring) Put(item Item) (int, error) {
	if !r.owner {
		return 0, ErrReadOnly
	}
	if item.Format != r.format {
		return 0, fmt.Errorf("%w: item format %v does not match buffer format %v",
			ErrValidation, item.Format, r.format)
	}
	r.rg.μ.RLock()
	defer r.rg.μ.RUnlock()
	mem := r.rg.mem
	if mem == nil {
		return 0, ErrClosed
	}
	cur := int(r.rg.cursor.Load())
	n := len(item.Data)
	switch {
	case n == 0:
		return cur, nil
	case n > len(mem):
		return 0, fmt.Errorf("%w: item of %d bytes exceeds buffer of %d bytes", ErrValidation, n, len(mem))
	case n%r.itemLen != 0:
		return 0, fmt.Errorf("%w: %d bytes is not a whole number of %d-byte items", ErrValidation, n, r.itemLen)
	}

	off := cur * r.itemLen
	if tail := len(mem) - off; n <= tail {
		copy(mem[off:], item.Data)
	} else {
		copy(mem[off:], item.Data[:tail])
		copy(mem, item.Data[tail:])
	}
	r.rg.cursor.Store(int64((cur + n/r.itemLen) % r.capacity))
	return cur, nil
}

// Slot returns a copy of the bytes of the item at slot i of r, with i taken
// modulo the capacity of r. It returns nil if r is closed.
func (r *Ring) Slot(i int) []byte {
	r.rg.μ.RLock()
	defer r.rg.μ.RUnlock()
	return r.slotLocked(i)
}

func (r *Ring) slotLocked(i int) []byte {
	if r.rg.mem == nil {
		return nil
	}
	i %= r.capacity
	if i < 0 {
		i += r.capacity
	}
	off := i * r.itemLen
	return slices.Clone(r.rg.mem[off : off+r.itemLen])
}

// Item returns a copy of the item at slot i of r. The item has no data if r
// is closed.
func (r *Ring) Item(i int) Item { return Item{Format: r.format, Data: r.Slot(i)} }

// Latest returns a copy of the item most recently written by the owner of r,
// that is, the item in the slot before the cursor. The item has no data if r
// is closed.
func (r *Ring) Latest() Item {
	r.rg.μ.RLock()
	defer r.rg.μ.RUnlock()
	return Item{Format: r.format, Data: r.slotLocked(int(r.rg.loadCursor()) - 1)}
}

// Snapshot returns a copy of the entire region of r in slot order, or nil if
// r is closed.
func (r *Ring) Snapshot() []byte {
	r.rg.μ.RLock()
	defer r.rg.μ.RUnlock()
	return slices.Clone(r.rg.mem)
}

// Close releases the view of r. If r is the owner, it also removes the
// shared region so that no OS resources are leaked. Closing an already
// closed ring does nothing and returns nil.
func (r *Ring) Close() error {
	if r.closed.Swap(true) {
		Logger().Debug("ring buffer already closed", zap.String("name", r.name))
		return nil
	}
	r.cleanup.Stop()
	return r.rg.release()
}
