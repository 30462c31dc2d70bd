// Copyright (C) 2026 Michael J. Fromberger. All Rights Reserved.

package buffer

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"
)

// A Format describes the encoding of the elements of an item, and thereby
// the number of bits each element occupies in a buffer.
type Format byte

const (
	Mono8   Format = iota + 1 // unsigned 8-bit pixels
	Mono12p                   // unsigned 12-bit pixels, two packed into 3 bytes
	Mono16                    // unsigned 16-bit pixels
	Int16                     // signed 16-bit samples
	Float32                   // IEEE 754 single precision
	Float64                   // IEEE 754 double precision
)

var formatNames = [...]string{
	Mono8:   "mono8",
	Mono12p: "mono12p",
	Mono16:  "mono16",
	Int16:   "int16",
	Float32: "float32",
	Float64: "float64",
}

// Bits reports the width of one element in f, in bits. It returns 0 for an
// unknown format.
func (f Format) Bits() int {
	switch f {
	case Mono8:
		return 8
	case Mono12p:
		return 12
	case Mono16, Int16:
		return 16
	case Float32:
		return 32
	case Float64:
		return 64
	}
	return 0
}

// Valid reports whether f is a known format.
func (f Format) Valid() bool { return f.Bits() != 0 }

func (f Format) String() string {
	if f.Valid() {
		return formatNames[f]
	}
	return fmt.Sprintf("Format(%d)", byte(f))
}

// ParseFormat returns the Format whose name matches s, ignoring case.
func ParseFormat(s string) (Format, error) {
	for f, name := range formatNames {
		if name != "" && strings.EqualFold(name, s) {
			return Format(f), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
}

// An Item is a unit of binary sample data in a specific format.  The data
// are encoded little-endian; Mono12p data are packed two pixels per three
// bytes in the GenICam layout.
type Item struct {
	Format Format
	Data   []byte
}

// Elements reports the number of whole elements encoded in the data of it.
func (it Item) Elements() int {
	bits := it.Format.Bits()
	if bits == 0 {
		return 0
	}
	return len(it.Data) * 8 / bits
}

// Mono8Item constructs a Mono8 item from the given pixels.
func Mono8Item(vs ...uint8) Item {
	return Item{Format: Mono8, Data: append([]byte(nil), vs...)}
}

// Mono12pItem constructs a packed Mono12p item from the given pixels.  Only
// the low 12 bits of each value are kept. Pixels are packed in pairs, so
// Mono12pItem panics if len(vs) is odd.
func Mono12pItem(vs ...uint16) Item {
	if len(vs)%2 != 0 {
		panic(fmt.Sprintf("buffer: mono12p packs pixels in pairs, got %d", len(vs)))
	}
	buf := make([]byte, 0, len(vs)/2*3)
	for i := 0; i < len(vs); i += 2 {
		p0, p1 := vs[i]&0xfff, vs[i+1]&0xfff
		buf = append(buf, byte(p0), byte(p0>>8)|byte(p1<<4), byte(p1>>4))
	}
	return Item{Format: Mono12p, Data: buf}
}

// Mono16Item constructs a Mono16 item from the given pixels.
func Mono16Item(vs ...uint16) Item {
	buf := make([]byte, 0, 2*len(vs))
	for _, v := range vs {
		buf = binary.LittleEndian.AppendUint16(buf, v)
	}
	return Item{Format: Mono16, Data: buf}
}

// Int16Item constructs an Int16 item from the given samples.
func Int16Item(vs ...int16) Item {
	buf := make([]byte, 0, 2*len(vs))
	for _, v := range vs {
		buf = binary.LittleEndian.AppendUint16(buf, uint16(v))
	}
	return Item{Format: Int16, Data: buf}
}

// Float32Item constructs a Float32 item from the given samples.
func Float32Item(vs ...float32) Item {
	buf := make([]byte, 0, 4*len(vs))
	for _, v := range vs {
		buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(v))
	}
	return Item{Format: Float32, Data: buf}
}

// Float64Item constructs a Float64 item from the given samples.
func Float64Item(vs ...float64) Item {
	buf := make([]byte, 0, 8*len(vs))
	for _, v := range vs {
		buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(v))
	}
	return Item{Format: Float64, Data: buf}
}

// Uint8s decodes the elements of a Mono8 item.
func (it Item) Uint8s() []uint8 {
	it.mustBe(Mono8)
	return append([]uint8(nil), it.Data...)
}

// Uint16s decodes the elements of a Mono16 or Mono12p item.
func (it Item) Uint16s() []uint16 {
	switch it.Format {
	case Mono16:
		out := make([]uint16, len(it.Data)/2)
		for i := range out {
			out[i] = binary.LittleEndian.Uint16(it.Data[2*i:])
		}
		return out
	case Mono12p:
		out := make([]uint16, 0, it.Elements())
		d := it.Data
		for len(d) >= 3 {
			out = append(out, uint16(d[0])|uint16(d[1]&0x0f)<<8, uint16(d[1]>>4)|uint16(d[2])<<4)
			d = d[3:]
		}
		return out
	}
	panic(fmt.Sprintf("buffer: cannot decode %v as uint16", it.Format))
}

// Int16s decodes the elements of an Int16 item.
func (it Item) Int16s() []int16 {
	it.mustBe(Int16)
	out := make([]int16, len(it.Data)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(it.Data[2*i:]))
	}
	return out
}

// Float32s decodes the elements of a Float32 item.
func (it Item) Float32s() []float32 {
	it.mustBe(Float32)
	out := make([]float32, len(it.Data)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(it.Data[4*i:]))
	}
	return out
}

// Float64s decodes the elements of a Float64 item.
func (it Item) Float64s() []float64 {
	it.mustBe(Float64)
	out := make([]float64, len(it.Data)/8)
	for i := range out {
		out[i] = math.Float64frombits(binary.LittleEndian.Uint64(it.Data[8*i:]))
	}
	return out
}

func (it Item) mustBe(f Format) {
	if it.Format != f {
		panic(fmt.Sprintf("buffer: cannot decode %v as %v", it.Format, f))
	}
}
