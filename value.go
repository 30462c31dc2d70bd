// Copyright (C) 2026 Michael J. Fromberger. All Rights Reserved.

package kpal

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// A Kind identifies the type of data carried by a Value.
type Kind byte

const (
	KindInvalid Kind = iota // the zero Value
	KindBytes               // an opaque byte string
	KindFloat               // a 64-bit IEEE 754 float
	KindInt                 // a 64-bit signed integer
	KindText                // a UTF-8 string
)

var kindNames = [...]string{
	KindInvalid: "invalid",
	KindBytes:   "bytes",
	KindFloat:   "float",
	KindInt:     "int",
	KindText:    "text",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "Kind(" + strconv.Itoa(int(k)) + ")"
}

// ParseKind returns the Kind whose name is s, ignoring case.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if k != int(KindInvalid) && strings.EqualFold(name, s) {
			return Kind(k), nil
		}
	}
	return KindInvalid, fmt.Errorf("unknown kind %q", s)
}

// A Value is the data type of attributes and build arguments.  It holds
// exactly one of a byte string, a float, an integer, or a text string.  The
// zero Value is invalid and holds nothing.
//
// Values are comparable with the Equal method.
type Value struct {
	kind Kind
	b    []byte
	f    float64
	i    int64
	s    string
}

// Bytes returns a Value holding a copy of b.
func Bytes(b []byte) Value { return Value{kind: KindBytes, b: bytes.Clone(b)} }

// Float returns a Value holding f.
func Float(f float64) Value { return Value{kind: KindFloat, f: f} }

// Int returns a Value holding z.
func Int(z int64) Value { return Value{kind: KindInt, i: z} }

// Text returns a Value holding s.
func Text(s string) Value { return Value{kind: KindText, s: s} }

// ValueOf returns a Value holding v, which must be a Value, a []byte, a
// string, or a value of a built-in integer or floating-point type.
func ValueOf(v any) (Value, error) {
	switch t := v.(type) {
	case Value:
		return t, nil
	case []byte:
		return Bytes(t), nil
	case string:
		return Text(t), nil
	case int:
		return Int(int64(t)), nil
	case int8:
		return Int(int64(t)), nil
	case int16:
		return Int(int64(t)), nil
	case int32:
		return Int(int64(t)), nil
	case int64:
		return Int(t), nil
	case uint8:
		return Int(int64(t)), nil
	case uint16:
		return Int(int64(t)), nil
	case uint32:
		return Int(int64(t)), nil
	case uint:
		if uint64(t) > math.MaxInt64 {
			break
		}
		return Int(int64(t)), nil
	case uint64:
		if t > math.MaxInt64 {
			break
		}
		return Int(int64(t)), nil
	case float32:
		return Float(float64(t)), nil
	case float64:
		return Float(t), nil
	}
	return Value{}, fmt.Errorf("%w: cannot represent %T (%v) as a value", ErrInvalidArgs, v, v)
}

// MustValueOf is as ValueOf, but panics if v cannot be represented.
func MustValueOf(v any) Value {
	out, err := ValueOf(v)
	if err != nil {
		panic(err)
	}
	return out
}

// ParseValue parses s as a Value of kind k.  Bytes are taken verbatim.
func ParseValue(k Kind, s string) (Value, error) {
	switch k {
	case KindBytes:
		return Bytes([]byte(s)), nil
	case KindText:
		return Text(s), nil
	case KindInt:
		z, err := strconv.ParseInt(strings.TrimSpace(s), 0, 64)
		if err != nil {
			return Value{}, fmt.Errorf("%w: %w", ErrInvalidArgs, err)
		}
		return Int(z), nil
	case KindFloat:
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return Value{}, fmt.Errorf("%w: %w", ErrInvalidArgs, err)
		}
		return Float(f), nil
	}
	return Value{}, fmt.Errorf("%w: cannot parse a value of kind %v", ErrInvalidArgs, k)
}

// Kind reports the kind of v.
func (v Value) Kind() Kind { return v.kind }

// IsValid reports whether v holds a value.
func (v Value) IsValid() bool { return v.kind != KindInvalid }

// Bytes returns the contents of v as a byte string. It returns a copy of the
// data of a bytes value, the UTF-8 encoding of a text value, and nil for
// other kinds.
func (v Value) Bytes() []byte {
	switch v.kind {
	case KindBytes:
		return bytes.Clone(v.b)
	case KindText:
		return []byte(v.s)
	}
	return nil
}

// Float returns the numeric value of v as a float, or 0 if v is not numeric.
func (v Value) Float() float64 {
	switch v.kind {
	case KindFloat:
		return v.f
	case KindInt:
		return float64(v.i)
	}
	return 0
}

// Int returns the value of v as an integer, or 0 if v is not an integer.
func (v Value) Int() int64 {
	if v.kind == KindInt {
		return v.i
	}
	return 0
}

// Text returns the value of a text value, or the string representation of
// any other kind.
func (v Value) Text() string {
	if v.kind == KindText {
		return v.s
	}
	return v.String()
}

// Interface returns the contents of v as a []byte, float64, int64, or
// string. It returns nil for an invalid value.
func (v Value) Interface() any {
	switch v.kind {
	case KindBytes:
		return bytes.Clone(v.b)
	case KindFloat:
		return v.f
	case KindInt:
		return v.i
	case KindText:
		return v.s
	}
	return nil
}

// Equal reports whether v and w have the same kind and contents.
func (v Value) Equal(w Value) bool {
	if v.kind != w.kind {
		return false
	}
	switch v.kind {
	case KindBytes:
		return bytes.Equal(v.b, w.b)
	case KindFloat:
		return v.f == w.f || (math.IsNaN(v.f) && math.IsNaN(w.f))
	case KindInt:
		return v.i == w.i
	case KindText:
		return v.s == w.s
	}
	return true
}

// Convert returns v converted to kind k.  Integers convert to floats, and
// floats with no fractional part convert to integers. Numbers convert to and
// from their text representation, and text converts to and from bytes.
func (v Value) Convert(k Kind) (Value, error) {
	if v.kind == k {
		return v, nil
	}
	switch {
	case v.kind == KindInt && k == KindFloat:
		return Float(float64(v.i)), nil
	case v.kind == KindFloat && k == KindInt:
		if v.f == math.Trunc(v.f) && v.f >= math.MinInt64 && v.f < math.MaxInt64 {
			return Int(int64(v.f)), nil
		}
	case v.kind == KindText && (k == KindInt || k == KindFloat):
		return ParseValue(k, v.s)
	case v.kind == KindText && k == KindBytes:
		return Bytes([]byte(v.s)), nil
	case v.kind == KindBytes && k == KindText:
		return Text(string(v.b)), nil
	case (v.kind == KindInt || v.kind == KindFloat) && k == KindText:
		return Text(v.String()), nil
	}
	return Value{}, fmt.Errorf("%w: cannot convert %v value %v to %v", ErrInvalidArgs, v.kind, v, k)
}

func (v Value) String() string {
	switch v.kind {
	case KindBytes:
		return fmt.Sprintf("%q", v.b)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindText:
		return v.s
	}
	return "<invalid>"
}
