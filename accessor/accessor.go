// Copyright (C) 2023 Michael J. Fromberger. All Rights Reserved.

// Package accessor provides adapters from typed functions to the
// kpal.Getter and kpal.Setter types.
//
// The driver type D of an adapter is recovered from the peripheral by type
// assertion; if the peripheral has a driver of another type, the accessor
// reports an error. Values are converted to and from T, which may be []byte,
// float64, int, int64, or string.
package accessor

import (
	"context"
	"fmt"

	"github.com/creachadair/kpal"
)

// Scalar is the set of Go types that attribute values convert to and from.
type Scalar interface {
	[]byte | float64 | int | int64 | string
}

// Getter adapts a function f that reads a value of type T from a driver of
// type D, to a kpal.Getter.
func Getter[D kpal.Driver, T Scalar](f func(context.Context, D) (T, error)) kpal.Getter {
	return func(ctx context.Context, p *kpal.Peripheral) (kpal.Value, error) {
		d, err := driver[D](p)
		if err != nil {
			return kpal.Value{}, err
		}
		v, err := f(ctx, d)
		if err != nil {
			return kpal.Value{}, err
		}
		return kpal.ValueOf(v)
	}
}

// Setter adapts a function f that writes a value of type T to a driver of
// type D, to a kpal.Setter.
func Setter[D kpal.Driver, T Scalar](f func(context.Context, D, T) error) kpal.Setter {
	return func(ctx context.Context, p *kpal.Peripheral, v kpal.Value) error {
		d, err := driver[D](p)
		if err != nil {
			return err
		}
		var t T
		if err := unmarshal(v, &t); err != nil {
			return err
		}
		return f(ctx, d, t)
	}
}

// Field returns a read-write attribute that reads and writes the field of a
// driver of type D selected by field.
func Field[D kpal.Driver, T Scalar](name, desc string, field func(D) *T) kpal.Attribute {
	return kpal.Attribute{
		Name:        name,
		Description: desc,
		Kind:        KindOf[T](),
		Get: Getter(func(_ context.Context, d D) (T, error) {
			return *field(d), nil
		}),
		Set: Setter(func(_ context.Context, d D, v T) error {
			*field(d) = v
			return nil
		}),
	}
}

// ReadOnly returns an attribute whose value is computed by f.
func ReadOnly[D kpal.Driver, T Scalar](name, desc string, f func(context.Context, D) (T, error)) kpal.Attribute {
	return kpal.Attribute{Name: name, Description: desc, Kind: KindOf[T](), Get: Getter(f)}
}

// KindOf reports the value kind corresponding to T.
func KindOf[T Scalar]() kpal.Kind {
	var zero T
	switch any(zero).(type) {
	case []byte:
		return kpal.KindBytes
	case float64:
		return kpal.KindFloat
	case int, int64:
		return kpal.KindInt
	case string:
		return kpal.KindText
	}
	panic("unreachable")
}

func driver[D kpal.Driver](p *kpal.Peripheral) (D, error) {
	d, ok := p.Driver().(D)
	if !ok {
		return d, fmt.Errorf("peripheral %q has driver %T, want %T", p.Name(), p.Driver(), d)
	}
	return d, nil
}

// unmarshal converts v into the value pointed to by out, which must be a
// pointer to one of the Scalar types.
func unmarshal(v kpal.Value, out any) error {
	switch t := out.(type) {
	case *[]byte:
		cv, err := v.Convert(kpal.KindBytes)
		if err != nil {
			return err
		}
		*t = cv.Bytes()
	case *float64:
		cv, err := v.Convert(kpal.KindFloat)
		if err != nil {
			return err
		}
		*t = cv.Float()
	case *int:
		cv, err := v.Convert(kpal.KindInt)
		if err != nil {
			return err
		}
		*t = int(cv.Int())
	case *int64:
		cv, err := v.Convert(kpal.KindInt)
		if err != nil {
			return err
		}
		*t = cv.Int()
	case *string:
		cv, err := v.Convert(kpal.KindText)
		if err != nil {
			return err
		}
		*t = cv.Text()
	default:
		return fmt.Errorf("cannot unmarshal into %T", out)
	}
	return nil
}
