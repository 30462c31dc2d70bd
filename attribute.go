// Copyright (C) 2026 Michael J. Fromberger. All Rights Reserved.

package kpal

import "context"

// A Getter reads the current value of an attribute of a peripheral.
type Getter func(context.Context, *Peripheral) (Value, error)

// A Setter updates the value of an attribute of a peripheral.
type Setter func(context.Context, *Peripheral, Value) error

// An Attribute is a named, typed control of a peripheral.
//
// An attribute with a nil Get is write-only, and one with a nil Set is
// read-only. Accessing the missing half reports ErrNotSupported.
//
// The accessors of a peripheral are called with the lock of that peripheral
// held, so they do not need to synchronize with each other.
type Attribute struct {
	Name        string
	Description string

	// If Kind is not KindInvalid, values passed to Set are converted to this
	// kind before the setter is called.
	Kind Kind

	Get Getter
	Set Setter
}

// ReadOnly reports whether a has no setter.
func (a *Attribute) ReadOnly() bool { return a.Set == nil }

// WriteOnly reports whether a has no getter.
func (a *Attribute) WriteOnly() bool { return a.Get == nil }
