// Copyright (C) 2026 Michael J. Fromberger. All Rights Reserved.

package kpal

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownPeripheral is reported for a peripheral name that is not
	// registered with a Core.
	ErrUnknownPeripheral = errors.New("unknown peripheral")

	// ErrUnknownAttribute is reported for an attribute name that is not
	// defined by the type of a peripheral.
	ErrUnknownAttribute = errors.New("unknown attribute")

	// ErrDuplicateName is reported by Build for a name that is already
	// registered or being built.
	ErrDuplicateName = errors.New("duplicate peripheral name")

	// ErrComposition is reported by Define when the parameters of a type and
	// its capabilities cannot be merged.
	ErrComposition = errors.New("incompatible parameters")

	// ErrInvalidArgs is reported when build arguments or attribute values do
	// not match their declarations.
	ErrInvalidArgs = errors.New("invalid arguments")

	// ErrBuild is reported when a peripheral fails to build.  The concrete
	// error has type *BuildError.
	ErrBuild = errors.New("build failed")

	// ErrNotSupported is reported for an operation the peripheral does not
	// implement, such as writing a read-only attribute.
	ErrNotSupported = errors.New("operation not supported")

	// ErrBadTransition is reported for an illegal change of peripheral state.
	ErrBadTransition = errors.New("invalid state transition")

	// ErrChannelClosed is reported when sending an event after the event
	// channel has been shut down.
	ErrChannelClosed = errors.New("event channel closed")

	// ErrShutdown is reported for operations on a Core or peripheral that has
	// been shut down.
	ErrShutdown = errors.New("shut down")
)

// BuildError is the concrete type of errors reported when a peripheral fails
// to build. It reports true for errors.Is(err, ErrBuild), and unwraps to the
// error reported by the failing step.
type BuildError struct {
	Type string // the name of the peripheral type
	Name string // the name of the peripheral
	Step string // the build step that failed
	Err  error  // the error reported by the step
}

// Error satisfies the error interface.
func (b *BuildError) Error() string {
	return fmt.Sprintf("build %s %q: %s: %v", b.Type, b.Name, b.Step, b.Err)
}

// Is reports whether target is ErrBuild.
func (b *BuildError) Is(target error) bool { return target == ErrBuild }

// Unwrap returns the underlying error of b.
func (b *BuildError) Unwrap() error { return b.Err }

// CompositionError is the concrete type of errors reported by Define when two
// declarations of the same parameter conflict.
type CompositionError struct {
	Type   string // the name of the type being defined
	Param  string // the name of the conflicting parameter
	Reason string // a description of the conflict
}

// Error satisfies the error interface.
func (c *CompositionError) Error() string {
	return fmt.Sprintf("define %s: parameter %q: %s", c.Type, c.Param, c.Reason)
}

// Unwrap returns ErrComposition.
func (c *CompositionError) Unwrap() error { return ErrComposition }

// recovered calls f and converts a panic out of f into an error.
func recovered(what string, f func() error) (err error) {
	defer func() {
		if x := recover(); x != nil && err == nil {
			err = fmt.Errorf("%s panicked (recovered): %v", what, x)
		}
	}()
	return f()
}
