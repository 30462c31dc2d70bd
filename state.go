// Copyright (C) 2026 Michael J. Fromberger. All Rights Reserved.

package kpal

import (
	"fmt"
	"strconv"
)

// State is the lifecycle state of a peripheral.
type State int

const (
	StatePreInit      State = 0   // constructed, not yet built
	StateInit         State = 1   // build steps are running
	StateRunning      State = 2   // ready for use
	StateShutdown     State = 3   // teardown is running
	StatePostShutdown State = 4   // torn down (terminal)
	StateError        State = -99 // build failed (terminal)
)

var stateNames = map[State]string{
	StatePreInit:      "PREINIT",
	StateInit:         "INIT",
	StateRunning:      "RUNNING",
	StateShutdown:     "SHUTDOWN",
	StatePostShutdown: "POSTSHUTDOWN",
	StateError:        "ERROR",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "State(" + strconv.Itoa(int(s)) + ")"
}

// Terminal reports whether s admits no further transitions.
func (s State) Terminal() bool { return s == StatePostShutdown || s == StateError }

// CanTransition reports whether a peripheral in state s may move to next.
func (s State) CanTransition(next State) bool {
	switch {
	case s.Terminal():
		return false
	case next == StateError:
		return true
	}
	switch s {
	case StatePreInit:
		return next == StateInit
	case StateInit:
		return next == StateRunning
	case StateRunning:
		return next == StateShutdown
	case StateShutdown:
		return next == StatePostShutdown
	}
	return false
}

// checkTransition reports an error wrapping ErrBadTransition if s may not
// move to next.
func (s State) checkTransition(next State) error {
	if !s.CanTransition(next) {
		return fmt.Errorf("%w: %v to %v", ErrBadTransition, s, next)
	}
	return nil
}
