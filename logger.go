// Copyright (C) 2026 Michael J. Fromberger. All Rights Reserved.

package kpal

import (
	"sync/atomic"

	"go.uber.org/zap"
)

var logger atomic.Pointer[zap.Logger]

// Logger returns the default logger for a Core constructed without one.  It
// discards all output unless replaced by SetLogger.
func Logger() *zap.Logger {
	if l := logger.Load(); l != nil {
		return l
	}
	return zap.NewNop()
}

// SetLogger replaces the default logger. Passing nil restores the default.
func SetLogger(l *zap.Logger) { logger.Store(l) }
