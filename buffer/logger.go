// Copyright (C) 2026 Michael J. Fromberger. All Rights Reserved.

package buffer

import (
	"sync/atomic"

	"go.uber.org/zap"
)

var logger atomic.Pointer[zap.Logger]

// Logger returns the logger used by the buffer package.
// It uses a no-op logger by default.
func Logger() *zap.Logger {
	if l := logger.Load(); l != nil {
		return l
	}
	return zap.NewNop()
}

// SetLogger configures the logger used by the buffer package.
// Passing nil restores the no-op logger.
func SetLogger(l *zap.Logger) { logger.Store(l) }
