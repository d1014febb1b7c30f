// Copyright 2024 The DCDS Authors
// This file is part of DCDS.
//
// DCDS is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// DCDS is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with DCDS. If not, see <http://www.gnu.org/licenses/>.

// Package dlog is DCDS's ambient logger. It exposes the same
// level-plus-key/value call shape as erigontech/erigon-lib/log/v3
// ("log.Info(msg, \"k\", v, ...)"), backed here by go.uber.org/zap.
package dlog

import (
	"sync"

	"go.uber.org/zap"
)

var (
	mu      sync.RWMutex
	sugared = mustBuild()
)

func mustBuild() *zap.SugaredLogger {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	l, err := cfg.Build()
	if err != nil {
		// Logger construction failing is itself a Fatal-class
		// condition, but dlog is used by dcdserr's own callers, so
		// fall back to a no-op logger rather than import-cycle back
		// into dcdserr.
		return zap.NewNop().Sugar()
	}
	return l.Sugar()
}

// SetLogger swaps the underlying zap logger, e.g. to redirect output
// in tests or to attach a different sink in cmd/dcdsdemo.
func SetLogger(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	sugared = l.Sugar()
}

func current() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return sugared
}

// Debug logs msg at debug level with alternating key/value pairs,
// e.g. dlog.Debug("lock acquired", "txn", id, "ref", ref).
func Debug(msg string, kv ...any) { current().Debugw(msg, kv...) }

// Info logs msg at info level.
func Info(msg string, kv ...any) { current().Infow(msg, kv...) }

// Warn logs msg at warn level.
func Warn(msg string, kv ...any) { current().Warnw(msg, kv...) }

// Error logs msg at error level.
func Error(msg string, kv ...any) { current().Errorw(msg, kv...) }
