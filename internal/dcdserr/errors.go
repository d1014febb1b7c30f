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

// Package dcdserr enumerates the error kinds recognized by the DCDS
// core (spec.md §7) and the propagation policy around them: locally
// recoverable errors (LockConflict, IndexInsertDuplicate) are returned
// by internal/interp like any other error; internal/harness recognizes
// them with errors.Is, aborts, and retries. Caller-facing errors (TypeMismatch, UnknownName,
// SchemaViolation, Fatal) are returned verbatim, wrapped where useful
// with github.com/pkg/errors for a stack trace.
package dcdserr

import (
	stderrors "errors"

	"github.com/pkg/errors"
)

// Sentinel errors, compared with errors.Is at call sites.
var (
	// ErrLockConflict signals a no-wait lock attempt that failed
	// against a record held incompatibly by another transaction.
	// Never surfaced to the caller: internal/harness recognizes it with
	// errors.Is on the interpreter's returned error and retries.
	ErrLockConflict = stderrors.New("dcds: lock conflict")

	// ErrIndexInsertDuplicate signals that index.Index.Insert found
	// the key already present where the statement tree expected it to
	// be new. Like ErrLockConflict, this aborts and retries the
	// operation from scratch.
	ErrIndexInsertDuplicate = stderrors.New("dcds: index insert found duplicate key")

	// ErrTypeMismatch: a declared argument type differs from the type
	// provided at the public handle. Surfaced to the caller, never
	// retried.
	ErrTypeMismatch = stderrors.New("dcds: type mismatch")

	// ErrUnknownName: an operation, attribute, or type name was not
	// registered. Surfaced to the caller, never retried.
	ErrUnknownName = stderrors.New("dcds: unknown name")

	// ErrSchemaViolation: an attempt to read or write an attribute
	// absent from the current type. Surfaced to the caller, never
	// retried.
	ErrSchemaViolation = stderrors.New("dcds: schema violation")

	// ErrMaxRetriesExceeded is a harness policy error (spec.md §4.4:
	// "Implementations may impose a maximum retry count; this is a
	// policy knob, not a contract"), not one of the core error kinds.
	ErrMaxRetriesExceeded = stderrors.New("dcds: max retries exceeded")
)

// Fatal wraps a broken-invariant condition (spec.md §7: "broken
// invariants ... Panic/abort; not retried"). Fatal errors carry a
// stack trace captured at the point the invariant was found, since by
// definition something has gone wrong that ordinary retry or
// type-checking cannot explain.
type Fatal struct {
	msg   string
	stack error
}

func (f *Fatal) Error() string { return "dcds: fatal: " + f.msg }
func (f *Fatal) Unwrap() error { return f.stack }

// NewFatal builds a Fatal error for msg, attaching a stack trace.
func NewFatal(msg string) error {
	return &Fatal{msg: msg, stack: errors.New(msg)}
}

// NewFatalf is NewFatal with fmt-style formatting.
func NewFatalf(format string, args ...any) error {
	return &Fatal{msg: errors.Errorf(format, args...).Error(), stack: errors.Errorf(format, args...)}
}

// IsFatal reports whether err is (or wraps) a Fatal.
func IsFatal(err error) bool {
	var f *Fatal
	return stderrors.As(err, &f)
}

// WithMessage wraps err with an additional message via pkg/errors,
// preserving err's identity for errors.Is checks by callers.
func WithMessage(err error, msg string) error {
	return errors.WithMessage(err, msg)
}
