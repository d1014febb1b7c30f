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

// Package harness implements C11, the operation call loop: begin a
// transaction, run the (already CC-injected) interpreter over it,
// commit on success, or roll back and retry from scratch on a no-wait
// lock conflict or a duplicate-key index insert (spec.md §4.4's
// run_operation pseudocode).
package harness

import (
	"errors"

	"github.com/dcds-project/dcds/internal/dcdserr"
	"github.com/dcds-project/dcds/internal/dlog"
	"github.com/dcds-project/dcds/internal/index"
	"github.com/dcds-project/dcds/internal/interp"
	"github.com/dcds-project/dcds/internal/ir"
	"github.com/dcds-project/dcds/internal/metrics"
	"github.com/dcds-project/dcds/internal/record"
	"github.com/dcds-project/dcds/internal/registry"
	"github.com/dcds-project/dcds/internal/table"
	"github.com/dcds-project/dcds/internal/txn"
	"github.com/dcds-project/dcds/internal/value"
)

// Env bundles the per-namespace collaborators an operation call needs.
// One Env is shared by every call against DS instances created in the
// same namespace.
type Env struct {
	TxnManager *txn.Manager
	Tables     *registry.Tables
	Types      map[table.ID]*ir.TypeDef
	Indexes    *index.Registry

	// MaxRetries bounds the abort/retry loop; 0 means unlimited (spec.md
	// §5's "Implementations may impose a maximum retry count; this is a
	// policy knob, not a contract").
	MaxRetries int
}

// retryable reports whether err is one of the two transient conditions
// run_operation is allowed to retry from scratch (spec.md §4.4/§7):
// every other error is surfaced to the caller unretried.
func retryable(err error) bool {
	return errors.Is(err, dcdserr.ErrLockConflict) || errors.Is(err, dcdserr.ErrIndexInsertDuplicate)
}

// Run executes fn (already passed through internal/ccinject) against
// receiver, retrying on conflict until it commits, a non-retryable
// error occurs, or Env.MaxRetries is exhausted.
func (e *Env) Run(fn *ir.Function, receiver record.Ref, receiverTable *table.Table, readOnly bool, args []value.Value) (value.Value, error) {
	attempt := 0
	for {
		tx := e.TxnManager.Begin(readOnly)
		ctx := interp.NewContext(tx, e.Tables, e.Types, e.Indexes, receiver, receiverTable)
		ret, err := interp.Run(fn, ctx, args)
		if err == nil {
			tx.Commit()
			metrics.Commits.Inc()
			return ret, nil
		}
		tx.Abort()
		metrics.Aborts.Inc()
		if !retryable(err) {
			return value.Value{}, err
		}
		if errors.Is(err, dcdserr.ErrLockConflict) {
			metrics.LockConflicts.Inc()
		} else {
			metrics.IndexInsertDuplicates.Inc()
		}
		attempt++
		if e.MaxRetries > 0 && attempt >= e.MaxRetries {
			dlog.Warn("operation exhausted retries", "attempts", attempt, "table", receiverTable.Name())
			return value.Value{}, dcdserr.ErrMaxRetriesExceeded
		}
		metrics.Retries.Inc()
	}
}
