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

// Package txn implements the per-call transaction object, its undo
// log, and rollback-on-abort (spec C5), plus the per-namespace
// transaction manager that issues transaction ids (spec C6).
package txn

import (
	"github.com/dcds-project/dcds/internal/lock"
	"github.com/dcds-project/dcds/internal/record"
	"github.com/dcds-project/dcds/internal/table"
)

// ID identifies a transaction; it is also the owner key record locks
// are taken under (internal/lock.TxnID).
type ID = lock.TxnID

// Status is a transaction's lifecycle state.
type Status uint8

const (
	Active Status = iota
	Committed
	Aborted
)

type logKind uint8

const (
	logInsert logKind = iota
	logUpdate
	logDelete
)

type logEntry struct {
	kind    logKind
	table   *table.Table
	ref     record.Ref
	attrIdx int
	prev    []byte
}

// Txn is a single public-operation call's transaction (spec.md §3
// "Transaction"). It is created by Manager.Begin and destroyed by
// Commit or Abort.
type Txn struct {
	ID       ID
	ReadOnly bool
	Status   Status

	log []logEntry

	exclusive map[*record.Record]struct{}
	shared    map[*record.Record]struct{}
}

func newTxn(id ID, readOnly bool) *Txn {
	return &Txn{
		ID:        id,
		ReadOnly:  readOnly,
		Status:    Active,
		exclusive: make(map[*record.Record]struct{}),
		shared:    make(map[*record.Record]struct{}),
	}
}

// LogInsert records an insert undo entry. A read-only transaction
// never calls this (it never writes), but the method stays safe to
// call regardless so table.Table need not special-case it.
func (t *Txn) LogInsert(tbl *table.Table, ref record.Ref) {
	if t.ReadOnly {
		return
	}
	t.log = append(t.log, logEntry{kind: logInsert, table: tbl, ref: ref})
}

// LogUpdate records an update undo entry, taking ownership of prev.
func (t *Txn) LogUpdate(tbl *table.Table, ref record.Ref, attrIdx int, prev []byte) {
	if t.ReadOnly {
		return
	}
	t.log = append(t.log, logEntry{kind: logUpdate, table: tbl, ref: ref, attrIdx: attrIdx, prev: prev})
}

// LogDelete records a delete undo entry.
func (t *Txn) LogDelete(tbl *table.Table, ref record.Ref) {
	if t.ReadOnly {
		return
	}
	t.log = append(t.log, logEntry{kind: logDelete, table: tbl, ref: ref})
}

// TryLockShared attempts the shared side of rec's lock on this txn's
// behalf, recording it in the held-locks set on success.
func (t *Txn) TryLockShared(rec *record.Record) bool {
	if _, ok := t.exclusive[rec]; ok {
		return true // already hold the stronger lock
	}
	if !rec.Lock.TryLockShared(t.ID) {
		return false
	}
	t.shared[rec] = struct{}{}
	return true
}

// TryLockExclusive attempts the exclusive side of rec's lock,
// upgrading and bookkeeping the held-locks sets on success.
func (t *Txn) TryLockExclusive(rec *record.Record) bool {
	if _, ok := t.exclusive[rec]; ok {
		return true
	}
	if !rec.Lock.TryLockExclusive(t.ID) {
		return false
	}
	delete(t.shared, rec)
	t.exclusive[rec] = struct{}{}
	return true
}

// Commit releases every held lock and marks the transaction
// committed. It always succeeds in this single-version store: once a
// transaction holds all the locks its statement tree required, there
// is nothing left to conflict on at commit time. The bool return is
// kept for fidelity with spec.md §4.4's pseudocode and to leave room
// for a future multi-version commit-time certification;
// internal/harness does not inspect it, since it is always true here.
func (t *Txn) Commit() bool {
	t.unlockAll()
	t.Status = Committed
	t.log = nil
	return true
}

// Abort rolls back every logged mutation in reverse order, releases
// all held locks, and marks the transaction aborted.
func (t *Txn) Abort() {
	for i := len(t.log) - 1; i >= 0; i-- {
		e := t.log[i]
		switch e.kind {
		case logUpdate:
			_ = e.table.RollbackUpdate(e.ref, e.prev, e.attrIdx)
		case logInsert:
			_ = e.table.RollbackCreate(e.ref)
		case logDelete:
			_ = e.table.RollbackDelete(e.ref)
		}
	}
	t.unlockAll()
	t.Status = Aborted
	t.log = nil
}

func (t *Txn) unlockAll() {
	for rec := range t.exclusive {
		rec.Lock.UnlockExclusive(t.ID)
	}
	for rec := range t.shared {
		rec.Lock.UnlockShared(t.ID)
	}
	t.exclusive = make(map[*record.Record]struct{})
	t.shared = make(map[*record.Record]struct{})
}
