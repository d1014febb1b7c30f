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

// Package lock implements DCDS's per-record no-wait shared/exclusive
// lock protocol (spec C7). No off-the-shelf mutex gives both
// (a) a try-acquire that fails instead of blocking and (b) per-owner
// reentrancy and shared-to-exclusive upgrade, so this is hand-rolled
// on top of sync.Mutex rather than pulled from the ecosystem — see
// DESIGN.md for why that's the stated exception rather than a default.
package lock

import "sync"

// TxnID identifies the transaction attempting to acquire a lock.
// internal/txn.ID is defined to be this same underlying type.
type TxnID uint64

// RecordLock is the shared/exclusive, no-wait, re-entrant lock that
// lives in every record.Record (spec.md §4.5).
type RecordLock struct {
	mu        sync.Mutex
	exclusive TxnID // 0 means "no exclusive holder"
	shared    map[TxnID]struct{}
}

// TryLockShared attempts to take the read side on behalf of id. It
// returns false immediately (never blocks) if the record is held
// exclusively by a different transaction. Re-entrant: a transaction
// that already holds shared or exclusive succeeds trivially.
func (l *RecordLock) TryLockShared(id TxnID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.exclusive != 0 {
		return l.exclusive == id
	}
	if l.shared == nil {
		l.shared = make(map[TxnID]struct{}, 1)
	}
	l.shared[id] = struct{}{}
	return true
}

// TryLockExclusive attempts to take the write side on behalf of id.
// It returns false immediately if the record is held (shared or
// exclusive) by any other transaction. A transaction that is the sole
// shared holder is upgraded in place; a transaction that already
// holds exclusive succeeds trivially (re-entrant).
func (l *RecordLock) TryLockExclusive(id TxnID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.exclusive == id {
		return true
	}
	if l.exclusive != 0 {
		return false
	}
	switch len(l.shared) {
	case 0:
		l.exclusive = id
		return true
	case 1:
		if _, ok := l.shared[id]; ok {
			delete(l.shared, id)
			l.exclusive = id
			return true
		}
		return false
	default:
		return false
	}
}

// UnlockShared releases id's shared hold, if any.
func (l *RecordLock) UnlockShared(id TxnID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.shared, id)
}

// UnlockExclusive releases id's exclusive hold, if it is the holder.
func (l *RecordLock) UnlockExclusive(id TxnID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.exclusive == id {
		l.exclusive = 0
	}
}

// HeldExclusiveBy reports whether id currently holds the exclusive
// side. Used only by tests and invariant checks.
func (l *RecordLock) HeldExclusiveBy(id TxnID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.exclusive == id
}
