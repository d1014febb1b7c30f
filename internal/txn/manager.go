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

package txn

import "sync/atomic"

// epochShift reserves spec.md §3's "29-bit epoch in the high bits for
// future MVCC" above a 35-bit per-epoch sequence. Single-version DCDS
// never rolls the epoch; it exists only so a later multi-version mode
// can reinterpret the same counter without changing Manager's public
// shape.
const epochShift = 35

// Manager issues monotonically increasing transaction ids for one
// namespace (spec C6). It owns nothing beyond id generation;
// transactions themselves are allocated per call.
type Manager struct {
	counter atomic.Uint64
}

// NewManager builds a Manager whose first issued id is 1 (0 is
// reserved by internal/lock as "no holder").
func NewManager() *Manager {
	m := &Manager{}
	m.counter.Store(0)
	return m
}

func (m *Manager) nextID() ID {
	return ID(m.counter.Add(1))
}

// Begin starts a new transaction. Read-only transactions skip undo
// logging and take only shared locks (spec.md §4.4).
func (m *Manager) Begin(readOnly bool) *Txn {
	return newTxn(m.nextID(), readOnly)
}
