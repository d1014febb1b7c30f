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

package index

import (
	"sync"
	"sync/atomic"
)

// Registry hands out stable 64-bit handles for *Index values so an
// indexed-list attribute's "base pointer" (spec.md §4.6: "a stable
// base pointer obtained by getAttribute(...) then downcast to an
// index pointer") can be stored as 8 opaque bytes in a row, the same
// way a sub-type attribute stores a record.Ref, without ever putting
// an unsafe raw pointer into row storage.
type Registry struct {
	mu      sync.RWMutex
	next    atomic.Uint64
	byID    map[uint64]*Index
}

// NewRegistry builds an empty index handle registry. dcds.Register
// builds one per registered DS and keeps it in that DS's harness.Env,
// so handles are scoped to the registered DS, not to a process-wide
// global.
func NewRegistry() *Registry {
	return &Registry{byID: make(map[uint64]*Index)}
}

// Register assigns a fresh handle to ix and returns it.
func (r *Registry) Register(ix *Index) uint64 {
	id := r.next.Add(1)
	r.mu.Lock()
	r.byID[id] = ix
	r.mu.Unlock()
	return id
}

// Get resolves a handle back to its *Index.
func (r *Registry) Get(id uint64) (*Index, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ix, ok := r.byID[id]
	return ix, ok
}
