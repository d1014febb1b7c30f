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

// Package registry implements the namespaced table registry (spec C4)
// and the namespace registry of transaction managers (spec C6).
package registry

import (
	"sync/atomic"

	"github.com/sasha-s/go-deadlock"
	"github.com/tidwall/btree"

	"github.com/dcds-project/dcds/internal/dlog"
	"github.com/dcds-project/dcds/internal/record"
	"github.com/dcds-project/dcds/internal/table"
	"github.com/dcds-project/dcds/internal/value"
)

// Tables is a thread-safe name->id->Table dictionary, one per
// namespace. All mutations take mu as a writer; lookups take it as a
// reader (spec.md §4.3). mu is a go-deadlock RWMutex rather than
// sync.RWMutex: table creation can recursively look up another table
// (a sub-type's table created while building a containing type), and
// go-deadlock's cycle detector catches a lock-ordering mistake there
// in tests instead of hanging silently.
type Tables struct {
	mu      deadlock.RWMutex
	byName  map[string]*table.Table
	byID    *btree.Map[table.ID, *table.Table]
	nextID  atomic.Uint64
}

// NewTables builds an empty table registry.
func NewTables() *Tables {
	return &Tables{
		byName: make(map[string]*table.Table),
		byID:   &btree.Map[table.ID, *table.Table]{},
	}
}

// ExistsName reports whether a table named name has been created.
func (r *Tables) ExistsName(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byName[name]
	return ok
}

// GetByName returns the table named name, if any.
func (r *Tables) GetByName(name string) (*table.Table, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.byName[name]
	return t, ok
}

// GetByID returns the table with the given id, if any.
func (r *Tables) GetByID(id table.ID) (*table.Table, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byID.Get(id)
}

// CreateTable creates (or, if name already exists, simply returns) the
// table named name with the given columns. Creation is atomic with
// respect to "table exists": spec.md §4.3's "if a concurrent creator
// wins, the loser must return the existing table".
func (r *Tables) CreateTable(name string, colNames []string, colKinds []value.Kind) *table.Table {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.byName[name]; ok {
		return t
	}
	id := record.TableID(r.nextID.Add(1))
	t := table.New(id, name, colKinds, colNames)
	r.byName[name] = t
	r.byID.Set(id, t)
	dlog.Debug("table created", "name", name, "id", id, "columns", len(colKinds))
	return t
}

// Shutdown drops every table the registry knows about. Iteration
// order follows the btree's id ordering, so repeated runs of the same
// test tear down in the same order (spec.md's DESIGN NOTES ask only
// that teardown be explicit, not ordered; determinism here is purely
// this implementation's testing convenience).
func (r *Tables) Shutdown() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID.Scan(func(id table.ID, t *table.Table) bool {
		dlog.Debug("table destroyed", "name", t.Name(), "id", id)
		return true
	})
	r.byName = make(map[string]*table.Table)
	r.byID = &btree.Map[table.ID, *table.Table]{}
}
