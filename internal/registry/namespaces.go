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

package registry

import (
	"sync"

	"github.com/dcds-project/dcds/internal/dcdsconfig"
	"github.com/dcds-project/dcds/internal/txn"
)

// namespace bundles the two registries scoped to one namespace name:
// its transaction manager (spec C6) and its table registry (spec C4).
// spec.md keeps these as separate components sharing the same
// namespacing concept; DCDS ties them together here so
// Namespaces.GetOrCreate hands back both halves atomically.
type namespace struct {
	Txn    *txn.Manager
	Tables *Tables
}

// Namespaces is the process-wide singleton mapping namespace names to
// their (transaction manager, table registry) pair (spec.md §3/§6). A
// default namespace exists at startup.
type Namespaces struct {
	mu   sync.RWMutex
	byName map[string]*namespace
}

var (
	defaultOnce sync.Once
	defaultNS   *Namespaces
)

// Default returns the process-wide Namespaces singleton, creating the
// default namespace on first use.
func Default() *Namespaces {
	defaultOnce.Do(func() {
		defaultNS = NewNamespaces()
		defaultNS.GetOrCreate(dcdsconfig.DefaultNamespace)
	})
	return defaultNS
}

// NewNamespaces builds an empty namespace registry. Most callers want
// Default(); NewNamespaces exists for tests that need full isolation
// from other tests' tables.
func NewNamespaces() *Namespaces {
	return &Namespaces{byName: make(map[string]*namespace)}
}

// GetOrCreate returns the namespace named name, creating it (with a
// fresh transaction manager and table registry) if absent.
func (n *Namespaces) GetOrCreate(name string) (*txn.Manager, *Tables) {
	n.mu.RLock()
	ns, ok := n.byName[name]
	n.mu.RUnlock()
	if ok {
		return ns.Txn, ns.Tables
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if ns, ok = n.byName[name]; ok {
		return ns.Txn, ns.Tables
	}
	ns = &namespace{Txn: txn.NewManager(), Tables: NewTables()}
	n.byName[name] = ns
	return ns.Txn, ns.Tables
}

// Get returns the namespace named name without creating it.
func (n *Namespaces) Get(name string) (tmgr *txn.Manager, tables *Tables, ok bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	ns, ok := n.byName[name]
	if !ok {
		return nil, nil, false
	}
	return ns.Txn, ns.Tables, true
}

// Shutdown tears down every table in every namespace. It does not
// remove the namespaces themselves; call NewNamespaces for a fully
// fresh registry.
func (n *Namespaces) Shutdown() {
	n.mu.RLock()
	defer n.mu.RUnlock()
	for _, ns := range n.byName {
		ns.Tables.Shutdown()
	}
}
