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

// Package index implements the value-kind-parametric hash multimap
// backing indexed-list attributes (spec C8). It is internally
// concurrent per spec.md §4.6/§5 ("the runtime assumes so and does
// not serialize around them"): a sharded map, shard selection by
// cespare/xxhash/v2 over the key's encoded bytes, the same hash the
// teacher's own erigon-lib pulls in for sharded concurrent maps.
package index

import (
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/dcds-project/dcds/internal/record"
	"github.com/dcds-project/dcds/internal/value"
)

type shard struct {
	mu sync.RWMutex
	m  map[string]record.Ref
}

// Index is a concurrent hash multimap from a declared value.Kind to
// record.Ref, used only to back indexed-list attributes.
type Index struct {
	keyKind value.Kind
	shards  []*shard
}

// New builds an Index over keys of the given kind, sharded shardCount
// ways (shardCount <= 0 defaults to 16).
func New(keyKind value.Kind, shardCount int) *Index {
	if shardCount <= 0 {
		shardCount = 16
	}
	ix := &Index{keyKind: keyKind, shards: make([]*shard, shardCount)}
	for i := range ix.shards {
		ix.shards[i] = &shard{m: make(map[string]record.Ref)}
	}
	return ix
}

func (ix *Index) KeyKind() value.Kind { return ix.keyKind }

func (ix *Index) encode(k value.Value) string {
	buf := make([]byte, k.Kind().Width())
	k.Encode(buf)
	return string(buf)
}

func (ix *Index) shardFor(keyBytes string) *shard {
	h := xxhash.Sum64String(keyBytes)
	return ix.shards[h%uint64(len(ix.shards))]
}

// Find returns the record.Ref stored for k, or (record.Null, false) if
// absent.
func (ix *Index) Find(k value.Value) (record.Ref, bool) {
	kb := ix.encode(k)
	s := ix.shardFor(kb)
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.m[kb]
	return v, ok
}

// FindInto is the out-parameter form: it returns whether k is present
// and, if so, stores the value through out.
func (ix *Index) FindInto(k value.Value, out *record.Ref) bool {
	v, ok := ix.Find(k)
	if ok {
		*out = v
	}
	return ok
}

// Contains reports whether k is present.
func (ix *Index) Contains(k value.Value) bool {
	_, ok := ix.Find(k)
	return ok
}

// Insert adds k->v, returning false (and leaving the existing mapping
// untouched) if k was already present.
func (ix *Index) Insert(k value.Value, v record.Ref) bool {
	kb := ix.encode(k)
	s := ix.shardFor(kb)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.m[kb]; exists {
		return false
	}
	s.m[kb] = v
	return true
}

// Update overwrites k's mapping with v, returning false if k was not
// present (nothing is inserted in that case).
func (ix *Index) Update(k value.Value, v record.Ref) bool {
	kb := ix.encode(k)
	s := ix.shardFor(kb)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.m[kb]; !exists {
		return false
	}
	s.m[kb] = v
	return true
}

// Remove deletes k's mapping, if any.
func (ix *Index) Remove(k value.Value) {
	kb := ix.encode(k)
	s := ix.shardFor(kb)
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, kb)
}

// Len returns the total number of keys across all shards. Test/debug
// use only; not part of spec.md's required method set.
func (ix *Index) Len() int {
	n := 0
	for _, s := range ix.shards {
		s.mu.RLock()
		n += len(s.m)
		s.mu.RUnlock()
	}
	return n
}

// Entries returns a snapshot of all present keys' encoded bytes paired
// with their record.Ref. internal/interp iterates it to run
// StmtForEachIndex.
func (ix *Index) Entries() map[string]record.Ref {
	out := make(map[string]record.Ref)
	for _, s := range ix.shards {
		s.mu.RLock()
		for k, v := range s.m {
			out[k] = v
		}
		s.mu.RUnlock()
	}
	return out
}
