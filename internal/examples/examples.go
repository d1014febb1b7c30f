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

// Package examples builds the four concrete data structures spec.md
// §8's scenarios exercise: a counter (S1, plus the concurrent-increment
// and abort/retry fixtures S5 and S6 reuse), a doubly-linked list (S2),
// a fixed-capacity LRU cache (S3), and a key/value map backed by an
// indexed list (S4). This package is test/demo scaffolding internal to
// the module, not a bundled reusable data-structure library (spec.md's
// Non-goals name that as explicitly out of scope) — it exists so
// scenarios_test.go and cmd/dcdsdemo build the same IR instead of
// each hand-rolling their own.
package examples

import (
	"github.com/dcds-project/dcds/internal/ir"
	"github.com/dcds-project/dcds/internal/value"
)

// Counter is S1: one int64 attribute, read and write.
func Counter() *ir.TypeDef {
	c := &ir.TypeDef{
		Name: "Counter",
		Attributes: []ir.Attribute{
			{Name: "counter_value", Kind: ir.AttrPrimitive, ValueKind: value.Int64, Default: value.I64(0)},
		},
	}
	c.Functions = map[string]*ir.Function{
		"read": {
			Name: "read", RetKind: value.Int64,
			Body: []ir.Stmt{ir.Return(ir.Attr("counter_value"))},
		},
		"write": {
			Name: "write", Params: []ir.Param{{Name: "v", Kind: value.Int64}}, RetKind: value.Void,
			Body: []ir.Stmt{ir.SetField(nil, "counter_value", ir.Var("v"))},
		},
		// inc is S5's read-modify-write operation: not part of S1's
		// contract, but the same Counter type serves both scenarios.
		"inc": {
			Name: "inc", RetKind: value.Void,
			Body: []ir.Stmt{
				ir.SetField(nil, "counter_value", ir.Add(ir.Attr("counter_value"), ir.ConstI64(1))),
			},
		},
		// touch is a no-op called only for its receiver lock: S6 uses it
		// on an instance held externally to force set_guarded's first
		// attempt to abort partway through.
		"touch": {
			Name: "touch", RetKind: value.Void,
			Body: []ir.Stmt{},
		},
		// set_guarded is S6's abort/retry fixture: it writes
		// counter_value, then calls touch on a second, caller-supplied
		// instance, proving (via the undo log) that counter_value never
		// keeps the write from an attempt that aborts on that second
		// call's lock.
		"set_guarded": {
			Name:    "set_guarded",
			Params:  []ir.Param{{Name: "v", Kind: value.Int64}, {Name: "gate", Kind: value.RecordPtr}},
			RetKind: value.Void,
			Body: []ir.Stmt{
				ir.SetField(nil, "counter_value", ir.Var("v")),
				ir.Call(ir.Var("gate"), c, "touch", ""),
			},
		},
	}
	return c
}

// LinkedList is S2: a doubly-linked list of int64 payloads supporting
// push_front and pop_back. pop_back on an empty list returns the int64
// sentinel -1 rather than a popped payload, the empty-list signal §8's
// S2 scenario calls for.
func LinkedList() *ir.TypeDef {
	node := &ir.TypeDef{Name: "ListNode", Functions: map[string]*ir.Function{}}
	node.Attributes = []ir.Attribute{
		{Name: "payload", Kind: ir.AttrPrimitive, ValueKind: value.Int64},
		{Name: "next", Kind: ir.AttrSubType, ElemType: node},
		{Name: "prev", Kind: ir.AttrSubType, ElemType: node},
	}

	list := &ir.TypeDef{
		Name: "LinkedList",
		Attributes: []ir.Attribute{
			{Name: "head", Kind: ir.AttrSubType, ElemType: node},
			{Name: "tail", Kind: ir.AttrSubType, ElemType: node},
		},
		Functions: map[string]*ir.Function{
			"push_front": {
				Name:   "push_front",
				Params: []ir.Param{{Name: "v", Kind: value.Int64}},
				RetKind: value.Void,
				Body: []ir.Stmt{
					ir.SetVar("head", ir.Attr("head")),
					ir.SetVar("tail", ir.Attr("tail")),
					ir.Create("n", node),
					ir.SetField(ir.Var("n"), "payload", ir.Var("v")),
					ir.SetField(ir.Var("n"), "next", ir.Var("head")),
					ir.SetField(ir.Var("n"), "prev", ir.Null()),
					ir.If(ir.Neq(ir.Var("head"), ir.Null()),
						[]ir.Stmt{ir.SetField(ir.Var("head"), "prev", ir.Var("n"))},
						nil,
					),
					ir.SetField(nil, "head", ir.Var("n")),
					ir.If(ir.Eq(ir.Var("tail"), ir.Null()),
						[]ir.Stmt{ir.SetField(nil, "tail", ir.Var("n"))},
						nil,
					),
				},
			},
			// pop_back returns the popped payload, or -1 (the documented
			// empty-list sentinel) if the list was already empty.
			"pop_back": {
				Name: "pop_back", RetKind: value.Int64,
				Body: []ir.Stmt{
					ir.SetVar("tail", ir.Attr("tail")),
					ir.If(ir.Eq(ir.Var("tail"), ir.Null()),
						[]ir.Stmt{ir.Return(ir.ConstI64(-1))},
						nil,
					),
					ir.SetVar("payload", ir.AttrOf(ir.Var("tail"), "payload")),
					ir.SetVar("newTail", ir.AttrOf(ir.Var("tail"), "prev")),
					ir.If(ir.Neq(ir.Var("newTail"), ir.Null()),
						[]ir.Stmt{ir.SetField(ir.Var("newTail"), "next", ir.Null())},
						[]ir.Stmt{ir.SetField(nil, "head", ir.Null())},
					),
					ir.SetField(nil, "tail", ir.Var("newTail")),
					ir.Delete(ir.Var("tail")),
					ir.Return(ir.Var("payload")),
				},
			},
		},
	}
	return list
}

// LRU is S3: a fixed-capacity (passed to the constructor) cache that
// evicts its least-recently-inserted entry once insert would exceed
// capacity. Recency is tracked the same way LinkedList tracks
// insertion order (a head/tail doubly-linked chain of Entry records);
// key->Entry lookup goes through an indexed-list attribute (C8).
func LRU() *ir.TypeDef {
	entry := &ir.TypeDef{Name: "LRUEntry", Functions: map[string]*ir.Function{}}
	entry.Attributes = []ir.Attribute{
		{Name: "key", Kind: ir.AttrPrimitive, ValueKind: value.Int32},
		{Name: "value", Kind: ir.AttrPrimitive, ValueKind: value.Int32},
		{Name: "next", Kind: ir.AttrSubType, ElemType: entry},
		{Name: "prev", Kind: ir.AttrSubType, ElemType: entry},
	}

	lru := &ir.TypeDef{
		Name: "LRU",
		Attributes: []ir.Attribute{
			{Name: "capacity", Kind: ir.AttrPrimitive, ValueKind: value.Int32},
			{Name: "length", Kind: ir.AttrPrimitive, ValueKind: value.Int32},
			{Name: "head", Kind: ir.AttrSubType, ElemType: entry},
			{Name: "tail", Kind: ir.AttrSubType, ElemType: entry},
			{
				Name: "entries", Kind: ir.AttrIndexedList, ElemType: entry,
				KeyAttr: "key", KeyKind: value.Int32,
			},
		},
	}
	lru.Constructor = &ir.Function{
		Name:   "new",
		Params: []ir.Param{{Name: "capacity", Kind: value.Int32}},
		RetKind: value.Void,
		Body: []ir.Stmt{
			ir.SetField(nil, "capacity", ir.Var("capacity")),
		},
	}
	lru.Functions = map[string]*ir.Function{
		"insert": {
			Name:    "insert",
			Params:  []ir.Param{{Name: "key", Kind: value.Int32}, {Name: "value", Kind: value.Int32}},
			RetKind: value.Void,
			Body: []ir.Stmt{
				ir.SetVar("existing", ir.IndexFind(nil, "entries", ir.Var("key"))),
				ir.If(ir.Neq(ir.Var("existing"), ir.Null()),
					[]ir.Stmt{
						ir.SetField(ir.Var("existing"), "value", ir.Var("value")),
						ir.Return(nil),
					},
					nil,
				),
				ir.SetVar("head", ir.Attr("head")),
				ir.Create("e", entry),
				ir.SetField(ir.Var("e"), "key", ir.Var("key")),
				ir.SetField(ir.Var("e"), "value", ir.Var("value")),
				ir.SetField(ir.Var("e"), "next", ir.Var("head")),
				ir.SetField(ir.Var("e"), "prev", ir.Null()),
				ir.If(ir.Neq(ir.Var("head"), ir.Null()),
					[]ir.Stmt{ir.SetField(ir.Var("head"), "prev", ir.Var("e"))},
					nil,
				),
				ir.SetField(nil, "head", ir.Var("e")),
				ir.If(ir.Eq(ir.Attr("tail"), ir.Null()),
					[]ir.Stmt{ir.SetField(nil, "tail", ir.Var("e"))},
					nil,
				),
				ir.IndexInsert(nil, "entries", ir.Var("key"), ir.Var("e")),
				ir.SetVar("newLen", ir.Add(ir.Attr("length"), ir.ConstI32(1))),
				ir.SetField(nil, "length", ir.Var("newLen")),
				ir.If(ir.Gt(ir.Var("newLen"), ir.Attr("capacity")),
					[]ir.Stmt{
						ir.SetVar("victim", ir.Attr("tail")),
						ir.SetVar("victimKey", ir.AttrOf(ir.Var("victim"), "key")),
						ir.SetVar("newTail", ir.AttrOf(ir.Var("victim"), "prev")),
						ir.If(ir.Neq(ir.Var("newTail"), ir.Null()),
							[]ir.Stmt{ir.SetField(ir.Var("newTail"), "next", ir.Null())},
							[]ir.Stmt{ir.SetField(nil, "head", ir.Null())},
						),
						ir.SetField(nil, "tail", ir.Var("newTail")),
						ir.IndexRemove(nil, "entries", ir.Var("victimKey")),
						ir.Delete(ir.Var("victim")),
						ir.SetField(nil, "length", ir.Sub(ir.Var("newLen"), ir.ConstI32(1))),
					},
					nil,
				),
			},
		},
		"length": {
			Name: "length", RetKind: value.Int32,
			Body: []ir.Stmt{ir.Return(ir.Attr("length"))},
		},
		"contains": {
			Name:    "contains",
			Params:  []ir.Param{{Name: "key", Kind: value.Int32}},
			RetKind: value.Bool,
			Body: []ir.Stmt{
				ir.SetVar("found", ir.IndexFind(nil, "entries", ir.Var("key"))),
				ir.Return(ir.Neq(ir.Var("found"), ir.Null())),
			},
		},
	}
	return lru
}

// IndexedMap is S4: a map from int32 key to int32 value. lookup uses an
// explicit record_ptr out-parameter (an IndexedMapHolder instance the
// caller allocates via make_holder) rather than a second return value,
// since ir.Function carries exactly one value.Value result (spec.md
// §4.6's "out pointer" made concrete the way this row-oriented runtime
// represents any by-reference write).
func IndexedMap() *ir.TypeDef {
	entry := &ir.TypeDef{Name: "IndexedMapEntry", Functions: map[string]*ir.Function{}}
	entry.Attributes = []ir.Attribute{
		{Name: "key", Kind: ir.AttrPrimitive, ValueKind: value.Int32},
		{Name: "value", Kind: ir.AttrPrimitive, ValueKind: value.Int32},
	}
	holder := &ir.TypeDef{Name: "IndexedMapHolder", Functions: map[string]*ir.Function{}}
	holder.Attributes = []ir.Attribute{
		{Name: "value", Kind: ir.AttrPrimitive, ValueKind: value.Int32},
	}

	m := &ir.TypeDef{
		Name: "IndexedMap",
		Attributes: []ir.Attribute{
			{Name: "entries", Kind: ir.AttrIndexedList, ElemType: entry, KeyAttr: "key", KeyKind: value.Int32},
		},
		Functions: map[string]*ir.Function{
			"insert": {
				Name:    "insert",
				Params:  []ir.Param{{Name: "key", Kind: value.Int32}, {Name: "value", Kind: value.Int32}},
				RetKind: value.Void,
				Body: []ir.Stmt{
					ir.Create("e", entry),
					ir.SetField(ir.Var("e"), "key", ir.Var("key")),
					ir.SetField(ir.Var("e"), "value", ir.Var("value")),
					ir.IndexInsert(nil, "entries", ir.Var("key"), ir.Var("e")),
				},
			},
			"lookup": {
				Name:    "lookup",
				Params:  []ir.Param{{Name: "key", Kind: value.Int32}, {Name: "out", Kind: value.RecordPtr}},
				RetKind: value.Bool,
				Body: []ir.Stmt{
					ir.SetVar("found", ir.IndexFind(nil, "entries", ir.Var("key"))),
					ir.If(ir.Eq(ir.Var("found"), ir.Null()),
						[]ir.Stmt{ir.Return(ir.ConstBool(false))},
						[]ir.Stmt{
							ir.SetField(ir.Var("out"), "value", ir.AttrOf(ir.Var("found"), "value")),
							ir.Return(ir.ConstBool(true)),
						},
					),
				},
			},
			"make_holder": {
				Name: "make_holder", RetKind: value.RecordPtr,
				Body: []ir.Stmt{
					ir.Create("h", holder),
					ir.Return(ir.Var("h")),
				},
			},
		},
	}
	return m
}
