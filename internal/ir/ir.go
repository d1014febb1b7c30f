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

// Package ir is the frozen intermediate representation a DCDS builder
// produces: attributes, sub-types, and operations as statement trees
// (spec.md §2's "Flow" paragraph). It deliberately has no fluent
// builder DSL — the declarative front-end surface is out of scope
// (spec.md §1) — only the plain data types the interpreter (C9), the
// CC injector (C10), and the build-time optimizer (C12) all operate
// on, plus small constructor functions so tests can assemble them
// directly.
package ir

import (
	"sync"

	"github.com/dcds-project/dcds/internal/registry"
	"github.com/dcds-project/dcds/internal/table"
	"github.com/dcds-project/dcds/internal/value"
)

// AttrKind is an attribute's storage category (spec.md §3
// "Attribute").
type AttrKind uint8

const (
	AttrPrimitive AttrKind = iota
	AttrSubType
	AttrArray
	AttrIndexedList
)

// Attribute is a named typed field of a TypeDef.
type Attribute struct {
	Name string
	Kind AttrKind

	// Primitive
	ValueKind value.Kind
	Default   value.Value

	// SubType / Array / IndexedList
	ElemType *TypeDef

	// Array
	ArrayLen int

	// IndexedList
	KeyAttr string // name of the attribute on ElemType used as key
	KeyKind value.Kind
}

// Param is one formal parameter of a Function.
type Param struct {
	Name string
	Kind value.Kind
}

// Function is a named body of statements: either a public operation
// (when hung directly off a top-level TypeDef) or a sub-type's inner
// method (spec.md §4.7's MethodCall).
type Function struct {
	Name    string
	Params  []Param
	RetKind value.Kind
	Body    []Stmt
}

// TypeDef is a registered type: a DS's top-level type, or a sub-type
// referenced by one of its attributes (spec.md GLOSSARY).
type TypeDef struct {
	Name       string
	Attributes []Attribute
	Functions  map[string]*Function

	// Constructor runs once per CreateInstance call on the root
	// TypeDef, after its record is allocated, to set initial field
	// values (spec.md §6: "createInstance() returns a handle by running
	// the outer constructor"). Nil means the record starts zero/default
	// valued. Irrelevant on a non-root TypeDef.
	Constructor *Function

	once  sync.Once
	table *table.Table
}

// AttrIndex returns the index of the attribute named name, or -1.
func (td *TypeDef) AttrIndex(name string) int {
	for i, a := range td.Attributes {
		if a.Name == name {
			return i
		}
	}
	return -1
}

// Table lazily creates (idempotently, under once) or returns td's
// backing table.Table, registering it in tables under td.Name (spec.md
// §3 Lifecycle: "Tables are created lazily the first time a DS
// instance referencing an attribute of that table is constructed;
// creation is idempotent under a mutex").
func (td *TypeDef) Table(tables *registry.Tables) *table.Table {
	td.once.Do(func() {
		names := make([]string, len(td.Attributes))
		kinds := make([]value.Kind, len(td.Attributes))
		for i, a := range td.Attributes {
			names[i] = a.Name
			switch a.Kind {
			case AttrPrimitive:
				kinds[i] = a.ValueKind
			case AttrSubType, AttrArray, AttrIndexedList:
				kinds[i] = value.RecordPtr
			}
		}
		td.table = tables.CreateTable(td.Name, names, kinds)
	})
	return td.table
}

// DS is a fully-built, ready-to-run data structure definition: its
// top-level TypeDef plus the table registry its attributes resolve
// against (spec.md §6's "Registered" concept).
type DS struct {
	Name   string
	Root   *TypeDef
	Tables *registry.Tables
}
