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

// Package interp implements C9, the statement/expression interpreter
// that walks a frozen ir.Function body. It assumes internal/ccinject
// has already run over user-authored bodies (so the locks its own
// StmtLock nodes name are already in place); Run itself never takes a
// lock implicitly, it only executes the StmtLock nodes it finds
// (spec.md §4.7/§4.9).
package interp

import (
	"github.com/dcds-project/dcds/internal/dcdserr"
	"github.com/dcds-project/dcds/internal/index"
	"github.com/dcds-project/dcds/internal/ir"
	"github.com/dcds-project/dcds/internal/record"
	"github.com/dcds-project/dcds/internal/registry"
	"github.com/dcds-project/dcds/internal/table"
	"github.com/dcds-project/dcds/internal/txn"
	"github.com/dcds-project/dcds/internal/value"
)

// Context is the interpreter's per-call environment: the transaction
// the current operation runs under, the namespace's tables and the
// type registry needed to resolve a record ref back to the TypeDef
// that owns it, the index handle registry, and the function's current
// receiver record plus its local variables.
type Context struct {
	Txn     *txn.Txn
	Tables  *registry.Tables
	Types   map[table.ID]*ir.TypeDef
	Indexes *index.Registry

	Current      record.Ref
	CurrentTable *table.Table

	locals map[string]value.Value
}

// NewContext builds a root Context bound to the DS instance's main
// record (the receiver of the top-level public operation being run).
func NewContext(tx *txn.Txn, tables *registry.Tables, types map[table.ID]*ir.TypeDef, indexes *index.Registry, current record.Ref, currentTable *table.Table) *Context {
	return &Context{
		Txn: tx, Tables: tables, Types: types, Indexes: indexes,
		Current: current, CurrentTable: currentTable,
		locals: make(map[string]value.Value),
	}
}

func (c *Context) child(current record.Ref, currentTable *table.Table) *Context {
	return &Context{
		Txn: c.Txn, Tables: c.Tables, Types: c.Types, Indexes: c.Indexes,
		Current: current, CurrentTable: currentTable,
		locals: make(map[string]value.Value),
	}
}

// Run executes fn's body with args bound to its parameters, returning
// the value its Return statement carried (value.Void if it fell off
// the end or fn is void). A non-nil error is a dcdserr.Fatal (an
// invariant violation), a caller-facing dcdserr sentinel
// (ErrUnknownName, ErrTypeMismatch, ErrSchemaViolation), or one of the
// two signals internal/harness aborts and retries on
// (dcdserr.ErrLockConflict, dcdserr.ErrIndexInsertDuplicate).
func Run(fn *ir.Function, ctx *Context, args []value.Value) (value.Value, error) {
	if len(args) != len(fn.Params) {
		return value.Value{}, dcdserr.NewFatalf("interp: %s expects %d args, got %d", fn.Name, len(fn.Params), len(args))
	}
	for i, p := range fn.Params {
		ctx.locals[p.Name] = args[i]
	}
	ret, returned, err := runBody(fn.Body, ctx)
	if err != nil {
		return value.Value{}, err
	}
	if !returned {
		return value.Zero(fn.RetKind), nil
	}
	return ret, nil
}

func runBody(body []ir.Stmt, ctx *Context) (value.Value, bool, error) {
	for i := range body {
		ret, returned, err := runStmt(&body[i], ctx)
		if err != nil || returned {
			return ret, returned, err
		}
	}
	return value.Value{}, false, nil
}

func resolveRef(ref *ir.Expr, ctx *Context) (record.Ref, error) {
	if ref == nil {
		return ctx.Current, nil
	}
	v, err := Eval(ref, ctx)
	if err != nil {
		return record.Null, err
	}
	if v.Kind() != value.RecordPtr {
		return record.Null, dcdserr.NewFatalf("interp: expression does not evaluate to a record reference (kind=%s)", v.Kind())
	}
	return record.FromUint64(v.AsRawRef()), nil
}

func (c *Context) resolveTable(ref record.Ref) (*table.Table, error) {
	if ref.TableID() == c.CurrentTable.ID() {
		return c.CurrentTable, nil
	}
	t, ok := c.Tables.GetByID(ref.TableID())
	if !ok {
		return nil, dcdserr.NewFatalf("interp: no table registered with id %d", ref.TableID())
	}
	return t, nil
}

func runStmt(s *ir.Stmt, ctx *Context) (value.Value, bool, error) {
	switch s.Kind {
	case ir.StmtSetField:
		ref, err := resolveRef(s.Ref, ctx)
		if err != nil {
			return value.Value{}, false, err
		}
		tbl, err := ctx.resolveTable(ref)
		if err != nil {
			return value.Value{}, false, err
		}
		idx := tbl.ColumnIndex(s.Attr)
		if idx < 0 {
			return value.Value{}, false, dcdserr.ErrUnknownName
		}
		src, err := Eval(s.Src, ctx)
		if err != nil {
			return value.Value{}, false, err
		}
		if err := tbl.UpdateAttribute(ctx.Txn, ref, src, idx); err != nil {
			return value.Value{}, false, err
		}
		return value.Value{}, false, nil

	case ir.StmtSetVar:
		src, err := Eval(s.Src, ctx)
		if err != nil {
			return value.Value{}, false, err
		}
		ctx.locals[s.Dest] = src
		return value.Value{}, false, nil

	case ir.StmtCreate:
		tbl := s.Type.Table(ctx.Tables)
		ref := tbl.InsertRecord(ctx.Txn, nil)
		for i, a := range s.Type.Attributes {
			// a.Default's zero value (an unset struct field) decodes as
			// value.Int32(0), indistinguishable from an explicit Int32
			// default of 0 by Kind() alone; comparing against a.ValueKind
			// instead of value.Void correctly treats "no default given" on
			// a non-Int32 attribute as nothing to apply, rather than
			// tripping table.UpdateAttribute's kind check.
			if a.Kind == ir.AttrPrimitive && a.Default.Kind() == a.ValueKind {
				if err := tbl.UpdateAttribute(ctx.Txn, ref, a.Default, i); err != nil {
					return value.Value{}, false, err
				}
			}
		}
		ctx.locals[s.Dest] = value.RawRef(ref.Uint64())
		return value.Value{}, false, nil

	case ir.StmtCall:
		ref, err := resolveRef(s.Ref, ctx)
		if err != nil {
			return value.Value{}, false, err
		}
		tbl, err := ctx.resolveTable(ref)
		if err != nil {
			return value.Value{}, false, err
		}
		if s.Type == nil {
			return value.Value{}, false, dcdserr.NewFatalf("interp: call to %q has no statically resolved receiver type", s.Fn)
		}
		fn, ok := s.Type.Functions[s.Fn]
		if !ok {
			return value.Value{}, false, dcdserr.ErrUnknownName
		}
		args := make([]value.Value, len(s.Args))
		for i, a := range s.Args {
			v, err := Eval(a, ctx)
			if err != nil {
				return value.Value{}, false, err
			}
			args[i] = v
		}
		childCtx := ctx.child(ref, tbl)
		ret, err := Run(fn, childCtx, args)
		if err != nil {
			return value.Value{}, false, err
		}
		if s.RetDest != "" {
			ctx.locals[s.RetDest] = ret
		}
		return value.Value{}, false, nil

	case ir.StmtIf:
		cond, err := Eval(s.Cond, ctx)
		if err != nil {
			return value.Value{}, false, err
		}
		if cond.AsBool() {
			return runBody(s.Then, ctx)
		}
		return runBody(s.Else, ctx)

	case ir.StmtWhile:
		for {
			cond, err := Eval(s.Cond, ctx)
			if err != nil {
				return value.Value{}, false, err
			}
			if !cond.AsBool() {
				return value.Value{}, false, nil
			}
			ret, returned, err := runBody(s.Body, ctx)
			if err != nil || returned {
				return ret, returned, err
			}
		}

	case ir.StmtForEachIndex:
		ref, err := resolveRef(s.Ref, ctx)
		if err != nil {
			return value.Value{}, false, err
		}
		ix, err := ctx.indexFor(ref, s.Attr, false)
		if err != nil {
			return value.Value{}, false, err
		}
		if ix == nil {
			return value.Value{}, false, nil // never populated; nothing to iterate
		}
		for _, elemRef := range ix.Entries() {
			ctx.locals[s.Dest] = value.RawRef(elemRef.Uint64())
			ret, returned, err := runBody(s.Body, ctx)
			if err != nil || returned {
				return ret, returned, err
			}
		}
		return value.Value{}, false, nil

	case ir.StmtReturn:
		if s.Src == nil {
			return value.VoidValue(), true, nil
		}
		ret, err := Eval(s.Src, ctx)
		return ret, true, err

	case ir.StmtLock:
		ref, err := resolveRef(s.Ref, ctx)
		if err != nil {
			return value.Value{}, false, err
		}
		tbl, err := ctx.resolveTable(ref)
		if err != nil {
			return value.Value{}, false, err
		}
		rec, err := tbl.Record(ref)
		if err != nil {
			return value.Value{}, false, err
		}
		var ok bool
		if s.Exclusive {
			ok = ctx.Txn.TryLockExclusive(rec)
		} else {
			ok = ctx.Txn.TryLockShared(rec)
		}
		if !ok {
			return value.Value{}, false, dcdserr.ErrLockConflict
		}
		return runBody(s.Body, ctx)

	case ir.StmtIndexInsert:
		ref, err := resolveRef(s.Ref, ctx)
		if err != nil {
			return value.Value{}, false, err
		}
		ix, err := ctx.indexFor(ref, s.Attr, true)
		if err != nil {
			return value.Value{}, false, err
		}
		key, err := Eval(s.Key, ctx)
		if err != nil {
			return value.Value{}, false, err
		}
		elemRef, err := resolveRef(s.Ref2, ctx)
		if err != nil {
			return value.Value{}, false, err
		}
		if !ix.Insert(key, elemRef) {
			return value.Value{}, false, dcdserr.ErrIndexInsertDuplicate
		}
		return value.Value{}, false, nil

	case ir.StmtIndexRemove:
		ref, err := resolveRef(s.Ref, ctx)
		if err != nil {
			return value.Value{}, false, err
		}
		ix, err := ctx.indexFor(ref, s.Attr, false)
		if err != nil {
			return value.Value{}, false, err
		}
		if ix == nil {
			return value.Value{}, false, nil
		}
		key, err := Eval(s.Key, ctx)
		if err != nil {
			return value.Value{}, false, err
		}
		ix.Remove(key)
		return value.Value{}, false, nil

	case ir.StmtDelete:
		ref, err := resolveRef(s.Ref, ctx)
		if err != nil {
			return value.Value{}, false, err
		}
		tbl, err := ctx.resolveTable(ref)
		if err != nil {
			return value.Value{}, false, err
		}
		if err := tbl.Delete(ctx.Txn, ref); err != nil {
			return value.Value{}, false, err
		}
		return value.Value{}, false, nil

	default:
		return value.Value{}, false, dcdserr.NewFatalf("interp: unknown statement kind %d", s.Kind)
	}
}

// indexFor resolves the Index backing the indexed-list attribute attr
// of ref's record, creating (and persisting the handle) it on first
// use when create is true. create is false for read paths, where an
// attribute that has never been written is legitimately empty.
func (c *Context) indexFor(ref record.Ref, attr string, create bool) (*index.Index, error) {
	tbl, err := c.resolveTable(ref)
	if err != nil {
		return nil, err
	}
	idx := tbl.ColumnIndex(attr)
	if idx < 0 {
		return nil, dcdserr.ErrUnknownName
	}
	td, ok := c.Types[tbl.ID()]
	if !ok {
		return nil, dcdserr.NewFatalf("interp: no type registered for table %s", tbl.Name())
	}
	attrIdx := td.AttrIndex(attr)
	if attrIdx < 0 || td.Attributes[attrIdx].Kind != ir.AttrIndexedList {
		return nil, dcdserr.NewFatalf("interp: %s.%s is not an indexed-list attribute", tbl.Name(), attr)
	}
	handle, err := tbl.GetAttribute(ref, idx)
	if err != nil {
		return nil, err
	}
	if h := handle.AsRawRef(); h != 0 {
		ix, ok := c.Indexes.Get(h)
		if !ok {
			return nil, dcdserr.NewFatalf("interp: dangling index handle %d on %s.%s", h, tbl.Name(), attr)
		}
		return ix, nil
	}
	if !create {
		return nil, nil
	}
	ix := index.New(td.Attributes[attrIdx].KeyKind, 0)
	h := c.Indexes.Register(ix)
	if err := tbl.UpdateAttribute(c.Txn, ref, value.RawRef(h), idx); err != nil {
		return nil, err
	}
	return ix, nil
}
