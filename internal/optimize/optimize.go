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

// Package optimize implements C12, the build-time optimizer: two
// passes over a DS's frozen IR, run once at registration time, before
// internal/ccinject and before any of the DS's tables are created
// (spec.md §4.10). Both passes are conservative: a usage this pass
// cannot statically attribute to a specific type and attribute/function
// is left alone rather than guessed about, so pruning never removes
// something actually reachable.
package optimize

import (
	"github.com/RoaringBitmap/roaring/v2"

	"github.com/dcds-project/dcds/internal/dlog"
	"github.com/dcds-project/dcds/internal/ir"
)

// Report summarizes what a Prune run removed, for logging and tests.
type Report struct {
	FunctionsDropped int
	AttributesKept   int
	AttributesUnused int // counted, not actually removed from layout; see Prune's doc
}

// CollectTypes returns root and every TypeDef transitively reachable
// from it through AttrSubType/AttrArray/AttrIndexedList attributes,
// each exactly once, in a stable (first-discovered, breadth-first)
// order so repeated runs over the same IR produce the same order.
func CollectTypes(root *ir.TypeDef) []*ir.TypeDef {
	seen := map[*ir.TypeDef]bool{root: true}
	order := []*ir.TypeDef{root}
	for i := 0; i < len(order); i++ {
		for _, a := range order[i].Attributes {
			if a.ElemType == nil || seen[a.ElemType] {
				continue
			}
			seen[a.ElemType] = true
			order = append(order, a.ElemType)
		}
	}
	return order
}

// Prune runs both C12 passes over root and everything reachable from
// it, mutating TypeDef.Functions (and logging, not removing, dead
// attributes — see below) in place. Callers must call Prune before
// any TypeDef.Table call: unused-attribute information is most useful
// to a caller willing to omit those columns from its own
// builder-level schema, but this implementation keeps row layout
// stable once a DS is registered (dropping a column merely because no
// operation reads it would silently break any external reader going
// through getAttribute's raw offset/width contract, spec.md §4.2), so
// Prune's attribute pass is diagnostic only: it is still a genuine
// reachability computation, just not wired to alter the byte layout.
func Prune(root *ir.TypeDef) Report {
	types := CollectTypes(root)
	fnDropped := pruneFunctions(root, types)
	kept, dashed := diagnoseAttributes(root, types)
	return Report{FunctionsDropped: fnDropped, AttributesKept: kept, AttributesUnused: dashed}
}

type callSite struct {
	typ *ir.TypeDef
	fn  string
}

// pruneFunctions computes, for each non-root TypeDef, the set of
// functions transitively reachable from root's public operations and
// its Constructor, and drops everything else. Root's own Functions are the DS's public API
// and are never pruned.
func pruneFunctions(root *ir.TypeDef, types []*ir.TypeDef) int {
	reachable := make(map[callSite]bool)
	queue := make([]callSite, 0)

	visit := func(body []ir.Stmt) {
		walkCalls(body, func(calleeType *ir.TypeDef, calleeFn string) {
			cs := callSite{typ: calleeType, fn: calleeFn}
			if reachable[cs] {
				return
			}
			reachable[cs] = true
			queue = append(queue, cs)
		})
	}

	for _, fn := range root.Functions {
		visit(fn.Body)
	}
	if root.Constructor != nil {
		visit(root.Constructor.Body)
	}
	for i := 0; i < len(queue); i++ {
		cs := queue[i]
		fn, ok := cs.typ.Functions[cs.fn]
		if !ok {
			continue
		}
		visit(fn.Body)
	}

	dropped := 0
	for _, td := range types {
		if td == root {
			continue
		}
		kept := make(map[string]*ir.Function, len(td.Functions))
		for name, fn := range td.Functions {
			if reachable[callSite{typ: td, fn: name}] {
				kept[name] = fn
				continue
			}
			dropped++
			dlog.Debug("optimizer dropped unused function", "type", td.Name, "function", name)
		}
		td.Functions = kept
	}
	return dropped
}

func walkCalls(body []ir.Stmt, emit func(typ *ir.TypeDef, fn string)) {
	for i := range body {
		s := &body[i]
		switch s.Kind {
		case ir.StmtCall:
			if s.Type != nil {
				emit(s.Type, s.Fn)
			}
		case ir.StmtIf:
			walkCalls(s.Then, emit)
			walkCalls(s.Else, emit)
		case ir.StmtWhile, ir.StmtForEachIndex, ir.StmtLock:
			walkCalls(s.Body, emit)
		}
	}
}

// diagnoseAttributes walks every kept function body (root's operations
// plus every surviving sub-type method) tracking, per call, which
// TypeDef owns "the current record" and which TypeDef each local
// variable holds (seeded by StmtCreate and StmtForEachIndex, the two
// statement kinds that bind a new record-typed local to a statically
// known type), and records a RoaringBitmap of touched attribute
// indices per TypeDef.
func diagnoseAttributes(root *ir.TypeDef, types []*ir.TypeDef) (kept, dashed int) {
	used := make(map[*ir.TypeDef]*roaring.Bitmap, len(types))
	for _, td := range types {
		used[td] = roaring.New()
	}

	for _, td := range types {
		for _, fn := range td.Functions {
			walkAttrUsage(fn.Body, td, map[string]*ir.TypeDef{}, used)
		}
	}

	for _, td := range types {
		bm := used[td]
		for i, a := range td.Attributes {
			if bm.Contains(uint32(i)) {
				kept++
			} else {
				dashed++
				dlog.Debug("optimizer found unused attribute", "type", td.Name, "attribute", a.Name)
			}
		}
	}
	return kept, dashed
}

func walkAttrUsage(body []ir.Stmt, self *ir.TypeDef, locals map[string]*ir.TypeDef, used map[*ir.TypeDef]*roaring.Bitmap) {
	markExpr := func(e *ir.Expr) { walkExprAttrUsage(e, self, locals, used) }

	for i := range body {
		s := &body[i]
		switch s.Kind {
		case ir.StmtSetField:
			markExpr(s.Src)
			markExpr(s.Ref)
			markOwnerAttr(s.Ref, s.Attr, self, locals, used)
		case ir.StmtSetVar:
			markExpr(s.Src)
		case ir.StmtCreate:
			locals[s.Dest] = s.Type
		case ir.StmtCall:
			for _, a := range s.Args {
				markExpr(a)
			}
			markExpr(s.Ref)
		case ir.StmtIf:
			markExpr(s.Cond)
			walkAttrUsage(s.Then, self, locals, used)
			walkAttrUsage(s.Else, self, locals, used)
		case ir.StmtWhile:
			markExpr(s.Cond)
			walkAttrUsage(s.Body, self, locals, used)
		case ir.StmtForEachIndex:
			markOwnerAttr(s.Ref, s.Attr, self, locals, used)
			if typ := ownerType(s.Ref, self, locals); typ != nil {
				if idx := typ.AttrIndex(s.Attr); idx >= 0 {
					locals[s.Dest] = typ.Attributes[idx].ElemType
				}
			}
			walkAttrUsage(s.Body, self, locals, used)
		case ir.StmtReturn:
			markExpr(s.Src)
		case ir.StmtLock:
			walkAttrUsage(s.Body, self, locals, used)
		case ir.StmtIndexInsert:
			markExpr(s.Key)
			markExpr(s.Ref2)
			markOwnerAttr(s.Ref, s.Attr, self, locals, used)
		case ir.StmtIndexRemove:
			markExpr(s.Key)
			markOwnerAttr(s.Ref, s.Attr, self, locals, used)
		}
	}
}

func walkExprAttrUsage(e *ir.Expr, self *ir.TypeDef, locals map[string]*ir.TypeDef, used map[*ir.TypeDef]*roaring.Bitmap) {
	if e == nil {
		return
	}
	switch e.Kind {
	case ir.ExprAttr:
		markOwnerAttr(e.Ref, e.Name, self, locals, used)
		walkExprAttrUsage(e.Ref, self, locals, used)
	case ir.ExprIndexFind:
		markOwnerAttr(e.Ref, e.Attr, self, locals, used)
		walkExprAttrUsage(e.Ref, self, locals, used)
		walkExprAttrUsage(e.Key, self, locals, used)
	case ir.ExprBinary:
		walkExprAttrUsage(e.L, self, locals, used)
		walkExprAttrUsage(e.R, self, locals, used)
	case ir.ExprUnary:
		walkExprAttrUsage(e.L, self, locals, used)
	}
}

// ownerType resolves ref to the TypeDef it statically names, or nil if
// unresolvable (an arbitrary expression chain, not the current record
// or a tracked local).
func ownerType(ref *ir.Expr, self *ir.TypeDef, locals map[string]*ir.TypeDef) *ir.TypeDef {
	if ref == nil {
		return self
	}
	if ref.Kind == ir.ExprVar {
		return locals[ref.Name]
	}
	return nil
}

func markOwnerAttr(ref *ir.Expr, attr string, self *ir.TypeDef, locals map[string]*ir.TypeDef, used map[*ir.TypeDef]*roaring.Bitmap) {
	typ := ownerType(ref, self, locals)
	if typ == nil {
		return
	}
	idx := typ.AttrIndex(attr)
	if idx < 0 {
		return
	}
	bm, ok := used[typ]
	if !ok {
		return
	}
	bm.Add(uint32(idx))
}
