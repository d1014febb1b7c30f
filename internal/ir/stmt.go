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

package ir

// StmtKind tags the one active branch of a Stmt. Kept as a single flat
// struct with a kind tag rather than an interface hierarchy per node
// type, so the CC injector (C10) and the optimizer (C12) can walk and
// rewrite a function body as a plain []Stmt slice (spec.md's DESIGN
// NOTES).
type StmtKind uint8

const (
	// StmtSetField writes Src into attribute Attr of the record Ref
	// evaluates to (Ref nil means the function's current record).
	StmtSetField StmtKind = iota
	// StmtSetVar writes Src into local variable Dest, declaring it on
	// first use.
	StmtSetVar
	// StmtCreate instantiates a new, as-yet-unlinked record of Type and
	// binds it to local variable Dest (spec.md §4.2 insertRecord plus
	// the "nascent, not yet reachable" bookkeeping CC injection relies
	// on, spec.md §4.9).
	StmtCreate
	// StmtCall invokes function Fn of Type (resolved statically by the
	// builder, the same way any typed-language compiler resolves a
	// method call before it ever runs) on the record Ref evaluates to
	// (nil means the current record), optionally binding the return
	// value to local variable RetDest.
	StmtCall
	// StmtIf runs Then if Cond is true, else Else.
	StmtIf
	// StmtWhile repeats Body while Cond is true.
	StmtWhile
	// StmtForEachIndex iterates the indexed-list attribute Attr of Ref's
	// record, binding each element's record ref to local variable Dest
	// for Body (spec.md §4.8).
	StmtForEachIndex
	// StmtReturn evaluates Src (may be nil for a void function) and
	// ends the enclosing function.
	StmtReturn
	// StmtLock acquires the CC injector's chosen lock mode (Exclusive)
	// on the record Ref evaluates to (nil = current record), before Body runs. This
	// is the shape internal/ccinject's pass materializes; user-authored
	// function bodies never contain it directly.
	StmtLock
	// StmtIndexInsert inserts Key -> the record Ref2 evaluates to into
	// the indexed-list attribute Attr of Ref's record.
	StmtIndexInsert
	// StmtIndexRemove removes Key from the indexed-list attribute Attr
	// of Ref's record.
	StmtIndexRemove
	// StmtDelete marks the record Ref evaluates to as freed (spec.md
	// §4.2 rollback_create's counterpart for an explicit delete, e.g.
	// LRU eviction or linked-list pop).
	StmtDelete
)

// Stmt is a tagged-union statement node.
type Stmt struct {
	Kind StmtKind

	Ref  *Expr // StmtSetField/StmtCall/StmtForEachIndex/StmtIndexInsert/StmtIndexRemove/StmtLock/StmtDelete: nil = current record
	Ref2 *Expr // StmtIndexInsert: the record to insert
	Attr string
	Dest string // StmtSetVar/StmtCreate/StmtForEachIndex: local variable name
	Src  *Expr
	Key  *Expr // StmtIndexInsert/StmtIndexRemove

	Type *TypeDef // StmtCreate: type to instantiate; StmtCall: statically resolved receiver type

	Fn      string
	Args    []*Expr
	RetDest string // StmtCall: local variable to receive the return value, "" to discard

	Cond *Expr
	Then []Stmt
	Else []Stmt
	Body []Stmt

	Exclusive bool // StmtLock
}

func SetField(ref *Expr, attr string, src *Expr) Stmt {
	return Stmt{Kind: StmtSetField, Ref: ref, Attr: attr, Src: src}
}

func SetVar(dest string, src *Expr) Stmt {
	return Stmt{Kind: StmtSetVar, Dest: dest, Src: src}
}

func Create(dest string, typ *TypeDef) Stmt {
	return Stmt{Kind: StmtCreate, Dest: dest, Type: typ}
}

func Call(ref *Expr, typ *TypeDef, fn string, retDest string, args ...*Expr) Stmt {
	return Stmt{Kind: StmtCall, Ref: ref, Type: typ, Fn: fn, RetDest: retDest, Args: args}
}

func If(cond *Expr, then, els []Stmt) Stmt {
	return Stmt{Kind: StmtIf, Cond: cond, Then: then, Else: els}
}

func While(cond *Expr, body []Stmt) Stmt {
	return Stmt{Kind: StmtWhile, Cond: cond, Body: body}
}

// ForLoop builds a standard for-loop as a StmtWhile with post run at the
// end of every iteration: loop_var's own initialization is just an
// ordinary SetVar placed before the returned statement by the caller,
// matching spec.md §4.7's ForLoop(loop_var, cond_expr, iter_expr, body)
// with no separate StmtKind needed.
func ForLoop(cond *Expr, body []Stmt, post Stmt) Stmt {
	full := make([]Stmt, 0, len(body)+1)
	full = append(full, body...)
	full = append(full, post)
	return While(cond, full)
}

// DoWhile builds a post-test loop (spec.md §4.7's DoWhileLoop) as body
// run once unconditionally followed by a StmtWhile on the same body:
// no separate StmtKind is needed since the reduction is exact.
func DoWhile(cond *Expr, body []Stmt) []Stmt {
	out := make([]Stmt, 0, len(body)+1)
	out = append(out, body...)
	out = append(out, While(cond, body))
	return out
}

func ForEachIndex(ref *Expr, attr, dest string, body []Stmt) Stmt {
	return Stmt{Kind: StmtForEachIndex, Ref: ref, Attr: attr, Dest: dest, Body: body}
}

func Return(src *Expr) Stmt {
	return Stmt{Kind: StmtReturn, Src: src}
}

// Lock is the statement internal/ccinject inserts; user-authored bodies
// do not construct it directly, but tests exercising the interpreter in
// isolation (ahead of CC injection) may.
func Lock(ref *Expr, exclusive bool, body []Stmt) Stmt {
	return Stmt{Kind: StmtLock, Ref: ref, Exclusive: exclusive, Body: body}
}

func IndexInsert(ref *Expr, attr string, key, elem *Expr) Stmt {
	return Stmt{Kind: StmtIndexInsert, Ref: ref, Attr: attr, Key: key, Ref2: elem}
}

func IndexRemove(ref *Expr, attr string, key *Expr) Stmt {
	return Stmt{Kind: StmtIndexRemove, Ref: ref, Attr: attr, Key: key}
}

func Delete(ref *Expr) Stmt {
	return Stmt{Kind: StmtDelete, Ref: ref}
}
