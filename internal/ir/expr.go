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

import "github.com/dcds-project/dcds/internal/value"

// ExprKind tags the one active branch of an Expr (spec.md's DESIGN
// NOTES: "a flat enum with a payload per kind, not a class hierarchy
// per node type").
type ExprKind uint8

const (
	ExprConstInt32 ExprKind = iota
	ExprConstInt64
	ExprConstFloat32
	ExprConstFloat64
	ExprConstBool
	ExprConstRef // a record_ptr literal; only Null() is realistically built by hand
	ExprVar    // a local variable or function parameter, by name
	ExprAttr   // Name attribute of the record Ref evaluates to (Ref nil means the function's own current record)
	ExprBinary // L Op R
	ExprUnary  // Op L

	// ExprIndexFind reads the indexed-list attribute Attr of the record
	// Ref evaluates to (nil = current record) and evaluates to the
	// record_ptr stored under Key, or Null() if Key is absent (spec.md
	// §4.6's find, folded into a single expression since Go's one-value
	// Expr shape has no room for a separate found/not-found flag: a
	// caller distinguishes "absent" from "present" by comparing the
	// result against Null()).
	ExprIndexFind
)

// BinOp names a binary operator.
type BinOp uint8

const (
	OpAdd BinOp = iota
	OpSub
	OpMul
	OpDiv
	OpEq
	OpNeq
	OpLt
	OpLte
	OpGt
	OpGte
	OpAnd
	OpOr
)

// UnOp names a unary operator.
type UnOp uint8

const (
	OpNeg UnOp = iota
	OpNot
	OpIsEven // integer operand only: value % 2 == 0
)

// Expr is a tagged-union expression node. Only the fields matching Kind
// are meaningful.
type Expr struct {
	Kind ExprKind

	ConstI32 int32
	ConstI64 int64
	ConstF32 float32
	ConstF64 float64
	ConstB   bool
	ConstRef uint64 // ExprConstRef

	Name string // ExprVar, ExprAttr
	Ref  *Expr  // ExprAttr, ExprIndexFind: nil means the enclosing function's current record
	Attr string // ExprIndexFind: indexed-list attribute name
	Key  *Expr  // ExprIndexFind: lookup key

	BOp BinOp
	UOp UnOp
	L   *Expr
	R   *Expr // unused for ExprUnary
}

func ConstI32(v int32) *Expr   { return &Expr{Kind: ExprConstInt32, ConstI32: v} }
func ConstI64(v int64) *Expr   { return &Expr{Kind: ExprConstInt64, ConstI64: v} }
func ConstF32(v float32) *Expr { return &Expr{Kind: ExprConstFloat32, ConstF32: v} }
func ConstF64(v float64) *Expr { return &Expr{Kind: ExprConstFloat64, ConstF64: v} }
func ConstBool(v bool) *Expr   { return &Expr{Kind: ExprConstBool, ConstB: v} }

// Null is the empty-list/no-link sentinel record reference (spec.md §3's
// null record_ptr), usable anywhere a record_ptr-valued expression is
// expected, most often compared against with Eq/Neq.
func Null() *Expr { return &Expr{Kind: ExprConstRef, ConstRef: 0} }

func Var(name string) *Expr { return &Expr{Kind: ExprVar, Name: name} }

// Attr reads attribute name of the function's current record.
func Attr(name string) *Expr { return &Expr{Kind: ExprAttr, Name: name} }

// AttrOf reads attribute name of whatever record ref evaluates to
// (spec.md §4.7 GetMember applied to an arbitrary record pointer, e.g.
// a linked-list node's "next" field).
func AttrOf(ref *Expr, name string) *Expr {
	return &Expr{Kind: ExprAttr, Name: name, Ref: ref}
}

// IndexFind reads the indexed-list attribute attr of ref's record (nil
// ref means the current record) for key, yielding the stored
// record_ptr or Null() if absent.
func IndexFind(ref *Expr, attr string, key *Expr) *Expr {
	return &Expr{Kind: ExprIndexFind, Ref: ref, Attr: attr, Key: key}
}

func Bin(op BinOp, l, r *Expr) *Expr { return &Expr{Kind: ExprBinary, BOp: op, L: l, R: r} }
func Un(op UnOp, l *Expr) *Expr      { return &Expr{Kind: ExprUnary, UOp: op, L: l} }

func Add(l, r *Expr) *Expr { return Bin(OpAdd, l, r) }
func Sub(l, r *Expr) *Expr { return Bin(OpSub, l, r) }
func Mul(l, r *Expr) *Expr { return Bin(OpMul, l, r) }
func Div(l, r *Expr) *Expr { return Bin(OpDiv, l, r) }
func Eq(l, r *Expr) *Expr  { return Bin(OpEq, l, r) }
func Neq(l, r *Expr) *Expr { return Bin(OpNeq, l, r) }
func Lt(l, r *Expr) *Expr  { return Bin(OpLt, l, r) }
func Lte(l, r *Expr) *Expr { return Bin(OpLte, l, r) }
func Gt(l, r *Expr) *Expr  { return Bin(OpGt, l, r) }
func Gte(l, r *Expr) *Expr { return Bin(OpGte, l, r) }
func And(l, r *Expr) *Expr { return Bin(OpAnd, l, r) }
func Or(l, r *Expr) *Expr  { return Bin(OpOr, l, r) }
func Not(l *Expr) *Expr    { return Un(OpNot, l) }
func Neg(l *Expr) *Expr    { return Un(OpNeg, l) }
func IsEven(l *Expr) *Expr { return Un(OpIsEven, l) }

// ConstKind reports the value.Kind a constant expr's literal carries
// (RecordPtr also for ExprIndexFind, whose result is always a
// record_ptr), or value.Void for any other expression kind.
func (e *Expr) ConstKind() value.Kind {
	switch e.Kind {
	case ExprConstInt32:
		return value.Int32
	case ExprConstInt64:
		return value.Int64
	case ExprConstFloat32:
		return value.Float
	case ExprConstFloat64:
		return value.Double
	case ExprConstBool:
		return value.Bool
	case ExprConstRef, ExprIndexFind:
		return value.RecordPtr
	default:
		return value.Void
	}
}
