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

package interp

import (
	"github.com/dcds-project/dcds/internal/common/mathutil"
	"github.com/dcds-project/dcds/internal/dcdserr"
	"github.com/dcds-project/dcds/internal/ir"
	"github.com/dcds-project/dcds/internal/value"
)

// Eval evaluates a single expression node against ctx. Expressions
// never mutate state directly (spec.md §4.7 keeps side effects on the
// statement side); GetMember reads go through table.Table.GetAttribute
// without taking a lock, matching the no-implicit-locking contract
// Run documents above.
func Eval(e *ir.Expr, ctx *Context) (value.Value, error) {
	switch e.Kind {
	case ir.ExprConstInt32:
		return value.I32(e.ConstI32), nil
	case ir.ExprConstInt64:
		return value.I64(e.ConstI64), nil
	case ir.ExprConstFloat32:
		return value.F32(e.ConstF32), nil
	case ir.ExprConstFloat64:
		return value.F64(e.ConstF64), nil
	case ir.ExprConstBool:
		return value.B(e.ConstB), nil
	case ir.ExprConstRef:
		return value.RawRef(e.ConstRef), nil

	case ir.ExprVar:
		v, ok := ctx.locals[e.Name]
		if !ok {
			return value.Value{}, dcdserr.NewFatalf("interp: undeclared variable %q", e.Name)
		}
		return v, nil

	case ir.ExprAttr:
		ref, err := resolveRef(e.Ref, ctx)
		if err != nil {
			return value.Value{}, err
		}
		tbl, err := ctx.resolveTable(ref)
		if err != nil {
			return value.Value{}, err
		}
		idx := tbl.ColumnIndex(e.Name)
		if idx < 0 {
			return value.Value{}, dcdserr.ErrUnknownName
		}
		return tbl.GetAttribute(ref, idx)

	case ir.ExprIndexFind:
		ref, err := resolveRef(e.Ref, ctx)
		if err != nil {
			return value.Value{}, err
		}
		ix, err := ctx.indexFor(ref, e.Attr, false)
		if err != nil {
			return value.Value{}, err
		}
		if ix == nil {
			return value.RawRef(0), nil
		}
		key, err := Eval(e.Key, ctx)
		if err != nil {
			return value.Value{}, err
		}
		found, ok := ix.Find(key)
		if !ok {
			return value.RawRef(0), nil
		}
		return value.RawRef(found.Uint64()), nil

	case ir.ExprBinary:
		l, err := Eval(e.L, ctx)
		if err != nil {
			return value.Value{}, err
		}
		r, err := Eval(e.R, ctx)
		if err != nil {
			return value.Value{}, err
		}
		return evalBinary(e.BOp, l, r)

	case ir.ExprUnary:
		l, err := Eval(e.L, ctx)
		if err != nil {
			return value.Value{}, err
		}
		return evalUnary(e.UOp, l)

	default:
		return value.Value{}, dcdserr.NewFatalf("interp: unknown expression kind %d", e.Kind)
	}
}

func evalUnary(op ir.UnOp, l value.Value) (value.Value, error) {
	switch op {
	case ir.OpNot:
		if l.Kind() != value.Bool {
			return value.Value{}, dcdserr.ErrTypeMismatch
		}
		return value.B(!l.AsBool()), nil
	case ir.OpNeg:
		switch l.Kind() {
		case value.Int32:
			return value.I32(-l.AsI32()), nil
		case value.Int64:
			return value.I64(-l.AsI64()), nil
		case value.Float:
			return value.F32(-l.AsF32()), nil
		case value.Double:
			return value.F64(-l.AsF64()), nil
		default:
			return value.Value{}, dcdserr.ErrTypeMismatch
		}
	case ir.OpIsEven:
		switch l.Kind() {
		case value.Int32:
			return value.B(l.AsI32()%2 == 0), nil
		case value.Int64:
			return value.B(l.AsI64()%2 == 0), nil
		default:
			return value.Value{}, dcdserr.ErrTypeMismatch
		}
	default:
		return value.Value{}, dcdserr.NewFatalf("interp: unknown unary operator %d", op)
	}
}

func evalBinary(op ir.BinOp, l, r value.Value) (value.Value, error) {
	if op == ir.OpAnd || op == ir.OpOr {
		if l.Kind() != value.Bool || r.Kind() != value.Bool {
			return value.Value{}, dcdserr.ErrTypeMismatch
		}
		if op == ir.OpAnd {
			return value.B(l.AsBool() && r.AsBool()), nil
		}
		return value.B(l.AsBool() || r.AsBool()), nil
	}

	if l.Kind() != r.Kind() {
		return value.Value{}, dcdserr.ErrTypeMismatch
	}

	switch l.Kind() {
	case value.Int32:
		return evalIntOp(op, int64(l.AsI32()), int64(r.AsI32()), true)
	case value.Int64:
		return evalIntOp(op, l.AsI64(), r.AsI64(), false)
	case value.Float:
		return evalFloatOp(op, float64(l.AsF32()), float64(r.AsF32()), true)
	case value.Double:
		return evalFloatOp(op, l.AsF64(), r.AsF64(), false)
	case value.RecordPtr:
		return evalRefOp(op, l.AsRawRef(), r.AsRawRef())
	default:
		return value.Value{}, dcdserr.ErrTypeMismatch
	}
}

func evalIntOp(op ir.BinOp, l, r int64, narrow bool) (value.Value, error) {
	wrap := func(x int64) (value.Value, error) {
		if narrow {
			if x < mathutil.MinInt32 || x > mathutil.MaxInt32 {
				return value.Value{}, dcdserr.NewFatal("interp: int32 arithmetic overflow")
			}
			return value.I32(int32(x)), nil
		}
		return value.I64(x), nil
	}
	switch op {
	case ir.OpAdd:
		sum, overflow := mathutil.SafeAddInt64(l, r)
		if overflow {
			return value.Value{}, dcdserr.NewFatal("interp: int64 arithmetic overflow")
		}
		return wrap(sum)
	case ir.OpSub:
		diff, overflow := mathutil.SafeSubInt64(l, r)
		if overflow {
			return value.Value{}, dcdserr.NewFatal("interp: int64 arithmetic overflow")
		}
		return wrap(diff)
	case ir.OpMul:
		return wrap(l * r)
	case ir.OpDiv:
		if r == 0 {
			return value.Value{}, dcdserr.NewFatal("interp: division by zero")
		}
		return wrap(l / r)
	case ir.OpEq:
		return value.B(l == r), nil
	case ir.OpNeq:
		return value.B(l != r), nil
	case ir.OpLt:
		return value.B(l < r), nil
	case ir.OpLte:
		return value.B(l <= r), nil
	case ir.OpGt:
		return value.B(l > r), nil
	case ir.OpGte:
		return value.B(l >= r), nil
	default:
		return value.Value{}, dcdserr.NewFatalf("interp: unknown binary operator %d", op)
	}
}

func evalFloatOp(op ir.BinOp, l, r float64, narrow bool) (value.Value, error) {
	wrap := func(x float64) (value.Value, error) {
		if narrow {
			return value.F32(float32(x)), nil
		}
		return value.F64(x), nil
	}
	switch op {
	case ir.OpAdd:
		return wrap(l + r)
	case ir.OpSub:
		return wrap(l - r)
	case ir.OpMul:
		return wrap(l * r)
	case ir.OpDiv:
		if r == 0 {
			return value.Value{}, dcdserr.NewFatal("interp: division by zero")
		}
		return wrap(l / r)
	case ir.OpEq:
		return value.B(l == r), nil
	case ir.OpNeq:
		return value.B(l != r), nil
	case ir.OpLt:
		return value.B(l < r), nil
	case ir.OpLte:
		return value.B(l <= r), nil
	case ir.OpGt:
		return value.B(l > r), nil
	case ir.OpGte:
		return value.B(l >= r), nil
	default:
		return value.Value{}, dcdserr.NewFatalf("interp: unknown binary operator %d", op)
	}
}

func evalRefOp(op ir.BinOp, l, r uint64) (value.Value, error) {
	switch op {
	case ir.OpEq:
		return value.B(l == r), nil
	case ir.OpNeq:
		return value.B(l != r), nil
	default:
		return value.Value{}, dcdserr.ErrTypeMismatch
	}
}
