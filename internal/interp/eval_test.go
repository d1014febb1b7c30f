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

package interp_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dcds-project/dcds/internal/interp"
	"github.com/dcds-project/dcds/internal/ir"
	"github.com/dcds-project/dcds/internal/record"
	"github.com/dcds-project/dcds/internal/table"
	"github.com/dcds-project/dcds/internal/txn"
	"github.com/dcds-project/dcds/internal/value"
)

func TestIsEvenOnIntegers(t *testing.T) {
	ctx := interp.NewContext(nil, nil, nil, nil, record.Null, nil)

	v, err := interp.Eval(ir.IsEven(ir.ConstI64(4)), ctx)
	require.NoError(t, err)
	require.True(t, v.AsBool())

	v, err = interp.Eval(ir.IsEven(ir.ConstI64(3)), ctx)
	require.NoError(t, err)
	require.False(t, v.AsBool())

	v, err = interp.Eval(ir.IsEven(ir.ConstI32(-4)), ctx)
	require.NoError(t, err)
	require.True(t, v.AsBool())
}

func newCountingContext(t *testing.T) (*interp.Context, *table.Table, record.Ref) {
	t.Helper()
	tbl := table.New(1, "eval_loop", []value.Kind{value.Int64}, []string{"n"})
	ref := tbl.InsertRecord(nil, nil)
	require.NoError(t, tbl.UpdateAttribute(nil, ref, value.I64(0), 0))

	mgr := txn.NewManager()
	tx := mgr.Begin(false)
	rec, err := tbl.Record(ref)
	require.NoError(t, err)
	require.True(t, tx.TryLockExclusive(rec))

	ctx := interp.NewContext(tx, nil, nil, nil, ref, tbl)
	return ctx, tbl, ref
}

// TestForLoopReduction exercises ir.ForLoop's desugaring into a
// StmtWhile with the post-iteration statement appended to the body:
// five iterations should increment "n" exactly five times.
func TestForLoopReduction(t *testing.T) {
	ctx, tbl, ref := newCountingContext(t)

	fn := &ir.Function{
		Name:    "count_to_5",
		RetKind: value.Void,
		Body: []ir.Stmt{
			ir.SetVar("i", ir.ConstI64(0)),
			ir.ForLoop(
				ir.Lt(ir.Var("i"), ir.ConstI64(5)),
				[]ir.Stmt{ir.SetField(nil, "n", ir.Add(ir.Attr("n"), ir.ConstI64(1)))},
				ir.SetVar("i", ir.Add(ir.Var("i"), ir.ConstI64(1))),
			),
		},
	}
	_, err := interp.Run(fn, ctx, nil)
	require.NoError(t, err)

	got, err := tbl.GetAttribute(ref, 0)
	require.NoError(t, err)
	require.Equal(t, int64(5), got.AsI64())
}

// TestDoWhileReduction exercises ir.DoWhile's post-test semantics: the
// body runs once even though the condition is false from the start.
func TestDoWhileReduction(t *testing.T) {
	ctx, tbl, ref := newCountingContext(t)

	fn := &ir.Function{
		Name:    "run_once",
		RetKind: value.Void,
		Body: ir.DoWhile(ir.ConstBool(false),
			[]ir.Stmt{ir.SetField(nil, "n", ir.Add(ir.Attr("n"), ir.ConstI64(1)))},
		),
	}
	_, err := interp.Run(fn, ctx, nil)
	require.NoError(t, err)

	got, err := tbl.GetAttribute(ref, 0)
	require.NoError(t, err)
	require.Equal(t, int64(1), got.AsI64())
}
