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

package ccinject

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dcds-project/dcds/internal/ir"
	"github.com/dcds-project/dcds/internal/value"
)

func TestInjectWrapsFieldWriteInExclusiveLockOnCurrent(t *testing.T) {
	fn := &ir.Function{
		Name:    "write",
		Params:  []ir.Param{{Name: "v", Kind: value.Int64}},
		RetKind: value.Void,
		Body:    []ir.Stmt{ir.SetField(nil, "counter_value", ir.Var("v"))},
	}

	injected := New().InjectOperation(fn)
	require.Len(t, injected.Body, 1)
	lock := injected.Body[0]
	require.Equal(t, ir.StmtLock, lock.Kind)
	require.True(t, lock.Exclusive)
	require.Nil(t, lock.Ref) // nil ref means "current record"
	require.Len(t, lock.Body, 1)
	require.Equal(t, ir.StmtSetField, lock.Body[0].Kind)
}

// TestRepeatedWritesOnCurrentOnlyLockOnce exercises scope.need's
// "already hold a lock at least as strong" short-circuit: once the
// first statement's Lock node has claimed $current exclusively, a
// later statement in the same function body runs unwrapped — sound
// because a transaction never releases a lock before it ends (strict
// two-phase locking, internal/txn.Txn.unlockAll only ever runs at
// Commit/Abort), so the lock taken for the first statement is still
// held when the second one runs.
func TestRepeatedWritesOnCurrentOnlyLockOnce(t *testing.T) {
	fn := &ir.Function{
		Name:    "bump",
		RetKind: value.Void,
		Body: []ir.Stmt{
			ir.SetField(nil, "a", ir.ConstI64(1)),
			ir.SetField(nil, "b", ir.ConstI64(2)),
		},
	}
	injected := New().InjectOperation(fn)
	require.Len(t, injected.Body, 2)
	require.Equal(t, ir.StmtLock, injected.Body[0].Kind)
	require.Equal(t, ir.StmtSetField, injected.Body[0].Body[0].Kind)
	require.Equal(t, ir.StmtSetField, injected.Body[1].Kind) // no redundant re-lock
}

func TestCreatedRecordNeverGetsLocked(t *testing.T) {
	sub := &ir.TypeDef{Name: "Node"}
	fn := &ir.Function{
		Name:    "make",
		RetKind: value.Void,
		Body: []ir.Stmt{
			ir.Create("n", sub),
			ir.SetField(ir.Var("n"), "x", ir.ConstI64(1)),
		},
	}
	injected := New().InjectOperation(fn)
	require.Equal(t, ir.StmtCreate, injected.Body[0].Kind)
	// the SetField on the just-created "n" is nascent: no lock wrapper.
	require.Equal(t, ir.StmtSetField, injected.Body[1].Kind)
}

// TestBranchLocksDoNotLeakToStatementsAfterIf reproduces the shape of
// internal/examples.LinkedList's pop_back: a shared read of $current,
// then an if/else where only the else arm happens to write $current,
// then an unconditional write to $current after the if. A lock taken
// inside one branch must not be credited to the other branch, nor to
// the unconditional statement that follows: each must independently
// prove it holds (or acquires) the strength it needs.
func TestBranchLocksDoNotLeakToStatementsAfterIf(t *testing.T) {
	fn := &ir.Function{
		Name:    "popback_like",
		RetKind: value.Void,
		Body: []ir.Stmt{
			ir.SetVar("tail", ir.Attr("tail")), // reads $current: shared
			ir.If(ir.Neq(ir.Var("newTail"), ir.Null()),
				[]ir.Stmt{ir.SetField(ir.Var("newTail"), "next", ir.Null())}, // writes a different record
				[]ir.Stmt{ir.SetField(nil, "head", ir.Null())},               // writes $current: exclusive, else-only
			),
			ir.SetField(nil, "tail", ir.Var("newTail")), // writes $current unconditionally
		},
	}
	injected := New().InjectOperation(fn)
	require.Len(t, injected.Body, 3)

	require.Equal(t, ir.StmtLock, injected.Body[0].Kind)
	require.False(t, injected.Body[0].Exclusive)

	ifStmt := injected.Body[1]
	require.Equal(t, ir.StmtIf, ifStmt.Kind)
	require.Equal(t, ir.StmtLock, ifStmt.Then[0].Kind)
	require.Equal(t, ir.ExprVar, ifStmt.Then[0].Ref.Kind) // locks newTail, not $current
	require.Equal(t, ir.StmtLock, ifStmt.Else[0].Kind)
	require.Nil(t, ifStmt.Else[0].Ref) // locks $current, exclusive, else-local
	require.True(t, ifStmt.Else[0].Exclusive)

	// The critical assertion: the statement after the if still gets its
	// own exclusive lock on $current. Before scope.clone() was used for
	// branch recursion, the else arm's exclusive lock leaked into the
	// shared scope and this statement was emitted unwrapped, leaving the
	// "then" runtime path holding $current only shared while writing it.
	after := injected.Body[2]
	require.Equal(t, ir.StmtLock, after.Kind)
	require.True(t, after.Exclusive)
	require.Nil(t, after.Ref)
	require.Equal(t, ir.StmtSetField, after.Body[0].Kind)
}

// TestWhileBodyLocksDoNotLeakAfterLoop mirrors the same concern for
// StmtWhile: a lock taken inside a loop body must not be assumed held
// by a statement after the loop, since the body may have run zero
// times.
func TestWhileBodyLocksDoNotLeakAfterLoop(t *testing.T) {
	fn := &ir.Function{
		Name:    "loopy",
		RetKind: value.Void,
		Body: []ir.Stmt{
			ir.While(ir.Neq(ir.Var("cur"), ir.Null()),
				[]ir.Stmt{ir.SetField(nil, "counter_value", ir.ConstI64(1))},
			),
			ir.SetField(nil, "counter_value", ir.ConstI64(2)),
		},
	}
	injected := New().InjectOperation(fn)
	require.Len(t, injected.Body, 2)

	whileStmt := injected.Body[0]
	require.Equal(t, ir.StmtWhile, whileStmt.Kind)
	require.Equal(t, ir.StmtLock, whileStmt.Body[0].Kind)
	require.True(t, whileStmt.Body[0].Exclusive)

	after := injected.Body[1]
	require.Equal(t, ir.StmtLock, after.Kind)
	require.True(t, after.Exclusive)
}

func TestCallOnNonNascentReceiverLocksBeforeDispatch(t *testing.T) {
	callee := &ir.TypeDef{Name: "Gate", Functions: map[string]*ir.Function{
		"touch": {Name: "touch", RetKind: value.Void, Body: []ir.Stmt{}},
	}}
	fn := &ir.Function{
		Name:    "poke",
		Params:  []ir.Param{{Name: "gate", Kind: value.RecordPtr}},
		RetKind: value.Void,
		Body:    []ir.Stmt{ir.Call(ir.Var("gate"), callee, "touch", "")},
	}
	injected := New().InjectOperation(fn)
	require.Len(t, injected.Body, 1)
	lock := injected.Body[0]
	require.Equal(t, ir.StmtLock, lock.Kind)
	require.True(t, lock.Exclusive)
	require.Equal(t, ir.ExprVar, lock.Ref.Kind)
	require.Equal(t, "gate", lock.Ref.Name)
}
