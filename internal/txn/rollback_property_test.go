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

package txn_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/dcds-project/dcds/internal/table"
	"github.com/dcds-project/dcds/internal/txn"
	"github.com/dcds-project/dcds/internal/value"
)

// TestAbortRestoresPreTransactionBytes fuzzes a random-length sequence
// of attribute updates inside one transaction and checks that Abort
// always leaves the record exactly as it found it, regardless of how
// many updates happened in between (spec.md invariant 3: undo-log
// replay in reverse order is an exact inverse).
func TestAbortRestoresPreTransactionBytes(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		tbl := table.New(1, "fuzz_rollback", []value.Kind{value.Int64}, []string{"v"})
		ref := tbl.InsertRecord(nil, nil)

		initial := rapid.Int64Range(-1_000_000, 1_000_000).Draw(rt, "initial")
		require.NoError(rt, tbl.UpdateAttribute(nil, ref, value.I64(initial), 0))

		mgr := txn.NewManager()
		tx := mgr.Begin(false)
		rec, err := tbl.Record(ref)
		require.NoError(rt, err)
		require.True(rt, tx.TryLockExclusive(rec))

		n := rapid.IntRange(0, 20).Draw(rt, "numUpdates")
		for i := 0; i < n; i++ {
			v := rapid.Int64Range(-1_000_000, 1_000_000).Draw(rt, "v")
			require.NoError(rt, tbl.UpdateAttribute(tx, ref, value.I64(v), 0))
		}
		tx.Abort()

		got, err := tbl.GetAttribute(ref, 0)
		require.NoError(rt, err)
		require.Equal(rt, initial, got.AsI64())
	})
}

// TestCommitKeepsLastWrite is the mirror check: a committed
// transaction's last update is what persists, undo log discarded.
func TestCommitKeepsLastWrite(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		tbl := table.New(1, "fuzz_commit", []value.Kind{value.Int64}, []string{"v"})
		ref := tbl.InsertRecord(nil, nil)

		mgr := txn.NewManager()
		tx := mgr.Begin(false)
		rec, err := tbl.Record(ref)
		require.NoError(rt, err)
		require.True(rt, tx.TryLockExclusive(rec))

		n := rapid.IntRange(1, 20).Draw(rt, "numUpdates")
		var last int64
		for i := 0; i < n; i++ {
			last = rapid.Int64Range(-1_000_000, 1_000_000).Draw(rt, "v")
			require.NoError(rt, tbl.UpdateAttribute(tx, ref, value.I64(last), 0))
		}
		tx.Commit()

		got, err := tbl.GetAttribute(ref, 0)
		require.NoError(rt, err)
		require.Equal(rt, last, got.AsI64())
	})
}
