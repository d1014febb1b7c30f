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

package lock

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSharedLockAllowsMultipleHolders(t *testing.T) {
	var l RecordLock
	require.True(t, l.TryLockShared(1))
	require.True(t, l.TryLockShared(2))
	require.True(t, l.TryLockShared(1)) // reentrant
}

func TestExclusiveLockExcludesOthers(t *testing.T) {
	var l RecordLock
	require.True(t, l.TryLockExclusive(1))
	require.False(t, l.TryLockExclusive(2))
	require.False(t, l.TryLockShared(2))
	require.True(t, l.TryLockExclusive(1)) // reentrant
}

func TestExclusiveExcludesSharedAndViceVersa(t *testing.T) {
	var l RecordLock
	require.True(t, l.TryLockShared(1))
	require.False(t, l.TryLockExclusive(2))
	l.UnlockShared(1)
	require.True(t, l.TryLockExclusive(2))
	require.False(t, l.TryLockShared(1))
}

func TestSoleSharedHolderUpgradesInPlace(t *testing.T) {
	var l RecordLock
	require.True(t, l.TryLockShared(1))
	require.True(t, l.TryLockExclusive(1))
	require.True(t, l.HeldExclusiveBy(1))
}

func TestUpgradeFailsWithCompetingSharedHolder(t *testing.T) {
	var l RecordLock
	require.True(t, l.TryLockShared(1))
	require.True(t, l.TryLockShared(2))
	require.False(t, l.TryLockExclusive(1))
	require.False(t, l.HeldExclusiveBy(1))
}

func TestUnlockExclusiveOnlyReleasesTheHolder(t *testing.T) {
	var l RecordLock
	require.True(t, l.TryLockExclusive(1))
	l.UnlockExclusive(2) // not the holder: no-op
	require.True(t, l.HeldExclusiveBy(1))
	l.UnlockExclusive(1)
	require.False(t, l.HeldExclusiveBy(1))
	require.True(t, l.TryLockExclusive(2))
}
