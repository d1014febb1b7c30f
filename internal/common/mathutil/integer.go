// Copyright 2017 The go-ethereum Authors
// (original work)
// Copyright 2024 The DCDS Authors
// (modifications)
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

// Package mathutil holds small overflow-checked integer helpers used
// by the expression evaluator (internal/interp) for the '+' and '-'
// binary arithmetic operators on int32/int64 operands.
package mathutil

import "math/bits"

// Integer limit values.
const (
	MaxInt32 = 1<<31 - 1
	MinInt32 = -1 << 31
	MaxInt64 = 1<<63 - 1
	MinInt64 = -1 << 63
)

// SafeAddInt64 returns x+y and reports whether the addition overflowed
// a signed 64-bit integer.
func SafeAddInt64(x, y int64) (sum int64, overflow bool) {
	sum = x + y
	// Overflow iff operands have the same sign and the result's sign differs.
	overflow = (x > 0 && y > 0 && sum < 0) || (x < 0 && y < 0 && sum > 0)
	return sum, overflow
}

// SafeSubInt64 returns x-y and reports whether the subtraction
// overflowed a signed 64-bit integer.
func SafeSubInt64(x, y int64) (diff int64, overflow bool) {
	diff = x - y
	overflow = (y < 0 && diff < x) || (y > 0 && diff > x)
	return diff, overflow
}

// SafeAddUint64 returns x+y and checks for overflow via bits.Add64's
// carry output.
func SafeAddUint64(x, y uint64) (sum uint64, overflow bool) {
	sum, carryOut := bits.Add64(x, y, 0)
	return sum, carryOut != 0
}
