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

// Package record implements DCDS's per-record metadata and the packed
// record reference (spec C2). A Ref packs a 16-bit table id and a
// 48-bit table-relative slot index into a single uint64, exactly as
// spec.md describes for platforms without safe 48-bit raw addresses
// (see SPEC_FULL.md §3): the table owns a slot-addressed arena rather
// than handing out raw pointers.
package record

import (
	"fmt"

	"github.com/dcds-project/dcds/internal/lock"
)

// TableID is the numeric id a table.Table is assigned by the registry.
type TableID uint16

const tableIDShift = 48
const slotMask = (uint64(1) << tableIDShift) - 1

// Ref is a packed (table_id:16, slot:48) record reference. The zero
// Ref is the null record (spec.md §3, Record reference invariants).
type Ref uint64

// Null is the zero reference: no table, no slot.
const Null Ref = 0

// NewRef packs a table id and slot index into a Ref. It panics if
// slot does not fit in 48 bits: a valid address (here, slot) must fit
// in the low bits of the tag.
func NewRef(table TableID, slot uint64) Ref {
	if slot > slotMask {
		panic(fmt.Sprintf("record: slot %d does not fit in 48 bits", slot))
	}
	return Ref(uint64(table)<<tableIDShift | slot)
}

func (r Ref) IsNull() bool    { return r == Null }
func (r Ref) TableID() TableID { return TableID(uint64(r) >> tableIDShift) }
func (r Ref) Slot() uint64     { return uint64(r) & slotMask }
func (r Ref) Uint64() uint64   { return uint64(r) }

// FromUint64 recovers a Ref from its packed 64-bit encoding, as stored
// in a record_ptr column.
func FromUint64(u uint64) Ref { return Ref(u) }

func (r Ref) String() string {
	if r.IsNull() {
		return "ref(null)"
	}
	return fmt.Sprintf("ref(table=%d,slot=%d)", r.TableID(), r.Slot())
}

// Record is one row: a shared/exclusive lock (spec C7 lives here, not
// on the table) plus the packed attribute bytes. freed marks a record
// whose insert was rolled back (spec.md §4.2 rollback_create); reads
// of a freed record are a Fatal invariant violation at the caller
// (the only legitimate way to observe a freed slot is a stale Ref that
// itself violates invariant 1 of spec.md §3).
type Record struct {
	Lock  lock.RecordLock
	data  []byte
	freed bool
}

// NewRecord allocates a record of the given data width, optionally
// initialized from src (copied), else zero-filled.
func NewRecord(width int, src []byte) *Record {
	data := make([]byte, width)
	if src != nil {
		copy(data, src)
	}
	return &Record{data: data}
}

// Data returns the record's raw attribute bytes (metadata-skipped, as
// spec.md's getRecordData contract requires). Callers must hold an
// appropriate lock before reading or writing through the slice.
func (r *Record) Data() []byte { return r.data }

func (r *Record) Freed() bool { return r.freed }
func (r *Record) MarkFreed()  { r.freed = true }

// Unfree reverses MarkFreed, undoing a Delete on transaction abort.
func (r *Record) Unfree() { r.freed = false }
