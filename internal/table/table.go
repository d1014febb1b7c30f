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

// Package table implements DCDS's single-version row store (spec C3):
// column layout, record allocation, and packed-field read/update. A
// Table owns its record arena; per-record locking lives in
// record.Record itself (spec.md §4.2's locking-policy paragraph).
package table

import (
	"sync"
	"sync/atomic"

	"github.com/dcds-project/dcds/internal/dcdserr"
	"github.com/dcds-project/dcds/internal/record"
	"github.com/dcds-project/dcds/internal/value"
)

// Column describes one attribute's packed-row placement.
type Column struct {
	Name   string
	Kind   value.Kind
	Offset int
	Width  int
}

// Table is an immutable-schema, namespace-unique, numerically-ided
// table of same-shaped records.
type Table struct {
	id      ID
	name    string
	columns []Column
	rowSize int

	growMu  sync.Mutex // guards appends to the record arena (spec's "short critical section")
	records atomic.Pointer[[]*record.Record]
}

// ID is the numeric id a registry assigns a table at creation.
type ID = record.TableID

// New builds a table named name with the given ordered columns,
// computing packed offsets (no padding) as it goes (spec.md §4.1).
func New(id ID, name string, cols []value.Kind, names []string) *Table {
	if len(cols) != len(names) {
		panic("table: cols and names length mismatch")
	}
	columns := make([]Column, len(cols))
	offset := 0
	for i, k := range cols {
		w := k.Width()
		columns[i] = Column{Name: names[i], Kind: k, Offset: offset, Width: w}
		offset += w
	}
	t := &Table{id: id, name: name, columns: columns, rowSize: offset}
	empty := make([]*record.Record, 0)
	t.records.Store(&empty)
	return t
}

func (t *Table) ID() ID              { return t.id }
func (t *Table) Name() string        { return t.name }
func (t *Table) Columns() []Column   { return t.columns }
func (t *Table) RowSize() int        { return t.rowSize }

// ColumnIndex returns the index of the attribute named name, or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

func (t *Table) arena() []*record.Record { return *t.records.Load() }

// slotOf resolves ref to its *record.Record, enforcing invariant 1 of
// spec.md §3 (a non-null ref decodes to a live record in the table its
// tag names).
func (t *Table) slotOf(ref record.Ref) (*record.Record, error) {
	if ref.IsNull() {
		return nil, dcdserr.NewFatal("table: attempt to dereference the null record")
	}
	if ref.TableID() != t.id {
		return nil, dcdserr.NewFatalf("table: ref table id %d does not match table %d (%s)", ref.TableID(), t.id, t.name)
	}
	arena := t.arena()
	slot := ref.Slot()
	if slot >= uint64(len(arena)) {
		return nil, dcdserr.NewFatalf("table: slot %d out of range (len=%d) in table %s", slot, len(arena), t.name)
	}
	rec := arena[slot]
	if rec.Freed() {
		return nil, dcdserr.NewFatalf("table: slot %d in table %s was freed by a rolled-back insert", slot, t.name)
	}
	return rec, nil
}

// txnLogger is the minimal interface table needs from a transaction
// to append undo entries, kept here (rather than importing package
// txn) to avoid an import cycle: txn already needs to call into
// table for rollback.
type txnLogger interface {
	LogInsert(tbl *Table, ref record.Ref)
	LogUpdate(tbl *Table, ref record.Ref, attrIdx int, prev []byte)
	LogDelete(tbl *Table, ref record.Ref)
}

// InsertRecord allocates one record, copying width bytes from src (or
// zero-filling if src is nil), and records an insert undo entry on
// txn if txn is non-nil (spec.md §4.2 insertRecord).
func (t *Table) InsertRecord(txn txnLogger, src []byte) record.Ref {
	rec := record.NewRecord(t.rowSize, src)
	ref := t.appendOne(rec)
	if txn != nil {
		txn.LogInsert(t, ref)
	}
	return ref
}

// InsertNRecords allocates n contiguous records (same src applied to
// each, or zero-filled if src is nil) and returns the first one's ref;
// getNthRecord(ref, k) = records[ref.Slot()+k] for k in [0,n). Used by
// array-list attributes (spec.md §4.8).
func (t *Table) InsertNRecords(txn txnLogger, n int, src []byte) record.Ref {
	if n <= 0 {
		panic("table: InsertNRecords requires n > 0")
	}
	recs := make([]*record.Record, n)
	for i := range recs {
		recs[i] = record.NewRecord(t.rowSize, src)
	}
	first := t.appendMany(recs)
	if txn != nil {
		for i := 0; i < n; i++ {
			txn.LogInsert(t, record.NewRef(t.id, first.Slot()+uint64(i)))
		}
	}
	return first
}

func (t *Table) appendOne(rec *record.Record) record.Ref {
	t.growMu.Lock()
	defer t.growMu.Unlock()
	old := t.arena()
	slot := uint64(len(old))
	grown := make([]*record.Record, len(old)+1)
	copy(grown, old)
	grown[slot] = rec
	t.records.Store(&grown)
	return record.NewRef(t.id, slot)
}

func (t *Table) appendMany(recs []*record.Record) record.Ref {
	t.growMu.Lock()
	defer t.growMu.Unlock()
	old := t.arena()
	firstSlot := uint64(len(old))
	grown := make([]*record.Record, len(old)+len(recs))
	copy(grown, old)
	copy(grown[firstSlot:], recs)
	t.records.Store(&grown)
	return record.NewRef(t.id, firstSlot)
}

// GetNthRecord returns the ref n slots after ref (contiguous-array
// addressing, spec.md §4.2 getNthRecord).
func (t *Table) GetNthRecord(ref record.Ref, n int) record.Ref {
	return record.NewRef(t.id, ref.Slot()+uint64(n))
}

// GetRecordData returns the inner data pointer (metadata-skipped); it
// does not lock.
func (t *Table) GetRecordData(ref record.Ref) ([]byte, error) {
	rec, err := t.slotOf(ref)
	if err != nil {
		return nil, err
	}
	return rec.Data(), nil
}

// Record resolves ref to its underlying *record.Record, for callers
// (internal/lock consumers in internal/interp) that need the
// record-level lock itself rather than just its bytes.
func (t *Table) Record(ref record.Ref) (*record.Record, error) {
	return t.slotOf(ref)
}

// GetData copies len bytes from ref's data at offset into dst. Does
// not lock.
func (t *Table) GetData(ref record.Ref, dst []byte, offset, length int) error {
	rec, err := t.slotOf(ref)
	if err != nil {
		return err
	}
	if offset < 0 || offset+length > len(rec.Data()) {
		return dcdserr.NewFatalf("table: getData out of range (offset=%d len=%d rowSize=%d)", offset, length, len(rec.Data()))
	}
	copy(dst, rec.Data()[offset:offset+length])
	return nil
}

// GetAttribute copies the attribute at idx into dst. Does not lock.
func (t *Table) GetAttribute(ref record.Ref, idx int) (value.Value, error) {
	if idx < 0 || idx >= len(t.columns) {
		return value.Value{}, dcdserr.ErrSchemaViolation
	}
	rec, err := t.slotOf(ref)
	if err != nil {
		return value.Value{}, err
	}
	col := t.columns[idx]
	return value.Decode(col.Kind, rec.Data()[col.Offset:col.Offset+col.Width]), nil
}

// UpdateAttribute overwrites the attribute at idx with src, recording
// an update undo entry on txn first (skipped if txn is nil, e.g. the
// single-threaded build-time mode described by spec.md §4.2). Does
// not lock; the caller (internal/interp, after the CC injector has run)
// is responsible for holding the exclusive record lock.
func (t *Table) UpdateAttribute(txn txnLogger, ref record.Ref, src value.Value, idx int) error {
	if idx < 0 || idx >= len(t.columns) {
		return dcdserr.ErrSchemaViolation
	}
	rec, err := t.slotOf(ref)
	if err != nil {
		return err
	}
	col := t.columns[idx]
	if src.Kind() != col.Kind {
		return dcdserr.ErrTypeMismatch
	}
	region := rec.Data()[col.Offset : col.Offset+col.Width]
	if txn != nil {
		prev := make([]byte, col.Width)
		copy(prev, region)
		txn.LogUpdate(t, ref, idx, prev)
	}
	src.Encode(region)
	return nil
}

// RollbackUpdate restores the field at idx from undo bytes prev.
func (t *Table) RollbackUpdate(ref record.Ref, prev []byte, idx int) error {
	rec, err := t.slotOf(ref)
	if err != nil {
		return err
	}
	col := t.columns[idx]
	copy(rec.Data()[col.Offset:col.Offset+col.Width], prev)
	return nil
}

// RollbackCreate frees ref's record (spec.md §4.2 rollback_create).
func (t *Table) RollbackCreate(ref record.Ref) error {
	rec, err := t.slotOf(ref)
	if err != nil {
		return err
	}
	rec.MarkFreed()
	return nil
}

// Delete frees ref's record (e.g. a linked-list pop or an LRU
// eviction), logging an undo entry on txn so an abort can bring it
// back. Like RollbackCreate, and unlike RollbackDelete (which must
// reach a freed slot), this goes through slotOf, so deleting an
// already-freed or out-of-range ref is reported rather than silently
// accepted.
func (t *Table) Delete(txn txnLogger, ref record.Ref) error {
	rec, err := t.slotOf(ref)
	if err != nil {
		return err
	}
	if txn != nil {
		txn.LogDelete(t, ref)
	}
	rec.MarkFreed()
	return nil
}

// RollbackDelete un-frees ref's record, undoing a Delete on abort.
func (t *Table) RollbackDelete(ref record.Ref) error {
	arena := t.arena()
	slot := ref.Slot()
	if slot >= uint64(len(arena)) {
		return dcdserr.NewFatalf("table: slot %d out of range (len=%d) in table %s", slot, len(arena), t.name)
	}
	arena[slot].Unfree()
	return nil
}

// Len reports the number of slots ever allocated (freed slots still
// count; this single-version store never compacts).
func (t *Table) Len() int { return len(t.arena()) }
