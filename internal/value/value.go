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

// Package value implements the DCDS typed value model (spec C1): the
// fixed set of primitive kinds a column can hold, their packed byte
// widths, and a small tagged union carrying one runtime value of any
// of those kinds.
package value

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Kind enumerates the value kinds an attribute column can hold.
type Kind uint8

const (
	Int32 Kind = iota
	Int64
	Float
	Double
	Bool
	RecordPtr
	Void
)

func (k Kind) String() string {
	switch k {
	case Int32:
		return "int32"
	case Int64:
		return "int64"
	case Float:
		return "float"
	case Double:
		return "double"
	case Bool:
		return "bool"
	case RecordPtr:
		return "record_ptr"
	case Void:
		return "void"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Width returns the packed byte width of kind k. Void has zero width:
// it is return-only and is never stored in a row.
func (k Kind) Width() int {
	switch k {
	case Int32, Float:
		return 4
	case Int64, Double, RecordPtr:
		return 8
	case Bool:
		return 1
	case Void:
		return 0
	default:
		panic(fmt.Sprintf("value: unknown kind %d", uint8(k)))
	}
}

// Value is a tagged union holding exactly one value of one Kind. The
// zero Value is Int32(0); callers that need a well-formed empty value
// of a different kind should use the constructors below.
type Value struct {
	kind Kind
	bits uint64 // holds int32/int64/bool/record-ptr bits, or the IEEE-754 bit pattern of float/double
}

func (v Value) Kind() Kind { return v.kind }

func I32(x int32) Value  { return Value{kind: Int32, bits: uint64(uint32(x))} }
func I64(x int64) Value  { return Value{kind: Int64, bits: uint64(x)} }
func F32(x float32) Value {
	return Value{kind: Float, bits: uint64(math.Float32bits(x))}
}
func F64(x float64) Value {
	return Value{kind: Double, bits: math.Float64bits(x)}
}
func B(x bool) Value {
	var b uint64
	if x {
		b = 1
	}
	return Value{kind: Bool, bits: b}
}

// RawRef wraps a packed 64-bit record reference as a RecordPtr value.
// Package value does not depend on package record: callers pass a
// record.Ref's Uint64 representation.
func RawRef(packed uint64) Value { return Value{kind: RecordPtr, bits: packed} }

// VoidValue is the value of kind Void, carried by a void return.
func VoidValue() Value { return Value{kind: Void} }

func (v Value) AsI32() int32    { return int32(uint32(v.bits)) }
func (v Value) AsI64() int64    { return int64(v.bits) }
func (v Value) AsF32() float32  { return math.Float32frombits(uint32(v.bits)) }
func (v Value) AsF64() float64  { return math.Float64frombits(v.bits) }
func (v Value) AsBool() bool    { return v.bits != 0 }
func (v Value) AsRawRef() uint64 { return v.bits }

// Zero returns the zero value of kind k (0, 0.0, false, or the null
// record reference, as appropriate).
func Zero(k Kind) Value {
	switch k {
	case Int32:
		return I32(0)
	case Int64:
		return I64(0)
	case Float:
		return F32(0)
	case Double:
		return F64(0)
	case Bool:
		return B(false)
	case RecordPtr:
		return RawRef(0)
	case Void:
		return VoidValue()
	default:
		panic(fmt.Sprintf("value: unknown kind %d", uint8(k)))
	}
}

// Encode writes v's packed byte representation (little-endian, no
// padding) into dst, which must be exactly v.Kind().Width() bytes.
func (v Value) Encode(dst []byte) {
	switch v.kind {
	case Int32, Float:
		binary.LittleEndian.PutUint32(dst, uint32(v.bits))
	case Int64, Double, RecordPtr:
		binary.LittleEndian.PutUint64(dst, v.bits)
	case Bool:
		if v.bits != 0 {
			dst[0] = 1
		} else {
			dst[0] = 0
		}
	case Void:
		// no bytes
	default:
		panic(fmt.Sprintf("value: unknown kind %d", uint8(v.kind)))
	}
}

// Decode reads a packed value of kind k from src, which must be
// exactly k.Width() bytes.
func Decode(k Kind, src []byte) Value {
	switch k {
	case Int32:
		return I32(int32(binary.LittleEndian.Uint32(src)))
	case Float:
		return Value{kind: Float, bits: uint64(binary.LittleEndian.Uint32(src))}
	case Int64:
		return I64(int64(binary.LittleEndian.Uint64(src)))
	case Double:
		return Value{kind: Double, bits: binary.LittleEndian.Uint64(src)}
	case RecordPtr:
		return RawRef(binary.LittleEndian.Uint64(src))
	case Bool:
		return B(src[0] != 0)
	case Void:
		return VoidValue()
	default:
		panic(fmt.Sprintf("value: unknown kind %d", uint8(k)))
	}
}
