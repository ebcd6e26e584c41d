// Copyright (C) 2022 Sneller, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Package pack implements a compact, self-describing binary
// serialization format for streams of typed, identified fields.
//
// A pack is a forward-only sequence of (id, type, value) fields,
// optionally nested into objects and arrays. Readers may skip fields
// they don't recognize and writers may omit default-valued fields,
// which makes the format tolerant of schema evolution in either
// direction. The format carries no schema descriptors, performs no
// compression, checksumming, or authentication, and provides no random
// access — see the package-level design notes in the repository's
// SPEC_FULL.md for the full rationale.
package pack

import "fmt"

// Type is one of the pack field types.
type Type byte

const (
	UnknownType Type = iota // reserved; never emitted, used as a sentinel
	ArrayType
	BinType
	BoolType
	I32Type
	I64Type
	ObjType
	PtrType
	StrType
	TimeType
	U32Type
	U64Type
)

func (t Type) String() string {
	switch t {
	case UnknownType:
		return "unknown"
	case ArrayType:
		return "array"
	case BinType:
		return "bin"
	case BoolType:
		return "bool"
	case I32Type:
		return "i32"
	case I64Type:
		return "i64"
	case ObjType:
		return "obj"
	case PtrType:
		return "ptr"
	case StrType:
		return "str"
	case TimeType:
		return "time"
	case U32Type:
		return "u32"
	case U64Type:
		return "u64"
	default:
		return fmt.Sprintf("pack.Type(%d)", byte(t))
	}
}

// valueSingleBit reports whether the tag byte for t carries only a
// presence/non-zero-size bit for the value (bin, bool, str).
func (t Type) valueSingleBit() bool {
	switch t {
	case BinType, BoolType, StrType:
		return true
	default:
		return false
	}
}

// valueMultiBit reports whether t is an integer-like type whose tag
// byte can inline a small value directly (i32, i64, ptr, time, u32, u64).
func (t Type) valueMultiBit() bool {
	switch t {
	case I32Type, I64Type, PtrType, TimeType, U32Type, U64Type:
		return true
	default:
		return false
	}
}

// hasSize reports whether t is length-prefixed on the wire (bin, str).
func (t Type) hasSize() bool {
	switch t {
	case BinType, StrType:
		return true
	default:
		return false
	}
}

// isContainer reports whether t nests other fields (array, obj).
func (t Type) isContainer() bool {
	return t == ArrayType || t == ObjType
}

// FieldID is a 1-based field identifier. Ids are strictly increasing
// within a container; 0 (IDAuto) tells a Writer to pick the next
// available id automatically.
type FieldID uint32

// IDAuto tells a Writer to assign the next available id automatically
// (idLast + pending nulls + 1).
const IDAuto FieldID = 0

// idNone is the sentinel returned by Reader.ID when the cached next
// tag is the container terminator (no more fields at this level).
const idNone FieldID = 0xFFFFFFFF
