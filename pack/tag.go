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

package pack

// This file packs/unpacks the one-byte tag (plus optional trailing
// varints) described in spec.md's §4.2. It is a direct transliteration
// of pgBackRest's pckReadTagNext/pckWriteTag
// (original_source/src/common/type/pack.c) into the Go type system.

// decodeTag reads the next tag from src. idLast is the id of the last
// field successfully consumed in the current frame. terminator is true
// (with a zero Type/id/value) when the tag byte is 0x00, i.e. no more
// fields remain in the current container.
func decodeTag(src byteSource, idLast uint32) (t Type, id FieldID, value uint64, terminator bool, err error) {
	b, err := src.readByte()
	if err != nil {
		return 0, 0, 0, false, err
	}
	if b == 0 {
		return UnknownType, idNone, 0, true, nil
	}

	t = Type(b >> 4)
	var delta uint64

	switch {
	case t.valueMultiBit():
		if b&0x8 != 0 {
			delta = uint64(b & 0x3)
			if b&0x4 != 0 {
				more, err := readUvarint(src)
				if err != nil {
					return 0, 0, 0, false, err
				}
				delta |= more << 2
			}
			value, err = readUvarint(src)
			if err != nil {
				return 0, 0, 0, false, err
			}
		} else {
			delta = uint64(b & 0x1)
			if b&0x2 != 0 {
				more, err := readUvarint(src)
				if err != nil {
					return 0, 0, 0, false, err
				}
				delta |= more << 1
			}
			value = uint64(b>>2) & 0x1
		}
	case t.valueSingleBit():
		delta = uint64(b & 0x3)
		if b&0x4 != 0 {
			more, err := readUvarint(src)
			if err != nil {
				return 0, 0, 0, false, err
			}
			delta |= more << 2
		}
		value = uint64(b>>3) & 0x1
	default:
		delta = uint64(b & 0x7)
		if b&0x8 != 0 {
			more, err := readUvarint(src)
			if err != nil {
				return 0, 0, 0, false, err
			}
			delta |= more << 3
		}
	}

	id = FieldID(idLast + 1 + uint32(delta))
	return t, id, value, false, nil
}

// encodeTag appends the tag byte (and any trailing id-delta/value
// varints) for a field of type t at id, given idLast, the id of the
// last field emitted in the current frame. value is the inline
// single-bit presence flag (bin/bool/str) or the full (post zig-zag)
// value for multi-bit types; it is ignored (must be 0) for containers.
func encodeTag(dst []byte, t Type, id FieldID, idLast uint32, value uint64) []byte {
	delta := uint64(uint32(id) - idLast - 1)
	tag := byte(t) << 4

	switch {
	case t.valueMultiBit():
		if value < 2 {
			tag |= byte(value&1) << 2
			value = 0
			tag |= byte(delta & 0x1)
			delta >>= 1
			if delta > 0 {
				tag |= 0x2
			}
		} else {
			tag |= 0x8
			tag |= byte(delta & 0x3)
			delta >>= 2
			if delta > 0 {
				tag |= 0x4
			}
		}
	case t.valueSingleBit():
		tag |= byte(value&1) << 3
		value = 0
		tag |= byte(delta & 0x3)
		delta >>= 2
		if delta > 0 {
			tag |= 0x4
		}
	default:
		tag |= byte(delta & 0x7)
		delta >>= 3
		if delta > 0 {
			tag |= 0x8
		}
	}

	dst = append(dst, tag)
	if delta > 0 {
		dst = putUvarint(dst, delta)
	}
	if value > 0 {
		dst = putUvarint(dst, value)
	}
	return dst
}

// terminatorByte is the single zero byte that closes a frame or the
// root pack.
const terminatorByte = 0x00
