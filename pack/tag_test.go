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

import (
	"bytes"
	"testing"
)

func TestEncodeTag(t *testing.T) {
	testcases := []struct {
		name   string
		t      Type
		id     FieldID
		idLast uint32
		value  uint64
		want   []byte
	}{
		{"bool true, id 1, root", BoolType, 1, 0, 1, []byte{0x38}},
		{"u32 = 0, id 1, small form", U32Type, 1, 0, 0, []byte{0xa0}},
		{"u32 = 77, id 1, large form", U32Type, 1, 0, 77, []byte{0xa8, 0x4d}},
		{"empty str, id 1", StrType, 1, 0, 0, []byte{0x80}},
		{"nonempty str, id 2 after id 1", StrType, 2, 1, 1, []byte{0x88}},
		{"obj, id 1", ObjType, 1, 0, 0, []byte{0x60}},
		{"i32 = -1 (zigzag 1), inner id 1", I32Type, 1, 0, 1, []byte{0x44}},
		{"array, id 1", ArrayType, 1, 0, 0, []byte{0x10}},
	}

	for _, tc := range testcases {
		got := encodeTag(nil, tc.t, tc.id, tc.idLast, tc.value)
		if !bytes.Equal(got, tc.want) {
			t.Errorf("%s: got % 02x, want % 02x", tc.name, got, tc.want)
		}
	}
}

func TestDecodeTagRoundTrip(t *testing.T) {
	testcases := []struct {
		t      Type
		id     FieldID
		idLast uint32
		value  uint64
	}{
		{BoolType, 1, 0, 1},
		{BoolType, 5, 0, 0},
		{U32Type, 1, 0, 0},
		{U32Type, 1, 0, 77},
		{U64Type, 9, 3, 1 << 40},
		{StrType, 1, 0, 0},
		{StrType, 2, 1, 1},
		{BinType, 3, 0, 1},
		{ObjType, 1, 0, 0},
		{ArrayType, 4, 1, 0},
		{I32Type, 1, 0, 1},
		{I64Type, 100, 50, 0},
	}

	for _, tc := range testcases {
		enc := encodeTag(nil, tc.t, tc.id, tc.idLast, tc.value)
		gotType, gotID, gotValue, term, err := decodeTag(&sliceSource{b: enc}, tc.idLast)
		if err != nil {
			t.Fatalf("decodeTag(%v): %v", tc, err)
		}
		if term {
			t.Fatalf("decodeTag(%v): unexpectedly saw terminator", tc)
		}
		if gotType != tc.t || gotID != tc.id || gotValue != tc.value {
			t.Errorf("decodeTag(%v): got type=%s id=%d value=%d", tc, gotType, uint32(gotID), gotValue)
		}
	}
}

func TestDecodeTagTerminator(t *testing.T) {
	typ, id, value, term, err := decodeTag(&sliceSource{b: []byte{0x00}}, 3)
	if err != nil {
		t.Fatalf("decodeTag: %v", err)
	}
	if !term {
		t.Fatal("expected terminator")
	}
	if typ != UnknownType || id != idNone || value != 0 {
		t.Errorf("terminator decode should yield unknown/idNone/0, got type=%s id=%d value=%d", typ, uint32(id), value)
	}
}
