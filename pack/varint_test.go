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

type sliceSource struct {
	b []byte
}

func (s *sliceSource) readByte() (byte, error) {
	if len(s.b) == 0 {
		return 0, &FormatError{Msg: "unexpected EOF"}
	}
	b := s.b[0]
	s.b = s.b[1:]
	return b, nil
}

func TestPutUvarint(t *testing.T) {
	testcases := []struct {
		v   uint64
		enc []byte
	}{
		{0, []byte{0x00}},
		{1, []byte{0x01}},
		{127, []byte{0x7f}},
		{128, []byte{0x80, 0x01}},
		{300, []byte{0xac, 0x02}},
		{1 << 35, []byte{0x80, 0x80, 0x80, 0x80, 0x80, 0x08}},
	}

	for i, tc := range testcases {
		got := putUvarint(nil, tc.v)
		if !bytes.Equal(got, tc.enc) {
			t.Errorf("case #%d: got % 02x, want % 02x", i, got, tc.enc)
		}
		if n := uvarintLen(tc.v); n != len(tc.enc) {
			t.Errorf("case #%d: uvarintLen = %d, want %d", i, n, len(tc.enc))
		}
	}
}

func TestReadUvarintRoundTrip(t *testing.T) {
	values := []uint64{0, 1, 2, 127, 128, 300, 1 << 20, 1 << 40, ^uint64(0)}
	for _, v := range values {
		enc := putUvarint(nil, v)
		got, err := readUvarint(&sliceSource{b: enc})
		if err != nil {
			t.Fatalf("readUvarint(%d): %v", v, err)
		}
		if got != v {
			t.Errorf("readUvarint round trip: got %d, want %d", got, v)
		}
	}
}

func TestReadUvarintUnterminated(t *testing.T) {
	enc := bytes.Repeat([]byte{0x80}, maxVarintBytes)
	_, err := readUvarint(&sliceSource{b: enc})
	if err == nil {
		t.Fatal("expected an error for an unterminated varint")
	}
}

func TestZigzag64(t *testing.T) {
	values := []int64{0, 1, -1, 2, -2, 1 << 40, -(1 << 40)}
	for _, v := range values {
		if got := zigzagDecode64(zigzagEncode64(v)); got != v {
			t.Errorf("zigzag64 round trip: got %d, want %d", got, v)
		}
	}
	if zigzagEncode64(-1) != 1 {
		t.Errorf("zigzagEncode64(-1) = %d, want 1", zigzagEncode64(-1))
	}
}

func TestZigzag32(t *testing.T) {
	values := []int32{0, 1, -1, 2, -2, 1 << 20, -(1 << 20)}
	for _, v := range values {
		if got := zigzagDecode32(zigzagEncode32(v)); got != v {
			t.Errorf("zigzag32 round trip: got %d, want %d", got, v)
		}
	}
}
