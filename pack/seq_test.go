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

// TestWorkedExamples checks the encoder against the six worked byte
// sequences, and then checks the decoder can read them back.
func TestWorkedExamples(t *testing.T) {
	t.Run("bool true at id 1", func(t *testing.T) {
		w := NewBufferWriter()
		mustWrite(t, w.WriteBool(1, true))
		mustWrite(t, w.End())
		want := []byte{0x38, 0x00}
		if !bytes.Equal(w.Bytes(), want) {
			t.Fatalf("got % 02x, want % 02x", w.Bytes(), want)
		}

		r := NewReaderBytes(w.Bytes())
		v, err := r.ReadBool(1)
		if err != nil || v != true {
			t.Fatalf("ReadBool: %v, %v", v, err)
		}
		mustWrite(t, r.End())
	})

	t.Run("u32 = 0 at id 1", func(t *testing.T) {
		w := NewBufferWriter()
		mustWrite(t, w.WriteU32(1, 0))
		mustWrite(t, w.End())
		want := []byte{0xa0, 0x00}
		if !bytes.Equal(w.Bytes(), want) {
			t.Fatalf("got % 02x, want % 02x", w.Bytes(), want)
		}

		r := NewReaderBytes(w.Bytes())
		v, err := r.ReadU32(1)
		if err != nil || v != 0 {
			t.Fatalf("ReadU32: %v, %v", v, err)
		}
	})

	t.Run("u32 = 77 at id 1", func(t *testing.T) {
		w := NewBufferWriter()
		mustWrite(t, w.WriteU32(1, 77))
		mustWrite(t, w.End())
		want := []byte{0xa8, 0x4d, 0x00}
		if !bytes.Equal(w.Bytes(), want) {
			t.Fatalf("got % 02x, want % 02x", w.Bytes(), want)
		}

		r := NewReaderBytes(w.Bytes())
		v, err := r.ReadU32(1)
		if err != nil || v != 77 {
			t.Fatalf("ReadU32: %v, %v", v, err)
		}
	})

	t.Run("empty str at id 1, nonempty str at id 2", func(t *testing.T) {
		w := NewBufferWriter()
		mustWrite(t, w.WriteStr(1, ""))
		mustWrite(t, w.WriteStr(2, "ab"))
		mustWrite(t, w.End())
		want := []byte{0x80, 0x88, 0x02, 0x61, 0x62, 0x00}
		if !bytes.Equal(w.Bytes(), want) {
			t.Fatalf("got % 02x, want % 02x", w.Bytes(), want)
		}

		r := NewReaderBytes(w.Bytes())
		s1, err := r.ReadStr(1)
		if err != nil || s1 != "" {
			t.Fatalf("ReadStr(1): %q, %v", s1, err)
		}
		s2, err := r.ReadStr(2)
		if err != nil || s2 != "ab" {
			t.Fatalf("ReadStr(2): %q, %v", s2, err)
		}
	})

	t.Run("object containing i32 = -1 at inner id 1, outer id 1", func(t *testing.T) {
		w := NewBufferWriter()
		mustWrite(t, w.BeginObject(1))
		mustWrite(t, w.WriteI32(1, -1))
		mustWrite(t, w.EndObject())
		mustWrite(t, w.End())
		want := []byte{0x60, 0x44, 0x00, 0x00}
		if !bytes.Equal(w.Bytes(), want) {
			t.Fatalf("got % 02x, want % 02x", w.Bytes(), want)
		}

		r := NewReaderBytes(w.Bytes())
		mustWrite(t, r.BeginObject(1))
		v, err := r.ReadI32(1)
		if err != nil || v != -1 {
			t.Fatalf("ReadI32: %v, %v", v, err)
		}
		mustWrite(t, r.EndObject())
	})

	t.Run("array of three bools", func(t *testing.T) {
		w := NewBufferWriter()
		mustWrite(t, w.BeginArray(1))
		mustWrite(t, w.WriteBool(IDAuto, true))
		mustWrite(t, w.WriteBool(IDAuto, false))
		mustWrite(t, w.WriteBool(IDAuto, true))
		mustWrite(t, w.EndArray())
		mustWrite(t, w.End())
		want := []byte{0x10, 0x38, 0x30, 0x38, 0x00, 0x00}
		if !bytes.Equal(w.Bytes(), want) {
			t.Fatalf("got % 02x, want % 02x", w.Bytes(), want)
		}

		r := NewReaderBytes(w.Bytes())
		if err := r.BeginArray(1); err != nil {
			t.Fatal(err)
		}
		var got []bool
		for {
			more, err := r.Next()
			if err != nil {
				t.Fatal(err)
			}
			if !more {
				break
			}
			v, err := r.ReadBool(r.ID())
			if err != nil {
				t.Fatal(err)
			}
			got = append(got, v)
		}
		if err := r.EndArray(); err != nil {
			t.Fatal(err)
		}
		want2 := []bool{true, false, true}
		if len(got) != len(want2) {
			t.Fatalf("got %v, want %v", got, want2)
		}
		for i := range want2 {
			if got[i] != want2[i] {
				t.Fatalf("got %v, want %v", got, want2)
			}
		}
	})
}

func mustWrite(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatal(err)
	}
}
