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

import "testing"

// TestReaderDumpMidStream asserts Dump() reflects the reader's actual
// lookahead state, including across a BeginObject/EndObject boundary.
func TestReaderDumpMidStream(t *testing.T) {
	w := NewBufferWriter()
	mustWrite(t, w.BeginObject(1))
	mustWrite(t, w.WriteU32(1, 9))
	mustWrite(t, w.EndObject())
	mustWrite(t, w.End())

	r := NewReaderBytes(w.Bytes())
	if _, err := r.Next(); err != nil {
		t.Fatal(err)
	}
	if got, want := r.Dump(), "{depth: 1, path: [object], idLast: 0, next: id=1 type=obj}"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}

	mustWrite(t, r.BeginObject(1))
	if _, err := r.Next(); err != nil {
		t.Fatal(err)
	}
	if got, want := r.Dump(), "{depth: 2, path: [object>object], idLast: 0, next: id=1 type=u32}"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}

	if _, err := r.ReadU32(1); err != nil {
		t.Fatal(err)
	}
	mustWrite(t, r.EndObject())
	if got, want := r.Dump(), "{depth: 1, path: [object], idLast: 1, next: none}"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

// TestWriterDumpTypeCounts asserts Dump() tallies fields by type.
func TestWriterDumpTypeCounts(t *testing.T) {
	w := NewBufferWriter()
	mustWrite(t, w.WriteBool(1, true))
	mustWrite(t, w.WriteBool(2, false))
	mustWrite(t, w.WriteU32(3, 1))

	if got, want := w.Dump(), "{depth: 1, path: [object], idLast: 3, counts: {bool=2, u32=1}}"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}
