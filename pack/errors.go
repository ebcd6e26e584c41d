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

import "fmt"

// FormatError reports malformed wire data: an unexpected EOF, an
// unterminated varint, a type mismatch on a non-peek read, an
// out-of-order id request, or an end call outside its matching
// container. A FormatError means the pack is untrusted from that
// point on; the codec makes no attempt at partial recovery.
type FormatError struct {
	Msg string
}

func (e *FormatError) Error() string {
	return "pack: " + e.Msg
}

func badType(id FieldID, found, wanted Type) error {
	return &FormatError{Msg: fmt.Sprintf("field %d is type '%s' but expected '%s'", id, found, wanted)}
}

// AssertionFailure reports a contract violation by the caller, such as
// writing a field with id <= the frame's last id, or ending a
// container of the wrong kind. These indicate a bug in the caller, not
// a malformed pack, and are never returned as an error -- they panic,
// mirroring the teacher ion package's own EndStruct/EndList/
// EndAnnotation panics on mismatched end calls.
type AssertionFailure struct {
	Msg string
}

func (e *AssertionFailure) Error() string {
	return "pack: assertion failed: " + e.Msg
}

func assertf(cond bool, format string, args ...any) {
	if !cond {
		panic(&AssertionFailure{Msg: fmt.Sprintf(format, args...)})
	}
}
