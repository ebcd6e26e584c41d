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

// readFrame tracks one currently open object or array on the read
// side: just the kind and the greatest id already consumed.
type readFrame struct {
	kind   frameKind
	idLast uint32
}

// writeFrame additionally tracks nullPending, the count of explicit
// nulls (WriteNull or a defaulted write) deferred into the next
// emitted field's id delta without emitting any bytes for them.
type writeFrame struct {
	kind        frameKind
	idLast      uint32
	nullPending uint32
}
