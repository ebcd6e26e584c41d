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
	"fmt"
	"strings"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Dump renders the reader's frame stack and lookahead state as a
// single diagnostic line, in the spirit of pgBackRest's pckReadToLog.
// It is meant for logs and test failure messages, not wire output.
func (r *Reader) Dump() string {
	frames := slices.Clone(r.stack.frames)
	kinds := make([]string, len(frames))
	for i, f := range frames {
		kinds[i] = f.kind.String()
	}

	next := "none"
	switch {
	case r.next.valid && r.next.term:
		next = "terminator"
	case r.next.valid:
		next = fmt.Sprintf("id=%d type=%s", uint32(r.next.id), r.next.typ)
	}

	return fmt.Sprintf("{depth: %d, path: [%s], idLast: %d, next: %s}",
		len(frames), strings.Join(kinds, ">"), r.stack.top().idLast, next)
}

// Dump renders the writer's frame stack and a per-type field count, in
// the spirit of pgBackRest's pckWriteToLog.
func (w *Writer) Dump() string {
	frames := slices.Clone(w.stack.frames)
	kinds := make([]string, len(frames))
	for i, f := range frames {
		kinds[i] = f.kind.String()
	}

	types := maps.Keys(w.typeCounts)
	slices.SortFunc(types, func(a, b Type) bool { return a < b })
	counts := make([]string, 0, len(types))
	for _, t := range types {
		counts = append(counts, fmt.Sprintf("%s=%d", t, w.typeCounts[t]))
	}

	return fmt.Sprintf("{depth: %d, path: [%s], idLast: %d, counts: {%s}}",
		len(frames), strings.Join(kinds, ">"), w.stack.top().idLast, strings.Join(counts, ", "))
}
