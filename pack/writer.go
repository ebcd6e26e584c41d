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
	"fmt"
	"io"
	"time"
)

// Writer is the push-mode façade for encoding a pack. A Writer is not
// safe for concurrent use.
type Writer struct {
	sink  io.Writer
	stage []byte

	stack      stack[writeFrame]
	typeCounts map[Type]int
}

// NewWriter returns a Writer that streams encoded bytes to w as its
// fixed-size staging buffer fills, rather than buffering the whole
// pack in memory.
func NewWriter(w io.Writer) *Writer {
	wr := &Writer{sink: w, stage: make([]byte, 0, defaultBufferSize)}
	wr.stack.push(writeFrame{kind: frameObject})
	return wr
}

// NewBufferWriter returns a Writer that accumulates the whole encoded
// pack in memory, retrievable with Bytes after End.
func NewBufferWriter() *Writer {
	wr := &Writer{stage: make([]byte, 0, 256)}
	wr.stack.push(writeFrame{kind: frameObject})
	return wr
}

// append stages p, flushing to sink first if p would overflow the
// fixed staging buffer, and passing p straight through to sink if it
// alone is too large to stage. With no sink, the staging buffer simply
// grows to hold everything written.
func (w *Writer) append(p []byte) error {
	if w.sink == nil {
		if len(w.stage)+len(p) > cap(w.stage) {
			grown := make([]byte, len(w.stage), 2*(cap(w.stage)+len(p)))
			copy(grown, w.stage)
			w.stage = grown
		}
		w.stage = append(w.stage, p...)
		return nil
	}

	if len(w.stage)+len(p) <= cap(w.stage) {
		w.stage = append(w.stage, p...)
		return nil
	}
	if len(w.stage) > 0 {
		if _, err := w.sink.Write(w.stage); err != nil {
			return fmt.Errorf("pack: write: %w", err)
		}
		w.stage = w.stage[:0]
	}
	if len(p) <= cap(w.stage) {
		w.stage = append(w.stage, p...)
		return nil
	}
	if _, err := w.sink.Write(p); err != nil {
		return fmt.Errorf("pack: write: %w", err)
	}
	return nil
}

// writeTag resolves id (IDAuto becomes idLast+nullPending+1), folds
// any pending nulls into the id delta, and appends the encoded tag. It
// returns the resolved id for callers that need to emit more bytes
// (str/bin length+payload) under it.
func (w *Writer) writeTag(t Type, id FieldID, value uint64) (FieldID, error) {
	f := w.stack.top()
	if id == IDAuto {
		id = FieldID(f.idLast + f.nullPending + 1)
	} else {
		assertf(uint32(id) > f.idLast, "field %d must be greater than the last written id %d", uint32(id), f.idLast)
	}
	f.nullPending = 0

	var buf [2 * maxVarintBytes]byte
	dst := encodeTag(buf[:0], t, id, f.idLast, value)
	f.idLast = uint32(id)
	if w.typeCounts == nil {
		w.typeCounts = make(map[Type]int)
	}
	w.typeCounts[t]++
	if err := w.append(dst); err != nil {
		return id, err
	}
	return id, nil
}

// writeDefaultNull defers id's bytes entirely when the value being
// written equals its declared default, and reports whether it did so.
func (w *Writer) writeDefaultNull(isDefault bool) bool {
	if isDefault {
		w.stack.top().nullPending++
		return true
	}
	return false
}

// WriteNull explicitly elides the next auto-id field, the same way a
// defaulted write does when its value matches the default.
func (w *Writer) WriteNull() {
	w.stack.top().nullPending++
}

func (w *Writer) WriteBool(id FieldID, v bool) error {
	value := uint64(0)
	if v {
		value = 1
	}
	_, err := w.writeTag(BoolType, id, value)
	return err
}

func (w *Writer) WriteBoolDefault(id FieldID, v, def bool) error {
	if w.writeDefaultNull(v == def) {
		return nil
	}
	return w.WriteBool(id, v)
}

func (w *Writer) WriteI32(id FieldID, v int32) error {
	_, err := w.writeTag(I32Type, id, zigzagEncode32(v))
	return err
}

func (w *Writer) WriteI32Default(id FieldID, v, def int32) error {
	if w.writeDefaultNull(v == def) {
		return nil
	}
	return w.WriteI32(id, v)
}

func (w *Writer) WriteI64(id FieldID, v int64) error {
	_, err := w.writeTag(I64Type, id, zigzagEncode64(v))
	return err
}

func (w *Writer) WriteI64Default(id FieldID, v, def int64) error {
	if w.writeDefaultNull(v == def) {
		return nil
	}
	return w.WriteI64(id, v)
}

func (w *Writer) WriteU32(id FieldID, v uint32) error {
	_, err := w.writeTag(U32Type, id, uint64(v))
	return err
}

func (w *Writer) WriteU32Default(id FieldID, v, def uint32) error {
	if w.writeDefaultNull(v == def) {
		return nil
	}
	return w.WriteU32(id, v)
}

func (w *Writer) WriteU64(id FieldID, v uint64) error {
	_, err := w.writeTag(U64Type, id, v)
	return err
}

func (w *Writer) WriteU64Default(id FieldID, v, def uint64) error {
	if w.writeDefaultNull(v == def) {
		return nil
	}
	return w.WriteU64(id, v)
}

// WriteTime writes v truncated to whole seconds since the Unix epoch,
// zig-zag encoded on the wire.
func (w *Writer) WriteTime(id FieldID, v time.Time) error {
	_, err := w.writeTag(TimeType, id, zigzagEncode64(v.Unix()))
	return err
}

func (w *Writer) WriteTimeDefault(id FieldID, v, def time.Time) error {
	if w.writeDefaultNull(v.Unix() == def.Unix()) {
		return nil
	}
	return w.WriteTime(id, v)
}

// WritePtr writes v's raw bits as a ptr field. See Reader.RejectPtr:
// packs with ptr fields are only meaningful within the process that
// wrote them.
func (w *Writer) WritePtr(id FieldID, v uintptr) error {
	_, err := w.writeTag(PtrType, id, uint64(v))
	return err
}

func (w *Writer) WritePtrDefault(id FieldID, v, def uintptr) error {
	if w.writeDefaultNull(v == def) {
		return nil
	}
	return w.WritePtr(id, v)
}

func (w *Writer) writeStrValue(id FieldID, v string) error {
	presence := uint64(0)
	if len(v) > 0 {
		presence = 1
	}
	if _, err := w.writeTag(StrType, id, presence); err != nil {
		return err
	}
	if len(v) == 0 {
		return nil
	}
	var lenBuf [maxVarintBytes]byte
	if err := w.append(putUvarint(lenBuf[:0], uint64(len(v)))); err != nil {
		return err
	}
	return w.append([]byte(v))
}

func (w *Writer) WriteStr(id FieldID, v string) error {
	return w.writeStrValue(id, v)
}

func (w *Writer) WriteStrDefault(id FieldID, v, def string) error {
	if w.writeDefaultNull(v == def) {
		return nil
	}
	return w.writeStrValue(id, v)
}

func (w *Writer) writeBinValue(id FieldID, v []byte) error {
	presence := uint64(0)
	if len(v) > 0 {
		presence = 1
	}
	if _, err := w.writeTag(BinType, id, presence); err != nil {
		return err
	}
	if len(v) == 0 {
		return nil
	}
	var lenBuf [maxVarintBytes]byte
	if err := w.append(putUvarint(lenBuf[:0], uint64(len(v)))); err != nil {
		return err
	}
	return w.append(v)
}

func (w *Writer) WriteBin(id FieldID, v []byte) error {
	return w.writeBinValue(id, v)
}

func (w *Writer) WriteBinDefault(id FieldID, v, def []byte) error {
	if w.writeDefaultNull(bytes.Equal(v, def)) {
		return nil
	}
	return w.writeBinValue(id, v)
}

// BeginArray opens a nested array at id; subsequent auto-id writes
// address elements 1, 2, 3, ... until EndArray.
func (w *Writer) BeginArray(id FieldID) error {
	if _, err := w.writeTag(ArrayType, id, 0); err != nil {
		return err
	}
	w.stack.push(writeFrame{kind: frameArray})
	return nil
}

// EndArray closes the array opened by the matching BeginArray.
func (w *Writer) EndArray() error {
	return w.endContainer(frameArray)
}

// BeginObject opens a nested object at id.
func (w *Writer) BeginObject(id FieldID) error {
	if _, err := w.writeTag(ObjType, id, 0); err != nil {
		return err
	}
	w.stack.push(writeFrame{kind: frameObject})
	return nil
}

// EndObject closes the object opened by the matching BeginObject.
func (w *Writer) EndObject() error {
	return w.endContainer(frameObject)
}

func (w *Writer) endContainer(kind frameKind) error {
	assertf(w.stack.depth() != 1, "end called with no matching container open")
	assertf(w.stack.top().kind == kind, "container kind mismatch: expected %s, found %s", kind, w.stack.top().kind)
	var buf [1]byte
	if err := w.append(buf[:1]); err != nil {
		return err
	}
	w.stack.pop()
	return nil
}

// End closes the pack: it asserts every opened container has already
// been closed, emits the root terminator, and flushes any staged bytes
// to sink (NewWriter) or leaves them retrievable via Bytes
// (NewBufferWriter).
func (w *Writer) End() error {
	assertf(w.stack.depth() == 1, "End called with %d container(s) still open", w.stack.depth()-1)
	var buf [1]byte
	if err := w.append(buf[:1]); err != nil {
		return err
	}
	if w.sink == nil || len(w.stage) == 0 {
		return nil
	}
	if _, err := w.sink.Write(w.stage); err != nil {
		return fmt.Errorf("pack: write: %w", err)
	}
	w.stage = w.stage[:0]
	return nil
}

// Bytes returns the accumulated pack bytes. It is only meaningful for
// a Writer created with NewBufferWriter, after End.
func (w *Writer) Bytes() []byte {
	return w.stage
}
