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
	"io"
	"time"
)

const defaultBufferSize = 64 * 1024

// tagCache is the Reader's one-slot lookahead: the decoded tag for the
// next undelivered field in the current frame, or the terminator.
// valid is false until the first decode; treat it as a pure function
// of (buffer position, frame state) -- a peek never mutates it.
type tagCache struct {
	valid bool
	term  bool
	typ   Type
	id    FieldID
	value uint64
}

// Reader is the pull-mode façade for decoding a pack. A Reader is not
// safe for concurrent use; it owns its staging buffer and container
// stack exclusively for its lifetime.
type Reader struct {
	src io.Reader
	buf []byte
	pos int
	max int

	stack stack[readFrame]
	next  tagCache

	// RejectPtr, when true, makes any ptr field fail to decode with a
	// FormatError instead of returning the raw address. ptr packs are
	// not portable across processes; set this when the reader's input
	// might have been persisted or received from another process.
	RejectPtr bool
}

// NewReader returns a Reader that pulls pack bytes from r as needed.
func NewReader(r io.Reader) *Reader {
	rd := &Reader{src: r, buf: make([]byte, defaultBufferSize)}
	rd.stack.push(readFrame{kind: frameObject})
	return rd
}

// NewReaderBytes returns a Reader over an already-complete in-memory
// pack, with no further I/O.
func NewReaderBytes(buf []byte) *Reader {
	rd := &Reader{buf: buf, max: len(buf)}
	rd.stack.push(readFrame{kind: frameObject})
	return rd
}

// readByte implements byteSource for the varint/tag decoders.
func (r *Reader) readByte() (byte, error) {
	if r.pos >= r.max {
		if err := r.fill(); err != nil {
			return 0, err
		}
	}
	b := r.buf[r.pos]
	r.pos++
	return b, nil
}

// fill refills the staging buffer from src, accepting however many
// bytes one Read returns. A read that returns no bytes (or no src at
// all) is reported as a FormatError, per spec.md's input-source
// contract ("the codec ... treats any short read as end-of-stream");
// any other error from src is propagated unchanged, wrapped only for
// context.
func (r *Reader) fill() error {
	if r.src == nil {
		return &FormatError{Msg: "unexpected EOF"}
	}
	n, err := r.src.Read(r.buf[:cap(r.buf)])
	if n > 0 {
		r.buf = r.buf[:cap(r.buf)]
		r.pos = 0
		r.max = n
		return nil
	}
	if err == nil || err == io.EOF {
		return &FormatError{Msg: "unexpected EOF"}
	}
	return fmt.Errorf("pack: read: %w", err)
}

// readFull reads exactly len(dst) bytes, pulling from the staging
// buffer first and refilling from src as needed.
func (r *Reader) readFull(dst []byte) error {
	n := copy(dst, r.buf[r.pos:r.max])
	r.pos += n
	dst = dst[n:]
	for len(dst) > 0 {
		if err := r.fill(); err != nil {
			return err
		}
		m := copy(dst, r.buf[r.pos:r.max])
		r.pos += m
		dst = dst[m:]
	}
	return nil
}

// skipBytes discards n bytes without copying them anywhere.
func (r *Reader) skipBytes(n uint64) error {
	for n > 0 {
		if r.pos >= r.max {
			if err := r.fill(); err != nil {
				return err
			}
		}
		avail := uint64(r.max - r.pos)
		if avail > n {
			avail = n
		}
		r.pos += int(avail)
		n -= avail
	}
	return nil
}

func (r *Reader) ensureNext() error {
	if r.next.valid {
		return nil
	}
	f := r.stack.top()
	t, id, value, term, err := decodeTag(r, f.idLast)
	if err != nil {
		return err
	}
	r.next = tagCache{valid: true, term: term, typ: t, id: id, value: value}
	return nil
}

// Next decodes the next tag in the current frame into the lookahead
// cache and reports whether a field is available. It returns false
// (with a nil error) once the container terminator has been reached;
// End/EndArray/EndObject consume that terminator.
func (r *Reader) Next() (bool, error) {
	if err := r.ensureNext(); err != nil {
		return false, err
	}
	return !r.next.term, nil
}

// ID returns the cached next field id, or a sentinel past any valid id
// if the terminator has been reached. Call Next first.
func (r *Reader) ID() FieldID {
	if !r.next.valid || r.next.term {
		return idNone
	}
	return r.next.id
}

// Type returns the cached next field's type. Call Next first.
func (r *Reader) Type() Type {
	if !r.next.valid || r.next.term {
		return UnknownType
	}
	return r.next.typ
}

// readTag resolves *id (assigning idLast+1 when it is IDAuto), then
// decodes and/or skips cached fields until it finds a field at *id,
// reaches the terminator, or hits a field beyond *id. peek suppresses
// the "does not exist" error and leaves the field at *id unconsumed
// (idLast is not set to *id), but fields with smaller ids are still
// skipped and idLast advances past them.
//
// Skipping only consumes the extra length+payload bytes of
// length-bearing fields (bin/str) as they are actually encountered;
// skipping over an unopened nested array/obj field is not supported,
// matching the original pack.c and spec.md's own description of
// skipping (scalars only) -- callers must begin/end into any
// container they encounter before requesting a later sibling field.
func (r *Reader) readTag(id *FieldID, want Type, peek bool) (value uint64, found bool, err error) {
	f := r.stack.top()
	if *id == IDAuto {
		*id = FieldID(f.idLast + 1)
	} else if uint32(*id) <= f.idLast {
		return 0, false, &FormatError{Msg: fmt.Sprintf("field %d was already read", uint32(*id))}
	}

	for {
		if err := r.ensureNext(); err != nil {
			return 0, false, err
		}
		nextID := r.next.id
		if r.next.term {
			nextID = idNone
		}

		switch {
		case *id < nextID:
			if peek {
				return 0, false, nil
			}
			return 0, false, &FormatError{Msg: fmt.Sprintf("field %d does not exist", uint32(*id))}
		case *id == nextID:
			if !peek {
				if r.next.typ != want {
					return 0, false, badType(*id, r.next.typ, want)
				}
				f.idLast = uint32(*id)
				r.next.valid = false
			}
			return r.next.value, true, nil
		default:
			if r.next.typ.hasSize() && r.next.value != 0 {
				size, err := readUvarint(r)
				if err != nil {
					return 0, false, err
				}
				if err := r.skipBytes(size); err != nil {
					return 0, false, err
				}
			}
			f.idLast = uint32(r.next.id)
			r.next.valid = false
		}
	}
}

// readDefaultNull peeks for *id (resolving IDAuto) and, if the field
// is absent on the wire, advances idLast past it so later reads in the
// frame see it as consumed.
func (r *Reader) readDefaultNull(id *FieldID) (bool, error) {
	_, found, err := r.readTag(id, UnknownType, true)
	if err != nil {
		return false, err
	}
	if !found {
		r.stack.top().idLast = uint32(*id)
		return true, nil
	}
	return false, nil
}

// IsNull reports whether id is absent on the wire (a gap). It does not
// consume the field at id or set idLast to id; present fields with
// smaller ids are skipped on the way and idLast advances past them.
func (r *Reader) IsNull(id FieldID) (bool, error) {
	_, found, err := r.readTag(&id, UnknownType, true)
	if err != nil {
		return false, err
	}
	return !found, nil
}

// ReadBool reads a required bool field.
func (r *Reader) ReadBool(id FieldID) (bool, error) {
	value, _, err := r.readTag(&id, BoolType, false)
	if err != nil {
		return false, err
	}
	return value != 0, nil
}

// ReadBoolDefault reads id, returning def if the field is absent.
func (r *Reader) ReadBoolDefault(id FieldID, def bool) (bool, error) {
	isNull, err := r.readDefaultNull(&id)
	if err != nil || isNull {
		return def, err
	}
	return r.ReadBool(id)
}

// ReadI32 reads a required, zig-zag-decoded int32 field.
func (r *Reader) ReadI32(id FieldID) (int32, error) {
	value, _, err := r.readTag(&id, I32Type, false)
	if err != nil {
		return 0, err
	}
	return zigzagDecode32(value), nil
}

func (r *Reader) ReadI32Default(id FieldID, def int32) (int32, error) {
	isNull, err := r.readDefaultNull(&id)
	if err != nil || isNull {
		return def, err
	}
	return r.ReadI32(id)
}

// ReadI64 reads a required, zig-zag-decoded int64 field.
func (r *Reader) ReadI64(id FieldID) (int64, error) {
	value, _, err := r.readTag(&id, I64Type, false)
	if err != nil {
		return 0, err
	}
	return zigzagDecode64(value), nil
}

func (r *Reader) ReadI64Default(id FieldID, def int64) (int64, error) {
	isNull, err := r.readDefaultNull(&id)
	if err != nil || isNull {
		return def, err
	}
	return r.ReadI64(id)
}

// ReadU32 reads a required uint32 field.
func (r *Reader) ReadU32(id FieldID) (uint32, error) {
	value, _, err := r.readTag(&id, U32Type, false)
	if err != nil {
		return 0, err
	}
	return uint32(value), nil
}

func (r *Reader) ReadU32Default(id FieldID, def uint32) (uint32, error) {
	isNull, err := r.readDefaultNull(&id)
	if err != nil || isNull {
		return def, err
	}
	return r.ReadU32(id)
}

// ReadU64 reads a required uint64 field.
func (r *Reader) ReadU64(id FieldID) (uint64, error) {
	value, _, err := r.readTag(&id, U64Type, false)
	if err != nil {
		return 0, err
	}
	return value, nil
}

func (r *Reader) ReadU64Default(id FieldID, def uint64) (uint64, error) {
	isNull, err := r.readDefaultNull(&id)
	if err != nil || isNull {
		return def, err
	}
	return r.ReadU64(id)
}

// ReadTime reads a required time field: whole seconds since the Unix
// epoch, zig-zag encoded on the wire.
func (r *Reader) ReadTime(id FieldID) (time.Time, error) {
	value, _, err := r.readTag(&id, TimeType, false)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(zigzagDecode64(value), 0).UTC(), nil
}

func (r *Reader) ReadTimeDefault(id FieldID, def time.Time) (time.Time, error) {
	isNull, err := r.readDefaultNull(&id)
	if err != nil || isNull {
		return def, err
	}
	return r.ReadTime(id)
}

// ReadPtr reads a required ptr field as its raw, in-process address
// bits. Packs containing ptr fields are not portable across processes
// or persistence -- see Reader.RejectPtr.
func (r *Reader) ReadPtr(id FieldID) (uintptr, error) {
	value, _, err := r.readTag(&id, PtrType, false)
	if err != nil {
		return 0, err
	}
	if r.RejectPtr {
		return 0, &FormatError{Msg: fmt.Sprintf("field %d: ptr fields are rejected by this reader", uint32(id))}
	}
	return uintptr(value), nil
}

func (r *Reader) ReadPtrDefault(id FieldID, def uintptr) (uintptr, error) {
	isNull, err := r.readDefaultNull(&id)
	if err != nil || isNull {
		return def, err
	}
	return r.ReadPtr(id)
}

func (r *Reader) readStrValue(id FieldID) (string, error) {
	value, _, err := r.readTag(&id, StrType, false)
	if err != nil {
		return "", err
	}
	if value == 0 {
		return "", nil
	}
	size, err := readUvarint(r)
	if err != nil {
		return "", err
	}
	buf := make([]byte, size)
	if err := r.readFull(buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

// ReadStr reads a required string field.
func (r *Reader) ReadStr(id FieldID) (string, error) {
	return r.readStrValue(id)
}

func (r *Reader) ReadStrDefault(id FieldID, def string) (string, error) {
	isNull, err := r.readDefaultNull(&id)
	if err != nil || isNull {
		return def, err
	}
	return r.readStrValue(id)
}

func (r *Reader) readBinValue(id FieldID) ([]byte, error) {
	value, _, err := r.readTag(&id, BinType, false)
	if err != nil {
		return nil, err
	}
	if value == 0 {
		return []byte{}, nil
	}
	size, err := readUvarint(r)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, size)
	if err := r.readFull(buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// ReadBin reads a required binary-blob field. The returned slice is
// freshly allocated and does not alias the reader's internal buffer.
func (r *Reader) ReadBin(id FieldID) ([]byte, error) {
	return r.readBinValue(id)
}

func (r *Reader) ReadBinDefault(id FieldID, def []byte) ([]byte, error) {
	isNull, err := r.readDefaultNull(&id)
	if err != nil || isNull {
		return def, err
	}
	return r.readBinValue(id)
}

// BeginArray opens a nested array at id. Subsequent reads address
// array elements by their 1-based position until EndArray.
func (r *Reader) BeginArray(id FieldID) error {
	if _, _, err := r.readTag(&id, ArrayType, false); err != nil {
		return err
	}
	r.stack.push(readFrame{kind: frameArray})
	return nil
}

// EndArray closes the array opened by the matching BeginArray, first
// draining any unread sibling elements up to the terminator.
func (r *Reader) EndArray() error {
	return r.endContainer(frameArray, "array")
}

// BeginObject opens a nested object at id.
func (r *Reader) BeginObject(id FieldID) error {
	if _, _, err := r.readTag(&id, ObjType, false); err != nil {
		return err
	}
	r.stack.push(readFrame{kind: frameObject})
	return nil
}

// EndObject closes the object opened by the matching BeginObject.
func (r *Reader) EndObject() error {
	return r.endContainer(frameObject, "object")
}

func (r *Reader) endContainer(kind frameKind, name string) error {
	if r.stack.depth() == 1 || r.stack.top().kind != kind {
		return &FormatError{Msg: "not in " + name}
	}
	drainID := FieldID(idNone - 1)
	if _, _, err := r.readTag(&drainID, UnknownType, true); err != nil {
		return err
	}
	r.stack.pop()
	r.next.valid = false
	return nil
}

// End drains any remaining open frames (closing them as if EndArray/
// EndObject had been called on each) and consumes the root terminator.
func (r *Reader) End() error {
	for {
		drainID := FieldID(idNone - 1)
		if _, _, err := r.readTag(&drainID, UnknownType, true); err != nil {
			return err
		}
		r.next.valid = false
		if r.stack.depth() == 1 {
			return nil
		}
		r.stack.pop()
	}
}
