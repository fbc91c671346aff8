// Copyright (c) 2022 NTT Communications Corporation
//
// This software is released under the MIT License.
// see https://github.com/nttcom/l2info/blob/main/LICENSE

package dlep

import (
	"encoding/binary"
	"fmt"
	"iter"

	"go.uber.org/zap/zapcore"
)

// TLVEntry locates one TLV value inside the buffer of a ValueStore.
type TLVEntry struct {
	Type   TLVType
	Length uint16
	Offset int // offset of the value (after the TLV header)
}

func (e TLVEntry) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("type", e.Type.String())
	enc.AddUint16("length", e.Length)
	enc.AddInt("offset", e.Offset)
	return nil
}

// ValueStore indexes the TLVs of one received message. Entries keep message
// order and reference the buffer, which must outlive the store.
type ValueStore struct {
	buf     []byte
	entries []TLVEntry
}

// NewValueStore returns an empty store over buf. Entries are added with Add.
func NewValueStore(buf []byte) *ValueStore {
	return &ValueStore{buf: buf}
}

// ParseTLVs walks the TLV block starting at offset up to the end of buf.
func ParseTLVs(buf []byte, offset int) (*ValueStore, error) {
	vs := NewValueStore(buf)
	for offset < len(buf) {
		if len(buf)-offset < TLVHeaderLength {
			return nil, fmt.Errorf("%w: truncated TLV header at offset %d", ErrTLVMalformed, offset)
		}
		t := TLVType(binary.BigEndian.Uint16(buf[offset : offset+2]))
		length := binary.BigEndian.Uint16(buf[offset+2 : offset+4])
		if err := vs.Add(t, length, offset+TLVHeaderLength); err != nil {
			return nil, err
		}
		offset += TLVHeaderLength + int(length)
	}
	return vs, nil
}

// Add records a TLV whose value occupies buf[offset:offset+length].
func (vs *ValueStore) Add(t TLVType, length uint16, offset int) error {
	if offset < 0 || offset+int(length) > len(vs.buf) {
		return fmt.Errorf("%w: %s value (offset %d, length %d) exceeds buffer of %d bytes",
			ErrTLVMalformed, t, offset, length, len(vs.buf))
	}
	vs.entries = append(vs.entries, TLVEntry{Type: t, Length: length, Offset: offset})
	return nil
}

// Get returns the first entry of type t.
func (vs *ValueStore) Get(t TLVType) (TLVEntry, bool) {
	for _, e := range vs.entries {
		if e.Type == t {
			return e, true
		}
	}
	return TLVEntry{}, false
}

// All iterates over every entry of type t in message order.
func (vs *ValueStore) All(t TLVType) iter.Seq[TLVEntry] {
	return func(yield func(TLVEntry) bool) {
		for _, e := range vs.entries {
			if e.Type == t && !yield(e) {
				return
			}
		}
	}
}

// Entries returns all entries in message order.
func (vs *ValueStore) Entries() []TLVEntry {
	return vs.entries
}

// Binary returns the value bytes of e. The slice aliases the message buffer.
func (vs *ValueStore) Binary(e TLVEntry) []byte {
	return vs.buf[e.Offset : e.Offset+int(e.Length)]
}

func (vs *ValueStore) Len() int {
	return len(vs.entries)
}

func (vs *ValueStore) MarshalLogArray(enc zapcore.ArrayEncoder) error {
	for _, e := range vs.entries {
		if err := enc.AppendObject(e); err != nil {
			return err
		}
	}
	return nil
}
