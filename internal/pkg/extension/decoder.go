// Copyright (c) 2022 NTT Communications Corporation
//
// This software is released under the MIT License.
// see https://github.com/nttcom/l2info/blob/main/LICENSE

package extension

import (
	"fmt"

	"github.com/nttcom/l2info/internal/pkg/layer2"
	"github.com/nttcom/l2info/pkg/packet/dlep"
)

// Decoder turns one TLV into a layer2 value and back.
type Decoder interface {
	Decode(vs *dlep.ValueStore, t dlep.TLVType, entry *dlep.TLVEntry) (layer2.Value, error)
	Encode(w *dlep.Writer, t dlep.TLVType, v layer2.Value) error
}

// IntegerDecoder reads a signed field of Width bytes. Width 0 accepts 1, 2,
// 4 or 8 byte fields and encodes 8 bytes.
type IntegerDecoder struct {
	Width int
}

func (d IntegerDecoder) Decode(vs *dlep.ValueStore, t dlep.TLVType, entry *dlep.TLVEntry) (layer2.Value, error) {
	v, err := dlep.Integer(vs, t, entry, d.Width)
	if err != nil {
		return layer2.Value{}, err
	}
	return layer2.IntegerValue(v), nil
}

func (d IntegerDecoder) Encode(w *dlep.Writer, t dlep.TLVType, v layer2.Value) error {
	i, ok := v.Int64()
	if !ok {
		return fmt.Errorf("%s: %s value is no integer", t, v.Type())
	}
	w.AddInt(t, i, encodeWidth(d.Width))
	return nil
}

// UnsignedDecoder reads an unsigned field of Width bytes (0 = 1, 2, 4 or 8).
type UnsignedDecoder struct {
	Width int
}

func (d UnsignedDecoder) Decode(vs *dlep.ValueStore, t dlep.TLVType, entry *dlep.TLVEntry) (layer2.Value, error) {
	v, err := dlep.Unsigned(vs, t, entry, d.Width)
	if err != nil {
		return layer2.Value{}, err
	}
	return layer2.IntegerValue(v), nil
}

func (d UnsignedDecoder) Encode(w *dlep.Writer, t dlep.TLVType, v layer2.Value) error {
	i, ok := v.Int64()
	if !ok {
		return fmt.Errorf("%s: %s value is no integer", t, v.Type())
	}
	width := encodeWidth(d.Width)
	if i < 0 || (width < 8 && i >= 1<<(8*width)) {
		return fmt.Errorf("%s: %d does not fit %d unsigned bytes", t, i, width)
	}
	w.AddInt(t, i, width)
	return nil
}

func encodeWidth(width int) int {
	if width == 0 {
		return 8
	}
	return width
}

// BooleanDecoder reads a one byte 0/1 flag.
type BooleanDecoder struct{}

func (BooleanDecoder) Decode(vs *dlep.ValueStore, t dlep.TLVType, entry *dlep.TLVEntry) (layer2.Value, error) {
	b, err := dlep.Boolean(vs, t, entry)
	if err != nil {
		return layer2.Value{}, err
	}
	return layer2.BooleanValue(b), nil
}

func (BooleanDecoder) Encode(w *dlep.Writer, t dlep.TLVType, v layer2.Value) error {
	b, ok := v.Bool()
	if !ok {
		return fmt.Errorf("%s: %s value is no boolean", t, v.Type())
	}
	w.AddBoolean(t, b)
	return nil
}
