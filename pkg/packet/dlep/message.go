// Copyright (c) 2022 NTT Communications Corporation
//
// This software is released under the MIT License.
// see https://github.com/nttcom/l2info/blob/main/LICENSE

package dlep

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

var ErrMessageMalformed = errors.New("dlep message malformed")

// Header of a DLEP message or signal (RFC8175 11, 12)
type Header struct {
	Type   uint16
	Length uint16 // length of the TLV block following the header
}

func (h *Header) DecodeFromBytes(header []byte) error {
	if len(header) < MessageHeaderLength {
		return fmt.Errorf("%w: header needs %d bytes, got %d", ErrMessageMalformed, MessageHeaderLength, len(header))
	}
	h.Type = binary.BigEndian.Uint16(header[0:2])
	h.Length = binary.BigEndian.Uint16(header[2:4])
	return nil
}

func (h *Header) Serialize() []byte {
	return AppendByteSlices(Uint16ToByteSlice(h.Type), Uint16ToByteSlice(h.Length))
}

// MessageLength returns the full length of the message whose header starts
// buf, for framing a TCP stream.
func MessageLength(buf []byte) (int, error) {
	var h Header
	if err := h.DecodeFromBytes(buf); err != nil {
		return 0, err
	}
	return MessageHeaderLength + int(h.Length), nil
}

// DecodeMessage decodes one complete session message. The returned store
// references buf.
func DecodeMessage(buf []byte) (MessageType, *ValueStore, error) {
	var h Header
	if err := h.DecodeFromBytes(buf); err != nil {
		return 0, nil, err
	}
	if int(h.Length) != len(buf)-MessageHeaderLength {
		return 0, nil, fmt.Errorf("%w: header length %d, have %d bytes", ErrMessageMalformed, h.Length, len(buf)-MessageHeaderLength)
	}
	vs, err := ParseTLVs(buf, MessageHeaderLength)
	if err != nil {
		return 0, nil, err
	}
	return MessageType(h.Type), vs, nil
}

// DecodeSignal decodes one UDP discovery signal including the "DLEP" prefix.
func DecodeSignal(buf []byte) (SignalType, *ValueStore, error) {
	if len(buf) < SignalHeaderLength || !bytes.Equal(buf[:SignalPrefixLength], SignalPrefix[:]) {
		return 0, nil, fmt.Errorf("%w: missing signal prefix", ErrMessageMalformed)
	}
	var h Header
	if err := h.DecodeFromBytes(buf[SignalPrefixLength:]); err != nil {
		return 0, nil, err
	}
	if int(h.Length) != len(buf)-SignalHeaderLength {
		return 0, nil, fmt.Errorf("%w: header length %d, have %d bytes", ErrMessageMalformed, h.Length, len(buf)-SignalHeaderLength)
	}
	vs, err := ParseTLVs(buf, SignalHeaderLength)
	if err != nil {
		return 0, nil, err
	}
	return SignalType(h.Type), vs, nil
}
