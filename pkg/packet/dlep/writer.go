// Copyright (c) 2022 NTT Communications Corporation
//
// This software is released under the MIT License.
// see https://github.com/nttcom/l2info/blob/main/LICENSE

package dlep

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/nttcom/l2info/internal/pkg/netaddr"
)

var ErrMessageTooLong = errors.New("dlep message too long")

// Writer assembles one DLEP message or signal. The first error is kept and
// returned by Finish; later Add calls are ignored.
type Writer struct {
	buf     []byte
	msgType uint16
	header  int // offset of the message header (after the signal prefix)
	err     error
}

func NewMessageWriter(t MessageType) *Writer {
	return &Writer{buf: make([]byte, MessageHeaderLength, 64), msgType: uint16(t)}
}

func NewSignalWriter(t SignalType) *Writer {
	w := &Writer{buf: make([]byte, 0, 64), msgType: uint16(t), header: SignalPrefixLength}
	w.buf = append(w.buf, SignalPrefix[:]...)
	w.buf = append(w.buf, make([]byte, MessageHeaderLength)...)
	return w
}

// AddTLV appends a TLV whose value is the concatenation of value.
func (w *Writer) AddTLV(t TLVType, value ...[]byte) *Writer {
	if w.err != nil {
		return w
	}
	v := AppendByteSlices(value...)
	if len(v) > math.MaxUint16 {
		w.err = fmt.Errorf("%w: %s value of %d bytes", ErrMessageTooLong, t, len(v))
		return w
	}
	w.buf = append(w.buf, Uint16ToByteSlice(t)...)
	w.buf = append(w.buf, Uint16ToByteSlice(uint16(len(v)))...)
	w.buf = append(w.buf, v...)
	return w
}

func (w *Writer) AddUint64(t TLVType, v uint64) *Writer {
	return w.AddTLV(t, Uint64ToByteSlice(v))
}

// AddInt appends v as a width byte field (1, 2, 4 or 8).
func (w *Writer) AddInt(t TLVType, v int64, width int) *Writer {
	switch width {
	case 1, 2, 4, 8:
	default:
		if w.err == nil {
			w.err = fmt.Errorf("%s: unsupported integer width %d", t, width)
		}
		return w
	}
	return w.AddTLV(t, IntToByteSlice(v, width))
}

func (w *Writer) AddBoolean(t TLVType, v bool) *Writer {
	if v {
		return w.AddTLV(t, []byte{1})
	}
	return w.AddTLV(t, []byte{0})
}

// AddHeartbeatInterval is the inverse of HeartbeatInterval.
func (w *Writer) AddHeartbeatInterval(interval time.Duration) *Writer {
	units := interval.Milliseconds() / 1000
	if units < 0 || units > math.MaxUint16 {
		if w.err == nil {
			w.err = fmt.Errorf("heartbeat interval %s out of range", interval)
		}
		return w
	}
	return w.AddTLV(TLVHeartbeatInterval, Uint16ToByteSlice(uint16(units)))
}

// AddConnectionPoint writes an IPv4 or IPv6 connection point. The port is
// omitted when it is the default port.
func (w *Writer) AddConnectionPoint(cp ConnectionPoint) *Writer {
	var t TLVType
	switch {
	case cp.Addr.Is4():
		t = TLVIPv4ConnectionPoint
	case cp.Addr.Is6():
		t = TLVIPv6ConnectionPoint
	default:
		if w.err == nil {
			w.err = fmt.Errorf("connection point needs an IP address, got %s", cp.Addr.Family())
		}
		return w
	}
	flags := SetBit(uint8(0), ConnectionPointFlagTLS, cp.TLS)
	if cp.Port == DefaultPort || cp.Port == 0 {
		return w.AddTLV(t, []byte{flags}, cp.Addr.AsSlice())
	}
	return w.AddTLV(t, []byte{flags}, cp.Addr.AsSlice(), Uint16ToByteSlice(cp.Port))
}

func (w *Writer) AddMAC(mac netaddr.Addr) *Writer {
	if !mac.IsMAC() {
		if w.err == nil {
			w.err = fmt.Errorf("%s is no MAC address", mac)
		}
		return w
	}
	return w.AddTLV(TLVMACAddress, mac.AsSlice())
}

// AddIPAddress writes an IPv4/IPv6 Address TLV, or an Attached Subnet TLV
// when addr carries a prefix shorter than the address length.
func (w *Writer) AddIPAddress(addr netaddr.Addr, add bool) *Writer {
	flag := IPFlagDrop
	if add {
		flag = IPFlagAdd
	}
	full := addr.PrefixLen() == addr.Family().Len()*8
	switch {
	case addr.Is4() && full:
		return w.AddTLV(TLVIPv4Address, []byte{flag}, addr.AsSlice())
	case addr.Is6() && full:
		return w.AddTLV(TLVIPv6Address, []byte{flag}, addr.AsSlice())
	case addr.Is4():
		return w.AddTLV(TLVIPv4AttachedSubnet, []byte{flag}, addr.AsSlice(), []byte{uint8(addr.PrefixLen())})
	case addr.Is6():
		return w.AddTLV(TLVIPv6AttachedSubnet, []byte{flag}, addr.AsSlice(), []byte{uint8(addr.PrefixLen())})
	default:
		if w.err == nil {
			w.err = fmt.Errorf("%s is no IP address", addr)
		}
		return w
	}
}

func (w *Writer) AddStatus(code StatusCode, text string) *Writer {
	return w.AddTLV(TLVStatus, []byte{uint8(code)}, []byte(text))
}

func (w *Writer) AddPeerType(text string) *Writer {
	return w.AddTLV(TLVPeerType, []byte(text))
}

func (w *Writer) AddExtensions(ids ...ExtensionID) *Writer {
	v := make([][]byte, 0, len(ids))
	for _, id := range ids {
		v = append(v, Uint16ToByteSlice(id))
	}
	return w.AddTLV(TLVExtensionsSupported, v...)
}

func (w *Writer) AddLinkID(id []byte) *Writer {
	if len(id) == 0 || len(id) > MaxLinkIDLength {
		if w.err == nil {
			w.err = fmt.Errorf("link id length %d, want 1-%d", len(id), MaxLinkIDLength)
		}
		return w
	}
	return w.AddTLV(TLVLinkID, id)
}

// Finish fills in the message length and returns the encoded bytes.
func (w *Writer) Finish() ([]byte, error) {
	if w.err != nil {
		return nil, w.err
	}
	length := len(w.buf) - w.header - MessageHeaderLength
	if length > math.MaxUint16 {
		return nil, fmt.Errorf("%w: %d bytes", ErrMessageTooLong, length)
	}
	h := Header{Type: w.msgType, Length: uint16(length)}
	copy(w.buf[w.header:], h.Serialize())
	return w.buf, nil
}
