// Copyright (c) 2022 NTT Communications Corporation
//
// This software is released under the MIT License.
// see https://github.com/nttcom/l2info/blob/main/LICENSE

package dlep

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap/zapcore"

	"github.com/nttcom/l2info/internal/pkg/netaddr"
)

// The readers below decode a single TLV of a received message. When entry is
// nil the first TLV of the requested type is used and ErrTLVNotFound is
// returned if there is none. Length or content violations wrap ErrTLVMalformed.

func lookup(vs *ValueStore, t TLVType, entry *TLVEntry) (TLVEntry, error) {
	if entry != nil {
		return *entry, nil
	}
	e, ok := vs.Get(t)
	if !ok {
		return TLVEntry{}, fmt.Errorf("%w: %s", ErrTLVNotFound, t)
	}
	return e, nil
}

func malformed(e TLVEntry, format string, a ...any) error {
	return fmt.Errorf("%w: %s: %s", ErrTLVMalformed, e.Type, fmt.Sprintf(format, a...))
}

// HeartbeatInterval decodes the Heartbeat Interval TLV. The wire value is
// multiplied by 1000 to get milliseconds.
func HeartbeatInterval(vs *ValueStore, entry *TLVEntry) (time.Duration, error) {
	e, err := lookup(vs, TLVHeartbeatInterval, entry)
	if err != nil {
		return 0, err
	}
	if e.Length != TLVHeartbeatIntervalValueLength {
		return 0, malformed(e, "length %d, want %d", e.Length, TLVHeartbeatIntervalValueLength)
	}
	ms := 1000 * uint64(binary.BigEndian.Uint16(vs.Binary(e)))
	return time.Duration(ms) * time.Millisecond, nil
}

// copyText copies at most len(buf)-1 bytes of src into buf and terminates the
// copy with a zero byte. It returns the number of text bytes copied.
func copyText(buf, src []byte) int {
	if len(buf) == 0 {
		return 0
	}
	n := copy(buf[:len(buf)-1], src)
	buf[n] = 0
	return n
}

// Text decodes a free text TLV into buf. Text that does not fit is truncated.
func Text(vs *ValueStore, t TLVType, entry *TLVEntry, buf []byte) (int, error) {
	e, err := lookup(vs, t, entry)
	if err != nil {
		return 0, err
	}
	return copyText(buf, vs.Binary(e)), nil
}

func PeerType(vs *ValueStore, entry *TLVEntry, buf []byte) (int, error) {
	return Text(vs, TLVPeerType, entry, buf)
}

// Status decodes the Status TLV: a status code followed by optional text,
// which is copied into buf the same way Text does.
func Status(vs *ValueStore, entry *TLVEntry, buf []byte) (StatusCode, int, error) {
	e, err := lookup(vs, TLVStatus, entry)
	if err != nil {
		return 0, 0, err
	}
	if e.Length < 1 {
		return 0, 0, malformed(e, "empty status")
	}
	b := vs.Binary(e)
	return StatusCode(b[0]), copyText(buf, b[1:]), nil
}

// Address decodes a raw address of the given family. With FamilyUnspec the
// family is derived from the TLV length.
func Address(vs *ValueStore, t TLVType, entry *TLVEntry, family netaddr.Family) (netaddr.Addr, error) {
	e, err := lookup(vs, t, entry)
	if err != nil {
		return netaddr.Addr{}, err
	}
	a, err := netaddr.FromBinary(vs.Binary(e), int(e.Length), family)
	if err != nil {
		return netaddr.Addr{}, malformed(e, "%v", err)
	}
	return a, nil
}

// MACAddress decodes a 48 or 64 bit link-layer address.
func MACAddress(vs *ValueStore, entry *TLVEntry) (netaddr.Addr, error) {
	e, err := lookup(vs, TLVMACAddress, entry)
	if err != nil {
		return netaddr.Addr{}, err
	}
	switch e.Length {
	case 6:
		return Address(vs, TLVMACAddress, &e, netaddr.FamilyMAC48)
	case 8:
		return Address(vs, TLVMACAddress, &e, netaddr.FamilyEUI64)
	default:
		return netaddr.Addr{}, malformed(e, "length %d is no MAC address", e.Length)
	}
}

func ipFlag(e TLVEntry, flag byte) (bool, error) {
	switch flag {
	case IPFlagAdd:
		return true, nil
	case IPFlagDrop:
		return false, nil
	default:
		return false, malformed(e, "invalid add/drop flag 0x%02x", flag)
	}
}

func flaggedAddress(vs *ValueStore, t TLVType, entry *TLVEntry, family netaddr.Family, withPrefix bool) (netaddr.Addr, bool, error) {
	e, err := lookup(vs, t, entry)
	if err != nil {
		return netaddr.Addr{}, false, err
	}
	want := 1 + family.Len()
	if withPrefix {
		want++
	}
	if int(e.Length) != want {
		return netaddr.Addr{}, false, malformed(e, "length %d, want %d", e.Length, want)
	}
	b := vs.Binary(e)
	add, err := ipFlag(e, b[0])
	if err != nil {
		return netaddr.Addr{}, false, err
	}
	a, err := netaddr.FromBinary(b[1:], family.Len(), family)
	if err != nil {
		return netaddr.Addr{}, false, malformed(e, "%v", err)
	}
	if withPrefix {
		if a, err = a.WithPrefixLen(int(b[want-1])); err != nil {
			return netaddr.Addr{}, false, malformed(e, "%v", err)
		}
	}
	return a, add, nil
}

// IPv4Address decodes an IPv4 Address TLV; add reports the add/drop flag.
func IPv4Address(vs *ValueStore, entry *TLVEntry) (addr netaddr.Addr, add bool, err error) {
	return flaggedAddress(vs, TLVIPv4Address, entry, netaddr.FamilyIPv4, false)
}

// IPv6Address decodes an IPv6 Address TLV; add reports the add/drop flag.
func IPv6Address(vs *ValueStore, entry *TLVEntry) (addr netaddr.Addr, add bool, err error) {
	return flaggedAddress(vs, TLVIPv6Address, entry, netaddr.FamilyIPv6, false)
}

func IPv4Subnet(vs *ValueStore, entry *TLVEntry) (prefix netaddr.Addr, add bool, err error) {
	return flaggedAddress(vs, TLVIPv4AttachedSubnet, entry, netaddr.FamilyIPv4, true)
}

func IPv6Subnet(vs *ValueStore, entry *TLVEntry) (prefix netaddr.Addr, add bool, err error) {
	return flaggedAddress(vs, TLVIPv6AttachedSubnet, entry, netaddr.FamilyIPv6, true)
}

// ConnectionPoint is the decoded form of the IPv4/IPv6 Connection Point TLVs.
type ConnectionPoint struct {
	Addr netaddr.Addr
	Port uint16
	TLS  bool
}

func (cp ConnectionPoint) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("address", cp.Addr.String())
	enc.AddUint16("port", cp.Port)
	enc.AddBool("tls", cp.TLS)
	return nil
}

// Connection point flags
const ConnectionPointFlagTLS uint8 = 0x01

func connectionPoint(vs *ValueStore, t TLVType, entry *TLVEntry, family netaddr.Family) (ConnectionPoint, error) {
	e, err := lookup(vs, t, entry)
	if err != nil {
		return ConnectionPoint{}, err
	}
	short := uint16(1 + family.Len())
	if e.Length != short && e.Length != short+2 {
		return ConnectionPoint{}, malformed(e, "length %d, want %d or %d", e.Length, short, short+2)
	}
	b := vs.Binary(e)
	if b[0] > ConnectionPointFlagTLS {
		return ConnectionPoint{}, malformed(e, "invalid flags 0x%02x", b[0])
	}

	cp := ConnectionPoint{
		TLS:  IsBitSet(b[0], ConnectionPointFlagTLS),
		Port: DefaultPort,
	}
	if e.Length == short+2 {
		cp.Port = binary.BigEndian.Uint16(b[short : short+2])
	}
	if cp.Addr, err = netaddr.FromBinary(b[1:], family.Len(), family); err != nil {
		return ConnectionPoint{}, malformed(e, "%v", err)
	}
	return cp, nil
}

func IPv4ConnectionPoint(vs *ValueStore, entry *TLVEntry) (ConnectionPoint, error) {
	return connectionPoint(vs, TLVIPv4ConnectionPoint, entry, netaddr.FamilyIPv4)
}

func IPv6ConnectionPoint(vs *ValueStore, entry *TLVEntry) (ConnectionPoint, error) {
	return connectionPoint(vs, TLVIPv6ConnectionPoint, entry, netaddr.FamilyIPv6)
}

// Uint64 decodes an unsigned 8 byte field.
func Uint64(vs *ValueStore, t TLVType, entry *TLVEntry) (uint64, error) {
	e, err := lookup(vs, t, entry)
	if err != nil {
		return 0, err
	}
	if e.Length != TLVUint64ValueLength {
		return 0, malformed(e, "length %d, want %d", e.Length, TLVUint64ValueLength)
	}
	return binary.BigEndian.Uint64(vs.Binary(e)), nil
}

// Int64 decodes a signed 8 byte field.
func Int64(vs *ValueStore, t TLVType, entry *TLVEntry) (int64, error) {
	v, err := Uint64(vs, t, entry)
	return int64(v), err
}

// Integer decodes a signed field of the given width in bytes and sign-extends
// it to 64 bit. A width of 0 accepts any of 1, 2, 4 or 8 bytes.
func Integer(vs *ValueStore, t TLVType, entry *TLVEntry, width int) (int64, error) {
	e, err := lookup(vs, t, entry)
	if err != nil {
		return 0, err
	}
	if width != 0 && int(e.Length) != width {
		return 0, malformed(e, "length %d, want %d", e.Length, width)
	}

	b := vs.Binary(e)
	switch len(b) {
	case 1:
		return ReadSigned[int8](b), nil
	case 2:
		return ReadSigned[int16](b), nil
	case 4:
		return ReadSigned[int32](b), nil
	case 8:
		return ReadSigned[int64](b), nil
	default:
		return 0, malformed(e, "unsupported integer length %d", e.Length)
	}
}

// Unsigned decodes an unsigned field of the given width (0 = 1, 2, 4 or 8
// bytes). Values that do not fit into an int64 are rejected.
func Unsigned(vs *ValueStore, t TLVType, entry *TLVEntry, width int) (int64, error) {
	e, err := lookup(vs, t, entry)
	if err != nil {
		return 0, err
	}
	if width != 0 && int(e.Length) != width {
		return 0, malformed(e, "length %d, want %d", e.Length, width)
	}
	switch e.Length {
	case 1, 2, 4, 8:
	default:
		return 0, malformed(e, "unsupported integer length %d", e.Length)
	}
	v := ReadUnsigned(vs.Binary(e))
	if v > math.MaxInt64 {
		return 0, malformed(e, "value %d out of range", v)
	}
	return int64(v), nil
}

// Boolean decodes a one byte flag that must be 0 or 1.
func Boolean(vs *ValueStore, t TLVType, entry *TLVEntry) (bool, error) {
	e, err := lookup(vs, t, entry)
	if err != nil {
		return false, err
	}
	if e.Length != TLVBooleanValueLength {
		return false, malformed(e, "length %d, want %d", e.Length, TLVBooleanValueLength)
	}
	switch b := vs.Binary(e)[0]; b {
	case 0, 1:
		return b == 1, nil
	default:
		return false, malformed(e, "invalid boolean 0x%02x", b)
	}
}

// LinkID returns the link identifier bytes. The slice aliases the message.
func LinkID(vs *ValueStore, entry *TLVEntry) ([]byte, error) {
	e, err := lookup(vs, TLVLinkID, entry)
	if err != nil {
		return nil, err
	}
	if e.Length == 0 || e.Length > MaxLinkIDLength {
		return nil, malformed(e, "length %d, want 1-%d", e.Length, MaxLinkIDLength)
	}
	return vs.Binary(e), nil
}

// ExtensionsSupported decodes the list of 16 bit extension ids.
func ExtensionsSupported(vs *ValueStore, entry *TLVEntry) ([]ExtensionID, error) {
	e, err := lookup(vs, TLVExtensionsSupported, entry)
	if err != nil {
		return nil, err
	}
	if e.Length%2 != 0 {
		return nil, malformed(e, "odd length %d", e.Length)
	}
	b := vs.Binary(e)
	ids := make([]ExtensionID, 0, len(b)/2)
	for i := 0; i < len(b); i += 2 {
		ids = append(ids, ExtensionID(binary.BigEndian.Uint16(b[i:i+2])))
	}
	return ids, nil
}
