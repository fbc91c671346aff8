// Copyright (c) 2022 NTT Communications Corporation
//
// This software is released under the MIT License.
// see https://github.com/nttcom/l2info/blob/main/LICENSE

// Package netaddr holds a comparable address value that covers both IP
// addresses/prefixes and link-layer (MAC) addresses, so the layer2 database and
// the DLEP codec can key records and sets by a single type.
package netaddr

import (
	"bytes"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"strconv"
	"strings"
)

type Family uint8

const (
	FamilyUnspec Family = iota
	FamilyIPv4
	FamilyIPv6
	FamilyMAC48
	FamilyEUI64
)

var familyDescriptions = map[Family]struct {
	Name   string
	Length int
}{
	FamilyUnspec: {"unspec", 0},
	FamilyIPv4:   {"ipv4", 4},
	FamilyIPv6:   {"ipv6", 16},
	FamilyMAC48:  {"mac48", 6},
	FamilyEUI64:  {"eui64", 8},
}

func (f Family) String() string {
	if desc, ok := familyDescriptions[f]; ok {
		return desc.Name
	}
	return fmt.Sprintf("Unknown Family (%d)", uint8(f))
}

// Len returns the binary length of an address of this family.
func (f Family) Len() int {
	return familyDescriptions[f].Length
}

func familyByLength(length int) Family {
	switch length {
	case 4:
		return FamilyIPv4
	case 16:
		return FamilyIPv6
	case 6:
		return FamilyMAC48
	case 8:
		return FamilyEUI64
	default:
		return FamilyUnspec
	}
}

var ErrInvalidAddress = errors.New("invalid address")

// Addr is comparable and usable as a map key. The zero value is the
// unspecified address.
type Addr struct {
	family    Family
	addr      [16]byte
	prefixLen uint8
}

// FromBinary builds an address from length bytes of b. With FamilyUnspec the
// family is derived from the length.
func FromBinary(b []byte, length int, family Family) (Addr, error) {
	if length < 0 || len(b) < length {
		return Addr{}, fmt.Errorf("%w: need %d bytes, got %d", ErrInvalidAddress, length, len(b))
	}
	if family == FamilyUnspec {
		family = familyByLength(length)
		if family == FamilyUnspec {
			return Addr{}, fmt.Errorf("%w: no address family has length %d", ErrInvalidAddress, length)
		}
	}
	if family.Len() != length {
		return Addr{}, fmt.Errorf("%w: %s address must be %d bytes, got %d", ErrInvalidAddress, family, family.Len(), length)
	}

	a := Addr{family: family, prefixLen: uint8(length * 8)}
	copy(a.addr[:], b[:length])
	return a, nil
}

func FromNetip(ip netip.Addr) Addr {
	switch {
	case ip.Is4():
		a, _ := FromBinary(ip.AsSlice(), 4, FamilyIPv4)
		return a
	case ip.Is6():
		a, _ := FromBinary(ip.AsSlice(), 16, FamilyIPv6)
		return a
	default:
		return Addr{}
	}
}

func FromPrefix(p netip.Prefix) Addr {
	a := FromNetip(p.Addr())
	if a.IsValid() && p.Bits() >= 0 {
		a.prefixLen = uint8(p.Bits())
	}
	return a
}

func FromHardwareAddr(mac net.HardwareAddr) (Addr, error) {
	return FromBinary(mac, len(mac), familyByLength(len(mac)))
}

// MustParse is Parse for tests and constant tables.
func MustParse(s string) Addr {
	a, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return a
}

// Parse accepts IPv4/IPv6 addresses, CIDR prefixes and colon separated
// 48 or 64 bit hardware addresses.
func Parse(s string) (Addr, error) {
	if strings.Contains(s, "/") {
		p, err := netip.ParsePrefix(s)
		if err != nil {
			return Addr{}, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
		}
		return FromPrefix(p), nil
	}
	// 8 groups of 2 hex digits are valid IPv6 text as well; they are read as
	// EUI-64 so exported hardware addresses parse back unchanged.
	if isHardwareAddr(s) {
		mac, err := net.ParseMAC(s)
		if err != nil {
			return Addr{}, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
		}
		return FromHardwareAddr(mac)
	}
	ip, err := netip.ParseAddr(s)
	if err != nil {
		return Addr{}, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}
	if ip.Zone() != "" {
		return Addr{}, fmt.Errorf("%w: zoned address %q", ErrInvalidAddress, s)
	}
	return FromNetip(ip), nil
}

// isHardwareAddr matches 6 or 8 groups of 2 hex digits separated by ':' or '-'.
func isHardwareAddr(s string) bool {
	if len(s) != 17 && len(s) != 23 {
		return false
	}
	sep := s[2]
	if sep != ':' && sep != '-' {
		return false
	}
	for i := 0; i < len(s); i++ {
		if i%3 == 2 {
			if s[i] != sep {
				return false
			}
			continue
		}
		if !isHex(s[i]) {
			return false
		}
	}
	return true
}

func isHex(c byte) bool {
	return '0' <= c && c <= '9' || 'a' <= c && c <= 'f' || 'A' <= c && c <= 'F'
}

func (a Addr) Family() Family {
	return a.family
}

func (a Addr) IsValid() bool {
	return a.family != FamilyUnspec
}

func (a Addr) Is4() bool {
	return a.family == FamilyIPv4
}

func (a Addr) Is6() bool {
	return a.family == FamilyIPv6
}

func (a Addr) IsIP() bool {
	return a.Is4() || a.Is6()
}

func (a Addr) IsMAC() bool {
	return a.family == FamilyMAC48 || a.family == FamilyEUI64
}

func (a Addr) PrefixLen() int {
	return int(a.prefixLen)
}

// WithPrefixLen returns a copy of an IP address carrying the given prefix length.
func (a Addr) WithPrefixLen(bits int) (Addr, error) {
	if !a.IsIP() || bits < 0 || bits > a.family.Len()*8 {
		return Addr{}, fmt.Errorf("%w: prefix length %d for %s address", ErrInvalidAddress, bits, a.family)
	}
	a.prefixLen = uint8(bits)
	return a, nil
}

// AsSlice returns a copy of the address bytes.
func (a Addr) AsSlice() []byte {
	b := make([]byte, a.family.Len())
	copy(b, a.addr[:])
	return b
}

// Netip converts an IP address; ok is false for link-layer addresses.
func (a Addr) Netip() (netip.Addr, bool) {
	switch a.family {
	case FamilyIPv4:
		return netip.AddrFrom4([4]byte(a.addr[:4])), true
	case FamilyIPv6:
		return netip.AddrFrom16(a.addr), true
	default:
		return netip.Addr{}, false
	}
}

func (a Addr) String() string {
	switch a.family {
	case FamilyIPv4, FamilyIPv6:
		ip, _ := a.Netip()
		if int(a.prefixLen) == a.family.Len()*8 {
			return ip.String()
		}
		return ip.String() + "/" + strconv.Itoa(int(a.prefixLen))
	case FamilyMAC48, FamilyEUI64:
		return net.HardwareAddr(a.addr[:a.family.Len()]).String()
	default:
		return "-"
	}
}

// Compare orders by family, then address bytes, then prefix length.
func (a Addr) Compare(b Addr) int {
	if a.family != b.family {
		if a.family < b.family {
			return -1
		}
		return 1
	}
	if c := bytes.Compare(a.addr[:], b.addr[:]); c != 0 {
		return c
	}
	switch {
	case a.prefixLen < b.prefixLen:
		return -1
	case a.prefixLen > b.prefixLen:
		return 1
	}
	return 0
}

func (a Addr) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Addr) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
