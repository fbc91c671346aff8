// Copyright (c) 2022 NTT Communications Corporation
//
// This software is released under the MIT License.
// see https://github.com/nttcom/l2info/blob/main/LICENSE

package layer2

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"time"

	"go.uber.org/zap/zapcore"

	"github.com/nttcom/l2info/internal/pkg/netaddr"
)

// MaxLinkIDLength bounds the link id part of a neighbor key.
const MaxLinkIDLength = 16

// NeighborKey identifies a neighbor by link-layer address and optional link id.
type NeighborKey struct {
	Addr         netaddr.Addr
	LinkID       [MaxLinkIDLength]byte
	LinkIDLength uint8
}

func NewNeighborKey(addr netaddr.Addr, linkID []byte) (NeighborKey, error) {
	if len(linkID) > MaxLinkIDLength {
		return NeighborKey{}, fmt.Errorf("link id of %d bytes exceeds %d", len(linkID), MaxLinkIDLength)
	}
	k := NeighborKey{Addr: addr, LinkIDLength: uint8(len(linkID))}
	copy(k.LinkID[:], linkID)
	return k, nil
}

// ParseNeighborKey builds a key from a textual address and a hex link id.
func ParseNeighborKey(addr, linkID string) (NeighborKey, error) {
	a, err := netaddr.Parse(addr)
	if err != nil {
		return NeighborKey{}, err
	}
	id, err := hex.DecodeString(linkID)
	if err != nil {
		return NeighborKey{}, fmt.Errorf("bad link id %q: %w", linkID, err)
	}
	return NewNeighborKey(a, id)
}

func (k NeighborKey) LinkIDBytes() []byte {
	return k.LinkID[:k.LinkIDLength]
}

// LinkIDHex is the hex encoded link id, empty without one.
func (k NeighborKey) LinkIDHex() string {
	return hex.EncodeToString(k.LinkIDBytes())
}

func (k NeighborKey) Compare(o NeighborKey) int {
	if c := k.Addr.Compare(o.Addr); c != 0 {
		return c
	}
	return bytes.Compare(k.LinkIDBytes(), o.LinkIDBytes())
}

func (k NeighborKey) String() string {
	if k.LinkIDLength == 0 {
		return k.Addr.String()
	}
	return k.Addr.String() + "/" + k.LinkIDHex()
}

func (k NeighborKey) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("addr", k.Addr.String())
	enc.AddString("linkID", k.LinkIDHex())
	return nil
}

type Neighbor struct {
	Key      NeighborKey
	LastSeen time.Time
	Data     [NeighborIndexCount]Data

	// Addresses reachable through the neighbor
	Destinations AddressSet
	// IP addresses of the neighbor itself
	RemoteIPs AddressSet

	nextHopV4 netaddr.Addr
	nextHopV6 netaddr.Addr
}

// SetNextHop sets the link-local next hop of the address family of addr.
func (n *Neighbor) SetNextHop(addr netaddr.Addr) error {
	switch {
	case addr.Is4():
		n.nextHopV4 = addr
	case addr.Is6():
		n.nextHopV6 = addr
	default:
		return fmt.Errorf("next hop %s is no IP address", addr)
	}
	return nil
}

func (n *Neighbor) ClearNextHop(family netaddr.Family) {
	switch family {
	case netaddr.FamilyIPv4:
		n.nextHopV4 = netaddr.Addr{}
	case netaddr.FamilyIPv6:
		n.nextHopV6 = netaddr.Addr{}
	}
}

func (n *Neighbor) NextHop(family netaddr.Family) (netaddr.Addr, bool) {
	switch family {
	case netaddr.FamilyIPv4:
		return n.nextHopV4, n.nextHopV4.IsValid()
	case netaddr.FamilyIPv6:
		return n.nextHopV6, n.nextHopV6.IsValid()
	default:
		return netaddr.Addr{}, false
	}
}

// Set writes a metric slot following the precedence rule of Data.Set.
func (n *Neighbor) Set(idx NeighborIndex, origin *Origin, precedence Precedence, v Value) bool {
	return n.Data[idx].Set(origin, precedence, v)
}

func (n *Neighbor) Get(idx NeighborIndex) (Value, *Origin, bool) {
	return n.Data[idx].Get()
}

// removeOrigin clears all data of o and reports whether the neighbor holds
// no origin tagged data anymore.
func (n *Neighbor) removeOrigin(o *Origin) bool {
	for i := range n.Data {
		n.Data[i].RemoveOrigin(o)
	}
	n.Destinations.RemoveOrigin(o)
	n.RemoteIPs.RemoveOrigin(o)
	return n.isEmpty()
}

func (n *Neighbor) isEmpty() bool {
	for i := range n.Data {
		if n.Data[i].HasValue() {
			return false
		}
	}
	return n.Destinations.Len() == 0 && n.RemoteIPs.Len() == 0
}
