// Copyright (c) 2022 NTT Communications Corporation
//
// This software is released under the MIT License.
// see https://github.com/nttcom/l2info/blob/main/LICENSE

package layer2

import (
	"slices"

	"github.com/nttcom/l2info/internal/pkg/netaddr"
)

type OriginAddr struct {
	Addr   netaddr.Addr
	Origin *Origin
}

// AddressSet is a set of origin tagged addresses keyed by address. Adding an
// address again replaces its origin.
type AddressSet struct {
	m map[netaddr.Addr]*Origin
}

func (s *AddressSet) Add(addr netaddr.Addr, origin *Origin) {
	if s.m == nil {
		s.m = make(map[netaddr.Addr]*Origin)
	}
	s.m[addr] = origin
}

func (s *AddressSet) Remove(addr netaddr.Addr) bool {
	if _, ok := s.m[addr]; !ok {
		return false
	}
	delete(s.m, addr)
	return true
}

func (s *AddressSet) Origin(addr netaddr.Addr) (*Origin, bool) {
	o, ok := s.m[addr]
	return o, ok
}

func (s *AddressSet) Len() int {
	return len(s.m)
}

// All returns the entries ordered by address.
func (s *AddressSet) All() []OriginAddr {
	all := make([]OriginAddr, 0, len(s.m))
	for a, o := range s.m {
		all = append(all, OriginAddr{Addr: a, Origin: o})
	}
	slices.SortFunc(all, func(a, b OriginAddr) int {
		return a.Addr.Compare(b.Addr)
	})
	return all
}

// RemoveOrigin drops every address added by o and returns how many.
func (s *AddressSet) RemoveOrigin(o *Origin) int {
	n := 0
	for a, origin := range s.m {
		if origin == o {
			delete(s.m, a)
			n++
		}
	}
	return n
}
