// Copyright (c) 2022 NTT Communications Corporation
//
// This software is released under the MIT License.
// see https://github.com/nttcom/l2info/blob/main/LICENSE

package layer2

import (
	"slices"
	"time"
)

// Network is the layer2 record of one interface.
type Network struct {
	Name     string
	Ident    string
	Type     LinkType
	DLEP     bool // interface is controlled by a DLEP session
	LastSeen time.Time

	Data             [NetworkIndexCount]Data
	NeighborDefaults [NeighborIndexCount]Data
	LocalPeers       AddressSet

	neighbors map[NeighborKey]*Neighbor
	now       func() time.Time
}

func newNetwork(name string, now func() time.Time) *Network {
	return &Network{
		Name:      name,
		LastSeen:  now(),
		neighbors: make(map[NeighborKey]*Neighbor),
		now:       now,
	}
}

func (n *Network) Set(idx NetworkIndex, origin *Origin, precedence Precedence, v Value) bool {
	return n.Data[idx].Set(origin, precedence, v)
}

func (n *Network) Get(idx NetworkIndex) (Value, *Origin, bool) {
	return n.Data[idx].Get()
}

func (n *Network) SetNeighborDefault(idx NeighborIndex, origin *Origin, precedence Precedence, v Value) bool {
	return n.NeighborDefaults[idx].Set(origin, precedence, v)
}

// NeighborValue returns the neighbor's own value, falling back to the
// network's neighbor default.
func (n *Network) NeighborValue(nb *Neighbor, idx NeighborIndex) (Value, *Origin, bool) {
	if v, o, ok := nb.Get(idx); ok {
		return v, o, true
	}
	return n.NeighborDefaults[idx].Get()
}

func (n *Network) Neighbor(key NeighborKey) (*Neighbor, bool) {
	nb, ok := n.neighbors[key]
	return nb, ok
}

// AddNeighbor returns the neighbor with key, creating it if necessary.
func (n *Network) AddNeighbor(key NeighborKey) *Neighbor {
	if nb, ok := n.neighbors[key]; ok {
		return nb
	}
	nb := &Neighbor{Key: key, LastSeen: n.now()}
	n.neighbors[key] = nb
	return nb
}

func (n *Network) RemoveNeighbor(key NeighborKey) bool {
	if _, ok := n.neighbors[key]; !ok {
		return false
	}
	delete(n.neighbors, key)
	return true
}

// RemoveNeighborOrigin drops the data of o from the neighbor and removes the
// neighbor once nothing is left. It reports whether the neighbor existed.
func (n *Network) RemoveNeighborOrigin(key NeighborKey, o *Origin) bool {
	nb, ok := n.neighbors[key]
	if !ok {
		return false
	}
	if nb.removeOrigin(o) {
		delete(n.neighbors, key)
	}
	return true
}

// Neighbors returns all neighbors ordered by key.
func (n *Network) Neighbors() []*Neighbor {
	all := make([]*Neighbor, 0, len(n.neighbors))
	for _, nb := range n.neighbors {
		all = append(all, nb)
	}
	slices.SortFunc(all, func(a, b *Neighbor) int {
		return a.Key.Compare(b.Key)
	})
	return all
}

func (n *Network) NeighborCount() int {
	return len(n.neighbors)
}

// removeOrigin clears everything o wrote into the network and its neighbors.
// Neighbors left without data are removed. It reports whether the network
// itself is empty afterwards.
func (n *Network) removeOrigin(o *Origin) bool {
	for i := range n.Data {
		n.Data[i].RemoveOrigin(o)
	}
	for i := range n.NeighborDefaults {
		n.NeighborDefaults[i].RemoveOrigin(o)
	}
	n.LocalPeers.RemoveOrigin(o)
	for key, nb := range n.neighbors {
		if nb.removeOrigin(o) {
			delete(n.neighbors, key)
		}
	}
	return n.isEmpty()
}

func (n *Network) isEmpty() bool {
	if len(n.neighbors) > 0 || n.LocalPeers.Len() > 0 {
		return false
	}
	for i := range n.Data {
		if n.Data[i].HasValue() {
			return false
		}
	}
	for i := range n.NeighborDefaults {
		if n.NeighborDefaults[i].HasValue() {
			return false
		}
	}
	return true
}
