// Copyright (c) 2022 NTT Communications Corporation
//
// This software is released under the MIT License.
// see https://github.com/nttcom/l2info/blob/main/LICENSE

// Package snapshot converts the layer2 database to and from its JSON text
// form.
package snapshot

import (
	"encoding/json"
	"io"
	"time"

	"github.com/nttcom/l2info/internal/pkg/layer2"
	"github.com/nttcom/l2info/internal/pkg/netaddr"
)

type Snapshot struct {
	Interfaces []Network `json:"interfaces"`
}

type Network struct {
	Name             string     `json:"name"`
	Ident            string     `json:"ident"`
	Type             string     `json:"type"`
	DLEP             bool       `json:"dlep"`
	LastSeen         int64      `json:"last_seen"` // seconds before export
	LocalPeers       []Peer     `json:"local_peers"`
	Data             []Metric   `json:"data"`
	NeighborDefaults []Metric   `json:"neighbor_defaults"`
	Neighbors        []Neighbor `json:"neighbors"`
}

type Peer struct {
	IP     string `json:"ip"`
	Origin string `json:"origin"`
}

type NeighborKey struct {
	Addr   string `json:"addr"`
	LinkID string `json:"link_id"`
}

type Neighbor struct {
	Key       NeighborKey `json:"key"`
	LLIPv4    string      `json:"ll_ipv4,omitempty"`
	LLIPv6    string      `json:"ll_ipv6,omitempty"`
	LastSeen  int64       `json:"last_seen"`
	ProxyAddr []Address   `json:"proxy_addr"`
	RemoteIP  []Address   `json:"remote_ip"`
	Data      []Metric    `json:"data"`
}

type Address struct {
	Addr   string `json:"addr"`
	Origin string `json:"origin"`
}

// Metric is one present metric slot. IntValue, Unit and Scaling are set for
// integer slots, BoolValue for boolean slots.
type Metric struct {
	Type      string  `json:"type"`
	Key       string  `json:"key"`
	Value     string  `json:"value"`
	IntValue  *int64  `json:"intvalue,omitempty"`
	BoolValue *bool   `json:"boolvalue,omitempty"`
	Origin    string  `json:"origin"`
	Unit      *string `json:"unit,omitempty"`
	Scaling   *uint64 `json:"scaling,omitempty"`
}

// Export walks the database in key order.
func Export(tx *layer2.Tx) Snapshot {
	now := tx.Now()
	s := Snapshot{Interfaces: make([]Network, 0)}
	for _, n := range tx.Networks() {
		s.Interfaces = append(s.Interfaces, exportNetwork(n, now))
	}
	return s
}

// Write encodes the database as JSON to w.
func Write(db *layer2.DB, w io.Writer) error {
	var s Snapshot
	_ = db.View(func(tx *layer2.Tx) error {
		s = Export(tx)
		return nil
	})
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}

func secondsAgo(now, t time.Time) int64 {
	return int64(now.Sub(t) / time.Second)
}

func exportNetwork(n *layer2.Network, now time.Time) Network {
	out := Network{
		Name:             n.Name,
		Ident:            n.Ident,
		Type:             n.Type.String(),
		DLEP:             n.DLEP,
		LastSeen:         secondsAgo(now, n.LastSeen),
		LocalPeers:       make([]Peer, 0, n.LocalPeers.Len()),
		Data:             make([]Metric, 0),
		NeighborDefaults: make([]Metric, 0),
		Neighbors:        make([]Neighbor, 0, n.NeighborCount()),
	}
	for _, p := range n.LocalPeers.All() {
		out.LocalPeers = append(out.LocalPeers, Peer{IP: p.Addr.String(), Origin: p.Origin.Name})
	}
	for i := range n.Data {
		if m, ok := exportMetric(&n.Data[i], layer2.NetworkIndex(i).Metadata()); ok {
			out.Data = append(out.Data, m)
		}
	}
	for i := range n.NeighborDefaults {
		if m, ok := exportMetric(&n.NeighborDefaults[i], layer2.NeighborIndex(i).Metadata()); ok {
			out.NeighborDefaults = append(out.NeighborDefaults, m)
		}
	}
	for _, nb := range n.Neighbors() {
		out.Neighbors = append(out.Neighbors, exportNeighbor(nb, now))
	}
	return out
}

func exportNeighbor(nb *layer2.Neighbor, now time.Time) Neighbor {
	out := Neighbor{
		Key:       NeighborKey{Addr: nb.Key.Addr.String(), LinkID: nb.Key.LinkIDHex()},
		LastSeen:  secondsAgo(now, nb.LastSeen),
		ProxyAddr: exportAddresses(&nb.Destinations),
		RemoteIP:  exportAddresses(&nb.RemoteIPs),
		Data:      make([]Metric, 0),
	}
	if a, ok := nb.NextHop(netaddr.FamilyIPv4); ok {
		out.LLIPv4 = a.String()
	}
	if a, ok := nb.NextHop(netaddr.FamilyIPv6); ok {
		out.LLIPv6 = a.String()
	}
	for i := range nb.Data {
		if m, ok := exportMetric(&nb.Data[i], layer2.NeighborIndex(i).Metadata()); ok {
			out.Data = append(out.Data, m)
		}
	}
	return out
}

func exportAddresses(s *layer2.AddressSet) []Address {
	out := make([]Address, 0, s.Len())
	for _, a := range s.All() {
		out = append(out, Address{Addr: a.Addr.String(), Origin: a.Origin.Name})
	}
	return out
}

func exportMetric(d *layer2.Data, meta layer2.Metadata) (Metric, bool) {
	v, origin, ok := d.Get()
	if !ok {
		return Metric{}, false
	}
	m := Metric{
		Type:   meta.Type.String(),
		Key:    meta.Key,
		Value:  meta.Render(v),
		Origin: origin.Name,
	}
	if i, ok := v.Int64(); ok {
		unit, scaling := meta.Unit, meta.Scaling
		m.IntValue, m.Unit, m.Scaling = &i, &unit, &scaling
	}
	if b, ok := v.Bool(); ok {
		m.BoolValue = &b
	}
	return m, true
}
