// Copyright (c) 2022 NTT Communications Corporation
//
// This software is released under the MIT License.
// see https://github.com/nttcom/l2info/blob/main/LICENSE

package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nttcom/l2info/internal/pkg/layer2"
	"github.com/nttcom/l2info/internal/pkg/netaddr"
)

// ImportError names the JSON object that stopped an import.
type ImportError struct {
	Path string
	Err  error
}

func (e *ImportError) Error() string {
	if e.Path == "" {
		return "import: " + e.Err.Error()
	}
	return fmt.Sprintf("import %s: %v", e.Path, e.Err)
}

func (e *ImportError) Unwrap() error {
	return e.Err
}

var (
	ErrMissingField = errors.New("missing field")
	ErrUnknownKey   = errors.New("unknown metric key")
	ErrNoValue      = errors.New("no usable value")
)

// The *In types keep nested arrays raw so every element is decoded and
// applied on its own.
type networkIn struct {
	Name             *string           `json:"name"`
	Ident            *string           `json:"ident"`
	Type             *string           `json:"type"`
	DLEP             *bool             `json:"dlep"`
	LastSeen         int64             `json:"last_seen"`
	LocalPeers       []json.RawMessage `json:"local_peers"`
	Data             []json.RawMessage `json:"data"`
	NeighborDefaults []json.RawMessage `json:"neighbor_defaults"`
	Neighbors        []json.RawMessage `json:"neighbors"`
}

type neighborIn struct {
	Key *struct {
		Addr   *string `json:"addr"`
		LinkID string  `json:"link_id"`
	} `json:"key"`
	LLIPv4    string            `json:"ll_ipv4"`
	LLIPv6    string            `json:"ll_ipv6"`
	LastSeen  int64             `json:"last_seen"`
	ProxyAddr []json.RawMessage `json:"proxy_addr"`
	RemoteIP  []json.RawMessage `json:"remote_ip"`
	Data      []json.RawMessage `json:"data"`
}

type addressIn struct {
	Addr   *string `json:"addr"`
	IP     *string `json:"ip"`
	Origin *string `json:"origin"`
}

type metricIn struct {
	Key       *string `json:"key"`
	Value     *string `json:"value"`
	IntValue  *int64  `json:"intvalue"`
	BoolValue *bool   `json:"boolvalue"`
	Origin    *string `json:"origin"`
}

// Import applies a snapshot to the database. Objects are applied in order;
// the first failing object stops the import and everything applied before
// it stays in place.
func Import(db *layer2.DB, data []byte) error {
	return db.Update(func(tx *layer2.Tx) error {
		return Apply(tx, data)
	})
}

// Apply is Import inside a running write transaction.
func Apply(tx *layer2.Tx, data []byte) error {
	var root map[string]json.RawMessage
	if err := json.Unmarshal(data, &root); err != nil {
		return &ImportError{Err: err}
	}
	raw, ok := root["interfaces"]
	if !ok {
		return &ImportError{Path: "interfaces", Err: ErrMissingField}
	}
	var nets []json.RawMessage
	if err := json.Unmarshal(raw, &nets); err != nil {
		return &ImportError{Path: "interfaces", Err: err}
	}
	for i, n := range nets {
		if err := importNetwork(tx, n, fmt.Sprintf("interfaces[%d]", i)); err != nil {
			return err
		}
	}
	return nil
}

func origin(tx *layer2.Tx, name *string) (*layer2.Origin, error) {
	if name == nil || *name == "" {
		return nil, fmt.Errorf("%w: origin", ErrMissingField)
	}
	return tx.Origins().Register(*name, layer2.PrecedenceReliable), nil
}

func lastSeen(now time.Time, secondsAgo int64) time.Time {
	return now.Add(-time.Duration(secondsAgo) * time.Second)
}

func importNetwork(tx *layer2.Tx, raw json.RawMessage, path string) error {
	var in networkIn
	if err := json.Unmarshal(raw, &in); err != nil {
		return &ImportError{Path: path, Err: err}
	}
	if in.Name == nil || *in.Name == "" {
		return &ImportError{Path: path, Err: fmt.Errorf("%w: name", ErrMissingField)}
	}

	n := tx.AddNetwork(*in.Name)
	if in.Ident != nil {
		n.Ident = *in.Ident
	}
	if in.Type != nil {
		n.Type = layer2.ParseLinkType(*in.Type)
	}
	if in.DLEP != nil {
		n.DLEP = *in.DLEP
	}
	if in.LastSeen != 0 {
		n.LastSeen = lastSeen(tx.Now(), in.LastSeen)
	}

	for i, p := range in.LocalPeers {
		if err := importAddress(tx, &n.LocalPeers, p, fmt.Sprintf("%s.local_peers[%d]", path, i)); err != nil {
			return err
		}
	}
	for i, m := range in.Data {
		p := fmt.Sprintf("%s.data[%d]", path, i)
		err := importMetric(tx, m, p, func(key string) (*layer2.Data, layer2.Metadata, bool) {
			idx, ok := layer2.NetworkIndexByKey(key)
			if !ok {
				return nil, layer2.Metadata{}, false
			}
			return &n.Data[idx], idx.Metadata(), true
		})
		if err != nil {
			return err
		}
	}
	for i, m := range in.NeighborDefaults {
		err := importMetric(tx, m, fmt.Sprintf("%s.neighbor_defaults[%d]", path, i), neighborSlot(n.NeighborDefaults[:]))
		if err != nil {
			return err
		}
	}
	for i, nb := range in.Neighbors {
		if err := importNeighbor(tx, n, nb, fmt.Sprintf("%s.neighbors[%d]", path, i)); err != nil {
			return err
		}
	}
	return nil
}

func importNeighbor(tx *layer2.Tx, n *layer2.Network, raw json.RawMessage, path string) error {
	var in neighborIn
	if err := json.Unmarshal(raw, &in); err != nil {
		return &ImportError{Path: path, Err: err}
	}
	if in.Key == nil || in.Key.Addr == nil {
		return &ImportError{Path: path, Err: fmt.Errorf("%w: key.addr", ErrMissingField)}
	}
	key, err := layer2.ParseNeighborKey(*in.Key.Addr, in.Key.LinkID)
	if err != nil {
		return &ImportError{Path: path + ".key", Err: err}
	}

	nb := n.AddNeighbor(key)
	nextHops := []struct {
		field  string
		text   string
		family netaddr.Family
	}{
		{"ll_ipv4", in.LLIPv4, netaddr.FamilyIPv4},
		{"ll_ipv6", in.LLIPv6, netaddr.FamilyIPv6},
	}
	for _, nh := range nextHops {
		if nh.text == "" {
			continue
		}
		addr, err := netaddr.Parse(nh.text)
		if err == nil && addr.Family() != nh.family {
			err = fmt.Errorf("%s is no %s address", addr, nh.family)
		}
		if err == nil {
			err = nb.SetNextHop(addr)
		}
		if err != nil {
			return &ImportError{Path: path + "." + nh.field, Err: err}
		}
	}
	if in.LastSeen != 0 {
		nb.LastSeen = lastSeen(tx.Now(), in.LastSeen)
	}
	for i, a := range in.ProxyAddr {
		if err := importAddress(tx, &nb.Destinations, a, fmt.Sprintf("%s.proxy_addr[%d]", path, i)); err != nil {
			return err
		}
	}
	for i, a := range in.RemoteIP {
		if err := importAddress(tx, &nb.RemoteIPs, a, fmt.Sprintf("%s.remote_ip[%d]", path, i)); err != nil {
			return err
		}
	}
	for i, m := range in.Data {
		if err := importMetric(tx, m, fmt.Sprintf("%s.data[%d]", path, i), neighborSlot(nb.Data[:])); err != nil {
			return err
		}
	}
	return nil
}

// importAddress reads {addr|ip, origin}; local peers use "ip".
func importAddress(tx *layer2.Tx, set *layer2.AddressSet, raw json.RawMessage, path string) error {
	var in addressIn
	if err := json.Unmarshal(raw, &in); err != nil {
		return &ImportError{Path: path, Err: err}
	}
	text := in.Addr
	if text == nil {
		text = in.IP
	}
	if text == nil {
		return &ImportError{Path: path, Err: fmt.Errorf("%w: addr", ErrMissingField)}
	}
	addr, err := netaddr.Parse(*text)
	if err != nil {
		return &ImportError{Path: path, Err: err}
	}
	o, err := origin(tx, in.Origin)
	if err != nil {
		return &ImportError{Path: path, Err: err}
	}
	set.Add(addr, o)
	return nil
}

type slotLookup func(key string) (*layer2.Data, layer2.Metadata, bool)

func neighborSlot(data []layer2.Data) slotLookup {
	return func(key string) (*layer2.Data, layer2.Metadata, bool) {
		idx, ok := layer2.NeighborIndexByKey(key)
		if !ok {
			return nil, layer2.Metadata{}, false
		}
		return &data[idx], idx.Metadata(), true
	}
}

// importMetric prefers the rendered value string over intvalue/boolvalue.
func importMetric(tx *layer2.Tx, raw json.RawMessage, path string, lookup slotLookup) error {
	var in metricIn
	if err := json.Unmarshal(raw, &in); err != nil {
		return &ImportError{Path: path, Err: err}
	}
	if in.Key == nil {
		return &ImportError{Path: path, Err: fmt.Errorf("%w: key", ErrMissingField)}
	}
	d, meta, ok := lookup(*in.Key)
	if !ok {
		return &ImportError{Path: path, Err: fmt.Errorf("%w %q", ErrUnknownKey, *in.Key)}
	}
	o, err := origin(tx, in.Origin)
	if err != nil {
		return &ImportError{Path: path, Err: err}
	}

	var v layer2.Value
	switch {
	case in.Value != nil && *in.Value != "":
		if v, err = meta.Parse(*in.Value); err != nil {
			return &ImportError{Path: path, Err: err}
		}
	case meta.Type == layer2.DataInteger && in.IntValue != nil:
		v = layer2.IntegerValue(*in.IntValue)
	case meta.Type == layer2.DataBoolean && in.BoolValue != nil:
		v = layer2.BooleanValue(*in.BoolValue)
	default:
		return &ImportError{Path: path, Err: ErrNoValue}
	}
	d.Set(o, o.Precedence, v)
	return nil
}
