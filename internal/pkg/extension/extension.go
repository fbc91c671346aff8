// Copyright (c) 2022 NTT Communications Corporation
//
// This software is released under the MIT License.
// see https://github.com/nttcom/l2info/blob/main/LICENSE

// Package extension holds the DLEP extensions: tables mapping TLVs of a
// received message to layer2 metric slots.
package extension

import (
	"errors"
	"fmt"

	"github.com/nttcom/l2info/internal/pkg/layer2"
	"github.com/nttcom/l2info/pkg/packet/dlep"
)

type NetworkMapping struct {
	Index   layer2.NetworkIndex
	TLV     dlep.TLVType
	Decoder Decoder
}

type NeighborMapping struct {
	Index   layer2.NeighborIndex
	TLV     dlep.TLVType
	Decoder Decoder
}

type Extension struct {
	ID               dlep.ExtensionID
	Name             string
	NetworkMappings  []NetworkMapping
	NeighborMappings []NeighborMapping
}

// MappingError reports the first mapping of an extension that failed.
type MappingError struct {
	Extension string
	Position  int // 1-based position in the mapping table
	TLV       dlep.TLVType
	Err       error
}

func (e *MappingError) Error() string {
	return fmt.Sprintf("extension %s: mapping %d (%s): %v", e.Extension, e.Position, e.TLV, e.Err)
}

func (e *MappingError) Unwrap() error {
	return e.Err
}

// Index is the negated 1-based position of the failing mapping.
func (e *MappingError) Index() int {
	return -e.Position
}

// MappingIndex returns the failure index carried by err, or 0.
func MappingIndex(err error) int {
	var me *MappingError
	if errors.As(err, &me) {
		return me.Index()
	}
	return 0
}

// decode runs one mapping. Absent TLVs are not an error and yield an unset value.
func decode(vs *dlep.ValueStore, t dlep.TLVType, d Decoder) (layer2.Value, error) {
	if _, ok := vs.Get(t); !ok {
		return layer2.Value{}, nil
	}
	return d.Decode(vs, t, nil)
}

// ApplyNetwork writes the network mappings found in vs into net. It stops at
// the first malformed TLV; slots written before stay written.
func (ext *Extension) ApplyNetwork(vs *dlep.ValueStore, net *layer2.Network, origin *layer2.Origin, precedence layer2.Precedence) error {
	for i, m := range ext.NetworkMappings {
		v, err := decode(vs, m.TLV, m.Decoder)
		if err != nil {
			return &MappingError{Extension: ext.Name, Position: i + 1, TLV: m.TLV, Err: err}
		}
		if v.IsSet() {
			net.Set(m.Index, origin, precedence, v)
		}
	}
	return nil
}

// ApplyNeighborDefaults writes the neighbor mappings into the neighbor
// defaults of net.
func (ext *Extension) ApplyNeighborDefaults(vs *dlep.ValueStore, net *layer2.Network, origin *layer2.Origin, precedence layer2.Precedence) error {
	return ext.applyNeighbor(vs, net.NeighborDefaults[:], origin, precedence)
}

// ApplyNeighbor writes the neighbor mappings into nb.
func (ext *Extension) ApplyNeighbor(vs *dlep.ValueStore, nb *layer2.Neighbor, origin *layer2.Origin, precedence layer2.Precedence) error {
	return ext.applyNeighbor(vs, nb.Data[:], origin, precedence)
}

func (ext *Extension) applyNeighbor(vs *dlep.ValueStore, data []layer2.Data, origin *layer2.Origin, precedence layer2.Precedence) error {
	for i, m := range ext.NeighborMappings {
		v, err := decode(vs, m.TLV, m.Decoder)
		if err != nil {
			return &MappingError{Extension: ext.Name, Position: i + 1, TLV: m.TLV, Err: err}
		}
		if v.IsSet() {
			data[m.Index].Set(origin, precedence, v)
		}
	}
	return nil
}

// WriteNetwork appends a TLV for every network mapping whose slot has a value.
func (ext *Extension) WriteNetwork(w *dlep.Writer, net *layer2.Network) error {
	for _, m := range ext.NetworkMappings {
		if v, _, ok := net.Get(m.Index); ok {
			if err := m.Decoder.Encode(w, m.TLV, v); err != nil {
				return err
			}
		}
	}
	return nil
}

// WriteNeighbor appends a TLV for every neighbor mapping whose slot has a value.
func (ext *Extension) WriteNeighbor(w *dlep.Writer, data []layer2.Data) error {
	for _, m := range ext.NeighborMappings {
		if v, _, ok := data[m.Index].Get(); ok {
			if err := m.Decoder.Encode(w, m.TLV, v); err != nil {
				return err
			}
		}
	}
	return nil
}
