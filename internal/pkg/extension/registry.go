// Copyright (c) 2022 NTT Communications Corporation
//
// This software is released under the MIT License.
// see https://github.com/nttcom/l2info/blob/main/LICENSE

package extension

import (
	"slices"

	"github.com/nttcom/l2info/internal/pkg/layer2"
	"github.com/nttcom/l2info/pkg/packet/dlep"
)

// Base holds the RFC8175 data items every session supports.
func Base() *Extension {
	return &Extension{
		ID:   dlep.ExtensionBase,
		Name: "base",
		NetworkMappings: []NetworkMapping{
			{Index: layer2.NetworkMTU, TLV: dlep.TLVMTU, Decoder: UnsignedDecoder{Width: 2}},
		},
		NeighborMappings: []NeighborMapping{
			{Index: layer2.NeighborRxMaxBitrate, TLV: dlep.TLVMDRR, Decoder: UnsignedDecoder{Width: 8}},
			{Index: layer2.NeighborTxMaxBitrate, TLV: dlep.TLVMDRT, Decoder: UnsignedDecoder{Width: 8}},
			{Index: layer2.NeighborRxBitrate, TLV: dlep.TLVCDRR, Decoder: UnsignedDecoder{Width: 8}},
			{Index: layer2.NeighborTxBitrate, TLV: dlep.TLVCDRT, Decoder: UnsignedDecoder{Width: 8}},
			{Index: layer2.NeighborLatency, TLV: dlep.TLVLatency, Decoder: UnsignedDecoder{Width: 8}},
			{Index: layer2.NeighborResources, TLV: dlep.TLVResources, Decoder: UnsignedDecoder{Width: 1}},
			{Index: layer2.NeighborRxRLQ, TLV: dlep.TLVRLQR, Decoder: UnsignedDecoder{Width: 1}},
			{Index: layer2.NeighborTxRLQ, TLV: dlep.TLVRLQT, Decoder: UnsignedDecoder{Width: 1}},
		},
	}
}

// L1Statistics carries radio channel data.
func L1Statistics() *Extension {
	return &Extension{
		ID:   dlep.ExtensionL1Statistics,
		Name: "l1stats",
		NetworkMappings: []NetworkMapping{
			{Index: layer2.NetworkFrequency1, TLV: dlep.TLVFrequency, Decoder: UnsignedDecoder{Width: 8}},
			{Index: layer2.NetworkBandwidth1, TLV: dlep.TLVBandwidth, Decoder: UnsignedDecoder{Width: 8}},
			{Index: layer2.NetworkNoise, TLV: dlep.TLVNoise, Decoder: IntegerDecoder{Width: 8}},
			{Index: layer2.NetworkChannelActive, TLV: dlep.TLVChannelActive, Decoder: UnsignedDecoder{Width: 8}},
			{Index: layer2.NetworkChannelBusy, TLV: dlep.TLVChannelBusy, Decoder: UnsignedDecoder{Width: 8}},
			{Index: layer2.NetworkChannelRx, TLV: dlep.TLVChannelRx, Decoder: UnsignedDecoder{Width: 8}},
			{Index: layer2.NetworkChannelTx, TLV: dlep.TLVChannelTx, Decoder: UnsignedDecoder{Width: 8}},
		},
		NeighborMappings: []NeighborMapping{
			{Index: layer2.NeighborRxSignal, TLV: dlep.TLVSignalRx, Decoder: IntegerDecoder{Width: 8}},
			{Index: layer2.NeighborTxSignal, TLV: dlep.TLVSignalTx, Decoder: IntegerDecoder{Width: 8}},
		},
	}
}

// L2Statistics carries frame and byte counters.
func L2Statistics() *Extension {
	return &Extension{
		ID:   dlep.ExtensionL2Statistics,
		Name: "l2stats",
		NeighborMappings: []NeighborMapping{
			{Index: layer2.NeighborRxFrames, TLV: dlep.TLVFramesR, Decoder: UnsignedDecoder{Width: 8}},
			{Index: layer2.NeighborTxFrames, TLV: dlep.TLVFramesT, Decoder: UnsignedDecoder{Width: 8}},
			{Index: layer2.NeighborRxBytes, TLV: dlep.TLVBytesR, Decoder: UnsignedDecoder{Width: 8}},
			{Index: layer2.NeighborTxBytes, TLV: dlep.TLVBytesT, Decoder: UnsignedDecoder{Width: 8}},
			{Index: layer2.NeighborTxRetries, TLV: dlep.TLVFramesRetries, Decoder: UnsignedDecoder{Width: 8}},
			{Index: layer2.NeighborTxFailed, TLV: dlep.TLVFramesFailed, Decoder: UnsignedDecoder{Width: 8}},
			{Index: layer2.NeighborTxThroughput, TLV: dlep.TLVThroughputT, Decoder: UnsignedDecoder{Width: 8}},
		},
	}
}

// Registry holds the known extensions by id.
type Registry struct {
	exts map[dlep.ExtensionID]*Extension
}

func NewRegistry(exts ...*Extension) *Registry {
	r := &Registry{exts: make(map[dlep.ExtensionID]*Extension)}
	for _, ext := range exts {
		r.exts[ext.ID] = ext
	}
	return r
}

// DefaultRegistry contains base, l1stats and l2stats.
func DefaultRegistry() *Registry {
	return NewRegistry(Base(), L1Statistics(), L2Statistics())
}

func (r *Registry) Get(id dlep.ExtensionID) (*Extension, bool) {
	ext, ok := r.exts[id]
	return ext, ok
}

// Optional returns the ids of all extensions except base, sorted.
func (r *Registry) Optional() []dlep.ExtensionID {
	ids := make([]dlep.ExtensionID, 0, len(r.exts))
	for id := range r.exts {
		if id != dlep.ExtensionBase {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}

// Select returns base followed by the known extensions among ids, sorted by
// id. Unknown ids are ignored.
func (r *Registry) Select(ids []dlep.ExtensionID) []*Extension {
	var active []*Extension
	if base, ok := r.exts[dlep.ExtensionBase]; ok {
		active = append(active, base)
	}
	sorted := slices.Clone(ids)
	slices.Sort(sorted)
	for _, id := range slices.Compact(sorted) {
		if id == dlep.ExtensionBase {
			continue
		}
		if ext, ok := r.exts[id]; ok {
			active = append(active, ext)
		}
	}
	return active
}
