// Copyright (c) 2022 NTT Communications Corporation
//
// This software is released under the MIT License.
// see https://github.com/nttcom/l2info/blob/main/LICENSE

package layer2

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

var ErrInvalidValue = errors.New("invalid layer2 value")

// Metadata describes how a metric slot is rendered and parsed. Integer
// values are stored multiplied by Scaling, a power of 10.
type Metadata struct {
	Key     string
	Unit    string
	Scaling uint64
	Type    DataType
}

// exponent returns log10(Scaling).
func (m Metadata) exponent() int32 {
	var exp int32
	for s := m.Scaling; s >= 10; s /= 10 {
		exp++
	}
	return exp
}

// Render formats v as "<scaled decimal>[ <unit>]".
func (m Metadata) Render(v Value) string {
	var s string
	switch v.Type() {
	case DataInteger:
		i, _ := v.Int64()
		s = decimal.New(i, -m.exponent()).String()
	case DataBoolean:
		b, _ := v.Bool()
		return strconv.FormatBool(b)
	default:
		return ""
	}
	if m.Unit == "" {
		return s
	}
	return s + " " + m.Unit
}

// Parse is the inverse of Render. The unit suffix is optional.
func (m Metadata) Parse(s string) (Value, error) {
	s = strings.TrimSpace(s)
	switch m.Type {
	case DataBoolean:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return Value{}, fmt.Errorf("%w: %s: %q is no boolean", ErrInvalidValue, m.Key, s)
		}
		return BooleanValue(b), nil
	case DataInteger:
		if m.Unit != "" {
			s = strings.TrimSpace(strings.TrimSuffix(s, m.Unit))
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return Value{}, fmt.Errorf("%w: %s: %q is no number", ErrInvalidValue, m.Key, s)
		}
		d = d.Shift(m.exponent())
		if !d.IsInteger() || !d.BigInt().IsInt64() {
			return Value{}, fmt.Errorf("%w: %s: %q does not fit the slot", ErrInvalidValue, m.Key, s)
		}
		return IntegerValue(d.IntPart()), nil
	default:
		return Value{}, fmt.Errorf("%w: %s has no value type", ErrInvalidValue, m.Key)
	}
}

type NetworkIndex int

// Network metric slots
const (
	NetworkFrequency1 NetworkIndex = iota
	NetworkFrequency2
	NetworkBandwidth1
	NetworkBandwidth2
	NetworkNoise
	NetworkChannelActive
	NetworkChannelBusy
	NetworkChannelRx
	NetworkChannelTx
	NetworkMTU
	NetworkMCSByProbing
	NetworkRxOnlyUnicast
	NetworkTxOnlyUnicast
	NetworkRadioMultihop
	NetworkBandUpDown

	NetworkIndexCount
)

var networkMetadata = [NetworkIndexCount]Metadata{
	NetworkFrequency1:    {Key: "frequency1", Unit: "Hz", Scaling: 1, Type: DataInteger},
	NetworkFrequency2:    {Key: "frequency2", Unit: "Hz", Scaling: 1, Type: DataInteger},
	NetworkBandwidth1:    {Key: "bandwidth1", Unit: "Hz", Scaling: 1, Type: DataInteger},
	NetworkBandwidth2:    {Key: "bandwidth2", Unit: "Hz", Scaling: 1, Type: DataInteger},
	NetworkNoise:         {Key: "noise", Unit: "dBm", Scaling: 1000, Type: DataInteger},
	NetworkChannelActive: {Key: "ch_active", Unit: "s", Scaling: 1000000000, Type: DataInteger},
	NetworkChannelBusy:   {Key: "ch_busy", Unit: "s", Scaling: 1000000000, Type: DataInteger},
	NetworkChannelRx:     {Key: "ch_rx", Unit: "s", Scaling: 1000000000, Type: DataInteger},
	NetworkChannelTx:     {Key: "ch_tx", Unit: "s", Scaling: 1000000000, Type: DataInteger},
	NetworkMTU:           {Key: "mtu", Unit: "byte", Scaling: 1, Type: DataInteger},
	NetworkMCSByProbing:  {Key: "mcs_by_probing", Type: DataBoolean},
	NetworkRxOnlyUnicast: {Key: "rx_only_unicast", Type: DataBoolean},
	NetworkTxOnlyUnicast: {Key: "tx_only_unicast", Type: DataBoolean},
	NetworkRadioMultihop: {Key: "radio_multihop", Type: DataBoolean},
	NetworkBandUpDown:    {Key: "band_updown", Type: DataBoolean},
}

func (i NetworkIndex) Metadata() Metadata {
	return networkMetadata[i]
}

func (i NetworkIndex) String() string {
	if i < 0 || i >= NetworkIndexCount {
		return fmt.Sprintf("Unknown NetworkIndex (%d)", int(i))
	}
	return networkMetadata[i].Key
}

// NetworkIndexByKey looks up a network metric slot by its metadata key.
func NetworkIndexByKey(key string) (NetworkIndex, bool) {
	for i := range NetworkIndexCount {
		if networkMetadata[i].Key == key {
			return i, true
		}
	}
	return 0, false
}

type NeighborIndex int

// Neighbor metric slots
const (
	NeighborTxSignal NeighborIndex = iota
	NeighborRxSignal
	NeighborTxSNR
	NeighborRxSNR
	NeighborTxBitrate
	NeighborRxBitrate
	NeighborTxMaxBitrate
	NeighborRxMaxBitrate
	NeighborTxBytes
	NeighborRxBytes
	NeighborTxFrames
	NeighborRxFrames
	NeighborTxThroughput
	NeighborTxRetries
	NeighborTxFailed
	NeighborLatency
	NeighborResources
	NeighborTxRLQ
	NeighborRxRLQ

	NeighborIndexCount
)

var neighborMetadata = [NeighborIndexCount]Metadata{
	NeighborTxSignal:     {Key: "tx_signal", Unit: "dBm", Scaling: 1000, Type: DataInteger},
	NeighborRxSignal:     {Key: "rx_signal", Unit: "dBm", Scaling: 1000, Type: DataInteger},
	NeighborTxSNR:        {Key: "tx_snr", Unit: "dB", Scaling: 1000, Type: DataInteger},
	NeighborRxSNR:        {Key: "rx_snr", Unit: "dB", Scaling: 1000, Type: DataInteger},
	NeighborTxBitrate:    {Key: "tx_bitrate", Unit: "bit/s", Scaling: 1, Type: DataInteger},
	NeighborRxBitrate:    {Key: "rx_bitrate", Unit: "bit/s", Scaling: 1, Type: DataInteger},
	NeighborTxMaxBitrate: {Key: "tx_max_bitrate", Unit: "bit/s", Scaling: 1, Type: DataInteger},
	NeighborRxMaxBitrate: {Key: "rx_max_bitrate", Unit: "bit/s", Scaling: 1, Type: DataInteger},
	NeighborTxBytes:      {Key: "tx_bytes", Unit: "byte", Scaling: 1, Type: DataInteger},
	NeighborRxBytes:      {Key: "rx_bytes", Unit: "byte", Scaling: 1, Type: DataInteger},
	NeighborTxFrames:     {Key: "tx_frames", Scaling: 1, Type: DataInteger},
	NeighborRxFrames:     {Key: "rx_frames", Scaling: 1, Type: DataInteger},
	NeighborTxThroughput: {Key: "tx_throughput", Unit: "bit/s", Scaling: 1, Type: DataInteger},
	NeighborTxRetries:    {Key: "tx_retries", Scaling: 1, Type: DataInteger},
	NeighborTxFailed:     {Key: "tx_failed", Scaling: 1, Type: DataInteger},
	NeighborLatency:      {Key: "latency", Unit: "s", Scaling: 1000000, Type: DataInteger},
	NeighborResources:    {Key: "resources", Unit: "%", Scaling: 1, Type: DataInteger},
	NeighborTxRLQ:        {Key: "tx_rlq", Scaling: 1, Type: DataInteger},
	NeighborRxRLQ:        {Key: "rx_rlq", Scaling: 1, Type: DataInteger},
}

func (i NeighborIndex) Metadata() Metadata {
	return neighborMetadata[i]
}

func (i NeighborIndex) String() string {
	if i < 0 || i >= NeighborIndexCount {
		return fmt.Sprintf("Unknown NeighborIndex (%d)", int(i))
	}
	return neighborMetadata[i].Key
}

// NeighborIndexByKey looks up a neighbor metric slot by its metadata key.
func NeighborIndexByKey(key string) (NeighborIndex, bool) {
	for i := range NeighborIndexCount {
		if neighborMetadata[i].Key == key {
			return i, true
		}
	}
	return 0, false
}

type LinkType uint8

const (
	LinkUndefined LinkType = iota
	LinkWireless
	LinkEthernet
	LinkTunnel
)

var linkTypeNames = map[LinkType]string{
	LinkUndefined: "undefined",
	LinkWireless:  "wireless",
	LinkEthernet:  "ethernet",
	LinkTunnel:    "tunnel",
}

func (t LinkType) String() string {
	if name, ok := linkTypeNames[t]; ok {
		return name
	}
	return "undefined"
}

// ParseLinkType maps unknown names to LinkUndefined.
func ParseLinkType(s string) LinkType {
	for t, name := range linkTypeNames {
		if name == s {
			return t
		}
	}
	return LinkUndefined
}
