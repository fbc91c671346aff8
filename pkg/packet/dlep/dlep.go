// Copyright (c) 2022 NTT Communications Corporation
//
// This software is released under the MIT License.
// see https://github.com/nttcom/l2info/blob/main/LICENSE

package dlep

import (
	"errors"
	"fmt"
)

// Well-known DLEP TCP/UDP port, used when a connection point carries no port.
const DefaultPort uint16 = 854

// Header lengths
const (
	TLVHeaderLength     = 4 // type (2) + length (2)
	MessageHeaderLength = 4 // message type (2) + length (2)
	SignalPrefixLength  = 4 // "DLEP"
	SignalHeaderLength  = SignalPrefixLength + MessageHeaderLength
)

var SignalPrefix = [SignalPrefixLength]byte{'D', 'L', 'E', 'P'}

// Maximum link identifier length accepted in a Link Identifier TLV.
const MaxLinkIDLength = 16

var (
	// ErrTLVNotFound is returned when a requested TLV is not part of the message.
	ErrTLVNotFound = errors.New("tlv not found")
	// ErrTLVMalformed is returned when a TLV has an invalid length or content.
	ErrTLVMalformed = errors.New("tlv malformed")
)

type TLVType uint16

// DLEP data item types
const (
	TLVStatus              TLVType = 1
	TLVIPv4ConnectionPoint TLVType = 2
	TLVIPv6ConnectionPoint TLVType = 3
	TLVPeerType            TLVType = 4
	TLVHeartbeatInterval   TLVType = 5
	TLVExtensionsSupported TLVType = 6
	TLVMACAddress          TLVType = 7
	TLVIPv4Address         TLVType = 8
	TLVIPv6Address         TLVType = 9
	TLVIPv4AttachedSubnet  TLVType = 10
	TLVIPv6AttachedSubnet  TLVType = 11
	TLVMDRR                TLVType = 12
	TLVMDRT                TLVType = 13
	TLVCDRR                TLVType = 14
	TLVCDRT                TLVType = 15
	TLVLatency             TLVType = 16
	TLVResources           TLVType = 17
	TLVRLQR                TLVType = 18
	TLVRLQT                TLVType = 19
	TLVMTU                 TLVType = 20
	TLVLinkIDLength        TLVType = 24
	TLVLinkID              TLVType = 25
)

// Experimental data items of the layer1/layer2 statistics extensions
const (
	TLVFrequency     TLVType = 65408
	TLVBandwidth     TLVType = 65409
	TLVNoise         TLVType = 65410
	TLVChannelActive TLVType = 65411
	TLVChannelBusy   TLVType = 65412
	TLVChannelRx     TLVType = 65413
	TLVChannelTx     TLVType = 65414
	TLVSignalRx      TLVType = 65415
	TLVSignalTx      TLVType = 65416

	TLVFramesR       TLVType = 65420
	TLVFramesT       TLVType = 65421
	TLVBytesR        TLVType = 65422
	TLVBytesT        TLVType = 65423
	TLVFramesRetries TLVType = 65424
	TLVFramesFailed  TLVType = 65425
	TLVThroughputT   TLVType = 65426
)

var tlvDescriptions = map[TLVType]struct {
	Description string
	Reference   string
}{
	TLVStatus:              {"STATUS", "RFC8175"},
	TLVIPv4ConnectionPoint: {"IPV4-CONNECTION-POINT", "RFC8175"},
	TLVIPv6ConnectionPoint: {"IPV6-CONNECTION-POINT", "RFC8175"},
	TLVPeerType:            {"PEER-TYPE", "RFC8175"},
	TLVHeartbeatInterval:   {"HEARTBEAT-INTERVAL", "RFC8175"},
	TLVExtensionsSupported: {"EXTENSIONS-SUPPORTED", "RFC8175"},
	TLVMACAddress:          {"MAC-ADDRESS", "RFC8175"},
	TLVIPv4Address:         {"IPV4-ADDRESS", "RFC8175"},
	TLVIPv6Address:         {"IPV6-ADDRESS", "RFC8175"},
	TLVIPv4AttachedSubnet:  {"IPV4-ATTACHED-SUBNET", "RFC8175"},
	TLVIPv6AttachedSubnet:  {"IPV6-ATTACHED-SUBNET", "RFC8175"},
	TLVMDRR:                {"MAXIMUM-DATA-RATE-RECEIVE", "RFC8175"},
	TLVMDRT:                {"MAXIMUM-DATA-RATE-TRANSMIT", "RFC8175"},
	TLVCDRR:                {"CURRENT-DATA-RATE-RECEIVE", "RFC8175"},
	TLVCDRT:                {"CURRENT-DATA-RATE-TRANSMIT", "RFC8175"},
	TLVLatency:             {"LATENCY", "RFC8175"},
	TLVResources:           {"RESOURCES", "RFC8175"},
	TLVRLQR:                {"RELATIVE-LINK-QUALITY-RECEIVE", "RFC8175"},
	TLVRLQT:                {"RELATIVE-LINK-QUALITY-TRANSMIT", "RFC8175"},
	TLVMTU:                 {"MTU", "RFC8175"},
	TLVLinkIDLength:        {"LINK-IDENTIFIER-LENGTH", "RFC8703"},
	TLVLinkID:              {"LINK-IDENTIFIER", "RFC8703"},
	TLVFrequency:           {"FREQUENCY", "l1-statistics"},
	TLVBandwidth:           {"BANDWIDTH", "l1-statistics"},
	TLVNoise:               {"NOISE", "l1-statistics"},
	TLVChannelActive:       {"CHANNEL-ACTIVE", "l1-statistics"},
	TLVChannelBusy:         {"CHANNEL-BUSY", "l1-statistics"},
	TLVChannelRx:           {"CHANNEL-RX", "l1-statistics"},
	TLVChannelTx:           {"CHANNEL-TX", "l1-statistics"},
	TLVSignalRx:            {"SIGNAL-RX", "l1-statistics"},
	TLVSignalTx:            {"SIGNAL-TX", "l1-statistics"},
	TLVFramesR:             {"FRAMES-RECEIVE", "l2-statistics"},
	TLVFramesT:             {"FRAMES-TRANSMIT", "l2-statistics"},
	TLVBytesR:              {"BYTES-RECEIVE", "l2-statistics"},
	TLVBytesT:              {"BYTES-TRANSMIT", "l2-statistics"},
	TLVFramesRetries:       {"FRAMES-RETRIES", "l2-statistics"},
	TLVFramesFailed:        {"FRAMES-FAILED", "l2-statistics"},
	TLVThroughputT:         {"THROUGHPUT-TRANSMIT", "l2-statistics"},
}

func (t TLVType) String() string {
	if desc, ok := tlvDescriptions[t]; ok {
		return fmt.Sprintf("%s (%s)", desc.Description, desc.Reference)
	}
	return fmt.Sprintf("Unknown TLV (0x%04x)", uint16(t))
}

// TLV value lengths, excluding the 4-byte TLV header (type + length)
const (
	TLVHeartbeatIntervalValueLength   uint16 = 2
	TLVIPv4AddressValueLength         uint16 = 5
	TLVIPv6AddressValueLength         uint16 = 17
	TLVIPv4AttachedSubnetValueLength  uint16 = 6
	TLVIPv6AttachedSubnetValueLength  uint16 = 18
	TLVIPv4ConnectionPointValueLength uint16 = 5
	TLVIPv4ConnectionPointPortLength  uint16 = 7
	TLVIPv6ConnectionPointValueLength uint16 = 17
	TLVIPv6ConnectionPointPortLength  uint16 = 19
	TLVUint64ValueLength              uint16 = 8
	TLVBooleanValueLength             uint16 = 1
)

type MessageType uint16

// DLEP session messages (TCP)
const (
	MessageSessionInitialization         MessageType = 1
	MessageSessionInitializationResponse MessageType = 2
	MessageSessionUpdate                 MessageType = 3
	MessageSessionUpdateResponse         MessageType = 4
	MessageSessionTermination            MessageType = 5
	MessageSessionTerminationResponse    MessageType = 6
	MessageDestinationUp                 MessageType = 7
	MessageDestinationUpResponse         MessageType = 8
	MessageDestinationAnnounce           MessageType = 9
	MessageDestinationAnnounceResponse   MessageType = 10
	MessageDestinationDown               MessageType = 11
	MessageDestinationDownResponse       MessageType = 12
	MessageDestinationUpdate             MessageType = 13
	MessageLinkCharacteristicsRequest    MessageType = 14
	MessageLinkCharacteristicsResponse   MessageType = 15
	MessageHeartbeat                     MessageType = 16
)

var messageDescriptions = map[MessageType]string{
	MessageSessionInitialization:         "SESSION-INITIALIZATION",
	MessageSessionInitializationResponse: "SESSION-INITIALIZATION-RESPONSE",
	MessageSessionUpdate:                 "SESSION-UPDATE",
	MessageSessionUpdateResponse:         "SESSION-UPDATE-RESPONSE",
	MessageSessionTermination:            "SESSION-TERMINATION",
	MessageSessionTerminationResponse:    "SESSION-TERMINATION-RESPONSE",
	MessageDestinationUp:                 "DESTINATION-UP",
	MessageDestinationUpResponse:         "DESTINATION-UP-RESPONSE",
	MessageDestinationAnnounce:           "DESTINATION-ANNOUNCE",
	MessageDestinationAnnounceResponse:   "DESTINATION-ANNOUNCE-RESPONSE",
	MessageDestinationDown:               "DESTINATION-DOWN",
	MessageDestinationDownResponse:       "DESTINATION-DOWN-RESPONSE",
	MessageDestinationUpdate:             "DESTINATION-UPDATE",
	MessageLinkCharacteristicsRequest:    "LINK-CHARACTERISTICS-REQUEST",
	MessageLinkCharacteristicsResponse:   "LINK-CHARACTERISTICS-RESPONSE",
	MessageHeartbeat:                     "HEARTBEAT",
}

func (t MessageType) String() string {
	if desc, ok := messageDescriptions[t]; ok {
		return desc
	}
	return fmt.Sprintf("Unknown Message (0x%04x)", uint16(t))
}

type SignalType uint16

// DLEP discovery signals (UDP)
const (
	SignalPeerDiscovery SignalType = 1
	SignalPeerOffer     SignalType = 2
)

func (t SignalType) String() string {
	switch t {
	case SignalPeerDiscovery:
		return "PEER-DISCOVERY"
	case SignalPeerOffer:
		return "PEER-OFFER"
	default:
		return fmt.Sprintf("Unknown Signal (0x%04x)", uint16(t))
	}
}

type StatusCode uint8

const (
	StatusSuccess            StatusCode = 0
	StatusNotInterested      StatusCode = 1
	StatusRequestDenied      StatusCode = 2
	StatusInconsistentData   StatusCode = 3
	StatusUnknownMessage     StatusCode = 128
	StatusUnexpectedMessage  StatusCode = 129
	StatusInvalidData        StatusCode = 130
	StatusInvalidDestination StatusCode = 131
	StatusTimedOut           StatusCode = 132
)

var statusDescriptions = map[StatusCode]string{
	StatusSuccess:            "Success",
	StatusNotInterested:      "Not Interested",
	StatusRequestDenied:      "Request Denied",
	StatusInconsistentData:   "Inconsistent Data",
	StatusUnknownMessage:     "Unknown Message",
	StatusUnexpectedMessage:  "Unexpected Message",
	StatusInvalidData:        "Invalid Data",
	StatusInvalidDestination: "Invalid Destination",
	StatusTimedOut:           "Timed Out",
}

func (c StatusCode) String() string {
	if desc, ok := statusDescriptions[c]; ok {
		return desc
	}
	return fmt.Sprintf("Unknown Status (%d)", uint8(c))
}

// Status codes >= 128 terminate the session (RFC8175 Section 13.1).
func (c StatusCode) IsTerminating() bool {
	return c >= StatusUnknownMessage
}

type ExtensionID uint16

const (
	ExtensionBase         ExtensionID = 0
	ExtensionLinkID       ExtensionID = 3
	ExtensionL1Statistics ExtensionID = 65520
	ExtensionL2Statistics ExtensionID = 65521
)

// IP address flag values of the address and attached subnet TLVs
const (
	IPFlagDrop uint8 = 0
	IPFlagAdd  uint8 = 1
)
