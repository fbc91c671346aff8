// Copyright (c) 2022 NTT Communications Corporation
//
// This software is released under the MIT License.
// see https://github.com/nttcom/l2info/blob/main/LICENSE

package dlep

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/nttcom/l2info/internal/pkg/netaddr"
)

func TestWriterDecodeMessage(t *testing.T) {
	mac := netaddr.MustParse("02:00:00:00:00:01")
	buf, err := NewMessageWriter(MessageDestinationUp).
		AddMAC(mac).
		AddIPAddress(netaddr.MustParse("10.0.0.2"), true).
		AddIPAddress(netaddr.MustParse("10.2.0.0/16"), true).
		AddUint64(TLVMDRR, 54000000).
		AddInt(TLVMTU, 1500, 2).
		AddInt(TLVSignalRx, -70, 2).
		AddLinkID([]byte{0x01}).
		Finish()
	require.NoError(t, err)

	msgType, vs, err := DecodeMessage(buf)
	require.NoError(t, err)
	assert.Equal(t, MessageDestinationUp, msgType)
	assert.Equal(t, 7, vs.Len())

	gotMAC, err := MACAddress(vs, nil)
	require.NoError(t, err)
	assert.Equal(t, mac, gotMAC)

	ip, add, err := IPv4Address(vs, nil)
	require.NoError(t, err)
	assert.True(t, add)
	assert.Equal(t, netaddr.MustParse("10.0.0.2"), ip)

	subnet, _, err := IPv4Subnet(vs, nil)
	require.NoError(t, err)
	assert.Equal(t, "10.2.0.0/16", subnet.String())

	rate, err := Uint64(vs, TLVMDRR, nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(54000000), rate)

	mtu, err := Integer(vs, TLVMTU, nil, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(1500), mtu)

	signal, err := Integer(vs, TLVSignalRx, nil, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(-70), signal)
}

func TestWriterSessionInitialization(t *testing.T) {
	buf, err := NewMessageWriter(MessageSessionInitialization).
		AddHeartbeatInterval(5*time.Second).
		AddPeerType("l2info router").
		AddExtensions(ExtensionL1Statistics, ExtensionL2Statistics).
		AddConnectionPoint(ConnectionPoint{Addr: netaddr.MustParse("192.0.2.1"), Port: DefaultPort}).
		AddConnectionPoint(ConnectionPoint{Addr: netaddr.MustParse("2001:db8::1"), Port: 9000, TLS: true}).
		Finish()
	require.NoError(t, err)

	_, vs, err := DecodeMessage(buf)
	require.NoError(t, err)

	hb, err := HeartbeatInterval(vs, nil)
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, hb)

	text := make([]byte, 64)
	n, err := PeerType(vs, nil, text)
	require.NoError(t, err)
	assert.Equal(t, "l2info router", string(text[:n]))

	ids, err := ExtensionsSupported(vs, nil)
	require.NoError(t, err)
	assert.Equal(t, []ExtensionID{ExtensionL1Statistics, ExtensionL2Statistics}, ids)

	v4, err := IPv4ConnectionPoint(vs, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultPort, v4.Port)
	e, ok := vs.Get(TLVIPv4ConnectionPoint)
	require.True(t, ok)
	assert.Equal(t, TLVIPv4ConnectionPointValueLength, e.Length)

	v6, err := IPv6ConnectionPoint(vs, nil)
	require.NoError(t, err)
	assert.Equal(t, uint16(9000), v6.Port)
	assert.True(t, v6.TLS)
}

func TestWriterErrors(t *testing.T) {
	_, err := NewMessageWriter(MessageHeartbeat).AddTLV(TLVPeerType, make([]byte, 70000)).Finish()
	assert.ErrorIs(t, err, ErrMessageTooLong)

	_, err = NewMessageWriter(MessageHeartbeat).AddInt(TLVMTU, 1, 3).Finish()
	assert.Error(t, err)

	_, err = NewMessageWriter(MessageHeartbeat).AddMAC(netaddr.MustParse("10.0.0.1")).Finish()
	assert.Error(t, err)

	_, err = NewMessageWriter(MessageHeartbeat).AddLinkID(nil).Finish()
	assert.Error(t, err)
}

func TestDecodeMessageErrors(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
		err   error
	}{
		{
			name:  "short header",
			input: []byte{0x00, 0x10, 0x00},
			err:   ErrMessageMalformed,
		},
		{
			name:  "header length larger than buffer",
			input: []byte{0x00, 0x10, 0x00, 0x08, 0x00, 0x05, 0x00, 0x02},
			err:   ErrMessageMalformed,
		},
		{
			name:  "TLV length exceeds message",
			input: []byte{0x00, 0x10, 0x00, 0x06, 0x00, 0x05, 0x00, 0x04, 0x00, 0x01},
			err:   ErrTLVMalformed,
		},
		{
			name:  "truncated TLV header",
			input: []byte{0x00, 0x10, 0x00, 0x02, 0x00, 0x05},
			err:   ErrTLVMalformed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := DecodeMessage(tt.input)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestDecodeSignal(t *testing.T) {
	buf, err := NewSignalWriter(SignalPeerOffer).
		AddPeerType("radio").
		AddConnectionPoint(ConnectionPoint{Addr: netaddr.MustParse("192.0.2.10"), Port: DefaultPort}).
		Finish()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(buf), "DLEP"))

	signal, vs, err := DecodeSignal(buf)
	require.NoError(t, err)
	assert.Equal(t, SignalPeerOffer, signal)
	cp, err := IPv4ConnectionPoint(vs, nil)
	require.NoError(t, err)
	assert.Equal(t, "192.0.2.10", cp.Addr.String())

	_, _, err = DecodeSignal(buf[SignalPrefixLength:])
	assert.ErrorIs(t, err, ErrMessageMalformed)
}

func TestMessageLength(t *testing.T) {
	buf, err := NewMessageWriter(MessageHeartbeat).Finish()
	require.NoError(t, err)
	n, err := MessageLength(buf)
	require.NoError(t, err)
	assert.Equal(t, MessageHeaderLength, n)

	var h Header
	require.NoError(t, h.DecodeFromBytes(buf))
	assert.Equal(t, buf, h.Serialize())
}

func TestWriterHeader(t *testing.T) {
	tests := []struct {
		name     string
		writer   *Writer
		expected []byte
	}{
		{
			name:     "empty message",
			writer:   NewMessageWriter(MessageHeartbeat),
			expected: []byte{0x00, 0x10, 0x00, 0x00},
		},
		{
			name:     "message with TLV",
			writer:   NewMessageWriter(MessageSessionTermination).AddTLV(TLVStatus, []byte{0x00}),
			expected: []byte{0x00, 0x05, 0x00, 0x05, 0x00, 0x01, 0x00, 0x01, 0x00},
		},
		{
			name:     "signal",
			writer:   NewSignalWriter(SignalPeerDiscovery).AddTLV(TLVPeerType, []byte{0x00, 'r'}),
			expected: []byte{'D', 'L', 'E', 'P', 0x00, 0x01, 0x00, 0x06, 0x00, 0x04, 0x00, 0x02, 0x00, 'r'},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf, err := tt.writer.Finish()
			require.NoError(t, err)
			assert.Equal(t, tt.expected, buf)
		})
	}
}

func TestValueStoreRepeatedEntries(t *testing.T) {
	buf, err := NewMessageWriter(MessageDestinationUpdate).
		AddIPAddress(netaddr.MustParse("10.0.0.1"), true).
		AddIPAddress(netaddr.MustParse("10.0.0.2"), false).
		Finish()
	require.NoError(t, err)
	_, vs, err := DecodeMessage(buf)
	require.NoError(t, err)

	var got []string
	for e := range vs.All(TLVIPv4Address) {
		addr, _, err := IPv4Address(vs, &e)
		require.NoError(t, err)
		got = append(got, addr.String())
	}
	assert.Equal(t, []string{"10.0.0.1", "10.0.0.2"}, got)

	first, _ := vs.Get(TLVIPv4Address)
	enc := zapcore.NewMapObjectEncoder()
	require.NoError(t, first.MarshalLogObject(enc))
	assert.Equal(t, TLVIPv4Address.String(), enc.Fields["type"])
	assert.Equal(t, uint16(5), enc.Fields["length"])
}

func TestValueStoreAdd(t *testing.T) {
	vs := NewValueStore(make([]byte, 8))
	assert.NoError(t, vs.Add(TLVMTU, 2, 6))
	assert.ErrorIs(t, vs.Add(TLVMTU, 4, 6), ErrTLVMalformed)
	assert.Equal(t, 1, vs.Len())
}

func TestTypeStrings(t *testing.T) {
	assert.Equal(t, "HEARTBEAT-INTERVAL (RFC8175)", TLVHeartbeatInterval.String())
	assert.Equal(t, "Unknown TLV (0x1234)", TLVType(0x1234).String())
	assert.Equal(t, "DESTINATION-UP", MessageDestinationUp.String())
	assert.Equal(t, "PEER-OFFER", SignalPeerOffer.String())
	assert.Equal(t, "Invalid Data", StatusInvalidData.String())
	assert.False(t, StatusSuccess.IsTerminating())
}
