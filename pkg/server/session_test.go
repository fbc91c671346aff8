// Copyright (c) 2022 NTT Communications Corporation
//
// This software is released under the MIT License.
// see https://github.com/nttcom/l2info/blob/main/LICENSE

package server

import (
	"slices"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/nttcom/l2info/internal/pkg/layer2"
	"github.com/nttcom/l2info/internal/pkg/netaddr"
	"github.com/nttcom/l2info/pkg/packet/dlep"
)

const testPeer = "192.0.2.10"

type sentMessages struct {
	msgs [][]byte
}

func (s *sentMessages) send(b []byte) error {
	s.msgs = append(s.msgs, slices.Clone(b))
	return nil
}

// last decodes the most recently sent message.
func (s *sentMessages) last(t *testing.T) (dlep.MessageType, *dlep.ValueStore) {
	t.Helper()
	require.NotEmpty(t, s.msgs)
	msgType, vs, err := dlep.DecodeMessage(s.msgs[len(s.msgs)-1])
	require.NoError(t, err)
	return msgType, vs
}

type testSession struct {
	*Session
	db      *layer2.DB
	clock   *clockwork.FakeClock
	sent    *sentMessages
	metrics *Metrics
}

func newTestSession(t *testing.T) *testSession {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	ts := &testSession{
		db:      layer2.NewDB(layer2.WithClock(clock)),
		clock:   clock,
		sent:    &sentMessages{},
		metrics: NewMetrics(),
	}
	ts.Session = NewSession(testPeer, ts.db, ts.sent.send, SessionOptions{
		Network:   "wlan0",
		PeerType:  "test router",
		Heartbeat: time.Second,
		Metrics:   ts.metrics,
	}, zap.NewNop())
	require.NoError(t, ts.Start())
	return ts
}

func finish(t *testing.T, w *dlep.Writer) []byte {
	t.Helper()
	buf, err := w.Finish()
	require.NoError(t, err)
	return buf
}

func initResponse() *dlep.Writer {
	return dlep.NewMessageWriter(dlep.MessageSessionInitializationResponse).
		AddHeartbeatInterval(5*time.Second).
		AddStatus(dlep.StatusSuccess, "").
		AddPeerType("test radio").
		AddExtensions(dlep.ExtensionL1Statistics).
		AddInt(dlep.TLVMTU, 1500, 2).
		AddUint64(dlep.TLVMDRT, 54000000)
}

func connect(t *testing.T) *testSession {
	t.Helper()
	ts := newTestSession(t)
	require.NoError(t, ts.HandleMessage(finish(t, initResponse())))
	require.Equal(t, SessionConnected, ts.State())
	return ts
}

func statusOf(t *testing.T, vs *dlep.ValueStore) dlep.StatusCode {
	t.Helper()
	var text [64]byte
	code, _, err := dlep.Status(vs, nil, text[:])
	require.NoError(t, err)
	return code
}

func TestSessionStart(t *testing.T) {
	ts := newTestSession(t)
	assert.Equal(t, SessionHandshake, ts.State())

	msgType, vs := ts.sent.last(t)
	assert.Equal(t, dlep.MessageSessionInitialization, msgType)
	hb, err := dlep.HeartbeatInterval(vs, nil)
	require.NoError(t, err)
	assert.Equal(t, time.Second, hb)
	var text [32]byte
	n, err := dlep.PeerType(vs, nil, text[:])
	require.NoError(t, err)
	assert.Equal(t, "test router", string(text[:n]))
	ids, err := dlep.ExtensionsSupported(vs, nil)
	require.NoError(t, err)
	assert.Equal(t, []dlep.ExtensionID{dlep.ExtensionL1Statistics, dlep.ExtensionL2Statistics}, ids)

	_, ok := ts.db.Origins().Get(OriginPrefix + testPeer)
	assert.True(t, ok)
	assert.Error(t, ts.Start())
	assert.Equal(t, float64(1), testutil.ToFloat64(ts.metrics.sessions))
}

func TestSessionHandshake(t *testing.T) {
	ts := connect(t)
	assert.Len(t, ts.sent.msgs, 1, "no reply to the Session Initialization Response")

	info := ts.Info()
	assert.Equal(t, "connected", info.State)
	assert.Equal(t, "test radio", info.PeerType)
	assert.Equal(t, "5s", info.Heartbeat)
	assert.Equal(t, OriginPrefix+testPeer, info.Origin)
	assert.Equal(t, []string{"base", "l1stats"}, info.Extensions)

	require.NoError(t, ts.db.View(func(tx *layer2.Tx) error {
		n, ok := tx.Network("wlan0")
		require.True(t, ok)
		assert.True(t, n.DLEP)
		assert.Equal(t, "test radio", n.Ident)
		assert.Equal(t, layer2.LinkWireless, n.Type)
		v, o, ok := n.Get(layer2.NetworkMTU)
		require.True(t, ok)
		assert.Equal(t, layer2.IntegerValue(1500), v)
		assert.Equal(t, OriginPrefix+testPeer, o.Name)
		v, _, ok = n.NeighborDefaults[layer2.NeighborTxMaxBitrate].Get()
		require.True(t, ok)
		assert.Equal(t, layer2.IntegerValue(54000000), v)
		return nil
	}))
}

func TestSessionHandshakeMalformed(t *testing.T) {
	tests := []struct {
		name string
		msg  *dlep.Writer
	}{
		{
			name: "heartbeat of three bytes",
			msg: dlep.NewMessageWriter(dlep.MessageSessionInitializationResponse).
				AddTLV(dlep.TLVHeartbeatInterval, []byte{0, 0, 5}).
				AddStatus(dlep.StatusSuccess, ""),
		},
		{
			name: "missing status",
			msg: dlep.NewMessageWriter(dlep.MessageSessionInitializationResponse).
				AddHeartbeatInterval(5 * time.Second),
		},
		{
			name: "odd extension list",
			msg: dlep.NewMessageWriter(dlep.MessageSessionInitializationResponse).
				AddHeartbeatInterval(5*time.Second).
				AddStatus(dlep.StatusSuccess, "").
				AddTLV(dlep.TLVExtensionsSupported, []byte{0xff, 0xf0, 0x01}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestSession(t)
			require.NoError(t, ts.HandleMessage(finish(t, tt.msg)))
			assert.Equal(t, SessionHandshake, ts.State(), "session waits for a retry")
			assert.Len(t, ts.sent.msgs, 1)
			assert.Equal(t, float64(1), testutil.ToFloat64(ts.metrics.decodeErrors.WithLabelValues("tlv")))

			require.NoError(t, ts.HandleMessage(finish(t, initResponse())))
			assert.Equal(t, SessionConnected, ts.State())
		})
	}
}

func TestSessionRefused(t *testing.T) {
	ts := newTestSession(t)
	msg := dlep.NewMessageWriter(dlep.MessageSessionInitializationResponse).
		AddHeartbeatInterval(5*time.Second).
		AddStatus(dlep.StatusRequestDenied, "busy")
	require.NoError(t, ts.HandleMessage(finish(t, msg)))
	assert.Equal(t, SessionClosed, ts.State())
	assert.ErrorIs(t, ts.HandleMessage(finish(t, initResponse())), ErrSessionClosed)
	assert.Equal(t, float64(0), testutil.ToFloat64(ts.metrics.sessions))
}

// The heartbeat data item is read as 1000 * wire value milliseconds, so a
// wire value of 2 is two seconds.
func TestSessionHeartbeatAndExpiry(t *testing.T) {
	ts := newTestSession(t)

	// handshake uses the local interval until the radio answers
	ts.clock.Advance(2500 * time.Millisecond)
	assert.True(t, ts.Expired(ts.clock.Now()))

	msg := dlep.NewMessageWriter(dlep.MessageSessionInitializationResponse).
		AddTLV(dlep.TLVHeartbeatInterval, []byte{0x00, 0x02}).
		AddStatus(dlep.StatusSuccess, "")
	require.NoError(t, ts.HandleMessage(finish(t, msg)))
	assert.Equal(t, "2s", ts.Info().Heartbeat)

	ts.clock.Advance(3 * time.Second)
	assert.False(t, ts.Expired(ts.clock.Now()))

	require.NoError(t, ts.HandleMessage(finish(t, dlep.NewMessageWriter(dlep.MessageHeartbeat))))
	ts.clock.Advance(4 * time.Second)
	assert.False(t, ts.Expired(ts.clock.Now()))
	ts.clock.Advance(time.Millisecond)
	assert.True(t, ts.Expired(ts.clock.Now()))

	require.NoError(t, ts.SendHeartbeat())
	msgType, _ := ts.sent.last(t)
	assert.Equal(t, dlep.MessageHeartbeat, msgType)
}

func destination(t dlep.MessageType, mac string, linkID ...byte) *dlep.Writer {
	w := dlep.NewMessageWriter(t).AddMAC(netaddr.MustParse(mac))
	if len(linkID) > 0 {
		w.AddLinkID(linkID)
	}
	return w
}

func TestDestinationLifecycle(t *testing.T) {
	ts := connect(t)
	origin := OriginPrefix + testPeer
	key, err := layer2.NewNeighborKey(netaddr.MustParse("02:00:00:00:00:01"), []byte{0x07})
	require.NoError(t, err)

	up := destination(dlep.MessageDestinationUp, "02:00:00:00:00:01", 0x07).
		AddIPAddress(netaddr.MustParse("10.0.0.5"), true).
		AddIPAddress(netaddr.MustParse("10.1.0.0/24"), true).
		AddUint64(dlep.TLVCDRT, 12000000).
		AddTLV(dlep.TLVLatency, []byte{1, 2, 3}).
		AddInt(dlep.TLVResources, 80, 1).
		AddInt(dlep.TLVSignalRx, -71000, 8)
	require.NoError(t, ts.HandleMessage(finish(t, up)))

	msgType, vs := ts.sent.last(t)
	assert.Equal(t, dlep.MessageDestinationUpResponse, msgType)
	assert.Equal(t, dlep.StatusSuccess, statusOf(t, vs))
	mac, err := dlep.MACAddress(vs, nil)
	require.NoError(t, err)
	assert.Equal(t, "02:00:00:00:00:01", mac.String())
	linkID, err := dlep.LinkID(vs, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x07}, linkID)

	assert.Equal(t, float64(1), testutil.ToFloat64(ts.metrics.mappingErrors.WithLabelValues("base")))

	require.NoError(t, ts.db.View(func(tx *layer2.Tx) error {
		n, _ := tx.Network("wlan0")
		nb, ok := n.Neighbor(key)
		require.True(t, ok)
		ips := nb.RemoteIPs.All()
		require.Len(t, ips, 1)
		assert.Equal(t, "10.0.0.5", ips[0].Addr.String())
		assert.Equal(t, origin, ips[0].Origin.Name)
		subnets := nb.Destinations.All()
		require.Len(t, subnets, 1)
		assert.Equal(t, "10.1.0.0/24", subnets[0].Addr.String())

		v, _, ok := nb.Get(layer2.NeighborTxBitrate)
		require.True(t, ok)
		assert.Equal(t, layer2.IntegerValue(12000000), v)
		assert.False(t, nb.Data[layer2.NeighborLatency].HasValue())
		assert.False(t, nb.Data[layer2.NeighborResources].HasValue(), "base stops at the malformed latency")
		v, _, ok = nb.Get(layer2.NeighborRxSignal)
		require.True(t, ok, "other extensions still apply")
		assert.Equal(t, layer2.IntegerValue(-71000), v)
		return nil
	}))

	update := destination(dlep.MessageDestinationUpdate, "02:00:00:00:00:01", 0x07).
		AddIPAddress(netaddr.MustParse("10.0.0.5"), false).
		AddUint64(dlep.TLVCDRT, 6000000)
	sent := len(ts.sent.msgs)
	require.NoError(t, ts.HandleMessage(finish(t, update)))
	assert.Len(t, ts.sent.msgs, sent, "updates are not answered")

	require.NoError(t, ts.db.View(func(tx *layer2.Tx) error {
		n, _ := tx.Network("wlan0")
		nb, ok := n.Neighbor(key)
		require.True(t, ok)
		assert.Equal(t, 0, nb.RemoteIPs.Len())
		v, _, _ := nb.Get(layer2.NeighborTxBitrate)
		assert.Equal(t, layer2.IntegerValue(6000000), v)
		return nil
	}))

	require.NoError(t, ts.HandleMessage(finish(t, destination(dlep.MessageDestinationDown, "02:00:00:00:00:01", 0x07))))
	msgType, vs = ts.sent.last(t)
	assert.Equal(t, dlep.MessageDestinationDownResponse, msgType)
	assert.Equal(t, dlep.StatusSuccess, statusOf(t, vs))
	require.NoError(t, ts.db.View(func(tx *layer2.Tx) error {
		n, _ := tx.Network("wlan0")
		_, ok := n.Neighbor(key)
		assert.False(t, ok)
		return nil
	}))

	require.NoError(t, ts.HandleMessage(finish(t, destination(dlep.MessageDestinationDown, "02:00:00:00:00:01", 0x07))))
	_, vs = ts.sent.last(t)
	assert.Equal(t, dlep.StatusInvalidDestination, statusOf(t, vs))
}

func TestDestinationUpdateUnknown(t *testing.T) {
	ts := connect(t)
	update := destination(dlep.MessageDestinationUpdate, "02:00:00:00:00:09").
		AddUint64(dlep.TLVCDRT, 6000000)
	require.NoError(t, ts.HandleMessage(finish(t, update)))
	assert.Len(t, ts.sent.msgs, 1)
	require.NoError(t, ts.db.View(func(tx *layer2.Tx) error {
		n, _ := tx.Network("wlan0")
		assert.Equal(t, 0, n.NeighborCount())
		return nil
	}))
}

func TestDestinationUpWithoutMAC(t *testing.T) {
	ts := connect(t)
	up := dlep.NewMessageWriter(dlep.MessageDestinationUp).AddUint64(dlep.TLVCDRT, 1)
	require.NoError(t, ts.HandleMessage(finish(t, up)))
	assert.Len(t, ts.sent.msgs, 1, "dropped without a response")
	assert.Equal(t, SessionConnected, ts.State())
}

func TestSessionUpdate(t *testing.T) {
	ts := connect(t)
	operator := ts.db.Origins().Register("operator", layer2.PrecedenceOverride)
	require.NoError(t, ts.db.Update(func(tx *layer2.Tx) error {
		n, _ := tx.Network("wlan0")
		n.Set(layer2.NetworkNoise, operator, operator.Precedence, layer2.IntegerValue(-80000))
		return nil
	}))

	msg := dlep.NewMessageWriter(dlep.MessageSessionUpdate).
		AddInt(dlep.TLVMTU, 1400, 2).
		AddInt(dlep.TLVNoise, -95000, 8)
	require.NoError(t, ts.HandleMessage(finish(t, msg)))

	msgType, vs := ts.sent.last(t)
	assert.Equal(t, dlep.MessageSessionUpdateResponse, msgType)
	assert.Equal(t, dlep.StatusSuccess, statusOf(t, vs))

	require.NoError(t, ts.db.View(func(tx *layer2.Tx) error {
		n, _ := tx.Network("wlan0")
		v, _, _ := n.Get(layer2.NetworkMTU)
		assert.Equal(t, layer2.IntegerValue(1400), v)
		v, o, _ := n.Get(layer2.NetworkNoise)
		assert.Same(t, operator, o, "higher precedence data is kept")
		assert.Equal(t, layer2.IntegerValue(-80000), v)
		return nil
	}))
}

func TestPeerTermination(t *testing.T) {
	ts := connect(t)
	require.NoError(t, ts.HandleMessage(finish(t, destination(dlep.MessageDestinationUp, "02:00:00:00:00:01").
		AddUint64(dlep.TLVCDRT, 1000))))

	term := dlep.NewMessageWriter(dlep.MessageSessionTermination).AddStatus(dlep.StatusSuccess, "bye")
	require.NoError(t, ts.HandleMessage(finish(t, term)))
	msgType, _ := ts.sent.last(t)
	assert.Equal(t, dlep.MessageSessionTerminationResponse, msgType)
	assert.Equal(t, SessionClosed, ts.State())

	require.NoError(t, ts.db.View(func(tx *layer2.Tx) error {
		assert.Empty(t, tx.Networks(), "teardown removes all data of the session")
		return nil
	}))
	assert.ErrorIs(t, ts.HandleMessage(finish(t, term)), ErrSessionClosed)
	assert.Equal(t, float64(0), testutil.ToFloat64(ts.metrics.sessions))
}

func TestLocalTermination(t *testing.T) {
	ts := connect(t)
	require.NoError(t, ts.Terminate(dlep.StatusTimedOut))
	assert.Equal(t, SessionTerminating, ts.State())
	msgType, vs := ts.sent.last(t)
	assert.Equal(t, dlep.MessageSessionTermination, msgType)
	assert.Equal(t, dlep.StatusTimedOut, statusOf(t, vs))

	// everything but the response is ignored now
	sent := len(ts.sent.msgs)
	require.NoError(t, ts.HandleMessage(finish(t, destination(dlep.MessageDestinationUp, "02:00:00:00:00:01"))))
	assert.Len(t, ts.sent.msgs, sent)

	require.NoError(t, ts.HandleMessage(finish(t, dlep.NewMessageWriter(dlep.MessageSessionTerminationResponse))))
	assert.Equal(t, SessionClosed, ts.State())
}

func TestTerminationResponseOverdue(t *testing.T) {
	ts := connect(t)
	require.NoError(t, ts.db.View(func(tx *layer2.Tx) error {
		assert.Len(t, tx.Networks(), 1)
		return nil
	}))
	require.NoError(t, ts.Terminate(dlep.StatusUnexpectedMessage))

	// the radio keeps talking but never answers
	ts.clock.Advance(6 * time.Second)
	require.NoError(t, ts.HandleMessage(finish(t, dlep.NewMessageWriter(dlep.MessageHeartbeat))))
	ts.clock.Advance(4 * time.Second)
	assert.False(t, ts.Expired(ts.clock.Now()))
	ts.clock.Advance(time.Millisecond)
	assert.True(t, ts.Expired(ts.clock.Now()))
	assert.Equal(t, SessionTerminating, ts.State())

	ts.Close()
	assert.Equal(t, SessionClosed, ts.State())
	assert.False(t, ts.Expired(ts.clock.Now().Add(time.Hour)))
	require.NoError(t, ts.db.View(func(tx *layer2.Tx) error {
		assert.Empty(t, tx.Networks())
		return nil
	}))
}

func TestUnexpectedAndUnknownMessages(t *testing.T) {
	tests := []struct {
		name      string
		connected bool
		msg       *dlep.Writer
		status    dlep.StatusCode
	}{
		{
			name:   "destination up during handshake",
			msg:    destination(dlep.MessageDestinationUp, "02:00:00:00:00:01"),
			status: dlep.StatusUnexpectedMessage,
		},
		{
			name:      "router message from radio",
			connected: true,
			msg:       dlep.NewMessageWriter(dlep.MessageLinkCharacteristicsRequest),
			status:    dlep.StatusUnexpectedMessage,
		},
		{
			name:      "unknown message type",
			connected: true,
			msg:       dlep.NewMessageWriter(dlep.MessageType(99)),
			status:    dlep.StatusUnknownMessage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ts *testSession
			if tt.connected {
				ts = connect(t)
			} else {
				ts = newTestSession(t)
			}
			require.NoError(t, ts.HandleMessage(finish(t, tt.msg)))
			assert.Equal(t, SessionTerminating, ts.State())
			msgType, vs := ts.sent.last(t)
			assert.Equal(t, dlep.MessageSessionTermination, msgType)
			assert.Equal(t, tt.status, statusOf(t, vs))
		})
	}
}

func TestMalformedMessageDropped(t *testing.T) {
	ts := connect(t)
	buf := finish(t, dlep.NewMessageWriter(dlep.MessageHeartbeat))
	buf = append(buf, 0x00) // length field no longer matches
	require.NoError(t, ts.HandleMessage(buf))
	assert.Equal(t, SessionConnected, ts.State())
	assert.Equal(t, float64(1), testutil.ToFloat64(ts.metrics.decodeErrors.WithLabelValues("message")))
}

func TestHandleMessageBeforeStart(t *testing.T) {
	db := layer2.NewDB()
	ss := NewSession(testPeer, db, func([]byte) error { return nil }, SessionOptions{Network: "wlan0"}, zap.NewNop())
	assert.ErrorIs(t, ss.HandleMessage(nil), ErrSessionNotStarted)
	assert.False(t, ss.Expired(time.Now()))
	assert.Equal(t, "-", ss.Info().Origin)
}

func TestSession_MarshalLogObject(t *testing.T) {
	ts := connect(t)
	enc := zapcore.NewMapObjectEncoder()
	require.NoError(t, ts.MarshalLogObject(enc))
	assert.Equal(t, testPeer, enc.Fields["peer"])
	assert.Equal(t, "connected", enc.Fields["state"])
	assert.Equal(t, OriginPrefix+testPeer, enc.Fields["origin"])
	assert.Equal(t, 5*time.Second, enc.Fields["heartbeat"])
	assert.Equal(t, ts.ID().String(), enc.Fields["id"])
}

func TestSessionStateString(t *testing.T) {
	assert.Equal(t, "terminating", SessionTerminating.String())
	assert.Equal(t, "unknown(9)", SessionState(9).String())
}
