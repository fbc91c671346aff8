// Copyright (c) 2022 NTT Communications Corporation
//
// This software is released under the MIT License.
// see https://github.com/nttcom/l2info/blob/main/LICENSE

package server

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/nttcom/l2info/internal/pkg/extension"
	"github.com/nttcom/l2info/internal/pkg/layer2"
	"github.com/nttcom/l2info/internal/pkg/netaddr"
	"github.com/nttcom/l2info/pkg/packet/dlep"
)

// OriginPrefix is prepended to the peer address to name the origin of a
// session's data.
const OriginPrefix = "dlep:"

const maxTextLength = 256

var (
	ErrSessionNotStarted = errors.New("dlep session not started")
	ErrSessionClosed     = errors.New("dlep session closed")
)

type SessionState uint8

const (
	SessionInit SessionState = iota
	SessionHandshake
	SessionConnected
	SessionTerminating
	SessionClosed
)

func (s SessionState) String() string {
	switch s {
	case SessionInit:
		return "init"
	case SessionHandshake:
		return "handshake"
	case SessionConnected:
		return "connected"
	case SessionTerminating:
		return "terminating"
	case SessionClosed:
		return "closed"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

type SessionOptions struct {
	Network   string        // layer2 network the session writes to
	PeerType  string        // sent in Session Initialization
	Heartbeat time.Duration // local heartbeat interval
	Registry  *extension.Registry
	Metrics   *Metrics
}

// Session is the router side of one DLEP session. It turns received
// messages into layer2 database writes tagged with the session origin.
// Complete messages are handed in by the transport through HandleMessage;
// replies leave through the send function.
type Session struct {
	mu sync.Mutex

	id     uuid.UUID
	peer   string
	opts   SessionOptions
	db     *layer2.DB
	send   func([]byte) error
	logger *zap.Logger

	state         SessionState
	origin        *layer2.Origin
	peerType      string
	peerHeartbeat time.Duration
	extensions    []*extension.Extension
	lastReceived  time.Time
	terminated    time.Time
}

func NewSession(peer string, db *layer2.DB, send func([]byte) error, opts SessionOptions, logger *zap.Logger) *Session {
	if opts.Registry == nil {
		opts.Registry = extension.DefaultRegistry()
	}
	if opts.Metrics == nil {
		opts.Metrics = NewMetrics()
	}
	return &Session{
		id:     uuid.New(),
		peer:   peer,
		opts:   opts,
		db:     db,
		send:   send,
		logger: logger,
	}
}

func (ss *Session) ID() uuid.UUID {
	return ss.id
}

func (ss *Session) State() SessionState {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return ss.state
}

// Start registers the session origin and sends Session Initialization.
func (ss *Session) Start() error {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	if ss.state != SessionInit {
		return fmt.Errorf("session already started (%s)", ss.state)
	}
	ss.origin = ss.db.Origins().Register(OriginPrefix+ss.peer, layer2.PrecedenceReliable)
	ss.lastReceived = ss.db.Clock().Now()

	w := dlep.NewMessageWriter(dlep.MessageSessionInitialization).
		AddHeartbeatInterval(ss.opts.Heartbeat).
		AddPeerType(ss.opts.PeerType)
	if ids := ss.opts.Registry.Optional(); len(ids) > 0 {
		w.AddExtensions(ids...)
	}
	if err := ss.sendMessage(w, "Session Initialization"); err != nil {
		return err
	}
	ss.state = SessionHandshake
	ss.opts.Metrics.sessions.Inc()
	return nil
}

// HandleMessage processes one complete DLEP message. A returned error means
// the session can not continue; malformed messages are logged and dropped.
func (ss *Session) HandleMessage(buf []byte) error {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	switch ss.state {
	case SessionInit:
		return ErrSessionNotStarted
	case SessionClosed:
		return ErrSessionClosed
	}
	msgType, vs, err := dlep.DecodeMessage(buf)
	if err != nil {
		ss.opts.Metrics.decodeErrors.WithLabelValues("message").Inc()
		ss.logger.Warn("Drop malformed message", zap.String("session", ss.peer), zap.Error(err))
		return nil
	}
	ss.lastReceived = ss.db.Clock().Now()
	ss.opts.Metrics.messages.WithLabelValues(msgType.String()).Inc()
	ss.logger.Debug("Received message", zap.String("session", ss.peer), zap.Stringer("type", msgType), zap.Array("tlvs", vs))

	if ss.state == SessionTerminating &&
		msgType != dlep.MessageSessionTermination && msgType != dlep.MessageSessionTerminationResponse {
		return nil
	}

	switch msgType {
	case dlep.MessageSessionInitializationResponse:
		if ss.state != SessionHandshake {
			return ss.unexpected(msgType)
		}
		return ss.handleSessionInitResponse(vs)
	case dlep.MessageSessionTermination:
		return ss.handleSessionTermination(vs)
	case dlep.MessageSessionTerminationResponse:
		if ss.state != SessionTerminating {
			return ss.unexpected(msgType)
		}
		ss.close()
		return nil
	case dlep.MessageHeartbeat:
		return nil
	}

	if ss.state != SessionConnected {
		return ss.unexpected(msgType)
	}
	switch msgType {
	case dlep.MessageSessionUpdate:
		return ss.handleSessionUpdate(vs)
	case dlep.MessageDestinationUp:
		return ss.handleDestinationUp(vs)
	case dlep.MessageDestinationAnnounceResponse:
		return ss.handleDestinationAnnounceResponse(vs)
	case dlep.MessageDestinationUpdate, dlep.MessageLinkCharacteristicsResponse:
		return ss.handleDestinationUpdate(msgType, vs)
	case dlep.MessageDestinationDown:
		return ss.handleDestinationDown(vs)
	case dlep.MessageSessionUpdateResponse, dlep.MessageDestinationDownResponse, dlep.MessageDestinationUpResponse:
		return nil
	case dlep.MessageSessionInitialization, dlep.MessageDestinationAnnounce, dlep.MessageLinkCharacteristicsRequest:
		// router-to-radio messages
		return ss.unexpected(msgType)
	default:
		ss.logger.Warn("Received unknown message", zap.String("session", ss.peer), zap.Stringer("type", msgType))
		return ss.terminate(dlep.StatusUnknownMessage)
	}
}

func (ss *Session) handleSessionInitResponse(vs *dlep.ValueStore) error {
	heartbeat, err := dlep.HeartbeatInterval(vs, nil)
	if err != nil {
		ss.dropMalformed(dlep.MessageSessionInitializationResponse, err)
		return nil
	}
	var text [maxTextLength]byte
	status, n, err := dlep.Status(vs, nil, text[:])
	if err != nil {
		ss.dropMalformed(dlep.MessageSessionInitializationResponse, err)
		return nil
	}
	if status != dlep.StatusSuccess {
		ss.logger.Warn("Radio refused session", zap.String("session", ss.peer),
			zap.Stringer("status", status), zap.ByteString("text", text[:n]))
		ss.close()
		return nil
	}
	var peerType string
	if n, err := dlep.PeerType(vs, nil, text[:]); err == nil {
		peerType = string(text[:n])
	} else if !errors.Is(err, dlep.ErrTLVNotFound) {
		ss.dropMalformed(dlep.MessageSessionInitializationResponse, err)
		return nil
	}
	ids, err := dlep.ExtensionsSupported(vs, nil)
	if err != nil && !errors.Is(err, dlep.ErrTLVNotFound) {
		ss.dropMalformed(dlep.MessageSessionInitializationResponse, err)
		return nil
	}

	ss.peerHeartbeat = heartbeat
	ss.peerType = peerType
	ss.extensions = ss.opts.Registry.Select(ids)
	ss.state = SessionConnected

	_ = ss.db.Update(func(tx *layer2.Tx) error {
		net := tx.AddNetwork(ss.opts.Network)
		net.DLEP = true
		net.Type = layer2.LinkWireless
		net.Ident = peerType
		net.LastSeen = tx.Now()
		ss.applyNetwork(vs, net)
		return nil
	})
	ss.logger.Info("DLEP session established", zap.Object("session", ss))
	return nil
}

func (ss *Session) handleSessionUpdate(vs *dlep.ValueStore) error {
	_ = ss.db.Update(func(tx *layer2.Tx) error {
		net := tx.AddNetwork(ss.opts.Network)
		net.LastSeen = tx.Now()
		ss.applyNetwork(vs, net)
		return nil
	})
	w := dlep.NewMessageWriter(dlep.MessageSessionUpdateResponse).AddStatus(dlep.StatusSuccess, "")
	return ss.sendMessage(w, "Session Update Response")
}

func (ss *Session) handleSessionTermination(vs *dlep.ValueStore) error {
	var text [maxTextLength]byte
	if status, n, err := dlep.Status(vs, nil, text[:]); err == nil {
		ss.logger.Info("Received Session Termination", zap.String("session", ss.peer),
			zap.Stringer("status", status), zap.ByteString("text", text[:n]))
	}
	w := dlep.NewMessageWriter(dlep.MessageSessionTerminationResponse)
	err := ss.sendMessage(w, "Session Termination Response")
	ss.close()
	return err
}

func (ss *Session) handleDestinationUp(vs *dlep.ValueStore) error {
	key, err := destinationKey(vs)
	if err != nil {
		ss.dropMalformed(dlep.MessageDestinationUp, err)
		return nil
	}
	_ = ss.db.Update(func(tx *layer2.Tx) error {
		nb := tx.AddNetwork(ss.opts.Network).AddNeighbor(key)
		nb.LastSeen = tx.Now()
		ss.applyDestination(vs, nb)
		return nil
	})
	ss.logger.Info("Destination up", zap.String("session", ss.peer), zap.Object("destination", key))
	return ss.sendDestinationResponse(dlep.MessageDestinationUpResponse, key, dlep.StatusSuccess)
}

func (ss *Session) handleDestinationAnnounceResponse(vs *dlep.ValueStore) error {
	key, err := destinationKey(vs)
	if err != nil {
		ss.dropMalformed(dlep.MessageDestinationAnnounceResponse, err)
		return nil
	}
	var text [maxTextLength]byte
	if status, _, err := dlep.Status(vs, nil, text[:]); err == nil && status != dlep.StatusSuccess {
		ss.logger.Info("Destination announce refused", zap.String("session", ss.peer),
			zap.Object("destination", key), zap.Stringer("status", status))
		return nil
	}
	_ = ss.db.Update(func(tx *layer2.Tx) error {
		nb := tx.AddNetwork(ss.opts.Network).AddNeighbor(key)
		nb.LastSeen = tx.Now()
		ss.applyDestination(vs, nb)
		return nil
	})
	return nil
}

func (ss *Session) handleDestinationUpdate(msgType dlep.MessageType, vs *dlep.ValueStore) error {
	key, err := destinationKey(vs)
	if err != nil {
		ss.dropMalformed(msgType, err)
		return nil
	}
	_ = ss.db.Update(func(tx *layer2.Tx) error {
		net, ok := tx.Network(ss.opts.Network)
		if !ok {
			return nil
		}
		nb, ok := net.Neighbor(key)
		if !ok {
			ss.logger.Warn("Update for unknown destination", zap.String("session", ss.peer),
				zap.Stringer("type", msgType), zap.Object("destination", key))
			return nil
		}
		nb.LastSeen = tx.Now()
		ss.applyDestination(vs, nb)
		return nil
	})
	return nil
}

func (ss *Session) handleDestinationDown(vs *dlep.ValueStore) error {
	key, err := destinationKey(vs)
	if err != nil {
		ss.dropMalformed(dlep.MessageDestinationDown, err)
		return nil
	}
	found := false
	_ = ss.db.Update(func(tx *layer2.Tx) error {
		if net, ok := tx.Network(ss.opts.Network); ok {
			found = net.RemoveNeighborOrigin(key, ss.origin)
		}
		return nil
	})
	status := dlep.StatusSuccess
	if !found {
		status = dlep.StatusInvalidDestination
	}
	ss.logger.Info("Destination down", zap.String("session", ss.peer), zap.Object("destination", key), zap.Bool("known", found))
	return ss.sendDestinationResponse(dlep.MessageDestinationDownResponse, key, status)
}

func (ss *Session) sendDestinationResponse(t dlep.MessageType, key layer2.NeighborKey, status dlep.StatusCode) error {
	w := dlep.NewMessageWriter(t).AddMAC(key.Addr)
	if key.LinkIDLength > 0 {
		w.AddLinkID(key.LinkIDBytes())
	}
	w.AddStatus(status, "")
	return ss.sendMessage(w, t.String())
}

// destinationKey reads the MAC address and the optional link identifier.
func destinationKey(vs *dlep.ValueStore) (layer2.NeighborKey, error) {
	mac, err := dlep.MACAddress(vs, nil)
	if err != nil {
		return layer2.NeighborKey{}, err
	}
	var linkID []byte
	if id, err := dlep.LinkID(vs, nil); err == nil {
		linkID = id
	} else if !errors.Is(err, dlep.ErrTLVNotFound) {
		return layer2.NeighborKey{}, err
	}
	return layer2.NewNeighborKey(mac, linkID)
}

func (ss *Session) applyNetwork(vs *dlep.ValueStore, net *layer2.Network) {
	for _, ext := range ss.extensions {
		if err := ext.ApplyNetwork(vs, net, ss.origin, ss.origin.Precedence); err != nil {
			ss.mappingFailed(ext, err)
		}
		if err := ext.ApplyNeighborDefaults(vs, net, ss.origin, ss.origin.Precedence); err != nil {
			ss.mappingFailed(ext, err)
		}
	}
}

type addressReader func(vs *dlep.ValueStore, entry *dlep.TLVEntry) (netaddr.Addr, bool, error)

var destinationAddressTLVs = []struct {
	tlv    dlep.TLVType
	read   addressReader
	subnet bool
}{
	{dlep.TLVIPv4Address, dlep.IPv4Address, false},
	{dlep.TLVIPv6Address, dlep.IPv6Address, false},
	{dlep.TLVIPv4AttachedSubnet, dlep.IPv4Subnet, true},
	{dlep.TLVIPv6AttachedSubnet, dlep.IPv6Subnet, true},
}

// applyDestination writes the address changes and the metrics of a
// destination message into nb. Malformed items are skipped.
func (ss *Session) applyDestination(vs *dlep.ValueStore, nb *layer2.Neighbor) {
	for _, at := range destinationAddressTLVs {
		set := &nb.RemoteIPs
		if at.subnet {
			set = &nb.Destinations
		}
		for e := range vs.All(at.tlv) {
			addr, add, err := at.read(vs, &e)
			if err != nil {
				ss.opts.Metrics.decodeErrors.WithLabelValues("tlv").Inc()
				ss.logger.Warn("Skip malformed address", zap.String("session", ss.peer), zap.Object("tlv", e), zap.Error(err))
				continue
			}
			if add {
				set.Add(addr, ss.origin)
			} else {
				set.Remove(addr)
			}
		}
	}
	for _, ext := range ss.extensions {
		if err := ext.ApplyNeighbor(vs, nb, ss.origin, ss.origin.Precedence); err != nil {
			ss.mappingFailed(ext, err)
		}
	}
}

func (ss *Session) mappingFailed(ext *extension.Extension, err error) {
	ss.opts.Metrics.mappingErrors.WithLabelValues(ext.Name).Inc()
	ss.logger.Warn("Extension mapping failed", zap.String("session", ss.peer), zap.String("origin", ss.origin.Name),
		zap.Int("index", extension.MappingIndex(err)), zap.Error(err))
}

func (ss *Session) dropMalformed(t dlep.MessageType, err error) {
	ss.opts.Metrics.decodeErrors.WithLabelValues("tlv").Inc()
	ss.logger.Warn("Drop message with malformed data item", zap.String("session", ss.peer), zap.Stringer("type", t), zap.Error(err))
}

func (ss *Session) unexpected(t dlep.MessageType) error {
	ss.logger.Warn("Received unexpected message", zap.String("session", ss.peer),
		zap.Stringer("type", t), zap.Stringer("state", ss.state))
	return ss.terminate(dlep.StatusUnexpectedMessage)
}

func (ss *Session) sendMessage(w *dlep.Writer, logMessage string) error {
	buf, err := w.Finish()
	if err != nil {
		return fmt.Errorf("encode %s: %w", logMessage, err)
	}
	if err := ss.send(buf); err != nil {
		return fmt.Errorf("send %s: %w", logMessage, err)
	}
	ss.logger.Debug("Send "+logMessage, zap.String("session", ss.peer))
	return nil
}

// SendHeartbeat sends a Heartbeat on a connected session.
func (ss *Session) SendHeartbeat() error {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	if ss.state != SessionConnected {
		return nil
	}
	return ss.sendMessage(dlep.NewMessageWriter(dlep.MessageHeartbeat), "Heartbeat")
}

// Terminate sends Session Termination with code and waits for the response.
func (ss *Session) Terminate(code dlep.StatusCode) error {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return ss.terminate(code)
}

func (ss *Session) terminate(code dlep.StatusCode) error {
	switch ss.state {
	case SessionInit:
		ss.state = SessionClosed
		return nil
	case SessionTerminating, SessionClosed:
		return nil
	}
	ss.state = SessionTerminating
	ss.terminated = ss.db.Clock().Now()
	w := dlep.NewMessageWriter(dlep.MessageSessionTermination).AddStatus(code, "")
	return ss.sendMessage(w, "Session Termination")
}

// Close removes all data of the session origin from the database.
func (ss *Session) Close() {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	ss.close()
}

func (ss *Session) close() {
	if ss.state == SessionClosed {
		return
	}
	started := ss.state != SessionInit
	ss.state = SessionClosed
	if ss.origin != nil {
		_ = ss.db.Update(func(tx *layer2.Tx) error {
			tx.RemoveOrigin(ss.origin)
			if net, ok := tx.Network(ss.opts.Network); ok {
				net.DLEP = false
			}
			return nil
		})
	}
	if started {
		ss.opts.Metrics.sessions.Dec()
	}
	ss.logger.Info("DLEP session closed", zap.String("session", ss.peer))
}

// Expired reports whether nothing was received for two heartbeat intervals,
// or the Session Termination Response is two intervals overdue.
func (ss *Session) Expired(now time.Time) bool {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	interval := ss.peerHeartbeat
	if interval == 0 {
		interval = ss.opts.Heartbeat
	}
	if interval <= 0 {
		return false
	}
	switch ss.state {
	case SessionHandshake, SessionConnected:
		return now.Sub(ss.lastReceived) > 2*interval
	case SessionTerminating:
		return now.Sub(ss.terminated) > 2*interval
	}
	return false
}

type SessionInfo struct {
	ID           uuid.UUID `json:"id"`
	Peer         string    `json:"peer"`
	State        string    `json:"state"`
	PeerType     string    `json:"peer_type"`
	Heartbeat    string    `json:"heartbeat"`
	Origin       string    `json:"origin"`
	Extensions   []string  `json:"extensions"`
	LastReceived time.Time `json:"last_received"`
}

func (ss *Session) Info() SessionInfo {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	info := SessionInfo{
		ID:           ss.id,
		Peer:         ss.peer,
		State:        ss.state.String(),
		PeerType:     ss.peerType,
		Heartbeat:    ss.peerHeartbeat.String(),
		Origin:       ss.origin.String(),
		Extensions:   make([]string, 0, len(ss.extensions)),
		LastReceived: ss.lastReceived,
	}
	for _, ext := range ss.extensions {
		info.Extensions = append(info.Extensions, ext.Name)
	}
	return info
}

// MarshalLogObject is called with mu held.
func (ss *Session) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("id", ss.id.String())
	enc.AddString("peer", ss.peer)
	enc.AddString("state", ss.state.String())
	enc.AddString("peerType", ss.peerType)
	enc.AddDuration("heartbeat", ss.peerHeartbeat)
	enc.AddString("origin", ss.origin.String())
	return nil
}
