// Copyright (c) 2022 NTT Communications Corporation
//
// This software is released under the MIT License.
// see https://github.com/nttcom/l2info/blob/main/LICENSE

package server

import (
	"context"
	"errors"
	"io"
	"net"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/nttcom/l2info/internal/config"
	"github.com/nttcom/l2info/internal/pkg/extension"
	"github.com/nttcom/l2info/internal/pkg/layer2"
	"github.com/nttcom/l2info/pkg/packet/dlep"
)

const (
	reconnectInterval = 5 * time.Second
	maxSignalLength   = 1500
)

// Server keeps one DLEP session per configured or discovered radio.
type Server struct {
	cfg      config.Dlep
	db       *layer2.DB
	registry *extension.Registry
	metrics  *Metrics
	logger   *zap.Logger
	dialer   net.Dialer

	mu          sync.Mutex
	sessionList []*Session
	radios      map[string]struct{}
}

func NewServer(cfg config.Dlep, db *layer2.DB, metrics *Metrics, logger *zap.Logger) *Server {
	return &Server{
		cfg:      cfg,
		db:       db,
		registry: extension.DefaultRegistry(),
		metrics:  metrics,
		logger:   logger,
		radios:   make(map[string]struct{}),
	}
}

// Serve runs until ctx is cancelled. Sessions that end are redialed.
func (s *Server) Serve(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, r := range s.cfg.Radios {
		s.addRadio(ctx, g, net.JoinHostPort(r.Address, r.Port))
	}
	if s.cfg.Discovery.Enabled {
		g.Go(func() error {
			return s.discover(ctx, g)
		})
	}
	return g.Wait()
}

func (s *Server) addRadio(ctx context.Context, g *errgroup.Group, addr string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.radios[addr]; ok {
		return
	}
	s.radios[addr] = struct{}{}
	g.Go(func() error {
		s.maintain(ctx, addr)
		return nil
	})
}

func (s *Server) maintain(ctx context.Context, addr string) {
	for {
		conn, err := s.dialer.DialContext(ctx, "tcp", addr)
		if err != nil {
			s.logger.Info("DLEP connect failed", zap.String("session", addr), zap.Error(err))
		} else {
			if err := s.runSession(ctx, conn, addr); err != nil && ctx.Err() == nil {
				s.logger.Info("DLEP session error", zap.String("session", addr), zap.Error(err))
			}
		}
		select {
		case <-ctx.Done():
			return
		case <-s.db.Clock().After(reconnectInterval):
		}
	}
}

func (s *Server) runSession(ctx context.Context, conn net.Conn, peer string) error {
	defer conn.Close()

	opts := SessionOptions{
		Network:   s.cfg.Interface,
		PeerType:  s.cfg.PeerType,
		Heartbeat: s.cfg.Heartbeat(),
		Registry:  s.registry,
		Metrics:   s.metrics,
	}
	ss := NewSession(peer, s.db, func(b []byte) error {
		_, err := conn.Write(b)
		return err
	}, opts, s.logger)

	s.appendSession(ss)
	defer s.removeSession(ss)
	defer ss.Close()

	if err := ss.Start(); err != nil {
		return err
	}

	done := make(chan struct{})
	defer close(done)
	go s.keepalive(ctx, ss, conn, done)

	return receive(conn, ss)
}

// receive frames the TCP stream into messages.
func receive(conn net.Conn, ss *Session) error {
	header := make([]byte, dlep.MessageHeaderLength)
	for {
		if _, err := io.ReadFull(conn, header); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
				return nil
			}
			return err
		}
		length, err := dlep.MessageLength(header)
		if err != nil {
			return err
		}
		buf := make([]byte, length)
		copy(buf, header)
		if _, err := io.ReadFull(conn, buf[dlep.MessageHeaderLength:]); err != nil {
			return err
		}
		if err := ss.HandleMessage(buf); err != nil {
			return err
		}
		if ss.State() == SessionClosed {
			return nil
		}
	}
}

func (s *Server) keepalive(ctx context.Context, ss *Session, conn net.Conn, done <-chan struct{}) {
	ticker := s.db.Clock().NewTicker(s.cfg.Heartbeat())
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			if err := ss.Terminate(dlep.StatusSuccess); err != nil {
				s.logger.Info("Session Termination send error", zap.String("session", ss.peer), zap.Error(err))
			}
			conn.Close()
			return
		case <-ticker.Chan():
			if ss.Expired(s.db.Clock().Now()) {
				s.logger.Warn("DLEP session timed out", zap.String("session", ss.peer), zap.Stringer("state", ss.State()))
				_ = ss.Terminate(dlep.StatusTimedOut)
				conn.Close()
				return
			}
			if err := ss.SendHeartbeat(); err != nil {
				s.logger.Info("Heartbeat send error", zap.String("session", ss.peer), zap.Error(err))
			}
		}
	}
}

// discover sends Peer Discovery signals and starts a session for every
// radio that answers with a Peer Offer.
func (s *Server) discover(ctx context.Context, g *errgroup.Group) error {
	group, err := net.ResolveUDPAddr("udp", net.JoinHostPort(s.cfg.Discovery.Address, s.cfg.Discovery.Port))
	if err != nil {
		return err
	}
	conn, err := net.ListenUDP("udp", nil)
	if err != nil {
		return err
	}
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	signal, err := PeerDiscoverySignal(s.cfg.PeerType)
	if err != nil {
		return err
	}
	go func() {
		ticker := s.db.Clock().NewTicker(s.cfg.Heartbeat())
		defer ticker.Stop()
		for {
			if _, err := conn.WriteToUDP(signal, group); err != nil && ctx.Err() == nil {
				s.logger.Info("Peer Discovery send error", zap.Error(err))
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.Chan():
			}
		}
	}()

	buf := make([]byte, maxSignalLength)
	for {
		n, from, err := conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		offer, err := DecodePeerOffer(buf[:n])
		if err != nil {
			s.metrics.decodeErrors.WithLabelValues("signal").Inc()
			s.logger.Info("Drop malformed Peer Offer", zap.Stringer("from", from), zap.Error(err))
			continue
		}
		s.logger.Info("Received Peer Offer", zap.Stringer("from", from), zap.Object("offer", offer))
		s.addRadio(ctx, g, offerAddress(offer, from))
	}
}

// offerAddress picks the first non-TLS connection point, falling back to
// the sender address on the default port.
func offerAddress(offer PeerOffer, from *net.UDPAddr) string {
	for _, cp := range offer.ConnectionPoints {
		if !cp.TLS {
			return net.JoinHostPort(cp.Addr.String(), strconv.Itoa(int(cp.Port)))
		}
	}
	return net.JoinHostPort(from.IP.String(), strconv.Itoa(int(dlep.DefaultPort)))
}

func (s *Server) appendSession(ss *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessionList = append(s.sessionList, ss)
}

func (s *Server) removeSession(ss *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessionList = slices.DeleteFunc(s.sessionList, func(x *Session) bool {
		return x == ss
	})
}

// Sessions lists the open sessions ordered by peer.
func (s *Server) Sessions() []SessionInfo {
	s.mu.Lock()
	list := slices.Clone(s.sessionList)
	s.mu.Unlock()

	infos := make([]SessionInfo, 0, len(list))
	for _, ss := range list {
		infos = append(infos, ss.Info())
	}
	slices.SortFunc(infos, func(a, b SessionInfo) int {
		return strings.Compare(a.Peer, b.Peer)
	})
	return infos
}
