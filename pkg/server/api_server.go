// Copyright (c) 2022 NTT Communications Corporation
//
// This software is released under the MIT License.
// see https://github.com/nttcom/l2info/blob/main/LICENSE

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/nttcom/l2info/internal/pkg/layer2"
	"github.com/nttcom/l2info/internal/pkg/snapshot"
)

const maxSnapshotSize = 16 << 20

// SessionLister is implemented by Server.
type SessionLister interface {
	Sessions() []SessionInfo
}

// APIServer serves the layer2 database and the DLEP session list over HTTP.
type APIServer struct {
	db       *layer2.DB
	sessions SessionLister
	metrics  *Metrics
	logger   *zap.Logger
	router   chi.Router
}

func NewAPIServer(db *layer2.DB, sessions SessionLister, metrics *Metrics, logger *zap.Logger) *APIServer {
	s := &APIServer{
		db:       db,
		sessions: sessions,
		metrics:  metrics,
		logger:   logger,
	}
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/layer2", s.exportLayer2)
		r.Post("/layer2", s.importLayer2)
		r.Post("/layer2/command", s.layer2Command)
		r.Put("/layer2/origins/{origin}", s.replaceOrigin)
		r.Delete("/layer2/origins/{origin}", s.removeOrigin)
		r.Get("/sessions", s.listSessions)
	})
	s.router = r
	return s
}

func (s *APIServer) Handler() http.Handler {
	return s.router
}

// Serve listens on address:port until ctx is cancelled.
func (s *APIServer) Serve(ctx context.Context, address string, port string) error {
	listenInfo := net.JoinHostPort(address, port)
	s.logger.Info("API listen", zap.String("listenInfo", listenInfo), zap.String("server", "http"))
	return serveHTTP(ctx, listenInfo, s.router)
}

// ServeMetrics exposes the prometheus registry on address:port.
func ServeMetrics(ctx context.Context, m *Metrics, address string, port string, logger *zap.Logger) error {
	listenInfo := net.JoinHostPort(address, port)
	logger.Info("Metrics listen", zap.String("listenInfo", listenInfo), zap.String("server", "metrics"))
	return serveHTTP(ctx, listenInfo, metricsRouter(m))
}

func metricsRouter(m *Metrics) http.Handler {
	r := chi.NewRouter()
	r.Handle("/metrics", m.Handler())
	return r
}

func serveHTTP(ctx context.Context, listenInfo string, h http.Handler) error {
	srv := &http.Server{
		Addr:              listenInfo,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *APIServer) exportLayer2(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := snapshot.Write(s.db, w); err != nil {
		s.logger.Info("Export write error", zap.Error(err))
	}
}

func (s *APIServer) importLayer2(w http.ResponseWriter, r *http.Request) {
	body, ok := s.readBody(w, r)
	if !ok {
		return
	}
	err := snapshot.Import(s.db, body)
	s.importDone(w, err)
}

func (s *APIServer) replaceOrigin(w http.ResponseWriter, r *http.Request) {
	body, ok := s.readBody(w, r)
	if !ok {
		return
	}
	err := snapshot.Replace(s.db, chi.URLParam(r, "origin"), body)
	s.importDone(w, err)
}

// layer2Command runs a text command ("export", "import <json>" or
// "replace <origin> <json>") given as the request body.
func (s *APIServer) layer2Command(w http.ResponseWriter, r *http.Request) {
	body, ok := s.readBody(w, r)
	if !ok {
		return
	}
	var out bytes.Buffer
	err := snapshot.Command(s.db, string(body), &out)
	if out.Len() == 0 {
		s.importDone(w, err)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(out.Bytes())
}

func (s *APIServer) removeOrigin(w http.ResponseWriter, r *http.Request) {
	origin := chi.URLParam(r, "origin")
	if !snapshot.RemoveOrigin(s.db, origin) {
		http.Error(w, "unknown origin", http.StatusNotFound)
		return
	}
	s.logger.Info("Removed layer2 origin", zap.String("origin", origin))
	w.WriteHeader(http.StatusNoContent)
}

func (s *APIServer) listSessions(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.sessions.Sessions()); err != nil {
		s.logger.Info("Session list write error", zap.Error(err))
	}
}

func (s *APIServer) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxSnapshotSize))
	if err != nil {
		http.Error(w, err.Error(), http.StatusRequestEntityTooLarge)
		return nil, false
	}
	return body, true
}

func (s *APIServer) importDone(w http.ResponseWriter, err error) {
	s.metrics.importResult(err)
	if err != nil {
		s.logger.Info("Snapshot import failed", zap.Error(err))
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
