// Package server exposes the collaboration hub over HTTP: a WebSocket
// endpoint for clients plus health and stats routes. Identity is assumed
// verified upstream by the web application's session layer before a client
// reaches this port; everything arriving here is untrusted-but-authenticated
// input.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"

	"github.com/workhive/collab/internal/collab"
	"github.com/workhive/collab/internal/config"
	"github.com/workhive/collab/internal/logger"
)

// Server owns one collaboration hub and its HTTP front
type Server struct {
	cfg        *config.Config
	hub        *collab.Hub
	router     *collab.Router
	sweeper    *collab.Sweeper
	upgrader   websocket.Upgrader
	httpServer *http.Server
	listener   net.Listener
	log        *logger.Logger
}

// New assembles a server instance. All collaboration state is owned here,
// so independent servers can coexist in one process.
func New(cfg *config.Config, log *logger.Logger) *Server {
	if log == nil {
		log = logger.Global()
	}

	hub := collab.NewHub(cfg.HistoryLimit, cfg.ReplayCount, log)
	broadcaster := collab.NewBroadcaster(hub, log)
	router := collab.NewRouter(hub, broadcaster, nil, log)
	sweeper := collab.NewSweeper(hub, router, cfg.SweepInterval(), cfg.StaleThreshold(), log)

	return &Server{
		cfg:     cfg,
		hub:     hub,
		router:  router,
		sweeper: sweeper,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// Origin checks are the session layer's responsibility
				return true
			},
		},
		log: log,
	}
}

// Start binds the listener and serves in the background
func (s *Server) Start() error {
	mux := httprouter.New()
	mux.GET("/ws", s.handleWebSocket)
	mux.GET("/healthz", s.handleHealth)
	mux.GET("/stats", s.handleStats)

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", s.cfg.Port))
	if err != nil {
		return fmt.Errorf("failed to listen on port %d: %w", s.cfg.Port, err)
	}
	s.listener = listener

	// No global read/write timeouts: connections are long-lived and their
	// liveness is handled per-socket by heartbeats and the sweep.
	s.httpServer = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go s.sweeper.Run()

	go func() {
		s.log.Info("collaboration server listening on %s", listener.Addr())
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.log.Error("HTTP server error: %v", err)
		}
	}()

	return nil
}

// Addr returns the bound listen address; useful with an ephemeral port
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop shuts the server down, closing the listener and stopping the sweep
func (s *Server) Stop() error {
	s.log.Info("stopping collaboration server")
	s.sweeper.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}
	return nil
}

// Hub exposes the hub for inspection
func (s *Server) Hub() *collab.Hub {
	return s.hub
}

// handleWebSocket upgrades the connection, registers it and starts its pumps
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error("failed to upgrade WebSocket: %v", err)
		return
	}

	client := NewClient(conn, s.router, s.hub, s.cfg.HeartbeatInterval(), s.cfg.MaxMessage, s.cfg.SendQueue, s.log)
	id := s.hub.Connect(client)
	client.Bind(id)

	s.log.Info("connection %s accepted from %s", id, conn.RemoteAddr())

	go client.WritePump()

	// Greet before reading so the welcome precedes any reply to client traffic
	s.router.Greet(id)

	go client.ReadPump()
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.hub.Stats()); err != nil {
		s.log.Error("failed to encode stats: %v", err)
	}
}
