// Package ws owns the client-facing websocket endpoint: it upgrades
// connections and hands each one to a relay client for the authentication
// handshake.
package ws

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/loqui-chat/loqui/internal/relay"
)

// Config holds the connection server settings.
type Config struct {
	Addr             string
	AllowedOrigins   string // comma-separated; empty or "*" allows all
	HandshakeTimeout time.Duration
}

// Server accepts websocket connections and wires them into the relay.
type Server struct {
	srv              *http.Server
	upgrader         websocket.Upgrader
	registry         *relay.Registry
	auth             relay.Authorizer
	log              *zap.Logger
	handshakeTimeout time.Duration

	baseCtx context.Context
}

// NewServer builds the connection server. ctx bounds the lifetime of work
// started on behalf of accepted connections.
func NewServer(ctx context.Context, cfg Config, registry *relay.Registry, auth relay.Authorizer, log *zap.Logger) *Server {
	s := &Server{
		registry:         registry,
		auth:             auth,
		log:              log.With(zap.String("module", "ws")),
		handshakeTimeout: cfg.HandshakeTimeout,
		baseCtx:          ctx,
	}

	allowed := parseOrigins(cfg.AllowedOrigins)
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			return checkOrigin(r, allowed)
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	s.srv = &http.Server{
		Addr:         cfg.Addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// ListenAndServe blocks serving connections until Shutdown.
func (s *Server) ListenAndServe() error {
	s.log.Info("listening for websocket connections", zap.String("address", s.srv.Addr))
	return s.srv.ListenAndServe()
}

// Shutdown gracefully stops the HTTP listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Info("websocket upgrade failed", zap.Error(err))
		return
	}
	s.log.Info("client connected", zap.String("remote", r.RemoteAddr))

	client := relay.NewClient(conn, s.registry, s.auth, s.handshakeTimeout, s.log)
	client.Start(s.baseCtx)
}

func parseOrigins(raw string) []string {
	if raw == "" {
		return []string{"*"}
	}
	return strings.Split(raw, ",")
}

func checkOrigin(r *http.Request, allowed []string) bool {
	if allowed[0] == "*" {
		return true
	}
	origin := r.Header.Get("Origin")
	for _, o := range allowed {
		if o == origin {
			return true
		}
	}
	return false
}
