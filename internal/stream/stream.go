// Package stream pushes engine snapshots to dashboard clients over websockets.
package stream

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/ANIKETSHETTY47/household-energy-simulator/internal/simulation"
)

const writeWait = 5 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Source provides the state pushed to clients.
type Source interface {
	Snapshot() simulation.Snapshot
}

// Frame is one websocket message. Type is "init" or "update".
type Frame struct {
	Type string              `json:"type"`
	Data simulation.Snapshot `json:"data"`
}

type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) write(f Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(f)
}

type Server struct {
	mux         *http.ServeMux
	src         Source
	interval    time.Duration
	autoRefresh bool
	log         zerolog.Logger

	clientsMu sync.RWMutex
	clients   map[*client]struct{}
}

// New builds the server. Updates are pushed every interval while autoRefresh is set.
func New(src Source, interval time.Duration, autoRefresh bool, log zerolog.Logger) *Server {
	s := &Server{
		mux:         http.NewServeMux(),
		src:         src,
		interval:    interval,
		autoRefresh: autoRefresh,
		log:         log.With().Str("component", "stream").Logger(),
		clients:     make(map[*client]struct{}),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealthz)
	s.mux.HandleFunc("/ws", s.handleWebSocket)
	s.mux.HandleFunc("/api/snapshot", s.handleSnapshot)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket upgrade")
		return
	}
	c := &client{conn: conn}
	if err := c.write(Frame{Type: "init", Data: s.src.Snapshot()}); err != nil {
		conn.Close()
		return
	}

	s.clientsMu.Lock()
	s.clients[c] = struct{}{}
	s.clientsMu.Unlock()
	defer s.remove(c)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) remove(c *client) {
	s.clientsMu.Lock()
	delete(s.clients, c)
	s.clientsMu.Unlock()
	c.conn.Close()
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "online"})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.src.Snapshot()); err != nil {
		s.log.Error().Err(err).Msg("encode snapshot")
	}
}

// ClientCount returns the number of connected clients.
func (s *Server) ClientCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}

// Broadcast sends an update to every client, dropping those that fail.
func (s *Server) Broadcast() {
	s.clientsMu.RLock()
	clients := make([]*client, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.clientsMu.RUnlock()
	if len(clients) == 0 {
		return
	}

	f := Frame{Type: "update", Data: s.src.Snapshot()}
	for _, c := range clients {
		if err := c.write(f); err != nil {
			s.remove(c)
		}
	}
}

// Run pushes periodic updates until ctx is done. It returns at once when
// auto refresh is off.
func (s *Server) Run(ctx context.Context) {
	if !s.autoRefresh || s.interval <= 0 {
		return
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Broadcast()
		}
	}
}
