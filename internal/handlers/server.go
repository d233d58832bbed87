// internal/handlers/server.go
package handlers

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"

	"github.com/gambitchess/gambit/internal/database"
	"github.com/gambitchess/gambit/internal/game"
	"github.com/gambitchess/gambit/internal/journal"
	"github.com/gambitchess/gambit/internal/matchmaking"
)

// Server wires the matchmaker, the open tables, the active rooms and the
// persistence collaborators behind the WebSocket endpoint. Journal and
// Results may be nil; play works without them.
type Server struct {
	Log        *logrus.Logger
	Matchmaker *matchmaking.Matchmaker
	Tables     *matchmaking.TableStore
	Registry   *game.Registry
	Journal    *journal.Journal
	Results    *database.ResultStore

	mu      sync.Mutex
	clients map[string]*client
}

// NewServer assembles a server around fresh in-memory state.
func NewServer(log *logrus.Logger, j *journal.Journal, results *database.ResultStore) *Server {
	return &Server{
		Log:        log,
		Matchmaker: matchmaking.NewMatchmaker(log),
		Tables:     matchmaking.NewTableStore(),
		Registry:   game.NewRegistry(),
		Journal:    j,
		Results:    results,
		clients:    make(map[string]*client),
	}
}

// client is one live WebSocket connection. All writes go through the out
// channel so the read loop and the sweeps never block on a slow socket.
type client struct {
	id   string
	conn *websocket.Conn
	out  chan []byte

	closeOnce sync.Once
	done      chan struct{}
}

func newClient(id string, conn *websocket.Conn) *client {
	return &client{
		id:   id,
		conn: conn,
		out:  make(chan []byte, 64),
		done: make(chan struct{}),
	}
}

// close stops the write pump. Safe to call more than once.
func (c *client) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// writePump drains the out channel onto the socket until the client closes.
func (c *client) writePump(ctx context.Context, log *logrus.Logger) {
	for {
		select {
		case <-c.done:
			return
		case <-ctx.Done():
			return
		case data := <-c.out:
			writeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			err := c.conn.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				log.WithField("conn_id", c.id).Warnf("websocket write failed: %v", err)
				return
			}
		}
	}
}

// addClient registers a live connection.
func (s *Server) addClient(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[c.id] = c
}

// removeClient drops a connection from the roster.
func (s *Server) removeClient(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.clients[id]; ok {
		c.close()
		delete(s.clients, id)
	}
}

// clientByID looks up a live connection.
func (s *Server) clientByID(id string) (*client, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.clients[id]
	return c, ok
}

// send marshals a message onto a client's out channel. Messages to a client
// with a full buffer are dropped; the write pump will notice a dead socket
// soon enough.
func (s *Server) send(c *client, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		s.Log.Errorf("failed to marshal outbound message: %v", err)
		return
	}
	select {
	case c.out <- data:
	default:
		s.Log.WithField("conn_id", c.id).Warn("outbound buffer full, dropping message")
	}
}

// sendTo sends to a connection id if it is still live.
func (s *Server) sendTo(connID string, v interface{}) {
	if c, ok := s.clientByID(connID); ok {
		s.send(c, v)
	}
}

// broadcast sends to every live connection.
func (s *Server) broadcast(v interface{}) {
	s.mu.Lock()
	targets := make([]*client, 0, len(s.clients))
	for _, c := range s.clients {
		targets = append(targets, c)
	}
	s.mu.Unlock()

	for _, c := range targets {
		s.send(c, v)
	}
}
