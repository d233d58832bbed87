// internal/handlers/ws.go
package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/gambitchess/gambit/internal/auth"
	"github.com/gambitchess/gambit/internal/protocol"
)

const sessionCookieName = "gambit_session"

// WSHandler upgrades the connection, establishes a session cookie, and runs
// the read loop until the client goes away. Every live connection gets a
// fresh connection id; identity across reconnects comes from the per-seat
// reconnect tokens, not the socket.
func (s *Server) WSHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := s.ensureSession(w, r); err != nil {
			s.Log.Warnf("session setup failed: %v", err)
			http.Error(w, "session setup failed", http.StatusInternalServerError)
			return
		}

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{"gambit"},
			OriginPatterns: []string{"*"}, // Adjust for production security.
		})
		if err != nil {
			s.Log.Warnf("websocket accept error: %v", err)
			return
		}
		defer conn.Close(websocket.StatusInternalError, "internal error during handler exit")

		if conn.Subprotocol() != "gambit" {
			conn.Close(BadSubprotocolError, "client must use the 'gambit' subprotocol")
			return
		}

		c := newClient(uuid.NewString(), conn)
		s.addClient(c)
		s.Log.WithField("conn_id", c.id).Infof("websocket connected from %s", r.RemoteAddr)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()
		go c.writePump(ctx, s.Log)

		// New arrivals see the open tables right away.
		s.sendTables(c)

		s.readLoop(ctx, c)

		s.Log.WithField("conn_id", c.id).Info("websocket read loop exited")
		s.handleDisconnect(c.id)
		s.removeClient(c.id)
	}
}

// ensureSession authenticates the session cookie, minting a fresh anonymous
// session when the cookie is absent or stale.
func (s *Server) ensureSession(w http.ResponseWriter, r *http.Request) (string, error) {
	if cookie, err := r.Cookie(sessionCookieName); err == nil {
		if sessionID, err := auth.AuthenticateJWT(cookie.Value); err == nil {
			return sessionID, nil
		}
	}

	sessionID := uuid.NewString()
	token, err := auth.CreateJWT(sessionID)
	if err != nil {
		return "", err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		HttpOnly: true,
		Path:     "/",
	})
	return sessionID, nil
}

// sendTables pushes the current open-table list to one client.
func (s *Server) sendTables(c *client) {
	s.send(c, s.tablesList())
}

// readLoop reads, validates and dispatches client messages until the
// connection closes or the context is cancelled.
func (s *Server) readLoop(ctx context.Context, c *client) {
	for {
		msgType, data, err := c.conn.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			switch {
			case status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway:
				s.Log.WithField("conn_id", c.id).Info("websocket closed normally")
			case strings.Contains(err.Error(), "context canceled"):
				s.Log.WithField("conn_id", c.id).Info("websocket context canceled")
			default:
				s.Log.WithField("conn_id", c.id).Warnf("websocket read error: %v", err)
			}
			return
		}
		if msgType != websocket.MessageText {
			continue
		}

		msg, verr := protocol.Validate(data)
		if verr != nil {
			s.send(c, protocol.NewError(verr.Code, verr.Message))
			continue
		}
		s.dispatch(c, msg)

		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}
