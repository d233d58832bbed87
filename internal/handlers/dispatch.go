// internal/handlers/dispatch.go
package handlers

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/gambitchess/gambit/internal/game"
	"github.com/gambitchess/gambit/internal/matchmaking"
	"github.com/gambitchess/gambit/internal/models"
	"github.com/gambitchess/gambit/internal/protocol"
	"github.com/gambitchess/gambit/internal/rating"
)

// dispatch routes one validated client message. It runs on the connection's
// read loop goroutine.
func (s *Server) dispatch(c *client, msg protocol.Message) {
	switch m := msg.(type) {
	case protocol.JoinQueue:
		s.handleJoinQueue(c, m)
	case protocol.LeaveQueue:
		s.Matchmaker.RemovePlayer(c.id)
	case protocol.CreateTable:
		s.handleCreateTable(c, m)
	case protocol.JoinTable:
		s.handleJoinTable(c, m)
	case protocol.LeaveTable:
		if s.Tables.Leave(c.id) {
			s.broadcastTables()
		}
	case protocol.MakeMove:
		s.handleMakeMove(c, m)
	case protocol.Resign:
		s.handleResign(c, m)
	case protocol.OfferDraw:
		s.handleOfferDraw(c, m)
	case protocol.AcceptDraw:
		s.handleAcceptDraw(c, m)
	case protocol.DeclineDraw:
		s.handleDeclineDraw(c, m)
	case protocol.Reconnect:
		s.handleReconnect(c, m)
	default:
		s.send(c, protocol.NewError(protocol.CodeInvalidMessage, "unhandled message type"))
	}
}

// resolveRating picks the rating for a seat: the client's claim, the stored
// rating for the name, or the default.
func (s *Server) resolveRating(ctx context.Context, name string, claimed *int) int {
	if claimed != nil {
		return *claimed
	}
	if stored, ok, err := s.Results.LoadRating(ctx, name); err == nil && ok {
		return stored
	} else if err != nil {
		s.Log.Warnf("rating lookup failed for %q: %v", name, err)
	}
	return matchmaking.DefaultRating
}

func (s *Server) handleJoinQueue(c *client, m protocol.JoinQueue) {
	if room, ok := s.Registry.RoomByConnection(c.id); ok && room.State() == game.StatePlaying {
		s.send(c, protocol.NewError(protocol.CodeInvalidMessage, "already seated in a live game"))
		return
	}

	tc := models.DefaultTimeControl
	if m.TimeControl != nil {
		tc = *m.TimeControl
	}

	entry := matchmaking.QueueEntry{
		ConnectionID: c.id,
		Name:         m.PlayerName,
		Rating:       s.resolveRating(context.Background(), m.PlayerName, m.Elo),
		TimeControl:  tc,
	}

	if pair := s.Matchmaker.AddPlayer(entry); pair != nil {
		s.startMatch(*pair)
		return
	}
	s.send(c, protocol.QueueStatus{
		Type:     protocol.TypeQueueStatus,
		Position: s.Matchmaker.GetPosition(c.id),
	})
}

func (s *Server) handleCreateTable(c *client, m protocol.CreateTable) {
	tc := models.DefaultTimeControl
	if m.TimeControl != nil {
		tc = *m.TimeControl
	}
	elo := s.resolveRating(context.Background(), m.PlayerName, m.Elo)

	tbl, err := s.Tables.Create(c.id, m.PlayerName, elo, tc)
	if err != nil {
		s.send(c, protocol.NewError(protocol.CodeUnknownTable, err.Error()))
		return
	}
	s.send(c, protocol.TableCreated{Type: protocol.TypeTableCreated, TableID: tbl.ID})
	s.broadcastTables()
}

func (s *Server) handleJoinTable(c *client, m protocol.JoinTable) {
	tbl, err := s.Tables.Join(m.TableID, c.id)
	if err != nil {
		s.send(c, protocol.NewError(protocol.CodeUnknownTable, err.Error()))
		return
	}

	// The host takes white, the joiner black.
	pair := matchmaking.MatchPair{
		A: matchmaking.QueueEntry{
			ConnectionID: tbl.HostConnID,
			Name:         tbl.HostName,
			Rating:       tbl.HostRating,
			TimeControl:  tbl.TimeControl,
		},
		B: matchmaking.QueueEntry{
			ConnectionID: c.id,
			Name:         m.PlayerName,
			Rating:       s.resolveRating(context.Background(), m.PlayerName, m.Elo),
			TimeControl:  tbl.TimeControl,
		},
	}
	s.startMatch(pair)
	s.broadcastTables()
}

// tablesList renders the current open tables for the wire.
func (s *Server) tablesList() protocol.TablesList {
	tables := s.Tables.List()
	list := protocol.TablesList{
		Type:   protocol.TypeTablesList,
		Tables: make([]protocol.TableSummary, 0, len(tables)),
	}
	for _, t := range tables {
		list.Tables = append(list.Tables, protocol.TableSummary{
			TableID:     t.ID,
			HostName:    t.HostName,
			HostRating:  t.HostRating,
			TimeControl: t.TimeControl,
		})
	}
	return list
}

// broadcastTables pushes the current open-table list to everyone.
func (s *Server) broadcastTables() {
	s.broadcast(s.tablesList())
}

// startMatch seats pair.A as white and pair.B as black, registers the room
// and deals game_found to both sides. A queue entry and a seat never coexist
// for the same connection, so any leftover entries or hosted tables are
// withdrawn before the seats are taken.
func (s *Server) startMatch(pair matchmaking.MatchPair) {
	tableClosed := false
	for _, connID := range []string{pair.A.ConnectionID, pair.B.ConnectionID} {
		s.Matchmaker.RemovePlayer(connID)
		if s.Tables.Leave(connID) {
			tableClosed = true
		}
	}
	if tableClosed {
		s.broadcastTables()
	}

	white := &models.Player{
		ConnectionID:   pair.A.ConnectionID,
		Name:           pair.A.Name,
		Rating:         pair.A.Rating,
		ReconnectToken: uuid.New(),
		Connected:      true,
	}
	black := &models.Player{
		ConnectionID:   pair.B.ConnectionID,
		Name:           pair.B.Name,
		Rating:         pair.B.Rating,
		ReconnectToken: uuid.New(),
		Connected:      true,
	}

	room := game.NewRoom(white, black, pair.A.TimeControl, rating.Delta, s.Log)
	s.Registry.Add(room)

	s.Log.WithFields(logrus.Fields{
		"game_id": room.ID,
		"white":   white.Name,
		"black":   black.Name,
	}).Info("match started")

	snap := room.Snapshot()
	s.sendTo(white.ConnectionID, gameFound(snap, models.ColorWhite, white.ReconnectToken))
	s.sendTo(black.ConnectionID, gameFound(snap, models.ColorBlack, black.ReconnectToken))
}

func gameFound(snap game.Snapshot, color models.Color, token uuid.UUID) protocol.GameFound {
	opp := snap.Black
	if color == models.ColorBlack {
		opp = snap.White
	}
	return protocol.GameFound{
		Type:        protocol.TypeGameFound,
		GameID:      snap.GameID,
		Color:       color,
		FEN:         snap.FEN,
		PlayerToken: token,
		Opponent:    protocol.Opponent{Name: opp.Name, Rating: opp.Rating},
		TimeControl: snap.TimeControl,
		Clocks:      protocol.Clocks{WhiteMs: snap.WhiteMs, BlackMs: snap.BlackMs},
	}
}

// roomFor resolves the room for an in-game request, rejecting unknown ids.
func (s *Server) roomFor(c *client, gameID uuid.UUID) (*game.Room, bool) {
	room, ok := s.Registry.Room(gameID)
	if !ok {
		s.send(c, protocol.NewError(protocol.CodeUnknownGame, "no such game"))
		return nil, false
	}
	return room, true
}

func (s *Server) handleMakeMove(c *client, m protocol.MakeMove) {
	room, ok := s.roomFor(c, m.GameID)
	if !ok {
		return
	}

	out, rerr := room.MakeMove(c.id, m.Move)
	if rerr != nil {
		s.send(c, protocol.NewError(rerr.Code, rerr.Message))
		return
	}

	color, _ := room.PlayerByConn(c.id)
	clocks := protocol.Clocks{WhiteMs: out.WhiteMs, BlackMs: out.BlackMs}
	s.send(c, protocol.MoveAck{
		Type: protocol.TypeMoveAck, GameID: room.ID,
		Move: out.Move, FEN: out.FEN, Turn: out.Turn, Clocks: clocks,
	})
	if opp := room.Player(color.Other()); opp.Connected {
		s.sendTo(opp.ConnectionID, protocol.OpponentMove{
			Type: protocol.TypeOpponentMove, GameID: room.ID,
			Move: out.Move, FEN: out.FEN, Turn: out.Turn, Clocks: clocks,
		})
	}

	if out.Result != nil {
		s.finishMatch(room, out.Result)
	}
}

// rejectInGame explains why a room mutator no-opped: the caller holds no
// seat, or the game is already over.
func (s *Server) rejectInGame(c *client, room *game.Room) {
	if color, _ := room.PlayerByConn(c.id); color == "" {
		s.send(c, protocol.NewError(protocol.CodeNotAPlayer, "connection holds no seat in this game"))
		return
	}
	s.send(c, protocol.NewError(protocol.CodeGameOver, "game already finished"))
}

func (s *Server) handleResign(c *client, m protocol.Resign) {
	room, ok := s.roomFor(c, m.GameID)
	if !ok {
		return
	}
	res := room.Resign(c.id)
	if res == nil {
		s.rejectInGame(c, room)
		return
	}
	s.finishMatch(room, res)
}

func (s *Server) handleOfferDraw(c *client, m protocol.OfferDraw) {
	room, ok := s.roomFor(c, m.GameID)
	if !ok {
		return
	}
	if !room.OfferDraw(c.id) {
		// Duplicate or crossing offers are silently ignored; everything else
		// is a real rejection.
		if color, _ := room.PlayerByConn(c.id); color != "" && room.State() == game.StatePlaying {
			return
		}
		s.rejectInGame(c, room)
		return
	}
	color, _ := room.PlayerByConn(c.id)
	if opp := room.Player(color.Other()); opp.Connected {
		s.sendTo(opp.ConnectionID, protocol.DrawOffered{Type: protocol.TypeDrawOffered, GameID: room.ID})
	}
}

func (s *Server) handleAcceptDraw(c *client, m protocol.AcceptDraw) {
	room, ok := s.roomFor(c, m.GameID)
	if !ok {
		return
	}
	res := room.AcceptDraw(c.id)
	if res == nil {
		// No outstanding offer to accept; nothing changes.
		if color, _ := room.PlayerByConn(c.id); color != "" && room.State() == game.StatePlaying {
			return
		}
		s.rejectInGame(c, room)
		return
	}
	s.finishMatch(room, res)
}

func (s *Server) handleDeclineDraw(c *client, m protocol.DeclineDraw) {
	room, ok := s.roomFor(c, m.GameID)
	if !ok {
		return
	}
	if !room.DeclineDraw(c.id) {
		return
	}
	color, _ := room.PlayerByConn(c.id)
	if opp := room.Player(color.Other()); opp.Connected {
		s.sendTo(opp.ConnectionID, protocol.DrawDeclined{Type: protocol.TypeDrawDeclined, GameID: room.ID})
	}
}

func (s *Server) handleReconnect(c *client, m protocol.Reconnect) {
	room, ok := s.Registry.RoomByToken(m.PlayerToken)
	if !ok || room.ID != m.GameID {
		s.send(c, protocol.NewError(protocol.CodeInvalidToken, "unknown reconnect token"))
		return
	}

	// Capture the stale connection id before the seat is rebound.
	oldConnID := ""
	for _, col := range []models.Color{models.ColorWhite, models.ColorBlack} {
		if p := room.Player(col); p != nil && p.ReconnectToken == m.PlayerToken {
			oldConnID = p.ConnectionID
		}
	}

	seat := room.HandleReconnect(m.PlayerToken, c.id)
	if seat == nil {
		s.send(c, protocol.NewError(protocol.CodeInvalidToken, "seat cannot be resumed"))
		return
	}
	s.Registry.Rebind(oldConnID, c.id, room.ID)

	// Full state sync for the resumed seat.
	snap := room.Snapshot()
	color, _ := room.PlayerByConn(c.id)
	s.send(c, gameFound(snap, color, seat.ReconnectToken))

	if opp := room.Player(color.Other()); opp.Connected {
		s.sendTo(opp.ConnectionID, protocol.OpponentReconnected{
			Type: protocol.TypeOpponentReconnected, GameID: room.ID,
		})
	}
}

// handleDisconnect runs when a connection's read loop exits: the seat starts
// its grace period, queue entries and tables are withdrawn.
func (s *Server) handleDisconnect(connID string) {
	s.Matchmaker.RemovePlayer(connID)
	if s.Tables.Leave(connID) {
		s.broadcastTables()
	}

	room, ok := s.Registry.RoomByConnection(connID)
	if !ok {
		return
	}
	color := room.HandleDisconnect(connID)
	if color == "" {
		return
	}
	if opp := room.Player(color.Other()); opp.Connected {
		s.sendTo(opp.ConnectionID, protocol.OpponentDisconnected{
			Type:         protocol.TypeOpponentDisconnected,
			GameID:       room.ID,
			GraceSeconds: int(game.DisconnectGrace / time.Second),
		})
	}
}

// finishMatch fans the final result out to both seats and hands the record
// to the journal and the result store off the hot path.
func (s *Server) finishMatch(room *game.Room, res *game.MatchResult) {
	white := room.Player(models.ColorWhite)
	black := room.Player(models.ColorBlack)

	result := protocol.GameResult(res.Winner)
	if white.Connected {
		s.sendTo(white.ConnectionID, protocol.GameOver{
			Type: protocol.TypeGameOver, GameID: room.ID,
			Result: result, Reason: res.Reason, EloChange: res.WhiteDelta,
		})
	}
	if black.Connected {
		s.sendTo(black.ConnectionID, protocol.GameOver{
			Type: protocol.TypeGameOver, GameID: room.ID,
			Result: result, Reason: res.Reason, EloChange: res.BlackDelta,
		})
	}

	go s.persistResult(room, res)
}

func (s *Server) persistResult(room *game.Room, res *game.MatchResult) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.Journal.RecordMatch(ctx, room); err != nil {
		s.Log.Errorf("failed to journal match %s: %v", room.ID, err)
	}

	white := room.Player(models.ColorWhite)
	black := room.Player(models.ColorBlack)
	snap := room.Snapshot()
	err := s.Results.SaveMatch(ctx, room.ID,
		white.Name, black.Name,
		string(res.Winner), res.Reason, snap.MoveHistory,
		white.Rating, res.WhiteDelta, black.Rating, res.BlackDelta,
	)
	if err != nil {
		s.Log.Errorf("failed to persist match %s: %v", room.ID, err)
	}
}

// --- periodic sweeps, registered with the scheduler ---

// ScanQueue retries pairing with the widened windows.
func (s *Server) ScanQueue(ctx context.Context) {
	for _, pair := range s.Matchmaker.ScanForMatches() {
		s.startMatch(pair)
	}
}

// SweepQueueTimeouts expires stale queue entries and tells their owners.
func (s *Server) SweepQueueTimeouts(ctx context.Context) {
	for _, expired := range s.Matchmaker.CheckTimeouts() {
		s.sendTo(expired.Entry.ConnectionID, protocol.QueueTimeout{
			Type:          protocol.TypeQueueTimeout,
			WaitedSeconds: int(expired.Waited / time.Second),
		})
	}
}

// SweepDisconnects forfeits games whose vacated seats outran the grace
// period.
func (s *Server) SweepDisconnects(ctx context.Context) {
	for _, room := range s.Registry.Rooms() {
		if res := room.CheckDisconnectTimeout(); res != nil {
			s.finishMatch(room, res)
		}
	}
}

// SweepFinished drops finished rooms once both seats are gone. Until then
// the room stays resolvable so lingering clients can read the result.
func (s *Server) SweepFinished(ctx context.Context) {
	for _, room := range s.Registry.Rooms() {
		if room.State() == game.StateFinished && room.BothSeatsVacated() {
			s.Registry.Remove(room.ID)
		}
	}
}
