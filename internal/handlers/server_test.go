package handlers

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gambitchess/gambit/internal/game"
	"github.com/gambitchess/gambit/internal/models"
	"github.com/gambitchess/gambit/internal/protocol"
)

func newTestServer() *Server {
	log := logrus.New()
	log.SetOutput(io.Discard)
	// nil Journal and Results: persistence is optional.
	return NewServer(log, nil, nil)
}

// connect registers a fake connection. Outbound messages land in the client's
// out channel, where recv picks them up.
func connect(s *Server, id string) *client {
	c := newClient(id, nil)
	s.addClient(c)
	return c
}

// recv decodes the next outbound message for c into v.
func recv(t *testing.T, c *client, v interface{}) {
	t.Helper()
	select {
	case data := <-c.out:
		require.NoError(t, json.Unmarshal(data, v))
	case <-time.After(time.Second):
		t.Fatalf("no message for connection %s", c.id)
	}
}

// recvType asserts the next message's type tag and returns its raw JSON.
func recvType(t *testing.T, c *client, want protocol.MessageType) []byte {
	t.Helper()
	select {
	case data := <-c.out:
		var env struct {
			Type protocol.MessageType `json:"type"`
		}
		require.NoError(t, json.Unmarshal(data, &env))
		require.Equal(t, want, env.Type, "payload: %s", data)
		return data
	case <-time.After(time.Second):
		t.Fatalf("no message for connection %s", c.id)
		return nil
	}
}

func assertNoMessage(t *testing.T, c *client) {
	t.Helper()
	select {
	case data := <-c.out:
		t.Fatalf("unexpected message for %s: %s", c.id, data)
	case <-time.After(20 * time.Millisecond):
	}
}

func elo(v int) *int { return &v }

// pairUp queues two compatible players and returns their game_found frames.
func pairUp(t *testing.T, s *Server, a, b *client) (protocol.GameFound, protocol.GameFound) {
	t.Helper()
	s.dispatch(a, protocol.JoinQueue{PlayerName: "ada", Elo: elo(1500)})
	recvType(t, a, protocol.TypeQueueStatus)

	s.dispatch(b, protocol.JoinQueue{PlayerName: "bo", Elo: elo(1520)})

	var gfA, gfB protocol.GameFound
	recv(t, a, &gfA)
	recv(t, b, &gfB)
	require.Equal(t, protocol.TypeGameFound, gfA.Type)
	require.Equal(t, protocol.TypeGameFound, gfB.Type)
	return gfA, gfB
}

func TestQueuePairingDealsGameFound(t *testing.T) {
	s := newTestServer()
	a, b := connect(s, "a"), connect(s, "b")

	gfA, gfB := pairUp(t, s, a, b)

	assert.Equal(t, gfA.GameID, gfB.GameID)
	assert.Equal(t, models.ColorWhite, gfA.Color) // first in queue hosts white
	assert.Equal(t, models.ColorBlack, gfB.Color)
	assert.NotEqual(t, gfA.PlayerToken, gfB.PlayerToken)
	assert.Equal(t, "bo", gfA.Opponent.Name)
	assert.Equal(t, "ada", gfB.Opponent.Name)
	assert.EqualValues(t, 600_000, gfA.Clocks.WhiteMs)

	_, ok := s.Registry.Room(gfA.GameID)
	assert.True(t, ok)
}

func TestQueueStatusWhileWaiting(t *testing.T) {
	s := newTestServer()
	a := connect(s, "a")

	s.dispatch(a, protocol.JoinQueue{PlayerName: "ada", Elo: elo(1500)})
	var qs protocol.QueueStatus
	recv(t, a, &qs)
	assert.Equal(t, 1, qs.Position)

	s.dispatch(a, protocol.LeaveQueue{})
	assert.Equal(t, -1, s.Matchmaker.GetPosition("a"))
}

func TestMoveFansOutToBothSeats(t *testing.T) {
	s := newTestServer()
	a, b := connect(s, "a"), connect(s, "b")
	gfA, _ := pairUp(t, s, a, b)

	s.dispatch(a, protocol.MakeMove{GameID: gfA.GameID, Move: "e4"})

	var ack protocol.MoveAck
	recv(t, a, &ack)
	assert.Equal(t, protocol.TypeMoveAck, ack.Type)
	assert.Equal(t, "e4", ack.Move)
	assert.Equal(t, models.ColorBlack, ack.Turn)

	var om protocol.OpponentMove
	recv(t, b, &om)
	assert.Equal(t, protocol.TypeOpponentMove, om.Type)
	assert.Equal(t, "e4", om.Move)
	assert.Equal(t, ack.FEN, om.FEN)
}

func TestMoveRejections(t *testing.T) {
	s := newTestServer()
	a, b := connect(s, "a"), connect(s, "b")
	gfA, _ := pairUp(t, s, a, b)

	s.dispatch(b, protocol.MakeMove{GameID: gfA.GameID, Move: "e5"})
	var em protocol.ErrorMessage
	recv(t, b, &em)
	assert.Equal(t, protocol.CodeNotYourTurn, em.Code)

	s.dispatch(a, protocol.MakeMove{GameID: gfA.GameID, Move: "Ke2"})
	recv(t, a, &em)
	assert.Equal(t, protocol.CodeIllegalMove, em.Code)

	stranger := connect(s, "x")
	s.dispatch(stranger, protocol.MakeMove{GameID: gfA.GameID, Move: "e4"})
	recv(t, stranger, &em)
	assert.Equal(t, protocol.CodeNotAPlayer, em.Code)
}

func TestResignEndsGameForBoth(t *testing.T) {
	s := newTestServer()
	a, b := connect(s, "a"), connect(s, "b")
	gfA, _ := pairUp(t, s, a, b)

	s.dispatch(b, protocol.Resign{GameID: gfA.GameID})

	var overA, overB protocol.GameOver
	recv(t, a, &overA)
	recv(t, b, &overB)
	assert.Equal(t, "white", overA.Result)
	assert.Equal(t, "white", overB.Result)
	assert.Equal(t, game.ReasonResignation, overA.Reason)
	assert.Equal(t, -overB.EloChange, overA.EloChange)
	assert.Greater(t, overA.EloChange, 0)

	// Acting in the finished game is rejected.
	s.dispatch(a, protocol.MakeMove{GameID: gfA.GameID, Move: "e4"})
	var em protocol.ErrorMessage
	recv(t, a, &em)
	assert.Equal(t, protocol.CodeGameOver, em.Code)
}

func TestDrawNegotiation(t *testing.T) {
	s := newTestServer()
	a, b := connect(s, "a"), connect(s, "b")
	gfA, _ := pairUp(t, s, a, b)

	s.dispatch(a, protocol.OfferDraw{GameID: gfA.GameID})
	recvType(t, b, protocol.TypeDrawOffered)

	s.dispatch(b, protocol.DeclineDraw{GameID: gfA.GameID})
	recvType(t, a, protocol.TypeDrawDeclined)

	// Second round: black offers, white accepts.
	s.dispatch(b, protocol.OfferDraw{GameID: gfA.GameID})
	recvType(t, a, protocol.TypeDrawOffered)
	s.dispatch(a, protocol.AcceptDraw{GameID: gfA.GameID})

	var overA, overB protocol.GameOver
	recv(t, a, &overA)
	recv(t, b, &overB)
	assert.Equal(t, "draw", overA.Result)
	assert.Equal(t, game.ReasonAgreedDraw, overA.Reason)
	assert.Equal(t, 0, overB.EloChange)
}

func TestDuplicateDrawOfferIsSilent(t *testing.T) {
	s := newTestServer()
	a, b := connect(s, "a"), connect(s, "b")
	gfA, _ := pairUp(t, s, a, b)

	s.dispatch(a, protocol.OfferDraw{GameID: gfA.GameID})
	recvType(t, b, protocol.TypeDrawOffered)

	s.dispatch(a, protocol.OfferDraw{GameID: gfA.GameID})
	assertNoMessage(t, a)
	assertNoMessage(t, b)
}

func TestTableFlow(t *testing.T) {
	s := newTestServer()
	host, guest := connect(s, "h"), connect(s, "g")

	s.dispatch(host, protocol.CreateTable{PlayerName: "ada", Elo: elo(1500)})
	var tc protocol.TableCreated
	recv(t, host, &tc)
	require.Equal(t, protocol.TypeTableCreated, tc.Type)

	// Both connections see the broadcast table list.
	recvType(t, host, protocol.TypeTablesList)
	data := recvType(t, guest, protocol.TypeTablesList)
	var list protocol.TablesList
	require.NoError(t, json.Unmarshal(data, &list))
	require.Len(t, list.Tables, 1)
	assert.Equal(t, "ada", list.Tables[0].HostName)

	s.dispatch(guest, protocol.JoinTable{TableID: tc.TableID, PlayerName: "bo", Elo: elo(1600)})

	var gfHost, gfGuest protocol.GameFound
	recv(t, host, &gfHost)
	recv(t, guest, &gfGuest)
	assert.Equal(t, models.ColorWhite, gfHost.Color) // host plays white
	assert.Equal(t, models.ColorBlack, gfGuest.Color)
	assert.Empty(t, s.Tables.List())
}

func TestJoiningTableWithdrawsQueueEntry(t *testing.T) {
	s := newTestServer()
	host, guest := connect(s, "h"), connect(s, "g")

	s.dispatch(guest, protocol.JoinQueue{PlayerName: "bo", Elo: elo(1500)})
	recvType(t, guest, protocol.TypeQueueStatus)

	s.dispatch(host, protocol.CreateTable{PlayerName: "ada", Elo: elo(2400)})
	var tc protocol.TableCreated
	recv(t, host, &tc)
	recvType(t, host, protocol.TypeTablesList)
	recvType(t, guest, protocol.TypeTablesList)

	s.dispatch(guest, protocol.JoinTable{TableID: tc.TableID, PlayerName: "bo", Elo: elo(1500)})
	recvType(t, host, protocol.TypeGameFound)
	recvType(t, guest, protocol.TypeGameFound)

	// A seat and a queue entry never coexist, so the guest's entry is gone
	// and a later arrival cannot pair against it.
	assert.Equal(t, -1, s.Matchmaker.GetPosition("g"))
	assert.Equal(t, 0, s.Matchmaker.Len())
}

func TestPairingFromQueueClosesHostedTable(t *testing.T) {
	s := newTestServer()
	host, other := connect(s, "h"), connect(s, "o")

	s.dispatch(host, protocol.CreateTable{PlayerName: "ada", Elo: elo(1500)})
	var tc protocol.TableCreated
	recv(t, host, &tc)
	recvType(t, host, protocol.TypeTablesList)
	recvType(t, other, protocol.TypeTablesList)

	s.dispatch(host, protocol.JoinQueue{PlayerName: "ada", Elo: elo(1500)})
	recvType(t, host, protocol.TypeQueueStatus)
	s.dispatch(other, protocol.JoinQueue{PlayerName: "bo", Elo: elo(1520)})

	// The pairing withdraws the host's open table before the seats deal.
	data := recvType(t, host, protocol.TypeTablesList)
	var list protocol.TablesList
	require.NoError(t, json.Unmarshal(data, &list))
	assert.Empty(t, list.Tables)
	recvType(t, other, protocol.TypeTablesList)

	recvType(t, host, protocol.TypeGameFound)
	recvType(t, other, protocol.TypeGameFound)
	assert.Empty(t, s.Tables.List())
}

func TestJoinQueueWhileSeatedRejected(t *testing.T) {
	s := newTestServer()
	a, b := connect(s, "a"), connect(s, "b")
	pairUp(t, s, a, b)

	s.dispatch(a, protocol.JoinQueue{PlayerName: "ada", Elo: elo(1500)})
	var em protocol.ErrorMessage
	recv(t, a, &em)
	assert.Equal(t, protocol.CodeInvalidMessage, em.Code)
	assert.Equal(t, -1, s.Matchmaker.GetPosition("a"))
}

func TestJoinUnknownTable(t *testing.T) {
	s := newTestServer()
	g := connect(s, "g")

	s.dispatch(g, protocol.JoinTable{TableID: [16]byte{1}, PlayerName: "bo"})
	var em protocol.ErrorMessage
	recv(t, g, &em)
	assert.Equal(t, protocol.CodeUnknownTable, em.Code)
}

func TestDisconnectAndReconnect(t *testing.T) {
	s := newTestServer()
	a, b := connect(s, "a"), connect(s, "b")
	gfA, gfB := pairUp(t, s, a, b)

	s.handleDisconnect("b")
	s.removeClient("b")

	data := recvType(t, a, protocol.TypeOpponentDisconnected)
	var od protocol.OpponentDisconnected
	require.NoError(t, json.Unmarshal(data, &od))
	assert.Equal(t, 30, od.GraceSeconds)

	// Black returns on a new socket with the seat token.
	b2 := connect(s, "b2")
	s.dispatch(b2, protocol.Reconnect{PlayerToken: gfB.PlayerToken, GameID: gfA.GameID})

	var sync protocol.GameFound
	recv(t, b2, &sync)
	assert.Equal(t, gfA.GameID, sync.GameID)
	assert.Equal(t, models.ColorBlack, sync.Color)
	assert.Equal(t, gfB.PlayerToken, sync.PlayerToken)

	recvType(t, a, protocol.TypeOpponentReconnected)

	// The new socket can play.
	s.dispatch(a, protocol.MakeMove{GameID: gfA.GameID, Move: "e4"})
	recvType(t, a, protocol.TypeMoveAck)
	recvType(t, b2, protocol.TypeOpponentMove)
	s.dispatch(b2, protocol.MakeMove{GameID: gfA.GameID, Move: "e5"})
	recvType(t, b2, protocol.TypeMoveAck)
}

func TestReconnectBadToken(t *testing.T) {
	s := newTestServer()
	a, b := connect(s, "a"), connect(s, "b")
	gfA, _ := pairUp(t, s, a, b)

	x := connect(s, "x")
	s.dispatch(x, protocol.Reconnect{PlayerToken: [16]byte{9}, GameID: gfA.GameID})
	var em protocol.ErrorMessage
	recv(t, x, &em)
	assert.Equal(t, protocol.CodeInvalidToken, em.Code)
}

func TestSweepFinishedRemovesAbandonedRooms(t *testing.T) {
	s := newTestServer()
	a, b := connect(s, "a"), connect(s, "b")
	gfA, _ := pairUp(t, s, a, b)

	s.dispatch(a, protocol.Resign{GameID: gfA.GameID})
	recvType(t, a, protocol.TypeGameOver)
	recvType(t, b, protocol.TypeGameOver)

	// Room survives while a seat is still connected.
	s.SweepFinished(context.Background())
	require.Equal(t, 1, s.Registry.Len())

	s.handleDisconnect("a")
	s.handleDisconnect("b")
	s.SweepFinished(context.Background())
	assert.Equal(t, 0, s.Registry.Len())
}
