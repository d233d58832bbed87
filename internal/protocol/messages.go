// internal/protocol/messages.go
package protocol

import (
	"github.com/google/uuid"

	"github.com/gambitchess/gambit/internal/models"
)

// Version is the single protocol version the server speaks. Every client
// message must carry `v` equal to this value.
const Version = 1

// MessageType tags every message on the wire, client and server side alike.
type MessageType string

// Client message types.
const (
	TypeJoinQueue   MessageType = "join_queue"
	TypeLeaveQueue  MessageType = "leave_queue"
	TypeCreateTable MessageType = "create_table"
	TypeJoinTable   MessageType = "join_table"
	TypeLeaveTable  MessageType = "leave_table"
	TypeMakeMove    MessageType = "make_move"
	TypeResign      MessageType = "resign"
	TypeOfferDraw   MessageType = "offer_draw"
	TypeAcceptDraw  MessageType = "accept_draw"
	TypeDeclineDraw MessageType = "decline_draw"
	TypeReconnect   MessageType = "reconnect"
)

// Message is the closed set of validated client messages. The dispatch switch
// in the handlers package enumerates every implementation.
type Message interface {
	Kind() MessageType
}

// JoinQueue asks to be paired with an anonymous opponent.
type JoinQueue struct {
	PlayerName  string              `json:"playerName"`
	Elo         *int                `json:"elo,omitempty"`
	TimeControl *models.TimeControl `json:"timeControl,omitempty"`
}

// LeaveQueue withdraws a pending queue entry.
type LeaveQueue struct{}

// CreateTable opens a table other players can join directly.
type CreateTable struct {
	PlayerName  string              `json:"playerName"`
	Elo         *int                `json:"elo,omitempty"`
	TimeControl *models.TimeControl `json:"timeControl,omitempty"`
}

// JoinTable sits down at an open table, starting the match.
type JoinTable struct {
	TableID    uuid.UUID `json:"tableId"`
	PlayerName string    `json:"playerName"`
	Elo        *int      `json:"elo,omitempty"`
}

// LeaveTable closes the caller's open table.
type LeaveTable struct{}

// MakeMove plays a move in the caller's active game.
type MakeMove struct {
	GameID uuid.UUID `json:"gameId"`
	Move   string    `json:"move"`
}

// Resign concedes the caller's active game.
type Resign struct {
	GameID uuid.UUID `json:"gameId"`
}

// OfferDraw proposes ending the game without a decisive result.
type OfferDraw struct {
	GameID uuid.UUID `json:"gameId"`
}

// AcceptDraw accepts the opponent's outstanding draw offer.
type AcceptDraw struct {
	GameID uuid.UUID `json:"gameId"`
}

// DeclineDraw rejects the opponent's outstanding draw offer.
type DeclineDraw struct {
	GameID uuid.UUID `json:"gameId"`
}

// Reconnect resumes a seat in an in-progress game using the per-seat token
// issued in game_found.
type Reconnect struct {
	PlayerToken uuid.UUID `json:"playerToken"`
	GameID      uuid.UUID `json:"gameId"`
}

func (JoinQueue) Kind() MessageType   { return TypeJoinQueue }
func (LeaveQueue) Kind() MessageType  { return TypeLeaveQueue }
func (CreateTable) Kind() MessageType { return TypeCreateTable }
func (JoinTable) Kind() MessageType   { return TypeJoinTable }
func (LeaveTable) Kind() MessageType  { return TypeLeaveTable }
func (MakeMove) Kind() MessageType    { return TypeMakeMove }
func (Resign) Kind() MessageType      { return TypeResign }
func (OfferDraw) Kind() MessageType   { return TypeOfferDraw }
func (AcceptDraw) Kind() MessageType  { return TypeAcceptDraw }
func (DeclineDraw) Kind() MessageType { return TypeDeclineDraw }
func (Reconnect) Kind() MessageType   { return TypeReconnect }
