// internal/protocol/server.go
package protocol

import (
	"github.com/google/uuid"

	"github.com/gambitchess/gambit/internal/models"
)

// Server message types.
const (
	TypeQueueStatus          MessageType = "queue_status"
	TypeQueueTimeout         MessageType = "queue_timeout"
	TypeTableCreated         MessageType = "table_created"
	TypeTablesList           MessageType = "tables_list"
	TypeGameFound            MessageType = "game_found"
	TypeMoveAck              MessageType = "move_ack"
	TypeOpponentMove         MessageType = "opponent_move"
	TypeGameOver             MessageType = "game_over"
	TypeDrawOffered          MessageType = "draw_offered"
	TypeDrawDeclined         MessageType = "draw_declined"
	TypeOpponentDisconnected MessageType = "opponent_disconnected"
	TypeOpponentReconnected  MessageType = "opponent_reconnected"
	TypeError                MessageType = "error"
)

// Clocks is the pair of remaining times, in milliseconds, sent with every
// move acknowledgement and game snapshot.
type Clocks struct {
	WhiteMs int64 `json:"whiteMs"`
	BlackMs int64 `json:"blackMs"`
}

// Opponent is the public view of the other seat.
type Opponent struct {
	Name   string `json:"name"`
	Rating int    `json:"rating"`
}

// QueueStatus reports the caller's 1-based position in the matchmaking queue.
type QueueStatus struct {
	Type     MessageType `json:"type"`
	Position int         `json:"position"`
}

// QueueTimeout tells a player their queue entry expired unmatched.
type QueueTimeout struct {
	Type          MessageType `json:"type"`
	WaitedSeconds int         `json:"waitedSeconds"`
}

// TableCreated acknowledges create_table with the new table's id.
type TableCreated struct {
	Type    MessageType `json:"type"`
	TableID uuid.UUID   `json:"tableId"`
}

// TableSummary is one row of tables_list.
type TableSummary struct {
	TableID     uuid.UUID          `json:"tableId"`
	HostName    string             `json:"hostName"`
	HostRating  int                `json:"hostRating"`
	TimeControl models.TimeControl `json:"timeControl"`
}

// TablesList enumerates the joinable open tables.
type TablesList struct {
	Type   MessageType    `json:"type"`
	Tables []TableSummary `json:"tables"`
}

// GameFound starts a match. PlayerToken is the per-seat reconnect credential;
// it is never shared with the opponent.
type GameFound struct {
	Type        MessageType        `json:"type"`
	GameID      uuid.UUID          `json:"gameId"`
	Color       models.Color       `json:"color"`
	FEN         string             `json:"fen"`
	PlayerToken uuid.UUID          `json:"playerToken"`
	Opponent    Opponent           `json:"opponent"`
	TimeControl models.TimeControl `json:"timeControl"`
	Clocks      Clocks             `json:"clocks"`
}

// MoveAck confirms the caller's own move.
type MoveAck struct {
	Type   MessageType  `json:"type"`
	GameID uuid.UUID    `json:"gameId"`
	Move   string       `json:"move"` // SAN as played
	FEN    string       `json:"fen"`
	Turn   models.Color `json:"turn"`
	Clocks Clocks       `json:"clocks"`
}

// OpponentMove relays the other seat's move.
type OpponentMove struct {
	Type   MessageType  `json:"type"`
	GameID uuid.UUID    `json:"gameId"`
	Move   string       `json:"move"`
	FEN    string       `json:"fen"`
	Turn   models.Color `json:"turn"`
	Clocks Clocks       `json:"clocks"`
}

// GameOver announces the final result to both seats. Result is "white",
// "black" or "draw". EloChange is from the recipient's perspective.
type GameOver struct {
	Type      MessageType `json:"type"`
	GameID    uuid.UUID   `json:"gameId"`
	Result    string      `json:"result"`
	Reason    string      `json:"reason"`
	EloChange int         `json:"eloChange"`
}

// GameResult maps a winning color to the wire result value.
func GameResult(winner models.Color) string {
	switch winner {
	case models.ColorWhite:
		return "white"
	case models.ColorBlack:
		return "black"
	}
	return "draw"
}

// DrawOffered notifies a seat that the opponent proposed a draw.
type DrawOffered struct {
	Type   MessageType `json:"type"`
	GameID uuid.UUID   `json:"gameId"`
}

// DrawDeclined notifies the offering seat that the proposal was rejected.
type DrawDeclined struct {
	Type   MessageType `json:"type"`
	GameID uuid.UUID   `json:"gameId"`
}

// OpponentDisconnected starts the abandonment countdown on the other side.
type OpponentDisconnected struct {
	Type         MessageType `json:"type"`
	GameID       uuid.UUID   `json:"gameId"`
	GraceSeconds int         `json:"graceSeconds"`
}

// OpponentReconnected cancels the countdown.
type OpponentReconnected struct {
	Type   MessageType `json:"type"`
	GameID uuid.UUID   `json:"gameId"`
}

// ErrorMessage is the wire form of a rejected request. Code values are
// stable; Message is advisory text.
type ErrorMessage struct {
	Type    MessageType `json:"type"`
	Code    string      `json:"code"`
	Message string      `json:"message"`
}

// Stable rejection codes for in-game requests.
const (
	CodeNotAPlayer   = "NOT_A_PLAYER"
	CodeNotYourTurn  = "NOT_YOUR_TURN"
	CodeIllegalMove  = "ILLEGAL_MOVE"
	CodeGameOver     = "GAME_OVER"
	CodeInvalidToken = "INVALID_TOKEN"
	CodeUnknownGame  = "UNKNOWN_GAME"
	CodeUnknownTable = "UNKNOWN_TABLE"
)

// NewError builds an ErrorMessage ready for marshalling.
func NewError(code, message string) ErrorMessage {
	return ErrorMessage{Type: TypeError, Code: code, Message: message}
}
