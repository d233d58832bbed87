// internal/game/errors.go
package game

import "fmt"

// RoomError is a rejected in-game request with its stable wire code.
type RoomError struct {
	Code    string
	Message string
}

func (e *RoomError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Stable rejection codes, mirrored onto the wire by the handlers.
const (
	CodeNotAPlayer   = "NOT_A_PLAYER"
	CodeNotYourTurn  = "NOT_YOUR_TURN"
	CodeIllegalMove  = "ILLEGAL_MOVE"
	CodeGameOver     = "GAME_OVER"
	CodeInvalidToken = "INVALID_TOKEN"
)

func errNotAPlayer() *RoomError {
	return &RoomError{Code: CodeNotAPlayer, Message: "connection holds no seat in this game"}
}

func errNotYourTurn() *RoomError {
	return &RoomError{Code: CodeNotYourTurn, Message: "it is not your turn"}
}

func errIllegalMove(move string) *RoomError {
	return &RoomError{Code: CodeIllegalMove, Message: fmt.Sprintf("illegal move %q", move)}
}

func errGameOver() *RoomError {
	return &RoomError{Code: CodeGameOver, Message: "game already finished"}
}
