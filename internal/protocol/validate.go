// internal/protocol/validate.go
package protocol

import (
	"encoding/json"
	"fmt"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Field constraints enforced at the boundary.
const (
	MaxNameLength = 20
	MaxMoveLength = 6
	MinElo        = 0
	MaxElo        = 4000
)

// CodeInvalidMessage is the stable error code for every validation failure.
const CodeInvalidMessage = "INVALID_MESSAGE"

// Error is a structured validation failure. It is surfaced to the offending
// connection only and never reaches a stateful component.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func invalid(format string, args ...interface{}) *Error {
	return &Error{Code: CodeInvalidMessage, Message: fmt.Sprintf(format, args...)}
}

// envelope is the minimal shape every client message shares.
type envelope struct {
	Type    string `json:"type"`
	Version *int   `json:"v"`
}

// rawIDs carries the id/token fields as strings so UUID syntax errors are
// reported as validation failures rather than json decode errors.
type rawIDs struct {
	GameID      string `json:"gameId"`
	TableID     string `json:"tableId"`
	PlayerToken string `json:"playerToken"`
}

// Validate parses and type-checks a raw client message. It is the sole gate
// in front of the matchmaker and the match sessions: on failure the returned
// error carries the INVALID_MESSAGE code and nothing downstream is touched.
// Unknown extra fields are ignored for forward compatibility; unknown message
// types are rejected.
func Validate(raw []byte) (Message, *Error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, invalid("malformed JSON")
	}
	if env.Type == "" {
		return nil, invalid("missing type")
	}
	if env.Version == nil {
		return nil, invalid("missing protocol version")
	}
	if *env.Version != Version {
		return nil, invalid("unsupported protocol version %d (want %d)", *env.Version, Version)
	}

	switch MessageType(env.Type) {
	case TypeJoinQueue:
		var m JoinQueue
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, invalid("bad join_queue payload")
		}
		if verr := checkName(m.PlayerName); verr != nil {
			return nil, verr
		}
		if verr := checkElo(m.Elo); verr != nil {
			return nil, verr
		}
		if m.TimeControl != nil && (m.TimeControl.InitialSeconds <= 0 || m.TimeControl.IncrementSeconds < 0) {
			return nil, invalid("invalid time control")
		}
		return m, nil

	case TypeLeaveQueue:
		return LeaveQueue{}, nil

	case TypeCreateTable:
		var m CreateTable
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, invalid("bad create_table payload")
		}
		if verr := checkName(m.PlayerName); verr != nil {
			return nil, verr
		}
		if verr := checkElo(m.Elo); verr != nil {
			return nil, verr
		}
		if m.TimeControl != nil && (m.TimeControl.InitialSeconds <= 0 || m.TimeControl.IncrementSeconds < 0) {
			return nil, invalid("invalid time control")
		}
		return m, nil

	case TypeJoinTable:
		var m JoinTable
		var ids rawIDs
		if err := json.Unmarshal(raw, &ids); err != nil {
			return nil, invalid("bad join_table payload")
		}
		tableID, verr := checkUUID("tableId", ids.TableID)
		if verr != nil {
			return nil, verr
		}
		if err := json.Unmarshal(raw, &struct {
			PlayerName *string `json:"playerName"`
			Elo        **int   `json:"elo"`
		}{&m.PlayerName, &m.Elo}); err != nil {
			return nil, invalid("bad join_table payload")
		}
		if verr := checkName(m.PlayerName); verr != nil {
			return nil, verr
		}
		if verr := checkElo(m.Elo); verr != nil {
			return nil, verr
		}
		m.TableID = tableID
		return m, nil

	case TypeLeaveTable:
		return LeaveTable{}, nil

	case TypeMakeMove:
		var ids rawIDs
		var body struct {
			Move string `json:"move"`
		}
		if err := json.Unmarshal(raw, &ids); err != nil {
			return nil, invalid("bad make_move payload")
		}
		if err := json.Unmarshal(raw, &body); err != nil {
			return nil, invalid("bad make_move payload")
		}
		gameID, verr := checkUUID("gameId", ids.GameID)
		if verr != nil {
			return nil, verr
		}
		if body.Move == "" || utf8.RuneCountInString(body.Move) > MaxMoveLength {
			return nil, invalid("move must be 1-%d characters", MaxMoveLength)
		}
		return MakeMove{GameID: gameID, Move: body.Move}, nil

	case TypeResign, TypeOfferDraw, TypeAcceptDraw, TypeDeclineDraw:
		var ids rawIDs
		if err := json.Unmarshal(raw, &ids); err != nil {
			return nil, invalid("bad %s payload", env.Type)
		}
		gameID, verr := checkUUID("gameId", ids.GameID)
		if verr != nil {
			return nil, verr
		}
		switch MessageType(env.Type) {
		case TypeResign:
			return Resign{GameID: gameID}, nil
		case TypeOfferDraw:
			return OfferDraw{GameID: gameID}, nil
		case TypeAcceptDraw:
			return AcceptDraw{GameID: gameID}, nil
		default:
			return DeclineDraw{GameID: gameID}, nil
		}

	case TypeReconnect:
		var ids rawIDs
		if err := json.Unmarshal(raw, &ids); err != nil {
			return nil, invalid("bad reconnect payload")
		}
		gameID, verr := checkUUID("gameId", ids.GameID)
		if verr != nil {
			return nil, verr
		}
		token, verr := checkUUID("playerToken", ids.PlayerToken)
		if verr != nil {
			return nil, verr
		}
		return Reconnect{PlayerToken: token, GameID: gameID}, nil

	default:
		return nil, invalid("unknown message type %q", env.Type)
	}
}

func checkName(name string) *Error {
	n := utf8.RuneCountInString(name)
	if n < 1 || n > MaxNameLength {
		return invalid("playerName must be 1-%d characters", MaxNameLength)
	}
	return nil
}

func checkElo(elo *int) *Error {
	if elo == nil {
		return nil
	}
	if *elo < MinElo || *elo > MaxElo {
		return invalid("elo must be within [%d,%d]", MinElo, MaxElo)
	}
	return nil
}

func checkUUID(field, value string) (uuid.UUID, *Error) {
	if value == "" {
		return uuid.Nil, invalid("missing %s", field)
	}
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, invalid("%s must be a valid UUID", field)
	}
	return id, nil
}
