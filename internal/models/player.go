package models

import (
	"time"

	"github.com/google/uuid"
)

// Player is one seat in a match. The reconnect token is the sole credential
// for session recovery; it is issued once when the match is created and never
// reissued across reconnections.
type Player struct {
	ConnectionID   string     `json:"-"`
	Name           string     `json:"name"`
	Rating         int        `json:"rating"`
	ReconnectToken uuid.UUID  `json:"-"`
	Connected      bool       `json:"connected"`
	DisconnectedAt *time.Time `json:"-"`
}
