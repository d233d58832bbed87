// internal/game/registry.go
package game

import (
	"sync"

	"github.com/google/uuid"

	"github.com/gambitchess/gambit/internal/models"
)

// seatRef locates a seat from a live connection.
type seatRef struct {
	gameID uuid.UUID
}

// Registry indexes active rooms three ways: by game id, by live connection
// and by reconnect token. All three maps mutate atomically under one mutex,
// so a lookup can never observe a half-rebound seat.
type Registry struct {
	mu           sync.Mutex
	rooms        map[uuid.UUID]*Room
	byConnection map[string]seatRef
	byToken      map[uuid.UUID]uuid.UUID
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		rooms:        make(map[uuid.UUID]*Room),
		byConnection: make(map[string]seatRef),
		byToken:      make(map[uuid.UUID]uuid.UUID),
	}
}

// Add registers a room and indexes both seats' connections and tokens.
func (reg *Registry) Add(r *Room) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	reg.rooms[r.ID] = r
	for _, p := range []*models.Player{r.white, r.black} {
		reg.byConnection[p.ConnectionID] = seatRef{gameID: r.ID}
		reg.byToken[p.ReconnectToken] = r.ID
	}
}

// Room returns the room for a game id.
func (reg *Registry) Room(id uuid.UUID) (*Room, bool) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	r, ok := reg.rooms[id]
	return r, ok
}

// RoomByConnection returns the room a live connection is seated in.
func (reg *Registry) RoomByConnection(connID string) (*Room, bool) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	ref, ok := reg.byConnection[connID]
	if !ok {
		return nil, false
	}
	r, ok := reg.rooms[ref.gameID]
	return r, ok
}

// RoomByToken returns the room a reconnect token belongs to.
func (reg *Registry) RoomByToken(token uuid.UUID) (*Room, bool) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	id, ok := reg.byToken[token]
	if !ok {
		return nil, false
	}
	r, ok := reg.rooms[id]
	return r, ok
}

// Rebind moves a seat's connection index after a reconnect. The old
// connection entry is dropped even if it was already stale.
func (reg *Registry) Rebind(oldConnID, newConnID string, gameID uuid.UUID) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	delete(reg.byConnection, oldConnID)
	reg.byConnection[newConnID] = seatRef{gameID: gameID}
}

// Remove drops a room and every index entry that points at it.
func (reg *Registry) Remove(id uuid.UUID) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	r, ok := reg.rooms[id]
	if !ok {
		return
	}
	delete(reg.rooms, id)
	for conn, ref := range reg.byConnection {
		if ref.gameID == id {
			delete(reg.byConnection, conn)
		}
	}
	delete(reg.byToken, r.white.ReconnectToken)
	delete(reg.byToken, r.black.ReconnectToken)
}

// Rooms returns a snapshot of every registered room.
func (reg *Registry) Rooms() []*Room {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	out := make([]*Room, 0, len(reg.rooms))
	for _, r := range reg.rooms {
		out = append(out, r)
	}
	return out
}

// Len reports the number of registered rooms.
func (reg *Registry) Len() int {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return len(reg.rooms)
}
