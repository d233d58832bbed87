// internal/matchmaking/tables.go
package matchmaking

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gambitchess/gambit/internal/models"
)

var (
	ErrTableNotFound = errors.New("table not found")
	ErrOwnTable      = errors.New("cannot join own table")
	ErrAlreadyHost   = errors.New("connection already hosts a table")
)

// Table is an open invitation: a host waiting for a direct opponent rather
// than a queue match. The host takes the white pieces when someone sits down.
type Table struct {
	ID          uuid.UUID
	HostConnID  string
	HostName    string
	HostRating  int
	TimeControl models.TimeControl
	CreatedAt   time.Time
}

// TableStore holds the open tables. One table per hosting connection.
type TableStore struct {
	mu     sync.Mutex
	tables map[uuid.UUID]*Table
	byHost map[string]uuid.UUID
}

// NewTableStore returns an empty store.
func NewTableStore() *TableStore {
	return &TableStore{
		tables: make(map[uuid.UUID]*Table),
		byHost: make(map[string]uuid.UUID),
	}
}

// Create opens a table for the given host connection.
func (s *TableStore) Create(hostConnID, hostName string, hostRating int, tc models.TimeControl) (*Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byHost[hostConnID]; ok {
		return nil, ErrAlreadyHost
	}

	t := &Table{
		ID:          uuid.New(),
		HostConnID:  hostConnID,
		HostName:    hostName,
		HostRating:  hostRating,
		TimeControl: tc,
		CreatedAt:   time.Now(),
	}
	s.tables[t.ID] = t
	s.byHost[hostConnID] = t.ID
	return t, nil
}

// Join claims a table for an opponent and removes it from the store. The
// host cannot sit at their own table.
func (s *TableStore) Join(id uuid.UUID, joinerConnID string) (*Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tables[id]
	if !ok {
		return nil, ErrTableNotFound
	}
	if t.HostConnID == joinerConnID {
		return nil, ErrOwnTable
	}

	delete(s.tables, id)
	delete(s.byHost, t.HostConnID)
	return t, nil
}

// Leave closes the table hosted by the given connection, if any.
func (s *TableStore) Leave(hostConnID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byHost[hostConnID]
	if !ok {
		return false
	}
	delete(s.tables, id)
	delete(s.byHost, hostConnID)
	return true
}

// List returns the open tables, oldest first.
func (s *TableStore) List() []*Table {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*Table, 0, len(s.tables))
	for _, t := range s.tables {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}
