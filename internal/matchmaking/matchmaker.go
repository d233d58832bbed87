// internal/matchmaking/matchmaker.go
package matchmaking

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/gambitchess/gambit/internal/models"
)

// Matching parameters. The acceptance window starts at BaseWindow rating
// points and widens by WindowStep every WindowInterval a player waits;
// entries that outlast QueueTimeout are expired.
const (
	BaseWindow     = 100
	WindowStep     = 100
	WindowInterval = 15 * time.Second
	QueueTimeout   = 60 * time.Second
	DefaultRating  = 1200
)

// QueueEntry is one waiting player. Entries are keyed by connection id, so a
// connection holds at most one spot in the queue.
type QueueEntry struct {
	ConnectionID string
	Name         string
	Rating       int
	TimeControl  models.TimeControl
	JoinedAt     time.Time
}

// window reports the entry's current acceptance radius in rating points.
func (e QueueEntry) window(now time.Time) int {
	wait := now.Sub(e.JoinedAt)
	if wait < 0 {
		wait = 0
	}
	return BaseWindow + WindowStep*int(wait/WindowInterval)
}

// MatchPair is a proposed pairing. A joined earlier than (or at the same
// instant as) B and takes the white pieces.
type MatchPair struct {
	A QueueEntry
	B QueueEntry
}

// TimedOut is a queue entry expired by CheckTimeouts, with the time it spent
// waiting.
type TimedOut struct {
	Entry  QueueEntry
	Waited time.Duration
}

// Matchmaker holds the waiting pool. Pairing is rating-aware with windows
// that widen over time, so close matches form instantly and lopsided ones
// only after both sides have waited. All methods are safe for concurrent use.
type Matchmaker struct {
	mu      sync.Mutex
	entries []QueueEntry // FIFO by JoinedAt
	log     *logrus.Logger

	// now is swapped out by tests to drive window widening deterministically.
	now func() time.Time
}

// NewMatchmaker returns an empty queue.
func NewMatchmaker(log *logrus.Logger) *Matchmaker {
	return &Matchmaker{log: log, now: time.Now}
}

// AddPlayer enqueues a player. A connection that is already queued is left
// untouched. If a compatible opponent is already waiting, the pair is
// returned immediately and both entries leave the queue; among multiple
// candidates the closest rating wins, ties going to the longest-waiting.
func (m *Matchmaker) AddPlayer(entry QueueEntry) *MatchPair {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, e := range m.entries {
		if e.ConnectionID == entry.ConnectionID {
			return nil
		}
	}
	if entry.JoinedAt.IsZero() {
		entry.JoinedAt = m.now()
	}

	if pair := m.matchLocked(entry); pair != nil {
		m.log.WithFields(logrus.Fields{
			"white": pair.A.Name,
			"black": pair.B.Name,
		}).Info("paired on arrival")
		return pair
	}

	m.entries = append(m.entries, entry)
	return nil
}

// matchLocked finds the best waiting opponent for entry, removes it from the
// pool and returns the pair, or returns nil if no one is compatible. The
// window test is symmetric: the rating gap must fit inside the wider of the
// two players' current windows.
func (m *Matchmaker) matchLocked(entry QueueEntry) *MatchPair {
	now := m.now()
	best := -1
	bestDist := 0

	for i, cand := range m.entries {
		if cand.ConnectionID == entry.ConnectionID {
			continue
		}
		if !cand.TimeControl.Equal(entry.TimeControl) {
			continue
		}
		dist := entry.Rating - cand.Rating
		if dist < 0 {
			dist = -dist
		}
		win := entry.window(now)
		if cw := cand.window(now); cw > win {
			win = cw
		}
		if dist > win {
			continue
		}
		// Entries are FIFO, so on equal distance the earlier index has
		// waited longer and keeps the slot.
		if best == -1 || dist < bestDist {
			best, bestDist = i, dist
		}
	}
	if best == -1 {
		return nil
	}

	opp := m.entries[best]
	m.entries = append(m.entries[:best], m.entries[best+1:]...)

	if opp.JoinedAt.After(entry.JoinedAt) {
		return &MatchPair{A: entry, B: opp}
	}
	return &MatchPair{A: opp, B: entry}
}

// RemovePlayer withdraws a connection's entry. It reports whether an entry
// was present.
func (m *Matchmaker) RemovePlayer(connectionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.removeLocked(connectionID)
}

func (m *Matchmaker) removeLocked(connectionID string) bool {
	for i, e := range m.entries {
		if e.ConnectionID == connectionID {
			m.entries = append(m.entries[:i], m.entries[i+1:]...)
			return true
		}
	}
	return false
}

// GetPosition returns the 1-based queue position for a connection, or -1 if
// it is not queued.
func (m *Matchmaker) GetPosition(connectionID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, e := range m.entries {
		if e.ConnectionID == connectionID {
			return i + 1
		}
	}
	return -1
}

// Len reports the number of waiting players.
func (m *Matchmaker) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// ScanForMatches re-evaluates the pool with the current, possibly wider,
// windows and returns every pairing it can form. Called periodically by the
// scheduler so two players who arrived incompatible can still meet.
func (m *Matchmaker) ScanForMatches() []MatchPair {
	m.mu.Lock()
	defer m.mu.Unlock()

	var pairs []MatchPair
	for i := 0; i < len(m.entries); i++ {
		entry := m.entries[i]
		m.entries = append(m.entries[:i], m.entries[i+1:]...)
		if pair := m.matchLocked(entry); pair != nil {
			pairs = append(pairs, *pair)
			i = -1 // indices shifted under us, restart the scan
			continue
		}
		m.entries = append(m.entries[:i], append([]QueueEntry{entry}, m.entries[i:]...)...)
	}

	if len(pairs) > 0 {
		m.log.WithField("pairs", len(pairs)).Info("scan paired waiting players")
	}
	return pairs
}

// CheckTimeouts removes and returns every entry that has waited QueueTimeout
// or longer.
func (m *Matchmaker) CheckTimeouts() []TimedOut {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	var expired []TimedOut
	kept := m.entries[:0]
	for _, e := range m.entries {
		if waited := now.Sub(e.JoinedAt); waited >= QueueTimeout {
			expired = append(expired, TimedOut{Entry: e, Waited: waited})
			continue
		}
		kept = append(kept, e)
	}
	m.entries = kept
	return expired
}
