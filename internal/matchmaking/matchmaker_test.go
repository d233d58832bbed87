package matchmaking

import (
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gambitchess/gambit/internal/models"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// fakeClock lets tests widen windows without sleeping.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestMatchmaker() (*Matchmaker, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	m := NewMatchmaker(testLogger())
	m.now = clock.now
	return m, clock
}

func entry(conn, name string, rating int) QueueEntry {
	return QueueEntry{
		ConnectionID: conn,
		Name:         name,
		Rating:       rating,
		TimeControl:  models.DefaultTimeControl,
	}
}

func TestCloseRatingsPairImmediately(t *testing.T) {
	m, _ := newTestMatchmaker()

	require.Nil(t, m.AddPlayer(entry("c1", "ada", 1500)))
	pair := m.AddPlayer(entry("c2", "bo", 1580))
	require.NotNil(t, pair)

	// Earlier arrival takes white.
	assert.Equal(t, "ada", pair.A.Name)
	assert.Equal(t, "bo", pair.B.Name)
	assert.Equal(t, 0, m.Len())
}

func TestWideGapStaysQueued(t *testing.T) {
	m, _ := newTestMatchmaker()

	require.Nil(t, m.AddPlayer(entry("c1", "ada", 1500)))
	require.Nil(t, m.AddPlayer(entry("c2", "bo", 1700)))
	assert.Equal(t, 2, m.Len())
	assert.Equal(t, 1, m.GetPosition("c1"))
	assert.Equal(t, 2, m.GetPosition("c2"))
}

func TestWindowWidensWithWait(t *testing.T) {
	m, clock := newTestMatchmaker()

	// 250 apart: outside the initial 100 window, inside the 300 window
	// reached after 30 seconds of waiting.
	require.Nil(t, m.AddPlayer(entry("c1", "ada", 1500)))
	require.Nil(t, m.AddPlayer(entry("c2", "bo", 1750)))

	clock.advance(20 * time.Second)
	assert.Empty(t, m.ScanForMatches())

	clock.advance(15 * time.Second)
	pairs := m.ScanForMatches()
	require.Len(t, pairs, 1)
	assert.Equal(t, "ada", pairs[0].A.Name)
	assert.Equal(t, 0, m.Len())
}

func TestAsymmetricWaitUsesWiderWindow(t *testing.T) {
	m, clock := newTestMatchmaker()

	// ada has waited long enough for a 300 window; bo just arrived with a
	// 100 window. The wider window governs, so they pair on bo's arrival.
	require.Nil(t, m.AddPlayer(entry("c1", "ada", 1500)))
	clock.advance(31 * time.Second)

	pair := m.AddPlayer(entry("c2", "bo", 1740))
	require.NotNil(t, pair)
	assert.Equal(t, "ada", pair.A.Name)
}

func TestClosestRatingWins(t *testing.T) {
	m, _ := newTestMatchmaker()

	require.Nil(t, m.AddPlayer(entry("c1", "far", 1420)))
	require.Nil(t, m.AddPlayer(entry("c2", "near", 1510)))

	pair := m.AddPlayer(entry("c3", "ada", 1500)) // 80 vs 10
	require.NotNil(t, pair)
	assert.Equal(t, "near", pair.A.Name)
	assert.Equal(t, 1, m.Len())
	assert.Equal(t, 1, m.GetPosition("c1"))
}

func TestTieGoesToLongestWaiting(t *testing.T) {
	m, _ := newTestMatchmaker()

	require.Nil(t, m.AddPlayer(entry("c1", "first", 1450)))
	require.Nil(t, m.AddPlayer(entry("c2", "second", 1550)))

	pair := m.AddPlayer(entry("c3", "ada", 1500)) // both 50 away
	require.NotNil(t, pair)
	assert.Equal(t, "first", pair.A.Name)
}

func TestDifferentTimeControlsNeverPair(t *testing.T) {
	m, clock := newTestMatchmaker()

	blitz := entry("c1", "ada", 1500)
	blitz.TimeControl = models.TimeControl{InitialSeconds: 180, IncrementSeconds: 2}
	require.Nil(t, m.AddPlayer(blitz))
	require.Nil(t, m.AddPlayer(entry("c2", "bo", 1500)))

	clock.advance(45 * time.Second)
	assert.Empty(t, m.ScanForMatches())
	assert.Equal(t, 2, m.Len())
}

func TestDuplicateJoinIsNoOp(t *testing.T) {
	m, _ := newTestMatchmaker()

	require.Nil(t, m.AddPlayer(entry("c1", "ada", 1500)))
	require.Nil(t, m.AddPlayer(entry("c1", "ada", 2200)))
	assert.Equal(t, 1, m.Len())

	// The original 1500 entry still stands, so a close opponent pairs.
	pair := m.AddPlayer(entry("c2", "bo", 1480))
	require.NotNil(t, pair)
	assert.Equal(t, 1500, pair.A.Rating)
}

func TestRemovePlayer(t *testing.T) {
	m, _ := newTestMatchmaker()

	require.Nil(t, m.AddPlayer(entry("c1", "ada", 1500)))
	assert.True(t, m.RemovePlayer("c1"))
	assert.False(t, m.RemovePlayer("c1"))
	assert.Equal(t, -1, m.GetPosition("c1"))
}

func TestCheckTimeouts(t *testing.T) {
	m, clock := newTestMatchmaker()

	require.Nil(t, m.AddPlayer(entry("c1", "ada", 1000)))
	clock.advance(40 * time.Second)
	require.Nil(t, m.AddPlayer(entry("c2", "bo", 3000)))

	clock.advance(25 * time.Second) // ada at 65s, bo at 25s
	expired := m.CheckTimeouts()
	require.Len(t, expired, 1)
	assert.Equal(t, "ada", expired[0].Entry.Name)
	assert.GreaterOrEqual(t, expired[0].Waited, 60*time.Second)
	assert.Equal(t, 1, m.Len())
}

func TestCheckTimeoutsExactBoundaryExpires(t *testing.T) {
	m, clock := newTestMatchmaker()

	require.Nil(t, m.AddPlayer(entry("c1", "ada", 1000)))
	clock.advance(QueueTimeout - time.Millisecond)
	require.Empty(t, m.CheckTimeouts())

	clock.advance(time.Millisecond) // exactly 60s waited
	expired := m.CheckTimeouts()
	require.Len(t, expired, 1)
	assert.Equal(t, QueueTimeout, expired[0].Waited)
	assert.Equal(t, 0, m.Len())
}

func TestScanPairsMultiple(t *testing.T) {
	m, clock := newTestMatchmaker()

	require.Nil(t, m.AddPlayer(entry("c1", "a", 1000)))
	require.Nil(t, m.AddPlayer(entry("c2", "b", 2000)))
	require.Nil(t, m.AddPlayer(entry("c3", "c", 1090)))
	require.Nil(t, m.AddPlayer(entry("c4", "d", 1910)))

	clock.advance(time.Second)
	pairs := m.ScanForMatches()
	require.Len(t, pairs, 2)
	assert.Equal(t, 0, m.Len())
}
