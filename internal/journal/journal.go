// internal/journal/journal.go
package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/gambitchess/gambit/internal/config"
	"github.com/gambitchess/gambit/internal/game"
	"github.com/gambitchess/gambit/internal/models"
)

// DefaultQueueName is the Redis list the archiver consumes.
var DefaultQueueName = "gambit_matches"

// MatchRecord is the finished-match payload pushed to the archive queue.
type MatchRecord struct {
	GameID      uuid.UUID `json:"game_id"`
	WhiteName   string    `json:"white_name"`
	BlackName   string    `json:"black_name"`
	WhiteRating int       `json:"white_rating"`
	BlackRating int       `json:"black_rating"`
	Winner      string    `json:"winner"` // "w", "b" or "" for a draw
	Reason      string    `json:"reason"`
	Moves       []string  `json:"moves"` // SAN
	FinalFEN    string    `json:"final_fen"`
	WhiteDelta  int       `json:"white_delta"`
	BlackDelta  int       `json:"black_delta"`
	Timestamp   int64     `json:"timestamp"`
}

// Journal pushes finished matches onto a Redis list for asynchronous
// archiving. A nil Journal is valid and drops everything, so the server can
// run without Redis configured.
type Journal struct {
	rdb   *redis.Client
	queue string
	log   *logrus.Logger
}

// Connect dials Redis using REDIS_ADDR / REDIS_DB and verifies the
// connection with a ping.
func Connect(log *logrus.Logger) (*Journal, error) {
	addr := config.Get("REDIS_ADDR", "localhost:6379")
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   config.GetInt("REDIS_DB", 0),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}

	return &Journal{
		rdb:   rdb,
		queue: config.Get("JOURNAL_QUEUE_NAME", DefaultQueueName),
		log:   log,
	}, nil
}

// NewWithClient wraps an existing client, used by tests.
func NewWithClient(rdb *redis.Client, queue string, log *logrus.Logger) *Journal {
	if queue == "" {
		queue = DefaultQueueName
	}
	return &Journal{rdb: rdb, queue: queue, log: log}
}

// RecordMatch serializes the finished room and pushes it onto the queue.
// Only a quick network send happens on the caller's goroutine.
func (j *Journal) RecordMatch(ctx context.Context, room *game.Room) error {
	if j == nil {
		return nil
	}

	res := room.Result()
	if res == nil {
		return fmt.Errorf("room %s has no result to record", room.ID)
	}
	snap := room.Snapshot()
	white := room.Player(models.ColorWhite)
	black := room.Player(models.ColorBlack)

	rec := MatchRecord{
		GameID:      res.GameID,
		WhiteName:   white.Name,
		BlackName:   black.Name,
		WhiteRating: white.Rating,
		BlackRating: black.Rating,
		Winner:      string(res.Winner),
		Reason:      res.Reason,
		Moves:       snap.MoveHistory,
		FinalFEN:    snap.FEN,
		WhiteDelta:  res.WhiteDelta,
		BlackDelta:  res.BlackDelta,
		Timestamp:   time.Now().Unix(),
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal match record: %w", err)
	}
	if err := j.rdb.RPush(ctx, j.queue, data).Err(); err != nil {
		return fmt.Errorf("failed to RPush to Redis list %q: %w", j.queue, err)
	}
	return nil
}

// Pop blocks up to timeout waiting for the next archived record. Used by the
// archiver worker.
func (j *Journal) Pop(ctx context.Context, timeout time.Duration) (*MatchRecord, error) {
	vals, err := j.rdb.BLPop(ctx, timeout, j.queue).Result()
	if err != nil {
		return nil, err
	}
	// BLPOP returns [key, value].
	if len(vals) != 2 {
		return nil, fmt.Errorf("unexpected BLPOP reply length %d", len(vals))
	}

	var rec MatchRecord
	if err := json.Unmarshal([]byte(vals[1]), &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal match record: %w", err)
	}
	return &rec, nil
}
