// cmd/archiver is an asynchronous worker that pops finished-match records
// from the Redis journal queue and persists them to PostgreSQL in batches.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strings"
	"sync"
	"time"

	_ "github.com/joho/godotenv/autoload"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/gambitchess/gambit/internal/config"
	"github.com/gambitchess/gambit/internal/database"
	"github.com/gambitchess/gambit/internal/journal"
)

// Archiver drains the journal queue into the archive tables.
type Archiver struct {
	journal    *journal.Journal
	pool       *pgxpool.Pool
	batchSize  int
	flushDelay time.Duration
	log        *logrus.Logger

	batchMu sync.Mutex
	batch   []journal.MatchRecord
}

func newArchiver(log *logrus.Logger) (*Archiver, error) {
	j, err := journal.Connect(log)
	if err != nil {
		return nil, err
	}
	pool, err := database.Connect(context.Background())
	if err != nil {
		return nil, err
	}

	return &Archiver{
		journal:    j,
		pool:       pool,
		batchSize:  config.GetInt("ARCHIVER_BATCH_SIZE", 20),
		flushDelay: time.Duration(config.GetInt("ARCHIVER_FLUSH_MS", 500)) * time.Millisecond,
		log:        log,
	}, nil
}

// run consumes the queue until the context is cancelled, flushing batches on
// size or on a timer.
func (a *Archiver) run(ctx context.Context) {
	ticker := time.NewTicker(a.flushDelay)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.flush()
			return
		case <-ticker.C:
			a.flush()
		default:
			// BLPOP with a short timeout so cancellation is observed.
			rec, err := a.journal.Pop(ctx, 3*time.Second)
			if errors.Is(err, redis.Nil) {
				continue
			}
			if err != nil {
				if ctx.Err() != nil {
					a.flush()
					return
				}
				a.log.Errorf("journal pop: %v", err)
				continue
			}
			a.append(*rec)
		}
	}
}

func (a *Archiver) append(rec journal.MatchRecord) {
	a.batchMu.Lock()
	defer a.batchMu.Unlock()
	a.batch = append(a.batch, rec)
	if len(a.batch) >= a.batchSize {
		a.flushLocked()
	}
}

func (a *Archiver) flush() {
	a.batchMu.Lock()
	defer a.batchMu.Unlock()
	a.flushLocked()
}

// flushLocked writes the pending batch in one transaction. Caller holds
// batchMu.
func (a *Archiver) flushLocked() {
	if len(a.batch) == 0 {
		return
	}
	batch := make([]journal.MatchRecord, len(a.batch))
	copy(batch, a.batch)
	a.batch = a.batch[:0]

	ctx := context.Background()
	err := pgx.BeginTxFunc(ctx, a.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, rec := range batch {
			if err := insertMatchTx(ctx, tx, rec); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		a.log.Errorf("failed to flush %d matches: %v", len(batch), err)
		return
	}
	a.log.WithField("count", len(batch)).Info("flushed matches to archive")
}

func insertMatchTx(ctx context.Context, tx pgx.Tx, rec journal.MatchRecord) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO match_archive (
			game_id, white_name, black_name, white_rating, black_rating,
			winner, reason, moves, final_fen, white_delta, black_delta, finished_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, to_timestamp($12))
		ON CONFLICT (game_id) DO NOTHING
	`,
		rec.GameID, rec.WhiteName, rec.BlackName, rec.WhiteRating, rec.BlackRating,
		rec.Winner, rec.Reason, strings.Join(rec.Moves, " "), rec.FinalFEN,
		rec.WhiteDelta, rec.BlackDelta, rec.Timestamp,
	)
	return err
}

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	a, err := newArchiver(log)
	if err != nil {
		log.Fatalf("archiver startup failed: %v", err)
	}
	defer a.pool.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	log.Info("archiver started")
	a.run(ctx)
	log.Info("archiver shut down")
}
