// internal/database/results.go
package database

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ResultStore persists finished matches and player ratings. A nil ResultStore
// is valid and drops writes, so the server can run without Postgres.
type ResultStore struct {
	pool *pgxpool.Pool
}

// NewResultStore wraps a connected pool.
func NewResultStore(pool *pgxpool.Pool) *ResultStore {
	return &ResultStore{pool: pool}
}

// SaveMatch records a finished match and both rating changes in one
// transaction. Player rows are upserted by name since seats are anonymous.
func (s *ResultStore) SaveMatch(
	ctx context.Context,
	gameID uuid.UUID,
	whiteName, blackName string,
	winner, reason string,
	moves []string,
	whiteRating, whiteDelta, blackRating, blackDelta int,
) error {
	if s == nil {
		return nil
	}

	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO matches (id, white_name, black_name, winner, reason, moves)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, gameID, whiteName, blackName, winner, reason, strings.Join(moves, " ")); err != nil {
			return err
		}

		upsert := `
			INSERT INTO players (name, rating)
			VALUES ($1, $2)
			ON CONFLICT (name) DO UPDATE SET rating = EXCLUDED.rating
		`
		if _, err := tx.Exec(ctx, upsert, whiteName, whiteRating+whiteDelta); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, upsert, blackName, blackRating+blackDelta); err != nil {
			return err
		}

		_, err := tx.Exec(ctx, `
			INSERT INTO rating_changes (player_name, game_id, old_rating, new_rating)
			VALUES ($1, $2, $3, $4), ($5, $6, $7, $8)
		`,
			whiteName, gameID, whiteRating, whiteRating+whiteDelta,
			blackName, gameID, blackRating, blackRating+blackDelta,
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to save match %s: %w", gameID, err)
	}
	return nil
}

// LoadRating fetches the stored rating for a player name. ok is false when
// the store is disabled or the player is unknown.
func (s *ResultStore) LoadRating(ctx context.Context, name string) (rating int, ok bool, err error) {
	if s == nil {
		return 0, false, nil
	}

	err = s.pool.QueryRow(ctx, `SELECT rating FROM players WHERE name = $1`, name).Scan(&rating)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to load rating for %q: %w", name, err)
	}
	return rating, true, nil
}
