package server

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

const archiveSchema = `
CREATE TABLE IF NOT EXISTS match_history (
	id          BIGSERIAL PRIMARY KEY,
	game_id     INTEGER     NOT NULL,
	player1     TEXT        NOT NULL,
	player2     TEXT        NOT NULL DEFAULT '',
	winner      TEXT        NOT NULL DEFAULT '',
	outcome     TEXT        NOT NULL,
	board       JSONB       NOT NULL,
	finished_at TIMESTAMPTZ NOT NULL
)`

// MatchArchive records finished matches in Postgres. Writes are queued to a
// background worker and dropped (with a log line) when the queue is full:
// archiving is best-effort and must never stall match flow. Nothing is ever
// read back into the live registries.
type MatchArchive struct {
	pool  *pgxpool.Pool
	queue chan MatchRecord
	log   zerolog.Logger
	done  chan struct{}
}

func NewMatchArchive(ctx context.Context, dsn string, log zerolog.Logger) (*MatchArchive, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("creating archive pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging archive database: %w", err)
	}
	if _, err := pool.Exec(ctx, archiveSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("creating archive schema: %w", err)
	}

	a := &MatchArchive{
		pool:  pool,
		queue: make(chan MatchRecord, 256),
		log:   log,
		done:  make(chan struct{}),
	}
	go a.run()
	return a, nil
}

// Record enqueues a finished match without blocking the caller.
func (a *MatchArchive) Record(rec MatchRecord) {
	select {
	case a.queue <- rec:
	default:
		a.log.Warn().Int("game_id", rec.GameID).Msg("archive queue full, dropping record")
	}
}

func (a *MatchArchive) run() {
	defer close(a.done)
	for rec := range a.queue {
		if err := a.insert(rec); err != nil {
			a.log.Error().Err(err).Int("game_id", rec.GameID).Msg("failed to archive match")
		}
	}
}

func (a *MatchArchive) insert(rec MatchRecord) error {
	board, err := json.Marshal(rec.Board)
	if err != nil {
		return fmt.Errorf("serializing board: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err = a.pool.Exec(ctx,
		`INSERT INTO match_history (game_id, player1, player2, winner, outcome, board, finished_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		rec.GameID, rec.Player1, rec.Player2, rec.Winner, rec.Outcome, board, rec.FinishedAt,
	)
	return err
}

// CountByPlayer returns how many archived matches the player appeared in.
func (a *MatchArchive) CountByPlayer(ctx context.Context, username string) (int, error) {
	var n int
	err := a.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM match_history WHERE player1 = $1 OR player2 = $1`,
		username,
	).Scan(&n)
	return n, err
}

func (a *MatchArchive) Health(ctx context.Context) error {
	return a.pool.Ping(ctx)
}

// Close drains the queue and releases the pool. Callers must stop producing
// records first.
func (a *MatchArchive) Close() {
	close(a.queue)
	<-a.done
	a.pool.Close()
}
