package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// advisoryLockKey is a stable PostgreSQL advisory lock key used to
// serialise concurrent Append calls. The value is arbitrary but must be
// consistent across all server instances sharing the database.
const advisoryLockKey = int64(7_224_881_109)

// PostgresLedger persists the wave log to a PostgreSQL database.
// It implements the Ledger interface.
type PostgresLedger struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresLedger creates a PostgresLedger backed by the given
// connection pool.
func NewPostgresLedger(pool *pgxpool.Pool, logger *zap.Logger) *PostgresLedger {
	return &PostgresLedger{pool: pool, logger: logger}
}

// EnsureSchema creates the waves table if it does not exist.
func (l *PostgresLedger) EnsureSchema(ctx context.Context) error {
	_, err := l.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS waves (
			idx     INTEGER PRIMARY KEY,
			sender  TEXT   NOT NULL,
			message TEXT   NOT NULL,
			ts      BIGINT NOT NULL
		)`)
	if err != nil {
		return fmt.Errorf("create waves table: %w", err)
	}
	return nil
}

// Append implements Ledger.
// It acquires a PostgreSQL advisory lock, reads the current count, and
// inserts the new wave — all within a single transaction, so the index
// assignment and the count stay in lockstep across instances.
func (l *PostgresLedger) Append(ctx context.Context, sender, message string) (*Wave, error) {
	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	// Serialise concurrent appends with a transaction-scoped advisory
	// lock. It is released when the transaction commits or rolls back.
	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", advisoryLockKey); err != nil {
		return nil, fmt.Errorf("acquire advisory lock: %w", err)
	}

	var next int
	if err := tx.QueryRow(ctx,
		"SELECT COALESCE(MAX(idx) + 1, 0) FROM waves",
	).Scan(&next); err != nil {
		return nil, fmt.Errorf("read wave count: %w", err)
	}

	w := &Wave{
		Index:     next,
		Sender:    sender,
		Message:   message,
		Timestamp: time.Now().Unix(),
	}

	if _, err := tx.Exec(ctx,
		"INSERT INTO waves (idx, sender, message, ts) VALUES ($1, $2, $3, $4)",
		w.Index, w.Sender, w.Message, w.Timestamp,
	); err != nil {
		return nil, fmt.Errorf("insert wave: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit wave tx: %w", err)
	}

	l.logger.Debug("wave appended",
		zap.Int("idx", w.Index),
		zap.String("sender", w.Sender),
	)
	return w, nil
}

// Get implements Ledger.
func (l *PostgresLedger) Get(ctx context.Context, index int) (*Wave, error) {
	if index < 0 {
		return nil, ErrOutOfRange
	}

	w := &Wave{}
	if err := l.pool.QueryRow(ctx,
		"SELECT idx, sender, message, ts FROM waves WHERE idx = $1", index,
	).Scan(&w.Index, &w.Sender, &w.Message, &w.Timestamp); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOutOfRange
		}
		return nil, fmt.Errorf("get wave %d: %w", index, err)
	}
	return w, nil
}

// All implements Ledger.
func (l *PostgresLedger) All(ctx context.Context) ([]Wave, error) {
	rows, err := l.pool.Query(ctx,
		"SELECT idx, sender, message, ts FROM waves ORDER BY idx ASC",
	)
	if err != nil {
		return nil, fmt.Errorf("query waves: %w", err)
	}
	defer rows.Close()

	var out []Wave
	for rows.Next() {
		var w Wave
		if err := rows.Scan(&w.Index, &w.Sender, &w.Message, &w.Timestamp); err != nil {
			return nil, fmt.Errorf("scan wave row: %w", err)
		}
		out = append(out, w)
	}
	if out == nil {
		out = []Wave{}
	}
	return out, rows.Err()
}

// Count implements Ledger.
func (l *PostgresLedger) Count(ctx context.Context) (int, error) {
	var n int
	if err := l.pool.QueryRow(ctx, "SELECT COUNT(*) FROM waves").Scan(&n); err != nil {
		return 0, fmt.Errorf("count waves: %w", err)
	}
	return n, nil
}
