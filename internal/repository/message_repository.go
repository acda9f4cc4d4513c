package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const chatHistorySchema = `
	CREATE TABLE IF NOT EXISTS chat_history (
		seq        BIGSERIAL PRIMARY KEY,
		list_key   TEXT        NOT NULL,
		payload    JSONB       NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);
	CREATE INDEX IF NOT EXISTS chat_history_key_seq ON chat_history (list_key, seq);
`

// PostgresMessageList stores each list as rows ordered by seq.
type PostgresMessageList struct {
	pool *pgxpool.Pool
}

func NewPostgresMessageList(pool *pgxpool.Pool) *PostgresMessageList {
	return &PostgresMessageList{pool: pool}
}

func (r *PostgresMessageList) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, chatHistorySchema); err != nil {
		return fmt.Errorf("create chat_history: %w", err)
	}
	return nil
}

func (r *PostgresMessageList) Push(ctx context.Context, key string, value []byte) error {
	const query = `INSERT INTO chat_history (list_key, payload) VALUES ($1, $2)`

	if _, err := r.pool.Exec(ctx, query, key, value); err != nil {
		return fmt.Errorf("insert into %s: %w", key, err)
	}
	return nil
}

func (r *PostgresMessageList) Len(ctx context.Context, key string) (int64, error) {
	const query = `SELECT count(*) FROM chat_history WHERE list_key = $1`

	var n int64
	if err := r.pool.QueryRow(ctx, query, key).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", key, err)
	}
	return n, nil
}

func (r *PostgresMessageList) Range(ctx context.Context, key string, start, stop int64) ([][]byte, error) {
	var n int64
	if start < 0 || stop < 0 {
		var err error
		if n, err = r.Len(ctx, key); err != nil {
			return nil, err
		}
	} else {
		// Bounds are already absolute; only the upper clamp needs n, and
		// LIMIT handles that.
		n = stop + 1
	}

	lo, hi, ok := resolveRange(start, stop, n)
	if !ok {
		return [][]byte{}, nil
	}

	const query = `
		SELECT payload
		FROM chat_history
		WHERE list_key = $1
		ORDER BY seq ASC
		OFFSET $2
		LIMIT $3
	`

	rows, err := r.pool.Query(ctx, query, key, lo, hi-lo)
	if err != nil {
		return nil, fmt.Errorf("range %s: %w", key, err)
	}
	defer rows.Close()

	out := make([][]byte, 0, hi-lo)
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan %s: %w", key, err)
		}
		out = append(out, payload)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("range %s: %w", key, err)
	}
	return out, nil
}

// Close is a no-op; the pool belongs to the caller.
func (r *PostgresMessageList) Close() error { return nil }
