package kv

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore persists slots in the kv_slots table. Writes are upserts, so a
// slot is last-writer-wins at whole-value granularity.
type PGStore struct {
	pool *pgxpool.Pool
}

func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

func (s *PGStore) Get(ctx context.Context, userID, slot string) ([]byte, error) {
	var value []byte
	err := s.pool.QueryRow(ctx,
		`SELECT value FROM kv_slots WHERE user_id = $1 AND slot = $2`,
		userID, slot,
	).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get slot %s: %w", slot, err)
	}
	return value, nil
}

func (s *PGStore) Put(ctx context.Context, userID, slot string, value []byte) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO kv_slots (user_id, slot, value, updated_at)
		 VALUES ($1, $2, $3, now())
		 ON CONFLICT (user_id, slot)
		 DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		userID, slot, value,
	)
	if err != nil {
		return fmt.Errorf("put slot %s: %w", slot, err)
	}
	return nil
}
