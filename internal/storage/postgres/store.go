package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"positionScope/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS positions (
	owner       TEXT        NOT NULL,
	position_id TEXT        NOT NULL,
	kind        TEXT        NOT NULL,
	token_id    NUMERIC     NOT NULL,
	pool        TEXT        NOT NULL,
	fee_tier    TEXT        NOT NULL,
	token_a     TEXT        NOT NULL,
	token_b     TEXT        NOT NULL,
	amount_a    NUMERIC     NOT NULL,
	amount_b    NUMERIC     NOT NULL,
	liquidity   NUMERIC     NOT NULL,
	tick_lower  INTEGER     NOT NULL,
	tick_upper  INTEGER     NOT NULL,
	generation  BIGINT      NOT NULL,
	payload     JSONB       NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (owner, position_id)
);
CREATE TABLE IF NOT EXISTS ownership_state (
	name       TEXT        PRIMARY KEY,
	last_block BIGINT      NOT NULL,
	owners     JSONB       NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
`

// Store provides Postgres persistence for position snapshots and the
// ownership scan checkpoint.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Migrate creates the tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schema)
	return err
}

// PutSnapshot makes Store a storage.SnapshotSink.
func (s *Store) PutSnapshot(ctx context.Context, snap model.Snapshot) error {
	return s.ReplaceSnapshot(ctx, snap)
}

// ReplaceSnapshot swaps every stored position of snap.Owner for the
// snapshot's content in one transaction.
func (s *Store) ReplaceSnapshot(ctx context.Context, snap model.Snapshot) error {
	if snap.Owner == "" {
		return fmt.Errorf("snapshot owner required")
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM positions WHERE owner = $1`, snap.Owner); err != nil {
		return fmt.Errorf("delete positions: %w", err)
	}

	batch := &pgx.Batch{}
	for _, pos := range snap.Positions {
		if err := queuePosition(batch, snap, "regular", pos.PositionBase, pos); err != nil {
			return err
		}
	}
	for _, pos := range snap.Staked {
		if err := queuePosition(batch, snap, "staked", pos.PositionBase, pos); err != nil {
			return err
		}
	}

	if batch.Len() > 0 {
		br := tx.SendBatch(ctx, batch)
		for i := 0; i < batch.Len(); i++ {
			if _, err := br.Exec(); err != nil {
				br.Close()
				return fmt.Errorf("insert position: %w", err)
			}
		}
		if err := br.Close(); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func queuePosition(batch *pgx.Batch, snap model.Snapshot, kind string, base model.PositionBase, full interface{}) error {
	payload, err := json.Marshal(full)
	if err != nil {
		return fmt.Errorf("marshal position %s: %w", base.ID, err)
	}
	batch.Queue(`
		INSERT INTO positions (
			owner, position_id, kind, token_id, pool, fee_tier, token_a, token_b,
			amount_a, amount_b, liquidity, tick_lower, tick_upper, generation, payload, updated_at
		) VALUES ($1,$2,$3,$4::numeric,$5,$6,$7,$8,$9::numeric,$10::numeric,$11::numeric,$12,$13,$14,$15,$16)
	`,
		snap.Owner,
		base.ID,
		kind,
		numeric(base.TokenID),
		base.Pool,
		base.FeeTier,
		base.TokenA,
		base.TokenB,
		numeric(base.AmountA),
		numeric(base.AmountB),
		numeric(base.Liquidity),
		base.TickLower,
		base.TickUpper,
		int64(snap.Generation),
		payload,
		snap.TakenAt,
	)
	return nil
}

func numeric(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

// LoadState returns the ownership checkpoint stored under name.
func (s *Store) LoadState(ctx context.Context, name string) (model.OwnershipState, bool, error) {
	if name == "" {
		return model.OwnershipState{}, false, fmt.Errorf("state name required")
	}
	var (
		lastBlock int64
		owners    []byte
	)
	row := s.pool.QueryRow(ctx, `SELECT last_block, owners FROM ownership_state WHERE name=$1`, name)
	if err := row.Scan(&lastBlock, &owners); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.OwnershipState{}, false, nil
		}
		return model.OwnershipState{}, false, err
	}
	state := model.OwnershipState{LastBlock: uint64(lastBlock)}
	if err := json.Unmarshal(owners, &state.Owners); err != nil {
		return model.OwnershipState{}, false, fmt.Errorf("parse owners: %w", err)
	}
	return state, true, nil
}

// SaveState upserts the ownership checkpoint stored under name.
func (s *Store) SaveState(ctx context.Context, name string, state model.OwnershipState) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	owners, err := json.Marshal(state.Owners)
	if err != nil {
		return fmt.Errorf("marshal owners: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO ownership_state (name, last_block, owners, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (name) DO UPDATE
		SET last_block = EXCLUDED.last_block, owners = EXCLUDED.owners, updated_at = now()
	`, name, int64(state.LastBlock), owners)
	return err
}
