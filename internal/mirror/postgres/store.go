package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/krazyTry/meteora-graduator/internal/mirror"
)

const schema = `
CREATE TABLE IF NOT EXISTS fund_data (
	bonding_curve_pool  TEXT PRIMARY KEY,
	base_mint           TEXT NOT NULL DEFAULT '',
	damm_v2_pool        TEXT NOT NULL DEFAULT '',
	migrated_at         TIMESTAMPTZ,
	state               TEXT NOT NULL DEFAULT 'TRADING',
	attempts            INTEGER NOT NULL DEFAULT 0,
	last_error          TEXT NOT NULL DEFAULT '',
	last_step           TEXT NOT NULL DEFAULT '',
	next_attempt_at     TIMESTAMPTZ,
	metadata_signature  TEXT NOT NULL DEFAULT '',
	migration_signature TEXT NOT NULL DEFAULT '',
	updated_at          TIMESTAMPTZ NOT NULL DEFAULT now()
)`

const columns = `bonding_curve_pool, base_mint, damm_v2_pool, migrated_at, state, attempts,
	last_error, last_step, next_attempt_at, metadata_signature, migration_signature, updated_at`

// Store provides Postgres persistence for the pool mirror.
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

// EnsureSchema creates the fund_data table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schema)
	return err
}

func (s *Store) Close(context.Context) error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

func scanFundData(row pgx.Row) (*mirror.FundData, error) {
	var (
		f     mirror.FundData
		state string
	)
	if err := row.Scan(
		&f.BondingCurvePool,
		&f.BaseMint,
		&f.DammV2Pool,
		&f.MigratedAt,
		&state,
		&f.Attempts,
		&f.LastError,
		&f.LastStep,
		&f.NextAttemptAt,
		&f.MetadataSignature,
		&f.MigrationSignature,
		&f.UpdatedAt,
	); err != nil {
		return nil, err
	}
	f.State = mirror.State(state)
	return &f, nil
}

func (s *Store) ListPools(ctx context.Context) ([]mirror.FundData, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+columns+` FROM fund_data ORDER BY bonding_curve_pool`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []mirror.FundData
	for rows.Next() {
		f, err := scanFundData(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *f)
	}
	return out, rows.Err()
}

func (s *Store) Get(ctx context.Context, pool string) (*mirror.FundData, error) {
	f, err := scanFundData(s.pool.QueryRow(ctx, `SELECT `+columns+` FROM fund_data WHERE bonding_curve_pool = $1`, pool))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, mirror.ErrNotFound
	}
	return f, err
}

func (s *Store) Upsert(ctx context.Context, data mirror.FundData) error {
	state := data.State
	if state == "" {
		state = mirror.StateTrading
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO fund_data (bonding_curve_pool, base_mint, state, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (bonding_curve_pool)
		DO UPDATE SET
			base_mint = CASE WHEN EXCLUDED.base_mint = '' THEN fund_data.base_mint ELSE EXCLUDED.base_mint END,
			updated_at = now()
	`, data.BondingCurvePool, data.BaseMint, string(state))
	return err
}

func (s *Store) SaveProgress(ctx context.Context, pool string, p mirror.Progress) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE fund_data SET
			state = $2,
			attempts = $3,
			last_error = $4,
			last_step = $5,
			next_attempt_at = $6,
			metadata_signature = CASE WHEN $7::text = '' THEN metadata_signature ELSE $7::text END,
			migration_signature = CASE WHEN $8::text = '' THEN migration_signature ELSE $8::text END,
			updated_at = now()
		WHERE bonding_curve_pool = $1 AND damm_v2_pool = ''
	`, pool, string(p.State), p.Attempts, p.LastError, p.LastStep, p.NextAttemptAt, p.MetadataSignature, p.MigrationSignature)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		if _, err := s.Get(ctx, pool); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) SetMigrated(ctx context.Context, pool, dammV2Pool string, at time.Time) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE fund_data SET
			damm_v2_pool = $2,
			migrated_at = $3,
			state = $4,
			last_error = '',
			next_attempt_at = NULL,
			updated_at = now()
		WHERE bonding_curve_pool = $1 AND damm_v2_pool = ''
	`, pool, dammV2Pool, at.UTC(), string(mirror.StateSettled))
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}
	if _, err := s.Get(ctx, pool); err != nil {
		return false, err
	}
	return false, nil
}

var _ mirror.Store = (*Store)(nil)
