package progress

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/byeongteuk/btmap/internal/model"
)

// Pool is the subset of *pgxpool.Pool used by PostgresStore, so tests can
// substitute pgxmock.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

// PostgresStore keeps progress for every source in Postgres.
type PostgresStore struct {
	pool Pool
}

// NewPostgres connects a pool to connString.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	cfg.MaxConns = 4
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS progress_entries (
	source     TEXT NOT NULL,
	company_id TEXT NOT NULL,
	result     JSONB,
	error      TEXT,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (source, company_id)
);

CREATE TABLE IF NOT EXISTS progress_sources (
	source       TEXT PRIMARY KEY,
	last_updated TIMESTAMPTZ
);
`

// Migrate creates the progress tables.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

// Close closes the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// Load reads every entry of source.
func (s *PostgresStore) Load(ctx context.Context, source string) (*Document, error) {
	doc := NewDocument()

	rows, err := s.pool.Query(ctx,
		`SELECT company_id, result::text, error FROM progress_entries WHERE source = $1`, source)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query entries")
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var result, errMsg sql.NullString
		if err := rows.Scan(&id, &result, &errMsg); err != nil {
			return nil, eris.Wrap(err, "postgres: scan entry")
		}
		addEntry(doc, id, result, errMsg)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate entries")
	}

	var last sql.NullTime
	err = s.pool.QueryRow(ctx,
		`SELECT last_updated FROM progress_sources WHERE source = $1`, source).Scan(&last)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
	case err != nil:
		return nil, eris.Wrap(err, "postgres: query source")
	case last.Valid:
		t := last.Time.UTC()
		doc.LastUpdated = model.NewTimestamp(t)
	}

	return doc, nil
}

// Apply records change in a single transaction.
func (s *PostgresStore) Apply(ctx context.Context, source string, _ *Document, change Change) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var err error
		switch change.Op {
		case OpCompleted:
			_, err = tx.Exec(ctx,
				`INSERT INTO progress_entries (source, company_id, result, error, updated_at) VALUES ($1, $2, $3::jsonb, NULL, $4)
				 ON CONFLICT (source, company_id) DO UPDATE SET result = EXCLUDED.result, error = NULL, updated_at = EXCLUDED.updated_at`,
				source, change.ID, string(change.Result), change.At)
		case OpFailed:
			_, err = tx.Exec(ctx,
				`INSERT INTO progress_entries (source, company_id, result, error, updated_at) VALUES ($1, $2, NULL, $3, $4)
				 ON CONFLICT (source, company_id) DO UPDATE SET error = EXCLUDED.error, updated_at = EXCLUDED.updated_at`,
				source, change.ID, change.Error, change.At)
		case OpForget:
			_, err = tx.Exec(ctx,
				`DELETE FROM progress_entries WHERE source = $1 AND company_id = $2`, source, change.ID)
		case OpReset:
			_, err = tx.Exec(ctx, `DELETE FROM progress_entries WHERE source = $1`, source)
		case OpResetFailed:
			_, err = tx.Exec(ctx,
				`DELETE FROM progress_entries WHERE source = $1 AND result IS NULL`, source)
		default:
			return eris.Errorf("postgres: unknown op %q", change.Op)
		}
		if err != nil {
			return eris.Wrapf(err, "postgres: apply %s", change.Op)
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO progress_sources (source, last_updated) VALUES ($1, $2)
			 ON CONFLICT (source) DO UPDATE SET last_updated = EXCLUDED.last_updated`,
			source, change.At)
		return eris.Wrap(err, "postgres: touch source")
	})
}
