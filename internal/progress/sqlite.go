package progress

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/byeongteuk/btmap/internal/model"
)

// SQLiteStore keeps every source's progress in one SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at dsn and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// A single connection keeps :memory: databases shared and serialises
	// writers.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS progress_entries (
	source     TEXT NOT NULL,
	company_id TEXT NOT NULL,
	result     TEXT,
	error      TEXT,
	updated_at TEXT NOT NULL,
	PRIMARY KEY (source, company_id)
);

CREATE TABLE IF NOT EXISTS progress_sources (
	source       TEXT PRIMARY KEY,
	last_updated TEXT
);
`

// Migrate creates the progress tables.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Load reads every entry of source.
func (s *SQLiteStore) Load(ctx context.Context, source string) (*Document, error) {
	doc := NewDocument()

	rows, err := s.db.QueryContext(ctx,
		`SELECT company_id, result, error FROM progress_entries WHERE source = ?`, source)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query entries")
	}
	defer rows.Close() //nolint:errcheck

	for rows.Next() {
		var id string
		var result, errMsg sql.NullString
		if err := rows.Scan(&id, &result, &errMsg); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan entry")
		}
		addEntry(doc, id, result, errMsg)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: iterate entries")
	}

	var last sql.NullString
	err = s.db.QueryRowContext(ctx,
		`SELECT last_updated FROM progress_sources WHERE source = ?`, source).Scan(&last)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return nil, eris.Wrap(err, "sqlite: query source")
	case last.Valid:
		t, perr := time.Parse(time.RFC3339Nano, last.String)
		if perr != nil {
			return nil, eris.Wrapf(perr, "sqlite: parse last_updated %q", last.String)
		}
		doc.LastUpdated = model.NewTimestamp(t)
	}

	return doc, nil
}

// Apply records change in a single transaction.
func (s *SQLiteStore) Apply(ctx context.Context, source string, _ *Document, change Change) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin")
	}
	defer tx.Rollback() //nolint:errcheck

	at := change.At.UTC().Format(time.RFC3339Nano)

	switch change.Op {
	case OpCompleted:
		_, err = tx.ExecContext(ctx,
			`INSERT INTO progress_entries (source, company_id, result, error, updated_at) VALUES (?, ?, ?, NULL, ?)
			 ON CONFLICT (source, company_id) DO UPDATE SET result = excluded.result, error = NULL, updated_at = excluded.updated_at`,
			source, change.ID, string(change.Result), at)
	case OpFailed:
		_, err = tx.ExecContext(ctx,
			`INSERT INTO progress_entries (source, company_id, result, error, updated_at) VALUES (?, ?, NULL, ?, ?)
			 ON CONFLICT (source, company_id) DO UPDATE SET error = excluded.error, updated_at = excluded.updated_at`,
			source, change.ID, change.Error, at)
	case OpForget:
		_, err = tx.ExecContext(ctx,
			`DELETE FROM progress_entries WHERE source = ? AND company_id = ?`, source, change.ID)
	case OpReset:
		_, err = tx.ExecContext(ctx, `DELETE FROM progress_entries WHERE source = ?`, source)
	case OpResetFailed:
		_, err = tx.ExecContext(ctx,
			`DELETE FROM progress_entries WHERE source = ? AND result IS NULL`, source)
	default:
		return eris.Errorf("sqlite: unknown op %q", change.Op)
	}
	if err != nil {
		return eris.Wrapf(err, "sqlite: apply %s", change.Op)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO progress_sources (source, last_updated) VALUES (?, ?)
		 ON CONFLICT (source) DO UPDATE SET last_updated = excluded.last_updated`,
		source, at); err != nil {
		return eris.Wrap(err, "sqlite: touch source")
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit")
}

func addEntry(doc *Document, id string, result, errMsg sql.NullString) {
	switch {
	case result.Valid:
		doc.Completed[id] = json.RawMessage(result.String)
	case errMsg.Valid:
		doc.Failed[id] = errMsg.String
	}
}
