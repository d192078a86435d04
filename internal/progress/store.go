package progress

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
)

// Op identifies the kind of change applied to a document.
type Op string

// Change operations.
const (
	OpCompleted   Op = "completed"
	OpFailed      Op = "failed"
	OpForget      Op = "forget"
	OpReset       Op = "reset"
	OpResetFailed Op = "reset_failed"
)

// Change describes one mutation. Document-oriented stores rewrite the whole
// document; row-oriented stores apply the change alone.
type Change struct {
	Op     Op
	ID     string
	Result json.RawMessage
	Error  string
	At     time.Time
}

// Store persists progress documents, one per source.
type Store interface {
	// Load returns the document of source, empty when none was saved yet.
	Load(ctx context.Context, source string) (*Document, error)

	// Apply durably records change. doc is the full document after the
	// change has been applied in memory.
	Apply(ctx context.Context, source string, doc *Document, change Change) error

	Close() error
}

// Drivers accepted by OpenStore.
const (
	DriverJSON     = "json"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// OpenStore opens the store selected by driver. dir is used by the json
// driver, dsn by the database drivers.
func OpenStore(ctx context.Context, driver, dir, dsn string) (Store, error) {
	switch driver {
	case DriverJSON, "":
		return NewFileStore(dir)
	case DriverSQLite:
		s, err := NewSQLite(dsn)
		if err != nil {
			return nil, err
		}
		if err := s.Migrate(ctx); err != nil {
			_ = s.Close()
			return nil, err
		}
		return s, nil
	case DriverPostgres:
		s, err := NewPostgres(ctx, dsn)
		if err != nil {
			return nil, err
		}
		if err := s.Migrate(ctx); err != nil {
			_ = s.Close()
			return nil, err
		}
		return s, nil
	default:
		return nil, eris.Errorf("progress: unknown driver %q", driver)
	}
}
