package progress

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })
	return &PostgresStore{pool: mock}, mock
}

func TestPostgres_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS progress_entries`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_Load(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	updated := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT company_id, result::text, error FROM progress_entries WHERE source = \$1`).
		WithArgs("wanted").
		WillReturnRows(pgxmock.NewRows([]string{"company_id", "result", "error"}).
			AddRow("a", `{"isHiring":true}`, nil).
			AddRow("b", nil, "timeout"))
	mock.ExpectQuery(`SELECT last_updated FROM progress_sources WHERE source = \$1`).
		WithArgs("wanted").
		WillReturnRows(pgxmock.NewRows([]string{"last_updated"}).AddRow(updated))

	doc, err := s.Load(context.Background(), "wanted")
	require.NoError(t, err)
	assert.JSONEq(t, `{"isHiring":true}`, string(doc.Completed["a"]))
	assert.Equal(t, "timeout", doc.Failed["b"])
	require.NotNil(t, doc.LastUpdated)
	assert.True(t, updated.Equal(doc.LastUpdated.Time))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_LoadUnknownSource(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT company_id`).
		WithArgs("geocode").
		WillReturnRows(pgxmock.NewRows([]string{"company_id", "result", "error"}))
	mock.ExpectQuery(`SELECT last_updated`).
		WithArgs("geocode").
		WillReturnError(pgx.ErrNoRows)

	doc, err := s.Load(context.Background(), "geocode")
	require.NoError(t, err)
	assert.Empty(t, doc.Completed)
	assert.Nil(t, doc.LastUpdated)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_LoadQueryError(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	mock.ExpectQuery(`SELECT company_id`).WithArgs("wanted").WillReturnError(errors.New("conn refused"))

	_, err := s.Load(context.Background(), "wanted")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "query entries")
}

func TestPostgres_ApplyCompleted(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	at := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO progress_entries .* ON CONFLICT \(source, company_id\) DO UPDATE SET result = EXCLUDED.result, error = NULL`).
		WithArgs("wanted", "a", `{"isHiring":true}`, at).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO progress_sources`).
		WithArgs("wanted", at).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	err := s.Apply(context.Background(), "wanted", nil, Change{
		Op: OpCompleted, ID: "a", Result: []byte(`{"isHiring":true}`), At: at,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_ApplyResetFailed(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	at := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM progress_entries WHERE source = \$1 AND result IS NULL`).
		WithArgs("jobplanet").
		WillReturnResult(pgxmock.NewResult("DELETE", 3))
	mock.ExpectExec(`INSERT INTO progress_sources`).
		WithArgs("jobplanet", at).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	require.NoError(t, s.Apply(context.Background(), "jobplanet", nil, Change{Op: OpResetFailed, At: at}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_ApplyRollsBackOnError(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	at := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO progress_entries`).
		WithArgs("wanted", "a", "timeout", at).
		WillReturnError(errors.New("deadlock"))
	mock.ExpectRollback()

	err := s.Apply(context.Background(), "wanted", nil, Change{Op: OpFailed, ID: "a", Error: "timeout", At: at})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "apply failed")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_TrackerUsesStore(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	ctx := context.Background()

	mock.ExpectQuery(`SELECT company_id`).WithArgs("geocode").
		WillReturnRows(pgxmock.NewRows([]string{"company_id", "result", "error"}))
	mock.ExpectQuery(`SELECT last_updated`).WithArgs("geocode").WillReturnError(pgx.ErrNoRows)

	tr, err := Open(ctx, s, "geocode")
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM progress_entries WHERE source = \$1$`).WithArgs("geocode").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec(`INSERT INTO progress_sources`).WithArgs("geocode", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	require.NoError(t, tr.Reset(ctx))
	assert.NoError(t, mock.ExpectationsWereMet())
}
