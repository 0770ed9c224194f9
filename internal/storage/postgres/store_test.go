package postgres

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront/internal/storage"
)

func newStoreTestFixture(t *testing.T) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	s := NewStore(mock)
	s.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return s, mock
}

func nodeRows() *pgxmock.Rows {
	return pgxmock.NewRows([]string{"key", "value"})
}

// ---------------------------------------------------------------------------
// Reads
// ---------------------------------------------------------------------------

func TestStore_GetAll(t *testing.T) {
	s, mock := newStoreTestFixture(t)
	defer mock.Close()

	mock.ExpectQuery("SELECT key, value FROM nodes WHERE path =").
		WithArgs("products").
		WillReturnRows(nodeRows().
			AddRow("a", []byte(`{"name":"A","price":10.5}`)).
			AddRow("b", []byte(`{"name":"B"}`)))

	entries, err := s.GetAll(context.Background(), "products")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "a", entries[0].Key)
	assert.Equal(t, json.Number("10.5"), entries[0].Value["price"])
	assert.Equal(t, "B", entries[1].Value["name"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_GetAll_QueryError(t *testing.T) {
	s, mock := newStoreTestFixture(t)
	defer mock.Close()

	mock.ExpectQuery("SELECT key, value FROM nodes").
		WithArgs("products").
		WillReturnError(errors.New("connection refused"))

	_, err := s.GetAll(context.Background(), "products")
	var te *storage.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "products", te.Path)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_GetByID_NotFound(t *testing.T) {
	s, mock := newStoreTestFixture(t)
	defer mock.Close()

	mock.ExpectQuery("SELECT value FROM nodes WHERE path = .+ AND key =").
		WithArgs("products", "missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetByID(context.Background(), "products", "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_GetByID_InvalidKeyNeverQueries(t *testing.T) {
	s, mock := newStoreTestFixture(t)
	defer mock.Close()

	_, err := s.GetByID(context.Background(), "products", "a.b")
	assert.ErrorIs(t, err, storage.ErrInvalidPath)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ---------------------------------------------------------------------------
// Writes
// ---------------------------------------------------------------------------

func TestStore_Set_ResolvesTimestamp(t *testing.T) {
	s, mock := newStoreTestFixture(t)
	defer mock.Close()

	mock.ExpectExec("INSERT INTO nodes").
		WithArgs("orders/u1", "o1", []byte(`{"createdAt":1700000000000}`)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.Set(context.Background(), "orders/u1", "o1", storage.Record{"createdAt": storage.ServerTimestamp})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Patch_UsesJSONBMerge(t *testing.T) {
	s, mock := newStoreTestFixture(t)
	defer mock.Close()

	mock.ExpectExec(`nodes\.value \|\| EXCLUDED\.value`).
		WithArgs("products", "p1", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.Patch(context.Background(), "products", "p1", storage.Record{"rating": 4})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Create_AssignsKey(t *testing.T) {
	s, mock := newStoreTestFixture(t)
	defer mock.Close()

	mock.ExpectExec("INSERT INTO nodes").
		WithArgs("products", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	key, err := s.Create(context.Background(), "products", storage.Record{"name": "X"})
	require.NoError(t, err)
	assert.NotEmpty(t, key)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Remove(t *testing.T) {
	s, mock := newStoreTestFixture(t)
	defer mock.Close()

	mock.ExpectExec("DELETE FROM nodes WHERE path = .+ AND key =").
		WithArgs("products", "p1").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	require.NoError(t, s.Remove(context.Background(), "products", "p1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_ReplaceAll(t *testing.T) {
	s, mock := newStoreTestFixture(t)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM nodes WHERE path =").
		WithArgs("products").
		WillReturnResult(pgxmock.NewResult("DELETE", 3))
	mock.ExpectExec("INSERT INTO nodes").
		WithArgs("products", pgxmock.AnyArg(), []byte(`{"name":"A"}`)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO nodes").
		WithArgs("products", pgxmock.AnyArg(), []byte(`{"name":"B"}`)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	keys, err := s.ReplaceAll(context.Background(), "products", []storage.Record{{"name": "A"}, {"name": "B"}})
	require.NoError(t, err)
	assert.Len(t, keys, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_ReplaceAll_RollsBackOnError(t *testing.T) {
	s, mock := newStoreTestFixture(t)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM nodes WHERE path =").
		WithArgs("products").
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	_, err := s.ReplaceAll(context.Background(), "products", []storage.Record{{"name": "A"}})
	var te *storage.TransportError
	require.ErrorAs(t, err, &te)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ---------------------------------------------------------------------------
// Transact
// ---------------------------------------------------------------------------

func TestStore_Transact(t *testing.T) {
	s, mock := newStoreTestFixture(t)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").
		WithArgs("products", "p1").
		WillReturnRows(pgxmock.NewRows([]string{"value"}).AddRow([]byte(`{"rating":0}`)))
	mock.ExpectExec("INSERT INTO nodes").
		WithArgs("products", "p1", []byte(`{"rating":5}`)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	got, err := s.Transact(context.Background(), "products", "p1", func(cur storage.Record) (storage.Record, error) {
		cur["rating"] = 5
		return cur, nil
	})
	require.NoError(t, err)
	assert.Equal(t, json.Number("5"), got["rating"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Transact_NotFound(t *testing.T) {
	s, mock := newStoreTestFixture(t)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").
		WithArgs("products", "missing").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	_, err := s.Transact(context.Background(), "products", "missing", func(cur storage.Record) (storage.Record, error) {
		return cur, nil
	})
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Transact_FnErrorRollsBack(t *testing.T) {
	s, mock := newStoreTestFixture(t)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").
		WithArgs("products", "p1").
		WillReturnRows(pgxmock.NewRows([]string{"value"}).AddRow([]byte(`{}`)))
	mock.ExpectRollback()

	boom := errors.New("invalid rating")
	_, err := s.Transact(context.Background(), "products", "p1", func(storage.Record) (storage.Record, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunMigrations(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS nodes").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, RunMigrations(context.Background(), mock))
	assert.NoError(t, mock.ExpectationsWereMet())
}
