// Package postgres implements storage.Client on a single PostgreSQL table of
// JSONB nodes keyed by (path, key).
package postgres

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/xenking/storefront/internal/storage"
)

const (
	listNodesSQL = `SELECT key, value FROM nodes WHERE path = $1 ORDER BY key`

	getNodeSQL = `SELECT value FROM nodes WHERE path = $1 AND key = $2`

	lockNodeSQL = `SELECT value FROM nodes WHERE path = $1 AND key = $2 FOR UPDATE`

	upsertNodeSQL = `INSERT INTO nodes (path, key, value) VALUES ($1, $2, $3)
		ON CONFLICT (path, key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`

	mergeNodeSQL = `INSERT INTO nodes (path, key, value) VALUES ($1, $2, $3)
		ON CONFLICT (path, key) DO UPDATE SET value = nodes.value || EXCLUDED.value, updated_at = now()`

	deleteNodeSQL = `DELETE FROM nodes WHERE path = $1 AND key = $2`

	deleteChildrenSQL = `DELETE FROM nodes WHERE path = $1`
)

// DB is the subset of pgxpool.Pool the store needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
}

var _ storage.Client = (*Store)(nil)

// Store is a storage.Client backed by PostgreSQL.
type Store struct {
	db  DB
	now func() time.Time
}

// NewStore returns a Store using db.
func NewStore(db DB) *Store {
	return &Store{db: db, now: time.Now}
}

func (s *Store) GetAll(ctx context.Context, path string) ([]storage.Entry, error) {
	if err := storage.ValidatePath(path); err != nil {
		return nil, err
	}

	rows, err := s.db.Query(ctx, listNodesSQL, path)
	if err != nil {
		return nil, storage.Transport("get all", path, err)
	}

	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (storage.Entry, error) {
		var (
			key  string
			data []byte
		)
		if err := row.Scan(&key, &data); err != nil {
			return storage.Entry{}, err
		}
		rec, err := storage.Decode(data)
		if err != nil {
			return storage.Entry{}, err
		}
		return storage.Entry{Key: key, Value: rec}, nil
	})
	if err != nil {
		return nil, storage.Transport("get all", path, err)
	}
	return entries, nil
}

func (s *Store) GetByID(ctx context.Context, path, key string) (storage.Record, error) {
	if err := validate(path, key); err != nil {
		return nil, err
	}

	var data []byte
	if err := s.db.QueryRow(ctx, getNodeSQL, path, key).Scan(&data); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, storage.Transport("get", path, err)
	}

	rec, err := storage.Decode(data)
	if err != nil {
		return nil, storage.Transport("get", path, err)
	}
	return rec, nil
}

func (s *Store) Create(ctx context.Context, path string, rec storage.Record) (string, error) {
	key := storage.NewKey()
	if err := s.Set(ctx, path, key, rec); err != nil {
		return "", err
	}
	return key, nil
}

func (s *Store) Set(ctx context.Context, path, key string, rec storage.Record) error {
	return s.write(ctx, "set", upsertNodeSQL, path, key, rec)
}

func (s *Store) Patch(ctx context.Context, path, key string, fields storage.Record) error {
	return s.write(ctx, "patch", mergeNodeSQL, path, key, fields)
}

func (s *Store) write(ctx context.Context, op, query, path, key string, rec storage.Record) error {
	if err := validate(path, key); err != nil {
		return err
	}

	data, err := storage.Encode(storage.Resolve(rec, s.now()))
	if err != nil {
		return err
	}

	if _, err := s.db.Exec(ctx, query, path, key, data); err != nil {
		return storage.Transport(op, path, err)
	}
	return nil
}

func (s *Store) Remove(ctx context.Context, path, key string) error {
	if err := validate(path, key); err != nil {
		return err
	}

	if _, err := s.db.Exec(ctx, deleteNodeSQL, path, key); err != nil {
		return storage.Transport("remove", path, err)
	}
	return nil
}

func (s *Store) ReplaceAll(ctx context.Context, path string, recs []storage.Record) (keys []string, rerr error) {
	if err := storage.ValidatePath(path); err != nil {
		return nil, err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, storage.Transport("replace all", path, err)
	}
	defer func() {
		if rerr != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if _, err := tx.Exec(ctx, deleteChildrenSQL, path); err != nil {
		return nil, storage.Transport("replace all", path, err)
	}

	now := s.now()
	keys = make([]string, len(recs))
	for i, rec := range recs {
		data, err := storage.Encode(storage.Resolve(rec, now))
		if err != nil {
			return nil, err
		}
		keys[i] = storage.NewKey()
		if _, err := tx.Exec(ctx, upsertNodeSQL, path, keys[i], data); err != nil {
			return nil, storage.Transport("replace all", path, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, storage.Transport("replace all", path, err)
	}
	return keys, nil
}

func (s *Store) Transact(
	ctx context.Context,
	path, key string,
	fn func(storage.Record) (storage.Record, error),
) (_ storage.Record, rerr error) {
	if err := validate(path, key); err != nil {
		return nil, err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, storage.Transport("transact", path, err)
	}
	defer func() {
		if rerr != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	var data []byte
	if err := tx.QueryRow(ctx, lockNodeSQL, path, key).Scan(&data); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, storage.Transport("transact", path, err)
	}

	cur, err := storage.Decode(data)
	if err != nil {
		return nil, storage.Transport("transact", path, err)
	}

	next, err := fn(cur)
	if err != nil {
		return nil, err
	}

	encoded, err := storage.Encode(storage.Resolve(next, s.now()))
	if err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx, upsertNodeSQL, path, key, encoded); err != nil {
		return nil, storage.Transport("transact", path, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, storage.Transport("transact", path, err)
	}
	return storage.Decode(encoded)
}

func (s *Store) Ping(ctx context.Context) error {
	return storage.Transport("ping", "", s.db.Ping(ctx))
}

func validate(path, key string) error {
	if err := storage.ValidatePath(path); err != nil {
		return err
	}
	return storage.ValidateKey(key)
}
