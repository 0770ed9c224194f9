// Package redis implements storage.Client with one Redis hash per path.
// Read-modify-write operations use WATCH/MULTI optimistic transactions.
package redis

import (
	"context"
	"sort"
	"time"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"

	"github.com/xenking/storefront/internal/storage"
)

const (
	keyPrefix = "store:"

	// maxTxAttempts bounds WATCH retries when another writer touches the
	// same hash between read and commit.
	maxTxAttempts = 10
)

var _ storage.Client = (*Store)(nil)

// Store is a storage.Client backed by Redis.
type Store struct {
	client redis.UniversalClient
	now    func() time.Time
}

// NewStore returns a Store using client.
func NewStore(client redis.UniversalClient) *Store {
	return &Store{client: client, now: time.Now}
}

// Config holds Redis connection settings.
type Config struct {
	// URL, when set, takes precedence over the other fields.
	URL      string
	Addr     string
	Password string
	DB       int
}

// NewClient creates a Redis client and verifies the connection.
func NewClient(ctx context.Context, cfg Config) (*redis.Client, error) {
	opts := &redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
	if cfg.URL != "" {
		var err error
		if opts, err = redis.ParseURL(cfg.URL); err != nil {
			return nil, errors.Wrap(err, "parse redis url")
		}
	}
	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "ping redis")
	}

	return client, nil
}

func hashKey(path string) string { return keyPrefix + path }

func (s *Store) GetAll(ctx context.Context, path string) ([]storage.Entry, error) {
	if err := storage.ValidatePath(path); err != nil {
		return nil, err
	}

	fields, err := s.client.HGetAll(ctx, hashKey(path)).Result()
	if err != nil {
		return nil, storage.Transport("get all", path, err)
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]storage.Entry, 0, len(keys))
	for _, k := range keys {
		rec, err := storage.Decode([]byte(fields[k]))
		if err != nil {
			return nil, storage.Transport("get all", path, err)
		}
		out = append(out, storage.Entry{Key: k, Value: rec})
	}
	return out, nil
}

func (s *Store) GetByID(ctx context.Context, path, key string) (storage.Record, error) {
	if err := validate(path, key); err != nil {
		return nil, err
	}

	data, err := s.client.HGet(ctx, hashKey(path), key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
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
	if err := validate(path, key); err != nil {
		return err
	}

	data, err := storage.Encode(storage.Resolve(rec, s.now()))
	if err != nil {
		return err
	}

	if err := s.client.HSet(ctx, hashKey(path), key, data).Err(); err != nil {
		return storage.Transport("set", path, err)
	}
	return nil
}

func (s *Store) Patch(ctx context.Context, path, key string, fields storage.Record) error {
	if err := validate(path, key); err != nil {
		return err
	}

	_, err := s.update(ctx, "patch", path, key, func(cur storage.Record, found bool) (storage.Record, error) {
		if !found {
			cur = storage.Record{}
		}
		return storage.Merge(cur, fields), nil
	})
	return err
}

func (s *Store) Remove(ctx context.Context, path, key string) error {
	if err := validate(path, key); err != nil {
		return err
	}

	if err := s.client.HDel(ctx, hashKey(path), key).Err(); err != nil {
		return storage.Transport("remove", path, err)
	}
	return nil
}

func (s *Store) ReplaceAll(ctx context.Context, path string, recs []storage.Record) ([]string, error) {
	if err := storage.ValidatePath(path); err != nil {
		return nil, err
	}

	now := s.now()
	keys := make([]string, len(recs))
	values := make([]any, 0, 2*len(recs))
	for i, rec := range recs {
		data, err := storage.Encode(storage.Resolve(rec, now))
		if err != nil {
			return nil, err
		}
		keys[i] = storage.NewKey()
		values = append(values, keys[i], data)
	}

	hk := hashKey(path)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, hk)
		if len(values) > 0 {
			pipe.HSet(ctx, hk, values...)
		}
		return nil
	})
	if err != nil {
		return nil, storage.Transport("replace all", path, err)
	}
	return keys, nil
}

func (s *Store) Transact(
	ctx context.Context,
	path, key string,
	fn func(storage.Record) (storage.Record, error),
) (storage.Record, error) {
	if err := validate(path, key); err != nil {
		return nil, err
	}

	return s.update(ctx, "transact", path, key, func(cur storage.Record, found bool) (storage.Record, error) {
		if !found {
			return nil, storage.ErrNotFound
		}
		return fn(cur)
	})
}

func (s *Store) Ping(ctx context.Context) error {
	return storage.Transport("ping", "", s.client.Ping(ctx).Err())
}

// update runs fn inside a WATCH transaction on the path hash, retrying when
// a concurrent writer invalidates the watch.
func (s *Store) update(
	ctx context.Context,
	op, path, key string,
	fn func(cur storage.Record, found bool) (storage.Record, error),
) (storage.Record, error) {
	hk := hashKey(path)

	var (
		result storage.Record
		fnErr  error
	)
	txf := func(tx *redis.Tx) error {
		var (
			cur   storage.Record
			found bool
		)
		data, err := tx.HGet(ctx, hk, key).Bytes()
		switch {
		case err == nil:
			cur, err = storage.Decode(data)
			if err != nil {
				return err
			}
			found = true
		case errors.Is(err, redis.Nil):
		default:
			return err
		}

		next, err := fn(cur, found)
		if err != nil {
			fnErr = err
			return err
		}
		encoded, err := storage.Encode(storage.Resolve(next, s.now()))
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, hk, key, encoded)
			return nil
		})
		if err != nil {
			return err
		}
		result, err = storage.Decode(encoded)
		return err
	}

	for range maxTxAttempts {
		err := s.client.Watch(ctx, txf, hk)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if fnErr != nil {
			return nil, fnErr
		}
		if err != nil {
			return nil, storage.Transport(op, path, err)
		}
		return result, nil
	}
	return nil, storage.Transport(op, path, errors.New("too many concurrent writers"))
}

func validate(path, key string) error {
	if err := storage.ValidatePath(path); err != nil {
		return err
	}
	return storage.ValidateKey(key)
}
