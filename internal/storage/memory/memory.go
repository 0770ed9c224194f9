// Package memory implements storage.Client in process memory. Values are
// kept encoded so callers never share maps with the store.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/xenking/storefront/internal/storage"
)

var _ storage.Client = (*Store)(nil)

// Store is an in-memory storage.Client.
type Store struct {
	mu    sync.Mutex
	nodes map[string]map[string][]byte
	now   func() time.Time
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		nodes: make(map[string]map[string][]byte),
		now:   time.Now,
	}
}

func (s *Store) GetAll(_ context.Context, path string) ([]storage.Entry, error) {
	if err := storage.ValidatePath(path); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	children := s.nodes[path]
	keys := make([]string, 0, len(children))
	for k := range children {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]storage.Entry, 0, len(keys))
	for _, k := range keys {
		rec, err := storage.Decode(children[k])
		if err != nil {
			return nil, err
		}
		out = append(out, storage.Entry{Key: k, Value: rec})
	}
	return out, nil
}

func (s *Store) GetByID(_ context.Context, path, key string) (storage.Record, error) {
	if err := validate(path, key); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok := s.nodes[path][key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return storage.Decode(data)
}

func (s *Store) Create(ctx context.Context, path string, rec storage.Record) (string, error) {
	key := storage.NewKey()
	if err := s.Set(ctx, path, key, rec); err != nil {
		return "", err
	}
	return key, nil
}

func (s *Store) Set(_ context.Context, path, key string, rec storage.Record) error {
	if err := validate(path, key); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.put(path, key, rec)
	return err
}

func (s *Store) Patch(_ context.Context, path, key string, fields storage.Record) error {
	if err := validate(path, key); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	base := storage.Record{}
	if data, ok := s.nodes[path][key]; ok {
		cur, err := storage.Decode(data)
		if err != nil {
			return err
		}
		base = cur
	}
	_, err := s.put(path, key, storage.Merge(base, fields))
	return err
}

func (s *Store) Remove(_ context.Context, path, key string) error {
	if err := validate(path, key); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.nodes[path], key)
	return nil
}

func (s *Store) ReplaceAll(_ context.Context, path string, recs []storage.Record) ([]string, error) {
	if err := storage.ValidatePath(path); err != nil {
		return nil, err
	}

	encoded := make([][]byte, len(recs))
	for i, rec := range recs {
		data, err := storage.Encode(storage.Resolve(rec, s.now()))
		if err != nil {
			return nil, err
		}
		encoded[i] = data
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	children := make(map[string][]byte, len(recs))
	keys := make([]string, len(recs))
	for i, data := range encoded {
		keys[i] = storage.NewKey()
		children[keys[i]] = data
	}
	s.nodes[path] = children
	return keys, nil
}

func (s *Store) Transact(_ context.Context, path, key string, fn func(storage.Record) (storage.Record, error)) (storage.Record, error) {
	if err := validate(path, key); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok := s.nodes[path][key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cur, err := storage.Decode(data)
	if err != nil {
		return nil, err
	}
	next, err := fn(cur)
	if err != nil {
		return nil, err
	}
	stored, err := s.put(path, key, next)
	if err != nil {
		return nil, err
	}
	return storage.Decode(stored)
}

func (s *Store) Ping(context.Context) error { return nil }

// put stores rec and returns its encoded form; the caller must hold s.mu.
func (s *Store) put(path, key string, rec storage.Record) ([]byte, error) {
	data, err := storage.Encode(storage.Resolve(rec, s.now()))
	if err != nil {
		return nil, err
	}
	children, ok := s.nodes[path]
	if !ok {
		children = make(map[string][]byte)
		s.nodes[path] = children
	}
	children[key] = data
	return data, nil
}

func validate(path, key string) error {
	if err := storage.ValidatePath(path); err != nil {
		return err
	}
	return storage.ValidateKey(key)
}
