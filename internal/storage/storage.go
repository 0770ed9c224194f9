// Package storage defines the remote hierarchical key-value store the
// storefront persists to. Records live under a slash-separated path
// ("products", "orders/{userId}") and are addressed by a child key.
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
)

// ErrNotFound is returned when a keyed record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrInvalidPath is returned for empty paths or keys and for segments that
// contain reserved characters.
var ErrInvalidPath = errors.New("invalid path")

// ServerTimestamp is a placeholder value that backends replace with the
// current time in unix milliseconds at write time.
const ServerTimestamp = ".sv:timestamp"

// Record is a loosely-typed stored value. Numbers decode as json.Number.
type Record map[string]any

// Entry is a keyed record returned by GetAll.
type Entry struct {
	Key   string
	Value Record
}

// Client is the contract every store backend implements. All operations are
// blocking round trips; failures other than ErrNotFound surface as
// *TransportError.
type Client interface {
	// GetAll returns every child of path ordered by key.
	GetAll(ctx context.Context, path string) ([]Entry, error)
	// GetByID returns the record at path/key or ErrNotFound.
	GetByID(ctx context.Context, path, key string) (Record, error)
	// Create stores rec under a newly assigned, time-ordered key.
	Create(ctx context.Context, path string, rec Record) (string, error)
	// Set replaces the record at path/key.
	Set(ctx context.Context, path, key string, rec Record) error
	// Patch shallow-merges fields into the record at path/key, creating it
	// when absent.
	Patch(ctx context.Context, path, key string, fields Record) error
	// Remove deletes the record at path/key. Missing records are not an error.
	Remove(ctx context.Context, path, key string) error
	// ReplaceAll drops every child of path and creates recs in order,
	// returning the assigned keys.
	ReplaceAll(ctx context.Context, path string, recs []Record) ([]string, error)
	// Transact applies fn to the current record at path/key and stores the
	// result atomically. Returns ErrNotFound when the record is missing.
	Transact(ctx context.Context, path, key string, fn func(Record) (Record, error)) (Record, error)
	// Ping checks connectivity.
	Ping(ctx context.Context) error
}

// TransportError reports a failed round trip to the backing store.
type TransportError struct {
	Op   string
	Path string
	Err  error
}

func (e *TransportError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("storage %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Transport wraps err into a *TransportError unless it is nil, already a
// transport error, or one of the package sentinels.
func Transport(op, path string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidPath) {
		return err
	}
	var te *TransportError
	if errors.As(err, &te) {
		return err
	}
	return &TransportError{Op: op, Path: path, Err: err}
}

// Join builds a path from segments, e.g. Join("orders", uid).
func Join(segments ...string) string {
	return strings.Join(segments, "/")
}

// ValidatePath checks every segment of path.
func ValidatePath(path string) error {
	if path == "" {
		return errors.Wrap(ErrInvalidPath, "empty path")
	}
	for _, seg := range strings.Split(path, "/") {
		if err := ValidateKey(seg); err != nil {
			return errors.Wrapf(err, "path %q", path)
		}
	}
	return nil
}

// ValidateKey rejects empty keys and keys containing . # $ [ ] or /.
func ValidateKey(key string) error {
	if key == "" {
		return errors.Wrap(ErrInvalidPath, "empty key")
	}
	if strings.ContainsAny(key, ".#$[]/") {
		return errors.Wrapf(ErrInvalidPath, "key %q contains a reserved character", key)
	}
	return nil
}

// NewKey returns a time-ordered push key. UUIDv7 strings sort by creation time.
func NewKey() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Resolve returns a copy of rec with every ServerTimestamp placeholder
// replaced by now in unix milliseconds. Nested maps are resolved too.
func Resolve(rec Record, now time.Time) Record {
	out := make(Record, len(rec))
	for k, v := range rec {
		out[k] = resolveValue(v, now)
	}
	return out
}

func resolveValue(v any, now time.Time) any {
	switch t := v.(type) {
	case string:
		if t == ServerTimestamp {
			return now.UnixMilli()
		}
		return t
	case Record:
		return Resolve(t, now)
	case map[string]any:
		return map[string]any(Resolve(t, now))
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = resolveValue(t[i], now)
		}
		return out
	default:
		return v
	}
}

// Merge returns base with fields shallow-merged on top. Neither input is
// modified.
func Merge(base, fields Record) Record {
	out := make(Record, len(base)+len(fields))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range fields {
		out[k] = v
	}
	return out
}

// Encode serializes rec for storage.
func Encode(rec Record) ([]byte, error) {
	if rec == nil {
		rec = Record{}
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, errors.Wrap(err, "encode record")
	}
	return data, nil
}

// Decode parses a stored record, keeping numbers as json.Number so callers
// see them exactly as written.
func Decode(data []byte) (Record, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var rec Record
	if err := dec.Decode(&rec); err != nil {
		return nil, errors.Wrap(err, "decode record")
	}
	if rec == nil {
		rec = Record{}
	}
	return rec, nil
}
