package storage

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/sony/gobreaker/v2"
)

// BreakerConfig controls the circuit breaker placed in front of a Client.
type BreakerConfig struct {
	Name         string
	Timeout      time.Duration
	Interval     time.Duration
	MinRequests  uint32
	FailureRatio float64
}

// Breaker fails fast with a *TransportError while the backing store keeps
// failing. Only transport errors count as failures.
type Breaker struct {
	next Client
	cb   *gobreaker.CircuitBreaker[any]
}

var _ Client = (*Breaker)(nil)

// WithBreaker wraps next with a circuit breaker.
func WithBreaker(next Client, cfg BreakerConfig) *Breaker {
	if cfg.Name == "" {
		cfg.Name = "storage"
	}
	if cfg.MinRequests == 0 {
		cfg.MinRequests = 5
	}
	if cfg.FailureRatio <= 0 {
		cfg.FailureRatio = 0.5
	}
	st := gobreaker.Settings{
		Name:     cfg.Name,
		Timeout:  cfg.Timeout,
		Interval: cfg.Interval,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureRatio
		},
		IsSuccessful: func(err error) bool {
			var te *TransportError
			return !errors.As(err, &te)
		},
	}
	return &Breaker{next: next, cb: gobreaker.NewCircuitBreaker[any](st)}
}

// State reports the breaker state, e.g. for logging.
func (b *Breaker) State() gobreaker.State { return b.cb.State() }

func (b *Breaker) do(op, path string, fn func() (any, error)) (any, error) {
	v, err := b.cb.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, &TransportError{Op: op, Path: path, Err: err}
	}
	return v, err
}

func (b *Breaker) GetAll(ctx context.Context, path string) ([]Entry, error) {
	v, err := b.do("get all", path, func() (any, error) { return b.next.GetAll(ctx, path) })
	if err != nil {
		return nil, err
	}
	return v.([]Entry), nil
}

func (b *Breaker) GetByID(ctx context.Context, path, key string) (Record, error) {
	v, err := b.do("get", path, func() (any, error) { return b.next.GetByID(ctx, path, key) })
	if err != nil {
		return nil, err
	}
	return v.(Record), nil
}

func (b *Breaker) Create(ctx context.Context, path string, rec Record) (string, error) {
	v, err := b.do("create", path, func() (any, error) { return b.next.Create(ctx, path, rec) })
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (b *Breaker) Set(ctx context.Context, path, key string, rec Record) error {
	_, err := b.do("set", path, func() (any, error) { return nil, b.next.Set(ctx, path, key, rec) })
	return err
}

func (b *Breaker) Patch(ctx context.Context, path, key string, fields Record) error {
	_, err := b.do("patch", path, func() (any, error) { return nil, b.next.Patch(ctx, path, key, fields) })
	return err
}

func (b *Breaker) Remove(ctx context.Context, path, key string) error {
	_, err := b.do("remove", path, func() (any, error) { return nil, b.next.Remove(ctx, path, key) })
	return err
}

func (b *Breaker) ReplaceAll(ctx context.Context, path string, recs []Record) ([]string, error) {
	v, err := b.do("replace all", path, func() (any, error) { return b.next.ReplaceAll(ctx, path, recs) })
	if err != nil {
		return nil, err
	}
	return v.([]string), nil
}

func (b *Breaker) Transact(ctx context.Context, path, key string, fn func(Record) (Record, error)) (Record, error) {
	v, err := b.do("transact", path, func() (any, error) { return b.next.Transact(ctx, path, key, fn) })
	if err != nil {
		return nil, err
	}
	return v.(Record), nil
}

func (b *Breaker) Ping(ctx context.Context) error {
	_, err := b.do("ping", "", func() (any, error) { return nil, b.next.Ping(ctx) })
	return err
}
