package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/i474232898/weather-records/internal/weather"
)

// ErrCircuitOpen is returned while the breaker rejects calls to the backing store.
var ErrCircuitOpen = errors.New("store circuit breaker open")

// BreakerSettings controls when the breaker trips and how long it stays open.
type BreakerSettings struct {
	ConsecutiveFailures uint32
	MaxRequests         uint32
	Interval            time.Duration
	Timeout             time.Duration
}

// DefaultBreakerSettings trips after five consecutive store failures and
// lets one call through again after thirty seconds.
var DefaultBreakerSettings = BreakerSettings{
	ConsecutiveFailures: 5,
	MaxRequests:         1,
	Interval:            time.Minute,
	Timeout:             30 * time.Second,
}

// BreakerStore guards a weather.Store with a circuit breaker. It never
// retries: a failed call is reported straight away, and while the breaker
// is open calls fail fast with ErrCircuitOpen.
type BreakerStore struct {
	next    weather.Store
	circuit *gobreaker.CircuitBreaker
}

// NewBreakerStore wraps next. ErrNotFound, ErrDuplicate and caller
// cancellation are treated as successful calls and do not count towards
// tripping.
func NewBreakerStore(next weather.Store, settings BreakerSettings, logger *zap.Logger) *BreakerStore {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "weather-store",
		MaxRequests: settings.MaxRequests,
		Interval:    settings.Interval,
		Timeout:     settings.Timeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= settings.ConsecutiveFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				zap.String("breaker", name),
				zap.Stringer("from", from),
				zap.Stringer("to", to))
		},
	})
	return &BreakerStore{next: next, circuit: cb}
}

// State returns the current breaker state.
func (b *BreakerStore) State() gobreaker.State {
	return b.circuit.State()
}

func (b *BreakerStore) Create(ctx context.Context, rec weather.Record) (weather.Record, error) {
	return guard(b, func() (weather.Record, error) { return b.next.Create(ctx, rec) })
}

func (b *BreakerStore) FindAll(ctx context.Context) ([]weather.Record, error) {
	return guard(b, func() ([]weather.Record, error) { return b.next.FindAll(ctx) })
}

func (b *BreakerStore) FindByLocation(ctx context.Context, location string) (weather.Record, error) {
	return guard(b, func() (weather.Record, error) { return b.next.FindByLocation(ctx, location) })
}

func (b *BreakerStore) Find(ctx context.Context, q weather.Query) ([]weather.Record, error) {
	return guard(b, func() ([]weather.Record, error) { return b.next.Find(ctx, q) })
}

func (b *BreakerStore) Delete(ctx context.Context, location string) (int64, error) {
	return guard(b, func() (int64, error) { return b.next.Delete(ctx, location) })
}

func (b *BreakerStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return guard(b, func() (int64, error) { return b.next.DeleteBefore(ctx, cutoff) })
}

// Ping forwards to the wrapped store when it supports it.
func (b *BreakerStore) Ping(ctx context.Context) error {
	if p, ok := b.next.(interface{ Ping(context.Context) error }); ok {
		return p.Ping(ctx)
	}
	return nil
}

func guard[T any](b *BreakerStore, call func() (T, error)) (T, error) {
	var domainErr error
	result, err := b.circuit.Execute(func() (interface{}, error) {
		v, err := call()
		if isExcluded(err) {
			domainErr = err
			return v, nil
		}
		return v, err
	})

	var zero T
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return zero, fmt.Errorf("%w: %v", ErrCircuitOpen, err)
		}
		return zero, err
	}

	v, ok := result.(T)
	if !ok {
		return zero, fmt.Errorf("unexpected result type from circuit breaker")
	}
	return v, domainErr
}

// isExcluded reports errors that say nothing about the store's health.
func isExcluded(err error) bool {
	return errors.Is(err, weather.ErrNotFound) ||
		errors.Is(err, weather.ErrDuplicate) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
