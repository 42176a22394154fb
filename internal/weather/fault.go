package weather

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/atomic"
)

// FaultConfig holds the artificial latency and failure settings consulted on
// the forecast path. It is safe for concurrent use; SetDelay is last-write-wins.
type FaultConfig struct {
	delayMs  atomic.Int64
	failRate float64

	clock clockwork.Clock
	draw  func() float64
}

// FaultOption customizes a FaultConfig.
type FaultOption func(*FaultConfig)

// WithClock sets the time source used for the artificial delay.
func WithClock(c clockwork.Clock) FaultOption {
	return func(f *FaultConfig) { f.clock = c }
}

// WithRandom sets the source of uniform [0,1) draws used for failures.
func WithRandom(draw func() float64) FaultOption {
	return func(f *FaultConfig) { f.draw = draw }
}

// NewFaultConfig creates a FaultConfig. failRate is fixed for the lifetime of
// the value.
func NewFaultConfig(delayMs int64, failRate float64, opts ...FaultOption) *FaultConfig {
	f := &FaultConfig{
		failRate: failRate,
		clock:    clockwork.NewRealClock(),
		draw:     rand.Float64,
	}
	f.delayMs.Store(delayMs)
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// SetDelay replaces the artificial delay. Values <= 0 disable the delay.
func (f *FaultConfig) SetDelay(ms int64) {
	f.delayMs.Store(ms)
}

// Delay returns the configured delay in milliseconds as last set.
func (f *FaultConfig) Delay() int64 {
	return f.delayMs.Load()
}

// FailRate returns the configured failure probability.
func (f *FaultConfig) FailRate() float64 {
	return f.failRate
}

// Snapshot returns the current settings.
func (f *FaultConfig) Snapshot() FaultSnapshot {
	return FaultSnapshot{DelayMs: f.Delay(), FailRate: f.failRate}
}

// Inject blocks the calling goroutine for the configured delay, then fails
// with ErrSimulatedFailure with probability failRate. It returns ctx.Err()
// if ctx is done before the delay elapses.
func (f *FaultConfig) Inject(ctx context.Context) error {
	if ms := f.Delay(); ms > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-f.clock.After(delayDuration(ms)):
		}
	}
	if f.draw() < f.failRate {
		return ErrSimulatedFailure
	}
	return nil
}

// maxDelayMs is the largest delay expressible as a time.Duration.
const maxDelayMs = math.MaxInt64 / int64(time.Millisecond)

// delayDuration converts ms to a Duration, saturating instead of overflowing.
func delayDuration(ms int64) time.Duration {
	if ms > maxDelayMs {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(ms) * time.Millisecond
}

// Since returns the time elapsed on the fault clock since t.
func (f *FaultConfig) Since(t time.Time) time.Duration {
	return f.clock.Since(t)
}

// Now returns the current time on the fault clock.
func (f *FaultConfig) Now() time.Time {
	return f.clock.Now()
}
