package player

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultStaleAfter = 5 * time.Second

	// secondaryTimeout bounds a fallback poll made after the primary used
	// up the caller's deadline.
	secondaryTimeout = 500 * time.Millisecond
)

// Fallback serves samples from a secondary poller once the primary has not
// produced one for staleAfter. The primary is still tried on every poll and
// takes over again as soon as it succeeds.
type Fallback struct {
	primary    Poller
	secondary  Poller
	staleAfter time.Duration
	logger     *zap.Logger
	now        func() time.Time

	mu         sync.Mutex
	lastOK     time.Time
	created    time.Time
	onFallback bool
}

func NewFallback(primary Poller, secondary Poller, staleAfter time.Duration, logger *zap.Logger) *Fallback {
	if logger == nil {
		logger = zap.NewNop()
	}
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	f := &Fallback{
		primary:    primary,
		secondary:  secondary,
		staleAfter: staleAfter,
		logger:     logger,
		now:        time.Now,
	}
	f.created = f.now()
	return f
}

// WithClock replaces the fallback's clock. Intended for tests.
func (f *Fallback) WithClock(now func() time.Time) *Fallback {
	f.now = now
	f.created = now()
	return f
}

func (f *Fallback) Name() string {
	return f.primary.Name() + "+" + f.secondary.Name()
}

func (f *Fallback) Hints() <-chan struct{} {
	return HintsOf(f.primary)
}

// Active reports whether samples currently come from the secondary poller.
func (f *Fallback) Active() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.onFallback
}

func (f *Fallback) Poll(ctx context.Context) (*Sample, error) {
	sample, err := f.primary.Poll(ctx)
	now := f.now()

	f.mu.Lock()
	if err == nil {
		if f.onFallback {
			f.logger.Info("Primary player is back", zap.String("player", f.primary.Name()))
		}
		f.lastOK = now
		f.onFallback = false
		f.mu.Unlock()
		return sample, nil
	}

	since := f.lastOK
	if since.IsZero() {
		since = f.created
	}
	stale := now.Sub(since) >= f.staleAfter
	switched := stale && !f.onFallback
	f.onFallback = stale
	f.mu.Unlock()

	if !stale {
		return nil, err
	}
	if switched {
		f.logger.Info("No fresh samples, switching to fallback player",
			zap.String("player", f.primary.Name()),
			zap.String("fallback", f.secondary.Name()),
			zap.Error(err))
	}
	return f.pollSecondary(ctx)
}

// pollSecondary polls the secondary even when the primary hung until the
// caller's deadline. Cancellation of the caller still stops it.
func (f *Fallback) pollSecondary(ctx context.Context) (*Sample, error) {
	if errors.Is(ctx.Err(), context.Canceled) {
		return nil, ctx.Err()
	}

	pollCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), secondaryTimeout)
	defer cancel()
	return f.secondary.Poll(pollCtx)
}
