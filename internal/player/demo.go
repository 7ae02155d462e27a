package player

import (
	"context"
	"sync"
	"time"

	"karolbroda.com/lyrisync/internal/track"
)

const (
	DemoTrackID    = "demo-track-123"
	DemoDurationMs = 180_000
	DemoStartMs    = 30_000
)

// DemoTrack is the simulated song played in offline mode.
func DemoTrack() *track.Info {
	return &track.Info{
		Title:      "Demo Song",
		Artist:     "Demo Artist",
		Album:      "Demo Album",
		DurationMs: DemoDurationMs,
		TrackID:    DemoTrackID,
	}
}

// Demo simulates a player looping the demo track forever. The first poll
// reports DemoStartMs; the position then follows the wall clock and wraps
// to zero at the end of the track.
type Demo struct {
	now func() time.Time

	mu      sync.Mutex
	started time.Time
}

func NewDemo(now func() time.Time) *Demo {
	if now == nil {
		now = time.Now
	}
	return &Demo{now: now}
}

func (d *Demo) Name() string { return BackendDemo }

func (d *Demo) Poll(ctx context.Context) (*Sample, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	now := d.now()

	d.mu.Lock()
	if d.started.IsZero() {
		d.started = now
	}
	elapsed := DemoStartMs + now.Sub(d.started).Milliseconds()
	d.mu.Unlock()

	if elapsed < 0 {
		elapsed = 0
	}

	return &Sample{
		Track:     DemoTrack(),
		ElapsedMs: elapsed % DemoDurationMs,
		Playing:   true,
		SampledAt: now,
	}, nil
}
