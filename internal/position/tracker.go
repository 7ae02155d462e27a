// Package position estimates playback position between authoritative player samples.
package position

import (
	"sync"
	"time"
)

// State is the tracker's view of playback at the last sample.
type State struct {
	ElapsedMs    int64
	IsPlaying    bool
	LastSampleAt time.Time
}

// Tracker interpolates elapsed playback time from the most recent sample.
// While playing, the estimate is the sampled position plus wall-clock time
// since the sample; while paused it is frozen. Between samples the estimate
// never decreases. A new sample is always accepted, even when it reports a
// position behind the current estimate.
type Tracker struct {
	mu            sync.Mutex
	anchorMs      int64
	playing       bool
	sampledAt     time.Time
	hasSample     bool
	lastEstimate  int64
	everEstimated bool
}

func NewTracker() *Tracker {
	return &Tracker{}
}

// OnSample re-anchors interpolation at a fresh authoritative sample.
func (t *Tracker) OnSample(reportedElapsedMs int64, isPlaying bool, sampledAt time.Time) {
	if reportedElapsedMs < 0 {
		reportedElapsedMs = 0
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.anchorMs = reportedElapsedMs
	t.playing = isPlaying
	t.sampledAt = sampledAt
	t.hasSample = true
	t.lastEstimate = reportedElapsedMs
	t.everEstimated = false
}

// EstimateElapsedMs returns the interpolated position at now and records it
// as the floor for later estimates.
func (t *Tracker) EstimateElapsedMs(now time.Time) int64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.hasSample {
		return 0
	}

	estimate := t.estimate(now)
	t.lastEstimate = estimate
	t.everEstimated = true
	return estimate
}

// Peek returns the same estimate as EstimateElapsedMs without recording it.
func (t *Tracker) Peek(now time.Time) int64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.hasSample {
		return 0
	}
	return t.estimate(now)
}

func (t *Tracker) estimate(now time.Time) int64 {
	estimate := t.anchorMs
	if t.playing {
		delta := now.Sub(t.sampledAt)
		if delta > 0 {
			estimate += delta.Milliseconds()
		}
	}

	// clock reads can arrive out of order across goroutines
	if t.everEstimated && estimate < t.lastEstimate {
		estimate = t.lastEstimate
	}
	return estimate
}

// Reset forgets the anchor. Called on track change.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.anchorMs = 0
	t.playing = false
	t.sampledAt = time.Time{}
	t.hasSample = false
	t.lastEstimate = 0
	t.everEstimated = false
}

func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()

	return State{
		ElapsedMs:    t.anchorMs,
		IsPlaying:    t.playing,
		LastSampleAt: t.sampledAt,
	}
}

// SinceLastSample reports how long ago the last sample arrived. The boolean
// is false when no sample has been recorded since the last reset.
func (t *Tracker) SinceLastSample(now time.Time) (time.Duration, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.hasSample {
		return 0, false
	}
	return now.Sub(t.sampledAt), true
}
