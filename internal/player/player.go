// Package player samples playback state from music players.
package player

import (
	"context"
	"errors"
	"time"

	"karolbroda.com/lyrisync/internal/track"
)

const (
	BackendMPRIS   = "mpris"
	BackendSpotify = "spotify"
	BackendDemo    = "demo"
)

// ErrNothingPlaying is returned when the player is reachable but has no
// current track.
var ErrNothingPlaying = errors.New("nothing playing")

// Sample is one authoritative playback reading.
type Sample struct {
	Track     *track.Info
	ElapsedMs int64
	Playing   bool
	SampledAt time.Time
}

// Poller reads the player's current state. Poll must be safe to call
// repeatedly; callers never run two polls at once.
type Poller interface {
	Name() string
	Poll(ctx context.Context) (*Sample, error)
}

// Hinter is implemented by pollers that can tell when state probably
// changed, so callers can poll ahead of schedule.
type Hinter interface {
	Hints() <-chan struct{}
}

// HintsOf returns the hint channel of p, or nil when p has none.
func HintsOf(p Poller) <-chan struct{} {
	if h, ok := p.(Hinter); ok {
		return h.Hints()
	}
	return nil
}

func notify(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
