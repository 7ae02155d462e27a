package session

import (
	"time"

	"karolbroda.com/lyrisync/internal/engine"
	"karolbroda.com/lyrisync/internal/present"
	"karolbroda.com/lyrisync/internal/track"
)

// Snapshot is a consistent read of the session for renderers.
type Snapshot struct {
	Player    string
	Track     *track.Info
	Playing   bool
	ElapsedMs int64
	OffsetMs  int64

	LineIndex int
	WordIndex int
	View      present.View

	LyricsSource  string
	LyricsLoading bool
	LastError     error
	LastSampleAt  time.Time
	TakenAt       time.Time

	// Stale is set when no sample has arrived for two poll intervals and
	// the position is extrapolated.
	Stale bool
}

// HasTrack reports whether a track is currently playing.
func (s Snapshot) HasTrack() bool {
	return s.Track != nil
}

func (s *Session) Snapshot() Snapshot {
	now := s.now()

	s.mu.RLock()
	defer s.mu.RUnlock()

	state := s.engine.State()
	playback := s.tracker.State()

	snap := Snapshot{
		Player:       s.poller.Name(),
		Playing:      playback.IsPlaying,
		ElapsedMs:    s.tracker.Peek(now),
		OffsetMs:     state.OffsetMs,
		LineIndex:    state.Cursor.Current,
		WordIndex:    state.Word,
		View:         present.FromState(state),
		LyricsSource: state.Track.Source(),
		TakenAt:      now,
	}

	if s.current != nil {
		info := *s.current
		snap.Track = &info
	}
	snap.LyricsLoading = s.loading
	snap.LastError = s.lastErr
	snap.LastSampleAt = s.lastSampleAt
	if since, ok := s.tracker.SinceLastSample(now); ok && since > 2*s.pollInterval {
		snap.Stale = true
	}

	if snap.LineIndex == engine.NoLine {
		snap.WordIndex = engine.NoLine
	}
	return snap
}
