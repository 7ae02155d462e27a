// Package session drives the position tracker and sync engine from a player
// poll loop and a sync-recompute loop.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"karolbroda.com/lyrisync/internal/engine"
	"karolbroda.com/lyrisync/internal/lyrics"
	"karolbroda.com/lyrisync/internal/player"
	"karolbroda.com/lyrisync/internal/position"
	"karolbroda.com/lyrisync/internal/track"
)

const (
	DefaultPollInterval  = time.Second
	DefaultSyncInterval  = 200 * time.Millisecond
	DefaultPollTimeout   = 800 * time.Millisecond
	DefaultLyricsTimeout = 10 * time.Second
)

type Options struct {
	Poller   player.Poller
	Source   lyrics.Source
	Offsets  OffsetStore
	Recorder Recorder
	Logger   *zap.Logger

	PollInterval  time.Duration
	SyncInterval  time.Duration
	PollTimeout   time.Duration
	LyricsTimeout time.Duration

	Engine engine.Options

	// OnLineChange is called from the session loop when lyrics are installed
	// and whenever the highlighted line moves after that.
	OnLineChange func(Snapshot)

	Now func() time.Time
}

type pollResult struct {
	sample *player.Sample
	err    error
}

type lyricResult struct {
	key   string
	track *lyrics.Track
	err   error
}

// Session owns one tracker and one engine. Run drives them; every other
// method is safe to call from any goroutine.
type Session struct {
	poller        player.Poller
	source        lyrics.Source
	offsets       OffsetStore
	recorder      Recorder
	logger        *zap.Logger
	pollInterval  time.Duration
	syncInterval  time.Duration
	pollTimeout   time.Duration
	lyricsTimeout time.Duration
	initialOffset int64
	onLineChange  func(Snapshot)
	now           func() time.Time

	tracker *position.Tracker
	engine  *engine.Engine

	mu            sync.RWMutex
	current       *track.Info
	loading       bool
	lastErr       error
	failures      int
	polled        bool
	lastSampleAt  time.Time
	lyricsPending context.CancelFunc
}

func New(opts Options) (*Session, error) {
	if opts.Poller == nil {
		return nil, errors.New("session needs a player poller")
	}
	if opts.Source == nil {
		return nil, errors.New("session needs a lyrics source")
	}
	if opts.Recorder == nil {
		opts.Recorder = nopRecorder{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.SyncInterval <= 0 {
		opts.SyncInterval = DefaultSyncInterval
	}
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = DefaultPollTimeout
	}
	if opts.LyricsTimeout <= 0 {
		opts.LyricsTimeout = DefaultLyricsTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Session{
		poller:        opts.Poller,
		source:        opts.Source,
		offsets:       opts.Offsets,
		recorder:      opts.Recorder,
		logger:        opts.Logger,
		pollInterval:  opts.PollInterval,
		syncInterval:  opts.SyncInterval,
		pollTimeout:   opts.PollTimeout,
		lyricsTimeout: opts.LyricsTimeout,
		initialOffset: opts.Engine.OffsetMs,
		onLineChange:  opts.OnLineChange,
		now:           opts.Now,
		tracker:       position.NewTracker(),
		engine:        engine.New(opts.Engine),
	}, nil
}

// Run polls the player and recomputes the highlighted line until ctx is
// cancelled. Both tickers are stopped before it returns.
func (s *Session) Run(ctx context.Context) error {
	pollTicker := time.NewTicker(s.pollInterval)
	defer pollTicker.Stop()
	syncTicker := time.NewTicker(s.syncInterval)
	defer syncTicker.Stop()

	pollResults := make(chan pollResult, 1)
	lyricResults := make(chan lyricResult, 1)
	hints := player.HintsOf(s.poller)
	inFlight := false

	startPoll := func() {
		if inFlight {
			s.recorder.PollSkipped()
			return
		}
		inFlight = true
		go func() {
			pollCtx, cancel := context.WithTimeout(ctx, s.pollTimeout)
			sample, err := s.poller.Poll(pollCtx)
			cancel()
			select {
			case pollResults <- pollResult{sample: sample, err: err}:
			case <-ctx.Done():
			}
		}()
	}

	s.logger.Info("Session started",
		zap.String("player", s.poller.Name()),
		zap.String("lyrics", s.source.Name()),
		zap.Duration("pollInterval", s.pollInterval),
		zap.Duration("syncInterval", s.syncInterval))

	startPoll()

	for {
		select {
		case <-ctx.Done():
			s.cancelLyrics()
			s.logger.Info("Session stopped")
			return nil

		case <-pollTicker.C:
			startPoll()

		case <-hints:
			startPoll()

		case res := <-pollResults:
			inFlight = false
			s.handlePoll(ctx, res, lyricResults)

		case res := <-lyricResults:
			s.handleLyrics(res)

		case <-syncTicker.C:
			s.step(s.now())
		}
	}
}

func (s *Session) handlePoll(ctx context.Context, res pollResult, lyricResults chan<- lyricResult) {
	s.mu.Lock()
	s.polled = true
	s.mu.Unlock()

	if res.err != nil {
		if errors.Is(res.err, player.ErrNothingPlaying) {
			s.handleNothingPlaying()
			return
		}
		s.handlePollError(res.err)
		return
	}

	sample := res.sample
	s.recorder.SampleReceived(s.poller.Name())

	s.mu.Lock()
	if s.failures > 0 {
		s.logger.Info("Player reachable again", zap.Int("failedPolls", s.failures))
	}
	s.failures = 0
	s.lastErr = nil
	s.lastSampleAt = sample.SampledAt
	changed := !sample.Track.IsSameTrack(s.current)
	s.mu.Unlock()

	if changed {
		s.changeTrack(ctx, sample.Track, lyricResults)
	}

	s.tracker.OnSample(sample.ElapsedMs, sample.Playing, sample.SampledAt)
}

func (s *Session) handleNothingPlaying() {
	s.cancelLyrics()

	s.mu.Lock()
	hadTrack := s.current != nil
	s.current = nil
	s.loading = false
	s.lastErr = nil
	s.failures = 0
	if hadTrack {
		s.tracker.Reset()
		s.engine.Clear()
		s.engine.SetOffset(s.initialOffset)
	}
	s.mu.Unlock()

	if hadTrack {
		s.logger.Info("Playback stopped")
	}
}

func (s *Session) handlePollError(err error) {
	s.recorder.PollFailed(s.poller.Name())

	s.mu.Lock()
	s.failures++
	failures := s.failures
	s.lastErr = err
	s.mu.Unlock()

	// the tracker keeps extrapolating from the last sample
	if failures == 1 {
		s.logger.Warn("Player poll failed", zap.String("player", s.poller.Name()), zap.Error(err))
		return
	}
	s.logger.Debug("Player poll failed", zap.Int("consecutive", failures), zap.Error(err))
}

func (s *Session) changeTrack(ctx context.Context, info *track.Info, lyricResults chan<- lyricResult) {
	s.logger.Info("Track changed", zap.Stringer("track", info), zap.Int64("durationMs", info.DurationMs))
	s.recorder.TrackChanged()

	s.cancelLyrics()

	fetchCtx, cancel := context.WithTimeout(ctx, s.lyricsTimeout)

	// the track and its (still empty) lyrics change together for readers
	s.mu.Lock()
	s.tracker.Reset()
	s.engine.Clear()
	s.engine.SetOffset(s.initialOffset)
	s.current = info
	s.loading = true
	s.lyricsPending = cancel
	s.mu.Unlock()

	key := info.Key()
	query := lyrics.Query{
		Title:      info.Title,
		Artist:     info.Artist,
		Album:      info.Album,
		DurationMs: info.DurationMs,
	}

	go func() {
		defer cancel()
		trk, err := s.source.Fetch(fetchCtx, query)
		select {
		case lyricResults <- lyricResult{key: key, track: trk, err: err}:
		case <-ctx.Done():
		}
	}()
}

func (s *Session) handleLyrics(res lyricResult) {
	s.mu.Lock()
	if s.current == nil || s.current.Key() != res.key {
		s.mu.Unlock()
		s.logger.Debug("Discarding lyrics for a superseded track", zap.String("key", res.key))
		return
	}
	info := s.current
	s.loading = false
	s.lyricsPending = nil
	found := res.err == nil && !res.track.IsEmpty()
	if found {
		s.engine.Install(res.track)
		if s.offsets != nil {
			if ms, ok := s.offsets.Offset(info.Artist, info.Title); ok {
				s.engine.SetOffset(ms)
			}
		}
	}
	s.mu.Unlock()

	if !found {
		s.recorder.LyricsMissing()
		if res.err != nil && !errors.Is(res.err, lyrics.ErrNotFound) {
			s.logger.Warn("Lyrics lookup failed", zap.Stringer("track", info), zap.Error(res.err))
		} else {
			s.logger.Info("No lyrics found", zap.Stringer("track", info))
		}
		return
	}

	if !res.track.IsSorted() {
		s.logger.Warn("Lyrics are not sorted by start time", zap.Stringer("track", info))
	}

	s.recorder.LyricsResolved(res.track.Source())
	s.logger.Info("Lyrics loaded",
		zap.Stringer("track", info),
		zap.String("source", res.track.Source()),
		zap.Int("lines", res.track.Len()),
		zap.Int64("offsetMs", s.engine.Offset()))

	// a fresh cursor already sits on its first line
	if s.onLineChange != nil && s.engine.CurrentLineIndex() != engine.NoLine {
		s.onLineChange(s.Snapshot())
	}
}

func (s *Session) step(now time.Time) {
	res := s.engine.Step(s.tracker.EstimateElapsedMs(now), now)

	if res.Suppressed {
		s.recorder.RegressionSuppressed()
	}
	if !res.Changed {
		return
	}

	s.recorder.LineAdvanced()
	if s.onLineChange != nil {
		s.onLineChange(s.Snapshot())
	}
}

func (s *Session) cancelLyrics() {
	s.mu.Lock()
	cancel := s.lyricsPending
	s.lyricsPending = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// AdjustOffset shifts the sync offset and stores it for the current song.
func (s *Session) AdjustOffset(deltaMs int64) int64 {
	ms := s.engine.AdjustOffset(deltaMs)
	s.saveOffset(ms)
	return ms
}

// ResetOffset sets the sync offset back to zero.
func (s *Session) ResetOffset() {
	s.engine.SetOffset(0)
	s.saveOffset(0)
}

func (s *Session) saveOffset(ms int64) {
	if s.offsets == nil {
		return
	}

	s.mu.RLock()
	info := s.current
	s.mu.RUnlock()
	if info == nil {
		return
	}

	if err := s.offsets.SaveOffset(info.Artist, info.Title, ms); err != nil {
		s.logger.Debug("Sync offset not saved", zap.Stringer("track", info), zap.Error(err))
	}
}

// Ready reports whether the first poll has completed.
func (s *Session) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.polled
}
