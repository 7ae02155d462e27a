package lyrics

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"karolbroda.com/lyrisync/internal/cache"
)

var ErrNotFound = errors.New("lyrics not found")

// Query describes the song a source should resolve.
type Query struct {
	Title      string
	Artist     string
	Album      string
	DurationMs int64
}

func (q Query) Valid() bool {
	return strings.TrimSpace(q.Title) != "" && strings.TrimSpace(q.Artist) != ""
}

// Source resolves lyrics for a song. Implementations return ErrNotFound (or
// an error wrapping it) when they have nothing for the query.
type Source interface {
	Name() string
	Fetch(ctx context.Context, q Query) (*Track, error)
}

// Chain tries sources in priority order, each under its own timeout, and
// returns the first track found.
type Chain struct {
	sources []Source
	timeout time.Duration
	logger  *zap.Logger
}

func NewChain(timeout time.Duration, logger *zap.Logger, sources ...Source) *Chain {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Chain{
		sources: sources,
		timeout: timeout,
		logger:  logger,
	}
}

func (c *Chain) Name() string {
	names := make([]string, len(c.sources))
	for i, src := range c.sources {
		names[i] = src.Name()
	}
	return "chain(" + strings.Join(names, ",") + ")"
}

func (c *Chain) Fetch(ctx context.Context, q Query) (*Track, error) {
	if !q.Valid() {
		return nil, fmt.Errorf("query without title or artist: %w", ErrNotFound)
	}

	var lastErr error
	for _, src := range c.sources {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		started := time.Now()
		trk, err := c.fetchOne(ctx, src, q)
		if err == nil && trk != nil {
			c.logger.Debug("Lyrics resolved",
				zap.String("source", src.Name()),
				zap.String("artist", q.Artist),
				zap.String("title", q.Title),
				zap.Int("lines", trk.Len()),
				zap.Duration("took", time.Since(started)))
			return trk, nil
		}

		if err == nil || errors.Is(err, ErrNotFound) {
			c.logger.Debug("Lyrics source had no match", zap.String("source", src.Name()))
			continue
		}

		lastErr = err
		c.logger.Warn("Lyrics source failed",
			zap.String("source", src.Name()),
			zap.Duration("took", time.Since(started)),
			zap.Error(err))
	}

	if lastErr != nil {
		return nil, fmt.Errorf("no lyrics for %s - %s (last error: %v): %w", q.Artist, q.Title, lastErr, ErrNotFound)
	}
	return nil, fmt.Errorf("no lyrics for %s - %s: %w", q.Artist, q.Title, ErrNotFound)
}

type fetchResult struct {
	track *Track
	err   error
}

// fetchOne enforces the timeout even for sources that ignore their context.
func (c *Chain) fetchOne(parent context.Context, src Source, q Query) (*Track, error) {
	ctx := parent
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(parent, c.timeout)
		defer cancel()
	}

	done := make(chan fetchResult, 1)
	go func() {
		trk, err := src.Fetch(ctx, q)
		done <- fetchResult{track: trk, err: err}
	}()

	select {
	case res := <-done:
		return res.track, res.err
	case <-ctx.Done():
		return nil, fmt.Errorf("source %s: %w", src.Name(), ctx.Err())
	}
}

// CachedSource puts the disk cache in front of another source and stores
// whatever that source resolves.
type CachedSource struct {
	inner     Source
	cache     *cache.DiskCache
	readCache bool
	logger    *zap.Logger
}

func NewCachedSource(inner Source, diskCache *cache.DiskCache, readCache bool, logger *zap.Logger) *CachedSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedSource{
		inner:     inner,
		cache:     diskCache,
		readCache: readCache,
		logger:    logger,
	}
}

func (s *CachedSource) Name() string {
	return "cached-" + s.inner.Name()
}

func (s *CachedSource) Fetch(ctx context.Context, q Query) (*Track, error) {
	existing, cacheErr := s.cache.Get(q.Artist, q.Title)
	if s.readCache && cacheErr == nil && len(existing.Lines) > 0 {
		return trackFromEntry(existing), nil
	}

	trk, err := s.inner.Fetch(ctx, q)
	if err != nil {
		return nil, err
	}
	if trk.IsEmpty() {
		return trk, nil
	}

	entry := entryFromTrack(q, trk)
	if cacheErr == nil {
		// keep a user-tuned offset across refreshes
		entry.SyncOffsetMs = existing.SyncOffsetMs
	}
	if err := s.cache.Set(q.Artist, q.Title, entry); err != nil {
		s.logger.Warn("Failed to cache lyrics", zap.String("title", q.Title), zap.Error(err))
	}

	return trk, nil
}

func trackFromEntry(entry *cache.LyricEntry) *Track {
	lines := make([]Line, len(entry.Lines))
	for i, line := range entry.Lines {
		lines[i] = Line{StartTime: line.StartTime, Words: line.Words}
	}
	return NewTrack("cache/"+entry.Source, lines)
}

func entryFromTrack(q Query, trk *Track) *cache.LyricEntry {
	lines := trk.Lines()
	cached := make([]cache.TimedLine, len(lines))
	for i, line := range lines {
		cached[i] = cache.TimedLine{StartTime: line.StartTime, Words: line.Words}
	}
	return &cache.LyricEntry{
		TrackName:  q.Title,
		ArtistName: q.Artist,
		Source:     trk.Source(),
		Lines:      cached,
	}
}
