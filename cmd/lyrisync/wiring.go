package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/godbus/dbus/v5"
	"go.uber.org/zap"

	"karolbroda.com/lyrisync/internal/cache"
	"karolbroda.com/lyrisync/internal/config"
	"karolbroda.com/lyrisync/internal/lyrics"
	"karolbroda.com/lyrisync/internal/player"
)

// openCache opens the lyrics cache, falling back to memory when the
// directory is unusable.
func openCache(lcfg config.LyricsConfig, logger *zap.Logger) *cache.DiskCache {
	diskCache, err := cache.New(lcfg.CacheDir, cache.WithTTL(lcfg.CacheTTL))
	if err != nil {
		logger.Warn("Lyrics cache unavailable, keeping it in memory", zap.Error(err))
		return cache.NewMemory(cache.WithTTL(lcfg.CacheTTL))
	}
	return diskCache
}

// buildSource chains the cached local .lrc directory and the placeholder.
func buildSource(lcfg config.LyricsConfig, diskCache *cache.DiskCache, logger *zap.Logger) (lyrics.Source, error) {
	var sources []lyrics.Source

	if lcfg.Dir != "" {
		local := lyrics.NewLocalSource(lcfg.Dir, logger)
		sources = append(sources, lyrics.NewCachedSource(local, diskCache, !lcfg.NoCache, logger))
	}
	if lcfg.Placeholder {
		sources = append(sources, lyrics.PlaceholderSource{})
	}

	if len(sources) == 0 {
		return nil, errors.New("no lyrics source configured (set --lyrics-dir or enable --placeholder)")
	}

	return lyrics.NewChain(lcfg.FetchTimeout, logger, sources...), nil
}

// buildPoller connects the configured backend. The returned cleanup must be
// called once the poller is no longer used.
func buildPoller(ctx context.Context, pcfg config.PlayerConfig, logger *zap.Logger) (player.Poller, func(), error) {
	primary, cleanup, err := connectBackend(ctx, pcfg, logger)
	if err != nil {
		if !pcfg.DemoFallback || pcfg.Backend == player.BackendDemo {
			return nil, nil, err
		}
		logger.Warn("Player backend unavailable, using the demo clock",
			zap.String("backend", pcfg.Backend), zap.Error(err))
		return player.NewDemo(time.Now), func() {}, nil
	}

	if !pcfg.DemoFallback || pcfg.Backend == player.BackendDemo {
		return primary, cleanup, nil
	}

	return player.NewFallback(primary, player.NewDemo(time.Now), pcfg.StaleAfter, logger), cleanup, nil
}

func connectBackend(ctx context.Context, pcfg config.PlayerConfig, logger *zap.Logger) (player.Poller, func(), error) {
	switch pcfg.Backend {
	case player.BackendDemo:
		return player.NewDemo(time.Now), func() {}, nil

	case player.BackendSpotify:
		sp, err := player.NewSpotify(ctx, player.SpotifyConfig{
			ClientID:     pcfg.Spotify.ClientID,
			ClientSecret: pcfg.Spotify.ClientSecret,
			TokenPath:    pcfg.Spotify.TokenPath,
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		return sp, func() {}, nil

	case player.BackendMPRIS:
		bus, err := dbus.ConnectSessionBus()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to session bus: %w", err)
		}

		mpris, err := player.NewMPRIS(bus, pcfg.MprisService, logger)
		if err != nil {
			bus.Close()
			return nil, nil, fmt.Errorf("failed to create player service: %w", err)
		}
		if err := mpris.Start(); err != nil {
			logger.Warn("Could not subscribe to player signals, polling only", zap.Error(err))
		}

		return mpris, func() {
			mpris.Stop()
			bus.Close()
		}, nil
	}

	return nil, nil, fmt.Errorf("unknown player backend %q", pcfg.Backend)
}
