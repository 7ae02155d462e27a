// Package config holds lyrisync settings, their defaults, and loading from
// flags, environment, and .env files through viper.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"karolbroda.com/lyrisync/internal/player"
)

const (
	EnvPrefix = "LYRISYNC"
	appDir    = "lyrisync"

	MinSyncInterval = 150 * time.Millisecond
	MaxSyncInterval = 250 * time.Millisecond
)

// keys shared by flags, env vars (LYRISYNC_ prefix, dashes to underscores)
// and .env files
const (
	KeyPlayer              = "player"
	KeyMprisService        = "mpris-service"
	KeySpotifyClientID     = "spotify-client-id"
	KeySpotifyClientSecret = "spotify-client-secret"
	KeySpotifyTokenPath    = "spotify-token-path"
	KeyDemoFallback        = "demo-fallback"
	KeyStaleAfter          = "stale-after"
	KeyLyricsDir           = "lyrics-dir"
	KeyCacheDir            = "cache-dir"
	KeyCacheTTL            = "cache-ttl"
	KeyNoCache             = "no-cache"
	KeyPlaceholder         = "placeholder"
	KeyFetchTimeout        = "fetch-timeout"
	KeyPollInterval        = "poll-interval"
	KeySyncInterval        = "sync-interval"
	KeyPollTimeout         = "poll-timeout"
	KeyDwell               = "dwell"
	KeyWordDuration        = "word-duration"
	KeySyncOffset          = "sync-offset"
	KeyServerEnabled       = "server-enabled"
	KeyServerHost          = "server-host"
	KeyServerPort          = "server-port"
	KeyLogLevel            = "log-level"
	KeyLogFormat           = "log-format"
	KeyLogFile             = "log-file"
	KeyHideHeader          = "hide-header"
	KeyArtworkColors       = "artwork-colors"
)

type Config struct {
	Player PlayerConfig
	Lyrics LyricsConfig
	Sync   SyncConfig
	Server ServerConfig
	Log    LogConfig
	UI     UIConfig
}

type PlayerConfig struct {
	Backend      string
	MprisService string
	Spotify      SpotifyConfig
	DemoFallback bool
	StaleAfter   time.Duration
}

type SpotifyConfig struct {
	ClientID     string
	ClientSecret string
	TokenPath    string
}

type LyricsConfig struct {
	Dir          string
	CacheDir     string
	CacheTTL     time.Duration
	NoCache      bool
	Placeholder  bool
	FetchTimeout time.Duration
}

type SyncConfig struct {
	PollInterval time.Duration
	SyncInterval time.Duration
	PollTimeout  time.Duration
	Dwell        time.Duration
	WordDuration time.Duration
	OffsetMs     int64
}

type ServerConfig struct {
	Enabled      bool
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type LogConfig struct {
	Level  string
	Format string
	File   string
}

type UIConfig struct {
	HideHeader    bool
	// ArtworkColors takes the highlight colors from the album art.
	ArtworkColors bool
}

func DefaultConfig() *Config {
	return &Config{
		Player: PlayerConfig{
			Backend:      player.BackendMPRIS,
			MprisService: player.DefaultMPRISService,
			Spotify: SpotifyConfig{
				TokenPath: defaultPath(os.UserConfigDir, "XDG_CONFIG_HOME", "spotify_token.json"),
			},
			DemoFallback: true,
			StaleAfter:   player.DefaultStaleAfter,
		},
		Lyrics: LyricsConfig{
			CacheTTL:     30 * 24 * time.Hour,
			Placeholder:  true,
			FetchTimeout: 5 * time.Second,
		},
		Sync: SyncConfig{
			PollInterval: time.Second,
			SyncInterval: 200 * time.Millisecond,
			PollTimeout:  800 * time.Millisecond,
			Dwell:        300 * time.Millisecond,
			WordDuration: 300 * time.Millisecond,
		},
		Server: ServerConfig{
			Enabled:      false,
			Host:         "127.0.0.1",
			Port:         9273,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
			File:   defaultPath(stateDir, "XDG_STATE_HOME", "lyrisync.log"),
		},
		UI: UIConfig{
			ArtworkColors: true,
		},
	}
}

func stateDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "state"), nil
}

func defaultPath(base func() (string, error), env string, name string) string {
	dir := os.Getenv(env)
	if dir == "" {
		var err error
		dir, err = base()
		if err != nil {
			return ""
		}
	}
	return filepath.Join(dir, appDir, name)
}

// FromViper overlays every key set in v (flag, env, or config file) on the
// defaults.
func FromViper(v *viper.Viper) *Config {
	cfg := DefaultConfig()

	setString(v, KeyPlayer, &cfg.Player.Backend)
	setString(v, KeyMprisService, &cfg.Player.MprisService)
	setString(v, KeySpotifyClientID, &cfg.Player.Spotify.ClientID)
	setString(v, KeySpotifyClientSecret, &cfg.Player.Spotify.ClientSecret)
	setString(v, KeySpotifyTokenPath, &cfg.Player.Spotify.TokenPath)
	setBool(v, KeyDemoFallback, &cfg.Player.DemoFallback)
	setDuration(v, KeyStaleAfter, &cfg.Player.StaleAfter)

	setString(v, KeyLyricsDir, &cfg.Lyrics.Dir)
	setString(v, KeyCacheDir, &cfg.Lyrics.CacheDir)
	setDuration(v, KeyCacheTTL, &cfg.Lyrics.CacheTTL)
	setBool(v, KeyNoCache, &cfg.Lyrics.NoCache)
	setBool(v, KeyPlaceholder, &cfg.Lyrics.Placeholder)
	setDuration(v, KeyFetchTimeout, &cfg.Lyrics.FetchTimeout)

	setDuration(v, KeyPollInterval, &cfg.Sync.PollInterval)
	setDuration(v, KeySyncInterval, &cfg.Sync.SyncInterval)
	setDuration(v, KeyPollTimeout, &cfg.Sync.PollTimeout)
	setDuration(v, KeyDwell, &cfg.Sync.Dwell)
	setDuration(v, KeyWordDuration, &cfg.Sync.WordDuration)
	if v.IsSet(KeySyncOffset) {
		cfg.Sync.OffsetMs = v.GetInt64(KeySyncOffset)
	}

	setBool(v, KeyServerEnabled, &cfg.Server.Enabled)
	setString(v, KeyServerHost, &cfg.Server.Host)
	if v.IsSet(KeyServerPort) {
		cfg.Server.Port = v.GetInt(KeyServerPort)
	}

	setString(v, KeyLogLevel, &cfg.Log.Level)
	setString(v, KeyLogFormat, &cfg.Log.Format)
	setString(v, KeyLogFile, &cfg.Log.File)

	setBool(v, KeyHideHeader, &cfg.UI.HideHeader)
	setBool(v, KeyArtworkColors, &cfg.UI.ArtworkColors)

	cfg.Player.Backend = strings.ToLower(strings.TrimSpace(cfg.Player.Backend))
	cfg.Log.Level = strings.ToLower(cfg.Log.Level)
	cfg.Log.Format = strings.ToLower(cfg.Log.Format)

	return cfg
}

func setString(v *viper.Viper, key string, dst *string) {
	if v.IsSet(key) {
		*dst = v.GetString(key)
	}
}

func setBool(v *viper.Viper, key string, dst *bool) {
	if v.IsSet(key) {
		*dst = v.GetBool(key)
	}
}

func setDuration(v *viper.Viper, key string, dst *time.Duration) {
	if v.IsSet(key) {
		*dst = v.GetDuration(key)
	}
}

// Validate reports every invalid setting.
func (c *Config) Validate() error {
	var errs []error

	switch c.Player.Backend {
	case player.BackendMPRIS:
		if c.Player.MprisService == "" {
			errs = append(errs, errors.New("mpris backend needs an mpris service name"))
		}
	case player.BackendSpotify:
		if c.Player.Spotify.ClientID == "" || c.Player.Spotify.TokenPath == "" {
			errs = append(errs, errors.New("spotify backend needs a client id and a token path"))
		}
	case player.BackendDemo:
	default:
		errs = append(errs, fmt.Errorf("unknown player backend %q (mpris, spotify, demo)", c.Player.Backend))
	}

	if c.Sync.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("poll interval must be positive, got %v", c.Sync.PollInterval))
	}
	if c.Sync.SyncInterval < MinSyncInterval || c.Sync.SyncInterval > MaxSyncInterval {
		errs = append(errs, fmt.Errorf("sync interval must be between %v and %v, got %v",
			MinSyncInterval, MaxSyncInterval, c.Sync.SyncInterval))
	}
	if c.Sync.PollTimeout <= 0 {
		errs = append(errs, fmt.Errorf("poll timeout must be positive, got %v", c.Sync.PollTimeout))
	}
	if c.Sync.Dwell < 0 {
		errs = append(errs, fmt.Errorf("dwell must not be negative, got %v", c.Sync.Dwell))
	}
	if c.Sync.WordDuration <= 0 {
		errs = append(errs, fmt.Errorf("word duration must be positive, got %v", c.Sync.WordDuration))
	}
	if c.Player.DemoFallback && c.Player.StaleAfter <= 0 {
		errs = append(errs, fmt.Errorf("stale-after must be positive, got %v", c.Player.StaleAfter))
	}
	if c.Lyrics.FetchTimeout <= 0 {
		errs = append(errs, fmt.Errorf("fetch timeout must be positive, got %v", c.Lyrics.FetchTimeout))
	}

	if c.Server.Enabled && (c.Server.Port <= 0 || c.Server.Port > 65535) {
		errs = append(errs, fmt.Errorf("invalid server port %d", c.Server.Port))
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("unknown log level %q", c.Log.Level))
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q (json, console)", c.Log.Format))
	}

	return errors.Join(errs...)
}
