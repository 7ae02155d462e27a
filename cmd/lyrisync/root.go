package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"karolbroda.com/lyrisync/internal/config"
)

var (
	cfgFile string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "lyrisync",
	Short: "synchronized lyrics for the song that is playing",
	Long: `lyrisync follows playback on an mpris player, spotify, or a built-in demo
clock and highlights the lyric line being sung, never jumping backwards.

when run without a subcommand, it starts the interactive TUI viewer.`,
	Version: "1.0.0",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runViewer(cmd, args)
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	def := config.DefaultConfig()
	flags := rootCmd.PersistentFlags()

	flags.StringVar(&cfgFile, "config", "", "env file to load (default is .env)")

	flags.String(config.KeyPlayer, def.Player.Backend, "player backend (mpris, spotify, demo)")
	flags.StringP(config.KeyMprisService, "m", def.Player.MprisService, "mpris service name")
	flags.String(config.KeySpotifyClientID, "", "spotify client id")
	flags.String(config.KeySpotifyClientSecret, "", "spotify client secret")
	flags.String(config.KeySpotifyTokenPath, def.Player.Spotify.TokenPath, "spotify oauth token file")
	flags.Bool(config.KeyDemoFallback, def.Player.DemoFallback, "fall back to the demo clock when the player is unreachable")
	flags.Duration(config.KeyStaleAfter, def.Player.StaleAfter, "how long the player may fail before falling back")

	flags.String(config.KeyLyricsDir, "", "directory of .lrc files")
	flags.String(config.KeyCacheDir, "", "lyrics cache directory (default is $XDG_CACHE_HOME/lyrisync)")
	flags.Duration(config.KeyCacheTTL, def.Lyrics.CacheTTL, "how long cached lyrics stay valid")
	flags.Bool(config.KeyNoCache, false, "disable cache reads (always resolve fresh)")
	flags.Bool(config.KeyPlaceholder, def.Lyrics.Placeholder, "show placeholder lyrics when none are found")
	flags.Duration(config.KeyFetchTimeout, def.Lyrics.FetchTimeout, "timeout per lyrics source")

	flags.Duration(config.KeyPollInterval, def.Sync.PollInterval, "how often the player is polled")
	flags.Duration(config.KeySyncInterval, def.Sync.SyncInterval, "how often the highlighted line is recomputed (150ms-250ms)")
	flags.Duration(config.KeyPollTimeout, def.Sync.PollTimeout, "timeout for one player poll")
	flags.Duration(config.KeyDwell, def.Sync.Dwell, "minimum time a line stays highlighted")
	flags.Duration(config.KeyWordDuration, def.Sync.WordDuration, "time each word stays highlighted")
	flags.Int64P(config.KeySyncOffset, "s", 0, "initial sync offset in milliseconds")

	flags.Bool(config.KeyServerEnabled, def.Server.Enabled, "serve /healthz, /readyz, /metrics and /api/now")
	flags.String(config.KeyServerHost, def.Server.Host, "HTTP server host")
	flags.Int(config.KeyServerPort, def.Server.Port, "HTTP server port")

	flags.String(config.KeyLogLevel, def.Log.Level, "log level (debug, info, warn, error)")
	flags.String(config.KeyLogFormat, def.Log.Format, "log format (json, console)")
	flags.String(config.KeyLogFile, def.Log.File, "log file used while the TUI owns the terminal")

	flags.BoolP(config.KeyHideHeader, "H", false, "hide header section")
	flags.Bool(config.KeyArtworkColors, def.UI.ArtworkColors, "color the lyrics from the album art")

	if err := viper.BindPFlags(flags); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bind flags: %v\n", err)
		os.Exit(1)
	}
}

func initConfig() {
	envFile := ".env"
	if cfgFile != "" {
		envFile = cfgFile
	}

	if err := gotenv.Load(envFile); err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Error loading %s: %v\n", envFile, err)
		}
	}

	viper.SetEnvPrefix(config.EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	cfg = config.FromViper(viper.GetViper())
}

// buildLogger writes to stderr, or to the log file when toFile is set so the
// TUI keeps the terminal.
func buildLogger(logCfg config.LogConfig, toFile bool) (*zap.Logger, error) {
	var zapLevel zapcore.Level
	switch strings.ToLower(logCfg.Level) {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(zapLevel)
	if logCfg.Format == "console" {
		zcfg.Encoding = "console"
		zcfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	}

	if toFile {
		if logCfg.File == "" {
			return zap.NewNop(), nil
		}
		if err := os.MkdirAll(filepath.Dir(logCfg.File), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		zcfg.OutputPaths = []string{logCfg.File}
		zcfg.ErrorOutputPaths = []string{logCfg.File}
	}

	logger, err := zcfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger, nil
}

// commandLogger is the logger for one-shot subcommands.
func commandLogger() *zap.Logger {
	logger, err := buildLogger(cfg.Log, false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
		return zap.NewNop()
	}
	return logger
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
