package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"karolbroda.com/lyrisync/internal/artwork"
	"karolbroda.com/lyrisync/internal/engine"
	httpserver "karolbroda.com/lyrisync/internal/http"
	"karolbroda.com/lyrisync/internal/present"
	"karolbroda.com/lyrisync/internal/session"
	"karolbroda.com/lyrisync/internal/ui"
)

var headless bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "start the interactive lyrics viewer",
	Long: `starts the lyrics viewer. with --headless the TUI is skipped and every
highlighted line is printed to stdout instead.`,
	RunE: runViewer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	rootCmd.Flags().BoolVar(&headless, "headless", false, "print line changes instead of running the TUI")
	runCmd.Flags().BoolVar(&headless, "headless", false, "print line changes instead of running the TUI")
}

func runViewer(_ *cobra.Command, _ []string) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer cancel()

	logger, err := buildLogger(cfg.Log, !headless)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting lyrisync",
		zap.String("player", cfg.Player.Backend),
		zap.String("lyricsDir", cfg.Lyrics.Dir),
		zap.Bool("headless", headless),
		zap.Bool("serverEnabled", cfg.Server.Enabled))

	diskCache := openCache(cfg.Lyrics, logger)

	source, err := buildSource(cfg.Lyrics, diskCache, logger)
	if err != nil {
		return err
	}

	poller, cleanup, err := buildPoller(ctx, cfg.Player, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	metrics := httpserver.NewMetrics()

	opts := session.Options{
		Poller:       poller,
		Source:       source,
		Offsets:      diskCache,
		Recorder:     metrics,
		Logger:       logger,
		PollInterval: cfg.Sync.PollInterval,
		SyncInterval: cfg.Sync.SyncInterval,
		PollTimeout:  cfg.Sync.PollTimeout,
		Engine: engine.Options{
			Dwell:        cfg.Sync.Dwell,
			WordDuration: cfg.Sync.WordDuration,
			OffsetMs:     cfg.Sync.OffsetMs,
		},
	}
	if headless {
		opts.OnLineChange = func(snap session.Snapshot) {
			printLine(os.Stdout, snap)
		}
	}

	sess, err := session.New(opts)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return sess.Run(gCtx)
	})

	if cfg.Server.Enabled {
		server := httpserver.NewServer(&cfg.Server, sess, metrics, logger)
		g.Go(func() error {
			return server.Start(gCtx)
		})
	}

	if !headless {
		g.Go(func() error {
			// quitting the TUI stops everything else
			defer cancel()
			return runTUI(gCtx, sess, logger)
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error("lyrisync stopped with error", zap.Error(err))
		return err
	}

	logger.Info("lyrisync stopped gracefully")
	return nil
}

func runTUI(ctx context.Context, sess *session.Session, logger *zap.Logger) error {
	mcfg := ui.ModelConfig{
		Session:    sess,
		HideHeader: cfg.UI.HideHeader,
	}
	if cfg.UI.ArtworkColors {
		mcfg.Artwork = artwork.NewLoader(nil, logger)
	}
	model := ui.NewModel(mcfg)

	p := tea.NewProgram(
		model,
		tea.WithAltScreen(),
	)

	go func() {
		<-ctx.Done()
		p.Quit()
	}()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running bubble tea: %w", err)
	}

	return nil
}

func printLine(w io.Writer, snap session.Snapshot) {
	if snap.View.Current == nil {
		return
	}
	i, n := snap.View.Position()
	fmt.Fprintf(w, "[%s] %3d/%d  %s\n",
		present.FormatTime(snap.ElapsedMs), i, n, present.LineText(*snap.View.Current))
}
