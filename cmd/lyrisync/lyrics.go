package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"karolbroda.com/lyrisync/internal/engine"
	"karolbroda.com/lyrisync/internal/lyrics"
	"karolbroda.com/lyrisync/internal/present"
)

var (
	// flags for lyrics simulate
	simulateStep     time.Duration
	simulateDuration time.Duration
)

var lyricsCmd = &cobra.Command{
	Use:   "lyrics",
	Short: "lyrics inspection",
	Long:  `resolve lyrics through the configured sources, check .lrc files, and dry-run the sync engine.`,
}

var lyricsPreviewCmd = &cobra.Command{
	Use:   "preview <artist> <title>",
	Short: "preview resolved lyrics in terminal",
	Long:  `resolve lyrics through the cache, the lyrics directory, and the placeholder, and print them with timestamps.`,
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		artist := args[0]
		title := args[1]

		logger := commandLogger()
		defer func() { _ = logger.Sync() }()

		diskCache := openCache(cfg.Lyrics, logger)
		source, err := buildSource(cfg.Lyrics, diskCache, logger)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Lyrics.FetchTimeout*2)
		defer cancel()

		trk, err := source.Fetch(ctx, lyrics.Query{Title: title, Artist: artist})
		if err != nil {
			suggestions := findSimilarCachedSongs(diskCache, artist, title)
			if len(suggestions) > 0 {
				fmt.Fprintf(os.Stderr, "lyrics not found\n\n")
				fmt.Fprintf(os.Stderr, "similar songs in cache:\n")
				for _, s := range suggestions {
					fmt.Fprintf(os.Stderr, "  %s - %s\n", s.ArtistName, s.TrackName)
				}
			}
			return fmt.Errorf("lyrics not found: %w", err)
		}

		fmt.Printf("\n%s - %s\n", artist, title)
		fmt.Printf("source: %s\n", trk.Source())
		fmt.Println(strings.Repeat("─", 60))

		printLines(os.Stdout, trk.Lines())

		if ms, ok := diskCache.Offset(artist, title); ok && ms != 0 {
			fmt.Printf("\nsync offset: %s\n", present.FormatOffset(ms))
		}

		return nil
	},
}

var lyricsParseCmd = &cobra.Command{
	Use:   "parse <file.lrc>",
	Short: "parse an .lrc file",
	Long:  `parse an .lrc file and print its tags and timed lines.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", args[0], err)
		}

		doc := lyrics.ParseLRC(string(raw))
		if doc.Title != "" {
			fmt.Printf("title:  %s\n", doc.Title)
		}
		if doc.Artist != "" {
			fmt.Printf("artist: %s\n", doc.Artist)
		}
		if doc.Album != "" {
			fmt.Printf("album:  %s\n", doc.Album)
		}
		if doc.OffsetMs != 0 {
			fmt.Printf("offset: %s (applied)\n", present.FormatOffset(doc.OffsetMs))
		}

		if len(doc.Lines) == 0 {
			return fmt.Errorf("no timed lines in %s", args[0])
		}

		fmt.Printf("\n%d lines:\n\n", len(doc.Lines))
		printLines(os.Stdout, doc.Lines)

		return nil
	},
}

var lyricsSimulateCmd = &cobra.Command{
	Use:   "simulate <file.lrc>",
	Short: "dry-run the sync engine over an .lrc file",
	Long: `play an .lrc file against a simulated clock and print each highlighted line,
using the configured dwell, word duration, and sync offset.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", args[0], err)
		}

		trk := lyrics.NewTrack(lyrics.SourceLocal, lyrics.ParseLRC(string(raw)).Lines)
		if trk.IsEmpty() {
			return fmt.Errorf("no timed lines in %s", args[0])
		}

		opts := engine.Options{
			Dwell:        cfg.Sync.Dwell,
			WordDuration: cfg.Sync.WordDuration,
			OffsetMs:     cfg.Sync.OffsetMs,
		}

		duration := simulateDuration
		if duration <= 0 {
			duration = time.Duration(trk.StartTime(trk.Len()-1)*float64(time.Second)) + 5*time.Second
		}

		simulate(os.Stdout, trk, opts, duration, simulateStep)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(lyricsCmd)

	lyricsCmd.AddCommand(lyricsPreviewCmd)
	lyricsCmd.AddCommand(lyricsParseCmd)
	lyricsCmd.AddCommand(lyricsSimulateCmd)

	// flags for lyrics simulate
	lyricsSimulateCmd.Flags().DurationVar(&simulateStep, "step", 200*time.Millisecond, "simulated sync interval")
	lyricsSimulateCmd.Flags().DurationVar(&simulateDuration, "duration", 0, "how much playback to simulate (default is past the last line)")
}

// helper functions

func printLines(w io.Writer, lines []lyrics.Line) {
	for _, line := range lines {
		fmt.Fprintf(w, "[%s] %s\n", formatTimestamp(line.StartTime), present.LineText(line))
	}
}

// simulate steps an engine over a linear playback clock and prints the
// first highlighted line and every change after it. It returns the number
// of lines printed.
func simulate(w io.Writer, trk *lyrics.Track, opts engine.Options, duration time.Duration, step time.Duration) int {
	if step <= 0 {
		step = 200 * time.Millisecond
	}

	eng := engine.New(opts)
	eng.Install(trk)

	printed := 0
	show := func(elapsed time.Duration, index int) {
		line, _ := trk.Line(index)
		fmt.Fprintf(w, "%s  line %d/%d  %s\n",
			formatTimestamp(elapsed.Seconds()), index+1, trk.Len(), present.LineText(line))
		printed++
	}

	if eng.CurrentLineIndex() == engine.NoLine {
		return 0
	}
	show(0, eng.CurrentLineIndex())

	start := time.Unix(0, 0)
	for elapsed := step; elapsed <= duration; elapsed += step {
		res := eng.Step(elapsed.Milliseconds(), start.Add(elapsed))
		if res.Changed {
			show(elapsed, res.Index)
		}
	}
	return printed
}

func formatTimestamp(seconds float64) string {
	minutes := int(seconds) / 60
	secs := seconds - float64(minutes*60)
	return fmt.Sprintf("%d:%05.2f", minutes, secs)
}
