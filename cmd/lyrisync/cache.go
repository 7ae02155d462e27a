package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"karolbroda.com/lyrisync/internal/cache"
	"karolbroda.com/lyrisync/internal/present"
)

var (
	// flags for cache list
	cacheSortBy  string
	cacheConfirm bool
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "manage the lyrics cache",
	Long:  `manage cached lyrics and per-song sync offsets: statistics, listing, and cleanup.`,
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "show cache statistics",
	Long:  `display cache statistics including number of entries, total size, and cache location.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		diskCache := openCache(cfg.Lyrics, commandLogger())

		count, sizeBytes, err := diskCache.Stats()
		if err != nil {
			return fmt.Errorf("failed to get cache stats: %w", err)
		}

		fmt.Println("cache statistics:")
		fmt.Printf("  location: %s\n", diskCache.Dir())
		fmt.Printf("  entries:  %d\n", count)
		fmt.Printf("  size:     %s\n", formatBytes(sizeBytes))

		return nil
	},
}

var cacheListCmd = &cobra.Command{
	Use:   "list",
	Short: "list all cached songs",
	Long:  `list all songs in the cache with their sync offsets and cache date.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		diskCache := openCache(cfg.Lyrics, commandLogger())

		entries, err := diskCache.ListAll()
		if err != nil {
			return fmt.Errorf("failed to list cache: %w", err)
		}

		if len(entries) == 0 {
			fmt.Println("cache is empty")
			return nil
		}

		sortCacheEntries(entries, cacheSortBy)
		writeCacheTable(os.Stdout, entries)

		fmt.Printf("\ntotal: %d songs\n", len(entries))

		return nil
	},
}

var cacheShowCmd = &cobra.Command{
	Use:   "show <artist> <title>",
	Short: "show cached entry for specific song",
	Long:  `display detailed information about a cached song including its lines and sync offset.`,
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		artist := args[0]
		title := args[1]

		diskCache := openCache(cfg.Lyrics, commandLogger())
		entry, err := diskCache.Get(artist, title)
		if err != nil {
			return notCachedError(diskCache, artist, title, err)
		}

		fmt.Printf("artist:       %s\n", entry.ArtistName)
		fmt.Printf("title:        %s\n", entry.TrackName)
		fmt.Printf("source:       %s\n", entry.Source)
		fmt.Printf("sync offset:  %s\n", present.FormatOffset(entry.SyncOffsetMs))
		fmt.Printf("cached:       %s\n", time.Unix(entry.CreatedAt, 0).Format("2006-01-02 15:04:05"))
		fmt.Printf("expires:      %s\n", time.Unix(entry.ExpiresAt, 0).Format("2006-01-02 15:04:05"))

		if len(entry.Lines) == 0 {
			fmt.Println("\nno lyrics available")
			return nil
		}

		fmt.Printf("\nsynced lyrics: %d lines\n\n", len(entry.Lines))
		for _, line := range entry.Lines {
			text := strings.Join(line.Words, " ")
			if text == "" {
				text = present.RestText
			}
			fmt.Printf("[%s] %s\n", formatTimestamp(line.StartTime), text)
		}

		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "clear all cached entries",
	Long:  `remove all cached lyrics and sync offsets. use --confirm to skip confirmation prompt.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		diskCache := openCache(cfg.Lyrics, commandLogger())

		if !cacheConfirm {
			fmt.Print("are you sure you want to clear all cache? (y/n): ")
			var response string
			_, _ = fmt.Scanln(&response)
			if strings.ToLower(response) != "y" && strings.ToLower(response) != "yes" {
				fmt.Println("cancelled")
				return nil
			}
		}

		if err := diskCache.Clear(); err != nil {
			return fmt.Errorf("failed to clear cache: %w", err)
		}

		fmt.Println("cache cleared successfully")
		return nil
	},
}

var cachePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "remove expired cache entries",
	Long:  `remove all expired or unreadable cache entries to free up disk space.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		diskCache := openCache(cfg.Lyrics, commandLogger())

		pruned, err := diskCache.Prune()
		if err != nil {
			return fmt.Errorf("failed to prune cache: %w", err)
		}

		fmt.Printf("removed %d expired entries\n", pruned)
		return nil
	},
}

var cacheDeleteCmd = &cobra.Command{
	Use:   "delete <artist> <title>",
	Short: "remove specific song from cache",
	Long:  `remove a specific song, and its sync offset, from the cache by artist and title.`,
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		artist := args[0]
		title := args[1]

		diskCache := openCache(cfg.Lyrics, commandLogger())

		if _, err := diskCache.Get(artist, title); err != nil && !errors.Is(err, cache.ErrCacheExpired) {
			return notCachedError(diskCache, artist, title, err)
		}

		if err := diskCache.Delete(artist, title); err != nil {
			return fmt.Errorf("failed to delete from cache: %w", err)
		}

		fmt.Printf("deleted '%s - %s' from cache\n", artist, title)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cacheCmd)

	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheListCmd)
	cacheCmd.AddCommand(cacheShowCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	cacheCmd.AddCommand(cachePruneCmd)
	cacheCmd.AddCommand(cacheDeleteCmd)

	// flags for cache list
	cacheListCmd.Flags().StringVar(&cacheSortBy, "sort", "date", "sort by: date, artist, title")

	// flags for cache clear
	cacheClearCmd.Flags().BoolVar(&cacheConfirm, "confirm", false, "skip confirmation prompt")
}

// helper functions

func notCachedError(diskCache *cache.DiskCache, artist string, title string, err error) error {
	suggestions := findSimilarCachedSongs(diskCache, artist, title)
	if len(suggestions) == 0 {
		return fmt.Errorf("song not found in cache: %w", err)
	}

	fmt.Fprintf(os.Stderr, "song not found in cache\n\n")
	fmt.Fprintf(os.Stderr, "did you mean one of these?\n")
	for _, s := range suggestions {
		fmt.Fprintf(os.Stderr, "  %s - %s\n", s.ArtistName, s.TrackName)
	}
	return fmt.Errorf("song not found in cache: %w", err)
}

func writeCacheTable(out io.Writer, entries []*cache.LyricEntry) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ARTIST\tTITLE\tLINES\tSYNC OFFSET\tCACHED")

	for _, entry := range entries {
		syncStr := "-"
		if entry.SyncOffsetMs != 0 {
			syncStr = present.FormatOffset(entry.SyncOffsetMs)
		}
		cacheDate := time.Unix(entry.CreatedAt, 0).Format("2006-01-02")
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", entry.ArtistName, entry.TrackName, len(entry.Lines), syncStr, cacheDate)
	}

	_ = w.Flush()
}

func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

func sortCacheEntries(entries []*cache.LyricEntry, sortBy string) {
	switch sortBy {
	case "artist":
		sort.SliceStable(entries, func(i, j int) bool {
			return strings.ToLower(entries[i].ArtistName) < strings.ToLower(entries[j].ArtistName)
		})
	case "title":
		sort.SliceStable(entries, func(i, j int) bool {
			return strings.ToLower(entries[i].TrackName) < strings.ToLower(entries[j].TrackName)
		})
	case "date":
		sort.SliceStable(entries, func(i, j int) bool {
			return entries[i].CreatedAt > entries[j].CreatedAt
		})
	}
}

const maxSuggestions = 5

func findSimilarCachedSongs(diskCache *cache.DiskCache, artist string, title string) []*cache.LyricEntry {
	allEntries, err := diskCache.ListAll()
	if err != nil || len(allEntries) == 0 {
		return nil
	}

	artistLower := strings.ToLower(artist)
	titleLower := strings.ToLower(title)
	similar := func(a, b string) bool {
		return strings.Contains(a, b) || strings.Contains(b, a)
	}

	// exact artist with a similar title first
	var matches []*cache.LyricEntry
	for _, entry := range allEntries {
		if strings.ToLower(entry.ArtistName) == artistLower && similar(strings.ToLower(entry.TrackName), titleLower) {
			matches = append(matches, entry)
		}
	}

	if len(matches) == 0 {
		for _, entry := range allEntries {
			if similar(strings.ToLower(entry.ArtistName), artistLower) && similar(strings.ToLower(entry.TrackName), titleLower) {
				matches = append(matches, entry)
			}
		}
	}

	if len(matches) > maxSuggestions {
		matches = matches[:maxSuggestions]
	}
	return matches
}
