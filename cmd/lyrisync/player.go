package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/godbus/dbus/v5"
	"github.com/spf13/cobra"

	"karolbroda.com/lyrisync/internal/player"
	"karolbroda.com/lyrisync/internal/present"
)

var playerCmd = &cobra.Command{
	Use:   "player",
	Short: "player utilities",
	Long:  `discover mpris players and check what the configured backend reports.`,
}

var playerListCmd = &cobra.Command{
	Use:   "list",
	Short: "list available mpris players",
	Long:  `list all mpris-compatible music players currently running on the system.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		bus, err := dbus.ConnectSessionBus()
		if err != nil {
			return fmt.Errorf("failed to connect to session bus: %w", err)
		}
		defer bus.Close()

		players, err := player.ListPlayers(bus)
		if err != nil {
			return err
		}

		if len(players) == 0 {
			fmt.Println("no mpris players found")
			fmt.Println("\ncheck if your music player is running and supports mpris")
			return nil
		}

		fmt.Printf("found %d mpris player(s):\n\n", len(players))
		for _, p := range players {
			if p.Identity != "" {
				fmt.Printf("  %s (%s)\n", p.Service, p.Identity)
			} else {
				fmt.Printf("  %s\n", p.Service)
			}
		}

		fmt.Println("\nuse --mpris-service flag to specify which player to use")

		return nil
	},
}

var playerCurrentCmd = &cobra.Command{
	Use:   "current",
	Short: "show currently playing track",
	Long:  `poll the configured player backend once and display what it reports.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := commandLogger()
		defer func() { _ = logger.Sync() }()

		ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Sync.PollTimeout*4)
		defer cancel()

		poller, cleanup, err := connectBackend(ctx, cfg.Player, logger)
		if err != nil {
			return err
		}
		defer cleanup()

		sample, err := poller.Poll(ctx)
		if errors.Is(err, player.ErrNothingPlaying) {
			fmt.Println("no track currently playing")
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to poll %s: %w", poller.Name(), err)
		}

		trk := sample.Track
		fmt.Printf("player:   %s\n", poller.Name())
		fmt.Printf("title:    %s\n", trk.Title)
		fmt.Printf("artist:   %s\n", trk.Artist)
		if trk.Album != "" {
			fmt.Printf("album:    %s\n", trk.Album)
		}
		if trk.DurationMs > 0 {
			fmt.Printf("duration: %s\n", present.FormatTime(trk.DurationMs))
		}
		if trk.ArtworkURL != "" {
			fmt.Printf("artwork:  %s\n", trk.ArtworkURL)
		}
		if sample.Playing {
			fmt.Printf("state:    playing\n")
		} else {
			fmt.Printf("state:    paused\n")
		}
		fmt.Printf("position: %s\n", present.FormatTime(sample.ElapsedMs))

		return nil
	},
}

func init() {
	rootCmd.AddCommand(playerCmd)

	playerCmd.AddCommand(playerListCmd)
	playerCmd.AddCommand(playerCurrentCmd)
}
