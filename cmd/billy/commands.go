package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nerrad567/billy-core/internal/infrastructure/config"
	"github.com/nerrad567/billy-core/internal/song"
)

type configLoader func() (*config.Config, error)

func newServeCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the playback service, MQTT command handler and HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg, newLogger(cfg))
		},
	}
}

func newPlayCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "play <song>",
		Short: "Play one song in the foreground",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			return playOnce(cmd.Context(), cfg, newLogger(cfg), args[0])
		},
	}
}

func newSongsCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "songs",
		Short: "List the song library",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			songs, err := song.NewLibrary(cfg.Songs.Dir).List()
			if err != nil {
				return err
			}
			return printSongs(cmd, songs)
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "billy %s (commit %s, built %s)\n", version, commit, date)
		},
	}
}

func printSongs(cmd *cobra.Command, songs []song.Info) error {
	out := cmd.OutOrStdout()
	if len(songs) == 0 {
		fmt.Fprintln(out, "no songs found")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tVOCALS\tDRUMS\tMETADATA")
	for _, s := range songs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", s.Name, yesNo(s.HasVocals), yesNo(s.HasDrums), yesNo(s.HasMetadata))
	}
	return tw.Flush()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "-"
}
