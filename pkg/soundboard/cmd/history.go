package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/omriharel/soundboard/pkg/soundboard/store"
)

func newNowPlayingCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "now-playing",
		Short: "Show what a running soundboard is currently playing",
		Long:  `Lists play history entries that have started but not ended yet, which is what the running soundboard (or a "play" command) is playing right now.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := openEnvironment(flags)
			if err != nil {
				return err
			}
			defer env.Close()

			entries, err := env.db.History().Unfinished(cmd.Context())
			if err != nil {
				return err
			}

			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "(nothing playing)")
				return nil
			}

			printHistory(cmd.OutOrStdout(), entries)
			return nil
		},
	}
}

func newHistoryCmd(flags *globalFlags) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recently played sounds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit <= 0 {
				return fmt.Errorf("--limit must be positive, got %d", limit)
			}

			env, err := openEnvironment(flags)
			if err != nil {
				return err
			}
			defer env.Close()

			entries, err := env.db.History().Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}

			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "(no history)")
				return nil
			}

			printHistory(cmd.OutOrStdout(), entries)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Number of entries to show")

	return cmd
}

func printHistory(out io.Writer, entries []store.HistoryEntry) {
	for _, e := range entries {
		ended := "playing"
		if e.EndedAt != nil {
			ended = e.EndedAt.Sub(e.StartedAt).Round(100 * time.Millisecond).String()
		}

		fmt.Fprintf(out, "%s  %s  %-24s  pid %-7d  %s\n",
			e.StartedAt.Format(time.DateTime), e.SoundID, e.SoundName, e.PID, ended)
	}
}
