package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/omriharel/soundboard/pkg/soundboard"
	"github.com/omriharel/soundboard/pkg/soundboard/catalog"
	"github.com/omriharel/soundboard/pkg/soundboard/playback"
)

const playPollInterval = 100 * time.Millisecond

func newPlayCmd(flags *globalFlags) *cobra.Command {
	var (
		action   string
		duration time.Duration
	)

	cmd := &cobra.Command{
		Use:   "play <sound-id>...",
		Short: "Play sounds in this process and wait for them to finish",
		Long:  `Starts the given sounds with the configured player, prints what is playing and waits until they end, --for elapses or the command is interrupted. Everything still playing is stopped on exit.`,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := catalog.ParseAction(action)
			if err != nil {
				return err
			}

			env, err := openEnvironment(flags)
			if err != nil {
				return err
			}
			defer env.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			if duration > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, duration)
				defer cancel()
			}

			return playAndWait(ctx, cmd.OutOrStdout(), env, a, args)
		},
	}

	cmd.Flags().StringVar(&action, "action", string(catalog.ActionPlay), "PLAY, TOGGLE or RESTART")
	cmd.Flags().DurationVar(&duration, "for", 0, "Stop after this long (0 waits for the sounds to end)")

	return cmd
}

func playAndWait(ctx context.Context, out io.Writer, env *environment, action catalog.Action, ids []string) error {
	supervisor := playback.NewSupervisor(env.logger, playback.NewExecSpawner(env.logger),
		append(env.config.SupervisorOptions(), playback.WithListener(soundboard.NewHistoryRecorder(env.logger, env.db.History())))...)
	defer func() { _ = supervisor.Close() }()

	dispatcher := soundboard.NewDispatcher(env.logger, env.db.Sounds(), env.db.Settings(), supervisor, env.config.SettingsCacheTTL)

	for _, arg := range ids {
		id, err := parseID(arg)
		if err != nil {
			return err
		}

		session, err := dispatcher.Dispatch(ctx, action, id)
		if err != nil {
			return err
		}

		if session == nil {
			fmt.Fprintf(out, "stopped %s\n", id)
		}
	}

	printNowPlaying(out, supervisor.NowPlaying())

	ticker := time.NewTicker(playPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return supervisor.StopAll()
		case <-ticker.C:
			if len(supervisor.NowPlaying()) == 0 {
				return nil
			}
		}
	}
}

func printNowPlaying(out io.Writer, playing []playback.NowPlaying) {
	if len(playing) == 0 {
		fmt.Fprintln(out, "(nothing playing)")
		return
	}

	for _, p := range playing {
		fmt.Fprintf(out, "%s  %-24s  pid %-7d  since %s\n",
			p.SoundID, p.SoundName, p.ProcessID, p.StartedAt.Format(time.TimeOnly))
	}
}
