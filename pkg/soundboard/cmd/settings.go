package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/omriharel/soundboard/pkg/soundboard/catalog"
)

func newSettingsCmd(flags *globalFlags) *cobra.Command {
	settingsCmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change global playback settings",
	}

	settingsCmd.AddCommand(newSettingsShowCmd(flags), newSettingsSetCmd(flags))

	return settingsCmd
}

func newSettingsShowCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the current settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := openEnvironment(flags)
			if err != nil {
				return err
			}
			defer env.Close()

			settings, err := env.db.Settings().Settings(cmd.Context())
			if err != nil {
				return err
			}

			printSettings(cmd.OutOrStdout(), settings)
			return nil
		},
	}
}

func newSettingsSetCmd(flags *globalFlags) *cobra.Command {
	var (
		device       string
		volume       int
		clearVolume  bool
		stopPrevious bool
		allowOverlap bool
		playerPath   string
	)

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Change settings; only the given flags are updated",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := openEnvironment(flags)
			if err != nil {
				return err
			}
			defer env.Close()

			settings, err := env.db.Settings().Settings(cmd.Context())
			if err != nil {
				return err
			}

			changed := cmd.Flags().Changed

			if changed("device") {
				settings.DefaultOutputDevice = device
			}
			if changed("volume") {
				if volume < 0 || volume > 100 {
					return fmt.Errorf("volume must be between 0 and 100, got %d", volume)
				}
				settings.DefaultVolume = catalog.IntPtr(volume)
			}
			if clearVolume {
				settings.DefaultVolume = nil
			}
			if changed("stop-previous") {
				settings.StopPreviousOnPlay = stopPrevious
			}
			if changed("allow-overlap") {
				settings.AllowOverlapping = allowOverlap
			}
			if changed("player") {
				if playerPath == "" {
					return fmt.Errorf("--player must not be empty")
				}
				settings.PlayerPath = playerPath
			}

			if err := env.db.Settings().Update(cmd.Context(), settings); err != nil {
				return err
			}

			printSettings(cmd.OutOrStdout(), settings)
			return nil
		},
	}

	cmd.Flags().StringVar(&device, "device", "", "Default output device (empty for the system default)")
	cmd.Flags().IntVar(&volume, "volume", 0, "Default volume (0-100)")
	cmd.Flags().BoolVar(&clearVolume, "clear-volume", false, "Remove the default volume")
	cmd.Flags().BoolVar(&stopPrevious, "stop-previous", true, "Stop other sounds when one starts")
	cmd.Flags().BoolVar(&allowOverlap, "allow-overlap", false, "Let sounds overlap; wins over --stop-previous")
	cmd.Flags().StringVar(&playerPath, "player", "", "Player executable")

	return cmd
}

func printSettings(out io.Writer, s catalog.Settings) {
	volume := "(player default)"
	if s.DefaultVolume != nil {
		volume = fmt.Sprintf("%d", *s.DefaultVolume)
	}

	device := s.DefaultOutputDevice
	if device == "" {
		device = "(system default)"
	}

	fmt.Fprintf(out, "player:              %s\n", s.PlayerPath)
	fmt.Fprintf(out, "output device:       %s\n", device)
	fmt.Fprintf(out, "volume:              %s\n", volume)
	fmt.Fprintf(out, "stop previous:       %t\n", s.StopPreviousOnPlay)
	fmt.Fprintf(out, "allow overlapping:   %t\n", s.AllowOverlapping)
	fmt.Fprintf(out, "exclusive playback:  %t\n", s.Exclusive())
}
