package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/omriharel/soundboard/pkg/soundboard"
)

func newDevicesCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List audio output devices usable as --device values",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := soundboard.NewLogger(buildType, flags.verbose)
			if err != nil {
				return fmt.Errorf("create logger: %w", err)
			}
			defer func() { _ = logger.Sync() }()

			finder, err := soundboard.NewDeviceFinder(logger)
			if err != nil {
				return err
			}
			defer func() { _ = finder.Release() }()

			devices, err := finder.OutputDevices()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, d := range devices {
				marker := " "
				if d.Default {
					marker = "*"
				}
				fmt.Fprintf(out, "%s %s\n    %s\n", marker, d.PlayerDevice(), d.Description)
			}

			return nil
		},
	}
}
