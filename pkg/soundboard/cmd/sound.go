package main

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/omriharel/soundboard/pkg/soundboard/catalog"
)

func newSoundCmd(flags *globalFlags) *cobra.Command {
	soundCmd := &cobra.Command{
		Use:   "sound",
		Short: "Manage the sound catalog",
	}

	soundCmd.AddCommand(
		newSoundAddCmd(flags),
		newSoundListCmd(flags),
		newSoundRemoveCmd(flags),
		newSoundSetPathCmd(flags),
	)

	return soundCmd
}

func newSoundAddCmd(flags *globalFlags) *cobra.Command {
	var (
		sound      catalog.Sound
		sourceType string
		volume     int
		trimStart  float64
		trimEnd    float64
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a sound to the catalog",
		Example: `  soundboard sound add --name airhorn --path ~/sounds/airhorn.mp3
  soundboard sound add --name intro --type DIRECT_URL --url https://example.com/intro.ogg --volume 60`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := catalog.ParseSourceType(sourceType)
			if err != nil {
				return err
			}
			sound.SourceType = t

			if err := validateSource(sound); err != nil {
				return err
			}

			if cmd.Flags().Changed("volume") {
				if volume < 0 || volume > 100 {
					return fmt.Errorf("volume must be between 0 and 100, got %d", volume)
				}
				sound.Volume = catalog.IntPtr(volume)
			}
			if cmd.Flags().Changed("trim-start") {
				sound.TrimStart = catalog.FloatPtr(trimStart)
			}
			if cmd.Flags().Changed("trim-end") {
				sound.TrimEnd = catalog.FloatPtr(trimEnd)
			}

			env, err := openEnvironment(flags)
			if err != nil {
				return err
			}
			defer env.Close()

			if err := env.db.Sounds().Create(cmd.Context(), &sound); err != nil {
				return fmt.Errorf("add sound: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), sound.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&sound.Name, "name", "", "Display name")
	cmd.Flags().StringVar(&sound.Description, "description", "", "Free-form description")
	cmd.Flags().StringSliceVar(&sound.Tags, "tags", nil, "Comma-separated tags")
	cmd.Flags().StringVar(&sourceType, "type", string(catalog.SourceLocalFile), "Source type: LOCAL_FILE, DIRECT_URL or YOUTUBE")
	cmd.Flags().StringVar(&sound.SourceURL, "url", "", "Remote URL for DIRECT_URL and YOUTUBE sounds")
	cmd.Flags().StringVar(&sound.LocalPath, "path", "", "Local file path")
	cmd.Flags().IntVar(&volume, "volume", 0, "Volume override (0-100)")
	cmd.Flags().Float64Var(&trimStart, "trim-start", 0, "Start offset in seconds")
	cmd.Flags().Float64Var(&trimEnd, "trim-end", 0, "End offset in seconds")
	cmd.Flags().StringVar(&sound.OutputDevice, "device", "", "Output device override, e.g. pulse/<sink name>")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func validateSource(sound catalog.Sound) error {
	switch sound.SourceType {
	case catalog.SourceLocalFile:
		if sound.LocalPath == "" {
			return fmt.Errorf("--path is required for %s sounds", sound.SourceType)
		}
	case catalog.SourceDirectURL, catalog.SourceYouTube:
		if sound.SourceURL == "" {
			return fmt.Errorf("--url is required for %s sounds", sound.SourceType)
		}
	}
	return nil
}

func newSoundListCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every sound",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := openEnvironment(flags)
			if err != nil {
				return err
			}
			defer env.Close()

			sounds, err := env.db.Sounds().List(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(sounds) == 0 {
				fmt.Fprintln(out, "(no sounds)")
				return nil
			}

			maxLen := 0
			for _, s := range sounds {
				maxLen = max(maxLen, len(s.Name))
			}

			for _, s := range sounds {
				source, _ := s.PlayableSource()
				fmt.Fprintf(out, "%s  %-*s  %-10s  %5d plays  %s\n",
					s.ID, maxLen, s.Name, s.SourceType, s.PlayCount, describeSource(s, source))
			}

			return nil
		},
	}
}

func describeSource(s catalog.Sound, source string) string {
	var extras []string
	if len(s.Tags) > 0 {
		extras = append(extras, "tags="+strings.Join(s.Tags, ","))
	}
	if s.Volume != nil {
		extras = append(extras, fmt.Sprintf("volume=%d", *s.Volume))
	}
	if s.SourceType == catalog.SourceYouTube && !s.Ingested() {
		extras = append(extras, "not downloaded")
	}

	if len(extras) == 0 {
		return source
	}
	return fmt.Sprintf("%s (%s)", source, strings.Join(extras, ", "))
}

func newSoundRemoveCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <sound-id>",
		Short: "Remove a sound and its shortcuts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			env, err := openEnvironment(flags)
			if err != nil {
				return err
			}
			defer env.Close()

			return env.db.Sounds().Delete(cmd.Context(), id)
		},
	}
}

func newSoundSetPathCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "set-path <sound-id> <path>",
		Short: "Record a downloaded local copy for a sound",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			env, err := openEnvironment(flags)
			if err != nil {
				return err
			}
			defer env.Close()

			return env.db.Sounds().SetLocalPath(cmd.Context(), id, args[1])
		},
	}
}

func parseID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(s))
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid id %q: %w", s, err)
	}
	return id, nil
}
