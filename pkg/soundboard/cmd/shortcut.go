package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/omriharel/soundboard/pkg/soundboard/catalog"
)

func newShortcutCmd(flags *globalFlags) *cobra.Command {
	shortcutCmd := &cobra.Command{
		Use:   "shortcut",
		Short: "Manage hotkey shortcuts",
	}

	shortcutCmd.AddCommand(
		newShortcutAddCmd(flags),
		newShortcutListCmd(flags),
		newShortcutRemoveCmd(flags),
	)

	return shortcutCmd
}

func newShortcutAddCmd(flags *globalFlags) *cobra.Command {
	var (
		soundID  string
		hotkey   string
		action   string
		disabled bool
	)

	cmd := &cobra.Command{
		Use:     "add",
		Short:   "Bind a hotkey to an action on a sound",
		Example: `  soundboard shortcut add --sound 3f2c... --hotkey key1 --action TOGGLE`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(soundID)
			if err != nil {
				return err
			}

			a, err := catalog.ParseAction(action)
			if err != nil {
				return err
			}

			env, err := openEnvironment(flags)
			if err != nil {
				return err
			}
			defer env.Close()

			if _, err := env.db.Sounds().Sound(cmd.Context(), id); err != nil {
				return err
			}

			shortcut := catalog.Shortcut{
				SoundID: id,
				Hotkey:  hotkey,
				Action:  a,
				Enabled: !disabled,
			}

			if err := env.db.Shortcuts().Create(cmd.Context(), &shortcut); err != nil {
				return fmt.Errorf("add shortcut: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), shortcut.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&soundID, "sound", "", "Sound id")
	cmd.Flags().StringVar(&hotkey, "hotkey", "", "Hotkey or keypad key name")
	cmd.Flags().StringVar(&action, "action", string(catalog.ActionPlay), "PLAY, STOP, TOGGLE or RESTART")
	cmd.Flags().BoolVar(&disabled, "disabled", false, "Create the shortcut disabled")
	_ = cmd.MarkFlagRequired("sound")
	_ = cmd.MarkFlagRequired("hotkey")

	return cmd
}

func newShortcutListCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every shortcut",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := openEnvironment(flags)
			if err != nil {
				return err
			}
			defer env.Close()

			shortcuts, err := env.db.Shortcuts().Shortcuts(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(shortcuts) == 0 {
				fmt.Fprintln(out, "(no shortcuts)")
				return nil
			}

			for _, s := range shortcuts {
				state := "enabled"
				if !s.Enabled {
					state = "disabled"
				}
				fmt.Fprintf(out, "%s  %-16s  %-7s  %s  %s\n", s.ID, s.Hotkey, s.Action, s.SoundID, state)
			}

			return nil
		},
	}
}

func newShortcutRemoveCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <shortcut-id>",
		Short: "Remove a shortcut",
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

			return env.db.Shortcuts().Delete(cmd.Context(), id)
		},
	}
}
