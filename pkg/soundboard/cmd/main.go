package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/omriharel/soundboard/pkg/soundboard"
	"github.com/omriharel/soundboard/pkg/soundboard/store"
)

var (
	gitCommit  string
	versionTag string
	buildType  string
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	verbose    bool
	configFile string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:           "soundboard",
		Short:         "Hotkey-driven desktop soundboard",
		Long:          `Plays sounds from a local catalog through an external player, triggered by a USB macro keypad, stdin or the tray menu.`,
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSoundboard(flags)
		},
	}

	rootCmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "Show verbose logs (useful for debugging the keypad)")
	rootCmd.PersistentFlags().StringVar(&flags.configFile, "config", "", "Path to the config file (default "+soundboard.DefaultConfigFilepath+")")

	rootCmd.AddCommand(
		newRunCmd(flags),
		newSoundCmd(flags),
		newShortcutCmd(flags),
		newSettingsCmd(flags),
		newDevicesCmd(flags),
		newPlayCmd(flags),
		newNowPlayingCmd(flags),
		newHistoryCmd(flags),
	)

	return rootCmd
}

func newRunCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the soundboard with its tray icon and keypad input",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSoundboard(flags)
		},
	}
}

func runSoundboard(flags *globalFlags) error {
	logger, err := soundboard.NewLogger(buildType, flags.verbose)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}

	named := logger.Named("main")
	named.Debug("Created logger")

	if versionTag != "" || gitCommit != "" {
		named.Infow("Version info", "gitCommit", gitCommit, "versionTag", versionTag, "buildType", buildType)
	}

	if flags.verbose {
		named.Debug("Verbose mode enabled, all log messages will be shown")
	}

	notifier, err := soundboard.NewToastNotifier(logger)
	if err != nil {
		named.Errorw("Failed to create notifier", "error", err)
		return fmt.Errorf("create notifier: %w", err)
	}

	config, err := soundboard.NewConfig(logger, notifier, flags.configFile)
	if err != nil {
		named.Errorw("Failed to create configuration", "error", err)
		return fmt.Errorf("create configuration: %w", err)
	}

	sb, err := soundboard.NewSoundboard(logger, notifier, config, flags.verbose)
	if err != nil {
		named.Errorw("Failed to create soundboard instance", "error", err)
		return fmt.Errorf("create soundboard instance: %w", err)
	}

	if versionTag != "" || gitCommit != "" {
		versionIdentifier := versionTag
		if versionIdentifier == "" {
			versionIdentifier = gitCommit
		}
		sb.SetVersion(fmt.Sprintf("Version %s-%s", buildType, versionIdentifier))
	}

	if err := sb.Initialize(); err != nil {
		named.Errorw("Failed to initialize soundboard", "error", err)
		return fmt.Errorf("initialize soundboard: %w", err)
	}

	return nil
}

// environment is what one-shot commands need: a logger, the loaded config and the catalog.
type environment struct {
	logger *zap.SugaredLogger
	config *soundboard.CanonicalConfig
	db     *store.DB
}

func openEnvironment(flags *globalFlags) (*environment, error) {
	logger, err := soundboard.NewLogger(buildType, flags.verbose)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	config, err := soundboard.NewConfig(logger, soundboard.NewLogNotifier(logger), flags.configFile)
	if err != nil {
		return nil, fmt.Errorf("create configuration: %w", err)
	}

	if err := config.Load(); err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	db, err := store.Open(logger, config.DatabasePath, config.SettingsDefaults())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	return &environment{
		logger: logger,
		config: config,
		db:     db,
	}, nil
}

func (e *environment) Close() {
	_ = e.db.Close()
	_ = e.logger.Sync()
}
