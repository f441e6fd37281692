// Package soundboard provides a desktop soundboard: a catalog of sounds bound
// to hotkeys, played through supervised external player processes.
package soundboard

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/omriharel/soundboard/pkg/soundboard/catalog"
	"github.com/omriharel/soundboard/pkg/soundboard/playback"
	"github.com/omriharel/soundboard/pkg/soundboard/store"
	"github.com/omriharel/soundboard/pkg/soundboard/util"
)

const (
	// EnvNoTray disables the tray icon when set.
	EnvNoTray = "SOUNDBOARD_NO_TRAY_ICON"

	dispatchTimeout = 10 * time.Second
	sweepTimeout    = 10 * time.Second

	minTimeBetweenBindingRefreshes = time.Second * 5
	maxTimeBetweenBindingRefreshes = time.Second * 45
)

// Soundboard manages the main application components.
type Soundboard struct {
	logger   *zap.SugaredLogger
	notifier Notifier
	config   *CanonicalConfig
	keypad   *KeypadIO

	db         *store.DB
	shortcuts  catalog.ShortcutLookup
	supervisor *playback.Supervisor
	dispatcher *Dispatcher
	bindings   *bindingMap

	bindingsLock sync.Mutex
	stopChannel  chan bool
	trayRunning  bool
	version      string
	verbose      bool
}

// NewSoundboard creates a new Soundboard instance.
func NewSoundboard(logger *zap.SugaredLogger, notifier Notifier, config *CanonicalConfig, verbose bool) (*Soundboard, error) {
	logger = logger.Named("soundboard")

	keypad, err := NewKeypadIO(config, logger)
	if err != nil {
		logger.Errorw("Failed to initialize keypad input", "error", err)
		return nil, fmt.Errorf("initialize keypad input: %w", err)
	}

	sb := &Soundboard{
		logger:      logger,
		notifier:    notifier,
		config:      config,
		keypad:      keypad,
		bindings:    newBindingMap(),
		stopChannel: make(chan bool, 1),
		verbose:     verbose,
	}

	logger.Debug("Created soundboard instance")
	return sb, nil
}

// Initialize loads config, opens the catalog, cleans up after a previous run
// and starts running the application. It doesn't return until shutdown.
func (sb *Soundboard) Initialize() error {
	sb.logger.Debug("Initializing soundboard")

	if err := sb.config.Load(); err != nil {
		sb.logger.Errorw("Failed to load configuration", "error", err)
		return fmt.Errorf("load configuration: %w", err)
	}

	db, err := store.Open(sb.logger, sb.config.DatabasePath, sb.config.SettingsDefaults())
	if err != nil {
		sb.logger.Errorw("Failed to open database", "error", err)
		return fmt.Errorf("open database: %w", err)
	}

	sb.db = db
	sb.shortcuts = db.Shortcuts()

	recorder := NewHistoryRecorder(sb.logger, db.History())
	sb.sweepOrphans(recorder)

	sb.supervisor = playback.NewSupervisor(sb.logger, playback.NewExecSpawner(sb.logger),
		append(sb.config.SupervisorOptions(), playback.WithListener(recorder))...)

	sb.dispatcher = NewDispatcher(sb.logger, db.Sounds(), db.Settings(), sb.supervisor, sb.config.SettingsCacheTTL)

	sb.refreshBindings(true)
	sb.setupOnConfigReload()
	sb.setupOnKeyPress()
	sb.setupInterruptHandler()

	if os.Getenv(EnvNoTray) != "" {
		sb.logger.Debug("Running without tray icon")
		sb.run()
	} else {
		sb.trayRunning = true
		sb.initializeTray(sb.run)
	}

	return nil
}

// SetVersion sets the application version for display in the tray menu.
func (sb *Soundboard) SetVersion(version string) {
	sb.version = version
}

// Verbose indicates whether the application runs in verbose mode.
func (sb *Soundboard) Verbose() bool {
	return sb.verbose
}

func (sb *Soundboard) setupInterruptHandler() {
	interruptChannel := util.SetupCloseHandler()

	go func() {
		signal := <-interruptChannel
		sb.logger.Debugw("Interrupt received", "signal", signal)
		sb.signalStop()
	}()
}

func (sb *Soundboard) setupOnConfigReload() {
	configReloadedChannel := sb.config.SubscribeToChanges()

	go func() {
		defer sb.recoverFromPanic()

		for range configReloadedChannel {
			sb.logger.Info("Detected config reload, refreshing settings and shortcuts")
			sb.dispatcher.InvalidateSettings()
			sb.refreshBindings(false)
		}
	}()
}

func (sb *Soundboard) setupOnKeyPress() {
	keyPressChannel := sb.keypad.SubscribeToKeyPressEvents()

	go func() {
		defer sb.recoverFromPanic()

		for event := range keyPressChannel {
			sb.handleKeyPress(event)
		}
	}()
}

// handleKeyPress dispatches every shortcut bound to the pressed key
func (sb *Soundboard) handleKeyPress(event KeyPressEvent) {
	if sb.bindings.loadedAt().Add(maxTimeBetweenBindingRefreshes).Before(time.Now()) {
		sb.logger.Debug("Stale bindings detected on key press, refreshing")
		sb.refreshBindings(true)
	}

	bindingFound := false

	for _, hotkey := range sb.config.aliases().resolve(event.Key) {
		for _, shortcut := range sb.bindings.get(hotkey) {
			bindingFound = true

			ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
			_, err := sb.dispatcher.Dispatch(ctx, shortcut.Action, shortcut.SoundID)
			cancel()

			sb.handleDispatchError(shortcut, err)
		}
	}

	if !bindingFound {
		sb.logger.Debugw("No shortcut bound to key", "key", event.Key)
		sb.refreshBindings(false)
	}
}

func (sb *Soundboard) handleDispatchError(shortcut catalog.Shortcut, err error) {
	if err == nil {
		return
	}

	var (
		spawnFailed *playback.SpawnFailedError
		notIngested *catalog.NotIngestedError
		notFound    *catalog.SoundNotFoundError
		noSource    *playback.NoSourceError
	)

	switch {
	case isNegativeResult(err):
		sb.logger.Debugw("Shortcut had nothing to do", "hotkey", shortcut.Hotkey, "reason", err)
	case errors.As(err, &spawnFailed):
		sb.logger.Warnw("Player failed to start", "hotkey", shortcut.Hotkey, "error", err)
		sb.notifier.Notify("Couldn't play sound!", "The player failed to start. Check logs for more details.")
	case errors.As(err, &notIngested):
		sb.logger.Warnw("Sound not downloaded yet", "hotkey", shortcut.Hotkey, "soundID", notIngested.SoundID)
		sb.notifier.Notify("Sound not ready yet!", "This sound still has to be downloaded before it can play.")
	case errors.As(err, &noSource):
		sb.logger.Warnw("Sound has no source", "hotkey", shortcut.Hotkey, "soundID", noSource.SoundID)
	case errors.As(err, &notFound):
		sb.logger.Warnw("Shortcut points at a missing sound, refreshing", "hotkey", shortcut.Hotkey, "soundID", notFound.ID)
		sb.refreshBindings(true)
	default:
		sb.logger.Warnw("Failed to dispatch shortcut", "hotkey", shortcut.Hotkey, "action", shortcut.Action, "error", err)
	}
}

// refreshBindings re-reads shortcuts unless that happened very recently
func (sb *Soundboard) refreshBindings(force bool) {
	sb.bindingsLock.Lock()
	defer sb.bindingsLock.Unlock()

	if !force && sb.bindings.loadedAt().Add(minTimeBetweenBindingRefreshes).After(time.Now()) {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
	defer cancel()

	shortcuts, err := sb.shortcuts.Shortcuts(ctx)
	if err != nil {
		sb.logger.Warnw("Failed to load shortcuts", "error", err)
		return
	}

	sb.bindings.replace(shortcuts)
	sb.logger.Infow("Loaded shortcuts successfully", "bindings", sb.bindings)
}

func (sb *Soundboard) sweepOrphans(recorder *HistoryRecorder) {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	playerPath := sb.config.Playback.PlayerPath
	if settings, err := sb.db.Settings().Settings(ctx); err == nil && settings.PlayerPath != "" {
		playerPath = settings.PlayerPath
	}

	killed, err := recorder.sweepOrphans(ctx, playerPath, osProcessKiller{})
	if err != nil {
		sb.logger.Warnw("Failed to clean up after previous run", "error", err)
		return
	}

	if killed > 0 {
		sb.logger.Infow("Stopped players left over from previous run", "count", killed)
	}
}

func (sb *Soundboard) run() {
	defer sb.recoverFromPanic()

	sb.logger.Info("Run loop starting")

	go sb.config.WatchConfigFileChanges()

	go func() {
		if err := sb.keypad.Start(); err != nil {
			sb.handleKeypadError(err)
		}
	}()

	<-sb.stopChannel
	sb.logger.Debug("Stop signal received")

	if err := sb.stop(); err != nil {
		sb.logger.Warnw("Error during shutdown", "error", err)
		os.Exit(1)
	}

	os.Exit(0)
}

func (sb *Soundboard) handleKeypadError(err error) {
	switch {
	case errors.Is(err, os.ErrPermission):
		sb.logger.Warnw("Serial port busy", "comPort", sb.config.Connection().COMPort)
		sb.notifier.Notify("Keypad port busy!",
			"Close other applications using the port and try again.")
	case errors.Is(err, os.ErrNotExist):
		sb.logger.Warnw("Invalid serial port configuration", "comPort", sb.config.Connection().COMPort)
		sb.notifier.Notify("Invalid keypad port!",
			"Ensure the correct port is set in the configuration.")
	default:
		sb.logger.Warnw("Unknown error during keypad start", "error", err)
	}

	// the tray menu still works without a keypad, so keep running
}

func (sb *Soundboard) signalStop() {
	sb.logger.Debug("Sending stop signal")

	select {
	case sb.stopChannel <- true:
	default:
	}
}

func (sb *Soundboard) stop() error {
	sb.logger.Info("Shutting down soundboard")

	sb.config.StopWatchingConfigFile()
	sb.keypad.Release()

	var err error

	if sb.supervisor != nil {
		err = multierr.Append(err, sb.supervisor.Close())
	}

	if sb.db != nil {
		err = multierr.Append(err, sb.db.Close())
	}

	if sb.trayRunning {
		sb.stopTray()
	}

	_ = sb.logger.Sync()

	if err != nil {
		return fmt.Errorf("shut down: %w", err)
	}

	return nil
}
