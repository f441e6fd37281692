package soundboard

import (
	"fmt"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/omriharel/soundboard/pkg/soundboard/catalog"
	"github.com/omriharel/soundboard/pkg/soundboard/playback"
	"github.com/omriharel/soundboard/pkg/soundboard/util"
)

// CanonicalConfig provides centralized access to configuration fields
type CanonicalConfig struct {
	DatabasePath     string
	Playback         PlaybackConfig
	SettingsCacheTTL time.Duration

	// swapped by reloads while the keypad and key press handlers read them
	reloadableLock sync.RWMutex
	keyAliases     *aliasMap
	connectionInfo ConnectionInfo

	logger             *zap.SugaredLogger
	notifier           Notifier
	stopWatcherChannel chan struct{}
	stopWatcherOnce    sync.Once

	reloadConsumers []chan bool

	userConfigFile string
	userConfig     *viper.Viper
	internalConfig *viper.Viper
}

// PlaybackConfig groups player settings. The database settings row is seeded from these.
type PlaybackConfig struct {
	PlayerPath          string
	DefaultOutputDevice string
	DefaultVolume       *int
	StopPreviousOnPlay  bool
	AllowOverlapping    bool
	StopTimeout         time.Duration
	StartupGrace        time.Duration
}

// ConnectionInfo groups serial port settings. An empty COMPort means stdin.
type ConnectionInfo struct {
	COMPort  string
	BaudRate int
}

const (
	// DefaultConfigFilepath is where the user config lives unless told otherwise.
	DefaultConfigFilepath = "config.yaml"

	internalConfigName = "preferences"

	configType = "yaml"
	envPrefix  = "SOUNDBOARD"

	configKeyDatabasePath        = "database_path"
	configKeyPlayerPath          = "player_path"
	configKeyDefaultOutputDevice = "default_output_device"
	configKeyDefaultVolume       = "default_volume"
	configKeyStopPreviousOnPlay  = "stop_previous_on_play"
	configKeyAllowOverlapping    = "allow_overlapping"
	configKeyStopTimeout         = "stop_timeout"
	configKeyStartupGrace        = "startup_grace"
	configKeyCOMPort             = "keypad.com_port"
	configKeyBaudRate            = "keypad.baud_rate"
	configKeyKeyAliases          = "keypad.key_aliases"
	configKeySettingsCacheTTL    = "settings_cache_ttl"

	defaultDatabasePath     = "data/soundboard.db"
	defaultBaudRate         = 9600
	defaultSettingsCacheTTL = 2 * time.Second
)

var internalConfigPath = path.Join(".", LogDirectory)

// NewConfig initializes the configuration manager. configFile may be empty
// to use DefaultConfigFilepath.
func NewConfig(logger *zap.SugaredLogger, notifier Notifier, configFile string) (*CanonicalConfig, error) {
	logger = logger.Named("config")

	if configFile == "" {
		configFile = DefaultConfigFilepath
	}

	cc := &CanonicalConfig{
		logger:             logger,
		notifier:           notifier,
		reloadConsumers:    make([]chan bool, 0),
		stopWatcherChannel: make(chan struct{}),
		userConfigFile:     configFile,
	}

	cc.initializeViperInstances()
	logger.Debugw("Created configuration instance", "path", configFile)

	return cc, nil
}

// initializeViperInstances sets up user and internal config
func (cc *CanonicalConfig) initializeViperInstances() {
	cc.userConfig = viper.New()
	cc.userConfig.SetConfigFile(cc.userConfigFile)
	cc.userConfig.SetConfigType(configType)
	cc.userConfig.SetEnvPrefix(envPrefix)
	cc.userConfig.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	cc.userConfig.AutomaticEnv()

	for key, value := range map[string]interface{}{
		configKeyDatabasePath:        defaultDatabasePath,
		configKeyPlayerPath:          playback.DefaultPlayerPath,
		configKeyDefaultOutputDevice: "",
		configKeyStopPreviousOnPlay:  true,
		configKeyAllowOverlapping:    false,
		configKeyStopTimeout:         playback.DefaultStopTimeout,
		configKeyStartupGrace:        playback.DefaultStartupGrace,
		configKeyCOMPort:             "",
		configKeyBaudRate:            defaultBaudRate,
		configKeyKeyAliases:          map[string][]string{},
		configKeySettingsCacheTTL:    defaultSettingsCacheTTL,
	} {
		cc.userConfig.SetDefault(key, value)
	}

	cc.internalConfig = viper.New()
	cc.internalConfig.SetConfigName(internalConfigName)
	cc.internalConfig.SetConfigType(configType)
	cc.internalConfig.AddConfigPath(internalConfigPath)
}

// Load reads and validates configuration files. A missing user config is not
// an error: defaults (and environment overrides) apply.
func (cc *CanonicalConfig) Load() error {
	cc.logger.Debugw("Loading user configuration", "path", cc.userConfigFile)

	if err := cc.readUserConfig(); err != nil {
		return err
	}
	if err := cc.internalConfig.ReadInConfig(); err != nil {
		cc.logger.Debugw("Skipping optional internal config", "error", err)
	}

	return cc.populateFromVipers()
}

// Path returns the user config file location.
func (cc *CanonicalConfig) Path() string {
	return cc.userConfigFile
}

// SettingsDefaults are the values a fresh settings row is created with.
func (cc *CanonicalConfig) SettingsDefaults() catalog.Settings {
	return catalog.Settings{
		DefaultOutputDevice: cc.Playback.DefaultOutputDevice,
		DefaultVolume:       cc.Playback.DefaultVolume,
		StopPreviousOnPlay:  cc.Playback.StopPreviousOnPlay,
		AllowOverlapping:    cc.Playback.AllowOverlapping,
		PlayerPath:          cc.Playback.PlayerPath,
	}
}

// SupervisorOptions turns the playback config into supervisor options.
func (cc *CanonicalConfig) SupervisorOptions() []playback.Option {
	return []playback.Option{
		playback.WithPlayerPath(cc.Playback.PlayerPath),
		playback.WithStopTimeout(cc.Playback.StopTimeout),
		playback.WithStartupGrace(cc.Playback.StartupGrace),
		playback.WithDefaults(playback.CommandDefaults{
			OutputDevice: cc.Playback.DefaultOutputDevice,
			Volume:       cc.Playback.DefaultVolume,
		}),
	}
}

// aliases returns the key aliases from the last successful load.
func (cc *CanonicalConfig) aliases() *aliasMap {
	cc.reloadableLock.RLock()
	defer cc.reloadableLock.RUnlock()

	return cc.keyAliases
}

// Connection returns the keypad port settings from the last successful load.
func (cc *CanonicalConfig) Connection() ConnectionInfo {
	cc.reloadableLock.RLock()
	defer cc.reloadableLock.RUnlock()

	return cc.connectionInfo
}

func (cc *CanonicalConfig) setConnection(info ConnectionInfo) {
	cc.reloadableLock.Lock()
	defer cc.reloadableLock.Unlock()

	cc.connectionInfo = info
}

// SubscribeToChanges returns a channel that receives a value after every successful reload.
func (cc *CanonicalConfig) SubscribeToChanges() chan bool {
	c := make(chan bool, 1)
	cc.reloadConsumers = append(cc.reloadConsumers, c)

	return c
}

// WatchConfigFileChanges reloads the user config whenever it's written to and
// blocks until StopWatchingConfigFile is called.
func (cc *CanonicalConfig) WatchConfigFileChanges() {
	if !util.FileExists(cc.userConfigFile) {
		cc.logger.Debugw("No user config file to watch", "path", cc.userConfigFile)
		<-cc.stopWatcherChannel
		return
	}

	cc.logger.Debugw("Starting to watch user config file for changes", "path", cc.userConfigFile)

	const (
		minTimeBetweenReloadAttempts = time.Millisecond * 500
		delayBetweenEventAndReload   = time.Millisecond * 50
	)

	lastAttemptedReload := time.Now()

	cc.userConfig.OnConfigChange(func(event fsnotify.Event) {
		if !event.Has(fsnotify.Write) {
			return
		}

		now := time.Now()
		if lastAttemptedReload.Add(minTimeBetweenReloadAttempts).After(now) {
			return
		}
		lastAttemptedReload = now

		// editors sometimes truncate first and write the content a moment later
		time.Sleep(delayBetweenEventAndReload)

		cc.logger.Debugw("Config file modified, attempting reload", "event", event)

		if err := cc.Load(); err != nil {
			cc.logger.Warnw("Failed to reload config file", "error", err)
			return
		}

		cc.logger.Info("Reloaded config successfully")
		cc.notifier.Notify("Configuration reloaded!", "Your changes have been applied.")

		cc.onConfigReloaded()
	})

	cc.userConfig.WatchConfig()

	<-cc.stopWatcherChannel
	cc.logger.Debug("Stopping user config file watcher")
}

// StopWatchingConfigFile ends WatchConfigFileChanges.
func (cc *CanonicalConfig) StopWatchingConfigFile() {
	cc.stopWatcherOnce.Do(func() {
		close(cc.stopWatcherChannel)
	})
}

// readUserConfig loads the user-provided configuration
func (cc *CanonicalConfig) readUserConfig() error {
	if !util.FileExists(cc.userConfigFile) {
		cc.handleMissingConfig()
		return nil
	}

	if err := cc.userConfig.ReadInConfig(); err != nil {
		return cc.handleConfigError("user config", err)
	}
	return nil
}

// handleMissingConfig notifies the user of missing configuration
func (cc *CanonicalConfig) handleMissingConfig() {
	cc.logger.Warnw("Configuration file not found, using defaults", "path", cc.userConfigFile)
	cc.notifier.Notify("Missing configuration!", fmt.Sprintf(
		"%s not found, running with default settings.", cc.userConfigFile))
}

// handleConfigError processes errors during config file loading
func (cc *CanonicalConfig) handleConfigError(configName string, err error) error {
	cc.logger.Warnw("Failed to load configuration", "config", configName, "error", err)

	if strings.Contains(err.Error(), "yaml:") {
		cc.notifier.Notify("Invalid configuration format!",
			"Ensure the YAML file is properly formatted.")
	} else {
		cc.notifier.Notify("Error loading configuration!", "Check logs for more details.")
	}
	return fmt.Errorf("read %s: %w", configName, err)
}

// populateFromVipers reads configuration fields into structured fields
func (cc *CanonicalConfig) populateFromVipers() error {
	cc.DatabasePath = cc.validateNonEmpty(configKeyDatabasePath, defaultDatabasePath)

	cc.Playback = PlaybackConfig{
		PlayerPath:          cc.validateNonEmpty(configKeyPlayerPath, playback.DefaultPlayerPath),
		DefaultOutputDevice: cc.userConfig.GetString(configKeyDefaultOutputDevice),
		DefaultVolume:       cc.validateVolume(),
		StopPreviousOnPlay:  cc.userConfig.GetBool(configKeyStopPreviousOnPlay),
		AllowOverlapping:    cc.userConfig.GetBool(configKeyAllowOverlapping),
		StopTimeout:         cc.validateDuration(configKeyStopTimeout, playback.DefaultStopTimeout, false),
		StartupGrace:        cc.validateDuration(configKeyStartupGrace, playback.DefaultStartupGrace, true),
	}

	keyAliases := aliasMapFromConfigs(
		cc.userConfig.GetStringMapStringSlice(configKeyKeyAliases),
		cc.internalConfig.GetStringMapStringSlice(configKeyKeyAliases),
	)

	connectionInfo := ConnectionInfo{
		COMPort:  cc.userConfig.GetString(configKeyCOMPort),
		BaudRate: cc.validateBaudRate(cc.userConfig.GetInt(configKeyBaudRate)),
	}

	cc.reloadableLock.Lock()
	cc.keyAliases = keyAliases
	cc.connectionInfo = connectionInfo
	cc.reloadableLock.Unlock()

	cc.SettingsCacheTTL = cc.validateDuration(configKeySettingsCacheTTL, defaultSettingsCacheTTL, false)

	cc.logger.Debugw("Configuration populated successfully", "config", cc)
	return nil
}

// validateBaudRate checks for a valid baud rate, returning a default if invalid
func (cc *CanonicalConfig) validateBaudRate(baudRate int) int {
	if baudRate > 0 {
		return baudRate
	}
	cc.logger.Warnw("Invalid baud rate specified, using default", "invalidValue", baudRate, "defaultValue", defaultBaudRate)
	return defaultBaudRate
}

// validateVolume returns nil when no default volume is configured or the value is out of range
func (cc *CanonicalConfig) validateVolume() *int {
	if !cc.userConfig.IsSet(configKeyDefaultVolume) {
		return nil
	}

	volume := cc.userConfig.GetInt(configKeyDefaultVolume)
	if volume < 0 || volume > 100 {
		cc.logger.Warnw("Invalid default volume specified, ignoring", "invalidValue", volume)
		return nil
	}

	return catalog.IntPtr(volume)
}

func (cc *CanonicalConfig) validateDuration(key string, fallback time.Duration, allowZero bool) time.Duration {
	d := cc.userConfig.GetDuration(key)
	if d > 0 || (allowZero && d == 0) {
		return d
	}

	cc.logger.Warnw("Invalid duration specified, using default", "key", key, "invalidValue", d, "defaultValue", fallback)
	return fallback
}

func (cc *CanonicalConfig) validateNonEmpty(key string, fallback string) string {
	if v := strings.TrimSpace(cc.userConfig.GetString(key)); v != "" {
		return v
	}

	cc.logger.Warnw("Empty value specified, using default", "key", key, "defaultValue", fallback)
	return fallback
}

func (cc *CanonicalConfig) onConfigReloaded() {
	cc.logger.Debug("Notifying consumers about configuration reload")

	for _, consumer := range cc.reloadConsumers {
		select {
		case consumer <- true:
		default:
		}
	}
}

// String keeps the debug log of the populated config readable.
func (cc *CanonicalConfig) String() string {
	connection := cc.Connection()

	return fmt.Sprintf("<database: %s, player: %s, keypad: %q@%d, aliases: %s>",
		cc.DatabasePath, cc.Playback.PlayerPath, connection.COMPort, connection.BaudRate, cc.aliases())
}
