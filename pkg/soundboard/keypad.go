package soundboard

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/jacobsa/go-serial/serial"
	"go.uber.org/zap"

	"github.com/omriharel/soundboard/pkg/soundboard/util"
)

// KeypadIO reads key names, one per line, from a USB macro keypad on a serial
// port, or from stdin when no port is configured.
type KeypadIO struct {
	config *CanonicalConfig
	logger *zap.SugaredLogger

	lock        sync.Mutex
	connected   bool
	stopping    bool
	connOptions serial.OpenOptions
	conn        io.ReadCloser

	openSerial func(serial.OpenOptions) (io.ReadWriteCloser, error)
	stdin      io.Reader

	releaseChannel chan struct{}
	releaseOnce    sync.Once

	keyPressConsumers []chan KeyPressEvent
}

// KeyPressEvent is a single key reported by the keypad.
type KeyPressEvent struct {
	Key string
	At  time.Time
}

const keyPressBufferSize = 16

var expectedLinePattern = regexp.MustCompile(`^[A-Za-z0-9+_<>-]{1,64}\r?\n$`)

// NewKeypadIO creates a new KeypadIO instance
func NewKeypadIO(config *CanonicalConfig, logger *zap.SugaredLogger) (*KeypadIO, error) {
	logger = logger.Named("keypad")

	kio := &KeypadIO{
		config:            config,
		logger:            logger,
		openSerial:        serial.Open,
		stdin:             os.Stdin,
		releaseChannel:    make(chan struct{}),
		keyPressConsumers: []chan KeyPressEvent{},
	}

	logger.Debug("Created KeypadIO instance")
	kio.setupOnConfigReload()

	return kio, nil
}

// Start opens the configured input and starts reading key presses
func (kio *KeypadIO) Start() error {
	kio.lock.Lock()
	defer kio.lock.Unlock()

	if kio.connected {
		kio.logger.Warn("Connection already active, cannot start a new one")
		return errors.New("keypad: connection already active")
	}

	kio.stopping = false
	connection := kio.config.Connection()

	if connection.COMPort == "" {
		kio.logger.Info("No keypad port configured, reading key names from stdin")

		kio.connOptions = serial.OpenOptions{}
		kio.conn = io.NopCloser(kio.stdin)
		kio.connected = true

		go kio.readLoop(kio.conn)
		return nil
	}

	minimumReadSize := 0
	if util.Linux() {
		minimumReadSize = 1
	}

	kio.connOptions = serial.OpenOptions{
		PortName:        connection.COMPort,
		BaudRate:        uint(connection.BaudRate),
		DataBits:        8,
		StopBits:        1,
		MinimumReadSize: uint(minimumReadSize),
	}

	kio.logger.Debugw("Opening serial connection",
		"comPort", kio.connOptions.PortName,
		"baudRate", kio.connOptions.BaudRate,
		"minReadSize", minimumReadSize)

	conn, err := kio.openSerial(kio.connOptions)
	if err != nil {
		kio.logger.Warnw("Failed to open serial connection", "error", err)
		return fmt.Errorf("open serial connection: %w", err)
	}

	kio.conn = conn
	kio.connected = true
	kio.logger.Infow("Serial connection established", "port", kio.connOptions.PortName)

	go kio.readLoop(conn)

	return nil
}

// Stop closes the input if active
func (kio *KeypadIO) Stop() {
	kio.lock.Lock()
	defer kio.lock.Unlock()

	if !kio.connected {
		kio.logger.Debug("No active connection to stop")
		return
	}

	kio.logger.Debug("Closing keypad connection")
	kio.stopping = true
	kio.closeConnection(kio.conn)
}

// Release stops reading and detaches from config reloads.
func (kio *KeypadIO) Release() {
	kio.Stop()
	kio.releaseOnce.Do(func() {
		close(kio.releaseChannel)
	})
}

// SubscribeToKeyPressEvents allows listeners to subscribe to key presses
func (kio *KeypadIO) SubscribeToKeyPressEvents() chan KeyPressEvent {
	ch := make(chan KeyPressEvent, keyPressBufferSize)
	kio.keyPressConsumers = append(kio.keyPressConsumers, ch)
	return ch
}

// setupOnConfigReload reconnects when the port settings change
func (kio *KeypadIO) setupOnConfigReload() {
	configReloadedChannel := kio.config.SubscribeToChanges()
	const stopDelay = 50 * time.Millisecond

	go func() {
		for {
			select {
			case <-kio.releaseChannel:
				return
			case <-configReloadedChannel:
				if !kio.needsReconnect() {
					continue
				}

				kio.logger.Info("Config change detected, reconnecting")
				kio.Stop()

				time.Sleep(stopDelay)

				if err := kio.Start(); err != nil {
					kio.logger.Warnw("Failed to reconnect", "error", err)
				} else {
					kio.logger.Debug("Reconnection successful")
				}
			}
		}
	}()
}

// readLoop reads lines from conn until it fails or is closed
func (kio *KeypadIO) readLoop(conn io.ReadCloser) {
	reader := bufio.NewReader(conn)

	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			kio.lock.Lock()
			stopping := kio.stopping
			kio.closeConnection(conn)
			kio.lock.Unlock()

			switch {
			case stopping:
				kio.logger.Debug("Keypad read loop stopped")
			case errors.Is(err, io.EOF):
				kio.logger.Info("Keypad input closed")
			default:
				kio.logger.Warnw("Failed to read from keypad", "error", err)
			}
			return
		}

		// stdin can't be interrupted, so a replaced reader notices here
		kio.lock.Lock()
		current := kio.conn == conn
		kio.lock.Unlock()

		if !current {
			return
		}

		kio.processLine(line)
	}
}

// processLine validates a raw line and fans the key out to consumers
func (kio *KeypadIO) processLine(line string) {
	if !expectedLinePattern.MatchString(line) {
		kio.logger.Debugw("Ignoring malformed keypad line", "line", line)
		return
	}

	event := KeyPressEvent{
		Key: strings.TrimRight(line, "\r\n"),
		At:  time.Now(),
	}

	kio.logger.Debugw("Key pressed", "key", event.Key)

	for _, ch := range kio.keyPressConsumers {
		ch <- event
	}
}

// closeConnection closes conn if it's still the current connection. Callers hold the lock.
func (kio *KeypadIO) closeConnection(conn io.ReadCloser) {
	if conn == nil || conn != kio.conn {
		return
	}

	if err := conn.Close(); err != nil {
		kio.logger.Warnw("Error closing keypad connection", "error", err)
	} else {
		kio.logger.Debug("Keypad connection closed")
	}

	kio.conn = nil
	kio.connected = false
}

// needsReconnect checks if the connection parameters have changed
func (kio *KeypadIO) needsReconnect() bool {
	kio.lock.Lock()
	defer kio.lock.Unlock()

	connection := kio.config.Connection()

	return connection.COMPort != kio.connOptions.PortName ||
		(kio.connOptions.PortName != "" && uint(connection.BaudRate) != kio.connOptions.BaudRate)
}
