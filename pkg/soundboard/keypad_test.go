package soundboard

import (
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/jacobsa/go-serial/serial"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// pipeConn stands in for a serial port.
type pipeConn struct {
	*io.PipeReader
	io.Writer
}

func newTestKeypad(t *testing.T, info ConnectionInfo) *KeypadIO {
	t.Helper()

	// read loops outlive the test once their pipe closes, so they can't log to t
	logger := zap.NewNop().Sugar()

	cc, err := NewConfig(logger, &recordingNotifier{}, filepath.Join(t.TempDir(), "config.yaml"))
	require.NoError(t, err)
	cc.setConnection(info)

	kio, err := NewKeypadIO(cc, logger)
	require.NoError(t, err)
	t.Cleanup(kio.Release)

	return kio
}

func (kio *KeypadIO) isConnected() bool {
	kio.lock.Lock()
	defer kio.lock.Unlock()
	return kio.connected
}

func receiveKey(t *testing.T, events chan KeyPressEvent) string {
	t.Helper()

	select {
	case event := <-events:
		return event.Key
	case <-time.After(time.Second):
		t.Fatal("no key press received")
		return ""
	}
}

func TestKeypad_ReadsStdinWithoutPort(t *testing.T) {
	kio := newTestKeypad(t, ConnectionInfo{BaudRate: defaultBaudRate})

	reader, writer := io.Pipe()
	t.Cleanup(func() { _ = writer.Close() })
	kio.stdin = reader

	events := kio.SubscribeToKeyPressEvents()
	require.NoError(t, kio.Start())
	require.True(t, kio.isConnected())
	require.Error(t, kio.Start(), "only one connection at a time")

	go func() {
		_, _ = io.WriteString(writer, "KEY1\nnot a key!\nctrl+f2\r\n")
	}()

	require.Equal(t, "KEY1", receiveKey(t, events))
	require.Equal(t, "ctrl+f2", receiveKey(t, events))

	kio.Stop()
	require.False(t, kio.isConnected())
}

func TestKeypad_StdinEOFDisconnects(t *testing.T) {
	kio := newTestKeypad(t, ConnectionInfo{BaudRate: defaultBaudRate})

	reader, writer := io.Pipe()
	kio.stdin = reader

	events := kio.SubscribeToKeyPressEvents()
	require.NoError(t, kio.Start())

	go func() {
		_, _ = io.WriteString(writer, "key3\n")
		_ = writer.Close()
	}()

	require.Equal(t, "key3", receiveKey(t, events))
	require.Eventually(t, func() bool { return !kio.isConnected() }, time.Second, 10*time.Millisecond)
}

func TestKeypad_SerialConnection(t *testing.T) {
	kio := newTestKeypad(t, ConnectionInfo{COMPort: "/dev/ttyKEYPAD", BaudRate: 115200})

	var opened []serial.OpenOptions
	var writer *io.PipeWriter

	kio.openSerial = func(options serial.OpenOptions) (io.ReadWriteCloser, error) {
		opened = append(opened, options)

		var reader *io.PipeReader
		reader, writer = io.Pipe()
		return pipeConn{PipeReader: reader, Writer: io.Discard}, nil
	}

	events := kio.SubscribeToKeyPressEvents()
	require.NoError(t, kio.Start())
	require.Len(t, opened, 1)
	require.Equal(t, "/dev/ttyKEYPAD", opened[0].PortName)
	require.EqualValues(t, 115200, opened[0].BaudRate)
	require.EqualValues(t, 8, opened[0].DataBits)

	go func() {
		_, _ = io.WriteString(writer, "F5\n")
	}()
	require.Equal(t, "F5", receiveKey(t, events))

	kio.Stop()
	require.False(t, kio.isConnected())

	// a stopped keypad can be started again
	require.NoError(t, kio.Start())
	require.Len(t, opened, 2)
	require.True(t, kio.isConnected())
}

func TestKeypad_SerialOpenFailure(t *testing.T) {
	kio := newTestKeypad(t, ConnectionInfo{COMPort: "/dev/ttyMISSING", BaudRate: 9600})

	kio.openSerial = func(serial.OpenOptions) (io.ReadWriteCloser, error) {
		return nil, io.ErrUnexpectedEOF
	}

	err := kio.Start()
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
	require.False(t, kio.isConnected())
}

func TestKeypad_ProcessLine(t *testing.T) {
	kio := newTestKeypad(t, ConnectionInfo{BaudRate: defaultBaudRate})
	events := kio.SubscribeToKeyPressEvents()

	for _, tc := range []struct {
		line string
		key  string
	}{
		{line: "KEY1\n", key: "KEY1"},
		{line: "ctrl+shift+f1\r\n", key: "ctrl+shift+f1"},
		{line: "<knob>\n", key: "<knob>"},
		{line: "\n"},
		{line: "two words\n"},
		{line: "missing-newline"},
		{line: "ü\n"},
	} {
		kio.processLine(tc.line)

		select {
		case event := <-events:
			require.Equal(t, tc.key, event.Key, "line %q", tc.line)
			require.False(t, event.At.IsZero())
		default:
			require.Empty(t, tc.key, "line %q should have produced a key press", tc.line)
		}
	}
}

func TestKeypad_NeedsReconnect(t *testing.T) {
	kio := newTestKeypad(t, ConnectionInfo{BaudRate: defaultBaudRate})
	require.False(t, kio.needsReconnect())

	// baud rate doesn't matter for stdin
	kio.config.setConnection(ConnectionInfo{BaudRate: 57600})
	require.False(t, kio.needsReconnect())

	kio.config.setConnection(ConnectionInfo{COMPort: "COM4", BaudRate: 57600})
	require.True(t, kio.needsReconnect())

	kio.connOptions = serial.OpenOptions{PortName: "COM4", BaudRate: 57600}
	require.False(t, kio.needsReconnect())

	kio.config.setConnection(ConnectionInfo{COMPort: "COM4", BaudRate: 9600})
	require.True(t, kio.needsReconnect())
}
