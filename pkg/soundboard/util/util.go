package util

import (
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"

	"github.com/mitchellh/go-ps"
	"go.uber.org/zap"
)

// process names reported by the OS are cut to this many bytes on linux
const linuxCommLength = 15

// EnsureDirExists creates the given directory path if it doesn't already exist.
func EnsureDirExists(path string) error {
	if err := os.MkdirAll(path, os.ModePerm); err != nil {
		return fmt.Errorf("ensure directory exists (%s): %w", path, err)
	}
	return nil
}

// FileExists checks if a file exists and is not a directory.
func FileExists(filename string) bool {
	info, err := os.Stat(filename)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// Linux returns true if we're running on Linux.
func Linux() bool {
	return runtime.GOOS == "linux"
}

// Windows returns true if we're running on Windows.
func Windows() bool {
	return runtime.GOOS == "windows"
}

// SetupCloseHandler creates a listener on a new goroutine that will notify
// the program if it receives an interrupt signal from the OS.
func SetupCloseHandler() chan os.Signal {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	return c
}

// OpenExternal spawns a detached process (e.g., opening a file or URL) with the given command and argument.
func OpenExternal(logger *zap.SugaredLogger, cmd string, arg string) error {
	command := createExternalCommand(cmd, arg)
	if err := command.Start(); err != nil {
		logger.Warnw("Failed to spawn detached process", "command", cmd, "argument", arg, "error", err)
		return fmt.Errorf("spawn detached proc: %w", err)
	}

	go func() {
		_ = command.Wait()
	}()

	return nil
}

// ProcessExecutable returns the executable name of a running process.
// The second return value is false when no such process exists.
func ProcessExecutable(pid int) (string, bool, error) {
	process, err := ps.FindProcess(pid)
	if err != nil {
		return "", false, fmt.Errorf("find process for PID %d: %w", pid, err)
	}

	if process == nil {
		return "", false, nil
	}

	return process.Executable(), true, nil
}

// ExecutableMatches reports whether a process executable name (as reported by
// ProcessExecutable) belongs to the program at path.
func ExecutableMatches(executable string, path string) bool {
	name := filepath.Base(path)
	if Windows() {
		executable = strings.TrimSuffix(strings.ToLower(executable), ".exe")
		name = strings.TrimSuffix(strings.ToLower(name), ".exe")
	}

	if executable == name {
		return true
	}

	return len(executable) == linuxCommLength && strings.HasPrefix(name, executable)
}

// createExternalCommand prepares the appropriate command for launching an external process depending on the OS.
func createExternalCommand(cmd string, arg string) *exec.Cmd {
	if Windows() {
		return exec.Command("cmd.exe", "/C", "start", "/b", cmd, arg)
	}
	return exec.Command(cmd, arg)
}
