package soundboard

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"time"

	"github.com/omriharel/soundboard/pkg/soundboard/util"
)

const (
	crashlogFilename        = "soundboard-crash-%s.log"
	crashlogTimestampFormat = "2006.01.02-15.04.05"
	crashMessageTemplate    = `-----------------------------------------------------------------
                     soundboard crashlog
-----------------------------------------------------------------
Unfortunately, soundboard has crashed. This really shouldn't happen!
Please open an issue and attach this error log.
-----------------------------------------------------------------
Time: %s
Panic occurred: %s
Stack trace:
%s
-----------------------------------------------------------------
`
)

// recoverFromPanic is deferred at the top of every long-lived goroutine.
func (sb *Soundboard) recoverFromPanic() {
	if r := recover(); r != nil {
		sb.handlePanic(r)
	}
}

// handlePanic writes a crash log, notifies the user, stops every player and exits.
func (sb *Soundboard) handlePanic(recoverValue interface{}) {
	now := time.Now()

	crashlogPath, err := writeCrashLog(LogDirectory, now, recoverValue, debug.Stack())
	if err != nil {
		panic(err)
	}

	sb.logger.Errorw("Application panic encountered",
		"crashlogPath", crashlogPath,
		"error", recoverValue)

	sb.notifier.Notify("Unexpected crash occurred",
		fmt.Sprintf("Details logged to: %s", crashlogPath))

	// players are separate processes, don't leave them running
	if sb.supervisor != nil {
		if err := sb.supervisor.Close(); err != nil {
			sb.logger.Warnw("Failed to stop sounds after panic", "error", err)
		}
	}

	sb.logger.Errorw("Exiting due to panic", "exitCode", 1)
	_ = sb.logger.Sync()
	os.Exit(1)
}

// writeCrashLog writes the crash report into dir and returns its path.
func writeCrashLog(dir string, timestamp time.Time, recoverValue interface{}, stack []byte) (string, error) {
	crashlogPath := filepath.Join(dir, fmt.Sprintf(crashlogFilename, timestamp.Format(crashlogTimestampFormat)))

	if err := util.EnsureDirExists(dir); err != nil {
		return "", fmt.Errorf("create log directory: %w", err)
	}

	content := fmt.Sprintf(crashMessageTemplate,
		timestamp.Format(crashlogTimestampFormat),
		recoverValue,
		stack,
	)

	if err := os.WriteFile(crashlogPath, []byte(content), 0644); err != nil {
		return "", fmt.Errorf("write crash log: %w", err)
	}

	return crashlogPath, nil
}
