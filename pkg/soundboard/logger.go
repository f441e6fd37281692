package soundboard

import (
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/omriharel/soundboard/pkg/soundboard/util"
)

const (
	BuildTypeNone    = ""        // Default build type (undefined)
	BuildTypeDev     = "dev"     // Development build type
	BuildTypeRelease = "release" // Release build type

	LogDirectory = "logs"                       // Directory for log files
	LogFilename  = "soundboard-latest-run.log" // Default log file name
)

// NewLogger initializes and returns a new logger instance based on the build type.
// - For release builds, logs to a file with info level and above.
// - For development builds, logs to stderr with debug level and colorful output.
// verbose lowers a release build's level to debug.
func NewLogger(buildType string, verbose bool) (*zap.SugaredLogger, error) {
	var loggerConfig zap.Config

	if buildType == BuildTypeRelease {
		if err := util.EnsureDirExists(LogDirectory); err != nil {
			return nil, fmt.Errorf("create log directory %s: %w", LogDirectory, err)
		}

		loggerConfig = zap.NewProductionConfig()
		loggerConfig.OutputPaths = []string{filepath.Join(LogDirectory, LogFilename)}
		loggerConfig.Encoding = "console"

		if verbose {
			loggerConfig.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
	} else {
		loggerConfig = zap.NewDevelopmentConfig()
		loggerConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder

		// the keypad and config watcher log every line and event at debug, which
		// drowns out playback logs unless -v asks for them
		if !verbose {
			loggerConfig.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
		}
	}

	// human-readable timestamps and aligned names
	loggerConfig.EncoderConfig.EncodeCaller = nil
	loggerConfig.EncoderConfig.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(t.Format("2006-01-02 15:04:05.000"))
	}
	loggerConfig.EncoderConfig.EncodeName = func(name string, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(fmt.Sprintf("%-27s", name))
	}

	logger, err := loggerConfig.Build()
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	return logger.Sugar(), nil
}
