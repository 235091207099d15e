package logger

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Global logger instance
	Logger *zap.SugaredLogger
	// Flag to track if JSON output is enabled
	JSONOutput bool
)

func init() {
	// No-op until Initialize runs so packages can log unconditionally
	Logger = zap.NewNop().Sugar()
}

// Initialize sets up the global diagnostic logger.
// Diagnostics go to stderr so stdout stays reserved for command output and
// cycle progress lines.
func Initialize(jsonOutput bool, verbosity int) error {
	l, err := New(os.Stderr, jsonOutput, verbosity)
	if err != nil {
		return err
	}
	JSONOutput = jsonOutput
	Logger = l
	return nil
}

// New builds a diagnostic logger writing to w at the level implied by verbosity.
func New(w io.Writer, jsonOutput bool, verbosity int) (*zap.SugaredLogger, error) {
	level := zap.NewAtomicLevelAt(VerbosityToLevel(verbosity))

	if theme := os.Getenv("CHRONO_LOG_THEME"); theme != "" {
		SetTheme(theme)
	}

	var enc zapcore.Encoder
	if jsonOutput {
		cfg := zap.NewProductionEncoderConfig()
		cfg.EncodeTime = zapcore.ISO8601TimeEncoder
		enc = zapcore.NewJSONEncoder(cfg)
	} else {
		enc = newMinimalEncoder()
	}

	core := zapcore.NewCore(enc, zapcore.AddSync(w), level)
	return zap.New(core).Sugar(), nil
}

// Cleanup flushes any buffered log entries
func Cleanup() {
	if Logger != nil {
		Logger.Sync()
	}
}
