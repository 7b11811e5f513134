// Package logging provides the structured logger every other component
// uses for diagnostic output. The teacher CLI has no logging library at
// all (plain fmt.Fprintf to stderr); this fills that ambient gap the way
// the rest of the retrieval pack's kubilitics-ai service does, with
// zap + lumberjack.
package logging

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Level mirrors the verbosity knobs spec.md §6 lists as global flags.
type Level int

const (
	LevelQuiet Level = iota
	LevelInfo
	LevelVerbose
	LevelDebug
)

// New builds a logger that writes to <homeDir>/kb.log via a rotating file
// sink. Errors always surface; Info/Debug are gated by level.
func New(homeDir string, level Level) (*zap.SugaredLogger, func(), error) {
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		return nil, func() {}, err
	}
	rotator := &lumberjack.Logger{
		Filename:   filepath.Join(homeDir, "kb.log"),
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
		Compress:   true,
	}

	zapLevel := zapcore.InfoLevel
	switch level {
	case LevelQuiet:
		zapLevel = zapcore.ErrorLevel
	case LevelVerbose:
		zapLevel = zapcore.DebugLevel
	case LevelDebug:
		zapLevel = zapcore.DebugLevel
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderCfg),
		zapcore.AddSync(rotator),
		zapLevel,
	)
	logger := zap.New(core)
	sugar := logger.Sugar()
	return sugar, func() { _ = logger.Sync(); _ = rotator.Close() }, nil
}

// LevelFromFlags maps the global --quiet/--verbose/--debug flags to a Level.
func LevelFromFlags(quiet, verbose, debug bool) Level {
	switch {
	case debug:
		return LevelDebug
	case verbose:
		return LevelVerbose
	case quiet:
		return LevelQuiet
	default:
		return LevelInfo
	}
}
