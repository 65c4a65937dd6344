// Package logger - zap logger construction shared by the binaries.
package logger

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a logger that writes debug and info entries to stdout and warn,
// error and fatal entries to stderr, both JSON encoded.
//
// Arguments:
//   - debug: Enables debug entries and the development encoder config.
//
// Returns:
//   - *zap.Logger: The logger.
func New(debug bool) *zap.Logger {
	return NewWithWriters(debug, os.Stdout, os.Stderr)
}

// NewWithWriters is New with explicit destinations.
func NewWithWriters(debug bool, stdout, stderr io.Writer) *zap.Logger {
	// debug and info level enabler
	debugInfoLevel := zap.LevelEnablerFunc(func(level zapcore.Level) bool {
		return level == zapcore.DebugLevel || level == zapcore.InfoLevel
	})

	// info level enabler
	infoLevel := zap.LevelEnablerFunc(func(level zapcore.Level) bool {
		return level == zapcore.InfoLevel
	})

	// warn, error and fatal level enabler
	warnErrorFatalLevel := zap.LevelEnablerFunc(func(level zapcore.Level) bool {
		return level >= zapcore.WarnLevel
	})

	stdoutSyncer := zapcore.Lock(zapcore.AddSync(stdout))
	stderrSyncer := zapcore.Lock(zapcore.AddSync(stderr))

	encoderConfig := zap.NewProductionEncoderConfig()
	lowLevel := zapcore.LevelEnabler(infoLevel)
	if debug {
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		lowLevel = debugInfoLevel
	}

	core := zapcore.NewTee(
		zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), stdoutSyncer, lowLevel),
		zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), stderrSyncer, warnErrorFatalLevel),
	)

	opts := []zap.Option{zap.AddCaller()}
	if debug {
		opts = append(opts, zap.Development())
	}

	return zap.New(core, opts...)
}
