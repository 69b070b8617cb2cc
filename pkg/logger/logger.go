// Package logger provides the structured logger used across multisig-ops.
//
// Loggers are injected and usually Named after the component using them, e.g.
// lggr.Named("orchestrator"). Tests use [Test] or [TestObserved]; [New] is for the CLI runtime.
//
// Levels
//   - Error: an operation failed and the user has to act, e.g. a submission reverted.
//   - Warn: an operation was aborted without side effects, e.g. a nonce mismatch.
//   - Info: lifecycle hops: signature requested, transaction submitted, transaction confirmed.
//   - Debug: skipped work and retry details.
package logger

import (
	"fmt"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

// Logger is the logging interface shared by every package. It is satisfied by a wrapped
// zap.SugaredLogger.
type Logger interface {
	// Name returns the fully qualified name of the logger.
	Name() string
	// Named returns a child logger with name appended to the logger name.
	Named(name string) Logger
	// With returns a child logger carrying the key value pairs on every entry.
	With(keysAndValues ...any) Logger

	Debug(args ...any)
	Info(args ...any)
	Warn(args ...any)
	Error(args ...any)

	Debugf(format string, values ...any)
	Infof(format string, values ...any)
	Warnf(format string, values ...any)
	Errorf(format string, values ...any)

	Debugw(msg string, keysAndValues ...any)
	Infow(msg string, keysAndValues ...any)
	Warnw(msg string, keysAndValues ...any)
	Errorw(msg string, keysAndValues ...any)

	// Sync flushes any buffered log entries.
	Sync() error
}

// Config configures a runtime logger.
type Config struct {
	Level zapcore.Level
	// Development switches to the human readable console encoder.
	Development bool
}

var defaultConfig Config

// New returns a new Logger with the default configuration.
func New() (Logger, error) { return defaultConfig.New() }

// New returns a new Logger for Config.
func (c *Config) New() (Logger, error) {
	return NewWith(func(cfg *zap.Config) {
		if c.Development {
			*cfg = zap.NewDevelopmentConfig()
		}
		cfg.Level.SetLevel(c.Level)
	})
}

// NewWith returns a new Logger from a modified [zap.Config].
func NewWith(cfgFn func(*zap.Config)) (Logger, error) {
	cfg := zap.NewProductionConfig()
	cfgFn(&cfg)
	core, err := cfg.Build()
	if err != nil {
		return nil, err
	}

	return &logger{core.Sugar()}, nil
}

// ParseLevel parses a level name such as "debug" or "warn". An empty name is info.
func ParseLevel(name string) (zapcore.Level, error) {
	if name == "" {
		return zapcore.InfoLevel, nil
	}
	lvl, err := zapcore.ParseLevel(name)
	if err != nil {
		return lvl, fmt.Errorf("invalid log level %q: %w", name, err)
	}

	return lvl, nil
}

// Test returns a new test Logger for tb.
func Test(tb testing.TB) Logger {
	tb.Helper()
	cfg := zap.NewDevelopmentEncoderConfig()
	cfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000000000")
	lggr := zap.New(
		zapcore.NewCore(
			zapcore.NewConsoleEncoder(cfg),
			zaptest.NewTestingWriter(tb),
			zapcore.DebugLevel,
		),
	)

	return &logger{lggr.Sugar()}
}

// TestObserved returns a new test Logger for tb and ObservedLogs at the given Level.
func TestObserved(tb testing.TB, lvl zapcore.Level) (Logger, *observer.ObservedLogs) {
	tb.Helper()
	oCore, logs := observer.New(lvl)
	observe := zap.WrapCore(func(c zapcore.Core) zapcore.Core {
		return zapcore.NewTee(c, oCore)
	})
	sl := zaptest.NewLogger(tb, zaptest.WrapOptions(observe, zap.AddCaller())).Sugar()

	return &logger{sl}, logs
}

// Nop returns a no-op Logger.
func Nop() Logger {
	return &logger{zap.New(zapcore.NewNopCore()).Sugar()}
}

type logger struct {
	*zap.SugaredLogger
}

func (l *logger) Name() string {
	return l.Desugar().Name()
}

func (l *logger) Named(name string) Logger {
	return &logger{l.SugaredLogger.Named(name)}
}

func (l *logger) With(keysAndValues ...any) Logger {
	return &logger{l.SugaredLogger.With(keysAndValues...)}
}
