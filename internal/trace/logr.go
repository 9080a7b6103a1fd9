package trace

import (
	"errors"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogrTracer forwards events to a structured logger. Faults are logged as
// errors; other events are logged at a verbosity derived from their scope.
type LogrTracer struct {
	log   logr.Logger
	level Level
}

// NewLogrTracer creates a LogrTracer. A zero logger discards everything.
func NewLogrTracer(log logr.Logger, level Level) *LogrTracer {
	if log.GetSink() == nil {
		log = logr.Discard()
	}
	return &LogrTracer{log: log.WithName("pkgtrace"), level: level}
}

// Emit implements Tracer.
func (t *LogrTracer) Emit(ev *Event) {
	if !t.level.Admits(ev) {
		return
	}
	kv := make([]any, 0, 8+2*len(ev.Extra))
	kv = append(kv, "scope", ev.Scope.String(), "kind", ev.Kind.String())
	if ev.SpanID != 0 {
		kv = append(kv, "span", ev.SpanID)
	}
	for k, v := range ev.Extra {
		kv = append(kv, k, v)
	}
	if ev.Kind == KindFault {
		t.log.Error(errors.New(ev.Detail), ev.Name, kv...)
		return
	}
	if ev.Detail != "" {
		kv = append(kv, "detail", ev.Detail)
	}
	t.log.V(max(int(ev.Scope)-1, 0)).Info(ev.Name, kv...)
}

// Flush implements Tracer.
func (t *LogrTracer) Flush() error { return nil }

// Close implements Tracer.
func (t *LogrTracer) Close() error { return nil }

// Level implements Tracer.
func (t *LogrTracer) Level() Level { return t.level }

// Enabled implements Tracer.
func (t *LogrTracer) Enabled() bool { return t.level > LevelOff }

// LoggerConfig holds configuration for NewZapLogger.
type LoggerConfig struct {
	// Level is the log level (debug, info, warn, error).
	Level string
	// Development enables development mode with more verbose output.
	Development bool
	// Encoding is the log encoding (json or console).
	Encoding string
}

// NewZapLogger creates a logr.Logger backed by zap. Scope verbosity maps onto
// zap's negative levels, so "debug" shows every scope.
func NewZapLogger(cfg LoggerConfig) (logr.Logger, func(), error) {
	var zapCfg zap.Config
	if cfg.Development {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}
	if cfg.Encoding != "" {
		zapCfg.Encoding = cfg.Encoding
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}
	if level == zapcore.DebugLevel {
		// logr V(n) maps to zap level -n; open up every scope.
		level = zapcore.Level(-int8(ScopeFrame))
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	zl, err := zapCfg.Build()
	if err != nil {
		return logr.Discard(), func() {}, err
	}
	return zapr.NewLogger(zl), func() { _ = zl.Sync() }, nil
}
