// Package logging wraps go.uber.org/zap with the category convention the
// rest of vibesafe uses for structured, phase-tagged output: pipeline
// stages log through ForUnit, which attaches a "unit" and "phase" field so
// CLI output and the audit trail line up with the error taxonomy in
// internal/vserrors. Lines logged through L directly carry neither field.
package logging

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu     sync.RWMutex
	base   *zap.Logger
	inited bool
)

// Init configures the process-wide logger. level is one of
// debug/info/warn/error; jsonFormat switches between human console output
// and structured JSON (useful when a caller pipes vibesafe output into
// another tool).
func Init(level string, jsonFormat bool) {
	mu.Lock()
	defer mu.Unlock()

	cfg := zap.NewProductionConfig()
	if jsonFormat {
		cfg.Encoding = "json"
	} else {
		cfg.Encoding = "console"
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	cfg.EncoderConfig.TimeKey = "" // deterministic, timestamp-free CLI output

	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = zapcore.InfoLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	l, err := cfg.Build()
	if err != nil {
		l = zap.NewNop()
	}
	base = l
	inited = true
}

// L returns the process-wide logger, initializing a sane default (info,
// console) if Init has not been called yet.
func L() *zap.Logger {
	mu.RLock()
	if inited {
		defer mu.RUnlock()
		return base
	}
	mu.RUnlock()
	Init("info", false)
	mu.RLock()
	defer mu.RUnlock()
	return base
}

// ForUnit returns a child logger with the unit and phase fields pre-set, the
// shape every pipeline stage logs through.
func ForUnit(unit string, phase string) *zap.Logger {
	return L().With(zap.String("unit", unit), zap.String("phase", phase))
}

// Sync flushes any buffered log entries; callers should defer this from
// main().
func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	if base != nil {
		_ = base.Sync()
	}
}
