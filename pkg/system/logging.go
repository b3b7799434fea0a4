// SPDX-FileCopyrightText: 2025 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

// Package system holds process-level plumbing shared by the outreach binaries.
package system

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds the process logger. Production uses JSON with an RFC3339 "ts"
// key; debug switches to the development console encoder. level overrides the
// minimum level when non-empty ("debug", "info", "warn", "error").
func NewLogger(debug bool, level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if debug {
		cfg = zap.NewDevelopmentConfig()
	}
	// Disable automatic stacktraces for non-fatal levels to avoid noisy traces in WARN/INFO logs
	cfg.DisableStacktrace = true
	cfg.EncoderConfig.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(t.UTC().Format(time.RFC3339))
	}
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.OutputPaths = []string{"stdout"}

	if level != "" {
		lvl, err := zapcore.ParseLevel(level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", level, err)
		}
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}

	return cfg.Build()
}

// RecordFields returns key/value pairs identifying a contact record for
// SugaredLogger.With or Infow/Errorw calls. The recipient is only included when known.
func RecordFields(recordID, recipient string) []interface{} {
	if recipient == "" {
		return []interface{}{"record", recordID}
	}
	return []interface{}{"record", recordID, "recipient", recipient}
}
