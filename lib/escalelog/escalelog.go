// Copyright (C) 2017 François Laurent
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

// Package escalelog provides the structured logging used across every
// escale-go component, grounded on internal/slogutil's slog.Handler wrapper:
// one process-wide handler and per-component debug verbosity controlled
// through an environment variable instead of a config flag. Recent log
// lines are not kept in memory.
package escalelog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

const traceEnvVar = "ESCALE_TRACE"

var (
	mu     sync.Mutex
	traced = parseTrace(os.Getenv(traceEnvVar))
	root   *slog.Logger
)

func parseTrace(v string) map[string]bool {
	m := make(map[string]bool)
	for _, name := range strings.Split(v, ",") {
		name = strings.TrimSpace(name)
		if name != "" {
			m[name] = true
		}
	}
	return m
}

func init() {
	var out io.Writer = os.Stderr
	if os.Getenv("ESCALE_LOG_DISCARD") != "" {
		out = io.Discard
	}
	root = slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

// Logger is a component-scoped handle, analogous to the Python Reporter
// mixin's self.logger = logging.getLogger(log_root).getChild(name).
type Logger struct {
	component string
	base      *slog.Logger
}

// For returns the logger for the named component. Debug-level output for
// that component is enabled by listing its name in ESCALE_TRACE.
func For(component string) *Logger {
	mu.Lock()
	debug := traced[component]
	mu.Unlock()
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	base := root.With("component", component)
	if debug {
		base = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})).With("component", component)
	}
	return &Logger{component: component, base: base}
}

func (l *Logger) Debugf(format string, args ...any) { l.base.Debug(sprintf(format, args...)) }
func (l *Logger) Infof(format string, args ...any)  { l.base.Info(sprintf(format, args...)) }
func (l *Logger) Warnf(format string, args ...any)  { l.base.Warn(sprintf(format, args...)) }
func (l *Logger) Errorf(format string, args ...any) { l.base.Error(sprintf(format, args...)) }

// WithContext attaches request-scoped attributes, mirroring slog's context
// propagation convention used by internal/slogutil's formattingHandler.
func (l *Logger) WithContext(ctx context.Context, attrs ...any) *Logger {
	return &Logger{component: l.component, base: l.base.With(attrs...)}
}

func sprintf(format string, args ...any) string {
	if len(args) == 0 {
		return format
	}
	return fmt.Sprintf(format, args...)
}
