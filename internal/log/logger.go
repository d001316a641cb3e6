/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package log provides centralized slog-based logging for the application.
// Records carry the component and operation that produced them and, when logged with a
// context from WithDocument, the id of the document being edited.
package log

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	lj "gopkg.in/natefinch/lumberjack.v2"

	"goscriptwriter/internal/version"
)

// Options controls logger initialization.
// Values can be provided directly or via environment variables:
//   - GSW_LOG_LEVEL=debug|info|warn|error
//   - GSW_LOG_FORMAT=console|json
//   - GSW_LOG_FILE=<path> (adds a rotating JSON file)
//   - GSW_LOG_SOURCE=true|false
//
// Defaults: INFO level, console format, no source, stderr.
type Options struct {
	Level     string
	Format    string // "console" or "json"
	AddSource bool
	File      string    // optional path for file logging (rotated)
	Console   io.Writer // console destination, stderr when nil

	MaxSizeMB  int // rotation size, 10 when zero
	MaxBackups int // rotated files kept, 3 when zero
}

var (
	defaultLoggerMu sync.RWMutex
	defaultLogger   *slog.Logger
	fileWriter      *lj.Logger
)

// L returns the default application logger, initializing from env if needed.
func L() *slog.Logger {
	defaultLoggerMu.RLock()
	l := defaultLogger
	defaultLoggerMu.RUnlock()
	if l != nil {
		return l
	}
	Init(FromEnv())
	defaultLoggerMu.RLock()
	l = defaultLogger
	defaultLoggerMu.RUnlock()
	return l
}

// Init configures the global logger and sets slog.Default as well. A file writer opened
// by a previous Init is closed.
func Init(opts Options) {
	lvl := parseLevel(opts.Level)
	console := opts.Console
	if console == nil {
		console = os.Stderr
	}

	var ch slog.Handler
	if strings.EqualFold(strings.TrimSpace(opts.Format), "json") {
		ch = slog.NewJSONHandler(console, &slog.HandlerOptions{Level: lvl, AddSource: opts.AddSource})
	} else {
		ch = &consoleHandler{level: lvl, addSource: opts.AddSource, w: console}
	}
	handlers := []slog.Handler{withDocument(ch)}

	var fw *lj.Logger
	if strings.TrimSpace(opts.File) != "" {
		fw = &lj.Logger{
			Filename:   opts.File,
			MaxSize:    orDefault(opts.MaxSizeMB, 10),
			MaxBackups: orDefault(opts.MaxBackups, 3),
			MaxAge:     28,
			Compress:   true,
		}
		fh := slog.NewJSONHandler(fw, &slog.HandlerOptions{Level: lvl, AddSource: opts.AddSource})
		handlers = append(handlers, withDocument(fh))
	}

	h := handlers[0]
	if len(handlers) > 1 {
		h = fanout(handlers)
	}
	logger := slog.New(h).With(
		slog.String("app", "goscriptwriter"),
		slog.String("ver", version.Version),
		slog.Time("ts_init", time.Now()),
	)

	defaultLoggerMu.Lock()
	prev := fileWriter
	defaultLogger, fileWriter = logger, fw
	defaultLoggerMu.Unlock()
	if prev != nil {
		_ = prev.Close()
	}
	slog.SetDefault(logger)
}

func orDefault(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

// FromEnv builds Options from environment variables.
func FromEnv() Options {
	return Options{
		Level:     getenv("GSW_LOG_LEVEL", "info"),
		Format:    getenv("GSW_LOG_FORMAT", "console"),
		AddSource: strings.EqualFold(getenv("GSW_LOG_SOURCE", "false"), "true"),
		File:      os.Getenv("GSW_LOG_FILE"),
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// WithComponent returns a logger with the component attribute pre-set.
func WithComponent(name string) *slog.Logger { return L().With(slog.String("component", name)) }

// WithOperation annotates the logger with an operation name.
func WithOperation(l *slog.Logger, op string) *slog.Logger { return l.With(slog.String("op", op)) }

type docKey struct{}

// WithDocument returns a context that tags every record logged with it by the document id.
func WithDocument(ctx context.Context, docID string) context.Context {
	return context.WithValue(ctx, docKey{}, docID)
}

// DocumentFrom returns the document id stored by WithDocument.
func DocumentFrom(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	id, ok := ctx.Value(docKey{}).(string)
	return id, ok && id != ""
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
