/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package log

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"
)

func TestFromEnvAndGetenv(t *testing.T) {
	t.Setenv("GSW_LOG_LEVEL", "warn")
	t.Setenv("GSW_LOG_FORMAT", "json")
	t.Setenv("GSW_LOG_SOURCE", "true")
	// GSW_LOG_FILE intentionally unset

	opts := FromEnv()
	if opts.Level != "warn" || opts.Format != "json" || !opts.AddSource || opts.File != "" {
		t.Fatalf("FromEnv mismatch: %+v", opts)
	}

	// Also verify getenv default fallback when var missing
	if err := os.Unsetenv("SOME_UNSET_VAR"); err != nil {
		t.Fatalf("Unsetenv error: %v", err)
	}
	if v := getenv("SOME_UNSET_VAR", "fallback"); v != "fallback" {
		t.Fatalf("getenv fallback failed: %q", v)
	}
}

func TestConsoleHandlerFormat(t *testing.T) {
	var buf bytes.Buffer
	h := &consoleHandler{level: slog.LevelWarn, addSource: true, w: &buf}
	ctx := context.Background()

	if h.Enabled(ctx, slog.LevelInfo) {
		t.Fatalf("info should not be enabled at warn level")
	}
	if !h.Enabled(ctx, slog.LevelError) {
		t.Fatalf("error should be enabled at warn level")
	}

	h2 := h.WithAttrs([]slog.Attr{slog.String("k", "v"), slog.String("component", "scenario")})
	h2 = h2.WithGroup("grp")

	r := slog.NewRecord(time.Date(2025, 1, 2, 15, 4, 5, 0, time.UTC), slog.LevelError, "boom", 0)
	r.AddAttrs(slog.Int("n", 42), slog.Float64("pi", 3.14), slog.String("text", "two words"))
	if err := h2.Handle(ctx, r); err != nil {
		t.Fatalf("handle error: %v", err)
	}

	out := buf.String()
	if !strings.HasPrefix(out, "15:04:05.000 ERR [scenario] boom k=v") {
		t.Fatalf("unexpected line start: %q", out)
	}
	for _, want := range []string{"grp.n=42", "grp.pi=3.14", `grp.text="two words"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %s: %q", want, out)
		}
	}
	if strings.Contains(out, "component=") {
		t.Fatalf("component should be rendered as a tag: %q", out)
	}
}

func TestConsoleWriterAndDocumentAttr(t *testing.T) {
	var buf bytes.Buffer
	Init(Options{Level: "info", Console: &buf})
	t.Cleanup(func() { Init(Options{Level: "info", Console: io.Discard}) })

	WithComponent("scenario").InfoContext(WithDocument(context.Background(), "abc"), "retyped")
	WithComponent("scenario").Debug("hidden")

	out := buf.String()
	if !strings.Contains(out, "retyped") || !strings.Contains(out, "doc=abc") || !strings.Contains(out, "[scenario]") {
		t.Fatalf("unexpected console output: %q", out)
	}
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug record should be filtered at info level: %q", out)
	}
	if _, ok := DocumentFrom(context.Background()); ok {
		t.Fatalf("empty context must not carry a document")
	}
}
