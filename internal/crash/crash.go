/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package crash turns a panic into a report file, an emergency copy of the open project
// and a non-zero exit.
package crash

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"time"

	applog "goscriptwriter/internal/log"
	"goscriptwriter/internal/storage"
	"goscriptwriter/internal/telemetry"
	"goscriptwriter/internal/textdoc"
	"goscriptwriter/internal/version"
)

// exitFn is replaced in tests.
var exitFn = os.Exit

// Recover handles a panic in the calling goroutine: it logs the stack, writes a crash
// report, saves crash copies of the project files on disk and exits with code 2.
//
// Usage: defer crash.Recover(ph)
func Recover(ph *storage.ProjectHandle) {
	if r := recover(); r != nil {
		handle(r, ph, nil)
	}
}

// RecoverEditing is Recover for an editing session: doc is the in-memory script, which
// is written next to the crash copies so unsaved edits survive.
//
// Usage: defer crash.RecoverEditing(ph, doc)
func RecoverEditing(ph *storage.ProjectHandle, doc *textdoc.Document) {
	if r := recover(); r != nil {
		handle(r, ph, doc)
	}
}

func handle(r any, ph *storage.ProjectHandle, doc *textdoc.Document) {
	l := applog.WithComponent("crash")
	stack := debug.Stack()
	l.Error("panic recovered", slog.Any("panic", r), slog.String("stack", string(stack)))

	reportPath, err := writeReport(ph, r, stack)
	if err != nil {
		l.Error("write crash report failed", slog.Any("err", err))
	}
	if ph != nil {
		if path, err := storage.AutosaveCrashSnapshot(ph); err != nil {
			l.Error("autosave crash snapshot failed", slog.Any("err", err))
		} else {
			l.Info("autosave crash snapshot written", slog.String("path", path))
		}
		if doc != nil {
			if path, err := saveUnsaved(ph, doc); err != nil {
				l.Error("unsaved script copy failed", slog.Any("err", err))
			} else {
				l.Info("unsaved script copy written", slog.String("path", path))
			}
		}
	}

	_, _ = fmt.Fprintf(os.Stderr, "A fatal error occurred. A crash report was saved to: %s\n", reportPath)
	_, _ = fmt.Fprintf(os.Stderr, "%s\nOS/Arch: %s/%s\n", version.String(), runtime.GOOS, runtime.GOARCH)
	exitFn(2)
}

func crashDir(ph *storage.ProjectHandle) string {
	if ph == nil || ph.Root == "" {
		return os.TempDir()
	}
	dir := filepath.Join(ph.Root, storage.BackupsDirName)
	_ = os.MkdirAll(dir, 0o755)
	return dir
}

// saveUnsaved writes doc as script-unsaved-<stamp>.json into the backups folder.
func saveUnsaved(ph *storage.ProjectHandle, doc *textdoc.Document) (string, error) {
	path := filepath.Join(crashDir(ph), fmt.Sprintf("script-unsaved-%s.json", time.Now().Format("20060102-150405")))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return path, err
	}
	if err := doc.Encode(f); err != nil {
		_ = f.Close()
		return path, err
	}
	return path, f.Close()
}

func writeReport(ph *storage.ProjectHandle, panicVal any, stack []byte) (string, error) {
	path := filepath.Join(crashDir(ph), fmt.Sprintf("crash-%s.log", time.Now().Format("20060102-150405")))

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "GoScriptWriter Crash Report\n")
	fmt.Fprintf(&buf, "Timestamp: %s\n", time.Now().Format(time.RFC3339))
	fmt.Fprintf(&buf, "Version: %s\n", version.String())
	fmt.Fprintf(&buf, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	if ph != nil {
		fmt.Fprintf(&buf, "ProjectRoot: %s\n", ph.Root)
		fmt.Fprintf(&buf, "Manifest: %s\n", ph.ManifestPath)
		if ph.Project.Template != "" {
			fmt.Fprintf(&buf, "Template: %s\n", ph.Project.Template)
		}
	}
	fmt.Fprintf(&buf, "\nPanic: %v\n\n", panicVal)
	fmt.Fprintf(&buf, "Stack:\n%s\n", stack)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return path, err
	}
	if _, err := f.Write(buf.Bytes()); err != nil {
		_ = f.Close()
		return path, err
	}
	_ = f.Sync()
	if err := f.Close(); err != nil {
		return path, err
	}

	// report text holds no script content; upload is a no-op unless opted in
	telemetry.UploadCrash(buf.Bytes())
	return path, nil
}

// Guard recovers panics for a session whose project and document change over time.
// Fields are read when the panic happens.
//
// Usage: g := &crash.Guard{}; defer g.Recover()
type Guard struct {
	Project *storage.ProjectHandle
	Doc     *textdoc.Document
}

// Recover is RecoverEditing with the guard's current project and document.
func (g *Guard) Recover() {
	if r := recover(); r != nil {
		handle(r, g.Project, g.Doc)
	}
}
