/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package blockstyle

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	applog "goscriptwriter/internal/log"
)

// WatchTemplate reloads the template at path whenever it is written or re-created and hands
// the result to onReload. The parent directory is watched so editors that save via rename
// keep working. Watching stops when ctx is done.
//
// onReload runs on the watcher goroutine; hosts typically call SetCurrent and refresh their
// views from there.
func WatchTemplate(ctx context.Context, path string, onReload func(*Template, error)) error {
	l := applog.WithOperation(applog.WithComponent("blockstyle"), "watch").With(slog.String("path", path))
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	target := filepath.Clean(path)
	if err := w.Add(filepath.Dir(target)); err != nil {
		_ = w.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(target), err)
	}
	go func() {
		defer func() { _ = w.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target || !ev.Has(fsnotify.Write|fsnotify.Create) {
					continue
				}
				t, err := LoadTemplateFile(target)
				if err != nil {
					l.Warn("template reload failed", slog.Any("err", err))
				} else {
					l.Info("template reloaded", slog.String("name", t.Name()))
				}
				onReload(t, err)
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				l.Error("watcher error", slog.Any("err", err))
				onReload(nil, err)
			}
		}
	}()
	return nil
}
