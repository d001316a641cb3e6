/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"os"
	"path/filepath"
	"testing"

	"goscriptwriter/internal/blockstyle"
)

func TestBatchExportDraftPreset(t *testing.T) {
	ph := testProject(t)
	paths, err := BatchExport(ph, sampleDoc(), blockstyle.Default(), BatchOptions{Preset: PresetDraft})
	if err != nil {
		t.Fatalf("batch export draft: %v", err)
	}
	want := []string{
		filepath.Join(ph.Root, "exports", "draft", "script.pdf"),
		filepath.Join(ph.Root, "exports", "draft", "script.txt"),
	}
	if len(paths) != len(want) {
		t.Fatalf("paths = %v", paths)
	}
	for i, p := range want {
		if paths[i] != p {
			t.Errorf("path %d = %s, want %s", i, paths[i], p)
		}
		st, err := os.Stat(p)
		if err != nil {
			t.Fatalf("missing %s: %v", p, err)
		}
		if st.Size() <= 0 {
			t.Fatalf("empty file: %s", p)
		}
	}
}

func TestBatchExportDefaultsToReading(t *testing.T) {
	ph := testProject(t)
	out := t.TempDir()
	paths, err := BatchExport(ph, sampleDoc(), blockstyle.Default(), BatchOptions{OutDir: out})
	if err != nil {
		t.Fatal(err)
	}
	if len(paths) != 1 || paths[0] != filepath.Join(out, "script.pdf") {
		t.Fatalf("paths = %v", paths)
	}
}

func TestBatchExportRejectsUnknown(t *testing.T) {
	ph := testProject(t)
	if _, err := BatchExport(ph, sampleDoc(), blockstyle.Default(), BatchOptions{Preset: "web"}); err == nil {
		t.Error("expected unknown preset error")
	}
	if _, err := BatchExport(ph, sampleDoc(), blockstyle.Default(), BatchOptions{Formats: []string{"cbz"}}); err == nil {
		t.Error("expected unknown format error")
	}
}
