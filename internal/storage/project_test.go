/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"goscriptwriter/internal/blockstyle"
	"goscriptwriter/internal/domain"
	"goscriptwriter/internal/textdoc"
)

func sampleDoc() *textdoc.Document {
	return textdoc.FromBlocks(
		textdoc.Block{Type: blockstyle.FolderHeader, Text: "Act One"},
		textdoc.Block{Type: blockstyle.SceneHeading, Text: "INT. KITCHEN - NIGHT"},
		textdoc.Block{Type: blockstyle.Action, Text: "Rain hammers the window."},
		textdoc.Block{Type: blockstyle.Character, Text: "ALICE"},
		textdoc.Block{Type: blockstyle.Parenthetical, Text: "(whispering)"},
		textdoc.Block{Type: blockstyle.Dialog, Text: "Did you hear the rain?"},
		textdoc.Block{Type: blockstyle.FolderFooter},
		textdoc.Block{Type: blockstyle.SceneHeading, Text: "EXT. ROOF - NIGHT"},
		textdoc.Block{Type: blockstyle.Character, Text: "BOB"},
		textdoc.Block{Type: blockstyle.Dialog, Text: "Only thunder."},
	)
}

func newProject(t *testing.T, name string) *ProjectHandle {
	t.Helper()
	ph, err := InitProject(t.TempDir(), domain.NewProject(name))
	if err != nil {
		t.Fatalf("InitProject error: %v", err)
	}
	return ph
}

func countBackups(t *testing.T, root, name string) int {
	t.Helper()
	ents, err := os.ReadDir(filepath.Join(root, BackupsDirName))
	if err != nil {
		t.Fatalf("read backups dir: %v", err)
	}
	n := 0
	for _, e := range ents {
		if strings.HasPrefix(e.Name(), name+".") && strings.HasSuffix(e.Name(), ".bak") {
			n++
		}
	}
	return n
}

func TestInitProjectCreatesStructureManifestAndScript(t *testing.T) {
	ph := newProject(t, "Test Project")
	b, err := os.ReadFile(ph.ManifestPath)
	if err != nil {
		t.Fatalf("read manifest: %v", err)
	}
	var got domain.Project
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("unmarshal manifest: %v", err)
	}
	if got.Name != "Test Project" {
		t.Fatalf("manifest name mismatch: got %q", got.Name)
	}
	for _, d := range []string{TemplatesDirName, "exports", BackupsDirName} {
		p := filepath.Join(ph.Root, d)
		if fi, err := os.Stat(p); err != nil || !fi.IsDir() {
			t.Fatalf("expected directory %s to exist", p)
		}
	}
	doc, err := LoadScript(ph)
	if err != nil {
		t.Fatalf("LoadScript: %v", err)
	}
	if doc.Len() != 1 || doc.Text(doc.First()) != "" {
		t.Fatalf("new project should start with an empty script")
	}
}

func TestSaveCreatesTimestampedBackup(t *testing.T) {
	ph := newProject(t, "Backup Test")
	ph.Project.Metadata.Notes = "changed"
	if err := Save(ph); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	if countBackups(t, ph.Root, ManifestFileName) == 0 {
		t.Fatalf("expected at least one manifest backup")
	}
}

func TestOpenFallsBackToLatestBackupOnCorruption(t *testing.T) {
	ph := newProject(t, "Open From Backup")
	ph.Project.Metadata.Notes = "touch"
	if err := Save(ph); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	if err := os.WriteFile(ph.ManifestPath, []byte("{ this is not json"), 0o644); err != nil {
		t.Fatalf("corrupt manifest: %v", err)
	}
	opened, err := Open(ph.Root)
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	if opened.Project.Name != "Open From Backup" {
		t.Fatalf("opened project name mismatch: got %q", opened.Project.Name)
	}
}

func TestOpenWithoutManifestOrBackupFails(t *testing.T) {
	if _, err := Open(t.TempDir()); err == nil {
		t.Fatalf("expected error for empty directory")
	}
}

func TestScriptSaveLoadAndBackupFallback(t *testing.T) {
	ph := newProject(t, "Script IO")
	doc := sampleDoc()
	if err := SaveScript(ph, doc); err != nil {
		t.Fatalf("SaveScript: %v", err)
	}
	got, err := LoadScript(ph)
	if err != nil {
		t.Fatalf("LoadScript: %v", err)
	}
	if got.ID() != doc.ID() || got.PlainText() != doc.PlainText() {
		t.Fatalf("script content mismatch:\n%s\nvs\n%s", got.PlainText(), doc.PlainText())
	}
	// a second save backs up the first revision
	if err := SaveScript(ph, doc); err != nil {
		t.Fatalf("SaveScript: %v", err)
	}
	if countBackups(t, ph.Root, "script.json") == 0 {
		t.Fatalf("expected a script backup")
	}
	if err := os.WriteFile(ph.ScriptPath(), []byte("garbage"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err = LoadScript(ph)
	if err != nil {
		t.Fatalf("LoadScript after corruption: %v", err)
	}
	if got.PlainText() != doc.PlainText() {
		t.Fatalf("backup fallback returned wrong content")
	}
}

func TestSaveAsCopiesScript(t *testing.T) {
	ph := newProject(t, "Save As")
	if err := SaveScript(ph, sampleDoc()); err != nil {
		t.Fatalf("SaveScript: %v", err)
	}
	newRoot := filepath.Join(t.TempDir(), "copy")
	if err := SaveAs(ph, newRoot); err != nil {
		t.Fatalf("SaveAs: %v", err)
	}
	if ph.Root != newRoot {
		t.Fatalf("handle root not updated")
	}
	doc, err := LoadScript(ph)
	if err != nil {
		t.Fatalf("LoadScript in new root: %v", err)
	}
	if doc.Len() != sampleDoc().Len() {
		t.Fatalf("copied script has %d blocks", doc.Len())
	}
}

func TestAutosaveCrashSnapshotWritesFile(t *testing.T) {
	ph := newProject(t, "Crash Snapshot")
	path, err := AutosaveCrashSnapshot(ph)
	if err != nil {
		t.Fatalf("AutosaveCrashSnapshot error: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	var got domain.Project
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("unmarshal snapshot: %v", err)
	}
	if got.Name != "Crash Snapshot" {
		t.Fatalf("snapshot content mismatch: got %q", got.Name)
	}
	matches, _ := filepath.Glob(filepath.Join(ph.Root, BackupsDirName, "script.json.crash-*.json"))
	if len(matches) != 1 {
		t.Fatalf("expected one script crash copy, got %v", matches)
	}
}
