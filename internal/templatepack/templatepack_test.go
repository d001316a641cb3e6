/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package templatepack

import (
	"archive/zip"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"goscriptwriter/internal/blockstyle"
)

const stageTemplate = "name: stage\ndescription: Stage play\nstyles:\n  - type: action\n  - type: character\n"

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// writePack builds a zip with the given entries.
func writePack(t *testing.T, entries map[string]string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "pack.zip")
	f, err := os.Create(p)
	if err != nil {
		t.Fatal(err)
	}
	zw := zip.NewWriter(f)
	for name, body := range entries {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(body)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestExportAndInstall(t *testing.T) {
	src := t.TempDir()
	writeFile(t, filepath.Join(src, "stage.yaml"), stageTemplate)
	writeFile(t, filepath.Join(src, "readme.txt"), "not a template")

	zipPath := filepath.Join(t.TempDir(), "out", "stage.zip")
	m, err := Export(src, zipPath)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if len(m.Templates) != 1 || m.Templates[0].Name != "stage" || m.Templates[0].Description != "Stage play" {
		t.Fatalf("unexpected manifest %+v", m)
	}
	read, err := ReadManifest(zipPath)
	if err != nil {
		t.Fatalf("read manifest: %v", err)
	}
	if len(read.Templates) != 1 || read.Templates[0].File != "stage.yaml" {
		t.Fatalf("manifest round trip: %+v", read)
	}

	dst := t.TempDir()
	rep, err := Install(dst, zipPath)
	if err != nil {
		t.Fatalf("install: %v", err)
	}
	if len(rep.Installed) != 1 || len(rep.Skipped) != 0 {
		t.Fatalf("unexpected report %+v", rep)
	}
	scope := map[string]*blockstyle.Template{}
	if errs := blockstyle.LoadDir(dst, scope); errs != nil {
		t.Fatalf("installed templates do not load: %v", errs)
	}
	if _, ok := scope["stage"]; !ok {
		t.Fatalf("stage template not installed")
	}

	rep, err = Install(dst, zipPath)
	if err != nil || len(rep.Skipped) != 1 || len(rep.Installed) != 0 {
		t.Fatalf("second install should skip: %+v %v", rep, err)
	}
}

func TestExportRejectsBrokenTemplates(t *testing.T) {
	src := t.TempDir()
	writeFile(t, filepath.Join(src, "a.yaml"), "name: a\nstyles:\n  - type: montage\n")
	writeFile(t, filepath.Join(src, "b.yml"), "name: b\nstyles:\n  - type: action\n    colour: red\n")
	zipPath := filepath.Join(t.TempDir(), "out.zip")
	_, err := Export(src, zipPath)
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "a.yaml") || !strings.Contains(err.Error(), "b.yml") {
		t.Fatalf("expected both files reported, got %v", err)
	}
	if _, statErr := os.Stat(zipPath); !os.IsNotExist(statErr) {
		t.Fatalf("no archive should be written")
	}
}

func TestExportArgsAndEmptyDir(t *testing.T) {
	if _, err := Export("", "x.zip"); err == nil {
		t.Fatalf("expected error for empty dir")
	}
	if _, err := Export(t.TempDir(), " "); err == nil {
		t.Fatalf("expected error for empty destination")
	}
	zipPath := filepath.Join(t.TempDir(), "empty.zip")
	m, err := Export(filepath.Join(t.TempDir(), "missing"), zipPath)
	if err != nil || len(m.Templates) != 0 {
		t.Fatalf("missing dir should export an empty pack: %+v %v", m, err)
	}
	if _, err := ReadManifest(zipPath); err != nil {
		t.Fatalf("empty pack should still carry a manifest: %v", err)
	}
}

func TestInstallRejectsUnsafeAndInvalidEntries(t *testing.T) {
	pack := writePack(t, map[string]string{
		"../evil.yaml":  stageTemplate,
		"nested/x.yaml": stageTemplate,
		"broken.yaml":   "name: broken\n",
		"ok.yml":        strings.Replace(stageTemplate, "stage", "ok", 1),
		"notes.txt":     "ignored",
		ManifestName:    "templates: []\n",
	})
	dst := t.TempDir()
	rep, err := Install(dst, pack)
	if err == nil {
		t.Fatalf("expected errors for unsafe and invalid entries")
	}
	for _, want := range []string{"../evil.yaml", "nested/x.yaml", "broken.yaml"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error lacks %s: %v", want, err)
		}
	}
	if len(rep.Installed) != 1 || rep.Installed[0] != "ok.yml" {
		t.Fatalf("valid entry should still install: %+v", rep)
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(dst), "evil.yaml")); !os.IsNotExist(err) {
		t.Fatalf("zip slip wrote outside target")
	}
	if _, err := os.Stat(filepath.Join(dst, "notes.txt")); !os.IsNotExist(err) {
		t.Fatalf("non-template entry installed")
	}
}

func TestInstallMissingPack(t *testing.T) {
	if _, err := Install(t.TempDir(), filepath.Join(t.TempDir(), "none.zip")); err == nil {
		t.Fatalf("expected open error")
	}
	if _, err := ReadManifest(writePack(t, map[string]string{"a.yaml": stageTemplate})); err == nil {
		t.Fatalf("expected missing manifest error")
	}
}
