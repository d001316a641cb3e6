/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"goscriptwriter/internal/domain"
	"goscriptwriter/internal/textdoc"
)

const (
	ManifestFileName = "screenplay.json"
	BackupsDirName   = "backups"
	TemplatesDirName = "templates"
)

// Standard subfolders of a project.
var standardSubDirs = []string{
	TemplatesDirName,
	"exports",
	BackupsDirName,
}

// ProjectHandle keeps track of the project state loaded/saved from disk.
// Root is the project directory containing screenplay.json and subfolders.
// Project holds the in-memory representation of the manifest.
type ProjectHandle struct {
	Root         string
	ManifestPath string
	Project      domain.Project
}

// ScriptPath returns the absolute path of the script document.
func (ph *ProjectHandle) ScriptPath() string {
	name := ph.Project.Script
	if strings.TrimSpace(name) == "" {
		name = "script.json"
	}
	return filepath.Join(ph.Root, filepath.FromSlash(name))
}

// TemplatesDir returns the project scoped template directory.
func (ph *ProjectHandle) TemplatesDir() string { return filepath.Join(ph.Root, TemplatesDirName) }

// InitProject creates a new project directory at root (creating it if it doesn't exist),
// scaffolds the standard subfolders, writes the manifest and an empty script.
func InitProject(root string, proj domain.Project) (*ProjectHandle, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("root path is required")
	}
	if err := scaffold(root); err != nil {
		return nil, err
	}
	ph := &ProjectHandle{
		Root:         root,
		ManifestPath: filepath.Join(root, ManifestFileName),
		Project:      proj,
	}
	if err := Save(ph); err != nil {
		return nil, err
	}
	if _, err := os.Stat(ph.ScriptPath()); errors.Is(err, os.ErrNotExist) {
		if err := SaveScript(ph, textdoc.New()); err != nil {
			return nil, err
		}
	}
	return ph, nil
}

func scaffold(root string) error {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return fmt.Errorf("create project root: %w", err)
	}
	for _, d := range standardSubDirs {
		if err := os.MkdirAll(filepath.Join(root, d), 0o755); err != nil {
			return fmt.Errorf("create subdir %s: %w", d, err)
		}
	}
	return nil
}

// Open loads an existing project from the given root directory.
// If the current manifest cannot be read or parsed, it will attempt last backup.
func Open(root string) (*ProjectHandle, error) {
	mpath := filepath.Join(root, ManifestFileName)
	var p domain.Project
	err := readJSON(mpath, &p)
	if err != nil {
		if berr := readLatestBackup(root, ManifestFileName, func(b []byte) error {
			p = domain.Project{}
			return json.Unmarshal(b, &p)
		}); berr != nil {
			return nil, fmt.Errorf("open manifest: %w; backup attempt: %v", err, berr)
		}
	}
	return &ProjectHandle{Root: root, ManifestPath: mpath, Project: p}, nil
}

// Save writes the current ProjectHandle.Project to disk with transactional semantics
// and a timestamped backup of the previous manifest (if present).
func Save(ph *ProjectHandle) error {
	if ph == nil {
		return errors.New("nil ProjectHandle")
	}
	if ph.Root == "" || ph.ManifestPath == "" {
		return errors.New("invalid ProjectHandle: missing paths")
	}
	ph.Project.Modified = time.Now().UTC()
	data, err := json.MarshalIndent(ph.Project, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	data = append(data, '\n')
	if err := replaceWithBackup(ph.Root, ph.ManifestPath, data); err != nil {
		return fmt.Errorf("save manifest: %w", err)
	}
	return nil
}

// SaveAs writes the manifest and script to a new root folder, scaffolding structure if
// needed, and updates the handle.
func SaveAs(ph *ProjectHandle, newRoot string) error {
	if ph == nil {
		return errors.New("nil ProjectHandle")
	}
	if newRoot == "" {
		return errors.New("new root is empty")
	}
	if err := scaffold(newRoot); err != nil {
		return err
	}
	oldScript := ph.ScriptPath()
	ph.Root = newRoot
	ph.ManifestPath = filepath.Join(newRoot, ManifestFileName)
	if _, err := os.Stat(oldScript); err == nil {
		if err := copyFile(oldScript, ph.ScriptPath()); err != nil {
			return fmt.Errorf("copy script: %w", err)
		}
	}
	return Save(ph)
}

// LoadScript reads the project's script document. A damaged script falls back to the
// newest backup.
func LoadScript(ph *ProjectHandle) (*textdoc.Document, error) {
	if ph == nil {
		return nil, errors.New("nil ProjectHandle")
	}
	path := ph.ScriptPath()
	b, err := os.ReadFile(path)
	if err == nil {
		doc, derr := textdoc.Decode(bytes.NewReader(b))
		if derr == nil {
			return doc, nil
		}
		err = derr
	}
	var doc *textdoc.Document
	berr := readLatestBackup(ph.Root, filepath.Base(path), func(b []byte) error {
		var derr error
		doc, derr = textdoc.Decode(bytes.NewReader(b))
		return derr
	})
	if berr != nil {
		return nil, fmt.Errorf("load script: %w; backup attempt: %v", err, berr)
	}
	return doc, nil
}

// SaveScript writes doc to the project's script file, backing up the previous revision.
func SaveScript(ph *ProjectHandle, doc *textdoc.Document) error {
	if ph == nil {
		return errors.New("nil ProjectHandle")
	}
	var buf bytes.Buffer
	if err := doc.Encode(&buf); err != nil {
		return fmt.Errorf("encode script: %w", err)
	}
	if err := replaceWithBackup(ph.Root, ph.ScriptPath(), buf.Bytes()); err != nil {
		return fmt.Errorf("save script: %w", err)
	}
	return nil
}

// AutosaveCrashSnapshot writes the in-memory manifest and a copy of the script into the
// backups folder under a crash-stamped name. It returns the path of the manifest copy.
func AutosaveCrashSnapshot(ph *ProjectHandle) (string, error) {
	if ph == nil {
		return "", errors.New("nil ProjectHandle")
	}
	bdir := filepath.Join(ph.Root, BackupsDirName)
	if err := os.MkdirAll(bdir, 0o755); err != nil {
		return "", fmt.Errorf("ensure backups dir: %w", err)
	}
	stamp := time.Now().Format("20060102-150405")
	data, err := json.MarshalIndent(ph.Project, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal manifest: %w", err)
	}
	out := filepath.Join(bdir, fmt.Sprintf("%s.crash-%s.json", ManifestFileName, stamp))
	if err := writeFileSync(out, data); err != nil {
		return "", err
	}
	if src := ph.ScriptPath(); fileExists(src) {
		dst := filepath.Join(bdir, fmt.Sprintf("%s.crash-%s.json", filepath.Base(src), stamp))
		if err := copyFile(src, dst); err != nil {
			return out, err
		}
	}
	return out, nil
}

// replaceWithBackup copies the current file at path into the backups folder and then
// replaces it via a temp file in the same directory.
func replaceWithBackup(root, path string, data []byte) error {
	bdir := filepath.Join(root, BackupsDirName)
	if err := os.MkdirAll(bdir, 0o755); err != nil {
		return fmt.Errorf("ensure backups dir: %w", err)
	}
	if fileExists(path) {
		stamp := time.Now().Format("20060102-150405.000")
		bpath := filepath.Join(bdir, fmt.Sprintf("%s.%s.bak", filepath.Base(path), stamp))
		if err := copyFile(path, bpath); err != nil {
			return fmt.Errorf("backup current file: %w", err)
		}
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	temp := filepath.Join(dir, fmt.Sprintf(".%s.tmp-%d-%d", filepath.Base(path), os.Getpid(), rand.Int()))
	if err := writeFileSync(temp, data); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	// On Windows, replace by removing destination first if needed
	if fileExists(path) {
		_ = os.Remove(path)
	}
	if err := os.Rename(temp, path); err != nil {
		_ = os.Remove(temp)
		return fmt.Errorf("replace file: %w", err)
	}
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func readJSON(path string, v any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

// writeFileSync writes data to a file, ensures it is flushed to disk.
func writeFileSync(path string, data []byte) (err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := f.Write(data); err != nil {
		return err
	}
	return f.Sync()
}

// copyFile copies a file from src to dst (overwrites dst if exists).
func copyFile(src, dst string) (err error) {
	sf, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sf.Close(); err == nil {
			err = cerr
		}
	}()
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	df, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := df.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := io.Copy(df, sf); err != nil {
		return err
	}
	return df.Sync()
}

// readLatestBackup feeds the newest backup of name to decode.
func readLatestBackup(root, name string, decode func([]byte) error) error {
	bdir := filepath.Join(root, BackupsDirName)
	ents, err := os.ReadDir(bdir)
	if err != nil {
		return fmt.Errorf("read backups dir: %w", err)
	}
	var candidates []string
	for _, e := range ents {
		n := e.Name()
		if strings.HasPrefix(n, name+".") && strings.HasSuffix(n, ".bak") {
			candidates = append(candidates, filepath.Join(bdir, n))
		}
	}
	if len(candidates) == 0 {
		return errors.New("no backups found")
	}
	sort.Strings(candidates) // timestamp in name yields lexicographic order
	latest := candidates[len(candidates)-1]
	b, err := os.ReadFile(latest)
	if err != nil {
		return fmt.Errorf("read latest backup: %w", err)
	}
	if err := decode(b); err != nil {
		return fmt.Errorf("parse latest backup: %w", err)
	}
	return nil
}
