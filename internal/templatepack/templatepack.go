/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package templatepack bundles block style templates into zip archives and installs them
// into a project or user templates folder.
package templatepack

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"goscriptwriter/internal/blockstyle"
	applog "goscriptwriter/internal/log"
)

// ManifestName is the archive entry describing a pack.
const ManifestName = "templatepack.yaml"

// maxTemplateSize bounds a single template entry; templates are small YAML files.
const maxTemplateSize = 1 << 20

// Manifest lists the templates of a pack.
type Manifest struct {
	Created   time.Time      `yaml:"created"`
	Source    string         `yaml:"source,omitempty"`
	Templates []ManifestItem `yaml:"templates"`
}

// ManifestItem names one template file and the template it declares.
type ManifestItem struct {
	File        string `yaml:"file"`
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
}

// InstallReport summarizes an Install.
type InstallReport struct {
	Installed []string // file names written
	Skipped   []string // file names already present
}

func isTemplateFile(name string) bool {
	ext := strings.ToLower(path.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}

// Export zips every template file of dir into dest. Every template must load; the errors
// of all broken files are returned together and no archive is written.
func Export(dir, dest string) (Manifest, error) {
	l := applog.WithOperation(applog.WithComponent("templatepack"), "export").With(slog.String("dir", dir))
	if strings.TrimSpace(dir) == "" {
		return Manifest{}, errors.New("templates dir is required")
	}
	if strings.TrimSpace(dest) == "" {
		return Manifest{}, errors.New("destination is required")
	}
	ents, err := os.ReadDir(dir)
	if err != nil && !os.IsNotExist(err) {
		return Manifest{}, fmt.Errorf("read templates dir: %w", err)
	}

	m := Manifest{Created: time.Now().UTC().Truncate(time.Second), Source: filepath.Base(dir)}
	var errs error
	for _, e := range ents {
		if e.IsDir() || !isTemplateFile(e.Name()) {
			continue
		}
		t, err := blockstyle.LoadTemplateFile(filepath.Join(dir, e.Name()))
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		m.Templates = append(m.Templates, ManifestItem{File: e.Name(), Name: t.Name(), Description: t.Description()})
	}
	if errs != nil {
		return Manifest{}, errs
	}
	sort.Slice(m.Templates, func(i, j int) bool { return m.Templates[i].File < m.Templates[j].File })

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return Manifest{}, fmt.Errorf("ensure zip dir: %w", err)
	}
	if err := writeZip(dest, dir, m); err != nil {
		_ = os.Remove(dest)
		l.Error("zip build failed", slog.Any("err", err))
		return Manifest{}, err
	}
	l.Info("template pack exported", slog.Int("templates", len(m.Templates)), slog.String("zip", dest))
	return m, nil
}

func writeZip(dest, dir string, m Manifest) (err error) {
	zf, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create zip: %w", err)
	}
	defer func() {
		if cerr := zf.Close(); err == nil {
			err = cerr
		}
	}()
	zw := zip.NewWriter(zf)

	mb, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	w, err := zw.Create(ManifestName)
	if err != nil {
		return fmt.Errorf("add manifest: %w", err)
	}
	if _, err := w.Write(mb); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	for _, it := range m.Templates {
		fw, err := zw.Create(it.File)
		if err != nil {
			return err
		}
		f, err := os.Open(filepath.Join(dir, it.File))
		if err != nil {
			return err
		}
		_, err = io.Copy(fw, f)
		_ = f.Close()
		if err != nil {
			return fmt.Errorf("add %s: %w", it.File, err)
		}
	}
	return zw.Close()
}

// ReadManifest returns the manifest of the pack at zipPath.
func ReadManifest(zipPath string) (Manifest, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return Manifest{}, fmt.Errorf("open pack: %w", err)
	}
	defer r.Close()
	for _, f := range r.File {
		if f.Name != ManifestName {
			continue
		}
		b, err := readEntry(f)
		if err != nil {
			return Manifest{}, err
		}
		var m Manifest
		if err := yaml.Unmarshal(b, &m); err != nil {
			return Manifest{}, fmt.Errorf("decode manifest: %w", err)
		}
		return m, nil
	}
	return Manifest{}, fmt.Errorf("%s: no %s", zipPath, ManifestName)
}

// Install extracts the templates of the pack at zipPath into dir. Only top level YAML
// entries are considered; entries with directory components are rejected. Every
// template is validated before it is written, and existing files are never overwritten.
// Invalid entries are reported together in the error while valid ones still install.
func Install(dir, zipPath string) (InstallReport, error) {
	l := applog.WithOperation(applog.WithComponent("templatepack"), "install").With(slog.String("dir", dir))
	var rep InstallReport
	if strings.TrimSpace(dir) == "" {
		return rep, errors.New("templates dir is required")
	}
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return rep, fmt.Errorf("open pack: %w", err)
	}
	defer r.Close()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return rep, fmt.Errorf("ensure templates dir: %w", err)
	}

	var errs error
	for _, f := range r.File {
		if f.Name == ManifestName || f.FileInfo().IsDir() || !isTemplateFile(f.Name) {
			continue
		}
		if f.Name != path.Base(f.Name) || strings.ContainsRune(f.Name, '\\') {
			errs = multierr.Append(errs, fmt.Errorf("%s: entries must not contain directories", f.Name))
			continue
		}
		target := filepath.Join(dir, f.Name)
		if _, err := os.Stat(target); err == nil {
			l.Warn("skip existing template", slog.String("file", f.Name))
			rep.Skipped = append(rep.Skipped, f.Name)
			continue
		}
		b, err := readEntry(f)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if _, err := blockstyle.ParseTemplate(b); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", f.Name, err))
			continue
		}
		if err := os.WriteFile(target, b, 0o644); err != nil {
			return rep, fmt.Errorf("write %s: %w", f.Name, err)
		}
		rep.Installed = append(rep.Installed, f.Name)
	}
	l.Info("template pack installed", slog.Int("installed", len(rep.Installed)), slog.Int("skipped", len(rep.Skipped)))
	return rep, errs
}

func readEntry(f *zip.File) ([]byte, error) {
	if f.UncompressedSize64 > maxTemplateSize {
		return nil, fmt.Errorf("%s: entry too large", f.Name)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	b, err := io.ReadAll(io.LimitReader(rc, maxTemplateSize+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.Name, err)
	}
	if len(b) > maxTemplateSize {
		return nil, fmt.Errorf("%s: entry too large", f.Name)
	}
	return b, nil
}
