/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"fmt"
	"path/filepath"
	"strings"

	"goscriptwriter/internal/blockstyle"
	"goscriptwriter/internal/storage"
	"goscriptwriter/internal/textdoc"
)

// PresetName represents a named export preset.
type PresetName string

const (
	// PresetReading is a clean read: title page, no notes, no scene numbers.
	PresetReading PresetName = "reading"
	// PresetDraft keeps notes and outline headers and numbers the scenes.
	PresetDraft PresetName = "draft"
)

// BatchOptions controls a batch export.
//
// Outputs are named after the project file stem: script.pdf and script.txt under
// OutDir. An empty or relative OutDir resolves to <project>/exports/<preset>/.
type BatchOptions struct {
	Preset  PresetName
	Formats []string // pdf, txt; empty means preset defaults
	OutDir  string
}

// BatchExport writes every requested format and returns the written paths in order.
func BatchExport(ph *storage.ProjectHandle, doc *textdoc.Document, tpl *blockstyle.Template, opt BatchOptions) ([]string, error) {
	if ph == nil {
		return nil, fmt.Errorf("project handle is nil")
	}
	if opt.Preset == "" {
		opt.Preset = PresetReading
	}
	pdfOpt, err := presetPDFOptions(opt.Preset)
	if err != nil {
		return nil, err
	}
	formats := opt.Formats
	if len(formats) == 0 {
		formats = presetDefaultFormats(opt.Preset)
	}

	baseOut := opt.OutDir
	if baseOut == "" {
		baseOut = string(opt.Preset)
	}
	baseOut = exportPath(ph, baseOut)
	stem := strings.TrimSuffix(filepath.Base(ph.ScriptPath()), filepath.Ext(ph.ScriptPath()))

	var written []string
	for _, f := range formats {
		var p string
		switch strings.ToLower(strings.TrimSpace(f)) {
		case "pdf":
			p, err = ExportPDF(ph, doc, tpl, filepath.Join(baseOut, stem+".pdf"), pdfOpt)
		case "txt", "text":
			p, err = ExportText(ph, doc, tpl, filepath.Join(baseOut, stem+".txt"))
		default:
			return written, fmt.Errorf("unknown format: %s", f)
		}
		if err != nil {
			return written, fmt.Errorf("%s export: %w", f, err)
		}
		written = append(written, p)
	}
	return written, nil
}

func presetDefaultFormats(p PresetName) []string {
	if p == PresetDraft {
		return []string{"pdf", "txt"}
	}
	return []string{"pdf"}
}

func presetPDFOptions(p PresetName) (PDFOptions, error) {
	switch p {
	case PresetReading:
		return PDFOptions{TitlePage: true, Compress: true}, nil
	case PresetDraft:
		return PDFOptions{IncludeNotes: true, Sections: true, SceneNumbers: true, Compress: true}, nil
	default:
		return PDFOptions{}, fmt.Errorf("unknown preset %q", p)
	}
}
