/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package export renders scripts for reading outside the editor: plain text in the import
// conventions and paginated PDF in the common screenplay page layout.
package export

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"goscriptwriter/internal/blockstyle"
	"goscriptwriter/internal/script"
	"goscriptwriter/internal/storage"
	"goscriptwriter/internal/textdoc"
)

// Printable returns the blocks of doc that make it into an export with template
// decoration removed. Auto-inserted title headers, group footers, non-printable text and
// blocks without text are dropped.
func Printable(doc *textdoc.Document, tpl *blockstyle.Template) []textdoc.Block {
	if doc == nil {
		return nil
	}
	var out []textdoc.Block
	for _, b := range doc.Contents() {
		st := tpl.Style(b.Type)
		switch {
		case b.Type == blockstyle.TitleHeader, b.Type == blockstyle.NoprintableText:
			continue
		case st.IsEmbeddableFooter(), b.Type == blockstyle.SceneGroupFooter, b.Type == blockstyle.FolderFooter:
			continue
		}
		text := strings.TrimSpace(undecorate(st, b.Text))
		if text == "" {
			continue
		}
		out = append(out, textdoc.Block{Type: b.Type, Text: text})
	}
	return out
}

func undecorate(st blockstyle.Style, s string) string {
	if st.Prefix != "" && strings.HasPrefix(s, st.Prefix) {
		s = s[len(st.Prefix):]
	}
	if st.Postfix != "" && strings.HasSuffix(s, st.Postfix) {
		s = s[:len(s)-len(st.Postfix)]
	}
	return s
}

func inDialogue(t blockstyle.Type) bool {
	return t == blockstyle.Character || t == blockstyle.Parenthetical || t == blockstyle.Dialog
}

// WriteText writes doc as a plain-text screenplay that script.Import reads back into the
// same block types. Scene characters and simple text come back as action since the plain
// format has no marker for them.
func WriteText(w io.Writer, doc *textdoc.Document, tpl *blockstyle.Template) error {
	bw := bufio.NewWriter(w)
	blocks := Printable(doc, tpl)
	for i, b := range blocks {
		if i > 0 && !(inDialogue(blocks[i-1].Type) && inDialogue(b.Type) && b.Type != blockstyle.Character) {
			bw.WriteString("\n")
		}
		next := blockstyle.Undefined
		if i+1 < len(blocks) {
			next = blocks[i+1].Type
		}
		bw.WriteString(plainLine(b, next))
		bw.WriteString("\n")
	}
	return bw.Flush()
}

func plainLine(b textdoc.Block, next blockstyle.Type) string {
	text := strings.Join(strings.Fields(b.Text), " ")
	switch b.Type {
	case blockstyle.Title:
		return "Title: " + text
	case blockstyle.SceneHeading:
		if script.LooksLikeSceneHeading(text) {
			return text
		}
		return "." + text
	case blockstyle.Character:
		if script.LooksLikeCue(text) && (next == blockstyle.Dialog || next == blockstyle.Parenthetical) {
			return text
		}
		return "@" + text
	case blockstyle.Parenthetical:
		return "(" + text + ")"
	case blockstyle.Transition:
		return "> " + text
	case blockstyle.Note:
		return "[[" + text + "]]"
	case blockstyle.Lyrics:
		return "~" + text
	case blockstyle.FolderHeader:
		return "# " + text
	case blockstyle.SceneGroupHeader:
		return "## " + text
	}
	return text
}

// ExportText writes the project's script as plain text to outPath. Relative paths land
// under the project's exports folder.
func ExportText(ph *storage.ProjectHandle, doc *textdoc.Document, tpl *blockstyle.Template, outPath string) (string, error) {
	if ph == nil {
		return "", fmt.Errorf("project handle is nil")
	}
	outPath = exportPath(ph, outPath)
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return "", fmt.Errorf("ensure out dir: %w", err)
	}
	f, err := os.Create(outPath)
	if err != nil {
		return "", fmt.Errorf("create text export: %w", err)
	}
	if err := WriteText(f, doc, tpl); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("write text: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close text export: %w", err)
	}
	return outPath, nil
}

func exportPath(ph *storage.ProjectHandle, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(ph.Root, "exports", p)
}
