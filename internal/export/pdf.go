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
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/jung-kurt/gofpdf"

	"goscriptwriter/internal/blockstyle"
	"goscriptwriter/internal/domain"
	"goscriptwriter/internal/storage"
	"goscriptwriter/internal/textdoc"
)

// Units are points on US Letter. Courier 12pt advances 7.2pt per character and a line
// is 12pt high.
const (
	pageW      = 612.0
	pageH      = 792.0
	leftMargin = 108.0
	topMargin  = 72.0
	charW      = 7.2
	lineH      = 12.0
	fontSize   = 12.0
)

// PDFOptions controls PDF export.
type PDFOptions struct {
	// TitlePage adds a cover page built from the script's title blocks and the project
	// metadata. Body page numbers start after it.
	TitlePage    bool
	IncludeNotes bool
	// Sections prints folder and scene group headers as centered underlined lines.
	Sections     bool
	SceneNumbers bool
	// Compress deflates page content streams.
	Compress bool
}

// WritePDF renders doc in the screenplay page layout and writes the PDF to w.
func WritePDF(w io.Writer, doc *textdoc.Document, tpl *blockstyle.Template, meta domain.Metadata, opt PDFOptions) error {
	blocks := Printable(doc, tpl)
	pages := paginate(buildElements(blocks, layoutOptions{
		notes:        opt.IncludeNotes,
		sections:     opt.Sections,
		sceneNumbers: opt.SceneNumbers,
	}))

	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		UnitStr: "pt",
		Size:    gofpdf.SizeType{Wd: pageW, Ht: pageH},
	})
	pdf.SetCompression(opt.Compress)
	pdf.SetAutoPageBreak(false, 0)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	title := meta.Title
	if title == "" {
		title = firstTitle(blocks)
	}
	pdf.SetTitle(title, true)
	pdf.SetAuthor(meta.Author, true)
	pdf.SetCreator("GoScriptWriter", false)

	if opt.TitlePage {
		drawTitlePage(pdf, tr, blocks, meta)
	}
	for i, pg := range pages {
		pdf.AddPage()
		if i > 0 {
			pdf.SetFont("Courier", "", fontSize)
			num := fmt.Sprintf("%d.", i+1)
			pdf.Text(leftMargin+float64(pageCols-len(num))*charW, topMargin/2+lineH, num)
		}
		for row, l := range pg.lines {
			if l.text == "" {
				continue
			}
			drawLine(pdf, tr, l, topMargin+float64(row+1)*lineH)
		}
	}
	if err := pdf.Error(); err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}
	return pdf.Output(w)
}

func drawLine(pdf *gofpdf.Fpdf, tr func(string) string, l line, y float64) {
	style := l.style
	if strings.Contains(style, "U") {
		// Underline is drawn by hand; Text ignores the U style.
		style = strings.ReplaceAll(style, "U", "")
	}
	pdf.SetFont("Courier", style, fontSize)
	n := utf8.RuneCountInString(l.text)
	col := float64(l.col)
	switch l.align {
	case alignRight:
		col = float64(pageCols - n)
	case alignCenter:
		col = float64(pageCols-n) / 2
	}
	x := leftMargin + col*charW
	pdf.Text(x, y, tr(l.text))
	if strings.Contains(l.style, "U") {
		pdf.SetLineWidth(0.5)
		pdf.Line(x, y+1.5, x+float64(n)*charW, y+1.5)
	}
	if l.number != "" {
		pdf.SetFont("Courier", "", fontSize)
		pdf.Text(leftMargin-float64(len(l.number)+2)*charW, y, l.number)
		pdf.Text(leftMargin+float64(pageCols+2)*charW, y, l.number)
	}
}

func firstTitle(blocks []textdoc.Block) string {
	for _, b := range blocks {
		if b.Type == blockstyle.Title {
			return b.Text
		}
	}
	return ""
}

func drawTitlePage(pdf *gofpdf.Fpdf, tr func(string) string, blocks []textdoc.Block, meta domain.Metadata) {
	var titles []string
	for _, b := range blocks {
		if b.Type == blockstyle.Title {
			titles = append(titles, strings.ToUpper(b.Text))
		}
	}
	if len(titles) == 0 && meta.Title != "" {
		titles = append(titles, strings.ToUpper(meta.Title))
	}
	pdf.AddPage()
	row := 20
	center := func(s, style string) {
		for _, r := range wrap(s, pageCols) {
			drawLine(pdf, tr, line{text: r, style: style, align: alignCenter}, topMargin+float64(row)*lineH)
			row++
		}
	}
	for _, t := range titles {
		center(t, "U")
		row++
	}
	if meta.Author != "" {
		row += 2
		center("Written by", "")
		row++
		center(meta.Author, "")
	}
	if meta.Draft != "" {
		row += 2
		center(meta.Draft, "")
	}
	if meta.Contact != "" {
		row = linesPerPage - 4
		for _, r := range strings.Split(meta.Contact, "\n") {
			drawLine(pdf, tr, line{text: strings.TrimSpace(r)}, topMargin+float64(row)*lineH)
			row++
		}
	}
}

// ExportPDF renders the project's script to outPath and returns the written path.
// Relative paths land under the project's exports folder.
func ExportPDF(ph *storage.ProjectHandle, doc *textdoc.Document, tpl *blockstyle.Template, outPath string, opt PDFOptions) (string, error) {
	if ph == nil {
		return "", fmt.Errorf("project handle is nil")
	}
	outPath = exportPath(ph, outPath)
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return "", fmt.Errorf("ensure out dir: %w", err)
	}
	f, err := os.Create(outPath)
	if err != nil {
		return "", fmt.Errorf("create pdf: %w", err)
	}
	if err := WritePDF(f, doc, tpl, ph.Project.Metadata, opt); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("write pdf: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close pdf: %w", err)
	}
	return outPath, nil
}
