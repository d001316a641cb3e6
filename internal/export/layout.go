/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"goscriptwriter/internal/blockstyle"
	"goscriptwriter/internal/textdoc"
)

// Page geometry in Courier 12pt columns and lines. The text area is 60 columns wide
// starting 1.5in from the left edge, with 54 lines between 1in top and bottom margins.
const (
	pageCols     = 60
	linesPerPage = 54

	cueCol     = 22
	parenCol   = 16
	parenCols  = 19
	dialogCol  = 10
	dialogCols = 35
)

type align int

const (
	alignLeft align = iota
	alignRight
	alignCenter
)

// line is one printed row. An empty text is a blank line.
type line struct {
	col    int
	text   string
	style  string // gofpdf font style: "", "B", "I", "U"
	align  align
	number string // scene number printed in both margins
}

type page struct {
	lines []line
}

// element is a block laid out into wrapped rows before pagination.
type element struct {
	typ    blockstyle.Type
	col    int
	rows   []string
	before int  // blank lines above, dropped at the top of a page
	keep   bool // must share a page with the first row of the next element
	style  string
	align  align
	number string
}

// layoutOptions selects what goes on the page.
type layoutOptions struct {
	notes        bool
	sections     bool
	sceneNumbers bool
}

func buildElements(blocks []textdoc.Block, opt layoutOptions) []element {
	var out []element
	scene := 0
	prev := blockstyle.Undefined
	for _, b := range blocks {
		e := element{typ: b.Type, before: 1}
		switch b.Type {
		case blockstyle.Title:
			continue
		case blockstyle.SceneHeading:
			scene++
			e.rows = wrap(strings.ToUpper(b.Text), pageCols)
			e.before, e.keep = 2, true
			if opt.sceneNumbers {
				e.number = strconv.Itoa(scene)
			}
		case blockstyle.Character:
			e.col = cueCol
			e.rows = wrap(strings.ToUpper(b.Text), pageCols-cueCol)
			e.keep = true
		case blockstyle.Parenthetical:
			e.col = parenCol
			e.rows = wrap("("+b.Text+")", parenCols)
			e.before, e.keep = 0, true
		case blockstyle.Dialog:
			e.col = dialogCol
			e.rows = wrap(b.Text, dialogCols)
			e.before = 0
		case blockstyle.Lyrics:
			e.col = dialogCol
			e.rows = wrap(b.Text, dialogCols)
			e.style = "I"
			if inDialogue(prev) || prev == blockstyle.Lyrics {
				e.before = 0
			}
		case blockstyle.Transition:
			e.rows = wrap(strings.ToUpper(b.Text), pageCols)
			e.align = alignRight
		case blockstyle.Note:
			if !opt.notes {
				continue
			}
			e.rows = wrap("["+b.Text+"]", pageCols)
			e.style = "I"
		case blockstyle.FolderHeader, blockstyle.SceneGroupHeader:
			if !opt.sections {
				continue
			}
			e.rows = wrap(strings.ToUpper(b.Text), pageCols)
			e.style, e.align, e.keep = "U", alignCenter, true
			if b.Type == blockstyle.FolderHeader {
				e.before = 2
			}
		default:
			e.rows = wrap(b.Text, pageCols)
		}
		prev = b.Type
		out = append(out, e)
	}
	return out
}

// wrap breaks s into rows of at most width runes at spaces. Words longer than a row are
// hard split.
func wrap(s string, width int) []string {
	var rows []string
	cur := ""
	for _, w := range strings.Fields(s) {
		for utf8.RuneCountInString(w) > width {
			if cur != "" {
				rows = append(rows, cur)
				cur = ""
			}
			r := []rune(w)
			rows = append(rows, string(r[:width]))
			w = string(r[width:])
		}
		switch {
		case cur == "":
			cur = w
		case utf8.RuneCountInString(cur)+1+utf8.RuneCountInString(w) <= width:
			cur += " " + w
		default:
			rows = append(rows, cur)
			cur = w
		}
	}
	if cur != "" {
		rows = append(rows, cur)
	}
	return rows
}

type paginator struct {
	pages   []page
	speaker string
}

func paginate(els []element) []page {
	p := &paginator{pages: []page{{}}}
	for i := range els {
		var next *element
		if i+1 < len(els) {
			next = &els[i+1]
		}
		p.place(els[i], next)
	}
	if n := len(p.pages); n > 1 && len(p.pages[n-1].lines) == 0 {
		p.pages = p.pages[:n-1]
	}
	return p.pages
}

func (p *paginator) cur() *page { return &p.pages[len(p.pages)-1] }
func (p *paginator) empty() bool { return len(p.cur().lines) == 0 }
func (p *paginator) free() int { return linesPerPage - len(p.cur().lines) }
func (p *paginator) newPage() { p.pages = append(p.pages, page{}) }

func (p *paginator) blank(n int) {
	for i := 0; i < n; i++ {
		p.cur().lines = append(p.cur().lines, line{})
	}
}

func (p *paginator) put(e element, rows []string) {
	if e.typ == blockstyle.Character && len(rows) > 0 {
		p.speaker = e.rows[0]
	}
	for i, r := range rows {
		l := line{col: e.col, text: r, style: e.style, align: e.align}
		if i == 0 {
			l.number = e.number
		}
		p.cur().lines = append(p.cur().lines, l)
	}
}

// place appends e, breaking pages as needed. Dialogue split across pages gets a (MORE)
// marker and a continued cue; action is split without markers; everything else moves to
// the next page whole unless it is taller than a page.
func (p *paginator) place(e element, next *element) {
	for {
		before := e.before
		if p.empty() {
			before = 0
		}
		need := before + len(e.rows)
		if e.keep && next != nil {
			need += next.before + 1
		}
		if need <= p.free() {
			p.blank(before)
			p.put(e, e.rows)
			return
		}
		avail := p.free() - before
		switch {
		case e.typ == blockstyle.Dialog && avail >= 3 && len(e.rows) > avail-1:
			n := avail - 1
			p.blank(before)
			p.put(e, e.rows[:n])
			p.cur().lines = append(p.cur().lines, line{col: cueCol, text: "(MORE)"})
			p.newPage()
			if p.speaker != "" {
				p.cur().lines = append(p.cur().lines, line{col: cueCol, text: p.speaker + " (CONT'D)"})
			}
			e.rows, e.before, e.number = e.rows[n:], 0, ""
		case e.typ == blockstyle.Action && avail >= 2 && len(e.rows) > avail:
			p.blank(before)
			p.put(e, e.rows[:avail])
			p.newPage()
			e.rows, e.before = e.rows[avail:], 0
		case p.empty():
			if len(e.rows) <= p.free() {
				p.put(e, e.rows)
				return
			}
			n := p.free()
			p.put(e, e.rows[:n])
			p.newPage()
			e.rows, e.number = e.rows[n:], ""
		default:
			p.newPage()
		}
	}
}
