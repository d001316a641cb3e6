/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package autocorrect runs the per-keystroke text corrections of the screenplay editor:
// first letter capitalization, sentence start capitalization and double space collapsing.
package autocorrect

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"goscriptwriter/internal/blockstyle"
	"goscriptwriter/internal/textdoc"
)

// Text is the part of the document the corrector edits. Offsets are in runes.
type Text interface {
	Tag(b textdoc.BlockID) blockstyle.Type
	Text(b textdoc.BlockID) string
	InsertText(b textdoc.BlockID, off int, s string)
	DeleteText(b textdoc.BlockID, off, n int)
	BeginEdit()
	EndEdit()
	Cursor() textdoc.Position
}

// AbbreviationChecker decides whether text ends with an abbreviation, in which case the
// following word does not start a sentence.
type AbbreviationChecker interface {
	EndsWithAbbreviation(text string) bool
}

// NoAbbreviations never vetoes capitalization.
type NoAbbreviations struct{}

func (NoAbbreviations) EndsWithAbbreviation(string) bool { return false }

// Options toggle individual corrections. The zero value disables sentence capitalization
// and space collapsing; use DefaultOptions for the editor defaults.
type Options struct {
	CapitalizeSentences bool
	CollapseSpaces      bool
	Abbreviations       AbbreviationChecker
}

// DefaultOptions enables every correction without an abbreviation dictionary.
func DefaultOptions() Options {
	return Options{CapitalizeSentences: true, CollapseSpaces: true, Abbreviations: NoAbbreviations{}}
}

// Corrector is owned by one editor view and is not safe for concurrent use.
type Corrector struct {
	opts  Options
	upper cases.Caser
}

// New returns a corrector.
func New(opts Options) *Corrector {
	if opts.Abbreviations == nil {
		opts.Abbreviations = NoAbbreviations{}
	}
	return &Corrector{opts: opts, upper: cases.Upper(language.Und)}
}

// OnKeystroke corrects the text just typed. inserted has already landed in front of the
// cursor. The checks run in a fixed order inside one edit:
//
//  1. the block holds only inserted, or its style prefix followed by inserted: the first
//     letter is uppercased if the style asks for it
//  2. otherwise, inserted follows ". ", "? " or "! " and no abbreviation precedes: the
//     first letter is uppercased
//  3. the text before the cursor ends with two spaces: the last one is removed
//
// Only input containing non-space characters triggers the first two checks.
// It reports whether the document was changed.
func (c *Corrector) OnKeystroke(doc Text, tpl *blockstyle.Template, inserted string) bool {
	if inserted == "" {
		return false
	}
	b := doc.Cursor().Block
	if b == textdoc.NoBlock {
		return false
	}
	style := tpl.Style(doc.Tag(b))
	changed := false

	doc.BeginEdit()
	defer doc.EndEdit()

	if hasText(inserted) {
		before := textBeforeCursor(doc)
		switch {
		case before == inserted || before == style.Prefix+inserted:
			if style.FirstUppercase {
				changed = c.replaceTyped(doc, inserted)
			}
		case c.opts.CapitalizeSentences && startsSentence(before, inserted):
			rest := strings.TrimSuffix(before, inserted)
			if !c.opts.Abbreviations.EndsWithAbbreviation(strings.TrimRight(rest, " ")) {
				changed = c.replaceTyped(doc, inserted)
			}
		}
	}

	if c.opts.CollapseSpaces && strings.HasSuffix(textBeforeCursor(doc), "  ") {
		cur := doc.Cursor()
		doc.DeleteText(cur.Block, cur.Offset-1, 1)
		changed = true
	}
	return changed
}

// replaceTyped swaps the typed text in front of the cursor for its first-uppercase form.
func (c *Corrector) replaceTyped(doc Text, inserted string) bool {
	fixed := c.upperFirst(inserted)
	if fixed == inserted {
		return false
	}
	cur := doc.Cursor()
	n := utf8.RuneCountInString(inserted)
	doc.DeleteText(cur.Block, cur.Offset-n, n)
	doc.InsertText(cur.Block, cur.Offset-n, fixed)
	return true
}

func (c *Corrector) upperFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return c.upper.String(string(r)) + s[size:]
}

func textBeforeCursor(doc Text) string {
	cur := doc.Cursor()
	runes := []rune(doc.Text(cur.Block))
	return string(runes[:min(max(cur.Offset, 0), len(runes))])
}

func hasText(s string) bool {
	return strings.IndexFunc(s, func(r rune) bool { return !unicode.IsSpace(r) }) >= 0
}

func startsSentence(before, inserted string) bool {
	re, err := regexp.Compile(`[.?!] ` + regexp.QuoteMeta(inserted) + `$`)
	if err != nil {
		return false
	}
	return re.MatchString(before)
}
