/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package script

import (
	"bufio"
	"io"
	"regexp"
	"strings"
	"unicode"

	"goscriptwriter/internal/blockstyle"
	"goscriptwriter/internal/textdoc"
)

var (
	reScene      = regexp.MustCompile(`^(?i)(INT|EXT|EST|INT\.?/EXT|I/E)[\. ]`)
	reSection    = regexp.MustCompile(`^(#+)\s*(.*)$`)
	reTitle      = regexp.MustCompile(`^(?i)title:\s*(.+)$`)
	reName       = regexp.MustCompile(`^([A-Z0-9_\-\. ']{1,64}):\s*(.+)$`)
	reTransition = regexp.MustCompile(`^([A-Z ]+ TO:|FADE OUT\.|FADE IN:|CUT TO BLACK\.)$`)
	reNote       = regexp.MustCompile(`^\[\[(.*)\]\]$`)
)

// Parse detects block types in a plain-text screenplay.
//
// Supported conventions:
//   - "# Name" opens a folder, "## Name" a scene group; a section closes every open section at
//     the same or a deeper level, and everything still open is closed at the end of input
//   - "Title: X" before the first scene becomes a title
//   - scene headings start with INT., EXT., EST., INT./EXT. or I/E; a leading "." forces one
//   - an all caps line followed by text, or "NAME: text", starts dialogue; "@Name" forces a
//     character; inside dialogue "(...)" lines are parentheticals
//   - "> TEXT", "FADE OUT." and all caps lines ending in "TO:" are transitions
//   - "[[text]]" and "; text" are notes, "~text" is lyrics
//   - lines indented by 2+ spaces continue the previous action or dialogue
//
// Everything else is action.
func Parse(input string) ([]Line, []Error) {
	var raw []string
	var errs []Error
	scanner := bufio.NewScanner(strings.NewReader(input))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		raw = append(raw, strings.TrimRight(scanner.Text(), "\r\n"))
	}
	if err := scanner.Err(); err != nil {
		errs = append(errs, Error{Line: len(raw) + 1, Column: 1, Message: err.Error()})
	}

	p := &parser{}
	for i, line := range raw {
		next := ""
		if i+1 < len(raw) {
			next = strings.TrimSpace(raw[i+1])
		}
		if e := p.line(i+1, line, next); e != nil {
			errs = append(errs, *e)
		}
	}
	p.closeSections(1)
	return p.out, errs
}

type parser struct {
	out        []Line
	open       []blockstyle.Type // section footers still to emit, innermost last
	levels     []int
	inDialogue bool
	sawScene   bool
}

func (p *parser) emit(t blockstyle.Type, text string, lineNo int) {
	p.out = append(p.out, Line{Type: t, Text: text, LineNo: lineNo})
}

// closeSections emits footers for every open section at level or deeper.
func (p *parser) closeSections(level int) {
	for len(p.levels) > 0 && p.levels[len(p.levels)-1] >= level {
		n := len(p.open) - 1
		p.emit(p.open[n], "", 0)
		p.open, p.levels = p.open[:n], p.levels[:n]
	}
}

func (p *parser) line(lineNo int, line, next string) *Error {
	trim := strings.TrimSpace(line)
	if trim == "" {
		p.inDialogue = false
		return nil
	}

	if strings.HasPrefix(line, "  ") && len(p.out) > 0 {
		last := &p.out[len(p.out)-1]
		if last.Type == blockstyle.Action || last.Type == blockstyle.Dialog {
			last.Text += " " + trim
			return nil
		}
	}

	if m := reSection.FindStringSubmatch(trim); m != nil {
		level := len(m[1])
		p.closeSections(level)
		header, footer := blockstyle.FolderHeader, blockstyle.FolderFooter
		if level > 1 {
			header, footer = blockstyle.SceneGroupHeader, blockstyle.SceneGroupFooter
		}
		p.emit(header, strings.TrimSpace(m[2]), lineNo)
		p.open = append(p.open, footer)
		p.levels = append(p.levels, level)
		p.inDialogue = false
		return nil
	}

	if p.inDialogue {
		if strings.HasPrefix(trim, "(") && strings.HasSuffix(trim, ")") {
			p.emit(blockstyle.Parenthetical, strings.TrimSpace(trim[1:len(trim)-1]), lineNo)
		} else {
			p.emit(blockstyle.Dialog, trim, lineNo)
		}
		return nil
	}

	switch {
	case !p.sawScene && reTitle.MatchString(trim):
		p.emit(blockstyle.Title, reTitle.FindStringSubmatch(trim)[1], lineNo)
	case strings.HasPrefix(trim, ".") && !strings.HasPrefix(trim, ".."):
		p.sawScene = true
		p.emit(blockstyle.SceneHeading, strings.TrimSpace(trim[1:]), lineNo)
	case reScene.MatchString(trim):
		p.sawScene = true
		p.emit(blockstyle.SceneHeading, trim, lineNo)
	case strings.HasPrefix(trim, ">") && !strings.HasSuffix(trim, "<"):
		p.emit(blockstyle.Transition, strings.TrimSpace(trim[1:]), lineNo)
	case reTransition.MatchString(trim):
		p.emit(blockstyle.Transition, trim, lineNo)
	case reNote.MatchString(trim):
		p.emit(blockstyle.Note, strings.TrimSpace(reNote.FindStringSubmatch(trim)[1]), lineNo)
	case strings.HasPrefix(trim, ";"):
		p.emit(blockstyle.Note, strings.TrimSpace(trim[1:]), lineNo)
	case strings.HasPrefix(trim, "~"):
		p.emit(blockstyle.Lyrics, strings.TrimSpace(trim[1:]), lineNo)
	case strings.HasPrefix(trim, "@"):
		p.emit(blockstyle.Character, strings.TrimSpace(trim[1:]), lineNo)
		p.inDialogue = true
	case reName.MatchString(trim) && isUpper(reName.FindStringSubmatch(trim)[1]):
		m := reName.FindStringSubmatch(trim)
		p.emit(blockstyle.Character, strings.TrimSpace(m[1]), lineNo)
		p.emit(blockstyle.Dialog, strings.TrimSpace(m[2]), lineNo)
		p.inDialogue = true
	case isUpper(trim) && next != "":
		p.emit(blockstyle.Character, trim, lineNo)
		p.inDialogue = true
	case strings.HasPrefix(trim, "(") && strings.HasSuffix(trim, ")"):
		p.emit(blockstyle.Action, trim, lineNo)
		return &Error{Line: lineNo, Column: strings.Index(line, "(") + 1, Message: "parenthetical outside dialogue imported as action"}
	default:
		p.emit(blockstyle.Action, trim, lineNo)
	}
	return nil
}

// LooksLikeSceneHeading reports whether s is detected as a scene heading without a forcing ".".
func LooksLikeSceneHeading(s string) bool { return reScene.MatchString(strings.TrimSpace(s)) }

// LooksLikeCue reports whether s reads as a character cue when followed by dialogue.
func LooksLikeCue(s string) bool { return isUpper(strings.TrimSpace(s)) }

// isUpper reports whether s has at least one letter and no lower case letters.
// A trailing extension like "(V.O.)" or "(cont'd)" is ignored.
func isUpper(s string) bool {
	if i := strings.Index(s, "("); i > 0 {
		s = s[:i]
	}
	letters := 0
	for _, r := range s {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsLetter(r) {
			letters++
		}
	}
	return letters > 0
}

// Build turns detected lines into a document decorated with tpl: prefixes and postfixes
// surround the text and styles with a header get their header block in front.
func Build(lines []Line, tpl *blockstyle.Template) *textdoc.Document {
	blocks := make([]textdoc.Block, 0, len(lines))
	for _, l := range lines {
		st := tpl.Style(l.Type)
		if st.HasHeader() {
			blocks = append(blocks, textdoc.Block{Type: st.HeaderType, Text: st.HeaderText})
		}
		blocks = append(blocks, textdoc.Block{Type: l.Type, Text: st.Prefix + l.Text + st.Postfix})
	}
	if len(blocks) == 0 {
		return textdoc.New()
	}
	return textdoc.FromBlocks(blocks...)
}

// Import reads a plain-text screenplay from r and builds a document with tpl.
// Parse problems are returned alongside the document; the error is only set for read failures.
func Import(r io.Reader, tpl *blockstyle.Template) (*textdoc.Document, []Error, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, err
	}
	lines, perrs := Parse(string(b))
	return Build(lines, tpl), perrs, nil
}
