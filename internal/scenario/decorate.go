/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package scenario

import (
	"strings"
	"unicode/utf8"

	"goscriptwriter/internal/blockstyle"
	"goscriptwriter/internal/textdoc"
)

// ApplyStyle tags b with t and adds the decoration the style requires: prefix and postfix
// unless already present, a header block in front of b and, for group headers, a footer
// block after it. A cursor inside b keeps its place relative to the original text.
//
// Reapplying the type b already has does not duplicate anything.
func (e *Engine) ApplyStyle(b textdoc.BlockID, t blockstyle.Type) {
	tpl := e.template()
	style := tpl.Style(t)
	prev := Classify(e.doc, b)

	e.doc.BeginEdit()
	defer e.doc.EndEdit()

	e.doc.SetTag(b, t)
	e.decorate(b, style)

	if style.HasHeader() && Classify(e.doc, e.doc.Prev(b)) != style.HeaderType {
		hs := tpl.Style(style.HeaderType)
		h := e.doc.InsertBlockBefore(b, style.HeaderType, style.HeaderText)
		e.decorate(h, hs)
	}

	if style.IsEmbeddableHeader() {
		if prev == t {
			if _, ok := findFooter(e.doc, style, b); ok {
				return
			}
		}
		f := e.doc.InsertBlockAfter(b, style.FooterType, "")
		e.decorate(f, tpl.Style(style.FooterType))
	}
}

// decorate inserts missing prefix and postfix text, keeping the cursor in place.
func (e *Engine) decorate(b textdoc.BlockID, style blockstyle.Style) {
	if !style.HasDecoration() {
		return
	}
	text := e.doc.Text(b)
	cur := e.doc.Cursor()
	if style.Prefix != "" && !strings.HasPrefix(text, style.Prefix) {
		e.doc.InsertText(b, 0, style.Prefix)
		if cur.Block == b {
			cur.Offset += utf8.RuneCountInString(style.Prefix)
		}
	}
	if style.Postfix != "" && !strings.HasSuffix(text, style.Postfix) {
		e.doc.InsertText(b, utf8.RuneCountInString(e.doc.Text(b)), style.Postfix)
	}
	if cur.Block == b {
		e.doc.SetCursor(cur)
	}
}

// RemoveStyle undoes what ApplyStyle added for the current type of b: the matching group
// footer, the header block in front of b and the literal prefix and postfix. The tag is
// cleared. A missing footer is logged and reported to observers; the remaining steps still
// run.
func (e *Engine) RemoveStyle(b textdoc.BlockID) {
	tpl := e.template()
	style := tpl.Style(Classify(e.doc, b))

	e.doc.BeginEdit()
	defer e.doc.EndEdit()

	if style.IsEmbeddableHeader() {
		if footer, ok := findFooter(e.doc, style, b); ok {
			e.doc.DeleteBlock(footer)
		} else {
			e.log.Warn("group footer not found", "block", int(b), "type", style.Type.String())
			e.emit(Event{Kind: UnbalancedGroup, Block: b, From: style.Type})
		}
	}

	if style.HasHeader() {
		if prev := e.doc.Prev(b); prev != textdoc.NoBlock && e.doc.Tag(prev) == style.HeaderType {
			e.doc.DeleteBlock(prev)
		}
	}

	if style.HasDecoration() {
		text := e.doc.Text(b)
		if style.Prefix != "" && strings.HasPrefix(text, style.Prefix) {
			n := utf8.RuneCountInString(style.Prefix)
			e.doc.DeleteText(b, 0, n)
			text = text[len(style.Prefix):]
		}
		if style.Postfix != "" && strings.HasSuffix(text, style.Postfix) {
			n := utf8.RuneCountInString(style.Postfix)
			e.doc.DeleteText(b, utf8.RuneCountInString(text)-n, n)
		}
	}

	e.doc.SetTag(b, blockstyle.Undefined)
}

// RestyleText changes the tag of b without touching decoration or neighbouring blocks.
func (e *Engine) RestyleText(b textdoc.BlockID, t blockstyle.Type) {
	old := Classify(e.doc, b)
	if old == t || b == textdoc.NoBlock {
		return
	}
	e.doc.SetTag(b, t)
	e.emit(Event{Kind: StyleChanged, Block: b, From: old, To: t})
}
