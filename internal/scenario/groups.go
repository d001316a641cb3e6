/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package scenario

import (
	"errors"

	"goscriptwriter/internal/blockstyle"
	"goscriptwriter/internal/textdoc"
)

// ErrUnbalancedGroup reports a group header without a matching footer.
var ErrUnbalancedGroup = errors.New("scenario: group header has no matching footer")

// ErrNotGroupHeader is returned by RetypeGroup for target types that do not open a group.
var ErrNotGroupHeader = errors.New("scenario: type is not a group header")

// FindMatchingFooter scans forward from header for the footer that closes it. Nested
// groups of the same header type are skipped by depth counting. It returns false when
// header is not a group header or the document ends first.
func FindMatchingFooter(doc Text, tpl *blockstyle.Template, header textdoc.BlockID) (textdoc.BlockID, bool) {
	style := tpl.Style(Classify(doc, header))
	if !style.IsEmbeddableHeader() {
		return textdoc.NoBlock, false
	}
	return findFooter(doc, style, header)
}

func findFooter(doc Text, header blockstyle.Style, from textdoc.BlockID) (textdoc.BlockID, bool) {
	depth := 0
	for b := doc.Next(from); b != textdoc.NoBlock; b = doc.Next(b) {
		switch doc.Tag(b) {
		case header.FooterType:
			if depth == 0 {
				return b, true
			}
			depth--
		case header.Type:
			depth++
		}
	}
	return textdoc.NoBlock, false
}

// RetypeGroup changes a group header to another group header type in place and retags its
// footer to the new footer type. Text and nested content are left alone. When no footer
// is found the header keeps its new type and ErrUnbalancedGroup is returned.
func (e *Engine) RetypeGroup(header textdoc.BlockID, t blockstyle.Type) error {
	tpl := e.template()
	oldStyle := tpl.Style(Classify(e.doc, header))
	newStyle := tpl.Style(t)
	if !newStyle.IsEmbeddableHeader() {
		return ErrNotGroupHeader
	}

	e.doc.BeginEdit()
	defer e.doc.EndEdit()

	footer, ok := textdoc.NoBlock, false
	if oldStyle.IsEmbeddableHeader() {
		footer, ok = findFooter(e.doc, oldStyle, header)
	}
	e.doc.SetTag(header, t)
	if !ok {
		e.log.Warn("group footer not found", "block", int(header), "type", oldStyle.Type.String())
		e.emit(Event{Kind: UnbalancedGroup, Block: header, From: oldStyle.Type, To: t})
		return ErrUnbalancedGroup
	}
	e.doc.SetTag(footer, newStyle.FooterType)
	return nil
}
