/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package scenario is the screenplay block style engine. It classifies blocks by their
// style tag, applies and removes per-style decoration (prefix, postfix, header block,
// group footer), resolves group headers to their footers and retypes blocks.
//
// The engine works against the Text interface; textdoc.Document is the implementation
// used by the application.
package scenario

import (
	"goscriptwriter/internal/blockstyle"
	"goscriptwriter/internal/textdoc"
)

// Text is the structured text the engine edits.
type Text interface {
	First() textdoc.BlockID
	Last() textdoc.BlockID
	Next(b textdoc.BlockID) textdoc.BlockID
	Prev(b textdoc.BlockID) textdoc.BlockID
	BlockAt(pos int) textdoc.BlockID
	PositionOf(b textdoc.BlockID) int

	Tag(b textdoc.BlockID) blockstyle.Type
	SetTag(b textdoc.BlockID, t blockstyle.Type)
	Text(b textdoc.BlockID) string

	InsertBlockBefore(b textdoc.BlockID, tag blockstyle.Type, text string) textdoc.BlockID
	InsertBlockAfter(b textdoc.BlockID, tag blockstyle.Type, text string) textdoc.BlockID
	DeleteBlock(b textdoc.BlockID)
	InsertText(b textdoc.BlockID, off int, s string)
	DeleteText(b textdoc.BlockID, off, n int)

	BeginEdit()
	EndEdit()

	Cursor() textdoc.Position
	SetCursor(p textdoc.Position)
}

// Snapshotter is implemented by texts that support whole-state undo.
type Snapshotter interface {
	ID() string
	Snapshot() []byte
	Restore(blob []byte) error
}

var _ Text = (*textdoc.Document)(nil)
var _ Snapshotter = (*textdoc.Document)(nil)

// Classify returns the style type of b. Untagged blocks and NoBlock are Undefined.
func Classify(doc Text, b textdoc.BlockID) blockstyle.Type {
	if b == textdoc.NoBlock {
		return blockstyle.Undefined
	}
	return doc.Tag(b)
}
