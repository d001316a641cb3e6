/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package navigator derives the outline of a screenplay (folders, scene groups and
// scenes) from its linear block sequence.
package navigator

import (
	"strings"

	"goscriptwriter/internal/blockstyle"
	"goscriptwriter/internal/textdoc"
)

// Source is the read-only view of a document the builder needs.
type Source interface {
	First() textdoc.BlockID
	Next(b textdoc.BlockID) textdoc.BlockID
	Tag(b textdoc.BlockID) blockstyle.Type
	Text(b textdoc.BlockID) string
}

// ItemID indexes an item inside its Tree. The root is always 0.
type ItemID int

const (
	// Root is the invisible top item owning every other item.
	Root ItemID = 0
	// NoItem is returned for missing parents and children.
	NoItem ItemID = -1
)

type item struct {
	header   textdoc.BlockID
	end      textdoc.BlockID
	parent   ItemID
	children []ItemID
	number   int
}

// Tree is an immutable outline snapshot. Items live in an arena; parents are plain
// indices, children are owned in document order.
type Tree struct {
	src   Source
	items []item
	order map[textdoc.BlockID]int
}

// Rebuild scans src once and builds a fresh outline.
//
// Group and folder headers open a nested item that is closed by the matching footer.
// Scene headings open a leaf under the innermost open group; a leaf ends at the block
// before the next scene heading, group header or closing footer. Items still open at
// the end of the document end at its last block. Scenes are numbered from 1 in
// document order.
func Rebuild(src Source, tpl *blockstyle.Template) *Tree {
	t := &Tree{
		src:   src,
		items: []item{{header: textdoc.NoBlock, end: textdoc.NoBlock, parent: NoItem}},
		order: make(map[textdoc.BlockID]int),
	}
	stack := []ItemID{Root}
	leaf := NoItem
	scenes := 0
	prev := textdoc.NoBlock

	closeLeaf := func(end textdoc.BlockID) {
		if leaf == NoItem {
			return
		}
		if end == textdoc.NoBlock {
			end = t.items[leaf].header
		}
		t.items[leaf].end = end
		leaf = NoItem
	}

	for b, i := src.First(), 0; b != textdoc.NoBlock; b, i = src.Next(b), i+1 {
		t.order[b] = i
		typ := src.Tag(b)
		style := tpl.Style(typ)
		switch {
		case style.IsEmbeddableHeader():
			closeLeaf(prev)
			id := t.add(stack[len(stack)-1], b)
			stack = append(stack, id)
		case style.IsEmbeddableFooter():
			depth := -1
			for j := len(stack) - 1; j > 0; j-- {
				if tpl.Style(src.Tag(t.items[stack[j]].header)).FooterType == typ {
					depth = j
					break
				}
			}
			if depth < 0 {
				break
			}
			closeLeaf(prev)
			for j := len(stack) - 1; j > depth; j-- {
				t.items[stack[j]].end = prev
			}
			t.items[stack[depth]].end = b
			stack = stack[:depth]
		case typ == blockstyle.SceneHeading:
			closeLeaf(prev)
			leaf = t.add(stack[len(stack)-1], b)
			scenes++
			t.items[leaf].number = scenes
		}
		prev = b
	}

	closeLeaf(prev)
	for j := len(stack) - 1; j > 0; j-- {
		t.items[stack[j]].end = prev
	}
	return t
}

func (t *Tree) add(parent ItemID, header textdoc.BlockID) ItemID {
	id := ItemID(len(t.items))
	t.items = append(t.items, item{header: header, end: textdoc.NoBlock, parent: parent})
	t.items[parent].children = append(t.items[parent].children, id)
	return id
}

func (t *Tree) valid(id ItemID) bool { return id >= 0 && int(id) < len(t.items) }

// Len returns the number of items, root included.
func (t *Tree) Len() int { return len(t.items) }

// Root returns the root item.
func (t *Tree) Root() ItemID { return Root }

// Parent returns the parent of id, NoItem for the root.
func (t *Tree) Parent(id ItemID) ItemID {
	if !t.valid(id) {
		return NoItem
	}
	return t.items[id].parent
}

// Children returns the children of id in document order.
func (t *Tree) Children(id ItemID) []ItemID {
	if !t.valid(id) {
		return nil
	}
	return append([]ItemID(nil), t.items[id].children...)
}

// ChildCount returns the number of children of id.
func (t *Tree) ChildCount(id ItemID) int {
	if !t.valid(id) {
		return 0
	}
	return len(t.items[id].children)
}

// ChildAt returns the child at row, or NoItem.
func (t *Tree) ChildAt(id ItemID, row int) ItemID {
	if !t.valid(id) || row < 0 || row >= len(t.items[id].children) {
		return NoItem
	}
	return t.items[id].children[row]
}

// RowOfChild returns the row of child below id, or -1.
func (t *Tree) RowOfChild(id, child ItemID) int {
	if !t.valid(id) {
		return -1
	}
	for i, c := range t.items[id].children {
		if c == child {
			return i
		}
	}
	return -1
}

// HeaderBlock returns the block that starts id.
func (t *Tree) HeaderBlock(id ItemID) textdoc.BlockID {
	if !t.valid(id) {
		return textdoc.NoBlock
	}
	return t.items[id].header
}

// EndBlock returns the last block belonging to id.
func (t *Tree) EndBlock(id ItemID) textdoc.BlockID {
	if !t.valid(id) {
		return textdoc.NoBlock
	}
	return t.items[id].end
}

// IsFolder reports whether id is shown as a folder: its header is a folder header or it
// has children. Everything else is a scene.
func (t *Tree) IsFolder(id ItemID) bool {
	if !t.valid(id) || id == Root {
		return false
	}
	it := t.items[id]
	return t.src.Tag(it.header) == blockstyle.FolderHeader || len(it.children) > 0
}

// Header returns the text of the header block.
func (t *Tree) Header(id ItemID) string {
	if !t.valid(id) || id == Root {
		return ""
	}
	return t.src.Text(t.items[id].header)
}

// Description joins the non-empty texts of the blocks after the header up to and
// including the end block with single spaces.
func (t *Tree) Description(id ItemID) string {
	if !t.valid(id) || id == Root {
		return ""
	}
	it := t.items[id]
	if it.header == it.end || it.end == textdoc.NoBlock {
		return ""
	}
	var parts []string
	for b := t.src.Next(it.header); b != textdoc.NoBlock; b = t.src.Next(b) {
		if s := strings.TrimSpace(t.src.Text(b)); s != "" {
			parts = append(parts, s)
		}
		if b == it.end {
			break
		}
	}
	return strings.Join(parts, " ")
}

// Number returns the scene number of a scene heading item, 0 for other items.
func (t *Tree) Number(id ItemID) int {
	if !t.valid(id) {
		return 0
	}
	return t.items[id].number
}

// Walk visits all items below the root in document order. Returning false from fn skips
// the children of that item.
func (t *Tree) Walk(fn func(id ItemID, depth int) bool) {
	var visit func(id ItemID, depth int)
	visit = func(id ItemID, depth int) {
		for _, c := range t.items[id].children {
			if fn(c, depth) {
				visit(c, depth+1)
			}
		}
	}
	visit(Root, 0)
}

// ItemAt returns the innermost item whose block range contains b, or NoItem.
func (t *Tree) ItemAt(b textdoc.BlockID) ItemID {
	pos, ok := t.order[b]
	if !ok {
		return NoItem
	}
	found := NoItem
	t.Walk(func(id ItemID, _ int) bool {
		it := t.items[id]
		start, end := t.order[it.header], t.order[it.end]
		if pos < start || pos > end {
			return false
		}
		found = id
		return true
	})
	return found
}
