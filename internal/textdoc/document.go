/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package textdoc is an in-memory structured text document: a linked sequence of blocks,
// each carrying rune text and a block style tag, plus a cursor and edit transactions.
//
// Block identities are arena indices and stay stable for the lifetime of the document
// (until Restore replaces its content). The style tag lives in a side table keyed by
// block identity.
package textdoc

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"goscriptwriter/internal/blockstyle"
)

// BlockID identifies a block inside one document.
type BlockID int

// NoBlock is returned by navigation at either end of the document.
const NoBlock BlockID = -1

// Position is a cursor location: a block and a rune offset inside its text.
type Position struct {
	Block  BlockID
	Offset int
}

// History receives the document state captured before each outermost edit.
type History interface {
	Record(docID string, before []byte, ts time.Time)
}

// Change describes a committed edit transaction.
type Change struct {
	// Structural is set when blocks were added, removed or retagged.
	Structural bool
}

// ErrInTransaction is returned by operations that need a settled document.
var ErrInTransaction = errors.New("textdoc: edit transaction in progress")

type block struct {
	text  []rune
	prev  BlockID
	next  BlockID
	alive bool
}

// Document is not safe for concurrent use; hosts drive it from one goroutine.
type Document struct {
	id     string
	blocks []block
	tags   map[BlockID]blockstyle.Type
	first  BlockID
	last   BlockID
	count  int
	cursor Position

	depth      int
	dirty      bool
	structural bool
	before     []byte

	history   History
	observers []func(Change)
}

// New returns a document with one empty untagged block and a fresh id.
func New() *Document { return NewWithID(uuid.NewString()) }

// NewWithID returns an empty document with the given id.
func NewWithID(id string) *Document {
	d := &Document{id: id}
	d.reset()
	return d
}

func (d *Document) reset() {
	d.blocks = d.blocks[:0]
	d.tags = make(map[BlockID]blockstyle.Type)
	d.blocks = append(d.blocks, block{prev: NoBlock, next: NoBlock, alive: true})
	d.first, d.last, d.count = 0, 0, 1
	d.cursor = Position{Block: 0}
}

// ID returns the document identifier.
func (d *Document) ID() string { return d.id }

// SetHistory installs the history collaborator. Nil disables recording.
func (d *Document) SetHistory(h History) { d.history = h }

// OnChange registers fn to be called after every committed transaction.
// The returned function removes the registration.
func (d *Document) OnChange(fn func(Change)) (cancel func()) {
	d.observers = append(d.observers, fn)
	idx := len(d.observers) - 1
	return func() {
		if idx < len(d.observers) {
			d.observers[idx] = nil
		}
	}
}

// Len returns the number of blocks.
func (d *Document) Len() int { return d.count }

// First returns the first block. A document always has at least one block.
func (d *Document) First() BlockID { return d.first }

// Last returns the last block.
func (d *Document) Last() BlockID { return d.last }

// Valid reports whether b names a live block.
func (d *Document) Valid(b BlockID) bool {
	return b >= 0 && int(b) < len(d.blocks) && d.blocks[b].alive
}

// Next returns the block after b, or NoBlock.
func (d *Document) Next(b BlockID) BlockID {
	if !d.Valid(b) {
		return NoBlock
	}
	return d.blocks[b].next
}

// Prev returns the block before b, or NoBlock.
func (d *Document) Prev(b BlockID) BlockID {
	if !d.Valid(b) {
		return NoBlock
	}
	return d.blocks[b].prev
}

// Blocks returns all blocks in document order.
func (d *Document) Blocks() []BlockID {
	out := make([]BlockID, 0, d.count)
	for b := d.first; b != NoBlock; b = d.blocks[b].next {
		out = append(out, b)
	}
	return out
}

// Tag returns the style tag of b, Undefined if unset or b is not a block.
func (d *Document) Tag(b BlockID) blockstyle.Type { return d.tags[b] }

// SetTag attaches typ to b.
func (d *Document) SetTag(b BlockID, typ blockstyle.Type) {
	if !d.Valid(b) || d.tags[b] == typ {
		return
	}
	d.mutate(true, func() {
		if typ == blockstyle.Undefined {
			delete(d.tags, b)
		} else {
			d.tags[b] = typ
		}
	})
}

// Text returns the text of b.
func (d *Document) Text(b BlockID) string {
	if !d.Valid(b) {
		return ""
	}
	return string(d.blocks[b].text)
}

// TextLen returns the length of b in runes.
func (d *Document) TextLen(b BlockID) int {
	if !d.Valid(b) {
		return 0
	}
	return len(d.blocks[b].text)
}

// SetText replaces the text of b. A cursor inside b is clamped to the new length.
func (d *Document) SetText(b BlockID, s string) {
	if !d.Valid(b) {
		return
	}
	d.mutate(false, func() {
		d.blocks[b].text = []rune(s)
		if d.cursor.Block == b && d.cursor.Offset > len(d.blocks[b].text) {
			d.cursor.Offset = len(d.blocks[b].text)
		}
	})
}

// InsertBlockBefore links a new block carrying tag and text in front of b.
func (d *Document) InsertBlockBefore(b BlockID, tag blockstyle.Type, text string) BlockID {
	if !d.Valid(b) {
		return NoBlock
	}
	id := d.alloc(tag, text)
	d.mutate(true, func() {
		prev := d.blocks[b].prev
		d.blocks[id].prev, d.blocks[id].next = prev, b
		d.blocks[b].prev = id
		if prev == NoBlock {
			d.first = id
		} else {
			d.blocks[prev].next = id
		}
		d.count++
	})
	return id
}

// InsertBlockAfter links a new block carrying tag and text behind b.
func (d *Document) InsertBlockAfter(b BlockID, tag blockstyle.Type, text string) BlockID {
	if !d.Valid(b) {
		return NoBlock
	}
	id := d.alloc(tag, text)
	d.mutate(true, func() {
		next := d.blocks[b].next
		d.blocks[id].prev, d.blocks[id].next = b, next
		d.blocks[b].next = id
		if next == NoBlock {
			d.last = id
		} else {
			d.blocks[next].prev = id
		}
		d.count++
	})
	return id
}

func (d *Document) alloc(tag blockstyle.Type, text string) BlockID {
	id := BlockID(len(d.blocks))
	d.blocks = append(d.blocks, block{text: []rune(text), prev: NoBlock, next: NoBlock, alive: true})
	if tag != blockstyle.Undefined {
		d.tags[id] = tag
	}
	return id
}

// DeleteBlock unlinks b together with the separator that joined it to its neighbours.
// Deleting the only block clears it instead. A cursor inside b moves to the start of the
// following block, or the end of the preceding one.
func (d *Document) DeleteBlock(b BlockID) {
	if !d.Valid(b) {
		return
	}
	if d.count == 1 {
		d.mutate(true, func() {
			d.blocks[b].text = nil
			delete(d.tags, b)
			d.cursor = Position{Block: b}
		})
		return
	}
	d.mutate(true, func() {
		prev, next := d.blocks[b].prev, d.blocks[b].next
		if prev == NoBlock {
			d.first = next
		} else {
			d.blocks[prev].next = next
		}
		if next == NoBlock {
			d.last = prev
		} else {
			d.blocks[next].prev = prev
		}
		d.blocks[b] = block{prev: NoBlock, next: NoBlock}
		delete(d.tags, b)
		d.count--
		if d.cursor.Block == b {
			if next != NoBlock {
				d.cursor = Position{Block: next}
			} else {
				d.cursor = Position{Block: prev, Offset: len(d.blocks[prev].text)}
			}
		}
	})
}

// InsertText inserts s into b at rune offset off (clamped to the block).
// A cursor in b at or after off moves along with the text.
func (d *Document) InsertText(b BlockID, off int, s string) {
	if !d.Valid(b) || s == "" {
		return
	}
	ins := []rune(s)
	d.mutate(false, func() {
		txt := d.blocks[b].text
		off = clamp(off, 0, len(txt))
		out := make([]rune, 0, len(txt)+len(ins))
		out = append(out, txt[:off]...)
		out = append(out, ins...)
		out = append(out, txt[off:]...)
		d.blocks[b].text = out
		if d.cursor.Block == b && d.cursor.Offset >= off {
			d.cursor.Offset += len(ins)
		}
	})
}

// DeleteText removes n runes from b starting at off. Out of range parts are ignored.
func (d *Document) DeleteText(b BlockID, off, n int) {
	if !d.Valid(b) || n <= 0 {
		return
	}
	txt := d.blocks[b].text
	off = clamp(off, 0, len(txt))
	end := clamp(off+n, off, len(txt))
	if end == off {
		return
	}
	d.mutate(false, func() {
		d.blocks[b].text = append(txt[:off:off], txt[end:]...)
		if d.cursor.Block == b {
			switch {
			case d.cursor.Offset >= end:
				d.cursor.Offset -= end - off
			case d.cursor.Offset > off:
				d.cursor.Offset = off
			}
		}
	})
}

// Cursor returns the current cursor position.
func (d *Document) Cursor() Position { return d.cursor }

// SetCursor moves the cursor. Invalid blocks are ignored; offsets are clamped.
func (d *Document) SetCursor(p Position) {
	if !d.Valid(p.Block) {
		return
	}
	p.Offset = clamp(p.Offset, 0, len(d.blocks[p.Block].text))
	d.cursor = p
}

// BlockAt returns the block containing absolute position pos. Positions count runes of
// all blocks plus one separator between neighbouring blocks. Positions past the end
// resolve to the last block.
func (d *Document) BlockAt(pos int) BlockID {
	if pos < 0 {
		return NoBlock
	}
	for b := d.first; b != NoBlock; b = d.blocks[b].next {
		n := len(d.blocks[b].text)
		if pos <= n {
			return b
		}
		pos -= n + 1
	}
	return d.last
}

// PositionOf returns the absolute position of the first rune of b, or -1.
func (d *Document) PositionOf(b BlockID) int {
	if !d.Valid(b) {
		return -1
	}
	pos := 0
	for cur := d.first; cur != b; cur = d.blocks[cur].next {
		pos += len(d.blocks[cur].text) + 1
	}
	return pos
}

// AbsoluteCursor returns the cursor as an absolute position.
func (d *Document) AbsoluteCursor() int { return d.PositionOf(d.cursor.Block) + d.cursor.Offset }

// PlainText joins all block texts with newlines.
func (d *Document) PlainText() string {
	var sb strings.Builder
	for b := d.first; b != NoBlock; b = d.blocks[b].next {
		if b != d.first {
			sb.WriteByte('\n')
		}
		sb.WriteString(string(d.blocks[b].text))
	}
	return sb.String()
}

// BeginEdit opens a transaction. Transactions nest; only the outermost EndEdit commits.
func (d *Document) BeginEdit() {
	if d.depth == 0 {
		d.dirty, d.structural = false, false
		d.before = nil
		if d.history != nil {
			d.before = d.Snapshot()
		}
	}
	d.depth++
}

// EndEdit closes a transaction. The outermost call records history and notifies
// observers if anything changed.
func (d *Document) EndEdit() {
	if d.depth == 0 {
		return
	}
	d.depth--
	if d.depth > 0 || !d.dirty {
		return
	}
	if d.history != nil && d.before != nil {
		d.history.Record(d.id, d.before, time.Now())
	}
	d.before = nil
	d.notify(Change{Structural: d.structural})
}

// InEdit reports whether a transaction is open.
func (d *Document) InEdit() bool { return d.depth > 0 }

func (d *Document) mutate(structural bool, fn func()) {
	d.BeginEdit()
	fn()
	d.dirty = true
	d.structural = d.structural || structural
	d.EndEdit()
}

func (d *Document) notify(c Change) {
	for _, fn := range d.observers {
		if fn != nil {
			fn(c)
		}
	}
}

// Restore replaces the whole content with a snapshot produced by Snapshot. It is not
// recorded in history; observers see a structural change.
func (d *Document) Restore(blob []byte) error {
	if d.depth > 0 {
		return ErrInTransaction
	}
	var w wireDoc
	if err := w.unmarshal(blob); err != nil {
		return fmt.Errorf("restore document: %w", err)
	}
	d.load(w)
	d.notify(Change{Structural: true})
	return nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
