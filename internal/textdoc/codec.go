/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package textdoc

import (
	"encoding/json"
	"fmt"
	"io"

	"goscriptwriter/internal/blockstyle"
)

// wireDoc is the JSON form of a document:
//
//	{"id": "...", "blocks": [{"type": "scene_heading", "text": "INT. ROOM"}], "cursor": {"block": 0, "offset": 3}}
//
// The cursor block is an index into blocks.
type wireDoc struct {
	ID     string      `json:"id"`
	Blocks []wireBlock `json:"blocks"`
	Cursor *wireCursor `json:"cursor,omitempty"`
}

type wireBlock struct {
	Type blockstyle.Type `json:"type"`
	Text string          `json:"text"`
}

type wireCursor struct {
	Block  int `json:"block"`
	Offset int `json:"offset"`
}

func (w *wireDoc) unmarshal(b []byte) error {
	if err := json.Unmarshal(b, w); err != nil {
		return err
	}
	for i, blk := range w.Blocks {
		if !blk.Type.Valid() {
			return fmt.Errorf("block %d: invalid type", i)
		}
	}
	return nil
}

func (d *Document) wire(withCursor bool) wireDoc {
	w := wireDoc{ID: d.id, Blocks: make([]wireBlock, 0, d.count)}
	i := 0
	for b := d.first; b != NoBlock; b = d.blocks[b].next {
		w.Blocks = append(w.Blocks, wireBlock{Type: d.tags[b], Text: string(d.blocks[b].text)})
		if withCursor && b == d.cursor.Block {
			w.Cursor = &wireCursor{Block: i, Offset: d.cursor.Offset}
		}
		i++
	}
	return w
}

// load replaces blocks, tags and cursor. The document id is kept.
func (d *Document) load(w wireDoc) {
	d.reset()
	if len(w.Blocks) == 0 {
		return
	}
	d.blocks = d.blocks[:0]
	for i, wb := range w.Blocks {
		id := BlockID(i)
		prev, next := id-1, id+1
		if i == len(w.Blocks)-1 {
			next = NoBlock
		}
		d.blocks = append(d.blocks, block{text: []rune(wb.Text), prev: prev, next: next, alive: true})
		if wb.Type != blockstyle.Undefined {
			d.tags[id] = wb.Type
		}
	}
	d.first, d.last, d.count = 0, BlockID(len(w.Blocks)-1), len(w.Blocks)
	if w.Cursor != nil && w.Cursor.Block >= 0 && w.Cursor.Block < len(w.Blocks) {
		d.SetCursor(Position{Block: BlockID(w.Cursor.Block), Offset: w.Cursor.Offset})
	}
}

// Snapshot serializes blocks, tags and cursor.
func (d *Document) Snapshot() []byte {
	b, _ := json.Marshal(d.wire(true))
	return b
}

// MarshalJSON encodes blocks and tags without the cursor.
func (d *Document) MarshalJSON() ([]byte, error) { return json.Marshal(d.wire(false)) }

// UnmarshalJSON replaces the document content and id.
func (d *Document) UnmarshalJSON(b []byte) error {
	var w wireDoc
	if err := w.unmarshal(b); err != nil {
		return err
	}
	if w.ID != "" {
		d.id = w.ID
	}
	d.load(w)
	return nil
}

// Encode writes the document as indented JSON.
func (d *Document) Encode(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(d.wire(false))
}

// Decode reads a document written by Encode.
func Decode(r io.Reader) (*Document, error) {
	var w wireDoc
	if err := json.NewDecoder(r).Decode(&w); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	d := New()
	if w.ID != "" {
		d.id = w.ID
	}
	d.load(w)
	return d, nil
}

// FromBlocks builds a document from (type, text) pairs, mainly for tests and imports.
func FromBlocks(blocks ...Block) *Document {
	d := New()
	w := wireDoc{Blocks: make([]wireBlock, 0, len(blocks))}
	for _, b := range blocks {
		w.Blocks = append(w.Blocks, wireBlock{Type: b.Type, Text: b.Text})
	}
	d.load(w)
	return d
}

// Block is a detached (type, text) pair.
type Block struct {
	Type blockstyle.Type
	Text string
}

// Contents returns the document as detached blocks in order.
func (d *Document) Contents() []Block {
	out := make([]Block, 0, d.count)
	for b := d.first; b != NoBlock; b = d.blocks[b].next {
		out = append(out, Block{Type: d.tags[b], Text: string(d.blocks[b].text)})
	}
	return out
}
