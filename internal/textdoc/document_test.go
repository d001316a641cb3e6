/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package textdoc

import (
	"bytes"
	"testing"
	"time"

	"goscriptwriter/internal/blockstyle"
)

type recorder struct {
	ids   []string
	blobs  [][]byte
}

func (r *recorder) Record(docID string, before []byte, _ time.Time) {
	r.ids = append(r.ids, docID)
	r.blobs = append(r.blobs, before)
}

func TestNewDocumentHasOneBlock(t *testing.T) {
	d := New()
	if d.Len() != 1 || d.First() != d.Last() {
		t.Fatalf("expected a single block, got %d", d.Len())
	}
	if d.ID() == "" {
		t.Fatalf("expected generated id")
	}
	if d.Tag(d.First()) != blockstyle.Undefined {
		t.Fatalf("new block should be untagged")
	}
}

func TestInsertAndNavigate(t *testing.T) {
	d := New()
	a := d.First()
	c := d.InsertBlockAfter(a, blockstyle.Action, "c")
	b := d.InsertBlockBefore(c, blockstyle.Character, "b")
	z := d.InsertBlockBefore(a, blockstyle.Note, "z")
	got := d.Blocks()
	want := []BlockID{z, a, b, c}
	if len(got) != len(want) {
		t.Fatalf("blocks = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("blocks = %v, want %v", got, want)
		}
	}
	if d.First() != z || d.Last() != c || d.Prev(z) != NoBlock || d.Next(c) != NoBlock {
		t.Fatalf("bad ends")
	}
	if d.Tag(b) != blockstyle.Character || d.Text(b) != "b" {
		t.Fatalf("tag/text not stored")
	}
}

func TestAbsolutePositions(t *testing.T) {
	d := FromBlocks(
		Block{Type: blockstyle.SceneHeading, Text: "INT."},
		Block{Type: blockstyle.Action, Text: "ab"},
		Block{Type: blockstyle.Action, Text: ""},
	)
	bs := d.Blocks()
	if p := d.PositionOf(bs[1]); p != 5 {
		t.Fatalf("PositionOf(1) = %d, want 5", p)
	}
	if p := d.PositionOf(bs[2]); p != 8 {
		t.Fatalf("PositionOf(2) = %d, want 8", p)
	}
	cases := map[int]BlockID{0: bs[0], 4: bs[0], 5: bs[1], 7: bs[1], 8: bs[2], 100: bs[2], -1: NoBlock}
	for pos, want := range cases {
		if got := d.BlockAt(pos); got != want {
			t.Fatalf("BlockAt(%d) = %d, want %d", pos, got, want)
		}
	}
}

func TestCursorFollowsTextEdits(t *testing.T) {
	d := FromBlocks(Block{Type: blockstyle.Action, Text: "hello"})
	b := d.First()
	d.SetCursor(Position{Block: b, Offset: 5})
	d.InsertText(b, 0, ">> ")
	if c := d.Cursor(); c.Offset != 8 {
		t.Fatalf("cursor after prefix insert = %d, want 8", c.Offset)
	}
	d.InsertText(b, 8, "!")
	if c := d.Cursor(); c.Offset != 9 {
		t.Fatalf("insert at cursor should push it, got %d", c.Offset)
	}
	d.DeleteText(b, 0, 3)
	if c := d.Cursor(); c.Offset != 6 || d.Text(b) != "hello!" {
		t.Fatalf("after delete cursor=%d text=%q", c.Offset, d.Text(b))
	}
	d.DeleteText(b, 4, 10)
	if c := d.Cursor(); c.Offset != 4 || d.Text(b) != "hell" {
		t.Fatalf("after tail delete cursor=%d text=%q", c.Offset, d.Text(b))
	}
}

func TestDeleteBlockMovesCursor(t *testing.T) {
	d := FromBlocks(
		Block{Type: blockstyle.Action, Text: "one"},
		Block{Type: blockstyle.Action, Text: "two"},
	)
	bs := d.Blocks()
	d.SetCursor(Position{Block: bs[0], Offset: 2})
	d.DeleteBlock(bs[0])
	if d.Len() != 1 || d.First() != bs[1] {
		t.Fatalf("delete did not unlink")
	}
	if c := d.Cursor(); c.Block != bs[1] || c.Offset != 0 {
		t.Fatalf("cursor = %+v", c)
	}
	if d.Tag(bs[0]) != blockstyle.Undefined || d.Valid(bs[0]) {
		t.Fatalf("deleted block still visible")
	}
	d.DeleteBlock(bs[1])
	if d.Len() != 1 || d.Text(d.First()) != "" || d.Tag(d.First()) != blockstyle.Undefined {
		t.Fatalf("deleting the only block should clear it")
	}
}

func TestTransactionsNestAndNotifyOnce(t *testing.T) {
	d := New()
	rec := &recorder{}
	d.SetHistory(rec)
	var changes []Change
	d.OnChange(func(c Change) { changes = append(changes, c) })

	d.BeginEdit()
	d.InsertText(d.First(), 0, "x")
	d.BeginEdit()
	d.InsertBlockAfter(d.First(), blockstyle.Action, "y")
	d.EndEdit()
	if len(changes) != 0 {
		t.Fatalf("inner EndEdit must not notify")
	}
	d.EndEdit()
	if len(changes) != 1 || !changes[0].Structural {
		t.Fatalf("changes = %+v", changes)
	}
	if len(rec.blobs) != 1 || rec.ids[0] != d.ID() {
		t.Fatalf("expected one history record, got %d", len(rec.blobs))
	}

	d.InsertText(d.First(), 1, "z")
	if len(changes) != 2 || changes[1].Structural {
		t.Fatalf("text edit should be a non-structural change: %+v", changes)
	}

	d.BeginEdit()
	d.EndEdit()
	if len(changes) != 2 || len(rec.blobs) != 2 {
		t.Fatalf("empty transaction must not notify or record")
	}
}

func TestSnapshotRestore(t *testing.T) {
	d := FromBlocks(
		Block{Type: blockstyle.SceneHeading, Text: "INT. ROOM"},
		Block{Type: blockstyle.Action, Text: "text"},
	)
	d.SetCursor(Position{Block: d.Last(), Offset: 2})
	snap := d.Snapshot()
	d.SetTag(d.First(), blockstyle.Note)
	d.InsertBlockAfter(d.Last(), blockstyle.Transition, "CUT TO:")
	if err := d.Restore(snap); err != nil {
		t.Fatalf("restore: %v", err)
	}
	got := d.Contents()
	if len(got) != 2 || got[0].Type != blockstyle.SceneHeading || got[1].Text != "text" {
		t.Fatalf("contents = %+v", got)
	}
	if c := d.Cursor(); c.Block != d.Last() || c.Offset != 2 {
		t.Fatalf("cursor = %+v", c)
	}
	d.BeginEdit()
	if err := d.Restore(snap); err != ErrInTransaction {
		t.Fatalf("expected ErrInTransaction, got %v", err)
	}
	d.EndEdit()
}

func TestEncodeDecode(t *testing.T) {
	d := FromBlocks(
		Block{Type: blockstyle.FolderHeader, Text: "Act I"},
		Block{Type: blockstyle.FolderFooter},
	)
	var buf bytes.Buffer
	if err := d.Encode(&buf); err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !bytes.Contains(buf.Bytes(), []byte(`"folder_header"`)) {
		t.Fatalf("expected snake_case type names: %s", buf.String())
	}
	got, err := Decode(&buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ID() != d.ID() || got.Len() != 2 || got.Tag(got.Last()) != blockstyle.FolderFooter {
		t.Fatalf("decoded doc mismatch")
	}
	if _, err := Decode(bytes.NewBufferString(`{"blocks":[{"type":"montage"}]}`)); err == nil {
		t.Fatalf("expected error for unknown type")
	}
}

func TestPlainText(t *testing.T) {
	d := FromBlocks(Block{Text: "a"}, Block{Text: "b"})
	if d.PlainText() != "a\nb" {
		t.Fatalf("plain = %q", d.PlainText())
	}
}
