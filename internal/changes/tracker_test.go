/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package changes

import (
	"errors"
	"testing"

	"goscriptwriter/internal/blockstyle"
	"goscriptwriter/internal/textdoc"
)

func TestSaveChangesDetectsEdits(t *testing.T) {
	doc := textdoc.FromBlocks(textdoc.Block{Type: blockstyle.SceneHeading, Text: "INT. ROOM"})
	tr, err := NewTracker(doc)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok, err := tr.SaveChanges(); ok || err != nil {
		t.Fatalf("unchanged document produced a change (err=%v)", err)
	}
	doc.InsertBlockAfter(doc.First(), blockstyle.Action, "She enters.")
	ch, ok, err := tr.SaveChanges()
	if err != nil || !ok {
		t.Fatalf("expected a change, ok=%v err=%v", ok, err)
	}
	if ch.Patch == "" || ch.Hash != tr.LastHash() || ch.CreatedAt.IsZero() {
		t.Fatalf("incomplete change: %+v", ch)
	}
	if _, ok, _ := tr.SaveChanges(); ok {
		t.Fatalf("second save without edits should be empty")
	}
}

func TestApplyPatchReplaysChange(t *testing.T) {
	src := textdoc.NewWithID("shared")
	dst := textdoc.NewWithID("shared")
	srcTr, err := NewTracker(src)
	if err != nil {
		t.Fatal(err)
	}
	dstTr, err := NewTracker(dst)
	if err != nil {
		t.Fatal(err)
	}

	src.SetTag(src.First(), blockstyle.SceneHeading)
	src.InsertText(src.First(), 0, "EXT. PARK")
	src.InsertBlockAfter(src.First(), blockstyle.Action, "Birds.")
	ch, ok, err := srcTr.SaveChanges()
	if err != nil || !ok {
		t.Fatalf("save: ok=%v err=%v", ok, err)
	}

	var before, after int
	dstTr.BeforeApply = func() { before++ }
	dstTr.AfterApply = func() { after++ }
	if err := dstTr.ApplyPatch(ch.Patch); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if before != 1 || after != 1 {
		t.Fatalf("hooks: before=%d after=%d", before, after)
	}
	got := dst.Contents()
	if len(got) != 2 || got[0].Type != blockstyle.SceneHeading || got[1].Text != "Birds." {
		t.Fatalf("contents = %+v", got)
	}
	if dstTr.LastHash() != srcTr.LastHash() {
		t.Fatalf("hashes differ after replay")
	}
	if _, ok, _ := dstTr.SaveChanges(); ok {
		t.Fatalf("applied patch must not show up as a local change")
	}
}

func TestApplyPatchesRejectsGarbage(t *testing.T) {
	doc := textdoc.New()
	tr, err := NewTracker(doc)
	if err != nil {
		t.Fatal(err)
	}
	if err := tr.ApplyPatches("not a patch"); err == nil {
		t.Fatalf("expected parse error")
	}
	if doc.Len() != 1 || doc.Text(doc.First()) != "" {
		t.Fatalf("failed patch modified the document")
	}
	if err := tr.ApplyPatches("@@ -1,5 +1,6 @@\n ZZZZZ\n+x\n"); !errors.Is(err, ErrPatchRejected) {
		t.Fatalf("expected ErrPatchRejected, got %v", err)
	}
}

func TestStats(t *testing.T) {
	ins, del := Stats("hello world", "hello brave world")
	if ins != 6 || del != 0 {
		t.Fatalf("ins=%d del=%d", ins, del)
	}
}
