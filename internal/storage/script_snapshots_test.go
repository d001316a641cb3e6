/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"testing"
	"time"

	"goscriptwriter/internal/blockstyle"
)

func TestScriptSnapshotsDedupeListAndPrune(t *testing.T) {
	ph := newProject(t, "Snapshots")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, ok, err := GetLatestScriptSnapshot(ctx, ph); err != nil || ok {
		t.Fatalf("fresh project should have no snapshot: ok=%v err=%v", ok, err)
	}

	doc := sampleDoc()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	wrote, err := SaveScriptSnapshot(ctx, ph, doc, base)
	if err != nil || !wrote {
		t.Fatalf("first snapshot: wrote=%v err=%v", wrote, err)
	}
	wrote, err = SaveScriptSnapshot(ctx, ph, doc, base.Add(time.Minute))
	if err != nil || wrote {
		t.Fatalf("unchanged document must not be stored twice: wrote=%v err=%v", wrote, err)
	}
	for i := 1; i <= 3; i++ {
		doc.InsertBlockAfter(doc.Last(), blockstyle.Action, "beat")
		if _, err := SaveScriptSnapshot(ctx, ph, doc, base.Add(time.Duration(i)*time.Hour)); err != nil {
			t.Fatalf("snapshot %d: %v", i, err)
		}
	}

	list, err := ListScriptSnapshots(ctx, ph, 10)
	if err != nil {
		t.Fatalf("ListScriptSnapshots: %v", err)
	}
	if len(list) != 4 || !list[0].TS.Equal(base.Add(3*time.Hour)) {
		t.Fatalf("unexpected list: %d entries, newest %v", len(list), list[0].TS)
	}

	latest, ok, err := GetLatestScriptSnapshot(ctx, ph)
	if err != nil || !ok {
		t.Fatalf("latest: ok=%v err=%v", ok, err)
	}
	restored, err := latest.Document()
	if err != nil {
		t.Fatalf("decode latest: %v", err)
	}
	if restored.Len() != doc.Len() || restored.PlainText() != doc.PlainText() {
		t.Fatalf("latest snapshot does not match document")
	}

	oldest := list[len(list)-1]
	byID, ok, err := GetScriptSnapshot(ctx, ph, oldest.ID)
	if err != nil || !ok || byID.Hash != oldest.Hash {
		t.Fatalf("GetScriptSnapshot(%d) = %+v ok=%v err=%v", oldest.ID, byID, ok, err)
	}

	n, err := PruneOldScriptSnapshots(ctx, ph, 2)
	if err != nil || n != 2 {
		t.Fatalf("prune removed %d, err %v", n, err)
	}
	if _, ok, _ := GetScriptSnapshot(ctx, ph, oldest.ID); ok {
		t.Fatalf("oldest snapshot should be pruned")
	}
}
