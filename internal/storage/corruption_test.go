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
	"os"
	"path/filepath"
	"testing"
	"time"

	"goscriptwriter/internal/blockstyle"
)

func TestDetectAndRebuildIndex_OnCorruption(t *testing.T) {
	ph := newProject(t, "CorruptTest")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := UpdateIndex(ctx, ph, sampleDoc(), blockstyle.Default()); err != nil {
		t.Fatalf("UpdateIndex: %v", err)
	}
	idx := IndexPath(ph.Root)
	removeIndexFiles(idx)
	if err := os.WriteFile(idx, []byte("THIS IS NOT SQLITE"), 0o644); err != nil {
		t.Fatalf("write corrupt: %v", err)
	}
	rebuilt, err := DetectAndRebuildIndex(ctx, ph, sampleDoc(), blockstyle.Default())
	if err != nil {
		t.Fatalf("DetectAndRebuildIndex: %v", err)
	}
	if !rebuilt {
		t.Fatalf("expected rebuild to occur")
	}
	res, err := Search(ctx, ph.Root, SearchQuery{Text: "thunder"})
	if err != nil || len(res) != 1 {
		t.Fatalf("rebuilt index not searchable: %v %+v", err, res)
	}
	entries, _ := os.ReadDir(filepath.Join(ph.Root, IndexDirName, "backups"))
	if len(entries) == 0 {
		t.Fatalf("expected a backup of the corrupt index")
	}
}

func TestDetectAndRebuildIndex_HealthyIsNoop(t *testing.T) {
	ph := newProject(t, "Healthy")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := UpdateIndex(ctx, ph, sampleDoc(), blockstyle.Default()); err != nil {
		t.Fatalf("UpdateIndex: %v", err)
	}
	rebuilt, err := DetectAndRebuildIndex(ctx, ph, sampleDoc(), blockstyle.Default())
	if err != nil || rebuilt {
		t.Fatalf("healthy index should not be rebuilt: rebuilt=%v err=%v", rebuilt, err)
	}
}
