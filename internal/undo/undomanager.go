/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package undo keeps bounded in-memory undo/redo history for documents.
// Entries are opaque state blobs captured before an edit; the document decides what
// they contain and how to restore them.
package undo

import (
	"sync"
	"time"
)

// Snapshot represents a reversible state blob for a document.
// Blob content is opaque to the manager; size is estimated as len(Blob).
// TS is when the snapshot was captured.
type Snapshot struct {
	DocID string
	Blob  []byte
	TS    time.Time
}

// Config controls memory and depth caps and coalescing behavior.
type Config struct {
	// MaxBytes is a soft cap; older entries are pruned when exceeded.
	MaxBytes int
	// MaxPerDoc limits number of snapshots per document kept in memory (0 means unlimited).
	MaxPerDoc int
	// MinInterval coalesces snapshots captured within the interval for the same document.
	// The earlier snapshot is kept so one undo step reverts the whole burst.
	// Zero selects the default; a negative value disables coalescing.
	MinInterval time.Duration
}

// Manager provides an in-memory undo/redo stack per document with performance safeguards.
// It is safe for concurrent use.
type Manager struct {
	cfg Config
	mu  sync.Mutex
	// per-document stacks
	undo map[string][]Snapshot
	redo map[string][]Snapshot
	// accounting
	totalBytes int
}

func NewManager(cfg Config) *Manager {
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 16 * 1024 * 1024 // 16 MiB
	}
	if cfg.MinInterval == 0 {
		cfg.MinInterval = 250 * time.Millisecond
	}
	return &Manager{cfg: cfg, undo: make(map[string][]Snapshot), redo: make(map[string][]Snapshot)}
}

// Record stores the state a document had before an edit. It satisfies the history
// collaborator expected by textdoc.
func (m *Manager) Record(docID string, before []byte, ts time.Time) {
	m.PushSnapshot(Snapshot{DocID: docID, Blob: before, TS: ts})
}

// PushSnapshot records a snapshot for a document. If within MinInterval from the last
// snapshot of the same document, the new one is dropped and the timestamp of the kept
// one advances. Clears the redo stack for that document.
func (m *Manager) PushSnapshot(s Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stack := m.undo[s.DocID]
	m.redo[s.DocID] = nil
	if n := len(stack); n > 0 && m.cfg.MinInterval > 0 {
		last := stack[n-1]
		if s.TS.Sub(last.TS) < m.cfg.MinInterval {
			stack[n-1].TS = s.TS
			return
		}
	}
	m.undo[s.DocID] = append(stack, s)
	m.totalBytes += len(s.Blob)
	m.enforceCapsLocked(s.DocID)
}

// Undo pops the latest pre-edit state of docID. current is the state being left; it
// goes onto the redo stack.
func (m *Manager) Undo(docID string, current []byte) (Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stack := m.undo[docID]
	if len(stack) == 0 {
		return Snapshot{}, false
	}
	s := stack[len(stack)-1]
	m.undo[docID] = stack[:len(stack)-1]
	m.totalBytes -= len(s.Blob)
	m.redo[docID] = append(m.redo[docID], Snapshot{DocID: docID, Blob: current, TS: time.Now()})
	return s, true
}

// Redo pops the latest undone state and pushes current back to undo.
func (m *Manager) Redo(docID string, current []byte) (Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.redo[docID]
	if len(r) == 0 {
		return Snapshot{}, false
	}
	s := r[len(r)-1]
	m.redo[docID] = r[:len(r)-1]
	m.undo[docID] = append(m.undo[docID], Snapshot{DocID: docID, Blob: current, TS: time.Time{}})
	m.totalBytes += len(current)
	m.enforceCapsLocked(docID)
	return s, true
}

// CanUndo reports whether docID has undo history.
func (m *Manager) CanUndo(docID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.undo[docID]) > 0
}

// CanRedo reports whether docID has undone states to reapply.
func (m *Manager) CanRedo(docID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.redo[docID]) > 0
}

// Clear drops undo/redo stacks for a document to free memory.
func (m *Manager) Clear(docID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.undo[docID] {
		m.totalBytes -= len(s.Blob)
	}
	delete(m.undo, docID)
	delete(m.redo, docID)
	if m.totalBytes < 0 {
		m.totalBytes = 0
	}
}

// Stats returns current sizes for diagnostics.
func (m *Manager) Stats() (totalBytes int, docs int, totalSnapshots int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	docs = len(m.undo)
	for _, v := range m.undo {
		totalSnapshots += len(v)
	}
	return m.totalBytes, docs, totalSnapshots
}

func (m *Manager) enforceCapsLocked(docID string) {
	if m.cfg.MaxPerDoc > 0 {
		stack := m.undo[docID]
		if len(stack) > m.cfg.MaxPerDoc {
			toDrop := len(stack) - m.cfg.MaxPerDoc
			for i := 0; i < toDrop; i++ {
				m.totalBytes -= len(stack[i].Blob)
			}
			m.undo[docID] = append([]Snapshot{}, stack[toDrop:]...)
		}
	}
	// Global memory cap: prune oldest across all documents, never the newest entry
	for m.cfg.MaxBytes > 0 && m.totalBytes > m.cfg.MaxBytes {
		oldestDoc := ""
		found := false
		var oldestTS time.Time
		for id, stack := range m.undo {
			if len(stack) == 0 || (id == docID && len(stack) == 1) {
				continue
			}
			if !found || stack[0].TS.Before(oldestTS) {
				oldestDoc, oldestTS, found = id, stack[0].TS, true
			}
		}
		if !found {
			break
		}
		stack := m.undo[oldestDoc]
		m.totalBytes -= len(stack[0].Blob)
		m.undo[oldestDoc] = stack[1:]
		if len(m.undo[oldestDoc]) == 0 {
			delete(m.undo, oldestDoc)
		}
	}
}
