/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package changes records the edits between saved revisions of a document as text
// patches and applies patches received from elsewhere.
package changes

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	dmp "github.com/sergi/go-diff/diffmatchpatch"

	"goscriptwriter/internal/textdoc"
)

// Change is one saved revision step.
type Change struct {
	ID        uuid.UUID
	Patch     string
	Hash      string // hash of the document after the change
	CreatedAt time.Time
}

// ErrPatchRejected is returned when a patch does not apply cleanly.
var ErrPatchRejected = errors.New("changes: patch does not apply")

// Tracker remembers the last saved serialization of a document.
type Tracker struct {
	doc  *textdoc.Document
	last string
	hash string
	dmp  *dmp.DiffMatchPatch

	// BeforeApply and AfterApply surround patch application, e.g. to pause the
	// outline model or refresh views.
	BeforeApply func()
	AfterApply  func()
}

// NewTracker starts tracking doc from its current state.
func NewTracker(doc *textdoc.Document) (*Tracker, error) {
	t := &Tracker{doc: doc, dmp: dmp.New()}
	s, err := serialize(doc)
	if err != nil {
		return nil, err
	}
	t.last, t.hash = s, Hash(s)
	return t, nil
}

// Hash returns the hex sha256 of a serialized document.
func Hash(serialized string) string {
	sum := sha256.Sum256([]byte(serialized))
	return hex.EncodeToString(sum[:])
}

// LastHash returns the hash of the last saved revision.
func (t *Tracker) LastHash() string { return t.hash }

// Serialized returns the last saved serialization.
func (t *Tracker) Serialized() string { return t.last }

// SaveChanges compares the document with the last saved revision. It returns false if
// nothing changed.
func (t *Tracker) SaveChanges() (*Change, bool, error) {
	cur, err := serialize(t.doc)
	if err != nil {
		return nil, false, err
	}
	h := Hash(cur)
	if h == t.hash {
		return nil, false, nil
	}
	patch := t.dmp.PatchToText(t.dmp.PatchMake(t.last, cur))
	t.last, t.hash = cur, h
	return &Change{ID: uuid.New(), Patch: patch, Hash: h, CreatedAt: time.Now().UTC()}, true, nil
}

// ApplyPatch applies patch to the current document and makes the result the last saved
// revision.
func (t *Tracker) ApplyPatch(patch string) error { return t.ApplyPatches(patch) }

// ApplyPatches applies patches in order as one update. Nothing is changed if any of them
// fails to apply.
func (t *Tracker) ApplyPatches(patches ...string) error {
	cur, err := serialize(t.doc)
	if err != nil {
		return err
	}
	for i, p := range patches {
		ps, err := t.dmp.PatchFromText(p)
		if err != nil {
			return fmt.Errorf("patch %d: %w", i, err)
		}
		next, applied := t.dmp.PatchApply(ps, cur)
		for _, ok := range applied {
			if !ok {
				return fmt.Errorf("patch %d: %w", i, ErrPatchRejected)
			}
		}
		cur = next
	}
	if t.BeforeApply != nil {
		t.BeforeApply()
	}
	if err := t.doc.Restore([]byte(cur)); err != nil {
		return err
	}
	t.last, t.hash = cur, Hash(cur)
	if t.AfterApply != nil {
		t.AfterApply()
	}
	return nil
}

// Stats counts inserted and deleted characters between two serializations.
func Stats(before, after string) (inserted, deleted int) {
	d := dmp.New()
	diffs := d.DiffCleanupSemantic(d.DiffMain(before, after, false))
	for _, df := range diffs {
		switch df.Type {
		case dmp.DiffInsert:
			inserted += len([]rune(df.Text))
		case dmp.DiffDelete:
			deleted += len([]rune(df.Text))
		}
	}
	return inserted, deleted
}

func serialize(doc *textdoc.Document) (string, error) {
	var buf bytes.Buffer
	if err := doc.Encode(&buf); err != nil {
		return "", fmt.Errorf("serialize document: %w", err)
	}
	return buf.String(), nil
}
