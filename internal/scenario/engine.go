/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package scenario

import (
	"errors"
	"log/slog"
	"strings"

	"goscriptwriter/internal/autocorrect"
	"goscriptwriter/internal/blockstyle"
	applog "goscriptwriter/internal/log"
	"goscriptwriter/internal/textdoc"
	"goscriptwriter/internal/undo"
)

// EventKind distinguishes engine notifications.
type EventKind int

const (
	// StyleChanged follows every successful block type change.
	StyleChanged EventKind = iota + 1
	// UnbalancedGroup reports a group header whose footer could not be found.
	UnbalancedGroup
	// Restored follows undo and redo.
	Restored
)

func (k EventKind) String() string {
	switch k {
	case StyleChanged:
		return "style_changed"
	case UnbalancedGroup:
		return "unbalanced_group"
	case Restored:
		return "restored"
	default:
		return "unknown"
	}
}

// Event is delivered to observers synchronously, after the edit that caused it.
type Event struct {
	Kind  EventKind
	Block textdoc.BlockID
	From  blockstyle.Type
	To    blockstyle.Type
}

// Observer receives engine events.
type Observer func(Event)

// ErrNoHistory is returned by Undo and Redo when the engine has no history or the text
// cannot be snapshotted.
var ErrNoHistory = errors.New("scenario: undo history not available")

// Engine edits one document.
type Engine struct {
	doc       Text
	template  func() *blockstyle.Template
	log       *slog.Logger
	history   *undo.Manager
	corrector *autocorrect.Corrector
	observers []Observer
}

// Option configures an Engine.
type Option func(*Engine)

// WithTemplate makes the engine use a fixed template instead of blockstyle.Current.
func WithTemplate(t *blockstyle.Template) Option {
	return func(e *Engine) { e.template = func() *blockstyle.Template { return t } }
}

// WithLogger replaces the component logger.
func WithLogger(l *slog.Logger) Option { return func(e *Engine) { e.log = l } }

// WithHistory attaches an undo manager. Texts that accept a history collaborator get it
// installed so every outermost edit is recorded.
func WithHistory(m *undo.Manager) Option { return func(e *Engine) { e.history = m } }

// WithCorrector replaces the default autocorrection settings.
func WithCorrector(c *autocorrect.Corrector) Option { return func(e *Engine) { e.corrector = c } }

// NewEngine returns an engine for doc.
func NewEngine(doc Text, opts ...Option) *Engine {
	e := &Engine{doc: doc, template: blockstyle.Current}
	for _, o := range opts {
		o(e)
	}
	if e.log == nil {
		e.log = applog.WithComponent("scenario")
	}
	if e.corrector == nil {
		e.corrector = autocorrect.New(autocorrect.DefaultOptions())
	}
	if e.history != nil {
		if h, ok := doc.(interface{ SetHistory(textdoc.History) }); ok {
			h.SetHistory(e.history)
		}
	}
	return e
}

// Text returns the edited document.
func (e *Engine) Text() Text { return e.doc }

// Template returns the template in effect.
func (e *Engine) Template() *blockstyle.Template { return e.template() }

// Subscribe registers obs and returns a function removing it.
func (e *Engine) Subscribe(obs Observer) (cancel func()) {
	e.observers = append(e.observers, obs)
	idx := len(e.observers) - 1
	return func() {
		if idx < len(e.observers) {
			e.observers[idx] = nil
		}
	}
}

func (e *Engine) emit(ev Event) {
	for _, o := range e.observers {
		if o != nil {
			o(ev)
		}
	}
}

// Classify returns the type of b.
func (e *Engine) Classify(b textdoc.BlockID) blockstyle.Type { return Classify(e.doc, b) }

// CurrentType returns the type of the block under the cursor.
func (e *Engine) CurrentType() blockstyle.Type { return Classify(e.doc, e.doc.Cursor().Block) }

// ChangeBlockType retypes b to t as one edit. Changing between two group header types
// keeps the group and retags its footer; every other change removes the old style and
// applies the new one. It returns false without touching the document when b already
// has type t, when the current type is not editable (title headers, group footers) or
// when t itself is not an editable type.
func (e *Engine) ChangeBlockType(b textdoc.BlockID, t blockstyle.Type) bool {
	if b == textdoc.NoBlock || t == blockstyle.Undefined || !t.Valid() {
		return false
	}
	old := Classify(e.doc, b)
	if old == t {
		return false
	}
	tpl := e.template()
	oldStyle, newStyle := tpl.Style(old), tpl.Style(t)
	if !oldStyle.CanChangeType() || !newStyle.CanChangeType() {
		e.log.Debug("type change refused", "block", int(b), "from", old.String(), "to", t.String())
		return false
	}

	e.doc.BeginEdit()
	if oldStyle.IsEmbeddableHeader() && newStyle.IsEmbeddableHeader() {
		// the header is retyped even without a footer; RetypeGroup reports the inconsistency
		_ = e.RetypeGroup(b, t)
	} else {
		e.RemoveStyle(b)
		e.ApplyStyle(b, t)
	}
	e.doc.EndEdit()

	e.emit(Event{Kind: StyleChanged, Block: b, From: old, To: t})
	return true
}

// OnKeystroke runs autocorrection after the host committed inserted in front of the
// cursor.
func (e *Engine) OnKeystroke(inserted string) bool {
	return e.corrector.OnKeystroke(e.doc, e.template(), inserted)
}

// AddBlock splits the cursor block at the cursor, styles the new second half with t and
// leaves the cursor at its start.
func (e *Engine) AddBlock(t blockstyle.Type) textdoc.BlockID {
	cur := e.doc.Cursor()
	if cur.Block == textdoc.NoBlock {
		return textdoc.NoBlock
	}
	e.doc.BeginEdit()
	text := []rune(e.doc.Text(cur.Block))
	off := min(max(cur.Offset, 0), len(text))
	tail := string(text[off:])
	if tail != "" {
		e.doc.DeleteText(cur.Block, off, len(text)-off)
	}
	nb := e.doc.InsertBlockAfter(cur.Block, blockstyle.Undefined, tail)
	e.doc.SetCursor(textdoc.Position{Block: nb})
	e.ApplyStyle(nb, t)
	e.doc.EndEdit()

	e.emit(Event{Kind: StyleChanged, Block: nb, To: t})
	return nb
}

// InsertPlainText pastes text at the cursor. The first non-empty line goes into the
// cursor block; each further non-empty line becomes a new Action block. Runs of
// whitespace inside a line collapse to one space.
func (e *Engine) InsertPlainText(text string) {
	e.doc.BeginEdit()
	defer e.doc.EndEdit()
	first := true
	for _, line := range strings.Split(text, "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			continue
		}
		if !first {
			e.AddBlock(blockstyle.Action)
		}
		first = false
		cur := e.doc.Cursor()
		e.doc.InsertText(cur.Block, cur.Offset, line)
	}
}

// InitDocument gives an untagged first block the scene heading type and puts the cursor
// at the start of the document.
func (e *Engine) InitDocument() {
	first := e.doc.First()
	e.doc.SetCursor(textdoc.Position{Block: first})
	if Classify(e.doc, first) == blockstyle.Undefined {
		e.RestyleText(first, blockstyle.SceneHeading)
	}
}

// CanUndo reports whether Undo would do anything.
func (e *Engine) CanUndo() bool {
	s, ok := e.doc.(Snapshotter)
	return ok && e.history != nil && e.history.CanUndo(s.ID())
}

// CanRedo reports whether Redo would do anything.
func (e *Engine) CanRedo() bool {
	s, ok := e.doc.(Snapshotter)
	return ok && e.history != nil && e.history.CanRedo(s.ID())
}

// Undo restores the state before the latest recorded edit. It returns false when there
// is nothing to undo.
func (e *Engine) Undo() (bool, error) {
	return e.travel(e.history.Undo)
}

// Redo reapplies the latest undone edit.
func (e *Engine) Redo() (bool, error) {
	return e.travel(e.history.Redo)
}

func (e *Engine) travel(step func(string, []byte) (undo.Snapshot, bool)) (bool, error) {
	s, ok := e.doc.(Snapshotter)
	if !ok || e.history == nil {
		return false, ErrNoHistory
	}
	snap, ok := step(s.ID(), s.Snapshot())
	if !ok {
		return false, nil
	}
	if err := s.Restore(snap.Blob); err != nil {
		return false, err
	}
	e.emit(Event{Kind: Restored, Block: e.doc.Cursor().Block})
	return true, nil
}
