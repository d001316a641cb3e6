/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package navigator

import (
	"sync"

	"goscriptwriter/internal/blockstyle"
	"goscriptwriter/internal/textdoc"
)

// Observable is a Source that reports committed edits.
type Observable interface {
	Source
	OnChange(fn func(textdoc.Change)) (cancel func())
}

// Model keeps an outline in sync with a document by rebuilding it after every structural
// change. Text-only edits do not rebuild; Header and Description read live text anyway.
type Model struct {
	mu       sync.RWMutex
	src      Observable
	template func() *blockstyle.Template
	tree     *Tree
	cancel   func()

	// OnRebuild is called with the new tree after each rebuild.
	OnRebuild func(*Tree)
}

// NewModel builds the initial tree and starts following src. A nil template getter
// means blockstyle.Current.
func NewModel(src Observable, template func() *blockstyle.Template) *Model {
	if template == nil {
		template = blockstyle.Current
	}
	m := &Model{src: src, template: template}
	m.tree = Rebuild(src, template())
	m.cancel = src.OnChange(func(c textdoc.Change) {
		if c.Structural {
			m.Refresh()
		}
	})
	return m
}

// Tree returns the current outline.
func (m *Model) Tree() *Tree {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tree
}

// Refresh rebuilds the outline now, e.g. after the template changed.
func (m *Model) Refresh() {
	t := Rebuild(m.src, m.template())
	m.mu.Lock()
	m.tree = t
	m.mu.Unlock()
	if m.OnRebuild != nil {
		m.OnRebuild(t)
	}
}

// Close stops following the document.
func (m *Model) Close() {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
}
