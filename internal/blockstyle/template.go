/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package blockstyle

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/multierr"
)

// Template is a named, immutable set of block styles.
type Template struct {
	name        string
	description string
	styles      map[Type]Style
}

// NewTemplate builds a template from the given styles and checks cross references:
// header and footer types must be valid and differ from the style's own type, and a
// type may only be declared once. Styles that are named as a footer get marked as such.
func NewTemplate(name, description string, styles ...Style) (*Template, error) {
	if strings.TrimSpace(name) == "" {
		return nil, errors.New("template name is required")
	}
	t := &Template{name: name, description: description, styles: make(map[Type]Style, len(styles))}
	var errs error
	for _, s := range styles {
		if s.Type == Undefined || !s.Type.Valid() {
			errs = multierr.Append(errs, fmt.Errorf("style with invalid type %v", s.Type))
			continue
		}
		if _, dup := t.styles[s.Type]; dup {
			errs = multierr.Append(errs, fmt.Errorf("style %s declared twice", s.Type))
			continue
		}
		if !s.HeaderType.Valid() || s.HeaderType == s.Type {
			errs = multierr.Append(errs, fmt.Errorf("style %s: bad header type %v", s.Type, s.HeaderType))
		}
		if !s.FooterType.Valid() || s.FooterType == s.Type {
			errs = multierr.Append(errs, fmt.Errorf("style %s: bad footer type %v", s.Type, s.FooterType))
		}
		s.closes = Undefined
		t.styles[s.Type] = s
	}
	for typ, s := range t.styles {
		if !s.IsEmbeddableHeader() {
			continue
		}
		footer, ok := t.styles[s.FooterType]
		if !ok {
			footer = Style{Type: s.FooterType}
		}
		if footer.closes != Undefined && footer.closes != typ {
			errs = multierr.Append(errs, fmt.Errorf("footer %s closes both %s and %s", s.FooterType, footer.closes, typ))
			continue
		}
		footer.closes = typ
		t.styles[s.FooterType] = footer
	}
	if errs != nil {
		return nil, fmt.Errorf("template %q: %w", name, errs)
	}
	return t, nil
}

// Name returns the template name.
func (t *Template) Name() string { return t.name }

// Description returns the human readable template description.
func (t *Template) Description() string { return t.description }

// Style returns the style for typ. It never fails: types the template does not declare
// (Undefined included) get an undecorated, editable, inactive style.
func (t *Template) Style(typ Type) Style {
	if t != nil {
		if s, ok := t.styles[typ]; ok {
			return s
		}
	}
	return Style{Type: typ, Editable: true}
}

// IsActive reports whether typ is offered to the user by this template.
func (t *Template) IsActive(typ Type) bool { return t.Style(typ).Active }

// ActiveTypes lists the active types in declaration order.
func (t *Template) ActiveTypes() []Type {
	var out []Type
	for _, typ := range Types() {
		if t.IsActive(typ) {
			out = append(out, typ)
		}
	}
	return out
}

var (
	currentMu sync.RWMutex
	current   *Template
)

// Current returns the process-wide template, falling back to the builtin default.
func Current() *Template {
	currentMu.RLock()
	t := current
	currentMu.RUnlock()
	if t != nil {
		return t
	}
	return Default()
}

// SetCurrent installs t as the process-wide template. A nil t restores the default.
// Hosts call this between document operations and refresh their views afterwards.
func SetCurrent(t *Template) {
	currentMu.Lock()
	current = t
	currentMu.Unlock()
}
