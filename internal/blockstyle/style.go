/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package blockstyle

// Style is the formatting template of one block type.
//
// Prefix and Postfix are literal decoration that always surrounds the block text.
// HeaderType/HeaderText describe a block that is auto-inserted before a block of this
// style (e.g. a title header above a title). FooterType is set for embeddable group
// headers and names the block type that closes the group.
//
// Styles are owned by a Template and are passed around by value; nothing mutates a
// style after the template is built.
type Style struct {
	Type           Type
	Prefix         string
	Postfix        string
	HeaderType     Type
	HeaderText     string
	FooterType     Type
	FirstUppercase bool
	Editable       bool
	Active         bool

	// closes is the header type this style terminates, filled by the template.
	closes Type
}

// HasDecoration reports whether the style carries a prefix or a postfix.
func (s Style) HasDecoration() bool { return s.Prefix != "" || s.Postfix != "" }

// HasHeader reports whether a header block is inserted before blocks of this style.
func (s Style) HasHeader() bool { return s.HeaderType != Undefined }

// IsEmbeddableHeader reports whether the style opens a group closed by FooterType.
func (s Style) IsEmbeddableHeader() bool { return s.FooterType != Undefined }

// IsEmbeddableFooter reports whether the style closes a group.
func (s Style) IsEmbeddableFooter() bool { return s.closes != Undefined }

// Closes returns the header type closed by this footer style, or Undefined.
func (s Style) Closes() Type { return s.closes }

// CanChangeType reports whether a block of this style may be retyped directly.
// Footers and title headers only go away together with their owning block.
func (s Style) CanChangeType() bool { return s.Editable }
