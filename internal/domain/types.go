/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// This file defines the project manifest of a screenplay project. The script itself lives
// next to the manifest as a block document (see internal/textdoc); the manifest only names it.

// ManifestVersion is written into new manifests.
const ManifestVersion = 1

// Project represents a screenplay project and its metadata.
// It serializes to a human-readable JSON manifest.
type Project struct {
	Version int `json:"version"`
	// ID is a random identifier that survives renames; publishing keys projects on it.
	ID       string   `json:"id,omitempty"`
	Name     string   `json:"name"`
	Metadata Metadata `json:"metadata,omitempty"`
	// Template is the name of the block style template the script is written against.
	Template string `json:"template"`
	// Script is the script file, relative to the project root.
	Script   string    `json:"script"`
	Created  time.Time `json:"created"`
	Modified time.Time `json:"modified"`
}

// Metadata contains optional descriptive metadata for a project.
type Metadata struct {
	Title   string `json:"title,omitempty"`
	Author  string `json:"author,omitempty"`
	Draft   string `json:"draft,omitempty"` // e.g. "first draft", "shooting script"
	Contact string `json:"contact,omitempty"`
	Notes   string `json:"notes,omitempty"`
}

// NewProject returns a manifest with defaults filled in.
func NewProject(name string) Project {
	now := time.Now().UTC()
	return Project{
		Version:  ManifestVersion,
		ID:       uuid.NewString(),
		Name:     name,
		Metadata: Metadata{Title: name},
		Template: "default",
		Script:   "script.json",
		Created:  now,
		Modified: now,
	}
}

// Outline is a flattened view of the navigation tree, one entry per item in pre-order.
type Outline []OutlineEntry

// OutlineEntry is one navigator item.
type OutlineEntry struct {
	Depth       int    `json:"depth"`
	Folder      bool   `json:"folder"`
	Number      int    `json:"number,omitempty"` // scene number, 0 for groups and folders
	Header      string `json:"header"`
	Description string `json:"description,omitempty"`
	Block       int    `json:"block"` // header block position in document order
}
