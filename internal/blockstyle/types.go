/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package blockstyle

import (
	"fmt"
	"strings"
)

// Type is the kind of a screenplay text block.
// The zero value is Undefined, which is what an untagged block classifies as.
type Type int

const (
	Undefined Type = iota
	SceneHeading
	SceneCharacters
	Action
	Character
	Parenthetical
	Dialog
	Transition
	Note
	TitleHeader
	Title
	SimpleText
	NoprintableText
	Lyrics
	SceneGroupHeader
	SceneGroupFooter
	FolderHeader
	FolderFooter

	typeCount
)

// TimeAndPlace is the historical name of the scene heading block.
const TimeAndPlace = SceneHeading

var typeNames = [typeCount]string{
	Undefined:        "undefined",
	SceneHeading:     "scene_heading",
	SceneCharacters:  "scene_characters",
	Action:           "action",
	Character:        "character",
	Parenthetical:    "parenthetical",
	Dialog:           "dialog",
	Transition:       "transition",
	Note:             "note",
	TitleHeader:      "title_header",
	Title:            "title",
	SimpleText:       "simple_text",
	NoprintableText:  "noprintable_text",
	Lyrics:           "lyrics",
	SceneGroupHeader: "scene_group_header",
	SceneGroupFooter: "scene_group_footer",
	FolderHeader:     "folder_header",
	FolderFooter:     "folder_footer",
}

// aliases accepted by ParseType in addition to the canonical names.
var typeAliases = map[string]Type{
	"time_and_place": SceneHeading,
	"dialogue":       Dialog,
}

// Types returns every block type except Undefined in declaration order.
func Types() []Type {
	out := make([]Type, 0, typeCount-1)
	for t := SceneHeading; t < typeCount; t++ {
		out = append(out, t)
	}
	return out
}

// Valid reports whether t is one of the declared types.
func (t Type) Valid() bool { return t >= Undefined && t < typeCount }

func (t Type) String() string {
	if !t.Valid() {
		return fmt.Sprintf("Type(%d)", int(t))
	}
	return typeNames[t]
}

// ParseType converts a snake_case name (case-insensitive, dashes allowed) to a Type.
func ParseType(s string) (Type, error) {
	key := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
	for i, name := range typeNames {
		if name == key {
			return Type(i), nil
		}
	}
	if t, ok := typeAliases[key]; ok {
		return t, nil
	}
	return Undefined, fmt.Errorf("unknown block type %q", s)
}

func (t Type) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("invalid block type %d", int(t))
	}
	return []byte(typeNames[t]), nil
}

func (t *Type) UnmarshalText(b []byte) error {
	v, err := ParseType(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}
