/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package script imports plain-text screenplays into block documents. Only block types are
// detected; no other formatting survives the import.
package script

import (
	"fmt"

	"goscriptwriter/internal/blockstyle"
)

// Line is one detected block. Text carries no style decoration.
type Line struct {
	Type   blockstyle.Type
	Text   string
	LineNo int // 1-based starting line number in the source
}

// Error represents a parse problem with position context. Parsing never stops on an Error;
// the offending line is imported as action.
type Error struct {
	Line    int
	Column  int
	Message string
}

func (e Error) Error() string { return fmt.Sprintf("line %d:%d: %s", e.Line, e.Column, e.Message) }
