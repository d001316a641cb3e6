/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package autocorrect

import (
	"fmt"
	"os"
	"strings"
	"unicode"

	"github.com/neurosnap/sentences"
	"github.com/neurosnap/sentences/english"
)

// PunktAbbreviations checks the last word before a sentence mark against the abbreviation
// list of a trained punkt model.
type PunktAbbreviations struct {
	abbrev sentences.SetString
}

// NewEnglishAbbreviations uses the English model bundled with the sentences module.
func NewEnglishAbbreviations() (*PunktAbbreviations, error) {
	tok, err := english.NewSentenceTokenizer(nil)
	if err != nil {
		return nil, fmt.Errorf("load english punkt model: %w", err)
	}
	return &PunktAbbreviations{abbrev: tok.AbbrevTypes}, nil
}

// LoadAbbreviations reads a punkt training file (JSON) from path.
func LoadAbbreviations(path string) (*PunktAbbreviations, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read punkt model: %w", err)
	}
	model, err := sentences.LoadTraining(data)
	if err != nil {
		return nil, fmt.Errorf("parse punkt model %s: %w", path, err)
	}
	return &PunktAbbreviations{abbrev: model.AbbrevTypes}, nil
}

// EndsWithAbbreviation reports whether the last word of text, without its final period,
// is a known abbreviation. Single letters count as initials.
func (p *PunktAbbreviations) EndsWithAbbreviation(text string) bool {
	if !strings.HasSuffix(text, ".") {
		return false
	}
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return false
	}
	word := strings.TrimFunc(fields[len(fields)-1], func(r rune) bool {
		return unicode.IsPunct(r) && r != '.'
	})
	word = strings.ToLower(strings.TrimSuffix(word, "."))
	if word == "" {
		return false
	}
	if len([]rune(word)) == 1 && unicode.IsLetter([]rune(word)[0]) {
		return true
	}
	return p.abbrev.Has(word)
}
