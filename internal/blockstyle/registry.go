/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package blockstyle

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Registry resolves templates by name across three scopes:
//   - Builtin: templates shipped with the binary
//   - User: templates from the per-user config directory
//   - Project: templates stored in the project's templates folder
//
// Resolution precedence is Project > User > Builtin.
type Registry struct {
	Builtin map[string]*Template
	User    map[string]*Template
	Project map[string]*Template
}

// NewRegistry returns a registry seeded with the builtin default template.
func NewRegistry() *Registry {
	d := Default()
	return &Registry{
		Builtin: map[string]*Template{d.Name(): d},
		User:    map[string]*Template{},
		Project: map[string]*Template{},
	}
}

// Resolve returns the effective template for name. The second value is false if no scope
// knows the name.
func (r *Registry) Resolve(name string) (*Template, bool) {
	if r == nil {
		return nil, false
	}
	for _, scope := range []map[string]*Template{r.Project, r.User, r.Builtin} {
		if t, ok := scope[name]; ok {
			return t, true
		}
	}
	return nil, false
}

// Names lists all known template names, sorted.
func (r *Registry) Names() []string {
	seen := map[string]bool{}
	var out []string
	for _, scope := range []map[string]*Template{r.Builtin, r.User, r.Project} {
		for k := range scope {
			if !seen[k] {
				seen[k] = true
				out = append(out, k)
			}
		}
	}
	sort.Strings(out)
	return out
}

// LoadDir loads every *.yaml / *.yml template in dir into scope. A missing directory is
// not an error. Files that fail to load are returned in the error slice and skipped.
func LoadDir(dir string, scope map[string]*Template) []error {
	ents, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return []error{err}
	}
	var errs []error
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		t, err := LoadTemplateFile(filepath.Join(dir, e.Name()))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		scope[t.Name()] = t
	}
	return errs
}
