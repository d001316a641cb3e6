/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package blockstyle

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultTemplate(t *testing.T) {
	d := Default()
	if d.Name() != "default" {
		t.Fatalf("name = %q", d.Name())
	}
	p := d.Style(Parenthetical)
	if p.Prefix != "(" || p.Postfix != ")" || !p.HasDecoration() {
		t.Fatalf("parenthetical decoration = %+v", p)
	}
	title := d.Style(Title)
	if !title.HasHeader() || title.HeaderType != TitleHeader || title.HeaderText != "TITLE:" {
		t.Fatalf("title header = %+v", title)
	}
	for _, hdr := range []Type{SceneGroupHeader, FolderHeader} {
		s := d.Style(hdr)
		if !s.IsEmbeddableHeader() {
			t.Fatalf("%s should open a group", hdr)
		}
		f := d.Style(s.FooterType)
		if !f.IsEmbeddableFooter() || f.Closes() != hdr {
			t.Fatalf("footer %s closes %s, want %s", f.Type, f.Closes(), hdr)
		}
		if f.CanChangeType() {
			t.Fatalf("footer %s must not be retypable", f.Type)
		}
	}
	if d.Style(TitleHeader).CanChangeType() {
		t.Fatalf("title header must not be retypable")
	}
	if d.IsActive(FolderFooter) || !d.IsActive(SceneHeading) {
		t.Fatalf("unexpected active flags")
	}
}

func TestStyleIsTotal(t *testing.T) {
	var nilTpl *Template
	for _, tpl := range []*Template{Default(), nilTpl} {
		s := tpl.Style(Undefined)
		if s.HasDecoration() || s.HasHeader() || s.IsEmbeddableHeader() {
			t.Fatalf("undefined style should be plain: %+v", s)
		}
		if !s.Editable {
			t.Fatalf("undefined style should be editable")
		}
	}
}

func TestParseType(t *testing.T) {
	cases := map[string]Type{
		"scene_heading":  SceneHeading,
		"Scene-Heading":  SceneHeading,
		"time_and_place": TimeAndPlace,
		"dialogue":       Dialog,
		"folder_footer":  FolderFooter,
		"undefined":      Undefined,
	}
	for in, want := range cases {
		got, err := ParseType(in)
		if err != nil || got != want {
			t.Fatalf("ParseType(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseType("montage"); err == nil {
		t.Fatalf("expected error for unknown type")
	}
	if len(Types()) != int(typeCount)-1 {
		t.Fatalf("Types() should exclude undefined")
	}
}

func TestLoadTemplateReportsAllSchemaErrors(t *testing.T) {
	src := `
name: broken
styles:
  - type: montage
  - type: action
    colour: red
`
	_, err := LoadTemplate(strings.NewReader(src))
	if err == nil {
		t.Fatalf("expected validation error")
	}
	msg := err.Error()
	if !strings.Contains(msg, "colour") || !strings.Contains(msg, "type") {
		t.Fatalf("expected both violations in error, got: %v", msg)
	}
}

func TestLoadTemplateCrossReferences(t *testing.T) {
	src := `
name: selfref
styles:
  - type: folder_header
    footer_type: folder_header
`
	if _, err := LoadTemplate(strings.NewReader(src)); err == nil {
		t.Fatalf("expected error for footer referencing its own type")
	}
}

func TestLoadTemplateDefaults(t *testing.T) {
	src := `
name: tiny
styles:
  - type: character
  - type: note
    editable: false
    active: false
`
	tpl, err := LoadTemplate(strings.NewReader(src))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c := tpl.Style(Character); !c.Editable || !c.Active {
		t.Fatalf("editable/active should default to true: %+v", c)
	}
	if n := tpl.Style(Note); n.Editable || n.Active {
		t.Fatalf("explicit false ignored: %+v", n)
	}
	if got := tpl.ActiveTypes(); len(got) != 1 || got[0] != Character {
		t.Fatalf("active types = %v", got)
	}
}

func TestRegistryPrecedence(t *testing.T) {
	r := NewRegistry()
	user, err := NewTemplate("default", "user override", Style{Type: Action, Editable: true, Active: true})
	if err != nil {
		t.Fatal(err)
	}
	proj, err := NewTemplate("default", "project override", Style{Type: Note, Editable: true, Active: true})
	if err != nil {
		t.Fatal(err)
	}
	if got, _ := r.Resolve("default"); got != Default() {
		t.Fatalf("expected builtin")
	}
	r.User["default"] = user
	if got, _ := r.Resolve("default"); got != user {
		t.Fatalf("expected user override")
	}
	r.Project["default"] = proj
	if got, _ := r.Resolve("default"); got != proj {
		t.Fatalf("expected project override")
	}
	if _, ok := r.Resolve("nope"); ok {
		t.Fatalf("unknown name resolved")
	}
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	good := "name: stage\nstyles:\n  - type: action\n"
	if err := os.WriteFile(filepath.Join(dir, "stage.yaml"), []byte(good), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "bad.yml"), []byte("name: 3\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644); err != nil {
		t.Fatal(err)
	}
	scope := map[string]*Template{}
	errs := LoadDir(dir, scope)
	if len(errs) != 1 {
		t.Fatalf("expected one error, got %v", errs)
	}
	if _, ok := scope["stage"]; !ok || len(scope) != 1 {
		t.Fatalf("scope = %v", scope)
	}
	if errs := LoadDir(filepath.Join(dir, "missing"), scope); errs != nil {
		t.Fatalf("missing dir should be ignored: %v", errs)
	}
}

func TestCurrentFallsBackToDefault(t *testing.T) {
	t.Cleanup(func() { SetCurrent(nil) })
	if Current() != Default() {
		t.Fatalf("expected default")
	}
	custom, err := NewTemplate("custom", "")
	if err != nil {
		t.Fatal(err)
	}
	SetCurrent(custom)
	if Current() != custom {
		t.Fatalf("expected custom")
	}
	SetCurrent(nil)
	if Current() != Default() {
		t.Fatalf("expected default after reset")
	}
}

func TestWatchTemplateReloads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "live.yaml")
	if err := os.WriteFile(path, []byte("name: v1\nstyles: []\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	got := make(chan string, 8)
	err := WatchTemplate(ctx, path, func(tpl *Template, err error) {
		if err == nil && tpl != nil {
			got <- tpl.Name()
		}
	})
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	if err := os.WriteFile(path, []byte("name: v2\nstyles: []\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	deadline := time.After(5 * time.Second)
	for {
		select {
		case name := <-got:
			if name == "v2" {
				return
			}
		case <-deadline:
			t.Fatalf("no reload observed")
		}
	}
}
