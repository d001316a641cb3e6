/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package blockstyle

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	gojsonschema "github.com/xeipuuv/gojsonschema"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

//go:embed templates/default.yaml templates/template.schema.json
var templatesFS embed.FS

// templateFile is the YAML shape of a template file.
// editable and active default to true when absent.
type templateFile struct {
	Name        string      `yaml:"name"`
	Description string      `yaml:"description"`
	Styles      []styleFile `yaml:"styles"`
}

type styleFile struct {
	Type           string `yaml:"type"`
	Prefix         string `yaml:"prefix"`
	Postfix        string `yaml:"postfix"`
	HeaderType     string `yaml:"header_type"`
	Header         string `yaml:"header"`
	FooterType     string `yaml:"footer_type"`
	FirstUppercase bool   `yaml:"first_uppercase"`
	Editable       *bool  `yaml:"editable"`
	Active         *bool  `yaml:"active"`
}

var (
	schemaOnce sync.Once
	schema     *gojsonschema.Schema
	schemaErr  error

	defaultOnce sync.Once
	defaultTpl  *Template
)

func templateSchema() (*gojsonschema.Schema, error) {
	schemaOnce.Do(func() {
		b, err := templatesFS.ReadFile("templates/template.schema.json")
		if err != nil {
			schemaErr = fmt.Errorf("read template schema: %w", err)
			return
		}
		schema, schemaErr = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(b))
	})
	return schema, schemaErr
}

// Default returns the builtin template. It panics only if the embedded file is broken,
// which the package tests guard against.
func Default() *Template {
	defaultOnce.Do(func() {
		b, err := templatesFS.ReadFile("templates/default.yaml")
		if err != nil {
			panic(fmt.Sprintf("blockstyle: embedded default template: %v", err))
		}
		t, err := ParseTemplate(b)
		if err != nil {
			panic(fmt.Sprintf("blockstyle: embedded default template: %v", err))
		}
		defaultTpl = t
	})
	return defaultTpl
}

// LoadTemplate reads a YAML template from r.
func LoadTemplate(r io.Reader) (*Template, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read template: %w", err)
	}
	return ParseTemplate(b)
}

// LoadTemplateFile reads a YAML template from disk.
func LoadTemplateFile(path string) (*Template, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read template %s: %w", path, err)
	}
	t, err := ParseTemplate(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// ParseTemplate validates data against the template schema and builds a Template.
// All schema violations are reported together.
func ParseTemplate(data []byte) (*Template, error) {
	if err := Validate(data); err != nil {
		return nil, err
	}
	var tf templateFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&tf); err != nil {
		return nil, fmt.Errorf("decode template: %w", err)
	}
	styles := make([]Style, 0, len(tf.Styles))
	var errs error
	for i, sf := range tf.Styles {
		s, err := sf.style()
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("styles[%d]: %w", i, err))
			continue
		}
		styles = append(styles, s)
	}
	if errs != nil {
		return nil, errs
	}
	return NewTemplate(tf.Name, tf.Description, styles...)
}

// Validate checks a YAML template document against the embedded JSON schema.
func Validate(data []byte) error {
	sch, err := templateSchema()
	if err != nil {
		return err
	}
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse template yaml: %w", err)
	}
	if doc == nil {
		return errors.New("template is empty")
	}
	res, err := sch.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return fmt.Errorf("validate template: %w", err)
	}
	if res.Valid() {
		return nil
	}
	var errs error
	for _, e := range res.Errors() {
		errs = multierr.Append(errs, errors.New(e.String()))
	}
	return errs
}

func (sf styleFile) style() (Style, error) {
	typ, err := ParseType(sf.Type)
	if err != nil {
		return Style{}, err
	}
	s := Style{
		Type:           typ,
		Prefix:         sf.Prefix,
		Postfix:        sf.Postfix,
		HeaderText:     sf.Header,
		FirstUppercase: sf.FirstUppercase,
		Editable:       sf.Editable == nil || *sf.Editable,
		Active:         sf.Active == nil || *sf.Active,
	}
	if sf.HeaderType != "" {
		if s.HeaderType, err = ParseType(sf.HeaderType); err != nil {
			return Style{}, err
		}
	}
	if sf.FooterType != "" {
		if s.FooterType, err = ParseType(sf.FooterType); err != nil {
			return Style{}, err
		}
	}
	return s, nil
}
