package domain

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	gojsonschema "github.com/xeipuuv/gojsonschema"
)

func TestNewProjectMatchesManifestSchema(t *testing.T) {
	p := NewProject("Pilot")
	b, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	schema, err := os.ReadFile(filepath.Join("..", "..", "docs", "screenplay.schema.json"))
	if err != nil {
		t.Fatalf("read schema: %v", err)
	}
	res, err := gojsonschema.Validate(gojsonschema.NewBytesLoader(schema), gojsonschema.NewBytesLoader(b))
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !res.Valid() {
		t.Fatalf("manifest invalid: %v\n%s", res.Errors(), b)
	}
	if p.ID == "" || NewProject("Pilot").ID == p.ID {
		t.Fatalf("each project needs its own id")
	}
	if p.Metadata.Title != "Pilot" || p.Template != "default" || p.Script != "script.json" {
		t.Fatalf("unexpected defaults: %+v", p)
	}
}
