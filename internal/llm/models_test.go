package llm

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultCatalog(t *testing.T) {
	catalog, err := LoadCatalog("")
	if err != nil {
		t.Fatalf("LoadCatalog failed: %v", err)
	}

	if catalog.Default().ID != "llama3-8b-8192" {
		t.Errorf("expected llama3-8b-8192 as default, got: %s", catalog.Default().ID)
	}

	want := map[string]string{
		"LLaMA 3 (8B)":    "llama3-8b-8192",
		"LLaMA 3.3 (70B)": "llama-3.3-70b-versatile",
		"Gemma (9B)":      "gemma2-9b-it",
	}
	for label, id := range want {
		m, ok := catalog.ByLabel(label)
		if !ok || m.ID != id {
			t.Errorf("label %q: expected %s, got: %+v", label, id, m)
		}
		if catalog.Label(id) != label {
			t.Errorf("id %s: expected label %q, got: %q", id, label, catalog.Label(id))
		}
	}

	if catalog.IsValid("gpt-4o") {
		t.Errorf("gpt-4o must not be valid")
	}
	if catalog.Label("gpt-4o") != "gpt-4o" {
		t.Errorf("unknown id must be returned as is")
	}
	if _, ok := catalog.At(3); ok {
		t.Errorf("index out of range must fail")
	}
	if m, ok := catalog.At(2); !ok || m.ID != "gemma2-9b-it" {
		t.Errorf("expected gemma at index 2, got: %+v", m)
	}
}

func TestCatalogModelsIsCopy(t *testing.T) {
	catalog, err := NewCatalog(DefaultModels)
	if err != nil {
		t.Fatalf("NewCatalog failed: %v", err)
	}
	models := catalog.Models()
	models[0].ID = "changed"

	if catalog.Default().ID != "llama3-8b-8192" {
		t.Fatalf("catalog must not be mutated from outside")
	}
}

func TestNewCatalogValidation(t *testing.T) {
	cases := map[string][]ModelInfo{
		"empty":           nil,
		"missing id":      {{Label: "A"}},
		"duplicate id":    {{Label: "A", ID: "a"}, {Label: "B", ID: "a"}},
		"duplicate label": {{Label: "A", ID: "a"}, {Label: "A", ID: "b"}},
	}
	for name, models := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := NewCatalog(models); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestLoadCatalogFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "models.yaml")
	content := `models:
  - label: Mixtral (8x7B)
    id: mixtral-8x7b-32768
  - label: Gemma (9B)
    id: gemma2-9b-it
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}

	catalog, err := LoadCatalog(path)
	if err != nil {
		t.Fatalf("LoadCatalog failed: %v", err)
	}
	if len(catalog.Models()) != 2 {
		t.Fatalf("expected 2 models, got: %d", len(catalog.Models()))
	}
	if catalog.Default().ID != "mixtral-8x7b-32768" {
		t.Errorf("expected first entry to be default, got: %s", catalog.Default().ID)
	}
}

func TestLoadCatalogErrors(t *testing.T) {
	if _, err := LoadCatalog(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Errorf("expected error for missing file")
	}

	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("models: [oops"), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if _, err := LoadCatalog(path); err == nil {
		t.Errorf("expected error for malformed yaml")
	}
}
