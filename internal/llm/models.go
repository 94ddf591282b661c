package llm

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultModels модели Groq, доступные в селекторе. Первая выбирается по умолчанию.
var DefaultModels = []ModelInfo{
	{Label: "LLaMA 3 (8B)", ID: "llama3-8b-8192"},
	{Label: "LLaMA 3.3 (70B)", ID: "llama-3.3-70b-versatile"},
	{Label: "Gemma (9B)", ID: "gemma2-9b-it"},
}

// ModelInfo описывает модель в селекторе.
type ModelInfo struct {
	Label string `yaml:"label" json:"label"` // Название для отображения
	ID    string `yaml:"id" json:"id"`       // Идентификатор модели для API
}

// Catalog упорядоченный набор моделей, из которых выбирает пользователь.
type Catalog struct {
	models []ModelInfo
}

// NewCatalog проверяет список и строит каталог.
// Пустой список, пустые поля и дубликаты меток или идентификаторов считаются ошибкой конфигурации.
func NewCatalog(models []ModelInfo) (*Catalog, error) {
	if len(models) == 0 {
		return nil, errors.New("model catalog is empty")
	}

	seenIDs := make(map[string]struct{}, len(models))
	seenLabels := make(map[string]struct{}, len(models))
	for i, m := range models {
		if m.ID == "" || m.Label == "" {
			return nil, fmt.Errorf("model #%d: label and id are required", i+1)
		}
		if _, ok := seenIDs[m.ID]; ok {
			return nil, fmt.Errorf("duplicate model id %q", m.ID)
		}
		if _, ok := seenLabels[m.Label]; ok {
			return nil, fmt.Errorf("duplicate model label %q", m.Label)
		}
		seenIDs[m.ID] = struct{}{}
		seenLabels[m.Label] = struct{}{}
	}

	copied := make([]ModelInfo, len(models))
	copy(copied, models)
	return &Catalog{models: copied}, nil
}

type catalogFile struct {
	Models []ModelInfo `yaml:"models"`
}

// LoadCatalog читает каталог из YAML-файла вида:
//
//	models:
//	  - label: LLaMA 3 (8B)
//	    id: llama3-8b-8192
//
// Пустой path возвращает каталог по умолчанию.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return NewCatalog(DefaultModels)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read models file: %w", err)
	}

	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode models file: %w", err)
	}
	return NewCatalog(file.Models)
}

// Models возвращает копию списка в исходном порядке.
func (c *Catalog) Models() []ModelInfo {
	out := make([]ModelInfo, len(c.models))
	copy(out, c.models)
	return out
}

// Default модель, с которой стартует новая сессия.
func (c *Catalog) Default() ModelInfo {
	return c.models[0]
}

// ByID возвращает модель по идентификатору.
func (c *Catalog) ByID(id string) (ModelInfo, bool) {
	for _, m := range c.models {
		if m.ID == id {
			return m, true
		}
	}
	return ModelInfo{}, false
}

// ByLabel возвращает модель по отображаемому названию.
func (c *Catalog) ByLabel(label string) (ModelInfo, bool) {
	for _, m := range c.models {
		if m.Label == label {
			return m, true
		}
	}
	return ModelInfo{}, false
}

// At возвращает модель по позиции в селекторе.
func (c *Catalog) At(index int) (ModelInfo, bool) {
	if index < 0 || index >= len(c.models) {
		return ModelInfo{}, false
	}
	return c.models[index], true
}

// IsValid проверяет, является ли id допустимой моделью.
func (c *Catalog) IsValid(id string) bool {
	_, ok := c.ByID(id)
	return ok
}

// Label возвращает название модели по её ID.
// Если модель не найдена, возвращает сам ID.
func (c *Catalog) Label(id string) string {
	if m, ok := c.ByID(id); ok {
		return m.Label
	}
	return id
}
