package catalog

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mcdev12/bidroom/go/internal/models"
)

// File is the on-disk catalog layout. JSON documents decode too since
// YAML is a superset of JSON.
type File struct {
	SetOrder []string     `yaml:"set_order"`
	Lots     []models.Lot `yaml:"lots"`
}

// LoadFile reads a catalog from a YAML or JSON file.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a catalog document.
func Parse(data []byte) (*Catalog, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	return New(f.Lots, WithSetOrder(f.SetOrder...))
}
