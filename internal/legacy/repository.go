// Package legacy migrates the pre-relational indicator document into the
// store.
package legacy

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/urbix/urbix-etl/internal/model"
)

// Entry is one indicator of the legacy document.
type Entry struct {
	Name        string   `json:"name" yaml:"name"`
	Category    string   `json:"category" yaml:"category"`
	Target      *float64 `json:"target" yaml:"target"`
	Description string   `json:"description" yaml:"description"`
	Unit        string   `json:"unit,omitempty" yaml:"unit,omitempty"`
}

// Document is the legacy file layout.
type Document struct {
	Indicators []Entry `json:"indicators" yaml:"indicators"`
}

// Repository reads the legacy document from a file.
type Repository struct {
	path string
}

// NewRepository returns a Repository over path. Nothing is read until Load.
func NewRepository(path string) *Repository {
	return &Repository{path: path}
}

// Path returns the backing file path.
func (r *Repository) Path() string { return r.path }

// Load reads and decodes the document. YAML is used for .yaml and .yml
// files, JSON otherwise.
func (r *Repository) Load() (*Document, error) {
	data, err := os.ReadFile(r.path)
	if os.IsNotExist(err) {
		return nil, eris.Wrapf(model.ErrSourceMissing, "legacy: %s", r.path)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "legacy: read %s", r.path)
	}

	var doc Document
	switch strings.ToLower(filepath.Ext(r.path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &doc)
	default:
		err = json.Unmarshal(data, &doc)
	}
	if err != nil {
		return nil, eris.Wrapf(model.ErrSourceMalformed, "legacy: decode %s: %v", r.path, err)
	}
	return &doc, nil
}
