package analysis

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DocumentPlaceholder is replaced by the claims text when a prompt is rendered.
const DocumentPlaceholder = "{document}"

var (
	// ErrNoPrompts is returned when a catalog defines no prompts.
	ErrNoPrompts = errors.New("prompt catalog is empty")

	// ErrInvalidCatalog is returned for malformed catalogs.
	ErrInvalidCatalog = errors.New("invalid prompt catalog")
)

//go:embed prompts.yaml
var defaultCatalog []byte

// Prompt is one named analysis prompt.
type Prompt struct {
	Name     string `yaml:"name"`
	Template string `yaml:"template"`
}

// Render substitutes document for every {document} placeholder. A template
// without the placeholder gets the document appended under a "Patent text:" label.
func (p Prompt) Render(document string) string {
	if strings.Contains(p.Template, DocumentPlaceholder) {
		return strings.ReplaceAll(p.Template, DocumentPlaceholder, document)
	}
	return strings.TrimRight(p.Template, "\n") + "\n\nPatent text:\n" + document
}

// Catalog is the ordered list of prompts run against every document.
type Catalog struct {
	Prompts []Prompt `yaml:"prompts"`
}

// Names returns the prompt names in catalog order.
func (c *Catalog) Names() []string {
	names := make([]string, len(c.Prompts))
	for i, p := range c.Prompts {
		names[i] = p.Name
	}
	return names
}

// DefaultCatalog returns the built-in prompt catalog.
func DefaultCatalog() (*Catalog, error) {
	return ParseCatalog(defaultCatalog)
}

// LoadCatalog reads a catalog from path, or returns the built-in catalog when
// path is empty.
func LoadCatalog(path string) (*Catalog, error) {
	const op = "LoadCatalog"

	if path == "" {
		return DefaultCatalog()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to read %s: %w", op, path, err)
	}
	c, err := ParseCatalog(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %s: %w", op, path, err)
	}
	return c, nil
}

// ParseCatalog decodes and validates a YAML catalog.
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}
	if len(c.Prompts) == 0 {
		return nil, ErrNoPrompts
	}

	seen := make(map[string]bool, len(c.Prompts))
	for i, p := range c.Prompts {
		name := strings.TrimSpace(p.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: prompt %d has no name", ErrInvalidCatalog, i+1)
		}
		if seen[name] {
			return nil, fmt.Errorf("%w: duplicate prompt name %q", ErrInvalidCatalog, name)
		}
		if strings.TrimSpace(p.Template) == "" {
			return nil, fmt.Errorf("%w: prompt %q has an empty template", ErrInvalidCatalog, name)
		}
		seen[name] = true
		c.Prompts[i].Name = name
	}
	return &c, nil
}
