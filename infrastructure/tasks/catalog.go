package tasks

import (
	"bytes"
	_ "embed"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-zsb/internal/domain"
)

// ResolverSubtopics is the resolver tag that maps a topic to its subtopics.
const ResolverSubtopics = "subtopics"

//go:embed attributes.yaml
var catalogYAML []byte

// Catalog holds the value lists the built-in task schemas draw from.
type Catalog struct {
	Topics               []string            `yaml:"topics"`
	Subtopics            map[string][]string `yaml:"subtopics"`
	Difficulties         []string            `yaml:"difficulties"`
	Styles               []string            `yaml:"styles"`
	Audiences            []string            `yaml:"audiences"`
	WritingProficiencies []string            `yaml:"writing_proficiencies"`
	Lengths              []string            `yaml:"lengths"`
}

// ParseCatalog decodes a YAML catalog and checks that every list is
// populated and every topic resolves to at least one subtopic. Unknown
// keys are rejected so typos surface at load time.
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil {
		return nil, fmt.Errorf("failed to decode attribute catalog: %w: %w", err, domain.ErrInvalidConfiguration)
	}

	verr := domain.NewValidationError("attribute catalog")
	for name, list := range map[string][]string{
		"topics":                c.Topics,
		"difficulties":          c.Difficulties,
		"styles":                c.Styles,
		"audiences":             c.Audiences,
		"writing_proficiencies": c.WritingProficiencies,
		"lengths":               c.Lengths,
	} {
		if len(list) == 0 {
			verr.AddError(name + " is empty")
		}
	}
	for _, topic := range c.Topics {
		if len(c.Subtopics[topic]) == 0 {
			verr.AddError(fmt.Sprintf("topic %q has no subtopics", topic))
		}
	}
	if verr.HasErrors() {
		return nil, verr
	}
	return &c, nil
}

var defaultCatalog = sync.OnceValues(func() (*Catalog, error) {
	return ParseCatalog(catalogYAML)
})

// DefaultCatalog returns the catalog embedded in the binary.
func DefaultCatalog() (*Catalog, error) {
	return defaultCatalog()
}

// Resolvers returns the resolver table for schemas built from c.
func (c *Catalog) Resolvers() domain.ResolverTable {
	return domain.ResolverTable{
		ResolverSubtopics: domain.MapResolver(c.Subtopics),
	}
}
