package domain

import (
	"fmt"
	"maps"
)

// AttributeKind tags the two shapes an Attribute can take.
type AttributeKind string

const (
	// KindIndependent marks an attribute with a fixed, ordered value list.
	KindIndependent AttributeKind = "independent"
	// KindDependent marks an attribute whose values are resolved from the
	// chosen value of an independent attribute.
	KindDependent AttributeKind = "dependent"
)

// Attribute is one configurable dimension of a task. It is a tagged union
// kept as plain data so schemas serialize to YAML and JSON: an attribute is
// independent when DependsOn is empty and dependent otherwise.
type Attribute struct {
	// Name identifies the attribute and is the key used in combinations
	// and prompt templates.
	Name string `yaml:"name" json:"name"`

	// Values lists the candidate values of an independent attribute in
	// declaration order.
	Values []string `yaml:"values,omitempty" json:"values,omitempty"`

	// DependsOn names the independent attribute a dependent attribute is
	// resolved from.
	DependsOn string `yaml:"depends_on,omitempty" json:"depends_on,omitempty"`

	// Resolver is the tag of the ResolverFunc used to resolve a dependent
	// attribute's values.
	Resolver string `yaml:"resolver,omitempty" json:"resolver,omitempty"`
}

// Independent builds an independent attribute.
func Independent(name string, values ...string) Attribute {
	return Attribute{Name: name, Values: values}
}

// Dependent builds a dependent attribute resolved through the resolver
// registered under tag.
func Dependent(name, dependsOn, tag string) Attribute {
	return Attribute{Name: name, DependsOn: dependsOn, Resolver: tag}
}

// Kind reports which variant of the union the attribute holds.
func (a Attribute) Kind() AttributeKind {
	if a.DependsOn != "" {
		return KindDependent
	}
	return KindIndependent
}

// AttributeSchema is the ordered list of attributes of a task.
type AttributeSchema struct {
	Attributes []Attribute `yaml:"attributes" json:"attributes"`
}

// NewSchema creates a schema from attributes in declaration order.
func NewSchema(attrs ...Attribute) AttributeSchema {
	return AttributeSchema{Attributes: attrs}
}

// With returns a copy of the schema where the attribute named name is
// replaced by attr. It is used to specialize a base task per language.
func (s AttributeSchema) With(name string, attr Attribute) AttributeSchema {
	out := AttributeSchema{Attributes: make([]Attribute, len(s.Attributes))}
	copy(out.Attributes, s.Attributes)
	for i := range out.Attributes {
		if out.Attributes[i].Name == name {
			out.Attributes[i] = attr
		}
	}
	return out
}

// ResolverFunc maps the chosen value of an independent attribute to the
// candidate values of a dependent one. It must be pure.
type ResolverFunc func(value string) ([]string, error)

// ResolverTable maps resolver tags to their functions.
type ResolverTable map[string]ResolverFunc

// MapResolver returns a ResolverFunc backed by a lookup table. Values absent
// from the table yield ErrUnresolvedAttribute.
func MapResolver(table map[string][]string) ResolverFunc {
	return func(value string) ([]string, error) {
		values, ok := table[value]
		if !ok {
			return nil, fmt.Errorf("no values mapped for %q: %w", value, ErrUnresolvedAttribute)
		}
		return values, nil
	}
}

// Combination is one concrete assignment of a value to every attribute of
// a schema.
type Combination map[string]string

func (c Combination) with(name, value string) Combination {
	next := make(Combination, len(c)+1)
	maps.Copy(next, c)
	next[name] = value
	return next
}

// Validate checks the schema against the depth-1 dependency rule and the
// resolver table. Any violation is reported as ErrInvalidSchema.
func (s AttributeSchema) Validate(resolvers ResolverTable) error {
	kinds := make(map[string]AttributeKind, len(s.Attributes))
	for _, attr := range s.Attributes {
		if attr.Name == "" {
			return fmt.Errorf("attribute with empty name: %w", ErrInvalidSchema)
		}
		if _, dup := kinds[attr.Name]; dup {
			return fmt.Errorf("duplicate attribute %q: %w", attr.Name, ErrInvalidSchema)
		}
		kinds[attr.Name] = attr.Kind()
	}

	for _, attr := range s.Attributes {
		switch attr.Kind() {
		case KindIndependent:
			if len(attr.Values) == 0 {
				return fmt.Errorf("independent attribute %q has no values: %w", attr.Name, ErrInvalidSchema)
			}
		case KindDependent:
			if len(attr.Values) > 0 {
				return fmt.Errorf("dependent attribute %q must not list values: %w", attr.Name, ErrInvalidSchema)
			}
			parent, ok := kinds[attr.DependsOn]
			if !ok {
				return fmt.Errorf("attribute %q depends on unknown attribute %q: %w",
					attr.Name, attr.DependsOn, ErrInvalidSchema)
			}
			// A dependent parent covers both chains and cycles.
			if parent != KindIndependent {
				return fmt.Errorf("attribute %q depends on dependent attribute %q: %w",
					attr.Name, attr.DependsOn, ErrInvalidSchema)
			}
			if _, ok := resolvers[attr.Resolver]; !ok {
				return fmt.Errorf("attribute %q uses unknown resolver %q: %w",
					attr.Name, attr.Resolver, ErrInvalidSchema)
			}
		}
	}
	return nil
}

// ExpandCombinations returns every combination implied by the schema. The
// cross-product of independent attributes follows declaration order with
// the leftmost attribute varying slowest. Each base combination is then
// extended once per tuple of the cross-product of its resolved dependent
// values. A resolver failure is returned as is and must be treated as fatal.
func ExpandCombinations(schema AttributeSchema, resolvers ResolverTable) ([]Combination, error) {
	if err := schema.Validate(resolvers); err != nil {
		return nil, err
	}

	var independent, dependent []Attribute
	for _, attr := range schema.Attributes {
		if attr.Kind() == KindDependent {
			dependent = append(dependent, attr)
			continue
		}
		independent = append(independent, attr)
	}

	base := []Combination{{}}
	for _, attr := range independent {
		base = extend(base, attr.Name, func(Combination) ([]string, error) { return attr.Values, nil })
	}
	if len(dependent) == 0 {
		return base, nil
	}

	out := make([]Combination, 0, len(base))
	for _, combo := range base {
		expanded := []Combination{combo}
		for _, attr := range dependent {
			resolve := resolvers[attr.Resolver]
			var err error
			expanded, err = extendErr(expanded, attr.Name, func(c Combination) ([]string, error) {
				return resolve(c[attr.DependsOn])
			})
			if err != nil {
				return nil, fmt.Errorf("resolve %q from %s=%q: %w", attr.Name, attr.DependsOn, combo[attr.DependsOn], err)
			}
		}
		out = append(out, expanded...)
	}
	return out, nil
}

func extend(combos []Combination, name string, values func(Combination) ([]string, error)) []Combination {
	out, _ := extendErr(combos, name, values)
	return out
}

func extendErr(combos []Combination, name string, values func(Combination) ([]string, error)) ([]Combination, error) {
	out := make([]Combination, 0, len(combos))
	for _, combo := range combos {
		vs, err := values(combo)
		if err != nil {
			return nil, err
		}
		for _, v := range vs {
			out = append(out, combo.with(name, v))
		}
	}
	return out, nil
}
