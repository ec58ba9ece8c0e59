// Package patterns holds the catalog of entity pattern definitions that the
// extractor scans documents with. A Registry is immutable once built and is
// passed explicitly to the components that need it.
package patterns

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/cognicore/docxref/pkg/docxref/internalerr"
)

// Case selects the canonical form of a matched value.
type Case int

const (
	// CaseKeep stores the matched substring verbatim.
	CaseKeep Case = iota
	// CaseUpper upper-cases the match so that "vm_dl_001" and "VM_DL_001" collapse.
	CaseUpper
)

// ParseCase maps a config string ("keep", "upper", "") to a Case.
func ParseCase(s string) (Case, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "keep":
		return CaseKeep, nil
	case "upper":
		return CaseUpper, nil
	default:
		return CaseKeep, fmt.Errorf("%w: unknown case %q", internalerr.ErrInvalidConfig, s)
	}
}

func (c Case) String() string {
	if c == CaseUpper {
		return "upper"
	}
	return "keep"
}

// Definition describes one named entity pattern.
type Definition struct {
	TypeName string
	Regex    string
	Label    string
	Case     Case
}

// Pattern is a compiled Definition.
type Pattern struct {
	Definition
	re *regexp.Regexp
}

// FindAll returns every match in text, canonicalised, in order of appearance.
func (p Pattern) FindAll(text string) []string {
	if text == "" {
		return nil
	}
	matches := p.re.FindAllString(text, -1)
	if p.Case == CaseUpper {
		for i, m := range matches {
			matches[i] = strings.ToUpper(m)
		}
	}
	return matches
}

// Registry is an ordered, read-only set of compiled patterns.
type Registry struct {
	patterns []Pattern
	order    map[string]int
}

// New compiles defs into a Registry. Registry order is the order of defs.
func New(defs []Definition) (*Registry, error) {
	reg := &Registry{
		patterns: make([]Pattern, 0, len(defs)),
		order:    make(map[string]int, len(defs)),
	}
	for _, def := range defs {
		name := strings.TrimSpace(def.TypeName)
		if name == "" {
			return nil, fmt.Errorf("%w: pattern with empty type name", internalerr.ErrInvalidConfig)
		}
		if _, dup := reg.order[name]; dup {
			return nil, fmt.Errorf("%w: duplicate pattern type %q", internalerr.ErrInvalidConfig, name)
		}
		if strings.TrimSpace(def.Regex) == "" {
			return nil, fmt.Errorf("%w: pattern %q has empty regex", internalerr.ErrInvalidConfig, name)
		}
		re, err := regexp.Compile(def.Regex)
		if err != nil {
			return nil, fmt.Errorf("%w: pattern %q: %v", internalerr.ErrInvalidConfig, name, err)
		}
		def.TypeName = name
		if def.Label == "" {
			def.Label = name
		}
		reg.order[name] = len(reg.patterns)
		reg.patterns = append(reg.patterns, Pattern{Definition: def, re: re})
	}
	return reg, nil
}

// MustNew is like New but panics on a broken definition.
func MustNew(defs []Definition) *Registry {
	reg, err := New(defs)
	if err != nil {
		panic(err)
	}
	return reg
}

// Patterns returns the compiled patterns in registry order.
func (r *Registry) Patterns() []Pattern {
	out := make([]Pattern, len(r.patterns))
	copy(out, r.patterns)
	return out
}

// List returns the definitions in registry order.
func (r *Registry) List() []Definition {
	out := make([]Definition, len(r.patterns))
	for i, p := range r.patterns {
		out[i] = p.Definition
	}
	return out
}

// Order reports the registry position of a pattern type.
func (r *Registry) Order(typeName string) (int, bool) {
	i, ok := r.order[typeName]
	return i, ok
}

// Label returns the human-readable label for a type, or the type name itself.
func (r *Registry) Label(typeName string) string {
	if i, ok := r.order[typeName]; ok {
		return r.patterns[i].Label
	}
	return typeName
}

// Len returns the number of patterns.
func (r *Registry) Len() int {
	return len(r.patterns)
}
