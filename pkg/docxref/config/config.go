package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/cognicore/docxref/pkg/docxref/internalerr"
	"github.com/cognicore/docxref/pkg/docxref/patterns"
)

// PatternFile is the on-disk form of a pattern catalog.
type PatternFile struct {
	Patterns []PatternEntry `yaml:"patterns"`
}

// PatternEntry is one pattern definition in YAML.
type PatternEntry struct {
	Type  string `yaml:"type"`
	Regex string `yaml:"regex"`
	Label string `yaml:"label"`
	Case  string `yaml:"case"`
}

// LoadPatterns reads a pattern catalog and compiles it. Any broken entry
// fails the whole load.
func LoadPatterns(path string) (*patterns.Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var pf PatternFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", internalerr.ErrInvalidConfig, path, err)
	}
	if len(pf.Patterns) == 0 {
		return nil, fmt.Errorf("%w: %s defines no patterns", internalerr.ErrInvalidConfig, path)
	}

	defs := make([]patterns.Definition, 0, len(pf.Patterns))
	for _, e := range pf.Patterns {
		c, err := patterns.ParseCase(e.Case)
		if err != nil {
			return nil, fmt.Errorf("pattern %q: %w", e.Type, err)
		}
		defs = append(defs, patterns.Definition{
			TypeName: e.Type,
			Regex:    e.Regex,
			Label:    e.Label,
			Case:     c,
		})
	}
	return patterns.New(defs)
}

// Catalog lists the master tables available for join resolution.
type Catalog struct {
	Masters []MasterSource `yaml:"masters"`
}

// MasterSource points at one master table file.
type MasterSource struct {
	Name       string   `yaml:"name"`
	Path       string   `yaml:"path"`
	KeyColumns []string `yaml:"key_columns"`
}

// LoadCatalog reads a master catalog. Relative paths are resolved against
// the catalog's directory.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cat Catalog
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", internalerr.ErrInvalidConfig, path, err)
	}

	dir := filepath.Dir(path)
	seen := make(map[string]struct{}, len(cat.Masters))
	for i, m := range cat.Masters {
		if m.Name == "" || m.Path == "" {
			return nil, fmt.Errorf("%w: master #%d needs name and path", internalerr.ErrInvalidConfig, i+1)
		}
		if _, dup := seen[m.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate master %q", internalerr.ErrInvalidConfig, m.Name)
		}
		seen[m.Name] = struct{}{}
		if !filepath.IsAbs(m.Path) {
			cat.Masters[i].Path = filepath.Join(dir, m.Path)
		}
	}
	return &cat, nil
}

// Settings tunes the engine and the input loaders.
type Settings struct {
	Workers          int `yaml:"workers"`
	MaxExamples      int `yaml:"max_examples"`
	MaxValuesPerType int `yaml:"max_values_per_type"`
	MaxTextBytes     int `yaml:"max_text_bytes"`
	MaxRows          int `yaml:"max_rows"`
}

// DefaultSettings returns the settings used when no file is given.
func DefaultSettings() Settings {
	return Settings{
		Workers:          4,
		MaxExamples:      5,
		MaxValuesPerType: 5,
		MaxTextBytes:     1 << 20,
		MaxRows:          50000,
	}
}

// LoadSettings reads settings; unset fields keep their defaults.
func LoadSettings(path string) (Settings, error) {
	s := DefaultSettings()
	data, err := os.ReadFile(path)
	if err != nil {
		return s, err
	}
	if err := yaml.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("%w: %s: %v", internalerr.ErrInvalidConfig, path, err)
	}
	if s.Workers < 0 || s.MaxExamples < 0 || s.MaxValuesPerType < 0 || s.MaxTextBytes < 0 || s.MaxRows < 0 {
		return s, fmt.Errorf("%w: %s: negative setting", internalerr.ErrInvalidConfig, path)
	}
	return s, nil
}
